package main

import "github.com/agentic-research/shapegen/cmd"

func main() {
	cmd.Execute()
}
