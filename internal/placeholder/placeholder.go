// Package placeholder expands #{path} references in query templates
// against a node tree.
package placeholder

import (
	"regexp"
	"strings"

	"github.com/agentic-research/shapegen/internal/graph"
)

var pattern = regexp.MustCompile(`#\{([\w.]+)\}`)

// Substitute replaces every #{a.b.c} in template with the string form of
// the path resolved from scope. Substituted text is not rescanned.
func Substitute(template string, tree *graph.Tree, scope graph.NodeID) string {
	if template == "" {
		return ""
	}
	return pattern.ReplaceAllStringFunc(template, func(m string) string {
		path := pattern.FindStringSubmatch(m)[1]
		return tree.Resolve(SplitPath(path), scope).String()
	})
}

// SplitPath splits a dotted placeholder path into segments.
func SplitPath(path string) []string {
	return strings.Split(path, ".")
}

// Paths lists the placeholder paths referenced by template, in order of
// appearance, duplicates included.
func Paths(template string) []string {
	matches := pattern.FindAllStringSubmatch(template, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}
