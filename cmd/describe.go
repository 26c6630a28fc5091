package cmd

import (
	"github.com/agentic-research/shapegen/api"
	"github.com/agentic-research/shapegen/internal/output"
	"github.com/spf13/cobra"
)

var describeSchemaPath string

func init() {
	describeCmd.Flags().StringVarP(&describeSchemaPath, "schema", "s", "", "Path to schema file (.json, otherwise YAML)")
	_ = describeCmd.MarkFlagRequired("schema")
	rootCmd.AddCommand(describeCmd)
}

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Print the JSON Schema of the value a schema generates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := api.Load(describeSchemaPath)
		if err != nil {
			return err
		}
		return output.Render(cmd.OutOrStdout(), api.OutputSchema(schema), output.JSON)
	},
}
