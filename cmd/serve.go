package cmd

import (
	"github.com/agentic-research/shapegen/internal/completion"
	"github.com/agentic-research/shapegen/internal/engine"
	"github.com/agentic-research/shapegen/internal/mcpserver"
	"github.com/agentic-research/shapegen/internal/transcript"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve generate and describe as MCP tools over stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig(nil)
		if err != nil {
			return err
		}
		defer log.Sync()

		completer, err := completion.New(cfg)
		if err != nil {
			return err
		}
		if verbose {
			completer = completion.WithLogging(completer, log)
		}

		var opts []mcpserver.Option
		if cfg.ListInstruction != "" {
			opts = append(opts, mcpserver.WithEngineOptions(engine.WithListInstruction(cfg.ListInstruction)))
		}
		if cfg.Transcript != "" {
			store, err := transcript.Open(cfg.Transcript)
			if err != nil {
				return err
			}
			defer store.Close()
			opts = append(opts, mcpserver.WithTranscript(store))
		}

		log.Info("starting MCP server", "backend", cfg.Backend, "model", cfg.Model)
		return mcpserver.New(completer, log, Version, opts...).ServeStdio()
	},
}
