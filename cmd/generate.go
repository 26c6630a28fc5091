package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/agentic-research/shapegen/api"
	"github.com/agentic-research/shapegen/internal/completion"
	"github.com/agentic-research/shapegen/internal/config"
	"github.com/agentic-research/shapegen/internal/engine"
	"github.com/agentic-research/shapegen/internal/logger"
	"github.com/agentic-research/shapegen/internal/output"
	"github.com/agentic-research/shapegen/internal/transcript"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var (
	schemaPath     string
	contextText    string
	contextFile    string
	backendName    string
	modelName      string
	formatName     string
	selectPath     string
	transcriptPath string
)

func init() {
	generateCmd.Flags().StringVarP(&schemaPath, "schema", "s", "", "Path to schema file (.json, otherwise YAML)")
	generateCmd.Flags().StringVarP(&contextText, "context", "c", "", "Context text available as #{_chunk}")
	generateCmd.Flags().StringVar(&contextFile, "context-file", "", "Read the context from a file ('-' for stdin)")
	generateCmd.Flags().StringVar(&backendName, "backend", "", "Completion backend: ollama, openai or mock")
	generateCmd.Flags().StringVar(&modelName, "model", "", "Model name passed to the backend")
	generateCmd.Flags().StringVarP(&formatName, "format", "f", "json", "Output format: json or yaml")
	generateCmd.Flags().StringVar(&selectPath, "select", "", "JSONPath applied to the result before printing")
	generateCmd.Flags().StringVar(&transcriptPath, "transcript", "", "SQLite file recording every completion call")
	_ = generateCmd.MarkFlagRequired("schema")
	generateCmd.MarkFlagsMutuallyExclusive("context", "context-file")

	rootCmd.AddCommand(generateCmd)
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a structured value from a schema and context text",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(formatName)
		if err != nil {
			return err
		}
		cfg, log, err := loadConfig(func(cfg *config.Config) {
			if cmd.Flags().Changed("backend") {
				cfg.Backend = backendName
			}
			if cmd.Flags().Changed("model") {
				cfg.Model = modelName
			}
			if cmd.Flags().Changed("transcript") {
				cfg.Transcript = transcriptPath
			}
		})
		if err != nil {
			return err
		}
		defer log.Sync()

		schema, err := api.Load(schemaPath)
		if err != nil {
			return err
		}
		chunk, err := readContext(cmd.InOrStdin())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		completer, err := completion.New(cfg)
		if err != nil {
			return err
		}
		v, err := run(ctx, cfg, log, schema, completer, chunk)
		if err != nil {
			return err
		}
		if selectPath != "" {
			if v, err = output.Select(v, selectPath); err != nil {
				return err
			}
		}
		return output.Render(cmd.OutOrStdout(), v, format)
	},
}

func readContext(stdin io.Reader) (string, error) {
	switch contextFile {
	case "":
		return contextText, nil
	case "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read context from stdin: %w", err)
		}
		return string(b), nil
	default:
		b, err := os.ReadFile(contextFile)
		if err != nil {
			return "", fmt.Errorf("read context: %w", err)
		}
		return string(b), nil
	}
}

// run wraps completer with logging and transcript recording as configured
// and generates one value.
func run(ctx context.Context, cfg config.Config, log *logger.Logger, schema *api.Schema, completer engine.Completer, chunk string) (v any, err error) {
	if verbose {
		completer = completion.WithLogging(completer, log)
	}
	if cfg.Transcript != "" {
		var store *transcript.Store
		if store, err = transcript.Open(cfg.Transcript); err != nil {
			return nil, err
		}
		defer func() {
			if cerr := store.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		var runID string
		if runID, err = beginRun(ctx, store, schema, chunk); err != nil {
			return nil, err
		}
		log.Info("recording transcript", "path", cfg.Transcript, "run", runID)
		completer = completion.WithTranscript(completer, store, runID)
	}

	opts := []engine.Option{engine.WithLogger(log)}
	if cfg.ListInstruction != "" {
		opts = append(opts, engine.WithListInstruction(cfg.ListInstruction))
	}
	v, stats, err := engine.NewEngine(schema, completer, opts...).GenerateWithStats(ctx, chunk)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("generation interrupted")
		}
		return nil, err
	}
	log.Info("generation complete", "calls", stats.Calls, "nodes", stats.Nodes, "duration", stats.Duration)
	return v, nil
}

func beginRun(ctx context.Context, store *transcript.Store, schema *api.Schema, chunk string) (string, error) {
	doc, err := json.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("encode schema: %w", err)
	}
	return store.BeginRun(ctx, string(doc), chunk)
}
