package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/agentic-research/shapegen/internal/transcript"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(transcriptCmd)
}

var transcriptCmd = &cobra.Command{
	Use:   "transcript [db] [run-id]",
	Short: "List recorded runs, or the completion calls of one run",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := transcript.Open(args[0])
		if err != nil {
			return err
		}
		defer store.Close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		if len(args) == 1 {
			runs, err := store.Runs(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "RUN\tSTARTED\tCALLS\tCONTEXT")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.ID, r.StartedAt.Format(time.RFC3339), r.Calls, preview(r.Chunk, 40))
			}
			return w.Flush()
		}

		calls, err := store.Calls(cmd.Context(), args[1])
		if err != nil {
			return err
		}
		for _, c := range calls {
			fmt.Fprintf(w, "#%d\t%s\n", c.Seq, c.Duration.Round(time.Millisecond))
			fmt.Fprintf(w, "  prompt:\t%s\n", preview(c.Prompt, 80))
			if c.Error != "" {
				fmt.Fprintf(w, "  error:\t%s\n", c.Error)
				continue
			}
			fmt.Fprintf(w, "  response:\t%s\n", preview(c.Response, 80))
		}
		return w.Flush()
	},
}

// preview flattens s to one line of at most n runes.
func preview(s string, n int) string {
	r := []rune(s)
	for i, c := range r {
		if c == '\n' || c == '\r' || c == '\t' {
			r[i] = ' '
		}
	}
	if len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return string(r)
}
