package cmd

import (
	"github.com/agentic-research/shapegen/api"
	"github.com/agentic-research/shapegen/internal/completion"
	"github.com/agentic-research/shapegen/internal/engine"
	"github.com/agentic-research/shapegen/internal/output"
	"github.com/spf13/cobra"
)

const demoSampleText = `The Great Molasses Flood, also known as the Boston Molasses Disaster, was a
disaster that occurred on Wednesday, January 15, 1919, in the North End
neighborhood of Boston, Massachusetts.

A large storage tank filled with 2.3 million U.S. gallons of molasses burst,
and the resultant wave of molasses rushed through the streets at an estimated
35 miles per hour, killing 21 people and injuring 150.`

var demoLive bool

func init() {
	demoCmd.Flags().BoolVar(&demoLive, "live", false, "Use the configured backend and a sample article instead of the mock")
	rootCmd.AddCommand(demoCmd)
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Generate the built-in quiz schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig(nil)
		if err != nil {
			return err
		}
		defer log.Sync()

		var completer engine.Completer = completion.NewMock(completion.QuizRules()...)
		chunk := "{sample text}"
		if demoLive {
			if completer, err = completion.New(cfg); err != nil {
				return err
			}
			chunk = demoSampleText
		}

		v, err := run(cmd.Context(), cfg, log, QuizSchema(), completer, chunk)
		if err != nil {
			return err
		}
		return output.Render(cmd.OutOrStdout(), v, output.JSON)
	},
}

// QuizSchema asks for a list of questions about the context, then for a
// list of candidate answers to each question.
func QuizSchema() *api.Schema {
	return api.Named("quiz", api.Object(
		api.Named("questions", api.List(
			"Create a list of questions from the given text: #{_chunk}\n\n"+
				"Only include questions that can be answered from the given text. "+
				"Don't include text other than the list of questions. Do not include the answer.",
			api.Object(
				api.Named("questionText", api.Chunk()),
				api.Named("answers", api.List(
					"Question basis text:\n#{_parent._parent._chunk}\n\n"+
						"Based on the above text, provide possible answers for the quiz question: #{questionText}\n"+
						"Do not include text other than the list of answers. Do not repeat the question.",
					api.Chunk(),
				)),
			),
		)),
	))
}
