package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mikemuryn/VoiceNotes/internal/domain/pipeline"
	"github.com/mikemuryn/VoiceNotes/internal/output"
)

func NewListCmd(deps *Dependencies) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent transcription runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(os.Stdout)

			runs, err := deps.App.Runs.Recent(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				formatter.Info("No runs recorded yet")
				return nil
			}

			formatter.RunListHeader()
			for _, r := range runs {
				res := resultView(r.Stages)
				formatter.RunListItem(r.CreatedAt, r.AudioPath, r.Language, res.Degradations())
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")

	return cmd
}

func resultView(stages map[pipeline.Stage]pipeline.StageStatus) *pipeline.Result {
	return &pipeline.Result{Stages: stages}
}
