package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/crickrecon/internal/report"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Append new deliveries from the feed",
	Long: `Filter the feed (matches with one batting side, matches not in the matches
table), resolve names to ids and append every delivery whose
(match, innings, over, ball, batsman, bowler) identity is not stored yet.

Deliveries are written in batches of --batch-size, each in its own transaction.
If a batch fails or the command is interrupted, earlier batches stay committed and
re-running the command continues from there.`,
	Args: cobra.NoArgs,
	RunE: runLoad,
}

func runLoad(cmd *cobra.Command, args []string) error {
	rows, err := readFeed()
	if err != nil {
		return err
	}
	db, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	p := newPipeline(db)
	res, err := p.Load(cmd.Context(), rows)
	report.PrintLoad(os.Stdout, res)
	report.PrintStageTable(os.Stdout, p.RunID(), p.Stages())
	if err != nil {
		return explainLoadError(err)
	}
	return nil
}
