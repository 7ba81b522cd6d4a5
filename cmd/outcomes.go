package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/crickrecon/internal/report"
)

var outcomesCmd = &cobra.Command{
	Use:   "outcomes",
	Short: "Derive match winners from stored deliveries",
	Long: `Sum runs per team for every match and record the winner and margin in runs.
Equal totals clear the result; matches without runs are left untouched.
Wins by wickets are not derived.`,
	Args: cobra.NoArgs,
	RunE: runOutcomes,
}

func runOutcomes(cmd *cobra.Command, args []string) error {
	db, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	p := newPipeline(db)
	rep, err := p.Outcomes(cmd.Context())
	report.PrintOutcome(os.Stdout, rep)
	report.PrintStageTable(os.Stdout, p.RunID(), p.Stages())
	return err
}
