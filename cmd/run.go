package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/crickrecon/internal/report"
)

var runSeedFirst bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every stage: affiliate, load, outcomes, stats",
	Long: `Run the full reconciliation against the feed. Affiliations are corrected first
so name resolution during the load sees them; outcomes and statistics are then
derived from everything stored. Every stage commits on its own and is recorded
in pipeline_runs; re-running is safe and changes nothing when the feed has not
changed.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runSeedFirst, "seed", false, "register teams, players and matches from the feed first")
}

func runRun(cmd *cobra.Command, args []string) error {
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
	if runSeedFirst {
		rep, err := p.Seed(cmd.Context(), rows)
		report.PrintSeed(os.Stdout, rep)
		if err != nil {
			report.PrintStageTable(os.Stdout, p.RunID(), p.Stages())
			return err
		}
	}

	res, err := p.Run(cmd.Context(), rows)
	report.PrintRunSummary(os.Stdout, res)
	if err != nil {
		return explainLoadError(err)
	}
	return nil
}
