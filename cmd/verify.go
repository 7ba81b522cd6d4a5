package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/crickrecon/internal/report"
	"github.com/pable/crickrecon/internal/storage"
)

var (
	verifyTop  int
	verifyRuns int
)

// verifyCmd prints counts, data-quality checks and leaders for the stored data.
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the database after a run",
	Long: `Display table counts and date coverage, data-quality checks (orphaned
deliveries, missing player mappings, players without a team, matches without
deliveries), active players per team, the leading run scorers and the most
recent pipeline runs.`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().IntVar(&verifyTop, "top", 10, "number of run scorers to list")
	verifyCmd.Flags().IntVar(&verifyRuns, "runs", 3, "number of recent pipeline runs to list")
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	db, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	ov, err := db.GetOverview(ctx)
	if err != nil {
		return fmt.Errorf("get overview: %w", err)
	}
	if ov.Matches == 0 && ov.Events == 0 {
		fmt.Fprintln(os.Stdout, "No matches stored yet. Run 'crickrecon run --seed' to load the feed.")
		return nil
	}
	report.PrintOverview(os.Stdout, ov)

	q, err := db.GetQuality(ctx)
	if err != nil {
		return fmt.Errorf("get quality: %w", err)
	}
	report.PrintQuality(os.Stdout, q)

	teams, err := db.PlayersByTeam(ctx)
	if err != nil {
		return fmt.Errorf("players by team: %w", err)
	}
	report.PrintPlayersByTeam(os.Stdout, teams)

	scorers, err := db.TopRunScorers(ctx, verifyTop)
	if err != nil {
		return fmt.Errorf("top run scorers: %w", err)
	}
	report.PrintTopScorers(os.Stdout, scorers)

	return printRecentRuns(cmd, db, verifyRuns)
}

func printRecentRuns(cmd *cobra.Command, db *storage.DB, n int) error {
	runs, err := db.StageRuns(cmd.Context(), n)
	if err != nil {
		return fmt.Errorf("recent runs: %w", err)
	}
	report.PrintRecentRuns(os.Stdout, runs)
	return nil
}
