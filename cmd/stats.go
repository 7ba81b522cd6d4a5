package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/crickrecon/internal/report"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Rebuild per-match player statistics",
	Long: `Recompute batting and bowling figures for every player in every match from the
stored deliveries and replace the player_match_stats table in one transaction.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	db, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	p := newPipeline(db)
	rep, err := p.Stats(cmd.Context())
	report.PrintStats(os.Stdout, rep)
	report.PrintStageTable(os.Stdout, p.RunID(), p.Stages())
	return err
}
