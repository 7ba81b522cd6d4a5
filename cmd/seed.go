package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/crickrecon/internal/report"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Register teams, players and matches named in the feed",
	Long: `Register every team and player named in the delivery feed, and every match in
which two teams batted. Existing rows are kept as they are, so seeding is safe to
repeat. Matches that appear with only one batting side are not registered.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
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
	rep, err := p.Seed(cmd.Context(), rows)
	report.PrintSeed(os.Stdout, rep)
	report.PrintStageTable(os.Stdout, p.RunID(), p.Stages())
	return err
}
