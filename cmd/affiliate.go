package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/crickrecon/internal/report"
)

var affiliateCmd = &cobra.Command{
	Use:   "affiliate",
	Short: "Infer each player's team from the feed",
	Long: `Assign every player to a team using co-occurrence in the feed: batting (as
striker or non-striker) counts for the batting side, bowling counts for the
opponent. Players seen with several teams go to the one they batted for most;
equal counts go to the alphabetically first team. Only players whose stored team
differs are updated.`,
	Args: cobra.NoArgs,
	RunE: runAffiliate,
}

func runAffiliate(cmd *cobra.Command, args []string) error {
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
	rep, err := p.Affiliate(cmd.Context(), rows)
	report.PrintAffiliation(os.Stdout, rep)
	report.PrintStageTable(os.Stdout, p.RunID(), p.Stages())
	return err
}
