package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pable/crickrecon/internal/report"
	"github.com/pable/crickrecon/internal/storage"
)

var showCmd = &cobra.Command{
	Use:   "show <match-id>",
	Short: "Show a match's result and player statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	matchID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid match id %q: %w", args[0], err)
	}

	db, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	return showMatch(cmd, db, matchID)
}

func showMatch(cmd *cobra.Command, db *storage.DB, matchID int64) error {
	match, err := db.GetMatch(cmd.Context(), matchID)
	if err != nil {
		return fmt.Errorf("query match: %w", err)
	}
	if match == nil {
		fmt.Fprintf(os.Stderr, "No match found with id %d\n", matchID)
		return nil
	}

	lines, err := db.PlayerStatLines(cmd.Context(), matchID)
	if err != nil {
		return fmt.Errorf("get player stats: %w", err)
	}

	report.PrintMatchSummary(os.Stdout, *match)
	if len(lines) == 0 {
		fmt.Fprintln(os.Stdout, "No player statistics yet. Run 'crickrecon stats' to build them.")
		return nil
	}
	report.PrintBattingTable(os.Stdout, lines)
	fmt.Fprintln(os.Stdout)
	report.PrintBowlingTable(os.Stdout, lines)
	return nil
}
