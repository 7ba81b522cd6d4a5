package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pable/crickrecon/internal/report"
)

var sqlCmd = &cobra.Command{
	Use:   "sql <query>",
	Short: "Run a raw SQL query against the cricket database",
	Long: `Run an arbitrary SQL query against the cricket database and print results as a table.

Schema overview:
  teams(team_id, team_name, short_name)
  players(player_id, player_name, team_id, is_active)
  matches(match_id, team1_id, team2_id, match_date, season,
    winner_team_id, winning_margin, win_type)
  ball_by_ball(ball_id, match_id, innings, team_id, over_number, ball_number,
    batsman_id, non_striker_id, bowler_id, batsman_runs, extras, total_runs,
    wides, noballs, byes, legbyes, is_wicket, player_out_id, dismissal_kind, fielders)
  player_match_stats(match_id, player_id, team_id, runs_scored, balls_faced,
    fours, sixes, strike_rate, is_not_out, overs_bowled, runs_conceded,
    wickets_taken, economy_rate)
  pipeline_runs(run_id, stage, started_at, finished_at, before_count,
    after_count, changed, status, error)

Example: crickrecon sql "SELECT season, COUNT(*) FROM matches GROUP BY season"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSQL,
}

func runSQL(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	db, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	cols, rows, err := db.QueryRaw(cmd.Context(), query)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	report.PrintQueryResult(os.Stdout, cols, rows)
	return nil
}
