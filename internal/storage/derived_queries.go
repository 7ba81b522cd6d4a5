package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pable/crickrecon/internal/model"
)

// TeamRunTotals sums total runs per (match, team) across all innings.
func (db *DB) TeamRunTotals(ctx context.Context) ([]model.TeamTotal, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT match_id, team_id, SUM(total_runs)
		FROM ball_by_ball
		GROUP BY match_id, team_id
		ORDER BY match_id, team_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TeamTotal
	for rows.Next() {
		var t model.TeamTotal
		if err := rows.Scan(&t.MatchID, &t.TeamID, &t.Runs); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateMatchOutcomes overwrites the derived winner fields for each outcome in one transaction.
func (db *DB) UpdateMatchOutcomes(ctx context.Context, outcomes []model.MatchOutcome) (int, error) {
	if len(outcomes) == 0 {
		return 0, nil
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE matches
		SET winner_team_id = ?, winning_margin = ?, win_type = ?
		WHERE match_id = ?`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	updated := 0
	for _, o := range outcomes {
		res, err := stmt.ExecContext(ctx,
			nullInt64(o.WinnerTeamID), nullInt(o.WinningMargin), nullString(o.WinType), o.MatchID)
		if err != nil {
			return 0, fmt.Errorf("update outcome for match %d: %w", o.MatchID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		updated += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit outcomes: %w", err)
	}
	return updated, nil
}

// ReplacePlayerMatchStats clears the player_match_stats table and inserts stats in its
// place, all in one transaction. It returns the number of rows removed.
func (db *DB) ReplacePlayerMatchStats(ctx context.Context, stats []model.PlayerMatchStat) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM player_match_stats`)
	if err != nil {
		return 0, fmt.Errorf("clear player_match_stats: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO player_match_stats(
			match_id, player_id, team_id,
			runs_scored, balls_faced, fours, sixes, strike_rate, is_not_out,
			overs_bowled, runs_conceded, wickets_taken, economy_rate
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, s := range stats {
		_, err = stmt.ExecContext(ctx,
			s.MatchID, s.PlayerID, s.TeamID,
			s.RunsScored, s.BallsFaced, s.Fours, s.Sixes, s.StrikeRate, boolInt(s.IsNotOut),
			s.OversBowled, s.RunsConceded, s.WicketsTaken, s.EconomyRate,
		)
		if err != nil {
			return 0, fmt.Errorf("insert player_match_stats for %d/%d: %w", s.MatchID, s.PlayerID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit player_match_stats: %w", err)
	}
	return int(deleted), nil
}

// PlayerStatLines returns the stat rows of one match joined with player and team names,
// batters first by runs, then bowlers by wickets.
func (db *DB) PlayerStatLines(ctx context.Context, matchID int64) ([]model.PlayerStatLine, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT s.match_id, s.player_id, COALESCE(s.team_id, 0),
		       s.runs_scored, s.balls_faced, s.fours, s.sixes, s.strike_rate, s.is_not_out,
		       s.overs_bowled, s.runs_conceded, s.wickets_taken, s.economy_rate,
		       p.player_name, COALESCE(t.team_name, '')
		FROM player_match_stats s
		JOIN players p ON p.player_id = s.player_id
		LEFT JOIN teams t ON t.team_id = s.team_id
		WHERE s.match_id = ?
		ORDER BY s.runs_scored DESC, s.wickets_taken DESC, p.player_name`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PlayerStatLine
	for rows.Next() {
		var l model.PlayerStatLine
		var notOut int
		if err := rows.Scan(
			&l.MatchID, &l.PlayerID, &l.TeamID,
			&l.RunsScored, &l.BallsFaced, &l.Fours, &l.Sixes, &l.StrikeRate, &notOut,
			&l.OversBowled, &l.RunsConceded, &l.WicketsTaken, &l.EconomyRate,
			&l.PlayerName, &l.TeamName,
		); err != nil {
			return nil, err
		}
		l.IsNotOut = notOut != 0
		out = append(out, l)
	}
	return out, rows.Err()
}

// StageRun is one audited pipeline stage execution.
type StageRun struct {
	RunID       string
	Stage       string
	StartedAt   time.Time
	FinishedAt  time.Time
	BeforeCount int
	AfterCount  int
	Changed     int
	Err         error
}

// RecordStageRun appends a stage execution to the pipeline_runs audit table.
func (db *DB) RecordStageRun(ctx context.Context, r StageRun) error {
	status, errText := "ok", ""
	if r.Err != nil {
		status, errText = "failed", r.Err.Error()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO pipeline_runs(run_id, stage, started_at, finished_at,
			before_count, after_count, changed, status, error)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		r.RunID, r.Stage,
		r.StartedAt.UTC().Format(time.RFC3339), r.FinishedAt.UTC().Format(time.RFC3339),
		r.BeforeCount, r.AfterCount, r.Changed, status, errText)
	if err != nil {
		return fmt.Errorf("record stage run %s/%s: %w", r.RunID, r.Stage, err)
	}
	return nil
}

// StageRuns returns the audited stages of the most recent runs, newest first.
func (db *DB) StageRuns(ctx context.Context, limit int) ([]StageRun, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT run_id, stage, started_at, finished_at, before_count, after_count, changed, error
		FROM pipeline_runs
		WHERE run_id IN (
			SELECT run_id FROM pipeline_runs GROUP BY run_id ORDER BY MAX(id) DESC LIMIT ?
		)
		ORDER BY id DESC`, limit)
	if err != nil {
		return nil, fmt.Errorf("query stage runs: %w", err)
	}
	defer rows.Close()

	var out []StageRun
	for rows.Next() {
		var r StageRun
		var started, finished, errText string
		if err := rows.Scan(&r.RunID, &r.Stage, &started, &finished,
			&r.BeforeCount, &r.AfterCount, &r.Changed, &errText); err != nil {
			return nil, fmt.Errorf("scan stage run: %w", err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339, started); err != nil {
			return nil, fmt.Errorf("stage run %s/%s started_at: %w", r.RunID, r.Stage, err)
		}
		if r.FinishedAt, err = time.Parse(time.RFC3339, finished); err != nil {
			return nil, fmt.Errorf("stage run %s/%s finished_at: %w", r.RunID, r.Stage, err)
		}
		if errText != "" {
			r.Err = errors.New(errText)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
