package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pable/crickrecon/internal/model"
)

// Overview holds table counts and coverage for the verify command.
type Overview struct {
	Teams            int
	Players          int
	Matches          int
	Events           int
	PlayerStats      int
	MatchesWithWins  int
	FirstMatch       string
	LastMatch        string
	Seasons          int
	PlayersWithTeams int
}

// Quality holds data-quality counters for the verify command.
type Quality struct {
	OrphanedEvents          int // events whose match is not registered
	EventsMissingNonStriker int
	WicketsMissingPlayerOut int
	UnassignedActivePlayers int
	MatchesWithoutEvents    int
}

// TeamPlayerCount is the number of active players assigned to a team.
type TeamPlayerCount struct {
	TeamName string
	Players  int
}

// RunScorer is one row of the all-time run scorers table.
type RunScorer struct {
	PlayerName string
	Runs       int
	Balls      int
}

// GetOverview returns table counts, date coverage and season count.
func (db *DB) GetOverview(ctx context.Context) (Overview, error) {
	var ov Overview
	err := db.conn.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM teams),
			(SELECT COUNT(*) FROM players),
			(SELECT COUNT(*) FROM matches),
			(SELECT COUNT(*) FROM ball_by_ball),
			(SELECT COUNT(*) FROM player_match_stats),
			(SELECT COUNT(winner_team_id) FROM matches),
			(SELECT COALESCE(MIN(match_date), '') FROM matches),
			(SELECT COALESCE(MAX(match_date), '') FROM matches),
			(SELECT COUNT(DISTINCT season) FROM matches),
			(SELECT COUNT(*) FROM players WHERE team_id IS NOT NULL)`).
		Scan(&ov.Teams, &ov.Players, &ov.Matches, &ov.Events, &ov.PlayerStats,
			&ov.MatchesWithWins, &ov.FirstMatch, &ov.LastMatch, &ov.Seasons, &ov.PlayersWithTeams)
	if err != nil {
		return ov, fmt.Errorf("overview: %w", err)
	}
	return ov, nil
}

// GetQuality runs the data-quality checks.
func (db *DB) GetQuality(ctx context.Context) (Quality, error) {
	var q Quality
	err := db.conn.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM ball_by_ball bb
			 LEFT JOIN matches m ON bb.match_id = m.match_id
			 WHERE m.match_id IS NULL),
			(SELECT COUNT(*) FROM ball_by_ball WHERE non_striker_id IS NULL),
			(SELECT COUNT(*) FROM ball_by_ball WHERE is_wicket = 1 AND player_out_id IS NULL),
			(SELECT COUNT(*) FROM players WHERE team_id IS NULL AND is_active = 1),
			(SELECT COUNT(*) FROM matches m
			 WHERE NOT EXISTS (SELECT 1 FROM ball_by_ball bb WHERE bb.match_id = m.match_id))`).
		Scan(&q.OrphanedEvents, &q.EventsMissingNonStriker, &q.WicketsMissingPlayerOut,
			&q.UnassignedActivePlayers, &q.MatchesWithoutEvents)
	if err != nil {
		return q, fmt.Errorf("quality: %w", err)
	}
	return q, nil
}

// PlayersByTeam returns the active player distribution by team, largest first.
func (db *DB) PlayersByTeam(ctx context.Context) ([]TeamPlayerCount, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT t.team_name, COUNT(p.player_id) AS player_count
		FROM teams t
		LEFT JOIN players p ON t.team_id = p.team_id AND p.is_active = 1
		GROUP BY t.team_id, t.team_name
		ORDER BY player_count DESC, t.team_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TeamPlayerCount
	for rows.Next() {
		var c TeamPlayerCount
		if err := rows.Scan(&c.TeamName, &c.Players); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TopRunScorers returns the all-time leading run scorers from the event log.
func (db *DB) TopRunScorers(ctx context.Context, limit int) ([]RunScorer, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT p.player_name, SUM(bb.batsman_runs) AS total_runs, COUNT(*) AS balls_faced
		FROM ball_by_ball bb
		JOIN players p ON bb.batsman_id = p.player_id
		GROUP BY p.player_id, p.player_name
		ORDER BY total_runs DESC, p.player_name
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunScorer
	for rows.Next() {
		var r RunScorer
		if err := rows.Scan(&r.PlayerName, &r.Runs, &r.Balls); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const matchSummaryQuery = `
	SELECT m.match_id, m.team1_id, m.team2_id, m.match_date, m.season,
	       m.winner_team_id, m.winning_margin, m.win_type,
	       t1.team_name, t2.team_name, COALESCE(w.team_name, ''),
	       (SELECT COUNT(*) FROM ball_by_ball bb WHERE bb.match_id = m.match_id)
	FROM matches m
	JOIN teams t1 ON t1.team_id = m.team1_id
	JOIN teams t2 ON t2.team_id = m.team2_id
	LEFT JOIN teams w ON w.team_id = m.winner_team_id`

func scanMatchSummary(row scanner) (model.MatchSummary, error) {
	var s model.MatchSummary
	var winner, margin sql.NullInt64
	var winType sql.NullString
	if err := row.Scan(&s.ID, &s.Team1ID, &s.Team2ID, &s.Date, &s.Season,
		&winner, &margin, &winType,
		&s.Team1Name, &s.Team2Name, &s.WinnerName, &s.Events); err != nil {
		return s, err
	}
	s.WinnerTeamID = int64Ptr(winner)
	s.WinningMargin = intPtr(margin)
	s.WinType = stringPtr(winType)
	return s, nil
}

// ListMatches returns all registered matches with team names, newest first.
func (db *DB) ListMatches(ctx context.Context) ([]model.MatchSummary, error) {
	rows, err := db.conn.QueryContext(ctx, matchSummaryQuery+` ORDER BY m.match_date DESC, m.match_id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MatchSummary
	for rows.Next() {
		s, err := scanMatchSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetMatch returns one match summary, or nil if the id is not registered.
func (db *DB) GetMatch(ctx context.Context, matchID int64) (*model.MatchSummary, error) {
	s, err := scanMatchSummary(db.conn.QueryRowContext(ctx, matchSummaryQuery+` WHERE m.match_id = ?`, matchID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// QueryRaw runs an arbitrary query and returns column names and stringified rows.
func (db *DB) QueryRaw(ctx context.Context, query string) ([]string, [][]string, error) {
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]string
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			switch x := v.(type) {
			case nil:
				row[i] = "NULL"
			case []byte:
				row[i] = string(x)
			default:
				row[i] = fmt.Sprint(x)
			}
		}
		out = append(out, row)
	}
	return cols, out, rows.Err()
}
