package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pable/crickrecon/internal/model"
)

// ---- Reference data ----

// EnsureTeam registers a team by name if it is not already present and returns its id.
func (db *DB) EnsureTeam(ctx context.Context, name, shortCode string) (int64, error) {
	if _, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO teams(team_name, short_name) VALUES (?, ?)`, name, shortCode); err != nil {
		return 0, fmt.Errorf("insert team %q: %w", name, err)
	}
	var id int64
	if err := db.conn.QueryRowContext(ctx,
		`SELECT team_id FROM teams WHERE team_name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup team %q: %w", name, err)
	}
	return id, nil
}

// EnsurePlayer registers a player by name (with no team) if not already present and returns its id.
func (db *DB) EnsurePlayer(ctx context.Context, name string) (int64, error) {
	if _, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO players(player_name) VALUES (?)`, name); err != nil {
		return 0, fmt.Errorf("insert player %q: %w", name, err)
	}
	var id int64
	if err := db.conn.QueryRowContext(ctx,
		`SELECT player_id FROM players WHERE player_name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup player %q: %w", name, err)
	}
	return id, nil
}

// InsertMatch registers a match. Existing matches are left as they are; the return
// value reports whether a row was created.
func (db *DB) InsertMatch(ctx context.Context, m model.Match) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT OR IGNORE INTO matches(match_id, team1_id, team2_id, match_date, season)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.Team1ID, m.Team2ID, m.Date, m.Season)
	if err != nil {
		return false, fmt.Errorf("insert match %d: %w", m.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Teams returns all teams ordered by name.
func (db *DB) Teams(ctx context.Context) ([]model.Team, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT team_id, team_name, short_name FROM teams ORDER BY team_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Team
	for rows.Next() {
		var t model.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.ShortCode); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Players returns all players ordered by name.
func (db *DB) Players(ctx context.Context) ([]model.Player, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT player_id, player_name, team_id, is_active FROM players ORDER BY player_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Player
	for rows.Next() {
		var p model.Player
		var teamID sql.NullInt64
		var active int
		if err := rows.Scan(&p.ID, &p.Name, &teamID, &active); err != nil {
			return nil, err
		}
		p.TeamID = int64Ptr(teamID)
		p.Active = active != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

// Matches returns all registered matches ordered by id.
func (db *DB) Matches(ctx context.Context) ([]model.Match, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT match_id, team1_id, team2_id, match_date, season,
		       winner_team_id, winning_margin, win_type
		FROM matches ORDER BY match_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MatchIDs returns the set of registered match ids.
func (db *DB) MatchIDs(ctx context.Context) (map[int64]struct{}, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT match_id FROM matches`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMatch(row scanner) (model.Match, error) {
	var m model.Match
	var winner, margin sql.NullInt64
	var winType sql.NullString
	if err := row.Scan(&m.ID, &m.Team1ID, &m.Team2ID, &m.Date, &m.Season,
		&winner, &margin, &winType); err != nil {
		return m, err
	}
	m.WinnerTeamID = int64Ptr(winner)
	m.WinningMargin = intPtr(margin)
	m.WinType = stringPtr(winType)
	return m, nil
}

// UpdatePlayerTeams writes team assignments in one transaction. A row is only touched
// when the player's stored team is unset or different; the return value counts those rows.
func (db *DB) UpdatePlayerTeams(ctx context.Context, assignments []model.TeamAssignment) (int, error) {
	if len(assignments) == 0 {
		return 0, nil
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE players SET team_id = ?
		WHERE player_name = ? AND (team_id IS NULL OR team_id != ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	updated := 0
	for _, a := range assignments {
		res, err := stmt.ExecContext(ctx, a.TeamID, a.PlayerName, a.TeamID)
		if err != nil {
			return 0, fmt.Errorf("update team for %q: %w", a.PlayerName, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		updated += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit player teams: %w", err)
	}
	return updated, nil
}

// ---- Event facts ----

// EventKeys returns the composite identity of every stored event.
func (db *DB) EventKeys(ctx context.Context) (map[model.EventKey]struct{}, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT DISTINCT match_id, innings, over_number, ball_number, batsman_id, bowler_id
		FROM ball_by_ball`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.EventKey]struct{})
	for rows.Next() {
		var k model.EventKey
		if err := rows.Scan(&k.MatchID, &k.Innings, &k.Over, &k.Ball, &k.BatsmanID, &k.BowlerID); err != nil {
			return nil, err
		}
		out[k] = struct{}{}
	}
	return out, rows.Err()
}

// AppendEvents inserts a batch of events in a single transaction, preserving order.
// Either the whole batch is committed or none of it is.
func (db *DB) AppendEvents(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ball_by_ball(
			match_id, innings, team_id, over_number, ball_number,
			batsman_id, non_striker_id, bowler_id,
			batsman_runs, extras, total_runs, wides, noballs, byes, legbyes,
			is_wicket, player_out_id, dismissal_kind, fielders
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		_, err = stmt.ExecContext(ctx,
			e.MatchID, e.Innings, e.TeamID, e.Over, e.Ball,
			e.BatsmanID, nullInt64(e.NonStrikerID), e.BowlerID,
			e.BatsmanRuns, e.Extras, e.TotalRuns, e.Wides, e.NoBalls, e.Byes, e.LegByes,
			boolInt(e.IsWicket), nullInt64(e.PlayerOutID), nullString(e.DismissalKind), nullString(e.Fielders),
		)
		if err != nil {
			return fmt.Errorf("insert ball %d/%d/%d.%d: %w", e.MatchID, e.Innings, e.Over, e.Ball, err)
		}
	}
	return tx.Commit()
}

// Events returns every stored event in delivery order.
func (db *DB) Events(ctx context.Context) ([]model.Event, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT match_id, innings, team_id, over_number, ball_number,
		       batsman_id, non_striker_id, bowler_id,
		       batsman_runs, extras, total_runs, wides, noballs, byes, legbyes,
		       is_wicket, player_out_id, dismissal_kind, fielders
		FROM ball_by_ball
		ORDER BY match_id, innings, over_number, ball_number, ball_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var e model.Event
		var nonStriker, playerOut sql.NullInt64
		var kind, fielders sql.NullString
		var wicket int
		if err := rows.Scan(
			&e.MatchID, &e.Innings, &e.TeamID, &e.Over, &e.Ball,
			&e.BatsmanID, &nonStriker, &e.BowlerID,
			&e.BatsmanRuns, &e.Extras, &e.TotalRuns, &e.Wides, &e.NoBalls, &e.Byes, &e.LegByes,
			&wicket, &playerOut, &kind, &fielders,
		); err != nil {
			return nil, err
		}
		e.NonStrikerID = int64Ptr(nonStriker)
		e.PlayerOutID = int64Ptr(playerOut)
		e.DismissalKind = stringPtr(kind)
		e.Fielders = stringPtr(fielders)
		e.IsWicket = wicket != 0
		out = append(out, e)
	}
	return out, rows.Err()
}
