package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pable/crickrecon/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedMatch registers two teams, three players and match 1 between the teams.
func seedMatch(t *testing.T, db *DB) (teamA, teamB int64, players map[string]int64) {
	t.Helper()
	ctx := context.Background()
	var err error
	if teamA, err = db.EnsureTeam(ctx, "Mumbai Indians", "MI"); err != nil {
		t.Fatalf("EnsureTeam: %v", err)
	}
	if teamB, err = db.EnsureTeam(ctx, "Chennai Super Kings", "CSK"); err != nil {
		t.Fatalf("EnsureTeam: %v", err)
	}
	players = make(map[string]int64)
	for _, name := range []string{"RG Sharma", "Ishan Kishan", "DL Chahar"} {
		id, err := db.EnsurePlayer(ctx, name)
		if err != nil {
			t.Fatalf("EnsurePlayer: %v", err)
		}
		players[name] = id
	}
	if _, err := db.InsertMatch(ctx, model.Match{ID: 1, Team1ID: teamA, Team2ID: teamB, Date: "2023-04-08", Season: "2023"}); err != nil {
		t.Fatalf("InsertMatch: %v", err)
	}
	return teamA, teamB, players
}

func TestOpenInMemory(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	defer db.Close()

	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	n, err := db.CountRows(context.Background(), "ball_by_ball")
	if err != nil {
		t.Fatalf("CountRows: %v", err)
	}
	if n != 0 {
		t.Errorf("expected empty ball_by_ball, got %d", n)
	}
}

func TestCountRowsRejectsUnknownTable(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.CountRows(context.Background(), "sqlite_master; DROP TABLE teams"); err == nil {
		t.Error("expected error for unknown table")
	}
}

func TestEnsureTeamIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id1, err := db.EnsureTeam(ctx, "Rajasthan Royals", "RR")
	if err != nil {
		t.Fatalf("EnsureTeam: %v", err)
	}
	id2, err := db.EnsureTeam(ctx, "Rajasthan Royals", "RR")
	if err != nil {
		t.Fatalf("second EnsureTeam should succeed (idempotent): %v", err)
	}
	if id1 != id2 {
		t.Errorf("expected same id, got %d and %d", id1, id2)
	}

	teams, err := db.Teams(ctx)
	if err != nil {
		t.Fatalf("Teams: %v", err)
	}
	if len(teams) != 1 || teams[0].ShortCode != "RR" {
		t.Errorf("unexpected teams: %+v", teams)
	}
}

func TestInsertMatchKeepsExisting(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	teamA, teamB, _ := seedMatch(t, db)

	created, err := db.InsertMatch(ctx, model.Match{ID: 1, Team1ID: teamB, Team2ID: teamA, Date: "2099-01-01"})
	if err != nil {
		t.Fatalf("InsertMatch: %v", err)
	}
	if created {
		t.Error("expected second insert of match 1 to be ignored")
	}

	matches, err := db.Matches(ctx)
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	if len(matches) != 1 || matches[0].Team1ID != teamA || matches[0].Date != "2023-04-08" {
		t.Errorf("match was overwritten: %+v", matches)
	}

	ids, err := db.MatchIDs(ctx)
	if err != nil {
		t.Fatalf("MatchIDs: %v", err)
	}
	if _, ok := ids[1]; !ok || len(ids) != 1 {
		t.Errorf("unexpected match ids: %v", ids)
	}
}

func TestAppendEventsAndKeys(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	teamA, _, p := seedMatch(t, db)

	kind := "caught"
	out := p["RG Sharma"]
	nonStriker := p["Ishan Kishan"]
	events := []model.Event{
		{MatchID: 1, Innings: 1, TeamID: teamA, Over: 0, Ball: 1, BatsmanID: p["RG Sharma"], NonStrikerID: &nonStriker, BowlerID: p["DL Chahar"], BatsmanRuns: 4, TotalRuns: 4},
		{MatchID: 1, Innings: 1, TeamID: teamA, Over: 0, Ball: 2, BatsmanID: p["RG Sharma"], BowlerID: p["DL Chahar"], IsWicket: true, PlayerOutID: &out, DismissalKind: &kind},
	}
	if err := db.AppendEvents(ctx, events); err != nil {
		t.Fatalf("AppendEvents: %v", err)
	}

	keys, err := db.EventKeys(ctx)
	if err != nil {
		t.Fatalf("EventKeys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
	if _, ok := keys[events[1].Key()]; !ok {
		t.Error("expected wicket ball identity to be stored")
	}

	got, err := db.Events(ctx)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].NonStrikerID == nil || *got[0].NonStrikerID != nonStriker {
		t.Errorf("non-striker not round-tripped: %+v", got[0].NonStrikerID)
	}
	if got[1].NonStrikerID != nil {
		t.Errorf("expected NULL non-striker, got %d", *got[1].NonStrikerID)
	}
	if !got[1].IsWicket || got[1].DismissalKind == nil || *got[1].DismissalKind != "caught" {
		t.Errorf("wicket fields not round-tripped: %+v", got[1])
	}
}

func TestAppendEventsRejectsDuplicateIdentity(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	teamA, _, p := seedMatch(t, db)

	e := model.Event{MatchID: 1, Innings: 1, TeamID: teamA, Over: 3, Ball: 4, BatsmanID: p["RG Sharma"], BowlerID: p["DL Chahar"]}
	if err := db.AppendEvents(ctx, []model.Event{e}); err != nil {
		t.Fatalf("AppendEvents: %v", err)
	}
	// The unique index makes the whole second batch fail, leaving the first intact.
	other := e
	other.Ball = 5
	if err := db.AppendEvents(ctx, []model.Event{other, e}); err == nil {
		t.Fatal("expected duplicate identity to fail the batch")
	}
	n, _ := db.CountRows(ctx, "ball_by_ball")
	if n != 1 {
		t.Errorf("expected failed batch to roll back, got %d rows", n)
	}
}

func TestUpdatePlayerTeamsOnlyWhenDifferent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	teamA, teamB, _ := seedMatch(t, db)

	assign := []model.TeamAssignment{
		{PlayerName: "RG Sharma", TeamID: teamA},
		{PlayerName: "DL Chahar", TeamID: teamB},
		{PlayerName: "Nobody", TeamID: teamA},
	}
	n, err := db.UpdatePlayerTeams(ctx, assign)
	if err != nil {
		t.Fatalf("UpdatePlayerTeams: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 updates, got %d", n)
	}

	// Same assignments again: nothing differs, nothing written.
	n, err = db.UpdatePlayerTeams(ctx, assign)
	if err != nil {
		t.Fatalf("UpdatePlayerTeams: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 updates on re-run, got %d", n)
	}

	players, _ := db.Players(ctx)
	for _, pl := range players {
		if pl.Name == "DL Chahar" && (pl.TeamID == nil || *pl.TeamID != teamB) {
			t.Errorf("DL Chahar team: want %d, got %v", teamB, pl.TeamID)
		}
		if pl.Name == "Ishan Kishan" && pl.TeamID != nil {
			t.Errorf("Ishan Kishan should remain unassigned, got %d", *pl.TeamID)
		}
	}
}

func TestTeamRunTotalsAndOutcomes(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	teamA, teamB, p := seedMatch(t, db)

	events := []model.Event{
		{MatchID: 1, Innings: 1, TeamID: teamA, Over: 0, Ball: 1, BatsmanID: p["RG Sharma"], BowlerID: p["DL Chahar"], TotalRuns: 6},
		{MatchID: 1, Innings: 1, TeamID: teamA, Over: 0, Ball: 2, BatsmanID: p["RG Sharma"], BowlerID: p["DL Chahar"], TotalRuns: 1},
		{MatchID: 1, Innings: 2, TeamID: teamB, Over: 0, Ball: 1, BatsmanID: p["DL Chahar"], BowlerID: p["Ishan Kishan"], TotalRuns: 2},
	}
	if err := db.AppendEvents(ctx, events); err != nil {
		t.Fatalf("AppendEvents: %v", err)
	}

	totals, err := db.TeamRunTotals(ctx)
	if err != nil {
		t.Fatalf("TeamRunTotals: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("expected 2 totals, got %d", len(totals))
	}
	want := map[int64]int{teamA: 7, teamB: 2}
	for _, tt := range totals {
		if tt.Runs != want[tt.TeamID] {
			t.Errorf("team %d runs: want %d, got %d", tt.TeamID, want[tt.TeamID], tt.Runs)
		}
	}

	margin, winType := 5, "runs"
	n, err := db.UpdateMatchOutcomes(ctx, []model.MatchOutcome{{MatchID: 1, WinnerTeamID: &teamA, WinningMargin: &margin, WinType: &winType}})
	if err != nil {
		t.Fatalf("UpdateMatchOutcomes: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 match updated, got %d", n)
	}
	s, err := db.GetMatch(ctx, 1)
	if err != nil || s == nil {
		t.Fatalf("GetMatch: %v", err)
	}
	if s.WinnerName != "Mumbai Indians" || s.WinningMargin == nil || *s.WinningMargin != 5 || s.Events != 3 {
		t.Errorf("unexpected match summary: %+v", s)
	}

	missing, err := db.GetMatch(ctx, 999)
	if err != nil {
		t.Fatalf("GetMatch missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown match")
	}
}

func TestReplacePlayerMatchStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	teamA, teamB, p := seedMatch(t, db)

	first := []model.PlayerMatchStat{
		{MatchID: 1, PlayerID: p["RG Sharma"], TeamID: teamA, RunsScored: 50, BallsFaced: 30, StrikeRate: 166.67, IsNotOut: true},
		{MatchID: 1, PlayerID: p["DL Chahar"], TeamID: teamB, OversBowled: 4, RunsConceded: 30, WicketsTaken: 2, EconomyRate: 7.5},
	}
	if _, err := db.ReplacePlayerMatchStats(ctx, first); err != nil {
		t.Fatalf("ReplacePlayerMatchStats: %v", err)
	}
	deleted, err := db.ReplacePlayerMatchStats(ctx, first[:1])
	if err != nil {
		t.Fatalf("ReplacePlayerMatchStats: %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 rows cleared, got %d", deleted)
	}

	lines, err := db.PlayerStatLines(ctx, 1)
	if err != nil {
		t.Fatalf("PlayerStatLines: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 line after rebuild, got %d", len(lines))
	}
	if lines[0].PlayerName != "RG Sharma" || lines[0].TeamName != "Mumbai Indians" || !lines[0].IsNotOut {
		t.Errorf("unexpected line: %+v", lines[0])
	}
	if lines[0].StrikeRate != 166.67 {
		t.Errorf("StrikeRate: want 166.67, got %f", lines[0].StrikeRate)
	}
}

func TestOverviewAndQuality(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	teamA, _, p := seedMatch(t, db)

	if err := db.AppendEvents(ctx, []model.Event{
		{MatchID: 1, Innings: 1, TeamID: teamA, Over: 0, Ball: 1, BatsmanID: p["RG Sharma"], BowlerID: p["DL Chahar"], BatsmanRuns: 4, TotalRuns: 4, IsWicket: true},
	}); err != nil {
		t.Fatalf("AppendEvents: %v", err)
	}

	ov, err := db.GetOverview(ctx)
	if err != nil {
		t.Fatalf("GetOverview: %v", err)
	}
	if ov.Teams != 2 || ov.Players != 3 || ov.Matches != 1 || ov.Events != 1 || ov.Seasons != 1 {
		t.Errorf("unexpected overview: %+v", ov)
	}
	if ov.FirstMatch != "2023-04-08" {
		t.Errorf("FirstMatch: want 2023-04-08, got %q", ov.FirstMatch)
	}

	q, err := db.GetQuality(ctx)
	if err != nil {
		t.Fatalf("GetQuality: %v", err)
	}
	if q.OrphanedEvents != 0 || q.EventsMissingNonStriker != 1 || q.WicketsMissingPlayerOut != 1 || q.UnassignedActivePlayers != 3 {
		t.Errorf("unexpected quality: %+v", q)
	}

	scorers, err := db.TopRunScorers(ctx, 5)
	if err != nil {
		t.Fatalf("TopRunScorers: %v", err)
	}
	if len(scorers) != 1 || scorers[0].Runs != 4 {
		t.Errorf("unexpected scorers: %+v", scorers)
	}
}

func TestQueryRaw(t *testing.T) {
	db := openTestDB(t)
	seedMatch(t, db)

	cols, rows, err := db.QueryRaw(context.Background(), "SELECT team_name, short_name, NULL AS nothing FROM teams ORDER BY team_name")
	if err != nil {
		t.Fatalf("QueryRaw: %v", err)
	}
	if len(cols) != 3 || cols[0] != "team_name" {
		t.Errorf("unexpected columns: %v", cols)
	}
	if len(rows) != 2 || rows[0][0] != "Chennai Super Kings" || rows[0][2] != "NULL" {
		t.Errorf("unexpected rows: %v", rows)
	}
}

func TestStageRunsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	runs := []StageRun{
		{RunID: "r1", Stage: "load", StartedAt: started, FinishedAt: started.Add(2 * time.Second), BeforeCount: 3, AfterCount: 5, Changed: 2},
		{RunID: "r1", Stage: "stats", StartedAt: started, FinishedAt: started, Err: errors.New("boom")},
	}
	for _, r := range runs {
		if err := db.RecordStageRun(ctx, r); err != nil {
			t.Fatalf("RecordStageRun: %v", err)
		}
	}

	got, err := db.StageRuns(ctx, 1)
	if err != nil {
		t.Fatalf("StageRuns: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 stage runs, got %d", len(got))
	}
	if got[0].Stage != "stats" || got[0].Err == nil || got[0].Err.Error() != "boom" {
		t.Errorf("newest run: got %+v", got[0])
	}
	if !got[1].StartedAt.Equal(started) || got[1].FinishedAt.Sub(got[1].StartedAt) != 2*time.Second {
		t.Errorf("timestamps: started %v finished %v", got[1].StartedAt, got[1].FinishedAt)
	}
	if got[1].Changed != 2 || got[1].Err != nil {
		t.Errorf("load run: got %+v", got[1])
	}
}

func TestStageRunsCorruptTimestamp(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if _, err := db.conn.ExecContext(ctx, `
		INSERT INTO pipeline_runs(run_id, stage, started_at, finished_at, status)
		VALUES ('r1', 'load', 'yesterday', '2024-05-01T10:00:00Z', 'ok')`); err != nil {
		t.Fatalf("insert: %v", err)
	}

	_, err := db.StageRuns(ctx, 1)
	if err == nil {
		t.Fatal("expected an error for an unparseable started_at")
	}
	if !strings.Contains(err.Error(), "started_at") {
		t.Errorf("error should name the column, got %v", err)
	}
}
