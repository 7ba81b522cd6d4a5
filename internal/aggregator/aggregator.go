package aggregator

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/pable/crickrecon/internal/model"
)

// Report counts what one aggregation pass produced.
type Report struct {
	Events          int
	Rows            int
	BattingRows     int
	BowlingRows     int
	BowlingOnlyRows int // bowlers who never faced a ball in the match
	Replaced        int // rows removed from the previous materialization
}

type playerKey struct{ matchID, playerID int64 }

type battingAccum struct {
	teamID int64
	runs   int
	balls  int
	fours  int
	sixes  int
}

type bowlingAccum struct {
	battingTeamID int64 // side the bowler bowled at, from the first delivery
	balls         int
	runs          int
	wickets       int
}

// Aggregate computes one PlayerMatchStat per (match, player) that batted or bowled,
// sorted by match then player.
func Aggregate(events []model.Event, matches []model.Match) ([]model.PlayerMatchStat, Report) {
	rep := Report{Events: len(events)}

	matchByID := make(map[int64]*model.Match, len(matches))
	for i := range matches {
		matchByID[matches[i].ID] = &matches[i]
	}

	// ---- Pass 1: batting per (match, batsman), dismissals per (match, player). ----

	batting := make(map[playerKey]*battingAccum)
	dismissed := make(map[playerKey]bool)
	for i := range events {
		e := &events[i]
		k := playerKey{e.MatchID, e.BatsmanID}
		acc := batting[k]
		if acc == nil {
			acc = &battingAccum{teamID: e.TeamID}
			batting[k] = acc
		}
		acc.runs += e.BatsmanRuns
		acc.balls++
		switch e.BatsmanRuns {
		case 4:
			acc.fours++
		case 6:
			acc.sixes++
		}

		// The dismissed player may be the non-striker (run out), so key on player_out.
		if e.IsWicket && e.PlayerOutID != nil {
			dismissed[playerKey{e.MatchID, *e.PlayerOutID}] = true
		}
	}

	// ---- Pass 2: bowling per (match, bowler). ----

	bowling := make(map[playerKey]*bowlingAccum)
	for i := range events {
		e := &events[i]
		k := playerKey{e.MatchID, e.BowlerID}
		acc := bowling[k]
		if acc == nil {
			acc = &bowlingAccum{battingTeamID: e.TeamID}
			bowling[k] = acc
		}
		acc.balls++
		acc.runs += e.TotalRuns
		if e.IsWicket && e.PlayerOutID != nil {
			acc.wickets++
		}
	}

	// ---- Pass 3: merge. Every batter gets a row; bowlers join theirs or get their own. ----

	rows := make(map[playerKey]*model.PlayerMatchStat, len(batting)+len(bowling))
	for k, acc := range batting {
		rows[k] = &model.PlayerMatchStat{
			MatchID:    k.matchID,
			PlayerID:   k.playerID,
			TeamID:     acc.teamID,
			RunsScored: acc.runs,
			BallsFaced: acc.balls,
			Fours:      acc.fours,
			Sixes:      acc.sixes,
			StrikeRate: StrikeRate(acc.runs, acc.balls),
			IsNotOut:   !dismissed[k],
		}
	}
	rep.BattingRows = len(batting)

	for k, acc := range bowling {
		row := rows[k]
		if row == nil {
			row = &model.PlayerMatchStat{
				MatchID:  k.matchID,
				PlayerID: k.playerID,
				TeamID:   fieldingSide(matchByID[k.matchID], acc.battingTeamID),
			}
			rows[k] = row
			rep.BowlingOnlyRows++
		}
		row.OversBowled = Overs(acc.balls)
		row.RunsConceded = acc.runs
		row.WicketsTaken = acc.wickets
		row.EconomyRate = Economy(acc.runs, acc.balls)
	}
	rep.BowlingRows = len(bowling)

	out := make([]model.PlayerMatchStat, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MatchID != out[j].MatchID {
			return out[i].MatchID < out[j].MatchID
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	rep.Rows = len(out)
	return out, rep
}

// fieldingSide returns the match participant that is not battingTeamID, or battingTeamID
// itself when the pairing is unknown.
func fieldingSide(m *model.Match, battingTeamID int64) int64 {
	if m == nil {
		return battingTeamID
	}
	if opp := m.Opponent(battingTeamID); opp != 0 {
		return opp
	}
	return battingTeamID
}

// StrikeRate is runs per hundred balls, rounded to 2 dp; 0 when no balls were faced.
func StrikeRate(runs, balls int) float64 {
	if balls == 0 {
		return 0
	}
	return round(float64(runs)*100/float64(balls), 2)
}

// Overs is balls/6 rounded to 1 dp (decimal fraction, not the 4.3 notation).
func Overs(balls int) float64 {
	return round(float64(balls)/6, 1)
}

// Economy is runs per six balls, rounded to 2 dp; 0 when no balls were bowled.
func Economy(runs, balls int) float64 {
	if balls == 0 {
		return 0
	}
	return round(float64(runs)*6/float64(balls), 2)
}

// round rounds half away from zero, matching SQL ROUND.
func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

// Store provides events and matches and accepts the rebuilt stat table.
type Store interface {
	Events(ctx context.Context) ([]model.Event, error)
	Matches(ctx context.Context) ([]model.Match, error)
	ReplacePlayerMatchStats(ctx context.Context, stats []model.PlayerMatchStat) (int, error)
}

// Run rebuilds player_match_stats from every stored event.
func Run(ctx context.Context, store Store) (Report, error) {
	events, err := store.Events(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load events: %w", err)
	}
	matches, err := store.Matches(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load matches: %w", err)
	}

	stats, rep := Aggregate(events, matches)
	replaced, err := store.ReplacePlayerMatchStats(ctx, stats)
	if err != nil {
		return rep, fmt.Errorf("replace player_match_stats: %w", err)
	}
	rep.Replaced = replaced
	return rep, nil
}
