// Package affiliation infers each player's team from who they bat with and who they
// bowl against in the source event log, and persists the result.
package affiliation

import (
	"context"
	"fmt"
	"sort"

	"github.com/pable/crickrecon/internal/model"
)

// Assignment is the inferred team of one player.
type Assignment struct {
	Player     string
	Team       string
	Candidates []string // every evidenced team, ascending
	BatCount   int      // striker + non-striker appearances for Team
}

// Conflict reports whether more than one team was evidenced for the player.
func (a Assignment) Conflict() bool { return len(a.Candidates) > 1 }

// Result is the pure outcome of inference, assignments sorted by player name.
type Result struct {
	Assignments []Assignment
	Conflicts   int
}

type evidence struct {
	teams  map[string]struct{}
	counts map[string]int // batting evidence only
}

// Infer accumulates team evidence per player and resolves every player to one team.
//
// A striker or non-striker is evidence for the row's team. A bowler is evidence for
// the opponent of the row's team, taken from the row's own pairing when present,
// otherwise from the opponent map when that team faced exactly one opponent.
// With several candidate teams the highest batting count wins; equal counts go to the
// lexicographically smallest team name.
func Infer(rows []model.RawEvent) Result {
	opponents := OpponentMap(rows)
	byPlayer := make(map[string]*evidence)

	note := func(player, team string, batting bool) {
		if player == "" || team == "" {
			return
		}
		ev := byPlayer[player]
		if ev == nil {
			ev = &evidence{teams: make(map[string]struct{}, 1), counts: make(map[string]int, 1)}
			byPlayer[player] = ev
		}
		ev.teams[team] = struct{}{}
		if batting {
			ev.counts[team]++
		}
	}

	for _, r := range rows {
		note(r.Batsman, r.Team, true)
		note(r.NonStriker, r.Team, true)
		note(r.Bowler, opponentOf(r, opponents), false)
	}

	names := make([]string, 0, len(byPlayer))
	for name := range byPlayer {
		names = append(names, name)
	}
	sort.Strings(names)

	res := Result{Assignments: make([]Assignment, 0, len(names))}
	for _, name := range names {
		a := pick(name, byPlayer[name])
		if a.Conflict() {
			res.Conflicts++
		}
		res.Assignments = append(res.Assignments, a)
	}
	return res
}

func pick(player string, ev *evidence) Assignment {
	candidates := make([]string, 0, len(ev.teams))
	for t := range ev.teams {
		candidates = append(candidates, t)
	}
	sort.Strings(candidates)

	// candidates are ascending, so strict > keeps the smallest name on ties
	best := candidates[0]
	for _, t := range candidates[1:] {
		if ev.counts[t] > ev.counts[best] {
			best = t
		}
	}
	return Assignment{Player: player, Team: best, Candidates: candidates, BatCount: ev.counts[best]}
}

// OpponentMap returns, for every team, the ascending set of teams it was paired with.
func OpponentMap(rows []model.RawEvent) map[string][]string {
	sets := make(map[string]map[string]struct{})
	add := func(a, b string) {
		if sets[a] == nil {
			sets[a] = make(map[string]struct{})
		}
		sets[a][b] = struct{}{}
	}
	for _, r := range rows {
		if r.Team1 == "" || r.Team2 == "" || r.Team1 == r.Team2 {
			continue
		}
		add(r.Team1, r.Team2)
		add(r.Team2, r.Team1)
	}

	out := make(map[string][]string, len(sets))
	for team, set := range sets {
		opps := make([]string, 0, len(set))
		for o := range set {
			opps = append(opps, o)
		}
		sort.Strings(opps)
		out[team] = opps
	}
	return out
}

func opponentOf(r model.RawEvent, opponents map[string][]string) string {
	switch r.Team {
	case "":
		return ""
	case r.Team1:
		if r.Team2 != "" && r.Team2 != r.Team {
			return r.Team2
		}
	case r.Team2:
		if r.Team1 != "" && r.Team1 != r.Team {
			return r.Team1
		}
	}
	if opps := opponents[r.Team]; len(opps) == 1 {
		return opps[0]
	}
	return ""
}

// Lookup resolves names against the current reference tables.
type Lookup interface {
	TeamID(name string) (int64, bool)
	HasPlayer(name string) bool
}

// Store persists assignments, touching only rows whose team differs.
type Store interface {
	UpdatePlayerTeams(ctx context.Context, assignments []model.TeamAssignment) (int, error)
}

// Report describes the effect of one Apply call.
type Report struct {
	PlayersObserved int
	Resolved        int // assignments submitted to the store
	Conflicts       int
	Updated         int // rows whose team actually changed
	Unchanged       int
	UnresolvedTeams int // inferred team name not in the teams table
	UnknownPlayers  int // inferred player not in the players table
}

// Apply writes the inferred affiliations. Assignments whose team or player is not
// registered are counted and skipped.
func Apply(ctx context.Context, store Store, ref Lookup, res Result) (Report, error) {
	rep := Report{PlayersObserved: len(res.Assignments), Conflicts: res.Conflicts}

	batch := make([]model.TeamAssignment, 0, len(res.Assignments))
	for _, a := range res.Assignments {
		if !ref.HasPlayer(a.Player) {
			rep.UnknownPlayers++
			continue
		}
		teamID, ok := ref.TeamID(a.Team)
		if !ok {
			rep.UnresolvedTeams++
			continue
		}
		batch = append(batch, model.TeamAssignment{PlayerName: a.Player, TeamID: teamID})
	}
	rep.Resolved = len(batch)
	if len(batch) == 0 {
		return rep, nil
	}

	updated, err := store.UpdatePlayerTeams(ctx, batch)
	if err != nil {
		return rep, fmt.Errorf("update player teams: %w", err)
	}
	rep.Updated = updated
	rep.Unchanged = rep.Resolved - updated
	return rep, nil
}
