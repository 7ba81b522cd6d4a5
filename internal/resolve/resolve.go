// Package resolve maps source names (teams, players) to surrogate ids using an
// immutable snapshot of the reference tables taken once per pipeline run.
package resolve

import (
	"context"
	"fmt"

	"github.com/pable/crickrecon/internal/model"
)

// Source is the reference data the snapshot is built from.
type Source interface {
	Teams(ctx context.Context) ([]model.Team, error)
	Players(ctx context.Context) ([]model.Player, error)
}

// Snapshot is a read-only name→id view of teams and players. Build a new one for each
// run instead of mutating an existing one.
type Snapshot struct {
	teams   map[string]int64
	players map[string]int64
}

// New builds a snapshot from already-loaded reference rows.
func New(teams []model.Team, players []model.Player) *Snapshot {
	s := &Snapshot{
		teams:   make(map[string]int64, len(teams)),
		players: make(map[string]int64, len(players)),
	}
	for _, t := range teams {
		s.teams[t.Name] = t.ID
	}
	for _, p := range players {
		s.players[p.Name] = p.ID
	}
	return s
}

// Load reads the reference tables and builds a snapshot.
func Load(ctx context.Context, src Source) (*Snapshot, error) {
	teams, err := src.Teams(ctx)
	if err != nil {
		return nil, fmt.Errorf("load teams: %w", err)
	}
	players, err := src.Players(ctx)
	if err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}
	return New(teams, players), nil
}

// TeamID returns the id for an exact team name.
func (s *Snapshot) TeamID(name string) (int64, bool) {
	id, ok := s.teams[name]
	return id, ok
}

// PlayerID returns the id for an exact player name.
func (s *Snapshot) PlayerID(name string) (int64, bool) {
	id, ok := s.players[name]
	return id, ok
}

// HasPlayer reports whether the player name is registered.
func (s *Snapshot) HasPlayer(name string) bool {
	_, ok := s.players[name]
	return ok
}

// Len returns the number of teams and players in the snapshot.
func (s *Snapshot) Len() (teams, players int) {
	return len(s.teams), len(s.players)
}

// Resolve converts a source record into an event. ok is false when an essential
// identifier (team, batsman, bowler) cannot be resolved; match ids come from the
// source as-is. Unknown non-essential names (non-striker, dismissed player) become nil.
func (s *Snapshot) Resolve(raw model.RawEvent) (model.Event, bool) {
	teamID, ok := s.TeamID(raw.Team)
	if !ok || raw.MatchID == 0 {
		return model.Event{}, false
	}
	batsmanID, ok := s.PlayerID(raw.Batsman)
	if !ok {
		return model.Event{}, false
	}
	bowlerID, ok := s.PlayerID(raw.Bowler)
	if !ok {
		return model.Event{}, false
	}

	e := model.Event{
		MatchID:     raw.MatchID,
		Innings:     raw.Innings,
		TeamID:      teamID,
		Over:        raw.Over,
		Ball:        raw.Ball,
		BatsmanID:   batsmanID,
		BowlerID:    bowlerID,
		BatsmanRuns: raw.BatsmanRuns,
		Extras:      raw.Extras,
		TotalRuns:   raw.TotalRuns,
		Wides:       raw.Wides,
		NoBalls:     raw.NoBalls,
		Byes:        raw.Byes,
		LegByes:     raw.LegByes,
		IsWicket:    raw.IsWicket,
	}
	if id, ok := s.PlayerID(raw.NonStriker); ok {
		e.NonStrikerID = &id
	}
	if id, ok := s.PlayerID(raw.PlayerOut); ok {
		e.PlayerOutID = &id
	}
	if raw.Kind != "" {
		kind := raw.Kind
		e.DismissalKind = &kind
	}
	if raw.Fielders != "" {
		f := raw.Fielders
		e.Fielders = &f
	}
	return e, true
}

// Report counts the outcome of resolving a batch of source records.
type Report struct {
	Input    int
	Resolved int
	Dropped  int // essential identifier unresolvable
}

// ResolveAll resolves rows in order, silently dropping (and counting) unresolvable ones.
func (s *Snapshot) ResolveAll(rows []model.RawEvent) ([]model.Event, Report) {
	rep := Report{Input: len(rows)}
	out := make([]model.Event, 0, len(rows))
	for _, r := range rows {
		e, ok := s.Resolve(r)
		if !ok {
			rep.Dropped++
			continue
		}
		out = append(out, e)
	}
	rep.Resolved = len(out)
	return out, rep
}
