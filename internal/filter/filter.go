// Package filter removes structurally invalid source records before loading.
package filter

import (
	"slices"
	"sort"

	"github.com/pable/crickrecon/internal/model"
)

// Report counts what the filter dropped.
type Report struct {
	InputRows         int
	IncompleteMatches []int64 // matches with fewer than two distinct batting teams, ascending
	IncompleteRows    int
	UnregisteredRows  int
	UnregisteredIDs   []int64 // complete matches not present in the matches table, ascending
	KeptRows          int
}

// Apply drops every row of an incomplete match (fewer than two distinct non-empty team
// labels) and every row whose match is not in registered. Row order is preserved.
func Apply(rows []model.RawEvent, registered map[int64]struct{}) ([]model.RawEvent, Report) {
	rep := Report{InputRows: len(rows)}

	teamsByMatch := make(map[int64]map[string]struct{})
	for _, r := range rows {
		set := teamsByMatch[r.MatchID]
		if set == nil {
			set = make(map[string]struct{}, 2)
			teamsByMatch[r.MatchID] = set
		}
		if r.Team != "" {
			set[r.Team] = struct{}{}
		}
	}

	incomplete := make(map[int64]bool)
	unregistered := make(map[int64]bool)
	for id, teams := range teamsByMatch {
		if len(teams) < 2 {
			incomplete[id] = true
			rep.IncompleteMatches = append(rep.IncompleteMatches, id)
			continue
		}
		if _, ok := registered[id]; !ok {
			unregistered[id] = true
			rep.UnregisteredIDs = append(rep.UnregisteredIDs, id)
		}
	}
	sortIDs(rep.IncompleteMatches)
	sortIDs(rep.UnregisteredIDs)

	out := make([]model.RawEvent, 0, len(rows))
	for _, r := range rows {
		switch {
		case incomplete[r.MatchID]:
			rep.IncompleteRows++
		case unregistered[r.MatchID]:
			rep.UnregisteredRows++
		default:
			out = append(out, r)
		}
	}
	rep.KeptRows = len(out)
	return out, rep
}

// Fixture is a match as seen in the feed: its pairing, season and date.
type Fixture struct {
	MatchID int64
	Season  string
	Date    string
	Team1   string
	Team2   string
}

// Fixtures returns one fixture per complete match (two or more distinct team labels), in
// first-seen order. The pairing comes from the team1/team2 columns when the first row
// carries both, otherwise from the first two batting teams seen.
func Fixtures(rows []model.RawEvent) []Fixture {
	type seen struct {
		first model.RawEvent
		teams []string
	}
	byMatch := make(map[int64]*seen)
	var order []int64
	for _, r := range rows {
		s := byMatch[r.MatchID]
		if s == nil {
			s = &seen{first: r}
			byMatch[r.MatchID] = s
			order = append(order, r.MatchID)
		}
		if r.Team != "" && !slices.Contains(s.teams, r.Team) {
			s.teams = append(s.teams, r.Team)
		}
	}

	out := make([]Fixture, 0, len(order))
	for _, id := range order {
		s := byMatch[id]
		if len(s.teams) < 2 {
			continue
		}
		f := Fixture{MatchID: id, Season: s.first.Season, Date: s.first.Date, Team1: s.teams[0], Team2: s.teams[1]}
		if s.first.Team1 != "" && s.first.Team2 != "" && s.first.Team1 != s.first.Team2 {
			f.Team1, f.Team2 = s.first.Team1, s.first.Team2
		}
		out = append(out, f)
	}
	return out
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
