// Package outcome derives match winners and margins from per-team run totals.
package outcome

import (
	"context"
	"fmt"

	"github.com/pable/crickrecon/internal/model"
)

// WinTypeRuns is the only win type derived. Results "by wickets" need the chase
// context and are not recovered from totals alone.
const WinTypeRuns = "runs"

// Store provides the inputs and accepts the derived outcomes.
type Store interface {
	Matches(ctx context.Context) ([]model.Match, error)
	TeamRunTotals(ctx context.Context) ([]model.TeamTotal, error)
	UpdateMatchOutcomes(ctx context.Context, outcomes []model.MatchOutcome) (int, error)
}

// Report describes one derivation pass.
type Report struct {
	MatchesConsidered int
	Decided           int
	Tied              int
	Skipped           int // both totals zero, left untouched
	Changed           int // derived result differs from the stored one
	Updated           int // rows written
}

// Derive computes an outcome for every match. The side with the strictly greater total
// wins by the difference in runs; equal non-zero totals clear the winner fields.
func Derive(matches []model.Match, totals []model.TeamTotal) ([]model.MatchOutcome, Report) {
	type key struct{ match, team int64 }
	runs := make(map[key]int, len(totals))
	for _, t := range totals {
		runs[key{t.MatchID, t.TeamID}] += t.Runs
	}

	rep := Report{MatchesConsidered: len(matches)}
	out := make([]model.MatchOutcome, 0, len(matches))
	for i := range matches {
		m := &matches[i]
		r1 := runs[key{m.ID, m.Team1ID}]
		r2 := runs[key{m.ID, m.Team2ID}]
		if r1 == 0 && r2 == 0 {
			rep.Skipped++
			continue
		}

		o := model.MatchOutcome{MatchID: m.ID}
		if r1 == r2 {
			rep.Tied++
		} else {
			winner, margin := m.Team1ID, r1-r2
			if r2 > r1 {
				winner, margin = m.Team2ID, r2-r1
			}
			winType := WinTypeRuns
			o.WinnerTeamID = &winner
			o.WinningMargin = &margin
			o.WinType = &winType
			rep.Decided++
		}
		if !sameOutcome(m, o) {
			rep.Changed++
		}
		out = append(out, o)
	}
	return out, rep
}

// Run derives outcomes from the stored events and writes them back in one transaction.
func Run(ctx context.Context, store Store) (Report, error) {
	matches, err := store.Matches(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load matches: %w", err)
	}
	totals, err := store.TeamRunTotals(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("team run totals: %w", err)
	}

	outcomes, rep := Derive(matches, totals)
	n, err := store.UpdateMatchOutcomes(ctx, outcomes)
	if err != nil {
		return rep, fmt.Errorf("update outcomes: %w", err)
	}
	rep.Updated = n
	return rep, nil
}

func sameOutcome(m *model.Match, o model.MatchOutcome) bool {
	return eqPtr(m.WinnerTeamID, o.WinnerTeamID) &&
		eqPtr(m.WinningMargin, o.WinningMargin) &&
		eqPtr(m.WinType, o.WinType)
}

func eqPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
