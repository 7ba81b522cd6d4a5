// Package pipeline runs the reconciliation stages against one store: seeding reference
// data, affiliation inference, deduplicated loading, outcome derivation and stats.
// Each stage commits on its own and is recorded in the pipeline_runs audit table.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pable/crickrecon/internal/affiliation"
	"github.com/pable/crickrecon/internal/aggregator"
	"github.com/pable/crickrecon/internal/filter"
	"github.com/pable/crickrecon/internal/loader"
	"github.com/pable/crickrecon/internal/model"
	"github.com/pable/crickrecon/internal/outcome"
	"github.com/pable/crickrecon/internal/resolve"
	"github.com/pable/crickrecon/internal/storage"
)

// Stage names as recorded in pipeline_runs.
const (
	StageSeed      = "seed"
	StageAffiliate = "affiliate"
	StageLoad      = "load"
	StageOutcomes  = "outcomes"
	StageStats     = "stats"
)

// StageResult summarises one executed stage.
type StageResult struct {
	Stage   string
	Table   string // table whose row count is tracked
	Before  int
	After   int
	Changed int
	Elapsed time.Duration
	Err     error
}

// SeedReport counts the reference rows registered from the feed.
type SeedReport struct {
	Teams    int // newly registered
	Players  int
	Matches  int
	Fixtures int // complete matches seen in the feed
}

// LoadResult groups the reports of the filter, resolver and loader.
type LoadResult struct {
	Filter  filter.Report
	Resolve resolve.Report
	Load    loader.Report
}

// RunResult is the outcome of a full pipeline run.
type RunResult struct {
	RunID       string
	Stages      []StageResult
	Affiliation affiliation.Report
	Load        LoadResult
	Outcome     outcome.Report
	Stats       aggregator.Report
}

// Pipeline executes stages against a store. Stage methods may be called individually;
// every call shares the pipeline's run id.
type Pipeline struct {
	db        *storage.DB
	log       *zap.Logger
	batchSize int
	progress  loader.ProgressFunc
	runID     string
	now       func() time.Time
	stages    []StageResult
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// WithBatchSize sets the loader batch size.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) { p.batchSize = n }
}

// WithProgress forwards loader progress to fn.
func WithProgress(fn loader.ProgressFunc) Option {
	return func(p *Pipeline) { p.progress = fn }
}

// New returns a pipeline with a fresh run id.
func New(db *storage.DB, opts ...Option) *Pipeline {
	p := &Pipeline{
		db:        db,
		log:       zap.NewNop(),
		batchSize: loader.DefaultBatchSize,
		runID:     uuid.NewString(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	p.log = p.log.With(zap.String("run_id", p.runID))
	return p
}

// RunID returns the id under which stages are audited.
func (p *Pipeline) RunID() string { return p.runID }

// Stages returns the results of every stage executed so far, in order.
func (p *Pipeline) Stages() []StageResult { return p.stages }

// Run executes affiliate, load, outcomes and stats in that order, so the resolver sees
// corrected affiliations. It stops at the first failing stage.
func (p *Pipeline) Run(ctx context.Context, rows []model.RawEvent) (*RunResult, error) {
	res := &RunResult{RunID: p.runID}
	var err error

	if res.Affiliation, err = p.Affiliate(ctx, rows); err != nil {
		res.Stages = p.stages
		return res, err
	}
	if res.Load, err = p.Load(ctx, rows); err != nil {
		res.Stages = p.stages
		return res, err
	}
	if res.Outcome, err = p.Outcomes(ctx); err != nil {
		res.Stages = p.stages
		return res, err
	}
	res.Stats, err = p.Stats(ctx)
	res.Stages = p.stages
	return res, err
}

// Seed registers teams, players and complete matches named in the feed. Existing rows
// are left alone.
func (p *Pipeline) Seed(ctx context.Context, rows []model.RawEvent) (SeedReport, error) {
	var rep SeedReport
	err := p.stage(ctx, StageSeed, "matches", func() (int, error) {
		before, err := p.counts(ctx, "teams", "players")
		if err != nil {
			return 0, err
		}

		teamIDs := make(map[string]int64)
		ensureTeam := func(name string) (int64, error) {
			if id, ok := teamIDs[name]; ok {
				return id, nil
			}
			id, err := p.db.EnsureTeam(ctx, name, ShortCode(name))
			if err != nil {
				return 0, fmt.Errorf("register team %q: %w", name, err)
			}
			teamIDs[name] = id
			return id, nil
		}

		for _, name := range distinct(rows, func(r model.RawEvent) []string {
			return []string{r.Team, r.Team1, r.Team2}
		}) {
			if _, err := ensureTeam(name); err != nil {
				return 0, err
			}
		}

		for _, name := range distinct(rows, func(r model.RawEvent) []string {
			return []string{r.Batsman, r.NonStriker, r.Bowler, r.PlayerOut}
		}) {
			if _, err := p.db.EnsurePlayer(ctx, name); err != nil {
				return 0, fmt.Errorf("register player %q: %w", name, err)
			}
		}

		fixtures := filter.Fixtures(rows)
		rep.Fixtures = len(fixtures)
		for _, f := range fixtures {
			t1, err := ensureTeam(f.Team1)
			if err != nil {
				return 0, err
			}
			t2, err := ensureTeam(f.Team2)
			if err != nil {
				return 0, err
			}
			created, err := p.db.InsertMatch(ctx, model.Match{
				ID: f.MatchID, Team1ID: t1, Team2ID: t2, Date: f.Date, Season: f.Season,
			})
			if err != nil {
				return 0, fmt.Errorf("register match %d: %w", f.MatchID, err)
			}
			if created {
				rep.Matches++
			}
		}

		after, err := p.counts(ctx, "teams", "players")
		if err != nil {
			return 0, err
		}
		rep.Teams = after[0] - before[0]
		rep.Players = after[1] - before[1]
		return rep.Matches, nil
	})
	if err == nil {
		p.log.Info("reference data seeded",
			zap.Int("teams", rep.Teams), zap.Int("players", rep.Players),
			zap.Int("matches", rep.Matches), zap.Int("fixtures", rep.Fixtures))
	}
	return rep, err
}

// Affiliate infers player teams from the whole source log and writes the changes.
func (p *Pipeline) Affiliate(ctx context.Context, rows []model.RawEvent) (affiliation.Report, error) {
	var rep affiliation.Report
	err := p.stage(ctx, StageAffiliate, "players", func() (int, error) {
		snap, err := resolve.Load(ctx, p.db)
		if err != nil {
			return 0, err
		}
		res := affiliation.Infer(rows)
		for _, a := range res.Assignments {
			if a.Conflict() {
				p.log.Debug("affiliation conflict",
					zap.String("player", a.Player), zap.Strings("candidates", a.Candidates),
					zap.String("chosen", a.Team), zap.Int("bat_count", a.BatCount))
			}
		}
		rep, err = affiliation.Apply(ctx, p.db, snap, res)
		if err != nil {
			return 0, err
		}
		return rep.Updated, nil
	})
	if err == nil {
		p.log.Info("affiliations applied",
			zap.Int("observed", rep.PlayersObserved), zap.Int("conflicts", rep.Conflicts),
			zap.Int("updated", rep.Updated), zap.Int("unchanged", rep.Unchanged),
			zap.Int("unresolved_teams", rep.UnresolvedTeams), zap.Int("unknown_players", rep.UnknownPlayers))
	}
	return rep, err
}

// Load filters the source rows, resolves names against a fresh snapshot and appends
// every event not yet stored.
func (p *Pipeline) Load(ctx context.Context, rows []model.RawEvent) (LoadResult, error) {
	var res LoadResult
	err := p.stage(ctx, StageLoad, "ball_by_ball", func() (int, error) {
		registered, err := p.db.MatchIDs(ctx)
		if err != nil {
			return 0, fmt.Errorf("registered matches: %w", err)
		}
		kept, frep := filter.Apply(rows, registered)
		res.Filter = frep
		p.log.Info("source filtered",
			zap.Int("input", frep.InputRows), zap.Int("kept", frep.KeptRows),
			zap.Int("incomplete_matches", len(frep.IncompleteMatches)), zap.Int("incomplete_rows", frep.IncompleteRows),
			zap.Int("unregistered_rows", frep.UnregisteredRows))
		if len(frep.IncompleteMatches) > 0 {
			p.log.Debug("incomplete matches excluded", zap.Int64s("match_ids", frep.IncompleteMatches))
		}

		snap, err := resolve.Load(ctx, p.db)
		if err != nil {
			return 0, err
		}
		teams, players := snap.Len()
		p.log.Debug("reference snapshot loaded", zap.Int("teams", teams), zap.Int("players", players))
		events, rrep := snap.ResolveAll(kept)
		res.Resolve = rrep
		if rrep.Dropped > 0 {
			p.log.Info("rows with unresolved names skipped", zap.Int("dropped", rrep.Dropped))
		}

		l := loader.New(p.db,
			loader.WithBatchSize(p.batchSize),
			loader.WithLogger(p.log),
			loader.WithProgress(p.progress),
		)
		res.Load, err = l.Load(ctx, events)
		return res.Load.Appended, err
	})
	return res, err
}

// Outcomes recomputes winners and margins for every match.
func (p *Pipeline) Outcomes(ctx context.Context) (outcome.Report, error) {
	var rep outcome.Report
	err := p.stage(ctx, StageOutcomes, "matches", func() (int, error) {
		var err error
		rep, err = outcome.Run(ctx, p.db)
		return rep.Changed, err
	})
	if err == nil {
		p.log.Info("outcomes derived",
			zap.Int("matches", rep.MatchesConsidered), zap.Int("decided", rep.Decided),
			zap.Int("tied", rep.Tied), zap.Int("skipped", rep.Skipped), zap.Int("changed", rep.Changed))
	}
	return rep, err
}

// Stats rebuilds player_match_stats from the stored events.
func (p *Pipeline) Stats(ctx context.Context) (aggregator.Report, error) {
	var rep aggregator.Report
	err := p.stage(ctx, StageStats, "player_match_stats", func() (int, error) {
		var err error
		rep, err = aggregator.Run(ctx, p.db)
		return rep.Rows, err
	})
	if err == nil {
		p.log.Info("player stats rebuilt",
			zap.Int("events", rep.Events), zap.Int("rows", rep.Rows),
			zap.Int("batting", rep.BattingRows), zap.Int("bowling", rep.BowlingRows),
			zap.Int("bowling_only", rep.BowlingOnlyRows))
	}
	return rep, err
}

// stage runs fn between two row counts of table, then audits and logs the result.
func (p *Pipeline) stage(ctx context.Context, name, table string, fn func() (int, error)) error {
	started := p.now()
	sr := StageResult{Stage: name, Table: table}

	if before, err := p.db.CountRows(ctx, table); err != nil {
		sr.Err = fmt.Errorf("%s: %w", name, err)
	} else {
		sr.Before = before
		p.log.Info("stage started", zap.String("stage", name), zap.String("table", table), zap.Int("before", before))
		if sr.Changed, sr.Err = fn(); sr.Err != nil {
			sr.Err = fmt.Errorf("%s: %w", name, sr.Err)
		}
	}

	// Count and audit even when the context is gone so the failure is on record.
	auditCtx := context.WithoutCancel(ctx)
	if after, err := p.db.CountRows(auditCtx, table); err == nil {
		sr.After = after
	} else if sr.Err == nil {
		sr.Err = fmt.Errorf("%s: %w", name, err)
	}
	finished := p.now()
	sr.Elapsed = finished.Sub(started)
	p.stages = append(p.stages, sr)

	if err := p.db.RecordStageRun(auditCtx, storage.StageRun{
		RunID: p.runID, Stage: name, StartedAt: started, FinishedAt: finished,
		BeforeCount: sr.Before, AfterCount: sr.After, Changed: sr.Changed, Err: sr.Err,
	}); err != nil {
		p.log.Warn("stage audit failed", zap.String("stage", name), zap.Error(err))
	}

	if sr.Err != nil {
		p.log.Error("stage failed", zap.String("stage", name), zap.Error(sr.Err))
		return sr.Err
	}
	p.log.Info("stage finished",
		zap.String("stage", name), zap.Int("before", sr.Before), zap.Int("after", sr.After),
		zap.Int("changed", sr.Changed), zap.Duration("elapsed", sr.Elapsed))
	return nil
}

func (p *Pipeline) counts(ctx context.Context, tables ...string) ([]int, error) {
	out := make([]int, len(tables))
	for i, t := range tables {
		n, err := p.db.CountRows(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// distinct collects the non-empty names pick returns for every row, sorted.
func distinct(rows []model.RawEvent, pick func(model.RawEvent) []string) []string {
	set := make(map[string]struct{})
	for _, r := range rows {
		for _, name := range pick(r) {
			if name != "" {
				set[name] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ShortCode derives an abbreviation from the initials of a team name,
// e.g. "Mumbai Indians" -> "MI".
func ShortCode(name string) string {
	var b strings.Builder
	for _, word := range strings.Fields(name) {
		r := []rune(word)[0]
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}
