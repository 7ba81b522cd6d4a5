// Package loader appends resolved events to the store exactly once per composite
// identity, in bounded batches with an independent commit per batch.
package loader

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pable/crickrecon/internal/model"
)

// DefaultBatchSize is the number of events committed per transaction.
const DefaultBatchSize = 1000

// progressEvery controls how often (in batches) progress is logged.
const progressEvery = 10

// Store is the storage the loader reads identities from and appends batches to.
type Store interface {
	EventKeys(ctx context.Context) (map[model.EventKey]struct{}, error)
	AppendEvents(ctx context.Context, events []model.Event) error
}

// ProgressFunc receives the running count of appended events and the total to append.
type ProgressFunc func(loaded, total int)

// Report describes the effect of one Load call.
type Report struct {
	Candidates       int // resolved events offered to the loader
	AlreadyPresent   int // identity already persisted
	DuplicateInInput int // identity repeated within the input; first occurrence kept
	Appended         int
	Batches          int // batches committed
}

// BatchError is returned when a batch write fails. Batches before Batch stay committed;
// re-running the load resumes from there.
type BatchError struct {
	Batch     int // zero-based index of the failed batch
	Committed int // events committed by earlier batches
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("load batch %d failed after %d events committed: %v", e.Batch, e.Committed, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Loader is the deduplicating event loader.
type Loader struct {
	store     Store
	batchSize int
	log       *zap.Logger
	progress  ProgressFunc
}

// Option configures a Loader.
type Option func(*Loader)

// WithBatchSize sets the batch size; values < 1 keep the default.
func WithBatchSize(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.batchSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// WithProgress registers a callback invoked after every committed batch.
func WithProgress(fn ProgressFunc) Option {
	return func(l *Loader) { l.progress = fn }
}

// New returns a loader writing to store.
func New(store Store, opts ...Option) *Loader {
	l := &Loader{store: store, batchSize: DefaultBatchSize, log: zap.NewNop()}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Plan returns the events whose identity is neither in existing nor earlier in events,
// in input order. It does not touch the store.
func Plan(existing map[model.EventKey]struct{}, events []model.Event) ([]model.Event, Report) {
	rep := Report{Candidates: len(events)}
	seen := make(map[model.EventKey]struct{}, len(events))
	fresh := make([]model.Event, 0, len(events))
	for _, e := range events {
		k := e.Key()
		if _, ok := existing[k]; ok {
			rep.AlreadyPresent++
			continue
		}
		if _, ok := seen[k]; ok {
			rep.DuplicateInInput++
			continue
		}
		seen[k] = struct{}{}
		fresh = append(fresh, e)
	}
	return fresh, rep
}

// Load appends every event whose identity is not yet persisted. A batch failure stops
// the load and returns a *BatchError; cancellation is honoured between batches only.
func (l *Loader) Load(ctx context.Context, events []model.Event) (Report, error) {
	existing, err := l.store.EventKeys(ctx)
	if err != nil {
		return Report{Candidates: len(events)}, fmt.Errorf("read event identities: %w", err)
	}

	fresh, rep := Plan(existing, events)
	l.log.Info("load planned",
		zap.Int("candidates", rep.Candidates),
		zap.Int("already_present", rep.AlreadyPresent),
		zap.Int("duplicate_in_input", rep.DuplicateInInput),
		zap.Int("to_append", len(fresh)),
		zap.Int("batch_size", l.batchSize),
	)
	if len(fresh) == 0 {
		return rep, nil
	}

	total := len(fresh)
	for start, batch := 0, 0; start < total; start, batch = start+l.batchSize, batch+1 {
		if err := ctx.Err(); err != nil {
			return rep, fmt.Errorf("load interrupted after %d events: %w", rep.Appended, err)
		}
		end := min(start+l.batchSize, total)
		if err := l.store.AppendEvents(ctx, fresh[start:end]); err != nil {
			return rep, &BatchError{Batch: batch, Committed: rep.Appended, Err: err}
		}
		rep.Appended += end - start
		rep.Batches++

		if l.progress != nil {
			l.progress(rep.Appended, total)
		}
		if rep.Batches%progressEvery == 0 || end == total {
			l.log.Info("load progress",
				zap.Int("loaded", rep.Appended),
				zap.Int("total", total),
				zap.String("pct", fmt.Sprintf("%.1f%%", Fraction(rep.Appended, total)*100)),
			)
		}
	}
	return rep, nil
}

// Fraction returns loaded/total, or 1 when there is nothing to load.
func Fraction(loaded, total int) float64 {
	if total == 0 {
		return 1
	}
	return float64(loaded) / float64(total)
}
