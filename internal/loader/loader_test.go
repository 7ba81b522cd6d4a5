package loader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pable/crickrecon/internal/model"
)

// memStore is an in-memory Store that can be told to fail on a given AppendEvents call.
type memStore struct {
	rows   []model.Event
	keys   map[model.EventKey]struct{}
	calls  int
	failOn int // 1-based call number to fail; 0 never fails
}

func newMemStore() *memStore {
	return &memStore{keys: make(map[model.EventKey]struct{})}
}

func (m *memStore) EventKeys(context.Context) (map[model.EventKey]struct{}, error) {
	out := make(map[model.EventKey]struct{}, len(m.keys))
	for k := range m.keys {
		out[k] = struct{}{}
	}
	return out, nil
}

func (m *memStore) AppendEvents(_ context.Context, events []model.Event) error {
	m.calls++
	if m.failOn == m.calls {
		return errors.New("disk full")
	}
	for _, e := range events {
		if _, dup := m.keys[e.Key()]; dup {
			return errors.New("unique constraint")
		}
	}
	for _, e := range events {
		m.keys[e.Key()] = struct{}{}
		m.rows = append(m.rows, e)
	}
	return nil
}

func deliveries(matchID int64, n int) []model.Event {
	out := make([]model.Event, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.Event{
			MatchID: matchID, Innings: 1, TeamID: 1,
			Over: i / 6, Ball: i%6 + 1, BatsmanID: 10, BowlerID: 20, TotalRuns: 1,
		})
	}
	return out
}

func TestLoad_AppendsAllFresh(t *testing.T) {
	store := newMemStore()
	rep, err := New(store, WithBatchSize(4)).Load(context.Background(), deliveries(1, 10))
	require.NoError(t, err)

	assert.Equal(t, Report{Candidates: 10, Appended: 10, Batches: 3}, rep)
	assert.Len(t, store.rows, 10)
	assert.Equal(t, 3, store.calls)
}

func TestLoad_Idempotent(t *testing.T) {
	store := newMemStore()
	l := New(store, WithBatchSize(3))
	events := deliveries(1, 7)

	_, err := l.Load(context.Background(), events)
	require.NoError(t, err)
	rep, err := l.Load(context.Background(), events)
	require.NoError(t, err)

	assert.Equal(t, 0, rep.Appended)
	assert.Equal(t, 7, rep.AlreadyPresent)
	assert.Equal(t, 0, rep.Batches)
	assert.Len(t, store.rows, 7)
}

func TestLoad_DuplicateWithinInputKeepsFirst(t *testing.T) {
	store := newMemStore()
	events := deliveries(1, 2)
	dup := events[0]
	dup.TotalRuns = 6
	events = append(events, dup)

	rep, err := New(store).Load(context.Background(), events)
	require.NoError(t, err)

	assert.Equal(t, 1, rep.DuplicateInInput)
	assert.Equal(t, 2, rep.Appended)
	require.Len(t, store.rows, 2)
	assert.Equal(t, 1, store.rows[0].TotalRuns)
}

func TestLoad_SameDeliveryDifferentBatsmanIsDistinct(t *testing.T) {
	store := newMemStore()
	a := deliveries(1, 1)[0]
	b := a
	b.BatsmanID = 11

	rep, err := New(store).Load(context.Background(), []model.Event{a, b})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Appended)
}

func TestLoad_BatchFailureKeepsEarlierBatches(t *testing.T) {
	store := newMemStore()
	store.failOn = 2
	l := New(store, WithBatchSize(4))
	events := deliveries(1, 10)

	rep, err := l.Load(context.Background(), events)
	require.Error(t, err)

	var be *BatchError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, 1, be.Batch)
	assert.Equal(t, 4, be.Committed)
	assert.EqualError(t, errors.Unwrap(err), "disk full")
	assert.Equal(t, 4, rep.Appended)
	assert.Len(t, store.rows, 4)

	// resume picks up where the failure left off
	store.failOn = 0
	rep, err = l.Load(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, 4, rep.AlreadyPresent)
	assert.Equal(t, 6, rep.Appended)
	assert.Len(t, store.rows, 10)
}

func TestLoad_ProgressCallback(t *testing.T) {
	store := newMemStore()
	var seen [][2]int
	l := New(store, WithBatchSize(5), WithProgress(func(loaded, total int) {
		seen = append(seen, [2]int{loaded, total})
	}))
	_, err := l.Load(context.Background(), deliveries(2, 12))
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{5, 12}, {10, 12}, {12, 12}}, seen)
}

func TestLoad_CancelledBeforeFirstBatch(t *testing.T) {
	store := newMemStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := New(store).Load(ctx, deliveries(1, 3))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, rep.Appended)
	assert.Empty(t, store.rows)
}

func TestFraction(t *testing.T) {
	assert.Equal(t, 1.0, Fraction(0, 0))
	assert.InDelta(t, 0.25, Fraction(1, 4), 1e-9)
}
