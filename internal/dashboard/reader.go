// Package dashboard reads the persisted rollups for presentation.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/tabtime/internal/aggregate"
	"github.com/runnerr0/tabtime/internal/storage"
)

// Reader is the read contract offered to presentation layers. ClearAll is
// the only write it exposes.
type Reader interface {
	GetAllTime(ctx context.Context) (aggregate.HostTotals, error)
	GetDaily(ctx context.Context, dayKey string) (aggregate.HostTotals, error)
	GetWeekly(ctx context.Context, weekKey string) (aggregate.HostTotals, error)
	ClearAll(ctx context.Context) error
}

// KVReader implements Reader directly on the backing store. Values may lag
// the running engine by up to one flush interval.
type KVReader struct {
	kv  storage.KV
	now func() time.Time
}

var _ Reader = (*KVReader)(nil)

// NewKVReader returns a Reader over kv.
func NewKVReader(kv storage.KV) *KVReader {
	return &KVReader{kv: kv, now: time.Now}
}

// Snapshot loads every persisted rollup.
func (r *KVReader) Snapshot(ctx context.Context) (aggregate.Snapshot, error) {
	entries, err := r.kv.Get(ctx, aggregate.AllKeys...)
	if err != nil {
		return aggregate.Snapshot{}, fmt.Errorf("read aggregates: %w", err)
	}
	return aggregate.Decode(entries)
}

// GetAllTime returns lifetime totals.
func (r *KVReader) GetAllTime(ctx context.Context) (aggregate.HostTotals, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.AllTime, nil
}

// GetDaily returns the totals of one day. An unknown day is empty.
func (r *KVReader) GetDaily(ctx context.Context, dayKey string) (aggregate.HostTotals, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Daily[dayKey].Clone(), nil
}

// GetWeekly returns the totals of the week starting on weekKey.
func (r *KVReader) GetWeekly(ctx context.Context, weekKey string) (aggregate.HostTotals, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Weekly[weekKey].Clone(), nil
}

// ClearAll deletes all rollups. A running engine notices the clear on its
// next persist and reloads instead of writing stale totals back.
func (r *KVReader) ClearAll(ctx context.Context) error {
	return aggregate.ClearKV(ctx, r.kv, r.now())
}
