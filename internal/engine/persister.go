package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/runnerr0/tabtime/internal/aggregate"
	"github.com/runnerr0/tabtime/internal/metrics"
)

// pendingWrite is a snapshot together with the sequence number of the last
// delta it contains.
type pendingWrite struct {
	snap aggregate.Snapshot
	seq  uint64
}

// persister writes snapshots in the background. It holds at most one
// pending snapshot; a newer one replaces it, since every snapshot is a
// superset of the ones before.
type persister struct {
	store   *aggregate.Store
	clock   func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics

	pending chan pendingWrite
	// cleared carries the newest clear time a write was refused for.
	cleared chan int64
	failed  atomic.Bool
	// durable is the highest delta sequence number known to be written.
	durable atomic.Uint64

	cancel context.CancelFunc
	done   chan struct{}
}

func newPersister(store *aggregate.Store, clock func() time.Time, logger *slog.Logger, m *metrics.Metrics) *persister {
	return &persister{
		store:   store,
		clock:   clock,
		logger:  logger,
		metrics: m,
		pending: make(chan pendingWrite, 1),
		cleared: make(chan int64, 1),
	}
}

func (p *persister) start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.run(ctx)
}

// stop waits for an in-flight write and discards anything still pending.
func (p *persister) stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
}

// submit queues snap, replacing any snapshot not yet written. It must only
// be called from the engine goroutine.
func (p *persister) submit(snap aggregate.Snapshot, seq uint64) {
	w := pendingWrite{snap: snap, seq: seq}
	for {
		select {
		case p.pending <- w:
			return
		default:
		}
		select {
		case <-p.pending:
		default:
		}
	}
}

func (p *persister) run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		case w := <-p.pending:
			p.write(ctx, w.snap, w.seq) //nolint:errcheck
		}
	}
}

// write persists snap and reports the outcome. It returns the error so
// synchronous callers can surface it.
func (p *persister) write(ctx context.Context, snap aggregate.Snapshot, seq uint64) error {
	now := p.clock()
	err := p.store.Persist(ctx, snap, now)
	p.metrics.Persisted(now, err)

	switch {
	case err == nil:
		p.failed.Store(false)
		p.markDurable(seq)
	case errors.Is(err, aggregate.ErrCleared):
		at, _ := aggregate.ClearedAtOf(err)
		p.logger.Info("storage was cleared, discarding snapshot", "cleared_at", at)
		p.signalCleared(at)
	default:
		p.failed.Store(true)
		p.logger.Warn("persist failed, will retry", "error", err)
	}
	return err
}

func (p *persister) markDurable(seq uint64) {
	for {
		cur := p.durable.Load()
		if seq <= cur || p.durable.CompareAndSwap(cur, seq) {
			return
		}
	}
}

// signalCleared reports a refused write, keeping only the newest clear
// time when the engine has not picked up an earlier one.
func (p *persister) signalCleared(at int64) {
	for {
		select {
		case p.cleared <- at:
			return
		default:
		}
		select {
		case prev := <-p.cleared:
			if prev > at {
				at = prev
			}
		default:
		}
	}
}
