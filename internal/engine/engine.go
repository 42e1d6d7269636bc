// Package engine connects browser events to the tracker and the aggregate
// store. A single goroutine owns all mutable state; persistence runs
// beside it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/runnerr0/tabtime/internal/aggregate"
	"github.com/runnerr0/tabtime/internal/classify"
	"github.com/runnerr0/tabtime/internal/config"
	"github.com/runnerr0/tabtime/internal/events"
	"github.com/runnerr0/tabtime/internal/logging"
	"github.com/runnerr0/tabtime/internal/metrics"
	"github.com/runnerr0/tabtime/internal/tracker"
)

// DefaultInterval is the periodic flush cadence.
const DefaultInterval = 10 * time.Second

// shutdownTimeout bounds the final persist.
const shutdownTimeout = 5 * time.Second

// Replier sends replies back to the extension.
type Replier interface {
	Encode(v any) error
}

// Options configures an Engine. Store and Classifier are required.
type Options struct {
	Store      *aggregate.Store
	Classifier *classify.Classifier
	Interval   time.Duration
	Clock      func() time.Time
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Replies    Replier
}

// Engine drives the tracker from events and ticks.
type Engine struct {
	store      *aggregate.Store
	classifier *classify.Classifier
	interval   time.Duration
	clock      func() time.Time
	logger     *slog.Logger
	metrics    *metrics.Metrics
	replies    Replier

	tracker   *tracker.Tracker
	registry  *events.Registry
	persister *persister
	stopped   bool

	// seq numbers recorded deltas. journal holds the deltas not yet known
	// to be written, so they survive a clear made by another process.
	seq     uint64
	journal []journaled
}

type journaled struct {
	tracker.Delta
	seq uint64
}

// New builds an Engine. Call Start before handling events.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("engine: store is required")
	}
	if opts.Classifier == nil {
		return nil, errors.New("engine: classifier is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	e := &Engine{
		store:      opts.Store,
		classifier: opts.Classifier,
		interval:   opts.Interval,
		clock:      opts.Clock,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		replies:    opts.Replies,
		registry:   events.NewRegistry(),
	}
	e.tracker = tracker.New(opts.Clock, tracker.SinkFunc(e.record))
	e.persister = newPersister(opts.Store, opts.Clock, opts.Logger, opts.Metrics)
	return e, nil
}

// NewClassifier builds a classifier from the tracking configuration.
func NewClassifier(cfg config.TrackingConfig) (*classify.Classifier, error) {
	return classify.New(classify.Rules{
		Patterns: cfg.DenylistPatterns,
		Domains:  cfg.DenylistDomains,
		Regex:    cfg.DenylistRegex,
	})
}

// Start loads the persisted aggregates, initializing them on first run,
// and starts background persistence.
func (e *Engine) Start(ctx context.Context) error {
	initialized, err := e.store.Load(ctx, e.clock())
	if err != nil {
		return err
	}
	if initialized {
		e.logger.Info("initialized empty aggregates")
	}
	e.persister.start(ctx)
	return nil
}

// State returns the current attribution.
func (e *Engine) State() tracker.State {
	return e.tracker.State()
}

// SetClassifier swaps the exclusion rules. The current attribution is
// re-evaluated against them right away.
func (e *Engine) SetClassifier(c *classify.Classifier) {
	if c == nil {
		return
	}
	e.classifier = c
	e.refocus()
}

// HandleEvent applies one event. Failures, panics included, are logged and
// counted; they never stop the engine.
func (e *Engine) HandleEvent(ctx context.Context, ev events.Event) {
	e.metrics.Event(string(ev.Type))

	defer func() {
		if r := recover(); r != nil {
			e.metrics.HandlerFailed()
			e.logger.Error("event handler panicked",
				"type", ev.Type, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	if err := e.handle(ctx, ev); err != nil {
		e.metrics.HandlerFailed()
		e.logger.Warn("event handler failed", "type", ev.Type, "error", err)
	}
}

func (e *Engine) handle(ctx context.Context, ev events.Event) error {
	switch ev.Type {
	case events.TypeSuspend:
		e.tracker.FocusLost()
		return e.Flush(ctx)

	case events.TypeClear:
		err := e.clear(ctx)
		reply := events.Reply{ID: ev.ID, Type: "cleared"}
		if err != nil {
			reply.Error = err.Error()
		}
		if rerr := e.reply(reply); rerr != nil && err == nil {
			err = rerr
		}
		return err

	case events.TypeQuery:
		return e.answer(ctx, ev)
	}

	if err := e.registry.Apply(ev); err != nil {
		return err
	}
	e.refocus()
	return nil
}

// refocus attributes time to the active tab of the focused window, or to
// nothing when there is none.
func (e *Engine) refocus() {
	tab, ok := e.registry.ActiveTab()
	if !ok {
		e.tracker.FocusLost()
		return
	}
	e.tracker.FocusGained(e.classifier.Classify(tab.URL))
}

// Tick closes the current period. A snapshot whose write failed earlier is
// retried even when nothing new was recorded.
func (e *Engine) Tick() {
	e.tracker.Tick()
	e.trimJournal()
	if e.persister.failed.Load() {
		e.persister.submit(e.store.Snapshot(), e.seq)
	}
}

// record is the tracker sink. The merge happens here, synchronously, and
// the write is left to the persister. Time before the last clear is not
// recorded.
func (e *Engine) record(d tracker.Delta) {
	d.Millis = sinceClear(d, e.store.ClearedAt())
	if d.Millis <= 0 || !classify.Attributable(d.Host) {
		return
	}
	e.store.Apply(d.Host, d.Millis, d.At)
	e.seq++
	e.journal = append(e.journal, journaled{Delta: d, seq: e.seq})
	e.trimJournal()

	e.metrics.Delta(d.Millis)
	e.logger.Debug("recorded", "host", d.Host, "ms", d.Millis)
	e.persister.submit(e.store.Snapshot(), e.seq)
}

// sinceClear returns the part of d that falls after clearedAt.
func sinceClear(d tracker.Delta, clearedAt int64) int64 {
	end := d.At.UnixMilli()
	if end-d.Millis >= clearedAt {
		return d.Millis
	}
	return max(end-clearedAt, 0)
}

// trimJournal drops deltas contained in a successful write.
func (e *Engine) trimJournal() {
	durable := e.persister.durable.Load()
	n := 0
	for n < len(e.journal) && e.journal[n].seq <= durable {
		n++
	}
	e.journal = e.journal[n:]
}

// Flush writes the current aggregates synchronously. When another process
// cleared storage in the meantime, the clear is adopted and the time
// recorded after it is written instead.
func (e *Engine) Flush(ctx context.Context) error {
	err := e.persister.write(ctx, e.store.Snapshot(), e.seq)
	at, cleared := aggregate.ClearedAtOf(err)
	if !cleared {
		return err
	}
	adopted, err := e.adoptClear(ctx, at)
	if err != nil || !adopted {
		return err
	}
	return e.persister.write(ctx, e.store.Snapshot(), e.seq)
}

func (e *Engine) clear(ctx context.Context) error {
	if err := e.store.Clear(ctx, e.clock()); err != nil {
		return err
	}
	e.journal = nil
	e.logger.Info("cleared all aggregates")
	return nil
}

// adoptClear reloads the aggregates after a clear made at clearedAt by
// another process, then replays the time recorded after the clear that
// has not been written yet. Clears the engine already knows about are
// ignored.
func (e *Engine) adoptClear(ctx context.Context, clearedAt int64) (bool, error) {
	if clearedAt <= e.store.ClearedAt() {
		return false, nil
	}
	if _, err := e.store.Load(ctx, e.clock()); err != nil {
		return false, fmt.Errorf("reload after clear: %w", err)
	}

	cut := e.store.ClearedAt()
	kept := e.journal[:0]
	var replayed int64
	for _, j := range e.journal {
		j.Millis = sinceClear(j.Delta, cut)
		if j.Millis <= 0 {
			continue
		}
		e.store.Apply(j.Host, j.Millis, j.At)
		replayed += j.Millis
		kept = append(kept, j)
	}
	// Replayed deltas belong to the next write, not to any earlier one.
	e.seq++
	for i := range kept {
		kept[i].seq = e.seq
	}
	e.journal = kept

	e.logger.Info("reloaded aggregates after clear", "cleared_at", cut, "replayed_ms", replayed)
	return true, nil
}

func (e *Engine) reply(r events.Reply) error {
	if e.replies == nil {
		return nil
	}
	return e.replies.Encode(r)
}

// onCleared handles a background write refused because of a clear.
func (e *Engine) onCleared(ctx context.Context, at int64) {
	adopted, err := e.adoptClear(ctx, at)
	if err != nil {
		e.logger.Warn("reload failed", "error", err)
		return
	}
	if adopted {
		e.persister.submit(e.store.Snapshot(), e.seq)
	}
}

// Stop closes the current period and persists synchronously. It is safe
// to call more than once.
func (e *Engine) Stop(ctx context.Context) error {
	if e.stopped {
		return nil
	}
	e.stopped = true

	e.tracker.FocusLost()
	e.persister.stop()

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := e.Flush(ctx); err != nil {
		return fmt.Errorf("final persist: %w", err)
	}
	return nil
}

// Run handles events, ticks and classifier reloads until in is closed or
// ctx is done, then stops the engine. Start must have been called.
func (e *Engine) Run(ctx context.Context, in <-chan events.Event, reloads <-chan *classify.Classifier) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("shutting down")
			return e.Stop(context.WithoutCancel(ctx))

		case ev, ok := <-in:
			if !ok {
				e.logger.Info("event stream closed")
				return e.Stop(context.WithoutCancel(ctx))
			}
			e.HandleEvent(ctx, ev)

		case c := <-reloads:
			e.SetClassifier(c)
			e.logger.Info("denylist reloaded")

		case <-ticker.C:
			e.Tick()

		case at := <-e.persister.cleared:
			e.onCleared(ctx, at)
		}
	}
}
