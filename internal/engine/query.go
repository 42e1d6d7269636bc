package engine

import (
	"context"

	"github.com/runnerr0/tabtime/internal/aggregate"
	"github.com/runnerr0/tabtime/internal/dashboard"
	"github.com/runnerr0/tabtime/internal/events"
)

// memReader serves the dashboard read contract from the engine's in-memory
// rollups, which are never behind storage.
type memReader struct {
	e *Engine
}

var _ dashboard.Reader = memReader{}

func (r memReader) GetAllTime(context.Context) (aggregate.HostTotals, error) {
	return r.e.store.Snapshot().AllTime, nil
}

func (r memReader) GetDaily(_ context.Context, dayKey string) (aggregate.HostTotals, error) {
	return r.e.store.Snapshot().Daily[dayKey].Clone(), nil
}

func (r memReader) GetWeekly(_ context.Context, weekKey string) (aggregate.HostTotals, error) {
	return r.e.store.Snapshot().Weekly[weekKey].Clone(), nil
}

func (r memReader) ClearAll(ctx context.Context) error {
	return r.e.clear(ctx)
}

// Reader returns a dashboard reader over the live aggregates. It must only
// be used from the engine goroutine.
func (e *Engine) Reader() dashboard.Reader {
	return memReader{e: e}
}

// answer replies to a query with the totals of the requested period.
func (e *Engine) answer(ctx context.Context, ev events.Event) error {
	reply := events.Reply{ID: ev.ID, Type: "totals", Period: ev.Period}

	period, err := dashboard.ParsePeriod(ev.Period)
	if err == nil {
		var s dashboard.Summary
		s, err = dashboard.Load(ctx, e.Reader(), e.store.Calendar(), period, ev.Key, e.clock(), 0)
		if err == nil {
			reply.Key = s.Key
			reply.Totals = make(map[string]int64, len(s.Rows))
			for _, row := range s.Rows {
				reply.Totals[row.Host] = row.Millis
			}
		}
	}
	if err != nil {
		reply.Error = err.Error()
	}

	if rerr := e.reply(reply); rerr != nil {
		return rerr
	}
	return err
}
