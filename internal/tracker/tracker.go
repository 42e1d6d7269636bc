package tracker

import "time"

// Sink receives every delta the tracker produces.
type Sink interface {
	Record(d Delta)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Delta)

// Record calls f(d).
func (f SinkFunc) Record(d Delta) { f(d) }

// Tracker holds the single process-wide attribution state. It is not safe
// for concurrent use; the engine drives it from one goroutine.
type Tracker struct {
	state State
	now   func() time.Time
	sink  Sink
}

// New returns a Tracker with no attribution. A nil clock means time.Now.
func New(now func() time.Time, sink Sink) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now, sink: sink}
}

// State returns the current attribution.
func (t *Tracker) State() State {
	return t.state
}

// FocusGained flushes the outstanding period, even when host is unchanged,
// and starts attributing to host. An empty host clears the attribution.
func (t *Tracker) FocusGained(host string) {
	next, delta := Transition(t.state, host, t.now())
	t.state = next
	t.emit(delta)
}

// FocusLost flushes the outstanding period and clears the attribution.
func (t *Tracker) FocusLost() {
	t.FocusGained("")
}

// Tick flushes the outstanding period without changing the host.
func (t *Tracker) Tick() {
	next, delta := Checkpoint(t.state, t.now())
	t.state = next
	t.emit(delta)
}

func (t *Tracker) emit(d *Delta) {
	if d == nil || t.sink == nil {
		return
	}
	t.sink.Record(*d)
}
