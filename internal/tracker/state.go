// Package tracker implements the attribution state machine: which host is
// currently accumulating time and since when.
package tracker

import (
	"time"

	"github.com/runnerr0/tabtime/internal/classify"
)

// State is the current attribution. Host is empty exactly when Start is
// zero. State values are never mutated; transitions return a new State.
type State struct {
	Host  string
	Start time.Time
}

// Attributed reports whether time is currently being attributed.
func (s State) Attributed() bool {
	return s.Host != ""
}

// Delta is time attributed to one host during one uninterrupted period.
type Delta struct {
	Host string
	// Millis is never negative.
	Millis int64
	// At is the instant the period ended.
	At time.Time
}

// Elapsed returns the delta as a duration.
func (d Delta) Elapsed() time.Duration {
	return time.Duration(d.Millis) * time.Millisecond
}

// Transition closes the current period at now and attributes subsequent
// time to host. An unattributable host clears the state. The returned
// delta is nil when nothing was being attributed.
func Transition(s State, host string, now time.Time) (State, *Delta) {
	delta := closePeriod(s, now)
	if !classify.Attributable(host) {
		return State{}, delta
	}
	return State{Host: host, Start: now}, delta
}

// Checkpoint closes the current period at now and starts a new one for the
// same host, so long sessions are recorded before any transition happens.
func Checkpoint(s State, now time.Time) (State, *Delta) {
	delta := closePeriod(s, now)
	if !s.Attributed() {
		return State{}, nil
	}
	return State{Host: s.Host, Start: now}, delta
}

func closePeriod(s State, now time.Time) *Delta {
	if !s.Attributed() || s.Start.IsZero() {
		return nil
	}
	ms := now.Sub(s.Start).Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return &Delta{Host: s.Host, Millis: ms, At: now}
}
