package tracker

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }
func (c *fakeClock) AdvanceMs(ms int64) { c.Advance(time.Duration(ms) * time.Millisecond) }

// recorder collects deltas.
type recorder struct {
	deltas []Delta
}

func (r *recorder) Record(d Delta) { r.deltas = append(r.deltas, d) }

func (r *recorder) totals() map[string]int64 {
	out := map[string]int64{}
	for _, d := range r.deltas {
		out[d.Host] += d.Millis
	}
	return out
}

func newTestTracker() (*Tracker, *fakeClock, *recorder) {
	clock := newFakeClock()
	rec := &recorder{}
	return New(clock.Now, rec), clock, rec
}

func TestTransition_FromEmptyEmitsNothing(t *testing.T) {
	now := time.Now()
	next, delta := Transition(State{}, "a.com", now)

	assert.Nil(t, delta)
	assert.Equal(t, State{Host: "a.com", Start: now}, next)
}

func TestTransition_ToNullClearsBoth(t *testing.T) {
	start := time.Now()
	next, delta := Transition(State{Host: "a.com", Start: start}, "", start.Add(time.Second))

	require.NotNil(t, delta)
	assert.Equal(t, int64(1000), delta.Millis)
	assert.Equal(t, "a.com", delta.Host)
	assert.Equal(t, time.Second, delta.Elapsed())
	assert.False(t, next.Attributed())
	assert.True(t, next.Start.IsZero())
}

func TestTransition_UnknownHostIsNotAttributed(t *testing.T) {
	next, _ := Transition(State{}, "unknown", time.Now())
	assert.Equal(t, State{}, next)
}

func TestTransition_ClampsClockSkew(t *testing.T) {
	start := time.Now()
	_, delta := Transition(State{Host: "a.com", Start: start}, "b.com", start.Add(-5*time.Second))

	require.NotNil(t, delta)
	assert.Equal(t, int64(0), delta.Millis)
}

func TestCheckpoint_KeepsHost(t *testing.T) {
	start := time.Now()
	now := start.Add(2 * time.Second)
	next, delta := Checkpoint(State{Host: "a.com", Start: start}, now)

	require.NotNil(t, delta)
	assert.Equal(t, int64(2000), delta.Millis)
	assert.Equal(t, State{Host: "a.com", Start: now}, next)
}

func TestCheckpoint_EmptyStateIsNoop(t *testing.T) {
	next, delta := Checkpoint(State{}, time.Now())
	assert.Nil(t, delta)
	assert.Equal(t, State{}, next)
}

func TestTracker_SwitchHostsThenLoseFocus(t *testing.T) {
	tr, clock, rec := newTestTracker()

	tr.FocusGained("a.com")
	clock.AdvanceMs(5000)
	tr.FocusGained("b.com")
	clock.AdvanceMs(3000)
	tr.FocusLost()

	assert.Equal(t, map[string]int64{"a.com": 5000, "b.com": 3000}, rec.totals())
	assert.False(t, tr.State().Attributed())
}

func TestTracker_TickMidSessionAccumulatesExactly(t *testing.T) {
	tr, clock, rec := newTestTracker()

	tr.FocusGained("a.com")
	clock.AdvanceMs(2000)
	tr.Tick()
	clock.AdvanceMs(2000)
	tr.FocusGained("a.com")
	clock.AdvanceMs(1000)
	tr.FocusLost()

	assert.Equal(t, map[string]int64{"a.com": 5000}, rec.totals())
	require.Len(t, rec.deltas, 3)
	assert.Equal(t, []int64{2000, 2000, 1000}, []int64{rec.deltas[0].Millis, rec.deltas[1].Millis, rec.deltas[2].Millis})
}

func TestTracker_DoubleTickIsIdempotent(t *testing.T) {
	tr, clock, rec := newTestTracker()

	tr.FocusGained("a.com")
	clock.AdvanceMs(1500)
	tr.Tick()
	tr.Tick()

	assert.Equal(t, map[string]int64{"a.com": 1500}, rec.totals())
}

func TestTracker_TickWithoutAttributionEmitsNothing(t *testing.T) {
	tr, clock, rec := newTestTracker()

	clock.AdvanceMs(10000)
	tr.Tick()
	tr.FocusLost()

	assert.Empty(t, rec.deltas)
}

func TestTracker_NilSinkIsAllowed(t *testing.T) {
	tr := New(nil, nil)
	tr.FocusGained("a.com")
	tr.Tick()
	tr.FocusLost()
	assert.False(t, tr.State().Attributed())
}

// Random focus sequences must attribute every millisecond of attributed
// wall-clock time exactly once.
func TestTracker_ConservesTimeAcrossRandomSequences(t *testing.T) {
	hosts := []string{"a.com", "b.com", "c.com", ""}
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 50; run++ {
		tr, clock, rec := newTestTracker()
		expected := map[string]int64{}
		current := ""

		for step := 0; step < 200; step++ {
			ms := rng.Int63n(5000)
			clock.AdvanceMs(ms)
			if current != "" {
				expected[current] += ms
			}

			switch rng.Intn(3) {
			case 0:
				tr.Tick()
			case 1:
				tr.FocusLost()
				current = ""
			default:
				h := hosts[rng.Intn(len(hosts))]
				tr.FocusGained(h)
				current = h
			}
		}

		got := rec.totals()
		for host, ms := range expected {
			if ms == 0 {
				continue
			}
			assert.Equal(t, ms, got[host], "run %d host %s", run, host)
		}
		for host := range got {
			assert.NotEmpty(t, host)
		}
	}
}
