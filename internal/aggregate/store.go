package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/runnerr0/tabtime/internal/storage"
)

// ErrCleared is returned by Persist when the backing store was cleared
// after the snapshot was loaded. Writing would resurrect deleted data, so
// the caller should Load again instead.
var ErrCleared = errors.New("aggregate: backing store was cleared")

// ClearedError is the ErrCleared returned by Persist. At is the clear
// time found in storage, in epoch milliseconds.
type ClearedError struct {
	At int64
}

func (e *ClearedError) Error() string {
	return fmt.Sprintf("%v at %d", ErrCleared, e.At)
}

func (e *ClearedError) Is(target error) bool {
	return target == ErrCleared
}

// ClearedAtOf returns the clear time carried by err, if it reports one.
func ClearedAtOf(err error) (int64, bool) {
	var cleared *ClearedError
	if errors.As(err, &cleared) {
		return cleared.At, true
	}
	return 0, false
}

// Retention bounds how long daily and weekly entries are kept.
type Retention struct {
	DailyDays  int
	WeeklyDays int
}

// DefaultRetention keeps 7 days and 4 weeks.
func DefaultRetention() Retention {
	return Retention{DailyDays: 7, WeeklyDays: 28}
}

// Store owns the in-memory rollups. It is not safe for concurrent use:
// Apply, Prune, Load and Snapshot must be called from one goroutine.
// Persist only reads its argument and may run elsewhere.
type Store struct {
	kv        storage.KV
	calendar  Calendar
	retention Retention
	data      Snapshot
}

// NewStore creates a Store with empty rollups. Call Load to read the
// persisted state.
func NewStore(kv storage.KV, calendar Calendar, retention Retention) *Store {
	return &Store{
		kv:        kv,
		calendar:  calendar,
		retention: retention,
		data:      Empty(),
	}
}

// Calendar returns the calendar used for keys.
func (s *Store) Calendar() Calendar {
	return s.calendar
}

// Load replaces the in-memory rollups with the persisted ones. When the
// store has never been initialized, empty rollups and the installation
// time are written and initialized is true.
func (s *Store) Load(ctx context.Context, now time.Time) (initialized bool, err error) {
	entries, err := s.kv.Get(ctx, AllKeys...)
	if err != nil {
		return false, fmt.Errorf("load aggregates: %w", err)
	}

	if _, ok := entries[KeyTimeSpent]; !ok {
		snap := Empty()
		snap.InstalledAt = now.UnixMilli()
		snap.ClearedAt, err = decodeMillis(entries, KeyClearedAt)
		if err != nil {
			return false, err
		}
		if err := s.Persist(ctx, snap, now); err != nil {
			return false, fmt.Errorf("initialize aggregates: %w", err)
		}
		snap.LastUpdate = now.UnixMilli()
		s.data = snap
		return true, nil
	}

	snap, err := Decode(entries)
	if err != nil {
		return false, err
	}
	s.data = snap
	return false, nil
}

// Apply adds delta milliseconds for host to the lifetime, day and week
// rollups of now, then prunes expired periods. Negative deltas are ignored.
// Host is used literally; callers filter unattributable hosts.
func (s *Store) Apply(host string, delta int64, now time.Time) {
	if delta < 0 {
		return
	}
	day := s.calendar.DayKey(now)
	week := s.calendar.WeekKey(now)

	s.data.AllTime[host] += delta
	addTo(s.data.Daily, day, host, delta)
	addTo(s.data.Weekly, week, host, delta)

	s.Prune(now)
}

func addTo(p Periods, key, host string, delta int64) {
	totals, ok := p[key]
	if !ok {
		totals = HostTotals{}
		p[key] = totals
	}
	totals[host] += delta
}

// Prune drops expired daily and weekly entries from the in-memory rollups
// and returns how many were removed.
func (s *Store) Prune(now time.Time) (days, weeks int) {
	d, w := PruneExpired(s.data, s.calendar, s.retention, now)
	return len(d), len(w)
}

// PruneExpired drops daily and weekly entries dated on or before the
// retention horizon from snap, comparing calendar dates, so a 7-day window
// keeps today and the 6 days before it. Keys that are not dates are dropped too. The removed keys are
// returned in order.
func PruneExpired(snap Snapshot, cal Calendar, ret Retention, now time.Time) (days, weeks []string) {
	days = prunePeriods(snap.Daily, cal.DaysBefore(now, ret.DailyDays))
	weeks = prunePeriods(snap.Weekly, cal.DaysBefore(now, ret.WeeklyDays))
	return days, weeks
}

func prunePeriods(p Periods, cutoff string) []string {
	var removed []string
	for key := range p {
		if _, err := ParseKey(key); err != nil || key <= cutoff {
			delete(p, key)
			removed = append(removed, key)
		}
	}
	sort.Strings(removed)
	return removed
}

// ClearedAt returns the clear time the in-memory rollups descend from.
func (s *Store) ClearedAt() int64 {
	return s.data.ClearedAt
}

// Snapshot returns a deep copy of the in-memory rollups.
func (s *Store) Snapshot() Snapshot {
	return s.data.Clone()
}

// Persist writes snap with lastUpdate set to at. It returns a
// *ClearedError if the backing store was cleared after snap was loaded;
// the check and the write are one transaction.
func (s *Store) Persist(ctx context.Context, snap Snapshot, at time.Time) error {
	entries, err := Encode(snap, at.UnixMilli())
	if err != nil {
		return err
	}
	err = s.kv.SetGuarded(ctx, KeyClearedAt, snap.ClearedAt, entries)
	var guardErr *storage.GuardError
	if errors.As(err, &guardErr) {
		return &ClearedError{At: guardErr.Value}
	}
	if err != nil {
		return fmt.Errorf("persist aggregates: %w", err)
	}
	return nil
}

// Merge applies a delta and persists all rollups. A persistence failure is
// returned but the in-memory merge is kept, so the next Merge or Persist
// writes it.
func (s *Store) Merge(ctx context.Context, host string, delta int64, now time.Time) error {
	s.Apply(host, delta, now)
	return s.Persist(ctx, s.Snapshot(), now)
}

// Clear deletes every persisted key and starts over with empty rollups.
func (s *Store) Clear(ctx context.Context, now time.Time) error {
	if err := ClearKV(ctx, s.kv, now); err != nil {
		return err
	}
	_, err := s.Load(ctx, now)
	return err
}

// ClearKV deletes every key in kv and records the clear time in the same
// transaction, which makes writers holding older snapshots fail with
// ErrCleared.
func ClearKV(ctx context.Context, kv storage.KV, now time.Time) error {
	stamp := []byte(strconv.FormatInt(now.UnixMilli(), 10))
	if err := kv.Reset(ctx, map[string][]byte{KeyClearedAt: stamp}); err != nil {
		return fmt.Errorf("clear aggregates: %w", err)
	}
	return nil
}
