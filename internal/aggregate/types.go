// Package aggregate keeps the lifetime, daily and weekly rollups of time
// spent per host and persists them through a key-value store.
package aggregate

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Persisted keys.
const (
	KeyTimeSpent   = "timeSpent"
	KeyDailyData   = "dailyData"
	KeyWeeklyData  = "weeklyData"
	KeyLastUpdate  = "lastUpdate"
	KeyInstalledAt = "installedAt"
	KeyClearedAt   = "clearedAt"
)

// AllKeys lists every key the aggregates occupy.
var AllKeys = []string{
	KeyTimeSpent, KeyDailyData, KeyWeeklyData,
	KeyLastUpdate, KeyInstalledAt, KeyClearedAt,
}

// HostTotals maps a host to accumulated milliseconds.
type HostTotals map[string]int64

// Periods maps a day or week key to per-host totals.
type Periods map[string]HostTotals

// Snapshot is a full copy of the persisted state.
type Snapshot struct {
	AllTime HostTotals
	Daily   Periods
	Weekly  Periods

	// Epoch milliseconds; zero when unknown.
	LastUpdate  int64
	InstalledAt int64
	ClearedAt   int64
}

// Empty returns a snapshot with initialized, empty rollups.
func Empty() Snapshot {
	return Snapshot{
		AllTime: HostTotals{},
		Daily:   Periods{},
		Weekly:  Periods{},
	}
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		AllTime:     s.AllTime.Clone(),
		Daily:       s.Daily.Clone(),
		Weekly:      s.Weekly.Clone(),
		LastUpdate:  s.LastUpdate,
		InstalledAt: s.InstalledAt,
		ClearedAt:   s.ClearedAt,
	}
	return out
}

// Clone returns a copy of t. A nil receiver yields an empty map.
func (t HostTotals) Clone() HostTotals {
	out := make(HostTotals, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Total sums all hosts.
func (t HostTotals) Total() int64 {
	var sum int64
	for _, v := range t {
		sum += v
	}
	return sum
}

// Clone returns a deep copy of p.
func (p Periods) Clone() Periods {
	out := make(Periods, len(p))
	for k, v := range p {
		out[k] = v.Clone()
	}
	return out
}

// Encode serializes the snapshot into KV entries, stamping lastUpdate.
func Encode(s Snapshot, lastUpdate int64) (map[string][]byte, error) {
	allTime, err := json.Marshal(nonNilTotals(s.AllTime))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", KeyTimeSpent, err)
	}
	daily, err := json.Marshal(nonNilPeriods(s.Daily))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", KeyDailyData, err)
	}
	weekly, err := json.Marshal(nonNilPeriods(s.Weekly))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", KeyWeeklyData, err)
	}

	entries := map[string][]byte{
		KeyTimeSpent:  allTime,
		KeyDailyData:  daily,
		KeyWeeklyData: weekly,
		KeyLastUpdate: []byte(strconv.FormatInt(lastUpdate, 10)),
	}
	if s.InstalledAt != 0 {
		entries[KeyInstalledAt] = []byte(strconv.FormatInt(s.InstalledAt, 10))
	}
	return entries, nil
}

// Decode rebuilds a snapshot from KV entries. Missing rollups decode as
// empty; present but malformed values are an error.
func Decode(entries map[string][]byte) (Snapshot, error) {
	s := Empty()

	if raw, ok := entries[KeyTimeSpent]; ok {
		if err := json.Unmarshal(raw, &s.AllTime); err != nil {
			return Snapshot{}, fmt.Errorf("decode %s: %w", KeyTimeSpent, err)
		}
	}
	if raw, ok := entries[KeyDailyData]; ok {
		if err := json.Unmarshal(raw, &s.Daily); err != nil {
			return Snapshot{}, fmt.Errorf("decode %s: %w", KeyDailyData, err)
		}
	}
	if raw, ok := entries[KeyWeeklyData]; ok {
		if err := json.Unmarshal(raw, &s.Weekly); err != nil {
			return Snapshot{}, fmt.Errorf("decode %s: %w", KeyWeeklyData, err)
		}
	}

	var err error
	if s.LastUpdate, err = decodeMillis(entries, KeyLastUpdate); err != nil {
		return Snapshot{}, err
	}
	if s.InstalledAt, err = decodeMillis(entries, KeyInstalledAt); err != nil {
		return Snapshot{}, err
	}
	if s.ClearedAt, err = decodeMillis(entries, KeyClearedAt); err != nil {
		return Snapshot{}, err
	}

	// A JSON null leaves the maps nil.
	s.AllTime = nonNilTotals(s.AllTime)
	s.Daily = nonNilPeriods(s.Daily)
	s.Weekly = nonNilPeriods(s.Weekly)
	return s, nil
}

func decodeMillis(entries map[string][]byte, key string) (int64, error) {
	raw, ok := entries[key]
	if !ok || len(raw) == 0 {
		return 0, nil
	}
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}

func nonNilTotals(t HostTotals) HostTotals {
	if t == nil {
		return HostTotals{}
	}
	return t
}

func nonNilPeriods(p Periods) Periods {
	if p == nil {
		return Periods{}
	}
	for k, v := range p {
		if v == nil {
			p[k] = HostTotals{}
		}
	}
	return p
}
