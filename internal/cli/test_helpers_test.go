package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/runnerr0/tabtime/internal/aggregate"
	"github.com/runnerr0/tabtime/internal/config"
	"github.com/runnerr0/tabtime/internal/storage"
)

// Wednesday, 15:30 UTC.
var day0 = time.Date(2025, 3, 12, 15, 30, 0, 0, time.UTC)

func fixedNow() time.Time { return day0 }

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// testConfig returns defaults in UTC with storage under a temp dir.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Tracking.Timezone = "UTC"
	cfg.Storage.Path = t.TempDir()
	cfg.Logging.File = ""
	return cfg
}

// openTestStore creates a migrated in-memory store.
func openTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.Open(":memory:", "memory")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// seed writes snap to store as the engine would.
func seed(t *testing.T, store storage.KV, snap aggregate.Snapshot) {
	t.Helper()
	entries, err := aggregate.Encode(snap, day0.UnixMilli())
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), entries))
}

// sampleSnapshot has today, yesterday, a stale day and a stale week.
func sampleSnapshot() aggregate.Snapshot {
	snap := aggregate.Empty()
	snap.InstalledAt = day0.AddDate(0, -1, 0).UnixMilli()
	snap.AllTime = aggregate.HostTotals{"github.com": 7200000, "go.dev": 1800000, "old.com": 600000}
	snap.Daily = aggregate.Periods{
		"2025-03-12": {"github.com": 3600000, "go.dev": 1800000},
		"2025-03-11": {"github.com": 3600000},
		"2025-02-01": {"old.com": 600000},
	}
	snap.Weekly = aggregate.Periods{
		"2025-03-09": {"github.com": 7200000, "go.dev": 1800000},
		"2025-01-26": {"old.com": 600000},
	}
	return snap
}

func readSnapshot(t *testing.T, store storage.KV) aggregate.Snapshot {
	t.Helper()
	entries, err := store.Get(context.Background(), aggregate.AllKeys...)
	require.NoError(t, err)
	snap, err := aggregate.Decode(entries)
	require.NoError(t, err)
	return snap
}
