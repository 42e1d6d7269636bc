package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage: store is closed")

// KV is the key-value capability the aggregates are persisted through.
// Values are opaque bytes; callers encode them.
type KV interface {
	// Get returns the values for the keys that exist. Missing keys are
	// absent from the result, not an error.
	Get(ctx context.Context, keys ...string) (map[string][]byte, error)
	// Set writes all entries atomically.
	Set(ctx context.Context, entries map[string][]byte) error
	// SetGuarded writes all entries atomically unless the integer stored
	// under guard exceeds limit, in which case nothing is written and a
	// *GuardError is returned.
	SetGuarded(ctx context.Context, guard string, limit int64, entries map[string][]byte) error
	// Reset removes every key and writes entries, atomically.
	Reset(ctx context.Context, entries map[string][]byte) error
}

// GuardError reports a guarded write refused because the guard value was
// newer than the writer's.
type GuardError struct {
	Key   string
	Value int64
	Limit int64
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("storage: %s is %d, newer than %d", e.Key, e.Value, e.Limit)
}

// Stats holds aggregate statistics about the backing database.
type Stats struct {
	Keys              int64
	TotalValueBytes   int64
	LastWrite         time.Time
	DatabaseSizeBytes int64
}

var _ KV = (*SQLiteStore)(nil)
