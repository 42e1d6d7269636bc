package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/runnerr0/tabtime/internal/aggregate"
	"github.com/runnerr0/tabtime/internal/config"
	"github.com/runnerr0/tabtime/internal/storage"
)

// session is the configuration and storage a command runs against.
type session struct {
	cfg        *config.Config
	configPath string
	dbPath     string
	store      *storage.SQLiteStore
	ownsStore  bool
}

// openSession loads the config and opens the database, unless either was
// injected.
func openSession(globals *GlobalFlags, cfg *config.Config, store *storage.SQLiteStore) (*session, error) {
	s := &session{cfg: cfg, store: store}

	if s.cfg == nil {
		var err error
		s.cfg, s.configPath, err = loadConfig(globals)
		if err != nil {
			return nil, err
		}
	}

	dbPath, err := s.cfg.DatabasePath()
	if err != nil {
		return nil, fmt.Errorf("resolve db path: %w", err)
	}
	s.dbPath = dbPath

	if s.store == nil {
		s.store, err = storage.Open(dbPath, s.cfg.Storage.SQLiteJournalMode)
		if err != nil {
			return nil, err
		}
		s.ownsStore = true
	}
	return s, nil
}

func (s *session) Close() {
	if s.ownsStore {
		s.store.Close()
	}
}

// loadConfig reads the file named by --config, or the default config,
// creating it on first use. It returns the resolved path.
func loadConfig(globals *GlobalFlags) (*config.Config, string, error) {
	if globals != nil && globals.Config != "" {
		path, err := config.ExpandPath(globals.Config)
		if err != nil {
			return nil, "", err
		}
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}

	path, err := config.ExpandPath(config.DefaultConfigPath)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.LoadOrCreateAt(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// calendarFor builds the day/week calendar from the tracking config.
func calendarFor(cfg *config.Config) (aggregate.Calendar, error) {
	loc, err := cfg.Location()
	if err != nil {
		return aggregate.Calendar{}, err
	}
	start, err := cfg.WeekStartDay()
	if err != nil {
		return aggregate.Calendar{}, err
	}
	return aggregate.Calendar{Location: loc, WeekStart: start}, nil
}

func retentionFor(cfg *config.Config) aggregate.Retention {
	return aggregate.Retention{
		DailyDays:  cfg.Retention.DailyDays,
		WeeklyDays: cfg.Retention.WeeklyDays,
	}
}

func nowOr(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatMillisTime renders an epoch-ms timestamp in local time, or "never".
func formatMillisTime(ms int64) string {
	if ms == 0 {
		return "never"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
		if len(s) > remainder {
			result.WriteString(",")
		}
	}
	for i := remainder; i < len(s); i += 3 {
		if i > remainder {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}
