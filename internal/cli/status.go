package cli

import (
	"context"
	"fmt"

	"github.com/runnerr0/tabtime/internal/dashboard"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string `json:"version"`
	DatabasePath      string `json:"database_path"`
	DatabaseSizeBytes int64  `json:"database_size_bytes"`
	Keys              int64  `json:"keys"`
	InstalledAt       int64  `json:"installed_at,omitempty"`
	LastUpdate        int64  `json:"last_update,omitempty"`
	ClearedAt         int64  `json:"cleared_at,omitempty"`
	Hosts             int    `json:"hosts"`
	DaysRetained      int    `json:"days_retained"`
	WeeksRetained     int    `json:"weeks_retained"`
	TotalTrackedMs    int64  `json:"total_tracked_ms"`
	RetentionDays     int    `json:"retention_days"`
	RetentionWeekDays int    `json:"retention_week_days"`
	FlushIntervalSecs int    `json:"flush_interval_seconds"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	s, err := openSession(c.globals, c.cfg, c.store)
	if err != nil {
		return err
	}
	defer s.Close()

	return c.executeWithSession(context.Background(), s)
}

func (c *StatusCommand) executeWithSession(ctx context.Context, s *session) error {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	snap, err := dashboard.NewKVReader(s.store).Snapshot(ctx)
	if err != nil {
		return err
	}

	out := statusJSON{
		Version:           c.version,
		DatabasePath:      s.dbPath,
		DatabaseSizeBytes: stats.DatabaseSizeBytes,
		Keys:              stats.Keys,
		InstalledAt:       snap.InstalledAt,
		LastUpdate:        snap.LastUpdate,
		ClearedAt:         snap.ClearedAt,
		Hosts:             len(snap.AllTime),
		DaysRetained:      len(snap.Daily),
		WeeksRetained:     len(snap.Weekly),
		TotalTrackedMs:    snap.AllTime.Total(),
		RetentionDays:     s.cfg.Retention.DailyDays,
		RetentionWeekDays: s.cfg.Retention.WeeklyDays,
		FlushIntervalSecs: s.cfg.Tracking.FlushIntervalSeconds,
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(out)
	}
	c.printHuman(out)
	return nil
}

func (c *StatusCommand) printHuman(out statusJSON) {
	fmt.Println("tabtime Status")
	fmt.Println("==============")
	fmt.Printf("Version:       %s\n", out.Version)
	fmt.Printf("Database:      %s (%s)\n", out.DatabasePath, formatBytes(out.DatabaseSizeBytes))
	fmt.Printf("Keys:          %s\n", formatNumber(out.Keys))
	fmt.Printf("Installed:     %s\n", formatMillisTime(out.InstalledAt))
	fmt.Printf("Last flush:    %s\n", formatMillisTime(out.LastUpdate))
	if out.ClearedAt != 0 {
		fmt.Printf("Last cleared:  %s\n", formatMillisTime(out.ClearedAt))
	}
	fmt.Println()
	fmt.Printf("Sites:         %s\n", formatNumber(int64(out.Hosts)))
	fmt.Printf("Tracked:       %s\n", dashboard.FormatHours(out.TotalTrackedMs))
	fmt.Printf("Days kept:     %d (retention %d days)\n", out.DaysRetained, out.RetentionDays)
	fmt.Printf("Weeks kept:    %d (retention %d days)\n", out.WeeksRetained, out.RetentionWeekDays)
	fmt.Printf("Flush every:   %ds\n", out.FlushIntervalSecs)
}
