package cli

import (
	"io"
	"time"

	"github.com/runnerr0/tabtime/internal/config"
	"github.com/runnerr0/tabtime/internal/storage"
)

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file (.yaml or .toml)" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// RunCommand runs the native messaging host.
type RunCommand struct {
	FlushInterval int `long:"flush-interval" description:"Override flush interval in seconds"`

	globals *GlobalFlags
	version string
	cfg     *config.Config       // injectable for testing; nil means load from disk
	store   *storage.SQLiteStore // injectable for testing; nil means open configured DB
}

// StatusCommand shows storage health and aggregate statistics.
type StatusCommand struct {
	globals *GlobalFlags
	version string
	cfg     *config.Config
	store   *storage.SQLiteStore
}

// ReportCommand prints time spent per site for a period.
type ReportCommand struct {
	Period string `long:"period" description:"Period to report: today | week | all" default:"today"`
	Date   string `long:"date" description:"Day (YYYY-MM-DD) to report; for week, any day in the week"`
	Limit  int    `long:"limit" description:"Maximum sites to list (0 for all)" default:"10"`

	globals *GlobalFlags
	version string
	cfg     *config.Config
	store   *storage.SQLiteStore
	now     func() time.Time
}

// PruneCommand applies retention pruning now.
type PruneCommand struct {
	DryRun bool `long:"dry-run" description:"Show what would be pruned without deleting"`

	globals *GlobalFlags
	version string
	cfg     *config.Config
	store   *storage.SQLiteStore
	now     func() time.Time
}

// ClearCommand deletes all tracked time after confirmation.
type ClearCommand struct {
	All   bool `long:"all" description:"Required flag to confirm clear intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	cfg     *config.Config
	store   *storage.SQLiteStore
	in      io.Reader // confirmation input; nil means stdin
}
