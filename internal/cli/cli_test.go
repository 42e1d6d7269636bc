package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionFlag(t *testing.T) {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := RunWithArgs("0.1.0-test", []string{"--version"})

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	output := buf.String()

	assert.NoError(t, err)
	assert.Contains(t, output, "tabtime 0.1.0-test")
}

func TestVersionOutputFormat(t *testing.T) {
	output := captureOutput(t, func() {
		_ = RunWithArgs("1.2.3", []string{"--version"})
	})

	assert.Equal(t, "tabtime 1.2.3", strings.TrimSpace(output))
}

func TestAllSubcommandsExist(t *testing.T) {
	expected := []string{"run", "status", "report", "prune", "clear"}
	parser, _, _ := buildParser("test")

	for _, name := range expected {
		cmd := parser.Find(name)
		assert.NotNil(t, cmd, "subcommand %q should exist", name)
	}
}

func TestUnknownSubcommandFails(t *testing.T) {
	parser, _, _ := buildParser("test")
	_, err := parser.ParseArgs([]string{"nonexistent"})
	require.Error(t, err)
}

func TestHelpFlagDoesNotError(t *testing.T) {
	err := RunWithArgs("test", []string{"--help"})
	assert.NoError(t, err)
}

func TestGlobalFlagsJSON(t *testing.T) {
	parser, globals, _ := buildParser("test")
	_, err := parser.ParseArgs([]string{"--json", "prune", "--dry-run", "--config", missingConfig(t)})
	require.Error(t, err, "missing config file is reported")
	assert.True(t, globals.JSON)
}

func TestGlobalFlagsConfig(t *testing.T) {
	parser, globals, _ := buildParser("test")
	_, err := parser.ParseArgs([]string{"--config", missingConfig(t), "status"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
	assert.Equal(t, missingConfig(t), globals.Config)
}

func TestReportFlagsDefaults(t *testing.T) {
	p, _, c := buildParser("test")
	_, _ = p.ParseArgs([]string{"report", "--config", missingConfig(t)})

	assert.Equal(t, "today", c.Report.Period)
	assert.Equal(t, 10, c.Report.Limit)
	assert.Empty(t, c.Report.Date)
}

func TestReportFlags(t *testing.T) {
	p, _, c := buildParser("test")
	_, _ = p.ParseArgs([]string{"report", "--period", "week", "--date", "2025-03-10", "--limit", "3", "--config", missingConfig(t)})

	assert.Equal(t, "week", c.Report.Period)
	assert.Equal(t, "2025-03-10", c.Report.Date)
	assert.Equal(t, 3, c.Report.Limit)
}

func TestRunFlushIntervalFlag(t *testing.T) {
	p, _, c := buildParser("test")
	_, _ = p.ParseArgs([]string{"run", "--flush-interval", "30", "--config", missingConfig(t)})
	assert.Equal(t, 30, c.Run.FlushInterval)
}

func TestPruneDryRunFlag(t *testing.T) {
	p, _, c := buildParser("test")
	_, _ = p.ParseArgs([]string{"prune", "--dry-run", "--config", missingConfig(t)})
	assert.True(t, c.Prune.DryRun)
}

func TestClearRequiresAll(t *testing.T) {
	err := RunWithArgs("test", []string{"clear"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clear requires --all flag for safety")
}

func TestLoadConfig_ExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabtime.toml")
	require.NoError(t, os.WriteFile(path, []byte("[tracking]\nflush_interval_seconds = 30\n"), 0644))

	cfg, resolved, err := loadConfig(&GlobalFlags{Config: path})
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
	assert.Equal(t, 30, cfg.Tracking.FlushIntervalSeconds)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "4.0 KB", formatBytes(4096))
	assert.Equal(t, "1.5 MB", formatBytes(3<<19))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "0", formatNumber(0))
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "1,000", formatNumber(1000))
	assert.Equal(t, "1,234,567", formatNumber(1234567))
}

// missingConfig is a config path that does not exist, so commands fail
// before touching the user's real configuration.
func missingConfig(t *testing.T) string {
	return filepath.Join(os.TempDir(), "tabtime-test-missing", t.Name()+".yaml")
}
