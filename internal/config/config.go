package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/tabtime/config.yaml"

// Config holds all tabtime configuration.
type Config struct {
	Tracking  TrackingConfig  `yaml:"tracking" toml:"tracking"`
	Retention RetentionConfig `yaml:"retention" toml:"retention"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
}

type TrackingConfig struct {
	FlushIntervalSeconds int      `yaml:"flush_interval_seconds" toml:"flush_interval_seconds"`
	WeekStart            string   `yaml:"week_start" toml:"week_start"`
	Timezone             string   `yaml:"timezone" toml:"timezone"`
	DenylistPatterns     []string `yaml:"denylist_patterns" toml:"denylist_patterns"`
	DenylistDomains      []string `yaml:"denylist_domains" toml:"denylist_domains"`
	DenylistRegex        []string `yaml:"denylist_regex" toml:"denylist_regex"`
}

type RetentionConfig struct {
	DailyDays  int `yaml:"daily_days" toml:"daily_days"`
	WeeklyDays int `yaml:"weekly_days" toml:"weekly_days"`
}

type StorageConfig struct {
	Path              string `yaml:"path" toml:"path"`
	SQLiteFile        string `yaml:"sqlite_file" toml:"sqlite_file"`
	SQLiteJournalMode string `yaml:"sqlite_journal_mode" toml:"sqlite_journal_mode"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	File   string `yaml:"file" toml:"file"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Listen  string `yaml:"listen" toml:"listen"`
}

// FlushInterval returns the periodic flush cadence.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.Tracking.FlushIntervalSeconds) * time.Second
}

// Location resolves the configured timezone. An empty value means the
// local zone of the process.
func (c *Config) Location() (*time.Location, error) {
	if c.Tracking.Timezone == "" || strings.EqualFold(c.Tracking.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Tracking.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Tracking.Timezone, err)
	}
	return loc, nil
}

// WeekStartDay maps the configured week start name to a weekday.
func (c *Config) WeekStartDay() (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(c.Tracking.WeekStart))
	if name == "" {
		return time.Sunday, nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == name {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown week_start %q", c.Tracking.WeekStart)
}

// DatabasePath returns the absolute path of the SQLite file.
func (c *Config) DatabasePath() (string, error) {
	dir, err := expandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Storage.SQLiteFile), nil
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	if c.Tracking.FlushIntervalSeconds <= 0 {
		return fmt.Errorf("tracking.flush_interval_seconds must be positive, got %d", c.Tracking.FlushIntervalSeconds)
	}
	if c.Retention.DailyDays <= 0 {
		return fmt.Errorf("retention.daily_days must be positive, got %d", c.Retention.DailyDays)
	}
	if c.Retention.WeeklyDays <= 0 {
		return fmt.Errorf("retention.weekly_days must be positive, got %d", c.Retention.WeeklyDays)
	}
	if _, err := c.WeekStartDay(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	for _, expr := range c.Tracking.DenylistRegex {
		if _, err := regexp.Compile(expr); err != nil {
			return fmt.Errorf("tracking.denylist_regex %q: %w", expr, err)
		}
	}
	if c.Storage.SQLiteFile == "" {
		return fmt.Errorf("storage.sqlite_file must not be empty")
	}
	return nil
}

// Load reads a YAML or TOML config file at path and merges it with defaults.
// The format is chosen by file extension; anything other than .toml is
// parsed as YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		var data []byte
		if strings.ToLower(filepath.Ext(path)) == ".toml" {
			var buf strings.Builder
			if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
				return nil, fmt.Errorf("marshaling default config: %w", err)
			}
			data = []byte(buf.String())
		} else {
			data, err = yaml.Marshal(cfg)
			if err != nil {
				return nil, fmt.Errorf("marshaling default config: %w", err)
			}
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}
