package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Tracking: TrackingConfig{
			FlushIntervalSeconds: 10,
			WeekStart:            "sunday",
			Timezone:             "",
			DenylistPatterns:     DefaultDenylistPatterns(),
			DenylistDomains:      []string{},
			DenylistRegex:        []string{},
		},
		Retention: RetentionConfig{
			DailyDays:  7,
			WeeklyDays: 28,
		},
		Storage: StorageConfig{
			Path:              "~/.config/tabtime",
			SQLiteFile:        "tabtime.db",
			SQLiteJournalMode: "wal",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9464",
		},
	}
}
