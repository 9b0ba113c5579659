// Package config defines service configuration and how it is loaded.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFile, when set, routes logs to a rotating file instead of stdout.
	LogFile string `koanf:"log_file"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// DBDriver is sqlite or postgres; DBDSN is passed to the driver as-is.
	DBDriver string `koanf:"db_driver" validate:"oneof=sqlite postgres"`
	DBDSN    string `koanf:"db_dsn" validate:"required"`

	// QueueSize bounds the in-memory sync request queue.
	QueueSize int `koanf:"queue_size" validate:"min=1"`

	// WorkerCount sets the number of sync workers.
	WorkerCount int `koanf:"worker_count" validate:"min=1"`

	// DedupeSize caps the number of tracked in-flight sync requests.
	DedupeSize int `koanf:"dedupe_size" validate:"min=1"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit" validate:"min=1"`

	// AggregatePartitions is the fan-out used by concurrent aggregation.
	AggregatePartitions int `koanf:"aggregate_partitions" validate:"min=1"`

	// AliasTableFile is an optional YAML file overriding column aliases.
	AliasTableFile string `koanf:"alias_table_file"`

	// DuplicateThreshold is the title similarity at which two applications
	// from the same applicant are reported.
	DuplicateThreshold float64 `koanf:"duplicate_threshold" validate:"gt=0,lte=1"`

	// SyncIntervalSec schedules a resync of SyncScoreSets; 0 disables it.
	SyncIntervalSec int      `koanf:"sync_interval_sec" validate:"min=0"`
	SyncScoreSets   []string `koanf:"sync_score_sets"`

	PlatformBaseURL        string `koanf:"platform_base_url" validate:"omitempty,url"`
	PlatformAPIKey         string `koanf:"platform_api_key"`
	PlatformPageSize       int    `koanf:"platform_page_size" validate:"min=1,max=500"`
	PlatformRequestDelayMS int    `koanf:"platform_request_delay_ms" validate:"min=0"`
	PlatformMaxRetries     int    `koanf:"platform_max_retries" validate:"min=0"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		Addr:                   ":9080",
		DBDriver:               "sqlite",
		DBDSN:                  "file:reviewrank.db?_pragma=busy_timeout(5000)",
		QueueSize:              64,
		WorkerCount:            2,
		DedupeSize:             1024,
		MaxLeaderboardLimit:    100,
		AggregatePartitions:    runtime.NumCPU(),
		DuplicateThreshold:     0.85,
		PlatformPageSize:       50,
		PlatformRequestDelayMS: 250,
		PlatformMaxRetries:     3,
	}
}

// SyncInterval is SyncIntervalSec as a duration.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalSec) * time.Second
}

// PlatformRequestDelay is PlatformRequestDelayMS as a duration.
func (c *Config) PlatformRequestDelay() time.Duration {
	return time.Duration(c.PlatformRequestDelayMS) * time.Millisecond
}
