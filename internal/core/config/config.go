package config

import (
	"time"

	redisclient "github.com/ductran/recoverd/internal/infra/redis"
	"github.com/ductran/recoverd/internal/infra/storage/postgres"
	"github.com/ductran/recoverd/internal/recovery/consistency"
	"github.com/ductran/recoverd/internal/recovery/retry"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig            `yaml:"server"`
	Logging    LoggingConfig           `yaml:"logging"`
	Database   postgres.Config         `yaml:"database"`
	Redis      redisclient.Config      `yaml:"redis"`
	Scheduler  SchedulerConfig         `yaml:"scheduler"`
	Validation ValidationConfig        `yaml:"validation"`
	Retention  RetentionConfig         `yaml:"retention"`
	Operations map[string]retry.Config `yaml:"operations"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// SchedulerConfig holds retry scheduler settings.
type SchedulerConfig struct {
	Workers int `yaml:"workers"`
}

// ValidationConfig holds consistency validation settings.
type ValidationConfig struct {
	// Schedule is a cron spec; empty disables periodic validation.
	Schedule string `yaml:"schedule"`

	// RollupSchedule is the cron spec of the daily statistics summary.
	RollupSchedule string `yaml:"rollup_schedule"`

	Checks consistency.Config `yaml:"checks"`
}

// RetentionConfig holds pruning settings. Checkpoints are never pruned.
type RetentionConfig struct {
	ResolvedFailures time.Duration `yaml:"resolved_failures"`
	ValidationLogs   time.Duration `yaml:"validation_logs"`
	Interval         time.Duration `yaml:"interval"`
}
