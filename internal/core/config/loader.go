package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Scheduler.Workers <= 0 {
		cfg.Scheduler.Workers = 4
	}
	if cfg.Validation.Schedule == "" {
		cfg.Validation.Schedule = "@every 15m"
	}
	if cfg.Validation.RollupSchedule == "" {
		cfg.Validation.RollupSchedule = "0 0 * * *"
	}
	if cfg.Retention.ResolvedFailures <= 0 {
		cfg.Retention.ResolvedFailures = 30 * 24 * time.Hour
	}
	if cfg.Retention.ValidationLogs <= 0 {
		cfg.Retention.ValidationLogs = 14 * 24 * time.Hour
	}
	if cfg.Retention.Interval <= 0 {
		cfg.Retention.Interval = time.Hour
	}
}
