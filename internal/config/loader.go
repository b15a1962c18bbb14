package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"log-triage/internal/types"
)

// LoadConfig reads the configuration from the given path
func LoadConfig(path string) (*types.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	var cfg types.Config
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given
func Default() *types.Config {
	var cfg types.Config
	// Defaults never fail validation
	_ = validateConfig(&cfg)
	return &cfg
}

// validateConfig applies defaults and hard rules
func validateConfig(cfg *types.Config) error {
	if cfg.Input.WebLogPath == "" {
		cfg.Input.WebLogPath = "/var/log/nginx/access.log"
	}
	if cfg.Input.MaxLines < 0 {
		return fmt.Errorf("input.max_lines must not be negative, got %d", cfg.Input.MaxLines)
	}

	// Detection defaults
	switch cfg.Detection.AlertMode {
	case "":
		cfg.Detection.AlertMode = types.AlertModeEvery
	case types.AlertModeEvery, types.AlertModeEdge:
	default:
		return fmt.Errorf("detection.alert_mode must be %q or %q, got %q", types.AlertModeEvery, types.AlertModeEdge, cfg.Detection.AlertMode)
	}
	defaultRule(&cfg.Detection.HighRate, time.Minute, 100, 0)
	defaultRule(&cfg.Detection.BruteForce, 5*time.Minute, 10, 5)
	defaultRule(&cfg.Detection.Scanning, time.Minute, 50, 0)
	if cfg.Detection.Shards <= 0 {
		cfg.Detection.Shards = 1
	}

	if cfg.Notification.PerMinute <= 0 {
		cfg.Notification.PerMinute = 30
	}

	if cfg.Dashboard.Port == "" {
		cfg.Dashboard.Port = ":8080"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "outputs"
	}
	if cfg.Output.JSONPath == "" {
		cfg.Output.JSONPath = filepath.Join(cfg.Output.Dir, "alerts.json")
	}
	if cfg.Output.CSVPath == "" {
		cfg.Output.CSVPath = filepath.Join(cfg.Output.Dir, "alerts.csv")
	}
	if cfg.Output.AuditLogPath == "" {
		cfg.Output.AuditLogPath = filepath.Join(cfg.Output.Dir, "alerts.jsonl")
	}
	return nil
}

func defaultRule(r *types.DetectionRule, window time.Duration, threshold, samples int) {
	if r.Window <= 0 {
		r.Window = window
	}
	if r.Threshold <= 0 {
		r.Threshold = threshold
	}
	if r.Samples <= 0 {
		r.Samples = samples
	}
}
