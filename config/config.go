// Package config resolves the runtime configuration of the attendance engine.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/warp/attendance-engine/attendance"
)

// Config is the resolved runtime configuration.
type Config struct {
	HTTPPort     int    `yaml:"http_port" env:"HTTP_PORT"`
	DatabasePath string `yaml:"database_path" env:"DATABASE_PATH"`
	RedisURL     string `yaml:"redis_url" env:"REDIS_URL"`

	Kafka    Kafka    `yaml:"kafka"`
	Schedule Schedule `yaml:"schedule"`

	SchedulerEnabled  bool          `yaml:"scheduler_enabled" env:"SCHEDULER_ENABLED"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval" env:"RECONCILE_INTERVAL"`
	StoreTimeout      time.Duration `yaml:"store_timeout" env:"STORE_TIMEOUT"`
	LogLevel          string        `yaml:"log_level" env:"LOG_LEVEL"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC"`
	GroupID string   `yaml:"group_id" env:"KAFKA_GROUP_ID"`
}

// Enabled reports whether scan ingestion from Kafka is configured.
func (k Kafka) Enabled() bool { return len(k.Brokers) > 0 }

type Schedule struct {
	Arrival         string `yaml:"arrival" env:"SCHEDULE_ARRIVAL"`
	Departure       string `yaml:"departure" env:"SCHEDULE_DEPARTURE"`
	TimeZone        string `yaml:"time_zone" env:"SCHEDULE_TIME_ZONE"`
	StrictDeparture bool   `yaml:"strict_departure" env:"SCHEDULE_STRICT_DEPARTURE"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPPort:     8080,
		DatabasePath: "attendance.db",
		Kafka: Kafka{
			Topic:   "badge-scans",
			GroupID: "attendance-engine",
		},
		Schedule: Schedule{
			Arrival:   "9:00 AM",
			Departure: "5:00 PM",
			TimeZone:  "UTC",
		},
		SchedulerEnabled:  true,
		ReconcileInterval: time.Hour,
		StoreTimeout:      attendance.DefaultStoreTimeout,
		LogLevel:          "info",
	}
}

// Load resolves configuration in priority order: defaults -> file -> env.
// A missing file is not an error; path may be empty.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields that cannot be defaulted.
func (c Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port %d", c.HTTPPort)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("missing database_path")
	}
	if c.ReconcileInterval <= 0 {
		return fmt.Errorf("reconcile_interval must be positive, got %s", c.ReconcileInterval)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("store_timeout must be positive, got %s", c.StoreTimeout)
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required when brokers are set")
	}
	if _, err := c.ParseLogLevel(); err != nil {
		return err
	}
	_, err := c.BuildSchedule()
	return err
}

// BuildSchedule parses the configured thresholds and zone.
func (c Config) BuildSchedule() (attendance.Schedule, error) {
	arrival, err := attendance.ParseClock(c.Schedule.Arrival)
	if err != nil {
		return attendance.Schedule{}, fmt.Errorf("schedule.arrival: %w", err)
	}
	departure, err := attendance.ParseClock(c.Schedule.Departure)
	if err != nil {
		return attendance.Schedule{}, fmt.Errorf("schedule.departure: %w", err)
	}
	loc, err := time.LoadLocation(c.Schedule.TimeZone)
	if err != nil {
		return attendance.Schedule{}, fmt.Errorf("schedule.time_zone: %w", err)
	}
	s := attendance.Schedule{
		Arrival:         arrival,
		Departure:       departure,
		Location:        loc,
		StrictDeparture: c.Schedule.StrictDeparture,
	}
	if err := s.Validate(); err != nil {
		return attendance.Schedule{}, fmt.Errorf("schedule: %w", err)
	}
	return s, nil
}

// ParseLogLevel maps log_level onto a slog level.
func (c Config) ParseLogLevel() (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
}
