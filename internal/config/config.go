// Package config loads engine configuration from environment variables
// with optional .env support.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the full engine configuration
type Config struct {
	Profile    ProfileConfig    `json:"profile"`
	Prediction PredictionConfig `json:"prediction"`
	Monitoring MonitoringConfig `json:"monitoring"`
	Alerting   AlertingConfig   `json:"alerting"`
	Storage    StorageConfig    `json:"storage"`
	Logging    LoggingConfig    `json:"logging"`
}

// ProfileConfig controls historical-profile learning
type ProfileConfig struct {
	MaxHistoryDays  int     `json:"max_history_days"`
	MaxHistorySize  int     `json:"max_history_size"`
	SkillIncrement  float64 `json:"skill_increment"`
	MaxQualityScores int    `json:"max_quality_scores"`
}

// PredictionConfig controls the estimation strategies
type PredictionConfig struct {
	DefaultMethod    string  `json:"default_method"`
	WorkingHoursPerDay float64 `json:"working_hours_per_day"`
	MinHistoryForTrend int    `json:"min_history_for_trend"`
}

// MonitoringConfig controls the periodic risk sweep
type MonitoringConfig struct {
	Interval  time.Duration `json:"interval"`
	RulesFile string        `json:"rules_file,omitempty"`
}

// AlertingConfig controls alert emission
type AlertingConfig struct {
	Cooldown        time.Duration `json:"cooldown"`
	MaxAlertHistory int           `json:"max_alert_history"`
	RedisAddr       string        `json:"redis_addr,omitempty"`
	RedisDB         int           `json:"redis_db"`
}

// StorageConfig controls the optional persistence backends. When both
// paths are empty the engine runs fully in-memory.
type StorageConfig struct {
	SQLitePath    string        `json:"sqlite_path,omitempty"`
	PostgresDSN   string        `json:"-"` // never serialize credentials
	RetentionDays int           `json:"retention_days"`
	FlushInterval time.Duration `json:"flush_interval"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Profile: ProfileConfig{
			MaxHistoryDays:   365,
			MaxHistorySize:   100,
			SkillIncrement:   0.1,
			MaxQualityScores: 50,
		},
		Prediction: PredictionConfig{
			DefaultMethod:      "ensemble",
			WorkingHoursPerDay: 8,
			MinHistoryForTrend: 3,
		},
		Monitoring: MonitoringConfig{
			Interval: 60 * time.Second,
		},
		Alerting: AlertingConfig{
			Cooldown:        5 * time.Minute,
			MaxAlertHistory: 1000,
		},
		Storage: StorageConfig{
			RetentionDays: 30,
			FlushInterval: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from environment variables and defaults
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := DefaultConfig()
	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadFromEnv(cfg *Config) {
	loadProfileConfig(cfg)
	loadPredictionConfig(cfg)
	loadMonitoringConfig(cfg)
	loadAlertingConfig(cfg)
	loadStorageConfig(cfg)
	loadLoggingConfig(cfg)
}

func loadProfileConfig(cfg *Config) {
	if v := envInt("DEADLINE_MAX_HISTORY_DAYS"); v != nil {
		cfg.Profile.MaxHistoryDays = *v
	}
	if v := envInt("DEADLINE_MAX_HISTORY_SIZE"); v != nil {
		cfg.Profile.MaxHistorySize = *v
	}
	if v := envFloat("DEADLINE_SKILL_INCREMENT"); v != nil {
		cfg.Profile.SkillIncrement = *v
	}
	if v := envInt("DEADLINE_MAX_QUALITY_SCORES"); v != nil {
		cfg.Profile.MaxQualityScores = *v
	}
}

func loadPredictionConfig(cfg *Config) {
	if v := os.Getenv("DEADLINE_DEFAULT_METHOD"); v != "" {
		cfg.Prediction.DefaultMethod = v
	}
	if v := envFloat("DEADLINE_WORKING_HOURS_PER_DAY"); v != nil {
		cfg.Prediction.WorkingHoursPerDay = *v
	}
	if v := envInt("DEADLINE_MIN_HISTORY_FOR_TREND"); v != nil {
		cfg.Prediction.MinHistoryForTrend = *v
	}
}

func loadMonitoringConfig(cfg *Config) {
	if v := envDuration("DEADLINE_MONITORING_INTERVAL"); v != nil {
		cfg.Monitoring.Interval = *v
	}
	if v := os.Getenv("DEADLINE_RULES_FILE"); v != "" {
		cfg.Monitoring.RulesFile = v
	}
}

func loadAlertingConfig(cfg *Config) {
	if v := envDuration("DEADLINE_ALERT_COOLDOWN"); v != nil {
		cfg.Alerting.Cooldown = *v
	}
	if v := envInt("DEADLINE_MAX_ALERT_HISTORY"); v != nil {
		cfg.Alerting.MaxAlertHistory = *v
	}
	if v := os.Getenv("DEADLINE_REDIS_ADDR"); v != "" {
		cfg.Alerting.RedisAddr = v
	}
	if v := envInt("DEADLINE_REDIS_DB"); v != nil {
		cfg.Alerting.RedisDB = *v
	}
}

func loadStorageConfig(cfg *Config) {
	if v := os.Getenv("DEADLINE_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("DEADLINE_POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := envInt("DEADLINE_RETENTION_DAYS"); v != nil {
		cfg.Storage.RetentionDays = *v
	}
	if v := envDuration("DEADLINE_FLUSH_INTERVAL"); v != nil {
		cfg.Storage.FlushInterval = *v
	}
}

func loadLoggingConfig(cfg *Config) {
	if v := os.Getenv("DEADLINE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DEADLINE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func envInt(key string) *int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return &v
		}
	}
	return nil
}

func envFloat(key string) *float64 {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return &v
		}
	}
	return nil
}

func envDuration(key string) *time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if v, err := time.ParseDuration(raw); err == nil {
			return &v
		}
		// Bare integers are treated as seconds
		if secs, err := strconv.Atoi(raw); err == nil {
			d := time.Duration(secs) * time.Second
			return &d
		}
	}
	return nil
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if c.Profile.MaxHistoryDays <= 0 {
		return errors.New("profile max history days must be positive")
	}
	if c.Profile.SkillIncrement < 0 {
		return errors.New("skill increment cannot be negative")
	}
	if c.Prediction.WorkingHoursPerDay <= 0 {
		return errors.New("working hours per day must be positive")
	}
	if c.Prediction.MinHistoryForTrend < 2 {
		return errors.New("min history for trend must be at least 2")
	}
	if c.Monitoring.Interval <= 0 {
		return errors.New("monitoring interval must be positive")
	}
	if c.Alerting.Cooldown <= 0 {
		return errors.New("alert cooldown must be positive")
	}
	if c.Alerting.MaxAlertHistory <= 0 {
		return errors.New("max alert history must be positive")
	}
	return nil
}
