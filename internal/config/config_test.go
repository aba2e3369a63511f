package config

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Profile.MaxHistoryDays != 365 {
		t.Errorf("MaxHistoryDays = %d, want 365", cfg.Profile.MaxHistoryDays)
	}
	if cfg.Profile.SkillIncrement != 0.1 {
		t.Errorf("SkillIncrement = %.2f, want 0.1", cfg.Profile.SkillIncrement)
	}
	if cfg.Monitoring.Interval != 60*time.Second {
		t.Errorf("Interval = %v, want 60s", cfg.Monitoring.Interval)
	}
	if cfg.Alerting.Cooldown != 5*time.Minute {
		t.Errorf("Cooldown = %v, want 5m", cfg.Alerting.Cooldown)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DEADLINE_MAX_HISTORY_DAYS", "30")
	t.Setenv("DEADLINE_ALERT_COOLDOWN", "90s")
	t.Setenv("DEADLINE_MONITORING_INTERVAL", "120")
	t.Setenv("DEADLINE_SKILL_INCREMENT", "0.2")
	t.Setenv("DEADLINE_SQLITE_PATH", "/tmp/alerts.db")

	cfg := DefaultConfig()
	loadFromEnv(cfg)

	if cfg.Profile.MaxHistoryDays != 30 {
		t.Errorf("MaxHistoryDays = %d, want 30", cfg.Profile.MaxHistoryDays)
	}
	if cfg.Alerting.Cooldown != 90*time.Second {
		t.Errorf("Cooldown = %v, want 90s", cfg.Alerting.Cooldown)
	}
	if cfg.Monitoring.Interval != 120*time.Second {
		t.Errorf("Interval = %v, want 120s (bare seconds)", cfg.Monitoring.Interval)
	}
	if cfg.Profile.SkillIncrement != 0.2 {
		t.Errorf("SkillIncrement = %.2f, want 0.2", cfg.Profile.SkillIncrement)
	}
	if cfg.Storage.SQLitePath != "/tmp/alerts.db" {
		t.Errorf("SQLitePath = %q", cfg.Storage.SQLitePath)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.Profile.MaxHistoryDays = 0 },
		func(c *Config) { c.Profile.SkillIncrement = -0.1 },
		func(c *Config) { c.Prediction.WorkingHoursPerDay = 0 },
		func(c *Config) { c.Prediction.MinHistoryForTrend = 1 },
		func(c *Config) { c.Monitoring.Interval = 0 },
		func(c *Config) { c.Alerting.Cooldown = 0 },
		func(c *Config) { c.Alerting.MaxAlertHistory = 0 },
	}
	for i, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}
