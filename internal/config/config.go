// Package config loads the application configuration from
// configs/config.yml via viper into a typed, read-only snapshot.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"heating_bridge/internal/models"
)

// Historical tuning defaults. Configurable, but the defaults must not
// change behaviour for existing deployments.
const (
	defaultOptimisticPreserveSeconds = 5
	defaultDebounceSeconds           = 2
	defaultInterOpDelaySeconds       = 2
	defaultTokenTTLMinutes           = 60
)

// Remote holds the vendor API endpoint and account credentials.
type Remote struct {
	BaseURL       string `mapstructure:"base_url"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	ApplicationID string `mapstructure:"application_id"`
}

// Polling configures the recurring tasks.
type Polling struct {
	DeviceIntervalMinutes   int `mapstructure:"device_interval_minutes"`
	OverrideIntervalMinutes int `mapstructure:"override_interval_minutes"`
	MinRescheduleMinutes    int `mapstructure:"min_reschedule_minutes"`
}

// Tuning exposes the consistency/throttle knobs with their historical
// defaults.
type Tuning struct {
	OptimisticPreserveSeconds int `mapstructure:"optimistic_preserve_seconds"`
	DebounceSeconds           int `mapstructure:"debounce_seconds"`
	InterOpDelaySeconds       int `mapstructure:"inter_op_delay_seconds"`
}

// Dashboard holds the sign-in credential and JWT settings for the
// status API. PasswordHash is a bcrypt hash.
type Dashboard struct {
	Username        string `mapstructure:"username"`
	PasswordHash    string `mapstructure:"password_hash"`
	SigningKey      string `mapstructure:"signing_key"`
	TokenTTLMinutes int    `mapstructure:"token_ttl_minutes"`
}

// Config is the full application configuration snapshot.
type Config struct {
	Port          string                `mapstructure:"port"`
	LogLevel      string                `mapstructure:"log_level"`
	Remote        Remote                `mapstructure:"remote"`
	Polling       Polling               `mapstructure:"polling"`
	Tuning        Tuning                `mapstructure:"tuning"`
	Dashboard     Dashboard             `mapstructure:"dashboard"`
	OverrideRules []models.OverrideRule `mapstructure:"override_rules"`
}

// Load reads configs/config.yml and returns the typed snapshot.
func Load() (Config, error) {
	v := viper.New()
	v.AddConfigPath("configs")
	v.SetConfigName("config")
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("polling.device_interval_minutes", 5)
	v.SetDefault("polling.override_interval_minutes", 10)
	v.SetDefault("polling.min_reschedule_minutes", 1)
	v.SetDefault("tuning.optimistic_preserve_seconds", defaultOptimisticPreserveSeconds)
	v.SetDefault("tuning.debounce_seconds", defaultDebounceSeconds)
	v.SetDefault("tuning.inter_op_delay_seconds", defaultInterOpDelaySeconds)
	v.SetDefault("dashboard.token_ttl_minutes", defaultTokenTTLMinutes)
}

// OptimisticPreserve returns the optimistic-preserve window as a duration.
func (c Config) OptimisticPreserve() time.Duration {
	return time.Duration(c.Tuning.OptimisticPreserveSeconds) * time.Second
}

// DebounceWindow returns the queue debounce window as a duration.
func (c Config) DebounceWindow() time.Duration {
	return time.Duration(c.Tuning.DebounceSeconds) * time.Second
}

// InterOpDelay returns the queue inter-operation delay as a duration.
func (c Config) InterOpDelay() time.Duration {
	return time.Duration(c.Tuning.InterOpDelaySeconds) * time.Second
}

// TokenTTL returns the dashboard JWT lifetime.
func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.Dashboard.TokenTTLMinutes) * time.Minute
}
