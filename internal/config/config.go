// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	BaseURL     string `yaml:"base_url"` // public base URL used to build gateway callback links
	MetricsPath string `yaml:"metrics_path"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type PaystackConfig struct {
	SecretKey     string        `yaml:"secret_key"`
	WebhookSecret string        `yaml:"webhook_secret"`
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
}

type SchedulerConfig struct {
	ExpiryInterval       time.Duration `yaml:"expiry_interval"`
	NotifyInterval       time.Duration `yaml:"notify_interval"`
	NotifyWithinDays     int           `yaml:"notify_within_days"`
	ReconcileInterval    time.Duration `yaml:"reconcile_interval"`
	ReconcileStaleAfter  time.Duration `yaml:"reconcile_stale_after"`
	ReconcileBatchLimit  int           `yaml:"reconcile_batch_limit"`
	ExpirySweepBatchSize int           `yaml:"expiry_sweep_batch_size"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Paystack  PaystackConfig  `yaml:"paystack"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file, applies defaults and validates the minimum
// required fields. The returned struct is constructed once at process start
// and passed by reference into the gateway and use-case constructors.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MetricsPath == "" {
		cfg.Server.MetricsPath = "/metrics"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 30 * time.Minute
	}
	if cfg.Paystack.BaseURL == "" {
		cfg.Paystack.BaseURL = "https://api.paystack.co"
	}
	if cfg.Paystack.Timeout <= 0 {
		cfg.Paystack.Timeout = 15 * time.Second
	}
	if cfg.Scheduler.ExpiryInterval <= 0 {
		cfg.Scheduler.ExpiryInterval = 5 * time.Minute
	}
	if cfg.Scheduler.NotifyInterval <= 0 {
		cfg.Scheduler.NotifyInterval = time.Hour
	}
	if cfg.Scheduler.NotifyWithinDays <= 0 {
		cfg.Scheduler.NotifyWithinDays = 3
	}
	if cfg.Scheduler.ReconcileInterval <= 0 {
		cfg.Scheduler.ReconcileInterval = time.Minute
	}
	if cfg.Scheduler.ReconcileStaleAfter <= 0 {
		cfg.Scheduler.ReconcileStaleAfter = 10 * time.Minute
	}
	if cfg.Scheduler.ReconcileBatchLimit <= 0 {
		cfg.Scheduler.ReconcileBatchLimit = 200
	}
	if cfg.Scheduler.ExpirySweepBatchSize <= 0 {
		cfg.Scheduler.ExpirySweepBatchSize = 500
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	if cfg.Paystack.SecretKey == "" {
		return nil, errors.New("paystack.secret_key is required")
	}
	if !dev && cfg.Paystack.WebhookSecret == "" {
		return nil, errors.New("paystack.webhook_secret is required outside dev mode")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
