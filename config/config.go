package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	ServiceName string          `yaml:"service_name" env:"SERVICE_NAME"`
	Log         LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Server      ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Database    DatabaseConfig  `yaml:"database" envPrefix:"DATABASE_"`
	Scheduler   SchedulerConfig `yaml:"scheduler" envPrefix:"SCHEDULER_"`
	Directory   DirectoryConfig `yaml:"directory" envPrefix:"DIRECTORY_"`
	Auth        AuthConfig      `yaml:"auth" envPrefix:"AUTH_"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port                   int     `yaml:"port" env:"PORT"`
	RateLimitPerSec        float64 `yaml:"rate_limit_per_sec" env:"RATE_LIMIT_PER_SEC"`
	RateLimitBurst         int     `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	CacheTTLSeconds        int     `yaml:"cache_ttl_seconds" env:"CACHE_TTL_SECONDS"`
	ShutdownTimeoutSeconds int     `yaml:"shutdown_timeout_seconds" env:"SHUTDOWN_TIMEOUT_SECONDS"`

	CacheTTL        time.Duration `yaml:"-" env:"-"`
	ShutdownTimeout time.Duration `yaml:"-" env:"-"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver" env:"DRIVER"` // postgres or sqlite
	DSN                    string `yaml:"dsn" env:"DSN"`
	MaxOpenConns           int    `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns           int    `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes" env:"CONN_MAX_LIFETIME_MINUTES"`
	LogLevel               string `yaml:"log_level" env:"LOG_LEVEL"`
}

// SchedulerConfig holds the metrics scheduler configuration.
type SchedulerConfig struct {
	Enabled              bool   `yaml:"enabled" env:"ENABLED"`
	IntervalSeconds      int    `yaml:"interval_seconds" env:"INTERVAL_SECONDS"`
	OrgConcurrency       int    `yaml:"org_concurrency" env:"ORG_CONCURRENCY"`
	DeviceConcurrency    int    `yaml:"device_concurrency" env:"DEVICE_CONCURRENCY"`
	DeviceTimeoutSeconds int    `yaml:"device_timeout_seconds" env:"DEVICE_TIMEOUT_SECONDS"`
	DefaultTimezone      string `yaml:"default_timezone" env:"DEFAULT_TIMEZONE"`

	Interval        time.Duration  `yaml:"-" env:"-"`
	DeviceTimeout   time.Duration  `yaml:"-" env:"-"`
	DefaultLocation *time.Location `yaml:"-" env:"-"`
}

// DirectoryConfig holds the device directory sync configuration.
type DirectoryConfig struct {
	Enabled         bool `yaml:"enabled" env:"ENABLED"`
	IntervalSeconds int  `yaml:"interval_seconds" env:"INTERVAL_SECONDS"`

	Interval time.Duration `yaml:"-" env:"-"`
}

// AuthConfig holds the access token verification settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
}

// Load reads the configuration from the given path, then applies environment
// overrides and defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "machine-efficiency"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 15
	}
	cfg.Server.CacheTTL = time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	if cfg.Server.ShutdownTimeoutSeconds <= 0 {
		cfg.Server.ShutdownTimeoutSeconds = 10
	}
	cfg.Server.ShutdownTimeout = time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if cfg.Scheduler.IntervalSeconds <= 0 {
		cfg.Scheduler.IntervalSeconds = 60
	}
	cfg.Scheduler.Interval = time.Duration(cfg.Scheduler.IntervalSeconds) * time.Second
	if cfg.Scheduler.OrgConcurrency <= 0 {
		cfg.Scheduler.OrgConcurrency = 4
	}
	if cfg.Scheduler.DeviceConcurrency <= 0 {
		cfg.Scheduler.DeviceConcurrency = 8
	}
	if cfg.Scheduler.DeviceTimeoutSeconds <= 0 {
		cfg.Scheduler.DeviceTimeoutSeconds = 30
	}
	cfg.Scheduler.DeviceTimeout = time.Duration(cfg.Scheduler.DeviceTimeoutSeconds) * time.Second
	if cfg.Scheduler.DefaultTimezone == "" {
		cfg.Scheduler.DefaultTimezone = "UTC"
	}
	loc, err := time.LoadLocation(cfg.Scheduler.DefaultTimezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", cfg.Scheduler.DefaultTimezone, err)
	}
	cfg.Scheduler.DefaultLocation = loc

	if cfg.Directory.IntervalSeconds <= 0 {
		cfg.Directory.IntervalSeconds = 300
	}
	cfg.Directory.Interval = time.Duration(cfg.Directory.IntervalSeconds) * time.Second

	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	return nil
}
