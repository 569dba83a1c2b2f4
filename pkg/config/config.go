package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	LogLevel string         `yaml:"log_level"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// MetricsAddr is the separate listener for /metrics. Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig selects the gorm dialect. Path is used by sqlite, DSN by postgres.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

// AuthConfig represents session configuration
type AuthConfig struct {
	SecretKey    string        `yaml:"secret_key"`
	CookieName   string        `yaml:"cookie_name"`
	CookieSecure bool          `yaml:"cookie_secure"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        5000,
			MetricsAddr: "127.0.0.1:9100",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "data.db",
		},
		Auth: AuthConfig{
			SecretKey:  "dev",
			CookieName: "session",
			SessionTTL: 24 * time.Hour,
		},
		LogLevel: "info",
	}
}

// Load loads configuration from a YAML file, then a .env file, then the
// environment. A missing YAML or .env file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	_ = godotenv.Load() // .env is optional

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides overrides configuration with environment variables
func applyEnvOverrides(cfg *Config) {
	if path := os.Getenv("DATABASE_FILE"); path != "" {
		cfg.Database.Path = path
	}
	if driver := os.Getenv("DATABASE_DRIVER"); driver != "" {
		cfg.Database.Driver = driver
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if secret := os.Getenv("SECRET_KEY"); secret != "" {
		cfg.Auth.SecretKey = secret
	}
	if host := os.Getenv("WATCHLIST_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port, err := strconv.Atoi(os.Getenv("WATCHLIST_PORT")); err == nil && port > 0 {
		cfg.Server.Port = port
	}
	if addr, ok := os.LookupEnv("METRICS_ADDR"); ok {
		cfg.Server.MetricsAddr = addr
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Server.MetricsAddr != "" && c.Server.MetricsAddr == c.Server.Addr() {
		return fmt.Errorf("server.metrics_addr must differ from the web listener")
	}
	if c.Auth.SecretKey == "" {
		return fmt.Errorf("auth.secret_key must not be empty")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
