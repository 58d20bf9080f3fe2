// Package common provides shared utilities for Macrofin
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Macrofin
type Config struct {
	Environment       string        `toml:"environment"`
	ReportingCurrency string        `toml:"reporting_currency"` // Currency all amounts are normalized into (default "INR")
	Server            ServerConfig  `toml:"server"`
	Storage           StorageConfig `toml:"storage"`
	Clients           ClientsConfig `toml:"clients"`
	Logging           LoggingConfig `toml:"logging"`
	Auth              AuthConfig    `toml:"auth"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig selects and configures the storage driver.
// Driver is "surreal" (document database, default) or "badger" (embedded).
type StorageConfig struct {
	Driver  string        `toml:"driver"`
	Surreal SurrealConfig `toml:"surreal"`
	Badger  BadgerConfig  `toml:"badger"`
}

// SurrealConfig holds SurrealDB connection configuration.
type SurrealConfig struct {
	Address   string `toml:"address"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
}

// BadgerConfig holds path configuration for the embedded store.
type BadgerConfig struct {
	Path string `toml:"path"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	Rates RatesConfig `toml:"rates"`
}

// RatesConfig holds exchange-rate provider configuration.
type RatesConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *RatesConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// AuthConfig holds JWT validation configuration.
type AuthConfig struct {
	JWTSecret   string `toml:"jwt_secret"`
	TokenExpiry string `toml:"token_expiry"` // duration string, default "24h"
}

// GetTokenExpiry parses and returns the token expiry duration.
func (c *AuthConfig) GetTokenExpiry() time.Duration {
	d, err := time.ParseDuration(c.TokenExpiry)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string `toml:"level"`
	Format   string `toml:"format"`
	FilePath string `toml:"file_path"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment:       "development",
		ReportingCurrency: "INR",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Driver: "surreal",
			Surreal: SurrealConfig{
				Address:   "ws://localhost:8000",
				Username:  "root",
				Password:  "root",
				Namespace: "macrofin",
				Database:  "macrofin",
			},
			Badger: BadgerConfig{Path: "data/ledger"},
		},
		Clients: ClientsConfig{
			Rates: RatesConfig{
				BaseURL:   "https://open.er-api.com/v6",
				RateLimit: 5,
				Timeout:   "30s",
			},
		},
		Auth: AuthConfig{
			JWTSecret:   "dev-jwt-secret-change-in-production",
			TokenExpiry: "24h",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	validateReportingCurrency(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("MACROFIN_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("MACROFIN_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("MACROFIN_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("MACROFIN_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if driver := os.Getenv("MACROFIN_STORAGE_DRIVER"); driver != "" {
		config.Storage.Driver = driver
	}

	if addr := os.Getenv("MACROFIN_SURREAL_ADDRESS"); addr != "" {
		config.Storage.Surreal.Address = addr
	}

	if path := os.Getenv("MACROFIN_DATA_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}

	if rc := os.Getenv("MACROFIN_REPORTING_CURRENCY"); rc != "" {
		config.ReportingCurrency = strings.ToUpper(rc)
	}

	if v := os.Getenv("MACROFIN_AUTH_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("MACROFIN_AUTH_TOKEN_EXPIRY"); v != "" {
		config.Auth.TokenExpiry = v
	}

	if v := os.Getenv("MACROFIN_RATES_BASE_URL"); v != "" {
		config.Clients.Rates.BaseURL = v
	}
	if v := os.Getenv("MACROFIN_RATES_API_KEY"); v != "" {
		config.Clients.Rates.APIKey = v
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// validateReportingCurrency uppercases the reporting currency and falls back
// to INR when the value is not a 3-letter code.
func validateReportingCurrency(config *Config) {
	rc := strings.ToUpper(strings.TrimSpace(config.ReportingCurrency))
	if len(rc) != 3 {
		rc = "INR"
	}
	config.ReportingCurrency = rc
}
