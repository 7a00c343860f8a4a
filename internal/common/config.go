// Package common provides shared utilities for fiiboard
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for fiiboard
type Config struct {
	Environment string           `toml:"environment"`
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Cache       CacheConfig      `toml:"cache"`
	Allocation  AllocationConfig `toml:"allocation"`
	Clients     ClientsConfig    `toml:"clients"`
	Logging     LoggingConfig    `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds the keyed store location.
type StorageConfig struct {
	Path string `toml:"path"`
}

// CacheConfig holds quote cache tuning.
// TTLs default to the business rule (24h hard, 1h during the B3 session)
// and are only meant to be overridden in tests.
type CacheConfig struct {
	Namespace     string `toml:"namespace"`
	RetentionDays int    `toml:"retention_days"`
	PruneSchedule string `toml:"prune_schedule"` // cron spec, default "0 3 * * *"
}

// AllocationConfig holds allocation engine tuning.
type AllocationConfig struct {
	MaxCandidates      int    `toml:"max_candidates"`
	DefaultRiskProfile string `toml:"default_risk_profile"` // "conservador", "moderado", "arrojado"
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	Brapi  BrapiConfig  `toml:"brapi"`
	Gemini GeminiConfig `toml:"gemini"`
}

// BrapiConfig holds brapi.dev API configuration
type BrapiConfig struct {
	BaseURL   string `toml:"base_url"`
	Token     string `toml:"token"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *BrapiConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Path: "data/store",
		},
		Cache: CacheConfig{
			Namespace:     "fii_quotes_cache",
			RetentionDays: 7,
			PruneSchedule: "0 3 * * *",
		},
		Allocation: AllocationConfig{
			MaxCandidates:      6,
			DefaultRiskProfile: "moderado",
		},
		Clients: ClientsConfig{
			Brapi: BrapiConfig{
				BaseURL:   "https://brapi.dev/api",
				RateLimit: 5,
				Timeout:   "30s",
			},
			// Model left empty: the gemini client applies its own default,
			// keeping one source of truth for the model name.
			Gemini: GeminiConfig{},
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
	validateRiskProfile(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FIIBOARD_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("FIIBOARD_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("FIIBOARD_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("FIIBOARD_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("FIIBOARD_DATA_PATH"); path != "" {
		config.Storage.Path = path
	}

	if ns := os.Getenv("FIIBOARD_CACHE_NAMESPACE"); ns != "" {
		config.Cache.Namespace = ns
	}

	if days := os.Getenv("FIIBOARD_RETENTION_DAYS"); days != "" {
		if d, err := strconv.Atoi(days); err == nil && d > 0 {
			config.Cache.RetentionDays = d
		}
	}

	if token := os.Getenv("BRAPI_TOKEN"); token != "" {
		config.Clients.Brapi.Token = token
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.Clients.Gemini.APIKey = key
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// validateRiskProfile ensures the configured default is a recognized label,
// falling back to "moderado" otherwise.
func validateRiskProfile(config *Config) {
	switch strings.ToLower(config.Allocation.DefaultRiskProfile) {
	case "conservador", "moderado", "arrojado":
		config.Allocation.DefaultRiskProfile = strings.ToLower(config.Allocation.DefaultRiskProfile)
	default:
		config.Allocation.DefaultRiskProfile = "moderado"
	}
}
