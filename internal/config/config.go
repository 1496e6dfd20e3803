// Package config loads service configuration from a YAML file, a .env file,
// and environment variable overrides, in that order of increasing
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds encounter API configuration.
type Config struct {
	// HTTP
	ListenPort int    `yaml:"listen_port"`
	APIPrefix  string `yaml:"api_prefix"`

	// Identity
	ProjectName string `yaml:"project_name"`
	Version     string `yaml:"version"`

	// Security
	SecretKey          string `yaml:"secret_key"`
	TokenExpiryMinutes int    `yaml:"token_expiry_minutes"`

	// Storage: empty means in-memory
	DatabaseURL string `yaml:"database_url"`

	// Redaction: one-off PHI field names merged into the default set
	ExtraPHIFields []string `yaml:"extra_phi_fields"`

	// Logging
	LogLevel string `yaml:"log_level"`

	Debug bool `yaml:"debug"`
}

// DefaultConfig returns a config with sane defaults.
func DefaultConfig() Config {
	return Config{
		ListenPort:         8000,
		APIPrefix:          "/api/v1",
		ProjectName:        "HIPAA Encounter API",
		Version:            "0.1.0",
		SecretKey:          "changethis-secret-key-change-in-production",
		TokenExpiryMinutes: 30,
		LogLevel:           "INFO",
		Debug:              false,
	}
}

// Load builds the configuration. A .env file in the working directory is
// loaded first if present; path may be empty, in which case defaults plus
// environment overrides apply.
func Load(path string) (*Config, error) {
	// Missing .env is fine; a present-but-broken one is not.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("SECRET_KEY"); v != "" {
		cfg.SecretKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("LISTEN_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse LISTEN_PORT: %w", err)
		}
		cfg.ListenPort = port
	}
	if v := os.Getenv("ACCESS_TOKEN_EXPIRE_MINUTES"); v != "" {
		mins, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse ACCESS_TOKEN_EXPIRE_MINUTES: %w", err)
		}
		cfg.TokenExpiryMinutes = mins
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToUpper(v)
	}
	if v := os.Getenv("DEBUG"); v != "" {
		cfg.Debug = !isFalsy(v)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants that must hold before the service starts.
// Field-set validation (empty or duplicate PHI entries) is enforced when the
// classifier is built from ExtraPHIFields; both are fatal at startup.
func (c *Config) Validate() error {
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fmt.Errorf("listen_port %d out of range", c.ListenPort)
	}
	if c.TokenExpiryMinutes <= 0 {
		return fmt.Errorf("token_expiry_minutes must be positive")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("secret_key is required")
	}
	if !strings.HasPrefix(c.APIPrefix, "/") {
		return fmt.Errorf("api_prefix must start with /")
	}
	return nil
}

func isFalsy(v string) bool {
	switch strings.ToLower(v) {
	case "0", "false", "no", "off":
		return true
	}
	return false
}
