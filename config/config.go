// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Remote    RemoteConfig    `yaml:"remote"`
	Generator GeneratorConfig `yaml:"generator"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	OpenAPI   OpenAPIConfig   `yaml:"openapi"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"` // REST handlers only; WebSockets are exempt
}

// RemoteConfig configures the data generation service.
type RemoteConfig struct {
	URL             string            `yaml:"url"`
	DataTypesPath   string            `yaml:"data_types_path"`
	GeneratePath    string            `yaml:"generate_path"`
	APIKey          string            `yaml:"api_key,omitempty"`
	Timeout         time.Duration     `yaml:"timeout"`
	MaxIdleConns    int               `yaml:"max_idle_conns"`
	IdleConnTimeout time.Duration     `yaml:"idle_conn_timeout"`
	Headers         map[string]string `yaml:"headers,omitempty"`
}

// GeneratorConfig holds session defaults and limits. Every field is hot
// reloadable.
type GeneratorConfig struct {
	Format         string `yaml:"format"`
	DefaultSamples int    `yaml:"default_samples"`
	MaxSamples     int    `yaml:"max_samples"`
	MaxSessions    int    `yaml:"max_sessions"` // 0 means unlimited
}

// DatabaseConfig configures the submission history store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "memory"
	DSN    string `yaml:"dsn"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"` // Enable /metrics endpoint
}

// OpenAPIConfig configures the OpenAPI document and Swagger UI.
type OpenAPIConfig struct {
	Enabled bool `yaml:"enabled"` // Serve /.well-known/openapi.json and /swagger/
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes configuration from YAML, expanding ${VAR} references and
// applying DINOGEN_* overrides and defaults.
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	DINOGEN_REMOTE_URL             - Generation service URL (required)
//	DINOGEN_REMOTE_API_KEY         - Bearer token for the generation service
//	DINOGEN_REMOTE_TIMEOUT         - Request timeout (default: 30s)
//	DINOGEN_SERVER_HOST            - Server host (default: 0.0.0.0)
//	DINOGEN_SERVER_PORT            - Server port (default: 8080)
//	DINOGEN_GENERATOR_MAX_SAMPLES  - Largest accepted num_samples (default: 100)
//	DINOGEN_GENERATOR_MAX_SESSIONS - Open session limit (default: unlimited)
//	DINOGEN_DATABASE_DRIVER        - sqlite or memory (default: sqlite)
//	DINOGEN_DATABASE_DSN           - Database path (default: dinogen.db)
//	DINOGEN_LOG_LEVEL              - debug, info, warn, error (default: info)
//	DINOGEN_LOG_FORMAT             - json or console (default: json)
//	DINOGEN_METRICS_ENABLED        - Enable /metrics (default: false)
//	DINOGEN_OPENAPI_ENABLED        - Enable /swagger/ (default: false)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback loads from file when it exists, otherwise from the
// environment.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	if HasEnvConfig() {
		return LoadFromEnv()
	}

	return nil, fmt.Errorf("no configuration found: provide config file or set DINOGEN_REMOTE_URL")
}

// HasEnvConfig returns true if essential environment variables are set.
func HasEnvConfig() bool {
	return os.Getenv("DINOGEN_REMOTE_URL") != ""
}

// applyEnvOverrides applies DINOGEN_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("DINOGEN_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("DINOGEN_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DINOGEN_SERVER_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.RequestTimeout = d
		}
	}

	// Remote configuration
	if v := os.Getenv("DINOGEN_REMOTE_URL"); v != "" {
		cfg.Remote.URL = v
	}
	if v := os.Getenv("DINOGEN_REMOTE_API_KEY"); v != "" {
		cfg.Remote.APIKey = v
	}
	if v := os.Getenv("DINOGEN_REMOTE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Remote.Timeout = d
		}
	}

	// Generator configuration
	if v := os.Getenv("DINOGEN_GENERATOR_DEFAULT_SAMPLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Generator.DefaultSamples = n
		}
	}
	if v := os.Getenv("DINOGEN_GENERATOR_MAX_SAMPLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Generator.MaxSamples = n
		}
	}
	if v := os.Getenv("DINOGEN_GENERATOR_MAX_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Generator.MaxSessions = n
		}
	}

	// Database configuration
	if v := os.Getenv("DINOGEN_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DINOGEN_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Logging configuration
	if v := os.Getenv("DINOGEN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DINOGEN_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("DINOGEN_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}

	// OpenAPI configuration
	if v := os.Getenv("DINOGEN_OPENAPI_ENABLED"); v != "" {
		cfg.OpenAPI.Enabled = parseBool(v)
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}

	if cfg.Remote.DataTypesPath == "" {
		cfg.Remote.DataTypesPath = "/api/data-types/"
	}
	if cfg.Remote.GeneratePath == "" {
		cfg.Remote.GeneratePath = "/api/generate-documents/"
	}
	if cfg.Remote.Timeout == 0 {
		cfg.Remote.Timeout = 30 * time.Second
	}
	cfg.Remote.URL = strings.TrimRight(cfg.Remote.URL, "/")

	if cfg.Generator.Format == "" {
		cfg.Generator.Format = "json"
	}
	if cfg.Generator.DefaultSamples == 0 {
		cfg.Generator.DefaultSamples = 3
	}
	if cfg.Generator.MaxSamples == 0 {
		cfg.Generator.MaxSamples = 100
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "dinogen.db"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	if cfg.Remote.URL == "" {
		return fmt.Errorf("remote.url is required")
	}
	u, err := url.Parse(cfg.Remote.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("remote.url must be an absolute URL, got %q", cfg.Remote.URL)
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}

	if cfg.Generator.Format != "json" {
		return fmt.Errorf("generator.format must be 'json', got %q", cfg.Generator.Format)
	}
	if cfg.Generator.DefaultSamples < 1 {
		return fmt.Errorf("generator.default_samples must be positive, got %d", cfg.Generator.DefaultSamples)
	}
	if cfg.Generator.MaxSamples < cfg.Generator.DefaultSamples {
		return fmt.Errorf("generator.max_samples (%d) is below default_samples (%d)",
			cfg.Generator.MaxSamples, cfg.Generator.DefaultSamples)
	}
	if cfg.Generator.MaxSessions < 0 {
		return fmt.Errorf("generator.max_sessions must not be negative")
	}

	validDrivers := map[string]bool{"sqlite": true, "memory": true}
	if !validDrivers[cfg.Database.Driver] {
		return fmt.Errorf("database.driver must be 'sqlite' or 'memory', got %q", cfg.Database.Driver)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	return nil
}
