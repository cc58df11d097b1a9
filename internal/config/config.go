// Package config loads and validates application configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "VESSELWIZARD_"

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Definitions   DefinitionsConfig   `yaml:"definitions"`
	Messages      MessagesConfig      `yaml:"messages"`
	Capability    CapabilityConfig    `yaml:"capability"`
	Registry      RegistryConfig      `yaml:"registry"`
	Sessions      SessionsConfig      `yaml:"sessions"`
	Eligibility   EligibilityConfig   `yaml:"eligibility"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig describes Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// AuthConfig describes bearer token verification. Tokens are HMAC signed
// with the secret read from the SecretEnv environment variable.
type AuthConfig struct {
	Issuer     string            `yaml:"issuer"`
	Audience   string            `yaml:"audience"`
	SecretEnv  string            `yaml:"secret_env"`
	Algorithms []string          `yaml:"algorithms"`
	ClaimPaths map[string]string `yaml:"claim_paths"`
}

// DefinitionsConfig describes where to find transaction definition files.
type DefinitionsConfig struct {
	Directories []string `yaml:"directories"`
}

// MessagesConfig describes the message catalogs.
type MessagesConfig struct {
	Directory     string `yaml:"directory"`
	DefaultLocale string `yaml:"default_locale"`
}

// CapabilityConfig describes authorization settings.
type CapabilityConfig struct {
	PolicyFile string      `yaml:"policy_file"`
	Cache      CacheConfig `yaml:"cache"`
}

// CacheConfig describes cache settings.
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

// Registry drivers.
const (
	RegistryHTTP   = "http"
	RegistryStatic = "static"
)

// RegistryConfig describes the marine unit registry backend.
type RegistryConfig struct {
	Driver         string               `yaml:"driver"`
	BaseURL        string               `yaml:"base_url"`
	TokenEnv       string               `yaml:"token_env"`
	StaticFile     string               `yaml:"static_file"`
	Timeout        time.Duration        `yaml:"timeout"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Cache          CacheConfig          `yaml:"cache"`
}

// CircuitBreakerConfig describes circuit breaker settings.
type CircuitBreakerConfig struct {
	FailureThreshold   int           `yaml:"failure_threshold"`
	SuccessThreshold   int           `yaml:"success_threshold"`
	Timeout            time.Duration `yaml:"timeout"`
	ErrorRateThreshold float64       `yaml:"error_rate_threshold"`
	ErrorRateWindow    time.Duration `yaml:"error_rate_window"`
}

// Session store drivers.
const (
	SessionsMemory   = "memory"
	SessionsPostgres = "postgres"
	SessionsRedis    = "redis"
)

// SessionsConfig describes wizard session persistence.
type SessionsConfig struct {
	Driver          string        `yaml:"driver"`
	DSNEnv          string        `yaml:"dsn_env"`
	RedisAddrEnv    string        `yaml:"redis_addr_env"`
	RedisDB         int           `yaml:"redis_db"`
	TTL             time.Duration `yaml:"ttl"`
	MaxConns        int32         `yaml:"max_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// EligibilityConfig tunes eligibility resolution.
type EligibilityConfig struct {
	Concurrency   int           `yaml:"concurrency"`
	LookupTimeout time.Duration `yaml:"lookup_timeout"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	Tracing  TracingConfig `yaml:"tracing"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			HandlerTimeout:  25 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Authorization", "Content-Type", "Accept-Language",
					"X-Correlation-Id", "If-Match"},
				MaxAge: 86400,
			},
		},
		Auth: AuthConfig{
			SecretEnv:  "VESSELWIZARD_AUTH_SECRET",
			Algorithms: []string{"HS256"},
			ClaimPaths: map[string]string{
				"actor_id": "sub",
				"email":    "email",
				"roles":    "roles",
			},
		},
		Definitions: DefinitionsConfig{
			Directories: []string{"/definitions"},
		},
		Messages: MessagesConfig{
			DefaultLocale: "en",
		},
		Capability: CapabilityConfig{
			Cache: CacheConfig{
				TTL:        5 * time.Minute,
				MaxEntries: 10000,
			},
		},
		Registry: RegistryConfig{
			Driver:   RegistryHTTP,
			TokenEnv: "VESSELWIZARD_REGISTRY_TOKEN",
			Timeout:  5 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 2,
				Timeout:          30 * time.Second,
			},
			Cache: CacheConfig{
				TTL:        time.Minute,
				MaxEntries: 1000,
			},
		},
		Sessions: SessionsConfig{
			Driver:          SessionsMemory,
			DSNEnv:          "VESSELWIZARD_SESSIONS_DSN",
			RedisAddrEnv:    "VESSELWIZARD_REDIS_ADDR",
			TTL:             24 * time.Hour,
			MaxConns:        10,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Eligibility: EligibilityConfig{
			Concurrency:   8,
			LookupTimeout: 10 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Auth.Issuer == "" {
		errs = append(errs, "auth.issuer is required")
	}
	if c.Auth.Audience == "" {
		errs = append(errs, "auth.audience is required")
	}
	if len(c.Definitions.Directories) == 0 {
		errs = append(errs, "definitions.directories must not be empty")
	}

	switch c.Registry.Driver {
	case RegistryHTTP:
		if c.Registry.BaseURL == "" {
			errs = append(errs, "registry.base_url is required for the http driver")
		}
	case RegistryStatic:
		if c.Registry.StaticFile == "" {
			errs = append(errs, "registry.static_file is required for the static driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("registry.driver %q is not one of http, static", c.Registry.Driver))
	}

	switch c.Sessions.Driver {
	case SessionsMemory, SessionsPostgres, SessionsRedis:
	default:
		errs = append(errs, fmt.Sprintf("sessions.driver %q is not one of memory, postgres, redis", c.Sessions.Driver))
	}
	if c.Sessions.TTL <= 0 {
		errs = append(errs, "sessions.ttl must be positive")
	}
	if c.Eligibility.Concurrency < 0 {
		errs = append(errs, "eligibility.concurrency must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads VESSELWIZARD_* environment variables and overrides
// config values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv(EnvPrefix + "AUTH_ISSUER"); v != "" {
		cfg.Auth.Issuer = v
	}
	if v := os.Getenv(EnvPrefix + "AUTH_AUDIENCE"); v != "" {
		cfg.Auth.Audience = v
	}
	if v := os.Getenv(EnvPrefix + "REGISTRY_BASE_URL"); v != "" {
		cfg.Registry.BaseURL = v
	}
	if v := os.Getenv(EnvPrefix + "SESSIONS_DRIVER"); v != "" {
		cfg.Sessions.Driver = v
	}
	if v := os.Getenv(EnvPrefix + "OBSERVABILITY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
}
