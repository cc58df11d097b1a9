package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_valid(t *testing.T) {
	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 15s", cfg.Server.ReadTimeout)
	}
	if cfg.Auth.Issuer != "https://auth.maritime.example" {
		t.Errorf("Auth.Issuer = %q", cfg.Auth.Issuer)
	}
	if len(cfg.Auth.Algorithms) != 2 {
		t.Errorf("Auth.Algorithms = %v, want 2 entries", cfg.Auth.Algorithms)
	}
	if cfg.Messages.DefaultLocale != "ar" {
		t.Errorf("Messages.DefaultLocale = %q, want ar", cfg.Messages.DefaultLocale)
	}
	if cfg.Registry.Timeout != 3*time.Second {
		t.Errorf("Registry.Timeout = %v, want 3s", cfg.Registry.Timeout)
	}
	if cfg.Registry.CircuitBreaker.FailureThreshold != 4 {
		t.Errorf("CircuitBreaker.FailureThreshold = %d, want 4", cfg.Registry.CircuitBreaker.FailureThreshold)
	}
	// Unset keys keep their defaults.
	if cfg.Registry.CircuitBreaker.SuccessThreshold != 2 {
		t.Errorf("CircuitBreaker.SuccessThreshold = %d, want default 2", cfg.Registry.CircuitBreaker.SuccessThreshold)
	}
	if cfg.Sessions.Driver != SessionsRedis {
		t.Errorf("Sessions.Driver = %q, want redis", cfg.Sessions.Driver)
	}
	if cfg.Sessions.TTL != 2*time.Hour {
		t.Errorf("Sessions.TTL = %v, want 2h", cfg.Sessions.TTL)
	}
	if cfg.Eligibility.Concurrency != 4 {
		t.Errorf("Eligibility.Concurrency = %d, want 4", cfg.Eligibility.Concurrency)
	}
}

func TestLoad_missing_file(t *testing.T) {
	_, err := Load("testdata/nonexistent.yaml")
	if err == nil {
		t.Fatal("Load() with missing file should return error")
	}
}

func TestLoad_missing_auth(t *testing.T) {
	_, err := Load("testdata/missing_auth.yaml")
	if err == nil {
		t.Fatal("Load() with missing auth should return error")
	}
	if !strings.Contains(err.Error(), "auth.issuer is required") {
		t.Errorf("error = %v, want auth.issuer message", err)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Server.Port != 8080 {
		t.Errorf("default Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Capability.Cache.TTL != 5*time.Minute {
		t.Errorf("default Capability.Cache.TTL = %v, want 5m", cfg.Capability.Cache.TTL)
	}
	if cfg.Sessions.Driver != SessionsMemory {
		t.Errorf("default Sessions.Driver = %q, want memory", cfg.Sessions.Driver)
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("default LogLevel = %q, want info", cfg.Observability.LogLevel)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VESSELWIZARD_SERVER_PORT", "3000")
	t.Setenv("VESSELWIZARD_AUTH_ISSUER", "https://env-issuer.example")
	t.Setenv("VESSELWIZARD_AUTH_AUDIENCE", "env-audience")
	t.Setenv("VESSELWIZARD_SESSIONS_DRIVER", "postgres")
	t.Setenv("VESSELWIZARD_OBSERVABILITY_LOG_LEVEL", "error")

	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000 (env override)", cfg.Server.Port)
	}
	if cfg.Auth.Issuer != "https://env-issuer.example" {
		t.Errorf("Auth.Issuer = %q, want env override", cfg.Auth.Issuer)
	}
	if cfg.Auth.Audience != "env-audience" {
		t.Errorf("Auth.Audience = %q, want env override", cfg.Auth.Audience)
	}
	if cfg.Sessions.Driver != SessionsPostgres {
		t.Errorf("Sessions.Driver = %q, want postgres (env override beats file)", cfg.Sessions.Driver)
	}
	if cfg.Observability.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want error (env override)", cfg.Observability.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Defaults()
		cfg.Auth.Issuer = "https://auth.maritime.example"
		cfg.Auth.Audience = "vesselwizard"
		cfg.Registry.BaseURL = "https://registry.maritime.internal"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "port zero", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port"},
		{name: "http without base url", mutate: func(c *Config) { c.Registry.BaseURL = "" }, wantErr: "registry.base_url"},
		{name: "static without file", mutate: func(c *Config) { c.Registry.Driver = RegistryStatic }, wantErr: "registry.static_file"},
		{name: "unknown registry driver", mutate: func(c *Config) { c.Registry.Driver = "soap" }, wantErr: "registry.driver"},
		{name: "unknown session driver", mutate: func(c *Config) { c.Sessions.Driver = "etcd" }, wantErr: "sessions.driver"},
		{name: "zero session ttl", mutate: func(c *Config) { c.Sessions.TTL = 0 }, wantErr: "sessions.ttl"},
		{name: "no definitions", mutate: func(c *Config) { c.Definitions.Directories = nil }, wantErr: "definitions.directories"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
