package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_DefaultsAndEnvironment(t *testing.T) {
	t.Setenv("WATER_USAGE_HISTORY_DATABASE_DSN", "postgres://localhost/test")
	t.Setenv("WATER_USAGE_HISTORY_AUTH_REQUIRED_SCOPE", "water-usage-history:read")
	t.Setenv("WATER_USAGE_HISTORY_AUTH_INTROSPECTION_TIMEOUT", "3s")
	t.Setenv("APP_ENV", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.DSN != "postgres://localhost/test" {
		t.Errorf("expected dsn from environment, got %q", cfg.Database.DSN)
	}
	if cfg.Auth.IntrospectionTimeout != 3*time.Second {
		t.Errorf("expected timeout 3s, got %v", cfg.Auth.IntrospectionTimeout)
	}
	if cfg.Server.Addr != ":8000" {
		t.Errorf("expected default addr, got %q", cfg.Server.Addr)
	}
	if cfg.Auth.Destination != "authorization-service" {
		t.Errorf("expected default destination, got %q", cfg.Auth.Destination)
	}
	if cfg.Database.AuditSchema != "water_usage" {
		t.Errorf("expected default audit schema, got %q", cfg.Database.AuditSchema)
	}
	if cfg.Pagination.DefaultSize != 10000 || cfg.Pagination.MaxSize != 100000 {
		t.Errorf("unexpected pagination defaults %+v", cfg.Pagination)
	}
}

func TestLoad_RejectsMissingDSN(t *testing.T) {
	t.Setenv("WATER_USAGE_HISTORY_DATABASE_DSN", "")
	t.Setenv("APP_ENV", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without database dsn")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Database.DSN = "postgres://localhost/test"
		cfg.Auth.RequiredScope = "scope"
		cfg.Auth.IntrospectionTimeout = time.Second
		cfg.Auth.Destination = "authorization-service"
		cfg.Pagination.DefaultSize = 10
		cfg.Pagination.MaxSize = 100
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing scope", func(c *Config) { c.Auth.RequiredScope = " " }, "auth.required_scope"},
		{"scope not needed when disabled", func(c *Config) {
			c.Auth.Disabled = true
			c.Auth.RequiredScope = ""
		}, ""},
		{"zero timeout", func(c *Config) { c.Auth.IntrospectionTimeout = 0 }, "auth.introspection_timeout"},
		{"page size above max", func(c *Config) { c.Pagination.DefaultSize = 1000 }, "pagination.default_size"},
		{"gateway without admin url", func(c *Config) { c.Gateway.Enabled = true }, "gateway.admin_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}
