package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "WATER_USAGE_HISTORY"

type Config struct {
	Server struct {
		Addr         string        `mapstructure:"addr"`
		Mode         string        `mapstructure:"mode"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"server"`

	Database struct {
		DSN          string `mapstructure:"dsn"`
		MaxOpenConns int    `mapstructure:"max_open_conns"`
		// AuditSchema is the schema name whose newest audit entry marks the
		// last modification of the served data.
		AuditSchema string `mapstructure:"audit_schema"`
	} `mapstructure:"database"`

	Redis struct {
		URL      string `mapstructure:"url"`
		PoolSize int    `mapstructure:"pool_size"`
	} `mapstructure:"redis"`

	Auth struct {
		Disabled             bool          `mapstructure:"disabled"`
		RequiredScope        string        `mapstructure:"required_scope"`
		IntrospectionTimeout time.Duration `mapstructure:"introspection_timeout"`
		Destination          string        `mapstructure:"destination"`
		ReplyChannelPrefix   string        `mapstructure:"reply_channel_prefix"`
	} `mapstructure:"auth"`

	Gateway struct {
		Enabled          bool   `mapstructure:"enabled"`
		AdminURL         string `mapstructure:"admin_url"`
		ServiceName      string `mapstructure:"service_name"`
		RoutePath        string `mapstructure:"route_path"`
		AdvertiseAddress string `mapstructure:"advertise_address"`
	} `mapstructure:"gateway"`

	Pagination struct {
		DefaultSize int `mapstructure:"default_size"`
		MaxSize     int `mapstructure:"max_size"`
	} `mapstructure:"pagination"`

	Observability struct {
		MetricsEnabled     bool   `mapstructure:"metrics_enabled"`
		TraceEnabled       bool   `mapstructure:"trace_enabled"`
		TracingEndpointURL string `mapstructure:"tracing_endpoint_url"`
		LogLevel           string `mapstructure:"log_level"`
		Format             string `mapstructure:"log_format"`
		LogSource          bool   `mapstructure:"log_source"`
	} `mapstructure:"observability"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.audit_schema", "water_usage")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("auth.disabled", false)
	v.SetDefault("auth.required_scope", "")
	v.SetDefault("auth.introspection_timeout", 10*time.Second)
	v.SetDefault("auth.destination", "authorization-service")
	v.SetDefault("auth.reply_channel_prefix", "water-usage-history.replies")

	v.SetDefault("gateway.enabled", false)
	v.SetDefault("gateway.admin_url", "http://api-gateway:8001")
	v.SetDefault("gateway.service_name", "water-usage-history")
	v.SetDefault("gateway.route_path", "/api/water-usage-history")
	v.SetDefault("gateway.advertise_address", "")

	v.SetDefault("pagination.default_size", 10000)
	v.SetDefault("pagination.max_size", 100000)

	v.SetDefault("observability.metrics_enabled", true)
	v.SetDefault("observability.trace_enabled", false)
	v.SetDefault("observability.tracing_endpoint_url", "")
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "json")
	v.SetDefault("observability.log_source", false)
}

// Load reads config/config.yaml (optional), an APP_ENV overlay (optional)
// and WATER_USAGE_HISTORY_* environment overrides.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		slog.Default().Info("no config file found, using defaults and environment")
	}

	if env := os.Getenv("APP_ENV"); env != "" {
		v.SetConfigName(fmt.Sprintf("config.%s", env))
		if err := v.MergeInConfig(); err != nil {
			slog.Default().Info("No environment-specific config (optional)", slog.String("env", env))
		} else {
			slog.Default().Info("Environment-specific config loaded", slog.String("env", env))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		slog.Default().Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	return cfg
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if !c.Auth.Disabled {
		if strings.TrimSpace(c.Auth.RequiredScope) == "" {
			errs = append(errs, errors.New("auth.required_scope is required unless auth.disabled is set"))
		}
		if c.Auth.IntrospectionTimeout <= 0 {
			errs = append(errs, errors.New("auth.introspection_timeout must be positive"))
		}
		if c.Auth.Destination == "" {
			errs = append(errs, errors.New("auth.destination is required"))
		}
	}
	if c.Pagination.DefaultSize < 1 || c.Pagination.MaxSize < c.Pagination.DefaultSize {
		errs = append(errs, errors.New("pagination.default_size must be between 1 and pagination.max_size"))
	}
	if c.Gateway.Enabled && c.Gateway.AdminURL == "" {
		errs = append(errs, errors.New("gateway.admin_url is required when gateway.enabled is set"))
	}
	return errors.Join(errs...)
}
