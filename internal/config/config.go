// Package config loads service configuration from an optional config file and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Store        StoreConfig        `mapstructure:"store"`
	Lock         LockConfig         `mapstructure:"lock"`
	Registration RegistrationConfig `mapstructure:"registration"`
	Auth         AuthConfig         `mapstructure:"auth"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	CORSAllowedOrigins string        `mapstructure:"cors_allowed_origins"` // comma-separated, or "*"
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"` // used as-is when set
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	ConnectAttempts int           `mapstructure:"connect_attempts"`
	ConnectBackoff  time.Duration `mapstructure:"connect_backoff"`
}

// DSN builds a libpq-compatible connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// StoreConfig selects the event store and how the engine calls it.
type StoreConfig struct {
	Driver             string        `mapstructure:"driver"` // postgres, memory
	Timeout            time.Duration `mapstructure:"timeout"`
	ReadRetries        int           `mapstructure:"read_retries"`
	RetryInterval      time.Duration `mapstructure:"retry_interval"`
	CascadeParallelism int           `mapstructure:"cascade_parallelism"`
}

// LockConfig selects how conflicting signups for one event are serialized.
type LockConfig struct {
	Backend      string        `mapstructure:"backend"` // local, redis
	TTL          time.Duration `mapstructure:"ttl"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// RegistrationConfig tunes signup validation.
type RegistrationConfig struct {
	// StrictChoices additionally requires multiple-choice answers to be one of
	// the field's options.
	StrictChoices bool `mapstructure:"strict_choices"`
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

const defaultJWTSecret = "change-me-in-production"

// Load reads configuration from the file at path (optional; empty searches
// ./config.yaml and ./config/config.yaml) and the environment. Environment
// variables use the upper-cased key with dots replaced by underscores, e.g.
// SERVER_PORT or STORE_DRIVER.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to bind config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "event-registration-engine")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.cors_allowed_origins", "*")

	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "eventregistration")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "30m")
	v.SetDefault("database.max_conn_idle_time", "5m")
	v.SetDefault("database.connect_attempts", 5)
	v.SetDefault("database.connect_backoff", "2s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.timeout", "5s")
	v.SetDefault("store.read_retries", 2)
	v.SetDefault("store.retry_interval", "100ms")
	v.SetDefault("store.cascade_parallelism", 8)

	v.SetDefault("lock.backend", "local")
	v.SetDefault("lock.ttl", "10s")
	v.SetDefault("lock.poll_interval", "25ms")

	v.SetDefault("registration.strict_choices", false)

	v.SetDefault("auth.jwt_secret", defaultJWTSecret)
	v.SetDefault("auth.issuer", "event-registration-engine")
	v.SetDefault("auth.token_ttl", "24h")
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Store.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("store.driver must be postgres or memory, got %q", c.Store.Driver)
	}
	if c.Store.Timeout <= 0 {
		return errors.New("store.timeout must be positive")
	}
	if c.Store.ReadRetries < 0 {
		return errors.New("store.read_retries cannot be negative")
	}
	if c.Store.CascadeParallelism < 1 {
		return errors.New("store.cascade_parallelism must be at least 1")
	}
	switch c.Lock.Backend {
	case "local":
	case "redis":
		if c.Lock.TTL <= 0 {
			return errors.New("lock.ttl must be positive for the redis backend")
		}
	default:
		return fmt.Errorf("lock.backend must be local or redis, got %q", c.Lock.Backend)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.IsProduction() && c.Auth.JWTSecret == defaultJWTSecret {
		return errors.New("auth.jwt_secret must be changed in production")
	}
	return nil
}

// IsProduction reports whether the service runs in the production environment.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}
