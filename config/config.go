// Package config handles loading and validation of application configuration
// from environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/iRail/occupancy-api/logger"
	"github.com/spf13/viper"
)

// Environment represents the application's running environment (development or production).
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Environment    Environment `mapstructure:"ENVIRONMENT" yaml:"environment"`
	Port           string      `mapstructure:"PORT" yaml:"port"`
	AllowedOrigins []string    `mapstructure:"ALLOWED_ORIGINS" yaml:"allowed_origins"`
	Version        string      `mapstructure:"VERSION" yaml:"version"`
	// VehicleResourceURL is the prefix of the Location header returned for an
	// accepted report; the vehicle's trailing path segment is appended.
	VehicleResourceURL string `mapstructure:"VEHICLE_RESOURCE_URL" yaml:"vehicle_resource_url"`
	MaxBodyBytes       int64  `mapstructure:"MAX_BODY_BYTES" yaml:"max_body_bytes"`
}

// DatabaseConfig holds PostgreSQL connection details for the feedback store.
type DatabaseConfig struct {
	Host           string `mapstructure:"HOST" yaml:"host"`
	Port           int    `mapstructure:"PORT" yaml:"port"`
	User           string `mapstructure:"USER" yaml:"user"`
	Password       string `mapstructure:"PASSWORD" yaml:"password"`
	Name           string `mapstructure:"NAME" yaml:"name"`
	SSLMode        string `mapstructure:"SSL_MODE" yaml:"ssl_mode"`
	MaxConnections int    `mapstructure:"MAX_CONNECTIONS" yaml:"max_connections"`
	RunMigrations  bool   `mapstructure:"RUN_MIGRATIONS" yaml:"run_migrations"`
}

// URL returns a postgres:// connection URL usable by pgx and golang-migrate.
func (c *DatabaseConfig) URL() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		sslmode,
	)
}

// RedisConfig holds Redis connection details.
type RedisConfig struct {
	Address  string `mapstructure:"ADDRESS" yaml:"address"`
	Password string `mapstructure:"PASSWORD" yaml:"password"`
	DB       int    `mapstructure:"DB" yaml:"db"`
	UseTLS   bool   `mapstructure:"USE_TLS" yaml:"use_tls"`
	PoolSize int    `mapstructure:"POOL_SIZE" yaml:"pool_size"`
}

// AuditConfig configures the append-only submission log.
type AuditConfig struct {
	// LogPath is a file path, or "stdout"/"stderr".
	LogPath string `mapstructure:"LOG_PATH" yaml:"log_path"`
	// Timezone is used for the querytime field.
	Timezone string `mapstructure:"TIMEZONE" yaml:"timezone"`
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c *AuditConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// OccupancyConfig holds feedback ingestion options.
type OccupancyConfig struct {
	// StrictDates rejects dates that are not real calendar days. Off by
	// default: the public API has always accepted e.g. 20240230.
	StrictDates   bool   `mapstructure:"STRICT_DATES" yaml:"strict_dates"`
	PublishEvents bool   `mapstructure:"PUBLISH_EVENTS" yaml:"publish_events"`
	EventChannel  string `mapstructure:"EVENT_CHANNEL" yaml:"event_channel"`
}

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	// Maximum feedback submissions per client IP per window; 0 disables the limiter.
	FeedbackRequestsPerWindow int `mapstructure:"FEEDBACK_REQUESTS_PER_WINDOW" yaml:"feedback_requests_per_window"`
	WindowSeconds             int `mapstructure:"WINDOW_SECONDS" yaml:"window_seconds"`
}

// Window returns the rate limit window as a duration.
func (c *RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// Config aggregates all application configuration sections.
type Config struct {
	Server    ServerConfig    `mapstructure:"SERVER" yaml:"server"`
	Database  DatabaseConfig  `mapstructure:"DATABASE" yaml:"database"`
	Redis     RedisConfig     `mapstructure:"REDIS" yaml:"redis"`
	Audit     AuditConfig     `mapstructure:"AUDIT" yaml:"audit"`
	Occupancy OccupancyConfig `mapstructure:"OCCUPANCY" yaml:"occupancy"`
	RateLimit RateLimitConfig `mapstructure:"RATE_LIMIT" yaml:"rate_limit"`
}

// IsDevelopment returns true if the application is running in development environment.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == EnvDevelopment
}

// IsProduction returns true if the application is running in production environment.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}

// bindEnvVars binds multiple environment variables to config keys.
// Format: []{configKey, envVar}
func bindEnvVars(v *viper.Viper, bindings [][2]string) error {
	for _, b := range bindings {
		if err := v.BindEnv(b[0], b[1]); err != nil {
			return fmt.Errorf("failed to bind %s: %w", b[0], err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER.ENVIRONMENT", EnvDevelopment)
	v.SetDefault("SERVER.PORT", "8080")
	v.SetDefault("SERVER.ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("SERVER.VERSION", "dev")
	v.SetDefault("SERVER.VEHICLE_RESOURCE_URL", "https://api.irail.be/vehicle/?id=BE.NMBS.")
	v.SetDefault("SERVER.MAX_BODY_BYTES", 10*1024)
	v.SetDefault("DATABASE.HOST", "localhost")
	v.SetDefault("DATABASE.PORT", 5432)
	v.SetDefault("DATABASE.USER", "postgres")
	v.SetDefault("DATABASE.PASSWORD", "")
	v.SetDefault("DATABASE.NAME", "irail_occupancy")
	v.SetDefault("DATABASE.SSL_MODE", "disable")
	v.SetDefault("DATABASE.MAX_CONNECTIONS", 10)
	v.SetDefault("DATABASE.RUN_MIGRATIONS", true)
	v.SetDefault("REDIS.ADDRESS", "localhost:6379")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)
	v.SetDefault("REDIS.USE_TLS", false)
	v.SetDefault("REDIS.POOL_SIZE", 5)
	v.SetDefault("AUDIT.LOG_PATH", "storage/irapi.log")
	v.SetDefault("AUDIT.TIMEZONE", "Europe/Brussels")
	v.SetDefault("OCCUPANCY.STRICT_DATES", false)
	v.SetDefault("OCCUPANCY.PUBLISH_EVENTS", true)
	v.SetDefault("OCCUPANCY.EVENT_CHANNEL", "occupancy:feedback")
	v.SetDefault("RATE_LIMIT.FEEDBACK_REQUESTS_PER_WINDOW", 60)
	v.SetDefault("RATE_LIMIT.WINDOW_SECONDS", 60)
}

// LoadConfig loads configuration using Viper: defaults, then the optional YAML
// file named by CONFIG_FILE, then environment variables. The result is
// unmarshalled and validated.
func LoadConfig() (*Config, error) {
	v := viper.New()
	log := logger.GetLogger()

	setDefaults(v)

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		log.Infow("Read configuration file", "path", path)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envBindings := [][2]string{
		// Server config
		{"SERVER.ENVIRONMENT", "SERVER_ENVIRONMENT"},
		{"SERVER.PORT", "PORT"},
		{"SERVER.ALLOWED_ORIGINS", "ALLOWED_ORIGINS"},
		{"SERVER.VERSION", "VERSION"},
		{"SERVER.VEHICLE_RESOURCE_URL", "VEHICLE_RESOURCE_URL"},
		{"SERVER.MAX_BODY_BYTES", "MAX_BODY_BYTES"},
		// Database config
		{"DATABASE.HOST", "DB_HOST"},
		{"DATABASE.PORT", "DB_PORT"},
		{"DATABASE.USER", "DB_USER"},
		{"DATABASE.PASSWORD", "DB_PASSWORD"},
		{"DATABASE.NAME", "DB_NAME"},
		{"DATABASE.SSL_MODE", "DB_SSL_MODE"},
		{"DATABASE.MAX_CONNECTIONS", "DB_MAX_CONNECTIONS"},
		{"DATABASE.RUN_MIGRATIONS", "DB_RUN_MIGRATIONS"},
		// Redis config
		{"REDIS.ADDRESS", "REDIS_ADDRESS"},
		{"REDIS.PASSWORD", "REDIS_PASSWORD"},
		{"REDIS.DB", "REDIS_DB"},
		{"REDIS.USE_TLS", "REDIS_USE_TLS"},
		{"REDIS.POOL_SIZE", "REDIS_POOL_SIZE"},
		// Audit log
		{"AUDIT.LOG_PATH", "AUDIT_LOG_PATH"},
		{"AUDIT.TIMEZONE", "AUDIT_TIMEZONE"},
		// Occupancy ingestion
		{"OCCUPANCY.STRICT_DATES", "OCCUPANCY_STRICT_DATES"},
		{"OCCUPANCY.PUBLISH_EVENTS", "OCCUPANCY_PUBLISH_EVENTS"},
		{"OCCUPANCY.EVENT_CHANNEL", "OCCUPANCY_EVENT_CHANNEL"},
		// Rate limit config
		{"RATE_LIMIT.FEEDBACK_REQUESTS_PER_WINDOW", "RATE_LIMIT_FEEDBACK_REQUESTS_PER_WINDOW"},
		{"RATE_LIMIT.WINDOW_SECONDS", "RATE_LIMIT_WINDOW_SECONDS"},
	}

	if err := bindEnvVars(v, envBindings); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal failed: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	log.Infow("Configuration loaded",
		"environment", cfg.Server.Environment,
		"server_port", cfg.Server.Port,
		"db_url", logger.MaskConnectionString(cfg.Database.URL()),
		"redis_address", cfg.Redis.Address,
		"audit_log_path", cfg.Audit.LogPath,
		"strict_dates", cfg.Occupancy.StrictDates,
		"publish_events", cfg.Occupancy.PublishEvents,
	)
	return &cfg, nil
}

// validateConfig checks if the loaded configuration values are valid.
func validateConfig(cfg *Config) error {
	log := logger.GetLogger()

	switch cfg.Server.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("unknown environment %q", cfg.Server.Environment)
	}
	if cfg.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if _, err := url.ParseRequestURI(cfg.Server.VehicleResourceURL); err != nil {
		return fmt.Errorf("invalid vehicle resource URL: %w", err)
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}

	if cfg.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if cfg.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if cfg.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if cfg.Database.Password == "" {
		log.Warn("Database password is not set. Ensure this is intended (e.g., using trusted auth).")
	}
	if cfg.Database.MaxConnections <= 0 {
		return fmt.Errorf("database max connections must be positive")
	}

	if cfg.Redis.Address == "" {
		return fmt.Errorf("redis address is required")
	}

	if cfg.Audit.LogPath == "" {
		return fmt.Errorf("audit log path is required")
	}
	if _, err := time.LoadLocation(cfg.Audit.Timezone); err != nil {
		return fmt.Errorf("invalid audit timezone %q: %w", cfg.Audit.Timezone, err)
	}

	if cfg.Occupancy.PublishEvents && cfg.Occupancy.EventChannel == "" {
		return fmt.Errorf("occupancy event channel is required when publishing events")
	}

	if cfg.RateLimit.FeedbackRequestsPerWindow < 0 {
		return fmt.Errorf("rate limit feedback requests must not be negative")
	}
	if cfg.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("rate limit window seconds must be positive")
	}

	return nil
}
