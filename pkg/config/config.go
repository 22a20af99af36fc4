// Package config loads service configuration from ATLVS_* environment
// variables with sensible defaults for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ghxstship/atlvs-sub007/pkg/authz"
	"github.com/ghxstship/atlvs-sub007/pkg/membership"
	"github.com/ghxstship/atlvs-sub007/pkg/observability"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig
	Database      membership.ConnectionConfig
	Authz         AuthzConfig
	Redis         RedisConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// AuthzConfig holds authorization engine settings.
type AuthzConfig struct {
	CacheTTL  time.Duration
	CacheSize int

	// OverridesFile points to an optional YAML role-table override file.
	// When set, the file is loaded at startup and watched for changes.
	OverridesFile string

	// FlushSchedule is a cron expression for periodic full cache flushes.
	// Empty disables the janitor.
	FlushSchedule string

	// AuditWebhookURL, when set, receives signed audit event deliveries.
	AuditWebhookURL    string
	AuditWebhookSecret string
}

// RedisConfig holds the shared-cache settings. Enabled switches the engine
// from the per-process cache to Redis.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// ObservabilityConfig holds logging, metrics and tracing settings.
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Authz:         loadAuthzConfig(),
		Redis:         loadRedisConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("ATLVS_HOST", "0.0.0.0"),
		Port:            getEnv("ATLVS_PORT", "8080"),
		ReadTimeout:     getEnvDuration("ATLVS_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("ATLVS_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("ATLVS_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("ATLVS_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("ATLVS_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() membership.ConnectionConfig {
	return membership.ConnectionConfig{
		URL:         getEnv("ATLVS_POSTGRES_URL", ""),
		MaxConns:    getEnvInt("ATLVS_POSTGRES_MAX_CONNS", 25),
		MinConns:    getEnvInt("ATLVS_POSTGRES_MIN_CONNS", 5),
		Timeout:     getEnvDuration("ATLVS_POSTGRES_TIMEOUT", 5*time.Second),
		MaxLifetime: getEnvDuration("ATLVS_POSTGRES_MAX_LIFETIME", 30*time.Minute),
		MaxIdleTime: getEnvDuration("ATLVS_POSTGRES_MAX_IDLE_TIME", 5*time.Minute),
	}
}

func loadAuthzConfig() AuthzConfig {
	return AuthzConfig{
		CacheTTL:           getEnvDuration("ATLVS_AUTHZ_CACHE_TTL", authz.DefaultCacheTTL),
		CacheSize:          getEnvInt("ATLVS_AUTHZ_CACHE_SIZE", 4096),
		OverridesFile:      getEnv("ATLVS_AUTHZ_OVERRIDES_FILE", ""),
		FlushSchedule:      getEnv("ATLVS_AUTHZ_FLUSH_SCHEDULE", ""),
		AuditWebhookURL:    getEnv("ATLVS_AUDIT_WEBHOOK_URL", ""),
		AuditWebhookSecret: getEnv("ATLVS_AUDIT_WEBHOOK_SECRET", ""),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:  getEnvBool("ATLVS_REDIS_ENABLED", false),
		Addr:     getEnv("ATLVS_REDIS_ADDR", "localhost:6379"),
		Password: getEnv("ATLVS_REDIS_PASSWORD", ""),
		DB:       getEnvInt("ATLVS_REDIS_DB", 0),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("ATLVS_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("ATLVS_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("ATLVS_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("ATLVS_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("ATLVS_OTEL_SERVICE_NAME", "atlvs-authz"),
		OTelServiceVersion: getEnv("ATLVS_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("ATLVS_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("postgres max conns must be >= min conns")
	}

	if c.Authz.CacheTTL <= 0 {
		return fmt.Errorf("authz cache TTL must be positive")
	}
	if c.Authz.CacheSize <= 0 {
		return fmt.Errorf("authz cache size must be positive")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required when redis is enabled")
	}

	if c.Observability.OTelEnabled && c.Observability.OTelEndpoint == "" {
		return fmt.Errorf("otel endpoint is required when otel is enabled")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
