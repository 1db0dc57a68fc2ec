package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/stockroom/pkg/entityid"
	"github.com/platinummonkey/stockroom/pkg/observability"
	"github.com/platinummonkey/stockroom/pkg/storage/postgres"
)

// DefaultBackfillTypes are the entity types backed by tables this service migrates
var DefaultBackfillTypes = []string{"organization", "plan", "role", "user", "location", "item"}

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database postgres.ConnectionConfig

	// Redis configuration. An empty URL disables the shared role cache.
	Redis postgres.RedisConfig

	// Role cache configuration
	RoleCache RoleCacheConfig

	// Public identifier configuration
	EntityID EntityIDConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
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

// RoleCacheConfig holds role cache settings
type RoleCacheConfig struct {
	Size int
	TTL  time.Duration
}

// EntityIDConfig holds public identifier allocation settings
type EntityIDConfig struct {
	// TypesFile is an optional YAML file merged over the built-in entity types
	TypesFile   string
	MaxAttempts int
	Backoff     time.Duration
	BatchSize   int
	Concurrency int

	// BackfillSchedule is a cron expression for the repair backfill. Empty disables it.
	BackfillSchedule string

	// BackfillTypes are the entity types the scheduled backfill repairs
	BackfillTypes []string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
	OTelSampleRatio    float64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		RoleCache:     loadRoleCacheConfig(),
		EntityID:      loadEntityIDConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("STOCKROOM_HOST", "0.0.0.0"),
		Port:            getEnv("STOCKROOM_PORT", "8080"),
		ReadTimeout:     getEnvDuration("STOCKROOM_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("STOCKROOM_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("STOCKROOM_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("STOCKROOM_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("STOCKROOM_HEALTH_PORT", "9090"),
	}
}

// loadDatabaseConfig loads postgres configuration from environment
func loadDatabaseConfig() postgres.ConnectionConfig {
	cfg := postgres.DefaultConnectionConfig(getEnv("STOCKROOM_POSTGRES_URL", ""))

	if maxConns := getEnvInt("STOCKROOM_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns := getEnvInt("STOCKROOM_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.MinConns = minConns
	}
	if timeout := getEnvDuration("STOCKROOM_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.Timeout = timeout
	}
	if lifetime := getEnvDuration("STOCKROOM_POSTGRES_MAX_LIFETIME", 0); lifetime > 0 {
		cfg.MaxLifetime = lifetime
	}

	return cfg
}

// loadRedisConfig loads redis configuration from environment
func loadRedisConfig() postgres.RedisConfig {
	return postgres.RedisConfig{
		URL:        getEnv("STOCKROOM_REDIS_URL", ""),
		Password:   getEnv("STOCKROOM_REDIS_PASSWORD", ""),
		DB:         getEnvInt("STOCKROOM_REDIS_DB", 0),
		MaxRetries: getEnvInt("STOCKROOM_REDIS_MAX_RETRIES", 3),
		PoolSize:   getEnvInt("STOCKROOM_REDIS_POOL_SIZE", 10),
	}
}

func loadRoleCacheConfig() RoleCacheConfig {
	return RoleCacheConfig{
		Size: getEnvInt("STOCKROOM_ROLE_CACHE_SIZE", 1024),
		TTL:  getEnvDuration("STOCKROOM_ROLE_CACHE_TTL", 5*time.Minute),
	}
}

// loadEntityIDConfig loads allocator and backfill settings from environment
func loadEntityIDConfig() EntityIDConfig {
	return EntityIDConfig{
		TypesFile:        getEnv("STOCKROOM_ENTITY_TYPES_FILE", ""),
		MaxAttempts:      getEnvInt("STOCKROOM_ENTITY_ID_MAX_ATTEMPTS", entityid.DefaultMaxAttempts),
		Backoff:          getEnvDuration("STOCKROOM_ENTITY_ID_BACKOFF", entityid.DefaultBackoff),
		BatchSize:        getEnvInt("STOCKROOM_BACKFILL_BATCH_SIZE", entityid.DefaultBatchSize),
		Concurrency:      getEnvInt("STOCKROOM_BACKFILL_CONCURRENCY", entityid.DefaultConcurrency),
		BackfillSchedule: getEnv("STOCKROOM_BACKFILL_SCHEDULE", "@every 1h"),
		BackfillTypes:    getEnvList("STOCKROOM_BACKFILL_TYPES", DefaultBackfillTypes),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("STOCKROOM_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("STOCKROOM_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("STOCKROOM_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("STOCKROOM_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("STOCKROOM_OTEL_SERVICE_NAME", "stockroom"),
		OTelServiceVersion: getEnv("STOCKROOM_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("STOCKROOM_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("STOCKROOM_OTEL_SAMPLE_RATIO", 1.0),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
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

	if c.EntityID.MaxAttempts <= 0 {
		return fmt.Errorf("entity id max attempts must be positive, got %d", c.EntityID.MaxAttempts)
	}
	if c.EntityID.BatchSize <= 0 {
		return fmt.Errorf("backfill batch size must be positive, got %d", c.EntityID.BatchSize)
	}
	if c.EntityID.Concurrency <= 0 {
		return fmt.Errorf("backfill concurrency must be positive, got %d", c.EntityID.Concurrency)
	}
	if c.EntityID.BackfillSchedule != "" {
		if _, err := cron.ParseStandard(c.EntityID.BackfillSchedule); err != nil {
			return fmt.Errorf("invalid backfill schedule %q: %w", c.EntityID.BackfillSchedule, err)
		}
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
		if c.Observability.OTelSampleRatio < 0 || c.Observability.OTelSampleRatio > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be between 0 and 1")
		}
	}

	return nil
}

// Registry returns the entity type registry, merged with TypesFile when set
func (c EntityIDConfig) Registry() (*entityid.Registry, error) {
	if c.TypesFile == "" {
		return entityid.DefaultRegistry(), nil
	}
	return entityid.LoadRegistry(c.TypesFile)
}

// AllocatorOptions converts the settings into allocator options
func (c EntityIDConfig) AllocatorOptions() []entityid.Option {
	return []entityid.Option{
		entityid.WithMaxAttempts(c.MaxAttempts),
		entityid.WithBackoff(c.Backoff),
		entityid.WithBatchSize(c.BatchSize),
		entityid.WithConcurrency(c.Concurrency),
	}
}

// OTel converts the settings into an OpenTelemetry configuration
func (c ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.OTelEnabled,
		Endpoint:       c.OTelEndpoint,
		ServiceName:    c.OTelServiceName,
		ServiceVersion: c.OTelServiceVersion,
		Insecure:       c.OTelInsecure,
		SampleRatio:    c.OTelSampleRatio,
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
