package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/platinummonkey/stockroom/pkg/entityid"
	"github.com/platinummonkey/stockroom/pkg/observability"
	"github.com/platinummonkey/stockroom/pkg/storage/postgres"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.envValue)

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvBool tests the getEnvBool helper function
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		defaultValue bool
		envValue     string
		want         bool
	}{
		{name: "true", defaultValue: false, envValue: "true", want: true},
		{name: "one", defaultValue: false, envValue: "1", want: true},
		{name: "upper case", defaultValue: false, envValue: "TRUE", want: true},
		{name: "false", defaultValue: true, envValue: "false", want: false},
		{name: "unset", defaultValue: true, envValue: "", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.envValue)

			if got := getEnvBool("TEST_BOOL", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvNumbers(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "forty-two")
	t.Setenv("TEST_FLOAT", "0.25")
	t.Setenv("TEST_DURATION", "90s")
	t.Setenv("TEST_BAD_DURATION", "soon")

	if got := getEnvInt("TEST_INT", 1); got != 42 {
		t.Errorf("getEnvInt() = %d, want 42", got)
	}
	if got := getEnvInt("TEST_BAD_INT", 1); got != 1 {
		t.Errorf("getEnvInt() with invalid value = %d, want default 1", got)
	}
	if got := getEnvFloat("TEST_FLOAT", 1); got != 0.25 {
		t.Errorf("getEnvFloat() = %v, want 0.25", got)
	}
	if got := getEnvDuration("TEST_DURATION", time.Second); got != 90*time.Second {
		t.Errorf("getEnvDuration() = %v, want 90s", got)
	}
	if got := getEnvDuration("TEST_BAD_DURATION", time.Second); got != time.Second {
		t.Errorf("getEnvDuration() with invalid value = %v, want default 1s", got)
	}
}

func TestLoadServerConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		for _, k := range []string{"STOCKROOM_HOST", "STOCKROOM_PORT", "STOCKROOM_HEALTH_PORT", "STOCKROOM_READ_TIMEOUT"} {
			t.Setenv(k, "")
		}

		got := loadServerConfig()
		if got.Host != "0.0.0.0" || got.Port != "8080" || got.HealthPort != "9090" {
			t.Errorf("unexpected defaults: %+v", got)
		}
		if got.ReadTimeout != 15*time.Second {
			t.Errorf("ReadTimeout = %v, want 15s", got.ReadTimeout)
		}
	})

	t.Run("custom values", func(t *testing.T) {
		t.Setenv("STOCKROOM_HOST", "localhost")
		t.Setenv("STOCKROOM_PORT", "3000")
		t.Setenv("STOCKROOM_SHUTDOWN_TIMEOUT", "60s")

		got := loadServerConfig()
		if got.Host != "localhost" || got.Port != "3000" {
			t.Errorf("unexpected server config: %+v", got)
		}
		if got.ShutdownTimeout != time.Minute {
			t.Errorf("ShutdownTimeout = %v, want 1m", got.ShutdownTimeout)
		}
	})
}

func TestLoadDatabaseConfig(t *testing.T) {
	t.Setenv("STOCKROOM_POSTGRES_URL", "postgres://localhost/stockroom")
	t.Setenv("STOCKROOM_POSTGRES_MAX_CONNS", "40")
	t.Setenv("STOCKROOM_POSTGRES_MIN_CONNS", "")

	got := loadDatabaseConfig()
	if got.URL != "postgres://localhost/stockroom" {
		t.Errorf("URL = %q", got.URL)
	}
	if got.MaxConns != 40 {
		t.Errorf("MaxConns = %d, want 40", got.MaxConns)
	}
	if got.MinConns != 5 {
		t.Errorf("MinConns = %d, want pool default 5", got.MinConns)
	}
}

func TestLoadEntityIDConfig(t *testing.T) {
	for _, k := range []string{
		"STOCKROOM_ENTITY_TYPES_FILE", "STOCKROOM_ENTITY_ID_MAX_ATTEMPTS", "STOCKROOM_ENTITY_ID_BACKOFF",
		"STOCKROOM_BACKFILL_BATCH_SIZE", "STOCKROOM_BACKFILL_CONCURRENCY", "STOCKROOM_BACKFILL_SCHEDULE",
		"STOCKROOM_BACKFILL_TYPES",
	} {
		t.Setenv(k, "")
	}

	got := loadEntityIDConfig()
	if got.MaxAttempts != entityid.DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", got.MaxAttempts, entityid.DefaultMaxAttempts)
	}
	if got.BatchSize != entityid.DefaultBatchSize || got.Concurrency != entityid.DefaultConcurrency {
		t.Errorf("unexpected backfill defaults: %+v", got)
	}
	if got.BackfillSchedule != "@every 1h" {
		t.Errorf("BackfillSchedule = %q", got.BackfillSchedule)
	}
	if len(got.AllocatorOptions()) != 4 {
		t.Errorf("expected 4 allocator options")
	}
	if strings.Join(got.BackfillTypes, ",") != strings.Join(DefaultBackfillTypes, ",") {
		t.Errorf("BackfillTypes = %v", got.BackfillTypes)
	}
}

func TestLoadEntityIDConfig_BackfillTypes(t *testing.T) {
	t.Setenv("STOCKROOM_BACKFILL_TYPES", "item, user,,")

	got := loadEntityIDConfig()
	if strings.Join(got.BackfillTypes, ",") != "item,user" {
		t.Errorf("BackfillTypes = %v, want [item user]", got.BackfillTypes)
	}
}

func TestLoadObservabilityConfig(t *testing.T) {
	t.Setenv("STOCKROOM_LOG_LEVEL", "debug")
	t.Setenv("STOCKROOM_OTEL_ENABLED", "true")
	t.Setenv("STOCKROOM_OTEL_SERVICE_NAME", "")

	got := loadObservabilityConfig()
	if got.LogLevel != observability.DebugLevel {
		t.Errorf("LogLevel = %v, want debug", got.LogLevel)
	}
	if !got.OTelEnabled {
		t.Error("expected OTel enabled")
	}

	otelCfg := got.OTel()
	if otelCfg.ServiceName != "stockroom" || otelCfg.SampleRatio != 1.0 {
		t.Errorf("unexpected OTel config: %+v", otelCfg)
	}
}

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: "8080", HealthPort: "9090"},
		Database: postgres.DefaultConnectionConfig("postgres://localhost/stockroom"),
		EntityID: EntityIDConfig{
			MaxAttempts:      10,
			BatchSize:        100,
			Concurrency:      2,
			BackfillSchedule: "*/15 * * * *",
		},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "backfill disabled", mutate: func(c *Config) { c.EntityID.BackfillSchedule = "" }},
		{
			name:    "missing port",
			mutate:  func(c *Config) { c.Server.Port = "" },
			wantErr: "server port is required",
		},
		{
			name:    "same ports",
			mutate:  func(c *Config) { c.Server.HealthPort = "8080" },
			wantErr: "must be different",
		},
		{
			name:    "missing postgres url",
			mutate:  func(c *Config) { c.Database.URL = "" },
			wantErr: "postgres URL is required",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.EntityID.MaxAttempts = 0 },
			wantErr: "max attempts",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.EntityID.Concurrency = 0 },
			wantErr: "concurrency",
		},
		{
			name:    "bad schedule",
			mutate:  func(c *Config) { c.EntityID.BackfillSchedule = "every tuesday" },
			wantErr: "invalid backfill schedule",
		},
		{
			name: "otel without endpoint",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelServiceName = "stockroom"
			},
			wantErr: "endpoint is required",
		},
		{
			name: "otel sample ratio out of range",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelEndpoint = "collector:4317"
				c.Observability.OTelServiceName = "stockroom"
				c.Observability.OTelSampleRatio = 2
			},
			wantErr: "sample ratio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestEntityIDConfig_Registry(t *testing.T) {
	reg, err := EntityIDConfig{}.Registry()
	if err != nil {
		t.Fatalf("Registry() error: %v", err)
	}
	if _, err := reg.Lookup("item"); err != nil {
		t.Errorf("default registry should know items: %v", err)
	}

	path := filepath.Join(t.TempDir(), "entity_types.yaml")
	if err := os.WriteFile(path, []byte("entity_types:\n  - name: asset\n    prefix: AST\n    table: assets\n    scope: tenant\n"), 0o600); err != nil {
		t.Fatalf("failed to write registry file: %v", err)
	}

	reg, err = EntityIDConfig{TypesFile: path}.Registry()
	if err != nil {
		t.Fatalf("Registry() error: %v", err)
	}
	asset, err := reg.Lookup("asset")
	if err != nil {
		t.Fatalf("expected asset type: %v", err)
	}
	if asset.Prefix != "AST" {
		t.Errorf("Prefix = %q, want AST", asset.Prefix)
	}

	if _, err := (EntityIDConfig{TypesFile: filepath.Join(t.TempDir(), "missing.yaml")}).Registry(); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		t.Setenv("STOCKROOM_PORT", "8080")
		t.Setenv("STOCKROOM_HEALTH_PORT", "9090")
		t.Setenv("STOCKROOM_POSTGRES_URL", "postgres://localhost/stockroom")
		t.Setenv("STOCKROOM_BACKFILL_SCHEDULE", "")
		t.Setenv("STOCKROOM_OTEL_ENABLED", "false")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Database.URL != "postgres://localhost/stockroom" {
			t.Errorf("Database.URL = %q", cfg.Database.URL)
		}
	})

	t.Run("same ports", func(t *testing.T) {
		t.Setenv("STOCKROOM_PORT", "8080")
		t.Setenv("STOCKROOM_HEALTH_PORT", "8080")
		t.Setenv("STOCKROOM_POSTGRES_URL", "postgres://localhost/stockroom")

		if _, err := LoadConfig(); err == nil {
			t.Error("LoadConfig() expected error")
		}
	})
}
