// Package config loads the server configuration from environment variables.
//
// Server settings:
//
//	STOCKROOM_HOST="0.0.0.0"
//	STOCKROOM_PORT="8080"
//	STOCKROOM_HEALTH_PORT="9090"
//	STOCKROOM_SHUTDOWN_TIMEOUT="30s"
//
// Database and cache settings:
//
//	STOCKROOM_POSTGRES_URL="postgres://localhost/stockroom?sslmode=disable"
//	STOCKROOM_POSTGRES_MAX_CONNS="20"
//	STOCKROOM_REDIS_URL="redis://localhost:6379"   # optional, enables the shared role cache
//	STOCKROOM_ROLE_CACHE_TTL="5m"
//
// Public identifier settings:
//
//	STOCKROOM_ENTITY_TYPES_FILE="/etc/stockroom/entity_types.yaml"
//	STOCKROOM_ENTITY_ID_MAX_ATTEMPTS="10"
//	STOCKROOM_BACKFILL_SCHEDULE="@every 1h"        # empty disables the repair job
//
// Observability settings:
//
//	STOCKROOM_LOG_LEVEL="info"  # debug, info, warn, error
//	STOCKROOM_OTEL_ENABLED="true"
//	STOCKROOM_OTEL_ENDPOINT="otel-collector:4317"
package config
