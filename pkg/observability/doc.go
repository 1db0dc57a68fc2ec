// Package observability provides structured logging, Prometheus metrics, health checks
// and OpenTelemetry tracing.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("entity_type", "item").Warn("public id allocation failed")
//
// FromContext annotates the context logger with the request, user and
// organization IDs set by the HTTP middleware.
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordAuthorization("items", "update", "deny", "cross_org")
//
// Every Record method is safe on a nil *Metrics.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(router, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Shutdown
//
// ShutdownManager drains HTTP servers on SIGINT/SIGTERM and then runs the
// registered hooks in order.
package observability
