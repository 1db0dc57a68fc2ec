package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/stockroom/pkg/api"
	"github.com/platinummonkey/stockroom/pkg/audit"
	"github.com/platinummonkey/stockroom/pkg/auth"
	"github.com/platinummonkey/stockroom/pkg/config"
	"github.com/platinummonkey/stockroom/pkg/entityid"
	"github.com/platinummonkey/stockroom/pkg/inventory"
	"github.com/platinummonkey/stockroom/pkg/observability"
	"github.com/platinummonkey/stockroom/pkg/orgs"
	"github.com/platinummonkey/stockroom/pkg/rbac"
	"github.com/platinummonkey/stockroom/pkg/storage"
	"github.com/platinummonkey/stockroom/pkg/storage/postgres"
	"github.com/platinummonkey/stockroom/pkg/tenancy"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).WithField("version", version)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Stockroom exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Open(cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("Connected to postgres")

	if err := migrate(ctx, db, cfg.Observability.LogLevel); err != nil {
		db.Close()
		return err
	}

	roles := rbac.NewStore(db)
	if err := roles.EnsureSystemRoles(ctx); err != nil {
		db.Close()
		return err
	}

	var redisClient *redis.Client
	var roleCache rbac.Cache
	if cfg.Redis.URL != "" {
		redisClient, err = postgres.OpenRedis(cfg.Redis)
		if err != nil {
			db.Close()
			return err
		}
		roleCache = rbac.NewRedisCache(redisClient, cfg.RoleCache.TTL)
		logger.Info("Using redis role cache")
	} else {
		roleCache = rbac.NewLRUCache(cfg.RoleCache.Size, cfg.RoleCache.TTL)
	}

	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		logger.WithError(err).Warn("Continuing without OpenTelemetry")
	}

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	auditLogger, err := audit.NewDBLogger(db)
	if err != nil {
		db.Close()
		return err
	}

	entityTypes, err := cfg.EntityID.Registry()
	if err != nil {
		db.Close()
		return err
	}

	cachedRoles := rbac.NewCachedStore(roles, roleCache)
	engine := tenancy.NewEngine(
		tenancy.WithRoleSource(cachedRoles),
		tenancy.WithLogger(logger),
		tenancy.WithMetrics(metrics),
		tenancy.WithAuditLogger(auditLogger),
	)
	allocator := entityid.NewAllocator(db, append(cfg.EntityID.AllocatorOptions(),
		entityid.WithRegistry(entityTypes),
		entityid.WithLogger(logger),
		entityid.WithMetrics(metrics),
		entityid.WithAuditLogger(auditLogger),
	)...)

	server := api.NewServer(api.Dependencies{
		DB:        db,
		Engine:    engine,
		Allocator: allocator,
		Tokens:    auth.NewTokenStore(db),
		Actors:    auth.NewResolver(auth.NewUserStore(db), cachedRoles),
		Audit:     auditLogger,
		Logger:    logger,
		Metrics:   metrics,
	})

	scheduler, err := newScheduler(cfg, allocator, db, metrics, logger)
	if err != nil {
		db.Close()
		return err
	}
	scheduler.Start()

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      otelhttp.NewHandler(server, "stockroom-api"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	opsServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           api.NewOpsRouter(observability.NewHealthChecker(db, redisClient, version), registry),
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, opsServer)
	shutdown.Register("scheduler", func(ctx context.Context) error {
		select {
		case <-scheduler.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	shutdown.Register("otel", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})
	shutdown.Register("audit", func(context.Context) error { return auditLogger.Close() })
	if redisClient != nil {
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
	}
	shutdown.Register("database", func(context.Context) error { return db.Close() })

	for _, srv := range []*http.Server{apiServer, opsServer} {
		go func(srv *http.Server) {
			logger.WithField("addr", srv.Addr).Info("Listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).WithField("addr", srv.Addr).Error("Server failed")
				cancel()
			}
		}(srv)
	}

	return shutdown.WaitForSignal(ctx)
}

// migrate applies every component's migrations, referenced tables first
func migrate(ctx context.Context, db *sql.DB, level observability.LogLevel) error {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if level == observability.DebugLevel {
		log.SetLevel(logrus.DebugLevel)
	}

	return storage.NewMigrator(db, log.WithField("component", "migrations")).Run(ctx,
		orgs.Migrations(),
		rbac.Migrations(),
		auth.Migrations(),
		inventory.Migrations(),
		entityid.Migrations(),
		audit.Migrations(),
	)
}

// newScheduler schedules the repair backfill and the connection pool gauges.
// Jobs that overrun their interval are skipped rather than stacked.
func newScheduler(cfg *config.Config, allocator *entityid.Allocator, db *sql.DB, metrics *observability.Metrics, logger *observability.Logger) (*cron.Cron, error) {
	cronLog := observability.CronLogger(logger)
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	if spec := cfg.EntityID.BackfillSchedule; spec != "" {
		types := cfg.EntityID.BackfillTypes
		_, err := c.AddFunc(spec, func() {
			ctx := auth.WithActorContext(context.Background(), auth.NewConsoleContext())
			log := logger.WithField("job", "entity_id_backfill")

			results, err := allocator.BackfillAll(ctx, types...)
			for _, res := range results {
				if res == nil {
					continue
				}
				log.WithFields(map[string]interface{}{
					"entity_type": res.EntityType,
					"allocated":   res.Allocated,
					"skipped":     res.Skipped,
					"failed":      res.Failed,
				}).Info("Backfill pass complete")
			}
			if err != nil {
				log.WithError(err).Error("Backfill failed")
			}
		})
		if err != nil {
			return nil, err
		}
		logger.WithField("schedule", spec).Info("Scheduled entity id backfill")
	}

	if metrics != nil {
		if _, err := c.AddFunc("@every 15s", func() { metrics.UpdateDBStats(db.Stats()) }); err != nil {
			return nil, err
		}
	}
	return c, nil
}
