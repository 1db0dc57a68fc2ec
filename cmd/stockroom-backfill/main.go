package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/stockroom/pkg/auth"
	"github.com/platinummonkey/stockroom/pkg/config"
	"github.com/platinummonkey/stockroom/pkg/entityid"
	"github.com/platinummonkey/stockroom/pkg/observability"
	"github.com/platinummonkey/stockroom/pkg/storage/postgres"
)

var (
	dbURL       = flag.String("db-url", getEnv("STOCKROOM_POSTGRES_URL", "postgres://localhost/stockroom?sslmode=disable"), "PostgreSQL connection URL")
	types       = flag.String("types", getEnv("STOCKROOM_BACKFILL_TYPES", strings.Join(config.DefaultBackfillTypes, ",")), "Comma-separated entity types to backfill, or \"all\" for every registered type")
	typesFile   = flag.String("types-file", getEnv("STOCKROOM_ENTITY_TYPES_FILE", ""), "YAML file merged over the built-in entity types")
	batchSize   = flag.Int("batch-size", entityid.DefaultBatchSize, "Rows scanned per batch")
	concurrency = flag.Int("concurrency", entityid.DefaultConcurrency, "Entity types backfilled in parallel")
	maxAttempts = flag.Int("max-attempts", entityid.DefaultMaxAttempts, "Allocation attempts per row")
	timeout     = flag.Duration("timeout", time.Hour, "Overall deadline for the run")
	listTypes   = flag.Bool("list", false, "Print the registered entity types and exit")
	verbose     = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	registry := entityid.DefaultRegistry()
	if *typesFile != "" {
		var err error
		registry, err = entityid.LoadRegistry(*typesFile)
		if err != nil {
			log.WithError(err).Fatal("Failed to load entity types")
		}
	}

	if *listTypes {
		for _, et := range registry.Types() {
			fmt.Printf("%-14s %-5s %-14s %s\n", et.Name, et.Prefix, et.Table, et.Scope)
		}
		return
	}

	db, err := postgres.Open(postgres.DefaultConnectionConfig(*dbURL))
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	level := observability.WarnLevel
	if *verbose {
		level = observability.DebugLevel
	}
	allocator := entityid.NewAllocator(db,
		entityid.WithRegistry(registry),
		entityid.WithBatchSize(*batchSize),
		entityid.WithConcurrency(*concurrency),
		entityid.WithMaxAttempts(*maxAttempts),
		entityid.WithLogger(observability.NewLogger(level, os.Stderr)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	ctx = auth.WithActorContext(ctx, auth.NewConsoleContext())

	selected := splitTypes(*types)
	log.WithField("types", selected).Info("Starting backfill")
	start := time.Now()

	results, err := allocator.BackfillAll(ctx, selected...)
	failed := 0
	for _, res := range results {
		if res == nil {
			continue
		}
		failed += res.Failed
		log.WithFields(logrus.Fields{
			"entity_type": res.EntityType,
			"scanned":     res.Scanned,
			"allocated":   res.Allocated,
			"skipped":     res.Skipped,
			"failed":      res.Failed,
		}).Info("Backfilled entity type")
	}
	if err != nil {
		log.WithError(err).Fatal("Backfill failed")
	}

	entry := log.WithField("duration", time.Since(start).Round(time.Millisecond))
	if failed > 0 {
		// rows left without a public ID are picked up by the next run
		entry.WithField("failed", failed).Warn("Backfill finished with failures")
		os.Exit(2)
	}
	entry.Info("Backfill complete")
}

// splitTypes returns nil for "all" so that BackfillAll covers the whole registry
func splitTypes(s string) []string {
	if strings.TrimSpace(s) == "all" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
