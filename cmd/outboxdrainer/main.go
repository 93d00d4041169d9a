// Package main runs the cleanup outbox drain worker standalone, outside
// the HTTP server process, for deployments that want to scale the drain
// loop independently of request traffic.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/juspay/airborne/internal/config"
	"github.com/juspay/airborne/internal/domain"
	"github.com/juspay/airborne/internal/externalconfig"
	"github.com/juspay/airborne/internal/outbox"
	"github.com/juspay/airborne/internal/storage"
	"github.com/juspay/airborne/internal/storage/postgres"
	"github.com/juspay/airborne/internal/storage/sqlite"
	"github.com/juspay/airborne/pkg/logger"
	"github.com/juspay/airborne/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var outboxStore storage.OutboxStore
	switch cfg.Profile {
	case config.ProfileStandard:
		pool := postgres.New(cfg.Database, log)
		if err := pool.Connect(ctx); err != nil {
			log.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		outboxStore = postgres.NewOutboxStore(pool)

	case config.ProfileLite:
		db, err := sqlite.Open(ctx, cfg.Database.SQLitePath, log)
		if err != nil {
			log.Error("failed to open sqlite", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		outboxStore = sqlite.NewOutboxStore(db)

	default:
		log.Error("unknown deployment profile", "profile", cfg.Profile)
		os.Exit(1)
	}

	externalClient := externalconfig.New(cfg.ExternalConfig, metrics.NewExternalConfigMetrics(), log)

	worker := outbox.New(outboxStore, cfg.Outbox, metrics.NewOutboxMetrics(), log)
	worker.Register("default_config", func(ctx context.Context, row *domain.OutboxRow) error {
		org, _ := docString(row.State, "org")
		workspaceName, _ := docString(row.State, "workspace")
		key, _ := docString(row.State, "key")
		return externalClient.DeleteDefaultConfig(ctx, org, workspaceName, key)
	})
	worker.Register("experiment", func(ctx context.Context, row *domain.OutboxRow) error {
		experimentID, _ := docString(row.State, "experiment_id")
		return externalClient.DiscardExperiment(ctx, experimentID)
	})

	worker.Start(ctx)
	defer worker.Stop()

	log.Info("outbox drainer started", "poll_interval", cfg.Outbox.PollInterval, "batch_size", cfg.Outbox.BatchSize)

	<-ctx.Done()
	log.Info("shutdown signal received")
}

// docString reads a string field out of an object-kind Document.
func docString(d domain.Document, key string) (string, bool) {
	if d.Kind != domain.DocumentObject {
		return "", false
	}
	field, ok := d.Object[key]
	if !ok || field.Kind != domain.DocumentString {
		return "", false
	}
	return field.String, true
}
