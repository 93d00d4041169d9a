// Package main is the entry point for the release engine's HTTP server:
// it wires storage, caching, locking, and domain components together per
// the active deployment profile and serves the admin and serve-path APIs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/juspay/airborne/internal/advisorylock"
	"github.com/juspay/airborne/internal/api"
	"github.com/juspay/airborne/internal/catalog"
	"github.com/juspay/airborne/internal/config"
	"github.com/juspay/airborne/internal/dimension"
	"github.com/juspay/airborne/internal/domain"
	"github.com/juspay/airborne/internal/externalconfig"
	"github.com/juspay/airborne/internal/objectstore"
	"github.com/juspay/airborne/internal/outbox"
	"github.com/juspay/airborne/internal/pkgcomposer"
	"github.com/juspay/airborne/internal/release"
	"github.com/juspay/airborne/internal/resolver"
	"github.com/juspay/airborne/internal/schema"
	"github.com/juspay/airborne/internal/storage"
	"github.com/juspay/airborne/internal/storage/postgres"
	"github.com/juspay/airborne/internal/storage/sqlite"
	"github.com/juspay/airborne/internal/txn"
	"github.com/juspay/airborne/internal/workspace"
	"github.com/juspay/airborne/pkg/logger"
	"github.com/juspay/airborne/pkg/metrics"
)

const (
	serviceName    = "release-engine"
	serviceVersion = "1.0.0"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", serviceName, serviceVersion)
		os.Exit(0)
	}

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

	log.Info("starting release engine", "service", serviceName, "version", serviceVersion, "profile", cfg.Profile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, pgPool, closeStorage, err := buildStorage(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize storage backend", "error", err)
		os.Exit(1)
	}
	defer closeStorage()

	var redisClient *redis.Client
	if cfg.Profile == config.ProfileStandard && cfg.WorkspaceCache.UseRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			MaxRetries:   cfg.Redis.MaxRetries,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("redis ping failed, workspace cache will run degraded to its local tier only", "error", err)
		}
		defer redisClient.Close()
	}

	var locker *advisorylock.Locker
	if pgPool != nil {
		locker = advisorylock.New(pgPool, log, metrics.NewLockMetrics())
	}

	workspaceDir, err := workspace.New(stores.workspace, cfg.WorkspaceCache, redisClient, metrics.NewWorkspaceCacheMetrics(), log)
	if err != nil {
		log.Error("failed to initialize workspace directory", "error", err)
		os.Exit(1)
	}

	objectStore := objectstore.New(cfg.ObjectStore, metrics.NewObjectStoreMetrics(), log)
	externalClient := externalconfig.New(cfg.ExternalConfig, metrics.NewExternalConfigMetrics(), log)

	cat := catalog.New(stores.files, objectStore, cfg.ObjectStore.Bucket, metrics.NewCatalogMetrics(), log)
	composer := pkgcomposer.New(stores.packages, stores.files, log)
	dimensions := dimension.New(stores.dimensions, log, locker)

	txnManager := txn.New(metrics.NewTxnMetrics(), log)
	outboxMetrics := metrics.NewOutboxMetrics()

	schemaSvc := schema.New(stores.schema, locker, txnManager)
	releases := release.New(stores.releases, workspaceDir, externalClient, txnManager, stores.outbox, outboxMetrics, log)
	resolve := resolver.New(workspaceDir, externalClient, composer, cat, metrics.NewResolverMetrics(), log)

	outboxWorker := outbox.New(stores.outbox, cfg.Outbox, outboxMetrics, log)
	registerCompensators(outboxWorker, externalClient)
	outboxWorker.Start(ctx)
	defer outboxWorker.Stop()

	routerCfg := api.DefaultRouterConfig(log)
	routerCfg.Catalog = cat
	routerCfg.Packages = composer
	routerCfg.Dimensions = dimensions
	routerCfg.Schema = schemaSvc
	routerCfg.Releases = releases
	routerCfg.Resolver = resolve
	router := api.NewRouter(routerCfg)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: metricsMux,
		}
		go func() {
			log.Info("metrics server starting", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", "error", err)
			}
		}()
	}

	go func() {
		log.Info("http server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()

	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	log.Info("server exited")
}

// registerCompensators binds the outbox's durable compensating actions to
// the external configuration service's delete and discard endpoints: the only
// remote operations the current domain has for undoing a published
// default config or a created experiment after a downstream step in the
// same run-fail-end group fails. Object-store writes have no matching
// Delete operation (objectstore.HTTPStore exposes none), so there is no
// "delete uploaded file" compensator to register.
func registerCompensators(w *outbox.Worker, external *externalconfig.HTTPClient) {
	w.Register("default_config", func(ctx context.Context, row *domain.OutboxRow) error {
		org, _ := docString(row.State, "org")
		workspaceName, _ := docString(row.State, "workspace")
		key, _ := docString(row.State, "key")
		return external.DeleteDefaultConfig(ctx, org, workspaceName, key)
	})
	w.Register("experiment", func(ctx context.Context, row *domain.OutboxRow) error {
		experimentID, _ := docString(row.State, "experiment_id")
		return external.DiscardExperiment(ctx, experimentID)
	})
}

// docString reads a string field out of an object-kind Document, the
// shape internal/txn rollback callbacks use when enqueuing outbox state
// via outbox.Enqueue.
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

// storageSet bundles the per-store handles built for the active profile.
type storageSet struct {
	files      storage.FileStore
	packages   storage.PackageStore
	dimensions storage.DimensionStore
	schema     storage.PropertySchemaStore
	releases   storage.ReleaseStore
	workspace  storage.WorkspaceStore
	outbox     storage.OutboxStore
}

// buildStorage selects and constructs the storage backend for cfg.Profile,
// returning a close func that releases whatever connection it opened.
func buildStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (*storageSet, *pgxpool.Pool, func(), error) {
	switch cfg.Profile {
	case config.ProfileStandard:
		pool := postgres.New(cfg.Database, log)
		if err := pool.Connect(ctx); err != nil {
			return nil, nil, func() {}, fmt.Errorf("connect postgres: %w", err)
		}
		stores := &storageSet{
			files:      postgres.NewFileStore(pool),
			packages:   postgres.NewPackageStore(pool),
			dimensions: postgres.NewDimensionStore(pool),
			schema:     postgres.NewPropertySchemaStore(pool),
			releases:   postgres.NewReleaseStore(pool),
			workspace:  postgres.NewWorkspaceStore(pool),
			outbox:     postgres.NewOutboxStore(pool),
		}
		return stores, pool.Raw(), func() { _ = pool.Close() }, nil

	case config.ProfileLite:
		db, err := sqlite.Open(ctx, cfg.Database.SQLitePath, log)
		if err != nil {
			return nil, nil, func() {}, fmt.Errorf("open sqlite: %w", err)
		}
		stores := &storageSet{
			files:      sqlite.NewFileStore(db),
			packages:   sqlite.NewPackageStore(db),
			dimensions: sqlite.NewDimensionStore(db),
			schema:     sqlite.NewPropertySchemaStore(db),
			releases:   sqlite.NewReleaseStore(db),
			workspace:  sqlite.NewWorkspaceStore(db),
			outbox:     sqlite.NewOutboxStore(db),
		}
		return stores, nil, func() { _ = db.Close() }, nil

	default:
		return nil, nil, func() {}, fmt.Errorf("unknown deployment profile: %s", cfg.Profile)
	}
}
