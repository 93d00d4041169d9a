package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/juspay/airborne/internal/api/handlers"
	"github.com/juspay/airborne/internal/api/middleware"
	"github.com/juspay/airborne/internal/catalog"
	"github.com/juspay/airborne/internal/dimension"
	"github.com/juspay/airborne/internal/pkgcomposer"
	"github.com/juspay/airborne/internal/release"
	"github.com/juspay/airborne/internal/resolver"
	"github.com/juspay/airborne/internal/schema"
	"github.com/juspay/airborne/pkg/metrics"
)

// RouterConfig holds the components NewRouter wires into the HTTP
// surface SPEC_FULL.md's module map calls for: the File Catalog,
// Package Composer, Dimension & Cohort Registry, Config Property
// Schema, Release Manager and Release Resolver, plus the middleware
// stack's knobs.
type RouterConfig struct {
	Catalog    *catalog.Catalog
	Packages   *pkgcomposer.Composer
	Dimensions *dimension.Registry
	Schema     *schema.Schema
	Releases   *release.Manager
	Resolver   *resolver.Resolver

	Logger      *slog.Logger
	APIMetrics  *metrics.APIMetrics
	CORSConfig  middleware.CORSConfig

	EnableRateLimit    bool
	RateLimitPerMinute int
	RateLimitBurst     int
}

// DefaultRouterConfig returns a RouterConfig with the ambient middleware
// knobs defaulted; callers still must set the business-logic fields.
func DefaultRouterConfig(logger *slog.Logger) RouterConfig {
	return RouterConfig{
		Logger:             logger,
		APIMetrics:         metrics.NewAPIMetrics(),
		CORSConfig:         middleware.DefaultCORSConfig(),
		EnableRateLimit:    true,
		RateLimitPerMinute: 600,
		RateLimitBurst:     100,
	}
}

// NewRouter builds the API router.
//
// The global middleware stack, applied in order:
//  1. RequestID
//  2. Logging
//  3. Metrics
//  4. CORS
//  5. Compression
//  6. Principal extraction (lifts the trusted, upstream-resolved
//     Principal; spec.md §1 places IdP integration itself out of scope)
//
// Admin routes additionally run through ValidationMiddleware and, when
// enabled, RateLimitMiddleware; the mutating admin routes also require
// AdminOnly or OperatorOrAbove, while the admin read routes carry no role
// requirement. The serve endpoint is public and skips all three.
func NewRouter(config RouterConfig) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware(config.Logger))
	router.Use(middleware.MetricsMiddleware(config.APIMetrics))
	router.Use(middleware.CORSMiddleware(config.CORSConfig))
	router.Use(middleware.CompressionMiddleware)
	router.Use(middleware.PrincipalMiddleware)

	router.HandleFunc("/healthz", handlers.Health).Methods(http.MethodGet)

	setupServeRoutes(router, config)
	setupAdminRoutes(router, config)

	return router
}

// setupServeRoutes configures the stable, public client-facing endpoint
// of spec.md §6. It carries no Principal/role requirement: the resolved
// config a device fetches is not gated by the admin RBAC this service
// otherwise enforces.
func setupServeRoutes(router *mux.Router, config RouterConfig) {
	serveHandler := handlers.NewServeHandler(config.Resolver)
	router.HandleFunc("/release/{org}/{app}", serveHandler.Resolve).Methods(http.MethodGet)
}

// setupAdminRoutes configures /api/v1/{org}/{app}/* management endpoints
// over the catalog, package composer, dimension registry, schema and
// release manager.
func setupAdminRoutes(router *mux.Router, config RouterConfig) {
	admin := router.PathPrefix("/api/v1/{org}/{app}").Subrouter()
	admin.Use(middleware.ValidationMiddleware)
	if config.EnableRateLimit {
		admin.Use(middleware.RateLimitMiddleware(config.RateLimitPerMinute, config.RateLimitBurst))
	}

	catalogHandler := handlers.NewCatalogHandler(config.Catalog)
	files := admin.PathPrefix("/files").Subrouter()
	files.Handle("", middleware.OperatorOrAbove(http.HandlerFunc(catalogHandler.Register))).Methods(http.MethodPost)
	files.Handle("", http.HandlerFunc(catalogHandler.List)).Methods(http.MethodGet)
	files.Handle("/upload", middleware.OperatorOrAbove(http.HandlerFunc(catalogHandler.Upload))).Methods(http.MethodPost)
	files.Handle("/retag", middleware.OperatorOrAbove(http.HandlerFunc(catalogHandler.Retag))).Methods(http.MethodPost)
	files.Handle("/resolve", http.HandlerFunc(catalogHandler.Resolve)).Methods(http.MethodGet)

	packageHandler := handlers.NewPackageHandler(config.Packages)
	packages := admin.PathPrefix("/packages").Subrouter()
	packages.Handle("", middleware.OperatorOrAbove(http.HandlerFunc(packageHandler.Create))).Methods(http.MethodPost)
	packages.Handle("", http.HandlerFunc(packageHandler.Get)).Methods(http.MethodGet)
	packages.Handle("/list", http.HandlerFunc(packageHandler.List)).Methods(http.MethodGet)

	dimensionHandler := handlers.NewDimensionHandler(config.Dimensions)
	dimensions := admin.PathPrefix("/dimensions").Subrouter()
	dimensions.Handle("", middleware.AdminOnly(http.HandlerFunc(dimensionHandler.Register))).Methods(http.MethodPost)
	dimensions.Handle("", http.HandlerFunc(dimensionHandler.List)).Methods(http.MethodGet)
	dimensions.Handle("/priority", http.HandlerFunc(dimensionHandler.GetPriority)).Methods(http.MethodGet)
	dimensions.Handle("/priority", middleware.AdminOnly(http.HandlerFunc(dimensionHandler.UpdatePriority))).Methods(http.MethodPut)
	dimensions.Handle("/{name}", middleware.AdminOnly(http.HandlerFunc(dimensionHandler.Delete))).Methods(http.MethodDelete)
	dimensions.Handle("/{name}/cohorts", http.HandlerFunc(dimensionHandler.GetCohortSet)).Methods(http.MethodGet)
	dimensions.Handle("/{name}/cohorts", middleware.AdminOnly(http.HandlerFunc(dimensionHandler.PutCohortSet))).Methods(http.MethodPut)

	schemaHandler := handlers.NewSchemaHandler(config.Schema)
	schemaRoutes := admin.PathPrefix("/schema").Subrouter()
	schemaRoutes.Handle("/diff", middleware.OperatorOrAbove(http.HandlerFunc(schemaHandler.Diff))).Methods(http.MethodPost)
	schemaRoutes.Handle("", middleware.AdminOnly(http.HandlerFunc(schemaHandler.Put))).Methods(http.MethodPost)

	releaseHandler := handlers.NewReleaseHandler(config.Releases)
	releases := admin.PathPrefix("/releases").Subrouter()
	releases.Handle("", middleware.OperatorOrAbove(http.HandlerFunc(releaseHandler.Create))).Methods(http.MethodPost)
	releases.Handle("/{id}", http.HandlerFunc(releaseHandler.Get)).Methods(http.MethodGet)
	releases.Handle("/{id}/ramp", middleware.OperatorOrAbove(http.HandlerFunc(releaseHandler.Ramp))).Methods(http.MethodPost)
	releases.Handle("/{id}/conclude", middleware.OperatorOrAbove(http.HandlerFunc(releaseHandler.Conclude))).Methods(http.MethodPost)
	releases.Handle("/{id}/discard", middleware.OperatorOrAbove(http.HandlerFunc(releaseHandler.Discard))).Methods(http.MethodPost)
}
