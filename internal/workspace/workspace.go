// Package workspace implements the Workspace Directory: a memoized
// (org, app) → external workspace-name mapping, grounded on spec.md
// §4.5's "memoized for 7 days with explicit invalidation" caching
// requirement. Two-tier cache (in-process LRU, then Redis) modeled on
// the teacher's internal/infrastructure/publishing LRU cache and
// internal/infrastructure/cache Redis wrapper, with singleflight
// collapsing concurrent misses into one storage fetch.
package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/juspay/airborne/internal/config"
	"github.com/juspay/airborne/internal/domain"
	"github.com/juspay/airborne/internal/storage"
	"github.com/juspay/airborne/pkg/metrics"
)

// Directory implements the Workspace Directory operations.
type Directory struct {
	store   storage.WorkspaceStore
	cfg     config.WorkspaceCacheConfig
	logger  *slog.Logger
	metrics *metrics.WorkspaceCacheMetrics

	local  *lru.Cache[string, *domain.WorkspaceMapping]
	redis  *redis.Client
	flight singleflight.Group
}

// New builds a Directory. redisClient may be nil, in which case only the
// in-process LRU tier is used (the lite deployment profile has no Redis).
func New(store storage.WorkspaceStore, cfg config.WorkspaceCacheConfig, redisClient *redis.Client, m *metrics.WorkspaceCacheMetrics, logger *slog.Logger) (*Directory, error) {
	if logger == nil {
		logger = slog.Default()
	}
	size := cfg.LRUSize
	if size <= 0 {
		size = 1024
	}
	local, err := lru.New[string, *domain.WorkspaceMapping](size)
	if err != nil {
		return nil, fmt.Errorf("workspace: build lru cache: %w", err)
	}
	var rc *redis.Client
	if cfg.UseRedis {
		rc = redisClient
	}
	return &Directory{store: store, cfg: cfg, logger: logger, metrics: m, local: local, redis: rc}, nil
}

func cacheKey(org, app string) string { return "workspace:" + org + ":" + app }

// Get resolves the workspace mapping for (org, app), consulting the LRU
// tier, then Redis, then the relational store, collapsing concurrent
// misses for the same key into a single storage fetch.
func (d *Directory) Get(ctx context.Context, org, app string) (*domain.WorkspaceMapping, error) {
	key := cacheKey(org, app)

	if m, ok := d.local.Get(key); ok {
		d.hit("lru")
		return m, nil
	}

	if d.redis != nil {
		if m, err := d.getRedis(ctx, key); err == nil {
			d.hit("redis")
			d.local.Add(key, m)
			return m, nil
		} else if err != redis.Nil {
			d.logger.Warn("workspace redis lookup failed", "error", err)
		}
	}

	d.miss()
	v, err, shared := d.flight.Do(key, func() (interface{}, error) {
		m, err := d.store.Get(ctx, org, app)
		if err != nil {
			return nil, err
		}
		d.populate(ctx, key, m)
		return m, nil
	})
	if shared && d.metrics != nil {
		d.metrics.Collapsed.WithLabelValues().Inc()
	}
	if err != nil {
		return nil, err
	}
	return v.(*domain.WorkspaceMapping), nil
}

// Put persists a workspace mapping and refreshes both cache tiers,
// invalidating any stale prior entry (spec.md §4.5's "explicit
// invalidation on rotation").
func (d *Directory) Put(ctx context.Context, m *domain.WorkspaceMapping) error {
	if err := d.store.Put(ctx, m); err != nil {
		return err
	}
	d.populate(ctx, cacheKey(m.Org, m.App), m)
	return nil
}

func (d *Directory) populate(ctx context.Context, key string, m *domain.WorkspaceMapping) {
	d.local.Add(key, m)
	if d.redis == nil {
		return
	}
	data, err := json.Marshal(m)
	if err != nil {
		d.logger.Warn("workspace marshal for redis cache failed", "error", err)
		return
	}
	if err := d.redis.Set(ctx, key, data, d.ttl()).Err(); err != nil {
		d.logger.Warn("workspace redis cache set failed", "error", err)
	}
}

func (d *Directory) getRedis(ctx context.Context, key string) (*domain.WorkspaceMapping, error) {
	val, err := d.redis.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	var m domain.WorkspaceMapping
	if err := json.Unmarshal([]byte(val), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (d *Directory) ttl() time.Duration {
	if d.cfg.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return d.cfg.TTL
}

func (d *Directory) hit(tier string) {
	if d.metrics != nil {
		d.metrics.Hits.WithLabelValues(tier).Inc()
	}
}

func (d *Directory) miss() {
	if d.metrics != nil {
		d.metrics.Misses.WithLabelValues().Inc()
	}
}
