// Package storage defines the repository interfaces the catalog, package
// composer, dimension registry, schema, release, and outbox components
// are built against. internal/storage/postgres and internal/storage/sqlite
// each provide a full implementation, selected by the deployment profile.
package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/juspay/airborne/internal/domain"
)

// Pagination mirrors the teacher's list-request shape: a 1-indexed page
// and a bounded per-page size.
type Pagination struct {
	Page    int
	PerPage int
}

// Offset computes the SQL OFFSET for this page.
func (p Pagination) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PerPage
}

// FileStore persists the File catalog.
type FileStore interface {
	Insert(ctx context.Context, f *domain.File) error
	MaxVersion(ctx context.Context, org, app, filePath string) (int, error)
	FindByChecksum(ctx context.Context, org, app, filePath, sha256 string) (*domain.File, error)
	FindByPathVersion(ctx context.Context, org, app, filePath string, version int) (*domain.File, error)
	FindByPathTag(ctx context.Context, org, app, filePath, tag string) (*domain.File, error)
	// FindManyByKeys resolves a batch of (path,version) or (path,tag)
	// lookups in one query, per spec §4.2 (single combined disjunction).
	FindManyByKeys(ctx context.Context, org, app string, versionKeys []domain.FileRef, tagKeys map[string]string) ([]*domain.File, error)
	List(ctx context.Context, org, app string, page Pagination, search string) ([]*domain.File, int64, error)
	Retag(ctx context.Context, org, app, filePath, tag string, version int) error
	ClearTag(ctx context.Context, org, app, filePath, tag string) error
}

// PackageStore persists immutable Packages.
type PackageStore interface {
	Insert(ctx context.Context, p *domain.Package) error
	MaxVersion(ctx context.Context, org, app string) (int, error)
	FindByVersion(ctx context.Context, org, app string, version int) (*domain.Package, error)
	FindByTag(ctx context.Context, org, app, tag string) (*domain.Package, error)
	LatestVersion(ctx context.Context, org, app string) (*domain.Package, error)
	List(ctx context.Context, org, app string, page Pagination, search string) ([]*domain.Package, int64, error)
}

// DimensionStore persists dimension metadata and cohort definitions.
type DimensionStore interface {
	Insert(ctx context.Context, d *domain.Dimension) error
	Get(ctx context.Context, org, app, name string) (*domain.Dimension, error)
	List(ctx context.Context, org, app string) ([]*domain.Dimension, error)
	Delete(ctx context.Context, org, app, name string) error
	UpdatePositions(ctx context.Context, org, app string, positions map[string]int) error
	IsReferencedByLiveExperiment(ctx context.Context, org, app, name string) (bool, error)

	PutCohortSet(ctx context.Context, org, app string, set *domain.CohortSet) error
	GetCohortSet(ctx context.Context, org, app, dimensionName string) (*domain.CohortSet, error)
}

// PropertySchemaStore persists the per-workspace config property schema.
type PropertySchemaStore interface {
	Keys(ctx context.Context, org, app string) ([]string, error)
	Upsert(ctx context.Context, org, app string, entries map[string]domain.PropertySchemaEntry) error
	Delete(ctx context.Context, org, app string, keys []string) error
}

// ReleaseStore persists Release/Experiment rows.
type ReleaseStore interface {
	Insert(ctx context.Context, r *domain.Release) error
	Get(ctx context.Context, org, app string, id uuid.UUID) (*domain.Release, error)
	Update(ctx context.Context, r *domain.Release) error
	ListActiveForDimensionContext(ctx context.Context, org, app string) ([]*domain.Release, error)
}

// WorkspaceStore persists the (org, app) → workspace_name mapping.
type WorkspaceStore interface {
	Get(ctx context.Context, org, app string) (*domain.WorkspaceMapping, error)
	Put(ctx context.Context, m *domain.WorkspaceMapping) error
}

// OutboxStore persists and drains cleanup outbox rows.
type OutboxStore interface {
	Enqueue(ctx context.Context, row *domain.OutboxRow) error
	// ClaimBatch returns up to limit rows ordered by created_at ascending.
	// It applies no retry-readiness filter: every row still in the outbox
	// is returned, whatever its attempts or last_attempt.
	ClaimBatch(ctx context.Context, limit int) ([]*domain.OutboxRow, error)
	MarkAttempt(ctx context.Context, transactionID, entityType, entityName string, attempts int, lastAttempt bool) error
	Delete(ctx context.Context, transactionID, entityType, entityName string) error
}
