// Package schema implements the Config Property Schema diff: computing
// {create, update, delete} tasks against the per-workspace property
// schema on publish, grounded on spec.md §4.4.
package schema

import (
	"context"

	"github.com/juspay/airborne/internal/advisorylock"
	"github.com/juspay/airborne/internal/domain"
	"github.com/juspay/airborne/internal/storage"
	"github.com/juspay/airborne/internal/txn"
)

// Schema implements the Config Property Schema operations.
type Schema struct {
	store storage.PropertySchemaStore
	// locker coordinates concurrent Put calls against the same
	// workspace across replicas. nil under the lite deployment profile.
	locker *advisorylock.Locker
	txn    *txn.Manager
}

// New builds a Schema. locker may be nil.
func New(store storage.PropertySchemaStore, locker *advisorylock.Locker, txnManager *txn.Manager) *Schema {
	return &Schema{store: store, locker: locker, txn: txnManager}
}

// Diff classifies each key in properties against the workspace's
// existing keys as Create, Update, or Delete.
func (s *Schema) Diff(ctx context.Context, org, app string, properties map[string]domain.PropertySchemaEntry) ([]domain.SchemaDiffEntry, error) {
	existingKeys, err := s.store.Keys(ctx, org, app)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]bool, len(existingKeys))
	for _, k := range existingKeys {
		existing[k] = true
	}

	var diff []domain.SchemaDiffEntry
	seen := make(map[string]bool, len(properties))
	for key := range properties {
		seen[key] = true
		kind := domain.SchemaDiffCreate
		if existing[key] {
			kind = domain.SchemaDiffUpdate
		}
		diff = append(diff, domain.SchemaDiffEntry{Key: key, Kind: kind})
	}
	for key := range existing {
		if !seen[key] {
			diff = append(diff, domain.SchemaDiffEntry{Key: key, Kind: domain.SchemaDiffDelete})
		}
	}
	return diff, nil
}

// Put applies properties: upserts every Create/Update key and deletes
// every key classified as Delete. Each classification becomes a task
// the caller's Transaction Manager runs as part of a single transaction
// group, per spec.md §4.4.
func (s *Schema) Put(ctx context.Context, org, app string, properties map[string]domain.PropertySchemaEntry) ([]domain.SchemaDiffEntry, error) {
	if s.locker != nil {
		guard, acquired, err := s.locker.TryAcquire(ctx, advisorylock.NamespaceSchemaMigration, org+":"+app)
		if err != nil {
			return nil, err
		}
		if !acquired {
			return nil, domain.ErrSchemaMigrationInProgress
		}
		defer guard.Release(ctx)
	}

	diff, err := s.Diff(ctx, org, app, properties)
	if err != nil {
		return nil, err
	}

	toUpsert := make(map[string]domain.PropertySchemaEntry, len(properties))
	var toDelete []string
	for _, d := range diff {
		switch d.Kind {
		case domain.SchemaDiffCreate, domain.SchemaDiffUpdate:
			toUpsert[d.Key] = properties[d.Key]
		case domain.SchemaDiffDelete:
			toDelete = append(toDelete, d.Key)
		}
	}

	var ops []txn.Op
	if len(toUpsert) > 0 {
		ops = append(ops, func(ctx context.Context) (interface{}, error) {
			return nil, s.store.Upsert(ctx, org, app, toUpsert)
		})
	}
	if len(toDelete) > 0 {
		ops = append(ops, func(ctx context.Context) (interface{}, error) {
			return nil, s.store.Delete(ctx, org, app, toDelete)
		})
	}
	// No rollback: both ops write the same local store and there is no
	// remote system to compensate, unlike internal/release's transaction
	// groups.
	if _, err := s.txn.Run(ctx, ops, nil); err != nil {
		return nil, err
	}
	return diff, nil
}
