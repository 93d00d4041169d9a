// Package dimension implements the Dimension & Cohort Registry:
// ordered dimensions with schemas, and cohort dimensions synthesized as
// rule trees over a parent dimension, grounded on spec.md §4.3.
package dimension

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/juspay/airborne/internal/advisorylock"
	"github.com/juspay/airborne/internal/domain"
	"github.com/juspay/airborne/internal/storage"
)

// Registry implements the dimension and cohort registry operations.
type Registry struct {
	dimensions storage.DimensionStore
	logger     *slog.Logger
	// locker coordinates concurrent priority reorders across replicas.
	// nil under the lite deployment profile, which has no Postgres pool
	// to hold the advisory lock on and runs single-node anyway.
	locker *advisorylock.Locker
}

// New builds a Registry. locker may be nil.
func New(dimensions storage.DimensionStore, logger *slog.Logger, locker *advisorylock.Locker) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{dimensions: dimensions, logger: logger, locker: locker}
}

// Register inserts a new dimension at the next available position. Cohort
// dimensions require DependsOn.
func (r *Registry) Register(ctx context.Context, d *domain.Dimension) error {
	if d.Type == domain.DimensionCohort && d.DependsOn == nil {
		return domain.ErrCohortMissingDependsOn
	}
	existing, err := r.dimensions.List(ctx, d.Org, d.App)
	if err != nil {
		return err
	}
	d.Position = len(existing)
	return r.dimensions.Insert(ctx, d)
}

// Delete removes a dimension, refusing if any live (Created or
// InProgress) experiment still references it in its dimension context.
func (r *Registry) Delete(ctx context.Context, org, app, name string) error {
	inUse, err := r.dimensions.IsReferencedByLiveExperiment(ctx, org, app, name)
	if err != nil {
		return err
	}
	if inUse {
		return domain.ErrDimensionInUse
	}
	return r.dimensions.Delete(ctx, org, app, name)
}

// List returns dimensions ordered by position ascending.
func (r *Registry) List(ctx context.Context, org, app string) ([]*domain.Dimension, error) {
	return r.dimensions.List(ctx, org, app)
}

// GetPriority returns the current name→position assignment.
func (r *Registry) GetPriority(ctx context.Context, org, app string) (map[string]int, error) {
	dims, err := r.dimensions.List(ctx, org, app)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(dims))
	for _, d := range dims {
		out[d.Name] = d.Position
	}
	return out, nil
}

// UpdatePriority rewrites dimension positions, enforcing the invariant
// that positions remain a contiguous [0, n) total order after the update.
func (r *Registry) UpdatePriority(ctx context.Context, org, app string, positions map[string]int) error {
	if r.locker != nil {
		guard, acquired, err := r.locker.TryAcquire(ctx, advisorylock.NamespaceDimensionReorder, org+":"+app)
		if err != nil {
			return err
		}
		if !acquired {
			return domain.ErrReorderInProgress
		}
		defer guard.Release(ctx)
	}

	existing, err := r.dimensions.List(ctx, org, app)
	if err != nil {
		return err
	}
	if len(positions) != len(existing) {
		return fmt.Errorf("%w: must supply a position for every dimension", domain.ErrPositionsNotContiguous)
	}

	seen := make([]int, 0, len(positions))
	for _, pos := range positions {
		seen = append(seen, pos)
	}
	sort.Ints(seen)
	for i, pos := range seen {
		if pos != i {
			return domain.ErrPositionsNotContiguous
		}
	}

	return r.dimensions.UpdatePositions(ctx, org, app, positions)
}

// PutCohortSet stores a cohort dimension's enum and rule-tree
// definitions, synthesizing the `default` entry if the caller omitted it.
func (r *Registry) PutCohortSet(ctx context.Context, org, app string, set *domain.CohortSet) error {
	if _, ok := set.Definitions[domain.DefaultCohortName]; !ok {
		sentinel, err := randomSentinel()
		if err != nil {
			return err
		}
		if set.Definitions == nil {
			set.Definitions = map[string]domain.CohortRule{}
		}
		set.Definitions[domain.DefaultCohortName] = domain.DefaultSentinelRule(set.DependsOn, sentinel)
		hasDefault := false
		for _, name := range set.Enum {
			if name == domain.DefaultCohortName {
				hasDefault = true
				break
			}
		}
		if !hasDefault {
			set.Enum = append(set.Enum, domain.DefaultCohortName, domain.OtherwiseVariant)
		}
	}
	return r.dimensions.PutCohortSet(ctx, org, app, set)
}

// GetCohortSet loads a cohort dimension's definitions.
func (r *Registry) GetCohortSet(ctx context.Context, org, app, dimensionName string) (*domain.CohortSet, error) {
	return r.dimensions.GetCohortSet(ctx, org, app, dimensionName)
}
