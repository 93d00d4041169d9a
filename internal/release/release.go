// Package release implements the Release/Experiment state machine of
// spec.md §4.8: Created → InProgress → {Concluded, Discarded}. Every
// transition is a transaction group executed by internal/txn.Manager: a
// local internal/storage.ReleaseStore write paired with the matching
// call against the external configuration-and-experimentation service,
// with failures compensated durably through internal/outbox.
package release

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/juspay/airborne/internal/domain"
	"github.com/juspay/airborne/internal/externalconfig"
	"github.com/juspay/airborne/internal/outbox"
	"github.com/juspay/airborne/internal/storage"
	"github.com/juspay/airborne/internal/txn"
	"github.com/juspay/airborne/pkg/metrics"
)

// CreateInput is the payload for Create.
type CreateInput struct {
	Org                 string
	App                 string
	PackageVersion      int
	ConfigVersion       string
	DimensionContext    map[string]string
	ControlOverrides    domain.Overrides
	ExperimentOverrides domain.Overrides
	CreatedBy           string
}

// WorkspaceLookup is the subset of internal/workspace.Directory the
// release manager depends on to address the external service.
type WorkspaceLookup interface {
	Get(ctx context.Context, org, app string) (*domain.WorkspaceMapping, error)
}

// Manager implements the release/experiment lifecycle operations.
type Manager struct {
	releases      storage.ReleaseStore
	workspaces    WorkspaceLookup
	external      externalconfig.Client
	txnManager    *txn.Manager
	outboxStore   storage.OutboxStore
	outboxMetrics *metrics.OutboxMetrics
	logger        *slog.Logger
}

// New builds a Manager.
func New(releases storage.ReleaseStore, workspaces WorkspaceLookup, external externalconfig.Client,
	txnManager *txn.Manager, outboxStore storage.OutboxStore, outboxMetrics *metrics.OutboxMetrics, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		releases:      releases,
		workspaces:    workspaces,
		external:      external,
		txnManager:    txnManager,
		outboxStore:   outboxStore,
		outboxMetrics: outboxMetrics,
		logger:        logger,
	}
}

// Create persists a new Release in the Created state with zero traffic
// and, in the same transaction group, creates its backing experiment on
// the external service. If the local insert fails after the remote
// experiment was created, the experiment is discarded via the cleanup
// outbox.
func (m *Manager) Create(ctx context.Context, in CreateInput) (*domain.Release, error) {
	if err := validateOverrideDisjointness(in.ControlOverrides); err != nil {
		return nil, err
	}
	if err := validateOverrideDisjointness(in.ExperimentOverrides); err != nil {
		return nil, err
	}

	mapping, err := m.workspaces.Get(ctx, in.Org, in.App)
	if err != nil {
		return nil, fmt.Errorf("release: workspace lookup: %w", err)
	}

	r := &domain.Release{
		ID:                  uuid.New(),
		Org:                 in.Org,
		App:                 in.App,
		PackageVersion:      in.PackageVersion,
		ConfigVersion:       in.ConfigVersion,
		DimensionContext:    in.DimensionContext,
		ControlOverrides:    in.ControlOverrides,
		ExperimentOverrides: in.ExperimentOverrides,
		TrafficPercentage:   0,
		Status:              domain.ReleaseStatusCreated,
		CreatedAt:           time.Now(),
		CreatedBy:           in.CreatedBy,
	}

	createExperiment := func(ctx context.Context) (interface{}, error) {
		id, err := m.external.CreateExperiment(ctx, externalconfig.ExperimentInput{
			Org:          in.Org,
			Workspace:    mapping.WorkspaceName,
			Name:         fmt.Sprintf("%s-%s-%s", in.Org, in.App, r.ID),
			Type:         "Default",
			Variants:     []string{string(domain.VariantControl), string(domain.VariantExperimental)},
			Context:      dimensionContextRule(in.DimensionContext),
			Description:  fmt.Sprintf("release for %s/%s, package version %d", in.Org, in.App, in.PackageVersion),
			ChangeReason: "release created",
		})
		if err != nil {
			return nil, err
		}
		r.ExperimentID = id
		return id, nil
	}
	insert := func(ctx context.Context) (interface{}, error) {
		return nil, m.releases.Insert(ctx, r)
	}
	rollback := func(ctx context.Context, successes []int) {
		if len(successes) == 0 || r.ExperimentID == "" {
			return
		}
		m.enqueueDiscard(ctx, r.ID, r.ExperimentID)
	}

	if _, err := m.txnManager.Run(ctx, []txn.Op{createExperiment, insert}, rollback); err != nil {
		return nil, err
	}
	m.logger.Info("release created", "org", in.Org, "app", in.App, "id", r.ID, "experiment_id", r.ExperimentID)
	return r, nil
}

// Ramp sets traffic_percentage and transitions Created → InProgress (a
// no-op transition if already InProgress), pairing the local write with
// ramp_experiment against the external service.
func (m *Manager) Ramp(ctx context.Context, org, app string, id uuid.UUID, trafficPercentage int) (*domain.Release, error) {
	if trafficPercentage < 0 || trafficPercentage > 100 {
		return nil, fmt.Errorf("release: traffic_percentage must be within [0,100], got %d", trafficPercentage)
	}
	r, err := m.releases.Get(ctx, org, app, id)
	if err != nil {
		return nil, err
	}
	if !r.CanRamp() {
		return nil, domain.ErrReleaseInvalidRamp
	}
	r.TrafficPercentage = trafficPercentage
	if trafficPercentage > 0 {
		r.Status = domain.ReleaseStatusInProgress
	}

	ramp := func(ctx context.Context) (interface{}, error) {
		return nil, m.external.RampExperiment(ctx, r.ExperimentID, trafficPercentage)
	}
	update := func(ctx context.Context) (interface{}, error) {
		return nil, m.releases.Update(ctx, r)
	}
	rollback := func(ctx context.Context, successes []int) {
		if len(successes) == 0 {
			return
		}
		// The remote ramp landed but the local write didn't. There is no
		// un-ramp endpoint, so discarding the experiment is the safest
		// corrective action available to the outbox.
		m.enqueueDiscard(ctx, r.ID, r.ExperimentID)
	}

	if _, err := m.txnManager.Run(ctx, []txn.Op{ramp, update}, rollback); err != nil {
		return nil, err
	}
	return r, nil
}

// Conclude chooses a variant, freezing its overrides as the release's
// final state. Only legal from InProgress.
func (m *Manager) Conclude(ctx context.Context, org, app string, id uuid.UUID, chosen domain.VariantKind) (*domain.Release, error) {
	if chosen != domain.VariantControl && chosen != domain.VariantExperimental {
		return nil, domain.ErrReleaseInvalidVariant
	}
	r, err := m.releases.Get(ctx, org, app, id)
	if err != nil {
		return nil, err
	}
	if !r.CanConclude() {
		return nil, domain.ErrReleaseInvalidConclude
	}
	r.ChosenVariant = &chosen
	r.Status = domain.ReleaseStatusConcluded

	conclude := func(ctx context.Context) (interface{}, error) {
		return nil, m.external.ConcludeExperiment(ctx, r.ExperimentID, string(chosen))
	}
	update := func(ctx context.Context) (interface{}, error) {
		return nil, m.releases.Update(ctx, r)
	}
	rollback := func(ctx context.Context, successes []int) {
		if len(successes) == 0 {
			return
		}
		// Same reasoning as Ramp's rollback: no un-conclude endpoint
		// exists, so discard is the best available corrective action.
		m.enqueueDiscard(ctx, r.ID, r.ExperimentID)
	}

	if _, err := m.txnManager.Run(ctx, []txn.Op{conclude, update}, rollback); err != nil {
		return nil, err
	}
	m.logger.Info("release concluded", "org", org, "app", app, "id", id, "chosen_variant", chosen)
	return r, nil
}

// Discard terminates a release without selecting a variant. Legal from
// any non-terminal state. The remote discard already reaches the
// desired terminal state, so a subsequent local-write failure has no
// further outbox compensation to perform.
func (m *Manager) Discard(ctx context.Context, org, app string, id uuid.UUID) (*domain.Release, error) {
	r, err := m.releases.Get(ctx, org, app, id)
	if err != nil {
		return nil, err
	}
	if !r.CanDiscard() {
		return nil, domain.ErrReleaseTerminal
	}
	r.Status = domain.ReleaseStatusDiscarded

	discard := func(ctx context.Context) (interface{}, error) {
		return nil, m.external.DiscardExperiment(ctx, r.ExperimentID)
	}
	update := func(ctx context.Context) (interface{}, error) {
		return nil, m.releases.Update(ctx, r)
	}

	if _, err := m.txnManager.Run(ctx, []txn.Op{discard, update}, nil); err != nil {
		return nil, err
	}
	return r, nil
}

// Get loads a release by id.
func (m *Manager) Get(ctx context.Context, org, app string, id uuid.UUID) (*domain.Release, error) {
	return m.releases.Get(ctx, org, app, id)
}

// ActiveDimensionContexts lists every non-terminal release of (org, app);
// each carries its DimensionContext.
func (m *Manager) ActiveDimensionContexts(ctx context.Context, org, app string) ([]*domain.Release, error) {
	return m.releases.ListActiveForDimensionContext(ctx, org, app)
}

// enqueueDiscard durably records an experiment-discard compensation for
// the cleanup outbox to drain, per spec.md §4.6's durability guarantee
// that remote-touching compensations are enqueued before rollback begins.
func (m *Manager) enqueueDiscard(ctx context.Context, releaseID uuid.UUID, experimentID string) {
	state := domain.NewObject(map[string]domain.Document{
		"experiment_id": domain.NewString(experimentID),
	})
	if err := outbox.Enqueue(ctx, m.outboxStore, uuid.New().String(), "experiment", releaseID.String(), state, m.outboxMetrics); err != nil {
		m.logger.Error("release: enqueue discard compensation failed", "error", err, "release_id", releaseID, "experiment_id", experimentID)
	}
}

// dimensionContextRule renders a release's dimension context as the
// JsonLogic tree create_experiment expects: a conjunction of equality
// leaves, one per dimension, or an empty object when the release carries
// no dimension context.
func dimensionContextRule(dimCtx map[string]string) map[string]interface{} {
	if len(dimCtx) == 0 {
		return map[string]interface{}{}
	}
	keys := make([]string, 0, len(dimCtx))
	for k := range dimCtx {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	leaves := make([]interface{}, 0, len(keys))
	for _, k := range keys {
		leaves = append(leaves, map[string]interface{}{
			"==": []interface{}{map[string]interface{}{"var": k}, dimCtx[k]},
		})
	}
	return map[string]interface{}{"and": leaves}
}

// validateOverrideDisjointness enforces important ∩ lazy == ∅.
func validateOverrideDisjointness(o domain.Overrides) error {
	if len(o.PackageImportant) == 0 || len(o.PackageLazy) == 0 {
		return nil
	}
	important := make(map[string]bool, len(o.PackageImportant))
	for _, k := range o.PackageImportant {
		important[k] = true
	}
	for _, k := range o.PackageLazy {
		if important[k] {
			return fmt.Errorf("%w: %q", domain.ErrImportantLazyOverlap, k)
		}
	}
	return nil
}
