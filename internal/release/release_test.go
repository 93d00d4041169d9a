package release

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/juspay/airborne/internal/domain"
	"github.com/juspay/airborne/internal/externalconfig"
	"github.com/juspay/airborne/internal/storage"
	"github.com/juspay/airborne/internal/txn"
)

type fakeReleaseStore struct {
	rows       map[uuid.UUID]*domain.Release
	failInsert bool
	failUpdate bool
}

func newFakeReleaseStore() *fakeReleaseStore {
	return &fakeReleaseStore{rows: map[uuid.UUID]*domain.Release{}}
}

func (s *fakeReleaseStore) Insert(ctx context.Context, r *domain.Release) error {
	if s.failInsert {
		return errors.New("insert failed")
	}
	s.rows[r.ID] = r
	return nil
}

func (s *fakeReleaseStore) Get(ctx context.Context, org, app string, id uuid.UUID) (*domain.Release, error) {
	if r, ok := s.rows[id]; ok {
		return r, nil
	}
	return nil, domain.ErrReleaseNotFound
}

func (s *fakeReleaseStore) Update(ctx context.Context, r *domain.Release) error {
	if s.failUpdate {
		return errors.New("update failed")
	}
	s.rows[r.ID] = r
	return nil
}

func (s *fakeReleaseStore) ListActiveForDimensionContext(ctx context.Context, org, app string) ([]*domain.Release, error) {
	var out []*domain.Release
	for _, r := range s.rows {
		if !r.IsTerminal() {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeWorkspaces struct{}

func (f *fakeWorkspaces) Get(ctx context.Context, org, app string) (*domain.WorkspaceMapping, error) {
	return &domain.WorkspaceMapping{Org: org, App: app, WorkspaceName: "ws-" + app}, nil
}

type fakeExternal struct {
	nextExperimentID string
	failCreate       bool
	createCalls      int
	rampCalls        int
	concludeCalls    int
	discardCalls     int
	lastContext      map[string]interface{}
}

func (f *fakeExternal) ListDefaultConfigs(ctx context.Context, org, workspace string, all bool) ([]externalconfig.DefaultConfigEntry, error) {
	return nil, nil
}
func (f *fakeExternal) CreateDefaultConfig(ctx context.Context, org, workspace, key string, value domain.Document, description string) error {
	return nil
}
func (f *fakeExternal) UpdateDefaultConfig(ctx context.Context, org, workspace, key string, value domain.Document, description string) error {
	return nil
}
func (f *fakeExternal) DeleteDefaultConfig(ctx context.Context, org, workspace, key string) error {
	return nil
}
func (f *fakeExternal) CreateExperiment(ctx context.Context, in externalconfig.ExperimentInput) (string, error) {
	f.createCalls++
	f.lastContext = in.Context
	if f.failCreate {
		return "", errors.New("create experiment failed")
	}
	id := f.nextExperimentID
	if id == "" {
		id = "exp-1"
	}
	return id, nil
}
func (f *fakeExternal) RampExperiment(ctx context.Context, id string, trafficPercentage int) error {
	f.rampCalls++
	return nil
}
func (f *fakeExternal) ConcludeExperiment(ctx context.Context, id string, chosenVariant string) error {
	f.concludeCalls++
	return nil
}
func (f *fakeExternal) DiscardExperiment(ctx context.Context, id string) error {
	f.discardCalls++
	return nil
}
func (f *fakeExternal) ApplicableVariants(ctx context.Context, workspace, org string, toss int, context map[string]string) ([]externalconfig.ApplicableVariant, error) {
	return nil, nil
}
func (f *fakeExternal) GetResolvedConfig(ctx context.Context, workspace, org string, context map[string]string, variantIDs []string) (map[string]domain.Document, error) {
	return nil, nil
}

type fakeOutboxStore struct {
	rows []*domain.OutboxRow
}

func (s *fakeOutboxStore) Enqueue(ctx context.Context, row *domain.OutboxRow) error {
	s.rows = append(s.rows, row)
	return nil
}
func (s *fakeOutboxStore) ClaimBatch(ctx context.Context, limit int) ([]*domain.OutboxRow, error) {
	return s.rows, nil
}
func (s *fakeOutboxStore) MarkAttempt(ctx context.Context, transactionID, entityType, entityName string, attempts int, lastAttempt bool) error {
	return nil
}
func (s *fakeOutboxStore) Delete(ctx context.Context, transactionID, entityType, entityName string) error {
	return nil
}

func newTestManager(store storage.ReleaseStore, external externalconfig.Client, outboxStore storage.OutboxStore) *Manager {
	return New(store, &fakeWorkspaces{}, external, txn.New(nil, nil), outboxStore, nil, nil)
}

func TestLifecycleRampConclude(t *testing.T) {
	store := newFakeReleaseStore()
	external := &fakeExternal{}
	m := newTestManager(store, external, &fakeOutboxStore{})

	r, err := m.Create(context.Background(), CreateInput{Org: "acme", App: "app1", PackageVersion: 1, ConfigVersion: "v1"})
	require.NoError(t, err)
	require.Equal(t, domain.ReleaseStatusCreated, r.Status)
	require.Equal(t, "exp-1", r.ExperimentID)
	require.Equal(t, 1, external.createCalls)

	r, err = m.Ramp(context.Background(), "acme", "app1", r.ID, 25)
	require.NoError(t, err)
	require.Equal(t, domain.ReleaseStatusInProgress, r.Status)
	require.Equal(t, 1, external.rampCalls)

	r, err = m.Conclude(context.Background(), "acme", "app1", r.ID, domain.VariantExperimental)
	require.NoError(t, err)
	require.Equal(t, domain.ReleaseStatusConcluded, r.Status)
	require.NotNil(t, r.ChosenVariant)
	require.Equal(t, domain.VariantExperimental, *r.ChosenVariant)
	require.Equal(t, 1, external.concludeCalls)
}

func TestConcludeRejectedFromCreated(t *testing.T) {
	store := newFakeReleaseStore()
	m := newTestManager(store, &fakeExternal{}, &fakeOutboxStore{})

	r, err := m.Create(context.Background(), CreateInput{Org: "acme", App: "app1", PackageVersion: 1, ConfigVersion: "v1"})
	require.NoError(t, err)

	_, err = m.Conclude(context.Background(), "acme", "app1", r.ID, domain.VariantControl)
	require.True(t, errors.Is(err, domain.ErrReleaseInvalidConclude))
}

func TestDiscardTerminalTwiceFails(t *testing.T) {
	store := newFakeReleaseStore()
	external := &fakeExternal{}
	m := newTestManager(store, external, &fakeOutboxStore{})

	r, err := m.Create(context.Background(), CreateInput{Org: "acme", App: "app1", PackageVersion: 1, ConfigVersion: "v1"})
	require.NoError(t, err)

	_, err = m.Discard(context.Background(), "acme", "app1", r.ID)
	require.NoError(t, err)
	require.Equal(t, 1, external.discardCalls)

	_, err = m.Discard(context.Background(), "acme", "app1", r.ID)
	require.True(t, errors.Is(err, domain.ErrReleaseTerminal))
}

func TestCreateRejectsOverlappingImportantLazy(t *testing.T) {
	store := newFakeReleaseStore()
	m := newTestManager(store, &fakeExternal{}, &fakeOutboxStore{})

	_, err := m.Create(context.Background(), CreateInput{
		Org: "acme", App: "app1", PackageVersion: 1, ConfigVersion: "v1",
		ControlOverrides: domain.Overrides{
			PackageImportant: []string{"boot.js"},
			PackageLazy:      []string{"boot.js"},
		},
	})
	require.True(t, errors.Is(err, domain.ErrImportantLazyOverlap))
}

func TestCreateRollsBackExperimentWhenInsertFails(t *testing.T) {
	store := newFakeReleaseStore()
	store.failInsert = true
	external := &fakeExternal{nextExperimentID: "exp-rollback"}
	outboxStore := &fakeOutboxStore{}
	m := newTestManager(store, external, outboxStore)

	_, err := m.Create(context.Background(), CreateInput{Org: "acme", App: "app1", PackageVersion: 1, ConfigVersion: "v1"})
	require.Error(t, err)
	require.Equal(t, 1, external.createCalls)
	require.Len(t, outboxStore.rows, 1)
	require.Equal(t, "experiment", outboxStore.rows[0].EntityType)
}

func TestCreateExperimentContextEncodesDimensionsAsConjunction(t *testing.T) {
	store := newFakeReleaseStore()
	external := &fakeExternal{}
	m := newTestManager(store, external, &fakeOutboxStore{})

	_, err := m.Create(context.Background(), CreateInput{
		Org: "acme", App: "app1", PackageVersion: 1, ConfigVersion: "v1",
		DimensionContext: map[string]string{"os": "android"},
	})
	require.NoError(t, err)
	require.Contains(t, external.lastContext, "and")
}
