package workspace

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/juspay/airborne/internal/config"
	"github.com/juspay/airborne/internal/domain"
)

type fakeWorkspaceStore struct {
	rows  map[string]*domain.WorkspaceMapping
	calls int
}

func newFakeWorkspaceStore() *fakeWorkspaceStore {
	return &fakeWorkspaceStore{rows: map[string]*domain.WorkspaceMapping{}}
}

func (s *fakeWorkspaceStore) Get(ctx context.Context, org, app string) (*domain.WorkspaceMapping, error) {
	s.calls++
	if m, ok := s.rows[org+"|"+app]; ok {
		return m, nil
	}
	return nil, domain.ErrWorkspaceNotFound
}

func (s *fakeWorkspaceStore) Put(ctx context.Context, m *domain.WorkspaceMapping) error {
	s.rows[m.Org+"|"+m.App] = m
	return nil
}

func TestGetHitsLRUOnSecondCall(t *testing.T) {
	store := newFakeWorkspaceStore()
	store.rows["acme|app1"] = &domain.WorkspaceMapping{Org: "acme", App: "app1", WorkspaceName: "ws-1"}

	dir, err := New(store, config.WorkspaceCacheConfig{LRUSize: 16}, nil, nil, nil)
	require.NoError(t, err)

	m1, err := dir.Get(context.Background(), "acme", "app1")
	require.NoError(t, err)
	require.Equal(t, "ws-1", m1.WorkspaceName)

	m2, err := dir.Get(context.Background(), "acme", "app1")
	require.NoError(t, err)
	require.Equal(t, "ws-1", m2.WorkspaceName)
	require.Equal(t, 1, store.calls)
}

func TestGetFallsBackThroughRedisTier(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store := newFakeWorkspaceStore()
	store.rows["acme|app1"] = &domain.WorkspaceMapping{Org: "acme", App: "app1", WorkspaceName: "ws-1"}

	dir, err := New(store, config.WorkspaceCacheConfig{LRUSize: 16, UseRedis: true}, client, nil, nil)
	require.NoError(t, err)

	_, err = dir.Get(context.Background(), "acme", "app1")
	require.NoError(t, err)

	dir2, err := New(store, config.WorkspaceCacheConfig{LRUSize: 16, UseRedis: true}, client, nil, nil)
	require.NoError(t, err)
	m, err := dir2.Get(context.Background(), "acme", "app1")
	require.NoError(t, err)
	require.Equal(t, "ws-1", m.WorkspaceName)
}

func TestPutInvalidatesWithFreshValue(t *testing.T) {
	store := newFakeWorkspaceStore()
	dir, err := New(store, config.WorkspaceCacheConfig{LRUSize: 16}, nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, dir.Put(context.Background(), &domain.WorkspaceMapping{Org: "acme", App: "app1", WorkspaceName: "ws-1"}))
	m, err := dir.Get(context.Background(), "acme", "app1")
	require.NoError(t, err)
	require.Equal(t, "ws-1", m.WorkspaceName)

	require.NoError(t, dir.Put(context.Background(), &domain.WorkspaceMapping{Org: "acme", App: "app1", WorkspaceName: "ws-2"}))
	m2, err := dir.Get(context.Background(), "acme", "app1")
	require.NoError(t, err)
	require.Equal(t, "ws-2", m2.WorkspaceName)
}
