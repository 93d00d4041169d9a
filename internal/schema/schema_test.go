package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/juspay/airborne/internal/domain"
	"github.com/juspay/airborne/internal/txn"
)

type fakePropertySchemaStore struct {
	keys    map[string]bool
	upserts map[string]domain.PropertySchemaEntry
	deletes []string
}

func newFakePropertySchemaStore(existing ...string) *fakePropertySchemaStore {
	keys := make(map[string]bool, len(existing))
	for _, k := range existing {
		keys[k] = true
	}
	return &fakePropertySchemaStore{keys: keys, upserts: map[string]domain.PropertySchemaEntry{}}
}

func (s *fakePropertySchemaStore) Keys(ctx context.Context, org, app string) ([]string, error) {
	var out []string
	for k := range s.keys {
		out = append(out, k)
	}
	return out, nil
}

func (s *fakePropertySchemaStore) Upsert(ctx context.Context, org, app string, entries map[string]domain.PropertySchemaEntry) error {
	for k, v := range entries {
		s.upserts[k] = v
		s.keys[k] = true
	}
	return nil
}

func (s *fakePropertySchemaStore) Delete(ctx context.Context, org, app string, keys []string) error {
	s.deletes = append(s.deletes, keys...)
	for _, k := range keys {
		delete(s.keys, k)
	}
	return nil
}

func TestDiffClassifiesCreateUpdateDelete(t *testing.T) {
	store := newFakePropertySchemaStore("boot_timeout", "stale_key")
	s := New(store, nil, txn.New(nil, nil))

	diff, err := s.Diff(context.Background(), "org", "app", map[string]domain.PropertySchemaEntry{
		"boot_timeout": {Description: "updated"},
		"new_key":      {Description: "brand new"},
	})
	require.NoError(t, err)

	kinds := map[string]domain.SchemaDiffKind{}
	for _, d := range diff {
		kinds[d.Key] = d.Kind
	}
	require.Equal(t, domain.SchemaDiffUpdate, kinds["boot_timeout"])
	require.Equal(t, domain.SchemaDiffCreate, kinds["new_key"])
	require.Equal(t, domain.SchemaDiffDelete, kinds["stale_key"])
}

func TestPutAppliesUpsertsAndDeletes(t *testing.T) {
	store := newFakePropertySchemaStore("stale_key")
	s := New(store, nil, txn.New(nil, nil))

	_, err := s.Put(context.Background(), "org", "app", map[string]domain.PropertySchemaEntry{
		"new_key": {Description: "brand new", Default: domain.NewBool(true)},
	})
	require.NoError(t, err)

	require.Contains(t, store.upserts, "new_key")
	require.Contains(t, store.deletes, "stale_key")
}
