package sqlite

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/juspay/airborne/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(context.Background(), filepath.Join(dir, "airborne.db"), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestFileStoreInsertAndFind(t *testing.T) {
	db := openTestDB(t)
	store := NewFileStore(db)
	ctx := context.Background()

	f := &domain.File{
		ID:        uuid.New(),
		Org:       "acme",
		App:       "wallet",
		FilePath:  "index.js",
		Version:   1,
		URL:       "https://cdn.example.com/index.js",
		Size:      1024,
		SHA256:    "deadbeef",
		Metadata:  map[string]interface{}{"mime": "application/javascript"},
		Status:    domain.FileStatusReady,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, store.Insert(ctx, f))

	got, err := store.FindByPathVersion(ctx, "acme", "wallet", "index.js", 1)
	require.NoError(t, err)
	require.Equal(t, f.ID, got.ID)
	require.Equal(t, f.SHA256, got.SHA256)
	require.Equal(t, "application/javascript", got.Metadata["mime"])

	maxV, err := store.MaxVersion(ctx, "acme", "wallet", "index.js")
	require.NoError(t, err)
	require.Equal(t, 1, maxV)

	_, err = store.FindByPathVersion(ctx, "acme", "wallet", "index.js", 2)
	require.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestFileStoreRetag(t *testing.T) {
	db := openTestDB(t)
	store := NewFileStore(db)
	ctx := context.Background()

	mk := func(v int) *domain.File {
		return &domain.File{
			ID: uuid.New(), Org: "acme", App: "wallet", FilePath: "index.js",
			Version: v, URL: "https://cdn/index.js", Size: 1, SHA256: "x",
			Status: domain.FileStatusReady, CreatedAt: time.Now().UTC(),
		}
	}
	require.NoError(t, store.Insert(ctx, mk(1)))
	require.NoError(t, store.Insert(ctx, mk(2)))

	require.NoError(t, store.Retag(ctx, "acme", "wallet", "index.js", "stable", 1))
	got, err := store.FindByPathTag(ctx, "acme", "wallet", "index.js", "stable")
	require.NoError(t, err)
	require.Equal(t, 1, got.Version)

	// Retagging to version 2 must release the prior binding, not duplicate it.
	require.NoError(t, store.Retag(ctx, "acme", "wallet", "index.js", "stable", 2))
	got, err = store.FindByPathTag(ctx, "acme", "wallet", "index.js", "stable")
	require.NoError(t, err)
	require.Equal(t, 2, got.Version)
}

func TestOutboxStoreEnqueueClaimDelete(t *testing.T) {
	db := openTestDB(t)
	store := NewOutboxStore(db)
	ctx := context.Background()

	row := &domain.OutboxRow{
		TransactionID: "txn-1",
		EntityName:    "index.js",
		EntityType:    "file",
		State:         domain.NewObject(map[string]domain.Document{"path": domain.NewString("index.js")}),
		CreatedAt:     time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, store.Enqueue(ctx, row))
	// Re-enqueueing the same dedupe key is a no-op.
	require.NoError(t, store.Enqueue(ctx, row))

	claimed, err := store.ClaimBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.Equal(t, "txn-1", claimed[0].TransactionID)

	require.NoError(t, store.MarkAttempt(ctx, "txn-1", "file", "index.js", 1, true))
	require.NoError(t, store.Delete(ctx, "txn-1", "file", "index.js"))

	claimed, err = store.ClaimBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 0)
}

func TestWorkspaceStoreGetNotFound(t *testing.T) {
	db := openTestDB(t)
	store := NewWorkspaceStore(db)
	ctx := context.Background()

	_, err := store.Get(ctx, "acme", "wallet")
	require.ErrorIs(t, err, domain.ErrWorkspaceNotFound)

	require.NoError(t, store.Put(ctx, &domain.WorkspaceMapping{Org: "acme", App: "wallet", WorkspaceName: "acme-wallet"}))
	got, err := store.Get(ctx, "acme", "wallet")
	require.NoError(t, err)
	require.Equal(t, "acme-wallet", got.WorkspaceName)
}

func TestDimensionStoreReferencedByLiveExperiment(t *testing.T) {
	db := openTestDB(t)
	dims := NewDimensionStore(db)
	releases := NewReleaseStore(db)
	ctx := context.Background()

	require.NoError(t, dims.Insert(ctx, &domain.Dimension{
		Org: "acme", App: "wallet", Name: "city", Position: 0,
		Schema: domain.NewObject(nil), Type: domain.DimensionStandard,
	}))

	referenced, err := dims.IsReferencedByLiveExperiment(ctx, "acme", "wallet", "city")
	require.NoError(t, err)
	require.False(t, referenced)

	require.NoError(t, releases.Insert(ctx, &domain.Release{
		ID: uuid.New(), Org: "acme", App: "wallet", PackageVersion: 1, ConfigVersion: "v1",
		DimensionContext: map[string]string{"city": "Bengaluru"},
		Status:           domain.ReleaseStatusInProgress,
		CreatedAt:        time.Now().UTC(),
	}))

	referenced, err = dims.IsReferencedByLiveExperiment(ctx, "acme", "wallet", "city")
	require.NoError(t, err)
	require.True(t, referenced)
}
