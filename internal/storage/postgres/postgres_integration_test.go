//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/juspay/airborne/internal/config"
	"github.com/juspay/airborne/internal/domain"
	"github.com/juspay/airborne/internal/migrations"
	"github.com/juspay/airborne/internal/storage/postgres"
)

// startPostgres boots a disposable Postgres container and runs the
// release engine's goose migrations against it, returning a connected
// *postgres.Pool ready for repository tests.
func startPostgres(t *testing.T) *postgres.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("release_engine_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	sqlDB, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	defer sqlDB.Close()

	manager, err := migrations.New(sqlDB, slog.Default())
	require.NoError(t, err)
	require.NoError(t, manager.Up(ctx))

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	pool := postgres.New(config.DatabaseConfig{
		Host: host, Port: port.Int(), Username: "test", Password: "test",
		Database: "release_engine_test", SSLMode: "disable",
	}, slog.Default())
	require.NoError(t, pool.Connect(ctx))
	t.Cleanup(func() { _ = pool.Close() })

	return pool
}

func TestFileStoreInsertAndFind(t *testing.T) {
	pool := startPostgres(t)
	store := postgres.NewFileStore(pool)
	ctx := context.Background()

	file := &domain.File{
		ID: uuid.New(), Org: "acme", App: "wallet", FilePath: "/config.json",
		Version: 1, URL: "https://objects.example/config.json", Size: 128,
		SHA256: "deadbeef", Status: domain.FileStatusReady, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Insert(ctx, file))

	found, err := store.FindByPathVersion(ctx, "acme", "wallet", "/config.json", 1)
	require.NoError(t, err)
	require.Equal(t, file.SHA256, found.SHA256)

	max, err := store.MaxVersion(ctx, "acme", "wallet", "/config.json")
	require.NoError(t, err)
	require.Equal(t, 1, max)
}
