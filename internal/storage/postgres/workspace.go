package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/juspay/airborne/internal/domain"
)

// WorkspaceStore implements storage.WorkspaceStore against
// `workspace_names`.
type WorkspaceStore struct {
	conn Conn
}

// NewWorkspaceStore builds a WorkspaceStore over conn.
func NewWorkspaceStore(conn Conn) *WorkspaceStore {
	return &WorkspaceStore{conn: conn}
}

func (s *WorkspaceStore) Get(ctx context.Context, org, app string) (*domain.WorkspaceMapping, error) {
	var m domain.WorkspaceMapping
	err := s.conn.QueryRow(ctx, `
		SELECT org, app, workspace_name FROM workspace_names WHERE org=$1 AND app=$2`,
		org, app).Scan(&m.Org, &m.App, &m.WorkspaceName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWorkspaceNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *WorkspaceStore) Put(ctx context.Context, m *domain.WorkspaceMapping) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO workspace_names (org, app, workspace_name) VALUES ($1,$2,$3)
		ON CONFLICT (org, app) DO UPDATE SET workspace_name=EXCLUDED.workspace_name`,
		m.Org, m.App, m.WorkspaceName)
	return err
}
