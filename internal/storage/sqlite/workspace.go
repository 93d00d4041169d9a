package sqlite

import (
	"context"
	"database/sql"
	"errors"

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
	err := s.conn.QueryRowContext(ctx, `
		SELECT org, app, workspace_name FROM workspace_names WHERE org=? AND app=?`,
		org, app).Scan(&m.Org, &m.App, &m.WorkspaceName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWorkspaceNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *WorkspaceStore) Put(ctx context.Context, m *domain.WorkspaceMapping) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO workspace_names (org, app, workspace_name) VALUES (?,?,?)
		ON CONFLICT (org, app) DO UPDATE SET workspace_name=excluded.workspace_name`,
		m.Org, m.App, m.WorkspaceName)
	return err
}
