package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"context"

	"github.com/google/uuid"

	"github.com/juspay/airborne/internal/domain"
	"github.com/juspay/airborne/internal/storage"
)

// PackageStore implements storage.PackageStore against `packages_v2`.
type PackageStore struct {
	conn Conn
}

// NewPackageStore builds a PackageStore over conn.
func NewPackageStore(conn Conn) *PackageStore {
	return &PackageStore{conn: conn}
}

func (s *PackageStore) Insert(ctx context.Context, p *domain.Package) error {
	files, err := json.Marshal(p.Files)
	if err != nil {
		return err
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO packages_v2 (id, org, app, version, index_ref, files, tag, package_group_id, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		p.ID.String(), p.Org, p.App, p.Version, p.Index, string(files), p.Tag, p.PackageGroupID.String(), p.CreatedAt.UnixMilli())
	return err
}

func (s *PackageStore) MaxVersion(ctx context.Context, org, app string) (int, error) {
	var max int
	err := s.conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM packages_v2 WHERE org=? AND app=?`, org, app).Scan(&max)
	return max, err
}

func (s *PackageStore) FindByVersion(ctx context.Context, org, app string, version int) (*domain.Package, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+packageColumns+` FROM packages_v2 WHERE org=? AND app=? AND version=?`, org, app, version)
	return scanPackage(row)
}

func (s *PackageStore) FindByTag(ctx context.Context, org, app, tag string) (*domain.Package, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+packageColumns+` FROM packages_v2 WHERE org=? AND app=? AND tag=?`, org, app, tag)
	return scanPackage(row)
}

func (s *PackageStore) LatestVersion(ctx context.Context, org, app string) (*domain.Package, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT `+packageColumns+` FROM packages_v2 WHERE org=? AND app=? ORDER BY version DESC LIMIT 1`, org, app)
	return scanPackage(row)
}

func (s *PackageStore) List(ctx context.Context, org, app string, page storage.Pagination, search string) ([]*domain.Package, int64, error) {
	where := "WHERE org=? AND app=?"
	args := []interface{}{org, app}
	if search != "" {
		where += " AND (tag LIKE ? OR files LIKE ?)"
		args = append(args, "%"+search+"%", "%"+search+"%")
	}

	var total int64
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM packages_v2 "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, page.PerPage, page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM packages_v2 %s ORDER BY version DESC LIMIT ? OFFSET ?`, packageColumns, where)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*domain.Package
	for rows.Next() {
		p, err := scanPackageRows(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

const packageColumns = "id, org, app, version, index_ref, files, tag, package_group_id, created_at"

func scanPackage(row fileScanner) (*domain.Package, error) {
	p, err := scanPackageRaw(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPackageNotFound
		}
		return nil, err
	}
	return p, nil
}

func scanPackageRows(rows fileScanner) (*domain.Package, error) {
	return scanPackageRaw(rows)
}

func scanPackageRaw(row fileScanner) (*domain.Package, error) {
	var p domain.Package
	var id, groupID string
	var files string
	var createdAt int64
	err := row.Scan(&id, &p.Org, &p.App, &p.Version, &p.Index, &files, &p.Tag, &groupID, &createdAt)
	if err != nil {
		return nil, err
	}
	if p.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if p.PackageGroupID, err = uuid.Parse(groupID); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(files), &p.Files); err != nil {
		return nil, err
	}
	p.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &p, nil
}
