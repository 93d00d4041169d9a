package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

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
	_, err := s.conn.Exec(ctx, `
		INSERT INTO packages_v2 (id, org, app, version, index_ref, files, tag, package_group_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.Org, p.App, p.Version, p.Index, p.Files, p.Tag, p.PackageGroupID, p.CreatedAt)
	return err
}

func (s *PackageStore) MaxVersion(ctx context.Context, org, app string) (int, error) {
	var max int
	err := s.conn.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM packages_v2 WHERE org=$1 AND app=$2`, org, app).Scan(&max)
	return max, err
}

func (s *PackageStore) FindByVersion(ctx context.Context, org, app string, version int) (*domain.Package, error) {
	row := s.conn.QueryRow(ctx, `SELECT `+packageColumns+` FROM packages_v2 WHERE org=$1 AND app=$2 AND version=$3`, org, app, version)
	return scanPackage(row)
}

func (s *PackageStore) FindByTag(ctx context.Context, org, app, tag string) (*domain.Package, error) {
	row := s.conn.QueryRow(ctx, `SELECT `+packageColumns+` FROM packages_v2 WHERE org=$1 AND app=$2 AND tag=$3`, org, app, tag)
	return scanPackage(row)
}

func (s *PackageStore) LatestVersion(ctx context.Context, org, app string) (*domain.Package, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT `+packageColumns+` FROM packages_v2 WHERE org=$1 AND app=$2 ORDER BY version DESC LIMIT 1`, org, app)
	return scanPackage(row)
}

func (s *PackageStore) List(ctx context.Context, org, app string, page storage.Pagination, search string) ([]*domain.Package, int64, error) {
	where := "WHERE org=$1 AND app=$2"
	args := []interface{}{org, app}
	if search != "" {
		where += " AND (tag ILIKE $3 OR array_to_string(files, ',') ILIKE $3)"
		args = append(args, "%"+search+"%")
	}

	var total int64
	if err := s.conn.QueryRow(ctx, "SELECT COUNT(*) FROM packages_v2 "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, page.PerPage, page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM packages_v2 %s ORDER BY version DESC LIMIT $%d OFFSET $%d`,
		packageColumns, where, len(args)-1, len(args))

	rows, err := s.conn.Query(ctx, query, args...)
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

func scanPackage(row pgx.Row) (*domain.Package, error) {
	var p domain.Package
	err := row.Scan(&p.ID, &p.Org, &p.App, &p.Version, &p.Index, &p.Files, &p.Tag, &p.PackageGroupID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPackageNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanPackageRows(rows pgx.Rows) (*domain.Package, error) {
	var p domain.Package
	err := rows.Scan(&p.ID, &p.Org, &p.App, &p.Version, &p.Index, &p.Files, &p.Tag, &p.PackageGroupID, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
