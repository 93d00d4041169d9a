package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/juspay/airborne/internal/domain"
	"github.com/juspay/airborne/internal/storage"
)

// FileStore implements storage.FileStore against the `files` table.
type FileStore struct {
	conn Conn
}

// NewFileStore builds a FileStore over conn (a *Pool or a pgx.Tx).
func NewFileStore(conn Conn) *FileStore {
	return &FileStore{conn: conn}
}

func (s *FileStore) Insert(ctx context.Context, f *domain.File) error {
	meta, err := json.Marshal(f.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = s.conn.Exec(ctx, `
		INSERT INTO files (id, org, app, file_path, version, tag, url, size, sha256, metadata, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		f.ID, f.Org, f.App, f.FilePath, f.Version, f.Tag, f.URL, f.Size, f.SHA256, meta, f.Status, f.CreatedAt)
	return err
}

func (s *FileStore) MaxVersion(ctx context.Context, org, app, filePath string) (int, error) {
	var max int
	err := s.conn.QueryRow(ctx, `
		SELECT COALESCE(MAX(version), 0) FROM files WHERE org=$1 AND app=$2 AND file_path=$3`,
		org, app, filePath).Scan(&max)
	return max, err
}

func (s *FileStore) FindByChecksum(ctx context.Context, org, app, filePath, sha256 string) (*domain.File, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT `+fileColumns+` FROM files
		WHERE org=$1 AND app=$2 AND file_path=$3 AND sha256=$4
		ORDER BY version DESC LIMIT 1`, org, app, filePath, sha256)
	return scanFile(row)
}

func (s *FileStore) FindByPathVersion(ctx context.Context, org, app, filePath string, version int) (*domain.File, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT `+fileColumns+` FROM files WHERE org=$1 AND app=$2 AND file_path=$3 AND version=$4`,
		org, app, filePath, version)
	return scanFile(row)
}

func (s *FileStore) FindByPathTag(ctx context.Context, org, app, filePath, tag string) (*domain.File, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT `+fileColumns+` FROM files WHERE org=$1 AND app=$2 AND file_path=$3 AND tag=$4`,
		org, app, filePath, tag)
	return scanFile(row)
}

// FindManyByKeys resolves a batch of version-keyed and tag-keyed file
// references in a single query combining per-key disjunctions, per
// spec §4.2.
func (s *FileStore) FindManyByKeys(ctx context.Context, org, app string, versionKeys []domain.FileRef, tagKeys map[string]string) ([]*domain.File, error) {
	if len(versionKeys) == 0 && len(tagKeys) == 0 {
		return nil, nil
	}

	var clauses []string
	args := []interface{}{org, app}
	argN := 3

	for _, k := range versionKeys {
		clauses = append(clauses, fmt.Sprintf("(file_path=$%d AND version=$%d)", argN, argN+1))
		args = append(args, k.Path, k.Version)
		argN += 2
	}
	for path, tag := range tagKeys {
		clauses = append(clauses, fmt.Sprintf("(file_path=$%d AND tag=$%d)", argN, argN+1))
		args = append(args, path, tag)
		argN += 2
	}

	query := fmt.Sprintf(`SELECT %s FROM files WHERE org=$1 AND app=$2 AND (%s)`,
		fileColumns, strings.Join(clauses, " OR "))

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.File
	for rows.Next() {
		f, err := scanFileRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *FileStore) List(ctx context.Context, org, app string, page storage.Pagination, search string) ([]*domain.File, int64, error) {
	where := "WHERE org=$1 AND app=$2"
	args := []interface{}{org, app}
	if search != "" {
		where += " AND file_path ILIKE $3"
		args = append(args, "%"+search+"%")
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM files " + where
	if err := s.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, page.PerPage, page.Offset())
	listQuery := fmt.Sprintf(`SELECT %s FROM files %s ORDER BY file_path ASC, version DESC LIMIT $%d OFFSET $%d`,
		fileColumns, where, len(args)-1, len(args))

	rows, err := s.conn.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var files []*domain.File
	for rows.Next() {
		f, err := scanFileRows(rows)
		if err != nil {
			return nil, 0, err
		}
		files = append(files, f)
	}
	return files, total, rows.Err()
}

// Retag atomically releases any prior binding of tag on (org, app,
// file_path) and binds it to the given version.
func (s *FileStore) Retag(ctx context.Context, org, app, filePath, tag string, version int) error {
	_, err := s.conn.Exec(ctx, `
		UPDATE files SET tag = NULL WHERE org=$1 AND app=$2 AND file_path=$3 AND tag=$4`,
		org, app, filePath, tag)
	if err != nil {
		return err
	}
	tag2, version2 := tag, version
	_, err = s.conn.Exec(ctx, `
		UPDATE files SET tag=$1 WHERE org=$2 AND app=$3 AND file_path=$4 AND version=$5`,
		tag2, org, app, filePath, version2)
	return err
}

func (s *FileStore) ClearTag(ctx context.Context, org, app, filePath, tag string) error {
	_, err := s.conn.Exec(ctx, `
		UPDATE files SET tag = NULL WHERE org=$1 AND app=$2 AND file_path=$3 AND tag=$4`,
		org, app, filePath, tag)
	return err
}

const fileColumns = "id, org, app, file_path, version, tag, url, size, sha256, metadata, status, created_at"

func scanFile(row pgx.Row) (*domain.File, error) {
	var f domain.File
	var meta []byte
	err := row.Scan(&f.ID, &f.Org, &f.App, &f.FilePath, &f.Version, &f.Tag, &f.URL, &f.Size, &f.SHA256, &meta, &f.Status, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFileNotFound
		}
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &f.Metadata); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

func scanFileRows(rows pgx.Rows) (*domain.File, error) {
	var f domain.File
	var meta []byte
	err := rows.Scan(&f.ID, &f.Org, &f.App, &f.FilePath, &f.Version, &f.Tag, &f.URL, &f.Size, &f.SHA256, &meta, &f.Status, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &f.Metadata); err != nil {
			return nil, err
		}
	}
	return &f, nil
}
