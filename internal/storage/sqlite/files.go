package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/juspay/airborne/internal/domain"
	"github.com/juspay/airborne/internal/storage"
)

// FileStore implements storage.FileStore against the `files` table.
type FileStore struct {
	conn Conn
}

// NewFileStore builds a FileStore over conn (a *DB or a *sql.Tx).
func NewFileStore(conn Conn) *FileStore {
	return &FileStore{conn: conn}
}

func (s *FileStore) Insert(ctx context.Context, f *domain.File) error {
	meta, err := json.Marshal(f.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO files (id, org, app, file_path, version, tag, url, size, sha256, metadata, status, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		f.ID.String(), f.Org, f.App, f.FilePath, f.Version, f.Tag, f.URL, f.Size, f.SHA256, string(meta), f.Status, f.CreatedAt.UnixMilli())
	return err
}

func (s *FileStore) MaxVersion(ctx context.Context, org, app, filePath string) (int, error) {
	var max int
	err := s.conn.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0) FROM files WHERE org=? AND app=? AND file_path=?`,
		org, app, filePath).Scan(&max)
	return max, err
}

func (s *FileStore) FindByChecksum(ctx context.Context, org, app, filePath, sha256 string) (*domain.File, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT `+fileColumns+` FROM files
		WHERE org=? AND app=? AND file_path=? AND sha256=?
		ORDER BY version DESC LIMIT 1`, org, app, filePath, sha256)
	return scanFile(row)
}

func (s *FileStore) FindByPathVersion(ctx context.Context, org, app, filePath string, version int) (*domain.File, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT `+fileColumns+` FROM files WHERE org=? AND app=? AND file_path=? AND version=?`,
		org, app, filePath, version)
	return scanFile(row)
}

func (s *FileStore) FindByPathTag(ctx context.Context, org, app, filePath, tag string) (*domain.File, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT `+fileColumns+` FROM files WHERE org=? AND app=? AND file_path=? AND tag=?`,
		org, app, filePath, tag)
	return scanFile(row)
}

// FindManyByKeys resolves a batch of version-keyed and tag-keyed file
// references in a single query combining per-key disjunctions, per the
// combined-lookup requirement in the package composer's resolution step.
func (s *FileStore) FindManyByKeys(ctx context.Context, org, app string, versionKeys []domain.FileRef, tagKeys map[string]string) ([]*domain.File, error) {
	if len(versionKeys) == 0 && len(tagKeys) == 0 {
		return nil, nil
	}

	var clauses []string
	args := []interface{}{org, app}

	for _, k := range versionKeys {
		clauses = append(clauses, "(file_path=? AND version=?)")
		args = append(args, k.Path, k.Version)
	}
	for path, tag := range tagKeys {
		clauses = append(clauses, "(file_path=? AND tag=?)")
		args = append(args, path, tag)
	}

	query := fmt.Sprintf(`SELECT %s FROM files WHERE org=? AND app=? AND (%s)`,
		fileColumns, strings.Join(clauses, " OR "))

	rows, err := s.conn.QueryContext(ctx, query, args...)
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
	where := "WHERE org=? AND app=?"
	args := []interface{}{org, app}
	if search != "" {
		where += " AND file_path LIKE ?"
		args = append(args, "%"+search+"%")
	}

	var total int64
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM files "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, page.PerPage, page.Offset())
	listQuery := fmt.Sprintf(`SELECT %s FROM files %s ORDER BY file_path ASC, version DESC LIMIT ? OFFSET ?`,
		fileColumns, where)

	rows, err := s.conn.QueryContext(ctx, listQuery, args...)
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
	_, err := s.conn.ExecContext(ctx, `
		UPDATE files SET tag = NULL WHERE org=? AND app=? AND file_path=? AND tag=?`,
		org, app, filePath, tag)
	if err != nil {
		return err
	}
	_, err = s.conn.ExecContext(ctx, `
		UPDATE files SET tag=? WHERE org=? AND app=? AND file_path=? AND version=?`,
		tag, org, app, filePath, version)
	return err
}

func (s *FileStore) ClearTag(ctx context.Context, org, app, filePath, tag string) error {
	_, err := s.conn.ExecContext(ctx, `
		UPDATE files SET tag = NULL WHERE org=? AND app=? AND file_path=? AND tag=?`,
		org, app, filePath, tag)
	return err
}

const fileColumns = "id, org, app, file_path, version, tag, url, size, sha256, metadata, status, created_at"

type fileScanner interface {
	Scan(dest ...any) error
}

func scanFile(row fileScanner) (*domain.File, error) {
	f, meta, createdAt, id, err := scanFileRaw(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrFileNotFound
		}
		return nil, err
	}
	return finishFile(f, meta, createdAt, id)
}

func scanFileRows(rows fileScanner) (*domain.File, error) {
	f, meta, createdAt, id, err := scanFileRaw(rows)
	if err != nil {
		return nil, err
	}
	return finishFile(f, meta, createdAt, id)
}

func scanFileRaw(row fileScanner) (domain.File, string, int64, string, error) {
	var f domain.File
	var meta string
	var createdAt int64
	var id string
	err := row.Scan(&id, &f.Org, &f.App, &f.FilePath, &f.Version, &f.Tag, &f.URL, &f.Size, &f.SHA256, &meta, &f.Status, &createdAt)
	return f, meta, createdAt, id, err
}

func finishFile(f domain.File, meta string, createdAt int64, id string) (*domain.File, error) {
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	f.ID = parsedID
	f.CreatedAt = time.UnixMilli(createdAt).UTC()
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &f.Metadata); err != nil {
			return nil, err
		}
	}
	return &f, nil
}
