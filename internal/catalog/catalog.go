// Package catalog implements the File Catalog: content-addressed asset
// registration, listing, retagging, and key resolution, grounded on
// spec.md §4.1 and backed by internal/storage.FileStore and
// internal/objectstore.Store.
package catalog

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/juspay/airborne/internal/domain"
	"github.com/juspay/airborne/internal/objectstore"
	"github.com/juspay/airborne/internal/storage"
	"github.com/juspay/airborne/pkg/metrics"
)

// RegisterInput is the payload for Register.
type RegisterInput struct {
	Org            string
	App            string
	FilePath       string
	URL            string
	Tag            *string
	Metadata       map[string]interface{}
	SkipDuplicates bool
}

// UploadInput is the payload for Upload: streams raw bytes to the object
// store, then registers the resulting URL.
type UploadInput struct {
	Org      string
	App      string
	FilePath string
	Data     []byte
	Tag      *string
	Metadata map[string]interface{}
}

// Catalog implements the File Catalog operations of spec.md §4.1.
type Catalog struct {
	files   storage.FileStore
	objects objectstore.Store
	bucket  string
	logger  *slog.Logger
	metrics *metrics.CatalogMetrics
}

// New builds a Catalog.
func New(files storage.FileStore, objects objectstore.Store, bucket string, m *metrics.CatalogMetrics, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{files: files, objects: objects, bucket: bucket, logger: logger, metrics: m}
}

func (c *Catalog) observe(operation string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	c.metrics.OperationDuration.WithLabelValues(operation, statusLabel(err)).Observe(time.Since(start).Seconds())
	c.metrics.Operations.WithLabelValues(operation, statusLabel(err)).Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Register downloads url, checksums it, and persists a Ready File at the
// next version for (org, app, file_path).
func (c *Catalog) Register(ctx context.Context, in RegisterInput) (f *domain.File, err error) {
	start := time.Now()
	defer func() { c.observe("register", start, err) }()

	data, sha256Hex, err := c.objects.Download(ctx, in.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDownloadError, err)
	}

	if in.SkipDuplicates {
		if existing, ferr := c.files.FindByChecksum(ctx, in.Org, in.App, in.FilePath, sha256Hex); ferr == nil && existing != nil {
			return nil, domain.ErrDuplicateContent
		} else if ferr != nil && !errors.Is(ferr, domain.ErrFileNotFound) {
			return nil, ferr
		}
	}

	if in.Tag != nil {
		if _, ferr := c.files.FindByPathTag(ctx, in.Org, in.App, in.FilePath, *in.Tag); ferr == nil {
			return nil, domain.ErrTagConflict
		} else if ferr != nil && !errors.Is(ferr, domain.ErrFileNotFound) {
			return nil, ferr
		}
	}

	maxV, err := c.files.MaxVersion(ctx, in.Org, in.App, in.FilePath)
	if err != nil {
		return nil, err
	}

	f = &domain.File{
		ID:        uuid.New(),
		Org:       in.Org,
		App:       in.App,
		FilePath:  in.FilePath,
		Version:   maxV + 1,
		Tag:       in.Tag,
		URL:       in.URL,
		Size:      int64(len(data)),
		SHA256:    sha256Hex,
		Metadata:  in.Metadata,
		Status:    domain.FileStatusReady,
		CreatedAt: time.Now(),
	}
	if err := c.files.Insert(ctx, f); err != nil {
		return nil, err
	}
	c.logger.Info("file registered", "org", in.Org, "app", in.App, "file_path", in.FilePath, "version", f.Version)
	return f, nil
}

// Upload streams file bytes to the object store at the deterministic key
// layout assets/<org>/<app>/<uuid>/<version>/<basename>, then registers
// the resulting URL. The version embedded in the key is provisional: the
// concrete file version is assigned by Register from max_version+1, so
// the object key uses a fresh uuid rather than that version to stay
// collision-free across concurrent uploads to the same path.
func (c *Catalog) Upload(ctx context.Context, in UploadInput) (*domain.File, error) {
	id := uuid.New()
	maxV, err := c.files.MaxVersion(ctx, in.Org, in.App, in.FilePath)
	if err != nil {
		return nil, err
	}
	nextVersion := maxV + 1
	key := fmt.Sprintf("assets/%s/%s/%s/%d/%s", in.Org, in.App, id, nextVersion, path.Base(in.FilePath))

	digest := sha256.Sum256(in.Data)
	sum := hex.EncodeToString(digest[:])
	size, err := c.objects.PutObject(ctx, c.bucket, key, bytes.NewReader(in.Data), sum)
	if err != nil {
		return nil, err
	}
	_ = size

	url := fmt.Sprintf("%s/%s", c.bucket, key)
	return c.Register(ctx, RegisterInput{
		Org: in.Org, App: in.App, FilePath: in.FilePath, URL: url,
		Tag: in.Tag, Metadata: in.Metadata,
	})
}

// List returns files ordered by (file_path ASC, version DESC).
func (c *Catalog) List(ctx context.Context, org, app string, page storage.Pagination, search string) ([]*domain.File, int64, error) {
	return c.files.List(ctx, org, app, page, search)
}

// Retag atomically rebinds tag to (filePath, version), releasing any
// prior binding.
func (c *Catalog) Retag(ctx context.Context, org, app, filePath, tag string, version int) (err error) {
	start := time.Now()
	defer func() { c.observe("retag", start, err) }()
	return c.files.Retag(ctx, org, app, filePath, tag, version)
}

// Resolve parses a `path@version:<n>` or `path@tag:<t>` key and returns
// the concrete File.
func (c *Catalog) Resolve(ctx context.Context, org, app, key string) (*domain.File, error) {
	fk, err := ParseFileKey(key)
	if err != nil {
		return nil, err
	}
	if fk.Version != nil {
		return c.files.FindByPathVersion(ctx, org, app, fk.Path, *fk.Version)
	}
	if fk.Tag != nil {
		return c.files.FindByPathTag(ctx, org, app, fk.Path, *fk.Tag)
	}
	return nil, domain.ErrInvalidFileKey
}

// ParseFileKey parses the `<path>@version:<n>` / `<path>@tag:<t>` grammar.
// Anything that doesn't match the grammar is not an error: it round-trips
// as a bare path with no version or tag, so a caller handed back its own
// File.FilePath (which never contains an `@`) or an already-bare key
// always resolves instead of failing. Only the last `@` is significant,
// matching a path that legitimately contains earlier `@` characters.
func ParseFileKey(key string) (domain.FileKey, error) {
	idx := strings.LastIndex(key, "@")
	if idx < 0 {
		return domain.FileKey{Path: key}, nil
	}
	path, suffix := key[:idx], key[idx+1:]
	kind, val, ok := strings.Cut(suffix, ":")
	if !ok {
		return domain.FileKey{Path: key}, nil
	}
	switch kind {
	case "version":
		v, err := strconv.Atoi(val)
		if err != nil {
			// Unparseable version: fall back to the bare path, same as
			// any other unrecognized suffix, rather than rejecting the key.
			return domain.FileKey{Path: path}, nil
		}
		return domain.FileKey{Path: path, Version: &v}, nil
	case "tag":
		return domain.FileKey{Path: path, Tag: &val}, nil
	default:
		return domain.FileKey{Path: key}, nil
	}
}

// ChecksumToHex transcodes a base64-encoded checksum (as delivered by the
// external configuration service) into lowercase hex, per spec.md §4.1's
// "MUST transcode to hex on read" requirement.
func ChecksumToHex(base64Checksum string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(base64Checksum))
	if err != nil {
		return "", fmt.Errorf("catalog: invalid base64 checksum: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
