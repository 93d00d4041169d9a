// Package pkgcomposer implements the Package Composer: immutable,
// versioned bundles of catalog entries, grounded on spec.md §4.2.
package pkgcomposer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/juspay/airborne/internal/catalog"
	"github.com/juspay/airborne/internal/domain"
	"github.com/juspay/airborne/internal/storage"
)

// Composer implements the Package Composer operations of spec.md §4.2.
type Composer struct {
	packages storage.PackageStore
	files    storage.FileStore
	logger   *slog.Logger
}

// New builds a Composer.
func New(packages storage.PackageStore, files storage.FileStore, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{packages: packages, files: files, logger: logger}
}

// Create resolves every file key in in.Files (and in.Index, if set) in
// one combined query, freezes them to concrete `path@version:<n>`
// strings, and assigns the next package version for (org, app).
func (c *Composer) Create(ctx context.Context, in domain.CreatePackageInput) (*domain.Package, error) {
	allKeys := append([]string{}, in.Files...)
	if in.Index != nil {
		allKeys = append(allKeys, *in.Index)
	}

	parsed := make(map[string]domain.FileKey, len(allKeys))
	var versionKeys []domain.FileRef
	tagKeys := map[string]string{}
	for _, raw := range allKeys {
		fk, err := catalog.ParseFileKey(raw)
		if err != nil {
			return nil, err
		}
		parsed[raw] = fk
		if fk.Version != nil {
			versionKeys = append(versionKeys, domain.FileRef{Path: fk.Path, Version: *fk.Version})
		} else if fk.Tag != nil {
			tagKeys[fk.Path] = *fk.Tag
		}
	}

	found, err := c.files.FindManyByKeys(ctx, in.Org, in.App, versionKeys, tagKeys)
	if err != nil {
		return nil, err
	}
	byPathVersion := make(map[string]*domain.File, len(found))
	byPathTag := make(map[string]*domain.File, len(found))
	for _, f := range found {
		byPathVersion[f.FilePath+"|"+itoa(f.Version)] = f
		if f.Tag != nil {
			byPathTag[f.FilePath+"|"+*f.Tag] = f
		}
	}

	resolved := make(map[string]string, len(allKeys))
	var missing []string
	for raw, fk := range parsed {
		var f *domain.File
		if fk.Version != nil {
			f = byPathVersion[fk.Path+"|"+itoa(*fk.Version)]
		} else if fk.Tag != nil {
			f = byPathTag[fk.Path+"|"+*fk.Tag]
		}
		if f == nil {
			missing = append(missing, raw)
			continue
		}
		resolved[raw] = fmt.Sprintf("%s@version:%d", f.FilePath, f.Version)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrMissingFiles, strings.Join(missing, ", "))
	}

	resolvedFiles := make([]string, len(in.Files))
	for i, raw := range in.Files {
		resolvedFiles[i] = resolved[raw]
	}
	var resolvedIndex *string
	if in.Index != nil {
		idx := resolved[*in.Index]
		resolvedIndex = &idx
	}

	maxV, err := c.packages.MaxVersion(ctx, in.Org, in.App)
	if err != nil {
		return nil, err
	}

	p := &domain.Package{
		ID:             uuid.New(),
		Org:            in.Org,
		App:            in.App,
		Version:        maxV + 1,
		Index:          resolvedIndex,
		Files:          resolvedFiles,
		Tag:            in.Tag,
		PackageGroupID: uuid.New(),
		CreatedAt:      time.Now(),
	}
	if err := c.packages.Insert(ctx, p); err != nil {
		return nil, err
	}
	c.logger.Info("package created", "org", in.Org, "app", in.App, "version", p.Version, "files", len(p.Files))
	return p, nil
}

// Get resolves a package by version or tag key.
func (c *Composer) Get(ctx context.Context, org, app string, key domain.PackageKey) (*domain.Package, error) {
	if key.Version != nil {
		return c.packages.FindByVersion(ctx, org, app, *key.Version)
	}
	if key.Tag != nil {
		return c.packages.FindByTag(ctx, org, app, *key.Tag)
	}
	return nil, domain.ErrInvalidPackageKey
}

// Latest returns the newest Package for (org, app), used by the resolver
// when the resolved config omits an explicit package.version (spec §4.5
// step 5: "if the resolved package.version is 0, substitute the latest
// package version").
func (c *Composer) Latest(ctx context.Context, org, app string) (*domain.Package, error) {
	return c.packages.LatestVersion(ctx, org, app)
}

// List returns packages newest-version first.
func (c *Composer) List(ctx context.Context, org, app string, page storage.Pagination, search string) ([]*domain.Package, int64, error) {
	return c.packages.List(ctx, org, app, page, search)
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }
