// Package resolver implements the Release Resolver of spec.md §4.5: given
// (org, app, dimension context, toss), it consults the external
// configuration-and-experimentation service for applicable variants and a
// flat, dotted-key resolved config, unflattens it, and folds it into a
// concrete package/file bundle loaded from the local catalog.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/juspay/airborne/internal/domain"
	"github.com/juspay/airborne/internal/externalconfig"
	"github.com/juspay/airborne/pkg/metrics"
)

// WorkspaceLookup is the subset of internal/workspace.Directory the
// resolver depends on.
type WorkspaceLookup interface {
	Get(ctx context.Context, org, app string) (*domain.WorkspaceMapping, error)
}

// PackageLoader is the subset of internal/pkgcomposer.Composer the
// resolver depends on.
type PackageLoader interface {
	Get(ctx context.Context, org, app string, key domain.PackageKey) (*domain.Package, error)
	Latest(ctx context.Context, org, app string) (*domain.Package, error)
}

// FileResolver is the subset of internal/catalog.Catalog the resolver
// depends on.
type FileResolver interface {
	Resolve(ctx context.Context, org, app, key string) (*domain.File, error)
}

// ResolveInput is the payload for Resolve.
type ResolveInput struct {
	Org               string
	App               string
	DimensionContext  map[string]string
	Toss              int
	// BaselineResources is used when the resolved config omits
	// "resources" entirely (spec §4.5 step 7).
	BaselineResources []string
}

// ResolvedFile mirrors a catalogued file exactly as spec.md §4.5 step 8
// requires: {file_path, url, checksum}.
type ResolvedFile struct {
	FilePath string
	URL      string
	Checksum string
}

// ResolvedConfig is the "config" section of the resolver's output.
type ResolvedConfig struct {
	BootTimeout          *int
	ReleaseConfigTimeout *int
	Version              string
	Properties           map[string]domain.Document
}

// ResolvedPackage is the "package" section of the resolver's output.
type ResolvedPackage struct {
	Version   int
	Index     *ResolvedFile
	Important []ResolvedFile
	Lazy      []ResolvedFile
}

// Resolution is the complete output of a resolve call.
type Resolution struct {
	Version   int
	Config    ResolvedConfig
	Package   ResolvedPackage
	Resources []ResolvedFile
}

// Resolver implements the Release Resolver.
type Resolver struct {
	workspaces WorkspaceLookup
	external   externalconfig.Client
	packages   PackageLoader
	files      FileResolver
	logger     *slog.Logger
	metrics    *metrics.ResolverMetrics
}

// New builds a Resolver.
func New(workspaces WorkspaceLookup, external externalconfig.Client, packages PackageLoader, files FileResolver, m *metrics.ResolverMetrics, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{workspaces: workspaces, external: external, packages: packages, files: files, metrics: m, logger: logger}
}

// Resolve runs the full spec.md §4.5 algorithm: workspace lookup,
// applicable-variants query, resolved-config query, dotted-key
// unflattening, package/file resolution, and resources resolution.
// Identical inputs against identical external state produce structurally
// identical output (spec.md's determinism invariant); no step here
// introduces nondeterminism of its own.
func (r *Resolver) Resolve(ctx context.Context, in ResolveInput) (res *Resolution, err error) {
	start := time.Now()
	defer func() { r.observe(start, err) }()

	mapping, err := r.workspaces.Get(ctx, in.Org, in.App)
	if err != nil {
		return nil, fmt.Errorf("resolver: workspace lookup: %w", err)
	}

	variants, err := r.external.ApplicableVariants(ctx, mapping.WorkspaceName, in.Org, in.Toss, in.DimensionContext)
	if err != nil {
		return nil, fmt.Errorf("resolver: applicable variants: %w", err)
	}
	variantIDs := make([]string, len(variants))
	for i, v := range variants {
		variantIDs[i] = v.ID
	}
	if r.metrics != nil {
		r.metrics.VariantsApplied.WithLabelValues().Observe(float64(len(variants)))
	}

	flat, err := r.external.GetResolvedConfig(ctx, mapping.WorkspaceName, in.Org, in.DimensionContext, variantIDs)
	if err != nil {
		return nil, fmt.Errorf("resolver: resolved config: %w", err)
	}
	root, err := unflatten(flat)
	if err != nil {
		return nil, err
	}

	pkgVersion := intAt(root, "package.version", 0)
	var pkg *domain.Package
	if pkgVersion == 0 {
		pkg, err = r.packages.Latest(ctx, in.Org, in.App)
	} else {
		pkg, err = r.packages.Get(ctx, in.Org, in.App, domain.PackageKey{Version: &pkgVersion})
	}
	if err != nil {
		return nil, fmt.Errorf("resolver: package lookup: %w", err)
	}

	importantKeys := stringSliceAt(root, "package.important")
	lazyKeys := stringSliceAt(root, "package.lazy")
	byPath := make(map[string]string, len(pkg.Files))
	for _, rf := range pkg.Files {
		byPath[filePathOf(rf)] = rf
	}

	memberOf := func(entry string) (string, bool) {
		if strings.Contains(entry, "@version:") {
			for _, rf := range pkg.Files {
				if rf == entry {
					return rf, true
				}
			}
			return "", false
		}
		rf, ok := byPath[entry]
		return rf, ok
	}

	important := map[string]bool{}
	importantResolved, err := resolveMembers(importantKeys, memberOf, important)
	if err != nil {
		return nil, err
	}
	lazy := map[string]bool{}
	lazyResolved, err := resolveMembers(lazyKeys, memberOf, lazy)
	if err != nil {
		return nil, err
	}
	for _, rf := range lazyResolved {
		if important[rf] {
			return nil, fmt.Errorf("%w: %q", domain.ErrImportantLazyOverlap, rf)
		}
	}
	for _, rf := range pkg.Files {
		if !important[rf] && !lazy[rf] {
			lazy[rf] = true
			lazyResolved = append(lazyResolved, rf)
		}
	}

	resolvedPkg := ResolvedPackage{Version: pkg.Version}
	if pkg.Index != nil {
		f, err := r.files.Resolve(ctx, in.Org, in.App, *pkg.Index)
		if err != nil {
			return nil, fmt.Errorf("resolver: index file: %w", err)
		}
		rf := toResolvedFile(f)
		resolvedPkg.Index = &rf
	}
	if resolvedPkg.Important, err = r.resolveFiles(ctx, in.Org, in.App, importantResolved); err != nil {
		return nil, err
	}
	if resolvedPkg.Lazy, err = r.resolveFiles(ctx, in.Org, in.App, lazyResolved); err != nil {
		return nil, err
	}

	resourceKeys := stringSliceAt(root, "resources")
	if len(resourceKeys) == 0 {
		resourceKeys = in.BaselineResources
	}
	resources, err := r.resolveFiles(ctx, in.Org, in.App, resourceKeys)
	if err != nil {
		return nil, err
	}

	cfg := ResolvedConfig{Version: stringAt(root, "config.version"), Properties: map[string]domain.Document{}}
	if v, ok := intPtrAt(root, "config.boot_timeout"); ok {
		cfg.BootTimeout = v
	}
	if v, ok := intPtrAt(root, "config.release_config_timeout"); ok {
		cfg.ReleaseConfigTimeout = v
	}
	if props, ok := docAt(root, "config.properties"); ok && props.Kind == domain.DocumentObject {
		cfg.Properties = props.Object
	}

	return &Resolution{Version: pkg.Version, Config: cfg, Package: resolvedPkg, Resources: resources}, nil
}

func (r *Resolver) resolveFiles(ctx context.Context, org, app string, keys []string) ([]ResolvedFile, error) {
	out := make([]ResolvedFile, 0, len(keys))
	for _, k := range keys {
		f, err := r.files.Resolve(ctx, org, app, k)
		if err != nil {
			return nil, fmt.Errorf("resolver: resolve file %q: %w", k, err)
		}
		out = append(out, toResolvedFile(f))
	}
	return out, nil
}

func toResolvedFile(f *domain.File) ResolvedFile {
	return ResolvedFile{FilePath: f.FilePath, URL: f.URL, Checksum: f.SHA256}
}

func resolveMembers(keys []string, memberOf func(string) (string, bool), seen map[string]bool) ([]string, error) {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		rf, ok := memberOf(k)
		if !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrFileNotInPackage, k)
		}
		seen[rf] = true
		out = append(out, rf)
	}
	return out, nil
}

func filePathOf(resolvedKey string) string {
	if i := strings.Index(resolvedKey, "@version:"); i >= 0 {
		return resolvedKey[:i]
	}
	return resolvedKey
}

func (r *Resolver) observe(start time.Time, err error) {
	if r.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
		r.metrics.ResolveErrors.WithLabelValues(reason(err)).Inc()
	}
	r.metrics.ResolveDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
}

func reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case strings.Contains(err.Error(), "workspace"):
		return "workspace"
	case strings.Contains(err.Error(), "applicable variants"):
		return "variants"
	case strings.Contains(err.Error(), "resolved config"):
		return "config"
	case strings.Contains(err.Error(), "package"):
		return "package"
	default:
		return "file"
	}
}
