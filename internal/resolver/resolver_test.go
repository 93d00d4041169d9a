package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/juspay/airborne/internal/domain"
	"github.com/juspay/airborne/internal/externalconfig"
)

type fakeWorkspaces struct {
	mapping *domain.WorkspaceMapping
}

func (f *fakeWorkspaces) Get(ctx context.Context, org, app string) (*domain.WorkspaceMapping, error) {
	if f.mapping == nil {
		return nil, domain.ErrWorkspaceNotFound
	}
	return f.mapping, nil
}

type fakeExternal struct {
	variants []externalconfig.ApplicableVariant
	flat     map[string]domain.Document
}

func (f *fakeExternal) ListDefaultConfigs(ctx context.Context, org, workspace string, all bool) ([]externalconfig.DefaultConfigEntry, error) {
	return nil, nil
}
func (f *fakeExternal) CreateDefaultConfig(ctx context.Context, org, workspace, key string, value domain.Document, description string) error {
	return nil
}
func (f *fakeExternal) UpdateDefaultConfig(ctx context.Context, org, workspace, key string, value domain.Document, description string) error {
	return nil
}
func (f *fakeExternal) DeleteDefaultConfig(ctx context.Context, org, workspace, key string) error {
	return nil
}
func (f *fakeExternal) CreateExperiment(ctx context.Context, in externalconfig.ExperimentInput) (string, error) {
	return "", nil
}
func (f *fakeExternal) RampExperiment(ctx context.Context, id string, trafficPercentage int) error {
	return nil
}
func (f *fakeExternal) ConcludeExperiment(ctx context.Context, id string, chosenVariant string) error {
	return nil
}
func (f *fakeExternal) DiscardExperiment(ctx context.Context, id string) error { return nil }
func (f *fakeExternal) ApplicableVariants(ctx context.Context, workspace, org string, toss int, context map[string]string) ([]externalconfig.ApplicableVariant, error) {
	return f.variants, nil
}
func (f *fakeExternal) GetResolvedConfig(ctx context.Context, workspace, org string, context map[string]string, variantIDs []string) (map[string]domain.Document, error) {
	return f.flat, nil
}

type fakePackages struct {
	byVersion map[int]*domain.Package
	latest    *domain.Package
}

func (f *fakePackages) Get(ctx context.Context, org, app string, key domain.PackageKey) (*domain.Package, error) {
	if key.Version == nil {
		return nil, domain.ErrInvalidPackageKey
	}
	p, ok := f.byVersion[*key.Version]
	if !ok {
		return nil, domain.ErrPackageNotFound
	}
	return p, nil
}

func (f *fakePackages) Latest(ctx context.Context, org, app string) (*domain.Package, error) {
	return f.latest, nil
}

type fakeFiles struct {
	byKey map[string]*domain.File
}

func (f *fakeFiles) Resolve(ctx context.Context, org, app, key string) (*domain.File, error) {
	file, ok := f.byKey[key]
	if !ok {
		return nil, domain.ErrFileNotFound
	}
	return file, nil
}

func newTestResolver(pkg *domain.Package, flat map[string]domain.Document, files map[string]*domain.File) *Resolver {
	return New(
		&fakeWorkspaces{mapping: &domain.WorkspaceMapping{Org: "acme", App: "app1", WorkspaceName: "ws-1"}},
		&fakeExternal{flat: flat},
		&fakePackages{byVersion: map[int]*domain.Package{pkg.Version: pkg}, latest: pkg},
		&fakeFiles{byKey: files},
		nil, nil,
	)
}

func TestResolveWithExplicitPackageVersion(t *testing.T) {
	pkg := &domain.Package{Version: 5, Files: []string{"boot.js@version:1", "logo.png@version:2"}}
	files := map[string]*domain.File{
		"boot.js@version:1": {FilePath: "boot.js", Version: 1, URL: "https://cdn/boot.js", SHA256: "aa"},
		"logo.png@version:2": {FilePath: "logo.png", Version: 2, URL: "https://cdn/logo.png", SHA256: "bb"},
	}
	flat := map[string]domain.Document{
		"package.version":   domain.NewPosInt(5),
		"package.important": domain.NewArray([]domain.Document{domain.NewString("boot.js")}),
		"config.boot_timeout": domain.NewPosInt(30),
		"config.properties.k": domain.NewString("v"),
	}
	r := newTestResolver(pkg, flat, files)

	res, err := r.Resolve(context.Background(), ResolveInput{Org: "acme", App: "app1"})
	require.NoError(t, err)
	require.Equal(t, 5, res.Version)
	require.Len(t, res.Package.Important, 1)
	require.Equal(t, "boot.js", res.Package.Important[0].FilePath)
	require.Len(t, res.Package.Lazy, 1)
	require.Equal(t, "logo.png", res.Package.Lazy[0].FilePath)
	require.NotNil(t, res.Config.BootTimeout)
	require.Equal(t, 30, *res.Config.BootTimeout)
	require.Equal(t, "v", res.Config.Properties["k"].String)
}

func TestResolveSubstitutesLatestWhenVersionZero(t *testing.T) {
	pkg := &domain.Package{Version: 9, Files: []string{"boot.js@version:1"}}
	files := map[string]*domain.File{"boot.js@version:1": {FilePath: "boot.js", Version: 1, URL: "u", SHA256: "aa"}}
	flat := map[string]domain.Document{"package.version": domain.NewPosInt(0)}
	r := newTestResolver(pkg, flat, files)

	res, err := r.Resolve(context.Background(), ResolveInput{Org: "acme", App: "app1"})
	require.NoError(t, err)
	require.Equal(t, 9, res.Version)
}

func TestResolveRejectsFileNotInPackage(t *testing.T) {
	pkg := &domain.Package{Version: 1, Files: []string{"boot.js@version:1"}}
	files := map[string]*domain.File{"boot.js@version:1": {FilePath: "boot.js", Version: 1, URL: "u", SHA256: "aa"}}
	flat := map[string]domain.Document{
		"package.version":   domain.NewPosInt(1),
		"package.important": domain.NewArray([]domain.Document{domain.NewString("missing.js")}),
	}
	r := newTestResolver(pkg, flat, files)

	_, err := r.Resolve(context.Background(), ResolveInput{Org: "acme", App: "app1"})
	require.True(t, errors.Is(err, domain.ErrFileNotInPackage))
}

func TestResolveFallsBackToBaselineResources(t *testing.T) {
	pkg := &domain.Package{Version: 1, Files: []string{"boot.js@version:1"}}
	files := map[string]*domain.File{
		"boot.js@version:1":  {FilePath: "boot.js", Version: 1, URL: "u", SHA256: "aa"},
		"res.json@version:1": {FilePath: "res.json", Version: 1, URL: "r", SHA256: "cc"},
	}
	flat := map[string]domain.Document{"package.version": domain.NewPosInt(1)}
	r := newTestResolver(pkg, flat, files)

	res, err := r.Resolve(context.Background(), ResolveInput{
		Org: "acme", App: "app1", BaselineResources: []string{"res.json@version:1"},
	})
	require.NoError(t, err)
	require.Len(t, res.Resources, 1)
	require.Equal(t, "res.json", res.Resources[0].FilePath)
}
