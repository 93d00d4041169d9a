package pkgcomposer

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/juspay/airborne/internal/domain"
	"github.com/juspay/airborne/internal/storage"
)

type fakeFileStore struct {
	byPathVersion map[string]*domain.File
	byPathTag     map[string]*domain.File
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{byPathVersion: map[string]*domain.File{}, byPathTag: map[string]*domain.File{}}
}

func (s *fakeFileStore) add(path string, version int, tag *string) {
	f := &domain.File{FilePath: path, Version: version, Tag: tag, Status: domain.FileStatusReady}
	s.byPathVersion[path+"|"+itoa(version)] = f
	if tag != nil {
		s.byPathTag[path+"|"+*tag] = f
	}
}

func (s *fakeFileStore) Insert(ctx context.Context, f *domain.File) error { return nil }
func (s *fakeFileStore) MaxVersion(ctx context.Context, org, app, filePath string) (int, error) {
	return 0, nil
}
func (s *fakeFileStore) FindByChecksum(ctx context.Context, org, app, filePath, sha256 string) (*domain.File, error) {
	return nil, domain.ErrFileNotFound
}
func (s *fakeFileStore) FindByPathVersion(ctx context.Context, org, app, filePath string, version int) (*domain.File, error) {
	return nil, domain.ErrFileNotFound
}
func (s *fakeFileStore) FindByPathTag(ctx context.Context, org, app, filePath, tag string) (*domain.File, error) {
	return nil, domain.ErrFileNotFound
}

func (s *fakeFileStore) FindManyByKeys(ctx context.Context, org, app string, versionKeys []domain.FileRef, tagKeys map[string]string) ([]*domain.File, error) {
	var out []*domain.File
	for _, k := range versionKeys {
		if f, ok := s.byPathVersion[k.Path+"|"+itoa(k.Version)]; ok {
			out = append(out, f)
		}
	}
	for path, tag := range tagKeys {
		if f, ok := s.byPathTag[path+"|"+tag]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *fakeFileStore) List(ctx context.Context, org, app string, page storage.Pagination, search string) ([]*domain.File, int64, error) {
	return nil, 0, nil
}
func (s *fakeFileStore) Retag(ctx context.Context, org, app, filePath, tag string, version int) error {
	return nil
}
func (s *fakeFileStore) ClearTag(ctx context.Context, org, app, filePath, tag string) error {
	return nil
}

type fakePackageStore struct {
	packages []*domain.Package
}

func (s *fakePackageStore) Insert(ctx context.Context, p *domain.Package) error {
	s.packages = append(s.packages, p)
	return nil
}
func (s *fakePackageStore) MaxVersion(ctx context.Context, org, app string) (int, error) {
	max := 0
	for _, p := range s.packages {
		if p.Version > max {
			max = p.Version
		}
	}
	return max, nil
}
func (s *fakePackageStore) FindByVersion(ctx context.Context, org, app string, version int) (*domain.Package, error) {
	for _, p := range s.packages {
		if p.Version == version {
			return p, nil
		}
	}
	return nil, domain.ErrPackageNotFound
}
func (s *fakePackageStore) FindByTag(ctx context.Context, org, app, tag string) (*domain.Package, error) {
	for _, p := range s.packages {
		if p.Tag != nil && *p.Tag == tag {
			return p, nil
		}
	}
	return nil, domain.ErrPackageNotFound
}
func (s *fakePackageStore) LatestVersion(ctx context.Context, org, app string) (*domain.Package, error) {
	if len(s.packages) == 0 {
		return nil, domain.ErrPackageNotFound
	}
	return s.packages[len(s.packages)-1], nil
}
func (s *fakePackageStore) List(ctx context.Context, org, app string, page storage.Pagination, search string) ([]*domain.Package, int64, error) {
	return s.packages, int64(len(s.packages)), nil
}

func TestCreateResolvesFilesAndFreezesVersions(t *testing.T) {
	fs := newFakeFileStore()
	fs.add("boot.js", 3, nil)
	stable := "stable"
	fs.add("lib.js", 2, &stable)

	ps := &fakePackageStore{}
	c := New(ps, fs, nil)

	p, err := c.Create(context.Background(), domain.CreatePackageInput{
		Org: "acme", App: "app1",
		Files: []string{"boot.js@version:3", "lib.js@tag:stable"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, p.Version)
	require.Equal(t, []string{"boot.js@version:3", "lib.js@version:2"}, p.Files)
	require.NotEqual(t, uuid.Nil, p.PackageGroupID)
}

func TestCreateMissingFiles(t *testing.T) {
	fs := newFakeFileStore()
	ps := &fakePackageStore{}
	c := New(ps, fs, nil)

	_, err := c.Create(context.Background(), domain.CreatePackageInput{
		Org: "acme", App: "app1",
		Files: []string{"missing.js@version:1"},
	})
	require.True(t, errors.Is(err, domain.ErrMissingFiles))
}

func TestVersionIncrementsAcrossCreates(t *testing.T) {
	fs := newFakeFileStore()
	fs.add("a.js", 1, nil)
	ps := &fakePackageStore{}
	c := New(ps, fs, nil)

	p1, err := c.Create(context.Background(), domain.CreatePackageInput{Org: "acme", App: "app1", Files: []string{"a.js@version:1"}})
	require.NoError(t, err)
	p2, err := c.Create(context.Background(), domain.CreatePackageInput{Org: "acme", App: "app1", Files: []string{"a.js@version:1"}})
	require.NoError(t, err)
	require.Equal(t, p1.Version+1, p2.Version)
}
