package catalog

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/juspay/airborne/internal/domain"
	"github.com/juspay/airborne/internal/storage"
)

type fakeFileStore struct {
	files map[string]*domain.File // keyed by path|version
	byTag map[string]*domain.File // keyed by path|tag
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{files: map[string]*domain.File{}, byTag: map[string]*domain.File{}}
}

func key(path string, version int) string { return path + "|v|" + itoa(version) }
func tagKey(path, tag string) string       { return path + "|t|" + tag }

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var b []byte
	for i > 0 {
		b = append([]byte{byte('0' + i%10)}, b...)
		i /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}

func (s *fakeFileStore) Insert(ctx context.Context, f *domain.File) error {
	s.files[key(f.FilePath, f.Version)] = f
	if f.Tag != nil {
		s.byTag[tagKey(f.FilePath, *f.Tag)] = f
	}
	return nil
}

func (s *fakeFileStore) MaxVersion(ctx context.Context, org, app, filePath string) (int, error) {
	max := 0
	for _, f := range s.files {
		if f.FilePath == filePath && f.Version > max {
			max = f.Version
		}
	}
	return max, nil
}

func (s *fakeFileStore) FindByChecksum(ctx context.Context, org, app, filePath, sha256 string) (*domain.File, error) {
	for _, f := range s.files {
		if f.FilePath == filePath && f.SHA256 == sha256 {
			return f, nil
		}
	}
	return nil, domain.ErrFileNotFound
}

func (s *fakeFileStore) FindByPathVersion(ctx context.Context, org, app, filePath string, version int) (*domain.File, error) {
	if f, ok := s.files[key(filePath, version)]; ok {
		return f, nil
	}
	return nil, domain.ErrFileNotFound
}

func (s *fakeFileStore) FindByPathTag(ctx context.Context, org, app, filePath, tag string) (*domain.File, error) {
	if f, ok := s.byTag[tagKey(filePath, tag)]; ok {
		return f, nil
	}
	return nil, domain.ErrFileNotFound
}

func (s *fakeFileStore) FindManyByKeys(ctx context.Context, org, app string, versionKeys []domain.FileRef, tagKeys map[string]string) ([]*domain.File, error) {
	return nil, nil
}

func (s *fakeFileStore) List(ctx context.Context, org, app string, page storage.Pagination, search string) ([]*domain.File, int64, error) {
	return nil, 0, nil
}

func (s *fakeFileStore) Retag(ctx context.Context, org, app, filePath, tag string, version int) error {
	for k, f := range s.byTag {
		if f.FilePath == filePath {
			delete(s.byTag, k)
		}
	}
	f, ok := s.files[key(filePath, version)]
	if !ok {
		return domain.ErrFileNotFound
	}
	t := tag
	f.Tag = &t
	s.byTag[tagKey(filePath, tag)] = f
	return nil
}

func (s *fakeFileStore) ClearTag(ctx context.Context, org, app, filePath, tag string) error {
	delete(s.byTag, tagKey(filePath, tag))
	return nil
}

type fakeObjectStore struct {
	data []byte
}

func (f *fakeObjectStore) PutObject(ctx context.Context, bucket, key string, body io.Reader, sha256Hex string) (int64, error) {
	b, err := io.ReadAll(body)
	return int64(len(b)), err
}

func (f *fakeObjectStore) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

func (f *fakeObjectStore) Download(ctx context.Context, url string) ([]byte, string, error) {
	sum := sha256.Sum256(f.data)
	return f.data, hex.EncodeToString(sum[:]), nil
}

func TestRegisterAssignsNextVersion(t *testing.T) {
	fs := newFakeFileStore()
	os := &fakeObjectStore{data: []byte("payload-v1")}
	c := New(fs, os, "release-assets", nil, nil)

	f, err := c.Register(context.Background(), RegisterInput{Org: "acme", App: "app1", FilePath: "boot.js", URL: "https://cdn/x"})
	require.NoError(t, err)
	require.Equal(t, 1, f.Version)
	require.Equal(t, domain.FileStatusReady, f.Status)

	os.data = []byte("payload-v2")
	f2, err := c.Register(context.Background(), RegisterInput{Org: "acme", App: "app1", FilePath: "boot.js", URL: "https://cdn/x"})
	require.NoError(t, err)
	require.Equal(t, 2, f2.Version)
}

func TestRegisterTagConflict(t *testing.T) {
	fs := newFakeFileStore()
	os := &fakeObjectStore{data: []byte("payload")}
	c := New(fs, os, "release-assets", nil, nil)

	tag := "stable"
	_, err := c.Register(context.Background(), RegisterInput{Org: "acme", App: "app1", FilePath: "boot.js", URL: "u", Tag: &tag})
	require.NoError(t, err)

	_, err = c.Register(context.Background(), RegisterInput{Org: "acme", App: "app1", FilePath: "boot.js", URL: "u2", Tag: &tag})
	require.ErrorIs(t, err, domain.ErrTagConflict)
}

func TestRegisterSkipDuplicates(t *testing.T) {
	fs := newFakeFileStore()
	os := &fakeObjectStore{data: []byte("same-bytes")}
	c := New(fs, os, "release-assets", nil, nil)

	_, err := c.Register(context.Background(), RegisterInput{Org: "acme", App: "app1", FilePath: "boot.js", URL: "u"})
	require.NoError(t, err)

	_, err = c.Register(context.Background(), RegisterInput{Org: "acme", App: "app1", FilePath: "boot.js", URL: "u", SkipDuplicates: true})
	require.ErrorIs(t, err, domain.ErrDuplicateContent)
}

func TestParseFileKey(t *testing.T) {
	k, err := ParseFileKey("boot.js@version:3")
	require.NoError(t, err)
	require.Equal(t, "boot.js", k.Path)
	require.NotNil(t, k.Version)
	require.Equal(t, 3, *k.Version)

	k2, err := ParseFileKey("boot.js@tag:stable")
	require.NoError(t, err)
	require.NotNil(t, k2.Tag)
	require.Equal(t, "stable", *k2.Tag)

	k3, err := ParseFileKey("not-a-key")
	require.NoError(t, err)
	require.Equal(t, "not-a-key", k3.Path)
	require.Nil(t, k3.Version)
	require.Nil(t, k3.Tag)

	k4, err := ParseFileKey("boot.js@version:abc")
	require.NoError(t, err)
	require.Equal(t, "boot.js", k4.Path)
	require.Nil(t, k4.Version)

	k5, err := ParseFileKey("boot.js@weird:stuff")
	require.NoError(t, err)
	require.Equal(t, "boot.js@weird:stuff", k5.Path)
}

func TestChecksumToHex(t *testing.T) {
	raw := []byte{0xde, 0xad, 0xbe, 0xef}
	b64 := "3q2+7w=="
	hexVal, err := ChecksumToHex(b64)
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString(raw), hexVal)
}
