package domain

import (
	"time"

	"github.com/google/uuid"
)

// FileStatus is the lifecycle state of a File.
type FileStatus string

const (
	FileStatusPending FileStatus = "Pending"
	FileStatusReady   FileStatus = "Ready"
)

// File is a catalog entry for a content-addressed asset. (org, app,
// file_path, version) is unique; tag is unique per (org, app, file_path)
// when set.
type File struct {
	ID        uuid.UUID
	Org       string
	App       string
	FilePath  string
	Version   int
	Tag       *string
	URL       string
	Size      int64
	SHA256    string
	Metadata  map[string]interface{}
	Status    FileStatus
	CreatedAt time.Time
}

// Ref returns the (path, version) reference this File resolves to at
// read time, matching invariant 1 in spec §8: packages never dereference
// a tag after creation.
func (f *File) Ref() FileRef {
	return FileRef{Path: f.FilePath, Version: f.Version}
}

// FileRef is a resolved, concrete (path, version) pointer.
type FileRef struct {
	Path    string
	Version int
}

// FileKey is a parsed `<path>@version:<n>` or `<path>@tag:<t>` reference
// per the grammar in spec §6. Exactly one of Version/Tag is set unless
// neither suffix was present, in which case both are nil.
type FileKey struct {
	Path    string
	Version *int
	Tag     *string
}
