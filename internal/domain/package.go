package domain

import (
	"time"

	"github.com/google/uuid"
)

// Package is an immutable, versioned bundle of catalog entries. Every
// file reference is frozen to a concrete version at creation time; a
// Package never dereferences a tag at read time.
type Package struct {
	ID             uuid.UUID
	Org            string
	App            string
	Version        int
	Index          *string // resolved "path@version:<n>" string, or nil
	Files          []string // resolved "path@version:<n>" strings
	Tag            *string
	PackageGroupID uuid.UUID
	CreatedAt      time.Time
}

// PackageKey is a parsed `version:<n>` or `tag:<t>` package reference.
type PackageKey struct {
	Version *int
	Tag     *string
}

// CreatePackageInput is the payload for PackageComposer.Create.
type CreatePackageInput struct {
	Org   string
	App   string
	Index *string // unparsed file key, e.g. "boot.js@tag:stable"
	Files []string // unparsed file keys
	Tag   *string
}
