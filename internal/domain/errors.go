package domain

import "errors"

// File catalog errors
var (
	ErrDuplicateContent = errors.New("file: duplicate content for path")
	ErrDownloadError    = errors.New("file: download error")
	ErrTagConflict      = errors.New("file: tag already bound to another version")
	ErrFileNotFound     = errors.New("file: not found")
	ErrInvalidFileKey   = errors.New("file: invalid key")
	ErrChecksumMismatch = errors.New("file: checksum mismatch")
)

// Package composer errors
var (
	ErrMissingFiles       = errors.New("package: one or more referenced files could not be resolved")
	ErrPackageNotFound    = errors.New("package: not found")
	ErrInvalidPackageKey  = errors.New("package: invalid key")
	ErrImportantLazyOverlap = errors.New("package: important and lazy file sets overlap")
)

// Dimension & cohort errors
var (
	ErrDimensionNotFound     = errors.New("dimension: not found")
	ErrDimensionInUse        = errors.New("dimension: referenced by a live experiment")
	ErrReorderInProgress     = errors.New("dimension: a reorder is already in progress for this workspace")
	ErrCohortMissingDependsOn = errors.New("cohort: dimension requires depends_on")
	ErrCohortUnknownOperator = errors.New("cohort: unknown operator")
	ErrCohortNonLeafChild    = errors.New("cohort: non-leaf value for comparator operator")
	ErrCohortAndArity        = errors.New("cohort: and node must have exactly two comparator leaves")
	ErrPositionsNotContiguous = errors.New("dimension: positions must remain a contiguous total order")
)

// Release / experiment errors
var (
	ErrReleaseNotFound      = errors.New("release: not found")
	ErrReleaseTerminal      = errors.New("release: already in a terminal state")
	ErrReleaseInvalidRamp   = errors.New("release: ramp only valid from Created or InProgress")
	ErrReleaseInvalidConclude = errors.New("release: conclude only valid from InProgress")
	ErrReleaseInvalidVariant  = errors.New("release: chosen_variant must be control or experimental")
)

// Resolver errors
var (
	ErrWorkspaceNotFound  = errors.New("workspace: not found")
	ErrUnflattenConflict  = errors.New("resolver: dotted-key path conflict")
	ErrFileNotInPackage   = errors.New("resolver: resolved file key is not a member of the package")
)

// Transaction manager errors
var (
	ErrTxnMissingResult = errors.New("txn: internal invariant breach: missing result")
)

// Schema errors
var (
	ErrDuplicatePropertyKey = errors.New("schema: duplicate property key")
	ErrSchemaMigrationInProgress = errors.New("schema: a migration is already in progress for this workspace")
)
