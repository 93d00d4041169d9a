package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReleaseStatus is the state-machine status of a Release/Experiment.
type ReleaseStatus string

const (
	ReleaseStatusCreated    ReleaseStatus = "Created"
	ReleaseStatusInProgress ReleaseStatus = "InProgress"
	ReleaseStatusConcluded  ReleaseStatus = "Concluded"
	ReleaseStatusDiscarded  ReleaseStatus = "Discarded"
)

// VariantKind distinguishes the two variants every Release carries.
type VariantKind string

const (
	VariantControl      VariantKind = "control"
	VariantExperimental VariantKind = "experimental"
)

// Overrides is the per-variant key→value dictionary overlaid on the
// release's baseline when that variant is selected.
type Overrides struct {
	PackageVersion    *int
	PackageImportant  []string
	PackageLazy       []string
	Resources         []string
	Config            map[string]Document
	ConfigProperties  map[string]Document
}

// Release is a dimensioned, versioned rollout with exactly one Control
// and one Experimental variant. important ∩ lazy == ∅ is enforced by the
// resolver at read time and by Create at write time.
type Release struct {
	ID                 uuid.UUID
	Org                string
	App                string
	PackageVersion     int
	ConfigVersion      string // "v<n>"
	DimensionContext   map[string]string
	ControlOverrides   Overrides
	ExperimentOverrides Overrides
	TrafficPercentage  int // [0, 100]
	Status             ReleaseStatus
	ChosenVariant      *VariantKind
	// ExperimentID is the external configuration-and-experimentation
	// service's identifier for this release's experiment, captured from
	// CreateExperiment and addressed by every subsequent Ramp/Conclude/
	// Discard call against that service.
	ExperimentID string
	CreatedAt    time.Time
	CreatedBy    string
}

// CanRamp reports whether ramp(p) is a legal transition from the current
// status.
func (r *Release) CanRamp() bool {
	return r.Status == ReleaseStatusCreated || r.Status == ReleaseStatusInProgress
}

// CanConclude reports whether conclude(variant) is legal from the
// current status: only InProgress accepts it.
func (r *Release) CanConclude() bool {
	return r.Status == ReleaseStatusInProgress
}

// CanDiscard reports whether discard() is legal: any non-terminal state.
func (r *Release) CanDiscard() bool {
	return r.Status == ReleaseStatusCreated || r.Status == ReleaseStatusInProgress
}

// IsTerminal reports whether the release has reached Concluded or
// Discarded, after which no further transitions are permitted.
func (r *Release) IsTerminal() bool {
	return r.Status == ReleaseStatusConcluded || r.Status == ReleaseStatusDiscarded
}
