package domain

// DimensionType distinguishes externally-owned standard dimensions from
// cohort dimensions synthesized over them.
type DimensionType string

const (
	DimensionStandard DimensionType = "Standard"
	DimensionCohort   DimensionType = "Cohort"
)

// Dimension is an ordered, typed axis of the targeting context. Cohort
// dimensions require DependsOn and carry their cohort definitions
// separately (see CohortSet).
type Dimension struct {
	Org         string
	App         string
	Name        string
	Position    int
	Schema      Document
	Type        DimensionType
	DependsOn   *string
	Description string
}

// DefaultCohortName is the synthetic cohort that matches only when no
// other cohort in the set matches.
const DefaultCohortName = "default"

// OtherwiseVariant is the fallback variant wired against DefaultCohortName.
const OtherwiseVariant = "otherwise"

// CohortSet holds the enum and rule-tree definitions for a single cohort
// dimension, including the synthesized default entry.
type CohortSet struct {
	DimensionName string
	DependsOn     string
	Enum          []string
	Definitions   map[string]CohortRule
}
