package domain

// CohortOp is the JsonLogic-dialect operator wire name used by cohort
// rule trees.
type CohortOp string

const (
	OpEq        CohortOp = "=="
	OpAnd       CohortOp = "and"
	OpIn        CohortOp = "in"
	OpSemVerGe  CohortOp = "jp_ver_ge"
	OpSemVerGt  CohortOp = "jp_ver_gt"
	OpSemVerLe  CohortOp = "jp_ver_le"
	OpSemVerLt  CohortOp = "jp_ver_lt"
	OpStrGe     CohortOp = "str_ge"
	OpStrGt     CohortOp = "str_gt"
	OpStrLe     CohortOp = "str_le"
	OpStrLt     CohortOp = "str_lt"
)

// ComparatorOps are the leaf operators usable directly, or as one of the
// two children of an And node.
var ComparatorOps = map[CohortOp]bool{
	OpSemVerGe: true,
	OpSemVerGt: true,
	OpSemVerLe: true,
	OpSemVerLt: true,
	OpStrGe:    true,
	OpStrGt:    true,
	OpStrLe:    true,
	OpStrLt:    true,
}

// CohortRule is a recursive tagged rule-tree node. A comparator leaf
// (Eq, In, or one of the SemVer/Str comparators) sets Var and Value; an
// And node sets Children to exactly two comparator leaves forming the
// half-open interval [lo, hi).
type CohortRule struct {
	Op       CohortOp
	Var      string
	Value    Document
	Children []CohortRule
}

// Leaf builds a comparator leaf rule.
func Leaf(op CohortOp, varName string, value Document) CohortRule {
	return CohortRule{Op: op, Var: varName, Value: value}
}

// AndInterval builds an And node over the two comparator leaves that
// together form a half-open interval.
func AndInterval(lo, hi CohortRule) CohortRule {
	return CohortRule{Op: OpAnd, Children: []CohortRule{lo, hi}}
}

// DefaultSentinelRule builds the synthetic default cohort's
// tautologically-false predicate: {"==": [{"var": dependsOn}, sentinel]}.
func DefaultSentinelRule(dependsOn, sentinel string) CohortRule {
	return Leaf(OpEq, dependsOn, NewString(sentinel))
}
