package dimension

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/juspay/airborne/internal/domain"
)

// jsonLogicOps maps the wire operator key to the domain.CohortOp it
// represents, per spec.md §4.3's JsonLogic dialect.
var jsonLogicOps = map[string]domain.CohortOp{
	"==":        domain.OpEq,
	"and":       domain.OpAnd,
	"in":        domain.OpIn,
	"jp_ver_ge": domain.OpSemVerGe,
	"jp_ver_gt": domain.OpSemVerGt,
	"jp_ver_le": domain.OpSemVerLe,
	"jp_ver_lt": domain.OpSemVerLt,
	"str_ge":    domain.OpStrGe,
	"str_gt":    domain.OpStrGt,
	"str_le":    domain.OpStrLe,
	"str_lt":    domain.OpStrLt,
}

// SerializeRule renders a CohortRule as its JsonLogic wire representation.
// An And node serializes as a single nested object mapping each child's
// operator to that child's leaf body — {"and": {"jp_ver_ge": [...],
// "jp_ver_lt": [...]}} — not an array of independently-keyed leaves, so
// the wire shape matches the external configuration service's
// DefinitionMap encoding of a node.
func SerializeRule(r domain.CohortRule) map[string]interface{} {
	if r.Op == domain.OpAnd {
		body := make(map[string]interface{}, len(r.Children))
		for _, c := range r.Children {
			body[string(c.Op)] = serializeLeafBody(c)
		}
		return map[string]interface{}{"and": body}
	}
	return map[string]interface{}{string(r.Op): serializeLeafBody(r)}
}

func serializeLeafBody(r domain.CohortRule) []interface{} {
	return []interface{}{
		map[string]interface{}{"var": r.Var},
		r.Value.ToAny(),
	}
}

// ParseRule parses a JsonLogic-dialect rule tree, rejecting unknown
// operators, non-leaf comparator values, and And nodes that do not have
// exactly two comparator-leaf children, per spec.md §4.3.
func ParseRule(raw interface{}) (domain.CohortRule, error) {
	obj, ok := raw.(map[string]interface{})
	if !ok || len(obj) != 1 {
		return domain.CohortRule{}, fmt.Errorf("%w: rule must be a single-key object", domain.ErrCohortUnknownOperator)
	}

	var opKey string
	var body interface{}
	for k, v := range obj {
		opKey, body = k, v
	}

	op, known := jsonLogicOps[opKey]
	if !known {
		return domain.CohortRule{}, fmt.Errorf("%w: %q", domain.ErrCohortUnknownOperator, opKey)
	}

	if op == domain.OpAnd {
		nested, ok := body.(map[string]interface{})
		if !ok || len(nested) != 2 {
			return domain.CohortRule{}, domain.ErrCohortAndArity
		}
		children := make([]domain.CohortRule, 0, 2)
		for childKey, childBody := range nested {
			childOp, known := jsonLogicOps[childKey]
			if !known {
				return domain.CohortRule{}, fmt.Errorf("%w: %q", domain.ErrCohortUnknownOperator, childKey)
			}
			if !domain.ComparatorOps[childOp] {
				return domain.CohortRule{}, fmt.Errorf("%w: and node child must be a comparator leaf", domain.ErrCohortNonLeafChild)
			}
			child, err := parseLeafBody(childOp, childBody)
			if err != nil {
				return domain.CohortRule{}, err
			}
			children = append(children, child)
		}
		return domain.CohortRule{Op: domain.OpAnd, Children: children}, nil
	}

	return parseLeafBody(op, body)
}

func parseLeafBody(op domain.CohortOp, body interface{}) (domain.CohortRule, error) {
	items, ok := body.([]interface{})
	if !ok || len(items) != 2 {
		return domain.CohortRule{}, fmt.Errorf("%w: comparator must be [var, value]", domain.ErrCohortNonLeafChild)
	}
	varObj, ok := items[0].(map[string]interface{})
	if !ok {
		return domain.CohortRule{}, fmt.Errorf("%w: expected {\"var\": name} as first operand", domain.ErrCohortNonLeafChild)
	}
	varName, _ := varObj["var"].(string)

	switch items[1].(type) {
	case map[string]interface{}, []interface{}:
		return domain.CohortRule{}, fmt.Errorf("%w: comparator value must be a leaf, not an object/array", domain.ErrCohortNonLeafChild)
	}

	value, err := domain.DocumentFromAny(items[1])
	if err != nil {
		return domain.CohortRule{}, err
	}
	return domain.CohortRule{Op: op, Var: varName, Value: value}, nil
}

// randomSentinel generates a random hex string used as the default
// cohort's tautologically-false comparison value, per spec.md §4.3.
func randomSentinel() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("dimension: generate sentinel: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
