package dimension

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/juspay/airborne/internal/domain"
)

type fakeDimensionStore struct {
	dims      map[string]*domain.Dimension
	cohorts   map[string]*domain.CohortSet
	liveNames map[string]bool
}

func newFakeDimensionStore() *fakeDimensionStore {
	return &fakeDimensionStore{
		dims:      map[string]*domain.Dimension{},
		cohorts:   map[string]*domain.CohortSet{},
		liveNames: map[string]bool{},
	}
}

func (s *fakeDimensionStore) Insert(ctx context.Context, d *domain.Dimension) error {
	cp := *d
	s.dims[d.Name] = &cp
	return nil
}

func (s *fakeDimensionStore) Get(ctx context.Context, org, app, name string) (*domain.Dimension, error) {
	if d, ok := s.dims[name]; ok {
		return d, nil
	}
	return nil, domain.ErrDimensionNotFound
}

func (s *fakeDimensionStore) List(ctx context.Context, org, app string) ([]*domain.Dimension, error) {
	out := make([]*domain.Dimension, 0, len(s.dims))
	for _, d := range s.dims {
		out = append(out, d)
	}
	return out, nil
}

func (s *fakeDimensionStore) Delete(ctx context.Context, org, app, name string) error {
	delete(s.dims, name)
	return nil
}

func (s *fakeDimensionStore) UpdatePositions(ctx context.Context, org, app string, positions map[string]int) error {
	for name, pos := range positions {
		if d, ok := s.dims[name]; ok {
			d.Position = pos
		}
	}
	return nil
}

func (s *fakeDimensionStore) IsReferencedByLiveExperiment(ctx context.Context, org, app, name string) (bool, error) {
	return s.liveNames[name], nil
}

func (s *fakeDimensionStore) PutCohortSet(ctx context.Context, org, app string, set *domain.CohortSet) error {
	s.cohorts[set.DimensionName] = set
	return nil
}

func (s *fakeDimensionStore) GetCohortSet(ctx context.Context, org, app, dimensionName string) (*domain.CohortSet, error) {
	if set, ok := s.cohorts[dimensionName]; ok {
		return set, nil
	}
	return nil, domain.ErrDimensionNotFound
}

func TestRegisterCohortRequiresDependsOn(t *testing.T) {
	store := newFakeDimensionStore()
	r := New(store, nil, nil)
	err := r.Register(context.Background(), &domain.Dimension{Org: "a", App: "b", Name: "platform", Type: domain.DimensionCohort})
	require.True(t, errors.Is(err, domain.ErrCohortMissingDependsOn))
}

func TestDeleteRefusedWhileReferenced(t *testing.T) {
	store := newFakeDimensionStore()
	store.liveNames["os_version"] = true
	r := New(store, nil, nil)
	err := r.Delete(context.Background(), "a", "b", "os_version")
	require.True(t, errors.Is(err, domain.ErrDimensionInUse))
}

func TestUpdatePriorityRejectsNonContiguous(t *testing.T) {
	store := newFakeDimensionStore()
	store.dims["a"] = &domain.Dimension{Name: "a", Position: 0}
	store.dims["b"] = &domain.Dimension{Name: "b", Position: 1}
	r := New(store, nil, nil)
	err := r.UpdatePriority(context.Background(), "org", "app", map[string]int{"a": 0, "b": 5})
	require.True(t, errors.Is(err, domain.ErrPositionsNotContiguous))
}

func TestUpdatePriorityAcceptsContiguousReorder(t *testing.T) {
	store := newFakeDimensionStore()
	store.dims["a"] = &domain.Dimension{Name: "a", Position: 0}
	store.dims["b"] = &domain.Dimension{Name: "b", Position: 1}
	r := New(store, nil, nil)
	err := r.UpdatePriority(context.Background(), "org", "app", map[string]int{"a": 1, "b": 0})
	require.NoError(t, err)
	require.Equal(t, 1, store.dims["a"].Position)
	require.Equal(t, 0, store.dims["b"].Position)
}

func TestPutCohortSetSynthesizesDefault(t *testing.T) {
	store := newFakeDimensionStore()
	r := New(store, nil, nil)
	set := &domain.CohortSet{
		DimensionName: "platform_cohort",
		DependsOn:     "os_version",
		Enum:          []string{"early", "late"},
		Definitions: map[string]domain.CohortRule{
			"early": Leaf(domain.OpSemVerLt, "os_version", domain.NewString("2.0.0")),
		},
	}
	err := r.PutCohortSet(context.Background(), "org", "app", set)
	require.NoError(t, err)

	_, ok := set.Definitions[domain.DefaultCohortName]
	require.True(t, ok)
	require.Contains(t, set.Enum, domain.DefaultCohortName)
	require.Contains(t, set.Enum, domain.OtherwiseVariant)
}

func Leaf(op domain.CohortOp, v string, val domain.Document) domain.CohortRule {
	return domain.Leaf(op, v, val)
}

func TestParseRuleRoundTrip(t *testing.T) {
	rule := domain.AndInterval(
		domain.Leaf(domain.OpSemVerGe, "os_version", domain.NewString("1.0.0")),
		domain.Leaf(domain.OpSemVerLt, "os_version", domain.NewString("2.0.0")),
	)
	wire := SerializeRule(rule)
	andBody, ok := wire["and"].(map[string]interface{})
	require.True(t, ok, "and node must serialize its children as a single nested object, not an array")
	require.Contains(t, andBody, "jp_ver_ge")
	require.Contains(t, andBody, "jp_ver_lt")

	parsed, err := ParseRule(toRaw(wire))
	require.NoError(t, err)
	require.Equal(t, domain.OpAnd, parsed.Op)
	require.Len(t, parsed.Children, 2)
}

func TestParseRuleRejectsAndArityViolation(t *testing.T) {
	raw := map[string]interface{}{
		"and": map[string]interface{}{
			"jp_ver_ge": []interface{}{map[string]interface{}{"var": "v"}, "1.0.0"},
			"jp_ver_gt": []interface{}{map[string]interface{}{"var": "v"}, "1.5.0"},
			"jp_ver_lt": []interface{}{map[string]interface{}{"var": "v"}, "2.0.0"},
		},
	}
	_, err := ParseRule(raw)
	require.True(t, errors.Is(err, domain.ErrCohortAndArity))
}

func TestParseRuleRejectsUnknownOperator(t *testing.T) {
	raw := map[string]interface{}{"weird_op": []interface{}{}}
	_, err := ParseRule(raw)
	require.True(t, errors.Is(err, domain.ErrCohortUnknownOperator))
}

func TestParseRuleRejectsNonLeafComparatorValue(t *testing.T) {
	raw := map[string]interface{}{
		"==": []interface{}{map[string]interface{}{"var": "os"}, map[string]interface{}{"nested": "object"}},
	}
	_, err := ParseRule(raw)
	require.True(t, errors.Is(err, domain.ErrCohortNonLeafChild))
}

// toRaw round-trips through json.Marshal/Unmarshal to mimic the shape a
// rule tree takes after crossing the external service's wire boundary,
// where map[string]interface{} is what json.Unmarshal produces.
func toRaw(v map[string]interface{}) interface{} {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var out interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		panic(err)
	}
	return out
}
