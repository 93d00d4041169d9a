package resolver

import (
	"fmt"
	"strings"

	"github.com/juspay/airborne/internal/domain"
)

// unflatten turns the external service's dotted-key map (spec.md §4.5
// step 4) into a nested tree. Each node is either a leaf domain.Document
// or an internal map[string]interface{}; a key is rejected if the same
// path is used both as a scalar and as a parent of further keys,
// regardless of which one the flat map happened to list first.
func unflatten(flat map[string]domain.Document) (map[string]interface{}, error) {
	root := map[string]interface{}{}
	for key, doc := range flat {
		segs := strings.Split(key, ".")
		cur := root
		for i, seg := range segs {
			last := i == len(segs)-1
			if last {
				if existing, ok := cur[seg]; ok {
					if _, isMap := existing.(map[string]interface{}); isMap {
						return nil, fmt.Errorf("%w: %q", domain.ErrUnflattenConflict, key)
					}
				}
				cur[seg] = doc
				continue
			}
			next, ok := cur[seg]
			if !ok {
				m := map[string]interface{}{}
				cur[seg] = m
				cur = m
				continue
			}
			m, ok := next.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("%w: %q", domain.ErrUnflattenConflict, key)
			}
			cur = m
		}
	}
	return root, nil
}

// lookup walks a dotted path through an unflattened tree.
func lookup(root map[string]interface{}, path string) (interface{}, bool) {
	var cur interface{} = root
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// nodeToDocument folds a tree node (leaf Document or nested map) back
// into a single Document, letting every extraction helper operate on
// domain.Document alone.
func nodeToDocument(n interface{}) domain.Document {
	switch v := n.(type) {
	case domain.Document:
		return v
	case map[string]interface{}:
		fields := make(map[string]domain.Document, len(v))
		for k, child := range v {
			fields[k] = nodeToDocument(child)
		}
		return domain.NewObject(fields)
	default:
		return domain.NewNull()
	}
}

func docAt(root map[string]interface{}, path string) (domain.Document, bool) {
	v, ok := lookup(root, path)
	if !ok {
		return domain.Document{}, false
	}
	return nodeToDocument(v), true
}

func intAt(root map[string]interface{}, path string, fallback int) int {
	doc, ok := docAt(root, path)
	if !ok {
		return fallback
	}
	switch doc.Kind {
	case domain.DocumentPosInt:
		return int(doc.PosInt)
	case domain.DocumentNegInt:
		return int(doc.NegInt)
	default:
		return fallback
	}
}

func intPtrAt(root map[string]interface{}, path string) (*int, bool) {
	doc, ok := docAt(root, path)
	if !ok {
		return nil, false
	}
	var v int
	switch doc.Kind {
	case domain.DocumentPosInt:
		v = int(doc.PosInt)
	case domain.DocumentNegInt:
		v = int(doc.NegInt)
	default:
		return nil, false
	}
	return &v, true
}

func stringAt(root map[string]interface{}, path string) string {
	doc, ok := docAt(root, path)
	if !ok || doc.Kind != domain.DocumentString {
		return ""
	}
	return doc.String
}

func stringSliceAt(root map[string]interface{}, path string) []string {
	doc, ok := docAt(root, path)
	if !ok || doc.Kind != domain.DocumentArray {
		return nil
	}
	out := make([]string, 0, len(doc.Array))
	for _, e := range doc.Array {
		if e.Kind == domain.DocumentString {
			out = append(out, e.String)
		}
	}
	return out
}
