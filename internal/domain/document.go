package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DocumentKind tags the variant held by a Document.
type DocumentKind int

const (
	DocumentNull DocumentKind = iota
	DocumentBool
	DocumentPosInt
	DocumentNegInt
	DocumentFloat
	DocumentString
	DocumentArray
	DocumentObject
)

// Document is a polymorphic value matching the external configuration service's
// wire format: null, bool, number (split PosInt/NegInt/Float to round-trip
// without precision loss), string, array, or object.
type Document struct {
	Kind DocumentKind

	Bool    bool
	PosInt  uint64
	NegInt  int64
	Float   float64
	String  string
	Array   []Document
	Object  map[string]Document
}

// NewNull returns a null Document.
func NewNull() Document { return Document{Kind: DocumentNull} }

// NewBool returns a bool Document.
func NewBool(b bool) Document { return Document{Kind: DocumentBool, Bool: b} }

// NewPosInt returns a non-negative integer Document.
func NewPosInt(v uint64) Document { return Document{Kind: DocumentPosInt, PosInt: v} }

// NewNegInt returns a negative integer Document.
func NewNegInt(v int64) Document { return Document{Kind: DocumentNegInt, NegInt: v} }

// NewFloat returns a floating-point Document.
func NewFloat(v float64) Document { return Document{Kind: DocumentFloat, Float: v} }

// NewString returns a string Document.
func NewString(s string) Document { return Document{Kind: DocumentString, String: s} }

// NewArray returns an array Document.
func NewArray(items []Document) Document { return Document{Kind: DocumentArray, Array: items} }

// NewObject returns an object Document.
func NewObject(fields map[string]Document) Document {
	return Document{Kind: DocumentObject, Object: fields}
}

// DocumentFromAny converts a decoded JSON value (as produced by
// encoding/json with UseNumber, or a plain interface{} tree) into a
// Document, losslessly preserving integer vs. float distinction.
func DocumentFromAny(v interface{}) (Document, error) {
	switch t := v.(type) {
	case nil:
		return NewNull(), nil
	case bool:
		return NewBool(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			if i < 0 {
				return NewNegInt(i), nil
			}
			return NewPosInt(uint64(i)), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Document{}, fmt.Errorf("document: invalid number %q: %w", t.String(), err)
		}
		return NewFloat(f), nil
	case float64:
		if t == float64(int64(t)) {
			i := int64(t)
			if i < 0 {
				return NewNegInt(i), nil
			}
			return NewPosInt(uint64(i)), nil
		}
		return NewFloat(t), nil
	case string:
		return NewString(t), nil
	case []interface{}:
		items := make([]Document, 0, len(t))
		for _, e := range t {
			d, err := DocumentFromAny(e)
			if err != nil {
				return Document{}, err
			}
			items = append(items, d)
		}
		return NewArray(items), nil
	case map[string]interface{}:
		fields := make(map[string]Document, len(t))
		for k, e := range t {
			d, err := DocumentFromAny(e)
			if err != nil {
				return Document{}, err
			}
			fields[k] = d
		}
		return NewObject(fields), nil
	default:
		return Document{}, fmt.Errorf("document: unsupported type %T", v)
	}
}

// ToAny converts the Document back into a plain interface{} tree suitable
// for json.Marshal.
func (d Document) ToAny() interface{} {
	switch d.Kind {
	case DocumentNull:
		return nil
	case DocumentBool:
		return d.Bool
	case DocumentPosInt:
		return d.PosInt
	case DocumentNegInt:
		return d.NegInt
	case DocumentFloat:
		return d.Float
	case DocumentString:
		return d.String
	case DocumentArray:
		out := make([]interface{}, len(d.Array))
		for i, e := range d.Array {
			out[i] = e.ToAny()
		}
		return out
	case DocumentObject:
		out := make(map[string]interface{}, len(d.Object))
		for k, e := range d.Object {
			out[k] = e.ToAny()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (d Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.ToAny())
}

// UnmarshalJSON implements json.Unmarshaler, preserving integer/float
// distinction via json.Number.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return err
	}
	doc, err := DocumentFromAny(v)
	if err != nil {
		return err
	}
	*d = doc
	return nil
}
