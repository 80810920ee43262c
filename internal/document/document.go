// Package document models the schema-less source documents the pipeline
// ingests.
//
// A Document is a flat mapping from field name to a small tagged-union Value
// (string/number/bool/time/null) instead of an untyped map[string]any. This
// keeps the transform engine's coercions explicit and testable: every value
// read from the document store is classified exactly once, at the store
// boundary, and downstream stages switch on Value.Kind.
package document

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Kind discriminates the Value union.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindTime
)

// String returns the type name used in field profiles and progress detail.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindTime:
		return "date"
	default:
		return "null"
	}
}

// Value is one field value. Exactly one of the payload fields is meaningful,
// selected by Kind.
type Value struct {
	Kind Kind

	Str  string
	Num  float64
	Bool bool
	Time time.Time
}

func Null() Value            { return Value{Kind: KindNull} }
func String(s string) Value  { return Value{Kind: KindString, Str: s} }
func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }
func Bool(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func Time(t time.Time) Value { return Value{Kind: KindTime, Time: t} }

// IsZero reports whether the value is null or an empty string. Zero values
// are treated as "missing" by the validator and deduplicator.
func (v Value) IsZero() bool {
	return v.Kind == KindNull || (v.Kind == KindString && v.Str == "")
}

// Text renders the value as a display string. Numbers use the shortest
// round-trip form; times use RFC 3339.
func (v Value) Text() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindTime:
		return v.Time.Format(time.RFC3339)
	default:
		return ""
	}
}

// Document is one schema-less record: field name to Value. Fields vary
// between documents in the same collection.
type Document struct {
	// ID is the source document identifier, used for provenance only.
	ID string

	Fields map[string]Value
}

// FieldNames returns the document's field names sorted for deterministic
// iteration.
func (d Document) FieldNames() []string {
	out := make([]string, 0, len(d.Fields))
	for k := range d.Fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// FromMap converts a decoded key/value map (the shape encoding/json and BSON
// decoding produce) into a Document. Nested objects are flattened with
// dot-joined keys; arrays and other non-scalar values are rendered with
// fmt.Sprint so no field is silently lost.
func FromMap(id string, m map[string]any) Document {
	d := Document{ID: id, Fields: make(map[string]Value, len(m))}
	flattenInto(d.Fields, "", m)
	return d
}

func flattenInto(out map[string]Value, prefix string, m map[string]any) {
	for k, raw := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := raw.(map[string]any); ok {
			flattenInto(out, key, nested)
			continue
		}
		out[key] = Classify(raw)
	}
}

// Classify converts one decoded scalar into a Value.
//
// It accepts the types encoding/json produces (string, float64, bool, nil)
// plus the integer and time types BSON decoding produces. Anything else is
// stringified rather than dropped.
func Classify(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case time.Time:
		return Time(t)
	default:
		return String(fmt.Sprint(t))
	}
}
