// Package mapping resolves a collection's field profile onto the fixed
// target-table catalog.
//
// The primary path asks a text-generation model for the mapping, iterating
// over an ordered list of (provider, model) pairs with a bounded retry budget
// and exponential backoff per model. Model output is parsed tolerantly
// (markdown fences stripped, field-name drift accepted) and validated
// against the catalog. Exhausting every model is never fatal: a
// deterministic rule-based fallback always produces a mapping, worst case an
// empty one with every field unmapped.
package mapping

import "sort"

// TransformKind names the coercion the transform engine applies when copying
// a source field into its target column.
type TransformKind string

const (
	// TransformNone copies the value through unchanged.
	TransformNone TransformKind = ""
	// TransformDecimal parses currency text ("$1,200.50") into a number.
	TransformDecimal TransformKind = "decimal"
	// TransformTimestamp parses date text into a timestamp.
	TransformTimestamp TransformKind = "timestamp"
)

// FieldMapping routes one source field to one target column.
type FieldMapping struct {
	SourceField  string        `json:"source_field"`
	TargetColumn string        `json:"target_column"`
	Transform    TransformKind `json:"transform,omitempty"`
}

// TableTarget is one target table with its field mappings and an
// informational confidence score (0..1, never used to block loading).
type TableTarget struct {
	Table      string         `json:"table"`
	Confidence float64        `json:"confidence"`
	Fields     []FieldMapping `json:"field_mappings"`
}

// TableMapping is the resolver's result for one collection.
type TableMapping struct {
	Targets []TableTarget `json:"tables"`

	// UnmappedFields lists source fields with no target, informational only.
	UnmappedFields []string `json:"unmapped_fields,omitempty"`

	// Source records which path produced the mapping: "model:<provider>/<model>"
	// or "rules".
	Source string `json:"source"`
}

// Tables returns the target table names in mapping order.
func (m TableMapping) Tables() []string {
	out := make([]string, 0, len(m.Targets))
	for _, t := range m.Targets {
		out = append(out, t.Table)
	}
	return out
}

// unmappedFrom returns the profile field names not consumed by any target,
// sorted for deterministic output.
func unmappedFrom(all []string, targets []TableTarget) []string {
	used := make(map[string]struct{})
	for _, t := range targets {
		for _, f := range t.Fields {
			used[f.SourceField] = struct{}{}
		}
	}
	var out []string
	for _, name := range all {
		if _, ok := used[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
