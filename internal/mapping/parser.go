package mapping

import (
	"encoding/json"
	"fmt"
	"strings"

	"docpipe/internal/catalog"
)

// ParseError reports why a model response was rejected. It never escapes
// the resolver's retry loop as a panic or a pipeline error; the attempt just
// counts as failed.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "mapping parse: " + e.Reason }

// sanitizeResponse strips markdown code fences and surrounding prose so a
// response like "Here is the mapping:\n```json\n{...}\n```" parses. It
// returns the innermost JSON object candidate.
func sanitizeResponse(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}

	// Models sometimes wrap the object in prose; cut to the outermost braces.
	if i := strings.IndexByte(s, '{'); i > 0 {
		if j := strings.LastIndexByte(s, '}'); j > i {
			s = s[i : j+1]
		}
	}
	return s
}

// rawTarget accepts the field-name drift observed in model output: the table
// name may arrive as "table", "table_name", or "target_table"; mappings as
// "field_mappings" or "mappings"; the transform as "transform" or
// "transform_kind".
type rawTarget struct {
	Table       string        `json:"table"`
	TableName   string        `json:"table_name"`
	TargetTable string        `json:"target_table"`
	Confidence  float64       `json:"confidence"`
	FieldMaps   []rawFieldMap `json:"field_mappings"`
	Mappings    []rawFieldMap `json:"mappings"`
}

func (r rawTarget) tableName() string {
	for _, s := range []string{r.Table, r.TargetTable, r.TableName} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (r rawTarget) fieldMaps() []rawFieldMap {
	if len(r.FieldMaps) > 0 {
		return r.FieldMaps
	}
	return r.Mappings
}

type rawFieldMap struct {
	SourceField   string `json:"source_field"`
	Source        string `json:"source"`
	Field         string `json:"field"`
	TargetColumn  string `json:"target_column"`
	Target        string `json:"target"`
	Column        string `json:"column"`
	Transform     string `json:"transform"`
	TransformKind string `json:"transform_kind"`
}

func (r rawFieldMap) source() string {
	for _, s := range []string{r.SourceField, r.Source, r.Field} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (r rawFieldMap) target() string {
	for _, s := range []string{r.TargetColumn, r.Target, r.Column} {
		if s != "" {
			return s
		}
	}
	return ""
}

type rawResponse struct {
	Tables         []rawTarget `json:"tables"`
	UnmappedFields []string    `json:"unmapped_fields"`

	// Single-table shape: the target fields inline at the top level.
	rawTarget
}

// ParseModelResponse sanitizes and parses one model response into a
// TableMapping validated against the catalog.
//
// Rejection rules (all produce *ParseError):
//   - not a JSON object
//   - no target table at all, or a target with no field mappings
//   - a table name outside the fixed catalog
//
// Lenient rules:
//   - field mappings onto columns the table does not have are dropped, not
//     fatal
//   - field mappings onto tenant_id or source_document_id are dropped; the
//     loader fills those columns itself
//   - unknown transform kinds degrade to passthrough
//   - confidence outside 0..1 is clamped
func ParseModelResponse(raw string, profileFields []string) (TableMapping, error) {
	s := sanitizeResponse(raw)
	if s == "" || s[0] != '{' {
		return TableMapping{}, &ParseError{Reason: "response is not a JSON object"}
	}

	var resp rawResponse
	if err := json.Unmarshal([]byte(s), &resp); err != nil {
		return TableMapping{}, &ParseError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}

	raws := resp.Tables
	if len(raws) == 0 {
		// Accept the single-table shape.
		if resp.tableName() != "" {
			raws = []rawTarget{resp.rawTarget}
		}
	}
	if len(raws) == 0 {
		return TableMapping{}, &ParseError{Reason: "no target tables in response"}
	}

	var m TableMapping
	for _, rt := range raws {
		name := strings.ToLower(strings.TrimSpace(rt.tableName()))
		tab, ok := catalog.Lookup(name)
		if !ok {
			return TableMapping{}, &ParseError{Reason: fmt.Sprintf("unknown target table %q", name)}
		}

		fieldMaps := rt.fieldMaps()
		if len(fieldMaps) == 0 {
			return TableMapping{}, &ParseError{Reason: fmt.Sprintf("table %q has no field_mappings", name)}
		}

		target := TableTarget{
			Table:      name,
			Confidence: clampConfidence(rt.Confidence),
		}
		for _, fm := range fieldMaps {
			src, dst := fm.source(), strings.ToLower(strings.TrimSpace(fm.target()))
			if src == "" || dst == "" {
				continue
			}
			if _, ok := tab.Column(dst); !ok {
				continue
			}
			if dst == catalog.TenantColumn || dst == catalog.ProvenanceColumn {
				continue
			}
			target.Fields = append(target.Fields, FieldMapping{
				SourceField:  src,
				TargetColumn: dst,
				Transform:    normalizeTransform(fm.Transform, fm.TransformKind),
			})
		}
		if len(target.Fields) == 0 {
			return TableMapping{}, &ParseError{Reason: fmt.Sprintf("table %q has no usable field mappings", name)}
		}
		m.Targets = append(m.Targets, target)
	}

	if len(resp.UnmappedFields) > 0 {
		m.UnmappedFields = resp.UnmappedFields
	} else {
		m.UnmappedFields = unmappedFrom(profileFields, m.Targets)
	}
	return m, nil
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func normalizeTransform(vals ...string) TransformKind {
	for _, v := range vals {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "decimal", "currency", "money", "number":
			return TransformDecimal
		case "timestamp", "date", "datetime":
			return TransformTimestamp
		}
	}
	return TransformNone
}
