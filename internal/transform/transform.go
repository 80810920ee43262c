// Package transform turns mapped documents into typed candidate rows and
// filters them down to the clean, deduplicated set the loader accepts.
package transform

import (
	"fmt"

	"docpipe/internal/analyzer"
	"docpipe/internal/document"
	"docpipe/internal/mapping"
)

// Record is one candidate row for a target table. TenantID and
// SourceDocumentID are carried out of band; the loader injects them into the
// tenant and provenance columns on insert.
type Record struct {
	Table            string
	TenantID         string
	SourceDocumentID string

	// Columns holds the mapped data columns only. Zero values are never
	// stored; a missing key means the source document had nothing usable
	// for that column.
	Columns map[string]document.Value
}

// Value returns the record's value for a data column.
func (r Record) Value(column string) (document.Value, bool) {
	v, ok := r.Columns[column]
	return v, ok
}

// Stats summarizes one Apply pass.
type Stats struct {
	Documents     int
	Records       int
	DroppedSparse int
}

func (s Stats) String() string {
	return fmt.Sprintf("%d documents -> %d records (%d dropped as sparse)", s.Documents, s.Records, s.DroppedSparse)
}

// minPopulated is the number of populated data columns, beyond the tenant
// identifier, a candidate row needs to be worth loading.
const minPopulated = 2

// Apply builds candidate records for every document and every target table
// in the mapping. A document fans out into one row per target table, so the
// record count can exceed the document count. Rows with fewer than two
// populated columns are dropped and counted, not errored.
//
// Field mappings name profiled (normalized) fields; the profile supplies the
// original document key for each.
func Apply(tenantID string, profile analyzer.FieldProfile, m mapping.TableMapping, docs []document.Document) ([]Record, Stats) {
	stats := Stats{Documents: len(docs)}
	out := make([]Record, 0, len(docs)*len(m.Targets))

	sourceKeys := make(map[string]string, len(profile.Fields))
	for _, f := range profile.Fields {
		sourceKeys[f.Name] = f.SourceName
	}

	for _, doc := range docs {
		for _, target := range m.Targets {
			rec := Record{
				Table:            target.Table,
				TenantID:         tenantID,
				SourceDocumentID: doc.ID,
				Columns:          make(map[string]document.Value, len(target.Fields)),
			}
			for _, fm := range target.Fields {
				key, ok := sourceKeys[fm.SourceField]
				if !ok {
					key = fm.SourceField
				}
				v, ok := doc.Fields[key]
				if !ok || v.IsZero() {
					continue
				}
				if coerced, ok := coerce(v, fm.Transform); ok {
					rec.Columns[fm.TargetColumn] = coerced
				}
			}
			if len(rec.Columns) < minPopulated {
				stats.DroppedSparse++
				continue
			}
			out = append(out, rec)
		}
	}
	stats.Records = len(out)
	return out, stats
}

// coerce applies the mapping's declared transform. A value that cannot be
// coerced is treated as missing rather than poisoning the row.
func coerce(v document.Value, kind mapping.TransformKind) (document.Value, bool) {
	switch kind {
	case mapping.TransformDecimal:
		switch v.Kind {
		case document.KindNumber:
			return v, true
		case document.KindString:
			if f, ok := analyzer.ParseDecimal(v.Str); ok {
				return document.Number(f), true
			}
		}
		return document.Value{}, false
	case mapping.TransformTimestamp:
		switch v.Kind {
		case document.KindTime:
			return v, true
		case document.KindString:
			if t, ok := analyzer.ParseDate(v.Str); ok {
				return document.Time(t), true
			}
		}
		return document.Value{}, false
	default:
		return v, true
	}
}
