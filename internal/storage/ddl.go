package storage

import "docpipe/internal/catalog"

// ColumnType is the abstract storage type of a catalog column. Backends map
// it onto their own SQL type names.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeDecimal
	TypeTimestamp
)

// TypeOf derives the storage type from the catalog column definition.
func TypeOf(c catalog.Column) ColumnType {
	switch c.Format {
	case catalog.FormatCurrency:
		return TypeDecimal
	case catalog.FormatDate:
		return TypeTimestamp
	default:
		return TypeText
	}
}

// UniqueIndexColumns returns the columns the backend's dedup index covers:
// the tenant column followed by the table's composite dedup key.
func UniqueIndexColumns(t catalog.Table) []string {
	out := make([]string, 0, len(t.DedupKey)+1)
	out = append(out, catalog.TenantColumn)
	out = append(out, t.DedupKey...)
	return out
}
