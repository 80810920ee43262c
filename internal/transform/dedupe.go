package transform

import (
	"strings"

	"docpipe/internal/catalog"
)

// Dedupe removes records that repeat an earlier record's composite key for
// the same table. The first record observed for a key wins. Scope is the
// given slice only; cross-run duplicates are left to the target store's own
// constraints.
//
// Dedupe is idempotent: running it on its own output removes nothing.
func Dedupe(recs []Record) (out []Record, removed int) {
	out = make([]Record, 0, len(recs))
	seen := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		k := dedupKey(r)
		if _, dup := seen[k]; dup {
			removed++
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out, removed
}

// dedupKey builds the table-qualified composite key. Values are compared
// case-insensitively with surrounding whitespace ignored.
func dedupKey(r Record) string {
	table, ok := catalog.Lookup(r.Table)
	if !ok || len(table.DedupKey) == 0 {
		// No key defined: fall back to provenance.
		return r.Table + "\x1f" + r.SourceDocumentID
	}
	parts := make([]string, 0, len(table.DedupKey)+1)
	parts = append(parts, r.Table)
	for _, col := range table.DedupKey {
		v := r.Columns[col]
		parts = append(parts, strings.ToLower(strings.TrimSpace(v.Text())))
	}
	return strings.Join(parts, "\x1f")
}
