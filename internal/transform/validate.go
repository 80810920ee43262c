package transform

import (
	"regexp"
	"strings"

	"docpipe/internal/analyzer"
	"docpipe/internal/catalog"
	"docpipe/internal/document"
)

// Validate filters records down to the clean set: every required column for
// the record's table is present and non-empty, and email/phone/currency
// columns that are present pass their format check. Invalid records are
// dropped and counted, never returned as errors.
//
// Output is a subset of input, in input order.
func Validate(recs []Record) (clean []Record, dropped int) {
	clean = make([]Record, 0, len(recs))
	for _, r := range recs {
		if validate(r) {
			clean = append(clean, r)
		} else {
			dropped++
		}
	}
	return clean, dropped
}

func validate(r Record) bool {
	table, ok := catalog.Lookup(r.Table)
	if !ok {
		return false
	}
	if strings.TrimSpace(r.TenantID) == "" {
		return false
	}
	for _, c := range table.Columns {
		switch c.Name {
		case catalog.TenantColumn, catalog.ProvenanceColumn:
			continue
		}
		v, present := r.Columns[c.Name]
		if !present || v.IsZero() {
			if c.Required {
				return false
			}
			continue
		}
		if !formatOK(c.Format, v) {
			return false
		}
	}
	return true
}

func formatOK(f catalog.FormatKind, v document.Value) bool {
	switch f {
	case catalog.FormatEmail:
		return emailRe.MatchString(strings.TrimSpace(v.Text()))
	case catalog.FormatPhone:
		return validPhone(v.Text())
	case catalog.FormatCurrency:
		if v.Kind == document.KindNumber {
			return true
		}
		_, ok := analyzer.ParseDecimal(v.Text())
		return ok
	default:
		return true
	}
}

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// validPhone accepts anything with at least seven digits once punctuation
// and spacing are stripped.
func validPhone(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == '-' || r == '(' || r == ')' || r == ' ' || r == '.' || r == '/':
		default:
			return false
		}
	}
	return digits >= 7
}
