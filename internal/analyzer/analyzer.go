// Package analyzer samples one schema-less collection and infers its field
// structure.
//
// The result is a FieldProfile: the union of field names observed across a
// bounded sample, a best-effort type per field, a few sample values, and a
// flag for fields likely to carry monetary semantics. The profile is built
// once per collection per run and is immutable after creation.
//
// Inference is best-effort and never fails the analysis: an unclassifiable
// field is simply a string field. Only store errors propagate.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"docpipe/internal/docstore"
	"docpipe/internal/document"
)

// DefaultSampleSize bounds how many documents are fetched for profiling.
const DefaultSampleSize = 5

// maxSampleValues caps the example values retained per field.
const maxSampleValues = 3

// ErrEmptyCollection is returned when a collection holds no documents. The
// orchestrator treats it as a skip-with-warning, not a failure.
var ErrEmptyCollection = errors.New("analyzer: collection has no documents")

// Field is one profiled source field.
type Field struct {
	// Name is the normalized field name (lowercase, diacritics stripped,
	// safe identifier characters only).
	Name string

	// SourceName is the raw field name as stored in the document.
	SourceName string

	// Type is the inferred value type: string, number, date, or boolean.
	Type string

	// SampleValues holds up to maxSampleValues observed values, rendered as
	// text.
	SampleValues []string

	// Monetary marks fields whose name suggests currency/cash-flow
	// semantics.
	Monetary bool
}

// FieldProfile is the structure inferred for one collection.
type FieldProfile struct {
	Collection    string
	DocumentCount int64
	SampleSize    int
	Fields        []Field
}

// Field returns the profiled field with the given normalized name.
func (p FieldProfile) Field(name string) (Field, bool) {
	for _, f := range p.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Analyze profiles one collection. sampleSize <= 0 uses DefaultSampleSize.
//
// Errors:
//   - ErrEmptyCollection when Count returns zero.
//   - Store errors are wrapped and propagate unchanged otherwise.
func Analyze(ctx context.Context, store docstore.Store, collection string, sampleSize int) (FieldProfile, error) {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}

	total, err := store.Count(ctx, collection)
	if err != nil {
		return FieldProfile{}, fmt.Errorf("analyze %s: %w", collection, err)
	}
	if total == 0 {
		return FieldProfile{}, ErrEmptyCollection
	}

	docs, err := store.Sample(ctx, collection, sampleSize)
	if err != nil {
		return FieldProfile{}, fmt.Errorf("analyze %s: %w", collection, err)
	}

	return Profile(collection, total, sampleSize, docs), nil
}

// Profile builds a FieldProfile from already-loaded sample documents. It is
// pure and deterministic: fields are ordered by normalized name.
func Profile(collection string, total int64, sampleSize int, docs []document.Document) FieldProfile {
	type agg struct {
		source  string
		values  []document.Value
		samples []string
	}

	byName := make(map[string]*agg)
	for _, d := range docs {
		for _, src := range d.FieldNames() {
			v := d.Fields[src]
			name := NormalizeFieldName(src)
			if name == "" {
				continue
			}
			a := byName[name]
			if a == nil {
				a = &agg{source: src}
				byName[name] = a
			}
			if v.IsZero() {
				continue
			}
			a.values = append(a.values, v)
			if len(a.samples) < maxSampleValues {
				a.samples = append(a.samples, v.Text())
			}
		}
	}

	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)

	p := FieldProfile{
		Collection:    collection,
		DocumentCount: total,
		SampleSize:    sampleSize,
		Fields:        make([]Field, 0, len(names)),
	}
	for _, n := range names {
		a := byName[n]
		p.Fields = append(p.Fields, Field{
			Name:         n,
			SourceName:   a.source,
			Type:         inferType(a.values),
			SampleValues: a.samples,
			Monetary:     IsMonetaryName(n),
		})
	}
	return p
}

// inferType votes across observed values. A field is only typed as number,
// date, or boolean when every observed value agrees; anything mixed or
// unclassifiable is a string.
func inferType(values []document.Value) string {
	if len(values) == 0 {
		return "string"
	}

	allNumber, allDate, allBool := true, true, true
	for _, v := range values {
		switch v.Kind {
		case document.KindNumber:
			allDate, allBool = false, false
		case document.KindTime:
			allNumber, allBool = false, false
		case document.KindBool:
			allNumber, allDate = false, false
		case document.KindString:
			s := strings.TrimSpace(v.Str)
			if !looksNumeric(s) {
				allNumber = false
			}
			if !looksDate(s) {
				allDate = false
			}
			if !looksBool(s) {
				allBool = false
			}
		default:
			return "string"
		}
	}

	switch {
	case allBool:
		return "boolean"
	case allNumber:
		return "number"
	case allDate:
		return "date"
	default:
		return "string"
	}
}

func looksNumeric(s string) bool {
	_, ok := ParseDecimal(s)
	return ok
}

// ParseDecimal parses a numeric string, tolerating thousands separators and
// a leading currency symbol.
func ParseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimLeft(s, "$€£")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// dateLayouts are tried in order when classifying string values.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"02.01.2006",
}

func looksDate(s string) bool {
	_, ok := ParseDate(s)
	return ok
}

// ParseDate parses a date string against the layouts the type inference
// accepts.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func looksBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false", "yes", "no", "y", "n":
		return true
	}
	return false
}

// monetaryVocabulary lists name fragments that flag a field as carrying
// currency/cash-flow semantics.
var monetaryVocabulary = []string{
	"price", "amount", "cost", "total", "fee", "balance",
	"revenue", "payment", "paid", "cash", "currency", "salary",
}

// IsMonetaryName reports whether a normalized field name matches the
// monetary vocabulary.
func IsMonetaryName(name string) bool {
	for _, frag := range monetaryVocabulary {
		if strings.Contains(name, frag) {
			return true
		}
	}
	return false
}

// diacriticStripper removes combining marks after NFD decomposition, so
// "prénom" and "prenom" normalize to the same field name.
var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeFieldName converts an arbitrary source field name into a safe
// lowercase identifier: diacritics stripped, separators collapsed to a
// single underscore, anything else dropped.
func NormalizeFieldName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if stripped, _, err := transform.String(diacriticStripper, s); err == nil {
		s = stripped
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))

	lastUnderscore := false
	for _, r := range s {
		switch {
		case r == ' ' || r == '-' || r == '.' || r == '/' || r == '\\' || r == ':' || r == ';':
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_':
			b.WriteRune(r)
			lastUnderscore = r == '_'
		}
	}

	return strings.Trim(b.String(), "_")
}
