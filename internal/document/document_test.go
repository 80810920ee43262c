package document

import (
	"testing"
	"time"
)

func TestFromMap_FlattensNestedObjects(t *testing.T) {
	t.Parallel()

	d := FromMap("doc-1", map[string]any{
		"name": "Acme Widget",
		"pricing": map[string]any{
			"unit":     float64(9.5),
			"currency": "USD",
		},
		"active": true,
	})

	if d.ID != "doc-1" {
		t.Fatalf("ID=%q, want doc-1", d.ID)
	}
	if got := d.Fields["pricing.unit"]; got.Kind != KindNumber || got.Num != 9.5 {
		t.Fatalf("pricing.unit=%+v, want number 9.5", got)
	}
	if got := d.Fields["pricing.currency"]; got.Str != "USD" {
		t.Fatalf("pricing.currency=%+v, want USD", got)
	}
	if got := d.Fields["active"]; got.Kind != KindBool || !got.Bool {
		t.Fatalf("active=%+v, want true", got)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		in   any
		kind Kind
		text string
	}{
		{"nil", nil, KindNull, ""},
		{"string", "hello", KindString, "hello"},
		{"float64", float64(42), KindNumber, "42"},
		{"int32", int32(7), KindNumber, "7"},
		{"int64", int64(9000000000), KindNumber, "9e+09"},
		{"bool", false, KindBool, "false"},
		{"time", ts, KindTime, "2024-03-01T12:00:00Z"},
		{"slice_fallback", []any{"a", "b"}, KindString, "[a b]"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			v := Classify(tc.in)
			if v.Kind != tc.kind {
				t.Fatalf("Classify(%v).Kind=%v, want %v", tc.in, v.Kind, tc.kind)
			}
			if got := v.Text(); got != tc.text {
				t.Fatalf("Text()=%q, want %q", got, tc.text)
			}
		})
	}
}

func TestValue_IsZero(t *testing.T) {
	t.Parallel()

	if !Null().IsZero() {
		t.Fatalf("Null().IsZero()=false, want true")
	}
	if !String("").IsZero() {
		t.Fatalf("String(\"\").IsZero()=false, want true")
	}
	if String(" ").IsZero() {
		t.Fatalf("String(\" \").IsZero()=true, want false")
	}
	if Number(0).IsZero() {
		t.Fatalf("Number(0).IsZero()=true, want false")
	}
}
