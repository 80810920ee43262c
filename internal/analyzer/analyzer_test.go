package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"docpipe/internal/document"
)

type fakeStore struct {
	collections []string
	count       int64
	countErr    error
	docs        []document.Document
	sampleErr   error
}

func (s *fakeStore) ListCollections(ctx context.Context, tenantID string) ([]string, error) {
	return s.collections, nil
}
func (s *fakeStore) Count(ctx context.Context, collection string) (int64, error) {
	return s.count, s.countErr
}
func (s *fakeStore) Sample(ctx context.Context, collection string, n int) ([]document.Document, error) {
	if s.sampleErr != nil {
		return nil, s.sampleErr
	}
	if n < len(s.docs) {
		return s.docs[:n], nil
	}
	return s.docs, nil
}
func (s *fakeStore) LoadAll(ctx context.Context, collection string) ([]document.Document, error) {
	return s.docs, nil
}
func (s *fakeStore) Close(ctx context.Context) error { return nil }

func TestAnalyze_EmptyCollection(t *testing.T) {
	t.Parallel()

	_, err := Analyze(context.Background(), &fakeStore{count: 0}, "t1_products", 5)
	if !errors.Is(err, ErrEmptyCollection) {
		t.Fatalf("Analyze() err=%v, want ErrEmptyCollection", err)
	}
}

func TestAnalyze_StoreErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	_, err := Analyze(context.Background(), &fakeStore{countErr: boom}, "t1_products", 5)
	if !errors.Is(err, boom) {
		t.Fatalf("Analyze() err=%v, want wrapped %v", err, boom)
	}
}

func TestProfile_UnionsFieldsAcrossDocuments(t *testing.T) {
	t.Parallel()

	docs := []document.Document{
		document.FromMap("a", map[string]any{"Name": "Widget", "Unit Price": 9.5}),
		document.FromMap("b", map[string]any{"Name": "Gadget", "Brand": "Acme"}),
	}

	p := Profile("t1_products", 2, 5, docs)

	if p.DocumentCount != 2 {
		t.Fatalf("DocumentCount=%d, want 2", p.DocumentCount)
	}
	want := []string{"brand", "name", "unit_price"}
	if len(p.Fields) != len(want) {
		t.Fatalf("fields=%d, want %d", len(p.Fields), len(want))
	}
	for i, f := range p.Fields {
		if f.Name != want[i] {
			t.Fatalf("Fields[%d].Name=%q, want %q", i, f.Name, want[i])
		}
	}

	price, _ := p.Field("unit_price")
	if price.Type != "number" {
		t.Fatalf("unit_price.Type=%q, want number", price.Type)
	}
	if !price.Monetary {
		t.Fatalf("unit_price.Monetary=false, want true")
	}
	name, _ := p.Field("name")
	if name.Monetary {
		t.Fatalf("name.Monetary=true, want false")
	}
}

func TestInferType(t *testing.T) {
	t.Parallel()

	ts := document.Time(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))

	cases := []struct {
		name   string
		values []document.Value
		want   string
	}{
		{"empty", nil, "string"},
		{"numbers", []document.Value{document.Number(1), document.Number(2)}, "number"},
		{"numeric_strings", []document.Value{document.String("12.50"), document.String("$1,200")}, "number"},
		{"dates", []document.Value{ts, document.String("2024-01-02")}, "date"},
		{"bools", []document.Value{document.Bool(true), document.String("no")}, "boolean"},
		{"mixed", []document.Value{document.Number(1), document.String("abc")}, "string"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := inferType(tc.values); got != tc.want {
				t.Fatalf("inferType(%s)=%q, want %q", tc.name, got, tc.want)
			}
		})
	}
}

func TestNormalizeFieldName(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"Unit Price", "unit_price"},
		{"  order.date ", "order_date"},
		{"Prénom", "prenom"},
		{"Total-Amount ($)", "total_amount"},
		{"__x__", "x"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeFieldName(tc.in); got != tc.want {
			t.Fatalf("NormalizeFieldName(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}
