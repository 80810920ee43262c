package loader

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"docpipe/internal/document"
	"docpipe/internal/transform"
)

// fakeStore scripts per-call outcomes and records every insert.
type fakeStore struct {
	calls []insertCall
	fail  map[int]error // call index -> error
}

type insertCall struct {
	table   string
	columns []string
	rows    [][]any
}

func (f *fakeStore) Ping(context.Context) error         { return nil }
func (f *fakeStore) EnsureTables(context.Context) error { return nil }
func (f *fakeStore) Close()                             {}

func (f *fakeStore) InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	idx := len(f.calls)
	f.calls = append(f.calls, insertCall{table: table, columns: columns, rows: rows})
	if err := f.fail[idx]; err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func productRecords(n int) []transform.Record {
	out := make([]transform.Record, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, transform.Record{
			Table:            "products",
			TenantID:         "tenant-1",
			SourceDocumentID: fmt.Sprintf("d%d", i),
			Columns: map[string]document.Value{
				"name":       document.String(fmt.Sprintf("Product %d", i)),
				"unit_price": document.Number(float64(i)),
			},
		})
	}
	return out
}

func TestLoad_BatchCountIsCeilNOverB(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	l := New(store, 100)
	res := l.Load(context.Background(), productRecords(250), nil)

	if len(store.calls) != 3 {
		t.Fatalf("insert calls=%d, want 3 for 250 records at batch size 100", len(store.calls))
	}
	sizes := []int{100, 100, 50}
	for i, c := range store.calls {
		if len(c.rows) != sizes[i] {
			t.Errorf("call %d carried %d rows, want %d", i, len(c.rows), sizes[i])
		}
	}
	if res.Attempted != 250 || res.Inserted != 250 {
		t.Fatalf("result attempted=%d inserted=%d, want 250/250", res.Attempted, res.Inserted)
	}
}

func TestLoad_ContinuesPastFailedBatch(t *testing.T) {
	t.Parallel()

	store := &fakeStore{fail: map[int]error{0: errors.New("connection reset")}}
	l := New(store, 100)
	res := l.Load(context.Background(), productRecords(150), nil)

	if len(store.calls) != 2 {
		t.Fatalf("insert calls=%d, want 2 (second batch still attempted)", len(store.calls))
	}
	if res.Attempted != 150 || res.Inserted != 50 {
		t.Fatalf("attempted=%d inserted=%d, want 150/50", res.Attempted, res.Inserted)
	}
	if len(res.Tables) != 1 {
		t.Fatalf("tables=%d, want 1", len(res.Tables))
	}
	tr := res.Tables[0]
	if errs := tr.Errors(); len(errs) != 1 || errs[0] == "" {
		t.Fatalf("Errors()=%v, want one recorded batch error", errs)
	}
	if tr.Batches[0].Error == "" || tr.Batches[1].Error != "" {
		t.Fatalf("batches=%+v, want only first errored", tr.Batches)
	}
	if res.Failed() {
		t.Fatal("Failed()=true, want false when one batch landed")
	}
}

func TestLoad_AllBatchesFailedMarksFailure(t *testing.T) {
	t.Parallel()

	store := &fakeStore{fail: map[int]error{0: errors.New("down"), 1: errors.New("down")}}
	l := New(store, 100)
	res := l.Load(context.Background(), productRecords(150), nil)
	if !res.Failed() {
		t.Fatal("Failed()=false, want true when every batch errored")
	}
}

func TestLoad_RowShapeFollowsCatalog(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	l := New(store, 10)
	recs := []transform.Record{{
		Table:            "customers",
		TenantID:         "tenant-1",
		SourceDocumentID: "doc-9",
		Columns: map[string]document.Value{
			"name":  document.String("Alice"),
			"email": document.String("alice@example.com"),
		},
	}}
	l.Load(context.Background(), recs, nil)

	if len(store.calls) != 1 {
		t.Fatalf("insert calls=%d, want 1", len(store.calls))
	}
	c := store.calls[0]
	wantCols := []string{"tenant_id", "name", "email", "phone", "address", "city", "country", "source_document_id"}
	if len(c.columns) != len(wantCols) {
		t.Fatalf("columns=%v, want %v", c.columns, wantCols)
	}
	for i := range wantCols {
		if c.columns[i] != wantCols[i] {
			t.Fatalf("columns[%d]=%s, want %s", i, c.columns[i], wantCols[i])
		}
	}
	row := c.rows[0]
	if row[0] != "tenant-1" || row[1] != "Alice" || row[2] != "alice@example.com" {
		t.Fatalf("row=%v", row)
	}
	if row[3] != nil {
		t.Fatalf("phone=%v, want nil for absent column", row[3])
	}
	if row[len(row)-1] != "doc-9" {
		t.Fatalf("provenance=%v, want doc-9", row[len(row)-1])
	}
}

func TestLoad_TablesLoadedInCatalogOrder(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	l := New(store, 10)
	recs := []transform.Record{
		{Table: "sales_orders", TenantID: "t", Columns: map[string]document.Value{
			"customer_name": document.String("A"), "total_amount": document.Number(1),
		}},
		{Table: "products", TenantID: "t", Columns: map[string]document.Value{
			"name": document.String("W"), "brand": document.String("B"),
		}},
	}
	l.Load(context.Background(), recs, nil)

	if len(store.calls) != 2 {
		t.Fatalf("insert calls=%d, want 2", len(store.calls))
	}
	if store.calls[0].table != "products" || store.calls[1].table != "sales_orders" {
		t.Fatalf("load order = %s, %s; want catalog order", store.calls[0].table, store.calls[1].table)
	}
}

func TestLoad_NoRecordsNoCalls(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	res := New(store, 0).Load(context.Background(), nil, nil)
	if len(store.calls) != 0 {
		t.Fatalf("insert calls=%d, want 0", len(store.calls))
	}
	if res.Failed() {
		t.Fatal("empty load marked failed")
	}
}
