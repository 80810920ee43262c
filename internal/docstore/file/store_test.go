package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"docpipe/internal/docstore"
	"docpipe/internal/document"
)

func writeCollection(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".json"), []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}

func newTestStore(t *testing.T, dir string) docstore.Store {
	t.Helper()
	s, err := New(context.Background(), docstore.Config{Kind: "file", URI: dir})
	if err != nil {
		t.Fatalf("New()=%v", err)
	}
	return s
}

func TestNew_MissingDirectory(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), docstore.Config{URI: filepath.Join(t.TempDir(), "absent")})
	if err == nil {
		t.Fatal("New() succeeded on a missing directory, want error")
	}
}

func TestListCollections_TenantPrefixAndOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeCollection(t, dir, "t1_products", `[]`)
	writeCollection(t, dir, "t1_customers", `[]`)
	writeCollection(t, dir, "t2_products", `[]`)

	got, err := newTestStore(t, dir).ListCollections(context.Background(), "t1")
	if err != nil {
		t.Fatalf("ListCollections()=%v", err)
	}
	want := []string{"t1_customers", "t1_products"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("ListCollections()=%v, want %v", got, want)
	}
}

func TestLoadAll_RootArray(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeCollection(t, dir, "t1_products",
		`[{"_id":"a1","name":"Widget","price":9.5},{"name":"Gadget","active":true}]`)

	docs, err := newTestStore(t, dir).LoadAll(context.Background(), "t1_products")
	if err != nil {
		t.Fatalf("LoadAll()=%v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("len=%d, want 2", len(docs))
	}
	if docs[0].ID != "a1" {
		t.Errorf("ID=%q, want a1 from _id", docs[0].ID)
	}
	if _, ok := docs[0].Fields["_id"]; ok {
		t.Error("_id left in field set")
	}
	if v := docs[0].Fields["price"]; v.Kind != document.KindNumber || v.Num != 9.5 {
		t.Errorf("price=%+v, want number 9.5", v)
	}
	if docs[1].ID != "t1_products:1" {
		t.Errorf("ID=%q, want positional fallback", docs[1].ID)
	}
	if v := docs[1].Fields["active"]; v.Kind != document.KindBool || !v.Bool {
		t.Errorf("active=%+v, want bool true", v)
	}
}

func TestLoadAll_EnvelopeObject(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeCollection(t, dir, "t1_orders",
		`{"exported_at":"2024-01-01","items":[{"total":10},{"total":20},{"total":30}]}`)

	docs, err := newTestStore(t, dir).LoadAll(context.Background(), "t1_orders")
	if err != nil {
		t.Fatalf("LoadAll()=%v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("len=%d, want the envelope's array elements", len(docs))
	}
	if v := docs[2].Fields["total"]; v.Num != 30 {
		t.Errorf("total=%+v, want 30", v)
	}
}

func TestLoadAll_JSONLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeCollection(t, dir, "t1_events", "{\"n\":1}\n{\"n\":2}\n{\"n\":3}\n")

	docs, err := newTestStore(t, dir).LoadAll(context.Background(), "t1_events")
	if err != nil {
		t.Fatalf("LoadAll()=%v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("len=%d, want 3", len(docs))
	}
}

func TestLoadAll_SingleObject(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeCollection(t, dir, "t1_profile", `{"name":"Acme","country":"DE"}`)

	docs, err := newTestStore(t, dir).LoadAll(context.Background(), "t1_profile")
	if err != nil {
		t.Fatalf("LoadAll()=%v", err)
	}
	if len(docs) != 1 || docs[0].Fields["name"].Str != "Acme" {
		t.Fatalf("docs=%+v, want the single object", docs)
	}
}

func TestSample_Limit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeCollection(t, dir, "t1_products",
		`[{"n":1},{"n":2},{"n":3},{"n":4},{"n":5}]`)
	s := newTestStore(t, dir)

	docs, err := s.Sample(context.Background(), "t1_products", 2)
	if err != nil {
		t.Fatalf("Sample()=%v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("len=%d, want 2", len(docs))
	}

	n, err := s.Count(context.Background(), "t1_products")
	if err != nil || n != 5 {
		t.Fatalf("Count()=%d, %v; want 5", n, err)
	}
}

func TestLoadAll_NestedObjectsFlattened(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeCollection(t, dir, "t1_customers",
		`[{"name":"Alice","contact":{"email":"a@example.com"}}]`)

	docs, err := newTestStore(t, dir).LoadAll(context.Background(), "t1_customers")
	if err != nil {
		t.Fatalf("LoadAll()=%v", err)
	}
	if v := docs[0].Fields["contact.email"]; v.Str != "a@example.com" {
		t.Fatalf("contact.email=%+v, want flattened scalar", v)
	}
}
