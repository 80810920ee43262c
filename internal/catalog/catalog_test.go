package catalog

import "testing"

func TestLookup_KnownTables(t *testing.T) {
	t.Parallel()

	for _, name := range TableNames() {
		tab, ok := Lookup(name)
		if !ok {
			t.Fatalf("Lookup(%q) ok=false, want true", name)
		}
		if tab.Name != name {
			t.Fatalf("Lookup(%q).Name=%q, want %q", name, tab.Name, name)
		}
	}
}

func TestLookup_UnknownTable(t *testing.T) {
	t.Parallel()

	if _, ok := Lookup("orders"); ok {
		t.Fatalf("Lookup(orders) ok=true, want false")
	}
}

// Every table must require tenant_id and every dedup key column must exist in
// the table's column set; the validator and deduplicator both rely on this.
func TestTables_Invariants(t *testing.T) {
	t.Parallel()

	for _, tab := range Tables() {
		col, ok := tab.Column(TenantColumn)
		if !ok || !col.Required {
			t.Fatalf("table %s: tenant_id missing or not required", tab.Name)
		}

		if len(tab.DedupKey) == 0 {
			t.Fatalf("table %s: empty dedup key", tab.Name)
		}
		for _, k := range tab.DedupKey {
			if _, ok := tab.Column(k); !ok {
				t.Fatalf("table %s: dedup key column %q not in column set", tab.Name, k)
			}
		}

		req := tab.RequiredColumns()
		if len(req) == 0 || req[0] != TenantColumn {
			t.Fatalf("table %s: RequiredColumns()=%v, want tenant_id first", tab.Name, req)
		}
	}
}

func TestTable_ColumnNames(t *testing.T) {
	t.Parallel()

	tab, _ := Lookup("suppliers")
	got := tab.ColumnNames()
	want := []string{"tenant_id", "name", "email", "phone", "address", "source_document_id"}
	if len(got) != len(want) {
		t.Fatalf("ColumnNames()=%v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ColumnNames()[%d]=%q, want %q", i, got[i], want[i])
		}
	}
}

func TestTable_MappableColumns(t *testing.T) {
	t.Parallel()

	for _, tab := range Tables() {
		for _, name := range tab.MappableColumns() {
			if name == TenantColumn || name == ProvenanceColumn {
				t.Fatalf("table %s: MappableColumns() contains %q", tab.Name, name)
			}
		}
	}

	tab, _ := Lookup("suppliers")
	got := tab.MappableColumns()
	want := []string{"name", "email", "phone", "address"}
	if len(got) != len(want) {
		t.Fatalf("MappableColumns()=%v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("MappableColumns()[%d]=%q, want %q", i, got[i], want[i])
		}
	}
}
