package postgres

import (
	"strings"
	"testing"

	"docpipe/internal/catalog"
)

func TestBuildInsertSQL_PlaceholderNumbering(t *testing.T) {
	t.Parallel()

	sql, args := buildInsertSQL("customers",
		[]string{"tenant_id", "name", "email"},
		[][]any{
			{"t1", "Alice", "alice@example.com"},
			{"t1", "Bob", "bob@example.com"},
		})

	want := `INSERT INTO "customers" ("tenant_id", "name", "email") VALUES ($1, $2, $3), ($4, $5, $6) ON CONFLICT DO NOTHING;`
	if sql != want {
		t.Fatalf("buildInsertSQL()=\n%s\nwant\n%s", sql, want)
	}
	if len(args) != 6 {
		t.Fatalf("len(args)=%d, want 6", len(args))
	}
	if args[4] != "Bob" {
		t.Fatalf("args[4]=%v, want Bob", args[4])
	}
}

func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	tab, ok := catalog.Lookup("sales_orders")
	if !ok {
		t.Fatal("sales_orders missing from catalog")
	}
	sql := buildCreateTableSQL(tab)

	for _, frag := range []string{
		`CREATE TABLE IF NOT EXISTS "sales_orders"`,
		"id BIGSERIAL PRIMARY KEY",
		`"tenant_id" TEXT NOT NULL`,
		`"customer_name" TEXT NOT NULL`,
		`"order_date" TIMESTAMPTZ`,
		`"total_amount" NUMERIC(18,2)`,
		`"source_document_id" TEXT`,
	} {
		if !strings.Contains(sql, frag) {
			t.Errorf("create SQL missing %q:\n%s", frag, sql)
		}
	}
}

func TestBuildDedupIndexSQL(t *testing.T) {
	t.Parallel()

	tab, _ := catalog.Lookup("customers")
	sql := buildDedupIndexSQL(tab)
	want := `CREATE UNIQUE INDEX IF NOT EXISTS "ux_customers_dedup" ON "customers" ("tenant_id", "name", "email", "phone");`
	if sql != want {
		t.Fatalf("buildDedupIndexSQL()=\n%s\nwant\n%s", sql, want)
	}
}
