package mssql

import (
	"strings"
	"testing"

	"docpipe/internal/catalog"
)

func TestBuildInsertSQL_Placeholders(t *testing.T) {
	t.Parallel()

	stmt, args := buildInsertSQL("purchase_orders",
		[]string{"tenant_id", "supplier_name", "total_amount"},
		[][]any{
			{"t1", "Acme", 100.0},
			{"t1", "Bolt Co", 250.0},
		})

	want := "INSERT INTO purchase_orders (tenant_id, supplier_name, total_amount) VALUES (@p1, @p2, @p3), (@p4, @p5, @p6);"
	if stmt != want {
		t.Fatalf("buildInsertSQL()=\n%s\nwant\n%s", stmt, want)
	}
	if len(args) != 6 || args[4] != "Bolt Co" {
		t.Fatalf("args=%v", args)
	}
}

func TestBuildCreateTableSQL_ObjectIDGuard(t *testing.T) {
	t.Parallel()

	tab, _ := catalog.Lookup("investors")
	sql := buildCreateTableSQL(tab)
	for _, frag := range []string{
		"IF OBJECT_ID(N'investors', N'U') IS NULL BEGIN CREATE TABLE investors",
		"id BIGINT IDENTITY(1,1) PRIMARY KEY",
		"tenant_id NVARCHAR(450) NOT NULL",
		"name NVARCHAR(450) NOT NULL",
		"END;",
	} {
		if !strings.Contains(sql, frag) {
			t.Errorf("create SQL missing %q:\n%s", frag, sql)
		}
	}
}

func TestBuildDedupIndexSQL_Guarded(t *testing.T) {
	t.Parallel()

	tab, _ := catalog.Lookup("products")
	sql := buildDedupIndexSQL(tab)
	if !strings.Contains(sql, "CREATE UNIQUE INDEX ux_products_dedup ON products (tenant_id, name, brand, supplier)") {
		t.Fatalf("buildDedupIndexSQL()=\n%s", sql)
	}
}
