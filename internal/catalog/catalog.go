// Package catalog defines the fixed relational schema the ingestion pipeline
// maps onto.
//
// The catalog is intentionally hard-coded: target tables, their column sets,
// required columns, and composite dedup keys are a closed set shared by the
// mapping resolver (to reject mappings onto unknown tables), the transform
// engine (to know which columns exist), the validator (required columns and
// format checks), and the deduplicator (composite keys).
//
// Every table requires a non-empty tenant_id; records are always scoped to
// one tenant.
package catalog

// TenantColumn is the tenant scoping column present on every target table.
const TenantColumn = "tenant_id"

// ProvenanceColumn carries the source document id a record was derived from.
const ProvenanceColumn = "source_document_id"

// FormatKind names a per-column format check applied by the validator.
type FormatKind string

const (
	FormatNone     FormatKind = ""
	FormatEmail    FormatKind = "email"
	FormatPhone    FormatKind = "phone"
	FormatCurrency FormatKind = "currency"

	// FormatDate carries no validator check; it tells storage backends the
	// column holds a timestamp.
	FormatDate FormatKind = "date"
)

// Column describes one column of a target table.
type Column struct {
	Name     string
	Required bool
	Format   FormatKind
}

// Table describes one target table: its columns and the composite key used
// to detect duplicate records within one load.
type Table struct {
	Name string

	Columns []Column

	// DedupKey lists the columns whose values form the composite equality
	// key. Two records with equal key tuples are the same record; the first
	// observed wins.
	DedupKey []string
}

// Column returns the column definition by name, or false when the table has
// no such column.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// RequiredColumns returns the names of all required columns in declaration
// order. tenant_id is always first.
func (t Table) RequiredColumns() []string {
	out := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c.Required {
			out = append(out, c.Name)
		}
	}
	return out
}

// ColumnNames returns all column names in declaration order.
func (t Table) ColumnNames() []string {
	out := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		out = append(out, c.Name)
	}
	return out
}

// MappableColumns returns the column names a field mapping may target: all
// columns except tenant_id and source_document_id, which the loader fills in
// itself.
func (t Table) MappableColumns() []string {
	out := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == TenantColumn || c.Name == ProvenanceColumn {
			continue
		}
		out = append(out, c.Name)
	}
	return out
}

var tables = []Table{
	{
		Name: "products",
		Columns: []Column{
			{Name: TenantColumn, Required: true},
			{Name: "name", Required: true},
			{Name: "brand"},
			{Name: "category"},
			{Name: "supplier"},
			{Name: "unit_price", Format: FormatCurrency},
			{Name: "cost_price", Format: FormatCurrency},
			{Name: "quantity"},
			{Name: "description"},
			{Name: ProvenanceColumn},
		},
		DedupKey: []string{"name", "brand", "supplier"},
	},
	{
		Name: "customers",
		Columns: []Column{
			{Name: TenantColumn, Required: true},
			{Name: "name", Required: true},
			{Name: "email", Format: FormatEmail},
			{Name: "phone", Format: FormatPhone},
			{Name: "address"},
			{Name: "city"},
			{Name: "country"},
			{Name: ProvenanceColumn},
		},
		DedupKey: []string{"name", "email", "phone"},
	},
	{
		Name: "suppliers",
		Columns: []Column{
			{Name: TenantColumn, Required: true},
			{Name: "name", Required: true},
			{Name: "email", Format: FormatEmail},
			{Name: "phone", Format: FormatPhone},
			{Name: "address"},
			{Name: ProvenanceColumn},
		},
		DedupKey: []string{"name", "email"},
	},
	{
		Name: "sales_orders",
		Columns: []Column{
			{Name: TenantColumn, Required: true},
			{Name: "customer_name", Required: true},
			{Name: "order_date", Format: FormatDate},
			{Name: "total_amount", Format: FormatCurrency},
			{Name: "status"},
			{Name: "payment_method"},
			{Name: ProvenanceColumn},
		},
		DedupKey: []string{"customer_name", "order_date", "total_amount"},
	},
	{
		Name: "purchase_orders",
		Columns: []Column{
			{Name: TenantColumn, Required: true},
			{Name: "supplier_name", Required: true},
			{Name: "order_date", Format: FormatDate},
			{Name: "total_amount", Format: FormatCurrency},
			{Name: "status"},
			{Name: ProvenanceColumn},
		},
		DedupKey: []string{"supplier_name", "order_date", "total_amount"},
	},
	{
		Name: "investors",
		Columns: []Column{
			{Name: TenantColumn, Required: true},
			{Name: "name", Required: true},
			{Name: "email", Format: FormatEmail},
			{Name: "phone", Format: FormatPhone},
			{Name: "investor_type"},
			{Name: ProvenanceColumn},
		},
		DedupKey: []string{"name", "email"},
	},
	{
		Name: "investments",
		Columns: []Column{
			{Name: TenantColumn, Required: true},
			{Name: "investor_name", Required: true},
			{Name: "investment_date", Format: FormatDate},
			{Name: "amount", Format: FormatCurrency},
			{Name: "instrument"},
			{Name: "notes"},
			{Name: ProvenanceColumn},
		},
		DedupKey: []string{"investor_name", "investment_date", "amount"},
	},
}

// Lookup returns the table definition by name.
func Lookup(name string) (Table, bool) {
	for _, t := range tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Tables returns all target tables in catalog order. The returned slice is
// shared; callers must not mutate it.
func Tables() []Table { return tables }

// TableNames returns all target table names in catalog order.
func TableNames() []string {
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		out = append(out, t.Name)
	}
	return out
}
