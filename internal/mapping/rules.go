package mapping

import (
	"strings"

	"docpipe/internal/analyzer"
	"docpipe/internal/catalog"
)

// collectionRule routes a collection to a default target table by name.
// Rules are evaluated in order; the first match wins. Order matters:
// "purchase" must be checked before the generic "order" fragments, and
// "investment" before "investor"-adjacent fragments.
type collectionRule struct {
	fragments []string
	table     string
}

var collectionRules = []collectionRule{
	{fragments: []string{"purchase"}, table: "purchase_orders"},
	{fragments: []string{"investment", "funding"}, table: "investments"},
	{fragments: []string{"investor", "shareholder"}, table: "investors"},
	{fragments: []string{"customer", "buyer", "client"}, table: "customers"},
	{fragments: []string{"supplier", "vendor"}, table: "suppliers"},
	{fragments: []string{"sale", "order", "invoice"}, table: "sales_orders"},
}

// defaultTableFor returns the fallback table for a collection name. Anything
// unrecognized routes to the generic products table.
func defaultTableFor(collection string) string {
	name := strings.ToLower(collection)
	for _, r := range collectionRules {
		for _, frag := range r.fragments {
			if strings.Contains(name, frag) {
				return r.table
			}
		}
	}
	return "products"
}

// columnAliases maps "<table>.<column>" to source-field names commonly seen
// for that column. Checked after direct name equality, before substring
// fuzz.
var columnAliases = map[string][]string{
	"customers.name":                {"customer_name", "customer", "client_name", "full_name", "contact_name"},
	"customers.phone":               {"phone_number", "mobile", "telephone", "contact_phone"},
	"customers.email":               {"email_address", "contact_email", "mail"},
	"suppliers.name":                {"supplier_name", "vendor_name", "vendor", "company_name"},
	"suppliers.email":               {"email_address", "contact_email"},
	"products.name":                 {"product_name", "item_name", "item", "title"},
	"products.unit_price":           {"price", "selling_price", "sale_price", "rate"},
	"products.cost_price":           {"cost", "buying_price", "purchase_price"},
	"products.quantity":             {"qty", "stock", "count", "units"},
	"sales_orders.customer_name":    {"customer", "client", "buyer", "customer_name"},
	"sales_orders.order_date":       {"date", "sale_date", "created_at", "order_time"},
	"sales_orders.total_amount":     {"total", "amount", "grand_total", "order_total"},
	"purchase_orders.supplier_name": {"supplier", "vendor", "vendor_name"},
	"purchase_orders.order_date":    {"date", "purchase_date", "created_at"},
	"purchase_orders.total_amount":  {"total", "amount", "grand_total"},
	"investors.name":                {"investor_name", "investor", "full_name"},
	"investments.investor_name":     {"investor", "investor_name"},
	"investments.investment_date":   {"date", "invested_on", "created_at"},
	"investments.amount":            {"investment_amount", "total", "value"},
}

// ResolveWithRules is the deterministic fallback path: substring rules pick
// a default table for the collection, then each profiled field is matched
// against that table's columns directly, by alias, and finally by substring
// containment. It always succeeds; the worst case is an empty mapping with
// every field unmapped.
func ResolveWithRules(profile analyzer.FieldProfile) TableMapping {
	tableName := defaultTableFor(profile.Collection)
	tab, ok := catalog.Lookup(tableName)
	if !ok {
		// Unreachable while collectionRules only name catalog tables.
		tab, _ = catalog.Lookup("products")
	}

	target := TableTarget{Table: tab.Name}
	taken := make(map[string]struct{}, len(tab.Columns))

	for _, f := range profile.Fields {
		col, ok := matchColumn(tab, f.Name, taken)
		if !ok {
			continue
		}
		taken[col] = struct{}{}
		target.Fields = append(target.Fields, FieldMapping{
			SourceField:  f.Name,
			TargetColumn: col,
			Transform:    transformForField(f),
		})
	}

	m := TableMapping{Source: "rules"}
	fieldNames := make([]string, 0, len(profile.Fields))
	for _, f := range profile.Fields {
		fieldNames = append(fieldNames, f.Name)
	}
	if len(target.Fields) > 0 {
		m.Targets = append(m.Targets, target)
	}
	m.UnmappedFields = unmappedFrom(fieldNames, m.Targets)
	return m
}

// matchColumn finds the target column for one source field. Matching is
// first-come: a column already taken by an earlier field is skipped so two
// source fields never collapse onto one column.
func matchColumn(tab catalog.Table, field string, taken map[string]struct{}) (string, bool) {
	// Direct name equality.
	if _, ok := tab.Column(field); ok {
		if _, used := taken[field]; !used {
			return field, true
		}
	}

	// Alias table.
	for _, c := range tab.Columns {
		if _, used := taken[c.Name]; used {
			continue
		}
		for _, alias := range columnAliases[tab.Name+"."+c.Name] {
			if field == alias {
				return c.Name, true
			}
		}
	}

	// Substring containment either way, for names like "product_brand" →
	// "brand". Short fragments are excluded to avoid accidental hits.
	for _, c := range tab.Columns {
		if _, used := taken[c.Name]; used {
			continue
		}
		if c.Name == catalog.TenantColumn || c.Name == catalog.ProvenanceColumn {
			continue
		}
		if len(c.Name) >= 4 && (strings.Contains(field, c.Name) || strings.Contains(c.Name, field) && len(field) >= 4) {
			return c.Name, true
		}
	}

	return "", false
}

func transformForField(f analyzer.Field) TransformKind {
	if f.Monetary {
		return TransformDecimal
	}
	if f.Type == "date" {
		return TransformTimestamp
	}
	return TransformNone
}
