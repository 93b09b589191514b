package sources

import (
	"fmt"
	"time"
)

var coupa = newSchema(Schema{
	Source:       Coupa,
	Name:         "public",
	Table:        "coupa_invoice_lines",
	Tables:       []string{"coupa_invoice_lines"},
	AmountColumn: "total_amount",
	EntityColumn: "supplier_name",
	EntityLabel:  "suppliers",
	Currency:     "USD",
	Symbol:       "$",
	Columns: []Column{
		{Name: "invoice_id", Type: "text", Description: "Coupa invoice identifier"},
		{Name: "invoice_line", Type: "integer", Description: "line number within the invoice"},
		{Name: "invoice_date", Type: "date", Description: "date the invoice was issued"},
		{Name: "supplier_name", Type: "text", Description: "supplier legal name"},
		{Name: "commodity", Type: "text", Description: "commodity category"},
		{Name: "cost_center", Type: "text", Description: "charged cost center"},
		{Name: "account_name", Type: "text", Description: "general ledger account"},
		{Name: "total_amount", Type: "numeric", Unit: "USD", Description: "line amount including tax"},
		{Name: "quantity", Type: "numeric", Description: "invoiced quantity"},
		{Name: "status", Type: "text", Description: "approved, pending or voided"},
	},
}, func(now time.Time) string {
	return fmt.Sprintf(
		"EXTRACT(YEAR FROM invoice_date) = %d AND EXTRACT(MONTH FROM invoice_date) <= %d",
		now.Year(), int(now.Month()),
	)
})

var baan = newSchema(Schema{
	Source:       Baan,
	Name:         "public",
	Table:        "baan_purchase_orders",
	Tables:       []string{"baan_purchase_orders"},
	AmountColumn: "reporting_total",
	EntityColumn: "supplier_name",
	EntityLabel:  "suppliers",
	Currency:     "USD",
	Symbol:       "$",
	Columns: []Column{
		{Name: "po_number", Type: "text", Description: "purchase order number"},
		{Name: "po_line", Type: "integer", Description: "purchase order line"},
		{Name: "order_date", Type: "date", Description: "date the order was placed"},
		{Name: "fiscal_year", Type: "integer", Description: "fiscal year of the order"},
		{Name: "fiscal_month", Type: "integer", Description: "fiscal month of the order (1-12)"},
		{Name: "supplier_code", Type: "text", Description: "Baan business partner code"},
		{Name: "supplier_name", Type: "text", Description: "supplier name"},
		{Name: "item_group", Type: "text", Description: "item group / commodity"},
		{Name: "item_description", Type: "text", Description: "ordered item"},
		{Name: "business_unit", Type: "text", Description: "ordering business unit"},
		{Name: "reporting_total", Type: "numeric", Unit: "USD", Description: "line total in reporting currency"},
		{Name: "quantity", Type: "numeric", Description: "ordered quantity"},
	},
}, func(now time.Time) string {
	return fmt.Sprintf("fiscal_year = %d AND fiscal_month <= %d", now.Year(), int(now.Month()))
})

var schemas = map[DataSource]*Schema{
	Coupa: coupa,
	Baan:  baan,
}

// Lookup returns the schema owned by a concrete data source.
func Lookup(d DataSource) (*Schema, error) {
	s, ok := schemas[d]
	if !ok {
		if d == Combined {
			return nil, fmt.Errorf("%w: %s", ErrNoSchema, d)
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, d)
	}
	return s, nil
}
