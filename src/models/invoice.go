package models

// UnknownTaxID is the sentinel shown when an invoice's customer has no
// directory entry.
const UnknownTaxID = "N/A"

// InvoiceLineRecord is one untyped row from the invoice-lines sheet.
// Numeric fields arrive as strings and may use ',' or '.' as the decimal
// separator; the aggregation layer owns the coercion policy.
type InvoiceLineRecord struct {
	InvoiceNumber string `json:"invoiceNumber"`
	Date          string `json:"date"`
	CustomerEmail string `json:"customerEmail"`
	Concept       string `json:"concept"`
	UnitPrice     string `json:"unitPrice"`
	Quantity      string `json:"quantity"`
}

// CustomerDirectoryRecord is one row from the customer-directory sheet,
// keyed by email. Duplicate emails resolve last-write-wins.
type CustomerDirectoryRecord struct {
	CustomerEmail string `json:"customerEmail"`
	Company       string `json:"company"`
	TaxID         string `json:"taxId"`
	Address       string `json:"address"`
}

// Customer is the resolved billing profile embedded in an invoice.
type Customer struct {
	Name    string `json:"name"`
	TaxID   string `json:"taxId"`
	Address string `json:"address"`
}

// InvoiceLine is one billable row after numeric coercion.
type InvoiceLine struct {
	Concept   string  `json:"concept"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	LineTotal float64 `json:"lineTotal"`
}

// Invoice is the normalized view model reconstructed from grouped line
// records. It is rebuilt fresh on every aggregation call and never
// persisted.
type Invoice struct {
	InvoiceNumber string        `json:"invoiceNumber"`
	Date          string        `json:"date"`
	CustomerEmail string        `json:"customerEmail"`
	Customer      Customer      `json:"customer"`
	Lines         []InvoiceLine `json:"lines"`
	Subtotal      float64       `json:"subtotal"`
	Tax           float64       `json:"tax"`
	Total         float64       `json:"total"`
}
