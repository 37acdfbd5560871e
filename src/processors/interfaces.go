package processors

import "github.com/entrans/backend/src/models"

// AggregationStats is the optional diagnostics channel for the otherwise
// silent best-effort coercion policy.
type AggregationStats struct {
	DroppedLines     int `json:"droppedLines"`     // records with no invoice number
	ZeroedFields     int `json:"zeroedFields"`     // numeric fields coerced to 0
	UnknownCustomers int `json:"unknownCustomers"` // invoices with no directory match
}

// InvoiceProcessor reconstructs normalized invoices from the two flat
// sheet snapshots. Implementations must be pure: no I/O, no logging, no
// mutation of inputs, and they never fail. Malformed input degrades to
// zero or fallback values.
type InvoiceProcessor interface {
	Aggregate(lines []models.InvoiceLineRecord, directory []models.CustomerDirectoryRecord, caller models.Caller) []models.Invoice
	AggregateWithStats(lines []models.InvoiceLineRecord, directory []models.CustomerDirectoryRecord, caller models.Caller) ([]models.Invoice, AggregationStats)
}
