package processors

import (
	"sort"
	"time"

	"github.com/entrans/backend/src/models"
	"github.com/entrans/backend/src/utils"
)

// TaxRate is the fixed VAT rate applied to every invoice subtotal.
const TaxRate = 0.21

// invoiceProcessorImpl implements the InvoiceProcessor interface.
type invoiceProcessorImpl struct{}

// NewInvoiceProcessor creates a new instance of InvoiceProcessor.
func NewInvoiceProcessor() InvoiceProcessor {
	return &invoiceProcessorImpl{}
}

func (p *invoiceProcessorImpl) Aggregate(lines []models.InvoiceLineRecord, directory []models.CustomerDirectoryRecord, caller models.Caller) []models.Invoice {
	invoices, _ := p.AggregateWithStats(lines, directory, caller)
	return invoices
}

func (p *invoiceProcessorImpl) AggregateWithStats(lines []models.InvoiceLineRecord, directory []models.CustomerDirectoryRecord, caller models.Caller) ([]models.Invoice, AggregationStats) {
	var stats AggregationStats

	// Directory lookup, last-write-wins on duplicate emails.
	byEmail := make(map[string]models.CustomerDirectoryRecord, len(directory))
	for _, rec := range directory {
		byEmail[rec.CustomerEmail] = rec
	}

	// Group line records by invoice number, preserving first-seen order
	// of invoice numbers and source order within each group. Records
	// without an invoice number are dropped, not an error.
	groups := make(map[string][]models.InvoiceLineRecord)
	var order []string
	for _, rec := range lines {
		if rec.InvoiceNumber == "" {
			stats.DroppedLines++
			continue
		}
		if _, seen := groups[rec.InvoiceNumber]; !seen {
			order = append(order, rec.InvoiceNumber)
		}
		groups[rec.InvoiceNumber] = append(groups[rec.InvoiceNumber], rec)
	}

	invoices := make([]models.Invoice, 0, len(order))
	for _, number := range order {
		group := groups[number]
		// The first record of a group is authoritative for the header.
		head := group[0]

		inv := models.Invoice{
			InvoiceNumber: number,
			Date:          head.Date,
			CustomerEmail: head.CustomerEmail,
			Lines:         make([]models.InvoiceLine, 0, len(group)),
		}

		for _, rec := range group {
			unitPrice, priceOK := utils.ParseDecimal(rec.UnitPrice)
			quantity, qtyOK := utils.ParseDecimal(rec.Quantity)
			if !priceOK {
				stats.ZeroedFields++
			}
			if !qtyOK {
				stats.ZeroedFields++
			}
			lineTotal := utils.RoundFloat(unitPrice*quantity, 2)
			inv.Lines = append(inv.Lines, models.InvoiceLine{
				Concept:   rec.Concept,
				Quantity:  quantity,
				UnitPrice: unitPrice,
				LineTotal: lineTotal,
			})
			inv.Subtotal += lineTotal
		}

		inv.Tax = inv.Subtotal * TaxRate
		inv.Total = inv.Subtotal + inv.Tax

		if dir, ok := byEmail[head.CustomerEmail]; ok {
			inv.Customer = models.Customer{
				Name:    dir.Company,
				TaxID:   dir.TaxID,
				Address: dir.Address,
			}
		} else {
			stats.UnknownCustomers++
			inv.Customer = models.Customer{
				Name:  head.CustomerEmail,
				TaxID: models.UnknownTaxID,
			}
		}

		if models.CanViewRecords(caller, inv.CustomerEmail) {
			invoices = append(invoices, inv)
		}
	}

	sortInvoicesByDateDesc(invoices)
	return invoices, stats
}

type datedInvoice struct {
	invoice models.Invoice
	when    time.Time
	valid   bool
}

// sortInvoicesByDateDesc orders invoices newest first. Pairs where
// either date fails to parse keep their existing relative order.
func sortInvoicesByDateDesc(invoices []models.Invoice) {
	dated := make([]datedInvoice, len(invoices))
	for i, inv := range invoices {
		when, ok := utils.ParseFlexibleDate(inv.Date)
		dated[i] = datedInvoice{invoice: inv, when: when, valid: ok}
	}
	sort.SliceStable(dated, func(i, j int) bool {
		if !dated[i].valid || !dated[j].valid {
			return false
		}
		return dated[i].when.After(dated[j].when)
	})
	for i := range dated {
		invoices[i] = dated[i].invoice
	}
}
