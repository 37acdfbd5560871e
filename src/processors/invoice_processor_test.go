package processors

import (
	"math"
	"reflect"
	"testing"

	"github.com/entrans/backend/src/models"
)

const epsilon = 1e-9

func line(number, date, email, concept, unitPrice, quantity string) models.InvoiceLineRecord {
	return models.InvoiceLineRecord{
		InvoiceNumber: number,
		Date:          date,
		CustomerEmail: email,
		Concept:       concept,
		UnitPrice:     unitPrice,
		Quantity:      quantity,
	}
}

var adminCaller = models.Caller{Email: "ops@entrans.example", Role: models.RoleAdmin}

func TestAggregateConcreteScenario(t *testing.T) {
	lines := []models.InvoiceLineRecord{
		line("F1", "01/01/2024", "a@x.com", "Pallet", "10,50", "2"),
		line("F1", "01/01/2024", "a@x.com", "Fuel", "5", "1"),
	}
	directory := []models.CustomerDirectoryRecord{
		{CustomerEmail: "a@x.com", Company: "Acme", TaxID: "B1", Address: "St 1"},
	}
	caller := models.Caller{Email: "a@x.com", Role: models.RoleClient}

	invoices := NewInvoiceProcessor().Aggregate(lines, directory, caller)

	if len(invoices) != 1 {
		t.Fatalf("expected 1 invoice, got %d", len(invoices))
	}
	inv := invoices[0]
	if len(inv.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(inv.Lines))
	}
	if math.Abs(inv.Subtotal-26.00) > epsilon {
		t.Errorf("expected subtotal 26.00, got %v", inv.Subtotal)
	}
	if math.Abs(inv.Tax-5.46) > epsilon {
		t.Errorf("expected tax 5.46, got %v", inv.Tax)
	}
	if math.Abs(inv.Total-31.46) > epsilon {
		t.Errorf("expected total 31.46, got %v", inv.Total)
	}
	if inv.Customer.Name != "Acme" {
		t.Errorf("expected customer name Acme, got %q", inv.Customer.Name)
	}
	if inv.Lines[0].Concept != "Pallet" || inv.Lines[1].Concept != "Fuel" {
		t.Errorf("line order not preserved: %+v", inv.Lines)
	}
}

func TestAggregateIsDeterministic(t *testing.T) {
	lines := []models.InvoiceLineRecord{
		line("F1", "10/01/2024", "a@x.com", "Pallet", "10,50", "2"),
		line("F2", "20/01/2024", "b@y.com", "Container", "900", "1"),
		line("F1", "10/01/2024", "a@x.com", "Fuel", "5.25", "3"),
	}
	directory := []models.CustomerDirectoryRecord{
		{CustomerEmail: "a@x.com", Company: "Acme", TaxID: "B1", Address: "St 1"},
	}

	p := NewInvoiceProcessor()
	first := p.Aggregate(lines, directory, adminCaller)
	second := p.Aggregate(lines, directory, adminCaller)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("two aggregations of identical input differ:\n%+v\n%+v", first, second)
	}
}

func TestAggregateGroupsByInvoiceNumber(t *testing.T) {
	lines := []models.InvoiceLineRecord{
		line("F1", "01/01/2024", "a@x.com", "Pallet", "10", "1"),
		line("F2", "02/01/2024", "a@x.com", "Fuel", "5", "1"),
		line("F1", "01/01/2024", "a@x.com", "Handling", "2", "4"),
		line("F1", "01/01/2024", "a@x.com", "Insurance", "1", "1"),
	}

	invoices := NewInvoiceProcessor().Aggregate(lines, nil, adminCaller)

	if len(invoices) != 2 {
		t.Fatalf("expected 2 invoices, got %d", len(invoices))
	}
	counts := map[string]int{}
	for _, inv := range invoices {
		counts[inv.InvoiceNumber] = len(inv.Lines)
	}
	if counts["F1"] != 3 {
		t.Errorf("expected 3 lines on F1, got %d", counts["F1"])
	}
	if counts["F2"] != 1 {
		t.Errorf("expected 1 line on F2, got %d", counts["F2"])
	}
}

func TestAggregateTotalsInvariant(t *testing.T) {
	lines := []models.InvoiceLineRecord{
		line("F1", "01/01/2024", "a@x.com", "Pallet", "3,33", "7"),
		line("F1", "01/01/2024", "a@x.com", "Fuel", "19.99", "2"),
		line("F2", "02/01/2024", "b@y.com", "Container", "1234,56", "1"),
	}

	invoices := NewInvoiceProcessor().Aggregate(lines, nil, adminCaller)

	for _, inv := range invoices {
		var sum float64
		for _, l := range inv.Lines {
			sum += l.LineTotal
		}
		if math.Abs(inv.Subtotal-sum) > epsilon {
			t.Errorf("invoice %s: subtotal %v != sum of line totals %v", inv.InvoiceNumber, inv.Subtotal, sum)
		}
		if math.Abs(inv.Total-inv.Subtotal*1.21) > epsilon {
			t.Errorf("invoice %s: total %v != subtotal*1.21 %v", inv.InvoiceNumber, inv.Total, inv.Subtotal*1.21)
		}
	}
}

func TestAggregateRoleFiltering(t *testing.T) {
	lines := []models.InvoiceLineRecord{
		line("F1", "01/01/2024", "a@x.com", "Pallet", "10", "1"),
		line("F2", "02/01/2024", "b@y.com", "Fuel", "5", "1"),
		line("F3", "03/01/2024", "c@z.com", "Container", "900", "1"),
	}

	p := NewInvoiceProcessor()

	client := p.Aggregate(lines, nil, models.Caller{Email: "b@y.com", Role: models.RoleClient})
	if len(client) != 1 {
		t.Fatalf("client: expected 1 invoice, got %d", len(client))
	}
	if client[0].CustomerEmail != "b@y.com" {
		t.Errorf("client sees an invoice owned by %q", client[0].CustomerEmail)
	}

	for _, role := range []models.Role{models.RoleAdmin, models.RoleStaff} {
		all := p.Aggregate(lines, nil, models.Caller{Email: "ops@entrans.example", Role: role})
		if len(all) != 3 {
			t.Errorf("%s: expected 3 invoices, got %d", role, len(all))
		}
	}

	// Exact-match filter is case-sensitive.
	upper := p.Aggregate(lines, nil, models.Caller{Email: "B@Y.COM", Role: models.RoleClient})
	if len(upper) != 0 {
		t.Errorf("case-insensitive match leaked %d invoices", len(upper))
	}
}

func TestAggregateMalformedNumbersCoerceToZero(t *testing.T) {
	lines := []models.InvoiceLineRecord{
		line("F1", "01/01/2024", "a@x.com", "Pallet", "abc", "2"),
		line("F1", "01/01/2024", "a@x.com", "Fuel", "5", "xyz"),
	}

	invoices, stats := NewInvoiceProcessor().AggregateWithStats(lines, nil, adminCaller)

	if len(invoices) != 1 {
		t.Fatalf("expected 1 invoice, got %d", len(invoices))
	}
	for _, l := range invoices[0].Lines {
		if l.LineTotal != 0 {
			t.Errorf("line %q: expected zero total, got %v", l.Concept, l.LineTotal)
		}
	}
	if invoices[0].Subtotal != 0 || invoices[0].Total != 0 {
		t.Errorf("expected zeroed totals, got subtotal=%v total=%v", invoices[0].Subtotal, invoices[0].Total)
	}
	if stats.ZeroedFields != 2 {
		t.Errorf("expected 2 zeroed fields, got %d", stats.ZeroedFields)
	}
}

func TestAggregateDropsRecordsWithoutInvoiceNumber(t *testing.T) {
	lines := []models.InvoiceLineRecord{
		line("", "01/01/2024", "a@x.com", "Orphan", "10", "1"),
		line("F1", "01/01/2024", "a@x.com", "Pallet", "10", "1"),
	}

	invoices, stats := NewInvoiceProcessor().AggregateWithStats(lines, nil, adminCaller)

	if len(invoices) != 1 {
		t.Fatalf("expected 1 invoice, got %d", len(invoices))
	}
	if len(invoices[0].Lines) != 1 || invoices[0].Lines[0].Concept != "Pallet" {
		t.Errorf("orphan record leaked into output: %+v", invoices[0].Lines)
	}
	if stats.DroppedLines != 1 {
		t.Errorf("expected 1 dropped line, got %d", stats.DroppedLines)
	}
}

func TestAggregateSortsByDateDescending(t *testing.T) {
	lines := []models.InvoiceLineRecord{
		line("F1", "10/01/2024", "a@x.com", "Pallet", "10", "1"),
		line("F2", "20/01/2024", "a@x.com", "Fuel", "5", "1"),
		line("F3", "05/01/2024", "a@x.com", "Container", "900", "1"),
	}

	invoices := NewInvoiceProcessor().Aggregate(lines, nil, adminCaller)

	got := []string{invoices[0].InvoiceNumber, invoices[1].InvoiceNumber, invoices[2].InvoiceNumber}
	want := []string{"F2", "F1", "F3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected order %v, got %v", want, got)
	}
}

func TestAggregateSortAcceptsISOAndEuropeanDates(t *testing.T) {
	lines := []models.InvoiceLineRecord{
		line("F1", "2024-01-10", "a@x.com", "Pallet", "10", "1"),
		line("F2", "20/01/2024", "a@x.com", "Fuel", "5", "1"),
	}

	invoices := NewInvoiceProcessor().Aggregate(lines, nil, adminCaller)

	if invoices[0].InvoiceNumber != "F2" {
		t.Errorf("expected F2 (20 Jan) before F1 (10 Jan), got %s first", invoices[0].InvoiceNumber)
	}
}

func TestAggregateUnparseableDatesKeepOrder(t *testing.T) {
	lines := []models.InvoiceLineRecord{
		line("F1", "not-a-date", "a@x.com", "Pallet", "10", "1"),
		line("F2", "also-bad", "a@x.com", "Fuel", "5", "1"),
	}

	invoices := NewInvoiceProcessor().Aggregate(lines, nil, adminCaller)

	if invoices[0].InvoiceNumber != "F1" || invoices[1].InvoiceNumber != "F2" {
		t.Errorf("unparseable dates reordered: %s, %s", invoices[0].InvoiceNumber, invoices[1].InvoiceNumber)
	}
}

func TestAggregateDirectoryFallbackAndLastWriteWins(t *testing.T) {
	lines := []models.InvoiceLineRecord{
		line("F1", "01/01/2024", "a@x.com", "Pallet", "10", "1"),
		line("F2", "02/01/2024", "ghost@x.com", "Fuel", "5", "1"),
	}
	directory := []models.CustomerDirectoryRecord{
		{CustomerEmail: "a@x.com", Company: "Old Name", TaxID: "B0", Address: "Old St"},
		{CustomerEmail: "a@x.com", Company: "Acme", TaxID: "B1", Address: "St 1"},
	}

	invoices, stats := NewInvoiceProcessor().AggregateWithStats(lines, directory, adminCaller)

	byNumber := map[string]models.Invoice{}
	for _, inv := range invoices {
		byNumber[inv.InvoiceNumber] = inv
	}

	if byNumber["F1"].Customer.Name != "Acme" || byNumber["F1"].Customer.TaxID != "B1" {
		t.Errorf("duplicate directory entry not resolved last-write-wins: %+v", byNumber["F1"].Customer)
	}
	ghost := byNumber["F2"].Customer
	if ghost.Name != "ghost@x.com" || ghost.TaxID != models.UnknownTaxID {
		t.Errorf("missing directory entry fallback wrong: %+v", ghost)
	}
	if stats.UnknownCustomers != 1 {
		t.Errorf("expected 1 unknown customer, got %d", stats.UnknownCustomers)
	}
}

func TestAggregateEmptyInputs(t *testing.T) {
	invoices := NewInvoiceProcessor().Aggregate(nil, nil, adminCaller)
	if len(invoices) != 0 {
		t.Errorf("expected empty result, got %d invoices", len(invoices))
	}
}

func TestAggregateDoesNotMutateInputs(t *testing.T) {
	lines := []models.InvoiceLineRecord{
		line("F1", "01/01/2024", "a@x.com", "Pallet", "10,50", "2"),
	}
	directory := []models.CustomerDirectoryRecord{
		{CustomerEmail: "a@x.com", Company: "Acme", TaxID: "B1", Address: "St 1"},
	}
	linesCopy := append([]models.InvoiceLineRecord(nil), lines...)
	directoryCopy := append([]models.CustomerDirectoryRecord(nil), directory...)

	NewInvoiceProcessor().Aggregate(lines, directory, adminCaller)

	if !reflect.DeepEqual(lines, linesCopy) {
		t.Errorf("line records mutated: %+v", lines)
	}
	if !reflect.DeepEqual(directory, directoryCopy) {
		t.Errorf("directory records mutated: %+v", directory)
	}
}
