package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/entrans/backend/src/logger"
	"github.com/entrans/backend/src/models"
	"github.com/entrans/backend/src/processors"
	"github.com/patrickmn/go-cache"
)

func init() {
	logger.L = slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubFetcher struct {
	lines      []models.InvoiceLineRecord
	directory  []models.CustomerDirectoryRecord
	linesErr   error
	dirErr     error
	linesCalls int
	dirCalls   int
}

func (f *stubFetcher) FetchInvoiceLines(ctx context.Context, sheetName string) ([]models.InvoiceLineRecord, error) {
	f.linesCalls++
	return f.lines, f.linesErr
}

func (f *stubFetcher) FetchCustomerDirectory(ctx context.Context, sheetName string) ([]models.CustomerDirectoryRecord, error) {
	f.dirCalls++
	return f.directory, f.dirErr
}

func newTestService(fetcher RecordFetcher) InvoiceService {
	return NewInvoiceService(
		fetcher,
		processors.NewInvoiceProcessor(),
		cache.New(5*time.Minute, 10*time.Minute),
		"facturas",
		"clientes",
	)
}

func TestGetInvoicesForCaller(t *testing.T) {
	fetcher := &stubFetcher{
		lines: []models.InvoiceLineRecord{
			{InvoiceNumber: "F1", Date: "01/01/2024", CustomerEmail: "a@x.com", Concept: "Pallet", UnitPrice: "10,50", Quantity: "2"},
		},
		directory: []models.CustomerDirectoryRecord{
			{CustomerEmail: "a@x.com", Company: "Acme", TaxID: "B1", Address: "St 1"},
		},
	}
	svc := newTestService(fetcher)

	invoices, _, err := svc.GetInvoicesForCaller(context.Background(), models.Caller{Email: "a@x.com", Role: models.RoleClient})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(invoices) != 1 {
		t.Fatalf("expected 1 invoice, got %d", len(invoices))
	}
	if invoices[0].Customer.Name != "Acme" {
		t.Errorf("expected joined customer name Acme, got %q", invoices[0].Customer.Name)
	}
}

func TestGetInvoicesFailsIfEitherFetchFails(t *testing.T) {
	for name, fetcher := range map[string]*stubFetcher{
		"lines":     {linesErr: errors.New("boom")},
		"directory": {dirErr: errors.New("boom")},
	} {
		svc := newTestService(fetcher)
		_, _, err := svc.GetInvoicesForCaller(context.Background(), models.Caller{Email: "a@x.com", Role: models.RoleAdmin})
		if !errors.Is(err, ErrUpstreamFetch) {
			t.Errorf("%s fetch failure: expected ErrUpstreamFetch, got %v", name, err)
		}
	}
}

func TestGetInvoicesUsesSnapshotCache(t *testing.T) {
	fetcher := &stubFetcher{
		lines: []models.InvoiceLineRecord{
			{InvoiceNumber: "F1", Date: "01/01/2024", CustomerEmail: "a@x.com", Concept: "Pallet", UnitPrice: "10", Quantity: "1"},
		},
	}
	svc := newTestService(fetcher)
	caller := models.Caller{Email: "ops@entrans.example", Role: models.RoleStaff}

	if _, _, err := svc.GetInvoicesForCaller(context.Background(), caller); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if _, _, err := svc.GetInvoicesForCaller(context.Background(), caller); err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if fetcher.linesCalls != 1 || fetcher.dirCalls != 1 {
		t.Errorf("expected 1 upstream fetch per sheet, got lines=%d directory=%d", fetcher.linesCalls, fetcher.dirCalls)
	}

	svc.InvalidateSnapshots()
	if _, _, err := svc.GetInvoicesForCaller(context.Background(), caller); err != nil {
		t.Fatalf("post-invalidation call failed: %v", err)
	}
	if fetcher.linesCalls != 2 {
		t.Errorf("expected refetch after invalidation, got lines=%d", fetcher.linesCalls)
	}
}

func TestGetInvoiceByNumber(t *testing.T) {
	fetcher := &stubFetcher{
		lines: []models.InvoiceLineRecord{
			{InvoiceNumber: "F1", Date: "01/01/2024", CustomerEmail: "a@x.com", Concept: "Pallet", UnitPrice: "10", Quantity: "1"},
			{InvoiceNumber: "F2", Date: "02/01/2024", CustomerEmail: "b@y.com", Concept: "Fuel", UnitPrice: "5", Quantity: "1"},
		},
	}
	svc := newTestService(fetcher)

	inv, err := svc.GetInvoiceByNumber(context.Background(), models.Caller{Email: "a@x.com", Role: models.RoleClient}, "F1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv == nil || inv.InvoiceNumber != "F1" {
		t.Fatalf("expected invoice F1, got %+v", inv)
	}

	// Another customer's invoice is invisible, same as absent.
	hidden, err := svc.GetInvoiceByNumber(context.Background(), models.Caller{Email: "a@x.com", Role: models.RoleClient}, "F2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hidden != nil {
		t.Errorf("expected nil for invisible invoice, got %+v", hidden)
	}
}
