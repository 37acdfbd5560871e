package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/entrans/backend/src/logger"
	"github.com/entrans/backend/src/models"
	"github.com/entrans/backend/src/processors"
	"github.com/entrans/backend/src/services"
)

func init() {
	logger.L = slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubInvoiceService struct {
	invoices []models.Invoice
	stats    processors.AggregationStats
	single   *models.Invoice
	err      error
}

func (s *stubInvoiceService) GetInvoicesForCaller(_ context.Context, _ models.Caller) ([]models.Invoice, processors.AggregationStats, error) {
	return s.invoices, s.stats, s.err
}

func (s *stubInvoiceService) GetInvoiceByNumber(_ context.Context, _ models.Caller, _ string) (*models.Invoice, error) {
	return s.single, s.err
}

func (s *stubInvoiceService) InvalidateSnapshots() {}

func requestWithCaller(method, target string, caller models.Caller) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	ctx := context.WithValue(req.Context(), callerContextKey, caller)
	return req.WithContext(ctx)
}

func TestHandleGetInvoices(t *testing.T) {
	invoices := []models.Invoice{
		{InvoiceNumber: "F2", Date: "2024-02-01", Subtotal: 100, Tax: 21, Total: 121},
		{InvoiceNumber: "F1", Date: "2024-01-15", Subtotal: 50, Tax: 10.5, Total: 60.5},
	}
	handler := NewInvoiceHandler(&stubInvoiceService{invoices: invoices})

	req := requestWithCaller("GET", "/api/invoices", models.Caller{Email: "staff@entrans.eu", Role: models.RoleStaff})
	rr := httptest.NewRecorder()
	handler.HandleGetInvoices(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d, body: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("ETag") == "" {
		t.Error("expected an ETag header on the invoice list")
	}

	var got []models.Invoice
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 2 || got[0].InvoiceNumber != "F2" {
		t.Errorf("unexpected invoice list: %+v", got)
	}
}

func TestHandleGetInvoices_NotModified(t *testing.T) {
	handler := NewInvoiceHandler(&stubInvoiceService{invoices: []models.Invoice{{InvoiceNumber: "F1"}}})
	caller := models.Caller{Email: "client@example.com", Role: models.RoleClient}

	first := httptest.NewRecorder()
	handler.HandleGetInvoices(first, requestWithCaller("GET", "/api/invoices", caller))
	etag := first.Header().Get("ETag")
	if etag == "" {
		t.Fatal("expected an ETag header on the first response")
	}

	req := requestWithCaller("GET", "/api/invoices", caller)
	req.Header.Set("If-None-Match", etag)
	second := httptest.NewRecorder()
	handler.HandleGetInvoices(second, req)

	if second.Code != http.StatusNotModified {
		t.Errorf("expected status 304 with matching ETag, got %d", second.Code)
	}
}

func TestHandleGetInvoices_EmptyIsArray(t *testing.T) {
	handler := NewInvoiceHandler(&stubInvoiceService{})
	rr := httptest.NewRecorder()
	handler.HandleGetInvoices(rr, requestWithCaller("GET", "/api/invoices", models.Caller{Email: "client@example.com", Role: models.RoleClient}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if body := strings.TrimSpace(rr.Body.String()); body != "[]" {
		t.Errorf("expected empty JSON array, got %q", body)
	}
}

func TestHandleGetInvoices_UpstreamFailure(t *testing.T) {
	handler := NewInvoiceHandler(&stubInvoiceService{
		err: fmt.Errorf("%w: sheet service down", services.ErrUpstreamFetch),
	})
	rr := httptest.NewRecorder()
	handler.HandleGetInvoices(rr, requestWithCaller("GET", "/api/invoices", models.Caller{Email: "client@example.com", Role: models.RoleClient}))

	if rr.Code != http.StatusBadGateway {
		t.Errorf("expected status 502 on upstream failure, got %d", rr.Code)
	}
}

func TestHandleGetInvoices_MissingCaller(t *testing.T) {
	handler := NewInvoiceHandler(&stubInvoiceService{})
	rr := httptest.NewRecorder()
	handler.HandleGetInvoices(rr, httptest.NewRequest("GET", "/api/invoices", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 without caller context, got %d", rr.Code)
	}
}

func TestHandleGetInvoice(t *testing.T) {
	handler := NewInvoiceHandler(&stubInvoiceService{
		single: &models.Invoice{InvoiceNumber: "F1", Subtotal: 26, Tax: 5.46, Total: 31.46},
	})
	req := requestWithCaller("GET", "/api/invoices/F1", models.Caller{Email: "client@example.com", Role: models.RoleClient})
	req.SetPathValue("number", "F1")
	rr := httptest.NewRecorder()
	handler.HandleGetInvoice(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d, body: %s", rr.Code, rr.Body.String())
	}
	var got models.Invoice
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.InvoiceNumber != "F1" || got.Total != 31.46 {
		t.Errorf("unexpected invoice: %+v", got)
	}
}

func TestHandleGetInvoice_NotFound(t *testing.T) {
	handler := NewInvoiceHandler(&stubInvoiceService{single: nil})
	req := requestWithCaller("GET", "/api/invoices/F9", models.Caller{Email: "client@example.com", Role: models.RoleClient})
	req.SetPathValue("number", "F9")
	rr := httptest.NewRecorder()
	handler.HandleGetInvoice(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404 for absent invoice, got %d", rr.Code)
	}
}
