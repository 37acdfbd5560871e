package sheetdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchInvoiceLines(t *testing.T) {
	var gotSheet, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSheet = r.URL.Query().Get("sheet")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"invoiceNumber":"F1","date":"01/01/2024","customerEmail":"a@x.com","concept":"Pallet","unitPrice":"10,50","quantity":"2","extraColumn":"ignored"},
			{"invoiceNumber":"F2","date":"02/01/2024","customerEmail":"b@y.com","concept":"Fuel","unitPrice":"5","quantity":"1"}
		]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret-key", 5*time.Second)
	records, err := client.FetchInvoiceLines(context.Background(), "facturas")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotSheet != "facturas" {
		t.Errorf("expected sheet query parameter 'facturas', got %q", gotSheet)
	}
	if gotAuth != "Bearer secret-key" {
		t.Errorf("expected bearer auth header, got %q", gotAuth)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].InvoiceNumber != "F1" || records[0].UnitPrice != "10,50" {
		t.Errorf("unexpected first record: %+v", records[0])
	}
}

func TestFetchCustomerDirectory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"customerEmail":"a@x.com","company":"Acme","taxId":"B1","address":"St 1"}]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second)
	records, err := client.FetchCustomerDirectory(context.Background(), "clientes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].Company != "Acme" {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestFetchSheetNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second)
	if _, err := client.FetchInvoiceLines(context.Background(), "facturas"); err == nil {
		t.Fatal("expected error on 502 response, got nil")
	}
}

func TestFetchSheetUnconfiguredBaseURL(t *testing.T) {
	client := NewClient("", "", 5*time.Second)
	if _, err := client.FetchInvoiceLines(context.Background(), "facturas"); err == nil {
		t.Fatal("expected error when base URL is not configured, got nil")
	}
}
