package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/entrans/backend/src/logger"
	"github.com/entrans/backend/src/models"
	"github.com/entrans/backend/src/services"
	"github.com/entrans/backend/src/utils"
)

type InvoiceHandler struct {
	invoiceService services.InvoiceService
}

func NewInvoiceHandler(service services.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: service,
	}
}

// HandleGetInvoices returns the caller's invoice list, newest first.
// Admin and staff see every customer's invoices; everyone else only
// their own.
func (h *InvoiceHandler) HandleGetInvoices(w http.ResponseWriter, r *http.Request) {
	caller, ok := GetCallerFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required or caller not found in context", http.StatusUnauthorized)
		return
	}
	logger.L.Info("Handling GetInvoices", "email", caller.Email, "role", caller.Role)

	invoices, stats, err := h.invoiceService.GetInvoicesForCaller(r.Context(), caller)
	if err != nil {
		if errors.Is(err, services.ErrUpstreamFetch) {
			logger.L.Error("Upstream sheet fetch failed", "error", err)
			sendJSONError(w, "Invoice data is temporarily unavailable. Please try again.", http.StatusBadGateway)
			return
		}
		logger.L.Error("Error retrieving invoices", "email", caller.Email, "error", err)
		sendJSONError(w, "Error retrieving invoices", http.StatusInternalServerError)
		return
	}
	if stats.DroppedLines > 0 || stats.ZeroedFields > 0 || stats.UnknownCustomers > 0 {
		logger.L.Debug("Invoice aggregation degraded some input",
			"droppedLines", stats.DroppedLines,
			"zeroedFields", stats.ZeroedFields,
			"unknownCustomers", stats.UnknownCustomers)
	}
	if invoices == nil {
		invoices = []models.Invoice{} // Ensure an empty array is sent if no data
	}

	etag, err := utils.GenerateETag(invoices)
	if err == nil {
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(invoices); err != nil {
		logger.L.Error("Error encoding invoices to JSON", "email", caller.Email, "error", err)
	}
}

// HandleGetInvoice returns one invoice by number. Invoices outside the
// caller's visibility return 404, same as absent ones.
func (h *InvoiceHandler) HandleGetInvoice(w http.ResponseWriter, r *http.Request) {
	caller, ok := GetCallerFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required or caller not found in context", http.StatusUnauthorized)
		return
	}

	invoiceNumber := r.PathValue("number")
	if invoiceNumber == "" {
		sendJSONError(w, "invoice number required", http.StatusBadRequest)
		return
	}

	invoice, err := h.invoiceService.GetInvoiceByNumber(r.Context(), caller, invoiceNumber)
	if err != nil {
		if errors.Is(err, services.ErrUpstreamFetch) {
			sendJSONError(w, "Invoice data is temporarily unavailable. Please try again.", http.StatusBadGateway)
			return
		}
		logger.L.Error("Error retrieving invoice", "number", invoiceNumber, "error", err)
		sendJSONError(w, "Error retrieving invoice", http.StatusInternalServerError)
		return
	}
	if invoice == nil {
		sendJSONError(w, "invoice not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(invoice); err != nil {
		logger.L.Error("Error encoding invoice to JSON", "number", invoiceNumber, "error", err)
	}
}
