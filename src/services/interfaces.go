package services

import (
	"context"
	"errors"

	"github.com/entrans/backend/src/models"
	"github.com/entrans/backend/src/processors"
)

// ErrUpstreamFetch wraps any failure of the sheet data service. Handlers
// must surface it distinctly; aggregation is never run on partial data.
var ErrUpstreamFetch = errors.New("upstream sheet fetch failed")

// ErrAssistantUnavailable is returned when the AI proxy is not configured.
var ErrAssistantUnavailable = errors.New("assistant service unavailable")

// RecordFetcher is the tabular-data collaborator serving the two logical
// sheets. Implemented by sheetdb.Client.
type RecordFetcher interface {
	FetchInvoiceLines(ctx context.Context, sheetName string) ([]models.InvoiceLineRecord, error)
	FetchCustomerDirectory(ctx context.Context, sheetName string) ([]models.CustomerDirectoryRecord, error)
}

// InvoiceService fetches the two sheet snapshots and aggregates them
// into the caller's invoice view.
type InvoiceService interface {
	GetInvoicesForCaller(ctx context.Context, caller models.Caller) ([]models.Invoice, processors.AggregationStats, error)
	GetInvoiceByNumber(ctx context.Context, caller models.Caller, invoiceNumber string) (*models.Invoice, error)
	InvalidateSnapshots()
}

// AssistantMessage is one chat turn relayed to the language-model API.
type AssistantMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AssistantService proxies chat completions for the two assistant
// endpoints. The system prompt is fixed per endpoint and never accepted
// from the client.
type AssistantService interface {
	Complete(ctx context.Context, systemPrompt string, messages []AssistantMessage) (string, error)
}

// EmailService covers all transactional mail the application sends.
type EmailService interface {
	SendVerificationEmail(toEmail, username, token string) error
	SendPasswordResetEmail(toEmail, username, token string) error
	SendOfferNotification(toEmail, reference string, price float64, currency string) error
	SendContactMessage(fromEmail, name, message string) error
}
