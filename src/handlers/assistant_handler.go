package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/entrans/backend/src/logger"
	"github.com/entrans/backend/src/services"
)

const (
	quotePrompt = "You are a freight quoting assistant for a road transport brokerage. " +
		"Given a shipment description, estimate a fair price range in EUR and list the " +
		"details still missing for an exact quote. Be concise and never promise a binding price."

	supportPrompt = "You are a customer support assistant for a road transport brokerage. " +
		"Answer questions about shipments, invoices and transport requests. If the question " +
		"needs account specific data you do not have, tell the customer to contact the office."
)

type AssistantHandler struct {
	assistantService services.AssistantService
}

func NewAssistantHandler(assistantService services.AssistantService) *AssistantHandler {
	return &AssistantHandler{
		assistantService: assistantService,
	}
}

type assistantRequest struct {
	Message string                      `json:"message"`
	History []services.AssistantMessage `json:"history"`
}

func (h *AssistantHandler) handle(w http.ResponseWriter, r *http.Request, systemPrompt string) {
	var payload assistantRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if payload.Message == "" {
		sendJSONError(w, "message is required", http.StatusBadRequest)
		return
	}

	messages := append(payload.History, services.AssistantMessage{Role: "user", Content: payload.Message})
	reply, err := h.assistantService.Complete(r.Context(), systemPrompt, messages)
	if err != nil {
		if errors.Is(err, services.ErrAssistantUnavailable) {
			sendJSONError(w, "assistant is not available", http.StatusServiceUnavailable)
			return
		}
		logger.L.Error("Assistant completion failed", "error", err)
		sendJSONError(w, "assistant request failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"reply": reply})
}

func (h *AssistantHandler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, quotePrompt)
}

func (h *AssistantHandler) HandleSupport(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, supportPrompt)
}
