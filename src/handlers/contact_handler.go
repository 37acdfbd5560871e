package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/entrans/backend/src/logger"
	"github.com/entrans/backend/src/security/validation"
	"github.com/entrans/backend/src/services"
)

type ContactHandler struct {
	emailService services.EmailService
}

func NewContactHandler(emailService services.EmailService) *ContactHandler {
	return &ContactHandler{
		emailService: emailService,
	}
}

func (h *ContactHandler) HandleContact(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	payload.Name = validation.StripUnprintable(strings.TrimSpace(payload.Name))
	payload.Message = validation.StripUnprintable(strings.TrimSpace(payload.Message))
	if err := validation.ValidateEmail(payload.Email); err != nil {
		sendJSONError(w, "a valid email is required", http.StatusBadRequest)
		return
	}
	if payload.Name == "" || payload.Message == "" {
		sendJSONError(w, "name and message are required", http.StatusBadRequest)
		return
	}

	if err := h.emailService.SendContactMessage(payload.Email, payload.Name, payload.Message); err != nil {
		logger.L.Error("Failed to forward contact message", "error", err)
		sendJSONError(w, "Failed to send message", http.StatusInternalServerError)
		return
	}

	logger.L.Info("Contact message forwarded", "fromEmail", payload.Email)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Your message has been sent."})
}
