package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/entrans/backend/src/database"
	"github.com/entrans/backend/src/logger"
	"github.com/entrans/backend/src/models"
	"github.com/entrans/backend/src/security/validation"
	"github.com/entrans/backend/src/services"
	"github.com/google/uuid"
)

type RequestHandler struct {
	emailService services.EmailService
}

func NewRequestHandler(emailService services.EmailService) *RequestHandler {
	return &RequestHandler{
		emailService: emailService,
	}
}

func (h *RequestHandler) HandleCreateRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	caller, callerOK := GetCallerFromContext(r.Context())
	if !ok || !callerOK {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var payload struct {
		Origin           string  `json:"origin"`
		Destination      string  `json:"destination"`
		CargoDescription string  `json:"cargo_description"`
		WeightKg         float64 `json:"weight_kg"`
		PickupDate       string  `json:"pickup_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	payload.Origin = strings.TrimSpace(payload.Origin)
	payload.Destination = strings.TrimSpace(payload.Destination)
	payload.CargoDescription = validation.StripUnprintable(strings.TrimSpace(payload.CargoDescription))
	if payload.Origin == "" || payload.Destination == "" || payload.CargoDescription == "" {
		sendJSONError(w, "origin, destination and cargo_description are required", http.StatusBadRequest)
		return
	}
	if payload.WeightKg < 0 {
		sendJSONError(w, "weight_kg must not be negative", http.StatusBadRequest)
		return
	}

	res, err := database.DB.Exec(`
		INSERT INTO transport_requests (user_id, customer_email, origin, destination, cargo_description, weight_kg, pickup_date, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, caller.Email, payload.Origin, payload.Destination, payload.CargoDescription, payload.WeightKg, payload.PickupDate, models.RequestStatusPending)
	if err != nil {
		logger.L.Error("Failed to insert transport request", "userID", userID, "error", err)
		sendJSONError(w, "Failed to create transport request", http.StatusInternalServerError)
		return
	}
	id, _ := res.LastInsertId()

	logger.L.Info("Transport request created", "requestID", id, "userID", userID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{"id": id, "status": models.RequestStatusPending})
}

const requestColumns = `id, user_id, customer_email, origin, destination, cargo_description, COALESCE(weight_kg, 0), COALESCE(pickup_date, ''), status, created_at, updated_at`

func scanRequest(scanner interface{ Scan(...interface{}) error }) (models.TransportRequest, error) {
	var req models.TransportRequest
	err := scanner.Scan(&req.ID, &req.UserID, &req.CustomerEmail, &req.Origin, &req.Destination,
		&req.CargoDescription, &req.WeightKg, &req.PickupDate, &req.Status, &req.CreatedAt, &req.UpdatedAt)
	return req, err
}

func (h *RequestHandler) HandleListRequests(w http.ResponseWriter, r *http.Request) {
	caller, ok := GetCallerFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var (
		rows *sql.Rows
		err  error
	)
	if caller.Role.SeesAllRecords() {
		rows, err = database.DB.Query(`SELECT ` + requestColumns + ` FROM transport_requests ORDER BY created_at DESC, id DESC`)
	} else {
		rows, err = database.DB.Query(`SELECT `+requestColumns+` FROM transport_requests WHERE customer_email = ? ORDER BY created_at DESC, id DESC`, caller.Email)
	}
	if err != nil {
		logger.L.Error("Failed to query transport requests", "error", err)
		sendJSONError(w, "Failed to list transport requests", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	requests := []models.TransportRequest{}
	for rows.Next() {
		req, scanErr := scanRequest(rows)
		if scanErr != nil {
			logger.L.Error("Failed to scan transport request", "error", scanErr)
			sendJSONError(w, "Failed to list transport requests", http.StatusInternalServerError)
			return
		}
		requests = append(requests, req)
	}
	if err = rows.Err(); err != nil {
		sendJSONError(w, "Failed to list transport requests", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(requests)
}

// getVisibleRequest loads a request and enforces the ownership gate.
// The second result is false when a response has already been written.
func getVisibleRequest(w http.ResponseWriter, r *http.Request, requestID int64) (models.TransportRequest, bool) {
	caller, ok := GetCallerFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return models.TransportRequest{}, false
	}

	req, err := scanRequest(database.DB.QueryRow(`SELECT `+requestColumns+` FROM transport_requests WHERE id = ?`, requestID))
	if err != nil {
		if err == sql.ErrNoRows {
			sendJSONError(w, "transport request not found", http.StatusNotFound)
		} else {
			logger.L.Error("Failed to load transport request", "requestID", requestID, "error", err)
			sendJSONError(w, "Failed to load transport request", http.StatusInternalServerError)
		}
		return models.TransportRequest{}, false
	}

	if !models.CanViewRecords(caller, req.CustomerEmail) {
		// Indistinguishable from absent, so ids cannot be probed.
		sendJSONError(w, "transport request not found", http.StatusNotFound)
		return models.TransportRequest{}, false
	}
	return req, true
}

func parseIDPathValue(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

func (h *RequestHandler) HandleGetRequest(w http.ResponseWriter, r *http.Request) {
	requestID, err := parseIDPathValue(r, "id")
	if err != nil {
		sendJSONError(w, "invalid request id", http.StatusBadRequest)
		return
	}
	req, ok := getVisibleRequest(w, r, requestID)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(req)
}

func (h *RequestHandler) HandleCreateOffer(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	requestID, err := parseIDPathValue(r, "id")
	if err != nil {
		sendJSONError(w, "invalid request id", http.StatusBadRequest)
		return
	}
	req, ok := getVisibleRequest(w, r, requestID)
	if !ok {
		return
	}
	if req.Status == models.RequestStatusAccepted || req.Status == models.RequestStatusCompleted {
		sendJSONError(w, "request already has an accepted offer", http.StatusConflict)
		return
	}

	var payload struct {
		Price        float64 `json:"price"`
		Currency     string  `json:"currency"`
		ValidUntil   string  `json:"valid_until"`
		CarrierNotes string  `json:"carrier_notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if payload.Price <= 0 {
		sendJSONError(w, "price must be positive", http.StatusBadRequest)
		return
	}
	if payload.Currency == "" {
		payload.Currency = "EUR"
	}

	reference := uuid.NewString()
	dbTx, err := database.DB.Begin()
	if err != nil {
		sendJSONError(w, "Failed to create offer", http.StatusInternalServerError)
		return
	}
	defer dbTx.Rollback()

	res, err := dbTx.Exec(`
		INSERT INTO offers (request_id, reference, price, currency, valid_until, carrier_notes, status, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		requestID, reference, payload.Price, payload.Currency, payload.ValidUntil,
		validation.StripUnprintable(payload.CarrierNotes), models.OfferStatusPending, userID)
	if err != nil {
		logger.L.Error("Failed to insert offer", "requestID", requestID, "error", err)
		sendJSONError(w, "Failed to create offer", http.StatusInternalServerError)
		return
	}
	if _, err := dbTx.Exec(`UPDATE transport_requests SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		models.RequestStatusQuoted, requestID); err != nil {
		sendJSONError(w, "Failed to create offer", http.StatusInternalServerError)
		return
	}
	if err := dbTx.Commit(); err != nil {
		sendJSONError(w, "Failed to create offer", http.StatusInternalServerError)
		return
	}
	offerID, _ := res.LastInsertId()

	if err := h.emailService.SendOfferNotification(req.CustomerEmail, reference, payload.Price, payload.Currency); err != nil {
		logger.L.Error("Failed to send offer notification", "offerID", offerID, "error", err)
	}

	logger.L.Info("Offer created", "offerID", offerID, "requestID", requestID, "reference", reference)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{"id": offerID, "reference": reference, "status": models.OfferStatusPending})
}

func (h *RequestHandler) HandleListOffers(w http.ResponseWriter, r *http.Request) {
	requestID, err := parseIDPathValue(r, "id")
	if err != nil {
		sendJSONError(w, "invalid request id", http.StatusBadRequest)
		return
	}
	if _, ok := getVisibleRequest(w, r, requestID); !ok {
		return
	}

	rows, err := database.DB.Query(`
		SELECT id, request_id, reference, price, currency, COALESCE(valid_until, ''), COALESCE(carrier_notes, ''), status, created_by, created_at
		FROM offers WHERE request_id = ? ORDER BY created_at DESC, id DESC`, requestID)
	if err != nil {
		logger.L.Error("Failed to query offers", "requestID", requestID, "error", err)
		sendJSONError(w, "Failed to list offers", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	offers := []models.Offer{}
	for rows.Next() {
		var o models.Offer
		if scanErr := rows.Scan(&o.ID, &o.RequestID, &o.Reference, &o.Price, &o.Currency, &o.ValidUntil, &o.CarrierNotes, &o.Status, &o.CreatedBy, &o.CreatedAt); scanErr != nil {
			sendJSONError(w, "Failed to list offers", http.StatusInternalServerError)
			return
		}
		offers = append(offers, o)
	}
	if err = rows.Err(); err != nil {
		sendJSONError(w, "Failed to list offers", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(offers)
}

// resolveOffer decides an offer: accepting also rejects the request's
// other pending offers and marks the request accepted.
func (h *RequestHandler) resolveOffer(w http.ResponseWriter, r *http.Request, accept bool) {
	caller, ok := GetCallerFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	offerID, err := parseIDPathValue(r, "id")
	if err != nil {
		sendJSONError(w, "invalid offer id", http.StatusBadRequest)
		return
	}

	var (
		requestID     int64
		offerStatus   string
		customerEmail string
	)
	err = database.DB.QueryRow(`
		SELECT o.request_id, o.status, t.customer_email
		FROM offers o JOIN transport_requests t ON t.id = o.request_id
		WHERE o.id = ?`, offerID).Scan(&requestID, &offerStatus, &customerEmail)
	if err != nil {
		if err == sql.ErrNoRows {
			sendJSONError(w, "offer not found", http.StatusNotFound)
		} else {
			logger.L.Error("Failed to load offer", "offerID", offerID, "error", err)
			sendJSONError(w, "Failed to load offer", http.StatusInternalServerError)
		}
		return
	}

	// Only the owning customer decides; staff relay decisions through
	// the customer, they do not accept on their behalf.
	if caller.Email != customerEmail {
		sendJSONError(w, "offer not found", http.StatusNotFound)
		return
	}
	if offerStatus != models.OfferStatusPending {
		sendJSONError(w, "offer has already been decided", http.StatusConflict)
		return
	}

	dbTx, err := database.DB.Begin()
	if err != nil {
		sendJSONError(w, "Failed to update offer", http.StatusInternalServerError)
		return
	}
	defer dbTx.Rollback()

	if accept {
		if _, err := dbTx.Exec(`UPDATE offers SET status = ? WHERE id = ?`, models.OfferStatusAccepted, offerID); err != nil {
			sendJSONError(w, "Failed to update offer", http.StatusInternalServerError)
			return
		}
		if _, err := dbTx.Exec(`UPDATE offers SET status = ? WHERE request_id = ? AND id != ? AND status = ?`,
			models.OfferStatusRejected, requestID, offerID, models.OfferStatusPending); err != nil {
			sendJSONError(w, "Failed to update offer", http.StatusInternalServerError)
			return
		}
		if _, err := dbTx.Exec(`UPDATE transport_requests SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			models.RequestStatusAccepted, requestID); err != nil {
			sendJSONError(w, "Failed to update offer", http.StatusInternalServerError)
			return
		}
	} else {
		if _, err := dbTx.Exec(`UPDATE offers SET status = ? WHERE id = ?`, models.OfferStatusRejected, offerID); err != nil {
			sendJSONError(w, "Failed to update offer", http.StatusInternalServerError)
			return
		}
	}
	if err := dbTx.Commit(); err != nil {
		sendJSONError(w, "Failed to update offer", http.StatusInternalServerError)
		return
	}

	status := models.OfferStatusRejected
	if accept {
		status = models.OfferStatusAccepted
	}
	logger.L.Info("Offer decided", "offerID", offerID, "requestID", requestID, "status", status)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"id": offerID, "status": status})
}

func (h *RequestHandler) HandleAcceptOffer(w http.ResponseWriter, r *http.Request) {
	h.resolveOffer(w, r, true)
}

func (h *RequestHandler) HandleRejectOffer(w http.ResponseWriter, r *http.Request) {
	h.resolveOffer(w, r, false)
}
