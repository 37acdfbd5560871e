package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/entrans/backend/src/database"
	"github.com/entrans/backend/src/logger"
	"github.com/entrans/backend/src/models"
	"github.com/entrans/backend/src/security/validation"
	"github.com/google/uuid"
)

type TrackingHandler struct{}

func NewTrackingHandler() *TrackingHandler {
	return &TrackingHandler{}
}

func validShipmentStatus(status string) bool {
	switch status {
	case models.ShipmentStatusRegistered, models.ShipmentStatusInTransit,
		models.ShipmentStatusDelivered, models.ShipmentStatusIncident:
		return true
	}
	return false
}

func loadTrackingEvents(shipmentID int64) ([]models.TrackingEvent, error) {
	rows, err := database.DB.Query(`
		SELECT id, shipment_id, status, COALESCE(location, ''), COALESCE(note, ''), occurred_at
		FROM tracking_events WHERE shipment_id = ? ORDER BY occurred_at ASC, id ASC`, shipmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.TrackingEvent{}
	for rows.Next() {
		var ev models.TrackingEvent
		if err := rows.Scan(&ev.ID, &ev.ShipmentID, &ev.Status, &ev.Location, &ev.Note, &ev.OccurredAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// HandleTrack is the public tracking lookup. The tracking code is
// unguessable, so no authentication is required.
func (h *TrackingHandler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.PathValue("code"))
	if code == "" {
		sendJSONError(w, "tracking code is required", http.StatusBadRequest)
		return
	}

	var s models.Shipment
	err := database.DB.QueryRow(`
		SELECT id, tracking_code, COALESCE(request_id, 0), customer_email, origin, destination, status, created_at, updated_at
		FROM shipments WHERE tracking_code = ?`, code).
		Scan(&s.ID, &s.TrackingCode, &s.RequestID, &s.CustomerEmail, &s.Origin, &s.Destination, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			sendJSONError(w, "shipment not found", http.StatusNotFound)
		} else {
			logger.L.Error("Failed to load shipment", "trackingCode", code, "error", err)
			sendJSONError(w, "Failed to load shipment", http.StatusInternalServerError)
		}
		return
	}

	// Public view omits the customer email.
	s.CustomerEmail = ""
	s.Events, err = loadTrackingEvents(s.ID)
	if err != nil {
		logger.L.Error("Failed to load tracking events", "shipmentID", s.ID, "error", err)
		sendJSONError(w, "Failed to load shipment", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}

func (h *TrackingHandler) HandleCreateShipment(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		RequestID     int64  `json:"request_id"`
		CustomerEmail string `json:"customer_email"`
		Origin        string `json:"origin"`
		Destination   string `json:"destination"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	payload.Origin = strings.TrimSpace(payload.Origin)
	payload.Destination = strings.TrimSpace(payload.Destination)
	if payload.Origin == "" || payload.Destination == "" {
		sendJSONError(w, "origin and destination are required", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateEmail(payload.CustomerEmail); err != nil {
		sendJSONError(w, "a valid customer_email is required", http.StatusBadRequest)
		return
	}

	code := uuid.NewString()
	dbTx, err := database.DB.Begin()
	if err != nil {
		sendJSONError(w, "Failed to create shipment", http.StatusInternalServerError)
		return
	}
	defer dbTx.Rollback()

	var requestID interface{}
	if payload.RequestID > 0 {
		requestID = payload.RequestID
	}
	res, err := dbTx.Exec(`
		INSERT INTO shipments (tracking_code, request_id, customer_email, origin, destination, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		code, requestID, payload.CustomerEmail, payload.Origin, payload.Destination, models.ShipmentStatusRegistered)
	if err != nil {
		logger.L.Error("Failed to insert shipment", "error", err)
		sendJSONError(w, "Failed to create shipment", http.StatusInternalServerError)
		return
	}
	shipmentID, _ := res.LastInsertId()
	if _, err := dbTx.Exec(`INSERT INTO tracking_events (shipment_id, status, location, note) VALUES (?, ?, ?, ?)`,
		shipmentID, models.ShipmentStatusRegistered, payload.Origin, "Shipment registered"); err != nil {
		sendJSONError(w, "Failed to create shipment", http.StatusInternalServerError)
		return
	}
	if payload.RequestID > 0 {
		if _, err := dbTx.Exec(`UPDATE transport_requests SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			models.RequestStatusCompleted, payload.RequestID); err != nil {
			sendJSONError(w, "Failed to create shipment", http.StatusInternalServerError)
			return
		}
	}
	if err := dbTx.Commit(); err != nil {
		sendJSONError(w, "Failed to create shipment", http.StatusInternalServerError)
		return
	}

	logger.L.Info("Shipment created", "shipmentID", shipmentID, "trackingCode", code)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":            shipmentID,
		"tracking_code": code,
		"status":        models.ShipmentStatusRegistered,
	})
}

// HandleAddEvent appends a tracking event and mirrors its status onto
// the shipment row.
func (h *TrackingHandler) HandleAddEvent(w http.ResponseWriter, r *http.Request) {
	shipmentID, err := parseIDPathValue(r, "id")
	if err != nil {
		sendJSONError(w, "invalid shipment id", http.StatusBadRequest)
		return
	}

	var payload struct {
		Status   string `json:"status"`
		Location string `json:"location"`
		Note     string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !validShipmentStatus(payload.Status) {
		sendJSONError(w, "unknown shipment status", http.StatusBadRequest)
		return
	}
	payload.Location = strings.TrimSpace(payload.Location)
	payload.Note = validation.StripUnprintable(strings.TrimSpace(payload.Note))

	var currentStatus string
	if err := database.DB.QueryRow(`SELECT status FROM shipments WHERE id = ?`, shipmentID).Scan(&currentStatus); err != nil {
		if err == sql.ErrNoRows {
			sendJSONError(w, "shipment not found", http.StatusNotFound)
		} else {
			logger.L.Error("Failed to load shipment", "shipmentID", shipmentID, "error", err)
			sendJSONError(w, "Failed to load shipment", http.StatusInternalServerError)
		}
		return
	}
	if currentStatus == models.ShipmentStatusDelivered {
		sendJSONError(w, "shipment has already been delivered", http.StatusConflict)
		return
	}

	dbTx, err := database.DB.Begin()
	if err != nil {
		sendJSONError(w, "Failed to add tracking event", http.StatusInternalServerError)
		return
	}
	defer dbTx.Rollback()

	res, err := dbTx.Exec(`INSERT INTO tracking_events (shipment_id, status, location, note) VALUES (?, ?, ?, ?)`,
		shipmentID, payload.Status, payload.Location, payload.Note)
	if err != nil {
		logger.L.Error("Failed to insert tracking event", "shipmentID", shipmentID, "error", err)
		sendJSONError(w, "Failed to add tracking event", http.StatusInternalServerError)
		return
	}
	if _, err := dbTx.Exec(`UPDATE shipments SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		payload.Status, shipmentID); err != nil {
		sendJSONError(w, "Failed to add tracking event", http.StatusInternalServerError)
		return
	}
	if err := dbTx.Commit(); err != nil {
		sendJSONError(w, "Failed to add tracking event", http.StatusInternalServerError)
		return
	}
	eventID, _ := res.LastInsertId()

	logger.L.Info("Tracking event added", "shipmentID", shipmentID, "eventID", eventID, "status", payload.Status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{"id": eventID, "shipment_id": shipmentID, "status": payload.Status})
}
