package models

import "time"

// Shipment statuses follow the order a consignment moves through; the
// latest tracking event's status is mirrored onto the shipment row.
const (
	ShipmentStatusRegistered = "registered"
	ShipmentStatusInTransit  = "in_transit"
	ShipmentStatusDelivered  = "delivered"
	ShipmentStatusIncident   = "incident"
)

// Shipment is a consignment addressable by its public tracking code.
type Shipment struct {
	ID            int64           `json:"id"`
	TrackingCode  string          `json:"tracking_code"`
	RequestID     int64           `json:"request_id,omitempty"`
	CustomerEmail string          `json:"customer_email"`
	Origin        string          `json:"origin"`
	Destination   string          `json:"destination"`
	Status        string          `json:"status"`
	Events        []TrackingEvent `json:"events,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TrackingEvent is one step in a shipment's history, oldest first.
type TrackingEvent struct {
	ID         int64     `json:"id"`
	ShipmentID int64     `json:"shipment_id"`
	Status     string    `json:"status"`
	Location   string    `json:"location"`
	Note       string    `json:"note"`
	OccurredAt time.Time `json:"occurred_at"`
}
