package models

import "time"

// Transport request lifecycle.
const (
	RequestStatusPending   = "pending"
	RequestStatusQuoted    = "quoted"
	RequestStatusAccepted  = "accepted"
	RequestStatusRejected  = "rejected"
	RequestStatusCompleted = "completed"
)

// Offer lifecycle.
const (
	OfferStatusPending  = "pending"
	OfferStatusAccepted = "accepted"
	OfferStatusRejected = "rejected"
)

// TransportRequest is a client's request for a freight quote.
type TransportRequest struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"user_id"`
	CustomerEmail    string    `json:"customer_email"`
	Origin           string    `json:"origin"`
	Destination      string    `json:"destination"`
	CargoDescription string    `json:"cargo_description"`
	WeightKg         float64   `json:"weight_kg"`
	PickupDate       string    `json:"pickup_date"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Offer is a staff quote against a transport request. Reference is a
// uuid assigned at creation and used in customer communication.
type Offer struct {
	ID           int64     `json:"id"`
	RequestID    int64     `json:"request_id"`
	Reference    string    `json:"reference"`
	Price        float64   `json:"price"`
	Currency     string    `json:"currency"`
	ValidUntil   string    `json:"valid_until"`
	CarrierNotes string    `json:"carrier_notes"`
	Status       string    `json:"status"`
	CreatedBy    int64     `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}
