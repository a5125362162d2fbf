package models

import "time"

// PurchaseCompleted is the event streamed after a successful checkout. The
// recommendation service retrains from purchase history, so it learns about
// new purchases from this stream instead of polling the backend.
type PurchaseCompleted struct {
	UserID      int64     `json:"usuarioId"`
	TicketIDs   []int64   `json:"ticketIds"`
	EventIDs    []int64   `json:"eventoIds"`
	Total       float64   `json:"total"`
	IntentKey   string    `json:"intentKey"`
	PurchasedAt time.Time `json:"purchasedAt"`
}
