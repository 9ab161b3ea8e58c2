package domain

import "time"

// ReservationRecord is the proof that Quantity units were held. Read back
// from the store, StockID is empty and TTL holds the remaining lifetime.
type ReservationRecord struct {
	ReservationID string
	StockID       string
	Quantity      int64
	TTL           time.Duration
	CreatedAt     time.Time
}
