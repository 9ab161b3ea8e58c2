package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	StockKeyPrefix       = "stock:"
	ReservationKeyPrefix = "reservation:"
	IdempotencyKeyPrefix = "idempotency:"
)

// MaxTTLSeconds is the largest TTL a time.Duration can carry.
const MaxTTLSeconds = math.MaxInt64 / int64(time.Second)

var ErrInvalidReservation = errors.New("invalid reservation")

func StockKey(stockID string) string { return StockKeyPrefix + stockID }

func ReservationKey(reservationID string) string { return ReservationKeyPrefix + reservationID }

func IdempotencyKey(reservationID string) string { return IdempotencyKeyPrefix + reservationID }

// ReserveRequest is what callers ask for. ReservationID identifies the
// logical request and must be reused on every retry of it.
type ReserveRequest struct {
	StockID       string
	ReservationID string
	Quantity      int64
	TTL           time.Duration
}

// Reservation is the parameter set of one atomic reservation unit.
type Reservation struct {
	StockKey       string
	ReservationKey string
	IdempotencyKey string
	Quantity       int64
	TTLSeconds     int64
	ReservationID  string
}

// NewReservation builds the store keys for req. A zero TTL falls back to
// defaultTTL; TTLs are truncated to whole seconds.
func NewReservation(req ReserveRequest, defaultTTL time.Duration) (Reservation, error) {
	ttl := req.TTL
	if ttl == 0 {
		ttl = defaultTTL
	}

	r := Reservation{
		StockKey:       StockKey(req.StockID),
		ReservationKey: ReservationKey(req.ReservationID),
		IdempotencyKey: IdempotencyKey(req.ReservationID),
		Quantity:       req.Quantity,
		TTLSeconds:     int64(ttl / time.Second),
		ReservationID:  req.ReservationID,
	}
	if req.StockID == "" {
		return r, fmt.Errorf("%w: stock id is required", ErrInvalidReservation)
	}
	if req.ReservationID == "" {
		return r, fmt.Errorf("%w: reservation id is required", ErrInvalidReservation)
	}
	return r, r.Validate()
}

// Validate checks the caller contract of the atomic unit.
func (r Reservation) Validate() error {
	switch {
	case r.StockKey == "":
		return fmt.Errorf("%w: stock key is required", ErrInvalidReservation)
	case r.ReservationKey == "":
		return fmt.Errorf("%w: reservation key is required", ErrInvalidReservation)
	case r.IdempotencyKey == "":
		return fmt.Errorf("%w: idempotency key is required", ErrInvalidReservation)
	case r.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidReservation, r.Quantity)
	case r.TTLSeconds <= 0:
		return fmt.Errorf("%w: ttl must be at least one second", ErrInvalidReservation)
	}
	return nil
}

// TTLFromSeconds converts a wire TTL. Zero means "use the default"; values
// that are negative or do not fit a time.Duration are rejected.
func TTLFromSeconds(seconds int64) (time.Duration, error) {
	if seconds < 0 || seconds > MaxTTLSeconds {
		return 0, fmt.Errorf("%w: ttl_seconds must be between 0 and %d, got %d", ErrInvalidReservation, MaxTTLSeconds, seconds)
	}
	return time.Duration(seconds) * time.Second, nil
}

func (r Reservation) TTL() time.Duration {
	return time.Duration(r.TTLSeconds) * time.Second
}
