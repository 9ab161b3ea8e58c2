package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyNaming(t *testing.T) {
	assert.Equal(t, "stock:sku-1", StockKey("sku-1"))
	assert.Equal(t, "reservation:abc", ReservationKey("abc"))
	assert.Equal(t, "idempotency:abc", IdempotencyKey("abc"))
}

func TestNewReservation(t *testing.T) {
	r, err := NewReservation(ReserveRequest{
		StockID:       "sku-1",
		ReservationID: "r-1",
		Quantity:      3,
		TTL:           30 * time.Second,
	}, time.Minute)
	require.NoError(t, err)

	assert.Equal(t, Reservation{
		StockKey:       "stock:sku-1",
		ReservationKey: "reservation:r-1",
		IdempotencyKey: "idempotency:r-1",
		Quantity:       3,
		TTLSeconds:     30,
		ReservationID:  "r-1",
	}, r)
	assert.Equal(t, 30*time.Second, r.TTL())
}

func TestNewReservation_DefaultTTL(t *testing.T) {
	r, err := NewReservation(ReserveRequest{StockID: "sku-1", ReservationID: "r-1", Quantity: 1}, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(900), r.TTLSeconds)
}

func TestNewReservation_Invalid(t *testing.T) {
	tests := []struct {
		name string
		req  ReserveRequest
	}{
		{"missing stock", ReserveRequest{ReservationID: "r", Quantity: 1, TTL: time.Second}},
		{"missing reservation id", ReserveRequest{StockID: "s", Quantity: 1, TTL: time.Second}},
		{"zero quantity", ReserveRequest{StockID: "s", ReservationID: "r", TTL: time.Second}},
		{"negative quantity", ReserveRequest{StockID: "s", ReservationID: "r", Quantity: -2, TTL: time.Second}},
		{"sub-second ttl", ReserveRequest{StockID: "s", ReservationID: "r", Quantity: 1, TTL: 500 * time.Millisecond}},
		{"negative ttl", ReserveRequest{StockID: "s", ReservationID: "r", Quantity: 1, TTL: -time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReservation(tt.req, 0)
			assert.True(t, errors.Is(err, ErrInvalidReservation), "got %v", err)
		})
	}
}

func TestReservationValidate_MissingIdempotencyKey(t *testing.T) {
	r := Reservation{
		StockKey:       "stock:s",
		ReservationKey: "reservation:r",
		Quantity:       1,
		TTLSeconds:     1,
		ReservationID:  "r",
	}
	assert.ErrorIs(t, r.Validate(), ErrInvalidReservation)
}

func TestTTLFromSeconds(t *testing.T) {
	ttl, err := TTLFromSeconds(30)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, ttl)

	ttl, err = TTLFromSeconds(0)
	require.NoError(t, err)
	assert.Zero(t, ttl)

	ttl, err = TTLFromSeconds(MaxTTLSeconds)
	require.NoError(t, err)
	assert.Equal(t, MaxTTLSeconds, int64(ttl/time.Second))

	for _, seconds := range []int64{-1, MaxTTLSeconds + 1, 20_000_000_000} {
		_, err := TTLFromSeconds(seconds)
		assert.ErrorIs(t, err, ErrInvalidReservation, "ttl_seconds %d", seconds)
	}
}
