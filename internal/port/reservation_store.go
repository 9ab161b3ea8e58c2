package port

import (
	"context"

	"github.com/maxim618/inventory-reservation-service/internal/core/domain"
)

type ReservationStore interface {
	// Reserve executes the atomic check-and-reserve unit. It never returns a
	// raw store code; err is non-nil only together with domain.ResultFailed.
	Reserve(ctx context.Context, r domain.Reservation) (domain.ReservationResult, error)

	// SeedStock sets a stock counter only if it does not exist yet, returns false if it did
	SeedStock(ctx context.Context, stockID string, quantity int64) (bool, error)

	// GetStock returns the counter value and whether the counter exists
	GetStock(ctx context.Context, stockID string) (int64, bool, error)

	// GetReservation returns the live reservation record, nil once it expired
	GetReservation(ctx context.Context, reservationID string) (*domain.ReservationRecord, error)
}
