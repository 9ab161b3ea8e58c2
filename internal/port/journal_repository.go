package port

import (
	"context"

	"github.com/maxim618/inventory-reservation-service/internal/core/domain"
)

type JournalRepository interface {
	// AppendReservation records a committed reservation, ignoring repeats of the same reservation ID
	AppendReservation(ctx context.Context, record domain.ReservationRecord) error

	// ListReservations returns the journaled reservations of a stock item, oldest first
	ListReservations(ctx context.Context, stockID string) ([]domain.ReservationRecord, error)

	// LoadStockLevels returns the inventory snapshot used to seed stock counters
	LoadStockLevels(ctx context.Context) ([]domain.StockLevel, error)

	// PutStockLevel upserts one row of the inventory snapshot
	PutStockLevel(ctx context.Context, level domain.StockLevel) error
}
