package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/maxim618/inventory-reservation-service/internal/core/domain"
	"github.com/maxim618/inventory-reservation-service/internal/port"
)

type memReservation struct {
	quantity      int64
	reservationID string
	expiresAt     time.Time
}

// sweepInterval bounds how often reserve scans for expired entries.
const sweepInterval = time.Minute

// MemoryAdapter is a single-process ReservationStore. One mutex serialises
// every reservation, which gives the same linearizability as a Redis script.
// Expired keys are dropped on access and by a periodic sweep inside reserve.
type MemoryAdapter struct {
	mu           sync.Mutex
	now          func() time.Time
	nextSweep    time.Time
	stock        map[string]int64
	reservations map[string]memReservation
	markers      map[string]time.Time
}

var _ port.ReservationStore = (*MemoryAdapter)(nil)

func NewMemoryAdapter() *MemoryAdapter {
	return NewMemoryAdapterWithClock(time.Now)
}

func NewMemoryAdapterWithClock(now func() time.Time) *MemoryAdapter {
	return &MemoryAdapter{
		now:          now,
		stock:        make(map[string]int64),
		reservations: make(map[string]memReservation),
		markers:      make(map[string]time.Time),
	}
}

func (m *MemoryAdapter) Reserve(ctx context.Context, res domain.Reservation) (domain.ReservationResult, error) {
	if err := res.Validate(); err != nil {
		return domain.ResultFailed, err
	}
	if err := ctx.Err(); err != nil {
		return domain.ResultFailed, err
	}

	result := domain.Classify(m.reserve(res))
	if result == domain.ResultFailed {
		return result, ErrUnexpectedResult
	}
	return result, nil
}

func (m *MemoryAdapter) reserve(res domain.Reservation) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !now.Before(m.nextSweep) {
		m.sweep(now)
		m.nextSweep = now.Add(sweepInterval)
	}

	if m.markerExists(res.IdempotencyKey, now) {
		return domain.CodeIdempotent
	}

	current := m.stock[res.StockKey]
	if current < res.Quantity {
		return domain.CodeInsufficientStock
	}

	expiresAt := now.Add(res.TTL())
	m.stock[res.StockKey] = current - res.Quantity
	m.reservations[res.ReservationKey] = memReservation{
		quantity:      res.Quantity,
		reservationID: res.ReservationID,
		expiresAt:     expiresAt,
	}
	m.markers[res.IdempotencyKey] = expiresAt

	return domain.CodeReserved
}

// sweep drops expired records and markers. Caller holds mu.
func (m *MemoryAdapter) sweep(now time.Time) {
	for key, entry := range m.reservations {
		if !now.Before(entry.expiresAt) {
			delete(m.reservations, key)
		}
	}
	for key, expiresAt := range m.markers {
		if !now.Before(expiresAt) {
			delete(m.markers, key)
		}
	}
}

func (m *MemoryAdapter) markerExists(key string, now time.Time) bool {
	expiresAt, ok := m.markers[key]
	if !ok {
		return false
	}
	if !now.Before(expiresAt) {
		delete(m.markers, key)
		return false
	}
	return true
}

func (m *MemoryAdapter) SeedStock(_ context.Context, stockID string, quantity int64) (bool, error) {
	if quantity < 0 {
		return false, fmt.Errorf("%w: negative stock %d", domain.ErrInvalidReservation, quantity)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := domain.StockKey(stockID)
	if _, ok := m.stock[key]; ok {
		return false, nil
	}
	m.stock[key] = quantity
	return true, nil
}

func (m *MemoryAdapter) GetStock(_ context.Context, stockID string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stock, ok := m.stock[domain.StockKey(stockID)]
	return stock, ok, nil
}

func (m *MemoryAdapter) GetReservation(_ context.Context, reservationID string) (*domain.ReservationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := domain.ReservationKey(reservationID)
	entry, ok := m.reservations[key]
	if !ok {
		return nil, nil
	}

	now := m.now()
	if !now.Before(entry.expiresAt) {
		delete(m.reservations, key)
		return nil, nil
	}

	return &domain.ReservationRecord{
		ReservationID: entry.reservationID,
		Quantity:      entry.quantity,
		TTL:           entry.expiresAt.Sub(now),
	}, nil
}
