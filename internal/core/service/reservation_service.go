package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/maxim618/inventory-reservation-service/internal/core/domain"
	"github.com/maxim618/inventory-reservation-service/internal/port"
)

var (
	ErrStockNotFound       = errors.New("stock not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrJournalDisabled     = errors.New("reservation journal disabled")

	errUnclassified = errors.New("store returned no result")
)

type Options struct {
	// DefaultTTL applies to requests that carry no TTL.
	DefaultTTL time.Duration
	// JournalQueueSize bounds the journal queue. Zero disables journaling.
	JournalQueueSize int
	// History serves journal reads. Nil disables them.
	History port.JournalRepository
}

type ReservationService struct {
	store      port.ReservationStore
	history    port.JournalRepository
	logger     *zap.Logger
	defaultTTL time.Duration
	now        func() time.Time

	mu      sync.RWMutex
	closed  bool
	journal chan domain.ReservationRecord
}

func NewReservationService(store port.ReservationStore, logger *zap.Logger, opts Options) *ReservationService {
	s := &ReservationService{
		store:      store,
		history:    opts.History,
		logger:     logger,
		defaultTTL: opts.DefaultTTL,
		now:        time.Now,
	}
	if opts.JournalQueueSize > 0 {
		s.journal = make(chan domain.ReservationRecord, opts.JournalQueueSize)
	}
	return s
}

// Reserve attempts to hold req.Quantity units of req.StockID. The error is
// non-nil only with domain.ResultFailed; the outcome of a failed call is
// unknown and it is safe to retry with the same reservation ID.
func (s *ReservationService) Reserve(ctx context.Context, req domain.ReserveRequest) (domain.ReservationResult, error) {
	res, err := domain.NewReservation(req, s.defaultTTL)
	if err != nil {
		s.logger.Warn("rejected reservation request",
			zap.String("stock_id", req.StockID),
			zap.String("reservation_id", req.ReservationID),
			zap.Error(err),
		)
		return domain.ResultFailed, err
	}

	s.logger.Debug("trying to reserve stock",
		zap.String("stock_key", res.StockKey),
		zap.String("reservation_key", res.ReservationKey),
		zap.Int64("quantity", res.Quantity),
	)

	result, err := s.store.Reserve(ctx, res)
	if err == nil && result == domain.ResultFailed {
		err = errUnclassified
	}
	if err != nil {
		s.logger.Error("reservation failed",
			zap.String("stock_key", res.StockKey),
			zap.String("reservation_key", res.ReservationKey),
			zap.Error(err),
		)
		return domain.ResultFailed, fmt.Errorf("reserve %s: %w", res.ReservationKey, err)
	}

	s.logger.Debug("reservation result",
		zap.String("stock_key", res.StockKey),
		zap.String("reservation_key", res.ReservationKey),
		zap.Stringer("result", result),
	)

	if result == domain.ResultReserved {
		s.enqueue(domain.ReservationRecord{
			ReservationID: res.ReservationID,
			StockID:       req.StockID,
			Quantity:      res.Quantity,
			TTL:           res.TTL(),
			CreatedAt:     s.now().UTC(),
		})
	}

	return result, nil
}

// enqueue never blocks a reservation on the journal.
func (s *ReservationService) enqueue(rec domain.ReservationRecord) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.journal == nil || s.closed {
		return
	}

	select {
	case s.journal <- rec:
	default:
		s.logger.Warn("journal queue full, dropping entry",
			zap.String("reservation_id", rec.ReservationID),
			zap.String("stock_id", rec.StockID),
		)
	}
}

func (s *ReservationService) Stock(ctx context.Context, stockID string) (int64, error) {
	stock, ok, err := s.store.GetStock(ctx, stockID)
	if err != nil {
		return 0, fmt.Errorf("get stock %s: %w", stockID, err)
	}
	if !ok {
		return 0, ErrStockNotFound
	}
	return stock, nil
}

func (s *ReservationService) Reservation(ctx context.Context, reservationID string) (*domain.ReservationRecord, error) {
	rec, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("get reservation %s: %w", reservationID, err)
	}
	if rec == nil {
		return nil, ErrReservationNotFound
	}
	return rec, nil
}

// History returns the journaled reservations of stockID, oldest first.
// Journaling is asynchronous, so the newest reservations may be missing.
func (s *ReservationService) History(ctx context.Context, stockID string) ([]domain.ReservationRecord, error) {
	if s.history == nil {
		return nil, ErrJournalDisabled
	}
	records, err := s.history.ListReservations(ctx, stockID)
	if err != nil {
		return nil, fmt.Errorf("list reservations %s: %w", stockID, err)
	}
	return records, nil
}

// SeedStock initialises counters that do not exist yet and returns how many
// were written. Existing counters are left untouched.
func (s *ReservationService) SeedStock(ctx context.Context, levels []domain.StockLevel) (int, error) {
	seeded := 0
	for _, lvl := range levels {
		ok, err := s.store.SeedStock(ctx, lvl.StockID, lvl.Quantity)
		if err != nil {
			return seeded, fmt.Errorf("seed stock %s: %w", lvl.StockID, err)
		}
		if !ok {
			s.logger.Info("stock counter already present, not seeding", zap.String("stock_id", lvl.StockID))
			continue
		}
		s.logger.Info("seeded stock", zap.String("stock_id", lvl.StockID), zap.Int64("quantity", lvl.Quantity))
		seeded++
	}
	return seeded, nil
}

// Journal returns the queue of committed reservations, nil when journaling is disabled.
func (s *ReservationService) Journal() <-chan domain.ReservationRecord {
	if s.journal == nil {
		return nil
	}
	return s.journal
}

func (s *ReservationService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.journal != nil {
		close(s.journal)
	}
}
