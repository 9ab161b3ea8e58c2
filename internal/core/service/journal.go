package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/maxim618/inventory-reservation-service/internal/core/domain"
	"github.com/maxim618/inventory-reservation-service/internal/port"
)

// StartJournalWorkers persists committed reservations from queue with the
// given number of workers. The returned func blocks until queue is closed
// and drained. A failed write is logged; stock is never touched.
func StartJournalWorkers(queue <-chan domain.ReservationRecord, repo port.JournalRepository, workers int, timeout time.Duration, logger *zap.Logger) (wait func()) {
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			journalLoop(id, queue, repo, timeout, logger)
		}(i)
	}
	logger.Info("started journal workers", zap.Int("workers", workers))

	return wg.Wait
}

func journalLoop(id int, queue <-chan domain.ReservationRecord, repo port.JournalRepository, timeout time.Duration, logger *zap.Logger) {
	for rec := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)

		if err := repo.AppendReservation(ctx, rec); err != nil {
			logger.Error("failed to journal reservation",
				zap.Int("worker", id),
				zap.String("reservation_id", rec.ReservationID),
				zap.String("stock_id", rec.StockID),
				zap.Error(err),
			)
		} else {
			logger.Debug("journaled reservation",
				zap.Int("worker", id),
				zap.String("reservation_id", rec.ReservationID),
			)
		}

		cancel()
	}
}
