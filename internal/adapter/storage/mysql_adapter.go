package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/maxim618/inventory-reservation-service/internal/core/domain"
	"github.com/maxim618/inventory-reservation-service/internal/port"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS inventory (
		stock_id   VARCHAR(128) NOT NULL PRIMARY KEY,
		stock      BIGINT       NOT NULL,
		updated_at DATETIME(6)  NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6)
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		reservation_id VARCHAR(128) NOT NULL PRIMARY KEY,
		stock_id       VARCHAR(128) NOT NULL,
		quantity       BIGINT       NOT NULL,
		ttl_seconds    BIGINT       NOT NULL,
		created_at     DATETIME(6)  NOT NULL,
		INDEX idx_reservations_stock (stock_id, created_at)
	)`,
}

var _ port.JournalRepository = (*MySQLAdapter)(nil)

// MySQLAdapter is the reservation journal on MySQL. The DSN must enable
// parseTime.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	for _, stmt := range mysqlSchema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) AppendReservation(ctx context.Context, rec domain.ReservationRecord) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO reservations (reservation_id, stock_id, quantity, ttl_seconds, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE reservation_id = reservation_id`,
		rec.ReservationID, rec.StockID, rec.Quantity, int64(rec.TTL/time.Second), rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ListReservations(ctx context.Context, stockID string) ([]domain.ReservationRecord, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT reservation_id, stock_id, quantity, ttl_seconds, created_at
		FROM reservations WHERE stock_id = ?
		ORDER BY created_at, reservation_id`, stockID,
	)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()

	var records []domain.ReservationRecord
	for rows.Next() {
		var rec domain.ReservationRecord
		var ttlSeconds int64
		if err := rows.Scan(&rec.ReservationID, &rec.StockID, &rec.Quantity, &ttlSeconds, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		rec.TTL = time.Duration(ttlSeconds) * time.Second
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (m *MySQLAdapter) PutStockLevel(ctx context.Context, lvl domain.StockLevel) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO inventory (stock_id, stock, updated_at) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE stock = VALUES(stock), updated_at = VALUES(updated_at)`,
		lvl.StockID, lvl.Quantity, lvl.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert inventory: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) LoadStockLevels(ctx context.Context) ([]domain.StockLevel, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT stock_id, stock, updated_at FROM inventory ORDER BY stock_id`)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	defer rows.Close()

	var levels []domain.StockLevel
	for rows.Next() {
		var lvl domain.StockLevel
		if err := rows.Scan(&lvl.StockID, &lvl.Quantity, &lvl.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		levels = append(levels, lvl)
	}

	return levels, rows.Err()
}
