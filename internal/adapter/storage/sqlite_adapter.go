package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/maxim618/inventory-reservation-service/internal/core/domain"
	"github.com/maxim618/inventory-reservation-service/internal/port"

	_ "modernc.org/sqlite"
)

// Timestamps are stored as RFC3339 text.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS inventory (
    stock_id   TEXT    NOT NULL PRIMARY KEY,
    stock      INTEGER NOT NULL,
    updated_at TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS reservations (
    reservation_id TEXT    NOT NULL PRIMARY KEY,
    stock_id       TEXT    NOT NULL,
    quantity       INTEGER NOT NULL,
    ttl_seconds    INTEGER NOT NULL,
    created_at     TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reservations_stock ON reservations(stock_id, created_at);
`

var _ port.JournalRepository = (*SQLiteAdapter)(nil)

// SQLiteAdapter is the embedded reservation journal.
type SQLiteAdapter struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteAdapter, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteAdapter{db: db}, nil
}

func (s *SQLiteAdapter) Close() error {
	return s.db.Close()
}

// PutStockLevel upserts an inventory snapshot row.
func (s *SQLiteAdapter) PutStockLevel(ctx context.Context, lvl domain.StockLevel) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory (stock_id, stock, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(stock_id) DO UPDATE SET stock = excluded.stock, updated_at = excluded.updated_at`,
		lvl.StockID, lvl.Quantity, formatTime(lvl.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert inventory: %w", err)
	}
	return nil
}

func (s *SQLiteAdapter) AppendReservation(ctx context.Context, rec domain.ReservationRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reservations (reservation_id, stock_id, quantity, ttl_seconds, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(reservation_id) DO NOTHING`,
		rec.ReservationID, rec.StockID, rec.Quantity, int64(rec.TTL/time.Second), formatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (s *SQLiteAdapter) ListReservations(ctx context.Context, stockID string) ([]domain.ReservationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
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
		var createdAt string
		if err := rows.Scan(&rec.ReservationID, &rec.StockID, &rec.Quantity, &ttlSeconds, &createdAt); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		if rec.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		rec.TTL = time.Duration(ttlSeconds) * time.Second
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (s *SQLiteAdapter) LoadStockLevels(ctx context.Context) ([]domain.StockLevel, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT stock_id, stock, updated_at FROM inventory ORDER BY stock_id`)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	defer rows.Close()

	var levels []domain.StockLevel
	for rows.Next() {
		var lvl domain.StockLevel
		var updatedAt string
		if err := rows.Scan(&lvl.StockID, &lvl.Quantity, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		if lvl.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		levels = append(levels, lvl)
	}

	return levels, rows.Err()
}

// RFC3339Nano drops trailing zeros, so a fixed-width layout keeps text order
// equal to time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
