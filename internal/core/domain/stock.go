package domain

import "time"

// StockLevel is an inventory snapshot row used to seed stock counters.
type StockLevel struct {
	StockID   string
	Quantity  int64
	UpdatedAt time.Time
}
