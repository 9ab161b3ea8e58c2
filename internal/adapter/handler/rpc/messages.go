package rpc

type ReserveRequest struct {
	ReservationID string `json:"reservation_id"`
	StockID       string `json:"stock_id"`
	Quantity      int64  `json:"quantity"`
	TTLSeconds    int64  `json:"ttl_seconds"`
}

// Result is one of RESERVED, INSUFFICIENT_STOCK, IDEMPOTENT, FAILED.
type ReserveResponse struct {
	Result        string `json:"result"`
	ReservationID string `json:"reservation_id"`
	Message       string `json:"message"`
}

type GetStockRequest struct {
	StockID string `json:"stock_id"`
}

type GetStockResponse struct {
	StockID   string `json:"stock_id"`
	Available int64  `json:"available"`
}
