package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/maxim618/inventory-reservation-service/internal/core/domain"
	"github.com/maxim618/inventory-reservation-service/internal/core/service"
)

const idempotencyHeader = "Idempotency-Key"

type HTTPHandler struct {
	reservations *service.ReservationService
}

type ReserveHTTPRequest struct {
	ReservationID string `json:"reservation_id"`
	StockID       string `json:"stock_id"`
	Quantity      int64  `json:"quantity"`
	TTLSeconds    int64  `json:"ttl_seconds"`
}

type ReserveHTTPResponse struct {
	Result        domain.ReservationResult `json:"result"`
	ReservationID string                   `json:"reservation_id,omitempty"`
	Message       string                   `json:"message"`
}

type StockHTTPResponse struct {
	StockID   string `json:"stock_id"`
	Available int64  `json:"available"`
}

type ReservationHTTPResponse struct {
	ReservationID string `json:"reservation_id"`
	Quantity      int64  `json:"quantity"`
	TTLSeconds    int64  `json:"ttl_seconds"`
}

type JournalEntryHTTPResponse struct {
	ReservationID string    `json:"reservation_id"`
	StockID       string    `json:"stock_id"`
	Quantity      int64     `json:"quantity"`
	TTLSeconds    int64     `json:"ttl_seconds"`
	CreatedAt     time.Time `json:"created_at"`
}

type errorResponse struct {
	Message string `json:"message"`
}

func NewHTTPHandler(reservations *service.ReservationService) *HTTPHandler {
	return &HTTPHandler{reservations: reservations}
}

// Reserve takes the reservation id from the body or, when absent, from the
// Idempotency-Key header.
func (h *HTTPHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req ReserveHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}

	if key := r.Header.Get(idempotencyHeader); key != "" {
		if req.ReservationID != "" && req.ReservationID != key {
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: "reservation_id does not match Idempotency-Key"})
			return
		}
		req.ReservationID = key
	}

	if req.ReservationID == "" || req.StockID == "" || req.Quantity <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "missing required fields"})
		return
	}

	ttl, err := domain.TTLFromSeconds(req.TTLSeconds)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
		return
	}

	result, err := h.reservations.Reserve(r.Context(), domain.ReserveRequest{
		StockID:       req.StockID,
		ReservationID: req.ReservationID,
		Quantity:      req.Quantity,
		TTL:           ttl,
	})
	if errors.Is(err, domain.ErrInvalidReservation) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
		return
	}

	status, message := describe(result)
	writeJSON(w, status, ReserveHTTPResponse{
		Result:        result,
		ReservationID: req.ReservationID,
		Message:       message,
	})
}

func describe(result domain.ReservationResult) (int, string) {
	switch result {
	case domain.ResultReserved:
		return http.StatusCreated, "stock reserved"
	case domain.ResultIdempotent:
		return http.StatusOK, "reservation already processed"
	case domain.ResultInsufficientStock:
		return http.StatusConflict, "insufficient stock"
	default:
		return http.StatusServiceUnavailable, "reservation outcome unknown, retry with the same reservation_id"
	}
}

func (h *HTTPHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	stockID := chi.URLParam(r, "stockID")

	stock, err := h.reservations.Stock(r.Context(), stockID)
	switch {
	case errors.Is(err, service.ErrStockNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "stock not found"})
	case err != nil:
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Message: "stock unavailable"})
	default:
		writeJSON(w, http.StatusOK, StockHTTPResponse{StockID: stockID, Available: stock})
	}
}

func (h *HTTPHandler) GetReservation(w http.ResponseWriter, r *http.Request) {
	reservationID := chi.URLParam(r, "reservationID")

	rec, err := h.reservations.Reservation(r.Context(), reservationID)
	switch {
	case errors.Is(err, service.ErrReservationNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "reservation not found"})
	case err != nil:
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Message: "reservation unavailable"})
	default:
		writeJSON(w, http.StatusOK, ReservationHTTPResponse{
			ReservationID: rec.ReservationID,
			Quantity:      rec.Quantity,
			TTLSeconds:    int64(rec.TTL / time.Second),
		})
	}
}

// ListReservations serves the reservation journal of one stock item.
func (h *HTTPHandler) ListReservations(w http.ResponseWriter, r *http.Request) {
	stockID := chi.URLParam(r, "stockID")

	records, err := h.reservations.History(r.Context(), stockID)
	switch {
	case errors.Is(err, service.ErrJournalDisabled):
		writeJSON(w, http.StatusNotImplemented, errorResponse{Message: "reservation journal disabled"})
		return
	case err != nil:
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Message: "reservation journal unavailable"})
		return
	}

	entries := make([]JournalEntryHTTPResponse, 0, len(records))
	for _, rec := range records {
		entries = append(entries, JournalEntryHTTPResponse{
			ReservationID: rec.ReservationID,
			StockID:       rec.StockID,
			Quantity:      rec.Quantity,
			TTLSeconds:    int64(rec.TTL / time.Second),
			CreatedAt:     rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
