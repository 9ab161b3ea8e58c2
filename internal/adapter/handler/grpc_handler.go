package handler

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/maxim618/inventory-reservation-service/internal/adapter/handler/rpc"
	"github.com/maxim618/inventory-reservation-service/internal/core/domain"
	"github.com/maxim618/inventory-reservation-service/internal/core/service"
)

type GRPCHandler struct {
	reservations *service.ReservationService
}

func NewGRPCHandler(reservations *service.ReservationService) *GRPCHandler {
	return &GRPCHandler{reservations: reservations}
}

// Reserve reports every outcome, FAILED included, in the response. Only a
// malformed request is an RPC error.
func (h *GRPCHandler) Reserve(ctx context.Context, req *rpc.ReserveRequest) (*rpc.ReserveResponse, error) {
	ttl, err := domain.TTLFromSeconds(req.TTLSeconds)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result, err := h.reservations.Reserve(ctx, domain.ReserveRequest{
		StockID:       req.StockID,
		ReservationID: req.ReservationID,
		Quantity:      req.Quantity,
		TTL:           ttl,
	})
	if errors.Is(err, domain.ErrInvalidReservation) {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	_, message := describe(result)
	return &rpc.ReserveResponse{
		Result:        result.String(),
		ReservationID: req.ReservationID,
		Message:       message,
	}, nil
}

func (h *GRPCHandler) GetStock(ctx context.Context, req *rpc.GetStockRequest) (*rpc.GetStockResponse, error) {
	stock, err := h.reservations.Stock(ctx, req.StockID)
	if errors.Is(err, service.ErrStockNotFound) {
		return nil, status.Error(codes.NotFound, "stock not found")
	}
	if err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}

	return &rpc.GetStockResponse{StockID: req.StockID, Available: stock}, nil
}
