package handler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/maxim618/inventory-reservation-service/internal/adapter/handler/rpc"
	"github.com/maxim618/inventory-reservation-service/internal/adapter/storage"
	"github.com/maxim618/inventory-reservation-service/internal/core/domain"
	"github.com/maxim618/inventory-reservation-service/internal/core/service"
	"github.com/maxim618/inventory-reservation-service/internal/port"
)

func newTestGRPCClient(t *testing.T, store port.ReservationStore) *rpc.ReservationClient {
	t.Helper()

	svc := service.NewReservationService(store, zap.NewNop(), service.Options{DefaultTTL: time.Minute})

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(UnaryLoggingInterceptor(zap.NewNop())))
	rpc.RegisterReservationServer(srv, NewGRPCHandler(svc))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return rpc.NewReservationClient(conn)
}

func seededMemory(t *testing.T, stock map[string]int64) *storage.MemoryAdapter {
	t.Helper()
	store := storage.NewMemoryAdapter()
	for id, qty := range stock {
		_, err := store.SeedStock(context.Background(), id, qty)
		require.NoError(t, err)
	}
	return store
}

func TestGRPCReserve_Flow(t *testing.T) {
	client := newTestGRPCClient(t, seededMemory(t, map[string]int64{"sku-1": 10}))
	ctx := context.Background()

	req := &rpc.ReserveRequest{ReservationID: "1", StockID: "sku-1", Quantity: 3, TTLSeconds: 30}

	resp, err := client.Reserve(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "RESERVED", resp.Result)
	assert.Equal(t, "1", resp.ReservationID)

	resp, err = client.Reserve(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "IDEMPOTENT", resp.Result)

	stock, err := client.GetStock(ctx, &rpc.GetStockRequest{StockID: "sku-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), stock.Available)
}

func TestGRPCReserve_InsufficientStock(t *testing.T) {
	client := newTestGRPCClient(t, seededMemory(t, map[string]int64{"sku-1": 2}))

	resp, err := client.Reserve(context.Background(), &rpc.ReserveRequest{ReservationID: "1", StockID: "sku-1", Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, "INSUFFICIENT_STOCK", resp.Result)
}

func TestGRPCReserve_InvalidArgument(t *testing.T) {
	client := newTestGRPCClient(t, seededMemory(t, nil))

	_, err := client.Reserve(context.Background(), &rpc.ReserveRequest{StockID: "sku-1", Quantity: 1})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCReserve_TTLOverflow(t *testing.T) {
	store := seededMemory(t, map[string]int64{"sku-1": 5})
	client := newTestGRPCClient(t, store)

	_, err := client.Reserve(context.Background(), &rpc.ReserveRequest{
		ReservationID: "1", StockID: "sku-1", Quantity: 1, TTLSeconds: domain.MaxTTLSeconds + 1,
	})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	stock, _, _ := store.GetStock(context.Background(), "sku-1")
	assert.Equal(t, int64(5), stock)

	resp, err := client.Reserve(context.Background(), &rpc.ReserveRequest{
		ReservationID: "2", StockID: "sku-1", Quantity: 1, TTLSeconds: domain.MaxTTLSeconds,
	})
	require.NoError(t, err)
	assert.Equal(t, "RESERVED", resp.Result)
}

func TestGRPCReserve_StoreFailure(t *testing.T) {
	client := newTestGRPCClient(t, failingStore{err: errors.New("connection refused")})

	resp, err := client.Reserve(context.Background(), &rpc.ReserveRequest{ReservationID: "1", StockID: "sku-1", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, "FAILED", resp.Result)

	_, err = client.GetStock(context.Background(), &rpc.GetStockRequest{StockID: "sku-1"})
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestGRPCGetStock_NotFound(t *testing.T) {
	client := newTestGRPCClient(t, seededMemory(t, nil))

	_, err := client.GetStock(context.Background(), &rpc.GetStockRequest{StockID: "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestGRPCReserve_Concurrent(t *testing.T) {
	client := newTestGRPCClient(t, seededMemory(t, map[string]int64{"sku-1": 10}))

	var mu sync.Mutex
	results := map[string]int{}
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := client.Reserve(context.Background(), &rpc.ReserveRequest{
				ReservationID: fmt.Sprintf("r-%d", i),
				StockID:       "sku-1",
				Quantity:      1,
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			mu.Lock()
			results[resp.Result]++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, results["RESERVED"])
	assert.Equal(t, 10, results["INSUFFICIENT_STOCK"])
}

func TestGRPCInterceptor_EchoesRequestID(t *testing.T) {
	client := newTestGRPCClient(t, seededMemory(t, map[string]int64{"sku-1": 1}))

	ctx := metadata.AppendToOutgoingContext(context.Background(), RequestIDKey, "req-42")
	var header metadata.MD
	_, err := client.GetStock(ctx, &rpc.GetStockRequest{StockID: "sku-1"}, grpc.Header(&header))
	require.NoError(t, err)
	assert.Equal(t, []string{"req-42"}, header.Get(RequestIDKey))

	header = nil
	_, err = client.GetStock(context.Background(), &rpc.GetStockRequest{StockID: "sku-1"}, grpc.Header(&header))
	require.NoError(t, err)
	require.Len(t, header.Get(RequestIDKey), 1)
	assert.NotEmpty(t, header.Get(RequestIDKey)[0])
}

func TestGRPCInterceptor_LogsHeaderFailure(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	interceptor := UnaryLoggingInterceptor(zap.New(core))

	// No server transport stream in ctx, so the header cannot be set.
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDKey, "req-7"))
	info := &grpc.UnaryServerInfo{FullMethod: rpc.GetStockMethod}
	resp, err := interceptor(ctx, &rpc.GetStockRequest{}, info, func(context.Context, any) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)

	failed := logs.FilterMessage("failed to echo request id").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "req-7", failed[0].ContextMap()["request_id"])
	assert.Equal(t, 1, logs.FilterMessage("grpc request").Len())
}
