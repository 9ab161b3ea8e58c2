package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/maxim618/inventory-reservation-service/internal/adapter/storage"
	"github.com/maxim618/inventory-reservation-service/internal/core/domain"
	"github.com/maxim618/inventory-reservation-service/internal/core/service"
)

type options struct {
	redisAddr     string
	stockID       string
	initialStock  int64
	totalRequests int
	quantity      int64
	ttl           time.Duration
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "stress_test",
		Short:        "Fire concurrent reservations at a live Redis and check exactness",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.redisAddr, "redis-addr", "localhost:6379", "redis address")
	cmd.Flags().StringVar(&opts.stockID, "stock-id", "stress-item", "stock id to reserve against")
	cmd.Flags().Int64Var(&opts.initialStock, "stock", 20, "initial stock")
	cmd.Flags().IntVar(&opts.totalRequests, "requests", 50, "number of concurrent reservations")
	cmd.Flags().Int64Var(&opts.quantity, "quantity", 1, "quantity per reservation")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", time.Minute, "reservation ttl")

	return cmd
}

func run(ctx context.Context, opts *options) error {
	if opts.quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}

	rdb := redis.NewClient(&redis.Options{Addr: opts.redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()

	// Clear previous run
	if err := rdb.Del(ctx, domain.StockKey(opts.stockID)).Err(); err != nil {
		return fmt.Errorf("reset stock: %w", err)
	}

	reservations := service.NewReservationService(storage.NewRedisAdapter(rdb), zap.NewNop(), service.Options{DefaultTTL: opts.ttl})
	if _, err := reservations.SeedStock(ctx, []domain.StockLevel{{StockID: opts.stockID, Quantity: opts.initialStock}}); err != nil {
		return err
	}

	results := make([]domain.ReservationResult, opts.totalRequests)
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < opts.totalRequests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = reservations.Reserve(ctx, domain.ReserveRequest{
				StockID:       opts.stockID,
				ReservationID: uuid.NewString(),
				Quantity:      opts.quantity,
			})
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	counts := map[domain.ReservationResult]int{}
	for _, r := range results {
		counts[r]++
	}

	expectedReserved := int(opts.initialStock / opts.quantity)
	if expectedReserved > opts.totalRequests {
		expectedReserved = opts.totalRequests
	}
	expectedStock := opts.initialStock - int64(expectedReserved)*opts.quantity

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:      %d\n", opts.initialStock)
	fmt.Printf("Total Requests:     %d (qty %d)\n", opts.totalRequests, opts.quantity)
	fmt.Printf("Reserved:           %d\n", counts[domain.ResultReserved])
	fmt.Printf("Insufficient Stock: %d\n", counts[domain.ResultInsufficientStock])
	fmt.Printf("Failed:             %d\n", counts[domain.ResultFailed])
	fmt.Printf("Duration:           %v\n", elapsed)
	fmt.Println("==========================================")

	finalStock, err := reservations.Stock(ctx, opts.stockID)
	if err != nil {
		return fmt.Errorf("read final stock: %w", err)
	}
	fmt.Printf("Final Redis Stock:  %d\n", finalStock)

	if counts[domain.ResultReserved] != expectedReserved || finalStock != expectedStock {
		return fmt.Errorf("FAIL: expected %d reserved and stock %d, got %d and %d",
			expectedReserved, expectedStock, counts[domain.ResultReserved], finalStock)
	}

	fmt.Printf("PASS: exactly %d reservations succeeded, stock %d\n", expectedReserved, finalStock)
	return nil
}
