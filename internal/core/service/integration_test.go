package service_test

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/maxim618/inventory-reservation-service/internal/adapter/storage"
	"github.com/maxim618/inventory-reservation-service/internal/core/domain"
	"github.com/maxim618/inventory-reservation-service/internal/core/service"
)

type testEnv struct {
	redis   *redis.Client
	mysql   *sql.DB
	store   *storage.RedisAdapter
	journal *storage.MySQLAdapter
	cleanup func()
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/reservations?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	journal := storage.NewMySQLAdapter(db)
	if err := journal.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("schema setup failed: %v", err)
	}

	return &testEnv{
		redis:   rdb,
		mysql:   db,
		store:   storage.NewRedisAdapter(rdb),
		journal: journal,
		cleanup: func() {
			rdb.Close()
			db.Close()
		},
	}
}

func TestIntegration_ConcurrentReservationsAreJournaled(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	stockID := "integration-" + uuid.NewString()
	initialStock := 10

	// Setup
	env.mysql.ExecContext(ctx, `INSERT INTO inventory (stock_id, stock) VALUES (?, ?)`, stockID, initialStock)
	defer env.mysql.ExecContext(ctx, `DELETE FROM inventory WHERE stock_id = ?`, stockID)
	defer env.mysql.ExecContext(ctx, `DELETE FROM reservations WHERE stock_id = ?`, stockID)
	defer env.redis.Del(ctx, domain.StockKey(stockID))

	svc := service.NewReservationService(env.store, zap.NewNop(), service.Options{
		DefaultTTL:       time.Minute,
		JournalQueueSize: 100,
	})

	levels, err := env.journal.LoadStockLevels(ctx)
	if err != nil {
		t.Fatalf("LoadStockLevels failed: %v", err)
	}
	var seed []domain.StockLevel
	for _, lvl := range levels {
		if lvl.StockID == stockID {
			seed = append(seed, lvl)
		}
	}
	if seeded, err := svc.SeedStock(ctx, seed); err != nil || seeded != 1 {
		t.Fatalf("seeding failed: seeded=%d err=%v", seeded, err)
	}

	wait := service.StartJournalWorkers(svc.Journal(), env.journal, 3, 5*time.Second, zap.NewNop())

	// Execute reservations
	var reservedCount atomic.Int32
	var wg sync.WaitGroup
	totalRequests := 20

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.Reserve(ctx, domain.ReserveRequest{
				StockID:       stockID,
				ReservationID: uuid.NewString(),
				Quantity:      1,
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if result == domain.ResultReserved {
				reservedCount.Add(1)
			}
		}()
	}

	wg.Wait()
	svc.Close()
	wait()

	// Verify results
	if reservedCount.Load() != int32(initialStock) {
		t.Errorf("expected %d reservations, got %d", initialStock, reservedCount.Load())
	}

	redisStock, _ := env.redis.Get(ctx, domain.StockKey(stockID)).Int()
	if redisStock != 0 {
		t.Errorf("expected Redis stock 0, got %d", redisStock)
	}

	records, err := env.journal.ListReservations(ctx, stockID)
	if err != nil {
		t.Fatalf("ListReservations failed: %v", err)
	}
	if len(records) != initialStock {
		t.Errorf("expected %d journaled reservations, got %d", initialStock, len(records))
	}
}

func TestIntegration_IdempotencyPreventsDoubleReservation(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	stockID := "idempotency-" + uuid.NewString()
	reservationID := "same-request-id-" + uuid.NewString()

	// Setup
	env.store.SeedStock(ctx, stockID, 10)
	defer env.redis.Del(ctx, domain.StockKey(stockID), domain.ReservationKey(reservationID), domain.IdempotencyKey(reservationID))

	svc := service.NewReservationService(env.store, zap.NewNop(), service.Options{DefaultTTL: time.Minute})
	req := domain.ReserveRequest{StockID: stockID, ReservationID: reservationID, Quantity: 3, TTL: 30 * time.Second}

	// First call
	result, err := svc.Reserve(ctx, req)
	if err != nil || result != domain.ResultReserved {
		t.Fatalf("first reservation: result=%v err=%v", result, err)
	}

	// Second call with same reservation id
	result, err = svc.Reserve(ctx, req)
	if err != nil || result != domain.ResultIdempotent {
		t.Errorf("expected IDEMPOTENT, got result=%v err=%v", result, err)
	}

	stock, _ := env.redis.Get(ctx, domain.StockKey(stockID)).Int()
	if stock != 7 {
		t.Errorf("expected stock 7, got %d", stock)
	}

	ttl := env.redis.TTL(ctx, domain.IdempotencyKey(reservationID)).Val()
	if ttl <= 0 || ttl > 30*time.Second {
		t.Errorf("expected idempotency ttl within 30s, got %v", ttl)
	}
}
