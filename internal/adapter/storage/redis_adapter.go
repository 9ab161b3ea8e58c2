package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/maxim618/inventory-reservation-service/internal/core/domain"
	"github.com/maxim618/inventory-reservation-service/internal/port"
)

var ErrUnexpectedResult = errors.New("unexpected reservation script result")

// reserveScript is the atomic reservation unit.
//
//	KEYS: stock, reservation, idempotency
//	ARGV: quantity, ttl seconds, reservation id
//	returns 2 already processed, 0 insufficient stock, 1 reserved
//
// An absent stock counter counts as zero.
var reserveScript = redis.NewScript(`
local stockKey = KEYS[1]
local reservationKey = KEYS[2]
local idempotencyKey = KEYS[3]

local quantity = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])
local reservationId = ARGV[3]

if not quantity or quantity <= 0 then
	return redis.error_reply('invalid quantity')
end
if not ttl or ttl <= 0 then
	return redis.error_reply('invalid ttl')
end

if redis.call('EXISTS', idempotencyKey) == 1 then
	return 2
end

local current = tonumber(redis.call('GET', stockKey) or '0')
if not current then
	return redis.error_reply('stock counter is not a number')
end

if current < quantity then
	return 0
end

redis.call('DECRBY', stockKey, quantity)
redis.call('HSET', reservationKey, 'quantity', quantity, 'reservation_id', reservationId)
redis.call('EXPIRE', reservationKey, ttl)
redis.call('SET', idempotencyKey, reservationId, 'EX', ttl)

return 1
`)

var _ port.ReservationStore = (*RedisAdapter)(nil)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) Reserve(ctx context.Context, res domain.Reservation) (domain.ReservationResult, error) {
	if err := res.Validate(); err != nil {
		return domain.ResultFailed, err
	}

	keys := []string{res.StockKey, res.ReservationKey, res.IdempotencyKey}
	raw, err := reserveScript.Run(ctx, r.client, keys, res.Quantity, res.TTLSeconds, res.ReservationID).Result()
	if err != nil {
		return domain.ResultFailed, fmt.Errorf("run reserve script: %w", err)
	}

	result := domain.Classify(raw)
	if result == domain.ResultFailed {
		return result, fmt.Errorf("%w: %v", ErrUnexpectedResult, raw)
	}

	return result, nil
}

func (r *RedisAdapter) SeedStock(ctx context.Context, stockID string, quantity int64) (bool, error) {
	if quantity < 0 {
		return false, fmt.Errorf("%w: negative stock %d", domain.ErrInvalidReservation, quantity)
	}
	return r.client.SetNX(ctx, domain.StockKey(stockID), quantity, 0).Result()
}

func (r *RedisAdapter) GetStock(ctx context.Context, stockID string) (int64, bool, error) {
	stock, err := r.client.Get(ctx, domain.StockKey(stockID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	return stock, true, nil
}

func (r *RedisAdapter) GetReservation(ctx context.Context, reservationID string) (*domain.ReservationRecord, error) {
	key := domain.ReservationKey(reservationID)

	var fields *redis.MapStringStringCmd
	var ttl *redis.DurationCmd
	_, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		fields = p.HGetAll(ctx, key)
		ttl = p.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read reservation: %w", err)
	}

	values := fields.Val()
	if len(values) == 0 {
		return nil, nil
	}

	quantity, err := strconv.ParseInt(values["quantity"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse reservation quantity: %w", err)
	}

	return &domain.ReservationRecord{
		ReservationID: values["reservation_id"],
		Quantity:      quantity,
		TTL:           ttl.Val(),
	}, nil
}
