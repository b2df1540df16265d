package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// redisMeterStore keeps per-partner counters in Redis. INCR on a
// bucket-suffixed key serializes concurrent updates; EXPIRE is set
// when a bucket is first touched so stale windows fall out on their
// own.
type redisMeterStore struct {
	rdb *redis.Client
}

func NewRedisMeterStore(rdb *redis.Client) MeterStore {
	return &redisMeterStore{rdb: rdb}
}

func meterKey(partnerID string, kind WindowKind, windowStart time.Time, counter string) string {
	return fmt.Sprintf("meter:%s:%s:%s:%d", partnerID, kind, counter, windowStart.Unix())
}

func seenKey(partnerID, transactionRef string) string {
	return fmt.Sprintf("meter:%s:seen:%s", partnerID, transactionRef)
}

// volumeScale is the fixed precision volume counters are stored at.
// Amounts are shifted into integer ticks so INCRBY stays exact; four
// decimal places covers every supported currency's minor unit.
const volumeScale = 4

func volumeToTicks(amount decimal.Decimal) int64 {
	return amount.Shift(volumeScale).Round(0).IntPart()
}

func ticksToVolume(ticks int64) decimal.Decimal {
	return decimal.New(ticks, -volumeScale)
}

func (s *redisMeterStore) IncrRequests(ctx context.Context, partnerID string, kind WindowKind, windowStart time.Time) (int64, error) {
	key := meterKey(partnerID, kind, windowStart, "req")

	count, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment request counter: %w", err)
	}
	if count == 1 {
		s.rdb.Expire(ctx, key, WindowTTL(kind))
	}
	return count, nil
}

func (s *redisMeterStore) GetTransactionCount(ctx context.Context, partnerID string, kind WindowKind, windowStart time.Time) (int64, error) {
	key := meterKey(partnerID, kind, windowStart, "txn")

	count, err := s.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read transaction counter: %w", err)
	}
	return count, nil
}

func (s *redisMeterStore) GetVolume(ctx context.Context, partnerID string, kind WindowKind, windowStart time.Time) (decimal.Decimal, error) {
	key := meterKey(partnerID, kind, windowStart, "vol")

	ticks, err := s.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read volume counter: %w", err)
	}
	return ticksToVolume(ticks), nil
}

func (s *redisMeterStore) RecordTransaction(ctx context.Context, partnerID string, kind WindowKind, windowStart time.Time, amount decimal.Decimal) error {
	txnKey := meterKey(partnerID, kind, windowStart, "txn")
	volKey := meterKey(partnerID, kind, windowStart, "vol")
	ttl := WindowTTL(kind)

	count, err := s.rdb.Incr(ctx, txnKey).Result()
	if err != nil {
		return fmt.Errorf("failed to increment transaction counter: %w", err)
	}
	if count == 1 {
		s.rdb.Expire(ctx, txnKey, ttl)
	}

	// Volume is kept in integer ticks so the atomic INCRBY never
	// accumulates float drift against the decimal ceilings.
	ticks := volumeToTicks(amount)
	vol, err := s.rdb.IncrBy(ctx, volKey, ticks).Result()
	if err != nil {
		return fmt.Errorf("failed to increment volume counter: %w", err)
	}
	if vol == ticks {
		s.rdb.Expire(ctx, volKey, ttl)
	}
	return nil
}

func (s *redisMeterStore) MarkSeen(ctx context.Context, partnerID, transactionRef string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, seenKey(partnerID, transactionRef), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark transaction seen: %w", err)
	}
	return ok, nil
}

func (s *redisMeterStore) UnmarkSeen(ctx context.Context, partnerID, transactionRef string) error {
	if err := s.rdb.Del(ctx, seenKey(partnerID, transactionRef)).Err(); err != nil {
		return fmt.Errorf("failed to release dedupe claim: %w", err)
	}
	return nil
}
