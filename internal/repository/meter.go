package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type WindowKind string

const (
	WindowSecond WindowKind = "second"
	WindowMinute WindowKind = "minute"
	WindowHour   WindowKind = "hour"
	WindowDay    WindowKind = "day"
	WindowMonth  WindowKind = "month"
)

// WindowStart aligns now to the start of the window containing it.
// Fixed, epoch-aligned buckets: a reset never double-counts across
// the boundary because the key changes with the bucket.
func WindowStart(kind WindowKind, now time.Time) time.Time {
	now = now.UTC()
	switch kind {
	case WindowSecond:
		return now.Truncate(time.Second)
	case WindowMinute:
		return now.Truncate(time.Minute)
	case WindowHour:
		return now.Truncate(time.Hour)
	case WindowDay:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	case WindowMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return now
}

// WindowTTL is how long a bucket's counters are retained after the
// window opens. One extra window length keeps the previous bucket
// readable briefly; after that the keys expire.
func WindowTTL(kind WindowKind) time.Duration {
	switch kind {
	case WindowSecond:
		return 2 * time.Second
	case WindowMinute:
		return 2 * time.Minute
	case WindowHour:
		return 2 * time.Hour
	case WindowDay:
		return 48 * time.Hour
	case WindowMonth:
		return 62 * 24 * time.Hour
	}
	return time.Minute
}

// MeterStore is the counter arena behind admission control, keyed by
// (partnerID, windowKind, windowStart). Implementations must not lose
// concurrent increments for the same partner.
type MeterStore interface {
	// IncrRequests bumps the request counter for the bucket and
	// returns the post-increment value.
	IncrRequests(ctx context.Context, partnerID string, kind WindowKind, windowStart time.Time) (int64, error)

	// GetTransactionCount reads the recorded-transaction counter.
	GetTransactionCount(ctx context.Context, partnerID string, kind WindowKind, windowStart time.Time) (int64, error)

	// GetVolume reads the recorded-volume counter.
	GetVolume(ctx context.Context, partnerID string, kind WindowKind, windowStart time.Time) (decimal.Decimal, error)

	// RecordTransaction adds one transaction of the given amount to
	// the bucket's count and volume counters.
	RecordTransaction(ctx context.Context, partnerID string, kind WindowKind, windowStart time.Time, amount decimal.Decimal) error

	// MarkSeen records a transaction ref for dedupe and reports
	// whether it was first seen now. A false return means a duplicate
	// delivery that must not be counted again.
	MarkSeen(ctx context.Context, partnerID, transactionRef string, ttl time.Duration) (bool, error)

	// UnmarkSeen releases a dedupe claim taken by MarkSeen so the
	// caller's retry can count a transaction whose counter write
	// failed partway.
	UnmarkSeen(ctx context.Context, partnerID, transactionRef string) error
}
