package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestWindowStartAlignment(t *testing.T) {
	now := time.Date(2026, 6, 15, 13, 45, 37, 123456789, time.UTC)

	require.Equal(t, time.Date(2026, 6, 15, 13, 45, 37, 0, time.UTC), WindowStart(WindowSecond, now))
	require.Equal(t, time.Date(2026, 6, 15, 13, 45, 0, 0, time.UTC), WindowStart(WindowMinute, now))
	require.Equal(t, time.Date(2026, 6, 15, 13, 0, 0, 0, time.UTC), WindowStart(WindowHour, now))
	require.Equal(t, time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC), WindowStart(WindowDay, now))
	require.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), WindowStart(WindowMonth, now))
}

func TestWindowStartNormalizesZone(t *testing.T) {
	zone := time.FixedZone("EAT", 3*60*60)
	local := time.Date(2026, 6, 15, 2, 30, 0, 0, zone) // 23:30 UTC previous day

	require.Equal(t, time.Date(2026, 6, 14, 0, 0, 0, 0, time.UTC), WindowStart(WindowDay, local))
}

func TestMemoryStoreIncrRequestsPerBucket(t *testing.T) {
	s := NewMemoryMeterStore()
	now := time.Date(2026, 6, 15, 13, 45, 0, 0, time.UTC)
	start := WindowStart(WindowMinute, now)

	for i := int64(1); i <= 3; i++ {
		count, err := s.IncrRequests(context.Background(), "p1", WindowMinute, start)
		require.NoError(t, err)
		require.Equal(t, i, count)
	}

	// A different bucket starts fresh.
	nextStart := WindowStart(WindowMinute, now.Add(time.Minute))
	count, err := s.IncrRequests(context.Background(), "p1", WindowMinute, nextStart)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	// And a different partner does not share counters.
	count, err = s.IncrRequests(context.Background(), "p2", WindowMinute, start)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestMemoryStoreRecordTransaction(t *testing.T) {
	s := NewMemoryMeterStore()
	now := time.Date(2026, 6, 15, 13, 45, 0, 0, time.UTC)
	start := WindowStart(WindowDay, now)

	require.NoError(t, s.RecordTransaction(context.Background(), "p1", WindowDay, start, decimal.NewFromInt(500)))
	require.NoError(t, s.RecordTransaction(context.Background(), "p1", WindowDay, start, decimal.NewFromInt(250)))

	count, err := s.GetTransactionCount(context.Background(), "p1", WindowDay, start)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	vol, err := s.GetVolume(context.Background(), "p1", WindowDay, start)
	require.NoError(t, err)
	require.True(t, vol.Equal(decimal.NewFromInt(750)), "volume = %s", vol)
}

func TestMemoryStoreMarkSeen(t *testing.T) {
	s := NewMemoryMeterStore()

	first, err := s.MarkSeen(context.Background(), "p1", "txn-1", time.Hour)
	require.NoError(t, err)
	require.True(t, first)

	again, err := s.MarkSeen(context.Background(), "p1", "txn-1", time.Hour)
	require.NoError(t, err)
	require.False(t, again)

	// Same ref under a different partner is independent.
	other, err := s.MarkSeen(context.Background(), "p2", "txn-1", time.Hour)
	require.NoError(t, err)
	require.True(t, other)
}

func TestMemoryStoreMarkSeenExpiry(t *testing.T) {
	s := NewMemoryMeterStore()

	first, err := s.MarkSeen(context.Background(), "p1", "txn-1", time.Nanosecond)
	require.NoError(t, err)
	require.True(t, first)

	time.Sleep(2 * time.Millisecond)

	again, err := s.MarkSeen(context.Background(), "p1", "txn-1", time.Hour)
	require.NoError(t, err)
	require.True(t, again, "expired entry behaves as unseen")
}

func TestVolumeTicksExactForMinorUnits(t *testing.T) {
	for _, s := range []string{"0", "0.01", "123.45", "9999.99", "1000000", "250.5"} {
		amount, err := decimal.NewFromString(s)
		require.NoError(t, err)
		require.True(t, ticksToVolume(volumeToTicks(amount)).Equal(amount), "round trip of %s", s)
	}
}

func TestVolumeTicksAccumulateWithoutDrift(t *testing.T) {
	// A long run of fractional increments in tick space must land
	// exactly on the decimal sum, so ceiling comparisons at the
	// boundary stay exact.
	cent, _ := decimal.NewFromString("0.01")
	var total int64
	for i := 0; i < 100000; i++ {
		total += volumeToTicks(cent)
	}
	require.True(t, ticksToVolume(total).Equal(decimal.NewFromInt(1000)), "sum = %s", ticksToVolume(total))
}

func TestMemoryStoreUnmarkSeen(t *testing.T) {
	s := NewMemoryMeterStore()

	first, err := s.MarkSeen(context.Background(), "p1", "txn-1", time.Hour)
	require.NoError(t, err)
	require.True(t, first)

	require.NoError(t, s.UnmarkSeen(context.Background(), "p1", "txn-1"))

	again, err := s.MarkSeen(context.Background(), "p1", "txn-1", time.Hour)
	require.NoError(t, err)
	require.True(t, again, "released claim behaves as unseen")
}

func TestWindowTTLCoversWindow(t *testing.T) {
	for _, kind := range []WindowKind{WindowSecond, WindowMinute, WindowHour, WindowDay, WindowMonth} {
		require.Positive(t, WindowTTL(kind), "ttl for %s", kind)
	}
	require.GreaterOrEqual(t, WindowTTL(WindowMonth), 31*24*time.Hour)
}
