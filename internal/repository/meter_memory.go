package repository

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// memoryMeterStore is the in-process MeterStore for tests and
// single-node embedding. One mutex per partner serializes that
// partner's counters without contending across partners.
type memoryMeterStore struct {
	mu       sync.Mutex
	partners map[string]*partnerMeters
}

type partnerMeters struct {
	mu      sync.Mutex
	reqs    map[string]int64
	txns    map[string]int64
	volumes map[string]decimal.Decimal
	seen    map[string]time.Time
}

func NewMemoryMeterStore() MeterStore {
	return &memoryMeterStore{partners: make(map[string]*partnerMeters)}
}

func (s *memoryMeterStore) forPartner(partnerID string) *partnerMeters {
	s.mu.Lock()
	defer s.mu.Unlock()

	pm, ok := s.partners[partnerID]
	if !ok {
		pm = &partnerMeters{
			reqs:    make(map[string]int64),
			txns:    make(map[string]int64),
			volumes: make(map[string]decimal.Decimal),
			seen:    make(map[string]time.Time),
		}
		s.partners[partnerID] = pm
	}
	return pm
}

func bucketKey(kind WindowKind, windowStart time.Time) string {
	return string(kind) + ":" + windowStart.UTC().Format(time.RFC3339)
}

func (s *memoryMeterStore) IncrRequests(_ context.Context, partnerID string, kind WindowKind, windowStart time.Time) (int64, error) {
	pm := s.forPartner(partnerID)
	pm.mu.Lock()
	defer pm.mu.Unlock()

	key := bucketKey(kind, windowStart)
	pm.reqs[key]++
	return pm.reqs[key], nil
}

func (s *memoryMeterStore) GetTransactionCount(_ context.Context, partnerID string, kind WindowKind, windowStart time.Time) (int64, error) {
	pm := s.forPartner(partnerID)
	pm.mu.Lock()
	defer pm.mu.Unlock()

	return pm.txns[bucketKey(kind, windowStart)], nil
}

func (s *memoryMeterStore) GetVolume(_ context.Context, partnerID string, kind WindowKind, windowStart time.Time) (decimal.Decimal, error) {
	pm := s.forPartner(partnerID)
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if v, ok := pm.volumes[bucketKey(kind, windowStart)]; ok {
		return v, nil
	}
	return decimal.Zero, nil
}

func (s *memoryMeterStore) RecordTransaction(_ context.Context, partnerID string, kind WindowKind, windowStart time.Time, amount decimal.Decimal) error {
	pm := s.forPartner(partnerID)
	pm.mu.Lock()
	defer pm.mu.Unlock()

	key := bucketKey(kind, windowStart)
	pm.txns[key]++
	pm.volumes[key] = pm.volumes[key].Add(amount)
	return nil
}

func (s *memoryMeterStore) MarkSeen(_ context.Context, partnerID, transactionRef string, ttl time.Duration) (bool, error) {
	pm := s.forPartner(partnerID)
	pm.mu.Lock()
	defer pm.mu.Unlock()

	now := time.Now()
	if expiry, ok := pm.seen[transactionRef]; ok && expiry.After(now) {
		return false, nil
	}
	pm.seen[transactionRef] = now.Add(ttl)
	return true, nil
}

func (s *memoryMeterStore) UnmarkSeen(_ context.Context, partnerID, transactionRef string) error {
	pm := s.forPartner(partnerID)
	pm.mu.Lock()
	defer pm.mu.Unlock()

	delete(pm.seen, transactionRef)
	return nil
}
