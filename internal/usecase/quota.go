package usecase

import (
	"context"
	"fmt"
	"time"

	"tariff-routing-service/internal/domain"
	"tariff-routing-service/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type DenialReason string

const (
	DenialRateLimitExceeded     DenialReason = "RATE_LIMIT_EXCEEDED"
	DenialDailyQuotaExceeded    DenialReason = "DAILY_QUOTA_EXCEEDED"
	DenialDailyVolumeExceeded   DenialReason = "DAILY_VOLUME_EXCEEDED"
	DenialMonthlyQuotaExceeded  DenialReason = "MONTHLY_QUOTA_EXCEEDED"
	DenialMaxTransactionAmount  DenialReason = "MAX_TRANSACTION_AMOUNT_EXCEEDED"
)

// Denial is a typed admission refusal naming the first ceiling
// breached. It satisfies error so it can flow through usecase returns.
type Denial struct {
	PartnerID string       `json:"partner_id"`
	Reason    DenialReason `json:"reason"`
	Window    string       `json:"window,omitempty"`
	Limit     string       `json:"limit"`
	Current   string       `json:"current"`
}

func (d *Denial) Error() string {
	if d.Window != "" {
		return fmt.Sprintf("partner %s denied: %s (%s window, %s/%s)", d.PartnerID, d.Reason, d.Window, d.Current, d.Limit)
	}
	return fmt.Sprintf("partner %s denied: %s (%s/%s)", d.PartnerID, d.Reason, d.Current, d.Limit)
}

// dedupeTTL bounds how long a transaction ref is remembered for
// idempotent recording. At-least-once redelivery windows are far
// shorter than this in practice.
const dedupeTTL = 48 * time.Hour

// QuotaTracker answers admission-control queries and records usage
// against per-partner window counters. Counters are the single source
// of truth for admission, so every mutation goes through the
// MeterStore, which serializes per-partner updates.
type QuotaTracker struct {
	meter  repository.MeterStore
	logger *zap.Logger
}

func NewQuotaTracker(meter repository.MeterStore, logger *zap.Logger) *QuotaTracker {
	return &QuotaTracker{meter: meter, logger: logger}
}

var rateWindows = []struct {
	kind  repository.WindowKind
	limit func(domain.RateLimits) int64
}{
	{repository.WindowSecond, func(r domain.RateLimits) int64 { return r.PerSecond }},
	{repository.WindowMinute, func(r domain.RateLimits) int64 { return r.PerMinute }},
	{repository.WindowHour, func(r domain.RateLimits) int64 { return r.PerHour }},
	{repository.WindowDay, func(r domain.RateLimits) int64 { return r.PerDay }},
}

// Admit checks every configured ceiling for the partner and returns
// the first breached one as a Denial, or nil when admitted. The
// request counters are bumped as part of admission; transaction
// counters only move through Record.
func (q *QuotaTracker) Admit(ctx context.Context, partner *domain.Partner, amount decimal.Decimal, now time.Time) (*Denial, error) {
	if !partner.AcceptsAmount(amount) {
		return &Denial{
			PartnerID: partner.ID,
			Reason:    DenialMaxTransactionAmount,
			Limit:     partner.UsageQuotas.MaxTransactionAmount.String(),
			Current:   amount.String(),
		}, nil
	}

	for _, w := range rateWindows {
		limit := w.limit(partner.RateLimits)
		if limit <= 0 {
			continue
		}
		count, err := q.meter.IncrRequests(ctx, partner.ID, w.kind, repository.WindowStart(w.kind, now))
		if err != nil {
			return nil, fmt.Errorf("failed to check %s rate window: %w", w.kind, err)
		}
		if count > limit {
			return &Denial{
				PartnerID: partner.ID,
				Reason:    DenialRateLimitExceeded,
				Window:    string(w.kind),
				Limit:     fmt.Sprintf("%d", limit),
				Current:   fmt.Sprintf("%d", count),
			}, nil
		}
	}

	dayStart := repository.WindowStart(repository.WindowDay, now)

	if limit := partner.UsageQuotas.DailyTransactionCount; limit > 0 {
		count, err := q.meter.GetTransactionCount(ctx, partner.ID, repository.WindowDay, dayStart)
		if err != nil {
			return nil, fmt.Errorf("failed to read daily transaction count: %w", err)
		}
		if count >= limit {
			return &Denial{
				PartnerID: partner.ID,
				Reason:    DenialDailyQuotaExceeded,
				Window:    string(repository.WindowDay),
				Limit:     fmt.Sprintf("%d", limit),
				Current:   fmt.Sprintf("%d", count),
			}, nil
		}
	}

	if limit := partner.UsageQuotas.DailyVolume; limit.IsPositive() {
		vol, err := q.meter.GetVolume(ctx, partner.ID, repository.WindowDay, dayStart)
		if err != nil {
			return nil, fmt.Errorf("failed to read daily volume: %w", err)
		}
		if vol.Add(amount).GreaterThan(limit) {
			return &Denial{
				PartnerID: partner.ID,
				Reason:    DenialDailyVolumeExceeded,
				Window:    string(repository.WindowDay),
				Limit:     limit.String(),
				Current:   vol.String(),
			}, nil
		}
	}

	if limit := partner.UsageQuotas.MonthlyTransactionCount; limit > 0 {
		monthStart := repository.WindowStart(repository.WindowMonth, now)
		count, err := q.meter.GetTransactionCount(ctx, partner.ID, repository.WindowMonth, monthStart)
		if err != nil {
			return nil, fmt.Errorf("failed to read monthly transaction count: %w", err)
		}
		if count >= limit {
			return &Denial{
				PartnerID: partner.ID,
				Reason:    DenialMonthlyQuotaExceeded,
				Window:    string(repository.WindowMonth),
				Limit:     fmt.Sprintf("%d", limit),
				Current:   fmt.Sprintf("%d", count),
			}, nil
		}
	}

	return nil, nil
}

// Record adds one executed transaction to the partner's daily and
// monthly counters. Idempotent per transaction ref: duplicate
// deliveries of the same ref are dropped, not double-counted.
func (q *QuotaTracker) Record(ctx context.Context, partnerID, transactionRef string, amount decimal.Decimal, now time.Time) error {
	first, err := q.meter.MarkSeen(ctx, partnerID, transactionRef, dedupeTTL)
	if err != nil {
		return fmt.Errorf("failed to deduplicate transaction: %w", err)
	}
	if !first {
		q.logger.Debug("duplicate usage record dropped",
			zap.String("partner_id", partnerID),
			zap.String("transaction_ref", transactionRef))
		return nil
	}

	for _, kind := range []repository.WindowKind{repository.WindowDay, repository.WindowMonth} {
		start := repository.WindowStart(kind, now)
		if err := q.meter.RecordTransaction(ctx, partnerID, kind, start, amount); err != nil {
			// Release the dedupe claim so the caller's retry is not
			// swallowed as a duplicate while the counters missed it.
			if uerr := q.meter.UnmarkSeen(ctx, partnerID, transactionRef); uerr != nil {
				q.logger.Error("failed to release dedupe claim after counter failure",
					zap.String("partner_id", partnerID),
					zap.String("transaction_ref", transactionRef),
					zap.Error(uerr))
			}
			return fmt.Errorf("failed to record %s usage: %w", kind, err)
		}
	}
	return nil
}
