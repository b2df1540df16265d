package usecase

import (
	"context"
	"sort"
	"time"

	"tariff-routing-service/internal/domain"
	xerrors "tariff-routing-service/pkg/xerrors"

	"go.uber.org/zap"
)

// PartnerRouter ranks eligible partners for a service/region/amount
// and returns a primary plus the ordered failover list. It only
// supplies ordering; execution retries against failovers are the
// caller's concern.
type PartnerRouter struct {
	quota  *QuotaTracker
	logger *zap.Logger
}

func NewPartnerRouter(quota *QuotaTracker, logger *zap.Logger) *PartnerRouter {
	return &PartnerRouter{quota: quota, logger: logger}
}

// Route filters the active partner set to those supporting the
// request, drops any the quota tracker currently denies, and orders
// survivors by priority, then failover priority, then id for a total,
// stable order.
func (r *PartnerRouter) Route(ctx context.Context, partners []*domain.Partner, req *domain.RouteRequest, now time.Time) (*domain.RouteDecision, error) {
	excluded := make(map[string]bool, len(req.ExcludePartnerIDs))
	for _, id := range req.ExcludePartnerIDs {
		excluded[id] = true
	}

	var survivors []*domain.Partner
	for _, p := range partners {
		if excluded[p.ID] || !p.IsActive() || !p.Supports(req.Service, req.Region) {
			continue
		}
		if !p.AcceptsAmount(req.Amount) {
			continue
		}

		denial, err := r.quota.Admit(ctx, p, req.Amount, now)
		if err != nil {
			return nil, err
		}
		if denial != nil {
			r.logger.Debug("partner excluded from routing",
				zap.String("partner_id", p.ID),
				zap.String("reason", string(denial.Reason)))
			continue
		}
		survivors = append(survivors, p)
	}

	if len(survivors) == 0 {
		return nil, xerrors.ErrNoPartnerAvailable
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		if survivors[i].Priority != survivors[j].Priority {
			return survivors[i].Priority < survivors[j].Priority
		}
		if survivors[i].FailoverPriority != survivors[j].FailoverPriority {
			return survivors[i].FailoverPriority < survivors[j].FailoverPriority
		}
		return survivors[i].ID < survivors[j].ID
	})

	return &domain.RouteDecision{
		Primary:   survivors[0],
		Failovers: survivors[1:],
	}, nil
}
