package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tariff-routing-service/internal/domain"
	"tariff-routing-service/internal/events"
	"tariff-routing-service/internal/repository"
	xerrors "tariff-routing-service/pkg/xerrors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// snapshot is one immutable view of the active configuration. A
// resolution call reads the pointer once and works on a consistent
// set for its whole duration; refresh swaps the pointer.
type snapshot struct {
	tariffs  []*domain.Tariff
	partners []*domain.Partner
	loadedAt time.Time
}

// ResolutionUsecase is the single entry point for fee resolution and
// partner routing. Every call emits an immutable audit record.
type ResolutionUsecase struct {
	tariffRepo  repository.TariffRepository
	partnerRepo repository.PartnerRepository
	auditRepo   repository.AuditRepository
	matcher     *TariffMatcher
	fees        *FeeCalculator
	quota       *QuotaTracker
	router      *PartnerRouter
	publisher   *events.EventPublisher
	logger      *zap.Logger

	snapTTL time.Duration
	mu      sync.RWMutex
	snap    *snapshot
}

func NewResolutionUsecase(
	tariffRepo repository.TariffRepository,
	partnerRepo repository.PartnerRepository,
	auditRepo repository.AuditRepository,
	matcher *TariffMatcher,
	fees *FeeCalculator,
	quota *QuotaTracker,
	router *PartnerRouter,
	publisher *events.EventPublisher,
	logger *zap.Logger,
	snapTTL time.Duration,
) *ResolutionUsecase {
	return &ResolutionUsecase{
		tariffRepo:  tariffRepo,
		partnerRepo: partnerRepo,
		auditRepo:   auditRepo,
		matcher:     matcher,
		fees:        fees,
		quota:       quota,
		router:      router,
		publisher:   publisher,
		logger:      logger,
		snapTTL:     snapTTL,
	}
}

// ResolveFee matches the single applicable tariff for the context and
// computes the fee. NotFound and InvalidFeeResult come back as typed
// errors; a configuration conflict is flagged on the audit record but
// does not interrupt service.
func (uc *ResolutionUsecase) ResolveFee(ctx context.Context, rctx *domain.ResolutionContext) (*domain.FeeBreakdown, error) {
	snap, err := uc.currentSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	match, err := uc.matcher.Match(snap.tariffs, rctx)
	if err != nil {
		uc.emitAudit(uc.declinedFeeAudit(rctx, err.Error()))
		return nil, err
	}

	breakdown, err := uc.fees.Compute(match.Tariff, rctx.Amount, rctx.Currency)
	if err != nil {
		uc.emitAudit(uc.declinedFeeAudit(rctx, err.Error()))
		return nil, err
	}

	audit := &domain.ResolutionAudit{
		ID:              uuid.NewString(),
		TransactionRef:  rctx.TransactionRef,
		Decision:        domain.DecisionFeeResolved,
		Reason:          fmt.Sprintf("tariff %s (%s)", match.Tariff.Name, match.Tariff.FeeType),
		TransactionType: &rctx.TransactionType,
		Currency:        &rctx.Currency,
		Amount:          &rctx.Amount,
		TariffID:        &breakdown.TariffID,
		Fee:             &breakdown.Fee,
		NetAmount:       &breakdown.NetAmount,
		ConfigConflict:  match.Conflict,
	}
	uc.emitAudit(audit)

	return breakdown, nil
}

// RoutePartner picks the primary partner and ordered failover list
// for a service/region/amount. Quota-denied partners are excluded
// before ordering.
func (uc *ResolutionUsecase) RoutePartner(ctx context.Context, req *domain.RouteRequest) (*domain.RouteDecision, error) {
	snap, err := uc.currentSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	decision, err := uc.router.Route(ctx, snap.partners, req, time.Now())
	if err != nil {
		if errors.Is(err, xerrors.ErrNoPartnerAvailable) {
			uc.emitAudit(&domain.ResolutionAudit{
				ID:             uuid.NewString(),
				TransactionRef: req.TransactionRef,
				Decision:       domain.DecisionPartnerDeclined,
				Reason:         fmt.Sprintf("no eligible partner for %s in %s", req.Service, req.Region),
				Amount:         &req.Amount,
			})
		}
		return nil, err
	}

	failoverIDs := make([]string, 0, len(decision.Failovers))
	for _, p := range decision.Failovers {
		failoverIDs = append(failoverIDs, p.ID)
	}
	uc.emitAudit(&domain.ResolutionAudit{
		ID:               uuid.NewString(),
		TransactionRef:   req.TransactionRef,
		Decision:         domain.DecisionPartnerRouted,
		Reason:           fmt.Sprintf("primary %s, %d failovers", decision.Primary.Code, len(failoverIDs)),
		Amount:           &req.Amount,
		PrimaryPartnerID: &decision.Primary.ID,
		FailoverIDs:      failoverIDs,
	})

	return decision, nil
}

// RecordUsage reports an executed transaction back to the quota
// tracker. Idempotent per transaction ref.
func (uc *ResolutionUsecase) RecordUsage(ctx context.Context, partnerID, transactionRef string, amount decimal.Decimal) error {
	return uc.quota.Record(ctx, partnerID, transactionRef, amount, time.Now())
}

// AuditTrail returns every resolution decision recorded for a
// transaction ref, oldest first.
func (uc *ResolutionUsecase) AuditTrail(ctx context.Context, transactionRef string) ([]*domain.ResolutionAudit, error) {
	audits, err := uc.auditRepo.ListByTransactionRef(ctx, transactionRef)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit trail: %w", err)
	}
	if len(audits) == 0 {
		return nil, xerrors.ErrNotFound
	}
	return audits, nil
}

// InvalidateSnapshot drops the cached configuration view. Called by
// the approval workflow when a change goes live.
func (uc *ResolutionUsecase) InvalidateSnapshot() {
	uc.mu.Lock()
	uc.snap = nil
	uc.mu.Unlock()
}

// currentSnapshot returns the cached view, reloading when the TTL has
// lapsed. Mid-call staleness is acceptable and bounded by the TTL;
// changes only land through approval anyway.
func (uc *ResolutionUsecase) currentSnapshot(ctx context.Context) (*snapshot, error) {
	uc.mu.RLock()
	snap := uc.snap
	uc.mu.RUnlock()
	if snap != nil && time.Since(snap.loadedAt) < uc.snapTTL {
		return snap, nil
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.snap != nil && time.Since(uc.snap.loadedAt) < uc.snapTTL {
		return uc.snap, nil
	}

	tariffs, err := uc.tariffRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active tariffs: %w", err)
	}
	partners, err := uc.partnerRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active partners: %w", err)
	}
	for _, p := range partners {
		p.ApplyTierDefaults()
	}

	uc.snap = &snapshot{tariffs: tariffs, partners: partners, loadedAt: time.Now()}
	uc.logger.Debug("configuration snapshot refreshed",
		zap.Int("tariffs", len(tariffs)),
		zap.Int("partners", len(partners)))
	return uc.snap, nil
}

func (uc *ResolutionUsecase) declinedFeeAudit(rctx *domain.ResolutionContext, reason string) *domain.ResolutionAudit {
	return &domain.ResolutionAudit{
		ID:              uuid.NewString(),
		TransactionRef:  rctx.TransactionRef,
		Decision:        domain.DecisionFeeDeclined,
		Reason:          reason,
		TransactionType: &rctx.TransactionType,
		Currency:        &rctx.Currency,
		Amount:          &rctx.Amount,
	}
}

// emitAudit persists and publishes the record off the hot path. The
// record itself is immutable once written.
func (uc *ResolutionUsecase) emitAudit(audit *domain.ResolutionAudit) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := uc.auditRepo.Create(ctx, audit); err != nil {
			uc.logger.Error("failed to persist resolution audit",
				zap.String("transaction_ref", audit.TransactionRef),
				zap.Error(err))
		}
		if uc.publisher != nil {
			_ = uc.publisher.PublishResolution(ctx, audit)
		}
	}()
}
