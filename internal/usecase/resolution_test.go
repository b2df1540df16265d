package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"tariff-routing-service/internal/domain"
	"tariff-routing-service/internal/repository"
	xerrors "tariff-routing-service/pkg/xerrors"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestResolution(t *testing.T, snapTTL time.Duration) (*ResolutionUsecase, *fakeTariffRepo, *fakePartnerRepo, *fakeAuditRepo) {
	t.Helper()
	tariffs := newFakeTariffRepo()
	partners := newFakePartnerRepo()
	audits := newFakeAuditRepo()
	quota := NewQuotaTracker(repository.NewMemoryMeterStore(), zap.NewNop())

	uc := NewResolutionUsecase(
		tariffs,
		partners,
		audits,
		NewTariffMatcher(zap.NewNop()),
		NewFeeCalculator(),
		quota,
		NewPartnerRouter(quota, zap.NewNop()),
		nil,
		zap.NewNop(),
		snapTTL,
	)
	return uc, tariffs, partners, audits
}

func seedActiveTariff(t *testing.T, repo *fakeTariffRepo, id string, fee string) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &domain.Tariff{
		ID:              id,
		Name:            id,
		TransactionType: domain.TransactionCashOut,
		FeeType:         domain.FeeFixed,
		FeeAmount:       dec(fee),
		Status:          domain.StatusActive,
		CreatedBy:       "admin",
	}))
}

func seedActivePartner(t *testing.T, repo *fakePartnerRepo, id string, priority int) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &domain.Partner{
		ID:                id,
		Name:              id,
		Code:              id,
		Kind:              domain.PartnerKindGateway,
		Tier:              domain.TierSilver,
		Regions:           []string{"UG"},
		SupportedServices: []string{"CASH_OUT"},
		Priority:          priority,
		FailoverPriority:  1,
		Status:            domain.StatusActive,
		CreatedBy:         "admin",
	}))
}

func waitForAudits(t *testing.T, audits *fakeAuditRepo, ref string, n int) []*domain.ResolutionAudit {
	t.Helper()
	var out []*domain.ResolutionAudit
	require.Eventually(t, func() bool {
		var err error
		out, err = audits.ListByTransactionRef(context.Background(), ref)
		return err == nil && len(out) >= n
	}, 2*time.Second, 10*time.Millisecond)
	return out
}

func TestResolveFeeEndToEnd(t *testing.T) {
	uc, tariffs, _, audits := newTestResolution(t, time.Hour)
	seedActiveTariff(t, tariffs, "t1", "500")

	rctx := resolutionCtx(domain.TransactionCashOut, "UGX", "50000")
	b, err := uc.ResolveFee(context.Background(), rctx)
	require.NoError(t, err)
	require.True(t, b.Fee.Equal(dec("500")))
	require.True(t, b.NetAmount.Equal(dec("49500")))

	trail := waitForAudits(t, audits, rctx.TransactionRef, 1)
	require.Equal(t, domain.DecisionFeeResolved, trail[0].Decision)
	require.Equal(t, "t1", *trail[0].TariffID)
	require.False(t, trail[0].ConfigConflict)
}

func TestResolveFeeNoMatchWritesDeclinedAudit(t *testing.T) {
	uc, _, _, audits := newTestResolution(t, time.Hour)

	rctx := resolutionCtx(domain.TransactionCashOut, "UGX", "50000")
	_, err := uc.ResolveFee(context.Background(), rctx)
	require.True(t, errors.Is(err, xerrors.ErrNoMatchingTariff))

	trail := waitForAudits(t, audits, rctx.TransactionRef, 1)
	require.Equal(t, domain.DecisionFeeDeclined, trail[0].Decision)
}

func TestResolveFeeConflictFlaggedOnAudit(t *testing.T) {
	uc, tariffs, _, audits := newTestResolution(t, time.Hour)
	seedActiveTariff(t, tariffs, "t-a", "500")
	seedActiveTariff(t, tariffs, "t-b", "700")

	rctx := resolutionCtx(domain.TransactionCashOut, "UGX", "50000")
	_, err := uc.ResolveFee(context.Background(), rctx)
	require.NoError(t, err)

	trail := waitForAudits(t, audits, rctx.TransactionRef, 1)
	require.Equal(t, domain.DecisionFeeResolved, trail[0].Decision)
	require.True(t, trail[0].ConfigConflict)
}

func TestSnapshotServesUntilInvalidated(t *testing.T) {
	uc, tariffs, _, _ := newTestResolution(t, time.Hour)
	seedActiveTariff(t, tariffs, "t1", "500")

	rctx := resolutionCtx(domain.TransactionCashOut, "UGX", "50000")
	b, err := uc.ResolveFee(context.Background(), rctx)
	require.NoError(t, err)
	require.True(t, b.Fee.Equal(dec("500")))

	// A higher-specificity tariff lands in storage but the cached
	// snapshot keeps serving the old view.
	narrow := &domain.Tariff{
		ID:              "t2",
		Name:            "t2",
		TransactionType: domain.TransactionCashOut,
		Currency:        strPtr("UGX"),
		FeeType:         domain.FeeFixed,
		FeeAmount:       dec("900"),
		Status:          domain.StatusActive,
		CreatedBy:       "admin",
	}
	require.NoError(t, tariffs.Create(context.Background(), narrow))

	b, err = uc.ResolveFee(context.Background(), rctx)
	require.NoError(t, err)
	require.True(t, b.Fee.Equal(dec("500")), "stale snapshot still serves")

	uc.InvalidateSnapshot()

	b, err = uc.ResolveFee(context.Background(), rctx)
	require.NoError(t, err)
	require.True(t, b.Fee.Equal(dec("900")), "reload picks up the new tariff")
}

func TestRoutePartnerEndToEnd(t *testing.T) {
	uc, _, partners, audits := newTestResolution(t, time.Hour)
	seedActivePartner(t, partners, "p-one", 1)
	seedActivePartner(t, partners, "p-two", 2)

	req := &domain.RouteRequest{
		TransactionRef: "txn-route",
		Service:        "CASH_OUT",
		Region:         "UG",
		Amount:         dec("1000"),
	}
	decision, err := uc.RoutePartner(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "p-one", decision.Primary.ID)
	require.Len(t, decision.Failovers, 1)

	trail := waitForAudits(t, audits, "txn-route", 1)
	require.Equal(t, domain.DecisionPartnerRouted, trail[0].Decision)
	require.Equal(t, "p-one", *trail[0].PrimaryPartnerID)
	require.Equal(t, []string{"p-two"}, trail[0].FailoverIDs)
}

func TestRoutePartnerNoneAvailable(t *testing.T) {
	uc, _, _, audits := newTestResolution(t, time.Hour)

	req := &domain.RouteRequest{
		TransactionRef: "txn-none",
		Service:        "CASH_OUT",
		Region:         "UG",
		Amount:         dec("1000"),
	}
	_, err := uc.RoutePartner(context.Background(), req)
	require.True(t, errors.Is(err, xerrors.ErrNoPartnerAvailable))

	trail := waitForAudits(t, audits, "txn-none", 1)
	require.Equal(t, domain.DecisionPartnerDeclined, trail[0].Decision)
}

func TestAuditTrailNotFound(t *testing.T) {
	uc, _, _, _ := newTestResolution(t, time.Hour)

	_, err := uc.AuditTrail(context.Background(), "never-seen")
	require.True(t, errors.Is(err, xerrors.ErrNotFound))
}

func TestRecordUsageIdempotent(t *testing.T) {
	uc, _, partners, _ := newTestResolution(t, time.Hour)
	seedActivePartner(t, partners, "p-one", 1)

	require.NoError(t, uc.RecordUsage(context.Background(), "p-one", "txn-1", dec("500")))
	require.NoError(t, uc.RecordUsage(context.Background(), "p-one", "txn-1", dec("500")))
}
