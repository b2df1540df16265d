package usecase

import (
	"errors"
	"testing"
	"time"

	"tariff-routing-service/internal/domain"
	xerrors "tariff-routing-service/pkg/xerrors"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func strPtr(s string) *string { return &s }

func activeTariff(id string, txType domain.TransactionType) *domain.Tariff {
	return &domain.Tariff{
		ID:              id,
		Name:            id,
		TransactionType: txType,
		FeeType:         domain.FeeFixed,
		Status:          domain.StatusActive,
		CreatedAt:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func resolutionCtx(txType domain.TransactionType, currency, amount string) *domain.ResolutionContext {
	return &domain.ResolutionContext{
		TransactionRef:  "txn-1",
		TransactionType: txType,
		Currency:        currency,
		UserType:        domain.UserTypeSubscriber,
		ProfileType:     domain.ProfileIndividual,
		Amount:          dec(amount),
	}
}

func TestMatchNoCandidates(t *testing.T) {
	m := NewTariffMatcher(zap.NewNop())

	_, err := m.Match(nil, resolutionCtx(domain.TransactionCashOut, "UGX", "1000"))
	require.True(t, errors.Is(err, xerrors.ErrNoMatchingTariff))
}

func TestMatchSkipsInactiveAndPending(t *testing.T) {
	m := NewTariffMatcher(zap.NewNop())

	inactive := activeTariff("t-inactive", domain.TransactionCashOut)
	inactive.Status = domain.StatusInactive
	pending := activeTariff("t-pending", domain.TransactionCashOut)
	pending.Status = domain.StatusPendingApproval

	_, err := m.Match([]*domain.Tariff{inactive, pending}, resolutionCtx(domain.TransactionCashOut, "UGX", "1000"))
	require.True(t, errors.Is(err, xerrors.ErrNoMatchingTariff))
}

func TestMatchPrefersHigherSpecificity(t *testing.T) {
	m := NewTariffMatcher(zap.NewNop())

	broad := activeTariff("t-broad", domain.TransactionWalletToWallet)
	narrow := activeTariff("t-narrow", domain.TransactionWalletToWallet)
	narrow.Currency = strPtr("UGX")
	narrow.UserTypes = []domain.UserType{domain.UserTypeSubscriber}

	res, err := m.Match([]*domain.Tariff{broad, narrow}, resolutionCtx(domain.TransactionWalletToWallet, "UGX", "5000"))
	require.NoError(t, err)
	require.Equal(t, "t-narrow", res.Tariff.ID)
	require.False(t, res.Conflict)
}

func TestMatchAmountRangeSelectsTier(t *testing.T) {
	m := NewTariffMatcher(zap.NewNop())

	low := activeTariff("t-low", domain.TransactionCashOut)
	low.MinAmount = decPtr("0")
	low.MaxAmount = decPtr("10000")
	high := activeTariff("t-high", domain.TransactionCashOut)
	high.MinAmount = decPtr("10001")

	res, err := m.Match([]*domain.Tariff{low, high}, resolutionCtx(domain.TransactionCashOut, "UGX", "50000"))
	require.NoError(t, err)
	require.Equal(t, "t-high", res.Tariff.ID)

	res, err = m.Match([]*domain.Tariff{low, high}, resolutionCtx(domain.TransactionCashOut, "UGX", "10000"))
	require.NoError(t, err)
	require.Equal(t, "t-low", res.Tariff.ID)
}

func TestMatchPartnerBindingPreferred(t *testing.T) {
	m := NewTariffMatcher(zap.NewNop())

	generic := activeTariff("t-generic", domain.TransactionMerchantPay)
	bound := activeTariff("t-bound", domain.TransactionMerchantPay)
	bound.PartnerID = strPtr("p1")

	rctx := resolutionCtx(domain.TransactionMerchantPay, "UGX", "1000")
	rctx.PartnerID = strPtr("p1")

	res, err := m.Match([]*domain.Tariff{generic, bound}, rctx)
	require.NoError(t, err)
	require.Equal(t, "t-bound", res.Tariff.ID)

	// Without a partner on the request, the bound tariff does not
	// match and the generic one serves.
	res, err = m.Match([]*domain.Tariff{generic, bound}, resolutionCtx(domain.TransactionMerchantPay, "UGX", "1000"))
	require.NoError(t, err)
	require.Equal(t, "t-generic", res.Tariff.ID)
}

func TestMatchRecentApprovalBreaksTie(t *testing.T) {
	m := NewTariffMatcher(zap.NewNop())

	older := activeTariff("t-older", domain.TransactionBillPayment)
	oldApproved := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	older.ApprovedAt = &oldApproved

	newer := activeTariff("t-newer", domain.TransactionBillPayment)
	newApproved := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	newer.ApprovedAt = &newApproved

	res, err := m.Match([]*domain.Tariff{older, newer}, resolutionCtx(domain.TransactionBillPayment, "UGX", "1000"))
	require.NoError(t, err)
	require.Equal(t, "t-newer", res.Tariff.ID)
	require.False(t, res.Conflict)
}

func TestMatchConflictFallsBackToEarliestCreated(t *testing.T) {
	m := NewTariffMatcher(zap.NewNop())

	approved := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	first := activeTariff("t-a", domain.TransactionCashIn)
	first.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first.ApprovedAt = &approved

	second := activeTariff("t-b", domain.TransactionCashIn)
	second.CreatedAt = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	second.ApprovedAt = &approved

	res, err := m.Match([]*domain.Tariff{second, first}, resolutionCtx(domain.TransactionCashIn, "UGX", "1000"))
	require.NoError(t, err)
	require.Equal(t, "t-a", res.Tariff.ID)
	require.True(t, res.Conflict)
}

func TestMatchDeterministic(t *testing.T) {
	m := NewTariffMatcher(zap.NewNop())

	a := activeTariff("t-a", domain.TransactionCashIn)
	b := activeTariff("t-b", domain.TransactionCashIn)
	rctx := resolutionCtx(domain.TransactionCashIn, "UGX", "1000")

	res1, err := m.Match([]*domain.Tariff{a, b}, rctx)
	require.NoError(t, err)
	res2, err := m.Match([]*domain.Tariff{b, a}, rctx)
	require.NoError(t, err)
	require.Equal(t, res1.Tariff.ID, res2.Tariff.ID)
}
