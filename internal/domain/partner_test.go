package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPartnerIsActive(t *testing.T) {
	p := &Partner{Status: StatusActive}
	assert.True(t, p.IsActive())

	p.IsSuspended = true
	assert.False(t, p.IsActive(), "suspension drops the partner from routing")

	pending := &Partner{Status: StatusPendingApproval}
	assert.False(t, pending.IsActive())
}

func TestPartnerSupports(t *testing.T) {
	p := &Partner{
		Regions:           []string{"UG", "KE"},
		SupportedServices: []string{"CASH_OUT", "BILL_PAYMENT"},
	}

	assert.True(t, p.Supports("CASH_OUT", "UG"))
	assert.True(t, p.Supports("BILL_PAYMENT", "KE"))
	assert.False(t, p.Supports("CASH_OUT", "TZ"))
	assert.False(t, p.Supports("REMITTANCE", "UG"))
}

func TestPartnerAcceptsAmount(t *testing.T) {
	unconfigured := &Partner{}
	assert.True(t, unconfigured.AcceptsAmount(d("999999999")))

	capped := &Partner{}
	capped.UsageQuotas.MaxTransactionAmount = d("50000")
	assert.True(t, capped.AcceptsAmount(d("50000")))
	assert.False(t, capped.AcceptsAmount(d("50001")))
}

func TestHasActiveProductionKey(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	p := &Partner{}
	assert.False(t, p.HasActiveProductionKey(now))

	p.APIKeys = []PartnerAPIKey{{Environment: EnvDevelopment, IsActive: true}}
	assert.False(t, p.HasActiveProductionKey(now), "development keys don't count")

	p.APIKeys = append(p.APIKeys, PartnerAPIKey{Environment: EnvProduction, IsActive: true, IsRevoked: true})
	assert.False(t, p.HasActiveProductionKey(now), "revoked keys don't count")

	p.APIKeys = append(p.APIKeys, PartnerAPIKey{Environment: EnvProduction, IsActive: true, ExpiresAt: &past})
	assert.False(t, p.HasActiveProductionKey(now), "expired keys don't count")

	p.APIKeys = append(p.APIKeys, PartnerAPIKey{Environment: EnvProduction, IsActive: true, ExpiresAt: &future})
	assert.True(t, p.HasActiveProductionKey(now))
}

func TestApplyTierDefaultsFillsOnlyUnset(t *testing.T) {
	p := &Partner{Tier: TierGold}
	p.RateLimits.PerSecond = 5

	p.ApplyTierDefaults()

	rl, uq := TierDefaults(TierGold)
	assert.Equal(t, int64(5), p.RateLimits.PerSecond, "explicit value kept")
	assert.Equal(t, rl.PerMinute, p.RateLimits.PerMinute)
	assert.Equal(t, uq.DailyTransactionCount, p.UsageQuotas.DailyTransactionCount)
	assert.True(t, uq.MaxTransactionAmount.Equal(p.UsageQuotas.MaxTransactionAmount))
}

func TestTierDefaultsOrdering(t *testing.T) {
	silver, _ := TierDefaults(TierSilver)
	gold, _ := TierDefaults(TierGold)
	platinum, _ := TierDefaults(TierPlatinum)

	assert.Less(t, silver.PerSecond, gold.PerSecond)
	assert.Less(t, gold.PerSecond, platinum.PerSecond)
}
