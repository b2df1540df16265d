// domain/partner.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PartnerKind string

const (
	PartnerKindGateway         PartnerKind = "GATEWAY"
	PartnerKindExternalPayment PartnerKind = "EXTERNAL_PAYMENT"
)

type PartnerTier string

const (
	TierSilver   PartnerTier = "SILVER"
	TierGold     PartnerTier = "GOLD"
	TierPlatinum PartnerTier = "PLATINUM"
)

type WalletType string

const (
	WalletEscrow     WalletType = "ESCROW"
	WalletCommission WalletType = "COMMISSION"
)

type KeyEnvironment string

const (
	EnvDevelopment KeyEnvironment = "DEVELOPMENT"
	EnvProduction  KeyEnvironment = "PRODUCTION"
)

// RateLimits are request ceilings per fixed window.
type RateLimits struct {
	PerSecond int64 `json:"per_second"`
	PerMinute int64 `json:"per_minute"`
	PerHour   int64 `json:"per_hour"`
	PerDay    int64 `json:"per_day"`
}

// UsageQuotas are transaction-level ceilings. Zero values mean the
// ceiling is not configured.
type UsageQuotas struct {
	DailyTransactionCount   int64           `json:"daily_transaction_count"`
	DailyVolume             decimal.Decimal `json:"daily_volume"`
	MonthlyTransactionCount int64           `json:"monthly_transaction_count"`
	MaxTransactionAmount    decimal.Decimal `json:"max_transaction_amount"`
}

// Partner is an external execution endpoint: a gateway or an external
// payment partner, discriminated by Kind and served through one
// repository rather than two parallel pools merged at the edge.
type Partner struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Code         string      `json:"code"`
	Kind         PartnerKind `json:"kind"`
	Tier         PartnerTier `json:"tier"`
	Regions      []string    `json:"regions"`
	BaseURL      string      `json:"base_url"`
	ContactEmail string      `json:"contact_email"`
	ContactPhone string      `json:"contact_phone"`

	SupportedServices []string     `json:"supported_services"`
	WalletTypes       []WalletType `json:"wallet_types"`

	RateLimits         RateLimits      `json:"rate_limits"`
	UsageQuotas        UsageQuotas     `json:"usage_quotas"`
	CostPerTransaction decimal.Decimal `json:"cost_per_transaction"`

	// Priority 1 is the best primary candidate; FailoverPriority
	// orders candidates that share a priority rank.
	Priority         int `json:"priority"`
	FailoverPriority int `json:"failover_priority"`

	Status          RecordStatus `json:"status"`
	IsSuspended     bool         `json:"is_suspended"`
	SuspendedReason *string      `json:"suspended_reason,omitempty"`
	// SupersedesID links a pending revision to the ACTIVE row it
	// replaces on approval.
	SupersedesID *string `json:"supersedes_id,omitempty"`

	APIKeys []PartnerAPIKey `json:"api_keys,omitempty"`

	Version    int64      `json:"version"`
	CreatedBy  string     `json:"created_by"`
	ApprovedBy *string    `json:"approved_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
}

type PartnerAPIKey struct {
	ID          string         `json:"id"`
	PartnerID   string         `json:"partner_id"`
	Key         string         `json:"key"`
	Environment KeyEnvironment `json:"environment"`
	IsActive    bool           `json:"is_active"`
	IsRevoked   bool           `json:"is_revoked"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	RevokedAt   *time.Time     `json:"revoked_at,omitempty"`
}

// IsActive reports whether the partner participates in routing.
func (p *Partner) IsActive() bool {
	return p.Status == StatusActive && !p.IsSuspended
}

// Supports reports whether the partner can execute the given service
// in the given region.
func (p *Partner) Supports(service, region string) bool {
	if !containsString(p.SupportedServices, service) {
		return false
	}
	return containsString(p.Regions, region)
}

// AcceptsAmount checks the per-transaction ceiling. A zero ceiling
// means unconfigured and accepts anything.
func (p *Partner) AcceptsAmount(amount decimal.Decimal) bool {
	if p.UsageQuotas.MaxTransactionAmount.IsZero() {
		return true
	}
	return amount.LessThanOrEqual(p.UsageQuotas.MaxTransactionAmount)
}

// HasActiveProductionKey reports whether a non-revoked, non-expired
// PRODUCTION key is outstanding. At most one may exist at a time, and
// deactivation is blocked while one does.
func (p *Partner) HasActiveProductionKey(now time.Time) bool {
	for _, k := range p.APIKeys {
		if k.Environment != EnvProduction || !k.IsActive || k.IsRevoked {
			continue
		}
		if k.ExpiresAt != nil && k.ExpiresAt.Before(now) {
			continue
		}
		return true
	}
	return false
}

// TierDefaults returns the rate limits and quotas a partner of the
// given tier falls back to when its record leaves them unset.
func TierDefaults(tier PartnerTier) (RateLimits, UsageQuotas) {
	switch tier {
	case TierPlatinum:
		return RateLimits{PerSecond: 100, PerMinute: 3000, PerHour: 100000, PerDay: 1000000},
			UsageQuotas{DailyTransactionCount: 500000, DailyVolume: decimal.NewFromInt(5_000_000_000), MonthlyTransactionCount: 10000000, MaxTransactionAmount: decimal.NewFromInt(50_000_000)}
	case TierGold:
		return RateLimits{PerSecond: 50, PerMinute: 1500, PerHour: 50000, PerDay: 500000},
			UsageQuotas{DailyTransactionCount: 100000, DailyVolume: decimal.NewFromInt(1_000_000_000), MonthlyTransactionCount: 2000000, MaxTransactionAmount: decimal.NewFromInt(10_000_000)}
	default: // SILVER
		return RateLimits{PerSecond: 10, PerMinute: 300, PerHour: 10000, PerDay: 100000},
			UsageQuotas{DailyTransactionCount: 20000, DailyVolume: decimal.NewFromInt(200_000_000), MonthlyTransactionCount: 400000, MaxTransactionAmount: decimal.NewFromInt(2_000_000)}
	}
}

// ApplyTierDefaults fills unset limits from the partner's tier.
func (p *Partner) ApplyTierDefaults() {
	rl, uq := TierDefaults(p.Tier)
	if p.RateLimits.PerSecond == 0 {
		p.RateLimits.PerSecond = rl.PerSecond
	}
	if p.RateLimits.PerMinute == 0 {
		p.RateLimits.PerMinute = rl.PerMinute
	}
	if p.RateLimits.PerHour == 0 {
		p.RateLimits.PerHour = rl.PerHour
	}
	if p.RateLimits.PerDay == 0 {
		p.RateLimits.PerDay = rl.PerDay
	}
	if p.UsageQuotas.DailyTransactionCount == 0 {
		p.UsageQuotas.DailyTransactionCount = uq.DailyTransactionCount
	}
	if p.UsageQuotas.DailyVolume.IsZero() {
		p.UsageQuotas.DailyVolume = uq.DailyVolume
	}
	if p.UsageQuotas.MonthlyTransactionCount == 0 {
		p.UsageQuotas.MonthlyTransactionCount = uq.MonthlyTransactionCount
	}
	if p.UsageQuotas.MaxTransactionAmount.IsZero() {
		p.UsageQuotas.MaxTransactionAmount = uq.MaxTransactionAmount
	}
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

type PartnerFilter struct {
	Kind    *PartnerKind  `json:"kind,omitempty"`
	Status  *RecordStatus `json:"status,omitempty"`
	Region  *string       `json:"region,omitempty"`
	Service *string       `json:"service,omitempty"`
	Limit   int           `json:"limit,omitempty"`
	Offset  int           `json:"offset,omitempty"`
}
