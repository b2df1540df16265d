// domain/resolution.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResolutionContext is the per-call input to tariff matching.
type ResolutionContext struct {
	TransactionRef  string          `json:"transaction_ref"`
	TransactionType TransactionType `json:"transaction_type"`
	Currency        string          `json:"currency"`
	UserType        UserType        `json:"user_type"`
	ProfileType     ProfileType     `json:"profile_type"`
	Amount          decimal.Decimal `json:"amount"`
	PartnerID       *string         `json:"partner_id,omitempty"`
}

// FeeBreakdown is the outcome of a successful fee computation.
// NetAmount + Fee always equals the input amount.
type FeeBreakdown struct {
	TariffID  string          `json:"tariff_id"`
	FeeType   FeeType         `json:"fee_type"`
	RawFee    decimal.Decimal `json:"raw_fee"`
	Fee       decimal.Decimal `json:"fee"`
	NetAmount decimal.Decimal `json:"net_amount"`
	Clamped   bool            `json:"clamped"`
}

// RouteRequest asks for a partner able to execute service in region
// for the given amount.
type RouteRequest struct {
	TransactionRef string          `json:"transaction_ref"`
	Service        string          `json:"service"`
	Region         string          `json:"region"`
	Amount         decimal.Decimal `json:"amount"`
	// ExcludePartnerIDs lets the caller retry routing without
	// partners that already failed execution.
	ExcludePartnerIDs []string `json:"exclude_partner_ids,omitempty"`
}

// RouteDecision is a primary partner plus the ordered failover list.
type RouteDecision struct {
	Primary   *Partner   `json:"primary"`
	Failovers []*Partner `json:"failovers"`
}

type DecisionKind string

const (
	DecisionFeeResolved     DecisionKind = "FEE_RESOLVED"
	DecisionFeeDeclined     DecisionKind = "FEE_DECLINED"
	DecisionPartnerRouted   DecisionKind = "PARTNER_ROUTED"
	DecisionPartnerDeclined DecisionKind = "PARTNER_DECLINED"
)

// ResolutionAudit is written once per resolution call and never
// mutated. Retained for compliance lookups by transaction ref.
type ResolutionAudit struct {
	ID             string       `json:"id"`
	TransactionRef string       `json:"transaction_ref"`
	Decision       DecisionKind `json:"decision"`
	Reason         string       `json:"reason"`

	TransactionType *TransactionType `json:"transaction_type,omitempty"`
	Currency        *string          `json:"currency,omitempty"`
	Amount          *decimal.Decimal `json:"amount,omitempty"`

	TariffID         *string          `json:"tariff_id,omitempty"`
	Fee              *decimal.Decimal `json:"fee,omitempty"`
	NetAmount        *decimal.Decimal `json:"net_amount,omitempty"`
	PrimaryPartnerID *string          `json:"primary_partner_id,omitempty"`
	FailoverIDs      []string         `json:"failover_ids,omitempty"`

	// ConfigConflict flags an ambiguous-match resolution that was
	// decided by the deterministic default and needs manual cleanup.
	ConfigConflict bool `json:"config_conflict"`

	CreatedAt time.Time `json:"created_at"`
}
