// domain/tariff.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionWalletToWallet TransactionType = "WALLET_TO_WALLET"
	TransactionBillPayment    TransactionType = "BILL_PAYMENT"
	TransactionCashIn         TransactionType = "CASH_IN"
	TransactionCashOut        TransactionType = "CASH_OUT"
	TransactionMerchantPay    TransactionType = "MERCHANT_PAYMENT"
	TransactionAirtime        TransactionType = "AIRTIME_TOPUP"
	TransactionBankTransfer   TransactionType = "BANK_TRANSFER"
	TransactionRemittance     TransactionType = "REMITTANCE"
)

type UserType string

const (
	UserTypeSubscriber UserType = "SUBSCRIBER"
	UserTypeMerchant   UserType = "MERCHANT"
	UserTypeAgent      UserType = "AGENT"
)

type ProfileType string

const (
	ProfileIndividual ProfileType = "INDIVIDUAL"
	ProfileBusiness   ProfileType = "BUSINESS"
	ProfileCorporate  ProfileType = "CORPORATE"
)

type FeeType string

const (
	FeeFixed      FeeType = "FIXED"
	FeePercentage FeeType = "PERCENTAGE"
	FeeHybrid     FeeType = "HYBRID"
	FeeTiered     FeeType = "TIERED"
)

type RecordStatus string

const (
	StatusActive          RecordStatus = "ACTIVE"
	StatusInactive        RecordStatus = "INACTIVE"
	StatusPendingApproval RecordStatus = "PENDING_APPROVAL"
	StatusRejected        RecordStatus = "REJECTED"
)

// Tariff is a fee rule scoped by transaction type, currency, party
// type and amount range. Adjacent amount ranges for the same type
// form the tier ladder (G1/G2/G3 style bands).
type Tariff struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`

	// Selectors. transaction_type is the only required one; nil/empty
	// selectors match any value.
	TransactionType TransactionType  `json:"transaction_type"`
	Currency        *string          `json:"currency,omitempty"`
	UserTypes       []UserType       `json:"user_types,omitempty"`
	ProfileTypes    []ProfileType    `json:"profile_types,omitempty"`
	MinAmount       *decimal.Decimal `json:"min_amount,omitempty"`
	MaxAmount       *decimal.Decimal `json:"max_amount,omitempty"`
	PartnerID       *string          `json:"partner_id,omitempty"`

	// Fee definition. FeePercentage is a fraction in [0,1].
	FeeType       FeeType          `json:"fee_type"`
	FeeAmount     decimal.Decimal  `json:"fee_amount"`
	FeePercentage decimal.Decimal  `json:"fee_percentage"`
	MinFee        *decimal.Decimal `json:"min_fee,omitempty"`
	MaxFee        *decimal.Decimal `json:"max_fee,omitempty"`

	Status RecordStatus `json:"status"`
	// SupersedesID links a pending revision to the ACTIVE row it
	// replaces on approval. The old row keeps serving until then.
	SupersedesID *string `json:"supersedes_id,omitempty"`

	Version    int64  `json:"version"`
	CreatedBy  string `json:"created_by"`
	ApprovedBy *string      `json:"approved_by,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
	ApprovedAt *time.Time   `json:"approved_at,omitempty"`
}

// IsActive reports whether the tariff participates in live
// resolution. Status is authoritative; there is no separately stored
// flag that can drift out of sync with it.
func (t *Tariff) IsActive() bool {
	return t.Status == StatusActive
}

// Matches reports whether the tariff's selectors accept the given
// resolution context. Lifecycle filtering is the caller's concern.
func (t *Tariff) Matches(ctx *ResolutionContext) bool {
	if t.TransactionType != ctx.TransactionType {
		return false
	}
	if t.Currency != nil && *t.Currency != ctx.Currency {
		return false
	}
	if len(t.UserTypes) > 0 && !containsUserType(t.UserTypes, ctx.UserType) {
		return false
	}
	if len(t.ProfileTypes) > 0 && !containsProfileType(t.ProfileTypes, ctx.ProfileType) {
		return false
	}
	if t.MinAmount != nil && ctx.Amount.LessThan(*t.MinAmount) {
		return false
	}
	if t.MaxAmount != nil && ctx.Amount.GreaterThan(*t.MaxAmount) {
		return false
	}
	if t.PartnerID != nil {
		if ctx.PartnerID == nil || *t.PartnerID != *ctx.PartnerID {
			return false
		}
	}
	return true
}

// Specificity ranks how narrowly the tariff's selectors are drawn.
// Partner binding outweighs party-type restrictions, which outweigh a
// currency pin, so a tie between overlapping tariffs always breaks
// toward the most targeted rule.
func (t *Tariff) Specificity() int {
	score := 0
	if t.PartnerID != nil {
		score += 8
	}
	if len(t.UserTypes) > 0 {
		score += 4
	}
	if len(t.ProfileTypes) > 0 {
		score += 2
	}
	if t.Currency != nil {
		score += 1
	}
	return score
}

// RangeOverlaps reports whether two tariffs' amount ranges intersect.
// Absent bounds are unbounded on that side.
func (t *Tariff) RangeOverlaps(other *Tariff) bool {
	if t.MaxAmount != nil && other.MinAmount != nil && t.MaxAmount.LessThan(*other.MinAmount) {
		return false
	}
	if other.MaxAmount != nil && t.MinAmount != nil && other.MaxAmount.LessThan(*t.MinAmount) {
		return false
	}
	return true
}

func containsUserType(set []UserType, v UserType) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsProfileType(set []ProfileType, v ProfileType) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

type TariffFilter struct {
	TransactionType *TransactionType `json:"transaction_type,omitempty"`
	Currency        *string          `json:"currency,omitempty"`
	Status          *RecordStatus    `json:"status,omitempty"`
	PartnerID       *string          `json:"partner_id,omitempty"`
	Limit           int              `json:"limit,omitempty"`
	Offset          int              `json:"offset,omitempty"`
}
