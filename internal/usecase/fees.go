package usecase

import (
	"fmt"

	"tariff-routing-service/internal/domain"
	xerrors "tariff-routing-service/pkg/xerrors"

	"github.com/shopspring/decimal"
)

var decimalOne = decimal.NewFromInt(1)

// minorUnits maps currency codes to their minor-unit exponent.
// Currencies not listed default to 2.
var minorUnits = map[string]int32{
	"UGX": 0,
	"KES": 0,
	"RWF": 0,
	"TZS": 2,
	"NGN": 2,
	"GHS": 2,
	"ZAR": 2,
	"USD": 2,
	"EUR": 2,
	"GBP": 2,
	"KWD": 3,
	"BHD": 3,
}

// MinorUnitExponent returns the number of decimal places amounts in
// the given currency are rounded to.
func MinorUnitExponent(currency string) int32 {
	if exp, ok := minorUnits[currency]; ok {
		return exp
	}
	return 2
}

// FeeCalculator computes the fee for a matched tariff. All arithmetic
// is fixed-point decimal; rounding happens exactly once, after
// clamping, half-up at the currency's minor unit.
type FeeCalculator struct{}

func NewFeeCalculator() *FeeCalculator {
	return &FeeCalculator{}
}

// Compute applies the tariff's fee formula to amount.
// FIXED: fee_amount. PERCENTAGE: amount * fee_percentage.
// HYBRID: fee_amount + amount * fee_percentage. TIERED tariffs carry
// the in-tier formula on the record itself (the matcher's amount-range
// selection already picked the tier), so a TIERED record computes as
// HYBRID of its components.
func (c *FeeCalculator) Compute(tariff *domain.Tariff, amount decimal.Decimal, currency string) (*domain.FeeBreakdown, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount must not be negative", xerrors.ErrInvalidInput)
	}

	var raw decimal.Decimal
	switch tariff.FeeType {
	case domain.FeeFixed:
		raw = tariff.FeeAmount
	case domain.FeePercentage:
		raw = amount.Mul(tariff.FeePercentage)
	case domain.FeeHybrid, domain.FeeTiered:
		raw = tariff.FeeAmount.Add(amount.Mul(tariff.FeePercentage))
	default:
		return nil, fmt.Errorf("%w: unknown fee type %q", xerrors.ErrInvalidInput, tariff.FeeType)
	}

	fee, clamped := clampFee(raw, tariff.MinFee, tariff.MaxFee)

	// Round-half-up at the currency's minor unit. Fees are never
	// negative here, so half-away-from-zero is half-up.
	fee = fee.Round(MinorUnitExponent(currency))

	net := amount.Sub(fee)
	if net.IsNegative() {
		return nil, fmt.Errorf("%w: fee %s on amount %s (tariff %s)",
			xerrors.ErrFeeExceedsAmount, fee.String(), amount.String(), tariff.ID)
	}

	return &domain.FeeBreakdown{
		TariffID:  tariff.ID,
		FeeType:   tariff.FeeType,
		RawFee:    raw,
		Fee:       fee,
		NetAmount: net,
		Clamped:   clamped,
	}, nil
}

// clampFee bounds fee to [min, max] where set. Idempotent.
func clampFee(fee decimal.Decimal, min, max *decimal.Decimal) (decimal.Decimal, bool) {
	clamped := false
	if max != nil && fee.GreaterThan(*max) {
		fee = *max
		clamped = true
	}
	if min != nil && fee.LessThan(*min) {
		fee = *min
		clamped = true
	}
	return fee, clamped
}
