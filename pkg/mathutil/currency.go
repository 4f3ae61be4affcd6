// Package mathutil provides currency rounding helpers.
package mathutil

import (
	"math"

	"github.com/iwvelando/dealership-quote/pkg/constants"
	"github.com/shopspring/decimal"
)

// RoundDecimal rounds a value half-up (away from zero) to the nearest
// multiple of unit and returns it as whole currency units. A unit below 1 is
// treated as 1.
func RoundDecimal(val decimal.Decimal, unit int64) int64 {
	if unit < 1 {
		unit = constants.DefaultRoundingUnit
	}
	u := decimal.NewFromInt(unit)
	return val.Div(u).Round(0).Mul(u).IntPart()
}

// RoundCurrency rounds a float amount half-up to the nearest multiple of unit.
func RoundCurrency(val float64, unit int64) int64 {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return 0
	}
	return RoundDecimal(decimal.NewFromFloat(val), unit)
}

// ApplyPercentage returns amount * percent / 100 rounded to unit.
func ApplyPercentage(amount int64, percent decimal.Decimal, unit int64) int64 {
	raw := decimal.NewFromInt(amount).Mul(percent).Div(decimal.NewFromFloat(constants.PercentageMultiplier))
	return RoundDecimal(raw, unit)
}
