package pricing

import (
	"github.com/iwvelando/dealership-quote/pkg/constants"
	"github.com/iwvelando/dealership-quote/pkg/mathutil"
	"github.com/shopspring/decimal"
)

// RegistrationFeeResult is the itemized on-road cost of registering a vehicle.
type RegistrationFeeResult struct {
	RegistrationTax   int64 `json:"registrationTax"`
	LicensePlate      int64 `json:"licensePlate"`
	Inspection        int64 `json:"inspection"`
	RoadFee           int64 `json:"roadFee"`
	Insurance         int64 `json:"insurance"`
	ServiceFee        int64 `json:"serviceFee"`
	TotalRegistration int64 `json:"totalRegistration"`
}

// DriveAwayQuote is either an available drive-away amount or the
// "coming soon" state. Amount and Fees are only set when Available.
type DriveAwayQuote struct {
	Available bool                   `json:"available"`
	Amount    int64                  `json:"amount,omitempty"`
	Fees      *RegistrationFeeResult `json:"fees,omitempty"`
}

// Unavailable returns the quote for a variant without a published price.
func Unavailable() DriveAwayQuote {
	return DriveAwayQuote{}
}

// Calculator applies the registration tax rate and rounding unit.
type Calculator struct {
	TaxPercent   decimal.Decimal
	RoundingUnit int64
}

// NewCalculator builds a calculator for the given tax percentage.
func NewCalculator(taxPercent decimal.Decimal, roundingUnit int64) Calculator {
	if roundingUnit < 1 {
		roundingUnit = constants.DefaultRoundingUnit
	}
	return Calculator{TaxPercent: taxPercent, RoundingUnit: roundingUnit}
}

// DefaultCalculator uses the provisional 10% registration tax and whole-unit rounding.
func DefaultCalculator() Calculator {
	return NewCalculator(decimal.NewFromFloat(constants.DefaultRegistrationTaxPercent), constants.DefaultRoundingUnit)
}

// ComputeRegistrationFees itemizes the registration costs of a vehicle.
func (c Calculator) ComputeRegistrationFees(variant Variant, basePrice int64, fees RegistrationFees) RegistrationFeeResult {
	inspection := fees.InspectionStandard
	if variant.UsesPremiumInspection() {
		inspection = fees.InspectionPremium
	}

	result := RegistrationFeeResult{
		RegistrationTax: mathutil.ApplyPercentage(basePrice, c.TaxPercent, c.RoundingUnit),
		LicensePlate:    fees.LicensePlate,
		Inspection:      inspection,
		RoadFee:         fees.RoadFee,
		Insurance:       fees.Insurance,
		ServiceFee:      fees.ServiceFee,
	}
	result.TotalRegistration = result.RegistrationTax + result.LicensePlate + result.Inspection +
		result.RoadFee + result.Insurance + result.ServiceFee
	return result
}

// ComputeDriveAwayPrice adds the registration costs to the promotion-adjusted
// price. Rows without a published price return Unavailable.
func (c Calculator) ComputeDriveAwayPrice(vp VehiclePrice, fees RegistrationFees) DriveAwayQuote {
	if !vp.PriceAvailable {
		return Unavailable()
	}
	reg := c.ComputeRegistrationFees(vp.Variant, vp.BasePrice, fees)
	return DriveAwayQuote{
		Available: true,
		Amount:    vp.NetPrice() + reg.TotalRegistration,
		Fees:      &reg,
	}
}

// ComputeRegistrationFees uses DefaultCalculator.
func ComputeRegistrationFees(variant Variant, basePrice int64, fees RegistrationFees) RegistrationFeeResult {
	return DefaultCalculator().ComputeRegistrationFees(variant, basePrice, fees)
}

// ComputeDriveAwayPrice uses DefaultCalculator.
func ComputeDriveAwayPrice(vp VehiclePrice, fees RegistrationFees) DriveAwayQuote {
	return DefaultCalculator().ComputeDriveAwayPrice(vp, fees)
}
