// Package loans provides the fixed-rate installment loan calculator.
package loans

import (
	"fmt"
	"math"

	"github.com/iwvelando/dealership-quote/pkg/constants"
	"github.com/iwvelando/dealership-quote/pkg/mathutil"
	"github.com/shopspring/decimal"
)

// LoanInput holds the parameters of one loan estimate. Amounts are whole VND.
type LoanInput struct {
	Principal         int64   `json:"principal"`
	AnnualRatePercent float64 `json:"annualRatePercent"`
	TermMonths        int     `json:"termMonths"`
	InsurancePercent  float64 `json:"insurancePercent,omitempty"`
}

// LoanResult holds the rounded outcome of a loan estimate.
type LoanResult struct {
	MonthlyPayment int64 `json:"monthlyPayment"`
	TotalPayment   int64 `json:"totalPayment"`
	TotalInterest  int64 `json:"totalInterest"`
}

// Options controls rounding and the accepted input range. The zero value
// rounds to whole units and applies the default bounds.
type Options struct {
	RoundingUnit         int64
	MaxTermMonths        int
	MaxAnnualRatePercent float64
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		RoundingUnit:         constants.DefaultRoundingUnit,
		MaxTermMonths:        constants.DefaultMaxTermMonths,
		MaxAnnualRatePercent: constants.DefaultMaxAnnualRatePercent,
	}
}

func (o Options) roundingUnit() int64 {
	if o.RoundingUnit < 1 {
		return constants.DefaultRoundingUnit
	}
	return o.RoundingUnit
}

// InputError reports a loan input outside the accepted range.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks the input against the options bounds.
func (in LoanInput) Validate(opts Options) error {
	if in.Principal <= 0 {
		return &InputError{Field: "principal", Reason: "must be greater than 0"}
	}
	if in.TermMonths <= 0 {
		return &InputError{Field: "termMonths", Reason: "must be greater than 0"}
	}
	if opts.MaxTermMonths > 0 && in.TermMonths > opts.MaxTermMonths {
		return &InputError{Field: "termMonths", Reason: fmt.Sprintf("must not exceed %d", opts.MaxTermMonths)}
	}
	if in.AnnualRatePercent < 0 || math.IsNaN(in.AnnualRatePercent) {
		return &InputError{Field: "annualRatePercent", Reason: "must be 0 or greater"}
	}
	if opts.MaxAnnualRatePercent > 0 && in.AnnualRatePercent > opts.MaxAnnualRatePercent {
		return &InputError{Field: "annualRatePercent", Reason: fmt.Sprintf("must not exceed %.2f", opts.MaxAnnualRatePercent)}
	}
	if in.InsurancePercent < 0 || math.IsNaN(in.InsurancePercent) {
		return &InputError{Field: "insurancePercent", Reason: "must be 0 or greater"}
	}
	return nil
}

// MonthlyRate converts an annual percentage into the periodic monthly rate.
func MonthlyRate(annualRatePercent float64) float64 {
	return annualRatePercent / (constants.PercentageMultiplier * constants.MonthsPerYear)
}

// CalculateMonthlyPayment calculates the unrounded monthly payment using the
// standard amortization formula.
func CalculateMonthlyPayment(principal, annualRatePercent float64, termMonths int) float64 {
	if termMonths <= 0 {
		return 0
	}
	if annualRatePercent == 0 {
		// For zero interest, simply divide the principal by term
		return principal / float64(termMonths)
	}

	r := MonthlyRate(annualRatePercent)
	power := math.Pow(1.00+r, float64(termMonths))
	return principal * r * power / (power - 1.00)
}

// AmortizedInsurance spreads a one-off insurance percentage of the principal
// evenly over the term. It is not compounded.
func AmortizedInsurance(principal, insurancePercent float64, termMonths int) float64 {
	if termMonths <= 0 || insurancePercent <= 0 {
		return 0
	}
	return principal * insurancePercent / constants.PercentageMultiplier / float64(termMonths)
}

// ComputeLoan returns the monthly payment, total payment and total interest.
// The monthly payment is rounded first, so TotalPayment is always an exact
// multiple of MonthlyPayment.
func ComputeLoan(input LoanInput, opts Options) (LoanResult, error) {
	if err := input.Validate(opts); err != nil {
		return LoanResult{}, err
	}

	principal := float64(input.Principal)
	monthly := CalculateMonthlyPayment(principal, input.AnnualRatePercent, input.TermMonths)
	monthly += AmortizedInsurance(principal, input.InsurancePercent, input.TermMonths)

	rounded := mathutil.RoundCurrency(monthly, opts.roundingUnit())
	total := rounded * int64(input.TermMonths)

	return LoanResult{
		MonthlyPayment: rounded,
		TotalPayment:   total,
		TotalInterest:  total - input.Principal,
	}, nil
}

// PrincipalFromDownPayment returns the financed amount left after the buyer
// puts downPaymentPercent of price down.
func PrincipalFromDownPayment(price int64, downPaymentPercent float64, unit int64) (int64, error) {
	if price <= 0 {
		return 0, &InputError{Field: "price", Reason: "must be greater than 0"}
	}
	if downPaymentPercent < 0 || downPaymentPercent >= constants.PercentageMultiplier {
		return 0, &InputError{Field: "downPaymentPercent", Reason: "must be between 0 and 100 (exclusive)"}
	}
	down := mathutil.ApplyPercentage(price, decimal.NewFromFloat(downPaymentPercent), unit)
	return price - down, nil
}
