package loans

import (
	"fmt"

	"github.com/iwvelando/dealership-quote/pkg/datetime"
	"github.com/iwvelando/dealership-quote/pkg/mathutil"
	"go.uber.org/zap"
)

// Installment holds the values for a given month of the schedule.
type Installment struct {
	Number    int    `json:"number"`
	Month     string `json:"month,omitempty"`
	Payment   int64  `json:"payment"`
	Principal int64  `json:"principal"`
	Interest  int64  `json:"interest"`
	Insurance int64  `json:"insurance,omitempty"`
	Remaining int64  `json:"remaining"`
}

// AmortizationScheduleGenerator builds month-by-month repayment tables.
type AmortizationScheduleGenerator struct {
	logger *zap.Logger
	opts   Options
}

// NewAmortizationScheduleGenerator creates a new generator instance
func NewAmortizationScheduleGenerator(logger *zap.Logger, opts Options) *AmortizationScheduleGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AmortizationScheduleGenerator{logger: logger, opts: opts}
}

// GenerateSchedule creates a declining-balance schedule for the loan. The
// balance follows the unrounded payment and Remaining is that balance rounded.
// Every row pays ComputeLoan's MonthlyPayment, Principal is the drop in the
// rounded balance and Interest takes the rounding difference, so the columns
// sum to TotalPayment, the principal and TotalInterest less insurance.
// startMonth (YYYY-MM) is optional and labels the rows when set.
func (g *AmortizationScheduleGenerator) GenerateSchedule(input LoanInput, startMonth string) ([]Installment, error) {
	result, err := ComputeLoan(input, g.opts)
	if err != nil {
		return nil, err
	}

	var months []string
	if startMonth != "" {
		months, err = datetime.MonthSequence(startMonth, input.TermMonths)
		if err != nil {
			return nil, &InputError{Field: "startMonth", Reason: err.Error()}
		}
	}

	unit := g.opts.roundingUnit()
	principal := float64(input.Principal)
	rate := MonthlyRate(input.AnnualRatePercent)
	payment := CalculateMonthlyPayment(principal, input.AnnualRatePercent, input.TermMonths)
	insurance := mathutil.RoundCurrency(AmortizedInsurance(principal, input.InsurancePercent, input.TermMonths), unit)

	schedule := make([]Installment, 0, input.TermMonths)
	balance := principal
	carried := input.Principal
	for n := 1; n <= input.TermMonths; n++ {
		principalPart := payment - balance*rate
		if n == input.TermMonths || principalPart > balance {
			principalPart = balance
		}
		balance -= principalPart

		remaining := mathutil.RoundCurrency(balance, unit)
		if n == input.TermMonths {
			remaining = 0
		}
		row := Installment{
			Number:    n,
			Payment:   result.MonthlyPayment,
			Principal: carried - remaining,
			Insurance: insurance,
			Remaining: remaining,
		}
		row.Interest = row.Payment - row.Principal - row.Insurance
		carried = remaining
		if months != nil {
			row.Month = months[n-1]
		}
		schedule = append(schedule, row)
	}

	g.logger.Debug(fmt.Sprintf("generated %d-month schedule for principal %d at %.2f%%",
		input.TermMonths, input.Principal, input.AnnualRatePercent),
		zap.String("op", "loans.GenerateSchedule"),
	)

	return schedule, nil
}

// ScheduleTotals sums the payment, principal and interest columns.
func ScheduleTotals(schedule []Installment) (payment, principal, interest int64) {
	for _, row := range schedule {
		payment += row.Payment
		principal += row.Principal
		interest += row.Interest
	}
	return payment, principal, interest
}
