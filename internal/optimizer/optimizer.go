// Package optimizer searches for the highest vehicle price whose loan fits a
// monthly budget.
package optimizer

import (
	"fmt"

	"github.com/iwvelando/dealership-quote/pkg/format"
	"github.com/iwvelando/dealership-quote/pkg/loans"
	"github.com/iwvelando/dealership-quote/pkg/optimization"
	"go.uber.org/zap"
)

// FieldPrice is the only searched field: the drive-away price.
const FieldPrice = "price"

// maxIterations bounds both the bracket growth and the bisection.
const maxIterations = 128

// maxSearchPrice keeps every searched price exact in float64 and far from
// int64 overflow.
const maxSearchPrice int64 = 1 << 53

// Request describes the buyer's budget and loan terms.
type Request struct {
	MonthlyBudget      int64   `json:"monthlyBudget"`
	DownPaymentPercent float64 `json:"downPaymentPercent"`
	AnnualRatePercent  float64 `json:"annualRatePercent"`
	TermMonths         int     `json:"termMonths"`
	InsurancePercent   float64 `json:"insurancePercent,omitempty"`
}

// Runner runs affordability searches with a fixed set of loan options.
type Runner struct {
	logger *zap.Logger
	opts   loans.Options
}

type evaluation struct {
	price     int64
	principal int64
	monthly   int64
	budget    int64
}

func (e evaluation) feasible() bool {
	return e.monthly <= e.budget
}

func (e evaluation) headroom() int64 {
	return e.budget - e.monthly
}

// NewRunner constructs a Runner for the provided loan options.
func NewRunner(logger *zap.Logger, opts loans.Options) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger, opts: opts}
}

func (r *Runner) unit() int64 {
	if r.opts.RoundingUnit <= 0 {
		return 1
	}
	return r.opts.RoundingUnit
}

// Validate checks the request against the loan bounds.
func (r *Runner) Validate(req Request) error {
	if req.MonthlyBudget <= 0 {
		return &loans.InputError{Field: "monthlyBudget", Reason: "must be greater than 0"}
	}
	if req.DownPaymentPercent < 0 || req.DownPaymentPercent >= 100 {
		return &loans.InputError{Field: "downPaymentPercent", Reason: "must be between 0 and 100 (exclusive)"}
	}
	check := loans.LoanInput{
		Principal:         1,
		AnnualRatePercent: req.AnnualRatePercent,
		TermMonths:        req.TermMonths,
		InsurancePercent:  req.InsurancePercent,
	}
	return check.Validate(r.opts)
}

// MaxPrice returns the highest price, in steps of the rounding unit, whose
// financed remainder has a monthly payment within the budget. The payment is
// non-decreasing in the price, so the search brackets the boundary and then
// bisects it.
func (r *Runner) MaxPrice(req Request) (optimization.Summary, error) {
	if err := r.Validate(req); err != nil {
		return optimization.Summary{}, err
	}

	unit := r.unit()
	summary := optimization.Summary{Field: FieldPrice, MonthlyBudget: req.MonthlyBudget}

	lowEval, err := r.evaluate(req, unit)
	if err != nil {
		return optimization.Summary{}, err
	}
	if !lowEval.feasible() {
		summary.Notes = []string{fmt.Sprintf("monthly budget %s does not cover the smallest loan", format.VND(req.MonthlyBudget))}
		return summary, nil
	}

	// Payment is at least principal/term, so this price is usually already
	// over budget; grow it otherwise.
	high, err := r.upperBound(req, unit)
	if err != nil {
		return optimization.Summary{}, err
	}

	iterations := 0
	var highEval evaluation
	for {
		highEval, err = r.evaluate(req, high)
		if err != nil {
			return optimization.Summary{}, err
		}
		iterations++
		if !highEval.feasible() {
			break
		}
		lowEval = highEval
		if iterations >= maxIterations || high > maxSearchPrice {
			return optimization.Summary{}, &loans.InputError{Field: "monthlyBudget", Reason: "no price exceeds this budget within the searchable range"}
		}
		high *= 2
	}

	for high-lowEval.price > unit && iterations < maxIterations {
		mid := lowEval.price + ((high-lowEval.price)/unit/2)*unit
		midEval, err := r.evaluate(req, mid)
		if err != nil {
			return optimization.Summary{}, err
		}
		iterations++
		if midEval.feasible() {
			lowEval = midEval
		} else {
			high = mid
		}
	}

	summary.Value = lowEval.price
	summary.ValueDisplay = format.VND(lowEval.price)
	summary.Principal = lowEval.principal
	summary.MonthlyPayment = lowEval.monthly
	summary.Headroom = lowEval.headroom()
	summary.Iterations = iterations
	summary.Converged = high-lowEval.price <= unit

	r.logger.Debug("affordability search finished",
		zap.String("op", "optimizer.MaxPrice"),
		zap.Int64("monthlyBudget", req.MonthlyBudget),
		zap.Int64("maxPrice", summary.Value),
		zap.Int64("headroom", summary.Headroom),
		zap.Int("iterations", iterations),
		zap.Bool("converged", summary.Converged),
	)
	return summary, nil
}

// upperBound returns the first bracket candidate, budget*term grossed up by
// the down payment, or an InputError when it exceeds maxSearchPrice.
func (r *Runner) upperBound(req Request, unit int64) (int64, error) {
	paid := float64(req.MonthlyBudget) * float64(req.TermMonths)
	if paid >= float64(maxSearchPrice) {
		return 0, &loans.InputError{Field: "monthlyBudget", Reason: "implies a price beyond the searchable range"}
	}
	bound := paid / (1 - req.DownPaymentPercent/100)
	if bound >= float64(maxSearchPrice) {
		return 0, &loans.InputError{Field: "downPaymentPercent", Reason: "implies a price beyond the searchable range"}
	}
	high := int64(bound) + unit
	return (high/unit + 1) * unit, nil
}

func (r *Runner) evaluate(req Request, price int64) (evaluation, error) {
	principal, err := loans.PrincipalFromDownPayment(price, req.DownPaymentPercent, r.unit())
	if err != nil {
		return evaluation{}, err
	}
	eval := evaluation{price: price, principal: principal, budget: req.MonthlyBudget}
	if principal <= 0 {
		return eval, nil
	}

	result, err := loans.ComputeLoan(loans.LoanInput{
		Principal:         principal,
		AnnualRatePercent: req.AnnualRatePercent,
		TermMonths:        req.TermMonths,
		InsurancePercent:  req.InsurancePercent,
	}, r.opts)
	if err != nil {
		return evaluation{}, fmt.Errorf("optimizer evaluation failed: %w", err)
	}
	eval.monthly = result.MonthlyPayment
	return eval, nil
}
