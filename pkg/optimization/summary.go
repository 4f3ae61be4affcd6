// Package optimization provides shared data structures for optimization results.
package optimization

// Summary captures the result of an affordability search.
type Summary struct {
	Field          string   `json:"field"`
	MonthlyBudget  int64    `json:"monthlyBudget"`
	Value          int64    `json:"value"`
	Principal      int64    `json:"principal"`
	MonthlyPayment int64    `json:"monthlyPayment"`
	Headroom       int64    `json:"headroom"`
	Iterations     int      `json:"iterations"`
	Converged      bool     `json:"converged"`
	Notes          []string `json:"notes,omitempty"`
	ValueDisplay   string   `json:"valueDisplay,omitempty"`
}
