package model

import "time"

// BudgetContext holds budget-execution figures for one category, year and sphere.
// A nil *BudgetContext means the figures are unknown, never zero.
type BudgetContext struct {
	Category       string    `json:"category"` // upstream taxonomy code, e.g. EDUCACAO
	Year           int       `json:"year"`
	Sphere         Sphere    `json:"sphere"`
	TotalBudget    float64   `json:"total_budget"`
	ExecutedBudget float64   `json:"executed_budget"`
	ExecutionRate  float64   `json:"execution_rate"` // percent, may exceed 100
	LastUpdated    time.Time `json:"last_updated"`
}

// ExecutionRate returns executed/total*100 with a lower bound of zero.
// Execution can exceed the planned budget, so there is no upper clamp.
// ok is false when total is not positive.
func ExecutionRate(total, executed float64) (rate float64, ok bool) {
	if total <= 0 {
		return 0, false
	}
	rate = executed * 100 / total
	if rate < 0 {
		rate = 0
	}
	return rate, true
}

// BudgetComparison is one year of a budget history.
type BudgetComparison struct {
	Year          int     `json:"year"`
	Budgeted      float64 `json:"budgeted"`
	Executed      float64 `json:"executed"`
	Variance      float64 `json:"variance"`
	ExecutionRate float64 `json:"execution_rate"`
}

// Viability is the outcome of comparing a claimed amount with a budget line.
type Viability struct {
	Viable bool   `json:"viable"`
	Known  bool   `json:"known"`
	Reason string `json:"reason"`
}
