package model

// OptimizationRow is the outcome of one candidate period.
type OptimizationRow struct {
	Period                int     `json:"period"`
	CumulativeReturnGross float64 `json:"cumulative_return_gross"`
	CumulativeReturnNet   float64 `json:"cumulative_return_net"`
}

// SkippedPeriod is a candidate period that could not be evaluated.
type SkippedPeriod struct {
	Period int
	Reason string
}

// Sweep is the result of evaluating a set of candidate periods.
// Rows are ordered by ascending period.
type Sweep struct {
	Symbol          string
	TransactionCost float64
	Rows            []OptimizationRow
	Skipped         []SkippedPeriod
}
