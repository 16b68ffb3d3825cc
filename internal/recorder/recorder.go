package recorder

import (
	"time"

	"HiLoBacktester/internal/model"
)

// RunRecord is one completed backtest: its winner plus the full sweep.
type RunRecord struct {
	ID              string
	CreatedAt       time.Time
	Symbol          string
	FirstDate       time.Time
	LastDate        time.Time
	TransactionCost float64
	BestPeriod      int
	BestReturn      float64
	FinalGross      float64
	FinalNet        float64
	Trades          int
	TotalCost       float64
	ReportPath      string
	Rows            []model.OptimizationRow // not loaded by RecentRuns
}

// Recorder persists run history for later inspection.
type Recorder interface {
	RecordRun(rec *RunRecord) error
	RecentRuns(limit int) ([]RunRecord, error)
	Close() error
}
