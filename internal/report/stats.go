package report

import (
	"math"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"HiLoBacktester/internal/calculator"
	"HiLoBacktester/internal/model"
)

// Stats summarises a final strategy run for display.
type Stats struct {
	Period       int
	Trades       int
	UnitsTraded  int
	TotalCost    decimal.Decimal
	FinalGross   float64
	FinalNet     float64
	MaxDrawdown  float64 // of the net curve, as a fraction
	BuyAndHold   float64 // growth factor of holding the asset
	FirstDate    time.Time
	LastDate     time.Time
	PositiveNets int // sweep periods with net return above 1
	NegativeNets int // sweep periods with net return below 1
}

// ComputeStats derives display statistics from the final run and the sweep.
func ComputeStats(final *model.StrategyResult, sweep *model.Sweep) Stats {
	s := Stats{
		Period:      final.Period,
		Trades:      final.Trades(),
		UnitsTraded: final.UnitsTraded(),
		TotalCost:   decimal.NewFromFloat(final.TotalCost()),
		BuyAndHold:  math.NaN(),
	}
	s.FinalGross, s.FinalNet = final.Final()

	if n := len(final.Rows); n > 0 {
		s.FirstDate = final.Rows[0].Date
		s.LastDate = final.Rows[n-1].Date
		net := make([]float64, n)
		closes := make([]float64, n)
		for i, row := range final.Rows {
			net[i] = row.CumulativeReturnNet
			closes[i] = row.AdjClose
		}
		if dd, err := calculator.MaxDrawdown(net); err == nil {
			s.MaxDrawdown = dd
		}
		if bh, err := calculator.BuyAndHold(closes); err == nil {
			s.BuyAndHold = bh
		}
	}

	if sweep != nil {
		s.PositiveNets, s.NegativeNets = countNets(sweep.Rows)
	}
	return s
}

func countNets(rows []model.OptimizationRow) (positive, negative int) {
	positive = lo.CountBy(rows, func(r model.OptimizationRow) bool { return r.CumulativeReturnNet > 1 })
	negative = lo.CountBy(rows, func(r model.OptimizationRow) bool { return r.CumulativeReturnNet < 1 })
	return positive, negative
}

// AlignBenchmark maps a benchmark series onto dates, carrying the last known
// benchmark close forward. Dates before the benchmark's first bar are NaN.
func AlignBenchmark(dates []time.Time, benchmark *model.PriceSeries) []float64 {
	out := make([]float64, len(dates))
	j := 0
	last := math.NaN()
	for i, d := range dates {
		for benchmark != nil && j < len(benchmark.Bars) && !benchmark.Bars[j].Date.After(d) {
			last = benchmark.Bars[j].AdjClose
			j++
		}
		out[i] = last
	}
	return out
}
