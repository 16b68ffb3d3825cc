package strategy

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"HiLoBacktester/internal/metrics"
	"HiLoBacktester/internal/model"
)

// Optimizer sweeps candidate periods on a bounded worker pool.
type Optimizer struct {
	Workers int
}

// NewOptimizer creates an Optimizer. A non-positive worker count uses one
// worker per CPU.
func NewOptimizer(workers int) *Optimizer {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Optimizer{Workers: workers}
}

// Optimize evaluates every period with the default optimizer.
func Optimize(series *model.PriceSeries, periods []int, transactionCost float64) (*model.Sweep, error) {
	return NewOptimizer(0).Optimize(series, periods, transactionCost)
}

// Optimize evaluates each distinct period independently and returns one row per
// valid period in ascending order. Periods invalid for the series are listed in
// Sweep.Skipped instead of failing the sweep. An empty period set yields an
// empty sweep, not an error.
func (o *Optimizer) Optimize(series *model.PriceSeries, periods []int, transactionCost float64) (*model.Sweep, error) {
	if err := checkCost(transactionCost); err != nil {
		return nil, err
	}

	candidates := lo.Uniq(periods)
	sort.Ints(candidates)

	start := time.Now()
	rows := make([]model.OptimizationRow, len(candidates))
	errs := make([]error, len(candidates))

	var g errgroup.Group
	g.SetLimit(max(o.Workers, 1))
	for i, period := range candidates {
		g.Go(func() error {
			res, err := ComputeStrategy(series, period, transactionCost)
			if err != nil {
				errs[i] = err
				return nil
			}
			gross, net := res.Final()
			rows[i] = model.OptimizationRow{
				Period:                period,
				CumulativeReturnGross: gross,
				CumulativeReturnNet:   net,
			}
			return nil
		})
	}
	_ = g.Wait()

	sweep := &model.Sweep{
		Symbol:          series.Symbol,
		TransactionCost: transactionCost,
		Rows:            make([]model.OptimizationRow, 0, len(candidates)),
	}
	for i, period := range candidates {
		if err := errs[i]; err != nil {
			var invalid *model.InvalidPeriodError
			if !errors.As(err, &invalid) {
				return nil, fmt.Errorf("period %d: %w", period, err)
			}
			log.Debug().Int("period", period).Err(err).Msg("skipping period")
			sweep.Skipped = append(sweep.Skipped, model.SkippedPeriod{Period: period, Reason: err.Error()})
			continue
		}
		sweep.Rows = append(sweep.Rows, rows[i])
	}

	metrics.PeriodsEvaluated.Add(float64(len(sweep.Rows)))
	metrics.PeriodsSkipped.Add(float64(len(sweep.Skipped)))
	metrics.SweepDuration.Observe(time.Since(start).Seconds())
	return sweep, nil
}

// SelectBest returns the period with the highest final gross return. Ties go to
// the lower period. Rows whose gross return is not finite are ignored.
func SelectBest(rows []model.OptimizationRow) (int, float64, error) {
	if len(rows) == 0 {
		return 0, 0, model.ErrEmptyResult
	}
	best := -1
	for i, r := range rows {
		g := r.CumulativeReturnGross
		if math.IsNaN(g) || math.IsInf(g, 0) {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		b := rows[best]
		if g > b.CumulativeReturnGross || (g == b.CumulativeReturnGross && r.Period < b.Period) {
			best = i
		}
	}
	if best < 0 {
		return 0, 0, fmt.Errorf("%w: no period produced a finite return", model.ErrEmptyResult)
	}
	return rows[best].Period, rows[best].CumulativeReturnGross, nil
}

// PeriodRange lists the periods from first to last inclusive in steps of step.
func PeriodRange(first, last, step int) []int {
	if step <= 0 {
		step = 1
	}
	if first > last {
		return []int{}
	}
	return lo.RangeWithSteps(first, last+1, step)
}
