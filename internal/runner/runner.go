package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"HiLoBacktester/internal/collector"
	"HiLoBacktester/internal/metrics"
	"HiLoBacktester/internal/model"
	"HiLoBacktester/internal/recorder"
	"HiLoBacktester/internal/report"
	"HiLoBacktester/internal/strategy"
)

// Request describes one backtest. Zero Start/End select the full history.
type Request struct {
	Symbol          string
	Start           time.Time
	End             time.Time
	TransactionCost float64
	MinPeriod       int
	MaxPeriod       int
	PeriodStep      int
}

// Periods expands the request's candidate grid.
func (r Request) Periods() []int {
	return strategy.PeriodRange(r.MinPeriod, r.MaxPeriod, r.PeriodStep)
}

// Outcome is everything a completed run produced.
type Outcome struct {
	RunID      string
	Best       int
	BestReturn float64
	Sweep      *model.Sweep
	Final      *model.StrategyResult
	ReportPath string
}

// Runner wires data retrieval, the sweep, reporting and run history.
type Runner struct {
	Collector *collector.Collector
	Optimizer *strategy.Optimizer
	Reports   *report.Writer // nil disables the workbook
	Recorder  recorder.Recorder

	// Benchmark is fetched through its own collector; the asset's source may
	// serve one file or synthetic bars whatever the symbol. Either field
	// empty disables the comparison.
	Benchmark       string
	BenchmarkSource *collector.Collector
}

// New creates a Runner without a benchmark. A nil recorder records nothing.
func New(col *collector.Collector, opt *strategy.Optimizer, reports *report.Writer, rec recorder.Recorder) *Runner {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if opt == nil {
		opt = strategy.NewOptimizer(0)
	}
	return &Runner{Collector: col, Optimizer: opt, Reports: reports, Recorder: rec}
}

// WithBenchmark sets the comparison index and the collector it is read from.
func (r *Runner) WithBenchmark(symbol string, source *collector.Collector) *Runner {
	r.Benchmark = symbol
	r.BenchmarkSource = source
	return r
}

// Run executes collect, optimize, select, the final run at the winning period,
// the benchmark comparison, the report and the history record, in that order.
func (r *Runner) Run(ctx context.Context, req Request) (*Outcome, error) {
	out, err := r.run(ctx, req)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.RunsTotal.WithLabelValues("ok").Inc()
	return out, nil
}

func (r *Runner) run(ctx context.Context, req Request) (*Outcome, error) {
	if !req.Start.IsZero() && !req.End.IsZero() && !req.Start.Before(req.End) {
		return nil, fmt.Errorf("start %s is not before end %s", req.Start.Format(time.DateOnly), req.End.Format(time.DateOnly))
	}

	series, err := r.Collector.Collect(ctx, req.Symbol, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", req.Symbol, err)
	}

	periods := req.Periods()
	log.Info().Str("symbol", req.Symbol).Int("candidates", len(periods)).
		Float64("transaction_cost", req.TransactionCost).Msg("optimizing hilo period")
	sweep, err := r.Optimizer.Optimize(series, periods, req.TransactionCost)
	if err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}
	if len(sweep.Skipped) > 0 {
		log.Warn().Int("skipped", len(sweep.Skipped)).Int("bars", series.Len()).Msg("periods longer than the series were skipped")
	}

	best, bestReturn, err := strategy.SelectBest(sweep.Rows)
	if err != nil {
		return nil, fmt.Errorf("select best: %w", err)
	}
	log.Info().Int("period", best).Float64("gross", bestReturn).Msg("best hilo period")

	final, err := strategy.ComputeStrategy(series, best, req.TransactionCost)
	if err != nil {
		return nil, fmt.Errorf("final run: %w", err)
	}

	out := &Outcome{
		RunID:      uuid.NewString(),
		Best:       best,
		BestReturn: bestReturn,
		Sweep:      sweep,
		Final:      final,
	}

	if r.Reports != nil {
		path, err := r.Reports.Write(&report.Run{
			Final:         final,
			Sweep:         sweep,
			Benchmark:     r.benchmark(ctx, series),
			BenchmarkName: r.Benchmark,
		})
		if err != nil {
			return nil, fmt.Errorf("write report: %w", err)
		}
		out.ReportPath = path
	}

	r.record(out, series)

	metrics.BestPeriod.WithLabelValues(series.Symbol).Set(float64(best))
	metrics.BestReturn.WithLabelValues(series.Symbol).Set(bestReturn)
	return out, nil
}

// benchmark fetches the comparison index and aligns it to the series dates.
// Failures only degrade the report.
func (r *Runner) benchmark(ctx context.Context, series *model.PriceSeries) []float64 {
	if r.Benchmark == "" || r.BenchmarkSource == nil || r.Benchmark == series.Symbol {
		return nil
	}
	first, last := series.First(), series.Last()
	bench, err := r.BenchmarkSource.Collect(ctx, r.Benchmark, first, last.AddDate(0, 0, 1))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		log.Warn().Err(err).Str("benchmark", r.Benchmark).Msg("benchmark unavailable, report will omit it")
		return nil
	}
	dates := make([]time.Time, series.Len())
	for i, b := range series.Bars {
		dates[i] = b.Date
	}
	return report.AlignBenchmark(dates, bench)
}

func (r *Runner) record(out *Outcome, series *model.PriceSeries) {
	gross, net := out.Final.Final()
	rec := &recorder.RunRecord{
		ID:              out.RunID,
		CreatedAt:       time.Now(),
		Symbol:          series.Symbol,
		FirstDate:       series.First(),
		LastDate:        series.Last(),
		TransactionCost: out.Sweep.TransactionCost,
		BestPeriod:      out.Best,
		BestReturn:      out.BestReturn,
		FinalGross:      gross,
		FinalNet:        net,
		Trades:          out.Final.Trades(),
		TotalCost:       out.Final.TotalCost(),
		ReportPath:      out.ReportPath,
		Rows:            out.Sweep.Rows,
	}
	if err := r.Recorder.RecordRun(rec); err != nil {
		log.Error().Err(err).Str("run_id", out.RunID).Msg("record run")
	}
}
