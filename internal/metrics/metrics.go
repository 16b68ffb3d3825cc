package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// Registry holds the backtester's collectors. A batch run has no scrape
	// endpoint, so the registry is flushed to a node-exporter textfile instead.
	Registry = prometheus.NewRegistry()

	PeriodsEvaluated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hilo",
			Subsystem: "optimizer",
			Name:      "periods_evaluated_total",
			Help:      "Candidate periods evaluated by the optimizer",
		},
	)

	PeriodsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hilo",
			Subsystem: "optimizer",
			Name:      "periods_skipped_total",
			Help:      "Candidate periods skipped as invalid for the series",
		},
	)

	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hilo",
			Subsystem: "optimizer",
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of a full period sweep",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		},
	)

	BestReturn = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "hilo",
			Subsystem: "run",
			Name:      "best_gross_return",
			Help:      "Final gross cumulative return of the selected period",
		},
		[]string{"symbol"},
	)

	BestPeriod = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "hilo",
			Subsystem: "run",
			Name:      "best_period",
			Help:      "Selected hilo period",
		},
		[]string{"symbol"},
	)

	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hilo",
			Subsystem: "run",
			Name:      "runs_total",
			Help:      "Backtest runs by outcome",
		},
		[]string{"outcome"},
	)
)

func Register() {
	once.Do(func() {
		Registry.MustRegister(PeriodsEvaluated, PeriodsSkipped, SweepDuration, BestReturn, BestPeriod, RunsTotal)
	})
}

// WriteTextfile writes the current metric values for the node-exporter textfile
// collector. An empty path is a no-op.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	Register()
	return prometheus.WriteToTextfile(path, Registry)
}
