package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"HiLoBacktester/internal/collector"
	"HiLoBacktester/internal/model"
	"HiLoBacktester/internal/recorder"
	"HiLoBacktester/internal/report"
	"HiLoBacktester/internal/strategy"
)

type memRecorder struct {
	runs []recorder.RunRecord
}

func (m *memRecorder) RecordRun(rec *recorder.RunRecord) error {
	m.runs = append(m.runs, *rec)
	return nil
}
func (m *memRecorder) RecentRuns(int) ([]recorder.RunRecord, error) { return m.runs, nil }
func (m *memRecorder) Close() error                                 { return nil }

// benchmarkFailing serves mock bars for every symbol except the benchmark.
type benchmarkFailing struct {
	collector.MockFetcher
	benchmark string
}

func (b *benchmarkFailing) FetchDailyBars(ctx context.Context, symbol string, start, end time.Time) (*model.RawFrame, error) {
	if symbol == b.benchmark {
		return nil, model.ErrNoData
	}
	return b.MockFetcher.FetchDailyBars(ctx, symbol, start, end)
}

func baseRequest() Request {
	return Request{Symbol: "SOL-AUD", TransactionCost: 0.003, MinPeriod: 2, MaxPeriod: 12, PeriodStep: 1}
}

func TestRunner_Run(t *testing.T) {
	rec := &memRecorder{}
	dir := t.TempDir()
	r := New(
		collector.NewCollector(&collector.MockFetcher{Price: 100, Days: 90}),
		strategy.NewOptimizer(4),
		report.NewWriter(dir, 10000),
		rec,
	)

	out, err := r.Run(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Best < 2 || out.Best > 12 {
		t.Errorf("best period %d outside the grid", out.Best)
	}
	if out.Final.Period != out.Best {
		t.Errorf("final run at %d, expected %d", out.Final.Period, out.Best)
	}
	if len(out.Sweep.Rows) != 11 {
		t.Errorf("expected 11 sweep rows, got %d", len(out.Sweep.Rows))
	}
	wantBest, wantReturn, _ := strategy.SelectBest(out.Sweep.Rows)
	if wantBest != out.Best || wantReturn != out.BestReturn {
		t.Errorf("outcome (%d, %v) disagrees with SelectBest (%d, %v)", out.Best, out.BestReturn, wantBest, wantReturn)
	}
	if gross, _ := out.Final.Final(); gross != out.BestReturn {
		t.Errorf("final gross %v differs from the sweep's %v", gross, out.BestReturn)
	}
	if out.ReportPath == "" || filepath.Dir(out.ReportPath) != dir {
		t.Errorf("unexpected report path %q", out.ReportPath)
	}
	if _, err := os.Stat(out.ReportPath); err != nil {
		t.Errorf("report missing: %v", err)
	}
	if len(rec.runs) != 1 || rec.runs[0].ID != out.RunID || rec.runs[0].BestPeriod != out.Best {
		t.Errorf("unexpected recorded runs: %+v", rec.runs)
	}
}

func TestRunner_RunWithoutReports(t *testing.T) {
	r := New(collector.NewCollector(&collector.MockFetcher{Price: 50, Days: 40}), nil, nil, nil)
	out, err := r.Run(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.ReportPath != "" {
		t.Errorf("expected no report, got %q", out.ReportPath)
	}
}

func TestRunner_BenchmarkFailureOnlyWarns(t *testing.T) {
	fetcher := &benchmarkFailing{MockFetcher: collector.MockFetcher{Price: 100, Days: 60}, benchmark: "^GSPC"}
	col := collector.NewCollector(fetcher)
	r := New(col, nil, report.NewWriter(t.TempDir(), 1000), nil).WithBenchmark("^GSPC", col)
	if _, err := r.Run(context.Background(), baseRequest()); err != nil {
		t.Fatalf("benchmark failure should not fail the run: %v", err)
	}
}

func writeAssetCSV(t *testing.T, closes ...float64) string {
	t.Helper()
	frame := &model.RawFrame{Symbol: "ASSET"}
	for _, name := range []string{collector.FieldAdjClose, collector.FieldHigh, collector.FieldLow} {
		frame.Columns = append(frame.Columns, model.ColumnKey{name, "ASSET"})
	}
	for i, c := range closes {
		frame.Index = append(frame.Index, time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC))
		frame.Rows = append(frame.Rows, []float64{c, c, c})
	}
	path := filepath.Join(t.TempDir(), "asset.csv")
	if err := collector.WriteCSV(path, frame); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestRunner_SingleFileSourceHasNoBenchmark(t *testing.T) {
	path := writeAssetCSV(t, 10, 12, 14)
	series, err := collector.NewCollector(&collector.CSVFetcher{File: path}).Collect(context.Background(), "ASSET", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	r := New(collector.NewCollector(&collector.CSVFetcher{File: path}), nil, nil, nil)
	r.Benchmark = "^GSPC"
	if got := r.benchmark(context.Background(), series); got != nil {
		t.Errorf("expected no benchmark without a benchmark source, got %v", got)
	}
}

func TestRunner_BenchmarkUsesItsOwnSource(t *testing.T) {
	path := writeAssetCSV(t, 10, 12, 14)
	series, err := collector.NewCollector(&collector.CSVFetcher{File: path}).Collect(context.Background(), "ASSET", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	index := collector.NewCollector(&collector.MockFetcher{Price: 4000, Days: 10})
	r := New(collector.NewCollector(&collector.CSVFetcher{File: path}), nil, nil, nil).WithBenchmark("^GSPC", index)
	got := r.benchmark(context.Background(), series)
	if len(got) != series.Len() {
		t.Fatalf("expected %d aligned values, got %d", series.Len(), len(got))
	}
	for i, v := range got {
		if v == series.Bars[i].AdjClose {
			t.Errorf("index %d: benchmark %v repeats the asset close", i, v)
		}
		if v < 3000 {
			t.Errorf("index %d: expected index-level prices, got %v", i, v)
		}
	}
}

func TestRunner_Errors(t *testing.T) {
	tests := []struct {
		name    string
		fetcher *collector.MockFetcher
		mutate  func(*Request)
		want    error
	}{
		{
			name:    "no data",
			fetcher: &collector.MockFetcher{Err: model.ErrNoData},
			want:    model.ErrNoData,
		},
		{
			name:    "every period too long",
			fetcher: &collector.MockFetcher{Price: 100, Days: 5},
			mutate:  func(r *Request) { r.MinPeriod, r.MaxPeriod = 10, 20 },
			want:    model.ErrEmptyResult,
		},
		{
			name:    "empty grid",
			fetcher: &collector.MockFetcher{Price: 100, Days: 30},
			mutate:  func(r *Request) { r.MinPeriod, r.MaxPeriod = 20, 10 },
			want:    model.ErrEmptyResult,
		},
		{
			name:    "bad cost",
			fetcher: &collector.MockFetcher{Price: 100, Days: 30},
			mutate:  func(r *Request) { r.TransactionCost = -0.1 },
			want:    model.ErrInvalidCost,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &memRecorder{}
			r := New(collector.NewCollector(tt.fetcher), nil, nil, rec)
			req := baseRequest()
			if tt.mutate != nil {
				tt.mutate(&req)
			}
			_, err := r.Run(context.Background(), req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if len(rec.runs) != 0 {
				t.Error("failed runs must not be recorded")
			}
		})
	}
}

func TestRunner_RejectsInvertedDates(t *testing.T) {
	r := New(collector.NewCollector(&collector.MockFetcher{Price: 100, Days: 30}), nil, nil, nil)
	req := baseRequest()
	req.Start = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	req.End = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := r.Run(context.Background(), req); err == nil {
		t.Fatal("expected error for start after end")
	}
}
