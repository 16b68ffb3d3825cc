package collector

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"HiLoBacktester/internal/model"
)

func TestCollector_Collect(t *testing.T) {
	col := NewCollector(&MockFetcher{Price: 50, Days: 30})
	series, err := col.Collect(context.Background(), "ETH-USD", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if series.Len() != 30 || series.Symbol != "ETH-USD" {
		t.Errorf("expected 30 ETH-USD bars, got %d %q", series.Len(), series.Symbol)
	}
}

func TestCollector_PropagatesMissingField(t *testing.T) {
	frame := &model.RawFrame{
		Columns: []model.ColumnKey{{"High"}, {"Low"}, {"Close"}},
		Index:   []time.Time{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		Rows:    [][]float64{{2, 1, 1.5}},
	}
	_, err := NewCollector(&MockFetcher{Frame: frame}).Collect(context.Background(), "X", time.Time{}, time.Time{})
	var missing *model.MissingFieldError
	if !errors.As(err, &missing) {
		t.Errorf("expected MissingFieldError, got %v", err)
	}
}

func TestCollector_EmptyFrame(t *testing.T) {
	_, err := NewCollector(&MockFetcher{Frame: &model.RawFrame{}}).Collect(context.Background(), "X", time.Time{}, time.Time{})
	if !errors.Is(err, model.ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestCachedFetcher_FillsAndServesCache(t *testing.T) {
	dir := t.TempDir()
	src := &MockFetcher{Price: 10, Days: 12}
	cached := &CachedFetcher{Cache: &CSVFetcher{Dir: dir}, Source: src}

	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 12)
	ctx := context.Background()

	first, err := cached.FetchDailyBars(ctx, "BTC-USD", start, end)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if _, err := os.Stat(CachePath(dir, "BTC-USD", start, end)); err != nil {
		t.Fatalf("expected cache file: %v", err)
	}
	second, err := cached.FetchDailyBars(ctx, "BTC-USD", start, end)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if src.Calls != 1 {
		t.Errorf("expected the source to be hit once, got %d", src.Calls)
	}
	if len(second.Index) != len(first.Index) {
		t.Errorf("expected %d cached rows, got %d", len(first.Index), len(second.Index))
	}
}
