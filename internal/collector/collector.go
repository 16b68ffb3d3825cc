package collector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"HiLoBacktester/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price float64
	Days  int
	Frame *model.RawFrame
	Err   error
	Calls int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(_ context.Context, symbol string, start, _ time.Time) (*model.RawFrame, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Frame != nil {
		return m.Frame, nil
	}
	if start.IsZero() {
		start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return GenerateMockFrame(symbol, m.Price, m.Days, start), nil
}

// GenerateMockFrame builds a deterministic oscillating frame in the grouped
// yfinance layout, one bar per calendar day from start.
func GenerateMockFrame(symbol string, basePrice float64, days int, start time.Time) *model.RawFrame {
	frame := &model.RawFrame{Symbol: symbol}
	for _, name := range []string{FieldAdjClose, FieldClose, FieldHigh, FieldLow, FieldOpen, FieldVolume} {
		frame.Columns = append(frame.Columns, model.ColumnKey{name, symbol})
	}
	for i := 0; i < days; i++ {
		p := basePrice * (1 + 0.1*math.Sin(float64(i)/5) + float64(i)*0.001)
		frame.Index = append(frame.Index, start.AddDate(0, 0, i))
		frame.Rows = append(frame.Rows, []float64{p, p, p * 1.005, p * 0.995, p * 0.999, 1000000})
	}
	return frame
}

// CachedFetcher serves frames from a CSV cache and fills it from Source.
type CachedFetcher struct {
	Cache  *CSVFetcher
	Source Fetcher
}

func (c *CachedFetcher) Name() string { return c.Source.Name() + "+cache" }

func (c *CachedFetcher) FetchDailyBars(ctx context.Context, symbol string, start, end time.Time) (*model.RawFrame, error) {
	frame, err := c.Cache.FetchDailyBars(ctx, symbol, start, end)
	if err == nil && !frame.Empty() {
		log.Info().Str("symbol", symbol).Int("bars", len(frame.Index)).Msg("loaded bars from cache")
		return frame, nil
	}
	if err != nil && !errors.Is(err, model.ErrNoData) {
		log.Warn().Err(err).Str("symbol", symbol).Msg("unreadable cache entry, refetching")
	}

	frame, err = c.Source.FetchDailyBars(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	path := CachePath(c.Cache.Dir, symbol, start, end)
	if err := WriteCSV(path, frame); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("write cache failed")
	}
	return frame, nil
}

// Collector fetches raw bars and normalizes them into a PriceSeries.
type Collector struct {
	Fetcher Fetcher
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher) *Collector {
	return &Collector{Fetcher: fetcher}
}

// Collect fetches and normalizes the daily series for symbol over [start, end).
func (c *Collector) Collect(ctx context.Context, symbol string, start, end time.Time) (*model.PriceSeries, error) {
	log.Info().Str("symbol", symbol).Str("source", c.Fetcher.Name()).
		Str("start", dateKey(start)).Str("end", dateKey(end)).Msg("fetching daily bars")

	frame, err := c.Fetcher.FetchDailyBars(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch daily bars: %w", err)
	}
	if frame.Empty() {
		return nil, fmt.Errorf("fetch daily bars %s: %w", symbol, model.ErrNoData)
	}
	series, err := Normalize(frame)
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", symbol, err)
	}
	if series.Symbol == "" {
		series.Symbol = symbol
	}

	log.Info().Str("symbol", symbol).Int("bars", series.Len()).
		Str("first", series.First().Format(time.DateOnly)).
		Str("last", series.Last().Format(time.DateOnly)).
		Msg("daily bars ready")
	return series, nil
}
