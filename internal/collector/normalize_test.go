package collector

import (
	"errors"
	"math"
	"testing"
	"time"

	"HiLoBacktester/internal/model"
)

func TestNormalize_FlattensMultiLevelHeaders(t *testing.T) {
	frame := GenerateMockFrame("SOL-AUD", 100, 10, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	series, err := Normalize(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if series.Len() != 10 {
		t.Fatalf("expected 10 bars, got %d", series.Len())
	}
	if series.Symbol != "SOL-AUD" {
		t.Errorf("expected symbol SOL-AUD, got %q", series.Symbol)
	}
	first := series.Bars[0]
	if first.AdjClose != frame.Rows[0][0] || first.High != frame.Rows[0][2] || first.Low != frame.Rows[0][3] {
		t.Errorf("columns mapped incorrectly: %+v from %v", first, frame.Rows[0])
	}
}

func TestNormalize_StripsTimezone(t *testing.T) {
	sydney := time.FixedZone("AEST", 10*3600)
	frame := &model.RawFrame{
		Columns: []model.ColumnKey{{"High"}, {"Low"}, {"Adj Close"}},
		Index: []time.Time{
			time.Date(2024, 1, 2, 0, 0, 0, 0, sydney),
			time.Date(2024, 1, 3, 9, 30, 0, 0, sydney),
		},
		Rows: [][]float64{{2, 1, 1.5}, {3, 2, 2.5}},
	}
	series, err := Normalize(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Time{
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
	}
	for i, b := range series.Bars {
		if !b.Date.Equal(want[i]) || b.Date.Location() != time.UTC {
			t.Errorf("bar %d: expected %s, got %s", i, want[i], b.Date)
		}
	}
}

func TestNormalize_MissingAdjClose(t *testing.T) {
	frame := &model.RawFrame{
		Columns: []model.ColumnKey{{"Open"}, {"High"}, {"Low"}, {"Close"}},
		Index:   []time.Time{time.Now()},
		Rows:    [][]float64{{1, 2, 0.5, 1.5}},
	}
	_, err := Normalize(frame)
	var missing *model.MissingFieldError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingFieldError, got %v", err)
	}
	if missing.Field != FieldAdjClose {
		t.Errorf("expected missing field %q, got %q", FieldAdjClose, missing.Field)
	}
}

func TestNormalize_AcceptsFieldSpellings(t *testing.T) {
	frame := &model.RawFrame{
		Columns: []model.ColumnKey{{"high"}, {"LOW"}, {"adj_close"}},
		Index:   []time.Time{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		Rows:    [][]float64{{2, 1, 1.5}},
	}
	if _, err := Normalize(frame); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNormalize_DropsNullRowsAndSorts(t *testing.T) {
	d := func(day int) time.Time { return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC) }
	frame := &model.RawFrame{
		Columns: []model.ColumnKey{{"High"}, {"Low"}, {"Adj Close"}, {"Volume"}},
		Index:   []time.Time{d(3), d(1), d(2)},
		Rows:    [][]float64{{3, 2, 2.5, 10}, {1, 0.5, 0.8, 10}, {math.NaN(), 1, 1.5, 10}},
	}
	series, err := Normalize(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if series.Len() != 2 {
		t.Fatalf("expected 2 bars, got %d", series.Len())
	}
	if !series.Bars[0].Date.Equal(d(1)) || !series.Bars[1].Date.Equal(d(3)) {
		t.Errorf("expected ascending dates, got %s and %s", series.Bars[0].Date, series.Bars[1].Date)
	}
}

func TestNormalize_InvalidSeries(t *testing.T) {
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cols := []model.ColumnKey{{"High"}, {"Low"}, {"Adj Close"}}
	tests := []struct {
		name  string
		frame *model.RawFrame
	}{
		{"low above high", &model.RawFrame{Columns: cols, Index: []time.Time{d}, Rows: [][]float64{{1, 2, 1.5}}}},
		{"duplicate date", &model.RawFrame{Columns: cols, Index: []time.Time{d, d.Add(3 * time.Hour)}, Rows: [][]float64{{2, 1, 1.5}, {2, 1, 1.5}}}},
		{"negative price", &model.RawFrame{Columns: cols, Index: []time.Time{d}, Rows: [][]float64{{2, -1, 1.5}}}},
		{"short row", &model.RawFrame{Columns: cols, Index: []time.Time{d}, Rows: [][]float64{{2, 1}}}},
	}
	for _, tt := range tests {
		if _, err := Normalize(tt.frame); !errors.Is(err, model.ErrInvalidSeries) {
			t.Errorf("%s: expected ErrInvalidSeries, got %v", tt.name, err)
		}
	}
}

func TestNormalize_Empty(t *testing.T) {
	if _, err := Normalize(nil); !errors.Is(err, model.ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}
