package model

import "time"

// Bar is one normalized daily record.
type Bar struct {
	Date     time.Time // calendar date at 00:00 UTC
	High     float64
	Low      float64
	AdjClose float64
}

// PriceSeries holds normalized daily bars for one symbol, oldest first.
type PriceSeries struct {
	Symbol string
	Bars   []Bar
}

// Len returns the number of bars.
func (s *PriceSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// First returns the date of the oldest bar.
func (s *PriceSeries) First() time.Time {
	if s.Len() == 0 {
		return time.Time{}
	}
	return s.Bars[0].Date
}

// Last returns the date of the newest bar.
func (s *PriceSeries) Last() time.Time {
	if s.Len() == 0 {
		return time.Time{}
	}
	return s.Bars[len(s.Bars)-1].Date
}

// AdjCloses extracts the adjusted close column.
func (s *PriceSeries) AdjCloses() []float64 {
	out := make([]float64, s.Len())
	for i, b := range s.Bars {
		out[i] = b.AdjClose
	}
	return out
}

// ColumnKey is a possibly multi-level column header, outermost level first.
// A yfinance style download has keys like {"Adj Close", "SOL-AUD"}.
type ColumnKey []string

// RawFrame is provider output before normalization.
type RawFrame struct {
	Symbol  string
	Columns []ColumnKey
	Index   []time.Time // may carry a location
	Rows    [][]float64 // Rows[i][j] is the value of Columns[j] at Index[i]; NaN for nulls
}

// Empty reports whether the frame carries no rows.
func (f *RawFrame) Empty() bool {
	return f == nil || len(f.Index) == 0
}
