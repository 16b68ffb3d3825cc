package collector

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"HiLoBacktester/internal/model"
)

// Field names as they appear in provider output.
const (
	FieldOpen     = "Open"
	FieldHigh     = "High"
	FieldLow      = "Low"
	FieldClose    = "Close"
	FieldAdjClose = "Adj Close"
	FieldVolume   = "Volume"
)

func canonicalField(name string) string {
	r := strings.NewReplacer(" ", "", "_", "", "-", "")
	return strings.ToLower(r.Replace(strings.TrimSpace(name)))
}

// Normalize turns a raw provider frame into a PriceSeries: multi-level headers
// are flattened to their first level, dates lose their timezone, columns other
// than High, Low and Adj Close are dropped, and rows with null values are
// skipped.
func Normalize(frame *model.RawFrame) (*model.PriceSeries, error) {
	if frame.Empty() {
		return nil, model.ErrNoData
	}

	idx := map[string]int{}
	for j, key := range frame.Columns {
		if len(key) == 0 {
			continue
		}
		name := canonicalField(key[0])
		if _, seen := idx[name]; !seen {
			idx[name] = j
		}
	}
	colAdj, ok := idx[canonicalField(FieldAdjClose)]
	if !ok {
		return nil, &model.MissingFieldError{Field: FieldAdjClose}
	}
	colHigh, ok := idx[canonicalField(FieldHigh)]
	if !ok {
		return nil, &model.MissingFieldError{Field: FieldHigh}
	}
	colLow, ok := idx[canonicalField(FieldLow)]
	if !ok {
		return nil, &model.MissingFieldError{Field: FieldLow}
	}
	if len(frame.Rows) != len(frame.Index) {
		return nil, fmt.Errorf("%w: %d dates but %d rows", model.ErrInvalidSeries, len(frame.Index), len(frame.Rows))
	}

	bars := make([]model.Bar, 0, len(frame.Index))
	dropped := 0
	for i, ts := range frame.Index {
		row := frame.Rows[i]
		if len(row) < len(frame.Columns) {
			return nil, fmt.Errorf("%w: row %d has %d values for %d columns",
				model.ErrInvalidSeries, i, len(row), len(frame.Columns))
		}
		b := model.Bar{
			Date:     calendarDate(ts),
			High:     row[colHigh],
			Low:      row[colLow],
			AdjClose: row[colAdj],
		}
		if !finite(b.High) || !finite(b.Low) || !finite(b.AdjClose) {
			dropped++
			continue
		}
		if b.High < 0 || b.Low < 0 || b.AdjClose < 0 {
			return nil, fmt.Errorf("%w: negative price on %s", model.ErrInvalidSeries, b.Date.Format(time.DateOnly))
		}
		bars = append(bars, b)
	}
	if dropped > 0 {
		log.Debug().Str("symbol", frame.Symbol).Int("rows", dropped).Msg("dropped rows with null prices")
	}
	if len(bars) == 0 {
		return nil, model.ErrNoData
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	for i, b := range bars {
		if b.Low > b.High {
			return nil, fmt.Errorf("%w: low %.6g above high %.6g on %s",
				model.ErrInvalidSeries, b.Low, b.High, b.Date.Format(time.DateOnly))
		}
		if i > 0 && !b.Date.After(bars[i-1].Date) {
			return nil, fmt.Errorf("%w: duplicate date %s", model.ErrInvalidSeries, b.Date.Format(time.DateOnly))
		}
	}

	return &model.PriceSeries{Symbol: frame.Symbol, Bars: bars}, nil
}

// calendarDate keeps the wall-clock date of t in its own location and drops
// the time of day and the zone.
func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
