package model

import (
	"math"
	"time"
)

// Signal is the raw breakout signal of a single day.
type Signal int

const (
	SignalNone Signal = iota
	SignalBuy
	SignalSell
)

func (s Signal) String() string {
	switch s {
	case SignalBuy:
		return "BUY"
	case SignalSell:
		return "SELL"
	default:
		return ""
	}
}

// Position is the directional stance. Its numeric value is the exposure in units.
type Position int

const (
	Short Position = -1
	Flat  Position = 0
	Long  Position = 1
)

func (p Position) String() string {
	switch p {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "FLAT"
	}
}

// Units returns the number of units traded when moving from prev to p.
func (p Position) Units(prev Position) int {
	d := int(p) - int(prev)
	if d < 0 {
		return -d
	}
	return d
}

// SignalRow is the per-day output of the signal engine. Undefined values are NaN.
type SignalRow struct {
	Date                  time.Time
	High                  float64
	Low                   float64
	AdjClose              float64
	AvgHigh               float64
	AvgLow                float64
	Signal                Signal
	Position              Position
	Cost                  float64
	CostPct               float64
	DailyReturn           float64
	StrategyReturn        float64
	NetStrategyReturn     float64
	CumulativeReturnGross float64
	CumulativeReturnNet   float64
}

// StrategyResult is one complete run of the signal engine. It is never mutated
// after the engine returns it.
type StrategyResult struct {
	Symbol          string
	Period          int
	TransactionCost float64
	Rows            []SignalRow
}

// Final returns the last values of the gross and net curves.
func (r *StrategyResult) Final() (gross, net float64) {
	if r == nil || len(r.Rows) == 0 {
		return math.NaN(), math.NaN()
	}
	last := r.Rows[len(r.Rows)-1]
	return last.CumulativeReturnGross, last.CumulativeReturnNet
}

// TotalCost sums the fees charged over the run.
func (r *StrategyResult) TotalCost() float64 {
	total := 0.0
	for _, row := range r.Rows {
		total += row.Cost
	}
	return total
}

// UnitsTraded sums the absolute position changes over the run.
func (r *StrategyResult) UnitsTraded() int {
	units := 0
	prev := Flat
	for _, row := range r.Rows {
		units += row.Position.Units(prev)
		prev = row.Position
	}
	return units
}

// Trades counts entries into a long or short position.
func (r *StrategyResult) Trades() int {
	n := 0
	prev := Flat
	for _, row := range r.Rows {
		if row.Position != prev && row.Position != Flat {
			n++
		}
		prev = row.Position
	}
	return n
}
