package strategy

import (
	"fmt"
	"math"

	"HiLoBacktester/internal/calculator"
	"HiLoBacktester/internal/model"
)

// ComputeStrategy runs the HiLo breakout rule over series with the given lookback
// period and proportional transaction cost. The result has one row per bar.
//
// A day's signal compares its adjusted close with the previous day's rolling
// averages, so no value from the current bar leaks into its own signal.
func ComputeStrategy(series *model.PriceSeries, period int, transactionCost float64) (*model.StrategyResult, error) {
	n := series.Len()
	if period < 1 || period > n {
		return nil, &model.InvalidPeriodError{Period: period, Length: n}
	}
	if err := checkCost(transactionCost); err != nil {
		return nil, err
	}

	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, b := range series.Bars {
		highs[i] = b.High
		lows[i] = b.Low
	}
	avgHigh, err := calculator.RollingMean(highs, period)
	if err != nil {
		return nil, fmt.Errorf("rolling high: %w", err)
	}
	avgLow, err := calculator.RollingMean(lows, period)
	if err != nil {
		return nil, fmt.Errorf("rolling low: %w", err)
	}

	rows := make([]model.SignalRow, n)
	position := model.Flat
	gross, net := 1.0, 1.0

	for t, bar := range series.Bars {
		row := model.SignalRow{
			Date:        bar.Date,
			High:        bar.High,
			Low:         bar.Low,
			AdjClose:    bar.AdjClose,
			AvgHigh:     avgHigh[t],
			AvgLow:      avgLow[t],
			DailyReturn: math.NaN(),
		}

		held := position
		if t > 0 {
			row.Signal = breakout(bar.AdjClose, avgHigh[t-1], avgLow[t-1])
		}
		switch row.Signal {
		case model.SignalBuy:
			position = model.Long
		case model.SignalSell:
			position = model.Short
		}
		row.Position = position

		units := float64(position.Units(held))
		row.Cost = units * bar.AdjClose * transactionCost
		row.CostPct = units * transactionCost

		row.StrategyReturn = 1
		if t > 0 {
			row.DailyReturn = bar.AdjClose/series.Bars[t-1].AdjClose - 1
			row.StrategyReturn = exposure(held, row.DailyReturn)
		}
		row.NetStrategyReturn = row.StrategyReturn - row.CostPct

		gross *= row.StrategyReturn
		net *= row.NetStrategyReturn
		row.CumulativeReturnGross = gross
		row.CumulativeReturnNet = net

		rows[t] = row
	}

	return &model.StrategyResult{
		Symbol:          series.Symbol,
		Period:          period,
		TransactionCost: transactionCost,
		Rows:            rows,
	}, nil
}

// breakout classifies a close against yesterday's averages. Undefined (NaN)
// averages never produce a signal. Buy is tested first and wins when both hold,
// which can only happen if the low average exceeds the high average.
func breakout(adjClose, prevAvgHigh, prevAvgLow float64) model.Signal {
	if adjClose > prevAvgHigh {
		return model.SignalBuy
	}
	if adjClose < prevAvgLow {
		return model.SignalSell
	}
	return model.SignalNone
}

// exposure is the daily growth multiplier for the position held over the day.
// A short through a -100% day divides by zero and yields +Inf, which is left
// to propagate through that run's curves.
func exposure(held model.Position, dailyReturn float64) float64 {
	switch held {
	case model.Long:
		return 1 + dailyReturn
	case model.Short:
		return 1 / (1 + dailyReturn)
	default:
		return 1
	}
}

func checkCost(transactionCost float64) error {
	if transactionCost < 0 || math.IsNaN(transactionCost) || math.IsInf(transactionCost, 0) {
		return fmt.Errorf("%w: %v", model.ErrInvalidCost, transactionCost)
	}
	return nil
}
