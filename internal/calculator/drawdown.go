package calculator

import (
	"errors"
	"math"
)

// MaxDrawdown returns the largest peak-to-trough decline of an equity curve as a
// fraction of the peak (0.25 means a 25% drawdown). Non-finite points are skipped.
func MaxDrawdown(curve []float64) (float64, error) {
	if len(curve) == 0 {
		return 0, errors.New("empty curve")
	}
	peak := math.Inf(-1)
	maxDD := 0.0
	for _, v := range curve {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD, nil
}

// BuyAndHold returns last/first of a price column, the growth factor of holding it.
func BuyAndHold(prices []float64) (float64, error) {
	if len(prices) == 0 {
		return 0, errors.New("no prices provided")
	}
	if prices[0] == 0 {
		return 0, errors.New("first price is zero")
	}
	return prices[len(prices)-1] / prices[0], nil
}
