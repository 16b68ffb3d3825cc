package calculator

import (
	"math"
	"testing"
)

func TestRollingMean_LeadingNaN(t *testing.T) {
	got, err := RollingMean([]float64{1, 2, 3, 4, 5}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{math.NaN(), math.NaN(), 2, 3, 4}
	for i := range want {
		if math.IsNaN(want[i]) {
			if !math.IsNaN(got[i]) {
				t.Errorf("index %d: expected NaN, got %v", i, got[i])
			}
			continue
		}
		if got[i] != want[i] {
			t.Errorf("index %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestRollingMean_PeriodOne(t *testing.T) {
	in := []float64{100, 102, 101}
	got, err := RollingMean(in, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("index %d: expected %v, got %v", i, in[i], got[i])
		}
	}
}

func TestRollingMean_InvalidPeriod(t *testing.T) {
	if _, err := RollingMean([]float64{1}, 0); err == nil {
		t.Error("expected error for zero period")
	}
}

func TestCalculateSMA(t *testing.T) {
	sma, err := CalculateSMA([]float64{1, 2, 3, 4}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sma != 3.5 {
		t.Errorf("expected 3.5, got %v", sma)
	}
	if _, err := CalculateSMA([]float64{1}, 2); err == nil {
		t.Error("expected error when data is shorter than period")
	}
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name  string
		curve []float64
		want  float64
	}{
		{"rising", []float64{1, 1.1, 1.2}, 0},
		{"single dip", []float64{1, 2, 1, 1.5}, 0.5},
		{"skips non-finite", []float64{1, math.NaN(), 0.8, math.Inf(1)}, 0.2},
	}
	for _, tt := range tests {
		got, err := MaxDrawdown(tt.curve)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
	if _, err := MaxDrawdown(nil); err == nil {
		t.Error("expected error for empty curve")
	}
}

func TestBuyAndHold(t *testing.T) {
	got, err := BuyAndHold([]float64{100, 90, 150})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1.5 {
		t.Errorf("expected 1.5, got %v", got)
	}
	if _, err := BuyAndHold([]float64{0, 1}); err == nil {
		t.Error("expected error for zero first price")
	}
}
