package model

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyResult is returned when a sweep has no row to select from.
	ErrEmptyResult = errors.New("empty optimization result")
	// ErrInvalidSeries marks price data that breaks the series invariants.
	ErrInvalidSeries = errors.New("invalid price series")
	// ErrInvalidCost marks a negative or non-finite transaction cost rate.
	ErrInvalidCost = errors.New("invalid transaction cost")
	// ErrNoData is returned when a provider has nothing for the requested symbol.
	ErrNoData = errors.New("no price data")
)

// MissingFieldError reports a required price field absent after normalization.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("the %q field is missing from the data", e.Field)
}

// InvalidPeriodError reports a lookback period outside [1, Length].
type InvalidPeriodError struct {
	Period int
	Length int
}

func (e *InvalidPeriodError) Error() string {
	return fmt.Sprintf("invalid hilo period %d for a series of %d bars", e.Period, e.Length)
}
