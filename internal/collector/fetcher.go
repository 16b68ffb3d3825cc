package collector

import (
	"context"
	"time"

	"HiLoBacktester/internal/model"
)

// Fetcher retrieves raw daily bars for a symbol between start (inclusive) and
// end (exclusive). A zero start and end ask for the full history.
type Fetcher interface {
	FetchDailyBars(ctx context.Context, symbol string, start, end time.Time) (*model.RawFrame, error)
	Name() string
}
