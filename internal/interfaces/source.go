package interfaces

import (
	"context"
	"time"

	"nifty-signals/internal/types"
)

// BarSource supplies daily bars for one instrument, oldest first.
type BarSource interface {
	Name() string
	DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]types.Bar, error)
}
