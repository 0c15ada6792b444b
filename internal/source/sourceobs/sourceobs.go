package sourceobs

import (
	"context"
	"time"

	"nifty-signals/internal/interfaces"
	"nifty-signals/internal/logger"
	"nifty-signals/internal/trace"
	"nifty-signals/internal/types"
)

// observableSource wraps a BarSource with observability (logging & tracing)
type observableSource struct {
	src interfaces.BarSource
}

var _ interfaces.BarSource = (*observableSource)(nil)

// Wrap wraps a bar source with observability middleware
func Wrap(src interfaces.BarSource) interfaces.BarSource {
	return &observableSource{src: src}
}

func (o *observableSource) Name() string { return o.src.Name() }

func (o *observableSource) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]types.Bar, error) {
	ctx, span := trace.StartSpan(ctx, "source."+o.src.Name()+".DailyBars")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching daily bars", "source", o.src.Name(), "symbol", symbol, "from", from.Format("2006-01-02"))

	bars, err := o.src.DailyBars(ctx, symbol, from, to)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch daily bars", err, "source", o.src.Name(), "symbol", symbol)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Daily bars fetched", "source", o.src.Name(), "symbol", symbol, "count", len(bars))
	return bars, nil
}
