package signalobs

import (
	"context"

	"nifty-signals/internal/interfaces"
	"nifty-signals/internal/logger"
	"nifty-signals/internal/metrics"
	"nifty-signals/internal/signal"
	"nifty-signals/internal/trace"
	"nifty-signals/internal/types"
)

type observableEngine struct {
	e interfaces.SignalEngine
}

var _ interfaces.SignalEngine = (*observableEngine)(nil)

func Wrap(e interfaces.SignalEngine) interfaces.SignalEngine {
	return &observableEngine{e: e}
}

func (o *observableEngine) Evaluate(ctx context.Context, latest map[string]types.FeatureRow) map[string]signal.Evaluation {
	ctx, span := trace.StartSpan(ctx, "signal.Evaluate")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Evaluating signals", "instruments", len(latest))

	out := o.e.Evaluate(ctx, latest)

	counts := map[types.Signal]int{}
	for _, ev := range out {
		counts[ev.Signal]++
		metrics.SignalsTotal.WithLabelValues(string(ev.Signal)).Inc()
	}
	logger.InfoSkip(ctx, 1, "Signals evaluated",
		"instruments", len(out),
		"buy", counts[types.SignalBuy],
		"sell", counts[types.SignalSell],
		"hold", counts[types.SignalHold],
		"no_model", counts[types.SignalNoModel],
	)
	return out
}
