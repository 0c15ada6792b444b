package interfaces

import (
	"context"

	"nifty-signals/internal/signal"
	"nifty-signals/internal/types"
)

type SignalEngine interface {
	Evaluate(ctx context.Context, latest map[string]types.FeatureRow) map[string]signal.Evaluation
}
