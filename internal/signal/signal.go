package signal

import (
	"context"
	"runtime"
	"sync"
	"time"

	"nifty-signals/internal/features"
	"nifty-signals/internal/logger"
	"nifty-signals/internal/types"
)

// NoPrediction marks a prediction that was not made because a model is absent.
const NoPrediction = -1

// ClassifierProvider returns the classifier pair of an instrument. A missing
// model is reported as a nil member, not as an error.
type ClassifierProvider interface {
	Classifiers(ctx context.Context, symbol string) (types.ClassifierPair, error)
}

// StaticProvider serves a fixed set of classifier pairs.
type StaticProvider map[string]types.ClassifierPair

func (p StaticProvider) Classifiers(_ context.Context, symbol string) (types.ClassifierPair, error) {
	return p[symbol], nil
}

// Decide fuses the two direction predictions: both up is BUY, both down is
// SELL, disagreement is HOLD. Anything other than 1 counts as down.
func Decide(predOpen, predClose int) types.Signal {
	up := predOpen == 1
	closeUp := predClose == 1
	switch {
	case up && closeUp:
		return types.SignalBuy
	case !up && !closeUp:
		return types.SignalSell
	default:
		return types.SignalHold
	}
}

// Evaluation is the signal of one instrument for one refresh cycle.
type Evaluation struct {
	Symbol    string       `json:"symbol"`
	Signal    types.Signal `json:"signal"`
	PredOpen  int          `json:"pred_open"`
	PredClose int          `json:"pred_close"`
	AsOf      time.Time    `json:"as_of"`
	Close     float64      `json:"close"`
}

// Fuse evaluates pair on row. An incomplete pair yields NO_MODEL.
func Fuse(pair types.ClassifierPair, row types.FeatureRow) Evaluation {
	ev := Evaluation{
		Symbol:    row.Symbol,
		Signal:    types.SignalNoModel,
		PredOpen:  NoPrediction,
		PredClose: NoPrediction,
		AsOf:      row.Time,
		Close:     row.Close,
	}
	if !pair.Complete() {
		return ev
	}
	x := features.Vector(row)
	ev.PredOpen = pair.Open.Predict(x)
	ev.PredClose = pair.Close.Predict(x)
	ev.Signal = Decide(ev.PredOpen, ev.PredClose)
	return ev
}

type Engine struct {
	provider ClassifierProvider
	workers  int
}

func NewEngine(provider ClassifierProvider, workers int) *Engine {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Engine{provider: provider, workers: workers}
}

// Evaluate computes a signal for every instrument in latest. Instruments are
// independent and evaluated concurrently; a provider error degrades that
// instrument to NO_MODEL.
func (e *Engine) Evaluate(ctx context.Context, latest map[string]types.FeatureRow) map[string]Evaluation {
	out := make(map[string]Evaluation, len(latest))
	var mu sync.Mutex
	sem := make(chan struct{}, e.workers)
	var wg sync.WaitGroup

	for sym, row := range latest {
		wg.Add(1)
		sem <- struct{}{}
		go func(sym string, row types.FeatureRow) {
			defer wg.Done()
			defer func() { <-sem }()

			row.Symbol = sym
			pair, err := e.provider.Classifiers(ctx, sym)
			if err != nil {
				logger.Warn(ctx, "Classifier lookup failed, no model used", "symbol", sym, "error", err)
				pair = types.ClassifierPair{}
			}
			ev := Fuse(pair, row)
			logger.Signal(ctx, sym, string(ev.Signal), ev.PredOpen, ev.PredClose, "close", ev.Close)

			mu.Lock()
			out[sym] = ev
			mu.Unlock()
		}(sym, row)
	}
	wg.Wait()
	return out
}
