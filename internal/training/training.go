// Package training fits the per-instrument direction classifiers.
package training

import (
	"context"
	"errors"
	"fmt"

	"nifty-signals/internal/classifier"
	"nifty-signals/internal/logger"
	"nifty-signals/internal/metrics"
	"nifty-signals/internal/types"
)

// ModelSaver persists a trained model.
type ModelSaver interface {
	Save(m *classifier.Logistic) error
}

// Outcome describes one trained (or skipped) instrument.
type Outcome struct {
	Symbol   string  `json:"symbol"`
	Rows     int     `json:"rows"`
	OpenAcc  float64 `json:"open_test_accuracy"`
	CloseAcc float64 `json:"close_test_accuracy"`
	Skipped  string  `json:"skipped,omitempty"`
}

type Summary struct {
	Trained  []Outcome       `json:"trained"`
	Skipped  []Outcome       `json:"skipped"`
	Failures []types.Failure `json:"failures"`
}

// Train fits an open and a close model for every instrument in rows. rows
// must be grouped by instrument and chronological within each group, as the
// pipeline produces them. Instruments below opt.MinRows are skipped and keep
// no model.
func Train(ctx context.Context, rows []types.FeatureRow, opt classifier.Options, saver ModelSaver) (*Summary, error) {
	order, groups := group(rows)
	sum := &Summary{}

	for _, sym := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rs := groups[sym]
		op := logger.StartOperation(ctx, "training.instrument", "symbol", sym, "rows", len(rs))

		out, err := trainOne(sym, rs, opt, saver)
		switch {
		case errors.Is(err, types.ErrNotEnoughData):
			op.End("skipped", true)
			logger.Info(ctx, "Not enough rows to train, no model", "symbol", sym, "rows", len(rs), "min_rows", opt.MinRows)
			sum.Skipped = append(sum.Skipped, Outcome{Symbol: sym, Rows: len(rs), Skipped: err.Error()})
		case err != nil:
			op.EndWithError(err)
			sum.Failures = append(sum.Failures, types.Failure{Symbol: sym, Err: err, Reason: err.Error()})
		default:
			op.End()
			logger.Info(ctx, "Trained classifiers",
				"symbol", sym,
				"rows", len(rs),
				"open_test_accuracy", out.OpenAcc,
				"close_test_accuracy", out.CloseAcc)
			sum.Trained = append(sum.Trained, out)
		}
	}
	return sum, nil
}

func trainOne(sym string, rs []types.FeatureRow, opt classifier.Options, saver ModelSaver) (Outcome, error) {
	out := Outcome{Symbol: sym, Rows: len(rs)}
	for _, target := range []types.Target{types.TargetOpen, types.TargetClose} {
		m, err := classifier.Train(sym, rs, target, opt)
		if err != nil {
			return out, err
		}
		if err := saver.Save(m); err != nil {
			return out, fmt.Errorf("save %s/%s: %w", sym, target, err)
		}
		metrics.ModelsTrained.WithLabelValues(string(target)).Inc()
		if target == types.TargetOpen {
			out.OpenAcc = m.TestAcc
		} else {
			out.CloseAcc = m.TestAcc
		}
	}
	return out, nil
}

func group(rows []types.FeatureRow) ([]string, map[string][]types.FeatureRow) {
	var order []string
	groups := map[string][]types.FeatureRow{}
	for _, r := range rows {
		if _, ok := groups[r.Symbol]; !ok {
			order = append(order, r.Symbol)
		}
		groups[r.Symbol] = append(groups[r.Symbol], r)
	}
	return order, groups
}
