package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"nifty-signals/internal/dataset"
	"nifty-signals/internal/features"
	"nifty-signals/internal/logger"
	"nifty-signals/internal/types"
)

type Config struct {
	Workers  int
	Universe []string // when set, only these instruments are processed
}

// Result is the outcome of one processing pass. Rows are grouped by
// instrument, in order of first appearance in the input, and chronological
// within each instrument.
type Result struct {
	Rows        []types.FeatureRow `json:"rows"`
	Instruments []string           `json:"instruments"`
	Failures    []types.Failure    `json:"failures"`
}

type Processor struct {
	cfg Config
}

func New(cfg Config) *Processor {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Processor{cfg: cfg}
}

type outcome struct {
	rows []types.FeatureRow
	err  error
}

// Process partitions raw bars by instrument and builds each instrument's
// feature rows independently. An instrument that fails is reported in
// Result.Failures and excluded; only a dataset without an instrument or
// timestamp column fails the whole pass.
func (p *Processor) Process(ctx context.Context, raw dataset.Frame) (*Result, error) {
	res := &Result{}
	if raw.Len() == 0 {
		return res, nil
	}
	frame := raw.Normalize()
	if err := frame.Require(dataset.ColTicker, dataset.ColTimestamp); err != nil {
		return nil, err
	}

	keys, parts := frame.Partition(dataset.ColTicker)
	keys = p.selectUniverse(ctx, keys, parts, res)

	outcomes := make([]outcome, len(keys))
	var mu sync.Mutex
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(p.cfg.Workers, len(keys)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rows, err := buildOne(keys[i], parts[keys[i]])
				mu.Lock()
				outcomes[i] = outcome{rows: rows, err: err}
				mu.Unlock()
			}
		}()
	}

	var ctxErr error
	for i := range keys {
		if err := ctx.Err(); err != nil {
			ctxErr = err
			break
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	if ctxErr != nil {
		return nil, ctxErr
	}

	for i, sym := range keys {
		o := outcomes[i]
		if o.err != nil {
			logger.Warn(ctx, "Instrument excluded from feature pass", "symbol", sym, "error", o.err)
			res.Failures = append(res.Failures, types.Failure{Symbol: sym, Err: o.err, Reason: o.err.Error()})
			continue
		}
		logger.Debug(ctx, "Instrument processed", "symbol", sym, "rows", len(o.rows))
		res.Instruments = append(res.Instruments, sym)
		res.Rows = append(res.Rows, o.rows...)
	}
	return res, nil
}

func (p *Processor) selectUniverse(ctx context.Context, keys []string, parts map[string]dataset.Frame, res *Result) []string {
	if len(p.cfg.Universe) == 0 {
		return keys
	}
	want := make(map[string]bool, len(p.cfg.Universe))
	for _, s := range p.cfg.Universe {
		want[s] = true
		if _, ok := parts[s]; !ok {
			err := fmt.Errorf("%s: %w: no bars in input", s, types.ErrNotEnoughData)
			res.Failures = append(res.Failures, types.Failure{Symbol: s, Err: err, Reason: err.Error()})
		}
	}
	out := keys[:0:0]
	for _, k := range keys {
		if want[k] {
			out = append(out, k)
		} else {
			logger.Debug(ctx, "Skipping instrument outside universe", "symbol", k)
		}
	}
	return out
}

func buildOne(symbol string, part dataset.Frame) (rows []types.FeatureRow, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", symbol, r)
		}
	}()
	return features.BuildFrame(symbol, part)
}

// FailedSymbols lists the instruments that failed with err.
func (r *Result) FailedSymbols(target error) []string {
	var out []string
	for _, f := range r.Failures {
		if errors.Is(f.Err, target) {
			out = append(out, f.Symbol)
		}
	}
	return out
}
