// Package ingest downloads daily history for a universe of instruments.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"nifty-signals/internal/dataset"
	"nifty-signals/internal/interfaces"
	"nifty-signals/internal/logger"
	"nifty-signals/internal/metrics"
	"nifty-signals/internal/types"
)

type Config struct {
	From    time.Time
	To      time.Time // zero means now
	Workers int
}

// Result lists fetched bars grouped by instrument in universe order.
type Result struct {
	Bars     []types.Bar
	Symbols  []string
	Failures []types.Failure
}

type Collector struct {
	src interfaces.BarSource
	cfg Config
}

func NewCollector(src interfaces.BarSource, cfg Config) *Collector {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Collector{src: src, cfg: cfg}
}

type fetched struct {
	bars []types.Bar
	err  error
}

// Collect fetches every symbol. A symbol that errors or returns no bars is
// reported as a failure and does not stop the others.
func (c *Collector) Collect(ctx context.Context, symbols []string) (*Result, error) {
	out := make([]fetched, len(symbols))
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < c.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				bars, err := c.src.DailyBars(ctx, symbols[i], c.cfg.From, c.cfg.To)
				if err == nil && len(bars) == 0 {
					err = fmt.Errorf("%s: no bars returned: %w", symbols[i], types.ErrNotEnoughData)
				}
				outcome := "ok"
				if err != nil {
					outcome = "error"
				}
				metrics.SourceRequests.WithLabelValues(c.src.Name(), outcome).Inc()
				out[i] = fetched{bars: bars, err: err}
			}
		}()
	}

dispatch:
	for i := range symbols {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{}
	for i, sym := range symbols {
		if err := out[i].err; err != nil {
			logger.Warn(ctx, "Ingest failed for instrument", "symbol", sym, "source", c.src.Name(), "error", err)
			res.Failures = append(res.Failures, types.Failure{Symbol: sym, Err: err, Reason: err.Error()})
			continue
		}
		for j := range out[i].bars {
			out[i].bars[j].Symbol = sym
		}
		res.Symbols = append(res.Symbols, sym)
		res.Bars = append(res.Bars, out[i].bars...)
	}
	logger.Info(ctx, "Ingest completed",
		"source", c.src.Name(),
		"instruments", len(res.Symbols),
		"bars", len(res.Bars),
		"failures", len(res.Failures))
	return res, nil
}

// ExportCSV writes bars as a canonical CSV file at path.
func ExportCSV(path string, bars []types.Bar) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := dataset.FromBars(bars).WriteCSV(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
