package source

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"nifty-signals/internal/dataset"
	"nifty-signals/internal/features"
	"nifty-signals/internal/types"
)

// CSV serves bars from a headered CSV file holding one or more instruments.
// The file is read once, on first use.
type CSV struct {
	path string

	once  sync.Once
	parts map[string]dataset.Frame
	err   error
}

func NewCSV(path string) *CSV {
	return &CSV{path: path}
}

func (c *CSV) Name() string { return "csv" }

func (c *CSV) load() {
	f, err := os.Open(c.path)
	if err != nil {
		c.err = err
		return
	}
	defer f.Close()

	frame, err := dataset.ReadCSV(f)
	if err != nil {
		c.err = err
		return
	}
	frame = frame.Normalize()
	if err := frame.Require(dataset.ColTicker); err != nil {
		c.err = fmt.Errorf("%s: %w", c.path, err)
		return
	}
	_, c.parts = frame.Partition(dataset.ColTicker)
}

// DailyBars returns symbol's bars with from <= time <= to. A zero from or to
// leaves that side open.
func (c *CSV) DailyBars(_ context.Context, symbol string, from, to time.Time) ([]types.Bar, error) {
	c.once.Do(c.load)
	if c.err != nil {
		return nil, c.err
	}
	part, ok := c.parts[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: no rows in %s: %w", symbol, c.path, types.ErrNotEnoughData)
	}
	bars, err := features.ParseBars(symbol, part)
	if err != nil {
		return nil, err
	}
	out := bars[:0]
	for _, b := range bars {
		if (!from.IsZero() && b.Time.Before(from)) || (!to.IsZero() && b.Time.After(to)) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}
