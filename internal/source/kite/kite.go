// Package kite fetches daily bars from Zerodha Kite Connect historical data.
package kite

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"nifty-signals/internal/interfaces"
	"nifty-signals/internal/logger"
	"nifty-signals/internal/source"
	"nifty-signals/internal/types"
)

// Kite caps daily candle requests at 2000 days.
const maxDaysPerRequest = 2000

// historyAPI is the subset of *kiteconnect.Client used here.
type historyAPI interface {
	GetInstrumentsByExchange(exchange string) (kiteconnect.Instruments, error)
	GetHistoricalData(instrumentToken int, interval string, fromDate time.Time, toDate time.Time, continuous bool, OI bool) ([]kiteconnect.HistoricalData, error)
}

type Source struct {
	kc       historyAPI
	exchange string
	limiter  *source.RateLimiter

	mu     sync.Mutex
	tokens map[string]int
}

var _ interfaces.BarSource = (*Source)(nil)

type Params struct {
	APIKey         string
	AccessToken    string
	Exchange       string
	RequestsPerSec int
}

func New(p Params) *Source {
	kc := kiteconnect.New(p.APIKey)
	kc.SetAccessToken(p.AccessToken)
	return newWithAPI(kc, p.Exchange, p.RequestsPerSec)
}

func newWithAPI(kc historyAPI, exchange string, rps int) *Source {
	if exchange == "" {
		exchange = "NSE"
	}
	return &Source{
		kc:       kc,
		exchange: exchange,
		limiter:  source.PerSecond(rps),
	}
}

func (s *Source) Name() string { return "kite" }

// TradingSymbol strips a Yahoo-style exchange suffix (".NS", ".BO").
func TradingSymbol(symbol string) string {
	if i := strings.LastIndex(symbol, "."); i > 0 {
		switch strings.ToUpper(symbol[i+1:]) {
		case "NS", "BO":
			return symbol[:i]
		}
	}
	return symbol
}

func (s *Source) token(ctx context.Context, symbol string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tokens == nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return 0, err
		}
		insts, err := s.kc.GetInstrumentsByExchange(s.exchange)
		if err != nil {
			return 0, fmt.Errorf("kite instruments %s: %w", s.exchange, err)
		}
		s.tokens = make(map[string]int, len(insts))
		for _, in := range insts {
			s.tokens[in.Tradingsymbol] = in.InstrumentToken
		}
		logger.Info(ctx, "Loaded Kite instruments", "exchange", s.exchange, "count", len(insts))
	}

	tok, ok := s.tokens[TradingSymbol(symbol)]
	if !ok {
		return 0, fmt.Errorf("kite: unknown instrument %s on %s", symbol, s.exchange)
	}
	return tok, nil
}

// DailyBars fetches [from, to] in windows of at most maxDaysPerRequest days.
func (s *Source) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]types.Bar, error) {
	tok, err := s.token(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if to.IsZero() {
		to = time.Now()
	}

	var bars []types.Bar
	for start := from; !start.After(to); {
		end := start.AddDate(0, 0, maxDaysPerRequest-1)
		if end.After(to) {
			end = to
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		candles, err := s.kc.GetHistoricalData(tok, "day", start, end, false, false)
		if err != nil {
			return nil, fmt.Errorf("kite history %s %s..%s: %w", symbol, start.Format("2006-01-02"), end.Format("2006-01-02"), err)
		}
		for _, c := range candles {
			d := c.Date.Time
			bars = append(bars, types.Bar{
				Symbol: symbol,
				Time:   time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
				Open:   c.Open,
				High:   c.High,
				Low:    c.Low,
				Close:  c.Close,
				Volume: float64(c.Volume),
			})
		}
		start = end.AddDate(0, 0, 1)
	}
	return bars, nil
}
