// Package yahoo fetches daily bars from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"nifty-signals/internal/api"
	"nifty-signals/internal/interfaces"
	"nifty-signals/internal/source"
	"nifty-signals/internal/types"
)

const DefaultBaseURL = "https://query1.finance.yahoo.com"

type Source struct {
	client  *api.Client
	limiter *source.RateLimiter
}

var _ interfaces.BarSource = (*Source)(nil)

type Params struct {
	BaseURL        string
	Timeout        time.Duration
	RequestsPerSec int
	Retries        int
}

func New(p Params) *Source {
	if p.BaseURL == "" {
		p.BaseURL = DefaultBaseURL
	}
	if p.Timeout <= 0 {
		p.Timeout = 30 * time.Second
	}
	return &Source{
		client: api.NewClient(
			api.WithBaseURL(p.BaseURL),
			api.WithTimeout(p.Timeout),
			api.WithHeaders(api.YahooFinanceHeaders()),
			api.WithRetry(p.Retries, time.Second, 10*time.Second),
			api.WithLogging(true),
		),
		limiter: source.PerSecond(p.RequestsPerSec),
	}
}

func (s *Source) Name() string { return "yahoo" }

// DailyBars requests the [from, to] daily history of symbol.
func (s *Source) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]types.Bar, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if to.IsZero() {
		to = time.Now()
	}
	resp, err := s.client.Get(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), map[string]string{
		"period1":              strconv.FormatInt(from.Unix(), 10),
		"period2":              strconv.FormatInt(to.Unix(), 10),
		"interval":             "1d",
		"events":               "history",
		"includeAdjustedClose": "true",
	})
	if err != nil {
		return nil, errors.Wrapf(err, "yahoo %s", symbol)
	}
	return ParseChart(symbol, resp.Body)
}

// ParseChart decodes a chart API payload. Days on which any price or the
// volume is null are skipped; a null close falls back to the adjusted close.
// Bar times are the exchange-local trading date at midnight UTC.
func ParseChart(symbol string, body []byte) ([]types.Bar, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.Errorf("yahoo %s: invalid JSON payload", symbol)
	}
	if desc := gjson.GetBytes(body, "chart.error.description"); desc.Exists() && desc.String() != "" {
		return nil, errors.Errorf("yahoo %s: %s", symbol, desc.String())
	}
	res := gjson.GetBytes(body, "chart.result.0")
	if !res.Exists() {
		return nil, errors.Errorf("yahoo %s: empty chart result", symbol)
	}

	offset := res.Get("meta.gmtoffset").Int()
	stamps := res.Get("timestamp").Array()
	quote := res.Get("indicators.quote.0")
	opens := quote.Get("open").Array()
	highs := quote.Get("high").Array()
	lows := quote.Get("low").Array()
	closes := quote.Get("close").Array()
	volumes := quote.Get("volume").Array()
	adj := res.Get("indicators.adjclose.0.adjclose").Array()

	bars := make([]types.Bar, 0, len(stamps))
	for i, ts := range stamps {
		o, okO := at(opens, i)
		h, okH := at(highs, i)
		l, okL := at(lows, i)
		v, okV := at(volumes, i)
		c, okC := at(closes, i)
		if !okC {
			c, okC = at(adj, i)
		}
		if !(okO && okH && okL && okC && okV) {
			continue
		}
		local := time.Unix(ts.Int()+offset, 0).UTC()
		bars = append(bars, types.Bar{
			Symbol: symbol,
			Time:   time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: v,
		})
	}
	return bars, nil
}

func at(vals []gjson.Result, i int) (float64, bool) {
	if i >= len(vals) || vals[i].Type != gjson.Number {
		return 0, false
	}
	return vals[i].Float(), true
}
