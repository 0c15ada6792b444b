// Package universe resolves the list of instruments to process.
package universe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"nifty-signals/internal/logger"
)

// ScrapeSource describes an HTML table of index constituents.
type ScrapeSource struct {
	URL      string
	Selector string // one match per constituent row, e.g. "table.wikitable tbody tr"
	Column   int    // zero-based cell holding the symbol
	Suffix   string // appended to each symbol, e.g. ".NS"
}

// Scraper fetches constituent lists with colly.
type Scraper struct {
	timeout time.Duration
}

func NewScraper(timeout time.Duration) *Scraper {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Scraper{timeout: timeout}
}

// Scrape returns the symbols listed at src in page order, without duplicates.
func (s *Scraper) Scrape(ctx context.Context, src ScrapeSource) ([]string, error) {
	var (
		symbols []string
		seen    = map[string]bool{}
		scrErr  error
	)

	c := colly.NewCollector(
		colly.MaxDepth(1),
		colly.Async(false),
	)
	c.SetRequestTimeout(s.timeout)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		r.Headers.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	})

	c.OnHTML(src.Selector, func(e *colly.HTMLElement) {
		cells := e.DOM.Find("td")
		if cells.Length() <= src.Column {
			return
		}
		sym := cleanSymbol(cells.Eq(src.Column))
		if sym == "" {
			return
		}
		sym += src.Suffix
		if !seen[sym] {
			seen[sym] = true
			symbols = append(symbols, sym)
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		scrErr = fmt.Errorf("scrape %s: status %d: %w", r.Request.URL, r.StatusCode, err)
	})

	if err := c.Visit(src.URL); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to visit %s: %w", src.URL, err)
	}
	c.Wait()

	if scrErr != nil {
		return nil, scrErr
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("scrape %s: selector %q matched no symbols", src.URL, src.Selector)
	}
	logger.Info(ctx, "Scraped index constituents", "url", src.URL, "count", len(symbols))
	return symbols, nil
}

func cleanSymbol(cell *goquery.Selection) string {
	// prefer link text when the cell holds one
	if a := cell.Find("a").First(); a.Length() > 0 {
		if t := strings.TrimSpace(a.Text()); t != "" {
			return strings.ToUpper(t)
		}
	}
	return strings.ToUpper(strings.TrimSpace(cell.Text()))
}

// Resolve merges the static list with the scraped one (when src.URL is set),
// keeping the static order first. A scrape failure falls back to the static
// list if there is one.
func Resolve(ctx context.Context, static []string, src ScrapeSource, s *Scraper) ([]string, error) {
	out := dedupe(static)
	if src.URL == "" {
		return out, nil
	}
	scraped, err := s.Scrape(ctx, src)
	if err != nil {
		if len(out) > 0 {
			logger.Warn(ctx, "Universe scrape failed, using static list", "error", err, "static", len(out))
			return out, nil
		}
		return nil, err
	}
	return dedupe(append(out, scraped...)), nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
