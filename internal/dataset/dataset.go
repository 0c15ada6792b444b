package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"nifty-signals/internal/types"
)

// Canonical column names.
const (
	ColTicker    = "ticker"
	ColTimestamp = "timestamp"
	ColOpen      = "open"
	ColHigh      = "high"
	ColLow       = "low"
	ColClose     = "close"
	ColAdjClose  = "adj_close"
	ColVolume    = "volume"
)

var aliases = map[string]string{
	"ticker":        ColTicker,
	"symbol":        ColTicker,
	"instrument":    ColTicker,
	"instrument_id": ColTicker,
	"timestamp":     ColTimestamp,
	"date":          ColTimestamp,
	"datetime":      ColTimestamp,
	"open":          ColOpen,
	"high":          ColHigh,
	"low":           ColLow,
	"close":         ColClose,
	"adj close":     ColAdjClose,
	"adj_close":     ColAdjClose,
	"adjclose":      ColAdjClose,
	"volume":        ColVolume,
}

// Canonical maps a raw column header to its canonical name. Unknown headers
// are returned lower-cased and trimmed.
func Canonical(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if c, ok := aliases[key]; ok {
		return c
	}
	return key
}

// Frame is a raw columnar dataset with string cells, as delivered by a bar
// source, a CSV file or the raw-bar table.
type Frame struct {
	Columns []string
	Records [][]string
}

func (f Frame) Len() int { return len(f.Records) }

func (f Frame) Index(col string) int {
	for i, c := range f.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

func (f Frame) Has(col string) bool { return f.Index(col) >= 0 }

// Normalize renames every column to its canonical name. When two headers map
// to the same name the first one wins and later duplicates keep their raw name.
func (f Frame) Normalize() Frame {
	out := Frame{Columns: make([]string, len(f.Columns)), Records: f.Records}
	seen := make(map[string]bool, len(f.Columns))
	for i, c := range f.Columns {
		name := Canonical(c)
		if seen[name] {
			name = strings.TrimSpace(c)
		}
		seen[name] = true
		out.Columns[i] = name
	}
	return out
}

// Require returns ErrMissingColumn naming the first absent column.
func (f Frame) Require(cols ...string) error {
	for _, c := range cols {
		if !f.Has(c) {
			return fmt.Errorf("%w: %q (available: %v)", types.ErrMissingColumn, c, f.Columns)
		}
	}
	return nil
}

// Partition splits the frame by the values of col, preserving row order
// within each partition. keys lists partitions in order of first appearance.
func (f Frame) Partition(col string) (keys []string, parts map[string]Frame) {
	idx := f.Index(col)
	parts = make(map[string]Frame)
	if idx < 0 {
		return nil, parts
	}
	for _, rec := range f.Records {
		if idx >= len(rec) {
			continue
		}
		k := strings.TrimSpace(rec[idx])
		if IsMissing(k) {
			continue
		}
		p, ok := parts[k]
		if !ok {
			keys = append(keys, k)
			p = Frame{Columns: f.Columns}
		}
		p.Records = append(p.Records, rec)
		parts[k] = p
	}
	return keys, parts
}

// HasValues reports whether col exists and at least one row carries a value
// for it.
func (f Frame) HasValues(col string) bool {
	idx := f.Index(col)
	if idx < 0 {
		return false
	}
	for _, rec := range f.Records {
		if idx < len(rec) && !IsMissing(rec[idx]) {
			return true
		}
	}
	return false
}

func IsMissing(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan", "na", "null", "none":
		return true
	}
	return false
}

func ParseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

var timeLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02T15:04:05",
	"02-01-2006",
}

func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(n, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// FromBars builds a canonical frame from typed bars.
func FromBars(bars []types.Bar) Frame {
	f := Frame{Columns: []string{ColTicker, ColTimestamp, ColOpen, ColHigh, ColLow, ColClose, ColVolume}}
	for _, b := range bars {
		f.Records = append(f.Records, []string{
			b.Symbol,
			b.Time.Format("2006-01-02"),
			formatFloat(b.Open),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Close),
			formatFloat(b.Volume),
		})
	}
	return f
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Concat appends frames that share a column layout. Columns missing from a
// frame are filled with empty cells.
func Concat(frames ...Frame) Frame {
	var out Frame
	pos := map[string]int{}
	for _, f := range frames {
		for _, c := range f.Columns {
			if _, ok := pos[c]; !ok {
				pos[c] = len(out.Columns)
				out.Columns = append(out.Columns, c)
			}
		}
	}
	for _, f := range frames {
		for _, rec := range f.Records {
			row := make([]string, len(out.Columns))
			for i, c := range f.Columns {
				if i < len(rec) {
					row[pos[c]] = rec[i]
				}
			}
			out.Records = append(out.Records, row)
		}
	}
	return out
}

// ReadCSV loads a headered CSV file keeping every cell as text.
func ReadCSV(r io.Reader) (Frame, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return Frame{}, fmt.Errorf("read csv: %w", df.Err)
	}
	recs := df.Records()
	if len(recs) == 0 {
		return Frame{}, nil
	}
	return Frame{Columns: recs[0], Records: recs[1:]}, nil
}

func (f Frame) WriteCSV(w io.Writer) error {
	if len(f.Records) == 0 {
		cw := csv.NewWriter(w)
		if err := cw.Write(f.Columns); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	}
	recs := make([][]string, 0, len(f.Records)+1)
	recs = append(recs, f.Columns)
	recs = append(recs, f.Records...)
	df := dataframe.LoadRecords(recs,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return fmt.Errorf("write csv: %w", df.Err)
	}
	return df.WriteCSV(w)
}
