package features

import (
	"fmt"
	"math"
	"sort"

	"nifty-signals/internal/dataset"
	"nifty-signals/internal/ta"
	"nifty-signals/internal/types"
)

// Indicator windows. Column names below encode them, so they are fixed.
const (
	ShortWindow     = 20
	LongWindow      = 50
	MACDFast        = 12
	MACDSlow        = 26
	MACDSignal      = 9
	RSIPeriod       = 14
	BollingerWindow = 20
	BollingerK      = 2.0
	ATRPeriod       = 14
)

// Warmup is the number of leading rows that can never be complete.
const Warmup = LongWindow - 1

// Columns is the ordered feature vector shared by training and inference.
var Columns = []string{
	"Open", "High", "Low", "Close", "Volume",
	"SMA_20", "SMA_50", "EMA_20", "EMA_50",
	"MACD", "MACD_Signal", "MACD_Hist",
	"RSI_14", "BB_Middle", "BB_Upper", "BB_Lower",
	"ATR_14",
}

// Vector returns r's fields in Columns order.
func Vector(r types.FeatureRow) []float64 {
	return []float64{
		r.Open, r.High, r.Low, r.Close, r.Volume,
		r.SMA20, r.SMA50, r.EMA20, r.EMA50,
		r.MACD, r.MACDSignal, r.MACDHist,
		r.RSI14, r.BBMiddle, r.BBUpper, r.BBLower,
		r.ATR14,
	}
}

// SameColumns reports whether cols matches Columns exactly.
func SameColumns(cols []string) bool {
	if len(cols) != len(Columns) {
		return false
	}
	for i := range cols {
		if cols[i] != Columns[i] {
			return false
		}
	}
	return true
}

// Build derives feature rows from one instrument's chronologically ordered
// bars. Rows lacking history for any indicator, rows with a non-finite
// field, and the final row (no next bar to label it) are dropped.
func Build(bars []types.Bar) []types.FeatureRow {
	n := len(bars)
	opens := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i, b := range bars {
		opens[i] = b.Open
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
	}

	sma20 := ta.SMA(closes, ShortWindow)
	sma50 := ta.SMA(closes, LongWindow)
	ema20 := ta.EMA(closes, ShortWindow)
	ema50 := ta.EMA(closes, LongWindow)
	macd, macdSig, macdHist := ta.MACD(closes, MACDFast, MACDSlow, MACDSignal)
	rsi := ta.RSI(closes, RSIPeriod)
	bbMid, bbUp, bbLow := ta.Bollinger(closes, BollingerWindow, BollingerK)
	atr := ta.ATR(highs, lows, closes, ATRPeriod)

	rows := make([]types.FeatureRow, 0, max(n-Warmup-1, 0))
	for i := 0; i+1 < n; i++ {
		cols := []ta.Value{
			sma20[i], sma50[i], ema20[i], ema50[i],
			macd[i], macdSig[i], macdHist[i],
			rsi[i], bbMid[i], bbUp[i], bbLow[i], atr[i],
		}
		if !allValid(cols) {
			continue
		}
		row := types.FeatureRow{
			Bar: bars[i],
			Indicators: types.Indicators{
				SMA20:      sma20[i].V,
				SMA50:      sma50[i].V,
				EMA20:      ema20[i].V,
				EMA50:      ema50[i].V,
				MACD:       macd[i].V,
				MACDSignal: macdSig[i].V,
				MACDHist:   macdHist[i].V,
				RSI14:      rsi[i].V,
				BBMiddle:   bbMid[i].V,
				BBUpper:    bbUp[i].V,
				BBLower:    bbLow[i].V,
				ATR14:      atr[i].V,
			},
			OpenTarget:  up(opens[i+1], opens[i]),
			CloseTarget: up(closes[i+1], closes[i]),
		}
		if !finiteVector(row) {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func allValid(vs []ta.Value) bool {
	for _, v := range vs {
		if !v.Valid {
			return false
		}
	}
	return true
}

func finiteVector(r types.FeatureRow) bool {
	for _, v := range Vector(r) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func up(next, cur float64) int {
	if next > cur {
		return 1
	}
	return 0
}

// BuildFrame parses one instrument's raw partition, sorts it by timestamp and
// builds its feature rows. The close price comes from the close column, or
// from the adjusted close when close carries no values for this instrument.
func BuildFrame(symbol string, f dataset.Frame) ([]types.FeatureRow, error) {
	bars, err := ParseBars(symbol, f)
	if err != nil {
		return nil, err
	}
	return Build(bars), nil
}

// ParseBars converts a raw partition into a sorted Series of bars. A row with
// a blank or non-finite timestamp or price cell is undefined and dropped; a
// cell that is not a number at all is a data error for the instrument.
func ParseBars(symbol string, f dataset.Frame) ([]types.Bar, error) {
	f = f.Normalize()

	closeCol := ""
	switch {
	case f.HasValues(dataset.ColClose):
		closeCol = dataset.ColClose
	case f.HasValues(dataset.ColAdjClose):
		closeCol = dataset.ColAdjClose
	default:
		// a column left empty by concatenation is absent for this instrument
		return nil, fmt.Errorf("%s: %w: no close or adj close values", symbol, types.ErrMissingColumn)
	}
	if err := f.Require(dataset.ColTimestamp, dataset.ColOpen, dataset.ColHigh, dataset.ColLow, dataset.ColVolume); err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}

	ts := f.Index(dataset.ColTimestamp)
	fields := []int{
		f.Index(dataset.ColOpen),
		f.Index(dataset.ColHigh),
		f.Index(dataset.ColLow),
		f.Index(closeCol),
		f.Index(dataset.ColVolume),
	}

	bars := make([]types.Bar, 0, f.Len())
rows:
	for n, rec := range f.Records {
		if ts >= len(rec) {
			return nil, fmt.Errorf("%s: row %d: short record", symbol, n)
		}
		if dataset.IsMissing(rec[ts]) {
			continue
		}
		t, err := dataset.ParseTime(rec[ts])
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", symbol, n, err)
		}
		var vals [5]float64
		for j, idx := range fields {
			if idx >= len(rec) {
				return nil, fmt.Errorf("%s: row %d: short record", symbol, n)
			}
			if dataset.IsMissing(rec[idx]) {
				continue rows
			}
			v, err := dataset.ParseFloat(rec[idx])
			if err != nil {
				return nil, fmt.Errorf("%s: row %d: column %s: %w", symbol, n, f.Columns[idx], err)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue rows
			}
			vals[j] = v
		}
		bars = append(bars, types.Bar{
			Symbol: symbol,
			Time:   t,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	for i := 1; i < len(bars); i++ {
		if bars[i].Time.Equal(bars[i-1].Time) {
			return nil, fmt.Errorf("%s: %w: %s", symbol, types.ErrDuplicateTimestamp, bars[i].Time.Format("2006-01-02"))
		}
	}
	return bars, nil
}

// Latest returns the most recent row per instrument.
func Latest(rows []types.FeatureRow) map[string]types.FeatureRow {
	out := make(map[string]types.FeatureRow)
	for _, r := range rows {
		if cur, ok := out[r.Symbol]; !ok || r.Time.After(cur.Time) {
			out[r.Symbol] = r
		}
	}
	return out
}
