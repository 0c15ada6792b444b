package featurestore

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nifty-signals/internal/dataset"
	"nifty-signals/internal/pipeline"
	"nifty-signals/internal/types"
)

func openMem(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func day(i int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func TestSaveAndLoadRaw(t *testing.T) {
	s := openMem(t)
	ctx := context.Background()
	bars := []types.Bar{
		{Symbol: "TCS.NS", Time: day(1), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100},
		{Symbol: "INFY.NS", Time: day(0), Open: 3, High: 4, Low: 2.5, Close: 3.5, Volume: 200},
		{Symbol: "TCS.NS", Time: day(0), Open: 1, High: 2, Low: 0.5, Close: 1.25, Volume: 90},
	}
	require.NoError(t, s.SaveBars(ctx, bars))
	// upsert replaces the existing bar
	require.NoError(t, s.SaveBars(ctx, []types.Bar{{Symbol: "TCS.NS", Time: day(1), Open: 1, High: 2, Low: 0.5, Close: 1.75, Volume: 100}}))

	f, err := s.LoadRaw(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, f.Len())
	ti, ci := f.Index(dataset.ColTicker), f.Index(dataset.ColClose)
	assert.Equal(t, "INFY.NS", f.Records[0][ti])
	assert.Equal(t, "TCS.NS", f.Records[1][ti])
	assert.Equal(t, "1.25", f.Records[1][ci])
	assert.Equal(t, "1.75", f.Records[2][ci])
}

func featureRow(symbol string, i int, close float64) types.FeatureRow {
	r := types.FeatureRow{
		Bar:         types.Bar{Symbol: symbol, Time: day(i), Open: close, High: close + 1, Low: close - 1, Close: close, Volume: 10},
		OpenTarget:  i % 2,
		CloseTarget: 1 - i%2,
	}
	r.SMA20, r.RSI14, r.ATR14 = close, 55.5, 2
	return r
}

func TestReplaceAndLoadFeatures(t *testing.T) {
	s := openMem(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceFeatures(ctx, []types.FeatureRow{featureRow("OLD.NS", 0, 1)}))
	rows := []types.FeatureRow{
		featureRow("TCS.NS", 1, 101),
		featureRow("TCS.NS", 0, 100),
		featureRow("INFY.NS", 2, 50),
	}
	require.NoError(t, s.ReplaceFeatures(ctx, rows))

	all, err := s.LoadFeatures(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "INFY.NS", all[0].Symbol)

	tcs, err := s.LoadFeatures(ctx, "TCS.NS")
	require.NoError(t, err)
	require.Len(t, tcs, 2)
	assert.True(t, tcs[0].Time.Before(tcs[1].Time))
	assert.Equal(t, rows[1], tcs[0])

	old, err := s.LoadFeatures(ctx, "OLD.NS")
	require.NoError(t, err)
	assert.Empty(t, old)
}

func TestLatestFeatures(t *testing.T) {
	s := openMem(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceFeatures(ctx, []types.FeatureRow{
		featureRow("TCS.NS", 0, 100),
		featureRow("TCS.NS", 5, 105),
		featureRow("INFY.NS", 3, 50),
	}))

	latest, err := s.LatestFeatures(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, 105.0, latest["TCS.NS"].Close)
	assert.Equal(t, day(3), latest["INFY.NS"].Time)
}

func TestRuns(t *testing.T) {
	s := openMem(t)
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	id, err := s.RecordRun(ctx, Run{Kind: "features", StartedAt: start, FinishedAt: start.Add(time.Second), Instruments: 3, Rows: 90, Failures: 1})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	_, err = s.RecordRun(ctx, Run{Kind: "train", StartedAt: start.Add(time.Hour), FinishedAt: start.Add(time.Hour), Error: "boom"})
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "train", runs[0].Kind)
	assert.Equal(t, "boom", runs[0].Error)
	assert.Equal(t, id, runs[1].ID)
	assert.Equal(t, 90, runs[1].Rows)
	assert.Equal(t, start, runs[1].StartedAt)
}

func rawInstrument(symbol string, n int, closeHeader string) dataset.Frame {
	f := dataset.Frame{Columns: []string{"Date", "Ticker", "Open", "High", "Low", closeHeader, "Volume"}}
	for i := 0; i < n; i++ {
		c := 100 + float64(i%5)
		f.Records = append(f.Records, []string{
			day(i).Format("2006-01-02"),
			symbol,
			strconv.FormatFloat(c-0.5, 'f', -1, 64),
			strconv.FormatFloat(c+1, 'f', -1, 64),
			strconv.FormatFloat(c-1, 'f', -1, 64),
			strconv.FormatFloat(c, 'f', -1, 64),
			strconv.Itoa(1000 + i),
		})
	}
	return f
}

func TestReplaceFeaturesKeepsGoodInstruments(t *testing.T) {
	s := openMem(t)
	ctx := context.Background()

	nanVolume := rawInstrument("NANV.NS", 80, "Close")
	nanVolume.Records[70][6] = "NaN"
	blankClose := rawInstrument("GAP.NS", 80, "Close")
	blankClose.Records[40][5] = ""
	raw := dataset.Concat(
		rawInstrument("GOOD.NS", 80, "Close"),
		nanVolume,
		blankClose,
		rawInstrument("BAD.NS", 80, "Last"),
	)

	res, err := pipeline.New(pipeline.Config{Workers: 2}).Process(ctx, raw)
	require.NoError(t, err)
	require.Equal(t, []string{"BAD.NS"}, res.FailedSymbols(types.ErrMissingColumn))
	require.NoError(t, s.ReplaceFeatures(ctx, res.Rows))

	counts := map[string]int{}
	all, err := s.LoadFeatures(ctx, "")
	require.NoError(t, err)
	for _, r := range all {
		counts[r.Symbol]++
	}
	assert.Equal(t, 30, counts["GOOD.NS"])
	assert.Equal(t, 29, counts["NANV.NS"])
	assert.Equal(t, 29, counts["GAP.NS"])
	assert.Zero(t, counts["BAD.NS"])
}
