package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-01-01 and 2024-01-02 09:15 IST, plus a half-null day.
const chart = `{"chart":{"result":[{
  "meta":{"symbol":"TCS.NS","gmtoffset":19800},
  "timestamp":[1704080700,1704167100,1704253500],
  "indicators":{
    "quote":[{"open":[100,101,null],"high":[105,106,107],"low":[99,100,101],"close":[104,null,103],"volume":[1000,2000,3000]}],
    "adjclose":[{"adjclose":[103.5,102.5,102.9]}]
  }}],"error":null}}`

func TestParseChart(t *testing.T) {
	bars, err := ParseChart("TCS.NS", []byte(chart))
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), bars[0].Time)
	assert.Equal(t, 104.0, bars[0].Close)
	assert.Equal(t, 1000.0, bars[0].Volume)

	// null close falls back to adjclose
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bars[1].Time)
	assert.Equal(t, 102.5, bars[1].Close)
	assert.Equal(t, "TCS.NS", bars[1].Symbol)
}

func TestParseChartErrors(t *testing.T) {
	_, err := ParseChart("X", []byte("<html>"))
	assert.Error(t, err)

	_, err = ParseChart("X", []byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delisted")

	_, err = ParseChart("X", []byte(`{"chart":{"result":[]}}`))
	assert.Error(t, err)
}

func TestDailyBarsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/TCS.NS", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.Equal(t, "1704067200", r.URL.Query().Get("period1"))
		_, _ = w.Write([]byte(chart))
	}))
	defer srv.Close()

	src := New(Params{BaseURL: srv.URL, Timeout: time.Second})
	assert.Equal(t, "yahoo", src.Name())

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars, err := src.DailyBars(context.Background(), "TCS.NS", from, from.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Len(t, bars, 2)
}
