package kite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"github.com/zerodha/gokiteconnect/v4/models"
)

type mockKite struct {
	mock.Mock
}

func (m *mockKite) GetInstrumentsByExchange(exchange string) (kiteconnect.Instruments, error) {
	args := m.Called(exchange)
	return args.Get(0).(kiteconnect.Instruments), args.Error(1)
}

func (m *mockKite) GetHistoricalData(token int, interval string, from, to time.Time, continuous, oi bool) ([]kiteconnect.HistoricalData, error) {
	args := m.Called(token, interval, from, to)
	return args.Get(0).([]kiteconnect.HistoricalData), args.Error(1)
}

func candle(d time.Time, c float64) kiteconnect.HistoricalData {
	return kiteconnect.HistoricalData{Date: models.Time{Time: d}, Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 100}
}

func TestTradingSymbol(t *testing.T) {
	assert.Equal(t, "TCS", TradingSymbol("TCS.NS"))
	assert.Equal(t, "M&M", TradingSymbol("M&M.BO"))
	assert.Equal(t, "BAJAJ-AUTO", TradingSymbol("BAJAJ-AUTO"))
	assert.Equal(t, "X.Y", TradingSymbol("X.Y"))
}

func TestDailyBarsChunks(t *testing.T) {
	m := &mockKite{}
	m.On("GetInstrumentsByExchange", "NSE").Return(kiteconnect.Instruments{
		{Tradingsymbol: "TCS", InstrumentToken: 2953217},
	}, nil).Once()

	ist := time.FixedZone("IST", 19800)
	from := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 2500)
	firstEnd := from.AddDate(0, 0, maxDaysPerRequest-1)
	secondStart := firstEnd.AddDate(0, 0, 1)

	m.On("GetHistoricalData", 2953217, "day", from, firstEnd).
		Return([]kiteconnect.HistoricalData{candle(time.Date(2015, 1, 2, 0, 0, 0, 0, ist), 10)}, nil)
	m.On("GetHistoricalData", 2953217, "day", secondStart, to).
		Return([]kiteconnect.HistoricalData{candle(time.Date(2021, 6, 1, 0, 0, 0, 0, ist), 20)}, nil)

	src := newWithAPI(m, "", 0)
	bars, err := src.DailyBars(context.Background(), "TCS.NS", from, to)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, time.Date(2015, 1, 2, 0, 0, 0, 0, time.UTC), bars[0].Time)
	assert.Equal(t, "TCS.NS", bars[1].Symbol)
	assert.Equal(t, 100.0, bars[1].Volume)

	// instruments are cached
	_, err = src.DailyBars(context.Background(), "TCS.NS", from, firstEnd)
	require.NoError(t, err)
	m.AssertExpectations(t)
}

func TestDailyBarsUnknownSymbol(t *testing.T) {
	m := &mockKite{}
	m.On("GetInstrumentsByExchange", "NSE").Return(kiteconnect.Instruments{}, nil)
	_, err := newWithAPI(m, "NSE", 0).DailyBars(context.Background(), "NOPE.NS", time.Now().AddDate(0, 0, -5), time.Now())
	assert.Error(t, err)
}

func TestDailyBarsInstrumentError(t *testing.T) {
	m := &mockKite{}
	m.On("GetInstrumentsByExchange", "NSE").Return(kiteconnect.Instruments{}, errors.New("token expired"))
	_, err := newWithAPI(m, "NSE", 0).DailyBars(context.Background(), "TCS.NS", time.Now().AddDate(0, 0, -5), time.Now())
	assert.ErrorContains(t, err, "token expired")
}
