package types

import (
	"errors"
	"time"
)

var (
	ErrMissingColumn      = errors.New("missing column")
	ErrDuplicateTimestamp = errors.New("duplicate timestamp")
	ErrNotEnoughData      = errors.New("not enough data")
)

// Bar is one instrument's OHLCV record for one trading day.
type Bar struct {
	Symbol string    `json:"symbol"`
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Indicators holds the engineered indicator fields of one row.
type Indicators struct {
	SMA20      float64 `json:"sma_20"`
	SMA50      float64 `json:"sma_50"`
	EMA20      float64 `json:"ema_20"`
	EMA50      float64 `json:"ema_50"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	MACDHist   float64 `json:"macd_hist"`
	RSI14      float64 `json:"rsi_14"`
	BBMiddle   float64 `json:"bb_middle"`
	BBUpper    float64 `json:"bb_upper"`
	BBLower    float64 `json:"bb_lower"`
	ATR14      float64 `json:"atr_14"`
}

// FeatureRow is a bar with every indicator and both next-day labels defined.
type FeatureRow struct {
	Bar
	Indicators
	OpenTarget  int `json:"open_target"`
	CloseTarget int `json:"close_target"`
}

type Signal string

const (
	SignalBuy     Signal = "BUY"
	SignalSell    Signal = "SELL"
	SignalHold    Signal = "HOLD"
	SignalNoModel Signal = "NO_MODEL"
)

// Target names the label a classifier was trained on.
type Target string

const (
	TargetOpen  Target = "open"
	TargetClose Target = "close"
)

// Classifier predicts a next-day direction (0 or 1) from a feature vector.
// Implementations must be safe for concurrent use.
type Classifier interface {
	Predict(features []float64) int
}

// ClassifierPair holds the open- and close-direction models of one instrument.
// A nil member means no model is available.
type ClassifierPair struct {
	Open  Classifier
	Close Classifier
}

func (p ClassifierPair) Complete() bool {
	return p.Open != nil && p.Close != nil
}

// Failure reports an instrument excluded from a processing pass.
type Failure struct {
	Symbol string `json:"symbol"`
	Err    error  `json:"-"`
	Reason string `json:"reason"`
}
