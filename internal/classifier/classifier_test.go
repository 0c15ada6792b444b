package classifier

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nifty-signals/internal/features"
	"nifty-signals/internal/types"
)

// constant always predicts the same direction.
type constant int

func (c constant) Predict([]float64) int { return int(c) }

// separable returns rows whose labels are fully determined by Close:
// closes in [80,90) are down days, closes in [110,120) are up days.
func separable(n int) []types.FeatureRow {
	rows := make([]types.FeatureRow, n)
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range rows {
		var c float64
		label := i % 2
		if label == 1 {
			c = 110 + float64(i%10)
		} else {
			c = 80 + float64(i%10)
		}
		rows[i] = types.FeatureRow{
			Bar:         types.Bar{Symbol: "SEP.NS", Time: start.AddDate(0, 0, i), Close: c},
			OpenTarget:  1 - label,
			CloseTarget: label,
		}
	}
	return rows
}

func vec(close float64) []float64 {
	return features.Vector(types.FeatureRow{Bar: types.Bar{Close: close}})
}

func TestTrainSeparable(t *testing.T) {
	rows := separable(100)
	m, err := Train("SEP.NS", rows, types.TargetClose, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 80, m.TrainRows)
	assert.Equal(t, 20, m.TestRows)
	assert.True(t, features.SameColumns(m.Columns))
	assert.GreaterOrEqual(t, m.TrainAcc, 0.95)
	assert.GreaterOrEqual(t, m.TestAcc, 0.95)
	assert.Equal(t, 1, m.Predict(vec(119)))
	assert.Equal(t, 0, m.Predict(vec(80)))
}

func TestTrainUsesTargetLabel(t *testing.T) {
	m, err := Train("SEP.NS", separable(100), types.TargetOpen, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, m.Predict(vec(119)))
	assert.Equal(t, 1, m.Predict(vec(80)))
}

func TestTrainDeterministic(t *testing.T) {
	a, err := Train("SEP.NS", separable(60), types.TargetClose, DefaultOptions())
	require.NoError(t, err)
	b, err := Train("SEP.NS", separable(60), types.TargetClose, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, a.Weights, b.Weights)
	assert.Equal(t, a.Bias, b.Bias)
}

func TestTrainNotEnoughRows(t *testing.T) {
	_, err := Train("SEP.NS", separable(49), types.TargetClose, DefaultOptions())
	assert.True(t, errors.Is(err, types.ErrNotEnoughData))
}

func TestTrainUnknownTarget(t *testing.T) {
	_, err := Train("SEP.NS", separable(60), types.Target("high"), DefaultOptions())
	assert.Error(t, err)
}

func TestPredictWrongWidth(t *testing.T) {
	m, err := Train("SEP.NS", separable(60), types.TargetClose, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, m.Predict([]float64{1, 2, 3}))
}

func TestModelJSONPreservesPredictions(t *testing.T) {
	m, err := Train("SEP.NS", separable(60), types.TargetClose, DefaultOptions())
	require.NoError(t, err)

	b, err := json.Marshal(m)
	require.NoError(t, err)
	var back Logistic
	require.NoError(t, json.Unmarshal(b, &back))

	for _, c := range []float64{80, 95, 100, 105, 119} {
		assert.Equal(t, m.Predict(vec(c)), back.Predict(vec(c)), "close %v", c)
	}
}

func TestAccuracy(t *testing.T) {
	rows := separable(10)
	assert.Equal(t, 0.5, Accuracy(constant(1), rows, types.TargetClose))
	assert.Equal(t, 0.0, Accuracy(constant(1), nil, types.TargetClose))
}

func TestStandardizeConstantColumn(t *testing.T) {
	rows := separable(60)
	m, err := Train("SEP.NS", rows, types.TargetClose, DefaultOptions())
	require.NoError(t, err)

	// Open is zero on every row, so its scale falls back to 1.
	assert.Equal(t, 0.0, m.Mean[0])
	assert.Equal(t, 1.0, m.Scale[0])
	assert.Greater(t, m.Scale[3], 1.0)
}
