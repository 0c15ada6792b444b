package classifier

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"nifty-signals/internal/features"
	"nifty-signals/internal/types"
)

// Options controls training.
type Options struct {
	MinRows       int
	TrainFraction float64
	Epochs        int
	LearningRate  float64
	L2            float64
}

func DefaultOptions() Options {
	return Options{
		MinRows:       50,
		TrainFraction: 0.8,
		Epochs:        300,
		LearningRate:  0.1,
	}
}

// Logistic is a standardized logistic-regression model over features.Columns.
// It is immutable after training and safe for concurrent Predict calls.
type Logistic struct {
	Symbol    string       `json:"symbol"`
	Target    types.Target `json:"target"`
	Columns   []string     `json:"columns"`
	Mean      []float64    `json:"mean"`
	Scale     []float64    `json:"scale"`
	Weights   []float64    `json:"weights"`
	Bias      float64      `json:"bias"`
	TrainRows int          `json:"train_rows"`
	TestRows  int          `json:"test_rows"`
	TrainAcc  float64      `json:"train_accuracy"`
	TestAcc   float64      `json:"test_accuracy"`
	TrainedAt time.Time    `json:"trained_at"`
}

// Probability returns P(direction = 1 | x). A vector of the wrong width
// yields 0.
func (m *Logistic) Probability(x []float64) float64 {
	if len(x) != len(m.Weights) {
		return 0
	}
	z := make([]float64, len(x))
	for j, v := range x {
		z[j] = (v - m.Mean[j]) / m.Scale[j]
	}
	return sigmoid(m.Bias + floats.Dot(m.Weights, z))
}

func (m *Logistic) Predict(x []float64) int {
	if m.Probability(x) >= 0.5 {
		return 1
	}
	return 0
}

// Label returns the target label of r.
func Label(r types.FeatureRow, target types.Target) int {
	if target == types.TargetOpen {
		return r.OpenTarget
	}
	return r.CloseTarget
}

// Accuracy is the share of rows on which c predicts the target label.
func Accuracy(c types.Classifier, rows []types.FeatureRow, target types.Target) float64 {
	if len(rows) == 0 {
		return 0
	}
	hits := 0
	for _, r := range rows {
		if c.Predict(features.Vector(r)) == Label(r, target) {
			hits++
		}
	}
	return float64(hits) / float64(len(rows))
}

// Train fits a model for target on rows, which must be in chronological
// order. The leading TrainFraction of rows is used for fitting and the rest
// for the holdout accuracy; no shuffling takes place.
func Train(symbol string, rows []types.FeatureRow, target types.Target, opt Options) (*Logistic, error) {
	if target != types.TargetOpen && target != types.TargetClose {
		return nil, fmt.Errorf("unknown target %q", target)
	}
	if len(rows) < opt.MinRows || len(rows) < 2 {
		return nil, fmt.Errorf("%s: %d rows, need %d: %w", symbol, len(rows), opt.MinRows, types.ErrNotEnoughData)
	}

	cut := int(float64(len(rows)) * opt.TrainFraction)
	if cut < 1 {
		cut = 1
	}
	if cut >= len(rows) {
		cut = len(rows) - 1
	}
	train, test := rows[:cut], rows[cut:]

	width := len(features.Columns)
	x := mat.NewDense(len(train), width, nil)
	y := mat.NewVecDense(len(train), nil)
	for i, r := range train {
		x.SetRow(i, features.Vector(r))
		y.SetVec(i, float64(Label(r, target)))
	}

	m := &Logistic{
		Symbol:    symbol,
		Target:    target,
		Columns:   append([]string(nil), features.Columns...),
		TrainRows: len(train),
		TestRows:  len(test),
		TrainedAt: time.Now().UTC(),
	}
	m.Mean, m.Scale = standardize(x)
	m.Weights, m.Bias = descend(x, y, opt)

	m.TrainAcc = Accuracy(m, train, target)
	m.TestAcc = Accuracy(m, test, target)
	return m, nil
}

// standardize scales every column of x in place to zero mean and unit
// population standard deviation. Constant columns keep a scale of 1.
func standardize(x *mat.Dense) (mean, scale []float64) {
	rows, width := x.Dims()
	mean = make([]float64, width)
	scale = make([]float64, width)
	col := make([]float64, rows)
	for j := 0; j < width; j++ {
		mat.Col(col, j, x)
		mean[j], scale[j] = stat.PopMeanStdDev(col, nil)
		if scale[j] < 1e-12 || math.IsNaN(scale[j]) {
			scale[j] = 1
		}
		for i := range col {
			col[i] = (col[i] - mean[j]) / scale[j]
		}
		x.SetCol(j, col)
	}
	return mean, scale
}

// descend runs batch gradient descent on the L2-regularised log loss,
// starting from zero weights.
func descend(x *mat.Dense, y *mat.VecDense, opt Options) ([]float64, float64) {
	rows, width := x.Dims()
	n := float64(rows)
	w := mat.NewVecDense(width, nil)
	bias := 0.0
	diff := mat.NewVecDense(rows, nil)
	grad := mat.NewVecDense(width, nil)
	for epoch := 0; epoch < opt.Epochs; epoch++ {
		diff.MulVec(x, w)
		for i := 0; i < rows; i++ {
			diff.SetVec(i, sigmoid(diff.AtVec(i)+bias)-y.AtVec(i))
		}
		grad.MulVec(x.T(), diff)
		grad.ScaleVec(1/n, grad)
		grad.AddScaledVec(grad, opt.L2, w)
		w.AddScaledVec(w, -opt.LearningRate, grad)
		bias -= opt.LearningRate * floats.Sum(diff.RawVector().Data) / n
	}
	return append([]float64(nil), w.RawVector().Data...), bias
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
