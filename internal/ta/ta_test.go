package ta

import (
	"math"
	"testing"
)

func constant(n int, v float64) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = v
	}
	return xs
}

func ramp(n int) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i + 1)
	}
	return xs
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMAWarmup(t *testing.T) {
	for _, w := range []int{1, 5, 20, 50} {
		s := SMA(ramp(60), w)
		for i, v := range s {
			if v.Valid != (i >= w-1) {
				t.Fatalf("SMA(%d)[%d]: expected valid=%v, got %v", w, i, i >= w-1, v.Valid)
			}
		}
	}
}

func TestSMAValues(t *testing.T) {
	s := SMA([]float64{1, 2, 3, 4, 5}, 3)
	want := []float64{2, 3, 4}
	for i, w := range want {
		if !near(s[i+2].V, w) {
			t.Errorf("Expected SMA[%d]=%f, got %f", i+2, w, s[i+2].V)
		}
	}
}

func TestEMARecursion(t *testing.T) {
	xs := []float64{10, 11, 9, 14, 13, 12, 18, 17}
	for _, span := range []int{2, 3, 12, 26} {
		s := EMA(xs, span)
		alpha := 2.0 / float64(span+1)
		if !s[0].Valid || s[0].V != xs[0] {
			t.Fatalf("Expected EMA[0]=%f, got %+v", xs[0], s[0])
		}
		for i := 1; i < len(xs); i++ {
			want := alpha*xs[i] + (1-alpha)*s[i-1].V
			if !s[i].Valid || !near(s[i].V, want) {
				t.Errorf("span %d: EMA[%d] expected %f, got %f", span, i, want, s[i].V)
			}
		}
	}
}

func TestEMAConstantConverges(t *testing.T) {
	s := EMA(constant(100, 42), 50)
	for i, v := range s {
		if !near(v.V, 42) {
			t.Fatalf("Expected EMA[%d]=42, got %f", i, v.V)
		}
	}
}

func TestEMAEmpty(t *testing.T) {
	if len(EMA(nil, 20)) != 0 {
		t.Error("Expected empty EMA for empty input")
	}
}

func TestMACDDefinedEverywhere(t *testing.T) {
	line, sig, hist := MACD(ramp(40), 12, 26, 9)
	for i := range line {
		if !line[i].Valid || !sig[i].Valid || !hist[i].Valid {
			t.Fatalf("Expected MACD defined at %d", i)
		}
		if !near(hist[i].V, line[i].V-sig[i].V) {
			t.Errorf("Expected hist = line - signal at %d", i)
		}
	}
	if line[0].V != 0 {
		t.Errorf("Expected MACD[0]=0, got %f", line[0].V)
	}
}

func TestRSIWarmup(t *testing.T) {
	xs := []float64{1, 2, 1, 3, 2, 4, 3, 5, 4, 6, 5, 7, 6, 8, 7, 9, 8, 10}
	s := RSI(xs, 14)
	for i, v := range s {
		if v.Valid != (i >= 14) {
			t.Fatalf("RSI[%d]: expected valid=%v, got %v", i, i >= 14, v.Valid)
		}
	}
}

func TestRSIAllGainsIs100(t *testing.T) {
	s := RSI(ramp(30), 14)
	for i := 14; i < 30; i++ {
		if s[i].V != 100 {
			t.Errorf("Expected RSI[%d]=100, got %f", i, s[i].V)
		}
	}
}

func TestRSIZeroDeltasIs100(t *testing.T) {
	s := RSI(constant(20, 100), 14)
	if !s[19].Valid || s[19].V != 100 {
		t.Errorf("Expected RSI=100 for flat series, got %+v", s[19])
	}
}

func TestRSIKnownValue(t *testing.T) {
	// deltas alternate +2, -1 over a window of 4: mean gain 1, mean loss 0.5
	xs := []float64{10, 12, 11, 13, 12}
	s := RSI(xs, 4)
	want := 100 - 100/(1+2.0)
	if !near(s[4].V, want) {
		t.Errorf("Expected RSI %f, got %f", want, s[4].V)
	}
}

func TestRSIRollingWindowForgetsOldLosses(t *testing.T) {
	xs := []float64{10, 5, 6, 7, 8}
	s := RSI(xs, 3)
	if s[3].V == 100 {
		t.Errorf("Expected window containing a loss to be below 100, got %f", s[3].V)
	}
	if s[4].V != 100 {
		t.Errorf("Expected RSI 100 after the loss leaves the window, got %f", s[4].V)
	}
}

func TestBollinger(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	mid, up, low := Bollinger(xs, 5, 2)
	sd := math.Sqrt(2.5)
	if !near(mid[4].V, 3) || !near(up[4].V, 3+2*sd) || !near(low[4].V, 3-2*sd) {
		t.Errorf("Unexpected bands: %f %f %f", mid[4].V, up[4].V, low[4].V)
	}
	for i := 0; i < 4; i++ {
		if mid[i].Valid || up[i].Valid || low[i].Valid {
			t.Errorf("Expected bands undefined at %d", i)
		}
	}
}

func TestTrueRangeFirstBar(t *testing.T) {
	trs := TrueRange([]float64{12, 15}, []float64{10, 13}, []float64{18, 14})
	if trs[0] != 2 {
		t.Errorf("Expected TR[0]=2, got %f", trs[0])
	}
	if trs[1] != 5 {
		t.Errorf("Expected TR[1]=5, got %f", trs[1])
	}
}

func TestATRConstantIsZero(t *testing.T) {
	c := constant(30, 100)
	s := ATR(c, c, c, 14)
	for i, v := range s {
		if v.Valid != (i >= 13) {
			t.Fatalf("ATR[%d]: expected valid=%v", i, i >= 13)
		}
		if v.Valid && v.V != 0 {
			t.Errorf("Expected ATR 0, got %f", v.V)
		}
	}
}

func TestATRMismatchedInput(t *testing.T) {
	s := ATR([]float64{1}, []float64{1, 2}, []float64{1, 2}, 1)
	for _, v := range s {
		if v.Valid {
			t.Error("Expected undefined ATR for mismatched inputs")
		}
	}
}

func TestSomeRejectsNonFinite(t *testing.T) {
	if Some(math.NaN()).Valid || Some(math.Inf(1)).Valid {
		t.Error("Expected non-finite values to be undefined")
	}
	if !math.IsNaN(Series{}.Last()) {
		t.Error("Expected NaN for empty series")
	}
}

func TestSMARecoversAfterNaN(t *testing.T) {
	xs := ramp(30)
	xs[10] = math.NaN()
	s := SMA(xs, 5)
	for i := 10; i < 15; i++ {
		if s[i].Valid {
			t.Errorf("Expected SMA[%d] undefined while NaN is in the window", i)
		}
	}
	if !s[15].Valid || !near(s[15].V, 14) {
		t.Errorf("Expected SMA[15]=14 after the NaN left the window, got %+v", s[15])
	}
	if !s[9].Valid || !near(s[9].V, 8) {
		t.Errorf("Expected SMA[9]=8 before the NaN, got %+v", s[9])
	}
}

func TestEMASkipsNonFinite(t *testing.T) {
	xs := []float64{10, math.Inf(1), 12}
	s := EMA(xs, 3)
	if s[1].Valid {
		t.Errorf("Expected EMA[1] undefined, got %+v", s[1])
	}
	// alpha = 0.5: the running average continues from EMA[0]
	if !s[2].Valid || !near(s[2].V, 11) {
		t.Errorf("Expected EMA[2]=11, got %+v", s[2])
	}
}

func TestRSIRecoversAfterNaN(t *testing.T) {
	xs := ramp(40)
	xs[5] = math.NaN()
	s := RSI(xs, 14)
	// deltas 5 and 6 are non-finite, the last window holding delta 6 ends at 19
	for i := 14; i <= 19; i++ {
		if s[i].Valid {
			t.Errorf("Expected RSI[%d] undefined, got %+v", i, s[i])
		}
	}
	if !s[20].Valid || s[20].V != 100 {
		t.Errorf("Expected RSI[20]=100 on a rising series, got %+v", s[20])
	}
}

func TestATRRecoversAfterNaNHigh(t *testing.T) {
	n := 40
	highs, lows, closes := constant(n, 11), constant(n, 9), constant(n, 10)
	highs[10] = math.NaN()
	s := ATR(highs, lows, closes, 14)
	if s[20].Valid {
		t.Errorf("Expected ATR[20] undefined, got %+v", s[20])
	}
	if !s[24].Valid || !near(s[24].V, 2) {
		t.Errorf("Expected ATR[24]=2 after recovery, got %+v", s[24])
	}
}
