package ta

import "math"

// Value is one position of an indicator series. Valid is false while the
// indicator is still warming up or when its result is mathematically undefined.
type Value struct {
	V     float64
	Valid bool
}

type Series []Value

func Some(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{}
	}
	return Value{V: v, Valid: true}
}

// Last returns the most recent value of s, or NaN when it is undefined.
func (s Series) Last() float64 {
	if len(s) == 0 || !s[len(s)-1].Valid {
		return math.NaN()
	}
	return s[len(s)-1].V
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// SMA is undefined while the trailing window holds a non-finite input and
// recovers once that input has left the window.
func SMA(xs []float64, n int) Series {
	out := make(Series, len(xs))
	if n <= 0 {
		return out
	}
	sum, bad := 0.0, 0
	for i, x := range xs {
		if finite(x) {
			sum += x
		} else {
			bad++
		}
		if i >= n {
			if old := xs[i-n]; finite(old) {
				sum -= old
			} else {
				bad--
			}
		}
		if i >= n-1 && bad == 0 {
			out[i] = Some(sum / float64(n))
		}
	}
	return out
}

// EMA uses the span convention alpha = 2/(n+1) seeded with the first value,
// so every position of a finite series is defined. A non-finite input is
// undefined at its own position and leaves the running average untouched.
func EMA(xs []float64, n int) Series {
	out := make(Series, len(xs))
	if n <= 0 || len(xs) == 0 {
		return out
	}
	alpha := 2.0 / float64(n+1)
	prev, seeded := 0.0, false
	for i, x := range xs {
		if !finite(x) {
			continue
		}
		if seeded {
			prev = alpha*x + (1-alpha)*prev
		} else {
			prev, seeded = x, true
		}
		out[i] = Some(prev)
	}
	return out
}

func emaOf(s Series, n int) Series {
	xs := make([]float64, len(s))
	for i, v := range s {
		xs[i] = math.NaN()
		if v.Valid {
			xs[i] = v.V
		}
	}
	return EMA(xs, n)
}

func MACD(closes []float64, fast, slow, signal int) (line, sig, hist Series) {
	ef := EMA(closes, fast)
	es := EMA(closes, slow)
	line = make(Series, len(closes))
	for i := range closes {
		if ef[i].Valid && es[i].Valid {
			line[i] = Some(ef[i].V - es[i].V)
		}
	}
	sig = emaOf(line, signal)
	hist = make(Series, len(closes))
	for i := range closes {
		if line[i].Valid && sig[i].Valid {
			hist[i] = Some(line[i].V - sig[i].V)
		}
	}
	return line, sig, hist
}

// RSI averages day-over-day gains and losses over a trailing window of period
// deltas. The first delta exists at position 1, so positions below period are
// undefined. A zero mean loss yields 100. A window holding a non-finite
// delta is undefined.
func RSI(closes []float64, period int) Series {
	out := make(Series, len(closes))
	if period <= 0 {
		return out
	}
	gain, loss, bad := 0.0, 0.0, 0
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		switch {
		case !finite(d):
			bad++
		case d > 0:
			gain += d
		default:
			loss -= d
		}
		if i > period {
			old := closes[i-period] - closes[i-period-1]
			switch {
			case !finite(old):
				bad--
			case old > 0:
				gain -= old
			default:
				loss += old
			}
		}
		if i < period || bad > 0 {
			continue
		}
		// running sums drift slightly below zero after many subtractions
		if loss <= 1e-12 {
			out[i] = Some(100)
			continue
		}
		rs := (gain / float64(period)) / (loss / float64(period))
		out[i] = Some(100.0 - (100.0 / (1.0 + rs)))
	}
	return out
}

// StdDev is the trailing sample standard deviation (n-1 denominator).
func StdDev(vals []float64, n int) Series {
	out := make(Series, len(vals))
	if n < 2 {
		return out
	}
	m := SMA(vals, n)
	for i := n - 1; i < len(vals); i++ {
		if !m[i].Valid {
			continue
		}
		s := 0.0
		for j := i - n + 1; j <= i; j++ {
			d := vals[j] - m[i].V
			s += d * d
		}
		out[i] = Some(math.Sqrt(s / float64(n-1)))
	}
	return out
}

func Bollinger(closes []float64, n int, k float64) (mid, up, low Series) {
	mid = SMA(closes, n)
	sd := StdDev(closes, n)
	up = make(Series, len(closes))
	low = make(Series, len(closes))
	for i := range closes {
		if mid[i].Valid && sd[i].Valid {
			up[i] = Some(mid[i].V + k*sd[i].V)
			low[i] = Some(mid[i].V - k*sd[i].V)
		}
	}
	return mid, up, low
}

// TrueRange has no previous close at position 0, where it is high-low.
func TrueRange(highs, lows, closes []float64) []float64 {
	if len(highs) != len(lows) || len(lows) != len(closes) {
		return nil
	}
	trs := make([]float64, len(closes))
	for i := range closes {
		tr := highs[i] - lows[i]
		if i > 0 {
			tr2 := math.Abs(highs[i] - closes[i-1])
			tr3 := math.Abs(lows[i] - closes[i-1])
			tr = math.Max(tr, math.Max(tr2, tr3))
		}
		trs[i] = tr
	}
	return trs
}

func ATR(highs, lows, closes []float64, period int) Series {
	trs := TrueRange(highs, lows, closes)
	if trs == nil {
		return make(Series, len(closes))
	}
	return SMA(trs, period)
}
