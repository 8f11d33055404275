package indicator

// MACDSeries holds MACD line, signal and histogram aligned with the input
type MACDSeries struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// MACD calculates EMA(fast) - EMA(slow) and its EMA(signal). The line is
// defined from index slow-1, signal and histogram from slow+signal-2.
func MACD(closes []float64, fast, slow, signal int) MACDSeries {
	n := len(closes)
	out := MACDSeries{Line: undefined(n), Signal: undefined(n), Histogram: undefined(n)}

	fastEMA := Align(EMA(closes, fast), n)
	slowEMA := Align(EMA(closes, slow), n)
	for i := 0; i < n; i++ {
		if Defined(fastEMA[i]) && Defined(slowEMA[i]) {
			out.Line[i] = fastEMA[i] - slowEMA[i]
		}
	}

	start := firstDefined(out.Line)
	if start >= n {
		return out
	}
	sig := Align(EMA(out.Line[start:], signal), n-start)
	for i := start; i < n; i++ {
		out.Signal[i] = sig[i-start]
		if Defined(out.Signal[i]) {
			out.Histogram[i] = out.Line[i] - out.Signal[i]
		}
	}
	return out
}

// StochasticSeries holds slow %K and slow %D aligned with the input
type StochasticSeries struct {
	K []float64
	D []float64
}

// Stochastic calculates the slow stochastic oscillator: raw %K over fastK
// bars, smoothed by SMA(slowK) into slow %K and by SMA(slowD) into slow %D.
// A bar window with no range yields a raw %K of 0.
func Stochastic(high, low, close []float64, fastK, slowK, slowD int) StochasticSeries {
	n := len(close)
	out := StochasticSeries{K: undefined(n), D: undefined(n)}
	if fastK <= 0 || n < fastK {
		return out
	}

	raw := make([]float64, 0, n-fastK+1)
	for i := fastK - 1; i < n; i++ {
		hh, ll := high[i], low[i]
		for j := i - fastK + 1; j < i; j++ {
			if high[j] > hh {
				hh = high[j]
			}
			if low[j] < ll {
				ll = low[j]
			}
		}
		k := 0.0
		if hh > ll {
			k = (close[i] - ll) / (hh - ll) * 100
		}
		raw = append(raw, k)
	}

	smoothK := SMA(raw, slowK)
	smoothD := SMA(smoothK, slowD)
	out.K = Align(smoothK, n)
	out.D = Align(smoothD, n)
	return out
}
