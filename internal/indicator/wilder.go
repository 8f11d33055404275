package indicator

import "math"

// TrueRange returns the true range of a bar given the previous close
func TrueRange(high, low, prevClose float64) float64 {
	return math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
}

// ATR calculates Wilder's Average True Range aligned with the input bars.
// The first value is at index period.
func ATR(high, low, close []float64, period int) []float64 {
	n := len(close)
	out := undefined(n)
	if period <= 0 || n <= period {
		return out
	}

	var sum float64
	for i := 1; i <= period; i++ {
		sum += TrueRange(high[i], low[i], close[i-1])
	}
	atr := sum / float64(period)
	out[period] = atr

	for i := period + 1; i < n; i++ {
		atr = (atr*float64(period-1) + TrueRange(high[i], low[i], close[i-1])) / float64(period)
		out[i] = atr
	}
	return out
}

// ADX calculates Wilder's Average Directional Index aligned with the input
// bars. Values lie in [0, 100]; the first one is at index 2*period-1.
func ADX(high, low, close []float64, period int) []float64 {
	n := len(close)
	out := undefined(n)
	if period <= 0 || n < 2*period {
		return out
	}

	dmPlus := make([]float64, n)
	dmMinus := make([]float64, n)
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		up := high[i] - high[i-1]
		down := low[i-1] - low[i]
		if up > down && up > 0 {
			dmPlus[i] = up
		}
		if down > up && down > 0 {
			dmMinus[i] = down
		}
		tr[i] = TrueRange(high[i], low[i], close[i-1])
	}

	var sTR, sPlus, sMinus float64
	for i := 1; i <= period; i++ {
		sTR += tr[i]
		sPlus += dmPlus[i]
		sMinus += dmMinus[i]
	}

	dx := make([]float64, n)
	dx[period] = directionalIndex(sPlus, sMinus, sTR)
	p := float64(period)
	for i := period + 1; i < n; i++ {
		sTR = sTR - sTR/p + tr[i]
		sPlus = sPlus - sPlus/p + dmPlus[i]
		sMinus = sMinus - sMinus/p + dmMinus[i]
		dx[i] = directionalIndex(sPlus, sMinus, sTR)
	}

	first := 2*period - 1
	var sum float64
	for i := period; i <= first; i++ {
		sum += dx[i]
	}
	adx := sum / p
	out[first] = adx
	for i := first + 1; i < n; i++ {
		adx = (adx*(p-1) + dx[i]) / p
		out[i] = adx
	}
	return out
}

func directionalIndex(plusDM, minusDM, trueRange float64) float64 {
	if trueRange <= 0 {
		return 0
	}
	diPlus := 100 * plusDM / trueRange
	diMinus := 100 * minusDM / trueRange
	denom := diPlus + diMinus
	if denom <= 0 {
		return 0
	}
	return 100 * math.Abs(diPlus-diMinus) / denom
}

// RSI calculates Wilder's Relative Strength Index aligned with the input
// prices. The first value is at index period.
func RSI(closes []float64, period int) []float64 {
	n := len(closes)
	out := undefined(n)
	if period <= 0 || n <= period {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < n; i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
