package indicator

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// SMA calculates Simple Moving Average
// Returns slice of length: len(prices) - period + 1
func SMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)

	// Calculate first SMA
	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	result = append(result, sum/float64(period))

	// Rolling calculation
	for i := period; i < len(prices); i++ {
		sum = sum - prices[i-period] + prices[i]
		result = append(result, sum/float64(period))
	}

	return result
}

// EMA calculates Exponential Moving Average
func EMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)
	multiplier := 2.0 / float64(period+1)

	// Start with SMA as first EMA value
	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	ema := sum / float64(period)
	result = append(result, ema)

	// Calculate EMA for remaining prices
	for i := period; i < len(prices); i++ {
		ema = (prices[i]-ema)*multiplier + ema
		result = append(result, ema)
	}

	return result
}

// PopStdDev calculates the rolling population standard deviation
// Returns slice of length: len(prices) - period + 1
func PopStdDev(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)
	for i := period; i <= len(prices); i++ {
		_, std := stat.PopMeanStdDev(prices[i-period:i], nil)
		result = append(result, std)
	}
	return result
}

// Defined reports whether v holds an available value. Leading values of
// every aligned series are NaN until enough history accumulates.
func Defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Align left-pads a shortened series with NaN so that it lines up with the
// n input bars it was computed from.
func Align(values []float64, n int) []float64 {
	out := make([]float64, n)
	offset := n - len(values)
	for i := range out {
		if i < offset {
			out[i] = math.NaN()
			continue
		}
		out[i] = values[i-offset]
	}
	return out
}

// firstDefined returns the index of the first defined value, or len(values).
func firstDefined(values []float64) int {
	for i, v := range values {
		if Defined(v) {
			return i
		}
	}
	return len(values)
}

func undefined(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
