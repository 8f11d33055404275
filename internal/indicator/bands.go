package indicator

import "math"

// Bands holds Bollinger band series aligned with the input prices
type Bands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// Bollinger calculates SMA(period) ± width × population stddev(period).
// The first period-1 values of every band are undefined.
func Bollinger(closes []float64, period int, width float64) Bands {
	n := len(closes)
	middle := Align(SMA(closes, period), n)
	std := Align(PopStdDev(closes, period), n)

	upper := make([]float64, n)
	lower := make([]float64, n)
	for i := 0; i < n; i++ {
		if !Defined(middle[i]) || !Defined(std[i]) {
			upper[i], lower[i] = math.NaN(), math.NaN()
			continue
		}
		upper[i] = middle[i] + width*std[i]
		lower[i] = middle[i] - width*std[i]
	}

	return Bands{Upper: upper, Middle: middle, Lower: lower}
}
