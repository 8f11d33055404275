package features

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/newthinker/reversion/internal/core"
	"github.com/newthinker/reversion/internal/indicator"
)

// MinHistory is the number of prior bars required before a vector exists
const MinHistory = 20

// Len is the number of fields in a vector
const Len = 8

// Names lists vector fields in Slice order
var Names = [Len]string{
	"band_position",
	"trend_strength",
	"band_width",
	"momentum",
	"momentum_ratio",
	"oscillator_ratio",
	"day_of_week",
	"hour",
}

// Vector summarizes market state at a signal bar. A Vector is either fully
// populated or absent; NewVector rejects non-finite fields.
type Vector struct {
	BandPosition    float64 `json:"band_position"`    // 0 at lower band, 1 at upper band
	TrendStrength   float64 `json:"trend_strength"`   // ADX
	BandWidth       float64 `json:"band_width"`       // (upper-lower)/middle
	Momentum        float64 `json:"momentum"`         // RSI
	MomentumRatio   float64 `json:"momentum_ratio"`   // MACD/signal
	OscillatorRatio float64 `json:"oscillator_ratio"` // slow %K / slow %D
	DayOfWeek       int     `json:"day_of_week"`      // Monday = 0
	Hour            int     `json:"hour"`
}

// NewVector validates and builds a vector
func NewVector(bandPosition, trendStrength, bandWidth, momentum, momentumRatio, oscillatorRatio float64, dayOfWeek, hour int) (Vector, error) {
	v := Vector{
		BandPosition:    bandPosition,
		TrendStrength:   trendStrength,
		BandWidth:       bandWidth,
		Momentum:        momentum,
		MomentumRatio:   momentumRatio,
		OscillatorRatio: oscillatorRatio,
		DayOfWeek:       dayOfWeek,
		Hour:            hour,
	}
	if err := v.Validate(); err != nil {
		return Vector{}, err
	}
	return v, nil
}

// Validate rejects partially populated vectors
func (v Vector) Validate() error {
	for i, f := range v.Slice()[:6] {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return core.Errorf(core.ErrInvalidArgument, "feature %s is not finite", Names[i])
		}
	}
	if v.DayOfWeek < 0 || v.DayOfWeek > 6 {
		return core.Errorf(core.ErrInvalidArgument, "day_of_week %d out of range", v.DayOfWeek)
	}
	if v.Hour < 0 || v.Hour > 23 {
		return core.Errorf(core.ErrInvalidArgument, "hour %d out of range", v.Hour)
	}
	return nil
}

// Slice returns the fields in Names order
func (v Vector) Slice() []float64 {
	return []float64{
		v.BandPosition,
		v.TrendStrength,
		v.BandWidth,
		v.Momentum,
		v.MomentumRatio,
		v.OscillatorRatio,
		float64(v.DayOfWeek),
		float64(v.Hour),
	}
}

// FromSlice rebuilds a vector from Slice output
func FromSlice(values []float64) (Vector, error) {
	if len(values) != Len {
		return Vector{}, core.Errorf(core.ErrInvalidArgument, "expected %d features, got %d", Len, len(values))
	}
	return NewVector(values[0], values[1], values[2], values[3], values[4], values[5],
		int(values[6]), int(values[7]))
}

// String renders the vector as name=value pairs for decision logs
func (v Vector) String() string {
	var b strings.Builder
	for i, f := range v.Slice() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%.4f", Names[i], f)
	}
	return b.String()
}

// Extract builds the vector for bar at. It reports false when fewer than
// MinHistory bars precede at or when bands or ADX are undefined there.
// Undefined momentum and oscillator values contribute 0.
func Extract(rows []indicator.Row, at int) (Vector, bool) {
	if at < MinHistory || at >= len(rows) {
		return Vector{}, false
	}
	r := rows[at]
	if !indicator.Defined(r.Upper) || !indicator.Defined(r.Middle) ||
		!indicator.Defined(r.Lower) || !indicator.Defined(r.ADX) {
		return Vector{}, false
	}

	width := r.Upper - r.Lower
	position := 0.5
	if width != 0 {
		position = (r.Close - r.Lower) / width
	}

	volatility := 0.0
	if r.Middle != 0 {
		volatility = width / r.Middle
	}

	momentum := orZero(r.RSI)

	momentumRatio := 0.0
	if macd, sig := orZero(r.MACD), orZero(r.MACDSignal); sig != 0 {
		momentumRatio = macd / sig
	}

	oscillatorRatio := 0.0
	if k, d := orZero(r.StochK), orZero(r.StochD); d != 0 {
		oscillatorRatio = k / d
	}

	v, err := NewVector(position, r.ADX, volatility, momentum, momentumRatio, oscillatorRatio,
		Weekday(r.Time), r.Time.Hour())
	if err != nil {
		return Vector{}, false
	}
	return v, true
}

// Weekday returns the day of week with Monday as 0 and Sunday as 6
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func orZero(v float64) float64 {
	if indicator.Defined(v) {
		return v
	}
	return 0
}
