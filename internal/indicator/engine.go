package indicator

import (
	"fmt"
	"math"

	"github.com/newthinker/reversion/internal/core"
)

// Row is one bar enriched with derived indicator values. Fields that are not
// yet available for the bar hold NaN; test them with Defined.
type Row struct {
	core.OHLCV

	Upper  float64
	Middle float64
	Lower  float64

	ADX float64
	ATR float64
	RSI float64

	MACD       float64
	MACDSignal float64
	MACDHist   float64

	StochK float64 // slow %K
	StochD float64 // slow %D
}

// Computation fills one family of indicator columns on rows in place.
type Computation interface {
	Name() string
	Apply(rows []Row)
}

// Params configures the default computation list
type Params struct {
	BandPeriod int     `mapstructure:"band_period" yaml:"band_period"`
	BandWidth  float64 `mapstructure:"band_width" yaml:"band_width"`
	ADXPeriod  int     `mapstructure:"adx_period" yaml:"adx_period"`
	ATRPeriod  int     `mapstructure:"atr_period" yaml:"atr_period"`
	RSIPeriod  int     `mapstructure:"rsi_period" yaml:"rsi_period"`
	MACDFast   int     `mapstructure:"macd_fast" yaml:"macd_fast"`
	MACDSlow   int     `mapstructure:"macd_slow" yaml:"macd_slow"`
	MACDSignal int     `mapstructure:"macd_signal" yaml:"macd_signal"`
	StochK     int     `mapstructure:"stoch_k" yaml:"stoch_k"`
	StochSlowK int     `mapstructure:"stoch_slow_k" yaml:"stoch_slow_k"`
	StochSlowD int     `mapstructure:"stoch_slow_d" yaml:"stoch_slow_d"`
}

// DefaultParams returns the standard periods: bands 20/2, ADX 14, ATR 14,
// RSI 14, MACD 12/26/9, stochastic 5/3/3.
func DefaultParams() Params {
	return Params{
		BandPeriod: 20,
		BandWidth:  2,
		ADXPeriod:  14,
		ATRPeriod:  14,
		RSIPeriod:  14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		StochK:     5,
		StochSlowK: 3,
		StochSlowD: 3,
	}
}

// Validate checks every period is positive and the band width is not negative.
func (p Params) Validate() error {
	periods := map[string]int{
		"band_period":  p.BandPeriod,
		"adx_period":   p.ADXPeriod,
		"atr_period":   p.ATRPeriod,
		"rsi_period":   p.RSIPeriod,
		"macd_fast":    p.MACDFast,
		"macd_slow":    p.MACDSlow,
		"macd_signal":  p.MACDSignal,
		"stoch_k":      p.StochK,
		"stoch_slow_k": p.StochSlowK,
		"stoch_slow_d": p.StochSlowD,
	}
	for name, v := range periods {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	if p.BandWidth < 0 || math.IsNaN(p.BandWidth) {
		return fmt.Errorf("band_width must not be negative, got %v", p.BandWidth)
	}
	if p.MACDFast >= p.MACDSlow {
		return fmt.Errorf("macd_fast (%d) must be shorter than macd_slow (%d)", p.MACDFast, p.MACDSlow)
	}
	return nil
}

// Engine derives indicator rows from bars by running an ordered list of
// computations. It holds no state between calls.
type Engine struct {
	computations []Computation
}

// NewEngine creates an engine running computations in order
func NewEngine(computations ...Computation) *Engine {
	return &Engine{computations: computations}
}

// NewDefaultEngine creates an engine with every built-in computation
func NewDefaultEngine(p Params) *Engine {
	return NewEngine(
		BollingerBands{Period: p.BandPeriod, Width: p.BandWidth},
		TrendStrength{Period: p.ADXPeriod},
		AverageTrueRange{Period: p.ATRPeriod},
		RelativeStrength{Period: p.RSIPeriod},
		MovingAverageConvergence{Fast: p.MACDFast, Slow: p.MACDSlow, Signal: p.MACDSignal},
		SlowStochastic{FastK: p.StochK, SlowK: p.StochSlowK, SlowD: p.StochSlowD},
	)
}

// Computations returns the names of the configured computations in order
func (e *Engine) Computations() []string {
	names := make([]string, len(e.computations))
	for i, c := range e.computations {
		names[i] = c.Name()
	}
	return names
}

// Compute returns one row per bar, positionally aligned with bars.
func (e *Engine) Compute(bars []core.OHLCV) []Row {
	rows := make([]Row, len(bars))
	nan := math.NaN()
	for i, b := range bars {
		rows[i] = Row{
			OHLCV: b,
			Upper: nan, Middle: nan, Lower: nan,
			ADX: nan, ATR: nan, RSI: nan,
			MACD: nan, MACDSignal: nan, MACDHist: nan,
			StochK: nan, StochD: nan,
		}
	}
	for _, c := range e.computations {
		c.Apply(rows)
	}
	return rows
}

// Closes extracts close prices from bars
func Closes(bars []core.OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func columns(rows []Row) (high, low, close []float64) {
	high = make([]float64, len(rows))
	low = make([]float64, len(rows))
	close = make([]float64, len(rows))
	for i, r := range rows {
		high[i], low[i], close[i] = r.High, r.Low, r.Close
	}
	return high, low, close
}

// BollingerBands fills Upper, Middle and Lower
type BollingerBands struct {
	Period int
	Width  float64
}

func (BollingerBands) Name() string { return "bollinger" }

func (c BollingerBands) Apply(rows []Row) {
	_, _, closes := columns(rows)
	b := Bollinger(closes, c.Period, c.Width)
	for i := range rows {
		rows[i].Upper, rows[i].Middle, rows[i].Lower = b.Upper[i], b.Middle[i], b.Lower[i]
	}
}

// TrendStrength fills ADX
type TrendStrength struct {
	Period int
}

func (TrendStrength) Name() string { return "adx" }

func (c TrendStrength) Apply(rows []Row) {
	high, low, closes := columns(rows)
	adx := ADX(high, low, closes, c.Period)
	for i := range rows {
		rows[i].ADX = adx[i]
	}
}

// AverageTrueRange fills ATR
type AverageTrueRange struct {
	Period int
}

func (AverageTrueRange) Name() string { return "atr" }

func (c AverageTrueRange) Apply(rows []Row) {
	high, low, closes := columns(rows)
	atr := ATR(high, low, closes, c.Period)
	for i := range rows {
		rows[i].ATR = atr[i]
	}
}

// RelativeStrength fills RSI
type RelativeStrength struct {
	Period int
}

func (RelativeStrength) Name() string { return "rsi" }

func (c RelativeStrength) Apply(rows []Row) {
	_, _, closes := columns(rows)
	rsi := RSI(closes, c.Period)
	for i := range rows {
		rows[i].RSI = rsi[i]
	}
}

// MovingAverageConvergence fills MACD, MACDSignal and MACDHist
type MovingAverageConvergence struct {
	Fast   int
	Slow   int
	Signal int
}

func (MovingAverageConvergence) Name() string { return "macd" }

func (c MovingAverageConvergence) Apply(rows []Row) {
	_, _, closes := columns(rows)
	m := MACD(closes, c.Fast, c.Slow, c.Signal)
	for i := range rows {
		rows[i].MACD, rows[i].MACDSignal, rows[i].MACDHist = m.Line[i], m.Signal[i], m.Histogram[i]
	}
}

// SlowStochastic fills StochK and StochD
type SlowStochastic struct {
	FastK int
	SlowK int
	SlowD int
}

func (SlowStochastic) Name() string { return "stochastic" }

func (c SlowStochastic) Apply(rows []Row) {
	high, low, closes := columns(rows)
	s := Stochastic(high, low, closes, c.FastK, c.SlowK, c.SlowD)
	for i := range rows {
		rows[i].StochK, rows[i].StochD = s.K[i], s.D[i]
	}
}
