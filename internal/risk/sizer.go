package risk

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/newthinker/reversion/internal/core"
	"github.com/newthinker/reversion/internal/indicator"
)

// Plan holds stop, target and size for one signal
type Plan struct {
	Side         core.Side `json:"side"`
	Entry        float64   `json:"entry"`
	StopLoss     float64   `json:"stop_loss"`
	TakeProfit   float64   `json:"take_profit"`
	StopDistance float64   `json:"stop_distance"` // price units
	Size         float64   `json:"size"`          // lots
}

// Validate checks the stop is strictly worse than entry and the target
// strictly better, relative to side.
func (p Plan) Validate() error {
	switch p.Side {
	case core.SideBuy:
		if !(p.StopLoss < p.Entry && p.Entry < p.TakeProfit) {
			return core.Errorf(core.ErrInvalidPlan, "buy requires stop %.5f < entry %.5f < target %.5f",
				p.StopLoss, p.Entry, p.TakeProfit)
		}
	case core.SideSell:
		if !(p.TakeProfit < p.Entry && p.Entry < p.StopLoss) {
			return core.Errorf(core.ErrInvalidPlan, "sell requires target %.5f < entry %.5f < stop %.5f",
				p.TakeProfit, p.Entry, p.StopLoss)
		}
	default:
		return core.Errorf(core.ErrInvalidArgument, "side %q", p.Side)
	}
	return nil
}

// Levels renders stop and target for decision logs
func (p Plan) Levels() string {
	return fmt.Sprintf("SL: %.5f, TP: %.5f", p.StopLoss, p.TakeProfit)
}

// Sizer derives risk plans from indicator rows
type Sizer struct {
	cfg Config
}

// NewSizer creates a sizer. Zero fields in cfg fall back to DefaultConfig.
func NewSizer(cfg Config) *Sizer {
	def := DefaultConfig()
	if cfg.RiskFraction <= 0 {
		cfg.RiskFraction = def.RiskFraction
	}
	if cfg.TakeProfit == "" {
		cfg.TakeProfit = def.TakeProfit
	}
	if cfg.ATRMultiplier <= 0 {
		cfg.ATRMultiplier = def.ATRMultiplier
	}
	return &Sizer{cfg: cfg}
}

// Config returns the effective configuration
func (s *Sizer) Config() Config {
	return s.cfg
}

// Plan computes the plan for a signal detected on signalIdx and entered at
// the close of currentIdx. The stop sits beyond the signal bar's extreme by
// the instrument's stop margin, the target is a band at currentIdx, and the
// size risks RiskFraction of balance over ATR×multiplier.
func (s *Sizer) Plan(side core.Side, rows []indicator.Row, signalIdx, currentIdx int, balance float64, inst Instrument) (Plan, error) {
	if !side.Valid() {
		return Plan{}, core.Errorf(core.ErrInvalidArgument, "side %q", side)
	}
	if signalIdx < 0 || currentIdx < signalIdx || currentIdx >= len(rows) {
		return Plan{}, core.Errorf(core.ErrInvalidArgument, "indices signal=%d current=%d over %d rows",
			signalIdx, currentIdx, len(rows))
	}

	sig, cur := rows[signalIdx], rows[currentIdx]
	margin := inst.StopMargin
	if margin <= 0 {
		margin = s.cfg.StopMargin
	}

	plan := Plan{Side: side, Entry: cur.Close}
	if side == core.SideBuy {
		plan.StopLoss = sig.Low - margin
	} else {
		plan.StopLoss = sig.High + margin
	}

	switch {
	case s.cfg.TakeProfit == TakeProfitMiddle:
		plan.TakeProfit = cur.Middle
	case side == core.SideBuy:
		plan.TakeProfit = cur.Upper
	default:
		plan.TakeProfit = cur.Lower
	}
	if !indicator.Defined(plan.TakeProfit) {
		return Plan{}, core.Errorf(core.ErrInsufficientData, "target band undefined at %d", currentIdx)
	}

	if !indicator.Defined(sig.ATR) {
		return Plan{}, core.Errorf(core.ErrInsufficientData, "ATR undefined at %d", signalIdx)
	}
	plan.StopDistance = sig.ATR * s.cfg.ATRMultiplier

	if err := plan.Validate(); err != nil {
		return Plan{}, err
	}

	plan.Size = s.Size(balance, plan.StopDistance, inst)
	return plan, nil
}

// Size returns RiskFraction × balance divided by the value of distance per
// lot, clamped to the instrument's lot range and snapped to its step.
func (s *Sizer) Size(balance, distance float64, inst Instrument) float64 {
	perLot := inst.ValuePerLot(distance)
	if perLot <= 0 {
		return inst.NormalizeLots(inst.MinLot)
	}
	return inst.NormalizeLots(s.cfg.RiskFraction * balance / perLot)
}

// NormalizeLots clamps lots to [MinLot, MaxLot] and rounds to the nearest
// LotStep.
func (i Instrument) NormalizeLots(lots float64) float64 {
	clamp := func(v float64) float64 {
		return math.Min(math.Max(v, i.MinLot), i.MaxLot)
	}
	lots = clamp(lots)
	if i.LotStep > 0 {
		step := decimal.NewFromFloat(i.LotStep)
		lots = decimal.NewFromFloat(lots).Div(step).Round(0).Mul(step).InexactFloat64()
	}
	return clamp(lots)
}
