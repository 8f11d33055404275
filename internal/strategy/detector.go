package strategy

import (
	"github.com/newthinker/reversion/internal/core"
	"github.com/newthinker/reversion/internal/indicator"
)

// DefaultLateralThreshold is the ADX level below which a market is lateral
const DefaultLateralThreshold = 25.0

// Detector finds Bollinger band re-entries: a close back above the lower
// band after a close below it (buy), or back below the upper band after a
// close above it (sell). It keeps no state between calls.
type Detector struct {
	lateralThreshold float64
}

// NewDetector creates a detector. A non-positive threshold selects
// DefaultLateralThreshold.
func NewDetector(lateralThreshold float64) *Detector {
	if lateralThreshold <= 0 {
		lateralThreshold = DefaultLateralThreshold
	}
	return &Detector{lateralThreshold: lateralThreshold}
}

func (d *Detector) Name() string {
	return "bollinger_reversion"
}

// LateralThreshold returns the ADX cut-off in use
func (d *Detector) LateralThreshold() float64 {
	return d.lateralThreshold
}

// Detect returns the action at bar at. At least three rows up to at are
// required; otherwise, or when bands are undefined, it returns ActionNone.
func (d *Detector) Detect(rows []indicator.Row, at int) core.Action {
	if at < 2 || at >= len(rows) {
		return core.ActionNone
	}
	prev, curr := rows[at-1], rows[at]

	buy := indicator.Defined(prev.Lower) && indicator.Defined(curr.Lower) &&
		prev.Close < prev.Lower && curr.Close > curr.Lower
	sell := indicator.Defined(prev.Upper) && indicator.Defined(curr.Upper) &&
		prev.Close > prev.Upper && curr.Close < curr.Upper

	switch {
	case buy && !sell:
		return core.ActionBuy
	case sell && !buy:
		return core.ActionSell
	default:
		return core.ActionNone
	}
}

// IsLateral reports whether ADX at bar at is below the threshold. An
// undefined ADX is treated as trending.
func (d *Detector) IsLateral(rows []indicator.Row, at int) bool {
	if at < 0 || at >= len(rows) {
		return false
	}
	adx := rows[at].ADX
	return indicator.Defined(adx) && adx < d.lateralThreshold
}
