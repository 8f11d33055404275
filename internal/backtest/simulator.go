package backtest

import (
	"github.com/newthinker/reversion/internal/core"
)

// Simulate walks forward bars in order until the stop or target is touched.
// A bar touching both resolves to the stop. When neither is touched the
// trade closes at the last bar's close. Profit is the signed price move
// times multiplier.
func Simulate(side core.Side, entry, stop, target float64, forward []core.OHLCV, multiplier float64) (Exit, error) {
	if !side.Valid() {
		return Exit{}, core.Errorf(core.ErrInvalidArgument, "side %q", side)
	}
	if len(forward) == 0 {
		return Exit{}, core.Errorf(core.ErrInvalidArgument, "no forward bars to simulate against")
	}

	exit := Exit{Reason: ExitMarkToClose}
	for i, bar := range forward {
		var stopHit, targetHit bool
		if side == core.SideBuy {
			stopHit = bar.Low <= stop
			targetHit = bar.High >= target
		} else {
			stopHit = bar.High >= stop
			targetHit = bar.Low <= target
		}

		switch {
		case stopHit:
			exit.Price, exit.Reason = stop, ExitStopLoss
		case targetHit:
			exit.Price, exit.Reason = target, ExitTakeProfit
		default:
			continue
		}
		exit.Time = bar.Time
		exit.BarsHeld = i + 1
		exit.Profit = (exit.Price - entry) * side.Direction() * multiplier
		return exit, nil
	}

	last := forward[len(forward)-1]
	exit.Price = last.Close
	exit.Time = last.Time
	exit.BarsHeld = len(forward)
	exit.Profit = (exit.Price - entry) * side.Direction() * multiplier
	return exit, nil
}
