package strategy

import (
	"fmt"
	"time"

	"github.com/newthinker/reversion/internal/core"
	"github.com/newthinker/reversion/internal/indicator"
)

// Strategy detects entries over indicator rows. Detection and the regime
// filter are evaluated independently; callers must apply IsLateral before
// acting on a detected action.
type Strategy interface {
	Name() string
	Detect(rows []indicator.Row, at int) core.Action
	IsLateral(rows []indicator.Row, at int) bool
}

// Analyze evaluates the regime filter and then detection at bar at. The
// returned signal has ActionNone when the market is not lateral or nothing
// was detected; Reason explains which.
func Analyze(s Strategy, symbol string, rows []indicator.Row, at int, now time.Time) core.Signal {
	sig := core.Signal{
		Symbol:      symbol,
		Action:      core.ActionNone,
		Index:       at,
		GeneratedAt: now,
	}
	if at >= 0 && at < len(rows) {
		sig.Price = rows[at].Close
	}

	if !s.IsLateral(rows, at) {
		sig.Reason = "market not lateral"
		if at >= 0 && at < len(rows) && indicator.Defined(rows[at].ADX) {
			sig.Reason = fmt.Sprintf("market not lateral (ADX %.2f)", rows[at].ADX)
		}
		return sig
	}

	sig.Action = s.Detect(rows, at)
	switch sig.Action {
	case core.ActionBuy:
		sig.Reason = "close re-entered lower band from below"
	case core.ActionSell:
		sig.Reason = "close re-entered upper band from above"
	default:
		sig.Reason = "no band re-entry"
	}
	return sig
}
