package core

import "time"

// OHLCV represents a candlestick/bar. Series are ordered ascending by Time
// and never modified once produced.
type OHLCV struct {
	Symbol   string
	Interval string // "H1", "D1"
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   int64
	Time     time.Time
}

// IsValid checks the bar has a usable price range
func (b OHLCV) IsValid() bool {
	return !b.Time.IsZero() && b.High >= b.Low && b.Low > 0
}

// Action represents a detected signal
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionNone Action = "none"
)

// Side returns the trade side for an actionable signal.
func (a Action) Side() (Side, bool) {
	switch a {
	case ActionBuy:
		return SideBuy, true
	case ActionSell:
		return SideSell, true
	default:
		return "", false
	}
}

// Side is the direction of a position
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid reports whether s is buy or sell.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Direction returns +1 for buy and -1 for sell, 0 otherwise.
func (s Side) Direction() float64 {
	switch s {
	case SideBuy:
		return 1
	case SideSell:
		return -1
	default:
		return 0
	}
}

// Outcome labels a closed trade
type Outcome string

const (
	OutcomeProfit Outcome = "profit"
	OutcomeLoss   Outcome = "loss"
)

// OutcomeOf labels a realized profit. Zero counts as a loss.
func OutcomeOf(profit float64) Outcome {
	if profit > 0 {
		return OutcomeProfit
	}
	return OutcomeLoss
}

// Signal is a detection result at a bar index. It is produced fresh on every
// evaluation and never persisted.
type Signal struct {
	Symbol      string
	Action      Action
	Index       int
	Price       float64 // Close at the detection bar
	Reason      string
	GeneratedAt time.Time
}
