package risk

import (
	"fmt"

	"github.com/newthinker/reversion/internal/core"
)

// TakeProfitPolicy selects the take-profit level
type TakeProfitPolicy string

const (
	// TakeProfitMiddle targets the middle band
	TakeProfitMiddle TakeProfitPolicy = "middle"
	// TakeProfitOpposite targets the upper band for buys and the lower band for sells
	TakeProfitOpposite TakeProfitPolicy = "opposite"
)

// Config defines risk management parameters.
type Config struct {
	// RiskFraction is the share of balance risked per trade.
	RiskFraction float64 `mapstructure:"risk_fraction" yaml:"risk_fraction"`
	// MaxDailyLoss is the share of balance that may be lost in one day before orders are refused.
	MaxDailyLoss float64 `mapstructure:"max_daily_loss" yaml:"max_daily_loss"`
	// TakeProfit selects the target band.
	TakeProfit TakeProfitPolicy `mapstructure:"take_profit" yaml:"take_profit"`
	// StopMargin is the price offset beyond the signal bar used when an instrument sets none.
	StopMargin float64 `mapstructure:"stop_margin" yaml:"stop_margin"`
	// ATRMultiplier scales ATR into the stop distance used for sizing.
	ATRMultiplier float64 `mapstructure:"atr_multiplier" yaml:"atr_multiplier"`
}

// DefaultConfig returns a Config with the standard values.
func DefaultConfig() Config {
	return Config{
		RiskFraction:  0.01,
		MaxDailyLoss:  0.05,
		TakeProfit:    TakeProfitOpposite,
		StopMargin:    0.0001,
		ATRMultiplier: 1.5,
	}
}

// Validate checks the configuration is usable
func (c Config) Validate() error {
	if c.RiskFraction <= 0 || c.RiskFraction > 1 {
		return core.Errorf(core.ErrConfigInvalid, "risk_fraction must be in (0, 1], got %v", c.RiskFraction)
	}
	if c.MaxDailyLoss < 0 || c.MaxDailyLoss > 1 {
		return core.Errorf(core.ErrConfigInvalid, "max_daily_loss must be in [0, 1], got %v", c.MaxDailyLoss)
	}
	if c.TakeProfit != TakeProfitMiddle && c.TakeProfit != TakeProfitOpposite {
		return core.Errorf(core.ErrConfigInvalid, "take_profit must be %q or %q, got %q",
			TakeProfitMiddle, TakeProfitOpposite, c.TakeProfit)
	}
	if c.StopMargin < 0 {
		return core.Errorf(core.ErrConfigInvalid, "stop_margin must not be negative")
	}
	if c.ATRMultiplier <= 0 {
		return core.Errorf(core.ErrConfigInvalid, "atr_multiplier must be positive")
	}
	return nil
}

// Instrument carries per-symbol lot constraints and pricing
type Instrument struct {
	Symbol       string  `mapstructure:"symbol" yaml:"symbol"`
	StopMargin   float64 `mapstructure:"stop_margin" yaml:"stop_margin"`     // 0 uses Config.StopMargin
	ContractSize float64 `mapstructure:"contract_size" yaml:"contract_size"` // units per lot
	MinLot       float64 `mapstructure:"min_lot" yaml:"min_lot"`
	MaxLot       float64 `mapstructure:"max_lot" yaml:"max_lot"`
	LotStep      float64 `mapstructure:"lot_step" yaml:"lot_step"`
	TickValue    float64 `mapstructure:"tick_value" yaml:"tick_value"` // account currency per tick per lot
	TickSize     float64 `mapstructure:"tick_size" yaml:"tick_size"`
}

// DefaultInstrument describes a standard 5-digit currency pair
func DefaultInstrument(symbol string) Instrument {
	return Instrument{
		Symbol:       symbol,
		StopMargin:   0.0001,
		ContractSize: 100000,
		MinLot:       0.01,
		MaxLot:       100,
		LotStep:      0.01,
		TickValue:    1,
		TickSize:     0.00001,
	}
}

// Validate checks lot constraints are consistent
func (i Instrument) Validate() error {
	if i.MinLot <= 0 || i.MaxLot < i.MinLot {
		return core.Errorf(core.ErrInvalidArgument, "%s: lot range [%v, %v] invalid", i.Symbol, i.MinLot, i.MaxLot)
	}
	if i.LotStep < 0 || i.ContractSize <= 0 {
		return core.Errorf(core.ErrInvalidArgument, "%s: lot step and contract size must be positive", i.Symbol)
	}
	if i.TickSize <= 0 || i.TickValue <= 0 {
		return core.Errorf(core.ErrInvalidArgument, "%s: tick size and value must be positive", i.Symbol)
	}
	return nil
}

// ValuePerLot returns the account-currency value of a price move of
// distance for one lot.
func (i Instrument) ValuePerLot(distance float64) float64 {
	if i.TickSize <= 0 {
		return 0
	}
	return distance / i.TickSize * i.TickValue
}

func (i Instrument) String() string {
	return fmt.Sprintf("%s(lots %.2f-%.2f step %.2f)", i.Symbol, i.MinLot, i.MaxLot, i.LotStep)
}
