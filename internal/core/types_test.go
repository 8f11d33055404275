package core

import (
	"testing"
	"time"
)

func TestOHLCV_IsValid(t *testing.T) {
	tests := []struct {
		name string
		bar  OHLCV
		want bool
	}{
		{"valid", OHLCV{Open: 1.1, High: 1.2, Low: 1.0, Close: 1.1, Time: time.Now()}, true},
		{"zero time", OHLCV{High: 1.2, Low: 1.0}, false},
		{"inverted range", OHLCV{High: 1.0, Low: 1.2, Time: time.Now()}, false},
		{"zero low", OHLCV{High: 1.0, Low: 0, Time: time.Now()}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.bar.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAction_Constants(t *testing.T) {
	actions := []Action{ActionBuy, ActionSell, ActionNone}
	expected := []string{"buy", "sell", "none"}

	for i, a := range actions {
		if string(a) != expected[i] {
			t.Errorf("expected %s, got %s", expected[i], a)
		}
	}
}

func TestAction_Side(t *testing.T) {
	if s, ok := ActionBuy.Side(); !ok || s != SideBuy {
		t.Errorf("ActionBuy.Side() = %v, %v", s, ok)
	}
	if s, ok := ActionSell.Side(); !ok || s != SideSell {
		t.Errorf("ActionSell.Side() = %v, %v", s, ok)
	}
	if _, ok := ActionNone.Side(); ok {
		t.Error("ActionNone should have no side")
	}
}

func TestSide_Direction(t *testing.T) {
	if SideBuy.Direction() != 1 || SideSell.Direction() != -1 {
		t.Error("unexpected direction for buy/sell")
	}
	if Side("hold").Direction() != 0 || Side("hold").Valid() {
		t.Error("unknown side should be invalid with zero direction")
	}
}

func TestOutcomeOf(t *testing.T) {
	if OutcomeOf(12.5) != OutcomeProfit {
		t.Error("positive profit should be labeled profit")
	}
	if OutcomeOf(0) != OutcomeLoss || OutcomeOf(-3) != OutcomeLoss {
		t.Error("zero and negative profit should be labeled loss")
	}
}
