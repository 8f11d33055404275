package backtest

import (
	"sort"
	"time"

	"github.com/newthinker/reversion/internal/core"
	"github.com/newthinker/reversion/internal/features"
	"github.com/newthinker/reversion/internal/journal"
)

// ExitReason records which level closed a simulated trade
type ExitReason string

const (
	ExitStopLoss    ExitReason = "stop_loss"
	ExitTakeProfit  ExitReason = "take_profit"
	ExitMarkToClose ExitReason = "mark_to_close"
)

// Exit is the outcome of simulating one trade over forward bars
type Exit struct {
	Price    float64
	Time     time.Time
	Profit   float64
	Reason   ExitReason
	BarsHeld int // forward bars scanned, including the exit bar
}

// Trade represents a simulated trade from entry to exit
type Trade struct {
	ID           string           `json:"id"`
	Symbol       string           `json:"symbol"`
	Side         core.Side        `json:"side"`
	EntryTime    time.Time        `json:"entry_time"`
	EntryPrice   float64          `json:"entry_price"`
	StopLoss     float64          `json:"stop_loss"`
	TakeProfit   float64          `json:"take_profit"`
	Size         float64          `json:"size"`
	ExitTime     time.Time        `json:"exit_time"`
	ExitPrice    float64          `json:"exit_price"`
	ExitReason   ExitReason       `json:"exit_reason"`
	BarsHeld     int              `json:"bars_held"`
	Profit       float64          `json:"profit"`
	Outcome      core.Outcome     `json:"outcome"`
	BalanceAfter float64          `json:"balance_after"`
	Features     *features.Vector `json:"features,omitempty"`
}

// IsWin returns true if the trade was profitable
func (t Trade) IsWin() bool {
	return t.Profit > 0
}

// Record converts the trade into a journal entry
func (t Trade) Record() journal.TradeRecord {
	return journal.TradeRecord{
		ID:         t.ID,
		Symbol:     t.Symbol,
		Side:       t.Side,
		EntryTime:  t.EntryTime,
		EntryPrice: t.EntryPrice,
		StopLoss:   t.StopLoss,
		TakeProfit: t.TakeProfit,
		Size:       t.Size,
		Outcome:    t.Outcome,
		Profit:     t.Profit,
		ExitTime:   t.ExitTime,
		ExitPrice:  t.ExitPrice,
		ExitReason: string(t.ExitReason),
		Features:   t.Features,
	}
}

// Result holds the complete backtest output
type Result struct {
	RunID          string    `json:"run_id"`
	Strategy       string    `json:"strategy"`
	Symbol         string    `json:"symbol"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	Bars           int       `json:"bars"`
	InitialBalance float64   `json:"initial_balance"`
	FinalBalance   float64   `json:"final_balance"`
	TotalProfit    float64   `json:"total_profit"`
	TotalTrades    int       `json:"total_trades"`
	Wins           int       `json:"wins"`
	WinRate        float64   `json:"win_rate"` // wins / trades, 0 without trades
	Signals        int       `json:"signals"`  // detected while lateral
	Filtered       int       `json:"filtered"` // rejected by the quality filter
	Skipped        int       `json:"skipped"`  // rejected by the risk plan
	Trades         []Trade   `json:"trades"` // entry order
	Stats          Stats     `json:"stats"`

	open []int // indices into Trades not yet booked to FinalBalance
}

// Stats holds performance statistics
type Stats struct {
	WinningTrades    int     `json:"winning_trades"`
	LosingTrades     int     `json:"losing_trades"`
	TotalReturn      float64 `json:"total_return"`  // percent of initial balance
	MaxDrawdown      float64 `json:"max_drawdown"`  // percent, peak to trough of the balance curve
	SharpeRatio      float64 `json:"sharpe_ratio"`  // per-trade, not annualized
	ProfitFactor     float64 `json:"profit_factor"` // 0 without losing trades
	AverageWin       float64 `json:"average_win"`
	AverageLoss      float64 `json:"average_loss"` // negative or 0
	StopLossExits    int     `json:"stop_loss_exits"`
	TakeProfitExits  int     `json:"take_profit_exits"`
	MarkToCloseExits int     `json:"mark_to_close_exits"`
}

func newResult(runID, strategy, symbol string, bars []core.OHLCV, initial float64) *Result {
	res := &Result{
		RunID:          runID,
		Strategy:       strategy,
		Symbol:         symbol,
		Bars:           len(bars),
		InitialBalance: initial,
		FinalBalance:   initial,
		Trades:         []Trade{},
	}
	if len(bars) > 0 {
		res.StartDate = bars[0].Time
		res.EndDate = bars[len(bars)-1].Time
	}
	return res
}

// add opens t. Its profit reaches FinalBalance only once settle passes its exit.
func (r *Result) add(t Trade) {
	r.Trades = append(r.Trades, t)
	r.open = append(r.open, len(r.Trades)-1)
	r.TotalTrades++
	if t.IsWin() {
		r.Wins++
	}
}

// settle books every open trade that exited at or before at, in exit order,
// and returns the realized balance.
func (r *Result) settle(at time.Time) float64 {
	r.sortOpen()
	n := 0
	for _, idx := range r.open {
		if r.Trades[idx].ExitTime.After(at) {
			break
		}
		r.book(idx)
		n++
	}
	r.open = r.open[n:]
	return r.FinalBalance
}

func (r *Result) sortOpen() {
	sort.SliceStable(r.open, func(a, b int) bool {
		return r.Trades[r.open[a]].ExitTime.Before(r.Trades[r.open[b]].ExitTime)
	})
}

func (r *Result) book(idx int) {
	r.FinalBalance += r.Trades[idx].Profit
	r.Trades[idx].BalanceAfter = r.FinalBalance
}

func (r *Result) finish() {
	r.sortOpen()
	for _, idx := range r.open {
		r.book(idx)
	}
	r.open = nil
	r.TotalProfit = r.FinalBalance - r.InitialBalance
	r.WinRate = 0
	if r.TotalTrades > 0 {
		r.WinRate = float64(r.Wins) / float64(r.TotalTrades)
	}
	r.Stats = CalculateStats(r.Trades, r.InitialBalance)
}
