package backtest

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// CalculateStats computes performance statistics. The balance curve and
// per-trade returns follow exit order; trades exiting together keep their
// slice order.
func CalculateStats(trades []Trade, initialBalance float64) Stats {
	var s Stats
	if len(trades) == 0 {
		return s
	}

	trades = append([]Trade(nil), trades...)
	sort.SliceStable(trades, func(a, b int) bool {
		return trades[a].ExitTime.Before(trades[b].ExitTime)
	})

	var grossWin, grossLoss, total float64
	returns := make([]float64, 0, len(trades))
	curve := make([]float64, 0, len(trades)+1)
	balance := initialBalance
	curve = append(curve, balance)

	for _, t := range trades {
		if balance != 0 {
			returns = append(returns, t.Profit/balance)
		}
		balance += t.Profit
		curve = append(curve, balance)
		total += t.Profit

		if t.IsWin() {
			s.WinningTrades++
			grossWin += t.Profit
		} else {
			s.LosingTrades++
			grossLoss -= t.Profit
		}

		switch t.ExitReason {
		case ExitStopLoss:
			s.StopLossExits++
		case ExitTakeProfit:
			s.TakeProfitExits++
		case ExitMarkToClose:
			s.MarkToCloseExits++
		}
	}

	if initialBalance != 0 {
		s.TotalReturn = total / initialBalance * 100
	}
	if s.WinningTrades > 0 {
		s.AverageWin = grossWin / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AverageLoss = -grossLoss / float64(s.LosingTrades)
	}
	if grossLoss > 0 {
		s.ProfitFactor = grossWin / grossLoss
	}
	s.MaxDrawdown = calculateMaxDrawdown(curve) * 100
	s.SharpeRatio = calculateSharpeRatio(returns)
	return s
}

// calculateMaxDrawdown finds the largest peak-to-trough decline of a balance curve
func calculateMaxDrawdown(curve []float64) float64 {
	if len(curve) == 0 {
		return 0
	}

	var maxDD float64
	peak := curve[0]

	for _, v := range curve {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	return maxDD
}

// calculateSharpeRatio computes mean over sample deviation of per-trade returns.
// Assumes risk-free rate of 0.
func calculateSharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	mean, stdDev := stat.MeanStdDev(returns, nil)
	if stdDev == 0 {
		return 0
	}
	return mean / stdDev
}
