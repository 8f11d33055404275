package risk

import "github.com/newthinker/reversion/internal/core"

// CheckDailyLoss refuses new orders once the day's loss reaches limit,
// expressed as a share of balance. dailyPL is negative when losing money.
func CheckDailyLoss(balance, dailyPL, limit float64) error {
	if balance <= 0 || limit <= 0 {
		return nil
	}
	lossPct := -dailyPL / balance
	if lossPct >= limit {
		return core.Errorf(core.ErrDailyLossLimit, "daily loss %.2f%% >= %.2f%%", lossPct*100, limit*100)
	}
	return nil
}
