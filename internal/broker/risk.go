package broker

import (
	"context"
	"fmt"

	"github.com/newthinker/reversion/internal/risk"
)

// RiskCheckResult represents the outcome of a risk check.
type RiskCheckResult struct {
	// Allowed indicates whether the order is permitted.
	Allowed bool
	// Reason provides explanation when order is rejected.
	Reason string
}

// RiskChecker validates orders against account-level limits before they
// reach the gateway.
type RiskChecker struct {
	maxDailyLoss float64
	gateway      Gateway
}

// NewRiskChecker creates a RiskChecker. maxDailyLoss is a fraction of balance.
func NewRiskChecker(maxDailyLoss float64, gateway Gateway) *RiskChecker {
	return &RiskChecker{
		maxDailyLoss: maxDailyLoss,
		gateway:      gateway,
	}
}

// Check validates an order request against the daily loss limit and the
// symbol's volume constraints.
func (r *RiskChecker) Check(ctx context.Context, req OrderRequest) RiskCheckResult {
	if err := req.Validate(); err != nil {
		return RiskCheckResult{Allowed: false, Reason: err.Error()}
	}

	balance, err := r.gateway.GetBalance(ctx)
	if err != nil {
		return RiskCheckResult{
			Allowed: false,
			Reason:  fmt.Sprintf("failed to get balance: %v", err),
		}
	}

	if err := risk.CheckDailyLoss(balance.Balance, balance.DailyPL, r.maxDailyLoss); err != nil {
		return RiskCheckResult{Allowed: false, Reason: err.Error()}
	}

	info, err := r.gateway.SymbolInfo(ctx, req.Symbol)
	if err != nil {
		return RiskCheckResult{
			Allowed: false,
			Reason:  fmt.Sprintf("failed to get symbol info: %v", err),
		}
	}
	if req.Volume < info.VolumeMin || (info.VolumeMax > 0 && req.Volume > info.VolumeMax) {
		return RiskCheckResult{
			Allowed: false,
			Reason:  fmt.Sprintf("volume %.2f outside [%.2f, %.2f]", req.Volume, info.VolumeMin, info.VolumeMax),
		}
	}

	return RiskCheckResult{Allowed: true}
}
