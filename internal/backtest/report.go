package backtest

import (
	"context"
	"path"

	"github.com/newthinker/reversion/internal/storage/archive"
)

// ReportPrefix is where run reports are archived
const ReportPrefix = "reports/backtest"

// ReportPath returns the archive path for a run
func ReportPath(runID string) string {
	return path.Join(ReportPrefix, runID+".json")
}

// SaveReport archives res as JSON and returns its path
func SaveReport(ctx context.Context, store archive.Storage, res *Result) (string, error) {
	p := ReportPath(res.RunID)
	if err := archive.WriteJSON(ctx, store, p, res); err != nil {
		return "", err
	}
	return p, nil
}

// LoadReport reads a previously archived run
func LoadReport(ctx context.Context, store archive.Storage, runID string) (*Result, error) {
	var res Result
	if err := archive.ReadJSON(ctx, store, ReportPath(runID), &res); err != nil {
		return nil, err
	}
	return &res, nil
}
