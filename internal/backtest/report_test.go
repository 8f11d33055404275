package backtest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/reversion/internal/risk"
	"github.com/newthinker/reversion/internal/storage/archive"
)

func TestReportPath(t *testing.T) {
	assert.Equal(t, "reports/backtest/abc.json", ReportPath("abc"))
}

func TestSaveAndLoadReport(t *testing.T) {
	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	res, err := newTestEngine(t).Run(ctx, "EURUSD", reentryBars(), risk.DefaultInstrument("EURUSD"))
	require.NoError(t, err)

	p, err := SaveReport(ctx, store, res)
	require.NoError(t, err)
	assert.Equal(t, ReportPath(res.RunID), p)

	loaded, err := LoadReport(ctx, store, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, loaded.RunID)
	assert.Equal(t, res.TotalTrades, loaded.TotalTrades)
	assert.InDelta(t, res.FinalBalance, loaded.FinalBalance, 1e-9)
	require.Len(t, loaded.Trades, 1)
	assert.Equal(t, res.Trades[0].ExitReason, loaded.Trades[0].ExitReason)
	require.NotNil(t, loaded.Trades[0].Features)

	_, err = LoadReport(ctx, store, "missing")
	assert.True(t, errors.Is(err, archive.ErrNotFound))
}
