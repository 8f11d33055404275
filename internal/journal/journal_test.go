package journal

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/reversion/internal/core"
	"github.com/newthinker/reversion/internal/features"
)

var entry = time.Date(2024, 2, 5, 14, 0, 0, 0, time.UTC)

func sampleTrade(id string, withFeatures bool) TradeRecord {
	r := TradeRecord{
		ID:         id,
		Symbol:     "EURUSD",
		Side:       core.SideBuy,
		EntryTime:  entry,
		EntryPrice: 1.092,
		StopLoss:   1.0869,
		TakeProfit: 1.11,
		Size:       0.67,
		Outcome:    core.OutcomeProfit,
		Profit:     1206,
		ExitTime:   entry.Add(2 * time.Hour),
		ExitPrice:  1.11,
		ExitReason: "take_profit",
	}
	if withFeatures {
		v, _ := features.NewVector(0.12, 18.5, 0.018, 41.2, 1.3, 0.8, 0, 14)
		r.Features = &v
	}
	return r
}

func TestTradeRecord_Validate(t *testing.T) {
	assert.NoError(t, sampleTrade("a", true).Validate())

	bad := sampleTrade("a", false)
	bad.Side = "hold"
	assert.True(t, errors.Is(bad.Validate(), core.ErrInvalidArgument))

	bad = sampleTrade("a", false)
	bad.Outcome = "draw"
	assert.Error(t, bad.Validate())

	bad = sampleTrade("a", true)
	bad.Features.Momentum = math.NaN()
	assert.Error(t, bad.Validate())
}

func TestDecision_Validate(t *testing.T) {
	assert.NoError(t, Decision{Symbol: "EURUSD", Decision: DecisionIgnored}.Validate())
	assert.Error(t, Decision{Decision: "buy"}.Validate())
}

func TestSamples(t *testing.T) {
	loss := sampleTrade("b", true)
	loss.Outcome = core.OutcomeLoss
	loss.EntryTime = entry.Add(time.Hour)

	samples := Samples([]TradeRecord{sampleTrade("a", true), sampleTrade("c", false), loss})

	require.Len(t, samples, 2)
	assert.Equal(t, core.OutcomeProfit, samples[0].Outcome)
	assert.Equal(t, core.OutcomeLoss, samples[1].Outcome)
	assert.Equal(t, 18.5, samples[0].Features.TrendStrength)
}

func TestSamples_RepeatedRunCountsOnce(t *testing.T) {
	sell := sampleTrade("s", true)
	sell.Side = core.SideSell
	other := sampleTrade("g", true)
	other.Symbol = "GBPUSD"

	// The same run journaled twice under fresh IDs.
	records := []TradeRecord{sampleTrade("a", true), sell, other, sampleTrade("a2", true), sell, other}

	samples := Samples(records)
	assert.Len(t, samples, 3)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	r, err := Open(Config{Backend: BackendNone}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Nop{}, r)

	r, err = Open(Config{Backend: BackendCSV, Path: dir}, nil)
	require.NoError(t, err)
	assert.IsType(t, &CSV{}, r)

	r, err = Open(Config{Backend: BackendSQLite, Path: filepath.Join(dir, "j.db")}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, r)
	require.NoError(t, r.Close())

	_, err = Open(Config{Backend: "kafka"}, nil)
	assert.Error(t, err)
}
