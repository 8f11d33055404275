package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/reversion/internal/core"
	"github.com/newthinker/reversion/internal/indicator"
)

// 2024-01-03 was a Wednesday
var base = time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

func rows(n int) []indicator.Row {
	out := make([]indicator.Row, n)
	for i := range out {
		out[i] = indicator.Row{
			OHLCV:      core.OHLCV{Open: 1.1, High: 1.101, Low: 1.099, Close: 1.105, Time: base.Add(time.Duration(i) * time.Hour)},
			Upper:      1.11,
			Middle:     1.10,
			Lower:      1.09,
			ADX:        18,
			RSI:        55,
			MACD:       0.002,
			MACDSignal: 0.001,
			StochK:     60,
			StochD:     40,
		}
	}
	return out
}

func TestExtract_InsufficientHistory(t *testing.T) {
	r := rows(30)
	for i := 0; i < MinHistory; i++ {
		_, ok := Extract(r, i)
		assert.False(t, ok, "index %d", i)
	}
	_, ok := Extract(r, 30)
	assert.False(t, ok)
}

func TestExtract_FullVector(t *testing.T) {
	r := rows(30)

	v, ok := Extract(r, 20)

	require.True(t, ok)
	assert.InDelta(t, 0.75, v.BandPosition, 1e-9)
	assert.Equal(t, 18.0, v.TrendStrength)
	assert.InDelta(t, 0.02/1.10, v.BandWidth, 1e-12)
	assert.Equal(t, 55.0, v.Momentum)
	assert.InDelta(t, 2.0, v.MomentumRatio, 1e-12)
	assert.InDelta(t, 1.5, v.OscillatorRatio, 1e-12)
	assert.Equal(t, 2, v.DayOfWeek)
	assert.Equal(t, 20, v.Hour)
	assert.NoError(t, v.Validate())
}

func TestExtract_DegenerateInputs(t *testing.T) {
	r := rows(25)
	r[21].Upper, r[21].Middle, r[21].Lower = 1.1, 1.1, 1.1
	r[21].MACDSignal = 0
	r[21].StochD = 0

	v, ok := Extract(r, 21)

	require.True(t, ok)
	assert.Equal(t, 0.5, v.BandPosition)
	assert.Equal(t, 0.0, v.BandWidth)
	assert.Equal(t, 0.0, v.MomentumRatio)
	assert.Equal(t, 0.0, v.OscillatorRatio)

	r[22].Middle = 0
	v, ok = Extract(r, 22)
	require.True(t, ok)
	assert.Equal(t, 0.0, v.BandWidth)
}

func TestExtract_UndefinedOptionalValues(t *testing.T) {
	r := rows(25)
	r[21].RSI = math.NaN()
	r[21].MACD = math.NaN()
	r[21].MACDSignal = math.NaN()
	r[21].StochK = math.NaN()
	r[21].StochD = math.NaN()

	v, ok := Extract(r, 21)

	require.True(t, ok)
	assert.Equal(t, 0.0, v.Momentum)
	assert.Equal(t, 0.0, v.MomentumRatio)
	assert.Equal(t, 0.0, v.OscillatorRatio)
}

func TestExtract_UndefinedCoreValues(t *testing.T) {
	r := rows(25)
	r[21].ADX = math.NaN()
	r[22].Lower = math.NaN()

	_, ok := Extract(r, 21)
	assert.False(t, ok)
	_, ok = Extract(r, 22)
	assert.False(t, ok)
}

func TestNewVector_RejectsPartial(t *testing.T) {
	_, err := NewVector(math.NaN(), 20, 0.01, 50, 1, 1, 2, 10)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))

	_, err = NewVector(0.5, math.Inf(1), 0.01, 50, 1, 1, 2, 10)
	assert.Error(t, err)

	_, err = NewVector(0.5, 20, 0.01, 50, 1, 1, 7, 10)
	assert.Error(t, err)

	_, err = NewVector(0.5, 20, 0.01, 50, 1, 1, 2, 24)
	assert.Error(t, err)
}

func TestVector_SliceRoundTrip(t *testing.T) {
	v, err := NewVector(0.3, 22, 0.015, 48, 1.2, 0.9, 4, 13)
	require.NoError(t, err)

	back, err := FromSlice(v.Slice())
	require.NoError(t, err)
	assert.Equal(t, v, back)

	_, err = FromSlice([]float64{1, 2, 3})
	assert.Error(t, err)
}

func TestVector_String(t *testing.T) {
	v := Vector{BandPosition: 0.25, Hour: 9}
	s := v.String()
	assert.Contains(t, s, "band_position=0.2500")
	assert.Contains(t, s, "hour=9.0000")
}

func TestWeekday(t *testing.T) {
	monday := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, Weekday(monday))
	assert.Equal(t, 6, Weekday(monday.AddDate(0, 0, 6)))
}
