package md

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(n int, f func(i int) float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = f(i)
	}
	return out
}

func TestRSI(t *testing.T) {
	tests := map[string]struct {
		closes []float64
		want   float64
	}{
		"rising": {
			closes: series(30, func(i int) float64 { return float64(100 + i) }),
			want:   100,
		},
		"flat": {
			closes: series(30, func(int) float64 { return 100 }),
			want:   50,
		},
		"falling": {
			closes: series(30, func(i int) float64 { return float64(200 - i) }),
			want:   0,
		},
		"too short": {
			closes: []float64{1, 2, 3},
			want:   50,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RSI(tt.closes, RSIPeriod), 1e-9)
		})
	}
}

func TestMACDSign(t *testing.T) {
	up := series(40, func(i int) float64 { return float64(100 + i) })
	down := series(40, func(i int) float64 { return float64(200 - i) })

	assert.Greater(t, MACD(up, MACDShortPeriod, MACDLongPeriod), 0.0)
	assert.Less(t, MACD(down, MACDShortPeriod, MACDLongPeriod), 0.0)
}

func TestBollingerFlatSeriesCollapses(t *testing.T) {
	window := series(BollingerPeriod, func(int) float64 { return 10 })
	upper, lower := Bollinger(window, 10, BollingerK)
	assert.Equal(t, 10.0, upper)
	assert.Equal(t, 10.0, lower)
}

func TestBollingerUsesPopulationDeviation(t *testing.T) {
	window := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	upper, lower := Bollinger(window, 5, 2)
	assert.InDelta(t, 9.0, upper, 1e-9)
	assert.InDelta(t, 1.0, lower, 1e-9)
}

func TestComputeRequiresHistory(t *testing.T) {
	buf := NewRingBuffer(100)
	buf.AddAll(series(MinHistory-1, func(i int) float64 { return float64(i + 1) })...)

	_, err := Compute(MustParsePair("BTC-USDT"), buf, time.Now())
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestComputeProducesOrderedBands(t *testing.T) {
	buf := NewRingBuffer(100)
	buf.AddAll(series(60, func(i int) float64 { return 100 + 5*math.Sin(float64(i)/3) })...)
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	snap, err := Compute(MustParsePair("ETH-USDT"), buf, ts)
	require.NoError(t, err)
	assert.Equal(t, ts, snap.Timestamp)
	assert.GreaterOrEqual(t, snap.BBUpper, snap.BBMiddle)
	assert.GreaterOrEqual(t, snap.BBMiddle, snap.BBLower)
	assert.GreaterOrEqual(t, snap.RSI, 0.0)
	assert.LessOrEqual(t, snap.RSI, 100.0)
}

func TestSnapshotValidate(t *testing.T) {
	ok := Snapshot{Price: 10, RSI: 40, BBUpper: 12, BBMiddle: 10, BBLower: 8}
	require.NoError(t, ok.Validate())

	bad := ok
	bad.BBLower = 11
	assert.ErrorIs(t, bad.Validate(), ErrUnavailable)

	bad = ok
	bad.RSI = 101
	assert.ErrorIs(t, bad.Validate(), ErrUnavailable)
}

func TestClosesFromKlines(t *testing.T) {
	klines := []*binance.Kline{
		{Close: "100.5", CloseTime: 1700000000000},
		{Close: "101.25", CloseTime: 1700000060000},
	}
	closes, ts, err := closesFromKlines(klines)
	require.NoError(t, err)
	assert.Equal(t, []float64{100.5, 101.25}, closes)
	assert.Equal(t, time.UnixMilli(1700000060000).UTC(), ts)

	_, _, err = closesFromKlines([]*binance.Kline{{Close: "x"}})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, _, err = closesFromKlines(nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}
