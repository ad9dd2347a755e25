package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Vex788/zeus-trading-bot/internal/learning"
	"github.com/Vex788/zeus-trading-bot/internal/md"
)

var ts = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func snap(price, rsi, macd, upper, middle, lower float64) md.Snapshot {
	return md.Snapshot{
		Pair:      md.MustParsePair("BTC-USDT"),
		Timestamp: ts,
		Price:     price,
		RSI:       rsi,
		MACD:      macd,
		BBUpper:   upper,
		BBMiddle:  middle,
		BBLower:   lower,
	}
}

func params() *learning.Parameters {
	p := learning.DefaultParameters()
	return &p
}

func TestAdaptiveScoring(t *testing.T) {
	tests := map[string]struct {
		snap       md.Snapshot
		action     Action
		up, down   float64
		predicted  bool
		confidence float64
	}{
		"all up signals": {
			snap:   snap(90, 25, 1.5, 110, 100, 95),
			action: Buy, up: 3, down: 0, predicted: true, confidence: 1,
		},
		"all down signals": {
			snap:   snap(120, 80, -2, 110, 100, 90),
			action: Sell, up: 0, down: 3, predicted: false, confidence: 1,
		},
		"up two to one": {
			snap:   snap(89, 25, -0.1, 110, 100, 90),
			action: Buy, up: 2, down: 1, predicted: true, confidence: 2.0 / 3.0,
		},
		"only negative macd": {
			snap:   snap(100, 50, -0.1, 110, 100, 90),
			action: Sell, up: 0, down: 1, predicted: false, confidence: 1,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			d, rec, scores := NewScorer(0.001).Score(tt.snap, params())
			assert.Equal(t, tt.action, d.Action)
			assert.True(t, d.ShouldTrade)
			assert.Equal(t, 0.001, d.Amount)
			assert.InDelta(t, tt.confidence, d.Confidence, 1e-9)
			assert.InDelta(t, tt.up, scores.Up, 1e-9)
			assert.InDelta(t, tt.down, scores.Down, 1e-9)
			assert.Equal(t, tt.predicted, rec.PredictedUp)
			assert.False(t, rec.Evaluated)
			assert.Equal(t, tt.snap.Price, rec.Price)
			assert.Equal(t, ts, rec.CreatedAt)
			assert.Equal(t, "BTC-USDT", rec.Pair)
		})
	}
}

func TestAdaptiveTieFallsBackToMiddleBand(t *testing.T) {
	// rsi oversold (up 1) against non-positive macd (down 1)
	above := snap(101, 25, 0, 110, 100, 90)
	below := snap(99, 25, 0, 110, 100, 90)

	for _, tc := range []struct {
		s    md.Snapshot
		want bool
	}{{above, true}, {below, false}} {
		d, rec, scores := NewScorer(0.001).Score(tc.s, params())
		assert.Equal(t, scores.Up, scores.Down)
		assert.Equal(t, Hold, d.Action)
		assert.False(t, d.ShouldTrade)
		assert.Equal(t, tc.want, rec.PredictedUp)
	}
}

func TestAdaptiveTieIndependentOfWeightSide(t *testing.T) {
	p := params()
	p.Up.RSI = 2.5
	p.Down.MACD = 2.5
	d, rec, _ := NewScorer(0.001).Score(snap(105, 25, -1, 110, 100, 90), p)
	assert.Equal(t, Hold, d.Action)
	assert.True(t, rec.PredictedUp)
}

func TestAdaptiveUsesLearnedThresholds(t *testing.T) {
	p := params()
	p.Oversold = 35
	s := snap(100, 33, -0.1, 110, 100, 90)

	_, _, learned := NewScorer(0.001).Score(s, p)
	assert.InDelta(t, 1.0, learned.Up, 1e-9)

	_, _, defaults := NewScorer(0.001).Score(s, params())
	assert.InDelta(t, 0.0, defaults.Up, 1e-9)
}

func TestColdStartLadder(t *testing.T) {
	tests := map[string]struct {
		snap       md.Snapshot
		action     Action
		confidence float64
		predicted  bool
	}{
		"strong buy from rsi":       {snap: snap(100, 25, 0.2, 110, 100, 90), action: Buy, confidence: 0.8, predicted: true},
		"strong buy from band":      {snap: snap(85, 50, 0.2, 110, 100, 90), action: Buy, confidence: 0.8, predicted: true},
		"strong sell from rsi":      {snap: snap(100, 75, -0.2, 110, 100, 90), action: Sell, confidence: 0.8, predicted: false},
		"strong sell from band":     {snap: snap(115, 50, -0.2, 110, 100, 90), action: Sell, confidence: 0.8, predicted: false},
		"moderate buy":              {snap: snap(101, 35, 0.2, 110, 100, 90), action: Buy, confidence: 0.65, predicted: true},
		"moderate buy below middle": {snap: snap(95, 50, -0.3, 110, 100, 90), action: Buy, confidence: 0.65, predicted: true},
		"moderate sell":             {snap: snap(101, 50, 0.3, 110, 100, 90), action: Sell, confidence: 0.65, predicted: false},
		"trend follow":              {snap: snap(101, 50, 0.7, 110, 100, 90), action: Hold, confidence: 0.5, predicted: true},
		"trend follow down":         {snap: snap(95, 50, -0.7, 110, 100, 90), action: Hold, confidence: 0.5, predicted: false},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			d, rec, scores := NewScorer(0.001).Score(tt.snap, nil)
			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, tt.action != Hold, d.ShouldTrade)
			assert.InDelta(t, tt.confidence, d.Confidence, 1e-9)
			assert.Equal(t, tt.predicted, rec.PredictedUp)
			assert.False(t, scores.Adaptive)
		})
	}
}

func TestColdStartStrongBuyOutranksStrongSell(t *testing.T) {
	// below the lower band with positive macd, rsi overbought
	d, _, _ := NewScorer(0.001).Score(snap(85, 75, 0.2, 110, 100, 90), nil)
	assert.Equal(t, Buy, d.Action)
	assert.InDelta(t, 0.8, d.Confidence, 1e-9)
}
