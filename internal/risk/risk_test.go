package risk

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vex788/zeus-trading-bot/internal/strategy"
)

var now = time.Date(2024, 6, 3, 15, 30, 0, 0, time.UTC)

type fakeHistory struct {
	pl         decimal.Decimal
	trades     int
	lastHour   int
	err        error
	plSince    time.Time
	countSince time.Time
}

func (f *fakeHistory) DailyProfitLoss(since time.Time) (decimal.Decimal, int, error) {
	f.plSince = since
	return f.pl, f.trades, f.err
}

func (f *fakeHistory) TradesSince(since time.Time) (int, error) {
	f.countSince = since
	return f.lastHour, f.err
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func buy(amount, confidence float64) strategy.Decision {
	return strategy.Decision{Action: strategy.Buy, Amount: amount, Confidence: confidence, ShouldTrade: true}
}

func TestGateRejectsDailyLoss(t *testing.T) {
	h := &fakeHistory{pl: d("-250"), trades: 3}
	gate := NewGate(DefaultConfig(), h)

	res := gate.Evaluate(buy(0.001, 0.9), d("1000"), now)
	assert.False(t, res.Allowed)
	assert.Equal(t, CheckDailyLoss, res.Check)
	assert.ErrorIs(t, res.Err(), ErrRejected)
	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), h.plSince)
	assert.False(t, gate.IsTradeAllowed(buy(0.001, 0.9), d("1000"), now))
}

func TestGateDailyLossAtLimitPasses(t *testing.T) {
	gate := NewGate(DefaultConfig(), &fakeHistory{pl: d("-200"), trades: 1})
	res := gate.Evaluate(buy(0.001, 0.9), d("1000"), now)
	assert.True(t, res.Allowed, res.Reason)
}

func TestGateNoTradesTodayPasses(t *testing.T) {
	gate := NewGate(DefaultConfig(), &fakeHistory{pl: d("-5000"), trades: 0})
	assert.True(t, gate.IsTradeAllowed(buy(0.001, 0.9), d("1000"), now))
}

func TestGateRejectsOversizedPosition(t *testing.T) {
	gate := NewGate(DefaultConfig(), &fakeHistory{})
	res := gate.Evaluate(buy(11, 0.95), d("100"), now)
	assert.Equal(t, CheckPositionSize, res.Check)

	res = gate.Evaluate(buy(10, 0.95), d("100"), now)
	assert.True(t, res.Allowed, res.Reason)
}

func TestGateConfidenceTiers(t *testing.T) {
	tests := map[string]struct {
		amount     float64
		confidence float64
		allowed    bool
	}{
		"base at boundary":    {amount: 0.05, confidence: 0.6, allowed: true},
		"base below":          {amount: 0.05, confidence: 0.59, allowed: false},
		"tier edge uses base": {amount: 0.1, confidence: 0.6, allowed: true},
		"medium at boundary":  {amount: 0.2, confidence: 0.7, allowed: true},
		"medium below":        {amount: 0.2, confidence: 0.69, allowed: false},
		"large at boundary":   {amount: 0.6, confidence: 0.8, allowed: true},
		"large below":         {amount: 0.6, confidence: 0.79, allowed: false},
		"large edge uses mid": {amount: 0.5, confidence: 0.7, allowed: true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			gate := NewGate(DefaultConfig(), &fakeHistory{})
			res := gate.Evaluate(buy(tt.amount, tt.confidence), d("10000"), now)
			assert.Equal(t, tt.allowed, res.Allowed, res.Reason)
			if !tt.allowed {
				assert.Equal(t, CheckConfidence, res.Check)
			}
		})
	}
}

func TestGateRejectsFrequency(t *testing.T) {
	h := &fakeHistory{lastHour: 10}
	gate := NewGate(DefaultConfig(), h)

	res := gate.Evaluate(buy(0.001, 0.9), d("1000"), now)
	assert.Equal(t, CheckFrequency, res.Check)
	assert.Equal(t, now.Add(-time.Hour), h.countSince)

	h.lastHour = 9
	assert.True(t, gate.IsTradeAllowed(buy(0.001, 0.9), d("1000"), now))
}

func TestGateFailsClosed(t *testing.T) {
	gate := NewGate(DefaultConfig(), &fakeHistory{err: errors.New("disk gone")})
	res := gate.Evaluate(buy(0.001, 0.9), d("1000"), now)
	assert.False(t, res.Allowed)
	assert.Equal(t, CheckInternal, res.Check)

	res = NewGate(DefaultConfig(), nil).Evaluate(buy(0.001, 0.9), d("1000"), now)
	assert.Equal(t, CheckInternal, res.Check)
}

func TestGateRejectsHold(t *testing.T) {
	gate := NewGate(DefaultConfig(), &fakeHistory{})
	res := gate.Evaluate(strategy.Decision{Action: strategy.Hold, Confidence: 1}, d("1000"), now)
	assert.Equal(t, CheckNotTradeable, res.Check)
}

func TestGateApprovedAmountIsSized(t *testing.T) {
	gate := NewGate(DefaultConfig(), &fakeHistory{})
	res := gate.Evaluate(buy(0.0005, 0.9), d("1000"), now)
	require.True(t, res.Allowed)
	assert.True(t, res.Amount.IsZero(), "below minimum trade size")

	res = gate.Evaluate(buy(0.002, 0.9), d("1000"), now)
	require.True(t, res.Allowed)
	assert.Equal(t, "0.002", res.Amount.String())
}

func TestPositionSize(t *testing.T) {
	gate := NewGate(DefaultConfig(), nil)

	assert.True(t, gate.PositionSize(d("200"), d("1000")).Equal(d("100")))
	assert.True(t, gate.PositionSize(d("50"), d("1000")).Equal(d("50")))
	assert.True(t, gate.PositionSize(d("0.0009"), d("1000")).IsZero())
	assert.True(t, gate.PositionSize(d("1"), d("0.005")).IsZero())
	assert.True(t, gate.PositionSize(d("0.123456789"), d("1000")).Equal(d("0.12345679")))
}

func TestPositionSizeNeverExceedsCap(t *testing.T) {
	gate := NewGate(DefaultConfig(), nil)
	balances := []string{"0", "0.5", "1", "33.3", "1000", "123456.789"}
	requests := []string{"0.001", "0.5", "3.33", "100", "99999"}
	for _, b := range balances {
		for _, r := range requests {
			size := gate.PositionSize(d(r), d(b))
			limit := d(b).Mul(d("0.1"))
			assert.False(t, size.GreaterThan(limit), "balance=%s requested=%s size=%s", b, r, size)
		}
	}
}

func TestStopLossTakeProfit(t *testing.T) {
	gate := NewGate(DefaultConfig(), nil)
	entry := d("100")

	assert.True(t, gate.StopLoss(entry, strategy.Buy).Equal(d("95")))
	assert.True(t, gate.TakeProfit(entry, strategy.Buy).Equal(d("115")))
	assert.True(t, gate.StopLoss(entry, strategy.Sell).Equal(d("105")))
	assert.True(t, gate.TakeProfit(entry, strategy.Sell).Equal(d("85")))
}

func TestScore(t *testing.T) {
	gate := NewGate(DefaultConfig(), nil)

	assert.InDelta(t, 15+0.1*30+0.01*40, gate.Score(buy(1, 0.9), d("100")), 1e-9)
	assert.Equal(t, 100.0, gate.Score(buy(1, 0.9), decimal.Zero))
	assert.Equal(t, 100.0, gate.Score(buy(1000, 0), d("1")))
}

func TestStatus(t *testing.T) {
	gate := NewGate(DefaultConfig(), &fakeHistory{pl: d("-50"), trades: 2, lastHour: 3})
	st := gate.Status(d("1000"), now)

	assert.True(t, st.DailyLossWithinLimit)
	assert.True(t, st.DailyProfitLossPercent.Equal(d("-5")))
	assert.Equal(t, 3, st.TradesLastHour)
	assert.True(t, st.TradingFrequencyOK)
	assert.True(t, st.OverallAcceptable)

	gate = NewGate(DefaultConfig(), &fakeHistory{pl: d("-250"), trades: 2, lastHour: 12})
	st = gate.Status(d("1000"), now)
	assert.False(t, st.DailyLossWithinLimit)
	assert.False(t, st.TradingFrequencyOK)
	assert.False(t, st.OverallAcceptable)

	st = NewGate(DefaultConfig(), &fakeHistory{err: errors.New("boom")}).Status(d("1000"), now)
	assert.False(t, st.OverallAcceptable)
}
