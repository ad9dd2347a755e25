package strategy

import (
	"github.com/Vex788/zeus-trading-bot/internal/learning"
	"github.com/Vex788/zeus-trading-bot/internal/md"
)

type Action string

const (
	Hold Action = "HOLD"
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

// Decision is the per-cycle trading verdict for one instrument.
type Decision struct {
	Action      Action  `json:"action"`
	Amount      float64 `json:"amount"`
	Confidence  float64 `json:"confidence"`
	Reason      string  `json:"reason"`
	ShouldTrade bool    `json:"should_trade"`
}

// Scores carries the weighted sub-signal totals behind a decision.
type Scores struct {
	Up         float64 `json:"up"`
	Down       float64 `json:"down"`
	Oversold   float64 `json:"oversold"`
	Overbought float64 `json:"overbought"`
	Adaptive   bool    `json:"adaptive"`
}

// Strategy turns a snapshot plus learned parameters into a decision and the
// prediction that the feedback loop will later grade. A nil params selects
// the cold-start policy.
type Strategy interface {
	Score(snap md.Snapshot, params *learning.Parameters) (Decision, learning.PredictionRecord, Scores)
}

type signals struct {
	rsiOversold      bool
	rsiOverbought    bool
	macdPositive     bool
	priceBelowLower  bool
	priceAboveUpper  bool
	priceAboveMiddle bool
}

func readSignals(s md.Snapshot, oversold, overbought float64) signals {
	return signals{
		rsiOversold:      s.RSI < oversold,
		rsiOverbought:    s.RSI > overbought,
		macdPositive:     s.MACD > 0,
		priceBelowLower:  s.Price < s.BBLower,
		priceAboveUpper:  s.Price > s.BBUpper,
		priceAboveMiddle: s.Price > s.BBMiddle,
	}
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func prediction(s md.Snapshot, up bool) learning.PredictionRecord {
	return learning.PredictionRecord{
		Pair:        s.Pair.String(),
		CreatedAt:   s.Timestamp,
		Price:       s.Price,
		PredictedUp: up,
	}
}
