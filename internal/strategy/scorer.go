package strategy

import (
	"fmt"

	"github.com/Vex788/zeus-trading-bot/internal/learning"
	"github.com/Vex788/zeus-trading-bot/internal/md"
)

const (
	ColdStartOversold   = 30.0
	ColdStartOverbought = 70.0

	strongConfidence   = 0.8
	moderateConfidence = 0.65
	neutralConfidence  = 0.5
)

// Scorer is the weighted indicator model. Amount is the order size attached
// to every Buy/Sell decision.
type Scorer struct {
	Amount float64
}

func NewScorer(amount float64) Scorer {
	return Scorer{Amount: amount}
}

func (sc Scorer) Score(snap md.Snapshot, params *learning.Parameters) (Decision, learning.PredictionRecord, Scores) {
	if params == nil {
		return sc.coldStart(snap)
	}
	return sc.adaptive(snap, params)
}

func (sc Scorer) adaptive(snap md.Snapshot, p *learning.Parameters) (Decision, learning.PredictionRecord, Scores) {
	sig := readSignals(snap, p.Oversold, p.Overbought)
	up := b2f(sig.rsiOversold)*p.Up.RSI +
		b2f(sig.macdPositive)*p.Up.MACD +
		b2f(sig.priceBelowLower)*p.Up.Bollinger
	down := b2f(sig.rsiOverbought)*p.Down.RSI +
		b2f(!sig.macdPositive)*p.Down.MACD +
		b2f(sig.priceAboveUpper)*p.Down.Bollinger

	scores := Scores{Up: up, Down: down, Oversold: p.Oversold, Overbought: p.Overbought, Adaptive: true}

	switch {
	case up > down:
		return sc.directional(Buy, up, down, snap, sig), prediction(snap, true), scores
	case down > up:
		return sc.directional(Sell, down, up, snap, sig), prediction(snap, false), scores
	}

	// tie: the trend relative to the middle band decides the prediction, but
	// the weights gave no edge so nothing is traded
	d := Decision{
		Action:     Hold,
		Confidence: neutralConfidence,
		Reason:     fmt.Sprintf("weighted tie %.2f, price above middle band: %t", up, sig.priceAboveMiddle),
	}
	return d, prediction(snap, sig.priceAboveMiddle), scores
}

func (sc Scorer) directional(action Action, dominant, other float64, snap md.Snapshot, sig signals) Decision {
	return Decision{
		Action:      action,
		Amount:      sc.Amount,
		Confidence:  dominant / (dominant + other),
		Reason:      fmt.Sprintf("weighted %s %.2f vs %.2f (rsi %.1f, macd %.4f)", action, dominant, other, snap.RSI, snap.MACD),
		ShouldTrade: true,
	}
}

// coldStart is the fixed-threshold priority ladder used before an
// instrument has learned parameters.
func (sc Scorer) coldStart(snap md.Snapshot) (Decision, learning.PredictionRecord, Scores) {
	sig := readSignals(snap, ColdStartOversold, ColdStartOverbought)
	scores := Scores{Oversold: ColdStartOversold, Overbought: ColdStartOverbought}

	strongBuy := (sig.rsiOversold && sig.macdPositive) || (sig.priceBelowLower && sig.macdPositive)
	strongSell := (sig.rsiOverbought && !sig.macdPositive) || (sig.priceAboveUpper && !sig.macdPositive)
	moderateBuy := (snap.RSI < 40 && sig.macdPositive) || (snap.Price < snap.BBMiddle && snap.MACD > -0.5)
	moderateSell := (snap.RSI > 60 && !sig.macdPositive) || (sig.priceAboveMiddle && snap.MACD < 0.5)

	trade := func(action Action, confidence float64, reason string) (Decision, learning.PredictionRecord, Scores) {
		d := Decision{Action: action, Amount: sc.Amount, Confidence: confidence, Reason: reason, ShouldTrade: true}
		return d, prediction(snap, action == Buy), scores
	}

	switch {
	case strongBuy:
		return trade(Buy, strongConfidence, "strong buy: oversold or below lower band with positive macd")
	case strongSell:
		return trade(Sell, strongConfidence, "strong sell: overbought or above upper band with negative macd")
	case moderateBuy:
		return trade(Buy, moderateConfidence, "moderate buy")
	case moderateSell:
		return trade(Sell, moderateConfidence, "moderate sell")
	}
	d := Decision{
		Action:     Hold,
		Confidence: neutralConfidence,
		Reason:     fmt.Sprintf("no signal, following trend (above middle band: %t)", sig.priceAboveMiddle),
	}
	return d, prediction(snap, sig.priceAboveMiddle), scores
}
