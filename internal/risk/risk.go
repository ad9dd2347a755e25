package risk

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Vex788/zeus-trading-bot/internal/strategy"
)

// ErrRejected wraps every gate rejection.
var ErrRejected = errors.New("trade rejected by risk gate")

type Check string

const (
	CheckNone         Check = ""
	CheckNotTradeable Check = "not_tradeable"
	CheckDailyLoss    Check = "daily_loss"
	CheckPositionSize Check = "position_size"
	CheckConfidence   Check = "confidence"
	CheckFrequency    Check = "frequency"
	CheckInternal     Check = "internal"
)

const sizeScale = 8

var (
	hundred = decimal.NewFromInt(100)

	tierLarge  = decimal.RequireFromString("0.5")
	tierMedium = decimal.RequireFromString("0.1")
)

const (
	minConfidenceBase   = 0.6
	minConfidenceMedium = 0.7
	minConfidenceLarge  = 0.8
)

type Config struct {
	MaxPositionSizePercent decimal.Decimal
	StopLossPercent        decimal.Decimal
	TakeProfitPercent      decimal.Decimal
	MaxDailyLossPercent    decimal.Decimal
	MaxTradesPerHour       int
	MinTradeSize           decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		MaxPositionSizePercent: decimal.NewFromInt(10),
		StopLossPercent:        decimal.NewFromInt(5),
		TakeProfitPercent:      decimal.NewFromInt(15),
		MaxDailyLossPercent:    decimal.NewFromInt(20),
		MaxTradesPerHour:       10,
		MinTradeSize:           decimal.RequireFromString("0.001"),
	}
}

// History is the executed-trade view the gate needs.
type History interface {
	// DailyProfitLoss sums realized P/L of trades at or after since and
	// reports how many trades contributed.
	DailyProfitLoss(since time.Time) (decimal.Decimal, int, error)
	TradesSince(since time.Time) (int, error)
}

// Result is the gate's verdict. On approval Amount holds the sized order.
type Result struct {
	Allowed bool            `json:"allowed"`
	Check   Check           `json:"check,omitempty"`
	Reason  string          `json:"reason"`
	Amount  decimal.Decimal `json:"amount"`
}

// Err is nil on approval and wraps ErrRejected otherwise.
func (r Result) Err() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s: %s", ErrRejected, r.Check, r.Reason)
}

func reject(check Check, format string, args ...any) Result {
	return Result{Check: check, Reason: fmt.Sprintf(format, args...)}
}

type Gate struct {
	cfg     Config
	history History
}

func NewGate(cfg Config, history History) *Gate {
	return &Gate{cfg: cfg, history: history}
}

// Evaluate runs the daily-loss, position-size, confidence and frequency
// checks in that order and stops at the first failure.
func (g *Gate) Evaluate(d strategy.Decision, balance decimal.Decimal, now time.Time) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = reject(CheckInternal, "panic: %v", r)
		}
		ev := log.Info()
		if !res.Allowed {
			ev = log.Warn()
		}
		ev.Str("action", string(d.Action)).
			Float64("amount", d.Amount).
			Float64("confidence", d.Confidence).
			Str("balance", balance.String()).
			Bool("allowed", res.Allowed).
			Str("check", string(res.Check)).
			Str("reason", res.Reason).
			Msg("risk evaluation")
	}()

	if !d.ShouldTrade || d.Action == strategy.Hold {
		return reject(CheckNotTradeable, "decision is %s", d.Action)
	}
	if g.history == nil {
		return reject(CheckInternal, "no trade history")
	}
	amount := decimal.NewFromFloat(d.Amount)

	pl, trades, err := g.history.DailyProfitLoss(startOfDay(now))
	if err != nil {
		return reject(CheckInternal, "daily profit/loss: %v", err)
	}
	if trades > 0 {
		limit := balance.Mul(g.cfg.MaxDailyLossPercent).Div(hundred).Neg()
		if pl.LessThan(limit) {
			return reject(CheckDailyLoss, "daily P/L %s below limit %s", pl.StringFixed(2), limit.StringFixed(2))
		}
	}

	maxSize := g.maxPositionSize(balance)
	if !amount.IsPositive() || amount.GreaterThan(maxSize) {
		return reject(CheckPositionSize, "amount %s exceeds max position %s", amount, maxSize)
	}

	if minConf := MinConfidence(amount); d.Confidence < minConf {
		return reject(CheckConfidence, "confidence %.3f below %.2f", d.Confidence, minConf)
	}

	count, err := g.history.TradesSince(now.Add(-time.Hour))
	if err != nil {
		return reject(CheckInternal, "trade frequency: %v", err)
	}
	if count >= g.cfg.MaxTradesPerHour {
		return reject(CheckFrequency, "%d trades in the last hour, limit %d", count, g.cfg.MaxTradesPerHour)
	}

	return Result{
		Allowed: true,
		Reason:  "approved",
		Amount:  g.PositionSize(amount, balance),
	}
}

func (g *Gate) IsTradeAllowed(d strategy.Decision, balance decimal.Decimal, now time.Time) bool {
	return g.Evaluate(d, balance, now).Allowed
}

// MinConfidence is the size-tiered confidence floor.
func MinConfidence(amount decimal.Decimal) float64 {
	switch {
	case amount.GreaterThan(tierLarge):
		return minConfidenceLarge
	case amount.GreaterThan(tierMedium):
		return minConfidenceMedium
	default:
		return minConfidenceBase
	}
}

func (g *Gate) maxPositionSize(balance decimal.Decimal) decimal.Decimal {
	return balance.Mul(g.cfg.MaxPositionSizePercent).Div(hundred)
}

// PositionSize caps requested at the position limit. Anything under the
// minimum trade size comes back as exactly zero.
func (g *Gate) PositionSize(requested, balance decimal.Decimal) decimal.Decimal {
	size := decimal.Min(requested, g.maxPositionSize(balance)).Round(sizeScale)
	if size.LessThan(g.cfg.MinTradeSize) {
		return decimal.Zero
	}
	return size
}

func (g *Gate) StopLoss(entry decimal.Decimal, action strategy.Action) decimal.Decimal {
	return offset(entry, g.cfg.StopLossPercent, action != strategy.Buy)
}

func (g *Gate) TakeProfit(entry decimal.Decimal, action strategy.Action) decimal.Decimal {
	return offset(entry, g.cfg.TakeProfitPercent, action == strategy.Buy)
}

func offset(entry, percent decimal.Decimal, above bool) decimal.Decimal {
	frac := percent.Div(hundred)
	if above {
		return entry.Mul(decimal.NewFromInt(1).Add(frac))
	}
	return entry.Mul(decimal.NewFromInt(1).Sub(frac))
}

// Score rates a decision from 0 (safe) to 100 (do not trade).
func (g *Gate) Score(d strategy.Decision, balance decimal.Decimal) float64 {
	if !balance.IsPositive() {
		return 100
	}
	ratio, _ := decimal.NewFromFloat(d.Amount).Div(balance).Float64()
	score := ratio*40 + (1-d.Confidence)*30 + 15
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return score
}

// Status summarizes the daily-loss and frequency constraints.
type Status struct {
	DailyLossWithinLimit   bool            `json:"daily_loss_within_limit"`
	DailyProfitLoss        decimal.Decimal `json:"daily_profit_loss"`
	DailyProfitLossPercent decimal.Decimal `json:"daily_profit_loss_percent"`
	TradesLastHour         int             `json:"trades_last_hour"`
	TradingFrequencyOK     bool            `json:"trading_frequency_ok"`
	OverallAcceptable      bool            `json:"overall_acceptable"`
}

// Status never errors; a failed history read reports as not acceptable.
func (g *Gate) Status(balance decimal.Decimal, now time.Time) Status {
	var st Status
	if g.history == nil {
		return st
	}
	pl, trades, err := g.history.DailyProfitLoss(startOfDay(now))
	if err != nil {
		log.Error().Err(err).Msg("risk status: daily profit/loss")
		return st
	}
	st.DailyProfitLoss = pl
	if balance.IsPositive() {
		st.DailyProfitLossPercent = pl.Div(balance).Mul(hundred).Round(4)
	}
	limit := balance.Mul(g.cfg.MaxDailyLossPercent).Div(hundred).Neg()
	st.DailyLossWithinLimit = trades == 0 || !pl.LessThan(limit)

	count, err := g.history.TradesSince(now.Add(-time.Hour))
	if err != nil {
		log.Error().Err(err).Msg("risk status: trade frequency")
		return st
	}
	st.TradesLastHour = count
	st.TradingFrequencyOK = count < g.cfg.MaxTradesPerHour
	st.OverallAcceptable = st.DailyLossWithinLimit && st.TradingFrequencyOK
	return st
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
