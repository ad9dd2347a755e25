package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Vex788/zeus-trading-bot/internal/broker"
	"github.com/Vex788/zeus-trading-bot/internal/config"
	"github.com/Vex788/zeus-trading-bot/internal/ledger"
	"github.com/Vex788/zeus-trading-bot/internal/md"
	"github.com/Vex788/zeus-trading-bot/internal/state"
	"github.com/Vex788/zeus-trading-bot/internal/strategy"
	"github.com/Vex788/zeus-trading-bot/internal/telemetry"
)

const (
	virtualConfidence = 0.9
	brokerConfidence  = 0.8
)

// CycleReport summarizes one pass over the instrument set.
type CycleReport struct {
	Ran      bool               `json:"ran"`
	State    State              `json:"state"`
	Mode     config.Mode        `json:"mode"`
	Started  time.Time          `json:"started"`
	Duration time.Duration      `json:"duration"`
	Outcomes map[string]Outcome `json:"outcomes,omitempty"`
}

// RunCycle processes every instrument once. It is a no-op unless the engine
// is running. The mode is fixed for the whole cycle, and once dispatched each
// iteration runs to completion even if ctx is cancelled or the engine is
// paused meanwhile.
func (e *Engine) RunCycle(ctx context.Context) CycleReport {
	e.mu.Lock()
	report := CycleReport{State: e.status, Mode: e.mode}
	e.mu.Unlock()
	if report.State != StateRunning {
		log.Debug().Str("state", string(report.State)).Msg("cycle skipped")
		return report
	}

	report.Ran = true
	report.Started = e.now()
	work := context.WithoutCancel(ctx)
	results := make([]Outcome, len(e.pairs))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, pair := range e.pairs {
		g.Go(func() error {
			results[i] = e.processInstrument(work, pair, report.Mode)
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = e.now().Sub(report.Started)
	report.Outcomes = make(map[string]Outcome, len(results))
	failed := 0
	for i, out := range results {
		report.Outcomes[e.pairs[i].String()] = out
		if out == OutcomeFailed {
			failed++
		}
	}
	result := "ok"
	if failed > 0 {
		result = "partial"
	}
	e.metrics.RecordCycle(result, report.Duration)

	e.cycleMu.Lock()
	e.lastCycle = report
	e.cycleMu.Unlock()

	log.Info().
		Str("mode", string(report.Mode)).
		Dur("duration", report.Duration).
		Int("instruments", len(results)).
		Int("failed", failed).
		Msg("cycle complete")

	e.publishPortfolio(report.Mode)
	return report
}

// processInstrument never panics and never returns an error; every failure
// is folded into the outcome and the decision log.
func (e *Engine) processInstrument(ctx context.Context, pair md.Pair, mode config.Mode) (out Outcome) {
	rec := Decision{
		RunID:     e.runID,
		Timestamp: e.now(),
		Pair:      pair.String(),
		Mode:      string(mode),
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("pair", pair.String()).Interface("panic", r).Msg("instrument iteration panicked")
			out = OutcomeFailed
			rec.RejectReason = fmt.Sprintf("panic: %v", r)
		}
		rec.Result = out
		e.decisions.Append(rec)
		e.metrics.RecordOutcome(pair.String(), string(out))
	}()

	snap, err := callWithTimeout(ctx, e.callTimeout, func(ctx context.Context) (md.Snapshot, error) {
		return e.provider.Snapshot(ctx, pair)
	})
	if err == nil {
		err = snap.Validate()
	}
	if err != nil {
		rec.RejectReason = err.Error()
		if errors.Is(err, md.ErrUnavailable) {
			log.Warn().Err(err).Str("pair", pair.String()).Msg("market data unavailable, skipping")
			return OutcomeSkipped
		}
		log.Error().Err(err).Str("pair", pair.String()).Msg("market data fetch failed")
		return OutcomeFailed
	}
	rec.BarTime = snap.Timestamp
	rec.Price = snap.Price
	e.observePrice(pair, snap.Price)

	decision := e.score(ctx, pair, snap)
	rec.Intent = decision.Action
	rec.Confidence = decision.Confidence
	rec.Reason = decision.Reason
	rec.Adaptive = decision.adaptive

	if !decision.ShouldTrade {
		log.Debug().Str("pair", pair.String()).Str("reason", decision.Reason).Msg("hold")
		return OutcomeHold
	}
	return e.execute(ctx, pair, mode, snap, decision.Decision, &rec)
}

type scored struct {
	strategy.Decision
	adaptive bool
}

// score runs the decision, prediction and feedback steps while holding the
// instrument's learning entry.
func (e *Engine) score(ctx context.Context, pair md.Pair, snap md.Snapshot) scored {
	entry := e.registry.Get(pair.String())
	entry.Lock()
	defer entry.Unlock()

	params := entry.Parameters()
	if !entry.Learned() {
		params = nil
	}
	decision, prediction, scores := e.strategy.Score(snap, params)
	entry.Record(prediction)

	e.publish(telemetry.Event{
		Type: telemetry.MLPrediction,
		Pair: pair.String(),
		Data: map[string]any{
			"decision":     decision,
			"scores":       scores,
			"predicted_up": prediction.PredictedUp,
			"price":        snap.Price,
		},
	})

	evals := entry.Evaluate(e.now(), snap.Price)
	if len(evals) > 0 {
		learned := *entry.Parameters()
		correct := 0
		for _, ev := range evals {
			if ev.Correct {
				correct++
			}
		}
		log.Info().
			Str("pair", pair.String()).
			Int("evaluated", len(evals)).
			Int("correct", correct).
			Float64("oversold", learned.Oversold).
			Float64("overbought", learned.Overbought).
			Msg("predictions graded")
		e.metrics.SetParameters(pair.String(), learned)
		_, err := callWithTimeout(ctx, e.callTimeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, e.learning.PersistLearningState(ctx, pair.String(), learned)
		})
		if err != nil {
			log.Error().Err(err).Str("pair", pair.String()).Msg("persist learning state failed")
		}
	}
	return scored{Decision: decision, adaptive: scores.Adaptive}
}

// execute gates, sizes and fills one tradeable decision. Persistence and
// notifications happen after the execution lock is released.
func (e *Engine) execute(ctx context.Context, pair md.Pair, mode config.Mode, snap md.Snapshot, d strategy.Decision, rec *Decision) Outcome {
	trade, out := e.fill(ctx, pair, mode, snap, d, rec)
	if out != OutcomeExecuted {
		return out
	}

	_, err := callWithTimeout(ctx, e.callTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.trades.PersistTrade(ctx, trade)
	})
	if err != nil {
		log.Error().Err(err).Str("trade_id", trade.ID).Msg("persist trade failed")
	}
	e.metrics.RecordTrade(trade.Pair, string(trade.Action), trade.Mode)
	e.publish(telemetry.Event{
		Type: telemetry.TradeExecution,
		Pair: trade.Pair,
		Mode: trade.Mode,
		Data: trade,
	})
	log.Info().
		Str("pair", trade.Pair).
		Str("action", string(trade.Action)).
		Str("amount", trade.Amount.String()).
		Str("price", trade.Price.String()).
		Str("order_id", trade.OrderID).
		Bool("virtual", trade.Virtual).
		Msg("trade executed")
	return OutcomeExecuted
}

func (e *Engine) fill(ctx context.Context, pair md.Pair, mode config.Mode, snap md.Snapshot, d strategy.Decision, rec *Decision) (state.Trade, Outcome) {
	e.execMu.Lock()
	defer e.execMu.Unlock()

	now := e.now()
	balance, err := e.balance(ctx, pair, mode)
	if err != nil {
		rec.RejectReason = err.Error()
		log.Error().Err(err).Str("pair", pair.String()).Msg("balance unavailable")
		return state.Trade{}, OutcomeFailed
	}

	res := e.gate.Evaluate(d, balance, now)
	rec.Check = string(res.Check)
	rec.RiskScore = e.gate.Score(d, balance)
	if !res.Allowed {
		rec.RejectReason = res.Reason
		e.metrics.RecordRejection(pair.String(), string(res.Check))
		return state.Trade{}, OutcomeRejected
	}
	rec.Amount = res.Amount
	if res.Amount.IsZero() {
		rec.RejectReason = "sized below minimum trade size"
		return state.Trade{}, OutcomeTooSmall
	}

	price := decimal.NewFromFloat(snap.Price)
	trade := state.Trade{
		Pair:       pair.String(),
		Action:     d.Action,
		Amount:     res.Amount,
		Price:      price,
		Mode:       string(mode),
		Status:     "FILLED",
		Confidence: d.Confidence,
		Reason:     d.Reason,
		StopLoss:   e.gate.StopLoss(price, d.Action),
		TakeProfit: e.gate.TakeProfit(price, d.Action),
		ExecutedAt: now,
	}

	switch mode {
	case config.ModeShadow:
		if err := e.ledger.ApplyTrade(pair, d.Action, res.Amount, price); err != nil {
			rec.RejectReason = err.Error()
			if errors.Is(err, ledger.ErrInsufficientFunds) {
				log.Warn().Err(err).Str("pair", pair.String()).Msg("virtual trade declined")
				return state.Trade{}, OutcomeInsufficientFunds
			}
			log.Error().Err(err).Str("pair", pair.String()).Msg("virtual trade failed")
			return state.Trade{}, OutcomeFailed
		}
		trade.ID = "VIRTUAL_" + uuid.NewString()[:8]
		trade.OrderID = trade.ID
		trade.Virtual = true
		rec.ExecutionConfidence = virtualConfidence

	case config.ModeProduction:
		if e.broker == nil {
			rec.RejectReason = "no broker configured"
			return state.Trade{}, OutcomeOrderFailed
		}
		req := broker.OrderRequest{
			Pair:          pair,
			Side:          d.Action,
			Qty:           res.Amount,
			ClientOrderID: e.nextClientOrderID(),
		}
		ref, err := callWithTimeout(ctx, e.callTimeout, func(ctx context.Context) (broker.OrderRef, error) {
			return e.broker.PlaceOrder(ctx, req)
		})
		if err != nil {
			rec.RejectReason = err.Error()
			rec.ClientOrderID = req.ClientOrderID
			log.Error().Err(err).Str("pair", pair.String()).Str("client_order_id", req.ClientOrderID).Msg("order failed")
			return state.Trade{}, OutcomeOrderFailed
		}
		trade.ID = ref.ID
		trade.OrderID = ref.ID
		trade.ClientOrderID = ref.ClientOrderID
		if ref.Status != "" {
			trade.Status = ref.Status
		}
		rec.ExecutionConfidence = brokerConfidence

	default:
		rec.RejectReason = fmt.Sprintf("unknown mode %q", mode)
		return state.Trade{}, OutcomeFailed
	}

	trade = e.state.RecordTrade(trade)
	rec.OrderID = trade.OrderID
	if rec.ClientOrderID == "" {
		rec.ClientOrderID = trade.ClientOrderID
	}
	return trade, OutcomeExecuted
}

// balance is the quote funds available to size against in mode.
func (e *Engine) balance(ctx context.Context, pair md.Pair, mode config.Mode) (decimal.Decimal, error) {
	if mode == config.ModeShadow {
		return e.ledger.Balance(pair.Quote).Available, nil
	}
	if bal, ok := e.state.ProductionBalance(pair.Quote); ok {
		return bal, nil
	}
	return e.syncBalance(ctx, pair.Quote)
}

func (e *Engine) syncBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	if e.broker == nil {
		return decimal.Zero, fmt.Errorf("%w: no broker configured", broker.ErrExecution)
	}
	bal, err := callWithTimeout(ctx, e.callTimeout, func(ctx context.Context) (decimal.Decimal, error) {
		return e.broker.Balance(ctx, currency)
	})
	if err != nil {
		return decimal.Zero, err
	}
	e.state.SetProductionBalance(currency, bal, e.now())
	return bal, nil
}

func (e *Engine) observePrice(pair md.Pair, price float64) {
	e.metrics.RecordPrice(pair.String(), price)
	e.cycleMu.Lock()
	e.prices[pair.String()] = decimal.NewFromFloat(price)
	e.cycleMu.Unlock()
}
