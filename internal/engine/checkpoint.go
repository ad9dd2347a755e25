package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Vex788/zeus-trading-bot/internal/config"
	"github.com/Vex788/zeus-trading-bot/internal/state"
)

func (e *Engine) Checkpoint() state.Checkpoint {
	e.mu.Lock()
	mode, starting := e.mode, e.starting
	e.mu.Unlock()
	return state.Checkpoint{
		State:    e.state.Snapshot(),
		Mode:     string(mode),
		Balances: e.ledger.Balances(),
		Starting: starting,
		Learning: e.registry.Snapshot(),
	}
}

// RestoreCheckpoint loads a saved checkpoint. It must run before the first
// cycle; the lifecycle state itself is never restored and starts STOPPED.
func (e *Engine) RestoreCheckpoint(cp state.Checkpoint) error {
	if err := e.ledger.Restore(cp.Balances); err != nil {
		return fmt.Errorf("restore ledger: %w", err)
	}
	e.state.Restore(cp.State)
	for pair, p := range cp.Learning {
		e.registry.Restore(pair, p)
		e.metrics.SetParameters(pair, p)
	}

	e.mu.Lock()
	if cp.Mode != "" {
		mode, err := config.ParseMode(cp.Mode)
		if err != nil {
			e.mu.Unlock()
			return fmt.Errorf("restore mode: %w", err)
		}
		e.mode = mode
	}
	if cp.Starting.IsPositive() {
		e.starting = cp.Starting
	}
	if e.mode == config.ModeShadow {
		e.seedLedger()
	}
	mode, st := e.mode, e.status
	e.mu.Unlock()

	e.metrics.SetEngineState(string(st), string(mode))
	log.Info().
		Str("mode", string(mode)).
		Int("balances", len(cp.Balances)).
		Int("trades", len(cp.State.Trades)).
		Int("learning", len(cp.Learning)).
		Msg("checkpoint restored")
	return nil
}

// LoadLearning pulls stored parameters for every configured instrument.
// Missing entries keep their defaults; store errors are logged and skipped.
func (e *Engine) LoadLearning(ctx context.Context) int {
	loaded := 0
	for _, pair := range e.pairs {
		p, ok, err := e.learning.LoadLearningState(ctx, pair.String())
		if err != nil {
			log.Warn().Err(err).Str("pair", pair.String()).Msg("load learning state failed")
			continue
		}
		if !ok {
			continue
		}
		e.registry.Restore(pair.String(), p)
		e.metrics.SetParameters(pair.String(), p)
		loaded++
	}
	if loaded > 0 {
		log.Info().Int("pairs", loaded).Msg("learning state loaded")
	}
	return loaded
}
