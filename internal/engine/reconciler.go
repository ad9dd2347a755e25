package engine

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Vex788/zeus-trading-bot/internal/config"
)

// ReconcileLoop refreshes broker balances for every quote currency while the
// engine is in production mode. It returns when ctx is cancelled.
func (e *Engine) ReconcileLoop(ctx context.Context, interval time.Duration) {
	if e.broker == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.reconcileOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.reconcileOnce(ctx)
		}
	}
}

func (e *Engine) reconcileOnce(ctx context.Context) {
	if e.Mode() != config.ModeProduction {
		return
	}
	for _, currency := range e.quoteCurrencies() {
		bal, err := e.syncBalance(ctx, currency)
		if err != nil {
			log.Error().Err(err).Str("currency", currency).Msg("reconcile balance failed")
			continue
		}
		log.Debug().Str("currency", currency).Str("balance", bal.String()).Msg("balance reconciled")
	}
}

func (e *Engine) quoteCurrencies() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range e.pairs {
		if !seen[p.Quote] {
			seen[p.Quote] = true
			out = append(out, p.Quote)
		}
	}
	sort.Strings(out)
	return out
}
