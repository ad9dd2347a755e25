package app

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Vex788/zeus-trading-bot/internal/api"
	"github.com/Vex788/zeus-trading-bot/internal/config"
	"github.com/Vex788/zeus-trading-bot/internal/engine"
	"github.com/Vex788/zeus-trading-bot/internal/state"
	"github.com/Vex788/zeus-trading-bot/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

// App owns the long-running pieces of the bot and their shutdown order.
type App struct {
	cfg       config.Config
	engine    *engine.Engine
	server    *api.Server
	hub       *telemetry.Hub
	decisions *engine.DecisionLogger
}

func New(cfg config.Config, eng *engine.Engine, server *api.Server, hub *telemetry.Hub, decisions *engine.DecisionLogger) *App {
	return &App{cfg: cfg, engine: eng, server: server, hub: hub, decisions: decisions}
}

func (a *App) Engine() *engine.Engine { return a.engine }

// Restore loads the checkpoint if one exists, otherwise whatever learning
// state the configured store holds.
func (a *App) Restore(ctx context.Context) error {
	cp, err := state.Load(a.cfg.Engine.CheckpointPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Info().Str("path", a.cfg.Engine.CheckpointPath).Msg("no checkpoint, starting fresh")
		a.engine.LoadLearning(ctx)
		return nil
	case err != nil:
		return err
	}
	return a.engine.RestoreCheckpoint(cp)
}

// Run blocks until ctx is cancelled or a component fails, then shuts down
// and writes a final checkpoint.
func (a *App) Run(ctx context.Context) error {
	if err := a.Restore(ctx); err != nil {
		return err
	}
	if a.cfg.Engine.AutoStart {
		if err := a.engine.Start(); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return a.engine.Run(gctx)
	})
	g.Go(func() error {
		a.engine.ReconcileLoop(gctx, a.cfg.Engine.ReconcileInterval)
		return nil
	})
	g.Go(func() error {
		return a.server.Start(a.cfg.Server.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	log.Info().
		Str("run_id", a.engine.RunID()).
		Str("mode", string(a.engine.Mode())).
		Str("addr", a.cfg.Server.Addr).
		Bool("auto_start", a.cfg.Engine.AutoStart).
		Msg("bot started")

	err := g.Wait()
	if stopErr := a.engine.Stop(); stopErr != nil {
		log.Warn().Err(stopErr).Msg("engine stop failed")
	}
	if saveErr := state.Save(a.cfg.Engine.CheckpointPath, a.engine.Checkpoint()); saveErr != nil {
		log.Error().Err(saveErr).Msg("failed to save checkpoint")
	} else {
		log.Info().Str("path", a.cfg.Engine.CheckpointPath).Msg("checkpoint saved")
	}
	if closeErr := a.decisions.Close(); closeErr != nil {
		log.Error().Err(closeErr).Msg("failed to close decision logger")
	}
	log.Info().Msg("bot shutdown complete")
	return err
}
