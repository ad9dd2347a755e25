package storage

import (
	"context"
	"errors"

	"github.com/Vex788/zeus-trading-bot/internal/learning"
	"github.com/Vex788/zeus-trading-bot/internal/state"
)

// TradeSink durably records executed trades.
type TradeSink interface {
	PersistTrade(ctx context.Context, t state.Trade) error
}

// LearningStore durably records per-instrument learning parameters.
type LearningStore interface {
	PersistLearningState(ctx context.Context, pair string, p learning.Parameters) error
	// LoadLearningState reports ok=false when nothing is stored for pair.
	LoadLearningState(ctx context.Context, pair string) (p learning.Parameters, ok bool, err error)
}

type Noop struct{}

func (Noop) PersistTrade(context.Context, state.Trade) error { return nil }

func (Noop) PersistLearningState(context.Context, string, learning.Parameters) error { return nil }

func (Noop) LoadLearningState(context.Context, string) (learning.Parameters, bool, error) {
	return learning.Parameters{}, false, nil
}

// Trades writes to every sink and joins their errors.
type Trades []TradeSink

func (ts Trades) PersistTrade(ctx context.Context, t state.Trade) error {
	var errs []error
	for _, s := range ts {
		if s == nil {
			continue
		}
		if err := s.PersistTrade(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
