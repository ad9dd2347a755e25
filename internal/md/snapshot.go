package md

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable marks a snapshot that cannot be produced this cycle.
var ErrUnavailable = errors.New("market data unavailable")

// Snapshot is one bar's worth of derived indicator values for a pair.
type Snapshot struct {
	Pair      Pair      `json:"pair"`
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	RSI       float64   `json:"rsi"`
	MACD      float64   `json:"macd"`
	BBUpper   float64   `json:"bb_upper"`
	BBMiddle  float64   `json:"bb_middle"`
	BBLower   float64   `json:"bb_lower"`
}

// Validate rejects snapshots that would feed nonsense into the scorer.
func (s Snapshot) Validate() error {
	if s.Price <= 0 {
		return fmt.Errorf("%w: non-positive price %.8f", ErrUnavailable, s.Price)
	}
	if s.RSI < 0 || s.RSI > 100 {
		return fmt.Errorf("%w: rsi %.2f out of range", ErrUnavailable, s.RSI)
	}
	if s.BBUpper < s.BBMiddle || s.BBMiddle < s.BBLower {
		return fmt.Errorf("%w: bollinger bands out of order", ErrUnavailable)
	}
	return nil
}

// Provider produces indicator snapshots. Implementations return an error
// wrapping ErrUnavailable when no usable data exists for the pair.
type Provider interface {
	Snapshot(ctx context.Context, pair Pair) (Snapshot, error)
}
