package telemetry

import (
	"context"
	"errors"
	"time"
)

type EventType string

const (
	BotStatus       EventType = "BOT_STATUS"
	MLPrediction    EventType = "ML_PREDICTION"
	TradeExecution  EventType = "TRADE_EXECUTION"
	PortfolioUpdate EventType = "PORTFOLIO_UPDATE"
	DecisionMade    EventType = "DECISION"
)

// Event is one dashboard/stream update. Data is JSON-encoded as-is.
type Event struct {
	Type      EventType `json:"type"`
	Pair      string    `json:"pair,omitempty"`
	Mode      string    `json:"mode,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Publisher pushes events to observers. Failures are reported but never
// affect trading.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Fanout publishes to every target and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
