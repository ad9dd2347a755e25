package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Vex788/zeus-trading-bot/internal/md"
	"github.com/Vex788/zeus-trading-bot/internal/strategy"
)

// ErrExecution wraps every failure to place or query an order.
var ErrExecution = errors.New("order execution failed")

type OrderRequest struct {
	Pair          md.Pair
	Side          strategy.Action
	Qty           decimal.Decimal
	ClientOrderID string
}

func (r OrderRequest) validate() error {
	if r.Side != strategy.Buy && r.Side != strategy.Sell {
		return fmt.Errorf("%w: unsupported side %q", ErrExecution, r.Side)
	}
	if !r.Qty.IsPositive() {
		return fmt.Errorf("%w: non-positive quantity %s", ErrExecution, r.Qty)
	}
	return nil
}

type OrderRef struct {
	ID            string
	ClientOrderID string
	Status        string
}

// Broker is the production execution venue.
type Broker interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderRef, error)
	// Balance reports the free amount of currency on the account.
	Balance(ctx context.Context, currency string) (decimal.Decimal, error)
}
