package broker

import (
	"context"
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Vex788/zeus-trading-bot/internal/strategy"
)

// Binance places spot market orders on Binance.
type Binance struct {
	client *binance.Client
}

func NewBinance(client *binance.Client) *Binance {
	return &Binance{client: client}
}

func (c *Binance) PlaceOrder(ctx context.Context, req OrderRequest) (OrderRef, error) {
	if err := req.validate(); err != nil {
		return OrderRef{}, err
	}
	resp, err := c.client.NewCreateOrderService().
		Symbol(req.Pair.Symbol("")).
		Side(binanceSide(req.Side)).
		Type(binance.OrderTypeMarket).
		Quantity(req.Qty.String()).
		NewClientOrderID(req.ClientOrderID).
		Do(ctx)
	if err != nil {
		log.Error().Err(err).Str("pair", req.Pair.String()).Str("side", string(req.Side)).Str("qty", req.Qty.String()).Msg("binance place order failed")
		return OrderRef{}, fmt.Errorf("%w: binance: %v", ErrExecution, err)
	}

	log.Info().Int64("order_id", resp.OrderID).Str("pair", req.Pair.String()).Str("side", string(req.Side)).Str("qty", req.Qty.String()).Str("status", string(resp.Status)).Msg("binance order placed")
	return OrderRef{
		ID:            strconv.FormatInt(resp.OrderID, 10),
		ClientOrderID: resp.ClientOrderID,
		Status:        string(resp.Status),
	}, nil
}

func (c *Binance) Balance(ctx context.Context, currency string) (decimal.Decimal, error) {
	account, err := c.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: binance account: %v", ErrExecution, err)
	}
	return freeBalance(account.Balances, currency)
}

func freeBalance(balances []binance.Balance, currency string) (decimal.Decimal, error) {
	for _, b := range balances {
		if b.Asset != currency {
			continue
		}
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: binance balance %s: %v", ErrExecution, currency, err)
		}
		return free, nil
	}
	return decimal.Zero, nil
}

func binanceSide(a strategy.Action) binance.SideType {
	if a == strategy.Sell {
		return binance.SideTypeSell
	}
	return binance.SideTypeBuy
}
