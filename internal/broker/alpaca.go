package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Vex788/zeus-trading-bot/internal/strategy"
)

// Alpaca places crypto market orders through the Alpaca trading API.
type Alpaca struct {
	client *alpaca.Client
}

func NewAlpaca(apiKey, apiSecret, baseURL string) *Alpaca {
	opts := alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	}
	return &Alpaca{client: alpaca.NewClient(opts)}
}

func (c *Alpaca) PlaceOrder(ctx context.Context, req OrderRequest) (OrderRef, error) {
	if err := req.validate(); err != nil {
		return OrderRef{}, err
	}
	qty := req.Qty
	orderReq := alpaca.PlaceOrderRequest{
		Symbol:        req.Pair.Symbol("/"),
		Qty:           &qty,
		Side:          alpacaSide(req.Side),
		Type:          alpaca.Market,
		TimeInForce:   alpaca.GTC,
		ClientOrderID: req.ClientOrderID,
	}

	order, err := c.client.PlaceOrder(orderReq)
	if err != nil {
		log.Error().Err(err).Str("pair", req.Pair.String()).Str("side", string(req.Side)).Str("qty", qty.String()).Msg("alpaca place order failed")
		return OrderRef{}, fmt.Errorf("%w: alpaca: %v", ErrExecution, err)
	}

	log.Info().Str("order_id", order.ID).Str("pair", req.Pair.String()).Str("side", string(req.Side)).Str("qty", qty.String()).Str("status", string(order.Status)).Msg("alpaca order placed")
	return OrderRef{
		ID:            order.ID,
		ClientOrderID: order.ClientOrderID,
		Status:        string(order.Status),
	}, nil
}

// Balance returns account cash for fiat-like quotes and the position size
// for anything else.
func (c *Alpaca) Balance(ctx context.Context, currency string) (decimal.Decimal, error) {
	if isCash(currency) {
		acct, err := c.client.GetAccount()
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: alpaca account: %v", ErrExecution, err)
		}
		return acct.Cash, nil
	}
	pos, err := c.client.GetPosition(currency + "USD")
	if err != nil {
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("%w: alpaca position %s: %v", ErrExecution, currency, err)
	}
	return pos.Qty, nil
}

func alpacaSide(a strategy.Action) alpaca.Side {
	if a == strategy.Sell {
		return alpaca.Sell
	}
	return alpaca.Buy
}

func isCash(currency string) bool {
	switch strings.ToUpper(currency) {
	case "USD", "USDT", "USDC":
		return true
	}
	return false
}
