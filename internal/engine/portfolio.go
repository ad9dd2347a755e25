package engine

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Vex788/zeus-trading-bot/internal/config"
	"github.com/Vex788/zeus-trading-bot/internal/ledger"
	"github.com/Vex788/zeus-trading-bot/internal/state"
	"github.com/Vex788/zeus-trading-bot/internal/telemetry"
)

var hundred = decimal.NewFromInt(100)

// Portfolio values holdings in quote currency at the last observed prices.
// Quote currencies are summed at par.
type Portfolio struct {
	Mode              config.Mode               `json:"mode"`
	Balances          []ledger.Balance          `json:"balances"`
	Positions         map[string]state.Position `json:"positions"`
	TotalValue        decimal.Decimal           `json:"total_value"`
	StartingValue     decimal.Decimal           `json:"starting_value"`
	ProfitLoss        decimal.Decimal           `json:"profit_loss"`
	ProfitLossPercent decimal.Decimal           `json:"profit_loss_percent"`
	RecentTrades      []state.Trade             `json:"recent_trades"`
	UpdatedAt         time.Time                 `json:"updated_at"`
}

const recentTrades = 10

func (e *Engine) Portfolio() Portfolio {
	e.mu.Lock()
	mode, starting := e.mode, e.starting
	e.mu.Unlock()

	snap := e.state.Snapshot()
	p := Portfolio{
		Mode:          mode,
		Positions:     snap.Positions,
		StartingValue: starting,
		RecentTrades:  e.state.Recent(recentTrades),
		UpdatedAt:     e.now(),
	}

	e.cycleMu.Lock()
	prices := make(map[string]decimal.Decimal, len(e.prices))
	for k, v := range e.prices {
		prices[k] = v
	}
	e.cycleMu.Unlock()

	if mode == config.ModeShadow {
		p.Balances = e.ledger.Balances()
		quotes := make(map[string]bool)
		for _, pair := range e.pairs {
			quotes[pair.Quote] = true
		}
		holdings := make(map[string]decimal.Decimal, len(p.Balances))
		for _, b := range p.Balances {
			holdings[b.Currency] = b.Balance
			if quotes[b.Currency] {
				p.TotalValue = p.TotalValue.Add(b.Balance)
			}
		}
		for _, pair := range e.pairs {
			if qty, ok := holdings[pair.Base]; ok && !quotes[pair.Base] {
				p.TotalValue = p.TotalValue.Add(qty.Mul(prices[pair.String()]))
			}
		}
		if starting.IsPositive() {
			p.ProfitLoss = p.TotalValue.Sub(starting)
			p.ProfitLossPercent = p.ProfitLoss.Div(starting).Mul(hundred).Round(4)
		}
		return p
	}

	currencies := make([]string, 0, len(snap.ProductionBalances))
	for c := range snap.ProductionBalances {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)
	for _, c := range currencies {
		amt := snap.ProductionBalances[c]
		p.Balances = append(p.Balances, ledger.Balance{Currency: c, Balance: amt, Available: amt})
		p.TotalValue = p.TotalValue.Add(amt)
	}
	for pair, pos := range snap.Positions {
		p.TotalValue = p.TotalValue.Add(pos.Qty.Mul(prices[pair]))
	}
	p.ProfitLoss, _, _ = e.state.DailyProfitLoss(startOfDay(p.UpdatedAt))
	if p.TotalValue.IsPositive() {
		p.ProfitLossPercent = p.ProfitLoss.Div(p.TotalValue).Mul(hundred).Round(4)
	}
	return p
}

func (e *Engine) publishPortfolio(mode config.Mode) {
	p := e.Portfolio()
	e.publish(telemetry.Event{
		Type: telemetry.PortfolioUpdate,
		Mode: string(mode),
		Data: map[string]any{
			"total_value":         p.TotalValue,
			"starting_value":      p.StartingValue,
			"profit_loss":         p.ProfitLoss,
			"profit_loss_percent": p.ProfitLossPercent,
			"balances":            p.Balances,
		},
	})
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (e *Engine) RecentTrades(n int) []state.Trade {
	return e.state.Recent(n)
}
