package state

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Vex788/zeus-trading-bot/internal/strategy"
)

// journalWindow bounds how long executed trades stay in memory; the gate
// only looks back one day.
const journalWindow = 48 * time.Hour

type Position struct {
	Qty      decimal.Decimal `json:"qty"`
	AvgEntry decimal.Decimal `json:"avg_entry"`
}

// Trade is one executed order, real or virtual.
type Trade struct {
	ID            string          `json:"id"`
	Pair          string          `json:"pair"`
	Action        strategy.Action `json:"action"`
	Amount        decimal.Decimal `json:"amount"`
	Price         decimal.Decimal `json:"price"`
	Mode          string          `json:"mode"`
	Virtual       bool            `json:"virtual"`
	OrderID       string          `json:"order_id"`
	ClientOrderID string          `json:"client_order_id,omitempty"`
	Status        string          `json:"status"`
	Confidence    float64         `json:"confidence"`
	Reason        string          `json:"reason"`
	StopLoss      decimal.Decimal `json:"stop_loss"`
	TakeProfit    decimal.Decimal `json:"take_profit"`
	RealizedPL    decimal.Decimal `json:"realized_pl"`
	ExecutedAt    time.Time       `json:"executed_at"`
}

type Snapshot struct {
	Positions         map[string]Position `json:"positions"`
	Trades            []Trade             `json:"trades"`
	LastTradeTime     time.Time           `json:"last_trade_time"`
	// ProductionBalances are the last broker-reported free balances by currency.
	ProductionBalances map[string]decimal.Decimal `json:"production_balances,omitempty"`
	BalanceSyncedAt    time.Time                  `json:"balance_synced_at"`
}

type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

func NewStore() *Store {
	return &Store{
		snapshot: Snapshot{
			Positions: map[string]Position{},
		},
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

func (s *Store) copyLocked() Snapshot {
	out := s.snapshot
	out.Positions = make(map[string]Position, len(s.snapshot.Positions))
	for k, v := range s.snapshot.Positions {
		out.Positions[k] = v
	}
	out.Trades = append([]Trade(nil), s.snapshot.Trades...)
	out.ProductionBalances = make(map[string]decimal.Decimal, len(s.snapshot.ProductionBalances))
	for k, v := range s.snapshot.ProductionBalances {
		out.ProductionBalances[k] = v
	}
	return out
}

func (s *Store) Restore(snapshot Snapshot) {
	if snapshot.Positions == nil {
		snapshot.Positions = map[string]Position{}
	}
	sort.SliceStable(snapshot.Trades, func(i, j int) bool {
		return snapshot.Trades[i].ExecutedAt.Before(snapshot.Trades[j].ExecutedAt)
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snapshot
}

// RecordTrade books an execution against the pair's position and returns the
// trade with its realized P/L filled in. Buys realize nothing; sells realize
// against the average entry of the open long.
func (s *Store) RecordTrade(t Trade) Trade {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.snapshot.Positions[t.Pair]
	switch t.Action {
	case strategy.Buy:
		qty := pos.Qty.Add(t.Amount)
		if qty.IsPositive() {
			pos.AvgEntry = pos.Qty.Mul(pos.AvgEntry).Add(t.Amount.Mul(t.Price)).Div(qty)
		}
		pos.Qty = qty
		t.RealizedPL = decimal.Zero
	case strategy.Sell:
		closed := decimal.Min(t.Amount, decimal.Max(pos.Qty, decimal.Zero))
		t.RealizedPL = t.Price.Sub(pos.AvgEntry).Mul(closed)
		pos.Qty = pos.Qty.Sub(closed)
		if pos.Qty.IsZero() {
			pos.AvgEntry = decimal.Zero
		}
	}
	s.snapshot.Positions[t.Pair] = pos

	s.snapshot.Trades = append(s.snapshot.Trades, t)
	if t.ExecutedAt.After(s.snapshot.LastTradeTime) {
		s.snapshot.LastTradeTime = t.ExecutedAt
	}
	s.pruneLocked(t.ExecutedAt.Add(-journalWindow))
	return t
}

func (s *Store) pruneLocked(before time.Time) {
	i := sort.Search(len(s.snapshot.Trades), func(i int) bool {
		return !s.snapshot.Trades[i].ExecutedAt.Before(before)
	})
	if i > 0 {
		s.snapshot.Trades = append([]Trade(nil), s.snapshot.Trades[i:]...)
	}
}

// DailyProfitLoss implements risk.History.
func (s *Store) DailyProfitLoss(since time.Time) (decimal.Decimal, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	n := 0
	for _, t := range s.snapshot.Trades {
		if t.ExecutedAt.Before(since) {
			continue
		}
		total = total.Add(t.RealizedPL)
		n++
	}
	return total, n, nil
}

// TradesSince implements risk.History.
func (s *Store) TradesSince(since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.snapshot.Trades {
		if !t.ExecutedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// Recent returns up to n trades, newest first.
func (s *Store) Recent(n int) []Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trades := s.snapshot.Trades
	if n <= 0 || n > len(trades) {
		n = len(trades)
	}
	out := make([]Trade, 0, n)
	for i := len(trades) - 1; i >= len(trades)-n; i-- {
		out = append(out, trades[i])
	}
	return out
}

func (s *Store) Position(pair string) Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Positions[pair]
}

func (s *Store) LastTradeTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.LastTradeTime
}

func (s *Store) SetProductionBalance(currency string, b decimal.Decimal, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot.ProductionBalances == nil {
		s.snapshot.ProductionBalances = map[string]decimal.Decimal{}
	}
	s.snapshot.ProductionBalances[currency] = b
	s.snapshot.BalanceSyncedAt = at
}

// ProductionBalance reports ok=false until the currency has been synced.
func (s *Store) ProductionBalance(currency string) (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.snapshot.ProductionBalances[currency]
	return b, ok
}
