package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Vex788/zeus-trading-bot/internal/md"
	"github.com/Vex788/zeus-trading-bot/internal/strategy"
)

var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvariantViolation = errors.New("ledger invariant violated")
	ErrInvalidTrade       = errors.New("invalid trade")
)

// Balance is one currency's holdings. Available is always Balance - Locked.
type Balance struct {
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	Available decimal.Decimal `json:"available"`
	Locked    decimal.Decimal `json:"locked"`
}

func (b Balance) check() error {
	switch {
	case b.Balance.IsNegative():
		return fmt.Errorf("%w: %s balance %s < 0", ErrInvariantViolation, b.Currency, b.Balance)
	case b.Locked.IsNegative():
		return fmt.Errorf("%w: %s locked %s < 0", ErrInvariantViolation, b.Currency, b.Locked)
	case !b.Available.Equal(b.Balance.Sub(b.Locked)):
		return fmt.Errorf("%w: %s available %s != %s - %s", ErrInvariantViolation, b.Currency, b.Available, b.Balance, b.Locked)
	}
	return nil
}

type account struct {
	currency string
	mu       sync.Mutex
	bal      Balance
}

// Ledger holds simulated balances for shadow trading. Each currency has its
// own lock; trades take both legs' locks in name order.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[string]*account
}

func New() *Ledger {
	return &Ledger{accounts: make(map[string]*account)}
}

// Seed creates currency with amount if it does not exist yet. It reports
// whether the account was created.
func (l *Ledger) Seed(currency string, amount decimal.Decimal) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.accounts[currency]; ok {
		return false
	}
	l.accounts[currency] = &account{currency: currency, bal: Balance{
		Currency:  currency,
		Balance:   amount,
		Available: amount,
		Locked:    decimal.Zero,
	}}
	return true
}

// Restore overwrites balances from a checkpoint. It must run before trading
// starts. Entries that break the invariants are rejected as a whole.
func (l *Ledger) Restore(balances []Balance) error {
	for _, b := range balances {
		if err := b.check(); err != nil {
			return err
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range balances {
		l.accounts[b.Currency] = &account{currency: b.Currency, bal: b}
	}
	return nil
}

func (l *Ledger) Empty() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.accounts) == 0
}

func (l *Ledger) get(currency string) *account {
	l.mu.RLock()
	a, ok := l.accounts[currency]
	l.mu.RUnlock()
	if ok {
		return a
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.accounts[currency]; ok {
		return a
	}
	a = &account{currency: currency, bal: Balance{Currency: currency}}
	l.accounts[currency] = a
	return a
}

// Balance reports a zero balance for unknown currencies without creating them.
func (l *Ledger) Balance(currency string) Balance {
	l.mu.RLock()
	a, ok := l.accounts[currency]
	l.mu.RUnlock()
	if !ok {
		return Balance{Currency: currency}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bal
}

// Balances returns every account sorted by currency.
func (l *Ledger) Balances() []Balance {
	l.mu.RLock()
	accounts := make([]*account, 0, len(l.accounts))
	for _, a := range l.accounts {
		accounts = append(accounts, a)
	}
	l.mu.RUnlock()

	out := make([]Balance, 0, len(accounts))
	for _, a := range accounts {
		a.mu.Lock()
		out = append(out, a.bal)
		a.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}

// ApplyTrade settles a fill at price. Either both legs move or neither does.
func (l *Ledger) ApplyTrade(pair md.Pair, action strategy.Action, amount, price decimal.Decimal) error {
	if !amount.IsPositive() || !price.IsPositive() {
		return fmt.Errorf("%w: amount %s price %s", ErrInvalidTrade, amount, price)
	}
	if pair.Base == pair.Quote {
		return fmt.Errorf("%w: pair %s", ErrInvalidTrade, pair)
	}
	if action != strategy.Buy && action != strategy.Sell {
		return fmt.Errorf("%w: action %s", ErrInvalidTrade, action)
	}

	base, quote := l.get(pair.Base), l.get(pair.Quote)
	unlock := lockPair(base, quote)
	defer unlock()

	cost := amount.Mul(price)
	nextBase, nextQuote := base.bal, quote.bal
	if action == strategy.Buy {
		if quote.bal.Available.LessThan(cost) {
			return fmt.Errorf("%w: need %s %s, available %s", ErrInsufficientFunds, cost, pair.Quote, quote.bal.Available)
		}
		nextQuote = credit(nextQuote, cost.Neg())
		nextBase = credit(nextBase, amount)
	} else {
		if base.bal.Available.LessThan(amount) {
			return fmt.Errorf("%w: need %s %s, available %s", ErrInsufficientFunds, amount, pair.Base, base.bal.Available)
		}
		nextBase = credit(nextBase, amount.Neg())
		nextQuote = credit(nextQuote, cost)
	}

	if err := errors.Join(nextBase.check(), nextQuote.check()); err != nil {
		log.Error().Err(err).Str("pair", pair.String()).Msg("virtual trade would break ledger invariants")
		return err
	}
	base.bal, quote.bal = nextBase, nextQuote

	log.Debug().
		Str("pair", pair.String()).
		Str("action", string(action)).
		Str("amount", amount.String()).
		Str("price", price.String()).
		Str(pair.Base, nextBase.Balance.String()).
		Str(pair.Quote, nextQuote.Balance.String()).
		Msg("virtual trade applied")
	return nil
}

func credit(b Balance, delta decimal.Decimal) Balance {
	b.Balance = b.Balance.Add(delta)
	b.Available = b.Balance.Sub(b.Locked)
	return b
}

// Lock reserves amount of currency so it cannot be spent.
func (l *Ledger) Lock(currency string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: lock amount %s", ErrInvalidTrade, amount)
	}
	a := l.get(currency)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bal.Available.LessThan(amount) {
		return fmt.Errorf("%w: lock %s %s, available %s", ErrInsufficientFunds, amount, currency, a.bal.Available)
	}
	a.bal.Locked = a.bal.Locked.Add(amount)
	a.bal.Available = a.bal.Balance.Sub(a.bal.Locked)
	return nil
}

// Unlock releases up to amount of previously locked funds.
func (l *Ledger) Unlock(currency string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: unlock amount %s", ErrInvalidTrade, amount)
	}
	a := l.get(currency)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bal.Locked = decimal.Max(decimal.Zero, a.bal.Locked.Sub(amount))
	a.bal.Available = a.bal.Balance.Sub(a.bal.Locked)
	return nil
}

func lockPair(a, b *account) func() {
	first, second := a, b
	if b.currency < a.currency {
		first, second = b, a
	}
	first.mu.Lock()
	second.mu.Lock()
	return func() {
		second.mu.Unlock()
		first.mu.Unlock()
	}
}
