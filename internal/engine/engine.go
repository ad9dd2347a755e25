package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Vex788/zeus-trading-bot/internal/broker"
	"github.com/Vex788/zeus-trading-bot/internal/config"
	"github.com/Vex788/zeus-trading-bot/internal/learning"
	"github.com/Vex788/zeus-trading-bot/internal/ledger"
	"github.com/Vex788/zeus-trading-bot/internal/md"
	"github.com/Vex788/zeus-trading-bot/internal/metrics"
	"github.com/Vex788/zeus-trading-bot/internal/risk"
	"github.com/Vex788/zeus-trading-bot/internal/state"
	"github.com/Vex788/zeus-trading-bot/internal/storage"
	"github.com/Vex788/zeus-trading-bot/internal/strategy"
	"github.com/Vex788/zeus-trading-bot/internal/telemetry"
)

// State is the engine lifecycle position.
type State string

const (
	StateStopped State = "STOPPED"
	StateRunning State = "RUNNING"
	StatePaused  State = "PAUSED"
)

var ErrInvalidTransition = errors.New("invalid engine state transition")

// Deps are the collaborators an Engine drives. Broker may be nil when only
// shadow mode is used; every other nil field falls back to a no-op.
type Deps struct {
	Provider  md.Provider
	Strategy  strategy.Strategy
	Registry  *learning.Registry
	Gate      *risk.Gate
	Ledger    *ledger.Ledger
	State     *state.Store
	Broker    broker.Broker
	Decisions *DecisionLogger
	Trades    storage.TradeSink
	Learning  storage.LearningStore
	Publisher telemetry.Publisher
	Metrics   *metrics.Recorder
	Now       func() time.Time
}

type Engine struct {
	provider  md.Provider
	strategy  strategy.Strategy
	registry  *learning.Registry
	gate      *risk.Gate
	ledger    *ledger.Ledger
	state     *state.Store
	broker    broker.Broker
	decisions *DecisionLogger
	trades    storage.TradeSink
	learning  storage.LearningStore
	publisher telemetry.Publisher
	metrics   *metrics.Recorder
	now       func() time.Time

	pairs          []md.Pair
	workers        int
	callTimeout    time.Duration
	interval       time.Duration
	virtualBalance decimal.Decimal
	runID          string
	orderSeqNum    uint64

	// mu guards the lifecycle fields below. Cycles read them once at start.
	mu       sync.Mutex
	status   State
	mode     config.Mode
	starting decimal.Decimal

	// execMu serializes gate, execution and journaling across workers so the
	// frequency and daily-loss checks always see every earlier trade.
	execMu sync.Mutex

	cycleMu   sync.Mutex
	lastCycle CycleReport
	prices    map[string]decimal.Decimal
}

func New(cfg config.Config, deps Deps) (*Engine, error) {
	pairs, err := cfg.Pairs()
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, errors.New("engine: no trading pairs configured")
	}
	if deps.Provider == nil || deps.Strategy == nil || deps.Registry == nil ||
		deps.Gate == nil || deps.Ledger == nil || deps.State == nil {
		return nil, errors.New("engine: provider, strategy, registry, gate, ledger and state are required")
	}
	if deps.Trades == nil {
		deps.Trades = storage.Noop{}
	}
	if deps.Learning == nil {
		deps.Learning = storage.Noop{}
	}
	if deps.Publisher == nil {
		deps.Publisher = telemetry.Noop{}
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	runID := NewRunID(deps.Now())
	if deps.Decisions != nil {
		runID = deps.Decisions.RunID()
	}

	e := &Engine{
		provider:       deps.Provider,
		strategy:       deps.Strategy,
		registry:       deps.Registry,
		gate:           deps.Gate,
		ledger:         deps.Ledger,
		state:          deps.State,
		broker:         deps.Broker,
		decisions:      deps.Decisions,
		trades:         deps.Trades,
		learning:       deps.Learning,
		publisher:      deps.Publisher,
		metrics:        deps.Metrics,
		now:            deps.Now,
		pairs:          pairs,
		workers:        cfg.Engine.Workers,
		callTimeout:    cfg.Engine.CallTimeout,
		interval:       cfg.Engine.CycleInterval,
		virtualBalance: decimal.NewFromFloat(cfg.VirtualBalance),
		runID:          runID,
		status:         StateStopped,
		mode:           cfg.Mode,
		prices:         make(map[string]decimal.Decimal),
	}
	if e.workers < 1 {
		e.workers = 1
	}
	if e.callTimeout <= 0 {
		e.callTimeout = 10 * time.Second
	}
	if e.mode == config.ModeShadow {
		e.seedLedger()
	}
	e.metrics.SetEngineState(string(e.status), string(e.mode))
	return e, nil
}

func (e *Engine) RunID() string { return e.runID }

func (e *Engine) Pairs() []md.Pair { return append([]md.Pair(nil), e.pairs...) }

// seedLedger gives every quote currency the configured virtual balance the
// first time shadow mode is used.
func (e *Engine) seedLedger() {
	if !e.ledger.Empty() {
		return
	}
	var total decimal.Decimal
	for _, p := range e.pairs {
		if e.ledger.Seed(p.Quote, e.virtualBalance) {
			total = total.Add(e.virtualBalance)
			log.Info().Str("currency", p.Quote).Str("amount", e.virtualBalance.String()).Msg("virtual ledger seeded")
		}
	}
	e.starting = total
}

func (e *Engine) Start() error {
	return e.transition("start", func(s State) (State, error) {
		switch s {
		case StateStopped, StateRunning:
			return StateRunning, nil
		default:
			return s, fmt.Errorf("%w: start from %s, use resume", ErrInvalidTransition, s)
		}
	})
}

// Stop lets in-flight iterations finish; the next cycle is a no-op.
func (e *Engine) Stop() error {
	return e.transition("stop", func(State) (State, error) {
		return StateStopped, nil
	})
}

func (e *Engine) Pause() error {
	return e.transition("pause", func(s State) (State, error) {
		if s == StateStopped {
			return s, fmt.Errorf("%w: pause while stopped", ErrInvalidTransition)
		}
		return StatePaused, nil
	})
}

func (e *Engine) Resume() error {
	return e.transition("resume", func(s State) (State, error) {
		if s == StateStopped {
			return s, fmt.Errorf("%w: resume while stopped, use start", ErrInvalidTransition)
		}
		return StateRunning, nil
	})
}

func (e *Engine) transition(action string, next func(State) (State, error)) error {
	e.mu.Lock()
	from := e.status
	to, err := next(from)
	if err != nil {
		e.mu.Unlock()
		log.Warn().Err(err).Str("action", action).Msg("engine transition refused")
		return err
	}
	e.status = to
	mode := e.mode
	e.mu.Unlock()

	if from != to {
		log.Info().Str("action", action).Str("from", string(from)).Str("to", string(to)).Str("mode", string(mode)).Msg("engine state changed")
	}
	e.metrics.SetEngineState(string(to), string(mode))
	e.publish(telemetry.Event{
		Type: telemetry.BotStatus,
		Mode: string(mode),
		Data: map[string]any{"action": action, "state": to, "previous": from},
	})
	return nil
}

// SwitchMode takes effect from the next cycle. Switching to shadow seeds the
// virtual ledger if it has never held funds.
func (e *Engine) SwitchMode(mode config.Mode) error {
	if mode != config.ModeProduction && mode != config.ModeShadow {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidTransition, mode)
	}
	if mode == config.ModeProduction && e.broker == nil {
		return fmt.Errorf("%w: no broker configured for production", ErrInvalidTransition)
	}
	e.mu.Lock()
	prev := e.mode
	e.mode = mode
	if mode == config.ModeShadow {
		e.seedLedger()
	}
	st := e.status
	e.mu.Unlock()

	if prev != mode {
		log.Info().Str("from", string(prev)).Str("to", string(mode)).Msg("engine mode switched")
	}
	e.metrics.SetEngineState(string(st), string(mode))
	e.publish(telemetry.Event{
		Type: telemetry.BotStatus,
		Mode: string(mode),
		Data: map[string]any{"action": "mode", "state": st, "previous_mode": prev},
	})
	return nil
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *Engine) Mode() config.Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

func (e *Engine) IsRunning() bool { return e.State() == StateRunning }

func (e *Engine) IsPaused() bool { return e.State() == StatePaused }

type Status struct {
	State         State              `json:"state"`
	Mode          config.Mode        `json:"mode"`
	RunID         string             `json:"run_id"`
	Pairs         []string           `json:"pairs"`
	LastTradeTime time.Time          `json:"last_trade_time"`
	LastCycleAt   time.Time          `json:"last_cycle_at"`
	LastCycle     map[string]Outcome `json:"last_cycle,omitempty"`
	Pending       map[string]int     `json:"pending_predictions"`
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	st := Status{State: e.status, Mode: e.mode, RunID: e.runID}
	e.mu.Unlock()

	for _, p := range e.pairs {
		st.Pairs = append(st.Pairs, p.String())
	}
	st.LastTradeTime = e.state.LastTradeTime()

	e.cycleMu.Lock()
	st.LastCycleAt = e.lastCycle.Started
	if len(e.lastCycle.Outcomes) > 0 {
		st.LastCycle = make(map[string]Outcome, len(e.lastCycle.Outcomes))
		for k, v := range e.lastCycle.Outcomes {
			st.LastCycle[k] = v
		}
	}
	e.cycleMu.Unlock()

	st.Pending = make(map[string]int)
	for _, pair := range e.registry.Pairs() {
		entry := e.registry.Get(pair)
		entry.Lock()
		st.Pending[pair] = entry.Pending()
		entry.Unlock()
	}
	return st
}

// LearningState is a point-in-time view of one instrument's parameters.
type LearningState struct {
	Pair       string                      `json:"pair"`
	Parameters learning.Parameters         `json:"parameters"`
	Pending    int                         `json:"pending_predictions"`
	Recent     []learning.PredictionRecord `json:"recent_predictions"`
}

const recentPredictions = 20

func (e *Engine) Learning(pair md.Pair) LearningState {
	entry := e.registry.Get(pair.String())
	entry.Lock()
	defer entry.Unlock()
	records := entry.Records()
	if len(records) > recentPredictions {
		records = records[len(records)-recentPredictions:]
	}
	return LearningState{
		Pair:       pair.String(),
		Parameters: *entry.Parameters(),
		Pending:    entry.Pending(),
		Recent:     records,
	}
}

// RiskStatus reports the gate constraints against the balance of the first
// configured quote currency in the current mode.
func (e *Engine) RiskStatus(ctx context.Context) (risk.Status, error) {
	bal, err := e.balance(ctx, e.pairs[0], e.Mode())
	if err != nil {
		return risk.Status{}, err
	}
	return e.gate.Status(bal, e.now()), nil
}

func (e *Engine) nextClientOrderID() string {
	seq := atomic.AddUint64(&e.orderSeqNum, 1)
	return fmt.Sprintf("%s-%d", e.runID, seq)
}

// publish never fails the caller; observers are best effort.
func (e *Engine) publish(ev telemetry.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now()
	}
	_, err := callWithTimeout(context.Background(), e.callTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.publisher.Publish(ctx, ev)
	})
	if err != nil {
		log.Warn().Err(err).Str("type", string(ev.Type)).Str("pair", ev.Pair).Msg("event publish failed")
	}
}
