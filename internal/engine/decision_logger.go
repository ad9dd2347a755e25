package engine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Vex788/zeus-trading-bot/internal/strategy"
)

// Outcome is how one instrument iteration ended.
type Outcome string

const (
	OutcomeSkipped           Outcome = "skipped"
	OutcomeHold              Outcome = "hold"
	OutcomeRejected          Outcome = "rejected"
	OutcomeTooSmall          Outcome = "too_small"
	OutcomeInsufficientFunds Outcome = "insufficient_funds"
	OutcomeOrderFailed       Outcome = "order_failed"
	OutcomeExecuted          Outcome = "executed"
	OutcomeFailed            Outcome = "failed"
)

type Decision struct {
	RunID               string          `json:"run_id"`
	Timestamp           time.Time       `json:"timestamp"`
	BarTime             time.Time       `json:"bar_time"`
	Pair                string          `json:"pair"`
	Mode                string          `json:"mode"`
	Price               float64         `json:"price,omitempty"`
	Intent              strategy.Action `json:"intent,omitempty"`
	Confidence          float64         `json:"confidence"`
	Reason              string          `json:"reason,omitempty"`
	Adaptive            bool            `json:"adaptive"`
	Result              Outcome         `json:"result"`
	Check               string          `json:"check,omitempty"`
	RejectReason        string          `json:"reject_reason,omitempty"`
	Amount              decimal.Decimal `json:"amount"`
	RiskScore           float64         `json:"risk_score,omitempty"`
	ExecutionConfidence float64         `json:"execution_confidence"`
	OrderID             string          `json:"order_id,omitempty"`
	ClientOrderID       string          `json:"client_order_id,omitempty"`
}

type DecisionLogger struct {
	runID  string
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
}

// NewRunID builds a sortable identifier for one process lifetime.
func NewRunID(now time.Time) string {
	return fmt.Sprintf("%s-%s", now.UTC().Format("20060102T150405Z"), uuid.NewString()[:8])
}

func NewDecisionLogger(path string, runID string) (*DecisionLogger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &DecisionLogger{
		runID:  runID,
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (d *DecisionLogger) RunID() string {
	return d.runID
}

func (d *DecisionLogger) Append(decision Decision) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	payload, err := json.Marshal(decision)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal decision")
		return
	}
	if _, err := d.writer.Write(append(payload, '\n')); err != nil {
		log.Error().Err(err).Msg("failed to write decision")
		return
	}
	if err := d.writer.Flush(); err != nil {
		log.Error().Err(err).Msg("failed to flush decision log")
	}
}

func (d *DecisionLogger) Close() error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writer.Flush(); err != nil {
		_ = d.file.Close()
		return err
	}
	return d.file.Close()
}
