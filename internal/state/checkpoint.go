package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"github.com/Vex788/zeus-trading-bot/internal/learning"
	"github.com/Vex788/zeus-trading-bot/internal/ledger"
)

// Checkpoint is everything the engine persists across restarts.
type Checkpoint struct {
	State    Snapshot                       `json:"state"`
	Mode     string                         `json:"mode"`
	Balances []ledger.Balance               `json:"balances,omitempty"`
	Starting decimal.Decimal                `json:"starting_value"`
	Learning map[string]learning.Parameters `json:"learning,omitempty"`
}

// Save writes cp atomically via a temp file in the same directory.
func Save(path string, cp Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close checkpoint: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func Load(path string) (Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Checkpoint{}, err
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, fmt.Errorf("decode checkpoint %s: %w", path, err)
	}
	if cp.State.Positions == nil {
		cp.State.Positions = map[string]Position{}
	}
	return cp, nil
}
