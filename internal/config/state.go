package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// OpenPosition is a single open position held by an agent
type OpenPosition struct {
	Quantity   float64   `json:"quantity"`
	EntryPrice float64   `json:"entry_price"`
	StopLoss   float64   `json:"stop_loss"`
	Timestamp  time.Time `json:"timestamp"`
	OrderID    string    `json:"order_id"`
}

// AgentState is the mutable trading state persisted to agents/<id>/state.json
type AgentState struct {
	Positions     []OpenPosition `json:"positions"`
	TradesToday   int            `json:"trades_today"`
	PnLToday      float64        `json:"pnl_today"`
	LastTradeTime *time.Time     `json:"last_trade_time"`
}

// NewAgentState returns an empty agent state
func NewAgentState() *AgentState {
	return &AgentState{Positions: []OpenPosition{}}
}

// LoadAgentState loads the agent state from disk.
// A missing state file yields a fresh empty state.
func LoadAgentState(agentsDir, agentID string) (*AgentState, error) {
	path := statePath(agentsDir, agentID)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewAgentState(), nil
		}
		return nil, fmt.Errorf("failed to read agent state %s: %w", path, err)
	}

	var state AgentState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse agent state %s: %w", path, err)
	}
	if state.Positions == nil {
		state.Positions = []OpenPosition{}
	}

	return &state, nil
}

// SaveAgentState writes the agent state to disk atomically
func SaveAgentState(agentsDir, agentID string, state *AgentState) error {
	path := statePath(agentsDir, agentID)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create agent dir: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal agent state: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write agent state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace agent state: %w", err)
	}

	return nil
}

// ResetDaily zeroes the daily counters, leaving open positions intact
func (s *AgentState) ResetDaily() {
	s.TradesToday = 0
	s.PnLToday = 0
}

func statePath(agentsDir, agentID string) string {
	return filepath.Join(agentsDir, agentID, "state.json")
}
