package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Agent status values
const (
	AgentStatusActive   = "active"
	AgentStatusPaused   = "paused"
	AgentStatusDisabled = "disabled"
)

// AgentConfig is the per-agent configuration loaded from agents/<id>/agent.yaml
type AgentConfig struct {
	Agent       AgentIdentity     `yaml:"agent"`
	Strategy    StrategyConfig    `yaml:"strategy"`
	Risk        RiskLimits        `yaml:"risk"`
	Performance PerformanceConfig `yaml:"performance"`
	Personality map[string]string `yaml:"personality"`
}

// AgentIdentity identifies the agent and its traded asset
type AgentIdentity struct {
	ID     string `yaml:"id"`
	Asset  string `yaml:"asset"`  // e.g. "AAPL" or "BTC/USD"
	Status string `yaml:"status"` // active, paused, disabled
}

// StrategyConfig describes the agent's trading strategy
type StrategyConfig struct {
	Type      string `yaml:"type"`      // e.g. "sentiment_momentum"
	Timeframe string `yaml:"timeframe"` // e.g. "15m", "1h", "1d"
}

// RiskLimits holds the per-agent risk parameters
type RiskLimits struct {
	MaxPositionSize        float64 `yaml:"max_position_size"`        // dollar cap per position
	MaxDailyTrades         int     `yaml:"max_daily_trades"`         //
	MaxDailyLoss           float64 `yaml:"max_daily_loss"`           // dollar amount
	StopLossFraction       float64 `yaml:"stop_loss_fraction"`       // e.g. 0.03 for 3%
	MinConfidence          float64 `yaml:"min_confidence"`           //
	MaxConcurrentPositions int     `yaml:"max_concurrent_positions"` //
}

// PerformanceConfig holds capital allocation for the agent
type PerformanceConfig struct {
	AllocatedCapital float64 `yaml:"allocated_capital"`
}

// IsCrypto reports whether the agent trades a crypto pair.
// Crypto symbols carry a slash separator, e.g. "BTC/USD".
func (a *AgentConfig) IsCrypto() bool {
	return strings.Contains(a.Agent.Asset, "/")
}

// Validate checks the agent configuration for invalid values
func (a *AgentConfig) Validate() error {
	if a.Agent.ID == "" {
		return fmt.Errorf("agent id is required")
	}
	if a.Agent.Asset == "" {
		return fmt.Errorf("agent %s: asset is required", a.Agent.ID)
	}
	switch a.Agent.Status {
	case AgentStatusActive, AgentStatusPaused, AgentStatusDisabled:
	default:
		return fmt.Errorf("agent %s: invalid status %q", a.Agent.ID, a.Agent.Status)
	}
	if a.Risk.MaxPositionSize <= 0 {
		return fmt.Errorf("agent %s: max_position_size must be positive", a.Agent.ID)
	}
	if a.Risk.MaxDailyTrades <= 0 {
		return fmt.Errorf("agent %s: max_daily_trades must be positive", a.Agent.ID)
	}
	if a.Risk.StopLossFraction <= 0 || a.Risk.StopLossFraction >= 1 {
		return fmt.Errorf("agent %s: stop_loss_fraction must be in (0, 1)", a.Agent.ID)
	}
	if a.Risk.MinConfidence < 0 || a.Risk.MinConfidence > 1 {
		return fmt.Errorf("agent %s: min_confidence must be in [0, 1]", a.Agent.ID)
	}
	if a.Risk.MaxConcurrentPositions <= 0 {
		return fmt.Errorf("agent %s: max_concurrent_positions must be positive", a.Agent.ID)
	}
	if a.Performance.AllocatedCapital < 0 {
		return fmt.Errorf("agent %s: allocated_capital cannot be negative", a.Agent.ID)
	}
	return nil
}

// LoadAgentConfig loads and validates a single agent configuration
func LoadAgentConfig(agentsDir, agentID string) (*AgentConfig, error) {
	path := filepath.Join(agentsDir, agentID, "agent.yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent config %s: %w", path, err)
	}

	var cfg AgentConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse agent config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent config %s: %w", path, err)
	}

	return &cfg, nil
}

// ListAgentIDs returns the IDs of all agents under agentsDir.
// An agent is any subdirectory containing an agent.yaml.
func ListAgentIDs(agentsDir string) ([]string, error) {
	entries, err := os.ReadDir(agentsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read agents dir %s: %w", agentsDir, err)
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(agentsDir, entry.Name(), "agent.yaml")); err == nil {
			ids = append(ids, entry.Name())
		}
	}

	return ids, nil
}

// LoadAllAgents loads every agent configuration under agentsDir
func LoadAllAgents(agentsDir string) ([]*AgentConfig, error) {
	ids, err := ListAgentIDs(agentsDir)
	if err != nil {
		return nil, err
	}

	agents := make([]*AgentConfig, 0, len(ids))
	for _, id := range ids {
		cfg, err := LoadAgentConfig(agentsDir, id)
		if err != nil {
			return nil, err
		}
		agents = append(agents, cfg)
	}

	return agents, nil
}
