package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAgentYAML = `
agent:
  id: tech-trader
  asset: AAPL
  status: active
strategy:
  type: sentiment_momentum
  timeframe: 15m
risk:
  max_position_size: 5000
  max_daily_trades: 5
  max_daily_loss: 500
  stop_loss_fraction: 0.03
  min_confidence: 0.65
  max_concurrent_positions: 3
performance:
  allocated_capital: 25000
personality:
  style: aggressive
`

func writeAgent(t *testing.T, dir, id, content string) {
	t.Helper()
	agentDir := filepath.Join(dir, id)
	require.NoError(t, os.MkdirAll(agentDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(agentDir, "agent.yaml"), []byte(content), 0o644))
}

func TestLoadAgentConfig(t *testing.T) {
	dir := t.TempDir()
	writeAgent(t, dir, "tech-trader", testAgentYAML)

	cfg, err := LoadAgentConfig(dir, "tech-trader")
	require.NoError(t, err)

	assert.Equal(t, "tech-trader", cfg.Agent.ID)
	assert.Equal(t, "AAPL", cfg.Agent.Asset)
	assert.Equal(t, AgentStatusActive, cfg.Agent.Status)
	assert.Equal(t, "15m", cfg.Strategy.Timeframe)
	assert.Equal(t, 5000.0, cfg.Risk.MaxPositionSize)
	assert.Equal(t, 5, cfg.Risk.MaxDailyTrades)
	assert.Equal(t, 0.65, cfg.Risk.MinConfidence)
	assert.Equal(t, 25000.0, cfg.Performance.AllocatedCapital)
	assert.Equal(t, "aggressive", cfg.Personality["style"])
	assert.False(t, cfg.IsCrypto())
}

func TestLoadAgentConfigMissing(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadAgentConfig(dir, "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read agent config")
}

func TestAgentConfigIsCrypto(t *testing.T) {
	tests := []struct {
		asset string
		want  bool
	}{
		{"AAPL", false},
		{"SPY", false},
		{"BTC/USD", true},
		{"ETH/USDT", true},
	}

	for _, tt := range tests {
		t.Run(tt.asset, func(t *testing.T) {
			cfg := AgentConfig{Agent: AgentIdentity{Asset: tt.asset}}
			assert.Equal(t, tt.want, cfg.IsCrypto())
		})
	}
}

func TestAgentConfigValidate(t *testing.T) {
	valid := func() AgentConfig {
		return AgentConfig{
			Agent: AgentIdentity{ID: "a1", Asset: "AAPL", Status: AgentStatusActive},
			Risk: RiskLimits{
				MaxPositionSize:        5000,
				MaxDailyTrades:         5,
				MaxDailyLoss:           500,
				StopLossFraction:       0.03,
				MinConfidence:          0.65,
				MaxConcurrentPositions: 3,
			},
			Performance: PerformanceConfig{AllocatedCapital: 25000},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*AgentConfig)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *AgentConfig) {},
		},
		{
			name:    "missing id",
			mutate:  func(c *AgentConfig) { c.Agent.ID = "" },
			wantErr: "id is required",
		},
		{
			name:    "missing asset",
			mutate:  func(c *AgentConfig) { c.Agent.Asset = "" },
			wantErr: "asset is required",
		},
		{
			name:    "bad status",
			mutate:  func(c *AgentConfig) { c.Agent.Status = "sleeping" },
			wantErr: "invalid status",
		},
		{
			name:    "zero position size",
			mutate:  func(c *AgentConfig) { c.Risk.MaxPositionSize = 0 },
			wantErr: "max_position_size",
		},
		{
			name:    "stop loss fraction of one",
			mutate:  func(c *AgentConfig) { c.Risk.StopLossFraction = 1 },
			wantErr: "stop_loss_fraction",
		},
		{
			name:    "confidence above one",
			mutate:  func(c *AgentConfig) { c.Risk.MinConfidence = 1.1 },
			wantErr: "min_confidence",
		},
		{
			name:    "negative capital",
			mutate:  func(c *AgentConfig) { c.Performance.AllocatedCapital = -1 },
			wantErr: "allocated_capital",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadAllAgents(t *testing.T) {
	dir := t.TempDir()
	writeAgent(t, dir, "tech-trader", testAgentYAML)

	writeAgent(t, dir, "btc-trader", `
agent:
  id: btc-trader
  asset: BTC/USD
  status: active
strategy:
  type: sentiment_momentum
  timeframe: 1h
risk:
  max_position_size: 5000
  max_daily_trades: 10
  max_daily_loss: 1000
  stop_loss_fraction: 0.03
  min_confidence: 0.6
  max_concurrent_positions: 2
performance:
  allocated_capital: 10000
`)

	// A stray file should be ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("x"), 0o644))

	agents, err := LoadAllAgents(dir)
	require.NoError(t, err)
	require.Len(t, agents, 2)

	ids := []string{agents[0].Agent.ID, agents[1].Agent.ID}
	assert.ElementsMatch(t, []string{"tech-trader", "btc-trader"}, ids)
}
