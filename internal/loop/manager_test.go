package loop

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradepilot/tradepilot/internal/broker"
	"github.com/tradepilot/tradepilot/internal/config"
	"github.com/tradepilot/tradepilot/internal/cycle"
	"github.com/tradepilot/tradepilot/internal/db"
	"github.com/tradepilot/tradepilot/internal/decision"
	"github.com/tradepilot/tradepilot/internal/executor"
	"github.com/tradepilot/tradepilot/internal/market"
	"github.com/tradepilot/tradepilot/internal/risk"
	"github.com/tradepilot/tradepilot/internal/sentiment"
)

// memLoopStore records loop state writes
type memLoopStore struct {
	mu     sync.Mutex
	states map[string]*db.LoopState
}

func newMemLoopStore() *memLoopStore {
	return &memLoopStore{states: make(map[string]*db.LoopState)}
}

func (m *memLoopStore) UpsertLoopState(_ context.Context, state *db.LoopState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *state
	m.states[state.AgentID] = &copied
	return nil
}

func (m *memLoopStore) ListLoopStates(_ context.Context) ([]*db.LoopState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*db.LoopState, 0, len(m.states))
	for _, s := range m.states {
		copied := *s
		out = append(out, &copied)
	}
	return out, nil
}

type memBarStore struct{ bars []market.Bar }

func (m *memBarStore) UpsertBars(_ context.Context, bars []market.Bar) error {
	m.bars = append(m.bars, bars...)
	return nil
}

func (m *memBarStore) GetRecentBars(_ context.Context, _, _ string, limit int) ([]market.Bar, error) {
	if len(m.bars) > limit {
		return m.bars[len(m.bars)-limit:], nil
	}
	return m.bars, nil
}

func loopAgent() *config.AgentConfig {
	return &config.AgentConfig{
		Agent: config.AgentIdentity{
			ID:     "agent-l1",
			Asset:  "BTC/USD",
			Status: config.AgentStatusActive,
		},
		Strategy: config.StrategyConfig{Timeframe: "15m"},
		Risk: config.RiskLimits{
			MaxPositionSize:        5000,
			MaxDailyTrades:         10,
			MaxDailyLoss:           500,
			StopLossFraction:       0.03,
			MinConfidence:          0.5,
			MaxConcurrentPositions: 3,
		},
		Performance: config.PerformanceConfig{AllocatedCapital: 10000},
	}
}

func steadyBars(n int) []market.Bar {
	bars := make([]market.Bar, n)
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = market.Bar{
			Symbol: "BTC/USD", Timestamp: base.Add(time.Duration(i) * 15 * time.Minute),
			Timeframe: "15m", Open: 100, High: 100.5, Low: 99.5, Close: 100, Volume: 1000,
		}
	}
	return bars
}

// newTestManager wires a manager over a paper broker with no sentiment
// sources, so every cycle completes with a hold.
func newTestManager(t *testing.T) (*Manager, *memLoopStore, string) {
	t.Helper()
	dir := t.TempDir()

	pb := broker.NewPaperBroker(100000)
	pb.SetQuote(&market.Quote{Symbol: "BTC/USD", Bid: 100, Ask: 100, Timestamp: time.Now()})
	pb.SetBars("BTC/USD", steadyBars(60))

	agentsDir := filepath.Join(dir, "agents")
	provider := market.NewProvider(pb, &memBarStore{}, nil)
	agg := sentiment.NewAggregator(nil, nil, time.Second)
	exec := executor.New(pb, executor.NewJournal(filepath.Join(dir, "logs")), agentsDir, false)
	runner := cycle.NewRunner(provider, agg, decision.NewMaker(0, 0), risk.NewValidator(), exec, nil, cycle.Options{
		Lookback: 60,
		Timezone: time.UTC,
	})

	store := newMemLoopStore()
	m := NewManager(runner, store, agentsDir, time.UTC)
	m.sleepChunk = time.Millisecond
	t.Cleanup(m.StopAll)

	return m, store, agentsDir
}

func waitForStatus(t *testing.T, m *Manager, agentID, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		s, err := m.Status(agentID)
		return err == nil && s.Status == want
	}, 5*time.Second, 5*time.Millisecond, "agent never reached status %s", want)
}

func TestStartRunsUntilCycleBudget(t *testing.T) {
	m, store, _ := newTestManager(t)

	err := m.Start(context.Background(), loopAgent(), StartOptions{
		Interval:  5 * time.Millisecond,
		MaxCycles: 2,
	})
	require.NoError(t, err)

	waitForStatus(t, m, "agent-l1", StatusStopped)

	s, err := m.Status("agent-l1")
	require.NoError(t, err)
	assert.Equal(t, 2, s.CyclesCompleted)
	require.NotNil(t, s.LastCycleAt)

	// Final state was persisted.
	persisted, err := store.ListLoopStates(context.Background())
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, StatusStopped, persisted[0].Status)
	assert.Equal(t, 2, persisted[0].CyclesCompleted)
}

func TestStartRefusesRunningAgent(t *testing.T) {
	m, _, _ := newTestManager(t)

	require.NoError(t, m.Start(context.Background(), loopAgent(), StartOptions{Interval: time.Minute}))
	waitForStatus(t, m, "agent-l1", StatusRunning)

	err := m.Start(context.Background(), loopAgent(), StartOptions{Interval: time.Minute})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	require.NoError(t, m.Stop("agent-l1"))
}

func TestPauseAndResume(t *testing.T) {
	m, store, _ := newTestManager(t)

	require.NoError(t, m.Start(context.Background(), loopAgent(), StartOptions{Interval: time.Minute}))
	waitForStatus(t, m, "agent-l1", StatusRunning)

	require.NoError(t, m.Pause("agent-l1"))
	s, err := m.Status("agent-l1")
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, s.Status)

	// Pausing a paused agent fails.
	assert.Error(t, m.Pause("agent-l1"))

	require.NoError(t, m.Resume("agent-l1"))
	s, err = m.Status("agent-l1")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, s.Status)

	store.mu.Lock()
	persisted := store.states["agent-l1"]
	store.mu.Unlock()
	require.NotNil(t, persisted)
	assert.Equal(t, StatusRunning, persisted.Status)

	require.NoError(t, m.Stop("agent-l1"))
}

func TestResumeDuringPausedWaitIsPrompt(t *testing.T) {
	m, _, _ := newTestManager(t)

	interval := 400 * time.Millisecond
	require.NoError(t, m.Start(context.Background(), loopAgent(), StartOptions{Interval: interval}))

	// Wait for the first cycle so the pause lands during the interval
	// sleep, not mid-cycle.
	require.Eventually(t, func() bool {
		s, err := m.Status("agent-l1")
		return err == nil && s.CyclesCompleted >= 1
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, m.Pause("agent-l1"))

	// Let the loop cross the interval boundary and settle into its
	// paused wait before resuming.
	time.Sleep(interval + 50*time.Millisecond)

	s, err := m.Status("agent-l1")
	require.NoError(t, err)
	before := s.CyclesCompleted

	require.NoError(t, m.Resume("agent-l1"))

	// The next cycle must start well within one interval of the resume.
	require.Eventually(t, func() bool {
		s, err := m.Status("agent-l1")
		return err == nil && s.CyclesCompleted > before
	}, interval/2, 5*time.Millisecond, "resume was not observed promptly")

	require.NoError(t, m.Stop("agent-l1"))
}

func TestStopInterruptsLongSleep(t *testing.T) {
	m, _, _ := newTestManager(t)

	require.NoError(t, m.Start(context.Background(), loopAgent(), StartOptions{Interval: time.Hour}))
	waitForStatus(t, m, "agent-l1", StatusRunning)

	done := make(chan error, 1)
	go func() { done <- m.Stop("agent-l1") }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not interrupt the sleeping loop")
	}

	s, err := m.Status("agent-l1")
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, s.Status)
}

func TestUnknownAgentOperations(t *testing.T) {
	m, _, _ := newTestManager(t)

	assert.Error(t, m.Stop("ghost"))
	assert.Error(t, m.Pause("ghost"))
	assert.Error(t, m.Resume("ghost"))
	_, err := m.Status("ghost")
	assert.Error(t, err)
	assert.Empty(t, m.List())
}

func TestResetDailyClearsCountersKeepsPositions(t *testing.T) {
	m, _, agentsDir := newTestManager(t)

	require.NoError(t, m.Start(context.Background(), loopAgent(), StartOptions{Interval: time.Hour}))
	waitForStatus(t, m, "agent-l1", StatusRunning)

	state := config.NewAgentState()
	state.TradesToday = 4
	state.PnLToday = -120
	state.Positions = []config.OpenPosition{{Quantity: 2, EntryPrice: 100}}
	require.NoError(t, config.SaveAgentState(agentsDir, "agent-l1", state))

	m.resetDaily()

	loaded, err := config.LoadAgentState(agentsDir, "agent-l1")
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.TradesToday)
	assert.Equal(t, 0.0, loaded.PnLToday)
	require.Len(t, loaded.Positions, 1)

	require.NoError(t, m.Stop("agent-l1"))
}
