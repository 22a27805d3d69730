// Package loop runs continuous per-agent trading loops with persisted
// state and a scheduled daily reset.
package loop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/tradepilot/tradepilot/internal/config"
	"github.com/tradepilot/tradepilot/internal/cycle"
	"github.com/tradepilot/tradepilot/internal/db"
	"github.com/tradepilot/tradepilot/internal/metrics"
)

// Loop statuses
const (
	StatusStopped = "stopped"
	StatusRunning = "running"
	StatusPaused  = "paused"
	StatusError   = "error"
)

const defaultInterval = 5 * time.Minute

// StateStore persists loop state across restarts
type StateStore interface {
	UpsertLoopState(ctx context.Context, state *db.LoopState) error
	ListLoopStates(ctx context.Context) ([]*db.LoopState, error)
}

// StartOptions configures one agent's loop
type StartOptions struct {
	Interval  time.Duration
	MaxCycles int // 0 means run until stopped
}

// AgentStatus is a snapshot of one agent's loop
type AgentStatus struct {
	AgentID         string        `json:"agent_id"`
	Status          string        `json:"status"`
	CyclesCompleted int           `json:"cycles_completed"`
	StartedAt       *time.Time    `json:"started_at,omitempty"`
	LastCycleAt     *time.Time    `json:"last_cycle_at,omitempty"`
	LastError       string        `json:"last_error,omitempty"`
	Interval        time.Duration `json:"interval"`
}

type agentLoop struct {
	mu              sync.Mutex
	agent           *config.AgentConfig
	status          string
	cyclesCompleted int
	startedAt       time.Time
	lastCycleAt     *time.Time
	lastError       string
	interval        time.Duration
	maxCycles       int
	cancel          context.CancelFunc
	done            chan struct{}
}

func (al *agentLoop) snapshot() AgentStatus {
	al.mu.Lock()
	defer al.mu.Unlock()

	s := AgentStatus{
		AgentID:         al.agent.Agent.ID,
		Status:          al.status,
		CyclesCompleted: al.cyclesCompleted,
		LastCycleAt:     al.lastCycleAt,
		LastError:       al.lastError,
		Interval:        al.interval,
	}
	if !al.startedAt.IsZero() {
		started := al.startedAt
		s.StartedAt = &started
	}
	return s
}

// Manager owns one goroutine per running agent loop
type Manager struct {
	mu         sync.Mutex
	runner     *cycle.Runner
	store      StateStore
	agentsDir  string
	timezone   *time.Location
	sleepChunk time.Duration
	agents     map[string]*agentLoop
	cron       *cron.Cron
	logger     zerolog.Logger
}

// NewManager creates a loop manager. The store may be nil; loop state is
// then kept in memory only. A daily reset of per-agent counters runs at
// midnight in the given timezone.
func NewManager(runner *cycle.Runner, store StateStore, agentsDir string, tz *time.Location) *Manager {
	if tz == nil {
		tz = time.UTC
	}
	m := &Manager{
		runner:     runner,
		store:      store,
		agentsDir:  agentsDir,
		timezone:   tz,
		sleepChunk: time.Second,
		agents:     make(map[string]*agentLoop),
		cron:       cron.New(cron.WithLocation(tz)),
		logger:     config.NewLogger("loop"),
	}

	if _, err := m.cron.AddFunc("0 0 * * *", m.resetDaily); err != nil {
		m.logger.Error().Err(err).Msg("Failed to schedule daily reset")
	}
	m.cron.Start()

	return m
}

// Start begins the trading loop for an agent. Starting an agent that is
// already running is an error; a paused agent must be resumed instead.
func (m *Manager) Start(ctx context.Context, agent *config.AgentConfig, opts StartOptions) error {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.agents[agent.Agent.ID]; ok {
		existing.mu.Lock()
		status := existing.status
		existing.mu.Unlock()
		if status == StatusRunning || status == StatusPaused || status == StatusError {
			return fmt.Errorf("agent %s is already %s", agent.Agent.ID, status)
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	al := &agentLoop{
		agent:     agent,
		status:    StatusRunning,
		startedAt: time.Now().UTC(),
		interval:  opts.Interval,
		maxCycles: opts.MaxCycles,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	m.agents[agent.Agent.ID] = al
	m.persistLoopState(al)
	metrics.AgentsRunning.Inc()

	m.logger.Info().
		Str("agent", agent.Agent.ID).
		Dur("interval", opts.Interval).
		Int("max_cycles", opts.MaxCycles).
		Msg("Agent loop started")

	go m.run(loopCtx, al)
	return nil
}

// run is the per-agent loop goroutine
func (m *Manager) run(ctx context.Context, al *agentLoop) {
	defer close(al.done)
	defer metrics.AgentsRunning.Dec()

	for {
		al.mu.Lock()
		paused := al.status == StatusPaused
		al.mu.Unlock()

		if paused {
			// One chunk at a time so a Resume is observed promptly.
			if !m.sleep(ctx, m.sleepChunk) {
				m.finish(al, StatusStopped)
				return
			}
			continue
		}

		m.runOneCycle(ctx, al)

		al.mu.Lock()
		doneByBudget := al.maxCycles > 0 && al.cyclesCompleted >= al.maxCycles
		al.mu.Unlock()
		if doneByBudget {
			m.logger.Info().
				Str("agent", al.agent.Agent.ID).
				Int("cycles", al.maxCycles).
				Msg("Cycle budget exhausted, stopping loop")
			m.finish(al, StatusStopped)
			return
		}

		if !m.sleep(ctx, al.interval) {
			m.finish(al, StatusStopped)
			return
		}
	}
}

func (m *Manager) runOneCycle(ctx context.Context, al *agentLoop) {
	agentID := al.agent.Agent.ID

	// Trading state is re-read from disk each cycle so out-of-band
	// changes (daily reset, manual edits) take effect without a restart.
	state, err := config.LoadAgentState(m.agentsDir, agentID)
	if err != nil {
		m.recordCycleError(al, fmt.Errorf("failed to load agent state: %w", err))
		return
	}

	res, err := m.runner.Run(ctx, al.agent, state)

	al.mu.Lock()
	now := time.Now().UTC()
	al.lastCycleAt = &now
	if err != nil {
		al.status = StatusError
		al.lastError = err.Error()
	} else {
		al.status = StatusRunning
		al.lastError = ""
		if !res.Skipped {
			al.cyclesCompleted++
		}
	}
	al.mu.Unlock()

	if err != nil {
		m.logger.Error().Err(err).Str("agent", agentID).Msg("Cycle failed")
	}
	m.persistLoopState(al)
}

func (m *Manager) recordCycleError(al *agentLoop, err error) {
	al.mu.Lock()
	al.status = StatusError
	al.lastError = err.Error()
	al.mu.Unlock()
	m.logger.Error().Err(err).Str("agent", al.agent.Agent.ID).Msg("Cycle failed")
	m.persistLoopState(al)
}

// sleep waits for d in small chunks so stop requests interrupt promptly.
// It returns false when the context was cancelled.
func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		chunk := m.sleepChunk
		if remaining := time.Until(deadline); remaining < chunk {
			chunk = remaining
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(chunk):
		}
	}
	return true
}

func (m *Manager) finish(al *agentLoop, status string) {
	al.mu.Lock()
	al.status = status
	al.mu.Unlock()
	m.persistLoopState(al)
}

// Stop cancels an agent's loop and waits for it to exit
func (m *Manager) Stop(agentID string) error {
	m.mu.Lock()
	al, ok := m.agents[agentID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("agent %s is not managed", agentID)
	}

	al.cancel()
	<-al.done

	m.logger.Info().Str("agent", agentID).Msg("Agent loop stopped")
	return nil
}

// Pause suspends cycling without tearing the loop down
func (m *Manager) Pause(agentID string) error {
	return m.transition(agentID, StatusRunning, StatusPaused)
}

// Resume continues a paused loop
func (m *Manager) Resume(agentID string) error {
	return m.transition(agentID, StatusPaused, StatusRunning)
}

func (m *Manager) transition(agentID, from, to string) error {
	m.mu.Lock()
	al, ok := m.agents[agentID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("agent %s is not managed", agentID)
	}

	al.mu.Lock()
	if al.status != from {
		status := al.status
		al.mu.Unlock()
		return fmt.Errorf("agent %s is %s, not %s", agentID, status, from)
	}
	al.status = to
	al.mu.Unlock()

	m.persistLoopState(al)
	m.logger.Info().Str("agent", agentID).Str("status", to).Msg("Agent loop state changed")
	return nil
}

// Status returns the loop snapshot for one agent
func (m *Manager) Status(agentID string) (*AgentStatus, error) {
	m.mu.Lock()
	al, ok := m.agents[agentID]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("agent %s is not managed", agentID)
	}
	s := al.snapshot()
	return &s, nil
}

// List returns snapshots for every managed agent
func (m *Manager) List() []AgentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]AgentStatus, 0, len(m.agents))
	for _, al := range m.agents {
		out = append(out, al.snapshot())
	}
	return out
}

// StopAll stops every running loop and the reset scheduler
func (m *Manager) StopAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.agents))
	for id := range m.agents {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Stop(id); err != nil {
			m.logger.Warn().Err(err).Str("agent", id).Msg("Failed to stop agent loop")
		}
	}
	m.cron.Stop()
}

// PersistedStates returns the loop states recorded by previous runs,
// letting operators inspect what was running before a restart.
func (m *Manager) PersistedStates(ctx context.Context) ([]*db.LoopState, error) {
	if m.store == nil {
		return nil, nil
	}
	return m.store.ListLoopStates(ctx)
}

// resetDaily zeroes daily counters for every managed agent at midnight
// exchange-local time. Open positions survive the reset.
func (m *Manager) resetDaily() {
	m.mu.Lock()
	agents := make([]*agentLoop, 0, len(m.agents))
	for _, al := range m.agents {
		agents = append(agents, al)
	}
	m.mu.Unlock()

	for _, al := range agents {
		agentID := al.agent.Agent.ID
		state, err := config.LoadAgentState(m.agentsDir, agentID)
		if err != nil {
			m.logger.Error().Err(err).Str("agent", agentID).Msg("Daily reset: failed to load state")
			continue
		}
		state.ResetDaily()
		if err := config.SaveAgentState(m.agentsDir, agentID, state); err != nil {
			m.logger.Error().Err(err).Str("agent", agentID).Msg("Daily reset: failed to save state")
			continue
		}
		m.logger.Info().Str("agent", agentID).Msg("Daily counters reset")
	}
}

func (m *Manager) persistLoopState(al *agentLoop) {
	if m.store == nil {
		return
	}

	al.mu.Lock()
	state := &db.LoopState{
		AgentID:         al.agent.Agent.ID,
		Status:          al.status,
		CyclesCompleted: al.cyclesCompleted,
		LastCycleAt:     al.lastCycleAt,
		IntervalSeconds: int(al.interval.Seconds()),
	}
	if !al.startedAt.IsZero() {
		started := al.startedAt
		state.StartedAt = &started
	}
	if al.lastError != "" {
		lastErr := al.lastError
		state.LastError = &lastErr
	}
	al.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.UpsertLoopState(ctx, state); err != nil {
		m.logger.Error().Err(err).Str("agent", state.AgentID).Msg("Failed to persist loop state")
	}
}
