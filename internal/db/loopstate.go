package db

import (
	"context"
	"fmt"
	"time"
)

// LoopState is the persisted state of one agent's trading loop
type LoopState struct {
	AgentID         string
	Status          string // "stopped", "running", "paused", "error"
	CyclesCompleted int
	StartedAt       *time.Time
	LastCycleAt     *time.Time
	LastError       *string
	IntervalSeconds int
	UpdatedAt       time.Time
}

// UpsertLoopState writes the loop state for an agent
func (s *Store) UpsertLoopState(ctx context.Context, state *LoopState) error {
	query := `
		INSERT INTO loop_state (
			agent_id, status, cycles_completed, started_at, last_cycle_at,
			last_error, interval_seconds, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (agent_id) DO UPDATE SET
			status = EXCLUDED.status,
			cycles_completed = EXCLUDED.cycles_completed,
			started_at = EXCLUDED.started_at,
			last_cycle_at = EXCLUDED.last_cycle_at,
			last_error = EXCLUDED.last_error,
			interval_seconds = EXCLUDED.interval_seconds,
			updated_at = NOW()
	`

	_, err := s.pool.Exec(ctx, query,
		state.AgentID,
		state.Status,
		state.CyclesCompleted,
		state.StartedAt,
		state.LastCycleAt,
		state.LastError,
		state.IntervalSeconds,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert loop state for %s: %w", state.AgentID, err)
	}

	return nil
}

// GetLoopState retrieves the loop state for one agent
func (s *Store) GetLoopState(ctx context.Context, agentID string) (*LoopState, error) {
	query := `
		SELECT agent_id, status, cycles_completed, started_at, last_cycle_at,
		       last_error, interval_seconds, updated_at
		FROM loop_state
		WHERE agent_id = $1
	`

	var state LoopState
	err := s.pool.QueryRow(ctx, query, agentID).Scan(
		&state.AgentID,
		&state.Status,
		&state.CyclesCompleted,
		&state.StartedAt,
		&state.LastCycleAt,
		&state.LastError,
		&state.IntervalSeconds,
		&state.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get loop state for %s: %w", agentID, err)
	}

	return &state, nil
}

// ListLoopStates retrieves every persisted loop state
func (s *Store) ListLoopStates(ctx context.Context) ([]*LoopState, error) {
	query := `
		SELECT agent_id, status, cycles_completed, started_at, last_cycle_at,
		       last_error, interval_seconds, updated_at
		FROM loop_state
		ORDER BY agent_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query loop states: %w", err)
	}
	defer rows.Close()

	var states []*LoopState
	for rows.Next() {
		var state LoopState
		if err := rows.Scan(
			&state.AgentID,
			&state.Status,
			&state.CyclesCompleted,
			&state.StartedAt,
			&state.LastCycleAt,
			&state.LastError,
			&state.IntervalSeconds,
			&state.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan loop state: %w", err)
		}
		states = append(states, &state)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating loop states: %w", err)
	}

	return states, nil
}
