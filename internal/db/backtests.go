package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Backtest run status values
const (
	BacktestStatusRunning   = "running"
	BacktestStatusCompleted = "completed"
	BacktestStatusFailed    = "failed"
)

// BacktestRun is one stored backtest execution with its summary metrics
type BacktestRun struct {
	ID             uuid.UUID
	Symbol         string
	Timeframe      string
	StartDate      time.Time
	EndDate        time.Time
	InitialCapital float64
	FinalEquity    float64
	TotalReturnPct float64
	WinRate        float64
	AvgTradePnL    float64
	MaxDrawdownPct float64
	SharpeRatio    float64
	TotalTrades    int
	Status         string
	Error          *string
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// BacktestTrade is one simulated fill belonging to a run
type BacktestTrade struct {
	ID        int64
	RunID     uuid.UUID
	Timestamp time.Time
	Side      string // "buy", "sell"
	Quantity  float64
	Price     float64
	Value     float64
	PnL       float64
	Reasoning string
}

// SaveBacktestResult persists the run and all its trades atomically.
// Either everything lands or nothing does.
func (s *Store) SaveBacktestResult(ctx context.Context, run *BacktestRun, trades []BacktestTrade) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	runQuery := `
		INSERT INTO backtest_runs (
			id, symbol, timeframe, start_date, end_date, initial_capital,
			final_equity, total_return_pct, win_rate, avg_trade_pnl,
			max_drawdown_pct, sharpe_ratio, total_trades, status, error,
			created_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17
		)
	`

	if _, err := tx.Exec(ctx, runQuery,
		run.ID,
		run.Symbol,
		run.Timeframe,
		run.StartDate,
		run.EndDate,
		run.InitialCapital,
		run.FinalEquity,
		run.TotalReturnPct,
		run.WinRate,
		run.AvgTradePnL,
		run.MaxDrawdownPct,
		run.SharpeRatio,
		run.TotalTrades,
		run.Status,
		run.Error,
		run.CreatedAt,
		run.CompletedAt,
	); err != nil {
		return fmt.Errorf("failed to insert backtest run: %w", err)
	}

	tradeQuery := `
		INSERT INTO backtest_trades (
			run_id, timestamp, side, quantity, price, value, pnl, reasoning
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, trade := range trades {
		if _, err := tx.Exec(ctx, tradeQuery,
			run.ID,
			trade.Timestamp,
			trade.Side,
			trade.Quantity,
			trade.Price,
			trade.Value,
			trade.PnL,
			trade.Reasoning,
		); err != nil {
			return fmt.Errorf("failed to insert backtest trade: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit backtest result: %w", err)
	}

	log.Info().
		Str("run_id", run.ID.String()).
		Str("symbol", run.Symbol).
		Int("trades", len(trades)).
		Str("status", run.Status).
		Msg("Backtest result saved")

	return nil
}

// GetBacktestRun retrieves a run by ID
func (s *Store) GetBacktestRun(ctx context.Context, runID uuid.UUID) (*BacktestRun, error) {
	query := `
		SELECT id, symbol, timeframe, start_date, end_date, initial_capital,
		       final_equity, total_return_pct, win_rate, avg_trade_pnl,
		       max_drawdown_pct, sharpe_ratio, total_trades, status, error,
		       created_at, completed_at
		FROM backtest_runs
		WHERE id = $1
	`

	var run BacktestRun
	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&run.ID,
		&run.Symbol,
		&run.Timeframe,
		&run.StartDate,
		&run.EndDate,
		&run.InitialCapital,
		&run.FinalEquity,
		&run.TotalReturnPct,
		&run.WinRate,
		&run.AvgTradePnL,
		&run.MaxDrawdownPct,
		&run.SharpeRatio,
		&run.TotalTrades,
		&run.Status,
		&run.Error,
		&run.CreatedAt,
		&run.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get backtest run: %w", err)
	}

	return &run, nil
}

// GetBacktestTrades retrieves all trades for a run ordered by time
func (s *Store) GetBacktestTrades(ctx context.Context, runID uuid.UUID) ([]BacktestTrade, error) {
	query := `
		SELECT id, run_id, timestamp, side, quantity, price, value, pnl, reasoning
		FROM backtest_trades
		WHERE run_id = $1
		ORDER BY timestamp ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest trades: %w", err)
	}
	defer rows.Close()

	var trades []BacktestTrade
	for rows.Next() {
		var trade BacktestTrade
		if err := rows.Scan(
			&trade.ID,
			&trade.RunID,
			&trade.Timestamp,
			&trade.Side,
			&trade.Quantity,
			&trade.Price,
			&trade.Value,
			&trade.PnL,
			&trade.Reasoning,
		); err != nil {
			return nil, fmt.Errorf("failed to scan backtest trade: %w", err)
		}
		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backtest trades: %w", err)
	}

	return trades, nil
}

// ListBacktestRuns returns recent runs, newest first
func (s *Store) ListBacktestRuns(ctx context.Context, limit int) ([]*BacktestRun, error) {
	query := `
		SELECT id, symbol, timeframe, start_date, end_date, initial_capital,
		       final_equity, total_return_pct, win_rate, avg_trade_pnl,
		       max_drawdown_pct, sharpe_ratio, total_trades, status, error,
		       created_at, completed_at
		FROM backtest_runs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest runs: %w", err)
	}
	defer rows.Close()

	var runs []*BacktestRun
	for rows.Next() {
		var run BacktestRun
		if err := rows.Scan(
			&run.ID,
			&run.Symbol,
			&run.Timeframe,
			&run.StartDate,
			&run.EndDate,
			&run.InitialCapital,
			&run.FinalEquity,
			&run.TotalReturnPct,
			&run.WinRate,
			&run.AvgTradePnL,
			&run.MaxDrawdownPct,
			&run.SharpeRatio,
			&run.TotalTrades,
			&run.Status,
			&run.Error,
			&run.CreatedAt,
			&run.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan backtest run: %w", err)
		}
		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backtest runs: %w", err)
	}

	return runs, nil
}
