package db

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tradepilot/tradepilot/internal/market"
)

// UpsertBars inserts or updates bars in a single transaction.
// The (symbol, timestamp, timeframe) key makes re-ingestion idempotent.
func (s *Store) UpsertBars(ctx context.Context, bars []market.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	query := `
		INSERT INTO market_bars (
			symbol, timestamp, timeframe, open, high, low, close, volume
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, timestamp, timeframe) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume
	`

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, bar := range bars {
		if _, err := tx.Exec(ctx, query,
			bar.Symbol,
			bar.Timestamp,
			bar.Timeframe,
			bar.Open,
			bar.High,
			bar.Low,
			bar.Close,
			bar.Volume,
		); err != nil {
			return fmt.Errorf("failed to upsert bar %s@%s: %w", bar.Symbol, bar.Timestamp, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit bar upsert: %w", err)
	}

	log.Debug().
		Str("symbol", bars[0].Symbol).
		Int("count", len(bars)).
		Msg("Bars upserted")

	return nil
}

// GetBars returns bars in [from, to] ordered by timestamp ascending
func (s *Store) GetBars(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]market.Bar, error) {
	query := `
		SELECT symbol, timestamp, timeframe, open, high, low, close, volume
		FROM market_bars
		WHERE symbol = $1 AND timeframe = $2 AND timestamp >= $3 AND timestamp <= $4
		ORDER BY timestamp ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, timeframe, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// GetRecentBars returns the latest limit bars ordered ascending
func (s *Store) GetRecentBars(ctx context.Context, symbol, timeframe string, limit int) ([]market.Bar, error) {
	query := `
		SELECT symbol, timestamp, timeframe, open, high, low, close, volume
		FROM (
			SELECT symbol, timestamp, timeframe, open, high, low, close, volume
			FROM market_bars
			WHERE symbol = $1 AND timeframe = $2
			ORDER BY timestamp DESC
			LIMIT $3
		) recent
		ORDER BY timestamp ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent bars: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// CountBars returns the number of stored bars for a symbol and timeframe
func (s *Store) CountBars(ctx context.Context, symbol, timeframe string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM market_bars WHERE symbol = $1 AND timeframe = $2",
		symbol, timeframe,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bars: %w", err)
	}
	return count, nil
}

func scanBars(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]market.Bar, error) {
	var bars []market.Bar
	for rows.Next() {
		var bar market.Bar
		if err := rows.Scan(
			&bar.Symbol,
			&bar.Timestamp,
			&bar.Timeframe,
			&bar.Open,
			&bar.High,
			&bar.Low,
			&bar.Close,
			&bar.Volume,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bars: %w", err)
	}

	return bars, nil
}
