package db

import (
	"context"
	"fmt"
	"time"
)

// SentimentRecord is one stored per-source sentiment reading
type SentimentRecord struct {
	Symbol     string
	Timestamp  time.Time
	Source     string // "news", "reddit", "sec"
	Score      float64
	Confidence float64
	Category   string // "positive", "negative", "neutral"
	Details    map[string]interface{}
}

// UpsertSentiment inserts or updates sentiment readings in one transaction.
// The (symbol, timestamp, source) key makes re-analysis idempotent.
func (s *Store) UpsertSentiment(ctx context.Context, records []SentimentRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO sentiment_history (
			symbol, timestamp, source, score, confidence, category, details
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol, timestamp, source) DO UPDATE SET
			score = EXCLUDED.score,
			confidence = EXCLUDED.confidence,
			category = EXCLUDED.category,
			details = EXCLUDED.details
	`

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, rec := range records {
		if _, err := tx.Exec(ctx, query,
			rec.Symbol,
			rec.Timestamp,
			rec.Source,
			rec.Score,
			rec.Confidence,
			rec.Category,
			rec.Details,
		); err != nil {
			return fmt.Errorf("failed to upsert sentiment %s/%s: %w", rec.Symbol, rec.Source, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit sentiment upsert: %w", err)
	}

	return nil
}

// GetSentimentRange returns sentiment in [from, to] ordered ascending
func (s *Store) GetSentimentRange(ctx context.Context, symbol string, from, to time.Time) ([]SentimentRecord, error) {
	query := `
		SELECT symbol, timestamp, source, score, confidence, category, details
		FROM sentiment_history
		WHERE symbol = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query sentiment range: %w", err)
	}
	defer rows.Close()

	return scanSentiment(rows)
}

// GetSentimentAt returns readings matching the exact timestamp
func (s *Store) GetSentimentAt(ctx context.Context, symbol string, ts time.Time) ([]SentimentRecord, error) {
	query := `
		SELECT symbol, timestamp, source, score, confidence, category, details
		FROM sentiment_history
		WHERE symbol = $1 AND timestamp = $2
		ORDER BY source ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to query sentiment at timestamp: %w", err)
	}
	defer rows.Close()

	return scanSentiment(rows)
}

func scanSentiment(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]SentimentRecord, error) {
	var records []SentimentRecord
	for rows.Next() {
		var rec SentimentRecord
		if err := rows.Scan(
			&rec.Symbol,
			&rec.Timestamp,
			&rec.Source,
			&rec.Score,
			&rec.Confidence,
			&rec.Category,
			&rec.Details,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sentiment: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sentiment: %w", err)
	}

	return records, nil
}
