package db

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// DecisionRecord is one stored trading decision with its full context
type DecisionRecord struct {
	ID               int64
	AgentID          string
	Symbol           string
	Timestamp        time.Time
	Action           string // "buy", "sell", "hold"
	Quantity         float64
	EntryPrice       float64
	StopLoss         float64
	Confidence       float64
	SentimentScore   float64
	TechnicalScore   float64
	CombinedScore    float64
	Reasoning        string
	SentimentSources map[string]interface{} // per-source breakdown, stored as JSONB
	TradeApproved    bool
	RejectionReason  *string
	TradeExecuted    bool
	OrderID          *string
	DryRun           bool
}

// InsertDecision stores a decision row. Every cycle records its decision
// whether or not a trade was approved or executed.
func (s *Store) InsertDecision(ctx context.Context, rec *DecisionRecord) error {
	query := `
		INSERT INTO decision_history (
			agent_id, symbol, timestamp, action, quantity, entry_price,
			stop_loss, confidence, sentiment_score, technical_score,
			combined_score, reasoning, sentiment_sources, trade_approved,
			rejection_reason, trade_executed, order_id, dry_run
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18
		)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		rec.AgentID,
		rec.Symbol,
		rec.Timestamp,
		rec.Action,
		rec.Quantity,
		rec.EntryPrice,
		rec.StopLoss,
		rec.Confidence,
		rec.SentimentScore,
		rec.TechnicalScore,
		rec.CombinedScore,
		rec.Reasoning,
		rec.SentimentSources,
		rec.TradeApproved,
		rec.RejectionReason,
		rec.TradeExecuted,
		rec.OrderID,
		rec.DryRun,
	).Scan(&rec.ID)

	if err != nil {
		log.Error().
			Err(err).
			Str("agent_id", rec.AgentID).
			Str("symbol", rec.Symbol).
			Msg("Failed to insert decision")
		return fmt.Errorf("failed to insert decision: %w", err)
	}

	log.Debug().
		Int64("decision_id", rec.ID).
		Str("agent_id", rec.AgentID).
		Str("action", rec.Action).
		Msg("Decision recorded")

	return nil
}

// GetDecisions returns the most recent decisions for an agent
func (s *Store) GetDecisions(ctx context.Context, agentID string, limit int) ([]*DecisionRecord, error) {
	query := `
		SELECT id, agent_id, symbol, timestamp, action, quantity, entry_price,
		       stop_loss, confidence, sentiment_score, technical_score,
		       combined_score, reasoning, sentiment_sources, trade_approved,
		       rejection_reason, trade_executed, order_id, dry_run
		FROM decision_history
		WHERE agent_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var decisions []*DecisionRecord
	for rows.Next() {
		var rec DecisionRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.AgentID,
			&rec.Symbol,
			&rec.Timestamp,
			&rec.Action,
			&rec.Quantity,
			&rec.EntryPrice,
			&rec.StopLoss,
			&rec.Confidence,
			&rec.SentimentScore,
			&rec.TechnicalScore,
			&rec.CombinedScore,
			&rec.Reasoning,
			&rec.SentimentSources,
			&rec.TradeApproved,
			&rec.RejectionReason,
			&rec.TradeExecuted,
			&rec.OrderID,
			&rec.DryRun,
		); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		decisions = append(decisions, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating decisions: %w", err)
	}

	return decisions, nil
}
