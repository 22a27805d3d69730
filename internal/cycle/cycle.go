// Package cycle runs one full trading iteration for an agent: market
// data, sentiment and technical analysis, decision, risk validation,
// execution and persistence.
package cycle

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tradepilot/tradepilot/internal/config"
	"github.com/tradepilot/tradepilot/internal/db"
	"github.com/tradepilot/tradepilot/internal/decision"
	"github.com/tradepilot/tradepilot/internal/executor"
	"github.com/tradepilot/tradepilot/internal/market"
	"github.com/tradepilot/tradepilot/internal/metrics"
	"github.com/tradepilot/tradepilot/internal/risk"
	"github.com/tradepilot/tradepilot/internal/sentiment"
	"github.com/tradepilot/tradepilot/internal/technical"
)

// Store persists cycle artifacts. Bars are persisted by the market
// provider; the cycle adds sentiment readings and the decision row.
type Store interface {
	UpsertSentiment(ctx context.Context, records []db.SentimentRecord) error
	InsertDecision(ctx context.Context, rec *db.DecisionRecord) error
}

// Options configures a cycle runner
type Options struct {
	Timeframe         string        // default bar timeframe when the agent sets none
	Lookback          int           // bars of history for technical analysis
	SentimentLookback time.Duration // how far back sentiment sources read
	Timezone          *time.Location
	MarketHoursOnly   bool
	DryRun            bool
}

// Result is what one cycle produced
type Result struct {
	AgentID      string               `json:"agent_id"`
	Symbol       string               `json:"symbol"`
	Skipped      bool                 `json:"skipped"`
	SkipReason   string               `json:"skip_reason,omitempty"`
	Decision     *decision.Decision   `json:"decision,omitempty"`
	Approved     bool                 `json:"approved"`
	RejectReason string               `json:"reject_reason,omitempty"`
	Executed     bool                 `json:"executed"`
	Sentiment    sentiment.Aggregated `json:"sentiment"`
	Technical    technical.Analysis   `json:"technical"`
	Duration     time.Duration        `json:"duration"`
}

// Runner wires the pipeline stages together
type Runner struct {
	provider  *market.Provider
	sentiment *sentiment.Aggregator
	maker     *decision.Maker
	validator *risk.Validator
	executor  *executor.Executor
	store     Store
	opts      Options
	now       func() time.Time
	logger    zerolog.Logger
}

// NewRunner builds a cycle runner. The store may be nil; persistence
// failures never fail a cycle, they are logged and the cycle carries on.
func NewRunner(provider *market.Provider, agg *sentiment.Aggregator, maker *decision.Maker, validator *risk.Validator, exec *executor.Executor, store Store, opts Options) *Runner {
	if opts.Timeframe == "" {
		opts.Timeframe = "15m"
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 100
	}
	if opts.SentimentLookback <= 0 {
		opts.SentimentLookback = 24 * time.Hour
	}
	if opts.Timezone == nil {
		opts.Timezone = time.UTC
	}
	return &Runner{
		provider:  provider,
		sentiment: agg,
		maker:     maker,
		validator: validator,
		executor:  exec,
		store:     store,
		opts:      opts,
		now:       time.Now,
		logger:    config.NewLogger("cycle"),
	}
}

// Run executes one trading cycle for the agent. Outside market hours the
// cycle is skipped without error. A missing quote aborts the cycle. All
// sentiment sources failing is not fatal: the decision runs on technical
// signals with zero sentiment.
func (r *Runner) Run(ctx context.Context, agent *config.AgentConfig, state *config.AgentState) (*Result, error) {
	started := r.now()
	symbol := agent.Agent.Asset
	res := &Result{AgentID: agent.Agent.ID, Symbol: symbol}

	if r.opts.MarketHoursOnly && !market.IsMarketOpen(symbol, started, r.opts.Timezone) {
		res.Skipped = true
		res.SkipReason = "market closed"
		res.Duration = time.Since(started)
		metrics.RecordCycle(agent.Agent.ID, metrics.OutcomeSkipped, res.Duration.Seconds())
		r.logger.Debug().Str("agent", agent.Agent.ID).Str("symbol", symbol).Msg("Market closed, cycle skipped")
		return res, nil
	}

	timeframe := agent.Strategy.Timeframe
	if timeframe == "" {
		timeframe = r.opts.Timeframe
	}

	mc, err := r.provider.GetMarketContext(ctx, symbol, timeframe, r.opts.Lookback)
	if err != nil {
		metrics.RecordCycle(agent.Agent.ID, metrics.OutcomeError, time.Since(started).Seconds())
		return nil, fmt.Errorf("market data stage failed: %w", err)
	}
	if mc.CurrentPrice <= 0 {
		metrics.RecordCycle(agent.Agent.ID, metrics.OutcomeError, time.Since(started).Seconds())
		return nil, fmt.Errorf("no quote available for %s, aborting cycle", symbol)
	}

	// Sentiment and technical analysis are independent; run them together.
	var agg sentiment.Aggregated
	var analysis technical.Analysis

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		agg = r.sentiment.Aggregate(gctx, symbol, r.opts.SentimentLookback)
		return nil
	})
	g.Go(func() error {
		analysis = technical.Analyze(mc)
		return nil
	})
	_ = g.Wait()

	res.Sentiment = agg
	res.Technical = analysis

	r.persistSentiment(ctx, agg, mc.Timestamp)

	dec, err := r.maker.Decide(decision.Params{
		Symbol:              symbol,
		SentimentScore:      agg.Score,
		SentimentConfidence: agg.Confidence,
		TechnicalSignal:     analysis.Overall,
		TechnicalConfidence: analysis.Confidence,
		CurrentPrice:        mc.CurrentPrice,
		Equity:              agent.Performance.AllocatedCapital,
		HasPosition:         len(state.Positions) > 0,
		PositionQuantity:    totalQuantity(state),
		Risk:                agent.Risk,
	})
	if err != nil {
		metrics.RecordCycle(agent.Agent.ID, metrics.OutcomeError, time.Since(started).Seconds())
		return nil, fmt.Errorf("decision stage failed: %w", err)
	}
	res.Decision = &dec
	metrics.RecordDecision(agent.Agent.ID, dec.Action, dec.Confidence)

	approved, reason := r.validator.Validate(agent, state, &dec, mc.CurrentPrice)
	res.Approved = approved
	if !approved {
		res.RejectReason = reason
		metrics.RecordRiskRejection(agent.Agent.ID)
	}

	var execErr error
	var orderID *string
	if approved {
		execResult, err := r.executor.Execute(ctx, agent, state, &dec, mc.CurrentPrice)
		if err != nil {
			execErr = err
			metrics.RecordOrder(agent.Agent.ID, dec.Action, err)
		} else {
			res.Executed = execResult.Executed
			if execResult.Order != nil {
				orderID = &execResult.Order.ID
			}
			if execResult.Executed && !execResult.Simulated {
				metrics.RecordOrder(agent.Agent.ID, dec.Action, nil)
			}
		}
	}

	// The decision row is recorded no matter how the cycle went.
	r.persistDecision(ctx, agent, mc, &dec, agg, approved, reason, res.Executed, orderID)

	res.Duration = time.Since(started)
	metrics.UpdateAgentState(agent.Agent.ID, state.PnLToday, len(state.Positions))

	if execErr != nil {
		metrics.RecordCycle(agent.Agent.ID, metrics.OutcomeError, res.Duration.Seconds())
		return res, fmt.Errorf("execution stage failed: %w", execErr)
	}

	metrics.RecordCycle(agent.Agent.ID, metrics.OutcomeCompleted, res.Duration.Seconds())
	r.logger.Info().
		Str("agent", agent.Agent.ID).
		Str("symbol", symbol).
		Str("action", dec.Action).
		Float64("confidence", dec.Confidence).
		Bool("approved", approved).
		Bool("executed", res.Executed).
		Dur("duration", res.Duration).
		Msg("Cycle completed")

	return res, nil
}

func (r *Runner) persistSentiment(ctx context.Context, agg sentiment.Aggregated, ts time.Time) {
	if r.store == nil || len(agg.Breakdown) == 0 {
		return
	}

	records := make([]db.SentimentRecord, 0, len(agg.Breakdown))
	for source, result := range agg.Breakdown {
		if !result.Available {
			continue
		}
		records = append(records, db.SentimentRecord{
			Symbol:     result.Symbol,
			Timestamp:  ts.Truncate(time.Minute),
			Source:     source,
			Score:      result.Score,
			Confidence: result.Confidence,
			Category:   result.Category,
			Details:    result.Details,
		})
	}
	if err := r.store.UpsertSentiment(ctx, records); err != nil {
		r.logger.Error().Err(err).Msg("Failed to persist sentiment readings")
	}
}

func (r *Runner) persistDecision(ctx context.Context, agent *config.AgentConfig, mc *market.Context, dec *decision.Decision, agg sentiment.Aggregated, approved bool, reason string, executed bool, orderID *string) {
	if r.store == nil {
		return
	}

	sources := make(map[string]interface{}, len(agg.Breakdown))
	for source, result := range agg.Breakdown {
		sources[source] = map[string]interface{}{
			"score":      result.Score,
			"confidence": result.Confidence,
			"category":   result.Category,
			"available":  result.Available,
		}
	}

	rec := &db.DecisionRecord{
		AgentID:          agent.Agent.ID,
		Symbol:           agent.Agent.Asset,
		Timestamp:        mc.Timestamp,
		Action:           dec.Action,
		Quantity:         dec.Quantity,
		EntryPrice:       mc.CurrentPrice,
		StopLoss:         dec.StopLoss,
		Confidence:       dec.Confidence,
		SentimentScore:   dec.SentimentScore,
		TechnicalScore:   dec.TechnicalScore,
		CombinedScore:    dec.CombinedScore,
		Reasoning:        dec.Rationale,
		SentimentSources: sources,
		TradeApproved:    approved,
		TradeExecuted:    executed,
		OrderID:          orderID,
		DryRun:           r.opts.DryRun,
	}
	if !approved {
		rec.RejectionReason = &reason
	}

	if err := r.store.InsertDecision(ctx, rec); err != nil {
		r.logger.Error().Err(err).Str("agent", agent.Agent.ID).Msg("Failed to persist decision")
	}
}

func totalQuantity(state *config.AgentState) float64 {
	var total float64
	for _, pos := range state.Positions {
		total += pos.Quantity
	}
	return total
}
