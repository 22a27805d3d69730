package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tradepilot/tradepilot/internal/broker"
	"github.com/tradepilot/tradepilot/internal/config"
	"github.com/tradepilot/tradepilot/internal/decision"
)

// Result reports what execution did with a decision
type Result struct {
	Executed  bool          `json:"executed"`
	Simulated bool          `json:"simulated"`
	Order     *broker.Order `json:"order,omitempty"`
}

// Executor submits approved decisions to the broker, mutates agent state
// on successful fills, and journals everything. In dry-run mode orders
// are simulated and agent state is left untouched.
type Executor struct {
	broker    broker.Broker
	journal   *Journal
	agentsDir string
	dryRun    bool
	logger    zerolog.Logger
}

// New creates an executor
func New(b broker.Broker, journal *Journal, agentsDir string, dryRun bool) *Executor {
	return &Executor{
		broker:    b,
		journal:   journal,
		agentsDir: agentsDir,
		dryRun:    dryRun,
		logger:    config.NewLogger("executor"),
	}
}

// Execute carries out a risk-approved decision for the agent at the given
// price. Holds are journaled and nothing else happens. Agent state is
// mutated and persisted only after a live order succeeds; a broker error
// leaves state exactly as it was.
func (e *Executor) Execute(ctx context.Context, agent *config.AgentConfig, state *config.AgentState, dec *decision.Decision, price float64) (*Result, error) {
	now := time.Now().UTC()
	symbol := agent.Agent.Asset

	entry := DecisionEntry{
		Timestamp:      now,
		AgentID:        agent.Agent.ID,
		Symbol:         symbol,
		Action:         dec.Action,
		Quantity:       dec.Quantity,
		StopLoss:       dec.StopLoss,
		Confidence:     dec.Confidence,
		CombinedScore:  dec.CombinedScore,
		SentimentScore: dec.SentimentScore,
		TechnicalScore: dec.TechnicalScore,
		Rationale:      dec.Rationale,
		Approved:       true,
		DryRun:         e.dryRun,
	}
	if err := e.journal.LogDecision(entry); err != nil {
		e.logger.Error().Err(err).Str("agent", agent.Agent.ID).Msg("Failed to journal decision")
	}

	if dec.Action == decision.ActionHold {
		return &Result{}, nil
	}

	if e.dryRun {
		return e.simulate(agent, dec, price, now)
	}

	order, err := e.broker.SubmitOrder(ctx, broker.OrderRequest{
		Symbol:      symbol,
		Quantity:    dec.Quantity,
		Side:        dec.Action,
		Type:        broker.TypeMarket,
		TimeInForce: broker.TIFDay,
		StopLoss:    stopLossFor(dec),
	})
	if err != nil {
		return nil, fmt.Errorf("order submission failed for %s: %w", symbol, err)
	}

	fillPrice := order.FilledPrice
	if fillPrice <= 0 {
		fillPrice = price
	}

	realized := e.applyFill(agent, state, dec, order, fillPrice, now)

	if err := config.SaveAgentState(e.agentsDir, agent.Agent.ID, state); err != nil {
		return nil, fmt.Errorf("order filled but state save failed: %w", err)
	}

	if err := e.journal.LogTrade(TradeEntry{
		Timestamp:   now,
		AgentID:     agent.Agent.ID,
		Symbol:      symbol,
		Side:        dec.Action,
		Quantity:    order.FilledQuantity,
		Price:       fillPrice,
		OrderID:     order.ID,
		RealizedPnL: realized,
	}); err != nil {
		e.logger.Error().Err(err).Str("agent", agent.Agent.ID).Msg("Failed to journal trade")
	}

	e.logger.Info().
		Str("agent", agent.Agent.ID).
		Str("symbol", symbol).
		Str("side", dec.Action).
		Float64("quantity", order.FilledQuantity).
		Float64("price", fillPrice).
		Str("order_id", order.ID).
		Msg("Order executed")

	return &Result{Executed: true, Order: order}, nil
}

// simulate journals a would-be fill without touching broker or state
func (e *Executor) simulate(agent *config.AgentConfig, dec *decision.Decision, price float64, now time.Time) (*Result, error) {
	order := &broker.Order{
		ID:             "dry-run",
		Symbol:         agent.Agent.Asset,
		Side:           dec.Action,
		Type:           broker.TypeMarket,
		Status:         broker.StatusFilled,
		Quantity:       dec.Quantity,
		FilledQuantity: dec.Quantity,
		FilledPrice:    price,
		SubmittedAt:    now,
		FilledAt:       &now,
	}

	if err := e.journal.LogTrade(TradeEntry{
		Timestamp: now,
		AgentID:   agent.Agent.ID,
		Symbol:    agent.Agent.Asset,
		Side:      dec.Action,
		Quantity:  dec.Quantity,
		Price:     price,
		OrderID:   order.ID,
		DryRun:    true,
	}); err != nil {
		e.logger.Error().Err(err).Str("agent", agent.Agent.ID).Msg("Failed to journal simulated trade")
	}

	e.logger.Info().
		Str("agent", agent.Agent.ID).
		Str("symbol", agent.Agent.Asset).
		Str("side", dec.Action).
		Float64("quantity", dec.Quantity).
		Float64("price", price).
		Msg("Dry run: order simulated")

	return &Result{Executed: true, Simulated: true, Order: order}, nil
}

// applyFill updates the in-memory agent state for a successful fill and
// returns the realized PnL (zero for buys).
func (e *Executor) applyFill(agent *config.AgentConfig, state *config.AgentState, dec *decision.Decision, order *broker.Order, fillPrice float64, now time.Time) float64 {
	state.TradesToday++
	state.LastTradeTime = &now

	if dec.Action == decision.ActionBuy {
		state.Positions = append(state.Positions, config.OpenPosition{
			Quantity:   order.FilledQuantity,
			EntryPrice: fillPrice,
			StopLoss:   dec.StopLoss,
			Timestamp:  now,
			OrderID:    order.ID,
		})
		return 0
	}

	// Sells close oldest-first. Realized PnL accrues to the daily counter.
	var realized float64
	remaining := order.FilledQuantity
	for len(state.Positions) > 0 && remaining > 0 {
		pos := &state.Positions[0]
		closed := pos.Quantity
		if closed > remaining {
			closed = remaining
		}
		realized += (fillPrice - pos.EntryPrice) * closed
		pos.Quantity -= closed
		remaining -= closed
		if pos.Quantity <= 0 {
			state.Positions = state.Positions[1:]
		}
	}
	state.PnLToday += realized
	return realized
}

func stopLossFor(dec *decision.Decision) float64 {
	if dec.Action == decision.ActionBuy {
		return dec.StopLoss
	}
	return 0
}
