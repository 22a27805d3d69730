// Package risk gates trading decisions against per-agent and company limits.
package risk

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tradepilot/tradepilot/internal/config"
	"github.com/tradepilot/tradepilot/internal/decision"
)

// Validator applies the ordered risk rules. It holds no mutable state;
// every input arrives as an argument, so calls are safe from any goroutine.
type Validator struct {
	logger zerolog.Logger
}

func NewValidator() *Validator {
	return &Validator{logger: config.NewLogger("risk")}
}

// Validate runs the ordered rule list and returns the first failure.
// The rule order is part of the contract: callers surface the reason
// verbatim in decision records.
func (v *Validator) Validate(agent *config.AgentConfig, state *config.AgentState, dec *decision.Decision, currentPrice float64) (bool, string) {
	action := dec.Action
	tradeAction := action == decision.ActionBuy || action == decision.ActionSell

	// 1. Agent must be active.
	if agent.Agent.Status != config.AgentStatusActive {
		return v.reject(agent, fmt.Sprintf("agent status is %s, not active", agent.Agent.Status))
	}

	// 2. Daily trade limit.
	if state.TradesToday >= agent.Risk.MaxDailyTrades {
		return v.reject(agent, fmt.Sprintf("daily trade limit reached (%d/%d)",
			state.TradesToday, agent.Risk.MaxDailyTrades))
	}

	// 3. Position size cap.
	if tradeAction {
		positionValue := dec.Quantity * currentPrice
		if positionValue > agent.Risk.MaxPositionSize {
			return v.reject(agent, fmt.Sprintf("position size $%.2f exceeds max $%.2f",
				positionValue, agent.Risk.MaxPositionSize))
		}
	}

	// 4. Capital must be allocated.
	if agent.Performance.AllocatedCapital <= 0 {
		return v.reject(agent, "no capital allocated to agent")
	}

	// 5. Buys carry a stop loss at least as wide as the configured fraction.
	if action == decision.ActionBuy {
		if dec.StopLoss <= 0 {
			return v.reject(agent, "buy order must include stop_loss")
		}
		stopPct := (currentPrice - dec.StopLoss) / currentPrice
		if stopPct < agent.Risk.StopLossFraction {
			return v.reject(agent, fmt.Sprintf("stop loss too tight: %.1f%% < %.1f%%",
				stopPct*100, agent.Risk.StopLossFraction*100))
		}
	}

	// 6. Daily loss limit.
	if state.PnLToday < -agent.Risk.MaxDailyLoss {
		return v.reject(agent, fmt.Sprintf("daily loss limit exceeded: $%.2f < $%.2f",
			state.PnLToday, -agent.Risk.MaxDailyLoss))
	}

	// 7. Confidence threshold.
	if dec.Confidence < agent.Risk.MinConfidence {
		return v.reject(agent, fmt.Sprintf("confidence %.0f%% below threshold %.0f%%",
			dec.Confidence*100, agent.Risk.MinConfidence*100))
	}

	// 8. Decision structure.
	if reason, ok := requiredFields(dec, tradeAction); !ok {
		return v.reject(agent, reason)
	}

	// 9. Concurrent position cap.
	if action == decision.ActionBuy && len(state.Positions) >= agent.Risk.MaxConcurrentPositions {
		return v.reject(agent, fmt.Sprintf("maximum concurrent positions reached (%d/%d)",
			len(state.Positions), agent.Risk.MaxConcurrentPositions))
	}

	return true, "all risk checks passed"
}

func requiredFields(dec *decision.Decision, tradeAction bool) (string, bool) {
	switch dec.Action {
	case decision.ActionBuy, decision.ActionSell, decision.ActionHold:
	default:
		return fmt.Sprintf("invalid action %q", dec.Action), false
	}
	if dec.Rationale == "" {
		return "missing required field: rationale", false
	}
	if tradeAction {
		if dec.Quantity <= 0 {
			return "missing required field: quantity", false
		}
		if dec.Confidence <= 0 {
			return "missing required field: confidence", false
		}
	}
	return "", true
}

func (v *Validator) reject(agent *config.AgentConfig, reason string) (bool, string) {
	v.logger.Warn().
		Str("agent_id", agent.Agent.ID).
		Str("reason", reason).
		Msg("Decision rejected")
	return false, reason
}

// ValidateCompanyCapital checks that the capital allocated across all agents
// stays inside the company deployment ceiling.
func ValidateCompanyCapital(agents []*config.AgentConfig, company config.CompanyConfig) (bool, string) {
	var totalAllocated float64
	for _, agent := range agents {
		totalAllocated += agent.Performance.AllocatedCapital
	}

	maxDeployable := company.MaxCapital * company.MaxDeploymentPct
	if totalAllocated > maxDeployable {
		return false, fmt.Sprintf("total allocated capital $%.2f exceeds deployable $%.2f",
			totalAllocated, maxDeployable)
	}
	return true, fmt.Sprintf("allocated $%.2f of $%.2f deployable", totalAllocated, maxDeployable)
}
