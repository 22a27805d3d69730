package backtest

import (
	"math"

	"github.com/tradepilot/tradepilot/internal/db"
	"github.com/tradepilot/tradepilot/internal/decision"
)

const (
	riskFreeRate     = 0.02
	tradingDaysPerYr = 252.0
)

func totalReturnPct(initial, final float64) float64 {
	if initial <= 0 {
		return 0
	}
	return (final - initial) / initial * 100
}

// winRate is the share of closing trades that realized a profit
func winRate(trades []db.BacktestTrade) float64 {
	var sells, winners int
	for _, t := range trades {
		if t.Side != decision.ActionSell {
			continue
		}
		sells++
		if t.PnL > 0 {
			winners++
		}
	}
	if sells == 0 {
		return 0
	}
	return float64(winners) / float64(sells)
}

// avgTradePnL averages realized PnL over closing trades
func avgTradePnL(trades []db.BacktestTrade) float64 {
	var sells int
	var total float64
	for _, t := range trades {
		if t.Side != decision.ActionSell {
			continue
		}
		sells++
		total += t.PnL
	}
	if sells == 0 {
		return 0
	}
	return total / float64(sells)
}

// maxDrawdownPct is the largest peak-to-trough equity decline in percent
func maxDrawdownPct(curve []EquityPoint) float64 {
	var peak, maxDD float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// sharpeRatio annualizes per-step returns against the risk-free rate.
// Fewer than two return points, or zero variance, yields zero.
func sharpeRatio(curve []EquityPoint) float64 {
	if len(curve) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev <= 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}

	return (mean - riskFreeRate/tradingDaysPerYr) / std * math.Sqrt(tradingDaysPerYr)
}
