// Package technical turns a market context into directional trading signals.
package technical

import (
	"fmt"
	"math"

	"github.com/tradepilot/tradepilot/internal/market"
)

// Signal directions
const (
	DirectionBullish = "bullish"
	DirectionBearish = "bearish"
	DirectionNeutral = "neutral"
)

// Indicator families emitting signals
const (
	IndicatorRSI         = "rsi"
	IndicatorSMAPosition = "sma_position"
	IndicatorTrend       = "trend"
	IndicatorLevels      = "support_resistance"
	IndicatorVolume      = "volume"
	IndicatorPriceAction = "price_action"
)

// Signal is one indicator family's read of the market
type Signal struct {
	Indicator  string  `json:"indicator"`
	Direction  string  `json:"direction"`
	Confidence float64 `json:"confidence"`
	Value      float64 `json:"value"`
	Reasoning  string  `json:"reasoning"`
}

// Analysis is the synthesized view across all available signals
type Analysis struct {
	Symbol     string   `json:"symbol"`
	Overall    string   `json:"overall_signal"`
	Confidence float64  `json:"confidence"`
	Signals    []Signal `json:"signals"`
}

// Score maps the overall direction onto [-1, 1] for decision fusion
func (a *Analysis) Score() float64 {
	switch a.Overall {
	case DirectionBullish:
		return 1
	case DirectionBearish:
		return -1
	default:
		return 0
	}
}

// Analyze evaluates every indicator family present in the context and
// synthesizes an overall direction by confidence-weighted vote.
func Analyze(mctx *market.Context) Analysis {
	var signals []Signal

	if mctx.Indicators != nil {
		if mctx.Indicators.RSI14 != nil {
			signals = append(signals, rsiSignal(*mctx.Indicators.RSI14))
		}
		if mctx.Indicators.PriceVsSMA20Pct != nil {
			signals = append(signals, smaSignal(*mctx.Indicators.PriceVsSMA20Pct))
		}
	}
	if mctx.Trend != nil {
		signals = append(signals, trendSignal(mctx.Trend))
	}
	if mctx.Levels != nil {
		signals = append(signals, levelsSignal(mctx.Levels))
	}
	if mctx.Volume != nil {
		signals = append(signals, volumeSignal(mctx.Volume))
	}
	if mctx.PriceAction != nil {
		signals = append(signals, priceActionSignal(mctx.PriceAction))
	}

	overall, confidence := synthesize(signals)
	return Analysis{
		Symbol:     mctx.Symbol,
		Overall:    overall,
		Confidence: confidence,
		Signals:    signals,
	}
}

// rsiSignal reads oversold below 30 and overbought above 70. Inside the
// band, conviction fades toward zero at the 30/70 edges.
func rsiSignal(rsi float64) Signal {
	switch {
	case rsi < 30:
		return Signal{
			Indicator:  IndicatorRSI,
			Direction:  DirectionBullish,
			Confidence: math.Min((30-rsi)/10, 1),
			Value:      rsi,
			Reasoning:  fmt.Sprintf("RSI %.1f oversold", rsi),
		}
	case rsi > 70:
		return Signal{
			Indicator:  IndicatorRSI,
			Direction:  DirectionBearish,
			Confidence: math.Min((rsi-70)/10, 1),
			Value:      rsi,
			Reasoning:  fmt.Sprintf("RSI %.1f overbought", rsi),
		}
	default:
		return Signal{
			Indicator:  IndicatorRSI,
			Direction:  DirectionNeutral,
			Confidence: 1 - math.Abs(rsi-50)/20,
			Value:      rsi,
			Reasoning:  fmt.Sprintf("RSI %.1f in neutral range", rsi),
		}
	}
}

func smaSignal(pct float64) Signal {
	switch {
	case pct > 2:
		return Signal{
			Indicator:  IndicatorSMAPosition,
			Direction:  DirectionBullish,
			Confidence: math.Min(math.Abs(pct)/5, 1),
			Value:      pct,
			Reasoning:  fmt.Sprintf("price %.1f%% above SMA20", pct),
		}
	case pct < -2:
		return Signal{
			Indicator:  IndicatorSMAPosition,
			Direction:  DirectionBearish,
			Confidence: math.Min(math.Abs(pct)/5, 1),
			Value:      pct,
			Reasoning:  fmt.Sprintf("price %.1f%% below SMA20", pct),
		}
	default:
		return Signal{
			Indicator:  IndicatorSMAPosition,
			Direction:  DirectionNeutral,
			Confidence: 0.5,
			Value:      pct,
			Reasoning:  fmt.Sprintf("price %.1f%% from SMA20", pct),
		}
	}
}

// trendSignal passes the detected trend through directly
func trendSignal(trend *market.Trend) Signal {
	direction := DirectionNeutral
	confidence := 0.5
	switch trend.Direction {
	case market.TrendBullish:
		direction = DirectionBullish
		confidence = trend.Strength
	case market.TrendBearish:
		direction = DirectionBearish
		confidence = trend.Strength
	}
	return Signal{
		Indicator:  IndicatorTrend,
		Direction:  direction,
		Confidence: confidence,
		Value:      trend.ChangePct,
		Reasoning:  fmt.Sprintf("%s trend, %.1f%% change", trend.Direction, trend.ChangePct),
	}
}

// levelsSignal expects a bounce within 2% of support and a rejection
// within 2% of resistance
func levelsSignal(levels *market.Levels) Signal {
	supportDist := levels.DistanceToSupportPct
	resistanceDist := levels.DistanceToResistancePct

	if supportDist >= 0 && supportDist <= 2 {
		return Signal{
			Indicator:  IndicatorLevels,
			Direction:  DirectionBullish,
			Confidence: math.Max(0.6, 1-supportDist/2),
			Value:      levels.Support,
			Reasoning:  fmt.Sprintf("price %.1f%% above support %.2f", supportDist, levels.Support),
		}
	}
	if resistanceDist >= 0 && resistanceDist <= 2 {
		return Signal{
			Indicator:  IndicatorLevels,
			Direction:  DirectionBearish,
			Confidence: math.Max(0.6, 1-resistanceDist/2),
			Value:      levels.Resistance,
			Reasoning:  fmt.Sprintf("price %.1f%% below resistance %.2f", resistanceDist, levels.Resistance),
		}
	}
	return Signal{
		Indicator:  IndicatorLevels,
		Direction:  DirectionNeutral,
		Confidence: 0.4,
		Reasoning:  "price between support and resistance",
	}
}

// volumeSignal is directionless: it only modulates overall conviction
func volumeSignal(volume *market.VolumeAnalysis) Signal {
	confidence := 0.5
	switch volume.Trend {
	case market.VolumeHigh:
		confidence = 0.7
	case market.VolumeLow:
		confidence = 0.3
	}
	return Signal{
		Indicator:  IndicatorVolume,
		Direction:  DirectionNeutral,
		Confidence: confidence,
		Value:      volume.Ratio,
		Reasoning:  fmt.Sprintf("%s volume, %.2fx average", volume.Trend, volume.Ratio),
	}
}

var priceActionTable = map[string]struct {
	direction  string
	confidence float64
}{
	market.PatternStrongUptrend:        {DirectionBullish, 0.85},
	market.PatternStrongDowntrend:      {DirectionBearish, 0.85},
	market.PatternBullishConsolidation: {DirectionBullish, 0.65},
	market.PatternBearishConsolidation: {DirectionBearish, 0.65},
	market.PatternChoppy:               {DirectionNeutral, 0.3},
}

func priceActionSignal(action *market.PriceAction) Signal {
	entry, ok := priceActionTable[action.Pattern]
	if !ok {
		entry.direction = DirectionNeutral
		entry.confidence = 0.3
	}
	return Signal{
		Indicator:  IndicatorPriceAction,
		Direction:  entry.direction,
		Confidence: entry.confidence,
		Reasoning:  fmt.Sprintf("%s over %d bars", action.Pattern, action.BarsAnalyzed),
	}
}

// synthesize sums signal confidences per direction and takes the strict
// arg-max. Ties break toward neutral; no signals means neutral with zero
// confidence.
func synthesize(signals []Signal) (string, float64) {
	if len(signals) == 0 {
		return DirectionNeutral, 0
	}

	sums := map[string]float64{}
	var total float64
	for _, sig := range signals {
		sums[sig.Direction] += sig.Confidence
		total += sig.Confidence
	}
	if total == 0 {
		return DirectionNeutral, 0
	}

	winner := DirectionNeutral
	winning := sums[DirectionNeutral]
	if sums[DirectionBullish] > winning {
		winner = DirectionBullish
		winning = sums[DirectionBullish]
	}
	if sums[DirectionBearish] > winning {
		winner = DirectionBearish
		winning = sums[DirectionBearish]
	}
	// A bullish/bearish dead heat is no signal at all.
	if sums[DirectionBullish] == sums[DirectionBearish] && winner != DirectionNeutral {
		winner = DirectionNeutral
		winning = sums[DirectionNeutral]
	}

	return winner, winning / total
}
