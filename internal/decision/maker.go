// Package decision fuses sentiment and technical signals into trade decisions.
package decision

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tradepilot/tradepilot/internal/config"
)

// Decision actions
const (
	ActionBuy  = "buy"
	ActionSell = "sell"
	ActionHold = "hold"
)

// Combined score thresholds
const (
	BuyThreshold  = 0.3
	SellThreshold = -0.3
	NeutralZone   = 0.15
)

// Confidence bands for position sizing
const (
	ConfidenceHigh   = 0.85 // 100% of max position
	ConfidenceMedium = 0.75 // 75%
	ConfidenceLow    = 0.65 // 50%
)

// Default fusion weights
const (
	DefaultSentimentWeight = 0.6
	DefaultTechnicalWeight = 0.4
)

const cryptoQuantityStep = 1e-8

// Params carries everything one decision needs
type Params struct {
	Symbol              string
	SentimentScore      float64
	SentimentConfidence float64
	TechnicalSignal     string // "bullish", "bearish", "neutral"
	TechnicalConfidence float64
	CurrentPrice        float64
	Equity              float64 // used when max position size is a fraction
	HasPosition         bool
	PositionQuantity    float64
	Risk                config.RiskLimits
}

// Decision is the structured output of one decide call
type Decision struct {
	Action         string  `json:"action"`
	Quantity       float64 `json:"quantity"`
	StopLoss       float64 `json:"stop_loss,omitempty"`
	Confidence     float64 `json:"confidence"`
	CombinedScore  float64 `json:"combined_score"`
	SentimentScore float64 `json:"sentiment_score"`
	TechnicalScore float64 `json:"technical_score"`
	Rationale      string  `json:"rationale"`
}

// Maker applies deterministic rules over the fused signal
type Maker struct {
	sentimentWeight float64
	technicalWeight float64
	logger          zerolog.Logger
}

// NewMaker builds a decision maker. Zero weights fall back to 60/40.
func NewMaker(sentimentWeight, technicalWeight float64) *Maker {
	if sentimentWeight <= 0 && technicalWeight <= 0 {
		sentimentWeight = DefaultSentimentWeight
		technicalWeight = DefaultTechnicalWeight
	}
	return &Maker{
		sentimentWeight: sentimentWeight,
		technicalWeight: technicalWeight,
		logger:          config.NewLogger("decision"),
	}
}

// Decide fuses the inputs and applies the threshold rules. Long-only: a
// bearish signal sells an existing position but never opens a short.
func (m *Maker) Decide(p Params) (Decision, error) {
	if p.CurrentPrice <= 0 {
		return Decision{}, fmt.Errorf("invalid current price %.2f for %s", p.CurrentPrice, p.Symbol)
	}

	technicalScore := technicalToScore(p.TechnicalSignal)
	combined := p.SentimentScore*m.sentimentWeight + technicalScore*m.technicalWeight
	confidence := p.SentimentConfidence*m.sentimentWeight + p.TechnicalConfidence*m.technicalWeight

	base := Decision{
		Action:         ActionHold,
		Confidence:     confidence,
		CombinedScore:  combined,
		SentimentScore: p.SentimentScore,
		TechnicalScore: technicalScore,
	}

	m.logger.Debug().
		Str("symbol", p.Symbol).
		Float64("sentiment", p.SentimentScore).
		Str("technical", p.TechnicalSignal).
		Float64("combined_score", combined).
		Float64("confidence", confidence).
		Msg("Fused decision inputs")

	if confidence < p.Risk.MinConfidence {
		base.Rationale = fmt.Sprintf(
			"combined confidence %.2f below threshold %.2f, waiting for higher conviction",
			confidence, p.Risk.MinConfidence)
		return base, nil
	}

	switch {
	case combined > BuyThreshold:
		quantity := m.positionSize(p, confidence)
		stopLoss := roundPrice(p.CurrentPrice * (1 - p.Risk.StopLossFraction))
		base.Action = ActionBuy
		base.Quantity = quantity
		base.StopLoss = stopLoss
		base.Rationale = fmt.Sprintf(
			"strong bullish signal: combined_score %.2f (sentiment %+.2f, technical %s), entering with %.1f%% stop",
			combined, p.SentimentScore, p.TechnicalSignal, p.Risk.StopLossFraction*100)
		return base, nil

	case combined < SellThreshold:
		if p.HasPosition {
			base.Action = ActionSell
			base.Quantity = p.PositionQuantity
			base.Rationale = fmt.Sprintf(
				"strong bearish signal: combined_score %.2f (sentiment %+.2f, technical %s), closing position",
				combined, p.SentimentScore, p.TechnicalSignal)
			return base, nil
		}
		base.Rationale = fmt.Sprintf(
			"strong bearish signal: combined_score %.2f (sentiment %+.2f, technical %s), long-only so not entering",
			combined, p.SentimentScore, p.TechnicalSignal)
		return base, nil

	default:
		strength := "moderate"
		if math.Abs(combined) < NeutralZone {
			strength = "weak"
		}
		base.Rationale = fmt.Sprintf(
			"%s signal: combined_score %.2f below action threshold %.1f, holding",
			strength, combined, BuyThreshold)
		return base, nil
	}
}

// positionSize converts confidence into a fraction of the max position and
// then into a symbol-appropriate quantity. A max position size of one or
// less is read as a fraction of account equity.
func (m *Maker) positionSize(p Params, confidence float64) float64 {
	maxValue := p.Risk.MaxPositionSize
	if maxValue <= 1 {
		maxValue *= p.Equity
	}

	var positionValue float64
	switch {
	case confidence >= ConfidenceHigh:
		positionValue = maxValue
	case confidence >= ConfidenceMedium:
		positionValue = maxValue * 0.75
	default:
		positionValue = maxValue * 0.50
	}

	quantity := positionValue / p.CurrentPrice
	if IsCrypto(p.Symbol) {
		quantity = math.Round(quantity/cryptoQuantityStep) * cryptoQuantityStep
		if quantity < cryptoQuantityStep {
			quantity = cryptoQuantityStep
		}
		return quantity
	}

	quantity = math.Floor(quantity)
	if quantity < 1 {
		quantity = 1
	}
	return quantity
}

// IsCrypto reports whether the symbol is a crypto pair like BTC/USD
func IsCrypto(symbol string) bool {
	return strings.Contains(symbol, "/")
}

func technicalToScore(signal string) float64 {
	switch strings.ToLower(signal) {
	case "bullish":
		return 1
	case "bearish":
		return -1
	default:
		return 0
	}
}

func roundPrice(v float64) float64 {
	return math.Round(v*100) / 100
}
