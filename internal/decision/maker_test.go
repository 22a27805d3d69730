package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradepilot/tradepilot/internal/config"
)

func equityRisk() config.RiskLimits {
	return config.RiskLimits{
		MaxPositionSize:  5000,
		StopLossFraction: 0.03,
		MinConfidence:    0.65,
	}
}

func TestDecideStrongBullishEquity(t *testing.T) {
	maker := NewMaker(0, 0)

	dec, err := maker.Decide(Params{
		Symbol:              "AAPL",
		SentimentScore:      0.7,
		SentimentConfidence: 0.8,
		TechnicalSignal:     "bullish",
		TechnicalConfidence: 0.7,
		CurrentPrice:        100.0,
		Risk:                equityRisk(),
	})
	require.NoError(t, err)

	assert.Equal(t, ActionBuy, dec.Action)
	assert.InDelta(t, 0.76, dec.Confidence, 0.0001)
	assert.InDelta(t, 0.82, dec.CombinedScore, 0.0001)

	// 0.76 lands in the 75% band: 3750 / 100 = 37 shares.
	assert.Equal(t, 37.0, dec.Quantity)
	assert.Equal(t, 97.0, dec.StopLoss)
}

func TestDecideHighConfidenceFullPosition(t *testing.T) {
	maker := NewMaker(0, 0)

	dec, err := maker.Decide(Params{
		Symbol:              "AAPL",
		SentimentScore:      0.8,
		SentimentConfidence: 0.9,
		TechnicalSignal:     "bullish",
		TechnicalConfidence: 0.85,
		CurrentPrice:        100.0,
		Risk:                equityRisk(),
	})
	require.NoError(t, err)

	assert.Equal(t, ActionBuy, dec.Action)
	assert.InDelta(t, 0.88, dec.Confidence, 0.0001)
	assert.Equal(t, 50.0, dec.Quantity) // 100% band
	assert.Equal(t, 97.0, dec.StopLoss)
}

func TestDecideMediumConfidenceThreeQuarterPosition(t *testing.T) {
	maker := NewMaker(0, 0)

	dec, err := maker.Decide(Params{
		Symbol:              "AAPL",
		SentimentScore:      0.6,
		SentimentConfidence: 0.8,
		TechnicalSignal:     "bullish",
		TechnicalConfidence: 0.7,
		CurrentPrice:        100.0,
		Risk:                equityRisk(),
	})
	require.NoError(t, err)

	assert.Equal(t, ActionBuy, dec.Action)
	assert.InDelta(t, 0.76, dec.Confidence, 0.0001)
	assert.Equal(t, 37.0, dec.Quantity) // 75% band
}

func TestDecideBelowConfidenceThresholdHolds(t *testing.T) {
	maker := NewMaker(0, 0)

	dec, err := maker.Decide(Params{
		Symbol:              "AAPL",
		SentimentScore:      0.5,
		SentimentConfidence: 0.5,
		TechnicalSignal:     "bullish",
		TechnicalConfidence: 0.6,
		CurrentPrice:        100.0,
		Risk:                equityRisk(),
	})
	require.NoError(t, err)

	assert.Equal(t, ActionHold, dec.Action)
	assert.Equal(t, 0.0, dec.Quantity)
	assert.Contains(t, dec.Rationale, "below threshold")
}

func TestDecideBearishWithoutPositionHolds(t *testing.T) {
	maker := NewMaker(0, 0)

	dec, err := maker.Decide(Params{
		Symbol:              "AAPL",
		SentimentScore:      -0.7,
		SentimentConfidence: 0.8,
		TechnicalSignal:     "bearish",
		TechnicalConfidence: 0.7,
		CurrentPrice:        100.0,
		Risk:                equityRisk(),
	})
	require.NoError(t, err)

	assert.Equal(t, ActionHold, dec.Action)
	assert.Equal(t, 0.0, dec.Quantity)
	assert.Contains(t, dec.Rationale, "bearish")
	assert.Contains(t, dec.Rationale, "long-only")
}

func TestDecideBearishWithPositionSells(t *testing.T) {
	maker := NewMaker(0, 0)

	dec, err := maker.Decide(Params{
		Symbol:              "AAPL",
		SentimentScore:      -0.7,
		SentimentConfidence: 0.8,
		TechnicalSignal:     "bearish",
		TechnicalConfidence: 0.7,
		CurrentPrice:        100.0,
		HasPosition:         true,
		PositionQuantity:    37,
		Risk:                equityRisk(),
	})
	require.NoError(t, err)

	assert.Equal(t, ActionSell, dec.Action)
	assert.Equal(t, 37.0, dec.Quantity)
	assert.Contains(t, dec.Rationale, "closing position")
}

func TestDecideCryptoFractionalQuantity(t *testing.T) {
	maker := NewMaker(0, 0)

	dec, err := maker.Decide(Params{
		Symbol:              "BTC/USD",
		SentimentScore:      0.7,
		SentimentConfidence: 0.9,
		TechnicalSignal:     "bullish",
		TechnicalConfidence: 0.8,
		CurrentPrice:        60000.0,
		Equity:              100000.0,
		Risk: config.RiskLimits{
			MaxPositionSize:  0.05, // fraction of equity
			StopLossFraction: 0.03,
			MinConfidence:    0.65,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, ActionBuy, dec.Action)
	assert.InDelta(t, 0.86, dec.Confidence, 0.0001)

	// 5% of 100k at full size: 5000 / 60000, rounded to 8 decimals.
	assert.InDelta(t, 0.08333333, dec.Quantity, 1e-9)
	assert.Equal(t, 58200.0, dec.StopLoss)
}

func TestDecideExactBuyThresholdHolds(t *testing.T) {
	maker := NewMaker(0, 0)

	dec, err := maker.Decide(Params{
		Symbol:              "AAPL",
		SentimentScore:      0.5, // combined = 0.30 exactly with neutral technical
		SentimentConfidence: 0.9,
		TechnicalSignal:     "neutral",
		TechnicalConfidence: 0.9,
		CurrentPrice:        100.0,
		Risk:                equityRisk(),
	})
	require.NoError(t, err)

	assert.Equal(t, ActionHold, dec.Action)
	assert.InDelta(t, 0.30, dec.CombinedScore, 0.0001)
	assert.Contains(t, dec.Rationale, "moderate")
}

func TestDecideInvalidPrice(t *testing.T) {
	maker := NewMaker(0, 0)

	_, err := maker.Decide(Params{
		Symbol:       "AAPL",
		CurrentPrice: 0,
		Risk:         equityRisk(),
	})
	require.Error(t, err)
}

func TestDecideMonotoneInSentiment(t *testing.T) {
	maker := NewMaker(0, 0)

	// With neutral technical and fixed confidence, increasing sentiment
	// above the buy threshold must never flip a buy back to hold.
	bought := false
	for _, score := range []float64{0.4, 0.6, 0.8, 1.0} {
		dec, err := maker.Decide(Params{
			Symbol:              "AAPL",
			SentimentScore:      score,
			SentimentConfidence: 0.9,
			TechnicalSignal:     "neutral",
			TechnicalConfidence: 0.9,
			CurrentPrice:        100.0,
			Risk:                equityRisk(),
		})
		require.NoError(t, err)
		if bought {
			assert.Equal(t, ActionBuy, dec.Action, "sentiment %.1f", score)
		}
		if dec.Action == ActionBuy {
			bought = true
		}
	}
	assert.True(t, bought)
}

func TestDecideMinimumOneShare(t *testing.T) {
	maker := NewMaker(0, 0)

	dec, err := maker.Decide(Params{
		Symbol:              "AAPL",
		SentimentScore:      0.8,
		SentimentConfidence: 0.7,
		TechnicalSignal:     "bullish",
		TechnicalConfidence: 0.7,
		CurrentPrice:        4000.0, // 50% band of 5000 buys 0.625 shares
		Risk:                equityRisk(),
	})
	require.NoError(t, err)

	assert.Equal(t, ActionBuy, dec.Action)
	assert.Equal(t, 1.0, dec.Quantity)
}
