package technical

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tradepilot/tradepilot/internal/market"
)

func f(v float64) *float64 { return &v }

func TestRSISignal(t *testing.T) {
	tests := []struct {
		name       string
		rsi        float64
		direction  string
		confidence float64
	}{
		{"Deeply oversold", 15.0, DirectionBullish, 1.0},
		{"Oversold", 25.0, DirectionBullish, 0.5},
		{"Boundary thirty is neutral", 30.0, DirectionNeutral, 0.0},
		{"Midpoint fifty", 50.0, DirectionNeutral, 1.0},
		{"Boundary seventy is neutral", 70.0, DirectionNeutral, 0.0},
		{"Overbought", 75.0, DirectionBearish, 0.5},
		{"Deeply overbought", 85.0, DirectionBearish, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := rsiSignal(tt.rsi)
			assert.Equal(t, tt.direction, sig.Direction)
			assert.InDelta(t, tt.confidence, sig.Confidence, 0.0001)
		})
	}
}

func TestSMASignal(t *testing.T) {
	tests := []struct {
		name       string
		pct        float64
		direction  string
		confidence float64
	}{
		{"Well above", 4.0, DirectionBullish, 0.8},
		{"Far above caps at one", 10.0, DirectionBullish, 1.0},
		{"Well below", -4.0, DirectionBearish, 0.8},
		{"Near the average", 1.0, DirectionNeutral, 0.5},
		{"Boundary two percent is neutral", 2.0, DirectionNeutral, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := smaSignal(tt.pct)
			assert.Equal(t, tt.direction, sig.Direction)
			assert.InDelta(t, tt.confidence, sig.Confidence, 0.0001)
		})
	}
}

func TestTrendSignal(t *testing.T) {
	bullish := trendSignal(&market.Trend{Direction: market.TrendBullish, Strength: 0.8, ChangePct: 4.0})
	assert.Equal(t, DirectionBullish, bullish.Direction)
	assert.InDelta(t, 0.8, bullish.Confidence, 0.0001)

	sideways := trendSignal(&market.Trend{Direction: market.TrendSideways, Strength: 0.2})
	assert.Equal(t, DirectionNeutral, sideways.Direction)
	assert.InDelta(t, 0.5, sideways.Confidence, 0.0001)
}

func TestLevelsSignal(t *testing.T) {
	nearSupport := levelsSignal(&market.Levels{
		Support:              98.0,
		Resistance:           110.0,
		DistanceToSupportPct: 1.0,
		DistanceToResistancePct: 10.0,
	})
	assert.Equal(t, DirectionBullish, nearSupport.Direction)
	assert.InDelta(t, 0.6, nearSupport.Confidence, 0.0001) // max(0.6, 1-1/2)

	atSupport := levelsSignal(&market.Levels{
		Support:              100.0,
		DistanceToSupportPct: 0.0,
		DistanceToResistancePct: 10.0,
	})
	assert.InDelta(t, 1.0, atSupport.Confidence, 0.0001)

	nearResistance := levelsSignal(&market.Levels{
		Resistance:           102.0,
		DistanceToSupportPct: 10.0,
		DistanceToResistancePct: 0.5,
	})
	assert.Equal(t, DirectionBearish, nearResistance.Direction)
	assert.InDelta(t, 0.75, nearResistance.Confidence, 0.0001)

	between := levelsSignal(&market.Levels{
		DistanceToSupportPct:    5.0,
		DistanceToResistancePct: 5.0,
	})
	assert.Equal(t, DirectionNeutral, between.Direction)
	assert.InDelta(t, 0.4, between.Confidence, 0.0001)
}

func TestVolumeSignalAlwaysNeutral(t *testing.T) {
	tests := []struct {
		trend      string
		confidence float64
	}{
		{market.VolumeHigh, 0.7},
		{market.VolumeLow, 0.3},
		{market.VolumeNormal, 0.5},
	}
	for _, tt := range tests {
		sig := volumeSignal(&market.VolumeAnalysis{Trend: tt.trend, Ratio: 1.0})
		assert.Equal(t, DirectionNeutral, sig.Direction)
		assert.InDelta(t, tt.confidence, sig.Confidence, 0.0001)
	}
}

func TestPriceActionSignal(t *testing.T) {
	tests := []struct {
		pattern    string
		direction  string
		confidence float64
	}{
		{market.PatternStrongUptrend, DirectionBullish, 0.85},
		{market.PatternStrongDowntrend, DirectionBearish, 0.85},
		{market.PatternBullishConsolidation, DirectionBullish, 0.65},
		{market.PatternBearishConsolidation, DirectionBearish, 0.65},
		{market.PatternChoppy, DirectionNeutral, 0.3},
	}
	for _, tt := range tests {
		sig := priceActionSignal(&market.PriceAction{Pattern: tt.pattern, BarsAnalyzed: 5})
		assert.Equal(t, tt.direction, sig.Direction, tt.pattern)
		assert.InDelta(t, tt.confidence, sig.Confidence, 0.0001, tt.pattern)
	}
}

func TestAnalyzeBullishContext(t *testing.T) {
	mctx := &market.Context{
		Symbol: "AAPL",
		Indicators: &market.Indicators{
			RSI14:           f(25.0), // bullish 0.5
			PriceVsSMA20Pct: f(3.0),  // bullish 0.6
		},
		Trend:       &market.Trend{Direction: market.TrendBullish, Strength: 0.8},             // bullish 0.8
		Levels:      &market.Levels{DistanceToSupportPct: 5.0, DistanceToResistancePct: 5.0},  // neutral 0.4
		Volume:      &market.VolumeAnalysis{Trend: market.VolumeHigh, Ratio: 1.8},             // neutral 0.7
		PriceAction: &market.PriceAction{Pattern: market.PatternStrongUptrend, BarsAnalyzed: 5}, // bullish 0.85
	}

	analysis := Analyze(mctx)
	assert.Equal(t, DirectionBullish, analysis.Overall)
	assert.InDelta(t, 2.75/3.85, analysis.Confidence, 0.0001)
	assert.Len(t, analysis.Signals, 6)
	assert.Equal(t, 1.0, analysis.Score())
}

func TestAnalyzeTieBreaksNeutral(t *testing.T) {
	// Bullish and bearish dead heat: SMA +4% vs price action strong downtrend
	// would not tie, so build the tie from trend vs SMA.
	mctx := &market.Context{
		Symbol: "AAPL",
		Indicators: &market.Indicators{
			PriceVsSMA20Pct: f(4.0), // bullish 0.8
		},
		Trend:  &market.Trend{Direction: market.TrendBearish, Strength: 0.8}, // bearish 0.8
		Volume: &market.VolumeAnalysis{Trend: market.VolumeNormal, Ratio: 1.0}, // neutral 0.5
	}

	analysis := Analyze(mctx)
	assert.Equal(t, DirectionNeutral, analysis.Overall)
	assert.InDelta(t, 0.5/2.1, analysis.Confidence, 0.0001)
	assert.Equal(t, 0.0, analysis.Score())
}

func TestAnalyzeEmptyContext(t *testing.T) {
	analysis := Analyze(&market.Context{Symbol: "AAPL"})
	assert.Equal(t, DirectionNeutral, analysis.Overall)
	assert.Equal(t, 0.0, analysis.Confidence)
	assert.Empty(t, analysis.Signals)
}
