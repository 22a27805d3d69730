package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeBars(closes []float64) []Bar {
	bars := make([]Bar, len(closes))
	base := time.Date(2026, 8, 3, 9, 30, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = Bar{
			Symbol:    "AAPL",
			Timestamp: base.Add(time.Duration(i) * 15 * time.Minute),
			Timeframe: "15m",
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
		}
	}
	return bars
}

func constantCloses(n int, v float64) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = v
	}
	return closes
}

func TestComputeIndicatorsInsufficientData(t *testing.T) {
	bars := makeBars(constantCloses(10, 100))
	assert.Nil(t, computeIndicators(bars))
}

func TestComputeIndicators(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.1
	}
	bars := makeBars(closes)

	ind := computeIndicators(bars)
	require.NotNil(t, ind)

	require.NotNil(t, ind.SMA20)
	// SMA of the last 20 of a linear series is the midpoint of that window
	assert.InDelta(t, 104.95, *ind.SMA20, 0.01)

	require.NotNil(t, ind.SMA50)
	require.NotNil(t, ind.RSI14)
	assert.Equal(t, 100.0, *ind.RSI14) // strictly rising series

	require.NotNil(t, ind.PriceVsSMA20Pct)
	assert.Greater(t, *ind.PriceVsSMA20Pct, 0.0)

	require.NotNil(t, ind.EMA12)
	require.NotNil(t, ind.MACD)
	require.NotNil(t, ind.BollingerWidth)
}

func TestAnalyzeTrend(t *testing.T) {
	tests := []struct {
		name      string
		closes    []float64
		direction string
	}{
		{
			name: "bullish",
			closes: func() []float64 {
				c := make([]float64, 40)
				for i := range c {
					c[i] = 100 + float64(i)
				}
				return c
			}(),
			direction: TrendBullish,
		},
		{
			name: "bearish",
			closes: func() []float64 {
				c := make([]float64, 40)
				for i := range c {
					c[i] = 140 - float64(i)
				}
				return c
			}(),
			direction: TrendBearish,
		},
		{
			name:      "sideways",
			closes:    constantCloses(40, 100),
			direction: TrendSideways,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trend := analyzeTrend(makeBars(tt.closes))
			require.NotNil(t, trend)
			assert.Equal(t, tt.direction, trend.Direction)
			if tt.direction == TrendSideways {
				assert.Equal(t, 0.5, trend.Strength)
			} else {
				assert.Greater(t, trend.Strength, 0.0)
				assert.LessOrEqual(t, trend.Strength, 1.0)
			}
		})
	}
}

func TestAnalyzeTrendTooFewBars(t *testing.T) {
	assert.Nil(t, analyzeTrend(makeBars(constantCloses(5, 100))))
}

func TestFindLevels(t *testing.T) {
	closes := constantCloses(30, 100)
	bars := makeBars(closes)
	// Highs are close+1, lows are close-1 in the fixture
	levels := findLevels(bars)
	require.NotNil(t, levels)
	assert.Equal(t, 99.0, levels.Support)
	assert.Equal(t, 101.0, levels.Resistance)
	assert.InDelta(t, 1.01, levels.DistanceToSupportPct, 0.01)
	assert.InDelta(t, 1.0, levels.DistanceToResistancePct, 0.01)
}

func TestAnalyzeVolume(t *testing.T) {
	bars := makeBars(constantCloses(30, 100))

	t.Run("normal", func(t *testing.T) {
		va := analyzeVolume(bars)
		require.NotNil(t, va)
		assert.Equal(t, VolumeNormal, va.Trend)
		assert.InDelta(t, 1.0, va.Ratio, 0.01)
	})

	t.Run("high", func(t *testing.T) {
		spiked := make([]Bar, len(bars))
		copy(spiked, bars)
		spiked[len(spiked)-1].Volume = 5000
		va := analyzeVolume(spiked)
		require.NotNil(t, va)
		assert.Equal(t, VolumeHigh, va.Trend)
		assert.Greater(t, va.Ratio, 1.5)
	})

	t.Run("low", func(t *testing.T) {
		quiet := make([]Bar, len(bars))
		copy(quiet, bars)
		quiet[len(quiet)-1].Volume = 100
		va := analyzeVolume(quiet)
		require.NotNil(t, va)
		assert.Equal(t, VolumeLow, va.Trend)
	})
}

func TestAnalyzePriceAction(t *testing.T) {
	base := time.Date(2026, 8, 3, 9, 30, 0, 0, time.UTC)
	mk := func(highs, lows []float64) []Bar {
		bars := make([]Bar, len(highs))
		for i := range highs {
			bars[i] = Bar{
				Timestamp: base.Add(time.Duration(i) * time.Minute),
				High:      highs[i],
				Low:       lows[i],
				Close:     (highs[i] + lows[i]) / 2,
			}
		}
		return bars
	}

	tests := []struct {
		name    string
		highs   []float64
		lows    []float64
		pattern string
	}{
		{
			name:    "strong uptrend",
			highs:   []float64{101, 102, 103, 104, 105},
			lows:    []float64{99, 100, 101, 102, 103},
			pattern: PatternStrongUptrend,
		},
		{
			name:    "strong downtrend",
			highs:   []float64{105, 104, 103, 102, 101},
			lows:    []float64{103, 102, 101, 100, 99},
			pattern: PatternStrongDowntrend,
		},
		{
			name:    "bullish consolidation",
			highs:   []float64{105, 103, 104, 103, 104},
			lows:    []float64{99, 100, 101, 102, 103},
			pattern: PatternBullishConsolidation,
		},
		{
			name:    "bearish consolidation",
			highs:   []float64{105, 104, 103, 102, 101},
			lows:    []float64{99, 101, 100, 101, 100},
			pattern: PatternBearishConsolidation,
		},
		{
			name:    "choppy",
			highs:   []float64{101, 105, 102, 106, 101},
			lows:    []float64{99, 103, 98, 104, 97},
			pattern: PatternChoppy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pa := analyzePriceAction(mk(tt.highs, tt.lows))
			require.NotNil(t, pa)
			assert.Equal(t, tt.pattern, pa.Pattern)
			assert.Equal(t, 5, pa.BarsAnalyzed)
		})
	}
}

func TestAnalyzePriceActionTooFewBars(t *testing.T) {
	assert.Nil(t, analyzePriceAction(makeBars(constantCloses(3, 100))))
}
