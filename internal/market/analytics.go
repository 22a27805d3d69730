package market

import (
	"math"

	"github.com/tradepilot/tradepilot/internal/indicators"
)

// BuildContext assembles a market context from bars already in hand.
// The provider uses it with live data; the backtester replays history
// through it one window at a time.
func BuildContext(symbol, timeframe string, bars []Bar, currentPrice float64) *Context {
	mc := &Context{
		Symbol:       symbol,
		Timeframe:    timeframe,
		CurrentPrice: currentPrice,
	}
	if len(bars) == 0 {
		return mc
	}

	mc.Timestamp = bars[len(bars)-1].Timestamp
	mc.DataAvailable = currentPrice > 0
	mc.Bars = bars
	mc.BarCount = len(bars)
	mc.Indicators = computeIndicators(bars)
	mc.Trend = analyzeTrend(bars)
	mc.Levels = findLevels(bars)
	mc.Volume = analyzeVolume(bars)
	mc.PriceAction = analyzePriceAction(bars)
	return mc
}

// computeIndicators calculates indicator values from bars.
// Returns nil when there are fewer than 20 bars.
func computeIndicators(bars []Bar) *Indicators {
	if len(bars) < 20 {
		return nil
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	ind := &Indicators{}

	if sma20, ok := indicators.SMA(closes, 20); ok {
		ind.SMA20 = &sma20

		current := closes[len(closes)-1]
		pct := indicators.PriceVsSMAPct(current, sma20)
		ind.PriceVsSMA20Pct = &pct
	}

	if sma50, ok := indicators.SMA(closes, 50); ok {
		ind.SMA50 = &sma50
	}

	if len(closes) >= 15 {
		rsi := indicators.RSI(closes, 14)
		ind.RSI14 = &rsi
	}

	if ema12, err := indicators.EMA(closes, 12); err == nil {
		ind.EMA12 = &ema12
	}
	if ema26, err := indicators.EMA(closes, 26); err == nil {
		ind.EMA26 = &ema26
	}
	if macd, signal, err := indicators.MACD(closes); err == nil {
		ind.MACD = &macd
		ind.MACDSignal = &signal
	}
	if width, err := indicators.BollingerWidth(closes, 20); err == nil {
		ind.BollingerWidth = &width
	}

	return ind
}

// analyzeTrend compares the first-quarter average against the last-quarter
// average over at most the latest 100 bars. Requires at least 10 bars.
func analyzeTrend(bars []Bar) *Trend {
	if len(bars) < 10 {
		return nil
	}

	window := len(bars)
	if window > 100 {
		window = 100
	}
	recent := bars[len(bars)-window:]

	quarter := len(recent) / 4
	if quarter == 0 {
		quarter = 1
	}

	firstAvg := avgClose(recent[:quarter])
	lastAvg := avgClose(recent[len(recent)-quarter:])
	if firstAvg == 0 {
		return nil
	}

	changePct := ((lastAvg - firstAvg) / firstAvg) * 100

	trend := &Trend{ChangePct: round2(changePct)}
	switch {
	case changePct > 1:
		trend.Direction = TrendBullish
		trend.Strength = round2(math.Min(math.Abs(changePct)/5, 1.0))
	case changePct < -1:
		trend.Direction = TrendBearish
		trend.Strength = round2(math.Min(math.Abs(changePct)/5, 1.0))
	default:
		trend.Direction = TrendSideways
		trend.Strength = 0.5
	}

	return trend
}

// findLevels derives support and resistance from the last 20 bars
func findLevels(bars []Bar) *Levels {
	if len(bars) < 20 {
		return nil
	}

	recent := bars[len(bars)-20:]

	resistance := recent[0].High
	support := recent[0].Low
	for _, b := range recent[1:] {
		if b.High > resistance {
			resistance = b.High
		}
		if b.Low < support {
			support = b.Low
		}
	}

	current := bars[len(bars)-1].Close
	levels := &Levels{
		Support:    round2(support),
		Resistance: round2(resistance),
	}
	if support > 0 {
		levels.DistanceToSupportPct = round2(((current - support) / support) * 100)
	}
	if current > 0 {
		levels.DistanceToResistancePct = round2(((resistance - current) / current) * 100)
	}

	return levels
}

// analyzeVolume classifies the latest bar's volume against the 20-bar mean
func analyzeVolume(bars []Bar) *VolumeAnalysis {
	if len(bars) < 20 {
		return nil
	}

	recent := bars[len(bars)-20:]
	var sum float64
	for _, b := range recent {
		sum += b.Volume
	}
	avg := sum / 20

	current := bars[len(bars)-1].Volume
	ratio := 1.0
	if avg > 0 {
		ratio = current / avg
	}

	va := &VolumeAnalysis{
		Ratio:         round2(ratio),
		AvgVolume:     round2(avg),
		CurrentVolume: round2(current),
	}
	switch {
	case ratio > 1.5:
		va.Trend = VolumeHigh
	case ratio < 0.5:
		va.Trend = VolumeLow
	default:
		va.Trend = VolumeNormal
	}

	return va
}

// analyzePriceAction classifies the last 5 bars by monotone highs and lows
func analyzePriceAction(bars []Bar) *PriceAction {
	if len(bars) < 5 {
		return nil
	}

	recent := bars[len(bars)-5:]

	higherHighs, higherLows := true, true
	lowerHighs, lowerLows := true, true
	for i := 1; i < len(recent); i++ {
		if recent[i].High < recent[i-1].High {
			higherHighs = false
		}
		if recent[i].Low < recent[i-1].Low {
			higherLows = false
		}
		if recent[i].High > recent[i-1].High {
			lowerHighs = false
		}
		if recent[i].Low > recent[i-1].Low {
			lowerLows = false
		}
	}

	var pattern string
	switch {
	case higherHighs && higherLows:
		pattern = PatternStrongUptrend
	case lowerHighs && lowerLows:
		pattern = PatternStrongDowntrend
	case higherLows && !lowerHighs:
		pattern = PatternBullishConsolidation
	case lowerHighs && !higherLows:
		pattern = PatternBearishConsolidation
	default:
		pattern = PatternChoppy
	}

	return &PriceAction{Pattern: pattern, BarsAnalyzed: len(recent)}
}

func avgClose(bars []Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	var sum float64
	for _, b := range bars {
		sum += b.Close
	}
	return sum / float64(len(bars))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
