// Package market provides market data retrieval and per-symbol analytics
// feeding the decision pipeline.
package market

import "time"

// Trend directions
const (
	TrendBullish  = "bullish"
	TrendBearish  = "bearish"
	TrendSideways = "sideways"
)

// Volume classifications
const (
	VolumeHigh   = "high"
	VolumeLow    = "low"
	VolumeNormal = "normal"
)

// Price action patterns
const (
	PatternStrongUptrend         = "strong_uptrend"
	PatternStrongDowntrend       = "strong_downtrend"
	PatternBullishConsolidation  = "bullish_consolidation"
	PatternBearishConsolidation  = "bearish_consolidation"
	PatternChoppy                = "choppy"
)

// Bar is a single OHLCV bar for a symbol and timeframe
type Bar struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Timeframe string    `json:"timeframe"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Valid reports whether the bar satisfies OHLC ordering: all prices
// positive, the high bounding open and close, the low flooring them.
func (b Bar) Valid() bool {
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return false
	}
	return b.Low <= b.Open && b.Open <= b.High &&
		b.Low <= b.Close && b.Close <= b.High
}

// Quote is the latest bid/ask for a symbol
type Quote struct {
	Symbol    string    `json:"symbol"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Timestamp time.Time `json:"timestamp"`
}

// Price returns the quote price used for decisions: ask, falling back to bid
func (q *Quote) Price() float64 {
	if q.Ask > 0 {
		return q.Ask
	}
	return q.Bid
}

// Indicators holds computed technical indicator values.
// Pointer fields are nil when there was not enough data to compute them.
type Indicators struct {
	SMA20           *float64 `json:"sma_20,omitempty"`
	SMA50           *float64 `json:"sma_50,omitempty"`
	RSI14           *float64 `json:"rsi_14,omitempty"`
	PriceVsSMA20Pct *float64 `json:"price_vs_sma20_pct,omitempty"`
	EMA12           *float64 `json:"ema_12,omitempty"`
	EMA26           *float64 `json:"ema_26,omitempty"`
	MACD            *float64 `json:"macd,omitempty"`
	MACDSignal      *float64 `json:"macd_signal,omitempty"`
	BollingerWidth  *float64 `json:"bollinger_width,omitempty"`
}

// Trend describes the detected price trend
type Trend struct {
	Direction string  `json:"trend"`
	Strength  float64 `json:"strength"`
	ChangePct float64 `json:"change_pct"`
}

// Levels holds support and resistance for the recent window
type Levels struct {
	Support                 float64 `json:"support"`
	Resistance              float64 `json:"resistance"`
	DistanceToSupportPct    float64 `json:"distance_to_support_pct"`
	DistanceToResistancePct float64 `json:"distance_to_resistance_pct"`
}

// VolumeAnalysis classifies recent volume against its average
type VolumeAnalysis struct {
	Trend         string  `json:"volume_trend"`
	Ratio         float64 `json:"volume_ratio"`
	AvgVolume     float64 `json:"avg_volume"`
	CurrentVolume float64 `json:"current_volume"`
}

// PriceAction classifies the last few bars into a pattern
type PriceAction struct {
	Pattern      string `json:"pattern"`
	BarsAnalyzed int    `json:"bars_analyzed"`
}

// Context is the full market picture for one symbol at one point in time
type Context struct {
	Symbol        string          `json:"symbol"`
	Timeframe     string          `json:"timeframe"`
	Timestamp     time.Time       `json:"timestamp"`
	CurrentPrice  float64         `json:"current_price"`
	DataAvailable bool            `json:"data_available"`
	BarCount      int             `json:"bar_count"`
	Bars          []Bar           `json:"-"`
	Indicators    *Indicators     `json:"technical_indicators,omitempty"`
	Trend         *Trend          `json:"trend_analysis,omitempty"`
	Levels        *Levels         `json:"levels,omitempty"`
	Volume        *VolumeAnalysis `json:"volume_analysis,omitempty"`
	PriceAction   *PriceAction    `json:"price_action,omitempty"`
}
