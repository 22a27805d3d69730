// Package indicators provides technical indicator math over price series.
package indicators

import "math"

// SMA returns the simple moving average of the last period prices.
// The second return is false when there is not enough data.
func SMA(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period {
		return 0, false
	}

	sum := 0.0
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return sum / float64(period), true
}

// RSI returns the Relative Strength Index over the last period deltas.
// Fewer than period+1 prices yields the neutral value 50. A series with
// no losses yields 100.
func RSI(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period+1 {
		return 50.0
	}

	deltas := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		deltas = append(deltas, prices[i]-prices[i-1])
	}

	var gains, losses float64
	for _, d := range deltas[len(deltas)-period:] {
		if d > 0 {
			gains += d
		} else {
			losses += -d
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100.0
	}

	rs := avgGain / avgLoss
	rsi := 100 - (100 / (1 + rs))

	return round2(rsi)
}

// PriceVsSMAPct returns the percent distance of price from the given SMA
func PriceVsSMAPct(price, sma float64) float64 {
	if sma == 0 {
		return 0
	}
	return ((price - sma) / sma) * 100
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
