package indicators

import (
	"fmt"

	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
)

// EMA returns the most recent Exponential Moving Average value
func EMA(prices []float64, period int) (float64, error) {
	if period < 1 || period > len(prices) {
		return 0, fmt.Errorf("invalid period: %d (must be between 1 and %d)", period, len(prices))
	}

	pricesChan := sliceToChan(prices)

	emaIndicator := trend.NewEmaWithPeriod[float64](period)
	emaChan := emaIndicator.Compute(pricesChan)

	var last float64
	count := 0
	for val := range emaChan {
		last = val
		count++
	}
	if count == 0 {
		return 0, fmt.Errorf("no EMA values calculated")
	}

	return last, nil
}

// MACD returns the most recent MACD and signal line values
func MACD(prices []float64) (macd, signal float64, err error) {
	if len(prices) < 26 {
		return 0, 0, fmt.Errorf("MACD requires at least 26 prices, got %d", len(prices))
	}

	pricesChan := sliceToChan(prices)

	macdIndicator := trend.NewMacd[float64]()
	macdChan, signalChan := macdIndicator.Compute(pricesChan)

	count := 0
	for {
		m, mok := <-macdChan
		s, sok := <-signalChan
		if !mok || !sok {
			break
		}
		macd = m
		signal = s
		count++
	}
	if count == 0 {
		return 0, 0, fmt.Errorf("no MACD values calculated")
	}

	return macd, signal, nil
}

// BollingerWidth returns the most recent Bollinger band width as a
// percentage of the middle band
func BollingerWidth(prices []float64, period int) (float64, error) {
	if period < 2 || period > len(prices) {
		return 0, fmt.Errorf("invalid period: %d (must be between 2 and %d)", period, len(prices))
	}

	pricesChan := sliceToChan(prices)

	bbIndicator := volatility.NewBollingerBands[float64]()
	bbIndicator.Period = period
	lowerChan, middleChan, upperChan := bbIndicator.Compute(pricesChan)

	var lower, middle, upper float64
	count := 0
	for {
		l, lok := <-lowerChan
		m, mok := <-middleChan
		u, uok := <-upperChan
		if !lok || !mok || !uok {
			break
		}
		lower, middle, upper = l, m, u
		count++
	}
	if count == 0 || middle == 0 {
		return 0, fmt.Errorf("no Bollinger Bands values calculated")
	}

	return ((upper - lower) / middle) * 100, nil
}

func sliceToChan(prices []float64) chan float64 {
	c := make(chan float64, len(prices))
	for _, p := range prices {
		c <- p
	}
	close(c)
	return c
}
