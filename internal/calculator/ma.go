package calculator

import (
	"errors"

	talib "github.com/markcheno/go-talib"

	"SahamScope/internal/model"
)

// ErrInsufficientData is returned when a series is too short for a metric.
var ErrInsufficientData = errors.New("not enough data")

// CalculateSMA computes the simple moving average of the given prices over the specified period.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, ErrInsufficientData
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// SMASeries returns the simple moving average at every bar. Bars before the
// first full window are zero.
func SMASeries(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	if period <= 0 {
		return out
	}
	sum := 0.0
	for i, p := range prices {
		sum += p
		if i >= period {
			sum -= prices[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// CalculateEMA returns the latest exponential moving average, seeded with the
// SMA of the first period values.
func CalculateEMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, ErrInsufficientData
	}
	ema := talib.Ema(prices, period)
	return ema[len(ema)-1], nil
}

// CalculateMA returns the period-bar simple moving average of closes.
func CalculateMA(bars []model.OHLCV, period int) (float64, error) {
	return CalculateSMA(extractCloses(bars), period)
}

func extractCloses(bars []model.OHLCV) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
