package calculator

import (
	"errors"
	"math"

	talib "github.com/markcheno/go-talib"

	"SahamScope/internal/model"
)

// Returns computes simple close-to-close returns. Zero prices are skipped.
func Returns(closes []float64) []float64 {
	out := make([]float64, 0, len(closes))
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		out = append(out, closes[i]/closes[i-1]-1)
	}
	return out
}

// Volatility returns the annualized standard deviation of simple returns in
// percent. periodsPerYear is 252 for daily bars, 52 for weekly bars.
func Volatility(closes []float64, periodsPerYear float64) (float64, error) {
	rets := Returns(closes)
	if len(rets) < 2 {
		return 0, ErrInsufficientData
	}
	if periodsPerYear <= 0 {
		return 0, errors.New("periods per year must be positive")
	}
	sd := talib.StdDev(rets, len(rets), 1)
	return sd[len(sd)-1] * math.Sqrt(periodsPerYear) * 100, nil
}

// ATRPercent returns the average true range over period as a percentage of
// the last close.
func ATRPercent(bars []model.OHLCV, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(bars) <= period {
		return 0, ErrInsufficientData
	}
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	for i, b := range bars {
		highs[i], lows[i], closes[i] = b.High, b.Low, b.Close
	}
	atr := talib.Atr(highs, lows, closes, period)
	last := closes[len(closes)-1]
	if last == 0 {
		return 0, errors.New("last close is zero")
	}
	return atr[len(atr)-1] / last * 100, nil
}
