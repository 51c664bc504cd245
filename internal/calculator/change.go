package calculator

import (
	"errors"

	"SahamScope/internal/model"
)

// Lookbacks in daily bars for the standard change windows.
const (
	Lookback1W = 5
	Lookback1M = 21
	Lookback3M = 63
	Lookback6M = 126
	Lookback1Y = 252
)

// PercentChange returns the percentage change of the last close against the
// close lookback bars earlier.
func PercentChange(closes []float64, lookback int) (float64, error) {
	if lookback <= 0 {
		return 0, errors.New("lookback must be positive")
	}
	if len(closes) < lookback+1 {
		return 0, ErrInsufficientData
	}
	base := closes[len(closes)-1-lookback]
	if base == 0 {
		return 0, errors.New("base price is zero")
	}
	return (closes[len(closes)-1] - base) / base * 100, nil
}

// YTDChange returns the percentage change of the last close against the last
// close of the previous calendar year. When the series starts inside the
// current year the first bar's open is used as the base.
func YTDChange(bars []model.OHLCV) (float64, error) {
	if len(bars) == 0 {
		return 0, ErrInsufficientData
	}
	last := bars[len(bars)-1]
	year := last.Time.Year()

	base := 0.0
	for i := len(bars) - 1; i >= 0; i-- {
		if bars[i].Time.Year() < year {
			base = bars[i].Close
			break
		}
	}
	if base == 0 {
		base = bars[0].Open
	}
	if base == 0 {
		return 0, errors.New("base price is zero")
	}
	return (last.Close - base) / base * 100, nil
}
