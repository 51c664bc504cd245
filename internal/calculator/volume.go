package calculator

import (
	"errors"

	"SahamScope/internal/model"
)

// VolumeRatio returns the last volume divided by the mean volume of the
// period bars before it.
func VolumeRatio(volumes []float64, period int) (ratio, average float64, err error) {
	if period <= 0 {
		return 0, 0, errors.New("period must be positive")
	}
	if len(volumes) < period+1 {
		return 0, 0, ErrInsufficientData
	}
	prior := volumes[len(volumes)-1-period : len(volumes)-1]
	average, _ = CalculateSMA(prior, period)
	if average == 0 {
		return 0, 0, errors.New("average volume is zero")
	}
	return volumes[len(volumes)-1] / average, average, nil
}

// AverageValue returns the mean traded value (close * volume) of the last
// period bars.
func AverageValue(bars []model.OHLCV, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(bars) < period {
		return 0, ErrInsufficientData
	}
	values := make([]float64, 0, period)
	for _, b := range bars[len(bars)-period:] {
		values = append(values, b.Close*b.Volume)
	}
	return CalculateSMA(values, period)
}
