package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidWindow is returned when a range or interval is not supported.
var ErrInvalidWindow = errors.New("invalid window")

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Series is the price history of one ticker, oldest bar first.
type Series struct {
	Ticker   string    `json:"ticker"`
	Timezone string    `json:"timezone"`
	Bars     []OHLCV   `json:"bars"`
	Source   string    `json:"source"`
	Fetched  time.Time `json:"fetched_at"`
}

// Closes returns the close prices of the series.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Volumes returns the volumes of the series.
func (s *Series) Volumes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Volume
	}
	return out
}

// Last returns the most recent bar, or false if the series is empty.
func (s *Series) Last() (OHLCV, bool) {
	if len(s.Bars) == 0 {
		return OHLCV{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Window is the time span and bar interval of a fetch.
type Window struct {
	Range    string `json:"range"`
	Interval string `json:"interval"`
}

var validRanges = map[string]bool{
	"1d": true, "5d": true, "1mo": true, "3mo": true, "6mo": true,
	"1y": true, "2y": true, "5y": true, "ytd": true, "max": true,
}

var validIntervals = map[string]bool{
	"1h": true, "1d": true, "1wk": true, "1mo": true,
}

// Validate checks that both range and interval are supported.
func (w Window) Validate() error {
	if !validRanges[w.Range] {
		return fmt.Errorf("%w: range %q", ErrInvalidWindow, w.Range)
	}
	if !validIntervals[w.Interval] {
		return fmt.Errorf("%w: interval %q", ErrInvalidWindow, w.Interval)
	}
	return nil
}

// PeriodsPerYear returns the number of bars per year for the interval,
// used to annualize volatility.
func (w Window) PeriodsPerYear() float64 {
	switch w.Interval {
	case "1h":
		return 252 * 6
	case "1wk":
		return 52
	case "1mo":
		return 12
	default:
		return 252
	}
}

func (w Window) String() string {
	return w.Range + "/" + w.Interval
}
