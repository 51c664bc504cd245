package collector

import (
	"time"

	"github.com/golang-module/carbon"

	"SahamScope/internal/model"
	"SahamScope/internal/universe"
)

// Exchange timezones.
const (
	TimezoneJakarta = "Asia/Jakarta"
	TimezoneNewYork = "America/New_York"
)

// exchangeTimezone returns the session timezone for a ticker.
func exchangeTimezone(ticker string) string {
	if universe.MarketOf(ticker) == universe.MarketIDX {
		return TimezoneJakarta
	}
	return TimezoneNewYork
}

// localize converts a unix timestamp into the exchange's wall clock. An
// unknown timezone falls back to UTC.
func localize(ts int64, tz string) time.Time {
	c := carbon.CreateFromTimestamp(ts, tz)
	if c.Error != nil {
		return time.Unix(ts, 0).UTC()
	}
	return c.Carbon2Time()
}

// windowStart returns the first day of a range ending at now, as the start of
// that day in the exchange timezone. Short ranges are padded so weekends and
// holidays still leave enough sessions; trimToRange cuts the excess.
func windowStart(now time.Time, rng, tz string) time.Time {
	c := carbon.Time2Carbon(now).SetTimezone(tz)
	switch rng {
	case "1d":
		c = c.SubDays(5)
	case "5d":
		c = c.SubDays(10)
	case "1mo":
		c = c.SubMonths(1)
	case "3mo":
		c = c.SubMonths(3)
	case "6mo":
		c = c.SubMonths(6)
	case "1y":
		c = c.SubYears(1)
	case "2y":
		c = c.SubYears(2)
	case "5y":
		c = c.SubYears(5)
	case "ytd":
		c = c.StartOfYear()
	default:
		c = c.SubYears(30)
	}
	if c.Error != nil {
		return now.AddDate(-1, 0, 0)
	}
	return c.StartOfDay().Carbon2Time()
}

// trimToRange keeps the last sessions of the padded short ranges.
func trimToRange(bars []model.OHLCV, w model.Window) []model.OHLCV {
	if w.Interval != "1d" {
		return bars
	}
	keep := 0
	switch w.Range {
	case "1d":
		keep = 1
	case "5d":
		keep = 5
	}
	if keep > 0 && len(bars) > keep {
		return bars[len(bars)-keep:]
	}
	return bars
}
