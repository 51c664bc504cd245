package collector

import (
	"sort"
	"time"

	"SahamScope/internal/model"
)

// sortAndDedupe orders bars chronologically and keeps the last bar for any
// repeated timestamp.
func sortAndDedupe(bars []model.OHLCV) []model.OHLCV {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].Time.Equal(b.Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

// resample aggregates daily bars into weekly (ISO week) or monthly bars.
// Other intervals are returned unchanged.
func resample(daily []model.OHLCV, interval string) []model.OHLCV {
	var key func(t time.Time) int
	switch interval {
	case "1wk":
		key = func(t time.Time) int {
			y, w := t.ISOWeek()
			return y*100 + w
		}
	case "1mo":
		key = func(t time.Time) int { return t.Year()*100 + int(t.Month()) }
	default:
		return daily
	}
	if len(daily) == 0 {
		return nil
	}

	var out []model.OHLCV
	cur := daily[0]
	curKey := key(cur.Time)
	for _, d := range daily[1:] {
		if k := key(d.Time); k != curKey {
			out = append(out, cur)
			cur, curKey = d, k
			continue
		}
		if d.High > cur.High {
			cur.High = d.High
		}
		if d.Low < cur.Low {
			cur.Low = d.Low
		}
		cur.Close = d.Close
		cur.Volume += d.Volume
	}
	return append(out, cur)
}
