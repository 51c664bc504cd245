package screener

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"SahamScope/internal/model"
)

// ErrUnknownSortKey is returned when Sort is asked for a column it does not know.
var ErrUnknownSortKey = errors.New("unknown sort key")

var sortKeys = map[string]func(*model.MetricRow) float64{
	"price":        func(r *model.MetricRow) float64 { return r.Price },
	"change":       func(r *model.MetricRow) float64 { return r.Change },
	"change_pct":   func(r *model.MetricRow) float64 { return r.ChangePct },
	"change_1w":    func(r *model.MetricRow) float64 { return r.Change1WPct },
	"change_1m":    func(r *model.MetricRow) float64 { return r.Change1MPct },
	"change_3m":    func(r *model.MetricRow) float64 { return r.Change3MPct },
	"change_6m":    func(r *model.MetricRow) float64 { return r.Change6MPct },
	"change_1y":    func(r *model.MetricRow) float64 { return r.Change1YPct },
	"change_ytd":   func(r *model.MetricRow) float64 { return r.ChangeYTD },
	"volume":       func(r *model.MetricRow) float64 { return r.Volume },
	"value":        func(r *model.MetricRow) float64 { return r.Value },
	"volume_ratio": func(r *model.MetricRow) float64 { return r.VolumeRatio },
	"rsi":          func(r *model.MetricRow) float64 { return r.RSI14 },
	"streak":       func(r *model.MetricRow) float64 { return float64(r.Streak) },
	"win_rate":     func(r *model.MetricRow) float64 { return r.WinRate },
	"volatility":   func(r *model.MetricRow) float64 { return r.VolatilityPct },
	"position_52w": func(r *model.MetricRow) float64 { return r.Position52w },
	"score":        func(r *model.MetricRow) float64 { return r.Score.Total },
}

// SortKeys returns the accepted sort keys in alphabetical order.
func SortKeys() []string {
	keys := make([]string, 0, len(sortKeys)+1)
	for k := range sortKeys {
		keys = append(keys, k)
	}
	keys = append(keys, "ticker")
	sort.Strings(keys)
	return keys
}

// Filter drops rows outside the given bounds. Zero bounds are ignored.
type Filter struct {
	MinPrice  float64
	MaxPrice  float64
	MinVolume float64
	MinValue  float64
	MinScore  *float64
	Tiers     []string
}

// Match reports whether row passes every bound of the filter.
func (f Filter) Match(row *model.MetricRow) bool {
	if f.MinPrice > 0 && row.Price < f.MinPrice {
		return false
	}
	if f.MaxPrice > 0 && row.Price > f.MaxPrice {
		return false
	}
	if f.MinVolume > 0 && row.Volume < f.MinVolume {
		return false
	}
	if f.MinValue > 0 && row.Value < f.MinValue {
		return false
	}
	if f.MinScore != nil && row.Score.Total < *f.MinScore {
		return false
	}
	if len(f.Tiers) > 0 {
		ok := false
		for _, t := range f.Tiers {
			if strings.EqualFold(t, row.Score.Tier.Label) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Apply returns the rows that match the filter, keeping their order.
func (f Filter) Apply(rows []*model.MetricRow) []*model.MetricRow {
	out := make([]*model.MetricRow, 0, len(rows))
	for _, r := range rows {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Sort orders rows in place by key. Ties are broken by ticker ascending so
// the order is deterministic.
func Sort(rows []*model.MetricRow, key string, desc bool) error {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "ticker" {
		sort.SliceStable(rows, func(i, j int) bool {
			if desc {
				return rows[i].Ticker > rows[j].Ticker
			}
			return rows[i].Ticker < rows[j].Ticker
		})
		return nil
	}
	get, ok := sortKeys[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSortKey, key)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := get(rows[i]), get(rows[j])
		if a == b {
			return rows[i].Ticker < rows[j].Ticker
		}
		if desc {
			return a > b
		}
		return a < b
	})
	return nil
}

// RankOptions controls Rank.
type RankOptions struct {
	Filter  Filter
	SortKey string
	Desc    bool
	Limit   int
}

// Rank filters, sorts and truncates a copy of rows. An empty key sorts by
// score, highest first.
func Rank(rows []*model.MetricRow, opts RankOptions) ([]*model.MetricRow, error) {
	out := opts.Filter.Apply(rows)
	key, desc := opts.SortKey, opts.Desc
	if key == "" {
		key, desc = "score", true
	}
	if err := Sort(out, key, desc); err != nil {
		return nil, err
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// TopMovers returns up to n rows with the largest gains and the largest
// losses of the day. Unchanged rows are in neither list.
func TopMovers(rows []*model.MetricRow, n int) (gainers, losers []*model.MetricRow) {
	for _, r := range rows {
		switch {
		case r.ChangePct > 0:
			gainers = append(gainers, r)
		case r.ChangePct < 0:
			losers = append(losers, r)
		}
	}
	Sort(gainers, "change_pct", true)
	Sort(losers, "change_pct", false)
	if n > 0 {
		if len(gainers) > n {
			gainers = gainers[:n]
		}
		if len(losers) > n {
			losers = losers[:n]
		}
	}
	return gainers, losers
}
