// Package universe defines the ticker universes scanned by the dashboard and
// the rules for normalizing and merging user-supplied tickers.
package universe

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Market identifiers.
const (
	MarketIDX = "IDX"
	MarketUS  = "US"
)

// idxSuffix is the Yahoo suffix for tickers listed on the Indonesia Stock Exchange.
const idxSuffix = ".JK"

// ErrUnknownUniverse is returned by Lookup when no universe matches.
var ErrUnknownUniverse = errors.New("unknown universe")

// Universe is a named, ordered list of tickers on one market.
type Universe struct {
	Name    string   `json:"name"`
	Market  string   `json:"market"`
	Tickers []string `json:"tickers"`
}

// Registry resolves universes by name: the builtins plus any custom lists
// from configuration.
type Registry struct {
	byName map[string]Universe
}

// NewRegistry creates a registry holding the builtin universes and the given
// custom ones. Custom universes override builtins with the same name; a
// custom universe without a market is treated as IDX.
func NewRegistry(custom []Universe) *Registry {
	r := &Registry{byName: make(map[string]Universe)}
	for _, u := range Builtin() {
		r.byName[strings.ToUpper(u.Name)] = u
	}
	for _, u := range custom {
		market := strings.ToUpper(u.Market)
		if market == "" {
			market = MarketIDX
		}
		r.byName[strings.ToUpper(u.Name)] = Universe{
			Name:    u.Name,
			Market:  market,
			Tickers: Merge(nil, normalizeAll(market, u.Tickers)),
		}
	}
	return r
}

// Lookup returns the universe with the given name, case-insensitively.
func (r *Registry) Lookup(name string) (Universe, error) {
	u, ok := r.byName[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return Universe{}, fmt.Errorf("%w: %q", ErrUnknownUniverse, name)
	}
	out := u
	out.Tickers = append([]string(nil), u.Tickers...)
	return out, nil
}

// All returns every universe sorted by name.
func (r *Registry) All() []Universe {
	out := make([]Universe, 0, len(r.byName))
	for _, u := range r.byName {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// MarketOf returns the market of a normalized ticker.
func MarketOf(ticker string) string {
	if strings.HasSuffix(strings.ToUpper(ticker), idxSuffix) {
		return MarketIDX
	}
	return MarketUS
}

// Normalize upper-cases a ticker and, for IDX, appends the .JK suffix when
// missing. Index symbols (leading ^) are left without suffix.
func Normalize(market, ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if t == "" {
		return ""
	}
	if market == MarketIDX && !strings.HasPrefix(t, "^") && !strings.Contains(t, ".") {
		t += idxSuffix
	}
	return t
}

// Code strips the exchange suffix, e.g. "BBCA.JK" -> "BBCA".
func Code(ticker string) string {
	return strings.TrimSuffix(strings.ToUpper(ticker), idxSuffix)
}

// ParseTickers splits free-text input on commas, semicolons and whitespace
// and normalizes each token. Empty tokens are dropped and duplicates removed.
func ParseTickers(market, text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case ',', ';', ' ', '\t', '\n', '\r':
			return true
		}
		return false
	})
	return Merge(nil, normalizeAll(market, fields))
}

// Merge appends extra lists to base, keeping the first occurrence of each
// ticker and the original order.
func Merge(base []string, extra ...[]string) []string {
	seen := make(map[string]bool, len(base))
	out := make([]string, 0, len(base))
	add := func(list []string) {
		for _, t := range list {
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	add(base)
	for _, e := range extra {
		add(e)
	}
	return out
}

func normalizeAll(market string, tickers []string) []string {
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if n := Normalize(market, t); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// WatchlistPrefix selects a watchlist instead of a registered universe,
// e.g. "watchlist:core".
const WatchlistPrefix = "watchlist:"

// ErrEmptyUniverse is returned by Resolve when nothing is left to scan.
var ErrEmptyUniverse = errors.New("universe has no tickers")

// Source resolves universes kept outside the registry, such as watchlists.
type Source interface {
	Universe(name string) (Universe, error)
}

// Resolve returns the universe to scan for a request: a registered universe,
// a watchlist (WatchlistPrefix) or, with an empty name, an IDX list made of
// the free-text tickers alone. Free-text tickers are merged after the base
// list.
func (r *Registry) Resolve(name, extra string, watchlists Source) (Universe, error) {
	name = strings.TrimSpace(name)
	var (
		u   Universe
		err error
	)
	switch {
	case strings.HasPrefix(strings.ToLower(name), WatchlistPrefix):
		if watchlists == nil {
			return Universe{}, fmt.Errorf("%w: %q", ErrUnknownUniverse, name)
		}
		u, err = watchlists.Universe(name[len(WatchlistPrefix):])
	case name == "":
		u = Universe{Name: "custom", Market: MarketIDX}
	default:
		u, err = r.Lookup(name)
	}
	if err != nil {
		return Universe{}, err
	}
	u.Tickers = Merge(u.Tickers, ParseTickers(u.Market, extra))
	if len(u.Tickers) == 0 {
		return Universe{}, fmt.Errorf("%w: %q", ErrEmptyUniverse, u.Name)
	}
	return u, nil
}
