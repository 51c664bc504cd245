// Package watchlist persists named ticker lists in a single JSON file.
package watchlist

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"SahamScope/internal/universe"
)

var (
	// ErrNotFound is returned for an unknown watchlist name.
	ErrNotFound = errors.New("watchlist not found")
	// ErrInvalidName is returned for an empty or malformed name.
	ErrInvalidName = errors.New("invalid watchlist name")
)

// Store handles the watchlist set with concurrency safety. Every mutation
// rewrites the whole file.
type Store struct {
	mu       sync.Mutex
	set      map[string][]string
	filePath string
	market   string
	log      *zap.Logger
}

// Open loads the watchlist file. Tickers without an exchange suffix are
// normalized for market.
func Open(filePath, market string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if market == "" {
		market = universe.MarketIDX
	}
	set, repaired, err := loadFile(filePath)
	if err != nil {
		return nil, err
	}
	s := &Store{set: make(map[string][]string, len(set)), filePath: filePath, market: market, log: log}
	for name, tickers := range set {
		n, err := cleanName(name)
		if err != nil {
			log.Warn("skipping watchlist with invalid name", zap.String("name", name))
			continue
		}
		s.set[n] = universe.Merge(s.set[n], s.normalize(tickers))
	}
	if repaired {
		log.Warn("watchlist file was malformed and has been repaired", zap.String("path", filePath))
		if err := s.save(s.set); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func cleanName(name string) (string, error) {
	n := strings.TrimSpace(name)
	if n == "" || strings.ContainsAny(n, "/:") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	// Names become map keys; the caller may own a reused buffer.
	return strings.Clone(n), nil
}

func (s *Store) normalize(tickers []string) []string {
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		out = append(out, universe.ParseTickers(s.market, t)...)
	}
	return out
}

func (s *Store) save(set map[string][]string) error {
	if err := saveFile(s.filePath, set); err != nil {
		return fmt.Errorf("save watchlists: %w", err)
	}
	return nil
}

// Names returns the watchlist names in alphabetical order.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.set))
	for n := range s.set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// All returns a copy of the whole set.
func (s *Store) All() map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]string, len(s.set))
	for n, t := range s.set {
		out[n] = append([]string(nil), t...)
	}
	return out
}

// Get returns a copy of one watchlist.
func (s *Store) Get(name string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.set[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return append([]string(nil), t...), nil
}

// Add appends tickers to a watchlist, creating it when missing, and returns
// the resulting list.
func (s *Store) Add(name string, tickers ...string) ([]string, error) {
	n, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(n, universe.Merge(s.set[n], s.normalize(tickers)))
}

// Remove drops tickers from a watchlist and returns the remaining list.
func (s *Store) Remove(name string, tickers ...string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := strings.Clone(strings.TrimSpace(name))
	cur, ok := s.set[n]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	drop := make(map[string]bool)
	for _, t := range s.normalize(tickers) {
		drop[t] = true
	}
	kept := make([]string, 0, len(cur))
	for _, t := range cur {
		if !drop[t] {
			kept = append(kept, t)
		}
	}
	return s.commit(n, kept)
}

// Replace overwrites a watchlist with tickers, creating it when missing.
func (s *Store) Replace(name string, tickers []string) ([]string, error) {
	n, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(n, universe.Merge(nil, s.normalize(tickers)))
}

// Delete removes a watchlist.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := strings.TrimSpace(name)
	if _, ok := s.set[n]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	next := s.copySet()
	delete(next, n)
	if err := s.save(next); err != nil {
		return err
	}
	s.set = next
	return nil
}

// commit writes the set with name set to tickers and swaps it in only once
// the file is saved. Callers hold s.mu.
func (s *Store) commit(name string, tickers []string) ([]string, error) {
	next := s.copySet()
	next[name] = tickers
	if err := s.save(next); err != nil {
		return nil, err
	}
	s.set = next
	return append([]string(nil), tickers...), nil
}

func (s *Store) copySet() map[string][]string {
	out := make(map[string][]string, len(s.set)+1)
	for n, t := range s.set {
		out[n] = t
	}
	return out
}

// Universe exposes a watchlist as a scan universe.
func (s *Store) Universe(name string) (universe.Universe, error) {
	tickers, err := s.Get(name)
	if err != nil {
		return universe.Universe{}, err
	}
	return universe.Universe{Name: "watchlist:" + strings.TrimSpace(name), Market: s.market, Tickers: tickers}, nil
}
