package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"SahamScope/internal/model"
)

// cachedFetcher memoizes FetchBars by (provider, ticker, range, interval).
// Errors are never cached.
type cachedFetcher struct {
	inner Fetcher
	store *cache.Cache
}

// cachedBulkFetcher additionally memoizes bulk calls per ticker, so a chunk
// only asks the provider for tickers that are not cached yet.
type cachedBulkFetcher struct {
	cachedFetcher
	bulk BulkFetcher
}

// NewCachedFetcher wraps inner with a TTL cache. The result is a BulkFetcher
// when inner is one. ttl <= 0 returns inner unchanged.
func NewCachedFetcher(inner Fetcher, ttl time.Duration) Fetcher {
	if ttl <= 0 {
		return inner
	}
	base := cachedFetcher{inner: inner, store: cache.New(ttl, 2*ttl)}
	if b, ok := inner.(BulkFetcher); ok {
		return &cachedBulkFetcher{cachedFetcher: base, bulk: b}
	}
	return &base
}

func (c *cachedFetcher) Name() string { return c.inner.Name() }

func (c *cachedFetcher) key(kind, ticker string, w model.Window) string {
	return strings.Join([]string{kind, c.inner.Name(), ticker, w.Range, w.Interval}, "|")
}

func (c *cachedFetcher) get(key string) (*model.Series, bool) {
	v, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	return cloneSeries(v.(*model.Series)), true
}

func (c *cachedFetcher) FetchBars(ctx context.Context, ticker string, w model.Window) (*model.Series, error) {
	key := c.key("bars", ticker, w)
	if s, ok := c.get(key); ok {
		return s, nil
	}
	s, err := c.inner.FetchBars(ctx, ticker, w)
	if err != nil {
		return nil, err
	}
	c.store.Set(key, cloneSeries(s), cache.DefaultExpiration)
	return s, nil
}

// FetchFundamentals delegates to the wrapped fetcher when it serves
// fundamentals.
func (c *cachedFetcher) FetchFundamentals(ctx context.Context, ticker string) (*model.Fundamentals, error) {
	ff, ok := c.inner.(FundamentalsFetcher)
	if !ok {
		return nil, fmt.Errorf("%s fundamentals: %w", c.inner.Name(), ErrUnsupported)
	}
	key := c.key("fund", ticker, model.Window{})
	if v, ok := c.store.Get(key); ok {
		f := *v.(*model.Fundamentals)
		return &f, nil
	}
	f, err := ff.FetchFundamentals(ctx, ticker)
	if err != nil {
		return nil, err
	}
	cp := *f
	c.store.Set(key, &cp, cache.DefaultExpiration)
	return f, nil
}

func (c *cachedBulkFetcher) FetchBulk(ctx context.Context, tickers []string, w model.Window) (map[string]*model.Series, error) {
	out := make(map[string]*model.Series, len(tickers))
	var missing []string
	for _, t := range tickers {
		if s, ok := c.get(c.key("bars", t, w)); ok {
			out[t] = s
			continue
		}
		missing = append(missing, t)
	}
	if len(missing) == 0 {
		return out, nil
	}
	fetched, err := c.bulk.FetchBulk(ctx, missing, w)
	if err != nil {
		return nil, err
	}
	for t, s := range fetched {
		c.store.Set(c.key("bars", t, w), cloneSeries(s), cache.DefaultExpiration)
		out[t] = s
	}
	return out, nil
}

func cloneSeries(s *model.Series) *model.Series {
	cp := *s
	cp.Bars = append([]model.OHLCV(nil), s.Bars...)
	return &cp
}
