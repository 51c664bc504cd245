package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"SahamScope/internal/model"
)

// Failure records a ticker that could not be downloaded.
type Failure struct {
	Ticker string `json:"ticker"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// BatchResult is the outcome of a download. Series holds every ticker that
// succeeded; Order lists them in request order.
type BatchResult struct {
	Series   map[string]*model.Series
	Order    []string
	Failures []Failure
}

// Downloader fetches many tickers in chunks. Bulk providers receive one call
// per chunk; other providers are fanned out per ticker, bounded by Workers.
type Downloader struct {
	Fetcher   Fetcher
	ChunkSize int
	Workers   int
	Retries   int
	Backoff   time.Duration

	log *zap.Logger
}

// NewDownloader creates a downloader with sane minimums.
func NewDownloader(f Fetcher, chunkSize, workers, retries int, backoff time.Duration, log *zap.Logger) *Downloader {
	if chunkSize <= 0 {
		chunkSize = 50
	}
	if workers <= 0 {
		workers = 4
	}
	if retries < 0 {
		retries = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Downloader{
		Fetcher:   f,
		ChunkSize: chunkSize,
		Workers:   workers,
		Retries:   retries,
		Backoff:   backoff,
		log:       log,
	}
}

// Download fetches every ticker. A failing ticker is recorded in Failures and
// never aborts the batch; only context cancellation does.
func (d *Downloader) Download(ctx context.Context, tickers []string, w model.Window) (*BatchResult, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	res := &BatchResult{Series: make(map[string]*model.Series, len(tickers))}
	var mu sync.Mutex
	fail := func(ticker string, err error) {
		d.log.Warn("ticker download failed",
			zap.String("ticker", ticker),
			zap.String("provider", d.Fetcher.Name()),
			zap.String("kind", FailureKind(err)),
			zap.Error(err))
		mu.Lock()
		res.Failures = append(res.Failures, Failure{Ticker: ticker, Kind: FailureKind(err), Reason: err.Error()})
		mu.Unlock()
	}
	ok := func(ticker string, s *model.Series) {
		mu.Lock()
		res.Series[ticker] = s
		mu.Unlock()
	}

	bulk, isBulk := d.Fetcher.(BulkFetcher)
	for start := 0; start < len(tickers); start += d.ChunkSize {
		end := start + d.ChunkSize
		if end > len(tickers) {
			end = len(tickers)
		}
		chunk := tickers[start:end]

		var err error
		if isBulk {
			err = d.downloadBulk(ctx, bulk, chunk, w, ok, fail)
		} else {
			err = d.downloadEach(ctx, chunk, w, ok, fail)
		}
		if err != nil {
			return nil, err
		}
	}

	for _, t := range tickers {
		if _, found := res.Series[t]; found {
			res.Order = append(res.Order, t)
		}
	}
	d.log.Debug("download finished",
		zap.String("window", w.String()),
		zap.Int("requested", len(tickers)),
		zap.Int("ok", len(res.Order)),
		zap.Int("failed", len(res.Failures)))
	return res, nil
}

func (d *Downloader) downloadBulk(ctx context.Context, bulk BulkFetcher, chunk []string, w model.Window,
	ok func(string, *model.Series), fail func(string, error)) error {
	var got map[string]*model.Series
	err := d.withRetry(ctx, func() error {
		var err error
		got, err = bulk.FetchBulk(ctx, chunk, w)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		for _, t := range chunk {
			fail(t, err)
		}
		return nil
	}
	for _, t := range chunk {
		s, found := got[t]
		if !found || len(s.Bars) == 0 {
			fail(t, fmt.Errorf("%s: %w", t, ErrNoData))
			continue
		}
		ok(t, s)
	}
	return nil
}

func (d *Downloader) downloadEach(ctx context.Context, chunk []string, w model.Window,
	ok func(string, *model.Series), fail func(string, error)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.Workers)
	for _, t := range chunk {
		t := t
		g.Go(func() error {
			var s *model.Series
			err := d.withRetry(gctx, func() error {
				var err error
				s, err = d.Fetcher.FetchBars(gctx, t, w)
				return err
			})
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				fail(t, err)
				return nil
			}
			if len(s.Bars) == 0 {
				fail(t, fmt.Errorf("%s: %w", t, ErrNoData))
				return nil
			}
			ok(t, s)
			return nil
		})
	}
	return g.Wait()
}

// withRetry runs fn, retrying transient errors with exponential backoff.
func (d *Downloader) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i <= d.Retries; i++ {
		err = fn()
		if err == nil || !errors.Is(err, ErrTransient) || i == d.Retries {
			return err
		}
		backoff := d.Backoff * time.Duration(1<<uint(i))
		d.log.Debug("retrying transient failure", zap.Int("attempt", i+1), zap.Duration("backoff", backoff), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}
