package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"SahamScope/internal/calculator"
	"SahamScope/internal/model"
	"SahamScope/internal/universe"
)

// MockFetcher returns controllable fixed data for development and testing.
// Tickers without fixed bars get generated bars around Price; with Price
// zero they are reported as not found.
type MockFetcher struct {
	Price  float64
	Series map[string][]model.OHLCV
	Errs   map[string]error
	Fund   map[string]*model.Fundamentals
	Now    time.Time

	calls atomic.Int64
}

func (m *MockFetcher) Name() string { return "mock" }

// Calls returns how many FetchBars calls reached the mock.
func (m *MockFetcher) Calls() int64 { return m.calls.Load() }

func (m *MockFetcher) FetchBars(ctx context.Context, ticker string, w model.Window) (*model.Series, error) {
	m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if err, ok := m.Errs[ticker]; ok {
		return nil, err
	}
	bars, ok := m.Series[ticker]
	if !ok {
		if m.Price <= 0 {
			return nil, fmt.Errorf("mock %s: %w", ticker, ErrNotFound)
		}
		now := m.Now
		if now.IsZero() {
			now = time.Now()
		}
		bars = resample(generateMockBars(m.Price, mockLength(w.Range), now), w.Interval)
	}
	return &model.Series{
		Ticker:   ticker,
		Timezone: exchangeTimezone(ticker),
		Bars:     append([]model.OHLCV(nil), bars...),
		Source:   m.Name(),
		Fetched:  time.Now(),
	}, nil
}

func (m *MockFetcher) FetchFundamentals(_ context.Context, ticker string) (*model.Fundamentals, error) {
	if f, ok := m.Fund[ticker]; ok {
		cp := *f
		return &cp, nil
	}
	return nil, fmt.Errorf("mock %s: %w", ticker, ErrNotFound)
}

func mockLength(rng string) int {
	switch rng {
	case "1d":
		return 1
	case "5d":
		return 5
	case "1mo":
		return 21
	case "3mo":
		return 63
	case "6mo":
		return 126
	case "2y":
		return 504
	case "5y":
		return 1260
	case "max":
		return 1500
	default:
		return 252
	}
}

func generateMockBars(basePrice float64, count int, now time.Time) []model.OHLCV {
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.OHLCV{
			Time:   now.AddDate(0, 0, -(count - i)),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}

// ScanResult is the ranked-ready output of one scan.
type ScanResult struct {
	Universe  string             `json:"universe"`
	Market    string             `json:"market"`
	Window    model.Window       `json:"window"`
	Rows      []*model.MetricRow `json:"rows"`
	Failures  []Failure          `json:"failures,omitempty"`
	StartedAt time.Time          `json:"started_at"`
	Duration  time.Duration      `json:"duration"`
}

// History is one ticker's bars plus moving-average overlays aligned with
// the bars. Overlay values before the first full window are zero.
type History struct {
	Series *model.Series `json:"series"`
	MA20   []float64     `json:"ma20"`
	MA50   []float64     `json:"ma50"`
}

// Collector orchestrates data fetching and metric computation.
type Collector struct {
	Downloader          *Downloader
	Scorer              func(*model.MetricRow) model.Score
	IncludeFundamentals bool

	log *zap.Logger
	now func() time.Time
}

// NewCollector creates a new Collector. scorer may be nil.
func NewCollector(d *Downloader, scorer func(*model.MetricRow) model.Score, log *zap.Logger) *Collector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Collector{Downloader: d, Scorer: scorer, log: log, now: time.Now}
}

// Scan downloads every ticker of u and builds one scored metric row per
// ticker that returned data. Rows keep the universe order.
func (c *Collector) Scan(ctx context.Context, u universe.Universe, w model.Window) (*ScanResult, error) {
	started := c.now()
	batch, err := c.Downloader.Download(ctx, u.Tickers, w)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", u.Name, err)
	}

	res := &ScanResult{
		Universe:  u.Name,
		Market:    u.Market,
		Window:    w,
		Failures:  batch.Failures,
		StartedAt: started,
	}
	for _, t := range batch.Order {
		market := u.Market
		if market == "" {
			market = universe.MarketOf(t)
		}
		row := BuildMetricRow(batch.Series[t], market, w, c.log)
		if row == nil {
			res.Failures = append(res.Failures, Failure{Ticker: t, Kind: FailureKind(ErrNoData), Reason: "empty series"})
			continue
		}
		res.Rows = append(res.Rows, row)
	}

	if c.IncludeFundamentals {
		if err := c.attachFundamentals(ctx, res.Rows); err != nil {
			return nil, err
		}
	}
	if c.Scorer != nil {
		for _, row := range res.Rows {
			row.Score = c.Scorer(row)
		}
	}

	res.Duration = c.now().Sub(started)
	c.log.Info("scan finished",
		zap.String("universe", u.Name),
		zap.String("window", w.String()),
		zap.Int("rows", len(res.Rows)),
		zap.Int("failures", len(res.Failures)),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func (c *Collector) attachFundamentals(ctx context.Context, rows []*model.MetricRow) error {
	ff, ok := c.Downloader.Fetcher.(FundamentalsFetcher)
	if !ok {
		return nil
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Downloader.Workers)
	for _, row := range rows {
		row := row
		g.Go(func() error {
			f, err := ff.FetchFundamentals(gctx, row.Ticker)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if errors.Is(err, ErrUnsupported) {
					return nil
				}
				c.log.Warn("fundamentals unavailable", zap.String("ticker", row.Ticker), zap.Error(err))
				mu.Lock()
				row.Warnings = append(row.Warnings, fmt.Sprintf("fundamentals: %v", err))
				mu.Unlock()
				return nil
			}
			mu.Lock()
			row.Fundamentals = f
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// History returns the bars of one ticker with MA20 and MA50 overlays.
func (c *Collector) History(ctx context.Context, ticker string, w model.Window) (*History, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	var s *model.Series
	err := c.Downloader.withRetry(ctx, func() error {
		var err error
		s, err = c.Downloader.Fetcher.FetchBars(ctx, ticker, w)
		return err
	})
	if err != nil {
		return nil, err
	}
	closes := s.Closes()
	return &History{
		Series: s,
		MA20:   calculator.SMASeries(closes, 20),
		MA50:   calculator.SMASeries(closes, 50),
	}, nil
}

// Fundamentals returns the company profile of one ticker.
func (c *Collector) Fundamentals(ctx context.Context, ticker string) (*model.Fundamentals, error) {
	ff, ok := c.Downloader.Fetcher.(FundamentalsFetcher)
	if !ok {
		return nil, fmt.Errorf("%s fundamentals: %w", c.Downloader.Fetcher.Name(), ErrUnsupported)
	}
	return ff.FetchFundamentals(ctx, ticker)
}
