package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"SahamScope/internal/model"
	"SahamScope/internal/universe"
)

var daily1y = model.Window{Range: "1y", Interval: "1d"}

const chartFixture = `{"chart":{"result":[{"meta":{"symbol":"BBCA.JK","currency":"IDR","exchangeTimezoneName":"Asia/Jakarta"},
"timestamp":[1704160800,1704247200,1704333600],
"indicators":{"quote":[{"open":[9400,null,9500],"high":[9500,null,9600],"low":[9350,null,9450],
"close":[9450,null,9550],"volume":[1000000,null,2000000]}]}}],"error":null}}`

const notFoundFixture = `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`

const summaryFixture = `{"quoteSummary":{"result":[{
"price":{"longName":"PT Bank Central Asia Tbk","currency":"IDR","marketCap":{"raw":1.1e15,"fmt":"1.1Q"}},
"summaryProfile":{"sector":"Financial Services","industry":"Banks - Regional"},
"summaryDetail":{"trailingPE":{"raw":23.5},"dividendYield":{"raw":0.028}},
"defaultKeyStatistics":{"priceToBook":{"raw":4.9},"trailingEps":{"raw":405.2},"sharesOutstanding":{"raw":123275050000}},
"financialData":{"returnOnEquity":{"raw":0.21}}}],"error":null}}`

func newYahooTestServer(t *testing.T) *YahooFetcher {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/v8/finance/chart/BBCA.JK"):
			if r.URL.Query().Get("range") != "1y" || r.URL.Query().Get("interval") != "1d" {
				http.Error(w, "bad query", http.StatusBadRequest)
				return
			}
			fmt.Fprint(w, chartFixture)
		case strings.HasPrefix(r.URL.Path, "/v8/finance/chart/NOPE.JK"):
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, notFoundFixture)
		case strings.HasPrefix(r.URL.Path, "/v8/finance/chart/BUSY.JK"):
			w.WriteHeader(http.StatusTooManyRequests)
		case strings.HasPrefix(r.URL.Path, "/v10/finance/quoteSummary/BBCA.JK"):
			fmt.Fprint(w, summaryFixture)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	f := NewYahooFetcher("", 5*time.Second)
	f.BaseURL = srv.URL
	return f
}

func TestYahooFetchBars(t *testing.T) {
	f := newYahooTestServer(t)
	s, err := f.FetchBars(context.Background(), "BBCA.JK", daily1y)
	if err != nil {
		t.Fatalf("FetchBars: %v", err)
	}
	if len(s.Bars) != 2 {
		t.Fatalf("expected null bar to be dropped, got %d bars", len(s.Bars))
	}
	if s.Timezone != TimezoneJakarta {
		t.Errorf("timezone = %q", s.Timezone)
	}
	first := s.Bars[0]
	if first.Time.Location().String() != TimezoneJakarta || first.Time.Hour() != 9 {
		t.Errorf("bar not localized to Jakarta: %v", first.Time)
	}
	if first.Close != 9450 || s.Bars[1].Volume != 2000000 {
		t.Errorf("unexpected bars: %+v", s.Bars)
	}
}

func TestYahooErrorClassification(t *testing.T) {
	f := newYahooTestServer(t)
	if _, err := f.FetchBars(context.Background(), "NOPE.JK", daily1y); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.FetchBars(context.Background(), "BUSY.JK", daily1y); !errors.Is(err, ErrTransient) {
		t.Errorf("expected ErrTransient, got %v", err)
	}
	if _, err := f.FetchBars(context.Background(), "BBCA.JK", model.Window{Range: "7y", Interval: "1d"}); !errors.Is(err, model.ErrInvalidWindow) {
		t.Errorf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestYahooFundamentals(t *testing.T) {
	f := newYahooTestServer(t)
	fund, err := f.FetchFundamentals(context.Background(), "BBCA.JK")
	if err != nil {
		t.Fatalf("FetchFundamentals: %v", err)
	}
	if fund.Name != "PT Bank Central Asia Tbk" || fund.Sector != "Financial Services" {
		t.Errorf("unexpected profile: %+v", fund)
	}
	if fund.TrailingPE != 23.5 || fund.PriceToBook != 4.9 || fund.ReturnOnEquity != 0.21 {
		t.Errorf("unexpected ratios: %+v", fund)
	}
	if fund.MarketCap != 1.1e15 {
		t.Errorf("market cap = %v", fund.MarketCap)
	}
}

func TestCachedFetcher(t *testing.T) {
	mock := &MockFetcher{Price: 1000, Errs: map[string]error{"BAD.JK": ErrNotFound}}
	cf := NewCachedFetcher(mock, time.Minute)

	a, err := cf.FetchBars(context.Background(), "BBCA.JK", daily1y)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	a.Bars[0].Close = -1
	b, err := cf.FetchBars(context.Background(), "BBCA.JK", daily1y)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if mock.Calls() != 1 {
		t.Errorf("expected 1 provider call, got %d", mock.Calls())
	}
	if b.Bars[0].Close == -1 {
		t.Error("cached series was mutated through a returned copy")
	}

	// Different window is a different key.
	if _, err := cf.FetchBars(context.Background(), "BBCA.JK", model.Window{Range: "1mo", Interval: "1d"}); err != nil {
		t.Fatal(err)
	}
	if mock.Calls() != 2 {
		t.Errorf("expected 2 provider calls, got %d", mock.Calls())
	}

	// Errors are not cached.
	cf.FetchBars(context.Background(), "BAD.JK", daily1y)
	cf.FetchBars(context.Background(), "BAD.JK", daily1y)
	if mock.Calls() != 4 {
		t.Errorf("expected errors to bypass the cache, got %d calls", mock.Calls())
	}

	if NewCachedFetcher(mock, 0) != Fetcher(mock) {
		t.Error("zero ttl should return the inner fetcher")
	}
}

// flakyFetcher fails with a transient error a fixed number of times per ticker.
type flakyFetcher struct {
	MockFetcher
	failures int64
	seen     atomic.Int64
}

func (f *flakyFetcher) FetchBars(ctx context.Context, ticker string, w model.Window) (*model.Series, error) {
	if f.seen.Add(1) <= f.failures {
		return nil, fmt.Errorf("flaky: %w", ErrTransient)
	}
	return f.MockFetcher.FetchBars(ctx, ticker, w)
}

func TestDownloaderSkipsAndReportsFailures(t *testing.T) {
	mock := &MockFetcher{
		Price: 500,
		Errs: map[string]error{
			"GONE.JK": fmt.Errorf("gone: %w", ErrNotFound),
			"FAIL.JK": fmt.Errorf("down: %w", ErrTransient),
		},
	}
	d := NewDownloader(mock, 2, 3, 2, time.Millisecond, nil)
	tickers := []string{"BBCA.JK", "GONE.JK", "BBRI.JK", "FAIL.JK", "TLKM.JK"}

	res, err := d.Download(context.Background(), tickers, daily1y)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	want := []string{"BBCA.JK", "BBRI.JK", "TLKM.JK"}
	if strings.Join(res.Order, ",") != strings.Join(want, ",") {
		t.Errorf("order = %v, want %v", res.Order, want)
	}
	if len(res.Failures) != 2 {
		t.Fatalf("expected 2 failures, got %+v", res.Failures)
	}
	kinds := map[string]string{}
	for _, f := range res.Failures {
		kinds[f.Ticker] = f.Kind
	}
	if kinds["GONE.JK"] != "not_found" || kinds["FAIL.JK"] != "transient" {
		t.Errorf("unexpected failure kinds: %v", kinds)
	}
	// 5 tickers plus 2 retries for the transient one.
	if mock.Calls() != 7 {
		t.Errorf("expected 7 calls, got %d", mock.Calls())
	}
}

func TestDownloaderRetriesTransient(t *testing.T) {
	f := &flakyFetcher{MockFetcher: MockFetcher{Price: 100}, failures: 2}
	d := NewDownloader(f, 10, 1, 2, time.Millisecond, nil)
	res, err := d.Download(context.Background(), []string{"AAPL"}, daily1y)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Failures) != 0 || len(res.Order) != 1 {
		t.Errorf("expected success after retries, got %+v", res.Failures)
	}
}

func TestDownloaderCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := NewDownloader(&MockFetcher{Price: 100}, 10, 2, 0, 0, nil)
	if _, err := d.Download(ctx, []string{"AAPL", "MSFT"}, daily1y); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// fakeBulk records bulk calls and serves every ticker but one.
type fakeBulk struct {
	MockFetcher
	chunks [][]string
}

func (f *fakeBulk) FetchBulk(ctx context.Context, tickers []string, w model.Window) (map[string]*model.Series, error) {
	f.chunks = append(f.chunks, append([]string(nil), tickers...))
	out := map[string]*model.Series{}
	for _, t := range tickers {
		if t == "MISSING" {
			continue
		}
		s, err := f.MockFetcher.FetchBars(ctx, t, w)
		if err != nil {
			return nil, err
		}
		out[t] = s
	}
	return out, nil
}

func TestDownloaderBulkChunks(t *testing.T) {
	bulk := &fakeBulk{MockFetcher: MockFetcher{Price: 100}}
	d := NewDownloader(bulk, 2, 4, 0, 0, nil)
	res, err := d.Download(context.Background(), []string{"AAPL", "MSFT", "MISSING", "NVDA", "META"}, daily1y)
	if err != nil {
		t.Fatal(err)
	}
	if len(bulk.chunks) != 3 {
		t.Errorf("expected 3 bulk calls, got %v", bulk.chunks)
	}
	if len(res.Order) != 4 || len(res.Failures) != 1 || res.Failures[0].Kind != "no_data" {
		t.Errorf("unexpected result: order=%v failures=%+v", res.Order, res.Failures)
	}

	// The bulk cache only asks for tickers it has not seen.
	cached := NewCachedFetcher(bulk, time.Minute).(BulkFetcher)
	cached.FetchBulk(context.Background(), []string{"AAPL", "MSFT"}, daily1y)
	cached.FetchBulk(context.Background(), []string{"AAPL", "MSFT", "NVDA"}, daily1y)
	last := bulk.chunks[len(bulk.chunks)-1]
	if len(last) != 1 || last[0] != "NVDA" {
		t.Errorf("expected only NVDA to be fetched, got %v", last)
	}
}

func TestResampleWeekly(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) // Monday
	var daily []model.OHLCV
	for i := 0; i < 10; i++ {
		d := start.AddDate(0, 0, i)
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		p := float64(100 + i)
		daily = append(daily, model.OHLCV{Time: d, Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 10})
	}
	weekly := resample(daily, "1wk")
	if len(weekly) != 2 {
		t.Fatalf("expected 2 weeks, got %d", len(weekly))
	}
	w1 := weekly[0]
	if w1.Open != 100 || w1.Close != 104 || w1.High != 105 || w1.Low != 99 || w1.Volume != 50 {
		t.Errorf("unexpected first week: %+v", w1)
	}
	if got := resample(daily, "1d"); len(got) != len(daily) {
		t.Error("daily interval should be unchanged")
	}
}

func TestWindowStart(t *testing.T) {
	now := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	ytd := windowStart(now, "ytd", "UTC")
	if !ytd.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ytd start = %v", ytd)
	}
	m3 := windowStart(now, "3mo", "UTC")
	if !m3.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("3mo start = %v", m3)
	}
}

func risingBars(n int, base float64) []model.OHLCV {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]model.OHLCV, n)
	for i := range bars {
		c := base + float64(i)*5
		bars[i] = model.OHLCV{
			Time:   start.AddDate(0, 0, i),
			Open:   c - 2,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1000000,
		}
	}
	return bars
}

func TestBuildMetricRow(t *testing.T) {
	s := &model.Series{Ticker: "BBCA.JK", Bars: risingBars(300, 1000)}
	row := BuildMetricRow(s, universe.MarketIDX, daily1y, nil)
	if len(row.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", row.Warnings)
	}
	if row.Price != 2495 || row.Previous != 2490 || row.Change != 5 {
		t.Errorf("price fields: %v %v %v", row.Price, row.Previous, row.Change)
	}
	if row.Streak != 299 || row.MaxWinStreak != 299 || row.WinRate != 1 {
		t.Errorf("streaks: %d %d %v", row.Streak, row.MaxWinStreak, row.WinRate)
	}
	if !(row.MA5 > row.MA20 && row.MA20 > row.MA50 && row.MA50 > row.MA200) {
		t.Errorf("moving averages out of order: %v %v %v %v", row.MA5, row.MA20, row.MA50, row.MA200)
	}
	if row.VolumeRatio != 1 || row.RSI14 <= 70 {
		t.Errorf("volume ratio %v rsi %v", row.VolumeRatio, row.RSI14)
	}
	if row.TickSize != 10 || row.AraPrice <= row.Price || row.ArbPrice >= row.Price {
		t.Errorf("IDX limits: tick %v ara %v arb %v", row.TickSize, row.AraPrice, row.ArbPrice)
	}
	if row.Position52w <= 0 || row.Position52w >= 1 {
		t.Errorf("position = %v", row.Position52w)
	}
}

func TestBuildMetricRowShortSeriesFallsBack(t *testing.T) {
	s := &model.Series{Ticker: "AAPL", Bars: risingBars(3, 100)}
	row := BuildMetricRow(s, universe.MarketUS, daily1y, nil)
	if len(row.Warnings) == 0 {
		t.Fatal("expected warnings for a short series")
	}
	if row.RSI14 != 50 || row.MA200 != row.Price {
		t.Errorf("fallbacks not applied: rsi %v ma200 %v", row.RSI14, row.MA200)
	}
	if row.TickSize != 0 || row.AraPrice != 0 {
		t.Error("US rows must not carry IDX limits")
	}
	if BuildMetricRow(&model.Series{Ticker: "X"}, universe.MarketUS, daily1y, nil) != nil {
		t.Error("empty series should yield no row")
	}
}

func TestCollectorScan(t *testing.T) {
	mock := &MockFetcher{
		Price:  1000,
		Errs:   map[string]error{"GONE.JK": ErrNotFound},
		Fund:   map[string]*model.Fundamentals{"BBCA.JK": {Ticker: "BBCA.JK", Name: "BCA"}},
		Series: map[string][]model.OHLCV{"BBRI.JK": risingBars(300, 4000)},
	}
	d := NewDownloader(mock, 10, 2, 0, 0, nil)
	c := NewCollector(d, func(r *model.MetricRow) model.Score {
		return model.Score{Total: r.ChangePct}
	}, nil)
	c.IncludeFundamentals = true

	u := universe.Universe{Name: "mine", Market: universe.MarketIDX, Tickers: []string{"BBCA.JK", "GONE.JK", "BBRI.JK"}}
	res, err := c.Scan(context.Background(), u, daily1y)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(res.Rows) != 2 || res.Rows[0].Ticker != "BBCA.JK" || res.Rows[1].Ticker != "BBRI.JK" {
		t.Fatalf("unexpected rows: %+v", res.Rows)
	}
	if len(res.Failures) != 1 || res.Failures[0].Ticker != "GONE.JK" {
		t.Errorf("unexpected failures: %+v", res.Failures)
	}
	if res.Rows[0].Fundamentals == nil || res.Rows[0].Fundamentals.Name != "BCA" {
		t.Error("fundamentals not attached")
	}
	if res.Rows[1].Fundamentals != nil || len(res.Rows[1].Warnings) == 0 {
		t.Error("missing fundamentals should be a warning")
	}
	if res.Rows[1].Score.Total != res.Rows[1].ChangePct {
		t.Error("scorer not applied")
	}
}

func TestCollectorHistory(t *testing.T) {
	mock := &MockFetcher{Series: map[string][]model.OHLCV{"AAPL": risingBars(60, 100)}}
	c := NewCollector(NewDownloader(mock, 10, 1, 0, 0, nil), nil, nil)
	h, err := c.History(context.Background(), "AAPL", daily1y)
	if err != nil {
		t.Fatal(err)
	}
	if len(h.MA20) != 60 || len(h.MA50) != 60 {
		t.Fatalf("overlay lengths %d %d", len(h.MA20), len(h.MA50))
	}
	if h.MA20[18] != 0 || h.MA20[19] == 0 || h.MA50[49] == 0 {
		t.Error("overlays not aligned with bars")
	}
	if _, err := c.History(context.Background(), "ZZZZ", daily1y); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
