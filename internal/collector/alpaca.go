package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"SahamScope/internal/model"
	"SahamScope/internal/universe"
)

// AlpacaFetcher implements BulkFetcher on the Alpaca market-data API. One
// GetMultiBars call serves a whole chunk of US tickers.
type AlpacaFetcher struct {
	client *marketdata.Client
	now    func() time.Time
}

// NewAlpacaFetcher creates a fetcher with the given credentials. An empty
// dataURL uses the Alpaca default.
func NewAlpacaFetcher(apiKey, apiSecret, dataURL string) *AlpacaFetcher {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return &AlpacaFetcher{client: marketdata.NewClient(opts), now: time.Now}
}

func (f *AlpacaFetcher) Name() string { return "alpaca" }

// alpacaSymbol converts share-class tickers, BRK-B -> BRK.B.
func alpacaSymbol(ticker string) string {
	return strings.ReplaceAll(ticker, "-", ".")
}

// FetchBars fetches a single ticker through the bulk endpoint.
func (f *AlpacaFetcher) FetchBars(ctx context.Context, ticker string, w model.Window) (*model.Series, error) {
	out, err := f.FetchBulk(ctx, []string{ticker}, w)
	if err != nil {
		return nil, err
	}
	s, ok := out[ticker]
	if !ok {
		return nil, fmt.Errorf("alpaca %s: %w", ticker, ErrNoData)
	}
	return s, nil
}

// FetchBulk fetches every supported ticker in one call. Tickers the API
// returned nothing for are absent from the result; the downloader reports
// them as no-data failures. Weekly and monthly bars are resampled from
// daily bars.
func (f *AlpacaFetcher) FetchBulk(ctx context.Context, tickers []string, w model.Window) (map[string]*model.Series, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	symbols := make([]string, 0, len(tickers))
	bySymbol := make(map[string]string, len(tickers))
	for _, t := range tickers {
		if universe.MarketOf(t) == universe.MarketIDX || strings.HasPrefix(t, "^") {
			continue
		}
		sym := alpacaSymbol(t)
		symbols = append(symbols, sym)
		bySymbol[sym] = t
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("alpaca: %w", ErrUnsupported)
	}

	tf := marketdata.OneDay
	if w.Interval == "1h" {
		tf = marketdata.OneHour
	}
	now := f.now()
	multi, err := f.client.GetMultiBars(symbols, marketdata.GetBarsRequest{
		TimeFrame: tf,
		Start:     windowStart(now, w.Range, TimezoneNewYork),
		End:       now,
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca GetMultiBars: %v: %w", err, ErrTransient)
	}

	out := make(map[string]*model.Series, len(multi))
	for sym, abars := range multi {
		ticker, ok := bySymbol[strings.ToUpper(sym)]
		if !ok || len(abars) == 0 {
			continue
		}
		bars := make([]model.OHLCV, 0, len(abars))
		for _, ab := range abars {
			bars = append(bars, model.OHLCV{
				Time:   localize(ab.Timestamp.Unix(), TimezoneNewYork),
				Open:   ab.Open,
				High:   ab.High,
				Low:    ab.Low,
				Close:  ab.Close,
				Volume: float64(ab.Volume),
			})
		}
		bars = resample(sortAndDedupe(bars), w.Interval)
		out[ticker] = &model.Series{
			Ticker:   ticker,
			Timezone: TimezoneNewYork,
			Bars:     trimToRange(bars, w),
			Source:   f.Name(),
			Fetched:  now,
		}
	}
	return out, nil
}
