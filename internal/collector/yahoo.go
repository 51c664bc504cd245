package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"SahamScope/internal/model"
)

// DefaultYahooBaseURL is the public Yahoo Finance query host.
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements Fetcher and FundamentalsFetcher using the Yahoo
// Finance public API.
type YahooFetcher struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string // maps dashboard aliases to Yahoo tickers
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(proxyURL string, timeout time.Duration) *YahooFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &YahooFetcher{
		BaseURL: DefaultYahooBaseURL,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		SymbolMap: map[string]string{
			"IHSG":      "^JKSE",
			"COMPOSITE": "^JKSE",
			"LQ45":      "^JKLQ45",
			"SPX":       "^GSPC",
			"SP500":     "^GSPC",
		},
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(ticker string) string {
	if mapped, ok := f.SymbolMap[strings.ToUpper(ticker)]; ok {
		return mapped
	}
	return ticker
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol               string `json:"symbol"`
				Currency             string `json:"currency"`
				ExchangeTimezoneName string `json:"exchangeTimezoneName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(v interface{}) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

// at returns values[i] or nil when the provider sent a short column.
func at(values []interface{}, i int) interface{} {
	if i < len(values) {
		return values[i]
	}
	return nil
}

func (f *YahooFetcher) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			return nil, fmt.Errorf("yahoo fetch: %v: %w", err, ErrTransient)
		}
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %v: %w", err, ErrTransient)
	}
	if resp.StatusCode != http.StatusOK {
		// The chart API reports unknown symbols as 404 with a JSON error body.
		return nil, statusError("yahoo", resp.StatusCode, string(body))
	}
	return body, nil
}

// FetchBars downloads the chart for one ticker and localizes bar times to
// the exchange timezone.
func (f *YahooFetcher) FetchBars(ctx context.Context, ticker string, w model.Window) (*model.Series, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s&includePrePost=false",
		strings.TrimRight(f.BaseURL, "/"), url.PathEscape(f.yahooSymbol(ticker)), w.Interval, w.Range)

	body, err := f.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ticker, err)
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode %s: %w", ticker, err)
	}
	if chart.Chart.Error != nil {
		if chart.Chart.Error.Code == "Not Found" {
			return nil, fmt.Errorf("%s: %s: %w", ticker, chart.Chart.Error.Description, ErrNotFound)
		}
		return nil, fmt.Errorf("yahoo api error for %s: %s", ticker, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrNoData)
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	tz := result.Meta.ExchangeTimezoneName
	if tz == "" {
		tz = exchangeTimezone(ticker)
	}

	bars := make([]model.OHLCV, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o := toFloat(at(quote.Open, i))
		h := toFloat(at(quote.High, i))
		l := toFloat(at(quote.Low, i))
		c := toFloat(at(quote.Close, i))
		if o == 0 && h == 0 && l == 0 && c == 0 {
			continue // skip null bars (holidays etc.)
		}
		bars = append(bars, model.OHLCV{
			Time:   localize(ts, tz),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: toFloat(at(quote.Volume, i)),
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrNoData)
	}

	return &model.Series{
		Ticker:   ticker,
		Timezone: tz,
		Bars:     sortAndDedupe(bars),
		Source:   f.Name(),
		Fetched:  time.Now(),
	}, nil
}

// FetchFundamentals reads the quoteSummary modules. The payload shape varies
// per listing, so fields are picked with gjson paths and default to zero.
func (f *YahooFetcher) FetchFundamentals(ctx context.Context, ticker string) (*model.Fundamentals, error) {
	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=price,summaryProfile,summaryDetail,defaultKeyStatistics,financialData",
		strings.TrimRight(f.BaseURL, "/"), url.PathEscape(f.yahooSymbol(ticker)))

	body, err := f.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ticker, err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("yahoo decode fundamentals %s: invalid json", ticker)
	}
	if desc := gjson.GetBytes(body, "quoteSummary.error.description"); desc.Exists() && desc.String() != "" {
		return nil, fmt.Errorf("%s: %s: %w", ticker, desc.String(), ErrNotFound)
	}
	res := gjson.GetBytes(body, "quoteSummary.result.0")
	if !res.Exists() {
		return nil, fmt.Errorf("%s: %w", ticker, ErrNoData)
	}

	name := res.Get("price.longName").String()
	if name == "" {
		name = res.Get("price.shortName").String()
	}
	return &model.Fundamentals{
		Ticker:            ticker,
		Name:              name,
		Sector:            res.Get("summaryProfile.sector").String(),
		Industry:          res.Get("summaryProfile.industry").String(),
		Currency:          res.Get("price.currency").String(),
		MarketCap:         res.Get("price.marketCap.raw").Float(),
		TrailingPE:        res.Get("summaryDetail.trailingPE.raw").Float(),
		PriceToBook:       res.Get("defaultKeyStatistics.priceToBook.raw").Float(),
		DividendYield:     res.Get("summaryDetail.dividendYield.raw").Float(),
		ReturnOnEquity:    res.Get("financialData.returnOnEquity.raw").Float(),
		EPS:               res.Get("defaultKeyStatistics.trailingEps.raw").Float(),
		SharesOutstanding: res.Get("defaultKeyStatistics.sharesOutstanding.raw").Float(),
	}, nil
}
