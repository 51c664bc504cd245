package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"SahamScope/internal/model"
)

// Provider failure classes. Fetchers wrap one of these so the downloader can
// tell a missing symbol from a flaky network.
var (
	ErrNoData      = errors.New("no data")
	ErrNotFound    = errors.New("symbol not found")
	ErrTransient   = errors.New("transient provider error")
	ErrUnsupported = errors.New("not supported by provider")
)

// Fetcher defines the interface for fetching market data.
type Fetcher interface {
	FetchBars(ctx context.Context, ticker string, w model.Window) (*model.Series, error)
	Name() string
}

// BulkFetcher is implemented by providers that can return many tickers in a
// single call.
type BulkFetcher interface {
	Fetcher
	FetchBulk(ctx context.Context, tickers []string, w model.Window) (map[string]*model.Series, error)
}

// FundamentalsFetcher is implemented by providers that serve company profiles
// and valuation figures.
type FundamentalsFetcher interface {
	FetchFundamentals(ctx context.Context, ticker string) (*model.Fundamentals, error)
}

// FailureKind returns a short machine-readable label for a fetch error.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNoData):
		return "no_data"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	default:
		return "error"
	}
}

// statusError classifies a non-200 HTTP response.
func statusError(provider string, code int, body string) error {
	if len(body) > 200 {
		body = body[:200]
	}
	switch {
	case code == http.StatusNotFound:
		return fmt.Errorf("%s: status %d: %w", provider, code, ErrNotFound)
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%s: status %d, body: %s: %w", provider, code, body, ErrTransient)
	default:
		return fmt.Errorf("%s: status %d, body: %s", provider, code, body)
	}
}
