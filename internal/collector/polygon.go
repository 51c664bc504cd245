package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"SahamScope/internal/model"
	"SahamScope/internal/universe"
)

// PolygonFetcher implements Fetcher using Polygon aggregates. It serves US
// listings only.
type PolygonFetcher struct {
	client *polygon.Client
	now    func() time.Time
}

// NewPolygonFetcher creates a fetcher authenticated with apiKey.
func NewPolygonFetcher(apiKey string) *PolygonFetcher {
	return &PolygonFetcher{client: polygon.New(apiKey), now: time.Now}
}

func (f *PolygonFetcher) Name() string { return "polygon" }

// polygonTimespan maps an interval to a Polygon multiplier and timespan.
func polygonTimespan(interval string) (int, models.Timespan) {
	switch interval {
	case "1h":
		return 1, "hour"
	case "1wk":
		return 1, "week"
	case "1mo":
		return 1, "month"
	default:
		return 1, "day"
	}
}

// FetchBars lists the aggregates of ticker over the window, oldest first.
func (f *PolygonFetcher) FetchBars(ctx context.Context, ticker string, w model.Window) (*model.Series, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if universe.MarketOf(ticker) == universe.MarketIDX || strings.HasPrefix(ticker, "^") {
		return nil, fmt.Errorf("polygon %s: %w", ticker, ErrUnsupported)
	}

	now := f.now()
	start := windowStart(now, w.Range, TimezoneNewYork)
	mult, span := polygonTimespan(w.Interval)
	params := models.ListAggsParams{
		Ticker:     ticker,
		Multiplier: mult,
		Timespan:   span,
		From:       models.Millis(start),
		To:         models.Millis(now),
	}.WithOrder(models.Asc).WithLimit(50000).WithAdjusted(true)

	iter := f.client.ListAggs(ctx, params)
	var bars []model.OHLCV
	for iter.Next() {
		a := iter.Item()
		bars = append(bars, model.OHLCV{
			Time:   localize(time.Time(a.Timestamp).Unix(), TimezoneNewYork),
			Open:   a.Open,
			High:   a.High,
			Low:    a.Low,
			Close:  a.Close,
			Volume: a.Volume,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("polygon %s: %w", ticker, classifyPolygon(err))
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("polygon %s: %w", ticker, ErrNoData)
	}

	return &model.Series{
		Ticker:   ticker,
		Timezone: TimezoneNewYork,
		Bars:     trimToRange(sortAndDedupe(bars), w),
		Source:   f.Name(),
		Fetched:  now,
	}, nil
}

func classifyPolygon(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var res *models.ErrorResponse
	if errors.As(err, &res) {
		return statusError("polygon", res.StatusCode, res.Error())
	}
	return err
}
