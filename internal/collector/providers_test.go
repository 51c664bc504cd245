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

	"github.com/polygon-io/client-go/rest/models"

	"SahamScope/internal/model"
)

// sessionDays returns the NY midnights of the ten weekday sessions ending
// Friday 2024-06-07, as UTC instants.
func sessionDays() []time.Time {
	var days []time.Time
	for d := time.Date(2024, 5, 27, 4, 0, 0, 0, time.UTC); len(days) < 10; d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days = append(days, d)
		}
	}
	return days
}

var providerNow = time.Date(2024, 6, 7, 21, 0, 0, 0, time.UTC)

func alpacaBarsJSON() string {
	var bars []string
	for i, d := range sessionDays() {
		c := 100 + float64(i)
		bars = append(bars, fmt.Sprintf(`{"t":%q,"o":%g,"h":%g,"l":%g,"c":%g,"v":%d,"n":10,"vw":%g}`,
			d.Format(time.RFC3339), c-0.5, c+1, c-1, c, 1000*(i+1), c))
	}
	return `{"bars":{"BRK.B":[` + strings.Join(bars, ",") + `]},"next_page_token":null}`
}

func newAlpacaTestServer(t *testing.T, status int) (*AlpacaFetcher, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/v2/stocks/bars" || r.Header.Get("APCA-API-KEY-ID") != "key" {
			http.NotFound(w, r)
			return
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"message":"forbidden"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, alpacaBarsJSON())
	}))
	t.Cleanup(srv.Close)
	f := NewAlpacaFetcher("key", "secret", srv.URL)
	f.now = func() time.Time { return providerNow }
	return f, &calls
}

func TestAlpacaFetchBulk(t *testing.T) {
	f, _ := newAlpacaTestServer(t, http.StatusOK)
	out, err := f.FetchBulk(context.Background(), []string{"BRK-B", "AAPL", "BBCA.JK"}, model.Window{Range: "5d", Interval: "1d"})
	if err != nil {
		t.Fatalf("FetchBulk: %v", err)
	}
	if _, ok := out["AAPL"]; ok {
		t.Error("ticker without bars should be absent")
	}
	s, ok := out["BRK-B"]
	if !ok {
		t.Fatalf("BRK.B not mapped back to BRK-B: %v", out)
	}
	if len(s.Bars) != 5 {
		t.Fatalf("5d range should keep 5 sessions, got %d", len(s.Bars))
	}
	first, last := s.Bars[0], s.Bars[len(s.Bars)-1]
	if first.Time.Location().String() != TimezoneNewYork || first.Time.Format("2006-01-02 15:04") != "2024-06-03 00:00" {
		t.Errorf("bar not localized to New York: %v", first.Time)
	}
	if last.Close != 109 || last.Volume != 10000 || s.Source != "alpaca" {
		t.Errorf("unexpected last bar: %+v (source %s)", last, s.Source)
	}
}

func TestAlpacaResamplesWeekly(t *testing.T) {
	f, _ := newAlpacaTestServer(t, http.StatusOK)
	s, err := f.FetchBars(context.Background(), "BRK-B", model.Window{Range: "1mo", Interval: "1wk"})
	if err != nil {
		t.Fatalf("FetchBars: %v", err)
	}
	if len(s.Bars) != 2 {
		t.Fatalf("expected 2 weekly bars, got %d", len(s.Bars))
	}
	if w := s.Bars[1]; w.Open != 104.5 || w.Close != 109 || w.High != 110 || w.Low != 104 {
		t.Errorf("unexpected weekly bar: %+v", w)
	}
}

func TestAlpacaErrors(t *testing.T) {
	f, calls := newAlpacaTestServer(t, http.StatusOK)
	_, err := f.FetchBulk(context.Background(), []string{"BBCA.JK", "^JKSE"}, daily1y)
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("IDX-only chunk: expected ErrUnsupported, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("unsupported chunk should not reach the API, got %d calls", calls.Load())
	}
	if _, err := f.FetchBars(context.Background(), "AAPL", daily1y); !errors.Is(err, ErrNoData) {
		t.Errorf("missing ticker: expected ErrNoData, got %v", err)
	}

	f, _ = newAlpacaTestServer(t, http.StatusForbidden)
	if _, err := f.FetchBars(context.Background(), "BRK-B", daily1y); !errors.Is(err, ErrTransient) {
		t.Errorf("API error: expected ErrTransient, got %v", err)
	}
}

func newPolygonTestServer(t *testing.T) *PolygonFetcher {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/v2/aggs/ticker/AAPL/range/1/day/"):
			var aggs []string
			for i, d := range sessionDays() {
				c := 180 + float64(i)
				aggs = append(aggs, fmt.Sprintf(`{"t":%d,"o":%g,"h":%g,"l":%g,"c":%g,"v":%d}`,
					d.UnixMilli(), c, c+1, c-1, c, 5000))
			}
			fmt.Fprintf(w, `{"status":"OK","ticker":"AAPL","resultsCount":10,"results":[%s]}`, strings.Join(aggs, ","))
		case strings.HasPrefix(r.URL.Path, "/v2/aggs/ticker/EMPTY/"):
			fmt.Fprint(w, `{"status":"OK","ticker":"EMPTY","resultsCount":0}`)
		case strings.HasPrefix(r.URL.Path, "/v2/aggs/ticker/BUSY/"):
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"status":"ERROR","request_id":"r1","error":"rate limited"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"status":"NOT_FOUND","request_id":"r2","message":"unknown ticker"}`)
		}
	}))
	t.Cleanup(srv.Close)
	f := NewPolygonFetcher("key")
	f.client.HTTP.SetBaseURL(srv.URL).SetRetryCount(0)
	f.now = func() time.Time { return providerNow }
	return f
}

func TestPolygonFetchBars(t *testing.T) {
	f := newPolygonTestServer(t)
	s, err := f.FetchBars(context.Background(), "AAPL", model.Window{Range: "5d", Interval: "1d"})
	if err != nil {
		t.Fatalf("FetchBars: %v", err)
	}
	if len(s.Bars) != 5 || s.Source != "polygon" {
		t.Fatalf("expected 5 polygon bars, got %d from %s", len(s.Bars), s.Source)
	}
	if got := s.Bars[0].Time.In(time.UTC); !got.Equal(sessionDays()[5]) {
		t.Errorf("first bar at %v", got)
	}
	if s.Bars[0].Time.Location().String() != TimezoneNewYork || s.Bars[4].Close != 189 {
		t.Errorf("unexpected bars: %+v", s.Bars)
	}
}

func TestPolygonErrorClassification(t *testing.T) {
	f := newPolygonTestServer(t)
	cases := []struct {
		ticker string
		want   error
	}{
		{"GONE", ErrNotFound},
		{"BUSY", ErrTransient},
		{"EMPTY", ErrNoData},
		{"BBCA.JK", ErrUnsupported},
		{"^JKSE", ErrUnsupported},
	}
	for _, tc := range cases {
		if _, err := f.FetchBars(context.Background(), tc.ticker, daily1y); !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.ticker, tc.want, err)
		}
	}
}

func TestClassifyPolygon(t *testing.T) {
	if err := classifyPolygon(&models.ErrorResponse{StatusCode: http.StatusBadGateway}); !errors.Is(err, ErrTransient) {
		t.Errorf("502: %v", err)
	}
	if err := classifyPolygon(fmt.Errorf("wrapped: %w", context.Canceled)); !errors.Is(err, context.Canceled) {
		t.Errorf("cancellation should pass through: %v", err)
	}
	plain := errors.New("dial failed")
	if err := classifyPolygon(plain); err != plain {
		t.Errorf("unknown errors should pass through: %v", err)
	}
}
