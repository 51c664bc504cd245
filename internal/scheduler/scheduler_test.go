package scheduler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"SahamScope/internal/collector"
	"SahamScope/internal/config"
	"SahamScope/internal/model"
	"SahamScope/internal/notifier"
	"SahamScope/internal/pipeline"
	"SahamScope/internal/recorder"
	"SahamScope/internal/screener"
	"SahamScope/internal/universe"
	"SahamScope/internal/watchlist"
)

var daily = model.Window{Range: "6mo", Interval: "1d"}

type inbox struct {
	mu   sync.Mutex
	msgs []string
}

func (b *inbox) texts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.msgs...)
}

func newTelegram(t *testing.T) (*notifier.TelegramNotifier, *inbox) {
	t.Helper()
	box := &inbox{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Text string `json:"text"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		box.mu.Lock()
		box.msgs = append(box.msgs, payload.Text)
		box.mu.Unlock()
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)
	tn := notifier.NewTelegramNotifier("TOKEN", "42", "", nil)
	tn.APIURL = srv.URL
	tn.RetryBase = time.Millisecond
	return tn, box
}

type fixture struct {
	sched *Scheduler
	rec   *recorder.SQLiteRecorder
	box   *inbox
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mock := &collector.MockFetcher{
		Price: 500,
		Now:   time.Date(2024, 6, 28, 16, 0, 0, 0, time.UTC),
		Errs:  map[string]error{"GONE.JK": collector.ErrNotFound},
	}
	d := collector.NewDownloader(mock, 10, 2, 0, time.Millisecond, nil)
	col := collector.NewCollector(d, screener.Evaluate, nil)

	wl, err := watchlist.Open(filepath.Join(t.TempDir(), "wl.json"), universe.MarketIDX, nil)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := recorder.NewSQLiteRecorder(filepath.Join(t.TempDir(), "runs.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { rec.Close() })

	reg := universe.NewRegistry([]universe.Universe{{Name: "small", Tickers: []string{"bbca", "bbri", "gone"}}})
	p := pipeline.New(reg, wl, col, rec, nil)
	tn, box := newTelegram(t)
	s := New(context.Background(), p, wl, tn, Options{Window: daily, ReportLimit: 5}, nil)
	return &fixture{sched: s, rec: rec, box: box}
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	err := f.sched.Register([]config.ScheduledScan{{Name: "close", Cron: "0 30 16 * * 1-5", Universe: "small", Range: "6mo", Interval: "1d"}})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if n := len(f.sched.Cron.Entries()); n != 1 {
		t.Errorf("expected 1 entry, got %d", n)
	}
	if err := f.sched.Register([]config.ScheduledScan{{Name: "bad", Cron: "every day"}}); err == nil {
		t.Error("expected error for invalid cron spec")
	}
	f.sched.Start()
	f.sched.Stop()
}

func TestRunJobRecordsAndNotifies(t *testing.T) {
	f := newFixture(t)
	f.sched.runJob(config.ScheduledScan{Name: "close", Universe: "small", Range: "6mo", Interval: "1d", Notify: true})

	msgs := f.box.texts()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0], "small") || !strings.Contains(msgs[0], "BBCA") || !strings.Contains(msgs[0], "GONE") {
		t.Errorf("report missing content:\n%s", msgs[0])
	}
	runs, err := f.rec.RecentRuns(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Trigger != pipeline.TriggerCron || runs[0].Rows != 2 {
		t.Errorf("runs = %+v", runs)
	}
}

func TestRunJobFailureNotifies(t *testing.T) {
	f := newFixture(t)
	f.sched.runJob(config.ScheduledScan{Name: "broken", Universe: "missing", Range: "6mo", Interval: "1d", Notify: true})
	msgs := f.box.texts()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "failed") {
		t.Errorf("expected a failure message, got %v", msgs)
	}
}

func TestRunJobWithoutNotify(t *testing.T) {
	f := newFixture(t)
	f.sched.runJob(config.ScheduledScan{Name: "quiet", Universe: "small", Range: "6mo", Interval: "1d"})
	if len(f.box.texts()) != 0 {
		t.Error("no message expected when notify is off")
	}
}

func TestHandleCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		cmd  string
		want []string
	}{
		{"/help", []string{"Available commands"}},
		{"/scan", []string{"Usage: /scan"}},
		{"/scan small", []string{"small", "BBCA", "tickers failed"}},
		{"/scan@SahamBot small 3mo", []string{"3mo/1d"}},
		{"/scan nowhere", []string{"❌", "unknown universe"}},
		{"/top small", []string{"Top movers", "Gainers", "Losers"}},
		{"/add core bbca tlkm", []string{"core", "BBCA, TLKM"}},
		{"/remove core tlkm", []string{"core", "BBCA"}},
		{"/watch", []string{"Watchlists", "core (1)"}},
		{"/watch core", []string{"BBCA"}},
		{"/watch other", []string{"❌"}},
		{"/scan watchlist:core", []string{"watchlist:core", "BBCA"}},
		{"/remove nope x", []string{"❌"}},
		{"/add core", []string{"Usage: /add"}},
	}
	for _, tt := range tests {
		got := f.sched.HandleCommand(ctx, tt.cmd)
		for _, w := range tt.want {
			if !strings.Contains(got, w) {
				t.Errorf("%q reply missing %q:\n%s", tt.cmd, w, got)
			}
		}
	}
	if len(f.box.texts()) != 0 {
		t.Error("commands reply directly and must not push messages")
	}
}
