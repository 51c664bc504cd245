// Package pipeline runs one scan end to end: resolve the universe, download
// and score every ticker, rank the rows and record the run.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"SahamScope/internal/collector"
	"SahamScope/internal/logging"
	"SahamScope/internal/model"
	"SahamScope/internal/recorder"
	"SahamScope/internal/screener"
	"SahamScope/internal/universe"
)

// Triggers recorded with each run.
const (
	TriggerHTTP     = "http"
	TriggerCLI      = "cli"
	TriggerCron     = "cron"
	TriggerTelegram = "telegram"
)

// Request describes one scan.
type Request struct {
	Universe string // registered universe, watchlist:<name>, or empty for Tickers only
	Tickers  string // free-text tickers merged after the universe
	Window   model.Window
	Rank     screener.RankOptions
	Trigger  string
	Record   bool
}

// Result is the outcome of Scan.
type Result struct {
	Scan   *collector.ScanResult `json:"scan"`
	Ranked []*model.MetricRow    `json:"ranked"`
	RunID  string                `json:"run_id,omitempty"`
}

// Pipeline wires the registry, watchlists, collector and recorder together.
type Pipeline struct {
	Registry   *universe.Registry
	Watchlists universe.Source
	Collector  *collector.Collector
	Recorder   recorder.Recorder

	log *zap.Logger
}

// New creates a Pipeline. watchlists and rec may be nil.
func New(reg *universe.Registry, watchlists universe.Source, col *collector.Collector, rec recorder.Recorder, log *zap.Logger) *Pipeline {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Pipeline{
		Registry:   reg,
		Watchlists: watchlists,
		Collector:  col,
		Recorder:   rec,
		log:        logging.OrNop(log),
	}
}

// Resolve returns the universe a request would scan.
func (p *Pipeline) Resolve(req Request) (universe.Universe, error) {
	return p.Registry.Resolve(req.Universe, req.Tickers, p.Watchlists)
}

// Scan runs the request. A recording failure is logged and does not fail
// the scan.
func (p *Pipeline) Scan(ctx context.Context, req Request) (*Result, error) {
	if err := req.Window.Validate(); err != nil {
		return nil, err
	}
	u, err := p.Resolve(req)
	if err != nil {
		return nil, err
	}
	if _, err := screener.Rank(nil, screener.RankOptions{SortKey: req.Rank.SortKey}); err != nil {
		return nil, err
	}

	res, err := p.Collector.Scan(ctx, u, req.Window)
	if err != nil {
		return nil, err
	}

	ranked, err := screener.Rank(res.Rows, req.Rank)
	if err != nil {
		return nil, err
	}
	out := &Result{Scan: res, Ranked: ranked}

	if req.Record {
		out.RunID, err = p.record(res, req)
		if err != nil {
			p.log.Error("record scan", zap.String("universe", u.Name), zap.Error(err))
		}
	}
	return out, nil
}

// record stores every scanned row in ranking order, ignoring the filter and
// limit of the request.
func (p *Pipeline) record(res *collector.ScanResult, req Request) (string, error) {
	all, err := screener.Rank(res.Rows, screener.RankOptions{SortKey: req.Rank.SortKey, Desc: req.Rank.Desc})
	if err != nil {
		return "", err
	}
	failed := make([]string, 0, len(res.Failures))
	for _, f := range res.Failures {
		failed = append(failed, f.Ticker)
	}
	id, err := p.Recorder.RecordScan(&recorder.ScanSnapshot{
		Universe:  res.Universe,
		Market:    res.Market,
		Window:    res.Window,
		StartedAt: res.StartedAt,
		Duration:  res.Duration,
		Rows:      all,
		Failed:    failed,
		Trigger:   req.Trigger,
	})
	if err != nil {
		return "", fmt.Errorf("record %s: %w", res.Universe, err)
	}
	return id, nil
}
