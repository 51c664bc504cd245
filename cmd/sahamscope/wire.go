package main

import (
	"fmt"

	"go.uber.org/zap"

	"SahamScope/internal/collector"
	"SahamScope/internal/config"
	"SahamScope/internal/notifier"
	"SahamScope/internal/pipeline"
	"SahamScope/internal/recorder"
	"SahamScope/internal/screener"
	"SahamScope/internal/universe"
	"SahamScope/internal/watchlist"
)

// components are the long-lived objects shared by the CLI and daemon modes.
type components struct {
	provider   string
	pipeline   *pipeline.Pipeline
	watchlists *watchlist.Store
	telegram   *notifier.TelegramNotifier
	recorder   recorder.Recorder
}

func (c *components) close() {
	if c.recorder != nil {
		c.recorder.Close()
	}
}

func newFetcher(cfg *config.Config) (collector.Fetcher, error) {
	switch cfg.Provider {
	case "yahoo":
		f := collector.NewYahooFetcher(cfg.Proxy, cfg.Fetch.Timeout)
		if cfg.Yahoo.BaseURL != "" {
			f.BaseURL = cfg.Yahoo.BaseURL
		}
		return f, nil
	case "polygon":
		return collector.NewPolygonFetcher(cfg.Polygon.APIKey), nil
	case "alpaca":
		return collector.NewAlpacaFetcher(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL), nil
	case "mock":
		return &collector.MockFetcher{Price: 1000}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func build(cfg *config.Config, log *zap.Logger) (*components, error) {
	raw, err := newFetcher(cfg)
	if err != nil {
		return nil, err
	}
	fetcher := collector.NewCachedFetcher(raw, cfg.Fetch.CacheTTL)

	d := collector.NewDownloader(fetcher, cfg.Fetch.ChunkSize, cfg.Fetch.Workers, cfg.Fetch.Retries,
		cfg.Fetch.Backoff, log.Named("downloader"))
	col := collector.NewCollector(d, screener.Evaluate, log.Named("collector"))
	col.IncludeFundamentals = cfg.Fetch.Fundamentals

	wl, err := watchlist.Open(cfg.Watchlist.File, cfg.Watchlist.Market, log.Named("watchlist"))
	if err != nil {
		return nil, fmt.Errorf("open watchlists: %w", err)
	}

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log.Named("recorder"))
		if err != nil {
			log.Warn("init sqlite recorder failed, using noop", zap.Error(err))
		} else {
			rec = sr
		}
	}

	return &components{
		provider:   raw.Name(),
		pipeline:   pipeline.New(universe.NewRegistry(cfg.Universes), wl, col, rec, log.Named("pipeline")),
		watchlists: wl,
		telegram:   notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log.Named("telegram")),
		recorder:   rec,
	}, nil
}
