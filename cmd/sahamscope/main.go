package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/tidwall/pretty"
	"go.uber.org/zap"

	"SahamScope/internal/config"
	"SahamScope/internal/dashboard"
	"SahamScope/internal/export"
	"SahamScope/internal/logging"
	"SahamScope/internal/notifier"
	"SahamScope/internal/pipeline"
	"SahamScope/internal/scheduler"
	"SahamScope/internal/screener"
)

type flags struct {
	config   string
	scan     string
	tickers  string
	rng      string
	interval string
	sort     string
	order    string
	limit    int
	export   string
}

func (f flags) oneShot() bool {
	return f.scan != "" || f.tickers != "" || f.export != ""
}

func main() {
	// .env is optional; real environment variables win. It must load before
	// any flag default reads the environment.
	_ = godotenv.Load()

	var f flags
	flag.StringVar(&f.config, "config", defaultConfigPath(), "path to the YAML config")
	flag.StringVar(&f.scan, "scan", "", "scan a universe once and print JSON (e.g. LQ45, watchlist:core)")
	flag.StringVar(&f.tickers, "tickers", "", "extra tickers merged into the scan, comma separated")
	flag.StringVar(&f.rng, "range", "", "scan range (1mo, 3mo, 6mo, 1y, 2y, 5y, ytd, max)")
	flag.StringVar(&f.interval, "interval", "", "bar interval (1h, 1d, 1wk, 1mo)")
	flag.StringVar(&f.sort, "sort", "", "sort key")
	flag.StringVar(&f.order, "order", "desc", "sort order: asc or desc")
	flag.IntVar(&f.limit, "limit", 0, "max rows to print, 0 for all")
	flag.StringVar(&f.export, "export", "", "write the ranked rows to this Parquet file")
	flag.Parse()

	if err := run(f); err != nil {
		fmt.Fprintf(os.Stderr, "sahamscope: %v\n", err)
		os.Exit(1)
	}
}

// defaultConfigPath honours CONFIG_PATH, which may come from .env.
func defaultConfigPath() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "configs/config.yaml"
}

func run(f flags) error {
	cfg, err := config.Load(f.config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer log.Sync()

	app, err := build(cfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	if f.oneShot() {
		return scanOnce(app, cfg, f)
	}
	return serve(app, cfg, log)
}

func scanOnce(app *components, cfg *config.Config, f flags) error {
	req := pipeline.Request{
		Universe: f.scan,
		Tickers:  f.tickers,
		Window:   cfg.DefaultWindow(),
		Rank: screener.RankOptions{
			SortKey: cfg.Defaults.Sort,
			Desc:    f.order != "asc",
			Limit:   f.limit,
		},
		Trigger: pipeline.TriggerCLI,
		Record:  true,
	}
	if req.Universe == "" && f.tickers == "" {
		req.Universe = cfg.Defaults.Universe
	}
	if f.rng != "" {
		req.Window.Range = f.rng
	}
	if f.interval != "" {
		req.Window.Interval = f.interval
	}
	if f.sort != "" {
		req.Rank.SortKey = f.sort
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := app.pipeline.Scan(ctx, req)
	if err != nil {
		return err
	}
	if f.export != "" {
		if err := export.WriteParquetFile(f.export, res.Ranked); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		fmt.Fprintf(os.Stderr, "wrote %d rows to %s\n", len(res.Ranked), f.export)
		return nil
	}

	out, err := json.Marshal(struct {
		Universe string      `json:"universe"`
		Window   interface{} `json:"window"`
		RunID    string      `json:"run_id,omitempty"`
		Rows     interface{} `json:"rows"`
		Failures interface{} `json:"failures,omitempty"`
	}{res.Scan.Universe, res.Scan.Window, res.RunID, res.Ranked, res.Scan.Failures})
	if err != nil {
		return err
	}
	os.Stdout.Write(pretty.Pretty(out))
	return nil
}

func serve(app *components, cfg *config.Config, log *zap.Logger) error {
	log.Info("SahamScope starting",
		zap.String("provider", app.provider),
		zap.String("addr", cfg.HTTP.Addr),
		zap.Int("scheduled_scans", len(cfg.Schedule.Scans)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(ctx, app.pipeline, app.watchlists, app.telegram, scheduler.Options{
		Window:      cfg.DefaultWindow(),
		SortKey:     cfg.Defaults.Sort,
		ReportLimit: cfg.Telegram.ReportLimit,
		Location:    cfg.Schedule.Location(),
	}, log.Named("scheduler"))
	if err := sched.Register(cfg.Schedule.Scans); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if app.telegram.Enabled() {
		go app.telegram.StartPolling(ctx, notifier.CommandHandler(sched.HandleCommand))
		log.Info("telegram polling started")
	}

	srv := dashboard.New(app.pipeline, app.watchlists, dashboard.Defaults{
		Universe: cfg.Defaults.Universe,
		Window:   cfg.DefaultWindow(),
		SortKey:  cfg.Defaults.Sort,
		Limit:    cfg.Defaults.Limit,
	}, dashboard.Options{
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}, log.Named("dashboard"))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(cfg.HTTP.Addr) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case serveErr = <-errCh:
		log.Error("dashboard stopped", zap.Error(serveErr))
	}

	cancel()
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Warn("dashboard shutdown", zap.Error(err))
	}
	log.Info("SahamScope stopped")
	return serveErr
}
