// Package scheduler runs configured scans on cron schedules and answers
// Telegram commands.
package scheduler

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"SahamScope/internal/config"
	"SahamScope/internal/logging"
	"SahamScope/internal/model"
	"SahamScope/internal/notifier"
	"SahamScope/internal/pipeline"
	"SahamScope/internal/screener"
	"SahamScope/internal/watchlist"
)

// sendRetries is the number of Telegram delivery attempts per report.
const sendRetries = 3

// moversCount is the size of each list in a /top reply.
const moversCount = 5

// Options holds the defaults applied to command-driven scans.
type Options struct {
	Window      model.Window
	SortKey     string
	ReportLimit int
	Location    *time.Location // cron timezone, local time when nil
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron       *cron.Cron
	Pipeline   *pipeline.Pipeline
	Watchlists *watchlist.Store
	Notifier   *notifier.TelegramNotifier
	Options    Options

	ctx context.Context
	log *zap.Logger
}

// New creates a Scheduler. Jobs inherit ctx. wl and tn may be nil.
func New(ctx context.Context, p *pipeline.Pipeline, wl *watchlist.Store, tn *notifier.TelegramNotifier, opts Options, log *zap.Logger) *Scheduler {
	if opts.ReportLimit <= 0 {
		opts.ReportLimit = 10
	}
	if opts.SortKey == "" {
		opts.SortKey = "score"
	}
	cronOpts := []cron.Option{cron.WithSeconds()}
	if opts.Location != nil {
		cronOpts = append(cronOpts, cron.WithLocation(opts.Location))
	}
	return &Scheduler{
		Cron:       cron.New(cronOpts...),
		Pipeline:   p,
		Watchlists: wl,
		Notifier:   tn,
		Options:    opts,
		ctx:        ctx,
		log:        logging.OrNop(log),
	}
}

// Register adds one cron job per scheduled scan.
func (s *Scheduler) Register(scans []config.ScheduledScan) error {
	for _, sc := range scans {
		sc := sc
		if _, err := s.Cron.AddFunc(sc.Cron, func() { s.runJob(sc) }); err != nil {
			return fmt.Errorf("register scan %q: %w", sc.Name, err)
		}
		s.log.Info("scan scheduled", zap.String("name", sc.Name), zap.String("cron", sc.Cron),
			zap.String("universe", sc.Universe), zap.String("window", sc.Window().String()))
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.Cron.Entries())))
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) runJob(sc config.ScheduledScan) {
	report, err := s.RunScan(s.ctx, sc)
	if err != nil {
		s.log.Error("scheduled scan failed", zap.String("name", sc.Name), zap.Error(err))
		if sc.Notify {
			s.trySend(fmt.Sprintf("❌ Scan <b>%s</b> failed: %s", html.EscapeString(sc.Name), html.EscapeString(err.Error())))
		}
		return
	}
	if sc.Notify {
		s.trySend(report)
	}
}

// RunScan executes one scheduled scan, records it and returns the report.
func (s *Scheduler) RunScan(ctx context.Context, sc config.ScheduledScan) (string, error) {
	s.log.Info("running scheduled scan", zap.String("name", sc.Name))
	limit := sc.Limit
	if limit <= 0 {
		limit = s.Options.ReportLimit
	}
	sortKey := sc.Sort
	if sortKey == "" {
		sortKey = s.Options.SortKey
	}
	res, err := s.Pipeline.Scan(ctx, pipeline.Request{
		Universe: sc.Universe,
		Window:   sc.Window(),
		Rank:     screener.RankOptions{SortKey: sortKey, Desc: sortKey != "ticker", Limit: limit},
		Trigger:  pipeline.TriggerCron,
		Record:   true,
	})
	if err != nil {
		return "", err
	}
	return report(res), nil
}

func report(res *pipeline.Result) string {
	text := notifier.FormatScanReport(res.Scan, res.Ranked)
	if f := notifier.FormatFailures(res.Scan.Failures); f != "" {
		text += "\n" + f
	}
	return text
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	cmd := strings.ToLower(fields[0])
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i] // "/scan@SahamBot"
	}
	args := fields[1:]

	switch cmd {
	case "/scan":
		if len(args) == 0 {
			return "Usage: /scan &lt;universe&gt; [range]"
		}
		w := s.Options.Window
		if len(args) > 1 {
			w.Range = args[1]
		}
		res, err := s.Pipeline.Scan(ctx, pipeline.Request{
			Universe: args[0],
			Window:   w,
			Rank:     screener.RankOptions{SortKey: s.Options.SortKey, Desc: s.Options.SortKey != "ticker", Limit: s.Options.ReportLimit},
			Trigger:  pipeline.TriggerTelegram,
			Record:   true,
		})
		if err != nil {
			return errorReply(err)
		}
		return report(res)

	case "/top":
		if len(args) == 0 {
			return "Usage: /top &lt;universe&gt;"
		}
		res, err := s.Pipeline.Scan(ctx, pipeline.Request{
			Universe: args[0],
			Window:   s.Options.Window,
			Trigger:  pipeline.TriggerTelegram,
		})
		if err != nil {
			return errorReply(err)
		}
		gainers, losers := screener.TopMovers(res.Scan.Rows, moversCount)
		return notifier.FormatTopMovers(res.Scan.Universe, gainers, losers)

	case "/watch":
		if s.Watchlists == nil {
			return "Watchlists are not configured."
		}
		if len(args) == 0 {
			return notifier.FormatWatchlist("", s.Watchlists.All())
		}
		tickers, err := s.Watchlists.Get(args[0])
		if err != nil {
			return errorReply(err)
		}
		return notifier.FormatWatchlist(args[0], map[string][]string{args[0]: tickers})

	case "/add", "/remove":
		if s.Watchlists == nil {
			return "Watchlists are not configured."
		}
		if len(args) < 2 {
			return fmt.Sprintf("Usage: %s &lt;name&gt; &lt;tickers&gt;", cmd)
		}
		var (
			tickers []string
			err     error
		)
		if cmd == "/add" {
			tickers, err = s.Watchlists.Add(args[0], args[1:]...)
		} else {
			tickers, err = s.Watchlists.Remove(args[0], args[1:]...)
		}
		if err != nil {
			return errorReply(err)
		}
		return notifier.FormatWatchlist(args[0], map[string][]string{args[0]: tickers})

	default:
		return helpText
	}
}

const helpText = `Available commands:
• /scan &lt;universe&gt; [range]
• /top &lt;universe&gt;
• /watch [name]
• /add &lt;name&gt; &lt;tickers&gt;
• /remove &lt;name&gt; &lt;tickers&gt;
Universes: LQ45, IDX30, IDXBANKS, US_MEGACAP or watchlist:&lt;name&gt;`

func errorReply(err error) string {
	return "❌ " + html.EscapeString(err.Error())
}

func (s *Scheduler) trySend(text string) {
	if !s.Notifier.Enabled() {
		s.log.Debug("telegram disabled, report not sent")
		return
	}
	if err := s.Notifier.SendWithRetry(s.ctx, text, sendRetries); err != nil {
		s.log.Error("send notification", zap.Error(err))
	}
}
