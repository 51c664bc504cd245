package dashboard

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"SahamScope/internal/export"
	"SahamScope/internal/pipeline"
	"SahamScope/internal/screener"
	"SahamScope/internal/universe"
)

const (
	defaultMovers = 10
	defaultRuns   = 20
)

func (s *Server) handleUniverses(c *fiber.Ctx) error {
	var names []string
	if s.Watchlists != nil {
		names = s.Watchlists.Names()
	}
	return c.JSON(fiber.Map{
		"universes":  s.Pipeline.Registry.All(),
		"watchlists": names,
		"sort_keys":  screener.SortKeys(),
		"defaults": fiber.Map{
			"universe": s.Defaults.Universe,
			"range":    s.Defaults.Window.Range,
			"interval": s.Defaults.Window.Interval,
			"sort":     s.Defaults.SortKey,
		},
	})
}

// scanRequest builds a pipeline request from the query string.
func (s *Server) scanRequest(c *fiber.Ctx) (pipeline.Request, error) {
	req := pipeline.Request{
		Universe: strings.TrimSpace(c.Query("universe")),
		Tickers:  c.Query("tickers"),
		Window:   s.Defaults.Window,
		Trigger:  pipeline.TriggerHTTP,
	}
	if req.Universe == "" && strings.TrimSpace(req.Tickers) == "" {
		req.Universe = s.Defaults.Universe
	}
	if v := c.Query("range"); v != "" {
		req.Window.Range = v
	}
	if v := c.Query("interval"); v != "" {
		req.Window.Interval = v
	}

	opts := screener.RankOptions{SortKey: c.Query("sort", s.Defaults.SortKey), Limit: s.Defaults.Limit}
	switch strings.ToLower(c.Query("order")) {
	case "":
		opts.Desc = opts.SortKey != "ticker"
	case "desc":
		opts.Desc = true
	case "asc":
	default:
		return req, fmt.Errorf("%w: order must be asc or desc", errBadRequest)
	}

	var err error
	if opts.Limit, err = queryInt(c, "limit", opts.Limit); err != nil {
		return req, err
	}
	f := &opts.Filter
	for _, p := range []struct {
		key string
		dst *float64
	}{
		{"min_price", &f.MinPrice},
		{"max_price", &f.MaxPrice},
		{"min_volume", &f.MinVolume},
		{"min_value", &f.MinValue},
	} {
		if *p.dst, err = queryFloat(c, p.key, 0); err != nil {
			return req, err
		}
	}
	if v := c.Query("min_score"); v != "" {
		score, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, fmt.Errorf("%w: min_score %q", errBadRequest, v)
		}
		f.MinScore = &score
	}
	if v := c.Query("tier"); v != "" {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				f.Tiers = append(f.Tiers, t)
			}
		}
	}
	req.Rank = opts

	if v := c.Query("record"); v != "" {
		if req.Record, err = strconv.ParseBool(v); err != nil {
			return req, fmt.Errorf("%w: record %q", errBadRequest, v)
		}
	}
	return req, nil
}

func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s %q", errBadRequest, key, v)
	}
	return n, nil
}

func queryFloat(c *fiber.Ctx, key string, def float64) (float64, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", errBadRequest, key, v)
	}
	return n, nil
}

func (s *Server) handleScan(c *fiber.Ctx) error {
	req, err := s.scanRequest(c)
	if err != nil {
		return err
	}
	res, err := s.Pipeline.Scan(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"universe":    res.Scan.Universe,
		"market":      res.Scan.Market,
		"window":      res.Scan.Window,
		"started_at":  res.Scan.StartedAt,
		"duration_ms": res.Scan.Duration.Milliseconds(),
		"total":       len(res.Scan.Rows),
		"count":       len(res.Ranked),
		"rows":        res.Ranked,
		"failures":    res.Scan.Failures,
		"run_id":      res.RunID,
	})
}

func (s *Server) handleMovers(c *fiber.Ctx) error {
	req, err := s.scanRequest(c)
	if err != nil {
		return err
	}
	n, err := queryInt(c, "n", defaultMovers)
	if err != nil {
		return err
	}
	req.Record = false
	res, err := s.Pipeline.Scan(c.UserContext(), req)
	if err != nil {
		return err
	}
	gainers, losers := screener.TopMovers(res.Scan.Rows, n)
	return c.JSON(fiber.Map{
		"universe": res.Scan.Universe,
		"window":   res.Scan.Window,
		"gainers":  gainers,
		"losers":   losers,
		"failures": res.Scan.Failures,
	})
}

// tickerParam normalizes :ticker. With no market query the ticker is only
// upper-cased, so rows from any market can link here unchanged.
func tickerParam(c *fiber.Ctx) (string, error) {
	t := universe.Normalize(strings.ToUpper(c.Query("market")), c.Params("ticker"))
	if t == "" {
		return "", fmt.Errorf("%w: ticker is required", errBadRequest)
	}
	return t, nil
}

func (s *Server) handleHistory(c *fiber.Ctx) error {
	ticker, err := tickerParam(c)
	if err != nil {
		return err
	}
	w := s.Defaults.Window
	w.Range = c.Query("range", w.Range)
	w.Interval = c.Query("interval", w.Interval)
	h, err := s.Pipeline.Collector.History(c.UserContext(), ticker, w)
	if err != nil {
		return err
	}
	return c.JSON(h)
}

func (s *Server) handleFundamentals(c *fiber.Ctx) error {
	ticker, err := tickerParam(c)
	if err != nil {
		return err
	}
	f, err := s.Pipeline.Collector.Fundamentals(c.UserContext(), ticker)
	if err != nil {
		return err
	}
	return c.JSON(f)
}

func (s *Server) handleExport(c *fiber.Ctx) error {
	req, err := s.scanRequest(c)
	if err != nil {
		return err
	}
	res, err := s.Pipeline.Scan(c.UserContext(), req)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := export.WriteParquet(&buf, res.Ranked); err != nil {
		return err
	}
	name := strings.NewReplacer(":", "_", "/", "_", " ", "_").Replace(res.Scan.Universe)
	c.Attachment(fmt.Sprintf("%s-%s.parquet", name, res.Scan.StartedAt.Format("20060102-150405")))
	c.Set(fiber.HeaderContentType, "application/vnd.apache.parquet")
	return c.Send(buf.Bytes())
}

var errNoWatchlists = fiber.NewError(fiber.StatusNotFound, "watchlists are not configured")

type tickersBody struct {
	Tickers []string `json:"tickers"`
	Text    string   `json:"text"` // free text, e.g. "bbca, bbri"
}

func (b tickersBody) all() []string {
	if strings.TrimSpace(b.Text) == "" {
		return b.Tickers
	}
	return append(append([]string(nil), b.Tickers...), b.Text)
}

func (s *Server) handleWatchlists(c *fiber.Ctx) error {
	if s.Watchlists == nil {
		return errNoWatchlists
	}
	return c.JSON(fiber.Map{"watchlists": s.Watchlists.All()})
}

func (s *Server) handleWatchlist(c *fiber.Ctx) error {
	if s.Watchlists == nil {
		return errNoWatchlists
	}
	tickers, err := s.Watchlists.Get(c.Params("name"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"name": c.Params("name"), "tickers": tickers})
}

func (s *Server) handleReplaceWatchlist(c *fiber.Ctx) error {
	if s.Watchlists == nil {
		return errNoWatchlists
	}
	var body tickersBody
	if err := c.BodyParser(&body); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	tickers, err := s.Watchlists.Replace(c.Params("name"), body.all())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"name": c.Params("name"), "tickers": tickers})
}

func (s *Server) handleAddTickers(c *fiber.Ctx) error {
	if s.Watchlists == nil {
		return errNoWatchlists
	}
	var body tickersBody
	if err := c.BodyParser(&body); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if len(body.all()) == 0 {
		return fmt.Errorf("%w: no tickers given", errBadRequest)
	}
	tickers, err := s.Watchlists.Add(c.Params("name"), body.all()...)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"name": c.Params("name"), "tickers": tickers})
}

func (s *Server) handleRemoveTicker(c *fiber.Ctx) error {
	if s.Watchlists == nil {
		return errNoWatchlists
	}
	tickers, err := s.Watchlists.Remove(c.Params("name"), c.Params("ticker"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"name": c.Params("name"), "tickers": tickers})
}

func (s *Server) handleDeleteWatchlist(c *fiber.Ctx) error {
	if s.Watchlists == nil {
		return errNoWatchlists
	}
	if err := s.Watchlists.Delete(c.Params("name")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleRuns(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit", defaultRuns)
	if err != nil {
		return err
	}
	runs, err := s.Pipeline.Recorder.RecentRuns(limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"runs": runs})
}

func (s *Server) handleRun(c *fiber.Ctx) error {
	rows, err := s.Pipeline.Recorder.RunRows(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"id": c.Params("id"), "rows": rows})
}
