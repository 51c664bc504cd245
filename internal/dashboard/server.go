// Package dashboard serves the screener over HTTP: a JSON API and an
// embedded single-page dashboard.
package dashboard

import (
	"context"
	"embed"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"go.uber.org/zap"

	"SahamScope/internal/collector"
	"SahamScope/internal/logging"
	"SahamScope/internal/model"
	"SahamScope/internal/pipeline"
	"SahamScope/internal/recorder"
	"SahamScope/internal/screener"
	"SahamScope/internal/universe"
	"SahamScope/internal/watchlist"
)

//go:embed web/index.html
var webFS embed.FS

// errBadRequest marks malformed query parameters.
var errBadRequest = errors.New("bad request")

// Defaults are applied to requests that leave parameters out.
type Defaults struct {
	Universe string
	Window   model.Window
	SortKey  string
	Limit    int
}

// Options configures the HTTP server.
type Options struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the dashboard HTTP server.
type Server struct {
	Pipeline   *pipeline.Pipeline
	Watchlists *watchlist.Store
	Defaults   Defaults

	app *fiber.App
	log *zap.Logger
}

// New builds the fiber app and registers every route. wl may be nil, in
// which case watchlist routes answer 404.
func New(p *pipeline.Pipeline, wl *watchlist.Store, d Defaults, opts Options, log *zap.Logger) *Server {
	s := &Server{
		Pipeline:   p,
		Watchlists: wl,
		Defaults:   d,
		log:        logging.OrNop(log),
	}
	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		Immutable:             true, // params and queries outlive the handler in the watchlist store
		ReadTimeout:           opts.ReadTimeout,
		WriteTimeout:          opts.WriteTimeout,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))
	s.routes()
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.log.Info("dashboard listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) routes() {
	s.app.Get("/", s.handleIndex)
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := s.app.Group("/api")
	api.Get("/universes", s.handleUniverses)
	api.Get("/scan", s.handleScan)
	api.Get("/movers", s.handleMovers)
	api.Get("/history/:ticker", s.handleHistory)
	api.Get("/fundamentals/:ticker", s.handleFundamentals)
	api.Get("/export", s.handleExport)

	api.Get("/watchlists", s.handleWatchlists)
	api.Get("/watchlists/:name", s.handleWatchlist)
	api.Put("/watchlists/:name", s.handleReplaceWatchlist)
	api.Post("/watchlists/:name/tickers", s.handleAddTickers)
	api.Delete("/watchlists/:name/tickers/:ticker", s.handleRemoveTicker)
	api.Delete("/watchlists/:name", s.handleDeleteWatchlist)

	api.Get("/runs", s.handleRuns)
	api.Get("/runs/:id", s.handleRun)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, errBadRequest),
		errors.Is(err, model.ErrInvalidWindow),
		errors.Is(err, screener.ErrUnknownSortKey),
		errors.Is(err, universe.ErrEmptyUniverse),
		errors.Is(err, watchlist.ErrInvalidName):
		return fiber.StatusBadRequest
	case errors.Is(err, universe.ErrUnknownUniverse),
		errors.Is(err, watchlist.ErrNotFound),
		errors.Is(err, recorder.ErrRunNotFound),
		errors.Is(err, collector.ErrNotFound),
		errors.Is(err, collector.ErrNoData):
		return fiber.StatusNotFound
	case errors.Is(err, collector.ErrUnsupported):
		return fiber.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, collector.ErrTransient):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", c.Path()), zap.Int("status", code), zap.Error(err))
	} else {
		s.log.Debug("request rejected", zap.String("path", c.Path()), zap.Int("status", code), zap.Error(err))
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	page, err := webFS.ReadFile("web/index.html")
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(page)
}
