package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Leganyst/platform-tracker/internal/calendar"
	"github.com/Leganyst/platform-tracker/internal/departure"
	"github.com/Leganyst/platform-tracker/internal/service"
)

const defaultRecentLimit = 50

type Server struct {
	app       *fiber.App
	history   *service.HistoryService
	retention *service.RetentionService
	log       *slog.Logger
}

func New(history *service.HistoryService, retention *service.RetentionService, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		history:   history,
		retention: retention,
		log:       log,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "platform-tracker",
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	s.app.Use(s.accessLog)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.health)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := s.app.Group("/api")
	api.Get("/snapshots", s.recentSnapshots)
	api.Get("/departures/current", s.currentDeparture)
	api.Get("/history", s.platformDistribution)
	api.Get("/history/all", s.allDistributions)
	api.Get("/history/events", s.recurringEvents)
	api.Post("/maintenance/sweep", s.sweep)
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Serve accepts connections on ln until Shutdown is called or ln is closed.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("http server listening", "addr", ln.Addr().String())
	if err := s.app.Listener(ln); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) health(c *fiber.Ctx) error {
	return jsonResponse(c, fiber.StatusOK, true, "ok", nil)
}

func (s *Server) recentSnapshots(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit", defaultRecentLimit)
	if err != nil {
		return err
	}
	rows, err := s.history.Recent(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return jsonResponse(c, fiber.StatusOK, true, "recent snapshots", rows)
}

func (s *Server) currentDeparture(c *fiber.Ctx) error {
	cur, err := s.history.Current(c.UserContext(), c.Query("scheduled_time"), c.Query("destination"), c.Query("date"))
	if err != nil {
		return err
	}
	if cur == nil {
		return jsonResponse(c, fiber.StatusNotFound, false, "no snapshot for this departure", nil)
	}
	return jsonResponse(c, fiber.StatusOK, true, "current departure", cur)
}

func (s *Server) platformDistribution(c *fiber.Ctx) error {
	counts, err := s.history.PlatformDistribution(c.UserContext(), c.Query("day"), c.Query("time"), c.Query("destination"))
	if err != nil {
		return err
	}
	return jsonResponse(c, fiber.StatusOK, true, "platform distribution", counts)
}

func (s *Server) allDistributions(c *fiber.Ctx) error {
	all, err := s.history.AllDistributions(c.UserContext())
	if err != nil {
		return err
	}
	return jsonResponse(c, fiber.StatusOK, true, "platform distributions", all)
}

func (s *Server) recurringEvents(c *fiber.Ctx) error {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return err
	}
	size, err := queryInt(c, "page_size", calendar.DefaultPageSize)
	if err != nil {
		return err
	}

	events, err := s.history.RecurringEvents(c.UserContext())
	if err != nil {
		return err
	}
	return jsonResponse(c, fiber.StatusOK, true, "recurring departures", calendar.Paginate(events, page, size))
}

func (s *Server) sweep(c *fiber.Ctx) error {
	removed, err := s.retention.Sweep(c.UserContext())
	if err != nil {
		return err
	}
	return jsonResponse(c, fiber.StatusOK, true, "retention sweep finished", fiber.Map{
		"removed": removed,
		"cutoff":  s.retention.Cutoff().Format(time.RFC3339),
	})
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return jsonResponse(c, fe.Code, false, fe.Message, nil)
	case errors.Is(err, departure.ErrValidation), errors.Is(err, departure.ErrInvalidInput):
		return jsonResponse(c, fiber.StatusBadRequest, false, err.Error(), nil)
	default:
		s.log.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return jsonResponse(c, fiber.StatusInternalServerError, false, "internal error", nil)
	}
}

func (s *Server) accessLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.log.Debug("http request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start),
	)
	return err
}

func jsonResponse(c *fiber.Ctx, statusCode int, status bool, message string, data any) error {
	return c.Status(statusCode).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"data":    data,
	})
}

func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, key+" must be a non-negative integer")
	}
	return v, nil
}
