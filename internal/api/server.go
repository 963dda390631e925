// Package api exposes the intake form and the admin panel over JSON HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"weekly-intake/internal/admin"
	apperrors "weekly-intake/internal/common/errors"
	"weekly-intake/internal/common/logger"
	"weekly-intake/internal/intake"
	"weekly-intake/internal/questions"
	"weekly-intake/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultMaxUploadBytes = 5 * 1024 * 1024

type QuestionService interface {
	GetActive(ctx context.Context) questions.Set
	Create(ctx context.Context, in questions.CreateInput) (*questions.Set, error)
}

type AdminService interface {
	ListApplications(ctx context.Context, weekNumber *int, year int) ([]store.Application, error)
	Stats(ctx context.Context, year int) (*admin.Stats, error)
	Dashboard(ctx context.Context) (*admin.Dashboard, error)
	Search(ctx context.Context, query string, year int) ([]store.Application, error)
}

// Check is a named readiness probe.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type Config struct {
	Logger    logger.Logger
	Window    intake.WindowChecker
	Questions QuestionService
	Pipeline  *intake.Pipeline
	Rules     intake.Rules
	Admin     AdminService
	Checks    []Check
}

type Handler struct {
	logger    logger.Logger
	window    intake.WindowChecker
	questions QuestionService
	pipeline  *intake.Pipeline
	rules     intake.Rules
	admin     AdminService
	checks    []Check
}

func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}
	return &Handler{
		logger:    cfg.Logger.WithFields(map[string]interface{}{"component": "api"}),
		window:    cfg.Window,
		questions: cfg.Questions,
		pipeline:  cfg.Pipeline,
		rules:     cfg.Rules,
		admin:     cfg.Admin,
		checks:    cfg.Checks,
	}
}

// Router builds the full route tree.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.healthHandler())
	r.Get("/ready", h.readyHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		h.registerPublic(r)
		r.Route("/admin", h.registerAdmin)
	})
	return r
}

func (h *Handler) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(h.logger, w, http.StatusOK, map[string]string{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func (h *Handler) readyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := map[string]string{}
		for _, c := range h.checks {
			if err := c.Ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[c.Name] = err.Error()
				continue
			}
			results[c.Name] = "ok"
		}
		writeJSON(h.logger, w, status, map[string]interface{}{
			"ready":  status == http.StatusOK,
			"checks": results,
		})
	}
}

// fail writes err, attaching the current deadline to window-closed errors.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, intake.ErrWindowClosed) && h.window != nil {
		status, _ := classify(err)
		snap := h.window.Current(r.Context())
		writeStandardError(h.logger, w, status, apperrors.NewWindowClosedError(snap.Questions.Deadline), err)
		return
	}
	writeError(h.logger, w, err)
}
