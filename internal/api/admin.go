package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"weekly-intake/internal/intake"
	"weekly-intake/internal/questions"

	"github.com/go-chi/chi/v5"
)

// registerAdmin mounts the admin panel routes. Callers are pre-authorized.
func (h *Handler) registerAdmin(r chi.Router) {
	r.Get("/dashboard", h.dashboardHandler())
	r.Get("/applications", h.applicationsHandler())
	r.Get("/stats", h.statsHandler())
	r.Get("/questions/current", h.currentQuestionsHandler())
	r.Post("/questions", h.createQuestionsHandler())
	r.Get("/search", h.searchHandler())
}

func (h *Handler) dashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := h.admin.Dashboard(r.Context())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(h.logger, w, http.StatusOK, d)
	}
}

func (h *Handler) applicationsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		year, err := queryInt(r, "year")
		if err != nil {
			h.fail(w, r, err)
			return
		}
		weekNumber, err := queryInt(r, "week")
		if err != nil {
			h.fail(w, r, err)
			return
		}

		var weekFilter *int
		if weekNumber > 0 {
			weekFilter = &weekNumber
		}
		apps, err := h.admin.ListApplications(r.Context(), weekFilter, year)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(h.logger, w, http.StatusOK, map[string]interface{}{
			"applications": apps,
			"count":        len(apps),
		})
	}
}

func (h *Handler) statsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		year, err := queryInt(r, "year")
		if err != nil {
			h.fail(w, r, err)
			return
		}
		st, err := h.admin.Stats(r.Context(), year)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(h.logger, w, http.StatusOK, st)
	}
}

func (h *Handler) currentQuestionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(h.logger, w, http.StatusOK, h.questions.GetActive(r.Context()))
	}
}

func (h *Handler) createQuestionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in questions.CreateInput
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&in); err != nil {
			h.fail(w, r, fmt.Errorf("%w: invalid JSON body: %v", intake.ErrValidation, err))
			return
		}
		set, err := h.questions.Create(r.Context(), in)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(h.logger, w, http.StatusCreated, set)
	}
}

func (h *Handler) searchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		year, err := queryInt(r, "year")
		if err != nil {
			h.fail(w, r, err)
			return
		}
		hits, err := h.admin.Search(r.Context(), r.URL.Query().Get("q"), year)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(h.logger, w, http.StatusOK, map[string]interface{}{
			"applications": hits,
			"count":        len(hits),
		})
	}
}

// queryInt reads an optional non-negative integer parameter; absent is 0.
func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", intake.ErrValidation, name)
	}
	return v, nil
}
