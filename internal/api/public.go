package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "weekly-intake/internal/common/errors"
	"weekly-intake/internal/intake"
	"weekly-intake/internal/photos"
	"weekly-intake/internal/store"
	"weekly-intake/internal/window"

	"github.com/go-chi/chi/v5"
)

// multipart bodies carry the photo plus text fields
const formOverheadBytes = 1 << 20

func (h *Handler) registerPublic(r chi.Router) {
	r.Get("/questions", h.questionsHandler())
	r.Get("/window", h.windowHandler())
	r.Post("/steps/{step}", h.stepHandler())
	r.Post("/applications", h.submitHandler())
}

type questionsResponse struct {
	Questions    []string     `json:"questions"`
	WeekNumber   int          `json:"weekNumber"`
	Year         int          `json:"year"`
	IsDefault    bool         `json:"isDefault"`
	State        window.State `json:"state"`
	Deadline     time.Time    `json:"deadline"`
	TimeLeft     string       `json:"timeLeft"`
	HasQuestion3 bool         `json:"hasQuestion3"`
}

func (h *Handler) questionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := h.window.Current(r.Context())
		set := snap.Questions

		qs := []string{set.Question1, set.Question2}
		if set.HasQuestion3() {
			qs = append(qs, set.Question3)
		}
		writeJSON(h.logger, w, http.StatusOK, questionsResponse{
			Questions:    qs,
			WeekNumber:   set.WeekNumber,
			Year:         set.Year,
			IsDefault:    set.IsDefault,
			State:        snap.State,
			Deadline:     set.Deadline,
			TimeLeft:     snap.TimeLeft,
			HasQuestion3: set.HasQuestion3(),
		})
	}
}

func (h *Handler) windowHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(h.logger, w, http.StatusOK, h.window.Current(r.Context()))
	}
}

func (h *Handler) stepHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(chi.URLParam(r, "step"))
		step := intake.Step(n)
		if err != nil || !step.Valid() {
			h.fail(w, r, fmt.Errorf("%w: unknown step %q", intake.ErrValidation, chi.URLParam(r, "step")))
			return
		}

		a, err := h.readAttempt(w, r)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		session := intake.NewSession(r.Context(), h.window, h.pipeline, h.rules)
		res, err := session.Advance(r.Context(), step, a)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		status := http.StatusOK
		switch {
		case res.Closed:
			status = http.StatusLocked
		case len(res.FieldErrors) > 0:
			status = http.StatusUnprocessableEntity
		}
		writeJSON(h.logger, w, status, res)
	}
}

type submitResponse struct {
	Application   store.Application        `json:"application"`
	PhotoUploaded bool                     `json:"photoUploaded"`
	Warning       *apperrors.StandardError `json:"warning,omitempty"`
}

func (h *Handler) submitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := h.readAttempt(w, r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		a.ClientIPHint = publicIP(r.RemoteAddr)

		session := intake.NewSession(r.Context(), h.window, h.pipeline, h.rules)
		res, err := session.Submit(r.Context(), a)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		resp := submitResponse{
			Application:   res.Record,
			PhotoUploaded: res.Record.PhotoURL != nil,
		}
		if res.Degraded() {
			resp.Warning = apperrors.NewPhotoUploadFailedError(res.PhotoErr)
		}
		writeJSON(h.logger, w, http.StatusCreated, resp)
	}
}

type jsonAttempt struct {
	FullName string            `json:"fullName"`
	Email    string            `json:"email"`
	Answers  map[string]string `json:"answers"`
	Photo    *struct {
		FileName    string `json:"fileName"`
		ContentType string `json:"contentType"`
		Data        []byte `json:"data"` // base64
	} `json:"photo"`
}

// readAttempt accepts multipart/form-data (text fields plus a "photo" file)
// or a JSON body with a base64 photo.
func (h *Handler) readAttempt(w http.ResponseWriter, r *http.Request) (intake.Attempt, error) {
	limit := h.rules.MaxPhotoBytes
	if limit <= 0 {
		limit = defaultMaxUploadBytes
	}
	// oversized photos still get the friendly size message up to twice the limit
	r.Body = http.MaxBytesReader(w, r.Body, 2*limit+formOverheadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return readMultipart(r)
	}

	var body jsonAttempt
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return intake.Attempt{}, err
		}
		return intake.Attempt{}, fmt.Errorf("%w: invalid JSON body: %v", intake.ErrValidation, err)
	}

	a := intake.Attempt{
		FullName: body.FullName,
		Email:    body.Email,
		Answers:  store.Answers(body.Answers),
	}
	if body.Photo != nil && len(body.Photo.Data) > 0 {
		a.Photo = &photos.Photo{
			Data:        body.Photo.Data,
			FileName:    body.Photo.FileName,
			ContentType: body.Photo.ContentType,
		}
	}
	if a.Answers == nil {
		a.Answers = store.Answers{}
	}
	return a, nil
}

func readMultipart(r *http.Request) (intake.Attempt, error) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return intake.Attempt{}, err
		}
		return intake.Attempt{}, fmt.Errorf("%w: invalid form: %v", intake.ErrValidation, err)
	}

	a := intake.Attempt{
		FullName: r.FormValue("fullName"),
		Email:    r.FormValue("email"),
		Answers:  store.Answers{},
	}
	for key, values := range r.MultipartForm.Value {
		if key == "fullName" || key == "email" || len(values) == 0 {
			continue
		}
		a.Answers[key] = values[0]
	}

	file, header, err := r.FormFile("photo")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return a, nil
	case err != nil:
		return intake.Attempt{}, fmt.Errorf("%w: reading photo: %v", intake.ErrValidation, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return intake.Attempt{}, fmt.Errorf("%w: reading photo: %v", intake.ErrValidation, err)
	}
	if len(data) > 0 {
		a.Photo = &photos.Photo{
			Data:        data,
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
		}
	}
	return a, nil
}

// publicIP returns the host of addr when it is a public address. Private
// and loopback addresses are dropped so the IP lookup service is asked.
func publicIP(addr string) string {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	ip := net.ParseIP(strings.TrimSpace(host))
	if ip == nil || !ip.IsGlobalUnicast() || ip.IsPrivate() {
		return ""
	}
	return ip.String()
}
