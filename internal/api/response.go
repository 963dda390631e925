package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"weekly-intake/internal/admin"
	apperrors "weekly-intake/internal/common/errors"
	"weekly-intake/internal/common/logger"
	"weekly-intake/internal/intake"
	"weekly-intake/internal/store"
)

type errorResponse struct {
	Error *apperrors.StandardError `json:"error"`
}

func writeJSON(log logger.Logger, w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error("encoding response failed", map[string]interface{}{"error": err})
	}
}

func writeError(log logger.Logger, w http.ResponseWriter, err error) {
	status, stdErr := classify(err)
	writeStandardError(log, w, status, stdErr, err)
}

func writeStandardError(log logger.Logger, w http.ResponseWriter, status int, stdErr *apperrors.StandardError, err error) {
	if status >= http.StatusInternalServerError {
		log.Error("request failed", map[string]interface{}{
			"status": status,
			"code":   string(stdErr.Code),
			"error":  err.Error(),
		})
	}
	writeJSON(log, w, status, errorResponse{Error: stdErr})
}

// classify maps err to an HTTP status and the structured body the form
// renders. Only the persistence kind decides between 502 and 503.
func classify(err error) (int, *apperrors.StandardError) {
	var (
		validationErr *intake.ValidationError
		duplicateErr  *intake.DuplicateError
		storeErr      *store.Error
		stdErr        *apperrors.StandardError
		tooLarge      *http.MaxBytesError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, apperrors.NewValidationError(err.Error(), validationErr.Fields)

	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, apperrors.NewValidationError(err.Error(), map[string]string{
			"photo": "File size must be less than the upload limit",
		})

	case errors.Is(err, intake.ErrValidation):
		return http.StatusBadRequest, apperrors.NewValidationError(err.Error(), nil)

	case errors.Is(err, intake.ErrWindowClosed):
		return http.StatusLocked, apperrors.NewWindowClosedError(time.Time{})

	case errors.As(err, &duplicateErr):
		return http.StatusConflict, apperrors.NewDuplicateSubmissionError(duplicateErr.SubmittedAt)

	case errors.Is(err, intake.ErrSessionClosed):
		return http.StatusConflict, &apperrors.StandardError{
			Code:      apperrors.ErrCodeValidationFailed,
			Message:   "This form has already been submitted",
			Timestamp: time.Now().UTC(),
		}

	case errors.Is(err, admin.ErrSearchDisabled):
		return http.StatusServiceUnavailable, &apperrors.StandardError{
			Code:      apperrors.ErrCodeSearchQueryFailed,
			Message:   "Search is not configured",
			Timestamp: time.Now().UTC(),
		}

	case errors.As(err, &storeErr):
		std := apperrors.NewPersistenceError(storeErr.Kind, err)
		return persistenceStatus(storeErr.Kind), std

	case errors.As(err, &stdErr):
		return statusForCode(stdErr), stdErr
	}

	return http.StatusInternalServerError, apperrors.NewUnknownError(err)
}

func persistenceStatus(kind apperrors.PersistenceKind) int {
	switch kind {
	case apperrors.KindConnection, apperrors.KindNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func statusForCode(e *apperrors.StandardError) int {
	switch e.Code {
	case apperrors.ErrCodeValidationFailed:
		return http.StatusBadRequest
	case apperrors.ErrCodeWindowClosed:
		return http.StatusLocked
	case apperrors.ErrCodeDuplicateSubmission:
		return http.StatusConflict
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodePersistence:
		kind, _ := e.Metadata["kind"].(string)
		return persistenceStatus(apperrors.PersistenceKind(kind))
	case apperrors.ErrCodeSearchQueryFailed, apperrors.ErrCodePhotoUploadFailed, apperrors.ErrCodeNotificationSendFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
