// internal/workers/intake/submit-application/handler.go
package submitapplication

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "weekly-intake/internal/common/errors"
	"weekly-intake/internal/common/logger"
	"weekly-intake/internal/common/metrics"
	"weekly-intake/internal/intake"
	"weekly-intake/internal/photos"
	"weekly-intake/internal/store"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "submit-weekly-application"
)

type Handler struct {
	config       *Config
	window       intake.WindowChecker
	pipeline     *intake.Pipeline
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, window intake.WindowChecker, pipeline *intake.Pipeline, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		window:       window,
		pipeline:     pipeline,
		errorHandler: apperrors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errorHandler.HandleJobError(ctx, client, job,
			apperrors.NewValidationError(fmt.Sprintf("parse input: %v", err), nil))
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

// Execute submits input through a fresh form session. Errors are always
// *apperrors.StandardError.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	a, err := attemptFrom(input)
	if err != nil {
		return nil, err
	}

	session := intake.NewSession(ctx, h.window, h.pipeline, h.config.Rules)
	res, err := session.Submit(ctx, a)
	if err != nil {
		return nil, h.toStandardError(ctx, err)
	}

	out := &Output{
		ApplicationID:     res.Record.ID,
		WeekNumber:        res.Record.WeekNumber,
		Year:              res.Record.Year,
		SubmittedAt:       res.Record.SubmittedAt.UTC().Format(time.RFC3339),
		PhotoUploadFailed: res.Degraded(),
	}
	if res.Record.PhotoURL != nil {
		out.PhotoURL = *res.Record.PhotoURL
	}
	return out, nil
}

func attemptFrom(input *Input) (intake.Attempt, error) {
	if input == nil {
		return intake.Attempt{}, apperrors.NewValidationError("input cannot be nil", nil)
	}

	a := intake.Attempt{
		FullName:     input.FullName,
		Email:        input.Email,
		Answers:      store.Answers{},
		ClientIPHint: input.ClientIP,
	}
	for k, v := range input.Answers {
		a.Answers[k] = v
	}

	if input.Photo != nil && input.Photo.Data != "" {
		data, err := base64.StdEncoding.DecodeString(input.Photo.Data)
		if err != nil {
			return intake.Attempt{}, apperrors.NewValidationError(
				fmt.Sprintf("decode photo: %v", err),
				map[string]string{"photo": "Photo data must be base64 encoded"},
			)
		}
		a.Photo = &photos.Photo{
			Data:        data,
			FileName:    input.Photo.FileName,
			ContentType: input.Photo.ContentType,
		}
	}
	return a, nil
}

func (h *Handler) toStandardError(ctx context.Context, err error) *apperrors.StandardError {
	var (
		validationErr *intake.ValidationError
		duplicateErr  *intake.DuplicateError
		storeErr      *store.Error
	)
	switch {
	case errors.As(err, &validationErr):
		return apperrors.NewValidationError(err.Error(), validationErr.Fields)
	case errors.Is(err, intake.ErrWindowClosed):
		return apperrors.NewWindowClosedError(h.window.Current(ctx).Questions.Deadline)
	case errors.As(err, &duplicateErr):
		return apperrors.NewDuplicateSubmissionError(duplicateErr.SubmittedAt)
	case errors.As(err, &storeErr):
		return apperrors.NewPersistenceError(storeErr.Kind, err)
	default:
		return apperrors.NewUnknownError(err)
	}
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(ctx)
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}
