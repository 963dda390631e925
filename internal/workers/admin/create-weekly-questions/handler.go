// internal/workers/admin/create-weekly-questions/handler.go
package createweeklyquestions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "weekly-intake/internal/common/errors"
	"weekly-intake/internal/common/logger"
	"weekly-intake/internal/common/metrics"
	"weekly-intake/internal/questions"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "create-weekly-questions"
)

type QuestionCreator interface {
	Create(ctx context.Context, in questions.CreateInput) (*questions.Set, error)
}

type Handler struct {
	config       *Config
	questions    QuestionCreator
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, qs QuestionCreator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		questions:    qs,
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

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewValidationError("input cannot be nil", nil)
	}

	var deadline time.Time
	if input.Deadline != "" {
		d, err := time.Parse(time.RFC3339, input.Deadline)
		if err != nil {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("parse deadline: %v", err),
				map[string]string{"deadline": "Deadline must be an RFC 3339 timestamp"},
			)
		}
		deadline = d
	}

	set, err := h.questions.Create(ctx, questions.CreateInput{
		WeekNumber: input.WeekNumber,
		Year:       input.Year,
		Question1:  input.Question1,
		Question2:  input.Question2,
		Question3:  input.Question3,
		Deadline:   deadline,
	})
	if err != nil {
		var stdErr *apperrors.StandardError
		if errors.As(err, &stdErr) {
			return nil, stdErr
		}
		return nil, apperrors.NewUnknownError(err)
	}

	return &Output{
		QuestionSetID: set.ID,
		WeekNumber:    set.WeekNumber,
		Year:          set.Year,
		Deadline:      set.Deadline.UTC().Format(time.RFC3339),
		HasQuestion3:  set.HasQuestion3(),
	}, nil
}
