package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageFor(t *testing.T) {
	tests := []struct {
		kind      PersistenceKind
		wantTitle string
	}{
		{KindConnection, "Database Connection Error"},
		{KindNetwork, "Network Error"},
		{KindAuth, "Authentication Error"},
		{KindPermission, "Permission Error"},
		{KindDuplicate, "Duplicate Application"},
		{KindPhoto, "Photo Upload Error"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			msg := MessageFor(tt.kind, "ignored")
			assert.Equal(t, tt.kind, msg.Kind)
			assert.Equal(t, tt.wantTitle, msg.Title)
			assert.NotContains(t, msg.Message, "ignored")
		})
	}
}

func TestMessageFor_GenericCarriesRawText(t *testing.T) {
	msg := MessageFor(KindGeneric, "value too long for type character varying(255)")

	assert.Equal(t, KindGeneric, msg.Kind)
	assert.Equal(t, "Submission Error", msg.Title)
	assert.Contains(t, msg.Message, "value too long for type character varying(255)")
}

func TestNewPersistenceError_Retryable(t *testing.T) {
	assert.True(t, NewPersistenceError(KindConnection, stderrors.New("x")).Retryable)
	assert.True(t, NewPersistenceError(KindNetwork, stderrors.New("x")).Retryable)
	assert.False(t, NewPersistenceError(KindPermission, stderrors.New("x")).Retryable)
	assert.False(t, NewPersistenceError(KindGeneric, stderrors.New("x")).Retryable)
}

func TestNewWindowClosedError(t *testing.T) {
	deadline := time.Date(2025, time.February, 2, 23, 59, 59, 0, time.UTC)

	err := NewWindowClosedError(deadline)
	assert.Equal(t, ErrCodeWindowClosed, err.Code)
	assert.Equal(t, true, err.Metadata["closed"])
	assert.Equal(t, "2025-02-02T23:59:59Z", err.Metadata["deadline"])

	_, ok := NewWindowClosedError(time.Time{}).Metadata["deadline"]
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	std := NewDuplicateSubmissionError(time.Time{})
	assert.Same(t, std, Normalize(fmt.Errorf("wrapped: %w", std)))

	unknown := Normalize(stderrors.New("boom"))
	assert.Equal(t, ErrCodeUnknown, unknown.Code)
	assert.Equal(t, "boom", unknown.Details)
}

func TestConvertToBPMNError(t *testing.T) {
	std := NewPersistenceError(KindConnection, stderrors.New("dial tcp: refused"))

	bpmn := ConvertToBPMNError(std)

	assert.Equal(t, "PERSISTENCE_ERROR", bpmn.Code)
	assert.Equal(t, 3, bpmn.Retries)
	assert.True(t, bpmn.Retryable)

	vars := bpmn.ToErrorVariables()
	assert.Equal(t, "PERSISTENCE_ERROR", vars["errorCode"])
	assert.Equal(t, "connection", vars["kind"])
	assert.Equal(t, "PERSISTENCE_ERROR", vars["originalErrorCode"])
}

func TestConvertToBPMNError_NonRetryablePersistence(t *testing.T) {
	bpmn := ConvertToBPMNError(NewPersistenceError(KindPermission, stderrors.New("denied")))

	assert.Equal(t, 0, bpmn.Retries)
	assert.False(t, bpmn.Retryable)
}

func TestGetRetryCount(t *testing.T) {
	assert.Equal(t, 0, GetRetryCount(ErrCodeValidationFailed))
	assert.Equal(t, 0, GetRetryCount(ErrCodeWindowClosed))
	assert.Equal(t, 0, GetRetryCount(ErrCodeDuplicateSubmission))
	assert.Equal(t, 3, GetRetryCount(ErrCodeNotificationSendFailed))
	assert.Equal(t, 1, GetRetryCount(ErrCodeUnknown))
	assert.False(t, IsRetryableErrorCode(ErrCodeDuplicateSubmission))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeValidationFailed))
	assert.Equal(t, "BUSINESS_RULE", GetErrorCategory(ErrCodeWindowClosed))
	assert.Equal(t, "BUSINESS_RULE", GetErrorCategory(ErrCodeDuplicateSubmission))
	assert.Equal(t, "BACKEND", GetErrorCategory(ErrCodePhotoUploadFailed))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeSearchQueryFailed))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeNotFound))
}

func TestStandardError_Error(t *testing.T) {
	err := NewNotFoundError("question set")
	require.EqualError(t, err, "StandardError[NOT_FOUND]: question set not found")
}
