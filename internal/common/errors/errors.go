// Package errors provides the structured error taxonomy shared by the HTTP
// API and the Zeebe job workers.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed    ErrorCode = "VALIDATION_FAILED"
	ErrCodeWindowClosed        ErrorCode = "WINDOW_CLOSED"
	ErrCodeDuplicateSubmission ErrorCode = "DUPLICATE_SUBMISSION"
	ErrCodePhotoUploadFailed   ErrorCode = "PHOTO_UPLOAD_FAILED"
	ErrCodePersistence         ErrorCode = "PERSISTENCE_ERROR"

	ErrCodeSearchQueryFailed      ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeNotFound               ErrorCode = "NOT_FOUND"

	ErrCodeUnknown ErrorCode = "UNKNOWN"
)

// PersistenceKind narrows a PERSISTENCE_ERROR to what the applicant can act on.
type PersistenceKind string

const (
	KindConnection PersistenceKind = "connection"
	KindNetwork    PersistenceKind = "network"
	KindAuth       PersistenceKind = "auth"
	KindPermission PersistenceKind = "permission"
	KindDuplicate  PersistenceKind = "duplicate"
	KindPhoto      PersistenceKind = "photo"
	KindGeneric    PersistenceKind = "generic"
)

// UserMessage is the title and remediation text shown to an applicant.
type UserMessage struct {
	Kind    PersistenceKind `json:"kind"`
	Title   string          `json:"title"`
	Message string          `json:"message"`
}

var userMessages = map[PersistenceKind]UserMessage{
	KindConnection: {
		Kind:    KindConnection,
		Title:   "Database Connection Error",
		Message: "The application database is not properly configured. This is a technical issue on our end. Please contact the administrator to fix the database setup.",
	},
	KindNetwork: {
		Kind:    KindNetwork,
		Title:   "Network Error",
		Message: "Cannot connect to the server. Please check your internet connection and try again.",
	},
	KindAuth: {
		Kind:    KindAuth,
		Title:   "Authentication Error",
		Message: "There was an authentication issue with the database. Please try refreshing the page and submitting again.",
	},
	KindPermission: {
		Kind:    KindPermission,
		Title:   "Permission Error",
		Message: "The database security settings are preventing your submission. Please contact the administrator to fix the database permissions.",
	},
	KindDuplicate: {
		Kind:    KindDuplicate,
		Title:   "Duplicate Application",
		Message: "You have already submitted an application for this week. Only one application per week is allowed.",
	},
	KindPhoto: {
		Kind:    KindPhoto,
		Title:   "Photo Upload Error",
		Message: "There was an issue uploading your photo. Try with a smaller image (under 5MB) or submit without a photo for now.",
	},
}

// MessageFor returns the user-facing text for kind. Generic failures carry the
// raw error text so support can act on what the applicant reports.
func MessageFor(kind PersistenceKind, raw string) UserMessage {
	if msg, ok := userMessages[kind]; ok {
		return msg
	}
	return UserMessage{
		Kind:  KindGeneric,
		Title: "Submission Error",
		Message: fmt.Sprintf("Something went wrong while submitting your application. Error details: %s. "+
			"Please try again or contact support if this continues.", raw),
	}
}

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewValidationError creates a non-retryable validation error. fields maps a
// form field to its message.
func NewValidationError(details string, fields map[string]string) *StandardError {
	meta := map[string]interface{}{}
	if len(fields) > 0 {
		meta["fields"] = fields
	}
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Submission failed validation",
		Details:   details,
		Retryable: false,
		Metadata:  meta,
		Timestamp: time.Now().UTC(),
	}
}

// NewWindowClosedError reports that the weekly deadline has passed. A zero
// deadline is omitted.
func NewWindowClosedError(deadline time.Time) *StandardError {
	meta := map[string]interface{}{"closed": true}
	if !deadline.IsZero() {
		meta["deadline"] = deadline.Format(time.RFC3339)
	}
	return &StandardError{
		Code:      ErrCodeWindowClosed,
		Message:   "The submission window for this week has closed",
		Retryable: false,
		Metadata:  meta,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateSubmissionError carries the timestamp of the accepted application.
func NewDuplicateSubmissionError(submittedAt time.Time) *StandardError {
	meta := map[string]interface{}{}
	if !submittedAt.IsZero() {
		meta["submittedAt"] = submittedAt.Format(time.RFC3339)
	}
	msg := userMessages[KindDuplicate]
	return &StandardError{
		Code:      ErrCodeDuplicateSubmission,
		Message:   msg.Message,
		Details:   msg.Title,
		Retryable: false,
		Metadata:  meta,
		Timestamp: time.Now().UTC(),
	}
}

// NewPhotoUploadFailedError is reported alongside a successful submission.
func NewPhotoUploadFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePhotoUploadFailed,
		Message:   userMessages[KindPhoto].Message,
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPersistenceError wraps a backend failure with its classified kind.
func NewPersistenceError(kind PersistenceKind, err error) *StandardError {
	msg := MessageFor(kind, err.Error())
	return &StandardError{
		Code:      ErrCodePersistence,
		Message:   msg.Message,
		Details:   err.Error(),
		Retryable: kind == KindConnection || kind == KindNetwork,
		Metadata: map[string]interface{}{
			"kind":  string(msg.Kind),
			"title": msg.Title,
		},
		Timestamp: time.Now().UTC(),
	}
}

func NewSearchQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Search query failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   fmt.Sprintf("Failed to send %s notification", channel),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewNotFoundError(resource string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnknownError surfaces the raw error text.
func NewUnknownError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknown,
		Message:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Retry / BPMN Mapping
// ==========================

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeValidationFailed:       "VALIDATION_FAILED",
	ErrCodeWindowClosed:           "WINDOW_CLOSED",
	ErrCodeDuplicateSubmission:    "DUPLICATE_SUBMISSION",
	ErrCodePhotoUploadFailed:      "PHOTO_UPLOAD_FAILED",
	ErrCodePersistence:            "PERSISTENCE_ERROR",
	ErrCodeSearchQueryFailed:      "SEARCH_QUERY_FAILED",
	ErrCodeNotificationSendFailed: "NOTIFICATION_SEND_FAILED",
	ErrCodeNotFound:               "NOT_FOUND",
}

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodePersistence,
		ErrCodeSearchQueryFailed,
		ErrCodeNotificationSendFailed:
		return 3

	case ErrCodeUnknown:
		return 1

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "WINDOW") || strings.Contains(codeStr, "DUPLICATE"):
		return "BUSINESS_RULE"
	case strings.Contains(codeStr, "PERSISTENCE") || strings.Contains(codeStr, "PHOTO"):
		return "BACKEND"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	default:
		return "OTHER"
	}
}
