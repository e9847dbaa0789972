// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"errors"
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
	ErrCodeRulesLoadFailed ErrorCode = "RULES_LOAD_FAILED"
	ErrCodeRulesInvalid    ErrorCode = "RULES_INVALID"

	ErrCodeAnswersValidationFailed ErrorCode = "ANSWERS_VALIDATION_FAILED"
	ErrCodeProfileValidationFailed ErrorCode = "PROFILE_VALIDATION_FAILED"
	ErrCodeProfileIncomplete       ErrorCode = "PROFILE_INCOMPLETE"

	ErrCodeSessionNotFound    ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeSessionStoreFailed ErrorCode = "SESSION_STORE_FAILED"

	ErrCodeDatabaseInsertFailed ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeDuplicateAssessment  ErrorCode = "DUPLICATE_ASSESSMENT"

	ErrCodeIndexFailed ErrorCode = "INDEX_FAILED"

	ErrCodeInvalidEmail    ErrorCode = "INVALID_EMAIL"
	ErrCodeEmailSendFailed ErrorCode = "EMAIL_SEND_FAILED"
	ErrCodeAlertFailed     ErrorCode = "ALERT_PUBLISH_FAILED"

	ErrCodeProcessStartFailed ErrorCode = "PROCESS_START_FAILED"

	ErrCodeParseError    ErrorCode = "PARSE_ERROR"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches another StandardError by code, so errors.Is(err, &StandardError{Code: X}) works.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	return ok && t.Code == e.Code
}

// WithMetadata attaches a key/value and returns the error for chaining.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func detailsOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
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

func NewRulesLoadFailedError(path string, err error) *StandardError {
	return newError(ErrCodeRulesLoadFailed, "Failed to load assessment rules", detailsOf(err), false, err).
		WithMetadata("path", path)
}

func NewRulesInvalidError(details string) *StandardError {
	return newError(ErrCodeRulesInvalid, "Assessment rules are invalid", details, false, nil)
}

func NewAnswersValidationFailedError(details string) *StandardError {
	return newError(ErrCodeAnswersValidationFailed, "Answers failed validation", details, false, nil)
}

func NewProfileValidationFailedError(details string) *StandardError {
	return newError(ErrCodeProfileValidationFailed, "Business profile failed validation", details, false, nil)
}

func NewProfileIncompleteError() *StandardError {
	return newError(ErrCodeProfileIncomplete, "Your name and company name are required", "", false, nil)
}

func NewSessionNotFoundError(sessionID string) *StandardError {
	return newError(ErrCodeSessionNotFound, "Assessment session not found", sessionID, false, nil).
		WithMetadata("sessionId", sessionID)
}

func NewSessionStoreFailedError(op string, err error) *StandardError {
	return newError(ErrCodeSessionStoreFailed, "Session store "+op+" failed", detailsOf(err), true, err)
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Failed to insert record", detailsOf(err), true, err)
}

func NewDuplicateAssessmentError(sessionID string) *StandardError {
	return newError(ErrCodeDuplicateAssessment, "Assessment already recorded for this session", sessionID, false, nil).
		WithMetadata("sessionId", sessionID)
}

func NewIndexFailedError(index string, err error) *StandardError {
	return newError(ErrCodeIndexFailed, "Failed to index assessment", detailsOf(err), true, err).
		WithMetadata("index", index)
}

func NewInvalidEmailError(address string) *StandardError {
	return newError(ErrCodeInvalidEmail, "Invalid email address", address, false, nil)
}

func NewEmailSendFailedError(err error) *StandardError {
	return newError(ErrCodeEmailSendFailed, "Failed to send report email", detailsOf(err), true, err)
}

func NewAlertFailedError(err error) *StandardError {
	return newError(ErrCodeAlertFailed, "Failed to publish risk alert", detailsOf(err), true, err)
}

func NewProcessStartFailedError(processID string, err error) *StandardError {
	return newError(ErrCodeProcessStartFailed, "Failed to start assessment process", detailsOf(err), true, err).
		WithMetadata("processId", processID)
}

func NewParseError(err error) *StandardError {
	return newError(ErrCodeParseError, "Failed to parse job variables", detailsOf(err), false, err)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternalError, "Unexpected error", detailsOf(err), false, err)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes. Codes not
// listed map to themselves.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeRulesLoadFailed:         "RULES_ERROR",
	ErrCodeRulesInvalid:            "RULES_ERROR",
	ErrCodeAnswersValidationFailed: "VALIDATION_ERROR",
	ErrCodeProfileValidationFailed: "VALIDATION_ERROR",
	ErrCodeProfileIncomplete:       "VALIDATION_ERROR",
	ErrCodeParseError:              "VALIDATION_ERROR",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeSessionStoreFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeIndexFailed,
		ErrCodeEmailSendFailed,
		ErrCodeProcessStartFailed:
		return 3

	case ErrCodeAlertFailed:
		return 2

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

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandard returns err as a *StandardError, wrapping unknown errors as internal.
func AsStandard(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return errors.As(err, &stdErr) && stdErr.Code == code
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "RULES"):
		return "RULES"
	case strings.HasPrefix(codeStr, "SESSION"):
		return "SESSION"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "DUPLICATE"):
		return "DATABASE"
	case strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "EMAIL") || strings.Contains(codeStr, "ALERT"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "PROCESS"):
		return "WORKFLOW"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION") ||
		strings.Contains(codeStr, "INCOMPLETE") || strings.Contains(codeStr, "PARSE"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
