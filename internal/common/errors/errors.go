// Package errors provides the error taxonomy of the admissions workers and its
// mapping onto BPMN errors for the workflow engine.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode identifies an error kind. Codes are stable and travel to the
// workflow engine as BPMN error codes.
type ErrorCode string

// Lifecycle errors
const (
	ErrCodeQuotaExceeded           ErrorCode = "QUOTA_EXCEEDED"
	ErrCodeDuplicateApplication    ErrorCode = "DUPLICATE_APPLICATION"
	ErrCodeIneligibleMarks         ErrorCode = "INELIGIBLE_MARKS"
	ErrCodeAlreadyDecided          ErrorCode = "ALREADY_DECIDED"
	ErrCodeUnauthorized            ErrorCode = "UNAUTHORIZED"
	ErrCodeCollaboratorUnavailable ErrorCode = "COLLABORATOR_UNAVAILABLE"
	ErrCodeNotFound                ErrorCode = "NOT_FOUND"
	ErrCodeInvalidOutcome          ErrorCode = "INVALID_OUTCOME"
)

// Supporting errors
const (
	ErrCodeInvalidInput           ErrorCode = "INVALID_INPUT"
	ErrCodeUnknownRole            ErrorCode = "UNKNOWN_ROLE"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
// Message is safe to show to a user; Details may carry raw collaborator
// text and is meant for logs.
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
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is matches any StandardError carrying the same code, so callers can test
// against the package sentinels with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Unwrap returns the collaborator error this one was built from, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata returns a copy of e with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	cp := *e
	cp.Metadata = make(map[string]interface{}, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		cp.Metadata[k] = v
	}
	cp.Metadata[key] = value
	return &cp
}

// Sentinels for errors.Is comparisons.
var (
	ErrQuotaExceeded           = &StandardError{Code: ErrCodeQuotaExceeded}
	ErrDuplicateApplication    = &StandardError{Code: ErrCodeDuplicateApplication}
	ErrIneligibleMarks         = &StandardError{Code: ErrCodeIneligibleMarks}
	ErrAlreadyDecided          = &StandardError{Code: ErrCodeAlreadyDecided}
	ErrUnauthorized            = &StandardError{Code: ErrCodeUnauthorized}
	ErrCollaboratorUnavailable = &StandardError{Code: ErrCodeCollaboratorUnavailable}
	ErrNotFound                = &StandardError{Code: ErrCodeNotFound}
	ErrInvalidOutcome          = &StandardError{Code: ErrCodeInvalidOutcome}
	ErrInvalidInput            = &StandardError{Code: ErrCodeInvalidInput}
	ErrUnknownRole             = &StandardError{Code: ErrCodeUnknownRole}
	ErrNotificationSendFailed  = &StandardError{Code: ErrCodeNotificationSendFailed}
)

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the workflow engine.
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

// ToErrorVariables returns a map suitable for job fail/throw variables.
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

func newError(code ErrorCode, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   messages[code],
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewQuotaExceededError reports that a student already holds the maximum
// number of applications at an institution.
func NewQuotaExceededError(studentID, institutionID string, limit int) *StandardError {
	return newError(ErrCodeQuotaExceeded,
		fmt.Sprintf("studentId: %s, institutionId: %s, limit: %d", studentID, institutionID, limit), false)
}

func NewDuplicateApplicationError(details string) *StandardError {
	return newError(ErrCodeDuplicateApplication, details, false)
}

// NewIneligibleMarksError carries the failing subject, the mark that was
// read and the required minimum.
func NewIneligibleMarksError(subject string, got, want int) *StandardError {
	return newError(ErrCodeIneligibleMarks,
		fmt.Sprintf("subject: %s, mark: %d, required: %d", subject, got, want), false).
		WithMetadata("subject", subject)
}

func NewAlreadyDecidedError(applicationID, status string) *StandardError {
	return newError(ErrCodeAlreadyDecided,
		fmt.Sprintf("applicationId: %s, status: %s", applicationID, status), false)
}

func NewUnauthorizedError(details string) *StandardError {
	return newError(ErrCodeUnauthorized, details, false)
}

// NewCollaboratorUnavailableError wraps a failed call to the identity
// provider, document store or another backend. The raw error stays in Details.
func NewCollaboratorUnavailableError(collaborator string, err error) *StandardError {
	details := collaborator
	if err != nil {
		details = fmt.Sprintf("%s: %s", collaborator, err.Error())
	}
	e := newError(ErrCodeCollaboratorUnavailable, details, true)
	e.cause = err
	return e.WithMetadata("collaborator", collaborator)
}

func NewNotFoundError(resource, id string) *StandardError {
	return newError(ErrCodeNotFound, fmt.Sprintf("%s: %s", resource, id), false)
}

func NewInvalidOutcomeError(outcome string) *StandardError {
	return newError(ErrCodeInvalidOutcome, fmt.Sprintf("outcome: %q", outcome), false)
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, details, false)
}

func NewUnknownRoleError(role string) *StandardError {
	return newError(ErrCodeUnknownRole, fmt.Sprintf("role: %q", role), false)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	e := newError(ErrCodeNotificationSendFailed, fmt.Sprintf("channel: %s, error: %v", channel, err), true)
	e.cause = err
	return e
}

// ==========================
// 4. Messages
// ==========================

var messages = map[ErrorCode]string{
	ErrCodeQuotaExceeded:           "You have reached the maximum number of course applications for this institution",
	ErrCodeDuplicateApplication:    "You have already applied to this course",
	ErrCodeIneligibleMarks:         "Your marks do not meet the minimum requirements for this course",
	ErrCodeAlreadyDecided:          "This application has already been decided",
	ErrCodeUnauthorized:            "You are not allowed to review this application",
	ErrCodeCollaboratorUnavailable: "The service is temporarily unavailable, please try again",
	ErrCodeNotFound:                "The requested record does not exist",
	ErrCodeInvalidOutcome:          "A decision must be either admitted or rejected",
	ErrCodeInvalidInput:            "The request is missing required information",
	ErrCodeUnknownRole:             "Your account has no recognised role",
	ErrCodeNotificationSendFailed:  "The notification could not be delivered",
	ErrCodeInternal:                "Something went wrong",
}

// UserMessage returns the human-readable message for err. Errors outside the
// taxonomy get the generic internal message rather than their raw text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if se, ok := AsStandardError(err); ok {
		if msg, found := messages[se.Code]; found {
			return msg
		}
		if se.Message != "" {
			return se.Message
		}
	}
	return messages[ErrCodeInternal]
}

// AsStandardError unwraps err until it finds a *StandardError.
func AsStandardError(err error) (*StandardError, bool) {
	for err != nil {
		if se, ok := err.(*StandardError); ok {
			return se, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

// Normalize turns any error into a StandardError. Unknown errors become
// non-retryable internal errors with the raw text in Details.
func Normalize(err error) *StandardError {
	if se, ok := AsStandardError(err); ok {
		return se
	}
	return newError(ErrCodeInternal, err.Error(), false)
}

// ==========================
// 5. Retry Policy & Categories
// ==========================

// GetRetryCount returns how many times the workflow engine should retry a
// job that failed with code. Business rule violations are never retried.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeCollaboratorUnavailable, ErrCodeNotificationSendFailed:
		return 3
	default:
		return 0
	}
}

// ConvertToBPMNError maps a StandardError onto a BPMN error.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
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
		Code:           string(stdErr.Code),
		Message:        UserMessage(stdErr),
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory groups codes for dashboards and log fields.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeQuotaExceeded, ErrCodeDuplicateApplication, ErrCodeIneligibleMarks:
		return "ELIGIBILITY"
	case ErrCodeAlreadyDecided, ErrCodeInvalidOutcome:
		return "LIFECYCLE"
	case ErrCodeUnauthorized, ErrCodeUnknownRole:
		return "AUTH"
	case ErrCodeCollaboratorUnavailable:
		return "INFRASTRUCTURE"
	case ErrCodeNotificationSendFailed:
		return "NOTIFICATION"
	}
	if strings.HasPrefix(string(code), "INVALID") || code == ErrCodeNotFound {
		return "VALIDATION"
	}
	return "UNKNOWN"
}
