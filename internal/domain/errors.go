package domain

import "fmt"

// ErrorCode identifies a class of user-visible failure.
type ErrorCode string

const (
	ErrorCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrorCodeRecognition        ErrorCode = "RECOGNITION_ERROR"
	ErrorCodeStartFailed        ErrorCode = "START_FAILED"
	ErrorCodeEmptyContent       ErrorCode = "EMPTY_CONTENT"
	ErrorCodeClipboard          ErrorCode = "CLIPBOARD_FAILURE"
	ErrorCodeExport             ErrorCode = "EXPORT_FAILURE"
	ErrorCodeControllerClosed   ErrorCode = "CONTROLLER_CLOSED"
)

// Error is the typed application error. Two errors match under errors.Is
// when their codes are equal, so the Err* values below work as sentinels.
type Error struct {
	Code    ErrorCode
	Message string
	// Recognition is set for ErrorCodeRecognition.
	Recognition RecognitionErrorCode
	Cause       error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCause sets the underlying cause and returns the receiver.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

var (
	ErrServiceUnavailable = &Error{Code: ErrorCodeServiceUnavailable, Message: "speech recognition not available"}
	ErrEmptyContent       = &Error{Code: ErrorCodeEmptyContent, Message: "transcript is empty"}
	ErrClipboard          = &Error{Code: ErrorCodeClipboard, Message: "clipboard write failed"}
	ErrExport             = &Error{Code: ErrorCodeExport, Message: "transcript export failed"}
	ErrStartFailed        = &Error{Code: ErrorCodeStartFailed, Message: "failed to start recording"}
	ErrRecognition        = &Error{Code: ErrorCodeRecognition, Message: "speech recognition error"}
	ErrControllerClosed   = &Error{Code: ErrorCodeControllerClosed, Message: "session controller is not running"}
)

// NewError creates a fresh error of the given code.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewRecognitionError wraps a service-reported failure.
func NewRecognitionError(code RecognitionErrorCode, detail string) *Error {
	return &Error{Code: ErrorCodeRecognition, Message: detail, Recognition: code}
}
