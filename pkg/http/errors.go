package http

import (
	"fmt"
	"net/http"
	"time"
)

const (
	CodeBadRequest    = "ERR_BAD_REQUEST"
	CodeNotFound      = "ERR_NOT_FOUND"
	CodeUnprocessable = "ERR_UNPROCESSABLE"
	CodeRateLimited   = "ERR_RATE_LIMITED"
	CodeUnavailable   = "ERR_UNAVAILABLE"
	CodeInternal      = "ERR_INTERNAL"
)

var codeByStatus = map[int]string{
	http.StatusBadRequest:          CodeBadRequest,
	http.StatusNotFound:            CodeNotFound,
	http.StatusUnprocessableEntity: CodeUnprocessable,
	http.StatusTooManyRequests:     CodeRateLimited,
	http.StatusServiceUnavailable:  CodeUnavailable,
	http.StatusInternalServerError: CodeInternal,
}

// AppError is an error the API reports to the client as-is. Err stays server side.
type AppError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Field      string                 `json:"field,omitempty"`
	Params     map[string]interface{} `json:"params,omitempty"`
	Status     int                    `json:"-"`
	RetryAfter time.Duration          `json:"-"`
	Err        error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + " " + e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Field: field, Status: status}
}

// NewStatusAppError builds an AppError carrying the standard code for status.
func NewStatusAppError(status int, message string) *AppError {
	code, ok := codeByStatus[status]
	if !ok {
		code = CodeInternal
	}
	return NewAppError(code, "", message, status)
}

// WithParam sets a single error param.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError wraps an underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// WithRetryAfter makes the response carry a Retry-After header.
func (e *AppError) WithRetryAfter(d time.Duration) *AppError {
	e.RetryAfter = d
	return e
}

func NotFoundError(message string) *AppError {
	return NewStatusAppError(http.StatusNotFound, message)
}

func NotFoundErrorf(format string, a ...interface{}) *AppError {
	return NotFoundError(fmt.Sprintf(format, a...))
}

func BadRequestError(message string) *AppError {
	return NewStatusAppError(http.StatusBadRequest, message)
}

// UnprocessableError is for input that was well formed but could not be processed.
func UnprocessableError(message string) *AppError {
	return NewStatusAppError(http.StatusUnprocessableEntity, message)
}

func TooManyRequestsError(message string) *AppError {
	return NewStatusAppError(http.StatusTooManyRequests, message)
}

func ServiceUnavailableError(message string) *AppError {
	return NewStatusAppError(http.StatusServiceUnavailable, message)
}

func InternalError(message string) *AppError {
	return NewStatusAppError(http.StatusInternalServerError, message)
}
