package router

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sequentry/sequentry/engine/core"
)

// Common sentinel errors
var (
	ErrInternal        = errors.New("internal server error")
	ErrInvalidAddress  = errors.New("invalid address")
	ErrBindError       = errors.New("server bind error")
	ErrExecutionFailed = errors.New("execution failed")
)

// Error codes
const (
	ErrInternalCode           = "INTERNAL_ERROR"
	ErrBadRequestCode         = "BAD_REQUEST"
	ErrUnauthorizedCode       = "UNAUTHORIZED"
	ErrForbiddenCode          = "FORBIDDEN"
	ErrNotFoundCode           = "NOT_FOUND"
	ErrConflictCode           = "CONFLICT"
	ErrRequestTimeoutCode     = "REQUEST_TIMEOUT"
	ErrTooManyRequestsCode    = "TOO_MANY_REQUESTS"
	ErrServiceUnavailableCode = "SERVICE_UNAVAILABLE"
)

// Error messages
const (
	ErrMsgAppStateNotInitialized = "application state not initialized"
)

// Error represents errors that can occur during server operations
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
	Details string `json:"details"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewServerError creates a new server Error
func NewServerError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WrapServerError wraps an existing error with a server error
func WrapServerError(code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// RequestError represents errors that can occur during request handling
type RequestError struct {
	ExecutionID string
	Reason      string
	StatusCode  int
	Err         error
}

func (e *RequestError) Error() string {
	if e.ExecutionID != "" {
		return fmt.Sprintf("execution %s failed: %s", e.ExecutionID, e.Reason)
	}
	return e.Reason
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// NewRequestError creates a new RequestError
func NewRequestError(statusCode int, reason string, err error) *RequestError {
	return &RequestError{
		StatusCode: statusCode,
		Reason:     reason,
		Err:        err,
	}
}

// ExecutionError creates a request error bound to a workflow execution
func ExecutionError(executionID, reason string, err error) *RequestError {
	return &RequestError{
		StatusCode:  http.StatusInternalServerError,
		ExecutionID: executionID,
		Reason:      reason,
		Err:         err,
	}
}

// IsRequestError checks if the given error is a RequestError
func IsRequestError(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr)
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// GetErrorInfo extracts error information for the standardized response.
// Domain errors keep their own code and structured details; everything else
// falls back to the transport code for the status.
func (e *RequestError) GetErrorInfo() *ErrorInfo {
	var coreErr *core.Error
	if errors.As(e.Err, &coreErr) {
		message := e.Reason
		if message == "" {
			message = coreErr.Message
		}
		return &ErrorInfo{
			Code:    coreErr.Code,
			Message: message,
			Details: coreErr.Details,
		}
	}
	var details string
	if e.Err != nil {
		details = e.Err.Error()
	}
	code := ErrInternalCode
	switch e.StatusCode {
	case http.StatusBadRequest:
		code = ErrBadRequestCode
	case http.StatusNotFound:
		code = ErrNotFoundCode
	case http.StatusUnauthorized:
		code = ErrUnauthorizedCode
	case http.StatusForbidden:
		code = ErrForbiddenCode
	case http.StatusConflict:
		code = ErrConflictCode
	case http.StatusRequestTimeout:
		code = ErrRequestTimeoutCode
	case http.StatusTooManyRequests:
		code = ErrTooManyRequestsCode
	case http.StatusServiceUnavailable:
		code = ErrServiceUnavailableCode
	}
	return &ErrorInfo{
		Code:    code,
		Message: e.Reason,
		Details: details,
	}
}
