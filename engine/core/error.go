package core

import "fmt"

// -----------------------------------------------------------------------------
// Error
// -----------------------------------------------------------------------------

// Error is the structured error carried across component boundaries and
// serialized into API responses and audit details.
type Error struct {
	Message string         `json:"message"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
	err     error
}

// NewError wraps err with a stable code and structured details. A nil err is
// allowed for errors that originate at the boundary itself.
func NewError(err error, code string, details map[string]any) *Error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &Error{
		Message: message,
		Code:    code,
		Details: details,
		err:     err,
	}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.err
}
