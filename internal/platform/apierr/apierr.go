package apierr

import "fmt"

// Error carries an HTTP status and a stable machine-readable code alongside
// the wrapped cause. Fields holds per-field validation messages when the
// error describes bad client input.
type Error struct {
	Status int
	Code   string
	Err    error
	Fields map[string]string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func WithFields(status int, code string, err error, fields map[string]string) *Error {
	return &Error{Status: status, Code: code, Err: err, Fields: fields}
}
