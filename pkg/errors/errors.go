package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes used across the claim path. Handlers map these to HTTP
// statuses, so every error leaving a service or repository carries one.
const (
	ErrConfigLoad          = "CONFIG_LOAD_ERROR"
	ErrDatabaseConnect     = "DATABASE_CONNECT_ERROR"
	ErrInvalidInput        = "INVALID_INPUT"
	ErrUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrMalformedResponse   = "MALFORMED_RESPONSE"
	ErrProxy               = "PROXY_ERROR"
	ErrChainReadFailed     = "CHAIN_READ_FAILED"
	ErrPersistenceFailed   = "PERSISTENCE_FAILED"
)

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the outermost AppError in err's chain, or ""
// for errors that never passed through this package.
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	return CodeOf(err) == code
}
