package types

import (
	"errors"
	"fmt"
)

var (
	ErrConfigNotFound       = errors.New("config not found")
	ErrConfigParseFailed    = errors.New("config parse failed")
	ErrConfigValidateFailed = errors.New("config validate failed")
)

var (
	ErrTransport     = errors.New("transport failure")
	ErrAuthExpired   = errors.New("authentication expired")
	ErrClientTimeout = errors.New("client timeout")
	ErrClientClosed  = errors.New("client closed")
)

var (
	ErrCacheKeyEmpty    = errors.New("cache key empty")
	ErrFetchFuncMissing = errors.New("fetch function missing")
	ErrStoreClosed      = errors.New("store closed")
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrMutationFailed    = errors.New("mutation failed")
	ErrIdentityMalformed = errors.New("identity payload malformed")
)

var (
	ErrSchedulerNotRunning     = errors.New("scheduler not running")
	ErrSchedulerAlreadyRunning = errors.New("scheduler already running")
	ErrIntervalInvalid         = errors.New("poll interval invalid")
)

// HTTPError is a settled non-2xx response. A 401 additionally matches
// ErrAuthExpired through errors.Is, so callers can branch on expired
// sessions without inspecting the status themselves.
type HTTPError struct {
	Status  int
	Message string
}

func NewHTTPError(status int, message string) *HTTPError {
	return &HTTPError{Status: status, Message: message}
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

func (e *HTTPError) Is(target error) bool {
	if target == ErrAuthExpired {
		return e.Status == 401
	}
	if other, ok := target.(*HTTPError); ok {
		return other.Status == e.Status
	}
	return false
}

func Errorf(baseErr error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", baseErr, fmt.Sprintf(format, args...))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func NewErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

func IsError(err, target error) bool {
	return errors.Is(err, target)
}
