// Package errcode provides layered error codes for the asset subsystem.
// Code format: MMBBBB (MM = module code, BBBB = business code).
//
// Every public entry point of the cache, pipeline, quality controller and
// manager returns a *LayeredError (possibly wrapping a cause), so callers
// can branch with errors.Is against the package-level sentinels.
package errcode

import (
	"errors"
	"fmt"
	"net/http"
)

// Severity classifies how an error is surfaced.
type Severity int

const (
	// SeverityError is returned to the caller.
	SeverityError Severity = iota
	// SeverityWarning is logged as a signal; the operation still succeeded.
	SeverityWarning
	// SeveritySwallowed is logged and never propagated (best-effort cleanup paths).
	SeveritySwallowed
)

// String returns the log-friendly name.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeveritySwallowed:
		return "swallowed"
	default:
		return "error"
	}
}

// LayeredError hierarchical error code
// Supports: error chaining, dynamic messages, context data, HTTP status
// mapping for the diagnostics surface, and a retry hint.
type LayeredError struct {
	module     string         // module name (cache, assets, pipeline, quality)
	code       int            // complete code (MMBBBB, e.g. 700001)
	msgKey     string         // message key, e.g. "error.cache.load_failure"
	msg        string         // default message
	httpStatus int            // status used by the diagnostics surface
	retryable  bool           // safe to retry the same call
	severity   Severity       // how the error is surfaced
	data       map[string]any // context data
	cause      error          // original error
}

// New creates a layered error code.
// httpStatus is optional and defaults to 500.
func New(moduleCode, businessCode int, module, msgKey, msg string, httpStatus ...int) *LayeredError {
	status := http.StatusInternalServerError
	if len(httpStatus) > 0 {
		status = httpStatus[0]
	}
	return &LayeredError{
		module:     module,
		code:       moduleCode*10000 + businessCode,
		msgKey:     msgKey,
		msg:        msg,
		httpStatus: status,
		data:       make(map[string]any),
	}
}

func (e *LayeredError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

// Code returns the complete error code.
func (e *LayeredError) Code() int { return e.code }

// Module returns the module name.
func (e *LayeredError) Module() string { return e.module }

// MsgKey returns the message key.
func (e *LayeredError) MsgKey() string { return e.msgKey }

// Message returns the message without the cause.
func (e *LayeredError) Message() string { return e.msg }

// HTTPStatus returns the status used by the diagnostics surface.
func (e *LayeredError) HTTPStatus() int { return e.httpStatus }

// Retryable reports whether the same call may succeed if repeated.
func (e *LayeredError) Retryable() bool { return e.retryable }

// Severity returns how the error is surfaced.
func (e *LayeredError) Severity() Severity { return e.severity }

// Data returns the context data.
func (e *LayeredError) Data() map[string]any { return e.data }

// Cause returns the wrapped error.
func (e *LayeredError) Cause() error { return e.cause }

// Unwrap supports Go 1.13+ error chains
func (e *LayeredError) Unwrap() error { return e.cause }

// Is compares by code so wrapped and decorated copies match their sentinel.
func (e *LayeredError) Is(target error) bool {
	t, ok := target.(*LayeredError)
	if !ok {
		return false
	}
	return e.code == t.code
}

// WithMsg replaces the message (returns a new instance)
func (e *LayeredError) WithMsg(msg string) *LayeredError {
	clone := *e
	clone.msg = msg
	return &clone
}

// WithMsgf formats a replacement message (returns a new instance)
func (e *LayeredError) WithMsgf(format string, args ...any) *LayeredError {
	clone := *e
	clone.msg = fmt.Sprintf(format, args...)
	return &clone
}

// WithData adds a single context value (returns a new instance)
func (e *LayeredError) WithData(key string, value any) *LayeredError {
	clone := *e
	clone.data = e.cloneData()
	clone.data[key] = value
	return &clone
}

// WithFields adds context values in bulk (returns a new instance)
func (e *LayeredError) WithFields(fields map[string]any) *LayeredError {
	clone := *e
	clone.data = e.cloneData()
	for k, v := range fields {
		clone.data[k] = v
	}
	return &clone
}

// WithRetryable sets the retry hint (returns a new instance)
func (e *LayeredError) WithRetryable(retryable bool) *LayeredError {
	clone := *e
	clone.retryable = retryable
	return &clone
}

// WithSeverity sets the severity (returns a new instance)
func (e *LayeredError) WithSeverity(s Severity) *LayeredError {
	clone := *e
	clone.severity = s
	return &clone
}

// WithHTTPStatus sets the diagnostics status (returns a new instance)
func (e *LayeredError) WithHTTPStatus(status int) *LayeredError {
	clone := *e
	clone.httpStatus = status
	return &clone
}

// Wrap wraps the original error (returns a new instance)
func (e *LayeredError) Wrap(cause error) *LayeredError {
	if cause == nil {
		return e
	}
	clone := *e
	clone.cause = cause
	return &clone
}

// Wrapf wraps the original error and formats the message (returns a new instance)
func (e *LayeredError) Wrapf(cause error, format string, args ...any) *LayeredError {
	if cause == nil {
		return e.WithMsgf(format, args...)
	}
	clone := *e
	clone.cause = cause
	clone.msg = fmt.Sprintf(format, args...)
	return &clone
}

func (e *LayeredError) cloneData() map[string]any {
	data := make(map[string]any, len(e.data))
	for k, v := range e.data {
		data[k] = v
	}
	return data
}

// String returns a debug representation.
func (e *LayeredError) String() string {
	if e.cause != nil {
		return fmt.Sprintf("LayeredError{code:%d, module:%s, msg:%s, cause:%v}",
			e.code, e.module, e.msg, e.cause)
	}
	return fmt.Sprintf("LayeredError{code:%d, module:%s, msg:%s}",
		e.code, e.module, e.msg)
}

// As extracts the first *LayeredError in err's chain.
func As(err error) (*LayeredError, bool) {
	var le *LayeredError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// IsRetryable reports whether err carries a retry hint anywhere in its chain.
func IsRetryable(err error) bool {
	le, ok := As(err)
	return ok && le.Retryable()
}

// HTTPStatusOf maps err to a status for the diagnostics surface.
func HTTPStatusOf(err error) int {
	if le, ok := As(err); ok {
		return le.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// CodeOf returns the layered code, or 0 for foreign errors.
func CodeOf(err error) int {
	if le, ok := As(err); ok {
		return le.Code()
	}
	return 0
}
