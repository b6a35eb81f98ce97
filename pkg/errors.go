package cache

// errors.go provides structured error types for heapcache, built on
// go-errors for rich context, retry classification, and stable codes.
//
// © 2025 heapcache authors. MIT License.

import (
    goerrors "errors"
    "fmt"

    "github.com/agilira/go-errors"
)

// Error codes, one per distinguishable cache failure kind.
const (
    ErrCodeLoaderFailed     errors.ErrorCode = "HEAPCACHE_LOADER_FAILED"
    ErrCodeLoaderPanicked   errors.ErrorCode = "HEAPCACHE_LOADER_PANICKED"
    ErrCodeWriterFailed     errors.ErrorCode = "HEAPCACHE_WRITER_FAILED"
    ErrCodeListenerFailed   errors.ErrorCode = "HEAPCACHE_LISTENER_FAILED"
    ErrCodeClosed           errors.ErrorCode = "HEAPCACHE_CLOSED"
    ErrCodeInvalidConfig    errors.ErrorCode = "HEAPCACHE_INVALID_CONFIG"
    ErrCodeNoSuchElement    errors.ErrorCode = "HEAPCACHE_NO_SUCH_ELEMENT"
    ErrCodeTimeout          errors.ErrorCode = "HEAPCACHE_TIMEOUT"
    ErrCodeInternal         errors.ErrorCode = "HEAPCACHE_INTERNAL"
)

const (
    msgLoaderFailed   = "loader function returned an error"
    msgLoaderPanicked = "loader function panicked"
    msgWriterFailed   = "writer function returned an error"
    msgListenerFailed = "cache listener returned an error"
    msgClosed         = "cache is closed"
    msgInvalidConfig  = "invalid cache configuration"
    msgNoSuchElement  = "no mapping present for key"
    msgTimeout        = "operation exceeded its deadline"
    msgInternal       = "internal cache error"
)

// NewErrLoaderFailed wraps a loader's returned error with the key that
// triggered it.
func NewErrLoaderFailed(key interface{}, cause error) error {
    return errors.Wrap(cause, ErrCodeLoaderFailed, msgLoaderFailed).
        WithContext("key", fmt.Sprintf("%v", key)).
        AsRetryable()
}

// NewErrLoaderPanicked wraps a recovered loader panic.
func NewErrLoaderPanicked(key interface{}, panicValue interface{}) error {
    return errors.NewWithContext(ErrCodeLoaderPanicked, msgLoaderPanicked, map[string]interface{}{
        "key":         fmt.Sprintf("%v", key),
        "panic_value": fmt.Sprintf("%v", panicValue),
    }).WithSeverity("critical")
}

// NewErrWriterFailed wraps a Writer's returned error.
func NewErrWriterFailed(key interface{}, cause error) error {
    return errors.Wrap(cause, ErrCodeWriterFailed, msgWriterFailed).
        WithContext("key", fmt.Sprintf("%v", key)).
        AsRetryable()
}

// NewErrListenerFailed wraps a listener callback's returned error. Listener
// failures never abort the triggering operation; they are only surfaced to
// the configured logger and, if set, a ListenerErrorHandler.
func NewErrListenerFailed(key interface{}, cause error) error {
    return errors.Wrap(cause, ErrCodeListenerFailed, msgListenerFailed).
        WithContext("key", fmt.Sprintf("%v", key))
}

// ErrClosed is returned by any operation attempted after Cache.Close.
var ErrClosed = errors.New(ErrCodeClosed, msgClosed)

// NewErrInvalidConfig reports a rejected Option combination caught during
// construction-time validation.
func NewErrInvalidConfig(field string, reason string) error {
    return errors.NewWithContext(ErrCodeInvalidConfig, msgInvalidConfig, map[string]interface{}{
        "field":  field,
        "reason": reason,
    })
}

// ErrNoSuchElement is returned by Get and GetEntry when the key is absent
// and no Loader is configured to load it.
var ErrNoSuchElement = errors.New(ErrCodeNoSuchElement, msgNoSuchElement)

// NewErrTimeout reports a context deadline exceeded while waiting on an
// async loader/writer/follow-up action.
func NewErrTimeout(operation string) error {
    return errors.NewWithField(ErrCodeTimeout, msgTimeout, "operation", operation).AsRetryable()
}

// NewErrInternal wraps an unexpected internal invariant violation; seeing
// this surface is itself a bug report.
func NewErrInternal(operation string, cause error) error {
    if cause != nil {
        return errors.Wrap(cause, ErrCodeInternal, msgInternal).WithContext("operation", operation)
    }
    return errors.NewWithField(ErrCodeInternal, msgInternal, "operation", operation)
}

// IsLoaderFailed reports whether err originates from a failed Loader call.
func IsLoaderFailed(err error) bool { return errors.HasCode(err, ErrCodeLoaderFailed) }

// IsClosed reports whether err indicates the cache has been closed.
func IsClosed(err error) bool { return errors.HasCode(err, ErrCodeClosed) }

// IsNoSuchElement reports whether err indicates a missing mapping.
func IsNoSuchElement(err error) bool { return errors.HasCode(err, ErrCodeNoSuchElement) }

// IsRetryable reports whether the caller may reasonably retry the operation
// that produced err.
func IsRetryable(err error) bool {
    if err == nil {
        return false
    }
    var retryable errors.Retryable
    if goerrors.As(err, &retryable) {
        return retryable.IsRetryable()
    }
    return false
}

// ErrorCode extracts the stable error code from err, or "" if err does not
// carry one.
func ErrorCode(err error) errors.ErrorCode {
    if err == nil {
        return ""
    }
    var coder errors.ErrorCoder
    if goerrors.As(err, &coder) {
        return coder.ErrorCode()
    }
    return ""
}
