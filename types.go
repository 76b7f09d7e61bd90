package contentx

import (
	"context"

	"github.com/cockroachdb/errors"
)

// ErrorCode represents specific error codes for content operations.
type ErrorCode int

const (
	// ErrCodeTransport is returned when the content API call fails.
	ErrCodeTransport ErrorCode = iota + 1000

	// ErrCodeQueryFailed is returned when the content API answers with GraphQL errors.
	ErrCodeQueryFailed

	// ErrCodeTimeout is returned when a query times out.
	ErrCodeTimeout

	// ErrCodeCanceled is returned when a query is canceled.
	ErrCodeCanceled

	// ErrCodeBackendUnavailable is returned when the content backend cannot be reached or configured.
	ErrCodeBackendUnavailable

	// ErrCodeUnsupportedQuery is returned when an executor does not serve a query definition.
	ErrCodeUnsupportedQuery
)

// String returns the human-readable string representation of the error code.
func (e ErrorCode) String() string {
	switch e {
	case ErrCodeTransport:
		return "transport error"
	case ErrCodeQueryFailed:
		return "query failed"
	case ErrCodeTimeout:
		return "operation timed out"
	case ErrCodeCanceled:
		return "operation canceled"
	case ErrCodeBackendUnavailable:
		return "backend unavailable"
	case ErrCodeUnsupportedQuery:
		return "unsupported query"
	default:
		return "unknown error"
	}
}

// newErrorWithCode creates a new error with a code and message.
func newErrorWithCode(code ErrorCode, msg string) error {
	err := errors.New(msg)
	return errors.WithSecondaryError(err, errors.Newf("code: %d", int(code)))
}

// Errors returned by executors. Every one of them is a transport error in the
// sense that it crosses the pipeline boundary; all other anomalies are
// normalized into empty values.
var (
	// ErrTransport is returned when the content API call fails.
	ErrTransport = newErrorWithCode(ErrCodeTransport, "contentx: transport error")

	// ErrQueryFailed is returned when the content API reports GraphQL errors.
	ErrQueryFailed = newErrorWithCode(ErrCodeQueryFailed, "contentx: query failed")

	// ErrTimeout is returned when a query times out.
	ErrTimeout = newErrorWithCode(ErrCodeTimeout, "contentx: operation timed out")

	// ErrCanceled is returned when a query is canceled.
	ErrCanceled = newErrorWithCode(ErrCodeCanceled, "contentx: operation canceled")

	// ErrBackendUnavailable is returned when the content backend is unavailable.
	ErrBackendUnavailable = newErrorWithCode(ErrCodeBackendUnavailable, "contentx: backend unavailable")

	// ErrUnsupportedQuery is returned when an executor cannot serve a query definition.
	ErrUnsupportedQuery = newErrorWithCode(ErrCodeUnsupportedQuery, "contentx: unsupported query")
)

// ContextError maps a context error onto ErrTimeout or ErrCanceled.
// It returns nil for any other error.
func ContextError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, context.Canceled):
		return ErrCanceled
	default:
		return nil
	}
}
