package contentx

import "context"

// Executor runs one query against the content API.
type Executor interface {
	// Execute runs query with vars and returns the response data. Transport
	// failures are returned as errors wrapping one of this package's
	// sentinel errors.
	Execute(ctx context.Context, query Query, vars Variables) (*RawResult, error)
}

// ExecutorFunc is a function type that implements the Executor interface.
// This allows using a function as an Executor, similar to http.HandlerFunc.
type ExecutorFunc func(context.Context, Query, Variables) (*RawResult, error)

// Execute implements the Executor interface for ExecutorFunc.
func (f ExecutorFunc) Execute(ctx context.Context, query Query, vars Variables) (*RawResult, error) {
	return f(ctx, query, vars)
}
