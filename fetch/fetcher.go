// Package fetch issues content queries and exposes their results as
// observable state with cache-then-revalidate semantics.
package fetch

import (
	"context"
	"log/slog"
	"time"

	"github.com/letmevibethatforyou/contentx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Policy controls how a Fetcher uses its cache.
type Policy int

const (
	// CacheAndNetwork serves a cached value immediately and always asks the
	// network for an update.
	CacheAndNetwork Policy = iota
	// CacheFirst serves a cached value without a network request.
	CacheFirst
	// NetworkOnly ignores cached values but still writes results to the cache.
	NetworkOnly
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case CacheFirst:
		return "cache-first"
	case NetworkOnly:
		return "network-only"
	default:
		return "cache-and-network"
	}
}

const defaultRevalidateTimeout = 10 * time.Second

// ObserveFunc receives the outcome of every network execution.
type ObserveFunc func(query string, took time.Duration, err error)

// Fetcher runs queries through an Executor. A Fetcher is safe for
// concurrent use.
type Fetcher struct {
	exec              contentx.Executor
	cache             *Cache
	policy            Policy
	logger            *slog.Logger
	tracer            trace.Tracer
	observe           ObserveFunc
	private           func(ctx context.Context) bool
	revalidateTimeout time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithCache shares cache with other fetchers. Without it each Fetcher gets
// a private cache.
func WithCache(cache *Cache) Option {
	return func(f *Fetcher) {
		f.cache = cache
	}
}

// WithPolicy sets the cache policy. The default is CacheAndNetwork.
func WithPolicy(p Policy) Option {
	return func(f *Fetcher) {
		f.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithObserver registers a callback for network execution outcomes.
func WithObserver(fn ObserveFunc) Option {
	return func(f *Fetcher) {
		f.observe = fn
	}
}

// WithPrivate marks requests whose context makes fn report true as
// private. Private requests neither read nor write the cache, so content
// fetched with editor credentials is never served to anyone else.
func WithPrivate(fn func(ctx context.Context) bool) Option {
	return func(f *Fetcher) {
		f.private = fn
	}
}

// WithRevalidateTimeout bounds background revalidation requests that
// outlive the caller's context.
func WithRevalidateTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.revalidateTimeout = d
	}
}

// New creates a Fetcher that executes queries with exec.
func New(exec contentx.Executor, opts ...Option) *Fetcher {
	f := &Fetcher{
		exec:              exec,
		policy:            CacheAndNetwork,
		logger:            slog.Default(),
		tracer:            otel.Tracer("contentx-fetch"),
		revalidateTimeout: defaultRevalidateTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.cache == nil {
		f.cache = NewCache(0)
	}
	return f
}

// Cache returns the fetcher's cache.
func (f *Fetcher) Cache() *Cache {
	return f.cache
}

// Fetch starts query with vars and returns an Observable of its state.
// The caller must Close the Observable when done with it.
func (f *Fetcher) Fetch(ctx context.Context, query contentx.Query, vars contentx.Variables) *Observable {
	o := newObservable(f, query, vars)

	if f.policy != NetworkOnly && !f.isPrivate(ctx) {
		if data, ok := f.cache.Get(query, vars); ok {
			o.state = State{Status: StatusReady, Data: data, Variables: vars, FromCache: true}
			if f.policy == CacheFirst {
				return o
			}
			// The caller already has an answer; revalidation must not die
			// with the caller's request.
			ctx = context.WithoutCancel(ctx)
			o.start(ctx, vars, f.revalidateTimeout)
			return o
		}
	}

	o.start(ctx, vars, 0)
	return o
}

// Get runs query once and waits for the first settled state. With the
// CacheAndNetwork policy a cached value is returned immediately while the
// cache is refreshed in the background.
func (f *Fetcher) Get(ctx context.Context, query contentx.Query, vars contentx.Variables) (*contentx.RawResult, error) {
	o := f.Fetch(ctx, query, vars)
	defer o.Close()

	state, err := o.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if state.Status == StatusError {
		return state.Data, state.Err
	}
	return state.Data, nil
}

func (f *Fetcher) isPrivate(ctx context.Context) bool {
	return f.private != nil && f.private(ctx)
}

// execute performs one network round trip and records it in the cache
// unless the request is private.
func (f *Fetcher) execute(ctx context.Context, query contentx.Query, vars contentx.Variables) (*contentx.RawResult, error) {
	ctx, span := f.tracer.Start(ctx, "fetch.execute",
		trace.WithAttributes(
			attribute.String("contentx.query", query.Name),
			attribute.String("contentx.policy", f.policy.String()),
		),
	)
	defer span.End()

	start := time.Now()
	data, err := f.exec.Execute(ctx, query, vars)
	took := time.Since(start)

	if f.observe != nil {
		f.observe(query.Name, took, err)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		f.logger.WarnContext(ctx, "content query failed", "query", query.Name, "took", took, "error", err)
		return nil, err
	}

	if !f.isPrivate(ctx) {
		f.cache.Put(query, vars, data)
	}
	span.SetStatus(codes.Ok, "query succeeded")
	f.logger.DebugContext(ctx, "content query succeeded", "query", query.Name, "took", took)
	return data, nil
}
