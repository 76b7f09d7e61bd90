// Package graph executes content queries against a GraphQL content API
// over HTTP.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/contentx"
	"github.com/letmevibethatforyou/contentx/internal/secrets"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultEndpoint is the content API's public GraphQL endpoint.
const DefaultEndpoint = "https://cg.optimizely.com/content/v2"

const maxResponseSize = 16 << 20

// Client implements contentx.Executor over HTTP. Published content is read
// with the single key; a bearer token on the context switches to the
// editor's draft view.
type Client struct {
	endpoint   string
	httpClient *http.Client
	getSecrets FetchSecrets
	breaker    *gobreaker.CircuitBreaker
	tracer     trace.Tracer
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithBreaker replaces the circuit breaker settings.
func WithBreaker(settings gobreaker.Settings) Option {
	return func(c *Client) {
		c.breaker = gobreaker.NewCircuitBreaker(settings)
	}
}

// NewClient creates a Client for endpoint. Secrets are fetched on first use.
func NewClient(endpoint string, fetchSecrets FetchSecrets, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		getSecrets: secrets.Lazy(fetchSecrets),
		tracer:     otel.Tracer("contentx-graph"),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = gobreaker.NewCircuitBreaker(DefaultBreakerSettings("content-graph", c.logger))
	}
	return c
}

// DefaultBreakerSettings trips after five requests when at least 80% of
// them failed within a 30 second window.
func DefaultBreakerSettings(name string, logger *slog.Logger) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.8
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// Rejected and canceled queries say nothing about the API's health.
			return err == nil || errors.Is(err, contentx.ErrQueryFailed) || errors.Is(err, contentx.ErrCanceled)
		},
	}
}

type bearerTokenKey struct{}

// WithBearerToken returns a context whose queries authenticate with token
// instead of the single key.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerTokenKey{}, token)
}

// BearerToken returns the token set by WithBearerToken.
func BearerToken(ctx context.Context) string {
	token, _ := ctx.Value(bearerTokenKey{}).(string)
	return token
}

// HasBearerToken reports whether queries made with ctx read draft content.
// It suits fetch.WithPrivate.
func HasBearerToken(ctx context.Context) bool {
	return BearerToken(ctx) != ""
}

type request struct {
	Query         string             `json:"query"`
	OperationName string             `json:"operationName,omitempty"`
	Variables     contentx.Variables `json:"variables"`
}

type response struct {
	Data   *contentx.RawResult `json:"data"`
	Errors []GraphQLError      `json:"errors,omitempty"`
}

// GraphQLError is one entry of a GraphQL errors array.
type GraphQLError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// Execute implements contentx.Executor.
func (c *Client) Execute(ctx context.Context, query contentx.Query, vars contentx.Variables) (*contentx.RawResult, error) {
	if err := contentx.ContextError(ctx.Err()); err != nil {
		return nil, err
	}

	token := BearerToken(ctx)
	ctx, span := c.tracer.Start(ctx, "graph.execute",
		trace.WithAttributes(
			attribute.String("graphql.operation.name", query.Name),
			attribute.Bool("graph.draft", token != ""),
		),
	)
	defer span.End()

	req, err := c.newRequest(ctx, query, vars, token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to build request")
		return nil, err
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = errors.WithSecondaryError(contentx.ErrBackendUnavailable, errors.Wrap(err, "content API circuit open"))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, err
	}

	resp := out.(*response)
	if len(resp.Errors) > 0 {
		c.logger.WarnContext(ctx, "content API returned errors", "query", query.Name, "errors", resp.Errors)
	}

	span.SetStatus(codes.Ok, "query succeeded")
	return resp.Data, nil
}

func (c *Client) newRequest(ctx context.Context, query contentx.Query, vars contentx.Variables, token string) (*http.Request, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid content API endpoint %q", c.endpoint)
	}

	if token == "" {
		s, err := c.getSecrets()
		if err != nil {
			return nil, errors.WithSecondaryError(
				contentx.ErrBackendUnavailable,
				errors.Wrap(err, "failed to fetch content API secrets"),
			)
		}
		if s.SingleKey == "" {
			return nil, errors.WithSecondaryError(contentx.ErrBackendUnavailable, errors.New("single key is empty"))
		}
		q := u.Query()
		q.Set("auth", s.SingleKey)
		u.RawQuery = q.Encode()
	}

	body, err := json.Marshal(request{Query: query.Document, OperationName: query.Name, Variables: vars})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode query")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, req *http.Request) (*response, error) {
	res, err := c.httpClient.Do(req)
	if err != nil {
		if cerr := contentx.ContextError(ctx.Err()); cerr != nil {
			return nil, cerr
		}
		return nil, errors.WithSecondaryError(contentx.ErrTransport, errors.Wrap(err, "content API request failed"))
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return nil, errors.WithSecondaryError(contentx.ErrTransport, errors.Wrap(err, "failed to read content API response"))
	}

	var resp response
	decodeErr := json.Unmarshal(data, &resp)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		if decodeErr == nil && len(resp.Errors) > 0 && res.StatusCode < 500 {
			return nil, errors.WithSecondaryError(contentx.ErrQueryFailed, errors.Newf("content API rejected query: %s", joinMessages(resp.Errors)))
		}
		return nil, errors.WithSecondaryError(contentx.ErrTransport, errors.Newf("content API returned status %d", res.StatusCode))
	}
	if decodeErr != nil {
		return nil, errors.WithSecondaryError(contentx.ErrTransport, errors.Wrap(decodeErr, "failed to decode content API response"))
	}
	if resp.Data == nil && len(resp.Errors) > 0 {
		return nil, errors.WithSecondaryError(contentx.ErrQueryFailed, errors.Newf("content API rejected query: %s", joinMessages(resp.Errors)))
	}
	if resp.Data == nil {
		resp.Data = &contentx.RawResult{}
	}
	return &resp, nil
}

func joinMessages(errs []GraphQLError) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}
