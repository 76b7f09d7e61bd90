package algolia

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/algolia/algoliasearch-client-go/v3/algolia/opt"
	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/contentx"
)

// DefaultHitsPerPage is the number of hits requested per search.
const DefaultHitsPerPage = 20

// Searcher runs a full-text query against an index. Client implements it.
type Searcher interface {
	Search(ctx context.Context, indexName, query string, params ...interface{}) ([]Object, error)
}

// Executor answers search queries from an Algolia index and hands every
// other query to the next executor.
type Executor struct {
	searcher    Searcher
	indexName   string
	next        contentx.Executor
	hitsPerPage int
	types       []string
	logger      *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithNext sets the executor used for every query other than search.
func WithNext(next contentx.Executor) ExecutorOption {
	return func(e *Executor) {
		e.next = next
	}
}

// WithHitsPerPage sets how many hits a search requests.
func WithHitsPerPage(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.hitsPerPage = n
		}
	}
}

// WithTypes restricts hits to blocks with one of the given type tags.
func WithTypes(types ...string) ExecutorOption {
	return func(e *Executor) {
		e.types = types
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor creates an Executor searching indexName.
func NewExecutor(searcher Searcher, indexName string, opts ...ExecutorOption) *Executor {
	e := &Executor{
		searcher:    searcher,
		indexName:   indexName,
		hitsPerPage: DefaultHitsPerPage,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute implements contentx.Executor.
func (e *Executor) Execute(ctx context.Context, query contentx.Query, vars contentx.Variables) (*contentx.RawResult, error) {
	if query.Name != contentx.QueryNameSearch {
		if e.next == nil {
			return nil, errors.WithSecondaryError(
				contentx.ErrUnsupportedQuery,
				errors.Newf("Algolia executor cannot answer query %q", query.Name),
			)
		}
		return e.next.Execute(ctx, query, vars)
	}

	// Check context
	select {
	case <-ctx.Done():
		return nil, contentx.ErrCanceled
	default:
	}

	result := &contentx.RawResult{Components: &contentx.BlockList{Items: []contentx.Block{}}}
	if strings.TrimSpace(vars.SearchQuery) == "" {
		return result, nil
	}

	hits, err := e.searcher.Search(ctx, e.indexName, vars.SearchQuery, e.searchParams(vars.OrderBy)...)
	if err != nil {
		// Check if this is a timeout or cancellation error
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, contentx.ErrTimeout
		}
		if errors.Is(err, context.Canceled) {
			return nil, contentx.ErrCanceled
		}

		return nil, errors.WithSecondaryError(
			contentx.ErrBackendUnavailable,
			errors.Wrapf(err, "Algolia search failed"),
		)
	}

	for _, hit := range hits {
		b, err := hit.Block()
		if err != nil {
			e.logger.WarnContext(ctx, "skipping undecodable hit", "index", e.indexName, "objectID", hit.ID(), "error", err)
			continue
		}
		if b == nil {
			continue
		}
		result.Components.Items = append(result.Components.Items, b)
	}
	return result, nil
}

// searchParams converts the query variables to Algolia search parameters.
// The ranking choice is reported as an analytics tag so variations can be
// compared in the Algolia dashboard.
func (e *Executor) searchParams(orderBy *contentx.OrderBy) []interface{} {
	params := []interface{}{opt.HitsPerPage(e.hitsPerPage)}

	if filter := typeFilter(e.types); filter != "" {
		params = append(params, opt.Filters(filter))
	}

	if orderBy != nil && orderBy.Ranking != "" {
		tag := "ranking:" + strings.ToLower(string(orderBy.Ranking))
		if orderBy.SemanticWeight != nil {
			tag += ":" + strconv.FormatFloat(*orderBy.SemanticWeight, 'f', -1, 64)
		}
		params = append(params, opt.AnalyticsTags(tag))
	}

	return params
}

// typeFilter builds an Algolia filter matching any of types.
func typeFilter(types []string) string {
	filters := make([]string, 0, len(types))
	for _, t := range types {
		if t == "" {
			continue
		}
		filters = append(filters, fmt.Sprintf("%s:%s", escapeField("__typename"), escapeValue(t)))
	}
	return strings.Join(filters, " OR ")
}

// escapeField escapes field names for Algolia filters
func escapeField(field string) string {
	// Algolia field names with special characters should be quoted
	if strings.ContainsAny(field, " :-()") {
		return fmt.Sprintf(`"%s"`, field)
	}
	return field
}

// escapeValue escapes string values for Algolia filters
func escapeValue(value interface{}) string {
	if value == nil {
		return "null"
	}

	switch v := value.(type) {
	case string:
		// Quote string values and escape internal quotes
		escaped := strings.ReplaceAll(v, `"`, `\"`)
		return fmt.Sprintf(`"%s"`, escaped)
	case bool:
		return fmt.Sprintf(`"%s"`, strconv.FormatBool(v))
	default:
		return fmt.Sprintf(`"%v"`, value)
	}
}
