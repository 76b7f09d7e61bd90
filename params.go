package contentx

import (
	"net/url"
	"strings"
)

// PageParams identify the content a request asks for. At most one of
// SearchQuery and ContentKey is meaningful at a time; URL is the default
// discriminator.
type PageParams struct {
	URL         string `json:"url,omitempty"`
	ContentKey  string `json:"contentKey,omitempty"`
	Version     string `json:"version,omitempty"`
	SearchQuery string `json:"searchQuery,omitempty"`
}

// QueryMode selects which query definition and variable set govern a request.
type QueryMode int

const (
	// ModeDefault resolves content by URL.
	ModeDefault QueryMode = iota
	// ModePreview resolves a specific content key and version.
	ModePreview
	// ModeSearch runs a full-text search over components.
	ModeSearch
)

// String returns the lower-case mode name.
func (m QueryMode) String() string {
	switch m {
	case ModePreview:
		return "preview"
	case ModeSearch:
		return "search"
	default:
		return "default"
	}
}

// Mode derives the query mode from the params. Search takes precedence over
// Preview, and Preview over Default.
func (p PageParams) Mode() QueryMode {
	if p.SearchQuery != "" {
		return ModeSearch
	}
	if p.ContentKey != "" {
		return ModePreview
	}
	return ModeDefault
}

// Ranking is the ranking algorithm used by the search query.
type Ranking string

const (
	RankingSemantic  Ranking = "SEMANTIC"
	RankingRelevance Ranking = "RELEVANCE"
)

// DefaultSemanticWeight is used when no ranking decision is available.
const DefaultSemanticWeight = 0.9

// OrderBy is the orderBy variable of the search query.
type OrderBy struct {
	Ranking        Ranking  `json:"_ranking"`
	SemanticWeight *float64 `json:"_semanticWeight,omitempty"`
}

// DefaultOrderBy returns semantic ranking with DefaultSemanticWeight.
func DefaultOrderBy() OrderBy {
	w := DefaultSemanticWeight
	return OrderBy{Ranking: RankingSemantic, SemanticWeight: &w}
}

// Variables is the variable set sent with a query. Only the fields relevant
// to the selected mode are populated; absent ones are omitted on the wire.
type Variables struct {
	URL         string   `json:"url,omitempty"`
	Key         string   `json:"key,omitempty"`
	Version     string   `json:"version,omitempty"`
	SearchQuery string   `json:"searchQuery,omitempty"`
	OrderBy     *OrderBy `json:"orderBy,omitempty"`
}

// WithVersion returns a copy of v with Version replaced.
func (v Variables) WithVersion(version string) Variables {
	v.Version = version
	return v
}

// Selection is the outcome of Select.
type Selection struct {
	Mode      QueryMode
	Query     Query
	Variables Variables
}

// SelectConfig holds the inputs to Select that do not come from PageParams.
type SelectConfig struct {
	// OrderBy fills the search query's orderBy variable. Nil means DefaultOrderBy.
	OrderBy *OrderBy

	// InEditor reports that the request is rendered inside the embedding
	// editor frame, which passes full parent-frame URLs.
	InEditor bool

	// Locale is the path segment CanonicalPath keeps. Defaults to "en".
	Locale string
}

// SelectOption configures Select.
type SelectOption func(*SelectConfig)

// WithOrderBy sets the ranking order used in Search mode.
func WithOrderBy(o OrderBy) SelectOption {
	return func(cfg *SelectConfig) {
		cfg.OrderBy = &o
	}
}

// InEditor marks the request as rendered inside the editor frame.
func InEditor(inEditor bool) SelectOption {
	return func(cfg *SelectConfig) {
		cfg.InEditor = inEditor
	}
}

// WithLocale sets the locale segment used to canonicalize editor URLs.
func WithLocale(locale string) SelectOption {
	return func(cfg *SelectConfig) {
		cfg.Locale = locale
	}
}

// Select picks the query mode for params and builds that mode's variables.
// It never fails: missing fields leave the corresponding variables empty.
func Select(params PageParams, opts ...SelectOption) Selection {
	cfg := &SelectConfig{Locale: DefaultLocale}
	for _, opt := range opts {
		opt(cfg)
	}

	mode := params.Mode()
	sel := Selection{Mode: mode, Query: QueryFor(mode)}

	switch mode {
	case ModeSearch:
		orderBy := DefaultOrderBy()
		if cfg.OrderBy != nil {
			orderBy = *cfg.OrderBy
		}
		sel.Variables = Variables{SearchQuery: params.SearchQuery, OrderBy: &orderBy}
	case ModePreview:
		sel.Variables = Variables{Key: params.ContentKey, Version: params.Version}
	default:
		sel.Variables = Variables{URL: canonicalPath(params.URL, cfg.InEditor, cfg.Locale)}
	}

	return sel
}

// DefaultLocale is the locale segment kept by CanonicalPath.
const DefaultLocale = "en"

// CanonicalPath reduces a URL passed by the embedding editor to the
// site-relative, locale-prefixed path. Outside the editor, or when no
// locale segment is present, the URL is returned unchanged.
func CanonicalPath(rawURL string, inEditor bool) string {
	return canonicalPath(rawURL, inEditor, DefaultLocale)
}

func canonicalPath(rawURL string, inEditor bool, locale string) string {
	if rawURL == "" || !inEditor {
		return rawURL
	}

	decoded, err := url.PathUnescape(rawURL)
	if err != nil {
		decoded = rawURL
	}

	idx := strings.Index(decoded, "/"+locale+"/")
	if idx < 0 {
		return rawURL
	}

	path := decoded[idx:]
	if cut := strings.IndexAny(path, "?#"); cut >= 0 {
		path = path[:cut]
	}
	return path
}
