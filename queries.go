package contentx

import (
	_ "embed"
	"strings"
)

var (
	//go:embed queries/fragments.graphql
	fragmentsDoc string
	//go:embed queries/default.graphql
	defaultDoc string
	//go:embed queries/preview.graphql
	previewDoc string
	//go:embed queries/search.graphql
	searchDoc string
	//go:embed queries/cities.graphql
	citiesDoc string
)

// Query is a named GraphQL query definition.
type Query struct {
	// Name is the GraphQL operation name. Executors dispatch on it.
	Name string
	// Document is the full GraphQL document including fragments.
	Document string
}

// Operation names of the built-in query definitions.
const (
	QueryNameDefault = "VisualBuilder"
	QueryNamePreview = "Preview"
	QueryNameSearch  = "SearchResultsCities"
	QueryNameCities  = "GetCities"
)

var (
	// DefaultQuery resolves an experience or city page by URL.
	DefaultQuery = Query{Name: QueryNameDefault, Document: withFragments(defaultDoc)}
	// PreviewQuery resolves an experience or city page by key and version.
	PreviewQuery = Query{Name: QueryNamePreview, Document: withFragments(previewDoc)}
	// SearchQuery runs a full-text search over components.
	SearchQuery = Query{Name: QueryNameSearch, Document: withFragments(searchDoc)}
	// CitiesQuery lists city blocks for the header navigation.
	CitiesQuery = Query{Name: QueryNameCities, Document: citiesDoc}
)

// QueryFor returns the single query definition used by mode.
func QueryFor(mode QueryMode) Query {
	switch mode {
	case ModeSearch:
		return SearchQuery
	case ModePreview:
		return PreviewQuery
	default:
		return DefaultQuery
	}
}

// withFragments appends only the fragment definitions the document (or the
// fragments it pulls in) spreads, since GraphQL rejects unused fragments.
func withFragments(doc string) string {
	defs := splitFragments(fragmentsDoc)
	used := make(map[string]bool)
	pending := []string{doc}
	for len(pending) > 0 {
		src := pending[0]
		pending = pending[1:]
		for name, def := range defs {
			if !used[name] && strings.Contains(src, "..."+name+"\n") {
				used[name] = true
				pending = append(pending, def)
			}
		}
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(doc))
	for _, name := range fragmentOrder(fragmentsDoc) {
		if used[name] {
			b.WriteString("\n\n")
			b.WriteString(defs[name])
		}
	}
	b.WriteString("\n")
	return b.String()
}

func splitFragments(src string) map[string]string {
	defs := make(map[string]string)
	for _, chunk := range strings.Split(src, "\nfragment ") {
		chunk = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(chunk), "fragment "))
		if chunk == "" {
			continue
		}
		name, _, _ := strings.Cut(chunk, " ")
		defs[name] = "fragment " + chunk
	}
	return defs
}

func fragmentOrder(src string) []string {
	var names []string
	for _, line := range strings.Split(src, "\n") {
		if rest, ok := strings.CutPrefix(line, "fragment "); ok {
			name, _, _ := strings.Cut(rest, " ")
			names = append(names, name)
		}
	}
	return names
}
