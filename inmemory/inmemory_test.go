package inmemory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/letmevibethatforyou/contentx"
)

func loadStore(t *testing.T) *Store {
	t.Helper()
	store := New()
	if err := store.LoadFile("testdata/fixtures.yaml"); err != nil {
		t.Fatalf("Failed to load fixtures: %v", err)
	}
	return store
}

func TestLoadFixtures(t *testing.T) {
	store := loadStore(t)
	if store.Size() != 7 {
		t.Errorf("Expected 7 documents, got %d", store.Size())
	}
}

func TestLoadFixturesRejectsBadDocuments(t *testing.T) {
	tests := map[string]string{
		"missing_id":    "documents:\n  - kind: page\n",
		"unknown_kind":  "documents:\n  - id: a\n    kind: widget\n",
		"unknown_field": "documents:\n  - id: a\n    kind: page\n    colour: red\n",
	}

	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadFixtures(strings.NewReader(src)); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestLoadFixturesAcceptsJSON(t *testing.T) {
	docs, err := LoadFixtures(strings.NewReader(`{"documents": [{"id": "a", "kind": "component", "fields": {"Title": "A"}}]}`))
	if err != nil {
		t.Fatalf("LoadFixtures failed: %v", err)
	}
	if len(docs) != 1 || docs[0].Fields["Title"] != "A" {
		t.Errorf("Expected one document titled A, got %+v", docs)
	}
}

func TestExecuteDefaultPicksNewestVersion(t *testing.T) {
	store := loadStore(t)

	raw, err := store.Execute(context.Background(), contentx.DefaultQuery, contentx.Variables{URL: "/en/"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	result := contentx.Normalize(contentx.ModeDefault, raw)
	if result.Experience == nil {
		t.Fatal("Expected an experience")
	}
	if result.Experience.Metadata.Version != "2" {
		t.Errorf("Expected version 2, got %q", result.Experience.Metadata.Version)
	}
	hero, ok := result.Experience.Grids()[0].Children[0].Children[0].Elements[0].Block().(*contentx.HeroBanner)
	if !ok || hero.Title != "Travel Europe Again" {
		t.Errorf("Expected newest hero banner, got %#v", hero)
	}
}

func TestExecuteDefaultCityPage(t *testing.T) {
	store := loadStore(t)

	raw, err := store.Execute(context.Background(), contentx.DefaultQuery, contentx.Variables{URL: "/en/paris/"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	result := contentx.Normalize(contentx.ModeDefault, raw)
	city, ok := result.Page.ContentReference.(*contentx.CityBlock)
	if !ok || city.Title != "Paris" {
		t.Errorf("Expected Paris page, got %#v", result.Page)
	}
	if result.Experience != nil {
		t.Errorf("Expected no experience, got %#v", result.Experience)
	}
}

func TestExecutePreview(t *testing.T) {
	store := loadStore(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		vars    contentx.Variables
		version string
	}{
		{name: "exact version", vars: contentx.Variables{Key: "home", Version: "1"}, version: "1"},
		{name: "newest when version is empty", vars: contentx.Variables{Key: "home"}, version: "2"},
		{name: "unknown version", vars: contentx.Variables{Key: "home", Version: "9"}},
		{name: "missing key", vars: contentx.Variables{Version: "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := store.Execute(ctx, contentx.PreviewQuery, tt.vars)
			if err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			result := contentx.Normalize(contentx.ModePreview, raw)
			if tt.version == "" {
				if !result.Empty() {
					t.Errorf("Expected empty result, got %#v", result)
				}
				return
			}
			if result.Experience == nil || result.Experience.Metadata.Version != tt.version {
				t.Errorf("Expected experience version %s, got %#v", tt.version, result.Experience)
			}
		})
	}
}

func titles(t *testing.T, raw *contentx.RawResult) []string {
	t.Helper()
	var out []string
	for _, b := range raw.Components.Items {
		switch v := b.(type) {
		case *contentx.CityBlock:
			out = append(out, v.Title)
		default:
			out = append(out, b.TypeName())
		}
	}
	return out
}

func TestExecuteSearch(t *testing.T) {
	store := loadStore(t)
	ctx := context.Background()

	tests := []struct {
		query string
		want  []string
	}{
		{query: "beach paris", want: []string{"Paris", "ParagraphElement", "Nice"}},
		{query: "ruins", want: []string{"Rome"}},
		{query: "CityBlock", want: nil},
		{query: "submarine", want: nil},
		{query: "  ", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			raw, err := store.Execute(ctx, contentx.SearchQuery, contentx.Variables{SearchQuery: tt.query})
			if err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			if !raw.IsSearchResult() {
				t.Fatal("Expected a search shaped result")
			}
			if diff := cmp.Diff(tt.want, titles(t, raw)); diff != "" {
				t.Errorf("Unexpected results (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExecuteSearchNoResults(t *testing.T) {
	store := loadStore(t)

	raw, err := store.Execute(context.Background(), contentx.SearchQuery, contentx.Variables{SearchQuery: "beach-volleyball-on-mars"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !contentx.Normalize(contentx.ModeSearch, raw).Empty() {
		t.Error("Expected an empty normalized result")
	}
}

func TestExecuteCities(t *testing.T) {
	store := loadStore(t)

	raw, err := store.Execute(context.Background(), contentx.CitiesQuery, contentx.Variables{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	var got []string
	for _, b := range raw.Contents.Items {
		city := b.(*contentx.CityBlock)
		got = append(got, city.Title+"/"+city.BlockKey())
	}
	want := []string{"Paris/paris", "Nice/nice", "Rome/rome"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Unexpected cities (-want +got):\n%s", diff)
	}
}

func TestExecuteErrors(t *testing.T) {
	store := loadStore(t)

	_, err := store.Execute(context.Background(), contentx.Query{Name: "Unknown"}, contentx.Variables{})
	if !errors.Is(err, contentx.ErrUnsupportedQuery) {
		t.Errorf("Expected ErrUnsupportedQuery, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Execute(ctx, contentx.DefaultQuery, contentx.Variables{URL: "/en/"})
	if !errors.Is(err, contentx.ErrCanceled) {
		t.Errorf("Expected ErrCanceled, got %v", err)
	}
}

func TestRemoveDocument(t *testing.T) {
	store := loadStore(t)

	if !store.RemoveDocument("home") {
		t.Fatal("Expected home to be removed")
	}
	if store.RemoveDocument("home") {
		t.Error("Expected second removal to report false")
	}
	if store.Size() != 5 {
		t.Errorf("Expected 5 documents, got %d", store.Size())
	}

	raw, err := store.Execute(context.Background(), contentx.PreviewQuery, contentx.Variables{Key: "paris-page", Version: "1"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(raw.Pages.Items) != 1 {
		t.Errorf("Expected index to survive removal, got %d pages", len(raw.Pages.Items))
	}

	store.Clear()
	if store.Size() != 0 {
		t.Errorf("Expected empty store, got %d", store.Size())
	}
}

func TestAddJSONReplacesSameVersion(t *testing.T) {
	store := New()
	if err := store.AddJSON(KindComponent, "a", "1", "", []byte(`{"__typename": "CityBlock", "Title": "Old"}`)); err != nil {
		t.Fatalf("AddJSON failed: %v", err)
	}
	if err := store.AddJSON(KindComponent, "a", "1", "", []byte(`{"__typename": "CityBlock", "Title": "New"}`)); err != nil {
		t.Fatalf("AddJSON failed: %v", err)
	}
	if err := store.AddJSON(KindComponent, "b", "1", "", []byte(`{not json`)); err == nil {
		t.Error("Expected invalid JSON to fail")
	}

	if store.Size() != 1 {
		t.Errorf("Expected 1 document, got %d", store.Size())
	}
}

func TestScoreDocument(t *testing.T) {
	store := New()

	doc := Document{
		ID: "1",
		Fields: map[string]interface{}{
			"__typename":  "CityBlock",
			"Title":       "Paris",
			"Description": map[string]interface{}{"html": "<p>Paris has a beach in summer</p>"},
			"Tags":        []interface{}{"france", "summer"},
			"Population":  2100000,
		},
	}

	tests := map[string]struct {
		query    string
		expected float64
	}{
		"empty_query":          {query: "", expected: 1.0},
		"whitespace_query":     {query: "   ", expected: 1.0},
		"single_term_match":    {query: "paris", expected: 3.0},
		"case_insensitive":     {query: "PARIS", expected: 3.0},
		"all_terms_match":      {query: "paris summer", expected: 6.0},
		"partial_terms_match":  {query: "beach rome", expected: 1.0},
		"system_field_skipped": {query: "cityblock", expected: 0},
		"numeric_match":        {query: "2100000", expected: 1.5},
		"no_match":             {query: "rome", expected: 0},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			score := store.scoreDocument(doc, tc.query)
			if score != tc.expected {
				t.Errorf("Expected score %f, got %f for query %q", tc.expected, score, tc.query)
			}
		})
	}
}

func TestToFloat64(t *testing.T) {
	tests := map[string]struct {
		v    interface{}
		want float64
		ok   bool
	}{
		"json_number":     {v: 2.5, want: 2.5, ok: true},
		"yaml_int":        {v: 12, want: 12, ok: true},
		"padded_version":  {v: " 10 ", want: 10, ok: true},
		"text":            {v: "Paris", ok: false},
		"bool":            {v: true, ok: false},
		"nested_document": {v: map[string]interface{}{"key": "paris"}, ok: false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, ok := toFloat64(tc.v)
			if ok != tc.ok || got != tc.want {
				t.Errorf("Expected (%v, %v), got (%v, %v)", tc.want, tc.ok, got, ok)
			}
		})
	}
}

func TestCompareValues(t *testing.T) {
	store := New()

	tests := map[string]struct {
		v1       interface{}
		v2       interface{}
		expected int
	}{
		"equal_ints":       {v1: 5, v2: 5, expected: 0},
		"less_floats":      {v1: 3.5, v2: 5.5, expected: -1},
		"numeric_versions": {v1: "10", v2: "9", expected: 1},
		"strings":          {v1: "Nice", v2: "Paris", expected: -1},
		"nil_first":        {v1: nil, v2: "Paris", expected: -1},
		"nil_second":       {v1: "Paris", v2: nil, expected: 1},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := store.compareValues(tc.v1, tc.v2); got != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, got)
			}
		})
	}
}
