package contentx

import "testing"

func TestPageParamsMode(t *testing.T) {
	tests := []struct {
		name   string
		params PageParams
		want   QueryMode
	}{
		{"empty", PageParams{}, ModeDefault},
		{"url only", PageParams{URL: "/en/paris/"}, ModeDefault},
		{"content key only", PageParams{ContentKey: "abc"}, ModePreview},
		{"content key and version", PageParams{ContentKey: "abc", Version: "3"}, ModePreview},
		{"search only", PageParams{SearchQuery: "beach"}, ModeSearch},
		{"search wins over preview", PageParams{SearchQuery: "beach", ContentKey: "abc"}, ModeSearch},
		{"search wins over everything", PageParams{SearchQuery: "beach", ContentKey: "abc", URL: "/en/", Version: "1"}, ModeSearch},
		{"preview wins over url", PageParams{ContentKey: "abc", URL: "/en/"}, ModePreview},
		{"version alone is default", PageParams{Version: "4"}, ModeDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.params.Mode(); got != tt.want {
				t.Errorf("Expected mode %s, got %s", tt.want, got)
			}
			if got := Select(tt.params).Mode; got != tt.want {
				t.Errorf("Expected Select mode %s, got %s", tt.want, got)
			}
		})
	}
}

func TestSelectVariables(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		sel := Select(PageParams{URL: "/en/paris/", Version: "2"})
		if sel.Query.Name != QueryNameDefault {
			t.Errorf("Expected query %s, got %s", QueryNameDefault, sel.Query.Name)
		}
		want := Variables{URL: "/en/paris/"}
		if sel.Variables != want {
			t.Errorf("Expected variables %+v, got %+v", want, sel.Variables)
		}
	})

	t.Run("Preview", func(t *testing.T) {
		sel := Select(PageParams{ContentKey: "abc", Version: "1", URL: "/en/"})
		if sel.Query.Name != QueryNamePreview {
			t.Errorf("Expected query %s, got %s", QueryNamePreview, sel.Query.Name)
		}
		want := Variables{Key: "abc", Version: "1"}
		if sel.Variables != want {
			t.Errorf("Expected variables %+v, got %+v", want, sel.Variables)
		}
	})

	t.Run("PreviewWithoutVersion", func(t *testing.T) {
		sel := Select(PageParams{ContentKey: "abc"})
		if sel.Variables.Key != "abc" || sel.Variables.Version != "" {
			t.Errorf("Expected key only, got %+v", sel.Variables)
		}
	})

	t.Run("SearchDefaultOrderBy", func(t *testing.T) {
		sel := Select(PageParams{SearchQuery: "beach"})
		if sel.Query.Name != QueryNameSearch {
			t.Errorf("Expected query %s, got %s", QueryNameSearch, sel.Query.Name)
		}
		if sel.Variables.SearchQuery != "beach" {
			t.Errorf("Expected searchQuery beach, got %q", sel.Variables.SearchQuery)
		}
		if sel.Variables.OrderBy == nil {
			t.Fatal("Expected orderBy to be set")
		}
		if sel.Variables.OrderBy.Ranking != RankingSemantic {
			t.Errorf("Expected SEMANTIC ranking, got %s", sel.Variables.OrderBy.Ranking)
		}
		if w := sel.Variables.OrderBy.SemanticWeight; w == nil || *w != DefaultSemanticWeight {
			t.Errorf("Expected semantic weight %v, got %v", DefaultSemanticWeight, w)
		}
	})

	t.Run("SearchWithDecision", func(t *testing.T) {
		sel := Select(PageParams{SearchQuery: "beach"}, WithOrderBy(OrderBy{Ranking: RankingRelevance}))
		if sel.Variables.OrderBy.Ranking != RankingRelevance {
			t.Errorf("Expected RELEVANCE ranking, got %s", sel.Variables.OrderBy.Ranking)
		}
		if sel.Variables.OrderBy.SemanticWeight != nil {
			t.Errorf("Expected no semantic weight, got %v", *sel.Variables.OrderBy.SemanticWeight)
		}
	})

	t.Run("EditorURLIsCanonicalized", func(t *testing.T) {
		sel := Select(PageParams{URL: "https://cms.example.com/ui/CMS/%2Fen%2Fparis%2F?x=1"}, InEditor(true))
		if sel.Variables.URL != "/en/paris/" {
			t.Errorf("Expected /en/paris/, got %q", sel.Variables.URL)
		}
	})

	t.Run("URLUntouchedOutsideEditor", func(t *testing.T) {
		raw := "https://cms.example.com/en/paris/?x=1"
		sel := Select(PageParams{URL: raw})
		if sel.Variables.URL != raw {
			t.Errorf("Expected %q, got %q", raw, sel.Variables.URL)
		}
	})
}

func TestCanonicalPath(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		inEditor bool
		want     string
	}{
		{"outside editor", "https://site.example/en/rome/", false, "https://site.example/en/rome/"},
		{"strips origin", "https://site.example/en/rome/", true, "/en/rome/"},
		{"strips query and fragment", "https://site.example/en/rome/?epieditmode=true#top", true, "/en/rome/"},
		{"decodes escaped path", "https%3A%2F%2Fsite.example%2Fen%2Frome%2F", true, "/en/rome/"},
		{"no locale segment", "https://site.example/de/rom/", true, "https://site.example/de/rom/"},
		{"already canonical", "/en/", true, "/en/"},
		{"empty", "", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalPath(tt.url, tt.inEditor); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}

	t.Run("custom locale", func(t *testing.T) {
		sel := Select(PageParams{URL: "https://site.example/sv/stockholm/"}, InEditor(true), WithLocale("sv"))
		if sel.Variables.URL != "/sv/stockholm/" {
			t.Errorf("Expected /sv/stockholm/, got %q", sel.Variables.URL)
		}
	})
}

func TestQueryFor(t *testing.T) {
	if QueryFor(ModeDefault).Name == QueryFor(ModePreview).Name {
		t.Error("Expected Default and Preview to use different query definitions")
	}
	if QueryFor(ModeSearch).Name != QueryNameSearch {
		t.Errorf("Expected %s, got %s", QueryNameSearch, QueryFor(ModeSearch).Name)
	}
}
