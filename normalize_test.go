package contentx

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func decodeRaw(t *testing.T, payload string) *RawResult {
	t.Helper()
	var raw RawResult
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		t.Fatalf("Failed to decode payload: %v", err)
	}
	return &raw
}

func TestNormalizeDefault(t *testing.T) {
	raw := decodeRaw(t, experienceResponse)

	got := Normalize(ModeDefault, raw)
	if got.Experience == nil {
		t.Fatal("Expected an experience")
	}
	if got.Experience.Metadata.Key != "exp-1" {
		t.Errorf("Expected the first experience, got %q", got.Experience.Metadata.Key)
	}
	if got.Page != nil {
		t.Errorf("Expected no page for empty page list, got %+v", got.Page)
	}
	if got.SearchResult != nil {
		t.Errorf("Expected no search result, got %+v", got.SearchResult)
	}
}

func TestNormalizePickFirstPage(t *testing.T) {
	raw := decodeRaw(t, `{
		"_Experience": {"items": []},
		"CityPage": {"items": [
			{"CityReference": {"__typename": "CityBlock", "Title": "Lyon"}},
			{"CityReference": {"__typename": "CityBlock", "Title": "Nantes"}}
		]}
	}`)

	got := Normalize(ModePreview, raw)
	if got.Experience != nil {
		t.Errorf("Expected no experience, got %+v", got.Experience)
	}
	if got.Page == nil {
		t.Fatal("Expected a page")
	}
	city, ok := got.Page.ContentReference.(*CityBlock)
	if !ok || city.Title != "Lyon" {
		t.Errorf("Expected first page Lyon, got %+v", got.Page.ContentReference)
	}
}

func TestNormalizeSearch(t *testing.T) {
	t.Run("FirstHit", func(t *testing.T) {
		raw := decodeRaw(t, `{"_Component": {"items": [
			{"__typename": "CityBlock", "Title": "Nice"},
			{"__typename": "CityBlock", "Title": "Cannes"}
		]}}`)
		got := Normalize(ModeSearch, raw)
		city, ok := got.SearchResult.(*CityBlock)
		if !ok || city.Title != "Nice" {
			t.Errorf("Expected first hit Nice, got %+v", got.SearchResult)
		}
	})

	t.Run("EmptyHits", func(t *testing.T) {
		got := Normalize(ModeSearch, decodeRaw(t, `{"_Component": {"items": []}}`))
		if !got.Empty() {
			t.Errorf("Expected empty result, got %+v", got)
		}
	})

	t.Run("IgnoresStaleShape", func(t *testing.T) {
		raw := decodeRaw(t, experienceResponse)
		got := Normalize(ModeSearch, raw)
		if !got.Empty() {
			t.Errorf("Expected search mode to ignore experience data, got %+v", got)
		}
	})

	t.Run("IgnoresExperienceAlongsideComponents", func(t *testing.T) {
		raw := decodeRaw(t, experienceResponse)
		raw.Components = &BlockList{}
		got := Normalize(ModeSearch, raw)
		if got.Experience != nil || got.Page != nil {
			t.Errorf("Expected no experience or page in search mode, got %+v", got)
		}
	})

	t.Run("DefaultModeIgnoresComponents", func(t *testing.T) {
		raw := decodeRaw(t, `{"_Component": {"items": [{"__typename": "CityBlock", "Title": "Nice"}]}}`)
		got := Normalize(ModeDefault, raw)
		if !got.Empty() {
			t.Errorf("Expected empty result, got %+v", got)
		}
	})
}

func TestNormalizeNil(t *testing.T) {
	for _, mode := range []QueryMode{ModeDefault, ModePreview, ModeSearch} {
		if got := Normalize(mode, nil); !got.Empty() {
			t.Errorf("%s: expected empty result, got %+v", mode, got)
		}
		if got := Normalize(mode, &RawResult{}); !got.Empty() {
			t.Errorf("%s: expected empty result for empty data, got %+v", mode, got)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	payloads := map[QueryMode]string{
		ModeDefault: experienceResponse,
		ModePreview: `{"_Experience": {"items": []}, "CityPage": {"items": [{"CityReference": {"__typename": "CityBlock", "Title": "Lyon"}}]}}`,
		ModeSearch:  `{"_Component": {"items": [{"__typename": "CityBlock", "Title": "Nice"}]}}`,
	}

	for mode, payload := range payloads {
		raw := decodeRaw(t, payload)
		first := Normalize(mode, raw)
		second := Normalize(mode, raw)
		if diff := cmp.Diff(first, second, cmp.AllowUnexported(ComponentNode{})); diff != "" {
			t.Errorf("%s: normalize is not idempotent (-first +second):\n%s", mode, diff)
		}
	}
}
