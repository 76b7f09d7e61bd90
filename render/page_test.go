package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/letmevibethatforyou/contentx"
)

func renderDoc(t *testing.T, data PageData) *goquery.Document {
	t.Helper()
	var buf bytes.Buffer
	if err := Page(&buf, data); err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	doc, err := goquery.NewDocumentFromReader(&buf)
	if err != nil {
		t.Fatalf("Failed to parse page: %v", err)
	}
	return doc
}

func TestPageRendersGrids(t *testing.T) {
	plan := Walk(decode(t, contentx.ModeDefault, nestedExperience))
	doc := renderDoc(t, PageData{
		Mode:   contentx.ModeDefault,
		Status: StatusOf(plan, false, nil),
		Grids:  NewDispatcher().RenderPlan(plan),
	})

	grids := doc.Find("main#content .grid")
	if grids.Length() != 2 {
		t.Fatalf("Expected 2 grids, got %d", grids.Length())
	}
	if !grids.Eq(0).HasClass("flex-row") {
		t.Error("Expected first grid to be laid out as a row")
	}
	if !grids.Eq(1).HasClass("flex-col") {
		t.Error("Expected second grid to be laid out as a column")
	}

	if got := doc.Find(".hero-banner__title").Text(); got != "Paris" {
		t.Errorf("Expected hero title Paris, got %q", got)
	}
	if got := doc.Find(".paragraph-element p").Text(); got != "hi" {
		t.Errorf("Expected rich text to be rendered as HTML, got %q", got)
	}
	if got := doc.Find(`.element[data-key="el-3"] .not-implemented`).Text(); got != PlaceholderText {
		t.Errorf("Expected placeholder for unknown block, got %q", got)
	}
	if doc.Find("script").Length() != 0 {
		t.Error("Expected no preview script outside preview sync")
	}
}

func TestPageStates(t *testing.T) {
	tests := []struct {
		status   Status
		selector string
	}{
		{StatusNoResults, ".no-results"},
		{StatusLoading, ".loading"},
		{StatusError, ".error"},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			doc := renderDoc(t, PageData{Status: tt.status, Cities: CityLinks("en", []string{"Paris"})})
			if doc.Find(tt.selector).Length() != 1 {
				t.Errorf("Expected %s placeholder", tt.selector)
			}
			if doc.Find(".site-header__cities a").Length() != 1 {
				t.Error("Expected header to render in every state")
			}
		})
	}
}

func TestStatusOf(t *testing.T) {
	content := Plan{Grids: []Grid{{Key: "g"}}}

	tests := []struct {
		name    string
		plan    Plan
		pending bool
		err     error
		want    Status
	}{
		{"content", content, false, nil, StatusContent},
		{"stale content during error", content, false, contentx.ErrTransport, StatusContent},
		{"loading", Plan{}, true, nil, StatusLoading},
		{"error", Plan{}, false, contentx.ErrTransport, StatusError},
		{"no results", Plan{}, false, nil, StatusNoResults},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusOf(tt.plan, tt.pending, tt.err); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestPagePreviewScript(t *testing.T) {
	doc := renderDoc(t, PageData{
		Mode:    contentx.ModePreview,
		Preview: &PreviewScript{SessionID: "sess-1", SocketPath: "/preview/ws?session=sess-1"},
	})

	script := doc.Find("script")
	if script.Length() != 1 {
		t.Fatalf("Expected one preview script, got %d", script.Length())
	}
	if got, _ := script.Attr("data-session"); got != "sess-1" {
		t.Errorf("Expected session sess-1, got %q", got)
	}
	if !strings.Contains(script.Text(), "sess-1") {
		t.Errorf("Expected socket path in script, got %s", script.Text())
	}
	if got, _ := doc.Find("body").Attr("data-mode"); got != "preview" {
		t.Errorf("Expected preview mode on body, got %q", got)
	}
}

func TestContentFragment(t *testing.T) {
	var buf bytes.Buffer
	if err := Content(&buf, PageData{Status: StatusNoResults}); err != nil {
		t.Fatalf("Content failed: %v", err)
	}
	if strings.Contains(buf.String(), "<html") {
		t.Error("Expected a fragment without the document shell")
	}
	if !strings.Contains(buf.String(), "No results found.") {
		t.Errorf("Expected no-results text, got %s", buf.String())
	}
}

func TestCityLinks(t *testing.T) {
	links := CityLinks("", []string{"Paris", " ", "New York", "Paris", "São Paulo"})

	want := []CityLink{
		{Title: "Paris", Href: "/en/paris/"},
		{Title: "New York", Href: "/en/new-york/"},
		{Title: "São Paulo", Href: "/en/são-paulo/"},
	}
	if len(links) != len(want) {
		t.Fatalf("Expected %d links, got %d: %+v", len(want), len(links), links)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("Expected %+v at %d, got %+v", want[i], i, links[i])
		}
	}
}
