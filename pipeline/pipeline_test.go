package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/letmevibethatforyou/contentx"
	"github.com/letmevibethatforyou/contentx/fetch"
	"github.com/letmevibethatforyou/contentx/inmemory"
	"github.com/letmevibethatforyou/contentx/preview"
	"github.com/letmevibethatforyou/contentx/ranking"
	"github.com/letmevibethatforyou/contentx/render"
)

const heroExperience = `{
  "_Experience": {"items": [{
    "_metadata": {"key": "paris", "version": "1"},
    "composition": {"grids": [{
      "key": "g1",
      "rows": [{"key": "r1", "columns": [{"key": "c1", "elements": [
        {"key": "e1", "component": {"__typename": "HeroBanner", "Title": "Paris in Spring"}}
      ]}]}]
    }]}
  }]},
  "CityPage": {"items": []}
}`

func staticExecutor(t *testing.T, payload string) contentx.Executor {
	t.Helper()
	return contentx.ExecutorFunc(func(ctx context.Context, q contentx.Query, vars contentx.Variables) (*contentx.RawResult, error) {
		var raw contentx.RawResult
		if err := json.Unmarshal([]byte(payload), &raw); err != nil {
			t.Errorf("Failed to decode payload: %v", err)
		}
		return &raw, nil
	})
}

func TestResolveHeroBannerScenario(t *testing.T) {
	p := New(fetch.New(staticExecutor(t, heroExperience)))

	res := p.Resolve(context.Background(), Request{Params: contentx.PageParams{URL: "/en/paris/"}})
	if res.Err != nil {
		t.Fatalf("Resolve failed: %v", res.Err)
	}
	if res.Mode != contentx.ModeDefault {
		t.Errorf("Expected default mode, got %s", res.Mode)
	}
	if res.Plan.Len() != 1 {
		t.Fatalf("Expected 1 leaf, got %d", res.Plan.Len())
	}

	data := p.PageData(res, false)
	unit := data.Grids[0].Rows[0].Columns[0].Units[0]
	if unit.TypeName != contentx.TypeHeroBanner || !unit.Implemented {
		t.Errorf("Expected rendered hero banner, got %+v", unit)
	}
	if data.Title != "Paris in Spring" {
		t.Errorf("Expected title from hero banner, got %q", data.Title)
	}
	if data.Status != render.StatusContent {
		t.Errorf("Expected content status, got %s", data.Status)
	}
}

func TestResolveSearchWithoutResults(t *testing.T) {
	p := New(fetch.New(staticExecutor(t, `{"_Component": {"items": []}}`)))

	res := p.Resolve(context.Background(), Request{Params: contentx.PageParams{SearchQuery: "beach"}})
	if res.Err != nil {
		t.Fatalf("Resolve failed: %v", res.Err)
	}
	if !res.Normalized.Empty() {
		t.Errorf("Expected empty result, got %#v", res.Normalized)
	}
	if got := p.PageData(res, false).Status; got != render.StatusNoResults {
		t.Errorf("Expected no-results status, got %s", got)
	}
}

func TestResolveSurfacesTransportErrors(t *testing.T) {
	exec := contentx.ExecutorFunc(func(ctx context.Context, q contentx.Query, vars contentx.Variables) (*contentx.RawResult, error) {
		return nil, errors.WithSecondaryError(contentx.ErrTransport, errors.New("connection refused"))
	})
	p := New(fetch.New(exec))

	res := p.Resolve(context.Background(), Request{Params: contentx.PageParams{URL: "/en/"}})
	if !errors.Is(res.Err, contentx.ErrTransport) {
		t.Errorf("Expected ErrTransport, got %v", res.Err)
	}
	if !res.Plan.Empty() {
		t.Error("Expected empty plan")
	}
	if got := p.PageData(res, false).Status; got != render.StatusError {
		t.Errorf("Expected error status, got %s", got)
	}
}

func TestResolveWithoutURLSkipsFetch(t *testing.T) {
	called := false
	exec := contentx.ExecutorFunc(func(ctx context.Context, q contentx.Query, vars contentx.Variables) (*contentx.RawResult, error) {
		called = true
		return &contentx.RawResult{}, nil
	})
	p := New(fetch.New(exec))

	res := p.Resolve(context.Background(), Request{})
	if called {
		t.Error("Expected no query for a request without a URL")
	}
	if res.Err != nil {
		t.Errorf("Expected no error, got %v", res.Err)
	}
	if res.Mode != contentx.ModeDefault {
		t.Errorf("Expected default mode, got %s", res.Mode)
	}
	if !res.Plan.Empty() || !res.Normalized.Empty() {
		t.Error("Expected empty result")
	}
	if got := p.PageData(res, false).Status; got != render.StatusNoResults {
		t.Errorf("Expected no-results status, got %s", got)
	}
}

func TestSelectUsesRankingDecision(t *testing.T) {
	relevance := contentx.OrderBy{Ranking: contentx.RankingRelevance}
	p := New(fetch.New(nil), WithDecider(ranking.StaticOrderBy(relevance)))
	ctx := context.Background()

	sel := p.Select(ctx, Request{Params: contentx.PageParams{SearchQuery: "beach"}, VisitorID: "v1"})
	if sel.Variables.OrderBy == nil {
		t.Fatal("Expected an orderBy variable")
	}
	if diff := cmp.Diff(relevance, *sel.Variables.OrderBy); diff != "" {
		t.Errorf("Unexpected order (-want +got):\n%s", diff)
	}

	sel = p.Select(ctx, Request{Params: contentx.PageParams{URL: "/en/"}})
	if sel.Variables.OrderBy != nil {
		t.Errorf("Expected no orderBy outside search, got %+v", sel.Variables.OrderBy)
	}
}

func fixtureStore(t *testing.T) *inmemory.Store {
	t.Helper()
	store := inmemory.New()
	if err := store.LoadFile("../inmemory/testdata/fixtures.yaml"); err != nil {
		t.Fatalf("Failed to load fixtures: %v", err)
	}
	return store
}

func TestPageWithFixtures(t *testing.T) {
	p := New(fetch.New(fixtureStore(t)))

	data, res := p.Page(context.Background(), Request{Params: contentx.PageParams{URL: "/en/paris/"}})
	if res.Err != nil {
		t.Fatalf("Page failed: %v", res.Err)
	}
	if data.Title != "Paris" {
		t.Errorf("Expected Paris title, got %q", data.Title)
	}

	var cities []string
	for _, c := range data.Cities {
		cities = append(cities, c.Title+" "+c.Href)
	}
	want := []string{"Paris /en/paris/", "Nice /en/nice/", "Rome /en/rome/"}
	if diff := cmp.Diff(want, cities); diff != "" {
		t.Errorf("Unexpected cities (-want +got):\n%s", diff)
	}
}

func TestCitiesFailureYieldsNoLinks(t *testing.T) {
	exec := contentx.ExecutorFunc(func(ctx context.Context, q contentx.Query, vars contentx.Variables) (*contentx.RawResult, error) {
		return nil, contentx.ErrBackendUnavailable
	})
	p := New(fetch.New(exec))

	if links := p.Cities(context.Background()); links != nil {
		t.Errorf("Expected no links, got %+v", links)
	}
}

// recordingExecutor answers preview queries with an experience whose
// version echoes the requested one.
type recordingExecutor struct {
	mu   sync.Mutex
	vars []contentx.Variables
}

func (r *recordingExecutor) Execute(ctx context.Context, q contentx.Query, vars contentx.Variables) (*contentx.RawResult, error) {
	r.mu.Lock()
	r.vars = append(r.vars, vars)
	r.mu.Unlock()

	payload := strings.ReplaceAll(heroExperience, `"version": "1"`, `"version": "`+vars.Version+`"`)
	var raw contentx.RawResult
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, err
	}
	return &raw, nil
}

func TestSessionRefetchesOnSave(t *testing.T) {
	exec := &recordingExecutor{}
	p := New(fetch.New(exec, fetch.WithPolicy(fetch.NetworkOnly)))
	hub := preview.NewHub()
	mock := clock.NewMock()

	updates := make(chan preview.Update, 8)
	send := func(u preview.Update) error {
		updates <- u
		return nil
	}

	req := Request{Params: contentx.PageParams{ContentKey: "abc", Version: "1"}}
	s, err := p.OpenSession(context.Background(), req, hub.Channel("sess-1"), send, preview.WithClock(mock))
	if err != nil {
		t.Fatalf("OpenSession failed: %v", err)
	}
	defer s.Close()

	if s.State() != preview.StateListening {
		t.Fatalf("Expected listening, got %s", s.State())
	}

	hub.Publish("sess-1", preview.ContentSavedEvent{ContentLink: "abc_2"})
	mock.Add(preview.DefaultDebounce)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case u := <-updates:
			if u.Version != "2" {
				continue
			}
			if !strings.Contains(u.HTML, "Paris in Spring") {
				t.Errorf("Expected re-rendered content, got %s", u.HTML)
			}
			if got := s.Variables(); got.Key != "abc" || got.Version != "2" {
				t.Errorf("Expected abc version 2, got %+v", got)
			}
			return
		case <-deadline:
			t.Fatal("Timed out waiting for version 2 update")
		}
	}
}

func TestOpenSessionRequiresLivePage(t *testing.T) {
	p := New(fetch.New(&recordingExecutor{}))
	hub := preview.NewHub()
	send := func(preview.Update) error { return nil }

	_, err := p.OpenSession(context.Background(), Request{Params: contentx.PageParams{URL: "/en/"}}, hub.Channel("s"), send)
	if !errors.Is(err, ErrNotLive) {
		t.Errorf("Expected ErrNotLive, got %v", err)
	}
	if hub.Sessions() != 0 {
		t.Errorf("Expected no hub subscription, got %d", hub.Sessions())
	}

	s, err := p.OpenSession(context.Background(), Request{Params: contentx.PageParams{URL: "/en/"}, InEditor: true}, hub.Channel("s"), send)
	if err != nil {
		t.Fatalf("Expected editor session to open, got %v", err)
	}
	s.Close()
	if hub.Sessions() != 0 {
		t.Errorf("Expected subscription to be released on close, got %d", hub.Sessions())
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name string
		n    contentx.NormalizedResult
		want string
	}{
		{name: "empty"},
		{
			name: "search result",
			n:    contentx.NormalizedResult{SearchResult: &contentx.CityBlock{Title: " Nice "}},
			want: "Nice",
		},
		{
			name: "page",
			n:    contentx.NormalizedResult{Page: &contentx.Page{ContentReference: &contentx.BlogElement{Title: "Rome diary"}}},
			want: "Rome diary",
		},
		{
			name: "untitled block",
			n:    contentx.NormalizedResult{SearchResult: &contentx.ParagraphElement{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Title(tt.n); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
