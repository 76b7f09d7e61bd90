// Package pipeline resolves page parameters into a render plan: it selects
// the query mode, fetches content, normalizes the response and walks the
// composition tree.
package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/letmevibethatforyou/contentx"
	"github.com/letmevibethatforyou/contentx/fetch"
	"github.com/letmevibethatforyou/contentx/ranking"
	"github.com/letmevibethatforyou/contentx/render"
	"golang.org/x/sync/errgroup"
)

// Request is one page request.
type Request struct {
	Params contentx.PageParams
	// InEditor reports that the page is rendered inside the editor frame.
	InEditor bool
	// VisitorID keys the ranking decision.
	VisitorID string
}

// Result is the outcome of resolving a Request.
type Result struct {
	Mode       contentx.QueryMode
	Query      contentx.Query
	Variables  contentx.Variables
	Normalized contentx.NormalizedResult
	Plan       render.Plan
	// Err is the transport error, if any. Normalized and Plan are empty
	// when it is set.
	Err error
}

// Pipeline composes the stages. It is safe for concurrent use.
type Pipeline struct {
	fetcher    *fetch.Fetcher
	dispatcher *render.Dispatcher
	decider    ranking.Decider
	locale     string
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDispatcher sets the dispatcher used to render plans.
func WithDispatcher(d *render.Dispatcher) Option {
	return func(p *Pipeline) {
		p.dispatcher = d
	}
}

// WithDecider sets the ranking decider consulted in search mode.
func WithDecider(d ranking.Decider) Option {
	return func(p *Pipeline) {
		p.decider = d
	}
}

// WithLocale sets the locale used for editor URLs and city links.
func WithLocale(locale string) Option {
	return func(p *Pipeline) {
		p.locale = locale
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a Pipeline fetching through fetcher.
func New(fetcher *fetch.Fetcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher: fetcher,
		locale:  contentx.DefaultLocale,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.dispatcher == nil {
		p.dispatcher = render.NewDispatcher(render.WithDispatchLogger(p.logger))
	}
	return p
}

// Dispatcher returns the pipeline's dispatcher.
func (p *Pipeline) Dispatcher() *render.Dispatcher {
	return p.dispatcher
}

// Select picks the mode, query and variables for req. The ranking decider
// is consulted only in search mode.
func (p *Pipeline) Select(ctx context.Context, req Request) contentx.Selection {
	opts := []contentx.SelectOption{
		contentx.InEditor(req.InEditor),
		contentx.WithLocale(p.locale),
	}
	if req.Params.Mode() == contentx.ModeSearch {
		opts = append(opts, contentx.WithOrderBy(ranking.OrderBy(ctx, p.decider, req.VisitorID, p.logger)))
	}
	return contentx.Select(req.Params, opts...)
}

// Resolve fetches and plans the content for req. A transport failure is
// returned in Result.Err together with an empty plan. A default request
// without a URL has nothing to look up and yields an empty plan.
func (p *Pipeline) Resolve(ctx context.Context, req Request) Result {
	sel := p.Select(ctx, req)
	res := Result{Mode: sel.Mode, Query: sel.Query, Variables: sel.Variables}
	if sel.Mode == contentx.ModeDefault && sel.Variables.URL == "" {
		return res
	}

	raw, err := p.fetcher.Get(ctx, sel.Query, sel.Variables)
	if err != nil {
		p.logger.WarnContext(ctx, "content query failed", "mode", sel.Mode.String(), "query", sel.Query.Name, "error", err)
		res.Err = err
		return res
	}

	res.Normalized = contentx.Normalize(sel.Mode, raw)
	res.Plan = render.Walk(res.Normalized)
	return res
}

// Cities returns the header navigation. Failures are logged and yield no
// links.
func (p *Pipeline) Cities(ctx context.Context) []render.CityLink {
	raw, err := p.fetcher.Get(ctx, contentx.CitiesQuery, contentx.Variables{})
	if err != nil {
		p.logger.WarnContext(ctx, "city list query failed", "error", err)
		return nil
	}
	if raw == nil || raw.Contents == nil {
		return nil
	}

	var titles []string
	for _, b := range raw.Contents.Items {
		if city, ok := b.(*contentx.CityBlock); ok {
			titles = append(titles, city.Title)
		}
	}
	return render.CityLinks(p.locale, titles)
}

// Page resolves req and the city list concurrently and assembles the page
// document data.
func (p *Pipeline) Page(ctx context.Context, req Request) (render.PageData, Result) {
	var (
		res    Result
		cities []render.CityLink
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res = p.Resolve(gctx, req)
		return nil
	})
	g.Go(func() error {
		cities = p.Cities(gctx)
		return nil
	})
	_ = g.Wait()

	data := p.PageData(res, false)
	data.Cities = cities
	data.SearchQuery = req.Params.SearchQuery
	return data, res
}

// PageData renders res into page data. pending marks a request whose first
// response has not arrived yet.
func (p *Pipeline) PageData(res Result, pending bool) render.PageData {
	return render.PageData{
		Title:  Title(res.Normalized),
		Locale: p.locale,
		Mode:   res.Mode,
		Status: render.StatusOf(res.Plan, pending, res.Err),
		Grids:  p.dispatcher.RenderPlan(res.Plan),
	}
}

// Title picks a document title from the content.
func Title(n contentx.NormalizedResult) string {
	var b contentx.Block
	switch {
	case n.Page != nil:
		b = n.Page.ContentReference
	case n.SearchResult != nil:
		b = n.SearchResult
	}

	switch v := b.(type) {
	case *contentx.CityBlock:
		return strings.TrimSpace(v.Title)
	case *contentx.HeroBanner:
		return strings.TrimSpace(v.Title)
	case *contentx.BlogElement:
		return strings.TrimSpace(v.Title)
	}

	if n.Experience != nil {
		for l := range render.Walk(n).Leaves() {
			if hero, ok := l.Block.(*contentx.HeroBanner); ok {
				return strings.TrimSpace(hero.Title)
			}
		}
	}
	return ""
}
