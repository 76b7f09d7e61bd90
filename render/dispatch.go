package render

import (
	"html/template"
	"log/slog"
	"sync"

	"github.com/letmevibethatforyou/contentx"
)

// PlaceholderText is the body of the unit rendered for blocks without a renderer.
const PlaceholderText = "NotImplementedException"

// Renderer renders one typed block to HTML.
type Renderer interface {
	Render(b contentx.Block) (template.HTML, error)
}

// RendererFunc is a function adapter for Renderer.
type RendererFunc func(contentx.Block) (template.HTML, error)

// Render implements Renderer.
func (f RendererFunc) Render(b contentx.Block) (template.HTML, error) {
	return f(b)
}

// Unit is the rendered output of one leaf.
type Unit struct {
	Key      string
	TypeName string
	HTML     template.HTML
	// Implemented is false for the placeholder unit.
	Implemented bool
}

// RenderedColumn, RenderedRow and RenderedGrid mirror the plan with every
// leaf replaced by its unit.
type RenderedColumn struct {
	Key   string
	Units []Unit
}

type RenderedRow struct {
	Key     string
	Columns []RenderedColumn
}

type RenderedGrid struct {
	Key    string
	Layout Layout
	Rows   []RenderedRow
}

// Dispatcher maps type tags to renderers. Dispatch is total: a block whose
// tag has no renderer, or whose renderer fails, yields a placeholder unit.
type Dispatcher struct {
	mu        sync.RWMutex
	renderers map[string]Renderer
	logger    *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRenderer registers r for typeName.
func WithRenderer(typeName string, r Renderer) DispatcherOption {
	return func(d *Dispatcher) {
		d.renderers[typeName] = r
	}
}

// WithDispatchLogger sets the logger used for renderer failures.
func WithDispatchLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a Dispatcher with the built-in block renderers.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		renderers: builtinRenderers(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds or replaces the renderer for typeName.
func (d *Dispatcher) Register(typeName string, r Renderer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.renderers[typeName] = r
}

// Has reports whether typeName has a renderer.
func (d *Dispatcher) Has(typeName string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.renderers[typeName]
	return ok
}

// Render renders b. It never fails.
func (d *Dispatcher) Render(b contentx.Block) Unit {
	if b == nil {
		return placeholder("", "")
	}

	d.mu.RLock()
	r, ok := d.renderers[b.TypeName()]
	d.mu.RUnlock()

	if !ok {
		return placeholder(b.BlockKey(), b.TypeName())
	}

	html, err := r.Render(b)
	if err != nil {
		d.logger.Warn("block renderer failed", "type", b.TypeName(), "key", b.BlockKey(), "error", err)
		return placeholder(b.BlockKey(), b.TypeName())
	}

	return Unit{
		Key:         b.BlockKey(),
		TypeName:    b.TypeName(),
		HTML:        html,
		Implemented: true,
	}
}

// RenderLeaf renders one leaf, keyed by the leaf's position.
func (d *Dispatcher) RenderLeaf(l Leaf) Unit {
	u := d.Render(l.Block)
	u.Key = l.Key
	return u
}

// RenderPlan renders every leaf of p in plan order.
func (d *Dispatcher) RenderPlan(p Plan) []RenderedGrid {
	grids := make([]RenderedGrid, 0, len(p.Grids))
	for _, g := range p.Grids {
		rg := RenderedGrid{Key: g.Key, Layout: g.Layout}
		for _, r := range g.Rows {
			rr := RenderedRow{Key: r.Key}
			for _, c := range r.Columns {
				rc := RenderedColumn{Key: c.Key, Units: make([]Unit, 0, len(c.Leaves))}
				for _, l := range c.Leaves {
					rc.Units = append(rc.Units, d.RenderLeaf(l))
				}
				rr.Columns = append(rr.Columns, rc)
			}
			rg.Rows = append(rg.Rows, rr)
		}
		grids = append(grids, rg)
	}
	return grids
}

func placeholder(key, typeName string) Unit {
	return Unit{
		Key:      key,
		TypeName: typeName,
		HTML: template.HTML(`<div class="not-implemented" data-type="` +
			template.HTMLEscapeString(typeName) + `">` + PlaceholderText + `</div>`),
	}
}
