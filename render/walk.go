// Package render turns a normalized content result into a render plan and
// dispatches each leaf of the plan to a renderer chosen by its type tag.
package render

import (
	"fmt"
	"iter"

	"github.com/letmevibethatforyou/contentx"
)

// LayoutSettingKey is the display setting that carries a grid's layout hint.
const LayoutSettingKey = "defaultBlogStyles"

// layoutRowValue marks a grid as horizontally laid out.
const layoutRowValue = "Row"

// DirectPageType is the only block type rendered when a page or search hit
// is shown without an experience around it.
const DirectPageType = contentx.TypeCityBlock

// Layout is the direction a grid lays out its rows.
type Layout int

const (
	LayoutColumn Layout = iota
	LayoutRow
)

// String returns "row" or "column".
func (l Layout) String() string {
	if l == LayoutRow {
		return "row"
	}
	return "column"
}

// Source tells which part of a normalized result a plan was built from.
type Source int

const (
	SourceNone Source = iota
	SourceExperience
	SourcePage
	SourceSearch
)

// String returns the source name.
func (s Source) String() string {
	switch s {
	case SourceExperience:
		return "experience"
	case SourcePage:
		return "page"
	case SourceSearch:
		return "search"
	default:
		return "none"
	}
}

// Leaf is one component position in the plan together with the keys of
// its ancestors, which give it a stable identity.
type Leaf struct {
	Key    string
	Grid   string
	Row    string
	Column string
	Block  contentx.Block
}

// TypeName returns the leaf block's type tag, or "" for an empty leaf.
func (l Leaf) TypeName() string {
	if l.Block == nil {
		return ""
	}
	return l.Block.TypeName()
}

type Column struct {
	Key    string
	Leaves []Leaf
}

type Row struct {
	Key     string
	Columns []Column
}

type Grid struct {
	Key    string
	Layout Layout
	Rows   []Row
}

// Plan is the container tree of a page. It is immutable once built.
type Plan struct {
	Source Source
	Grids  []Grid
}

// Empty reports whether the plan has nothing to render.
func (p Plan) Empty() bool {
	return len(p.Grids) == 0
}

// Leaves returns the plan's leaves depth-first, grid by grid, siblings in
// source order. The sequence can be ranged over any number of times.
func (p Plan) Leaves() iter.Seq[Leaf] {
	return func(yield func(Leaf) bool) {
		for _, g := range p.Grids {
			for _, r := range g.Rows {
				for _, c := range r.Columns {
					for _, l := range c.Leaves {
						if !yield(l) {
							return
						}
					}
				}
			}
		}
	}
}

// Len returns the number of leaves.
func (p Plan) Len() int {
	n := 0
	for range p.Leaves() {
		n++
	}
	return n
}

// Walk builds the render plan of result. An experience is walked grid by
// grid; otherwise a city block page or search hit is wrapped in a single
// grid, row and column. Anything else yields an empty plan.
func Walk(result contentx.NormalizedResult) Plan {
	if result.Experience != nil {
		return Plan{Source: SourceExperience, Grids: walkExperience(result.Experience)}
	}

	if result.Page != nil && isDirectPage(result.Page.ContentReference) {
		return directPlan(SourcePage, result.Page.ContentReference)
	}
	if isDirectPage(result.SearchResult) {
		return directPlan(SourceSearch, result.SearchResult)
	}

	return Plan{}
}

func isDirectPage(b contentx.Block) bool {
	return b != nil && b.TypeName() == DirectPageType
}

func directPlan(source Source, b contentx.Block) Plan {
	node := contentx.NewInlineNode(b)
	key := fallbackKey(node.Key, "page", 0)

	return Plan{
		Source: source,
		Grids: []Grid{{
			Key:    key,
			Layout: LayoutRow,
			Rows: []Row{{
				Key: key + "/row",
				Columns: []Column{{
					Key: key + "/col",
					Leaves: []Leaf{{
						Key:    key,
						Grid:   key,
						Row:    key + "/row",
						Column: key + "/col",
						Block:  node.Block(),
					}},
				}},
			}},
		}},
	}
}

func walkExperience(exp *contentx.Experience) []Grid {
	nodes := exp.Grids()
	if len(nodes) == 0 {
		return nil
	}

	grids := make([]Grid, 0, len(nodes))
	for gi, gn := range nodes {
		grid := Grid{
			Key:    fallbackKey(gn.Key, "grid", gi),
			Layout: gridLayout(gn),
		}

		rowNodes := gn.Children
		if len(gn.Elements) > 0 {
			// Elements placed directly on a grid get a row and column of their own.
			rowNodes = append([]contentx.StructureNode{{Elements: gn.Elements}}, rowNodes...)
		}

		for ri, rn := range rowNodes {
			row := Row{Key: fallbackKey(rn.Key, "row", ri)}

			colNodes := rn.Children
			if len(rn.Elements) > 0 {
				colNodes = append([]contentx.StructureNode{{Elements: rn.Elements}}, colNodes...)
			}

			for ci, cn := range colNodes {
				col := Column{Key: fallbackKey(cn.Key, "col", ci)}
				collectLeaves(&col, cn, grid.Key, row.Key)
				row.Columns = append(row.Columns, col)
			}
			grid.Rows = append(grid.Rows, row)
		}
		grids = append(grids, grid)
	}
	return grids
}

// collectLeaves appends the elements of n and, for trees deeper than three
// levels, of all its descendants.
func collectLeaves(col *Column, n contentx.StructureNode, gridKey, rowKey string) {
	for _, el := range n.Elements {
		col.Leaves = append(col.Leaves, Leaf{
			Key:    fallbackKey(el.Key, "element", len(col.Leaves)),
			Grid:   gridKey,
			Row:    rowKey,
			Column: col.Key,
			Block:  el.Block(),
		})
	}
	for _, child := range n.Children {
		collectLeaves(col, child, gridKey, rowKey)
	}
}

func gridLayout(n contentx.StructureNode) Layout {
	if v, ok := n.DisplaySetting(LayoutSettingKey); ok && v == layoutRowValue {
		return LayoutRow
	}
	return LayoutColumn
}

func fallbackKey(key, level string, idx int) string {
	if key != "" {
		return key
	}
	return fmt.Sprintf("%s-%d", level, idx)
}
