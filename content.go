package contentx

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Metadata is the _metadata object attached to content items.
type Metadata struct {
	Key     string   `json:"key,omitempty"`
	Version string   `json:"version,omitempty"`
	Types   []string `json:"types,omitempty"`
}

// DisplaySetting is one key/value presentation hint on a structure node.
type DisplaySetting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// StructureNode is a grid, row or column of a composition. The levels share
// one shape and differ only by nesting depth.
type StructureNode struct {
	Key             string           `json:"key,omitempty"`
	DisplaySettings []DisplaySetting `json:"displaySettings,omitempty"`
	Children        []StructureNode  `json:"children,omitempty"`
	Elements        []ComponentNode  `json:"elements,omitempty"`
}

// DisplaySetting returns the value of the display setting named key.
func (n StructureNode) DisplaySetting(key string) (string, bool) {
	for _, s := range n.DisplaySettings {
		if s.Key == key {
			return s.Value, true
		}
	}
	return "", false
}

// UnmarshalJSON accepts the query aliases rows, columns and nodes as the
// children of a structure node.
func (n *StructureNode) UnmarshalJSON(data []byte) error {
	var aux struct {
		Key             string           `json:"key"`
		DisplaySettings []DisplaySetting `json:"displaySettings"`
		Children        []StructureNode  `json:"children"`
		Rows            []StructureNode  `json:"rows"`
		Columns         []StructureNode  `json:"columns"`
		Nodes           []StructureNode  `json:"nodes"`
		Elements        []ComponentNode  `json:"elements"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	n.Key = aux.Key
	n.DisplaySettings = aux.DisplaySettings
	n.Elements = aux.Elements
	switch {
	case aux.Children != nil:
		n.Children = aux.Children
	case aux.Rows != nil:
		n.Children = aux.Rows
	case aux.Columns != nil:
		n.Children = aux.Columns
	default:
		n.Children = aux.Nodes
	}
	return nil
}

// ComponentNode is a leaf position in a composition. Component is nil when
// the payload carries the typed fields on the node itself, as with a city
// block placed directly on a page.
type ComponentNode struct {
	Key       string
	Component Block

	inline Block
}

// NewInlineNode wraps a block that is not nested under a component field.
func NewInlineNode(b Block) ComponentNode {
	key := ""
	if b != nil {
		key = b.BlockKey()
	}
	return ComponentNode{Key: key, inline: b}
}

// Block returns the node's typed block: Component when present, otherwise
// the node's own typed fields. It is nil only for an empty node.
func (n ComponentNode) Block() Block {
	if n.Component != nil {
		return n.Component
	}
	return n.inline
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *ComponentNode) UnmarshalJSON(data []byte) error {
	var aux struct {
		Key       string          `json:"key"`
		Component json.RawMessage `json:"component"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	n.Key = aux.Key
	n.Component = nil
	n.inline = nil

	if len(aux.Component) > 0 && !bytes.Equal(bytes.TrimSpace(aux.Component), []byte("null")) {
		component, err := DecodeBlock(aux.Component)
		if err != nil {
			return errors.Wrapf(err, "component node %q", aux.Key)
		}
		n.Component = component
		return nil
	}

	inline, err := DecodeBlock(data)
	if err != nil {
		return errors.Wrapf(err, "component node %q", aux.Key)
	}
	if inline != nil && inline.TypeName() == "" {
		// A node with neither a component nor a type tag of its own is empty.
		return nil
	}
	n.inline = inline
	if n.Key == "" && inline != nil {
		n.Key = inline.BlockKey()
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n ComponentNode) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Key       string `json:"key,omitempty"`
		Component Block  `json:"component"`
	}{Key: n.Key, Component: n.Block()})
}

// Composition is the structural body of an experience.
type Composition struct {
	Grids []StructureNode `json:"grids"`
}

// Experience is a content item composed of grids, rows, columns and elements.
type Experience struct {
	Metadata    Metadata    `json:"_metadata"`
	Composition Composition `json:"composition"`
}

// Grids returns the top-level structure nodes.
func (e *Experience) Grids() []StructureNode {
	if e == nil {
		return nil
	}
	return e.Composition.Grids
}

// Page is a page item whose content is a single referenced block.
type Page struct {
	ContentReference Block
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Page) UnmarshalJSON(data []byte) error {
	var aux struct {
		CityReference json.RawMessage `json:"CityReference"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	ref, err := DecodeBlock(aux.CityReference)
	if err != nil {
		return errors.Wrap(err, "page content reference")
	}
	p.ContentReference = ref
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p Page) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		CityReference Block `json:"CityReference"`
	}{CityReference: p.ContentReference})
}

// ItemList is the items wrapper the content API puts around every collection.
type ItemList[T any] struct {
	Items []T `json:"items"`
}

// BlockList is an ItemList of polymorphic blocks.
type BlockList struct {
	Items []Block
}

// UnmarshalJSON decodes each item with DecodeBlock, dropping nulls.
func (l *BlockList) UnmarshalJSON(data []byte) error {
	var aux struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	l.Items = make([]Block, 0, len(aux.Items))
	for i, raw := range aux.Items {
		b, err := DecodeBlock(raw)
		if err != nil {
			return errors.Wrapf(err, "item %d", i)
		}
		if b != nil {
			l.Items = append(l.Items, b)
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (l BlockList) MarshalJSON() ([]byte, error) {
	items := l.Items
	if items == nil {
		items = []Block{}
	}
	return json.Marshal(struct {
		Items []Block `json:"items"`
	}{Items: items})
}

// RawResult is the data object of a content API response. Default and
// Preview queries populate Experiences and Pages, Search populates
// Components and the city list populates Contents.
type RawResult struct {
	Experiences *ItemList[Experience] `json:"_Experience,omitempty"`
	Pages       *ItemList[Page]       `json:"CityPage,omitempty"`
	Components  *BlockList            `json:"_Component,omitempty"`
	Contents    *BlockList            `json:"_Content,omitempty"`
}

// IsSearchResult reports whether r carries the search result arm.
func (r *RawResult) IsSearchResult() bool {
	return r != nil && r.Components != nil
}

// NormalizedResult is the uniform shape of every query mode. In a
// well-formed response at most one field is set.
type NormalizedResult struct {
	Experience   *Experience `json:"experience"`
	Page         *Page       `json:"page"`
	SearchResult Block       `json:"searchResult"`
}

// Empty reports whether no content was found.
func (r NormalizedResult) Empty() bool {
	return r.Experience == nil && r.Page == nil && r.SearchResult == nil
}
