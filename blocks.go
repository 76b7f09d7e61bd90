package contentx

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/cockroachdb/errors"
)

// Block is a typed content block. The concrete type is chosen by the
// GraphQL __typename of the payload.
type Block interface {
	// TypeName returns the block's type tag, e.g. "CityBlock".
	TypeName() string
	// BlockKey returns the content key from the block metadata, if any.
	BlockKey() string
}

// Type tags of the blocks this package decodes into concrete types.
const (
	TypeCityBlock        = "CityBlock"
	TypeHeroBanner       = "HeroBanner"
	TypeBlogElement      = "BlogElement"
	TypeHeaderElement    = "HeaderElement"
	TypeFooterElement    = "FooterElement"
	TypeParagraphElement = "ParagraphElement"
)

// BlockMeta carries the fields common to every block.
type BlockMeta struct {
	Typename string    `json:"__typename,omitempty"`
	Metadata *Metadata `json:"_metadata,omitempty"`
}

// TypeName implements Block.
func (m BlockMeta) TypeName() string { return m.Typename }

// BlockKey implements Block.
func (m BlockMeta) BlockKey() string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata.Key
}

// URLRef is a content-API URL wrapper.
type URLRef struct {
	Default string `json:"default,omitempty"`
}

// ImageRef references an image asset.
type ImageRef struct {
	Key string `json:"key,omitempty"`
	URL URLRef `json:"url"`
}

// RichText is an HTML fragment authored in the CMS.
type RichText struct {
	HTML string `json:"html,omitempty"`
}

type CityBlock struct {
	BlockMeta
	Title       string    `json:"Title,omitempty"`
	Image       *ImageRef `json:"Image,omitempty"`
	Description *RichText `json:"Description,omitempty"`
}

type HeroBanner struct {
	BlockMeta
	Title           string  `json:"Title,omitempty"`
	Subtitle        string  `json:"Subtitle,omitempty"`
	BackgroundImage *URLRef `json:"BackgroundImage,omitempty"`
}

type BlogElement struct {
	BlockMeta
	Title  string    `json:"Title,omitempty"`
	Author string    `json:"Author,omitempty"`
	Image  *URLRef   `json:"Image,omitempty"`
	Text   *RichText `json:"Text,omitempty"`
}

type HeaderElement struct {
	BlockMeta
	Title string `json:"Title,omitempty"`
}

type FooterElement struct {
	BlockMeta
	Text *RichText `json:"Text,omitempty"`
}

type ParagraphElement struct {
	BlockMeta
	Text *RichText `json:"Text,omitempty"`
}

// UnknownBlock holds a block whose type tag has no registered Go type.
// Its fields are kept as decoded JSON.
type UnknownBlock struct {
	BlockMeta
	Fields map[string]any `json:"-"`
}

// MarshalJSON writes the raw fields back out.
func (b *UnknownBlock) MarshalJSON() ([]byte, error) {
	if b.Fields != nil {
		return json.Marshal(b.Fields)
	}
	return json.Marshal(b.BlockMeta)
}

var (
	blockTypesMu sync.RWMutex
	blockTypes   = map[string]func() Block{
		TypeCityBlock:        func() Block { return &CityBlock{} },
		TypeHeroBanner:       func() Block { return &HeroBanner{} },
		TypeBlogElement:      func() Block { return &BlogElement{} },
		TypeHeaderElement:    func() Block { return &HeaderElement{} },
		TypeFooterElement:    func() Block { return &FooterElement{} },
		TypeParagraphElement: func() Block { return &ParagraphElement{} },
	}
)

// RegisterBlock makes DecodeBlock decode payloads tagged typeName into the
// Block returned by newBlock. It replaces any earlier registration.
func RegisterBlock(typeName string, newBlock func() Block) {
	blockTypesMu.Lock()
	defer blockTypesMu.Unlock()
	blockTypes[typeName] = newBlock
}

// DecodeBlock decodes a JSON block payload. A JSON null decodes to a nil
// Block; an unregistered type tag decodes to *UnknownBlock.
func DecodeBlock(data []byte) (Block, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	var meta BlockMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrap(err, "failed to decode block metadata")
	}

	blockTypesMu.RLock()
	newBlock, ok := blockTypes[meta.Typename]
	blockTypesMu.RUnlock()

	if !ok {
		unknown := &UnknownBlock{BlockMeta: meta}
		if err := json.Unmarshal(data, &unknown.Fields); err != nil {
			return nil, errors.Wrapf(err, "failed to decode %q block", meta.Typename)
		}
		return unknown, nil
	}

	block := newBlock()
	if err := json.Unmarshal(data, block); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %q block", meta.Typename)
	}
	return block, nil
}
