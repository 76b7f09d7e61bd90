// Package inmemory provides a content store that answers content queries
// from documents held in memory. It serves fixtures for offline runs and
// tests.
package inmemory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/contentx"
)

// Kind is the content shape a Document holds.
type Kind string

const (
	// KindExperience is a composed experience with a grid tree.
	KindExperience Kind = "experience"
	// KindPage is a city page whose fields carry a CityReference block.
	KindPage Kind = "page"
	// KindComponent is a standalone typed block.
	KindComponent Kind = "component"
)

// Document represents one content item in the in-memory store.
type Document struct {
	// ID is the content key.
	ID string `json:"id" yaml:"id"`
	// Version distinguishes saved versions of the same key.
	Version string `json:"version,omitempty" yaml:"version"`
	// URL is the public path the item is published at. Components have none.
	URL string `json:"url,omitempty" yaml:"url"`
	// Kind selects which query shapes the document appears in.
	Kind Kind `json:"kind" yaml:"kind"`
	// Fields contains the item exactly as the content API returns it.
	Fields map[string]interface{} `json:"fields" yaml:"fields"`
}

func (d Document) indexKey() string {
	return d.ID + "\x00" + d.Version
}

// Store implements contentx.Executor using an in-memory document list.
type Store struct {
	mu        sync.RWMutex
	documents []Document
	idIndex   map[string]int // maps document ID and version to index in documents slice
}

// New creates a new in-memory store.
// The store is ready to use and is safe for concurrent operations.
func New() *Store {
	return &Store{
		documents: make([]Document, 0),
		idIndex:   make(map[string]int),
	}
}

// AddDocument adds a document to the in-memory store.
// If a document with the same ID and version already exists, it will be updated.
// This method is safe for concurrent use.
func (s *Store) AddDocument(doc Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := doc.indexKey()
	if idx, exists := s.idIndex[key]; exists {
		s.documents[idx] = doc
	} else {
		s.idIndex[key] = len(s.documents)
		s.documents = append(s.documents, doc)
	}
}

// AddJSON adds a document whose fields are parsed from jsonData.
// This method is safe for concurrent use.
func (s *Store) AddJSON(kind Kind, id, version, url string, jsonData []byte) error {
	var fields map[string]interface{}
	if err := json.Unmarshal(jsonData, &fields); err != nil {
		return errors.Wrap(err, "failed to unmarshal JSON")
	}

	s.AddDocument(Document{
		ID:      id,
		Version: version,
		URL:     url,
		Kind:    kind,
		Fields:  fields,
	})
	return nil
}

// RemoveDocument removes every version of id from the in-memory store.
// Returns true if at least one document was removed.
// This method is safe for concurrent use.
func (s *Store) RemoveDocument(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.documents[:0]
	removed := false
	for _, doc := range s.documents {
		if doc.ID == id {
			removed = true
			continue
		}
		kept = append(kept, doc)
	}
	if !removed {
		return false
	}

	s.documents = kept
	s.idIndex = make(map[string]int, len(kept))
	for i, doc := range kept {
		s.idIndex[doc.indexKey()] = i
	}
	return true
}

// Clear removes all documents from the store.
// This method is safe for concurrent use.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.documents = make([]Document, 0)
	s.idIndex = make(map[string]int)
}

// Size returns the number of documents currently stored in the in-memory store.
// This method is safe for concurrent use.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}

// Execute implements contentx.Executor. It dispatches on the query name and
// answers with the same response shape the content API would.
func (s *Store) Execute(ctx context.Context, query contentx.Query, vars contentx.Variables) (*contentx.RawResult, error) {
	if err := contentx.ContextError(ctx.Err()); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var data map[string]any
	switch query.Name {
	case contentx.QueryNameDefault:
		docs := s.latest(func(doc Document) bool { return vars.URL != "" && doc.URL == vars.URL })
		data = pageResponse(docs)
	case contentx.QueryNamePreview:
		docs := s.versioned(vars.Key, vars.Version)
		data = pageResponse(docs)
	case contentx.QueryNameSearch:
		items, err := s.search(ctx, vars.SearchQuery)
		if err != nil {
			return nil, err
		}
		data = map[string]any{"_Component": map[string]any{"items": items}}
	case contentx.QueryNameCities:
		var items []any
		for _, doc := range s.latest(func(doc Document) bool { return doc.Kind == KindComponent }) {
			if doc.Fields["__typename"] == contentx.TypeCityBlock {
				items = append(items, withMetadata(doc))
			}
		}
		data = map[string]any{"_Content": map[string]any{"items": nonNil(items)}}
	default:
		return nil, errors.WithSecondaryError(
			contentx.ErrUnsupportedQuery,
			errors.Newf("in-memory store cannot answer query %q", query.Name),
		)
	}

	return decodeResponse(data)
}

// latest returns the newest version of every key whose newest version
// satisfies match, in insertion order.
func (s *Store) latest(match func(Document) bool) []Document {
	newest := make(map[string]int)
	var order []string
	for i, doc := range s.documents {
		idx, seen := newest[doc.ID]
		if !seen {
			order = append(order, doc.ID)
			newest[doc.ID] = i
			continue
		}
		if s.compareValues(doc.Version, s.documents[idx].Version) >= 0 {
			newest[doc.ID] = i
		}
	}

	var docs []Document
	for _, id := range order {
		doc := s.documents[newest[id]]
		if match(doc) {
			docs = append(docs, doc)
		}
	}
	return docs
}

// versioned returns the document with key and version. An empty version
// selects the newest one.
func (s *Store) versioned(key, version string) []Document {
	if key == "" {
		return nil
	}
	if version == "" {
		return s.latest(func(doc Document) bool { return doc.ID == key })
	}
	idx, ok := s.idIndex[Document{ID: key, Version: version}.indexKey()]
	if !ok {
		return nil
	}
	return []Document{s.documents[idx]}
}

func pageResponse(docs []Document) map[string]any {
	var experiences, pages []any
	for _, doc := range docs {
		switch doc.Kind {
		case KindExperience:
			experiences = append(experiences, withMetadata(doc))
		case KindPage:
			pages = append(pages, doc.Fields)
		}
	}
	return map[string]any{
		"_Experience": map[string]any{"items": nonNil(experiences)},
		"CityPage":    map[string]any{"items": nonNil(pages)},
	}
}

// withMetadata returns the document's fields with _metadata filled from
// its ID and version when the fixture left them out.
func withMetadata(doc Document) map[string]interface{} {
	if _, ok := doc.Fields["_metadata"]; ok {
		return doc.Fields
	}
	fields := make(map[string]interface{}, len(doc.Fields)+1)
	for k, v := range doc.Fields {
		fields[k] = v
	}
	fields["_metadata"] = map[string]interface{}{"key": doc.ID, "version": doc.Version}
	return fields
}

func nonNil(items []any) []any {
	if items == nil {
		return []any{}
	}
	return items
}

func decodeResponse(data map[string]any) (*contentx.RawResult, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode in-memory response")
	}
	var result contentx.RawResult
	if err := json.Unmarshal(b, &result); err != nil {
		return nil, errors.Wrap(err, "failed to decode in-memory response")
	}
	return &result, nil
}

type scoredDocument struct {
	document Document
	score    float64
}

// search scores the newest version of every component against query and
// returns matches best first. An empty query matches nothing.
func (s *Store) search(ctx context.Context, query string) ([]any, error) {
	items := []any{}
	if strings.TrimSpace(query) == "" {
		return items, nil
	}

	var matches []scoredDocument
	for _, doc := range s.latest(func(doc Document) bool { return doc.Kind == KindComponent }) {
		select {
		case <-ctx.Done():
			return nil, contentx.ErrCanceled
		default:
		}

		score := s.scoreDocument(doc, query)
		if score > 0 {
			matches = append(matches, scoredDocument{document: doc, score: score})
		}
	}

	s.sortMatches(matches)
	for _, m := range matches {
		items = append(items, withMetadata(m.document))
	}
	return items, nil
}

// scoreDocument calculates the relevance score for a document based on the query.
// Fields whose name starts with an underscore are system fields and are not searched.
func (s *Store) scoreDocument(doc Document, query string) float64 {
	if query == "" {
		return 1.0
	}

	query = strings.ToLower(query)
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return 1.0
	}

	score := 0.0
	matchedTerms := 0

	for _, term := range terms {
		termMatched := false
		for name, value := range doc.Fields {
			if strings.HasPrefix(name, "_") {
				continue
			}
			if s.valueContainsTerm(value, term) {
				termMatched = true
				score += 1.0
			}
		}
		if termMatched {
			matchedTerms++
		}
	}

	if matchedTerms == 0 {
		return 0
	}

	// Boost score if all terms matched
	if matchedTerms == len(terms) {
		score *= 1.5
	}

	return score
}

// valueContainsTerm checks if a value contains the search term.
func (s *Store) valueContainsTerm(value interface{}, term string) bool {
	switch v := value.(type) {
	case string:
		return strings.Contains(strings.ToLower(v), term)
	case []interface{}:
		for _, item := range v {
			if s.valueContainsTerm(item, term) {
				return true
			}
		}
	case map[string]interface{}:
		for _, item := range v {
			if s.valueContainsTerm(item, term) {
				return true
			}
		}
	case nil:
		return false
	default:
		str := fmt.Sprintf("%v", v)
		return strings.Contains(strings.ToLower(str), term)
	}
	return false
}

// sortMatches orders matches by score descending, then by Title.
// The store has no semantic index, so every ranking sorts the same way.
func (s *Store) sortMatches(matches []scoredDocument) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return s.compareValues(matches[i].document.Fields["Title"], matches[j].document.Fields["Title"]) < 0
	})
}

// compareValues compares two values for sorting.
func (s *Store) compareValues(v1, v2 interface{}) int {
	if v1 == nil && v2 == nil {
		return 0
	}
	if v1 == nil {
		return -1
	}
	if v2 == nil {
		return 1
	}

	// Try to compare as numbers
	if f1, ok1 := toFloat64(v1); ok1 {
		if f2, ok2 := toFloat64(v2); ok2 {
			if f1 < f2 {
				return -1
			} else if f1 > f2 {
				return 1
			}
			return 0
		}
	}

	s1 := fmt.Sprintf("%v", v1)
	s2 := fmt.Sprintf("%v", v2)
	return strings.Compare(s1, s2)
}
