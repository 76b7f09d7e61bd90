// Package preview keeps a rendered page in sync with content edits made in
// the CMS editor. Save notifications arrive on a Channel, bursts are
// debounced by a Listener, and the listener refetches the page's query with
// the saved version.
package preview

import "strings"

// versionDelimiter separates the content id from its version in a content link.
const versionDelimiter = "_"

// ContentSavedEvent is the payload the editor sends after a save.
type ContentSavedEvent struct {
	ContentLink string             `json:"contentLink"`
	PreviewURL  string             `json:"previewUrl,omitempty"`
	IsIndexed   bool               `json:"isIndexed"`
	Properties  []PropertySaveInfo `json:"properties,omitempty"`
	ParentID    string             `json:"parentId,omitempty"`
	SectionID   string             `json:"sectionId,omitempty"`
}

// PropertySaveInfo reports whether one edited property was saved.
type PropertySaveInfo struct {
	Name       string `json:"name"`
	Successful bool   `json:"successful"`
}

// Version returns the version suffix of the event's content link.
func (e ContentSavedEvent) Version() (string, bool) {
	return ParseVersion(e.ContentLink)
}

// ParseVersion returns the part of contentLink after its last underscore.
// It reports false when there is no underscore or nothing follows it.
func ParseVersion(contentLink string) (string, bool) {
	i := strings.LastIndex(contentLink, versionDelimiter)
	if i < 0 || i == len(contentLink)-len(versionDelimiter) {
		return "", false
	}
	return contentLink[i+len(versionDelimiter):], true
}
