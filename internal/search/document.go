// Package search maintains the bleve index of publicly visible files and
// collections. Presence of a document means "publicly listed"; private
// content is never indexed.
package search

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/slatehq/slate-server/internal/domain"
)

// DocType discriminates documents in the shared index.
type DocType string

// Document types.
const (
	DocTypeFile       DocType = "file"
	DocTypeCollection DocType = "collection"
)

// SearchDocument is the indexed form of a file or collection.
type SearchDocument struct {
	ID      string  `json:"id"`
	Type    DocType `json:"type"`
	OwnerID string  `json:"owner_id"`

	// File: filename, Collection: display name.
	Name string `json:"name"`

	// Collection only.
	Slug string `json:"slug,omitempty"`
	Body string `json:"body,omitempty"`

	// File only.
	CID string `json:"cid,omitempty"`

	CreatedAt int64 `json:"created_at"` // Unix millis
	UpdatedAt int64 `json:"updated_at"` // Unix millis
}

// ToMap converts the document to the lowercase field names of the mapping.
func (d *SearchDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"type":       string(d.Type),
		"owner_id":   d.OwnerID,
		"name":       d.Name,
		"created_at": d.CreatedAt,
		"updated_at": d.UpdatedAt,
	}
	if d.Slug != "" {
		m["slug"] = d.Slug
	}
	if d.Body != "" {
		m["body"] = d.Body
	}
	if d.CID != "" {
		m["cid"] = d.CID
	}
	return m
}

// FileToSearchDocument converts a file to its document.
func FileToSearchDocument(f *domain.File) *SearchDocument {
	return &SearchDocument{
		ID:        f.ID,
		Type:      DocTypeFile,
		OwnerID:   f.OwnerID,
		Name:      f.Filename,
		CID:       f.CID,
		CreatedAt: f.CreatedAt.UnixMilli(),
		UpdatedAt: f.UpdatedAt.UnixMilli(),
	}
}

// CollectionToSearchDocument converts a collection to its document. Rich
// text bodies are stored as markdown.
func CollectionToSearchDocument(c *domain.Collection) *SearchDocument {
	return &SearchDocument{
		ID:        c.ID,
		Type:      DocTypeCollection,
		OwnerID:   c.OwnerID,
		Name:      c.Name,
		Slug:      c.Slug,
		Body:      bodyText(c.Body),
		CreatedAt: c.CreatedAt.UnixMilli(),
		UpdatedAt: c.UpdatedAt.UnixMilli(),
	}
}

var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote|img)[\s>/]`)

// bodyText returns s converted to markdown when it looks like HTML.
func bodyText(s string) string {
	if s == "" || !htmlTagPattern.MatchString(strings.ToLower(s)) {
		return s
	}
	markdown, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(markdown)
}
