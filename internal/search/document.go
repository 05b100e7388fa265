// Package search provides full-text book search using Bleve.
package search

import (
	"github.com/booksy/booksy-server/internal/domain"
	"github.com/booksy/booksy-server/internal/ebook"
)

// BookDocument is the indexed form of a book.
type BookDocument struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Author      string `json:"author,omitempty"`
	Description string `json:"description,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
	Language    string `json:"language,omitempty"`
	ISBN        string `json:"isbn,omitempty"`
	Active      bool   `json:"active"`
	HasContent  bool   `json:"has_content"`
	TotalPages  int    `json:"total_pages,omitempty"`
	CreatedAt   int64  `json:"created_at"` // Unix millis
}

// NewBookDocument converts a stored book into its index document.
// Title and author are accent folded so "Les Misérables" matches "miserables".
func NewBookDocument(b *domain.Book) *BookDocument {
	return &BookDocument{
		ID:          b.ID,
		Title:       ebook.FoldAccents(b.Title),
		Author:      ebook.FoldAccents(b.Author),
		Description: b.Description,
		Publisher:   b.Publisher,
		Language:    b.Language,
		ISBN:        b.ISBN,
		Active:      b.Active,
		HasContent:  b.HasContent(),
		TotalPages:  b.TotalPages,
		CreatedAt:   b.CreatedAt.UnixMilli(),
	}
}

// toMap converts the document to a map keyed by the mapping's field names.
func (d *BookDocument) toMap() map[string]any {
	m := map[string]any{
		"id":          d.ID,
		"title":       d.Title,
		"active":      d.Active,
		"has_content": d.HasContent,
		"created_at":  d.CreatedAt,
	}
	if d.Author != "" {
		m["author"] = d.Author
	}
	if d.Description != "" {
		m["description"] = d.Description
	}
	if d.Publisher != "" {
		m["publisher"] = d.Publisher
	}
	if d.Language != "" {
		m["language"] = d.Language
	}
	if d.ISBN != "" {
		m["isbn"] = d.ISBN
	}
	if d.TotalPages > 0 {
		m["total_pages"] = d.TotalPages
	}
	return m
}
