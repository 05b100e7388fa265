package store

import "encoding/base64"

// Page size bounds.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500
)

// PaginationParams selects one page of a listing.
type PaginationParams struct {
	Limit  int    // items per page
	Cursor string // opaque; empty for the first page
}

// PaginatedResult is one page of T.
type PaginatedResult[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
	Total      int    `json:"total"`
}

// Normalize clamps Limit into [1, MaxPageLimit], using the default for 0.
func (p *PaginationParams) Normalize() {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
}

// EncodeCursor wraps the last returned key into an opaque cursor.
func EncodeCursor(key string) string {
	if key == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

// DecodeCursor unwraps a cursor produced by EncodeCursor.
func DecodeCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", ErrInvalidInput.WithMessage("invalid cursor").WithCause(err)
	}
	return string(decoded), nil
}

// Paginate builds a page from up to limit+1 items sorted by key, all of them
// after the cursor key. The extra item only signals that more remain.
func Paginate[T any](items []T, total int, limit int, key func(T) string) PaginatedResult[T] {
	res := PaginatedResult[T]{Items: items, Total: total}
	if len(items) > limit {
		res.Items = items[:limit]
		res.HasMore = true
		res.NextCursor = EncodeCursor(key(res.Items[limit-1]))
	}
	if res.Items == nil {
		res.Items = []T{}
	}
	return res
}
