package store

import (
	"encoding/base64"
	"fmt"
	"slices"
	"strings"
)

// Page size bounds.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500
)

// PaginationParams contains pagination request parameters.
type PaginationParams struct {
	Limit  int    // Items per page, clamped to [1, MaxPageLimit]
	Cursor string // Opaque cursor for the next page, empty for the first
}

// PaginatedResult contains one page of items.
type PaginatedResult[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"` // Empty if no more pages
	HasMore    bool   `json:"has_more"`
	Total      int    `json:"total"`
}

// Validate clamps Limit into range.
func (p *PaginationParams) Validate() {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
}

// EncodeCursor creates an opaque cursor from the last key of a page.
func EncodeCursor(key string) string {
	if key == "" {
		return ""
	}
	return base64.URLEncoding.EncodeToString([]byte(key))
}

// DecodeCursor decodes a cursor back to a key.
func DecodeCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return "", fmt.Errorf("invalid cursor: %w", err)
	}

	return string(decoded), nil
}

// Paginate sorts items by keyOf and returns the page following params.Cursor.
func Paginate[T any](items []T, keyOf func(T) string, params PaginationParams) (*PaginatedResult[T], error) {
	params.Validate()

	after, err := DecodeCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	sorted := slices.SortedFunc(slices.Values(items), func(a, b T) int {
		return strings.Compare(keyOf(a), keyOf(b))
	})

	start := 0
	if after != "" {
		start, _ = slices.BinarySearchFunc(sorted, after, func(item T, key string) int {
			return strings.Compare(keyOf(item), key)
		})
		if start < len(sorted) && keyOf(sorted[start]) == after {
			start++
		}
	}

	end := min(start+params.Limit, len(sorted))
	result := &PaginatedResult[T]{
		Items: make([]T, 0, end-start),
		Total: len(sorted),
	}
	result.Items = append(result.Items, sorted[start:end]...)
	if end < len(sorted) {
		result.HasMore = true
		result.NextCursor = EncodeCursor(keyOf(sorted[end-1]))
	}
	return result, nil
}
