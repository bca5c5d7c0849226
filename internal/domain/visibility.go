package domain

import (
	"maps"
	"slices"
)

// IndexOp is an instruction for the search index.
type IndexOp string

// Index operations.
const (
	IndexAdd    IndexOp = "ADD"
	IndexRemove IndexOp = "REMOVE"
	IndexEdit   IndexOp = "EDIT"
)

// Valid reports whether op is one of the known operations.
func (op IndexOp) Valid() bool {
	switch op {
	case IndexAdd, IndexRemove, IndexEdit:
		return true
	}
	return false
}

// VisibilitySnapshot partitions a set of files by effective visibility.
// Every file considered appears in exactly one of the two sets.
type VisibilitySnapshot struct {
	Public  map[string]struct{}
	Private map[string]struct{}
}

// NewVisibilitySnapshot returns an empty snapshot.
func NewVisibilitySnapshot() VisibilitySnapshot {
	return VisibilitySnapshot{
		Public:  make(map[string]struct{}),
		Private: make(map[string]struct{}),
	}
}

// IsPublic reports whether fileID is in the public set.
func (s VisibilitySnapshot) IsPublic(fileID string) bool {
	_, ok := s.Public[fileID]
	return ok
}

// PublicIDs returns the public file ids in sorted order.
func (s VisibilitySnapshot) PublicIDs() []string {
	return slices.Sorted(maps.Keys(s.Public))
}

// PrivateIDs returns the private file ids in sorted order.
func (s VisibilitySnapshot) PrivateIDs() []string {
	return slices.Sorted(maps.Keys(s.Private))
}

// Len returns the number of files in the snapshot.
func (s VisibilitySnapshot) Len() int {
	return len(s.Public) + len(s.Private)
}

// VisibilityDelta is the minimal change set for the index after a mutation.
type VisibilityDelta struct {
	ToAdd    []string `json:"to_add"`    // files that became publicly visible
	ToRemove []string `json:"to_remove"` // files that stopped being publicly visible
	ToUpdate []string `json:"to_update"` // collections whose public metadata changed
}

// IsEmpty reports whether the delta carries no work.
func (d VisibilityDelta) IsEmpty() bool {
	return len(d.ToAdd) == 0 && len(d.ToRemove) == 0 && len(d.ToUpdate) == 0
}

// CollectionEvent asks the index to apply Op to a collection document.
type CollectionEvent struct {
	Collection *Collection
	Op         IndexOp
}
