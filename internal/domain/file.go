package domain

import "slices"

// File is an uploaded object owned by a single user. It is publicly visible
// when IsPublic is set or when any collection listing it is public.
type File struct {
	Timestamps
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id"`
	Filename string `json:"filename"`
	CID      string `json:"cid,omitempty"`
	// Explicit per-file flag, independent of collection membership.
	IsPublic bool `json:"is_public"`
	// Collections listing this file. Kept in step with Collection.FileIDs.
	CollectionIDs []string `json:"collection_ids"`
}

// InCollection reports whether the file is listed by collectionID.
func (f *File) InCollection(collectionID string) bool {
	return slices.Contains(f.CollectionIDs, collectionID)
}

// AddCollection records membership, returning false if already present.
func (f *File) AddCollection(collectionID string) bool {
	if f.InCollection(collectionID) {
		return false
	}
	f.CollectionIDs = append(f.CollectionIDs, collectionID)
	return true
}

// RemoveCollection drops membership, returning false if absent.
func (f *File) RemoveCollection(collectionID string) bool {
	i := slices.Index(f.CollectionIDs, collectionID)
	if i < 0 {
		return false
	}
	f.CollectionIDs = slices.Delete(f.CollectionIDs, i, i+1)
	return true
}
