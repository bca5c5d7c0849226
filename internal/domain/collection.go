package domain

import "slices"

// MaxCollectionNameLength is the longest accepted display name, in characters.
const MaxCollectionNameLength = 48

// Collection (historically a "slate") groups files under one owner. Its
// privacy propagates to every member: files listed by a public collection are
// publicly visible. New collections start empty and private.
type Collection struct {
	Timestamps
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
	// Slug is derived from Name and unique per owner.
	Slug     string   `json:"slug"`
	Body     string   `json:"body,omitempty"`
	IsPublic bool     `json:"is_public"`
	FileIDs  []string `json:"file_ids"`
}

// Privacy returns the collection's privacy state.
func (c *Collection) Privacy() Privacy {
	return PrivacyOf(c.IsPublic)
}

// ContainsFile reports whether fileID is a member.
func (c *Collection) ContainsFile(fileID string) bool {
	return slices.Contains(c.FileIDs, fileID)
}

// AddFile adds a member, returning false if already present.
func (c *Collection) AddFile(fileID string) bool {
	if c.ContainsFile(fileID) {
		return false
	}
	c.FileIDs = append(c.FileIDs, fileID)
	return true
}

// RemoveFile drops a member, returning false if absent.
func (c *Collection) RemoveFile(fileID string) bool {
	i := slices.Index(c.FileIDs, fileID)
	if i < 0 {
		return false
	}
	c.FileIDs = slices.Delete(c.FileIDs, i, i+1)
	return true
}

// CollectionPatch is a partial update. Nil fields were not provided.
type CollectionPatch struct {
	IsPublic *bool
	Name     *string
	Body     *string
}

// IsEmpty reports whether the patch carries no field at all.
func (p CollectionPatch) IsEmpty() bool {
	return p.IsPublic == nil && p.Name == nil && p.Body == nil
}

// MetadataChanges reports whether applying p to c would change name or body.
func (p CollectionPatch) MetadataChanges(c *Collection) bool {
	return (p.Name != nil && *p.Name != c.Name) || (p.Body != nil && *p.Body != c.Body)
}

// PrivacyTarget returns the privacy requested by p, defaulting to current.
func (p CollectionPatch) PrivacyTarget(current Privacy) Privacy {
	if p.IsPublic == nil {
		return current
	}
	return PrivacyOf(*p.IsPublic)
}
