package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestTransition(t *testing.T) {
	tests := []struct {
		name string
		from Privacy
		to   Privacy
		want PrivacyTransition
	}{
		{"private to public", PrivacyPrivate, PrivacyPublic, TransitionPublished},
		{"public to private", PrivacyPublic, PrivacyPrivate, TransitionUnpublished},
		{"private stays private", PrivacyPrivate, PrivacyPrivate, TransitionNone},
		{"public stays public", PrivacyPublic, PrivacyPublic, TransitionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Transition(tt.from, tt.to))
		})
	}
}

func TestPrivacyTransition_CollectionOp(t *testing.T) {
	tests := []struct {
		name     string
		tr       PrivacyTransition
		after    Privacy
		metadata bool
		wantOp   IndexOp
		wantOK   bool
	}{
		{"published adds", TransitionPublished, PrivacyPublic, false, IndexAdd, true},
		{"published with rename still adds", TransitionPublished, PrivacyPublic, true, IndexAdd, true},
		{"unpublished removes", TransitionUnpublished, PrivacyPrivate, true, IndexRemove, true},
		{"public edit", TransitionNone, PrivacyPublic, true, IndexEdit, true},
		{"public untouched", TransitionNone, PrivacyPublic, false, "", false},
		{"private edit stays out of the index", TransitionNone, PrivacyPrivate, true, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, ok := tt.tr.CollectionOp(tt.after, tt.metadata)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantOp, op)
		})
	}
}

func TestPrivacyOf(t *testing.T) {
	assert.Equal(t, PrivacyPublic, PrivacyOf(true))
	assert.Equal(t, PrivacyPrivate, PrivacyOf(false))
	assert.Equal(t, "public", PrivacyPublic.String())
	assert.Equal(t, "private", Privacy(0).String())
}

func TestCollection_Membership(t *testing.T) {
	c := &Collection{}

	assert.True(t, c.AddFile("file-a"))
	assert.False(t, c.AddFile("file-a"), "re-adding is a no-op")
	assert.True(t, c.ContainsFile("file-a"))
	assert.True(t, c.RemoveFile("file-a"))
	assert.False(t, c.RemoveFile("file-a"))
	assert.Empty(t, c.FileIDs)
}

func TestFile_Membership(t *testing.T) {
	f := &File{}

	assert.True(t, f.AddCollection("coll-a"))
	assert.False(t, f.AddCollection("coll-a"))
	assert.True(t, f.InCollection("coll-a"))
	assert.True(t, f.RemoveCollection("coll-a"))
	assert.False(t, f.InCollection("coll-a"))
}

func TestCollectionPatch(t *testing.T) {
	c := &Collection{Name: "Trip", Body: "notes", IsPublic: false}

	assert.True(t, CollectionPatch{}.IsEmpty())
	assert.False(t, CollectionPatch{Name: ptr("Trip")}.MetadataChanges(c))
	assert.True(t, CollectionPatch{Name: ptr("Trip 2")}.MetadataChanges(c))
	assert.True(t, CollectionPatch{Body: ptr("")}.MetadataChanges(c))
	assert.Equal(t, PrivacyPrivate, CollectionPatch{}.PrivacyTarget(c.Privacy()))
	assert.Equal(t, PrivacyPublic, CollectionPatch{IsPublic: ptr(true)}.PrivacyTarget(c.Privacy()))
}

func TestVisibilityDelta_IsEmpty(t *testing.T) {
	assert.True(t, VisibilityDelta{}.IsEmpty())
	assert.False(t, VisibilityDelta{ToRemove: []string{"file-a"}}.IsEmpty())
	assert.False(t, VisibilityDelta{ToUpdate: []string{"coll-a"}}.IsEmpty())
}

func TestVisibilitySnapshot_SortedIDs(t *testing.T) {
	s := NewVisibilitySnapshot()
	s.Public["b"] = struct{}{}
	s.Public["a"] = struct{}{}
	s.Private["c"] = struct{}{}

	assert.Equal(t, []string{"a", "b"}, s.PublicIDs())
	assert.Equal(t, []string{"c"}, s.PrivateIDs())
	assert.True(t, s.IsPublic("a"))
	assert.False(t, s.IsPublic("c"))
	assert.Equal(t, 3, s.Len())
}

func TestIndexOp_Valid(t *testing.T) {
	assert.True(t, IndexEdit.Valid())
	assert.False(t, IndexOp("UPSERT").Valid())
}
