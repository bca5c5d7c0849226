package store

import (
	"context"
	"os"
	"testing"

	"github.com/slatehq/slate-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a store in a temporary directory.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "slate-store-test-*")
	require.NoError(t, err)

	s, err := New(Options{Path: tmpDir})
	require.NoError(t, err)

	cleanup := func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	}
	return s, cleanup
}

func mustCreateFile(t *testing.T, s *Store, id, owner string, public bool) *domain.File {
	t.Helper()
	f := &domain.File{ID: id, OwnerID: owner, Filename: id + ".jpg", IsPublic: public}
	require.NoError(t, s.CreateFile(context.Background(), f))
	return f
}

func mustCreateCollection(t *testing.T, s *Store, id, owner, slug string, public bool) *domain.Collection {
	t.Helper()
	c := &domain.Collection{ID: id, OwnerID: owner, Name: slug, Slug: slug, IsPublic: public}
	require.NoError(t, s.CreateCollection(context.Background(), c))
	return c
}

func TestStore_CreateAndGetCollection(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	mustCreateCollection(t, s, "coll-1", "user-a", "trip", false)

	got, files, err := s.GetCollection(ctx, "coll-1", true)
	require.NoError(t, err)
	assert.Equal(t, "trip", got.Slug)
	assert.False(t, got.IsPublic)
	assert.Empty(t, got.FileIDs)
	assert.Empty(t, files)
	assert.False(t, got.CreatedAt.IsZero())

	_, _, err = s.GetCollection(ctx, "coll-missing", false)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SlugUniquePerOwner(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	mustCreateCollection(t, s, "coll-1", "user-a", "trip", false)

	err := s.CreateCollection(ctx, &domain.Collection{ID: "coll-2", OwnerID: "user-a", Slug: "trip"})
	assert.ErrorIs(t, err, ErrSlugTaken)

	// Another owner may use the same slug.
	mustCreateCollection(t, s, "coll-3", "user-b", "trip", false)

	got, err := s.GetCollectionBySlug(ctx, "user-b", "trip")
	require.NoError(t, err)
	assert.Equal(t, "coll-3", got.ID)
}

func TestStore_UpdateCollectionMovesSlug(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	mustCreateCollection(t, s, "coll-1", "user-a", "trip", false)

	name, slug := "Road Trip", "road-trip"
	updated, err := s.UpdateCollection(ctx, "coll-1", CollectionUpdate{Name: &name, Slug: &slug})
	require.NoError(t, err)
	assert.Equal(t, "Road Trip", updated.Name)

	_, err = s.GetCollectionBySlug(ctx, "user-a", "trip")
	assert.ErrorIs(t, err, ErrCollectionNotFound, "old slug released")

	got, err := s.GetCollectionBySlug(ctx, "user-a", "road-trip")
	require.NoError(t, err)
	assert.Equal(t, "coll-1", got.ID)

	// Released slug is reusable.
	mustCreateCollection(t, s, "coll-2", "user-a", "trip", false)

	// Taking an occupied slug fails and leaves the record unchanged.
	taken := "trip"
	_, err = s.UpdateCollection(ctx, "coll-1", CollectionUpdate{Slug: &taken})
	assert.ErrorIs(t, err, ErrSlugTaken)
	got, _, err = s.GetCollection(ctx, "coll-1", false)
	require.NoError(t, err)
	assert.Equal(t, "road-trip", got.Slug)
}

func TestStore_UpdateCollectionPrivacy(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	before := mustCreateCollection(t, s, "coll-1", "user-a", "trip", false)

	updated, err := s.UpdateCollectionPrivacy(ctx, "coll-1", true)
	require.NoError(t, err)
	assert.True(t, updated.IsPublic)
	assert.True(t, !updated.UpdatedAt.Before(before.UpdatedAt))

	_, err = s.UpdateCollectionPrivacy(ctx, "coll-nope", true)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestStore_Membership(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	mustCreateCollection(t, s, "coll-1", "user-a", "trip", false)
	mustCreateFile(t, s, "file-1", "user-a", false)

	added, err := s.AddFileToCollection(ctx, "coll-1", "file-1")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.AddFileToCollection(ctx, "coll-1", "file-1")
	require.NoError(t, err)
	assert.False(t, added, "re-adding is a no-op")

	coll, files, err := s.GetCollection(ctx, "coll-1", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"file-1"}, coll.FileIDs)
	require.Len(t, files, 1)
	assert.Equal(t, []string{"coll-1"}, files[0].CollectionIDs)

	removed, err := s.RemoveFileFromCollection(ctx, "coll-1", "file-1")
	require.NoError(t, err)
	assert.True(t, removed)

	f, err := s.GetFile(ctx, "file-1")
	require.NoError(t, err)
	assert.Empty(t, f.CollectionIDs)
}

func TestStore_MembershipRejectsForeignFile(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	mustCreateCollection(t, s, "coll-1", "user-a", "trip", false)
	mustCreateFile(t, s, "file-1", "user-b", false)

	_, err := s.AddFileToCollection(ctx, "coll-1", "file-1")
	assert.ErrorIs(t, err, ErrOwnerMismatch)

	_, err = s.AddFileToCollection(ctx, "coll-1", "file-missing")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestStore_GetFilesByIDsPublicOnly(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	mustCreateCollection(t, s, "coll-pub", "user-a", "pub", true)
	mustCreateCollection(t, s, "coll-priv", "user-a", "priv", false)
	mustCreateFile(t, s, "file-flag", "user-a", true)
	mustCreateFile(t, s, "file-member", "user-a", false)
	mustCreateFile(t, s, "file-private", "user-a", false)

	_, err := s.AddFileToCollection(ctx, "coll-pub", "file-member")
	require.NoError(t, err)
	_, err = s.AddFileToCollection(ctx, "coll-priv", "file-private")
	require.NoError(t, err)

	ids := []string{"file-flag", "file-member", "file-private", "file-unknown"}

	all, err := s.GetFilesByIDs(ctx, ids, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	public, err := s.GetFilesByIDs(ctx, ids, true)
	require.NoError(t, err)
	var got []string
	for _, f := range public {
		got = append(got, f.ID)
	}
	assert.Equal(t, []string{"file-flag", "file-member"}, got)
}

func TestStore_DeleteCollectionDropsMembership(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	mustCreateCollection(t, s, "coll-1", "user-a", "trip", true)
	mustCreateFile(t, s, "file-1", "user-a", false)
	_, err := s.AddFileToCollection(ctx, "coll-1", "file-1")
	require.NoError(t, err)

	deleted, err := s.DeleteCollection(ctx, "coll-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"file-1"}, deleted.FileIDs)

	f, err := s.GetFile(ctx, "file-1")
	require.NoError(t, err)
	assert.Empty(t, f.CollectionIDs)

	_, err = s.GetCollectionBySlug(ctx, "user-a", "trip")
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestStore_LoadLibraryScopedToOwner(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	mustCreateCollection(t, s, "coll-1", "user-a", "trip", false)
	mustCreateFile(t, s, "file-1", "user-a", false)
	mustCreateFile(t, s, "file-2", "user-a", true)
	// Owner whose id extends user-a must not leak into its listing.
	mustCreateFile(t, s, "file-3", "user-a:x", false)

	lib, err := s.LoadLibrary(ctx, "user-a")
	require.NoError(t, err)
	assert.Len(t, lib.Files, 2)
	assert.Len(t, lib.Collections, 1)

	files, err := s.ListFilesByOwner(ctx, "user-a:x")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "file-3", files[0].ID)
}

func TestStore_ListOwners(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	owners, err := s.ListOwners(ctx)
	require.NoError(t, err)
	assert.Empty(t, owners)

	mustCreateFile(t, s, "file-1", "user-b", false)
	mustCreateFile(t, s, "file-2", "user-b", true)
	mustCreateCollection(t, s, "coll-1", "user-a", "trip", false)
	mustCreateCollection(t, s, "coll-2", "user-c", "notes", true)

	owners, err = s.ListOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"user-a", "user-b", "user-c"}, owners)
}

func TestStore_SetFilePublic(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	mustCreateFile(t, s, "file-1", "user-a", false)

	f, err := s.SetFilePublic(ctx, "file-1", true)
	require.NoError(t, err)
	assert.True(t, f.IsPublic)

	_, err = s.SetFilePublic(ctx, "file-x", true)
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestStore_InMemory(t *testing.T) {
	s, err := New(Options{InMemory: true})
	require.NoError(t, err)
	defer s.Close()

	mustCreateFile(t, s, "file-1", "user-a", false)
	_, err = s.GetFile(context.Background(), "file-1")
	assert.NoError(t, err)
}
