package visibility

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/slatehq/slate-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func file(id string, public bool) *domain.File {
	return &domain.File{ID: id, IsPublic: public}
}

func collection(id string, public bool, files ...string) *domain.Collection {
	return &domain.Collection{ID: id, IsPublic: public, FileIDs: files}
}

func TestResolve_FlagPrecedence(t *testing.T) {
	files := []*domain.File{file("f1", true)}
	colls := []*domain.Collection{collection("c1", false, "f1")}

	snap := Resolve(files, colls)

	assert.True(t, snap.IsPublic("f1"), "explicit flag wins regardless of membership")
}

func TestResolve_UnionSemantics(t *testing.T) {
	files := []*domain.File{file("f1", false), file("f2", false)}
	colls := []*domain.Collection{
		collection("c1", true, "f1"),
		collection("c2", false, "f1", "f2"),
	}

	snap := Resolve(files, colls)

	assert.True(t, snap.IsPublic("f1"), "one public collection is enough")
	assert.False(t, snap.IsPublic("f2"))
}

func TestResolve_NilEntriesIgnored(t *testing.T) {
	snap := Resolve([]*domain.File{nil, file("f1", false)}, []*domain.Collection{nil})
	assert.Equal(t, 1, snap.Len())
}

func TestResolve_DoesNotMutateInputs(t *testing.T) {
	files := []*domain.File{file("f1", false)}
	colls := []*domain.Collection{collection("c1", true, "f1")}

	Resolve(files, colls)

	assert.False(t, files[0].IsPublic)
	assert.Equal(t, []string{"f1"}, colls[0].FileIDs)
}

// randomLibrary builds a library with random flags and memberships.
func randomLibrary(r *rand.Rand) ([]*domain.File, []*domain.Collection) {
	files := make([]*domain.File, r.IntN(20))
	for i := range files {
		files[i] = file(fmt.Sprintf("f%d", i), r.IntN(4) == 0)
	}
	colls := make([]*domain.Collection, r.IntN(6))
	for i := range colls {
		c := collection(fmt.Sprintf("c%d", i), r.IntN(2) == 0)
		for _, f := range files {
			if r.IntN(3) == 0 {
				c.FileIDs = append(c.FileIDs, f.ID)
			}
		}
		colls[i] = c
	}
	return files, colls
}

func TestResolve_PartitionProperties(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))

	for iter := range 200 {
		files, colls := randomLibrary(r)
		snap := Resolve(files, colls)

		require.Equal(t, len(files), snap.Len(), "iteration %d", iter)
		for _, f := range files {
			_, inPublic := snap.Public[f.ID]
			_, inPrivate := snap.Private[f.ID]
			require.True(t, inPublic != inPrivate, "file %s must be in exactly one set", f.ID)

			viaCollection := slices.ContainsFunc(colls, func(c *domain.Collection) bool {
				return c.IsPublic && c.ContainsFile(f.ID)
			})
			require.Equal(t, f.IsPublic || viaCollection, inPublic)
		}
	}
}

func TestPublicFiles_KeepsOrder(t *testing.T) {
	files := []*domain.File{file("f3", true), file("f1", false), file("f2", false)}
	colls := []*domain.Collection{collection("c1", true, "f2")}

	got := PublicFiles(files, colls)

	require.Len(t, got, 2)
	assert.Equal(t, "f3", got[0].ID)
	assert.Equal(t, "f2", got[1].ID)
}

func TestDiff(t *testing.T) {
	files := []*domain.File{file("f1", false), file("f2", false), file("f3", true)}
	c := collection("c1", false, "f1", "f2", "f3")

	before := Resolve(files, []*domain.Collection{c})
	c.IsPublic = true
	after := Resolve(files, []*domain.Collection{c})

	delta := Diff(before, after)
	assert.Equal(t, []string{"f1", "f2"}, delta.ToAdd, "f3 was already public")
	assert.Empty(t, delta.ToRemove)

	back := Diff(after, before)
	assert.Equal(t, []string{"f1", "f2"}, back.ToRemove)
	assert.Empty(t, back.ToAdd)
}

func TestDiff_IdenticalSnapshotsAreEmpty(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	for range 50 {
		files, colls := randomLibrary(r)
		snap := Resolve(files, colls)
		assert.True(t, Diff(snap, snap).IsEmpty())
	}
}

func TestNoLongerPublic(t *testing.T) {
	got := NoLongerPublic([]string{"f1", "f2", "f3"}, []*domain.File{file("f2", true)})
	assert.Equal(t, []string{"f1", "f3"}, got)

	assert.Nil(t, NoLongerPublic([]string{"f1"}, []*domain.File{file("f1", true)}))
}
