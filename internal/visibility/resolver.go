// Package visibility computes effective file visibility from explicit file
// flags and collection membership.
//
// A file is publicly visible when its own flag is set or when at least one
// collection listing it is public. Everything here is pure: inputs are never
// mutated and results depend only on the arguments.
package visibility

import (
	"github.com/slatehq/slate-server/internal/domain"
)

// Resolve partitions files into public and private by effective visibility.
// collections need not be limited to the collections of files; only public
// ones matter.
func Resolve(files []*domain.File, collections []*domain.Collection) domain.VisibilitySnapshot {
	viaCollection := publicMembers(collections)

	snap := domain.NewVisibilitySnapshot()
	for _, f := range files {
		if f == nil {
			continue
		}
		if f.IsPublic || viaCollection[f.ID] {
			snap.Public[f.ID] = struct{}{}
		} else {
			snap.Private[f.ID] = struct{}{}
		}
	}
	return snap
}

// PublicFiles returns the subset of files that are publicly visible, keeping
// input order.
func PublicFiles(files []*domain.File, collections []*domain.Collection) []*domain.File {
	snap := Resolve(files, collections)
	out := make([]*domain.File, 0, len(snap.Public))
	for _, f := range files {
		if f != nil && snap.IsPublic(f.ID) {
			out = append(out, f)
		}
	}
	return out
}

// Diff returns the files that changed side between two snapshots. Files that
// appear in only one snapshot count as private in the other.
func Diff(before, after domain.VisibilitySnapshot) domain.VisibilityDelta {
	var delta domain.VisibilityDelta
	for _, id := range after.PublicIDs() {
		if !before.IsPublic(id) {
			delta.ToAdd = append(delta.ToAdd, id)
		}
	}
	for _, id := range before.PublicIDs() {
		if !after.IsPublic(id) {
			delta.ToRemove = append(delta.ToRemove, id)
		}
	}
	return delta
}

// NoLongerPublic returns the members absent from stillPublic, keeping input
// order. It is the recompute step after a collection turns private.
func NoLongerPublic(members []string, stillPublic []*domain.File) []string {
	keep := make(map[string]struct{}, len(stillPublic))
	for _, f := range stillPublic {
		keep[f.ID] = struct{}{}
	}

	var out []string
	for _, id := range members {
		if _, ok := keep[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func publicMembers(collections []*domain.Collection) map[string]bool {
	out := make(map[string]bool)
	for _, c := range collections {
		if c == nil || !c.IsPublic {
			continue
		}
		for _, id := range c.FileIDs {
			out[id] = true
		}
	}
	return out
}
