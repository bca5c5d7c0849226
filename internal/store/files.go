package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/slatehq/slate-server/internal/domain"
	"github.com/slatehq/slate-server/internal/visibility"
)

// Library is everything one owner has: all files and all collections.
type Library struct {
	Files       []*domain.File
	Collections []*domain.Collection
}

// CreateFile stores a new file. Membership must be established through
// AddFileToCollection.
func (s *Store) CreateFile(ctx context.Context, f *domain.File) error {
	f.CollectionIDs = []string{}
	if f.CreatedAt.IsZero() {
		f.InitTimestamps()
	}
	return s.Files.Create(ctx, f)
}

// GetFile loads a file by id.
func (s *Store) GetFile(ctx context.Context, id string) (*domain.File, error) {
	f, err := s.Files.Get(ctx, id)
	if err != nil {
		return nil, translateFileErr(err)
	}
	return f, nil
}

// GetFilesByIDs loads the given files, skipping unknown ids. With publicOnly
// set only files whose effective visibility is public are returned, judged
// against the collections as stored at read time.
func (s *Store) GetFilesByIDs(ctx context.Context, ids []string, publicOnly bool) ([]*domain.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []*domain.File
	err := s.db.View(func(txn *badger.Txn) error {
		files, err := s.Files.getManyTxn(txn, ids)
		if err != nil {
			return err
		}
		if !publicOnly {
			out = files
			return nil
		}

		var collIDs []string
		for _, f := range files {
			for _, cid := range f.CollectionIDs {
				if !slices.Contains(collIDs, cid) {
					collIDs = append(collIDs, cid)
				}
			}
		}
		colls, err := s.Collections.getManyTxn(txn, collIDs)
		if err != nil {
			return err
		}
		out = visibility.PublicFiles(files, colls)
		return nil
	})
	return out, err
}

// ListFilesByOwner returns every file of ownerID.
func (s *Store) ListFilesByOwner(ctx context.Context, ownerID string) ([]*domain.File, error) {
	return s.Files.ListByIndex(ctx, indexOwner, ownerID)
}

// LoadLibrary reads all of an owner's files and collections from one
// consistent view.
func (s *Store) LoadLibrary(ctx context.Context, ownerID string) (*Library, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lib := &Library{}
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		if lib.Files, err = s.Files.listByIndexTxn(txn, indexOwner, ownerID); err != nil {
			return fmt.Errorf("list files: %w", err)
		}
		if lib.Collections, err = s.Collections.listByIndexTxn(txn, indexOwner, ownerID); err != nil {
			return fmt.Errorf("list collections: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lib, nil
}

// ListOwners returns every owner holding at least one file or collection,
// sorted.
func (s *Store) ListOwners(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for f, err := range s.Files.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list files: %w", err)
		}
		seen[f.OwnerID] = struct{}{}
	}
	for c, err := range s.Collections.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list collections: %w", err)
		}
		seen[c.OwnerID] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen)), nil
}

// SetFilePublic writes a file's explicit visibility flag.
func (s *Store) SetFilePublic(ctx context.Context, id string, isPublic bool) (*domain.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var updated *domain.File
	err := s.db.Update(func(txn *badger.Txn) error {
		f, err := s.Files.getTxn(txn, id)
		if err != nil {
			return err
		}
		f.IsPublic = isPublic
		f.Touch()
		updated = f
		return s.Files.updateTxn(txn, f)
	})
	if err != nil {
		return nil, translateFileErr(err)
	}
	return updated, nil
}

// AddFileToCollection records membership on both sides. Returns false when
// the file was already a member.
func (s *Store) AddFileToCollection(ctx context.Context, collectionID, fileID string) (bool, error) {
	return s.editMembership(ctx, collectionID, fileID, func(c *domain.Collection, f *domain.File) bool {
		added := c.AddFile(fileID)
		f.AddCollection(collectionID)
		return added
	})
}

// RemoveFileFromCollection drops membership on both sides. Returns false when
// the file was not a member.
func (s *Store) RemoveFileFromCollection(ctx context.Context, collectionID, fileID string) (bool, error) {
	return s.editMembership(ctx, collectionID, fileID, func(c *domain.Collection, f *domain.File) bool {
		removed := c.RemoveFile(fileID)
		f.RemoveCollection(collectionID)
		return removed
	})
}

func (s *Store) editMembership(ctx context.Context, collectionID, fileID string, edit func(*domain.Collection, *domain.File) bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var changed bool
	err := s.db.Update(func(txn *badger.Txn) error {
		c, err := s.Collections.getTxn(txn, collectionID)
		if err != nil {
			return translateCollectionErr(err)
		}
		f, err := s.Files.getTxn(txn, fileID)
		if err != nil {
			return translateFileErr(err)
		}
		if c.OwnerID != f.OwnerID {
			return ErrOwnerMismatch
		}

		if changed = edit(c, f); !changed {
			return nil
		}
		c.Touch()
		f.Touch()
		if err := s.Collections.updateTxn(txn, c); err != nil {
			return err
		}
		return s.Files.updateTxn(txn, f)
	})
	return changed, err
}

func translateFileErr(err error) error {
	if errors.Is(err, ErrNotFound) {
		return ErrFileNotFound.WithCause(err)
	}
	return err
}
