package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/slatehq/slate-server/internal/domain"
)

// CollectionUpdate carries the metadata columns to overwrite. Nil fields are
// left untouched. Privacy is written separately by UpdateCollectionPrivacy.
type CollectionUpdate struct {
	Name *string
	Slug *string
	Body *string
}

// IsEmpty reports whether the update would change nothing.
func (u CollectionUpdate) IsEmpty() bool {
	return u.Name == nil && u.Slug == nil && u.Body == nil
}

// CreateCollection stores a new collection. Returns ErrSlugTaken when the
// owner already has a collection with the same slug.
func (s *Store) CreateCollection(ctx context.Context, c *domain.Collection) error {
	if c.FileIDs == nil {
		c.FileIDs = []string{}
	}
	if c.CreatedAt.IsZero() {
		c.InitTimestamps()
	}

	err := s.Collections.Create(ctx, c)
	if err != nil {
		return translateCollectionErr(err)
	}

	s.logger.Debug("collection created", "collection_id", c.ID, "owner_id", c.OwnerID, "slug", c.Slug)
	return nil
}

// GetCollection loads a collection and, when includeFiles is set, its member
// files in membership order.
func (s *Store) GetCollection(ctx context.Context, id string, includeFiles bool) (*domain.Collection, []*domain.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var (
		coll  *domain.Collection
		files []*domain.File
	)
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		coll, err = s.Collections.getTxn(txn, id)
		if err != nil {
			return err
		}
		if includeFiles {
			files, err = s.Files.getManyTxn(txn, coll.FileIDs)
		}
		return err
	})
	if err != nil {
		return nil, nil, translateCollectionErr(err)
	}
	return coll, files, nil
}

// GetCollectionBySlug finds the owner's collection with slug.
func (s *Store) GetCollectionBySlug(ctx context.Context, ownerID, slug string) (*domain.Collection, error) {
	c, err := s.Collections.GetByIndex(ctx, indexOwnerSlug, ownerSlugKey(ownerID, slug))
	if err != nil {
		return nil, translateCollectionErr(err)
	}
	return c, nil
}

// ListCollectionsByOwner returns every collection of ownerID.
func (s *Store) ListCollectionsByOwner(ctx context.Context, ownerID string) ([]*domain.Collection, error) {
	return s.Collections.ListByIndex(ctx, indexOwner, ownerID)
}

// UpdateCollectionPrivacy writes only the privacy flag. The write is durable
// when this returns without error.
func (s *Store) UpdateCollectionPrivacy(ctx context.Context, id string, isPublic bool) (*domain.Collection, error) {
	return s.mutateCollection(ctx, id, func(c *domain.Collection) {
		c.IsPublic = isPublic
	})
}

// UpdateCollection overwrites the metadata columns present in u.
func (s *Store) UpdateCollection(ctx context.Context, id string, u CollectionUpdate) (*domain.Collection, error) {
	return s.mutateCollection(ctx, id, func(c *domain.Collection) {
		if u.Name != nil {
			c.Name = *u.Name
		}
		if u.Slug != nil {
			c.Slug = *u.Slug
		}
		if u.Body != nil {
			c.Body = *u.Body
		}
	})
}

func (s *Store) mutateCollection(ctx context.Context, id string, mutate func(*domain.Collection)) (*domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var updated *domain.Collection
	err := s.db.Update(func(txn *badger.Txn) error {
		c, err := s.Collections.getTxn(txn, id)
		if err != nil {
			return err
		}
		mutate(c)
		c.UpdatedAt = time.Now()
		if err := s.Collections.updateTxn(txn, c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, translateCollectionErr(err)
	}
	return updated, nil
}

// DeleteCollection removes a collection and drops it from its members'
// membership lists. Returns the deleted collection.
func (s *Store) DeleteCollection(ctx context.Context, id string) (*domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var deleted *domain.Collection
	err := s.db.Update(func(txn *badger.Txn) error {
		c, err := s.Collections.getTxn(txn, id)
		if err != nil {
			return err
		}
		files, err := s.Files.getManyTxn(txn, c.FileIDs)
		if err != nil {
			return err
		}
		for _, f := range files {
			if f.RemoveCollection(id) {
				f.Touch()
				if err := s.Files.updateTxn(txn, f); err != nil {
					return fmt.Errorf("update file %s: %w", f.ID, err)
				}
			}
		}
		deleted = c
		return s.Collections.deleteTxn(txn, id)
	})
	if err != nil {
		return nil, translateCollectionErr(err)
	}

	s.logger.Debug("collection deleted", "collection_id", id, "members", len(deleted.FileIDs))
	return deleted, nil
}

func translateCollectionErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrCollectionNotFound.WithCause(err)
	case errors.Is(err, ErrAlreadyExists):
		return ErrSlugTaken.WithCause(err)
	default:
		return err
	}
}
