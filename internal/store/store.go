// Package store is the badger-backed store of record for files and
// collections. Membership is stored on both sides and every write that
// touches both sides happens in one transaction.
package store

import (
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/slatehq/slate-server/internal/domain"
)

// Key prefixes for BadgerDB.
const (
	filePrefix       = "file:"
	collectionPrefix = "coll:"
)

// Index names.
const (
	indexOwner     = "owner"
	indexOwnerSlug = "owner_slug"
)

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	Files       *Entity[domain.File]
	Collections *Entity[domain.Collection]
}

// Options configures the store.
type Options struct {
	Path   string
	Logger *slog.Logger
	// InMemory keeps everything in RAM; Path is ignored.
	InMemory bool
}

// New opens (or creates) the store.
func New(opts Options) (*Store, error) {
	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.Logger = nil
	bopts.SyncWrites = true
	bopts.CompactL0OnClose = true

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Store{db: db, logger: logger}
	s.initFiles()
	s.initCollections()

	logger.Info("badger database opened", "path", opts.Path, "in_memory", opts.InMemory)

	return s, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	s.logger.Info("closing database connection")
	return s.db.Close()
}

func (s *Store) initFiles() {
	s.Files = NewEntity(s, filePrefix, func(f *domain.File) string { return f.ID }).
		WithSetIndex(indexOwner, func(f *domain.File) []string {
			return []string{f.OwnerID}
		})
}

// initCollections indexes collections by owner and by owner+slug, the latter
// enforcing slug uniqueness per owner.
func (s *Store) initCollections() {
	s.Collections = NewEntity(s, collectionPrefix, func(c *domain.Collection) string { return c.ID }).
		WithSetIndex(indexOwner, func(c *domain.Collection) []string {
			return []string{c.OwnerID}
		}).
		WithUniqueIndex(indexOwnerSlug, func(c *domain.Collection) []string {
			if c.Slug == "" {
				return nil
			}
			return []string{ownerSlugKey(c.OwnerID, c.Slug)}
		})
}

func ownerSlugKey(ownerID, slug string) string {
	return ownerID + "/" + slug
}
