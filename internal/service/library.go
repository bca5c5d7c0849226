package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/slatehq/slate-server/internal/domain"
	domainerrors "github.com/slatehq/slate-server/internal/errors"
	"github.com/slatehq/slate-server/internal/id"
	"github.com/slatehq/slate-server/internal/journal"
	"github.com/slatehq/slate-server/internal/store"
	"github.com/slatehq/slate-server/internal/visibility"
)

// LibraryStore is the store of record as seen by file management.
type LibraryStore interface {
	LoadLibrary(ctx context.Context, ownerID string) (*store.Library, error)
	CreateCollection(ctx context.Context, c *domain.Collection) error
	GetCollection(ctx context.Context, id string, includeFiles bool) (*domain.Collection, []*domain.File, error)
	ListCollectionsByOwner(ctx context.Context, ownerID string) ([]*domain.Collection, error)
	DeleteCollection(ctx context.Context, id string) (*domain.Collection, error)
	CreateFile(ctx context.Context, f *domain.File) error
	GetFile(ctx context.Context, id string) (*domain.File, error)
	SetFilePublic(ctx context.Context, id string, isPublic bool) (*domain.File, error)
	AddFileToCollection(ctx context.Context, collectionID, fileID string) (bool, error)
	RemoveFileFromCollection(ctx context.Context, collectionID, fileID string) (bool, error)
}

var _ LibraryStore = (*store.Store)(nil)

// LibraryService manages files, collections and membership. Every mutation
// snapshots the owner's effective visibility before and after, and sends the
// difference to the index.
type LibraryService struct {
	store   LibraryStore
	renamer *RenameResolver
	emitter *IndexSyncEmitter
	locks   *keyedMutex
	logger  *slog.Logger
}

// NewLibraryService creates a new library service.
func NewLibraryService(store LibraryStore, renamer *RenameResolver, emitter *IndexSyncEmitter, logger *slog.Logger) *LibraryService {
	return &LibraryService{
		store:   store,
		renamer: renamer,
		emitter: emitter,
		locks:   newKeyedMutex(),
		logger:  logger,
	}
}

// CreateCollection creates an empty private collection. New collections
// have no index footprint.
func (s *LibraryService) CreateCollection(ctx context.Context, ownerID, name, body string) (*domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name = NormalizeName(name)
	slug, err := s.renamer.Resolve(ctx, ownerID, name, nil)
	if err != nil {
		return nil, err
	}

	collectionID, err := id.Generate(id.PrefixCollection)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to generate collection id")
	}

	coll := &domain.Collection{
		ID:      collectionID,
		OwnerID: ownerID,
		Name:    name,
		Slug:    slug,
		Body:    body,
		FileIDs: []string{},
	}
	if err := s.store.CreateCollection(ctx, coll); err != nil {
		if errors.Is(err, store.ErrSlugTaken) {
			return nil, domainerrors.NameTaken(slug).WithCause(err)
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to create collection")
	}

	s.logger.Info("collection created",
		"collection_id", collectionID,
		"owner_id", ownerID,
		"slug", slug,
	)
	return coll, nil
}

// GetCollection returns the owner's collection with its member files.
func (s *LibraryService) GetCollection(ctx context.Context, ownerID, collectionID string) (*domain.Collection, []*domain.File, error) {
	coll, files, err := s.store.GetCollection(ctx, collectionID, true)
	if err != nil {
		return nil, nil, mapStoreErr(err, "failed to load collection")
	}
	if coll.OwnerID != ownerID {
		return nil, nil, domainerrors.ErrNotOwner
	}
	return coll, files, nil
}

// ListCollections pages through the owner's collections in id order.
func (s *LibraryService) ListCollections(ctx context.Context, ownerID string, params store.PaginationParams) (*store.PaginatedResult[*domain.Collection], error) {
	colls, err := s.store.ListCollectionsByOwner(ctx, ownerID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to list collections")
	}
	page, err := store.Paginate(colls, func(c *domain.Collection) string { return c.ID }, params)
	if err != nil {
		return nil, domainerrors.Validation(err.Error())
	}
	return page, nil
}

// DeleteCollection removes the collection. Members that were public only
// through it leave the index along with the collection's own document.
func (s *LibraryService) DeleteCollection(ctx context.Context, ownerID, collectionID string) error {
	if _, _, err := s.GetCollection(ctx, ownerID, collectionID); err != nil {
		return err
	}

	var deleted *domain.Collection
	err := s.mutate(ctx, ownerID, func() ([]*domain.CollectionEvent, error) {
		var err error
		deleted, err = s.store.DeleteCollection(ctx, collectionID)
		if err != nil {
			return nil, mapStoreErr(err, "failed to delete collection")
		}
		if !deleted.IsPublic {
			return nil, nil
		}
		return []*domain.CollectionEvent{{Collection: deleted, Op: domain.IndexRemove}}, nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("collection deleted", "collection_id", collectionID, "owner_id", ownerID)
	return nil
}

// CreateFile stores a new file outside any collection.
func (s *LibraryService) CreateFile(ctx context.Context, ownerID, filename, cid string, isPublic bool) (*domain.File, error) {
	fileID, err := id.Generate(id.PrefixFile)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to generate file id")
	}

	f := &domain.File{
		ID:       fileID,
		OwnerID:  ownerID,
		Filename: filename,
		CID:      cid,
		IsPublic: isPublic,
	}

	err = s.mutate(ctx, ownerID, func() ([]*domain.CollectionEvent, error) {
		if err := s.store.CreateFile(ctx, f); err != nil {
			return nil, mapStoreErr(err, "failed to create file")
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("file created", "file_id", fileID, "owner_id", ownerID, "is_public", isPublic)
	return f, nil
}

// SetFilePublic writes the file's own visibility flag. Clearing it keeps the
// file public when a public collection still lists it.
func (s *LibraryService) SetFilePublic(ctx context.Context, ownerID, fileID string, isPublic bool) (*domain.File, error) {
	f, err := s.ownedFile(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}
	if f.IsPublic == isPublic {
		return f, nil
	}

	err = s.mutate(ctx, ownerID, func() ([]*domain.CollectionEvent, error) {
		f, err = s.store.SetFilePublic(ctx, fileID, isPublic)
		if err != nil {
			return nil, mapStoreErr(err, "failed to update file")
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// AddFile lists fileID in the collection. Adding a member again is a no-op.
func (s *LibraryService) AddFile(ctx context.Context, ownerID, collectionID, fileID string) error {
	return s.editMembership(ctx, ownerID, collectionID, fileID, s.store.AddFileToCollection)
}

// RemoveFile drops fileID from the collection.
func (s *LibraryService) RemoveFile(ctx context.Context, ownerID, collectionID, fileID string) error {
	return s.editMembership(ctx, ownerID, collectionID, fileID, s.store.RemoveFileFromCollection)
}

func (s *LibraryService) editMembership(ctx context.Context, ownerID, collectionID, fileID string, edit func(context.Context, string, string) (bool, error)) error {
	coll, _, err := s.store.GetCollection(ctx, collectionID, false)
	if err != nil {
		return mapStoreErr(err, "failed to load collection")
	}
	if coll.OwnerID != ownerID {
		return domainerrors.ErrNotOwner
	}
	if _, err := s.ownedFile(ctx, ownerID, fileID); err != nil {
		return err
	}

	return s.mutate(ctx, ownerID, func() ([]*domain.CollectionEvent, error) {
		changed, err := edit(ctx, collectionID, fileID)
		if err != nil {
			return nil, mapStoreErr(err, "failed to update membership")
		}
		if changed {
			s.logger.Debug("membership changed", "collection_id", collectionID, "file_id", fileID)
		}
		return nil, nil
	})
}

// Visibility returns the owner's current effective visibility.
func (s *LibraryService) Visibility(ctx context.Context, ownerID string) (domain.VisibilitySnapshot, error) {
	lib, err := s.store.LoadLibrary(ctx, ownerID)
	if err != nil {
		return domain.VisibilitySnapshot{}, mapStoreErr(err, "failed to load library")
	}
	return visibility.Resolve(lib.Files, lib.Collections), nil
}

func (s *LibraryService) ownedFile(ctx context.Context, ownerID, fileID string) (*domain.File, error) {
	f, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, mapStoreErr(err, "failed to load file")
	}
	if f.OwnerID != ownerID {
		return nil, domainerrors.ErrNotOwner
	}
	return f, nil
}

// mutate runs write between two visibility snapshots of the owner's library
// and emits their difference together with any collection events write
// returns. Mutations of one owner are serialised within this process.
func (s *LibraryService) mutate(ctx context.Context, ownerID string, write func() ([]*domain.CollectionEvent, error)) error {
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	before, err := s.Visibility(ctx, ownerID)
	if err != nil {
		return err
	}

	events, err := write()
	if err != nil {
		return err
	}

	after, err := s.Visibility(ctx, ownerID)
	if err != nil {
		// The write stands; reconciliation picks up whatever was missed.
		s.emitter.ReportFailure(ctx, ownerID, journal.TargetFiles, domain.IndexEdit, nil, err)
		return nil
	}

	delta := visibility.Diff(before, after)
	if delta.IsEmpty() && len(events) == 0 {
		return nil
	}
	s.emitter.Sync(ctx, ownerID, delta, events...)
	return nil
}

// mapStoreErr converts store sentinels to coded errors.
func mapStoreErr(err error, msg string) error {
	switch {
	case errors.Is(err, store.ErrCollectionNotFound):
		return domainerrors.ErrCollectionNotFound.WithCause(err)
	case errors.Is(err, store.ErrFileNotFound):
		return domainerrors.ErrFileNotFound.WithCause(err)
	case errors.Is(err, store.ErrOwnerMismatch):
		return domainerrors.ErrNotOwner.WithCause(err)
	case errors.Is(err, store.ErrSlugTaken):
		return domainerrors.Wrap(err, domainerrors.CodeNameTaken, "collection name already taken")
	default:
		var domainErr *domainerrors.Error
		if errors.As(err, &domainErr) {
			return err
		}
		return domainerrors.Wrap(err, domainerrors.CodeInternal, msg)
	}
}
