package service

import (
	"context"

	"github.com/slatehq/slate-server/internal/domain"
	"github.com/slatehq/slate-server/internal/journal"
	"github.com/slatehq/slate-server/internal/store"
)

// CollectionStore is the store of record as seen by collection updates.
// Reads must observe writes made earlier through the same store.
type CollectionStore interface {
	GetCollection(ctx context.Context, id string, includeFiles bool) (*domain.Collection, []*domain.File, error)
	GetCollectionBySlug(ctx context.Context, ownerID, slug string) (*domain.Collection, error)
	UpdateCollectionPrivacy(ctx context.Context, id string, isPublic bool) (*domain.Collection, error)
	UpdateCollection(ctx context.Context, id string, u store.CollectionUpdate) (*domain.Collection, error)
	GetFilesByIDs(ctx context.Context, ids []string, publicOnly bool) ([]*domain.File, error)
}

// FileIndexer is the external search index. Both operations must be
// idempotent by id.
type FileIndexer interface {
	IndexFiles(ctx context.Context, ids []string, op domain.IndexOp) error
	IndexCollection(ctx context.Context, c *domain.Collection, op domain.IndexOp) error
}

// FailureJournal records index calls that failed after the store committed.
type FailureJournal interface {
	Record(ctx context.Context, e journal.Entry) (journal.Entry, error)
}

var (
	_ CollectionStore = (*store.Store)(nil)
	_ FileIndexer     = (*SearchService)(nil)
	_ FailureJournal  = (*journal.Journal)(nil)
)
