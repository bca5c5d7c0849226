package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/slatehq/slate-server/internal/domain"
	domainerrors "github.com/slatehq/slate-server/internal/errors"
	"github.com/slatehq/slate-server/internal/journal"
	"github.com/slatehq/slate-server/internal/metrics"
	"github.com/slatehq/slate-server/internal/store"
	"github.com/slatehq/slate-server/internal/visibility"
)

// CollectionService applies collection updates and keeps the search index in
// step with the effective visibility they cause. The v1 slate and v2
// collection endpoints both go through UpdateCollection.
type CollectionService struct {
	store   CollectionStore
	renamer *RenameResolver
	emitter *IndexSyncEmitter
	locks   *keyedMutex
	logger  *slog.Logger
}

// NewCollectionService creates a new collection service.
func NewCollectionService(store CollectionStore, renamer *RenameResolver, emitter *IndexSyncEmitter, logger *slog.Logger) *CollectionService {
	return &CollectionService{
		store:   store,
		renamer: renamer,
		emitter: emitter,
		locks:   newKeyedMutex(),
		logger:  logger,
	}
}

// updatePlan is everything decided before the first write.
type updatePlan struct {
	collection *domain.Collection
	members    []string
	transition domain.PrivacyTransition
	after      domain.Privacy
	metadata   store.CollectionUpdate
}

// UpdateCollection applies patch to the owner's collection.
//
// Stages run in order and each may stop the update:
//
//  1. load the collection and its files, checking ownership
//  2. resolve a rename, rejecting it before anything is written
//  3. write the privacy flag (PRIVACY_UPDATE_FAILED)
//  4. recompute which member files changed effective visibility
//  5. write name, slug and body (UPDATE_FAILED)
//  6. emit the file delta and the collection's own index event
//
// Index failures never change the result. Concurrent updates of one
// collection are serialised within this process only; callers needing
// ordering across processes must serialise themselves.
func (s *CollectionService) UpdateCollection(ctx context.Context, ownerID, collectionID string, patch domain.CollectionPatch) (_ *domain.Collection, err error) {
	defer func() {
		code := "OK"
		if err != nil {
			code = string(domainerrors.CodeOf(err))
		}
		metrics.RecordCollectionUpdate(code)
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(collectionID)
	defer unlock()

	plan, err := s.plan(ctx, ownerID, collectionID, patch)
	if err != nil {
		return nil, err
	}

	current := plan.collection
	var delta domain.VisibilityDelta

	if plan.transition != domain.TransitionNone {
		current, err = s.store.UpdateCollectionPrivacy(ctx, collectionID, plan.after.IsPublic())
		if err != nil {
			s.logger.Error("collection privacy write failed",
				"collection_id", collectionID,
				"owner_id", ownerID,
				"error", err,
			)
			return nil, domainerrors.ErrPrivacyUpdateFailed.WithCause(err)
		}
		metrics.RecordPrivacyTransition(plan.transition.String())
		delta = s.recompute(ctx, ownerID, plan)
	}

	metadataChanged := !plan.metadata.IsEmpty()
	if metadataChanged {
		updated, err := s.store.UpdateCollection(ctx, collectionID, plan.metadata)
		if err != nil {
			s.logger.Error("collection metadata write failed",
				"collection_id", collectionID,
				"owner_id", ownerID,
				"privacy_committed", plan.transition != domain.TransitionNone,
				"error", err,
			)
			// A committed privacy change still reaches the index.
			s.emit(ctx, ownerID, current, plan, delta, false)
			if errors.Is(err, store.ErrSlugTaken) && plan.metadata.Slug != nil {
				return nil, domainerrors.NameTaken(*plan.metadata.Slug).WithCause(err)
			}
			return nil, domainerrors.ErrUpdateFailed.WithCause(err)
		}
		current = updated
	}

	s.emit(ctx, ownerID, current, plan, delta, metadataChanged)

	s.logger.Info("collection updated",
		"collection_id", collectionID,
		"owner_id", ownerID,
		"transition", plan.transition.String(),
		"metadata_changed", metadataChanged,
		"to_add", len(delta.ToAdd),
		"to_remove", len(delta.ToRemove),
	)

	return current, nil
}

// plan loads the collection, checks ownership and resolves any rename. It
// performs no writes.
func (s *CollectionService) plan(ctx context.Context, ownerID, collectionID string, patch domain.CollectionPatch) (*updatePlan, error) {
	coll, files, err := s.store.GetCollection(ctx, collectionID, true)
	if err != nil {
		if errors.Is(err, store.ErrCollectionNotFound) {
			return nil, domainerrors.ErrCollectionNotFound.WithCause(err)
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load collection")
	}
	if coll.OwnerID != ownerID {
		return nil, domainerrors.ErrNotOwner
	}

	p := &updatePlan{collection: coll}
	for _, f := range files {
		p.members = append(p.members, f.ID)
	}

	before := coll.Privacy()
	p.after = patch.PrivacyTarget(before)
	p.transition = domain.Transition(before, p.after)

	if patch.Name != nil {
		name := NormalizeName(*patch.Name)
		if name != coll.Name {
			slug, err := s.renamer.Resolve(ctx, ownerID, name, coll)
			if err != nil {
				var domainErr *domainerrors.Error
				if errors.As(err, &domainErr) {
					return nil, err
				}
				return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to check collection name")
			}
			p.metadata.Name = &name
			if slug != coll.Slug {
				p.metadata.Slug = &slug
			}
		}
	}

	if patch.Body != nil && *patch.Body != coll.Body {
		body := *patch.Body
		p.metadata.Body = &body
	}

	return p, nil
}

// recompute derives the file delta of a committed privacy transition.
// Unpublishing reads member visibility back from the store, so it sees the
// privacy write that just committed.
func (s *CollectionService) recompute(ctx context.Context, ownerID string, plan *updatePlan) domain.VisibilityDelta {
	var delta domain.VisibilityDelta
	if len(plan.members) == 0 {
		return delta
	}

	switch plan.transition {
	case domain.TransitionPublished:
		delta.ToAdd = plan.members

	case domain.TransitionUnpublished:
		stillPublic, err := s.store.GetFilesByIDs(ctx, plan.members, true)
		if err != nil {
			s.emitter.ReportFailure(ctx, ownerID, journal.TargetFiles, domain.IndexRemove, plan.members, err)
			return delta
		}
		delta.ToRemove = visibility.NoLongerPublic(plan.members, stillPublic)
	}
	return delta
}

func (s *CollectionService) emit(ctx context.Context, ownerID string, c *domain.Collection, plan *updatePlan, delta domain.VisibilityDelta, metadataChanged bool) {
	var events []*domain.CollectionEvent
	if op, ok := plan.transition.CollectionOp(plan.after, metadataChanged); ok {
		events = append(events, &domain.CollectionEvent{Collection: c, Op: op})
		if op == domain.IndexEdit {
			delta.ToUpdate = []string{c.ID}
		}
	}
	if delta.IsEmpty() && len(events) == 0 {
		return
	}
	s.emitter.Sync(ctx, ownerID, delta, events...)
}
