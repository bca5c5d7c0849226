package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/slatehq/slate-server/internal/domain"
	"github.com/slatehq/slate-server/internal/journal"
	"github.com/slatehq/slate-server/internal/metrics"
	"github.com/slatehq/slate-server/internal/search"
	"github.com/slatehq/slate-server/internal/store"
	"github.com/slatehq/slate-server/internal/visibility"
)

// LibraryLoader reads an owner's whole library.
type LibraryLoader interface {
	LoadLibrary(ctx context.Context, ownerID string) (*store.Library, error)
	ListOwners(ctx context.Context) ([]string, error)
}

// IndexMaintainer lists what the index holds for an owner and can drop
// everything it holds.
type IndexMaintainer interface {
	IndexedIDs(ctx context.Context, docType search.DocType, ownerID string) ([]string, error)
	Rebuild(ctx context.Context) error
}

// OwnerJournal is the part of the failure journal reconciliation settles.
type OwnerJournal interface {
	UnresolvedOwners(ctx context.Context) ([]string, error)
	ResolveOwner(ctx context.Context, ownerID string, cutoff time.Time) (int64, error)
}

var (
	_ IndexMaintainer = (*SearchService)(nil)
	_ LibraryLoader   = (*store.Store)(nil)
	_ OwnerJournal    = (*journal.Journal)(nil)
)

// ReconcileReport describes the repairs made for one owner.
type ReconcileReport struct {
	OwnerID              string   `json:"owner_id"`
	FilesAdded           []string `json:"files_added"`
	FilesRemoved         []string `json:"files_removed"`
	CollectionsAdded     []string `json:"collections_added"`
	CollectionsRemoved   []string `json:"collections_removed"`
	CollectionsRefreshed int      `json:"collections_refreshed"`
	Failed               int      `json:"failed"`
	Resolved             int64    `json:"resolved"`
}

// Repaired reports whether any document was added or removed.
func (r *ReconcileReport) Repaired() bool {
	return len(r.FilesAdded)+len(r.FilesRemoved)+len(r.CollectionsAdded)+len(r.CollectionsRemoved) > 0
}

// ReconcileService brings the index back in line with the store after index
// sync failures.
type ReconcileService struct {
	library LibraryLoader
	index   IndexMaintainer
	emitter *IndexSyncEmitter
	journal OwnerJournal
	logger  *slog.Logger
}

// NewReconcileService creates a reconcile service. journal may be nil.
func NewReconcileService(library LibraryLoader, index IndexMaintainer, emitter *IndexSyncEmitter, journal OwnerJournal, logger *slog.Logger) *ReconcileService {
	return &ReconcileService{
		library: library,
		index:   index,
		emitter: emitter,
		journal: journal,
		logger:  logger,
	}
}

// ReconcileOwner recomputes the owner's effective visibility and emits the
// delta between it and the index contents. Public collections already in
// the index are re-indexed to refresh their metadata. When every call
// succeeds the owner's journal entries recorded before the library was read
// are marked resolved; later failures wait for the next run.
func (s *ReconcileService) ReconcileOwner(ctx context.Context, ownerID string) (*ReconcileReport, error) {
	cutoff := time.Now()
	lib, err := s.library.LoadLibrary(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load library: %w", err)
	}
	indexedFiles, err := s.index.IndexedIDs(ctx, search.DocTypeFile, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list indexed files: %w", err)
	}
	indexedColls, err := s.index.IndexedIDs(ctx, search.DocTypeCollection, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list indexed collections: %w", err)
	}

	report := &ReconcileReport{OwnerID: ownerID}

	// What the index holds is itself a snapshot; diffing it against the
	// store's yields the repair.
	inIndex := domain.NewVisibilitySnapshot()
	for _, id := range indexedFiles {
		inIndex.Public[id] = struct{}{}
	}
	delta := visibility.Diff(inIndex, visibility.Resolve(lib.Files, lib.Collections))
	report.FilesAdded = delta.ToAdd
	report.FilesRemoved = delta.ToRemove

	var events []*domain.CollectionEvent
	public := make(map[string]bool, len(lib.Collections))
	for _, c := range lib.Collections {
		if !c.IsPublic {
			continue
		}
		public[c.ID] = true
		if slices.Contains(indexedColls, c.ID) {
			events = append(events, &domain.CollectionEvent{Collection: c, Op: domain.IndexEdit})
			delta.ToUpdate = append(delta.ToUpdate, c.ID)
			report.CollectionsRefreshed++
			continue
		}
		events = append(events, &domain.CollectionEvent{Collection: c, Op: domain.IndexAdd})
		report.CollectionsAdded = append(report.CollectionsAdded, c.ID)
	}
	for _, id := range indexedColls {
		if public[id] {
			continue
		}
		stale := &domain.Collection{ID: id, OwnerID: ownerID}
		events = append(events, &domain.CollectionEvent{Collection: stale, Op: domain.IndexRemove})
		report.CollectionsRemoved = append(report.CollectionsRemoved, id)
	}

	result := s.emitter.Sync(ctx, ownerID, delta, events...)
	report.Failed = result.Failed

	if !result.OK() {
		s.logger.Warn("reconcile incomplete", "owner_id", ownerID, "failed", result.Failed)
		return report, nil
	}

	metrics.RecordReconcileRepair(string(journal.TargetFiles), string(domain.IndexAdd), len(report.FilesAdded))
	metrics.RecordReconcileRepair(string(journal.TargetFiles), string(domain.IndexRemove), len(report.FilesRemoved))
	metrics.RecordReconcileRepair(string(journal.TargetCollection), string(domain.IndexAdd), len(report.CollectionsAdded))
	metrics.RecordReconcileRepair(string(journal.TargetCollection), string(domain.IndexRemove), len(report.CollectionsRemoved))

	if s.journal != nil {
		n, err := s.journal.ResolveOwner(ctx, ownerID, cutoff)
		if err != nil {
			return report, fmt.Errorf("resolve journal: %w", err)
		}
		report.Resolved = n
	}

	if report.Repaired() {
		s.logger.Info("reconciled owner",
			"owner_id", ownerID,
			"files_added", len(report.FilesAdded),
			"files_removed", len(report.FilesRemoved),
			"collections_added", len(report.CollectionsAdded),
			"collections_removed", len(report.CollectionsRemoved),
			"resolved", report.Resolved,
		)
	}
	return report, nil
}

// ReplayJournal reconciles every owner with unresolved journal entries.
// One owner failing does not stop the others.
func (s *ReconcileService) ReplayJournal(ctx context.Context) ([]*ReconcileReport, error) {
	if s.journal == nil {
		return nil, nil
	}

	owners, err := s.journal.UnresolvedOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("list journal owners: %w", err)
	}

	var (
		reports []*ReconcileReport
		errs    []error
	)
	for _, ownerID := range owners {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		report, err := s.ReconcileOwner(ctx, ownerID)
		if err != nil {
			s.logger.Error("reconcile failed", "owner_id", ownerID, "error", err)
			errs = append(errs, fmt.Errorf("owner %s: %w", ownerID, err))
			continue
		}
		reports = append(reports, report)
	}
	return reports, errors.Join(errs...)
}

// RebuildAll recreates the index from scratch and repopulates it owner by
// owner from the store. Owners with journal entries are included so their
// entries get settled.
func (s *ReconcileService) RebuildAll(ctx context.Context) ([]*ReconcileReport, error) {
	owners, err := s.library.ListOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	if s.journal != nil {
		journaled, err := s.journal.UnresolvedOwners(ctx)
		if err != nil {
			return nil, fmt.Errorf("list journal owners: %w", err)
		}
		for _, owner := range journaled {
			if !slices.Contains(owners, owner) {
				owners = append(owners, owner)
			}
		}
	}

	s.logger.Info("starting full reindex", "owners", len(owners))
	if err := s.index.Rebuild(ctx); err != nil {
		return nil, err
	}

	var (
		reports []*ReconcileReport
		errs    []error
	)
	for _, ownerID := range owners {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		report, err := s.ReconcileOwner(ctx, ownerID)
		if err != nil {
			s.logger.Error("reindex failed", "owner_id", ownerID, "error", err)
			errs = append(errs, fmt.Errorf("owner %s: %w", ownerID, err))
			continue
		}
		reports = append(reports, report)
	}
	return reports, errors.Join(errs...)
}
