package service

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"testing"

	"github.com/slatehq/slate-server/internal/domain"
	"github.com/slatehq/slate-server/internal/journal"
	"github.com/slatehq/slate-server/internal/search"
	"github.com/slatehq/slate-server/internal/store"
	"github.com/slatehq/slate-server/internal/util"
	"github.com/slatehq/slate-server/internal/validation"
	"github.com/stretchr/testify/require"
)

const testOwner = "user-a"

type indexCall struct {
	target journal.Target
	op     domain.IndexOp
	ids    []string
}

// fakeIndexer is an in-memory index with injectable failures. Documents
// unknown to the store are attributed to testOwner.
type fakeIndexer struct {
	store   *store.Store
	mu      sync.Mutex
	calls   []indexCall
	files   map[string]bool
	colls   map[string]bool
	fileErr map[domain.IndexOp]error
	collErr error

	rebuildErr error
	rebuilds   int
}

func newFakeIndexer(s *store.Store) *fakeIndexer {
	return &fakeIndexer{
		store:   s,
		files:   make(map[string]bool),
		colls:   make(map[string]bool),
		fileErr: make(map[domain.IndexOp]error),
	}
}

func (f *fakeIndexer) IndexFiles(_ context.Context, ids []string, op domain.IndexOp) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, indexCall{target: journal.TargetFiles, op: op, ids: slices.Sorted(slices.Values(ids))})
	if err := f.fileErr[op]; err != nil {
		return err
	}
	for _, id := range ids {
		if op == domain.IndexRemove {
			delete(f.files, id)
		} else {
			f.files[id] = true
		}
	}
	return nil
}

func (f *fakeIndexer) IndexCollection(_ context.Context, c *domain.Collection, op domain.IndexOp) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, indexCall{target: journal.TargetCollection, op: op, ids: []string{c.ID}})
	if f.collErr != nil {
		return f.collErr
	}
	if op == domain.IndexRemove {
		delete(f.colls, c.ID)
	} else {
		f.colls[c.ID] = true
	}
	return nil
}

func (f *fakeIndexer) IndexedIDs(ctx context.Context, docType search.DocType, ownerID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	docs := f.files
	if docType == search.DocTypeCollection {
		docs = f.colls
	}
	var ids []string
	for _, id := range slices.Sorted(maps.Keys(docs)) {
		if f.ownerOf(ctx, id) == ownerID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeIndexer) ownerOf(ctx context.Context, id string) string {
	if f.store == nil {
		return testOwner
	}
	if file, err := f.store.GetFile(ctx, id); err == nil {
		return file.OwnerID
	}
	if c, _, err := f.store.GetCollection(ctx, id, false); err == nil {
		return c.OwnerID
	}
	return testOwner
}

func (f *fakeIndexer) Rebuild(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.rebuildErr != nil {
		return f.rebuildErr
	}
	clear(f.files)
	clear(f.colls)
	f.rebuilds++
	return nil
}

func (f *fakeIndexer) recorded() []indexCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func (f *fakeIndexer) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *fakeIndexer) failFiles(op domain.IndexOp, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fileErr, op)
		return
	}
	f.fileErr[op] = err
}

func (f *fakeIndexer) has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[id] || f.colls[id]
}

// faultyStore fails selected writes.
type faultyStore struct {
	*store.Store
	privacyErr error
	updateErr  error
}

func (s *faultyStore) UpdateCollectionPrivacy(ctx context.Context, id string, isPublic bool) (*domain.Collection, error) {
	if s.privacyErr != nil {
		return nil, s.privacyErr
	}
	return s.Store.UpdateCollectionPrivacy(ctx, id, isPublic)
}

func (s *faultyStore) UpdateCollection(ctx context.Context, id string, u store.CollectionUpdate) (*domain.Collection, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return s.Store.UpdateCollection(ctx, id, u)
}

type harness struct {
	t           *testing.T
	ctx         context.Context
	store       *store.Store
	faulty      *faultyStore
	index       *fakeIndexer
	journal     *journal.Journal
	emitter     *IndexSyncEmitter
	collections *CollectionService
	library     *LibraryService
	reconcile   *ReconcileService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	s, err := store.New(store.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	j, err := journal.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	idx := newFakeIndexer(s)
	faulty := &faultyStore{Store: s}
	emitter := NewIndexSyncEmitter(idx, EmitterOptions{Concurrent: true, Journal: j}, logger)
	renamer := NewRenameResolver(faulty, validation.New())

	return &harness{
		t:           t,
		ctx:         context.Background(),
		store:       s,
		faulty:      faulty,
		index:       idx,
		journal:     j,
		emitter:     emitter,
		collections: NewCollectionService(faulty, renamer, emitter, logger),
		library:     NewLibraryService(s, renamer, emitter, logger),
		reconcile:   NewReconcileService(s, idx, emitter, j, logger),
	}
}

// file stores a file directly, bypassing index sync.
func (h *harness) file(id string, public bool) *domain.File {
	h.t.Helper()
	f := &domain.File{ID: id, OwnerID: testOwner, Filename: id + ".jpg", IsPublic: public}
	require.NoError(h.t, h.store.CreateFile(h.ctx, f))
	return f
}

// collection stores a collection with members directly, bypassing index sync.
func (h *harness) collection(id, name string, public bool, fileIDs ...string) *domain.Collection {
	h.t.Helper()
	c := &domain.Collection{ID: id, OwnerID: testOwner, Name: name, Slug: util.Slugify(name), IsPublic: public}
	require.NoError(h.t, h.store.CreateCollection(h.ctx, c))
	for _, fid := range fileIDs {
		_, err := h.store.AddFileToCollection(h.ctx, id, fid)
		require.NoError(h.t, err)
	}
	return c
}

func (h *harness) unresolved() int {
	h.t.Helper()
	n, err := h.journal.CountUnresolved(h.ctx)
	require.NoError(h.t, err)
	return n
}

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }
