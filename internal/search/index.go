package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// SearchIndex wraps a Bleve index with the operations index sync needs.
//
// All methods are safe for concurrent use. Rebuild takes an exclusive lock.
type SearchIndex struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the search index.
type Options struct {
	DataPath string       // Directory for index storage
	Logger   *slog.Logger // Uses a discard logger if nil
	// InMemory builds a memory-only index; DataPath is ignored.
	InMemory bool
}

// mappingVersion is bumped whenever buildIndexMapping changes. A mismatch
// on startup drops and recreates the index.
const mappingVersion = "1"

// batchSize bounds the documents per bleve batch.
const batchSize = 500

// pageSize bounds the hits fetched per request when listing ids.
const pageSize = 1000

// NewSearchIndex opens the index under opts.DataPath, creating it when
// missing and recreating it when corrupt or built with an older mapping.
func NewSearchIndex(opts Options) (*SearchIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if opts.InMemory {
		index, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create memory index: %w", err)
		}
		return &SearchIndex{index: index, logger: logger}, nil
	}

	if err := os.MkdirAll(opts.DataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	indexPath := filepath.Join(opts.DataPath, "slate.bleve")
	versionPath := filepath.Join(opts.DataPath, "slate.version")

	var index bleve.Index
	if _, statErr := os.Stat(indexPath); statErr == nil {
		existing, readErr := os.ReadFile(versionPath)
		switch {
		case readErr != nil:
			logger.Info("search index has no version file, rebuilding", "new_version", mappingVersion)
		case string(existing) != mappingVersion:
			logger.Info("search index mapping version changed, rebuilding",
				"old_version", string(existing),
				"new_version", mappingVersion,
			)
		default:
			opened, err := bleve.Open(indexPath)
			if err != nil {
				logger.Warn("failed to open existing index, recreating", "path", indexPath, "error", err)
			} else {
				index = opened
			}
		}

		if index == nil {
			if err := os.RemoveAll(indexPath); err != nil {
				return nil, fmt.Errorf("remove old index: %w", err)
			}
		}
	}

	if index == nil {
		created, err := bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		index = created
		if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); err != nil {
			logger.Warn("failed to write search version file", "error", err)
		}
		logger.Info("created new search index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened existing search index", "path", indexPath)
	}

	return &SearchIndex{index: index, path: indexPath, logger: logger}, nil
}

// Close closes the index and releases resources.
func (s *SearchIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexDocument indexes or replaces a single document.
func (s *SearchIndex) IndexDocument(doc *SearchDocument) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Index(doc.ID, doc.ToMap())
}

// IndexDocuments indexes documents in batches of batchSize. Re-indexing an
// id replaces the previous document.
func (s *SearchIndex) IndexDocuments(docs []*SearchDocument) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for start := 0; start < len(docs); start += batchSize {
		end := min(start+batchSize, len(docs))

		batch := s.index.NewBatch()
		for _, doc := range docs[start:end] {
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// DeleteDocument removes a document. Removing an absent id is not an error.
func (s *SearchIndex) DeleteDocument(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(id)
}

// DeleteDocuments removes documents in batches of batchSize.
func (s *SearchIndex) DeleteDocuments(ids []string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for start := 0; start < len(ids); start += batchSize {
		end := min(start+batchSize, len(ids))

		batch := s.index.NewBatch()
		for _, id := range ids[start:end] {
			batch.Delete(id)
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit delete batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// Contains reports whether a document with id is indexed.
func (s *SearchIndex) Contains(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.index.Document(id)
	if err != nil {
		return false, err
	}
	return doc != nil, nil
}

// DocumentCount returns the total number of indexed documents.
func (s *SearchIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// DocumentIDs lists the ids of every indexed document of docType owned by
// ownerID. An empty ownerID matches all owners.
func (s *SearchIndex) DocumentIDs(ctx context.Context, docType DocType, ownerID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	typeQuery := bleve.NewTermQuery(string(docType))
	typeQuery.SetField("type")
	queries := []query.Query{typeQuery}
	if ownerID != "" {
		ownerQuery := bleve.NewTermQuery(ownerID)
		ownerQuery.SetField("owner_id")
		queries = append(queries, ownerQuery)
	}
	q := bleve.NewConjunctionQuery(queries...)

	var ids []string
	for from := 0; ; from += pageSize {
		req := bleve.NewSearchRequestOptions(q, pageSize, from, false)
		req.SortBy([]string{"_id"})

		res, err := s.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("list %s documents: %w", docType, err)
		}
		for _, hit := range res.Hits {
			ids = append(ids, hit.ID)
		}
		if len(res.Hits) < pageSize {
			return ids, nil
		}
	}
}

// Rebuild drops every document by recreating the index. Callers repopulate
// it afterwards.
func (s *SearchIndex) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}

	var (
		index bleve.Index
		err   error
	)
	if s.path == "" {
		index, err = bleve.NewMemOnly(buildIndexMapping())
	} else {
		if err := os.RemoveAll(s.path); err != nil {
			return fmt.Errorf("remove index: %w", err)
		}
		index, err = bleve.New(s.path, buildIndexMapping())
	}
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	s.index = index
	s.logger.Info("rebuilt search index", "path", s.path)
	return nil
}
