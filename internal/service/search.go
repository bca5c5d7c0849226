package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/slatehq/slate-server/internal/domain"
	"github.com/slatehq/slate-server/internal/metrics"
	"github.com/slatehq/slate-server/internal/search"
)

// FileLoader loads files by id.
type FileLoader interface {
	GetFilesByIDs(ctx context.Context, ids []string, publicOnly bool) ([]*domain.File, error)
}

// SearchOptions bounds the retries made for one index call.
type SearchOptions struct {
	MaxRetries     uint64
	InitialBackoff time.Duration
	// Timeout caps one call including retries.
	Timeout time.Duration
}

// SearchService is the FileIndexer backed by the bleve index. It bridges the
// index with the store, turning ids into documents.
type SearchService struct {
	index  *search.SearchIndex
	files  FileLoader
	opts   SearchOptions
	logger *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(index *search.SearchIndex, files FileLoader, opts SearchOptions, logger *slog.Logger) *SearchService {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 100 * time.Millisecond
	}
	return &SearchService{
		index:  index,
		files:  files,
		opts:   opts,
		logger: logger,
	}
}

// IndexFiles adds or removes file documents. ADD and EDIT re-read the files
// and index only those still publicly visible; REMOVE deletes by id.
func (s *SearchService) IndexFiles(ctx context.Context, ids []string, op domain.IndexOp) error {
	if len(ids) == 0 {
		return nil
	}

	switch op {
	case domain.IndexAdd, domain.IndexEdit:
		files, err := s.files.GetFilesByIDs(ctx, ids, true)
		if err != nil {
			return fmt.Errorf("load files: %w", err)
		}
		docs := make([]*search.SearchDocument, 0, len(files))
		for _, f := range files {
			docs = append(docs, search.FileToSearchDocument(f))
		}
		if len(docs) < len(ids) {
			s.logger.Debug("skipped files no longer public", "requested", len(ids), "indexed", len(docs))
		}
		return s.retry(ctx, "index files", func() error {
			return s.index.IndexDocuments(docs)
		})

	case domain.IndexRemove:
		return s.retry(ctx, "delete files", func() error {
			return s.index.DeleteDocuments(ids)
		})

	default:
		return fmt.Errorf("unsupported file op %q", op)
	}
}

// IndexCollection writes or deletes the collection's own document.
func (s *SearchService) IndexCollection(ctx context.Context, c *domain.Collection, op domain.IndexOp) error {
	switch op {
	case domain.IndexAdd, domain.IndexEdit:
		doc := search.CollectionToSearchDocument(c)
		return s.retry(ctx, "index collection", func() error {
			return s.index.IndexDocument(doc)
		})
	case domain.IndexRemove:
		return s.retry(ctx, "delete collection", func() error {
			return s.index.DeleteDocument(c.ID)
		})
	default:
		return fmt.Errorf("unsupported collection op %q", op)
	}
}

// Rebuild drops every document from the index.
func (s *SearchService) Rebuild(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.index.Rebuild(); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}
	return nil
}

// IndexedIDs lists the document ids of docType indexed for ownerID.
func (s *SearchService) IndexedIDs(ctx context.Context, docType search.DocType, ownerID string) ([]string, error) {
	return s.index.DocumentIDs(ctx, docType, ownerID)
}

// retry runs op with bounded exponential backoff. It gives up after
// MaxRetries retries, after Timeout, or when ctx is done.
func (s *SearchService) retry(ctx context.Context, what string, op func() error) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.InitialBackoff
	b.MaxElapsedTime = s.opts.Timeout
	policy := backoff.WithContext(backoff.WithMaxRetries(b, s.opts.MaxRetries), ctx)

	retryable := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		return op()
	}

	notify := func(err error, wait time.Duration) {
		metrics.RecordIndexRetry()
		s.logger.Warn("index call failed, retrying", "call", what, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(retryable, policy, notify); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}
