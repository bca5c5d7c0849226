package service

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/slatehq/slate-server/internal/domain"
	"github.com/slatehq/slate-server/internal/journal"
	"github.com/slatehq/slate-server/internal/metrics"
	"github.com/slatehq/slate-server/internal/ratelimit"
	"github.com/slatehq/slate-server/internal/sse"
)

var errMissingCollection = errors.New("no collection document for EDIT")

// EventPublisher delivers index events to live clients.
type EventPublisher interface {
	Emit(event sse.Event)
}

// EmitterOptions configures an IndexSyncEmitter.
type EmitterOptions struct {
	// Concurrent dispatches the ADD and REMOVE file batches in parallel.
	Concurrent bool
	// Limiter paces index calls per owner. Nil disables pacing.
	Limiter *ratelimit.KeyedRateLimiter
	// Journal records failed calls. Nil only logs and counts them.
	Journal FailureJournal
	// Events receives one event per index call. Nil disables them.
	Events EventPublisher
}

// SyncResult summarises one Sync call.
type SyncResult struct {
	Calls  int
	Failed int
}

// OK reports whether every call succeeded.
func (r SyncResult) OK() bool { return r.Failed == 0 }

// IndexSyncEmitter applies visibility deltas to the search index.
//
// It is fire-and-continue: the store has already committed when it runs, so
// a failed call is logged, counted and journaled, and never undone.
type IndexSyncEmitter struct {
	indexer    FileIndexer
	journal    FailureJournal
	limiter    *ratelimit.KeyedRateLimiter
	events     EventPublisher
	concurrent bool
	logger     *slog.Logger
}

// NewIndexSyncEmitter creates an emitter writing to indexer.
func NewIndexSyncEmitter(indexer FileIndexer, opts EmitterOptions, logger *slog.Logger) *IndexSyncEmitter {
	return &IndexSyncEmitter{
		indexer:    indexer,
		journal:    opts.Journal,
		limiter:    opts.Limiter,
		events:     opts.Events,
		concurrent: opts.Concurrent,
		logger:     logger,
	}
}

// Sync emits file ADD for delta.ToAdd, file REMOVE for delta.ToRemove and
// then each collection event in order. Empty batches are skipped.
// Every collection in delta.ToUpdate gets an EDIT; its document comes from
// the matching EDIT event, and an id with no such event is recorded as a
// failed EDIT.
func (e *IndexSyncEmitter) Sync(ctx context.Context, ownerID string, delta domain.VisibilityDelta, events ...*domain.CollectionEvent) SyncResult {
	var calls, failed atomic.Int32

	fileBatch := func(ids []string, op domain.IndexOp) func() error {
		return func() error {
			calls.Add(1)
			err := e.call(ctx, ownerID, journal.TargetFiles, op, ids, func(ctx context.Context) error {
				return e.indexer.IndexFiles(ctx, ids, op)
			})
			if err != nil {
				failed.Add(1)
			}
			// Failures are handled per call; the sibling batch still runs.
			return nil
		}
	}

	var batches []func() error
	if len(delta.ToAdd) > 0 {
		batches = append(batches, fileBatch(delta.ToAdd, domain.IndexAdd))
	}
	if len(delta.ToRemove) > 0 {
		batches = append(batches, fileBatch(delta.ToRemove, domain.IndexRemove))
	}

	if e.concurrent && len(batches) > 1 {
		var g errgroup.Group
		for _, batch := range batches {
			g.Go(batch)
		}
		_ = g.Wait()
	} else {
		for _, batch := range batches {
			_ = batch()
		}
	}

	edited := make(map[string]bool, len(delta.ToUpdate))
	for _, ev := range events {
		if ev == nil || ev.Collection == nil {
			continue
		}
		if ev.Op == domain.IndexEdit {
			edited[ev.Collection.ID] = true
		}
		calls.Add(1)
		err := e.call(ctx, ownerID, journal.TargetCollection, ev.Op, []string{ev.Collection.ID}, func(ctx context.Context) error {
			return e.indexer.IndexCollection(ctx, ev.Collection, ev.Op)
		})
		if err != nil {
			failed.Add(1)
		}
	}

	for _, id := range delta.ToUpdate {
		if edited[id] {
			continue
		}
		calls.Add(1)
		failed.Add(1)
		e.ReportFailure(ctx, ownerID, journal.TargetCollection, domain.IndexEdit, []string{id}, errMissingCollection)
	}

	result := SyncResult{Calls: int(calls.Load()), Failed: int(failed.Load())}
	if result.Calls > 0 {
		e.logger.Debug("index sync finished",
			"owner_id", ownerID,
			"to_add", len(delta.ToAdd),
			"to_remove", len(delta.ToRemove),
			"collection_events", len(events),
			"failed", result.Failed,
		)
	}
	return result
}

func (e *IndexSyncEmitter) call(ctx context.Context, ownerID string, target journal.Target, op domain.IndexOp, ids []string, fn func(context.Context) error) error {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx, ownerID); err != nil {
			metrics.RecordIndexOp(string(target), string(op), len(ids), 0, err)
			e.fail(ctx, ownerID, target, op, ids, err)
			return err
		}
	}

	start := time.Now()
	err := fn(ctx)
	metrics.RecordIndexOp(string(target), string(op), len(ids), time.Since(start), err)
	if err != nil {
		e.fail(ctx, ownerID, target, op, ids, err)
		return err
	}
	if e.events != nil {
		e.events.Emit(sse.NewIndexSyncedEvent(ownerID, string(target), op, ids))
	}
	return nil
}

// ReportFailure records an index change that could not even be attempted,
// such as when the set of affected ids could not be computed.
func (e *IndexSyncEmitter) ReportFailure(ctx context.Context, ownerID string, target journal.Target, op domain.IndexOp, ids []string, err error) {
	metrics.RecordIndexOp(string(target), string(op), len(ids), 0, err)
	e.fail(ctx, ownerID, target, op, ids, err)
}

func (e *IndexSyncEmitter) fail(ctx context.Context, ownerID string, target journal.Target, op domain.IndexOp, ids []string, err error) {
	e.logger.Error("index sync failed, index may diverge from store",
		"owner_id", ownerID,
		"target", target,
		"op", op,
		"count", len(ids),
		"error", err,
	)

	if e.events != nil {
		e.events.Emit(sse.NewIndexSyncFailedEvent(ownerID, string(target), op, ids, err))
	}

	if e.journal == nil {
		return
	}
	// The request may already be cancelled; the record must still land.
	entry := journal.Entry{
		OwnerID: ownerID,
		Target:  target,
		Op:      string(op),
		IDs:     ids,
		Error:   err.Error(),
	}
	if _, jerr := e.journal.Record(context.WithoutCancel(ctx), entry); jerr != nil {
		e.logger.Error("failed to journal index failure", "owner_id", ownerID, "error", jerr)
	}
}
