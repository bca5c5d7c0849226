package providers

import (
	"github.com/samber/do/v2"

	"github.com/slatehq/slate-server/internal/config"
	"github.com/slatehq/slate-server/internal/logger"
	"github.com/slatehq/slate-server/internal/ratelimit"
	"github.com/slatehq/slate-server/internal/service"
	"github.com/slatehq/slate-server/internal/validation"
)

// ProvideSearchService provides the index collaborator with bounded retries.
func ProvideSearchService(i do.Injector) (*service.SearchService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSearchService(indexHandle.SearchIndex, storeHandle.Store, service.SearchOptions{
		MaxRetries:     cfg.Search.MaxRetries,
		InitialBackoff: cfg.Search.InitialBackoff,
		Timeout:        cfg.Search.Timeout,
	}, log.WithComponent("search").Logger), nil
}

// SyncLimiterHandle paces index calls per owner. Limiter is nil when pacing
// is disabled.
type SyncLimiterHandle struct {
	Limiter *ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdowner.
func (h *SyncLimiterHandle) Shutdown() {
	if h.Limiter != nil {
		h.Limiter.Stop()
	}
}

// ProvideSyncLimiter provides the outbound per-owner limiter.
func ProvideSyncLimiter(i do.Injector) (*SyncLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	if cfg.Sync.RatePerSecond <= 0 {
		return &SyncLimiterHandle{}, nil
	}
	return &SyncLimiterHandle{Limiter: ratelimit.New(cfg.Sync.RatePerSecond, cfg.Sync.RateBurst)}, nil
}

// ProvideIndexSyncEmitter provides the emitter shared by every mutation path.
func ProvideIndexSyncEmitter(i do.Injector) (*service.IndexSyncEmitter, error) {
	cfg := do.MustInvoke[*config.Config](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	journalHandle := do.MustInvoke[*JournalHandle](i)
	limiter := do.MustInvoke[*SyncLimiterHandle](i)
	events := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewIndexSyncEmitter(searchService, service.EmitterOptions{
		Concurrent: cfg.Sync.Concurrent,
		Limiter:    limiter.Limiter,
		Journal:    journalHandle.Journal,
		Events:     events.Manager,
	}, log.WithComponent("index_sync").Logger), nil
}

// ProvideRenameResolver provides slug derivation and uniqueness checks.
func ProvideRenameResolver(i do.Injector) (*service.RenameResolver, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	return service.NewRenameResolver(storeHandle.Store, validation.New()), nil
}

// ProvideCollectionService provides the collection update coordinator.
func ProvideCollectionService(i do.Injector) (*service.CollectionService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	renamer := do.MustInvoke[*service.RenameResolver](i)
	emitter := do.MustInvoke[*service.IndexSyncEmitter](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCollectionService(storeHandle.Store, renamer, emitter, log.Logger), nil
}

// ProvideLibraryService provides file and membership management.
func ProvideLibraryService(i do.Injector) (*service.LibraryService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	renamer := do.MustInvoke[*service.RenameResolver](i)
	emitter := do.MustInvoke[*service.IndexSyncEmitter](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewLibraryService(storeHandle.Store, renamer, emitter, log.Logger), nil
}

// ProvideReconcileService provides index repair.
func ProvideReconcileService(i do.Injector) (*service.ReconcileService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	emitter := do.MustInvoke[*service.IndexSyncEmitter](i)
	journalHandle := do.MustInvoke[*JournalHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewReconcileService(storeHandle.Store, searchService, emitter, journalHandle.Journal, log.WithComponent("reconcile").Logger), nil
}
