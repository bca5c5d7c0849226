package api

import (
	"github.com/slatehq/slate-server/internal/journal"
	"github.com/slatehq/slate-server/internal/search"
	"github.com/slatehq/slate-server/internal/service"
	"github.com/slatehq/slate-server/internal/store"
)

// Services groups the business logic used by the API server.
type Services struct {
	Collection *service.CollectionService // privacy and rename coordinator
	Library    *service.LibraryService
	Reconcile  *service.ReconcileService
}

// Backends are the storage handles probed by the health check. Any of them
// may be nil in tests.
type Backends struct {
	Store   *store.Store
	Index   *search.SearchIndex
	Journal *journal.Journal
}
