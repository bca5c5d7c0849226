// Package di provides dependency injection configuration for the Slate server.
package di

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/slatehq/slate-server/internal/config"
	"github.com/slatehq/slate-server/internal/di/providers"
	"github.com/slatehq/slate-server/internal/logger"
	"github.com/slatehq/slate-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
// args are parsed as configuration flags.
func NewContainer(args []string) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig(args))
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideJournal)

	// Index sync
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideSearchService)
	do.Provide(injector, providers.ProvideSyncLimiter)
	do.Provide(injector, providers.ProvideIndexSyncEmitter)

	// Business services
	do.Provide(injector, providers.ProvideRenameResolver)
	do.Provide(injector, providers.ProvideCollectionService)
	do.Provide(injector, providers.ProvideLibraryService)
	do.Provide(injector, providers.ProvideReconcileService)

	// Server
	do.Provide(injector, providers.ProvideAPILimiter)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes the core services without starting the HTTP server.
// Command line tools stop here.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*logger.Logger](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SearchIndexHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.JournalHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*service.CollectionService](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*service.LibraryService](injector); err != nil {
		return err
	}
	_, err := do.Invoke[*service.ReconcileService](injector)
	return err
}

// Serve bootstraps the container, replays the journal and starts the HTTP
// server.
func Serve(ctx context.Context, injector *do.RootScope) error {
	if err := Bootstrap(injector); err != nil {
		return err
	}

	providers.ReplayJournalIfNeeded(ctx, injector)

	_, err := do.Invoke[*providers.HTTPServerHandle](injector)
	return err
}
