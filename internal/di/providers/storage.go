package providers

import (
	"github.com/samber/do/v2"

	"github.com/slatehq/slate-server/internal/config"
	"github.com/slatehq/slate-server/internal/journal"
	"github.com/slatehq/slate-server/internal/logger"
	"github.com/slatehq/slate-server/internal/search"
	"github.com/slatehq/slate-server/internal/store"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.ShutdownerWithError.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the badger store of record.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := cfg.Storage.StorePath()
	db, err := store.New(store.Options{Path: dbPath, Logger: log.Logger})
	if err != nil {
		return nil, err
	}

	log.Info("database initialized", "path", dbPath)
	return &StoreHandle{Store: db}, nil
}

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.SearchIndex
}

// Shutdown implements do.ShutdownerWithError.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewSearchIndex(search.Options{
		DataPath: cfg.Storage.IndexPath(),
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("search index initialized", "documents", docCount)

	return &SearchIndexHandle{SearchIndex: index}, nil
}

// JournalHandle wraps the failure journal with shutdown capability.
type JournalHandle struct {
	*journal.Journal
}

// Shutdown implements do.ShutdownerWithError.
func (h *JournalHandle) Shutdown() error {
	return h.Close()
}

// ProvideJournal provides the sqlite journal of failed index operations.
func ProvideJournal(i do.Injector) (*JournalHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	j, err := journal.Open(cfg.Storage.JournalPath(), log.Logger)
	if err != nil {
		return nil, err
	}

	return &JournalHandle{Journal: j}, nil
}
