package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/slatehq/slate-server/internal/api"
	"github.com/slatehq/slate-server/internal/config"
	"github.com/slatehq/slate-server/internal/logger"
	"github.com/slatehq/slate-server/internal/ratelimit"
	"github.com/slatehq/slate-server/internal/service"
)

// APILimiterHandle holds the inbound per-owner request limiter. Limiter is
// nil when API_RATE is zero.
type APILimiterHandle struct {
	Limiter *ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdowner.
func (h *APILimiterHandle) Shutdown() {
	if h.Limiter != nil {
		h.Limiter.Stop()
	}
}

// ProvideAPILimiter provides the request limiter for mutating routes.
func ProvideAPILimiter(i do.Injector) (*APILimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	if cfg.Server.RequestsPerSecond <= 0 {
		return &APILimiterHandle{}, nil
	}
	return &APILimiterHandle{Limiter: ratelimit.New(cfg.Server.RequestsPerSecond, cfg.Server.RequestBurst)}, nil
}

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.ShutdownerWithError.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server and starts it in the background.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	journalHandle := do.MustInvoke[*JournalHandle](i)
	limiter := do.MustInvoke[*APILimiterHandle](i)
	events := do.MustInvoke[*SSEManagerHandle](i)

	services := &api.Services{
		Collection: do.MustInvoke[*service.CollectionService](i),
		Library:    do.MustInvoke[*service.LibraryService](i),
		Reconcile:  do.MustInvoke[*service.ReconcileService](i),
	}

	backends := &api.Backends{
		Store:   storeHandle.Store,
		Index:   indexHandle.SearchIndex,
		Journal: journalHandle.Journal,
	}

	handler := api.NewServer(services, backends, api.Options{
		CORSOrigins: cfg.Server.CORSOrigins,
		Limiter:     limiter.Limiter,
		Events:      events.Manager,
	}, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Open event streams would otherwise hold Shutdown until its timeout.
	srv.RegisterOnShutdown(func() { _ = events.Shutdown() })

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}
