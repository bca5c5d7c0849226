// Package api provides the HTTP API server and handlers for Slate.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/slatehq/slate-server/internal/metrics"
	"github.com/slatehq/slate-server/internal/ratelimit"
	"github.com/slatehq/slate-server/internal/sse"
)

// Options configures the HTTP surface.
type Options struct {
	CORSOrigins []string
	// Limiter paces mutating requests per owner. Nil disables limiting.
	Limiter *ratelimit.KeyedRateLimiter
	// Events backs the live event stream. Nil leaves the route unmounted.
	Events *sse.Manager
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services *Services
	backends *Backends
	router   *chi.Mux
	api      huma.API
	logger   *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, backends *Backends, opts Options, logger *slog.Logger) *Server {
	if backends == nil {
		backends = &Backends{}
	}

	router := chi.NewRouter()
	s := &Server{
		services: services,
		backends: backends,
		router:   router,
		logger:   logger,
	}

	s.setupMiddleware(opts)

	humaConfig := huma.DefaultConfig("Slate API", "2.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"owner": {
			Type: "apiKey",
			In:   "header",
			Name: OwnerHeader,
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.registerRoutes()
	router.Handle("/metrics", metrics.Handler())
	if opts.Events != nil {
		router.Get("/api/v1/events", sse.NewHandler(opts.Events, GetOwnerID, logger).ServeHTTP)
	}

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, used by tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) setupMiddleware(opts Options) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestMetrics)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", OwnerHeader, "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	s.router.Use(ownerMiddleware)
	if opts.Limiter != nil {
		s.router.Use(RateLimitMiddleware(opts.Limiter, s.logger))
	}
}

func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerCollectionRoutes()
	s.registerSlateRoutes()
	s.registerLibraryRoutes()
	s.registerReconcileRoutes()
}
