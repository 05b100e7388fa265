// Package api provides the HTTP API server and handlers for Booksy.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/booksy/booksy-server/internal/config"
	"github.com/booksy/booksy-server/internal/sse"
	"github.com/booksy/booksy-server/internal/store"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store           store.Store
	services        *Services
	router          *chi.Mux
	api             huma.API
	logger          *slog.Logger
	authRateLimiter *RateLimiter
}

// Options tunes the server. Zero values use the defaults.
type Options struct {
	CORSOrigins     []string
	AuthRateLimiter *RateLimiter
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(st store.Store, services *Services, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.AuthRateLimiter == nil {
		opts.AuthRateLimiter = NewRateLimiter(20, time.Minute, 10)
	}

	s := &Server{
		store:           st,
		services:        services,
		router:          chi.NewRouter(),
		logger:          logger,
		authRateLimiter: opts.AuthRateLimiter,
	}

	s.setupMiddleware(opts.CORSOrigins)

	humaConfig := huma.DefaultConfig("Booksy API", config.Version)
	humaConfig.Info.Description = "Self-hosted e-book library and reader"
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerInstanceRoutes()
	s.registerAuthRoutes()
	s.registerUserRoutes()
	s.registerAdminRoutes()
	s.registerBookRoutes()
	s.registerCoverRoutes()
	s.registerSearchRoutes()
	s.registerReaderRoutes()

	if services.Events != nil {
		s.router.Get("/api/v1/events", sse.NewHandler(services.Events, streamUser, logger).ServeHTTP)
	}

	return s
}

// streamUser identifies event stream callers from the auth middleware's
// context.
func streamUser(r *http.Request) (string, bool, bool) {
	user, err := RequireUser(r.Context())
	if err != nil {
		return "", false, false
	}
	return user.ID, user.IsAdmin(), true
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, mainly for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	s.authRateLimiter.Stop()
}

func (s *Server) setupMiddleware(origins []string) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Retry-After", "Content-Disposition", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(middleware.Compress(5, "application/json", "text/plain", "text/markdown"))
	s.router.Use(authMiddleware(s.services.Auth))
}
