// Package api implements fhirguard's HTTP surface: a go-chi/chi/v5 router
// with go-chi/cors middleware over the anonymize, validate,
// equivalence-class, and audit endpoints, plus /health liveness.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/savegress/fhirguard/internal/audit"
	"github.com/savegress/fhirguard/internal/config"
)

// Server wires the router and handlers for the fhirguard HTTP API.
type Server struct {
	config   *config.Config
	router   chi.Router
	handlers *Handlers
}

// NewServer creates a new API server. auditLog may be nil to disable audit
// logging on every request.
func NewServer(cfg *config.Config, auditLog *audit.Logger) *Server {
	s := &Server{
		config:   cfg,
		router:   chi.NewRouter(),
		handlers: NewHandlers(cfg, auditLog),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handlers.HealthCheck)

	s.router.Route("/api/v1/fhirguard", func(r chi.Router) {
		r.Route("/anonymize", func(r chi.Router) {
			r.Post("/resource", s.handlers.AnonymizeResource)
			r.Post("/element", s.handlers.AnonymizeElement)
		})

		r.Route("/validate", func(r chi.Router) {
			r.Post("/k-anonymity", s.handlers.ValidateKAnonymity)
			r.Post("/reidentification-risk", s.handlers.ValidateReidentificationRisk)
		})

		r.Post("/equivalence-classes", s.handlers.BuildEquivalenceClasses)

		r.Route("/audit", func(r chi.Router) {
			r.Get("/events", s.handlers.ListAuditEvents)
			r.Get("/stats", s.handlers.GetAuditStats)
		})
	})
}

// Router returns the chi router as an http.Handler.
func (s *Server) Router() http.Handler {
	return s.router
}
