package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Chandra-cc/personalized-learning/internal/config"
	"github.com/Chandra-cc/personalized-learning/internal/feed"
	"github.com/Chandra-cc/personalized-learning/internal/learning"
	"github.com/Chandra-cc/personalized-learning/internal/models"
	"github.com/Chandra-cc/personalized-learning/internal/services"
)

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	rateLimit      config.RateLimitConfig
	router         *chi.Mux
	service        learning.Service
	deps           *services.Registry
	hub            *feed.Hub
	authMiddleware *AuthMiddleware
	validate       *validator.Validate
}

// NewServer creates a new API server. deps may be empty; hub may be nil,
// in which case the progress stream route answers 503.
func NewServer(
	cfg config.ServerConfig,
	rateLimit config.RateLimitConfig,
	svc learning.Service,
	clients ClientStore,
	deps *services.Registry,
	hub *feed.Hub,
) *Server {
	if deps == nil {
		deps = services.NewRegistry()
	}
	s := &Server{
		config:         cfg,
		rateLimit:      rateLimit,
		service:        svc,
		deps:           deps,
		hub:            hub,
		authMiddleware: NewAuthMiddleware(clients),
		validate:       newValidator(),
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	auth := s.authMiddleware
	r.Route("/api/v1", func(r chi.Router) {
		if s.rateLimit.Requests > 0 {
			r.Use(httprate.LimitByIP(s.rateLimit.Requests, s.rateLimit.Window))
		}
		r.Use(auth.Authenticate)

		// The stream is long lived and must not inherit the request timeout
		r.With(auth.RequirePermission(models.PermPathsRead)).
			Get("/users/{userId}/progress/stream", s.handleProgressStream)

		r.Group(func(r chi.Router) {
			if s.config.RequestTimeout > 0 {
				r.Use(middleware.Timeout(s.config.RequestTimeout))
			}

			r.With(auth.RequirePermission(models.PermPathsRead)).Get("/goals", s.handleListGoals)
			r.With(auth.RequirePermission(models.PermPathsRead)).Get("/learning-path", s.handleGeneratePath)
			r.With(auth.RequirePermission(models.PermPathsWrite)).Post("/users", s.handleSubmitProfile)

			r.Route("/users/{userId}", func(r chi.Router) {
				r.With(auth.RequirePermission(models.PermPathsRead)).Get("/learning-path", s.handleGetLearningPath)
				r.With(auth.RequirePermission(models.PermPathsWrite)).Post("/learning-path/regenerate", s.handleRegeneratePath)
				r.With(auth.RequirePermission(models.PermPathsWrite)).Put("/preferences", s.handleUpdatePreferences)
				r.With(auth.RequirePermission(models.PermProgressWrite)).Post("/progress", s.handleRecordProgress)
				r.With(auth.RequirePermission(models.PermPathsRead)).Get("/recommendations", s.handleRecommendations)
				r.With(auth.RequirePermission(models.PermPathsRead)).Get("/insights", s.handleInsights)
			})
		})
	})

	s.router = r
}
