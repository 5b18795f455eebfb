package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"life.tape/config"
	"life.tape/internal/logging"
	"life.tape/internal/store"
)

func SetupRouter(s store.Store, a AudioStorage, cfg *config.Config, log logging.Logger) *chi.Mux {
	h := NewHandler(s, a, cfg, log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "apikey", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         86400,
	}))

	// Health
	r.Get("/health", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(RequireKey([]byte(cfg.Auth.Secret)))
		}
		if cfg.RateLimit.Enabled {
			limiter := NewRateLimiter(cfg.RateLimit.RequestsPerMin, time.Minute, cfg.RateLimit.Burst)
			r.Use(limiter.Middleware)
		}
		r.Use(JSONOnly)

		r.Route("/state/{key}", func(r chi.Router) {
			r.Get("/", h.GetState)
			r.Put("/", h.PutState)
			r.Delete("/", h.DeleteState)
		})

		r.Route("/entries", func(r chi.Router) {
			r.Get("/", h.ListEntries)
			r.Post("/", h.CreateEntry)
			r.Get("/{id}", h.GetEntry)
			r.Patch("/{id}", h.UpdateEntry)
			r.Delete("/{id}", h.DeleteEntry)
		})

		r.Route("/audio", func(r chi.Router) {
			r.Post("/uploads", h.CreateAudioUpload)
			r.Get("/url", h.AudioURL)
		})
	})

	return r
}
