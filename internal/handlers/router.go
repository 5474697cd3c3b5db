package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/auth"
)

// RouterOptions configures the HTTP surface
type RouterOptions struct {
	CORSAllowOrigins  []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter wires middleware and routes
func NewRouter(h *APIHandlers, authProvider auth.AuthProvider, health *Health, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	c := corslib.New(corslib.Options{
		AllowedOrigins:   opts.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Cache-Control", auth.DevUserHeader},
		AllowCredentials: true,
	})
	r.Use(c.Handler)

	// Health checks (public)
	r.Get("/healthz", health.LivenessHandler)
	r.Get("/readyz", health.ReadinessHandler)
	r.Get("/api/health", health.HealthHandler)

	// Auth routes (public)
	r.Get("/auth/login", authProvider.LoginHandler)
	r.Get("/auth/callback", authProvider.CallbackHandler)
	r.Get("/auth/logout", authProvider.LogoutHandler)

	r.Group(func(r chi.Router) {
		r.Use(authProvider.Middleware)
		if opts.RateLimitRequests > 0 && opts.RateLimitWindow > 0 {
			r.Use(RateLimitMiddleware(opts.RateLimitRequests, opts.RateLimitWindow))
		}

		r.Get("/api/me", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, auth.GetUser(r))
		})
		r.Get("/api/catalog", h.GetCatalog)
		r.Get("/api/matches", h.ListMatches)
		r.Get("/api/stats/players", h.PlayerStats)
		r.Get("/api/events", h.EventsSSE)

		r.Route("/api/sessions", func(r chi.Router) {
			r.Post("/", h.StartSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSession)
				r.Delete("/", h.CancelSession)
				r.Post("/mode", h.SelectMode)
				r.Post("/map", h.SelectMap)
				r.Post("/roster/{side}", h.PickRoster)
				r.Post("/ffa", h.PickFFA)
				r.Post("/scores", h.SetScores)
				r.Post("/size", h.SelectSize)
				r.Post("/submit", h.Submit)
				r.Post("/events", h.PostEvent)
			})
		})
	})

	return r
}
