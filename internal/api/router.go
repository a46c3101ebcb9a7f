package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"querydesk/internal/middleware"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	CORSAllowedOrigins []string
	// RateLimiter throttles /api/v1. Nil disables rate limiting.
	RateLimiter *middleware.RateLimiter
	// Auth validates bearer tokens on /api/v1. Nil leaves the API open.
	Auth   middleware.TokenValidator
	Logger *slog.Logger
}

// NewRouter builds the HTTP router: health check at /healthz and the
// authenticated API under /api/v1.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		if opts.RateLimiter != nil {
			r.Use(opts.RateLimiter.Handler)
		}
		if opts.Auth != nil {
			r.Use(middleware.Authenticate(opts.Auth))
		}
		h.Routes(r)
	})
	return r
}
