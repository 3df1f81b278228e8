// api/internal/api/router/router.go
package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/irgordon/threadvault/api/internal/api/handlers"
	api_middleware "github.com/irgordon/threadvault/api/internal/api/middleware"
	"github.com/irgordon/threadvault/api/internal/core/domain"
	delivery "github.com/irgordon/threadvault/api/internal/delivery/http"
)

// RouterConfig defines the strict dependencies required to build the API routing tree.
type RouterConfig struct {
	AllowedOrigins []string
	UnlockHandler  *handlers.UnlockHandler
	ThreadHandler  *handlers.ThreadHandler
	WSHandler      *handlers.WebSocketHandler
	HealthHandler  *delivery.HealthHandler
	Sessions       domain.SessionManager
	Logger         *slog.Logger
}

// NewRouter constructs the Chi multiplexer, attaches global middleware, and wires all endpoints.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// =========================================================================
	// 1. Global Gateway Middleware Pipeline
	// =========================================================================

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(api_middleware.StructuredLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	// Limit incoming JSON requests to 1 Megabyte max
	r.Use(api_middleware.MaxBytes(1_048_576))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// =========================================================================
	// 2. API v1 Routing Tree
	// =========================================================================

	r.Route("/api/v1", func(r chi.Router) {

		// Unlock attempts run to completion; no request timeout here.
		r.Post("/unlock", cfg.UnlockHandler.Unlock)
		r.Get("/ws/unlock", cfg.WSHandler.StreamUnlockState)

		r.With(middleware.Timeout(10*time.Second)).Get("/status", cfg.UnlockHandler.Status)

		// Read-only views over the unlocked state, for session holders only
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(10 * time.Second))
			r.Use(api_middleware.RequireSession(cfg.ThreadHandler.State, cfg.Sessions, cfg.Logger))

			r.Get("/threads", cfg.ThreadHandler.List)
			r.Get("/threads/{id}", cfg.ThreadHandler.Get)
			r.Get("/annotations", cfg.ThreadHandler.Annotations)
		})
	})

	r.Get("/health", cfg.HealthHandler.Check)

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	return r
}
