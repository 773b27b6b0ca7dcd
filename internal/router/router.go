package router

import (
	"net/http"

	"scanventory-api/internal/handler"
	"scanventory-api/internal/middleware"
	"scanventory-api/pkg/apierror"
	"scanventory-api/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler          *handler.Handler
	ItemHandler      *handler.ItemHandler
	AlertHandler     *handler.AlertHandler
	DashboardHandler *handler.DashboardHandler
	AdminHandler     *handler.AdminHandler
	AllowedOrigins   []string
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, apierror.NotFound("Route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, &apierror.Error{
			StatusCode: http.StatusMethodNotAllowed,
			Code:       "METHOD_NOT_ALLOWED",
			Message:    "Method not allowed",
		})
	})

	r.Route("/api", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
		}

		if cfg.ItemHandler != nil {
			r.Route("/items", func(r chi.Router) {
				r.Get("/", cfg.ItemHandler.List)
				r.Post("/", cfg.ItemHandler.Create)
				// Registered before /{id} so "scan" is never taken for an id.
				r.Post("/scan", cfg.ItemHandler.Scan)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", cfg.ItemHandler.Get)
					r.Put("/", cfg.ItemHandler.Update)
					r.Delete("/", cfg.ItemHandler.Delete)
					r.Patch("/quantity", cfg.ItemHandler.AdjustQuantity)
				})
			})
		}

		if cfg.AlertHandler != nil {
			r.Route("/alerts", func(r chi.Router) {
				r.Get("/", cfg.AlertHandler.List)
				r.Put("/dismiss-all", cfg.AlertHandler.DismissAll)
				r.Post("/generate", cfg.AlertHandler.Generate)
				r.Put("/{id}/dismiss", cfg.AlertHandler.Dismiss)
			})
		}

		if cfg.DashboardHandler != nil {
			r.Get("/dashboard", cfg.DashboardHandler.Stats)
		}

		if cfg.AdminHandler != nil {
			r.Get("/admin/stats", cfg.AdminHandler.GetStats)
		}
	})

	return r
}
