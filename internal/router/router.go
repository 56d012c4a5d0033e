package router

import (
	"net/http"

	"invoiceflow/internal/handler"
	"invoiceflow/internal/metrics"
	"invoiceflow/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers served by the router.
type Handlers struct {
	Product *handler.ProductHandler
	Export  *handler.ExportHandler
	Stream  *handler.StreamHandler
}

// Options configures the router.
type Options struct {
	Keys    middleware.Keys
	Metrics *metrics.Metrics // optional
	Ready   func() bool      // reports whether the first catalog snapshot arrived
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, opts Options, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Apply middleware in order: Recovery -> Logging -> Metrics -> CORS -> APIKeyAuth
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware())
	}
	r.Use(middleware.CORS)
	r.Use(middleware.APIKeyAuth(opts.Keys, logger))

	// Health check endpoint (no authentication required)
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		catalog := "ready"
		if opts.Ready != nil && !opts.Ready() {
			catalog = "loading"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status": "healthy", "catalog": "` + catalog + `"}`))
	})

	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
	}

	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.Product.Search)
		r.Post("/", h.Product.Create)
		r.Get("/low-stock", h.Product.LowStock)
		r.Get("/duplicates", h.Product.Duplicates)
		if h.Export != nil {
			r.Get("/export", h.Export.Download)
		}
		if h.Stream != nil {
			r.Get("/stream", h.Stream.Stream)
		}
		r.Get("/{id}", h.Product.GetByID)
		r.Patch("/{id}", h.Product.Update)
		r.Post("/{id}/stock", h.Product.AdjustStock)
		r.With(middleware.RequireAdmin(logger)).Delete("/{id}", h.Product.Delete)
	})

	return r
}
