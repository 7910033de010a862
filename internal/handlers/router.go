package handlers

import (
	"fmt"
	"io/fs"
	"net/http"

	"github.com/felo/classifier-console/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires every console route. m may be nil to disable /metrics.
func NewRouter(h *Handlers, assets fs.FS, m *metrics.Metrics) (http.Handler, error) {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if m != nil {
		r.Use(m.Middleware)
	}

	// Routes
	r.Get("/", h.Index)
	r.Get("/emails/{id}", h.ViewEmail)
	r.Post("/emails", h.SubmitEmail)
	r.Post("/emails/clear", h.ClearEmails)
	r.Post("/upload", h.Upload)
	r.Post("/import", h.Import)
	r.Get("/upload/progress", h.UploadProgressSSE)
	r.Get("/upload/status", h.UploadStatus)
	r.Get("/healthz", h.Health)
	r.Post("/shutdown", h.Shutdown)

	if m != nil {
		r.Handle("/metrics", m.Handler())
	}

	// Static files from embedded assets
	staticFS, err := fs.Sub(assets, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to get static files: %w", err)
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	return r, nil
}
