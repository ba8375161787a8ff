package handlers

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mytodos/internal/middleware"
)

// Router builds the HTTP routes. static may be nil.
func (h *Handlers) Router(static fs.FS) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(h.logger))
	r.Use(middleware.Metrics)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", h.hub.HandleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(chimw.Compress(5))

		// Static files
		if static != nil {
			r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
		}

		// Page routes
		r.Get("/", h.Home)

		// Todo API routes
		r.Get("/api/todos", h.ListTodos)
		r.Post("/api/todos", h.CreateTodo)
		r.Put("/api/todos/{id}", h.UpdateTodo)
		r.Delete("/api/todos/{id}", h.DeleteTodo)
		r.Post("/api/todos/{id}/toggle", h.ToggleTodo)
	})

	return r
}
