package handlers

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"mytodos/internal/controller"
	"mytodos/internal/eventloop"
	"mytodos/internal/models"
)

var errNotBound = errors.New("intent handler not bound")

// Handlers holds the HTTP handlers and their dependencies. It is the web View:
// the controller renders into it and binds its intents.
type Handlers struct {
	loop      *eventloop.Loop
	templates *template.Template
	logger    *zap.Logger
	hub       *Hub

	mu    sync.RWMutex
	todos []models.Todo

	onAdd    controller.AddFunc
	onEdit   controller.EditFunc
	onDelete controller.DeleteFunc
	onToggle controller.ToggleFunc
}

// New creates a new Handlers instance. Intents are executed on loop.
func New(loop *eventloop.Loop, tmpl *template.Template, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handlers{
		loop:      loop,
		templates: tmpl,
		logger:    logger,
		todos:     []models.Todo{},
	}
	h.hub = NewHub(h.snapshot, logger)
	return h
}

// Hub returns the websocket hub fed by Render.
func (h *Handlers) Hub() *Hub {
	return h.hub
}

// Render stores the latest collection for page and JSON reads and pushes it to
// websocket clients.
func (h *Handlers) Render(todos []models.Todo) {
	h.mu.Lock()
	h.todos = models.Clone(todos)
	h.mu.Unlock()

	h.hub.Broadcast(todos)
}

func (h *Handlers) BindAddTodo(handler controller.AddFunc) { h.onAdd = handler }
func (h *Handlers) BindEditTodo(handler controller.EditFunc) { h.onEdit = handler }
func (h *Handlers) BindDeleteTodo(handler controller.DeleteFunc) { h.onDelete = handler }
func (h *Handlers) BindToggleTodo(handler controller.ToggleFunc) { h.onToggle = handler }

func (h *Handlers) snapshot() []models.Todo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return models.Clone(h.todos)
}

// dispatch runs an intent on the event loop and waits for it. The returned
// list is the one the intent rendered, read before the loop takes the next job.
func (h *Handlers) dispatch(ctx context.Context, intent func(ctx context.Context) error) ([]models.Todo, error) {
	var todos []models.Todo
	err := h.loop.Do(ctx, func(ctx context.Context) error {
		if err := intent(ctx); err != nil {
			return err
		}
		todos = h.snapshot()
		return nil
	})
	return todos, err
}

// parseID extracts and parses an integer ID from URL parameters.
func parseID(r *http.Request, param string) (int64, error) {
	idStr := chi.URLParam(r, param)
	return strconv.ParseInt(idStr, 10, 64)
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, code int, message string) {
	w.WriteHeader(code)
	w.Write([]byte(message))
}

func (h *Handlers) respondServerError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("internal server error",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	respondError(w, http.StatusInternalServerError, "internal server error")
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, name string, data interface{}) {
	if h.templates == nil {
		// For testing without templates
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		h.respondServerError(w, r, err)
	}
}

// renderTemplate renders a full page template.
func (h *Handlers) renderTemplate(w http.ResponseWriter, r *http.Request, name string, data interface{}) {
	h.render(w, r, name, data)
}

// renderPartial renders a partial template (for htmx responses).
func (h *Handlers) renderPartial(w http.ResponseWriter, r *http.Request, name string, data interface{}) {
	h.render(w, r, name, data)
}
