package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"mytodos/internal/models"
)

// ListData holds data for the todo list templates.
type ListData struct {
	Title     string
	Todos     []models.Todo
	Remaining int
}

func newListData(todos []models.Todo) ListData {
	return ListData{
		Title:     "My Todos",
		Todos:     todos,
		Remaining: models.Remaining(todos),
	}
}

// Home renders the full page with the current todos.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	h.renderTemplate(w, r, "index.html", newListData(h.snapshot()))
}

// ListTodos returns the current todos as a JSON array.
func (h *Handlers) ListTodos(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.snapshot()); err != nil {
		h.logger.Debug("failed to write todo list", zap.Error(err))
	}
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handlers) renderList(w http.ResponseWriter, r *http.Request, todos []models.Todo) {
	h.renderPartial(w, r, "todo_list.html", newListData(todos))
}
