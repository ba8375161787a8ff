package handlers

import (
	"context"
	"net/http"

	"mytodos/internal/models"
)

// CreateTodo adds a todo from the "text" form field.
func (h *Handlers) CreateTodo(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	text := r.FormValue("text")
	if err := models.ValidateText(text); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	todos, err := h.dispatch(r.Context(), func(ctx context.Context) error {
		if h.onAdd == nil {
			return errNotBound
		}
		return h.onAdd(ctx, text)
	})
	if err != nil {
		h.respondServerError(w, r, err)
		return
	}

	h.renderList(w, r, todos)
}

// UpdateTodo replaces the text of a todo.
func (h *Handlers) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid todo id")
		return
	}

	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	text := r.FormValue("text")
	if err := models.ValidateText(text); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	todos, err := h.dispatch(r.Context(), func(ctx context.Context) error {
		if h.onEdit == nil {
			return errNotBound
		}
		return h.onEdit(ctx, id, text)
	})
	if err != nil {
		h.respondServerError(w, r, err)
		return
	}

	h.renderList(w, r, todos)
}

// DeleteTodo removes a todo.
func (h *Handlers) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid todo id")
		return
	}

	todos, err := h.dispatch(r.Context(), func(ctx context.Context) error {
		if h.onDelete == nil {
			return errNotBound
		}
		return h.onDelete(ctx, id)
	})
	if err != nil {
		h.respondServerError(w, r, err)
		return
	}

	h.renderList(w, r, todos)
}

// ToggleTodo flips the completion status of a todo.
func (h *Handlers) ToggleTodo(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid todo id")
		return
	}

	todos, err := h.dispatch(r.Context(), func(ctx context.Context) error {
		if h.onToggle == nil {
			return errNotBound
		}
		return h.onToggle(ctx, id)
	})
	if err != nil {
		h.respondServerError(w, r, err)
		return
	}

	h.renderList(w, r, todos)
}
