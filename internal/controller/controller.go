// Package controller connects a View's intents to the todo Store and keeps the
// View rendered with the Store's collection.
package controller

import (
	"context"

	"mytodos/internal/models"
	"mytodos/internal/todos"
)

// Intent handlers a View raises.
type (
	AddFunc    func(ctx context.Context, text string) error
	EditFunc   func(ctx context.Context, id int64, text string) error
	DeleteFunc func(ctx context.Context, id int64) error
	ToggleFunc func(ctx context.Context, id int64) error
)

// View renders the todo list and raises user intents.
type View interface {
	Render(todos []models.Todo)
	BindAddTodo(handler AddFunc)
	BindEditTodo(handler EditFunc)
	BindDeleteTodo(handler DeleteFunc)
	BindToggleTodo(handler ToggleFunc)
}

// Controller wires a View to a Store.
type Controller struct {
	store *todos.Store
	view  View
}

// New binds the controller to store and view and renders the loaded collection once.
func New(store *todos.Store, view View) *Controller {
	c := &Controller{
		store: store,
		view:  view,
	}

	store.BindTodoListChanged(c.onTodoListChanged)
	view.BindAddTodo(c.handleAddTodo)
	view.BindEditTodo(c.handleEditTodo)
	view.BindDeleteTodo(c.handleDeleteTodo)
	view.BindToggleTodo(c.handleToggleTodo)

	c.onTodoListChanged(store.Todos())
	return c
}

func (c *Controller) onTodoListChanged(todos []models.Todo) {
	c.view.Render(todos)
}

func (c *Controller) handleAddTodo(ctx context.Context, text string) error {
	return c.store.AddTodo(ctx, text)
}

func (c *Controller) handleEditTodo(ctx context.Context, id int64, text string) error {
	return c.store.EditTodo(ctx, id, text)
}

func (c *Controller) handleDeleteTodo(ctx context.Context, id int64) error {
	return c.store.DeleteTodo(ctx, id)
}

func (c *Controller) handleToggleTodo(ctx context.Context, id int64) error {
	return c.store.ToggleTodo(ctx, id)
}
