package ui

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"mytodos/internal/controller"
	"mytodos/internal/models"
)

var errNotBound = errors.New("intent handler not bound")

// Printer is a View for one-shot commands. It keeps the last rendered list
// and writes it once when Flush is called.
type Printer struct {
	out      io.Writer
	renderer *lipgloss.Renderer
	todos    []models.Todo
	renders  int

	onAdd    controller.AddFunc
	onEdit   controller.EditFunc
	onDelete controller.DeleteFunc
	onToggle controller.ToggleFunc
}

// NewPrinter creates a Printer writing to out. Styling is dropped when out is
// not a terminal.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{
		out:      out,
		renderer: lipgloss.NewRenderer(out),
	}
}

func (p *Printer) Render(todos []models.Todo) {
	p.todos = models.Clone(todos)
	p.renders++
}

func (p *Printer) BindAddTodo(handler controller.AddFunc) { p.onAdd = handler }
func (p *Printer) BindEditTodo(handler controller.EditFunc) { p.onEdit = handler }
func (p *Printer) BindDeleteTodo(handler controller.DeleteFunc) { p.onDelete = handler }
func (p *Printer) BindToggleTodo(handler controller.ToggleFunc) { p.onToggle = handler }

// Add raises the add intent. Empty text is rejected before reaching the store.
func (p *Printer) Add(ctx context.Context, text string) error {
	if err := models.ValidateText(text); err != nil {
		return err
	}
	if p.onAdd == nil {
		return errNotBound
	}
	return p.onAdd(ctx, text)
}

// Edit raises the edit intent.
func (p *Printer) Edit(ctx context.Context, id int64, text string) error {
	if err := models.ValidateText(text); err != nil {
		return err
	}
	if p.onEdit == nil {
		return errNotBound
	}
	return p.onEdit(ctx, id, text)
}

// Delete raises the delete intent.
func (p *Printer) Delete(ctx context.Context, id int64) error {
	if p.onDelete == nil {
		return errNotBound
	}
	return p.onDelete(ctx, id)
}

// Toggle raises the toggle intent.
func (p *Printer) Toggle(ctx context.Context, id int64) error {
	if p.onToggle == nil {
		return errNotBound
	}
	return p.onToggle(ctx, id)
}

// Renders reports how many times the printer was rendered.
func (p *Printer) Renders() int {
	return p.renders
}

// Flush writes the last rendered list.
func (p *Printer) Flush() error {
	if len(p.todos) == 0 {
		_, err := fmt.Fprintln(p.out, emptyMessage)
		return err
	}

	done := p.renderer.NewStyle().Strikethrough(true)
	for _, t := range p.todos {
		line := fmt.Sprintf("[ ] %3d  %s", t.ID, t.Text)
		if t.Complete {
			line = fmt.Sprintf("[x] %3d  %s", t.ID, done.Render(t.Text))
		}
		if _, err := fmt.Fprintln(p.out, line); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(p.out, "%d remaining\n", models.Remaining(p.todos))
	return err
}
