// Package ui provides the terminal presenters: an interactive bubbletea list
// and a one-shot printer for command line use.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mytodos/internal/controller"
	"mytodos/internal/models"
)

const emptyMessage = "Nothing to do! Add a task?"

var (
	colorBlue    = lipgloss.Color("#89b4fa")
	colorRed     = lipgloss.Color("#f38ba8")
	colorGreen   = lipgloss.Color("#a6e3a1")
	colorOverlay = lipgloss.Color("#7f849c")
	colorText    = lipgloss.Color("#cdd6f4")

	titleStyle    = lipgloss.NewStyle().Foreground(colorBlue).Bold(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(colorBlue).Bold(true)
	textStyle     = lipgloss.NewStyle().Foreground(colorText)
	completeStyle = lipgloss.NewStyle().Foreground(colorOverlay).Strikethrough(true)
	checkStyle    = lipgloss.NewStyle().Foreground(colorGreen)
	mutedStyle    = lipgloss.NewStyle().Foreground(colorOverlay)
	errorStyle    = lipgloss.NewStyle().Foreground(colorRed)
)

type inputMode int

const (
	modeList inputMode = iota
	modeAdd
	modeEdit
)

// Model is the interactive terminal View. Intents run inside bubbletea's
// update loop, so the bound store is only touched from one goroutine.
type Model struct {
	ctx context.Context

	todos  []models.Todo
	cursor int

	mode   inputMode
	input  string
	editID int64

	status    string
	statusErr bool

	onAdd    controller.AddFunc
	onEdit   controller.EditFunc
	onDelete controller.DeleteFunc
	onToggle controller.ToggleFunc
}

// NewModel creates a Model whose intents run with ctx.
func NewModel(ctx context.Context) *Model {
	return &Model{
		ctx:   ctx,
		todos: []models.Todo{},
	}
}

// Render replaces the displayed list and keeps the cursor in range.
func (m *Model) Render(todos []models.Todo) {
	m.todos = models.Clone(todos)
	if m.cursor >= len(m.todos) {
		m.cursor = len(m.todos) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) BindAddTodo(handler controller.AddFunc) { m.onAdd = handler }
func (m *Model) BindEditTodo(handler controller.EditFunc) { m.onEdit = handler }
func (m *Model) BindDeleteTodo(handler controller.DeleteFunc) { m.onDelete = handler }
func (m *Model) BindToggleTodo(handler controller.ToggleFunc) { m.onToggle = handler }

// Todos returns the list as last rendered.
func (m *Model) Todos() []models.Todo {
	return models.Clone(m.todos)
}

// Cursor returns the selected row.
func (m *Model) Cursor() int {
	return m.cursor
}

// Status returns the status line text.
func (m *Model) Status() string {
	return m.status
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.mode != modeList {
		return m.updateInput(key)
	}
	return m.updateList(key)
}

func (m *Model) updateList(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "j", "down":
		if m.cursor < len(m.todos)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "a":
		m.mode = modeAdd
		m.input = ""
		m.clearStatus()
	case "e":
		if t, ok := m.selected(); ok {
			m.mode = modeEdit
			m.editID = t.ID
			m.input = t.Text
			m.clearStatus()
		}
	case " ", "x":
		if t, ok := m.selected(); ok && m.onToggle != nil {
			m.report(m.onToggle(m.ctx, t.ID), "")
		}
	case "d":
		if t, ok := m.selected(); ok && m.onDelete != nil {
			m.report(m.onDelete(m.ctx, t.ID), "Deleted "+quote(t.Text))
		}
	}
	return m, nil
}

func (m *Model) updateInput(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.mode = modeList
		m.input = ""
		m.clearStatus()
	case tea.KeyEnter:
		m.submit()
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(key.Runes)
	}
	return m, nil
}

func (m *Model) submit() {
	if err := models.ValidateText(m.input); err != nil {
		m.setError(err)
		return
	}

	text := m.input
	mode := m.mode
	m.mode = modeList
	m.input = ""

	switch mode {
	case modeAdd:
		if m.onAdd == nil {
			return
		}
		err := m.onAdd(m.ctx, text)
		if err == nil {
			m.cursor = len(m.todos) - 1
		}
		m.report(err, "Added "+quote(text))
	case modeEdit:
		if m.onEdit == nil {
			return
		}
		m.report(m.onEdit(m.ctx, m.editID, text), "Updated "+quote(text))
	}
}

func (m *Model) selected() (models.Todo, bool) {
	if m.cursor < 0 || m.cursor >= len(m.todos) {
		return models.Todo{}, false
	}
	return m.todos[m.cursor], true
}

// report shows err on the status line, or ok when err is nil.
func (m *Model) report(err error, ok string) {
	if err != nil {
		m.setError(err)
		return
	}
	m.status = ok
	m.statusErr = false
}

func (m *Model) setError(err error) {
	m.status = err.Error()
	m.statusErr = true
}

func (m *Model) clearStatus() {
	m.status = ""
	m.statusErr = false
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("My Todos") + "\n\n")

	if len(m.todos) == 0 {
		b.WriteString("  " + mutedStyle.Render(emptyMessage) + "\n")
	}
	for i, t := range m.todos {
		prefix := "  "
		if i == m.cursor && m.mode == modeList {
			prefix = cursorStyle.Render("> ")
		}
		b.WriteString(prefix + formatTodo(t) + "\n")
	}

	if len(m.todos) > 0 {
		b.WriteString("\n" + mutedStyle.Render(fmt.Sprintf("%d remaining", models.Remaining(m.todos))) + "\n")
	}

	switch m.mode {
	case modeAdd:
		b.WriteString("\nAdd todo: " + m.input + "_\n")
	case modeEdit:
		b.WriteString(fmt.Sprintf("\nEdit #%d: %s_\n", m.editID, m.input))
	}

	if m.status != "" {
		style := mutedStyle
		if m.statusErr {
			style = errorStyle
		}
		b.WriteString("\n" + style.Render(m.status) + "\n")
	}

	b.WriteString("\n" + mutedStyle.Render(helpLine(m.mode)) + "\n")
	return b.String()
}

func formatTodo(t models.Todo) string {
	if t.Complete {
		return checkStyle.Render("[x]") + " " + completeStyle.Render(t.Text)
	}
	return "[ ] " + textStyle.Render(t.Text)
}

func helpLine(mode inputMode) string {
	if mode != modeList {
		return "enter save  esc cancel"
	}
	return "a add  e edit  space toggle  d delete  j/k move  q quit"
}

func quote(s string) string {
	return `"` + s + `"`
}

// Run shows m full screen until the user quits or ctx is done.
func Run(ctx context.Context, m *Model) error {
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
