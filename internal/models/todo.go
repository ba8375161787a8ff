package models

import (
	"errors"
	"strings"
)

// ErrTextRequired is returned when a todo's text is empty or whitespace.
var ErrTextRequired = errors.New("text is required")

// Todo represents a single entry in the todo list.
type Todo struct {
	ID       int64  `json:"id"`
	Text     string `json:"text"`
	Complete bool   `json:"complete"`
}

// ValidateText reports whether text is acceptable as todo content.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrTextRequired
	}
	return nil
}

// MaxID returns the largest id in todos, or 0 for an empty list.
func MaxID(todos []Todo) int64 {
	var max int64
	for _, t := range todos {
		if t.ID > max {
			max = t.ID
		}
	}
	return max
}

// Clone returns a copy of todos that shares no backing array with it.
func Clone(todos []Todo) []Todo {
	out := make([]Todo, len(todos))
	copy(out, todos)
	return out
}

// Remaining counts the todos that are not complete.
func Remaining(todos []Todo) int {
	n := 0
	for _, t := range todos {
		if !t.Complete {
			n++
		}
	}
	return n
}
