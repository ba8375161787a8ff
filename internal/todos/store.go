// Package todos owns the todo list: its ordered collection, its persistence
// to a key-value slot and the change notification that follows every mutation.
//
// A Store is not safe for concurrent use. Callers serialize access, either by
// running on a single event loop or by owning the Store from one goroutine.
package todos

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"mytodos/internal/metrics"
	"mytodos/internal/models"
	"mytodos/internal/store"
)

// DefaultKey is the slot the collection is persisted under.
const DefaultKey = "todos"

const corruptSuffix = ".corrupt"

// Store errors.
var (
	ErrStorage      = errors.New("storage access failed")
	ErrCorruptState = errors.New("persisted todo list is corrupt")
	ErrIDsExhausted = errors.New("no todo ids left")
)

// Option configures a Store.
type Option func(*Store)

// WithKey sets the slot key. An empty key keeps DefaultKey.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithLogger sets the logger used for load warnings and storage failures.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStrictLoad makes New fail with ErrCorruptState instead of starting empty.
func WithStrictLoad(strict bool) Option {
	return func(s *Store) {
		s.strict = strict
	}
}

// Store holds the todo collection and mirrors it to a KV slot.
type Store struct {
	kv     store.KV
	key    string
	logger *zap.Logger
	strict bool

	todos     []models.Todo
	lastID    int64
	onChanged func([]models.Todo)
	loadErr   error
}

// New loads the collection stored under the configured key.
func New(ctx context.Context, kv store.KV, opts ...Option) (*Store, error) {
	if kv == nil {
		return nil, errors.New("todos: kv store is required")
	}

	s := &Store{
		kv:     kv,
		key:    DefaultKey,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	s.todos = []models.Todo{}

	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return fmt.Errorf("load todos: %w: %w", ErrStorage, err)
	}

	if ok {
		loaded, err := Decode(raw)
		if err != nil {
			metrics.CorruptLoads.Inc()
			if s.strict {
				return fmt.Errorf("load todos: %w", err)
			}
			s.recoverCorrupt(ctx, raw, err)
		} else {
			s.todos = loaded
		}
	}

	s.lastID = models.MaxID(s.todos)
	metrics.Items.Set(float64(len(s.todos)))
	s.logger.Debug("todo list loaded", zap.String("key", s.key), zap.Int("items", len(s.todos)))
	return nil
}

// recoverCorrupt keeps the unreadable value under a side key before the next
// commit overwrites the slot.
func (s *Store) recoverCorrupt(ctx context.Context, raw []byte, cause error) {
	s.loadErr = cause
	backupKey := s.key + corruptSuffix

	s.logger.Warn("persisted todo list is unreadable, starting empty",
		zap.String("key", s.key),
		zap.String("backup_key", backupKey),
		zap.Error(cause),
	)

	if err := s.kv.Set(ctx, backupKey, raw); err != nil {
		s.logger.Error("failed to back up corrupt todo list", zap.String("backup_key", backupKey), zap.Error(err))
	}
}

// LoadError returns the recoverable error seen while loading, if any.
func (s *Store) LoadError() error {
	return s.loadErr
}

// Key returns the slot key the collection is persisted under.
func (s *Store) Key() string {
	return s.key
}

// Todos returns a copy of the current collection.
func (s *Store) Todos() []models.Todo {
	return models.Clone(s.todos)
}

// BindTodoListChanged registers the change observer, replacing any previous one.
func (s *Store) BindTodoListChanged(callback func(todos []models.Todo)) {
	s.onChanged = callback
}

// AddTodo appends a new incomplete todo. Text is not validated here.
// Once the largest id has been issued the list is left untouched and
// ErrIDsExhausted is returned.
func (s *Store) AddTodo(ctx context.Context, text string) error {
	if s.lastID == math.MaxInt64 {
		return ErrIDsExhausted
	}

	s.lastID++
	s.todos = append(s.todos, models.Todo{
		ID:       s.lastID,
		Text:     text,
		Complete: false,
	})

	return s.commit(ctx, "add")
}

// EditTodo replaces the text of the todo with the given id.
func (s *Store) EditTodo(ctx context.Context, id int64, text string) error {
	s.todos = replace(s.todos, id, func(t models.Todo) models.Todo {
		return models.Todo{ID: t.ID, Text: text, Complete: t.Complete}
	})

	return s.commit(ctx, "edit")
}

// DeleteTodo removes the todo with the given id.
func (s *Store) DeleteTodo(ctx context.Context, id int64) error {
	kept := make([]models.Todo, 0, len(s.todos))
	for _, t := range s.todos {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	s.todos = kept

	return s.commit(ctx, "delete")
}

// ToggleTodo flips the completion flag of the todo with the given id.
func (s *Store) ToggleTodo(ctx context.Context, id int64) error {
	s.todos = replace(s.todos, id, func(t models.Todo) models.Todo {
		return models.Todo{ID: t.ID, Text: t.Text, Complete: !t.Complete}
	})

	return s.commit(ctx, "toggle")
}

// commit notifies the observer, then writes the whole collection to the slot.
func (s *Store) commit(ctx context.Context, op string) error {
	metrics.Mutations.WithLabelValues(op).Inc()
	metrics.Items.Set(float64(len(s.todos)))

	if s.onChanged != nil {
		s.onChanged(models.Clone(s.todos))
	}

	data, err := Encode(s.todos)
	if err != nil {
		return err
	}

	// A started mutation is persisted even if the caller gives up meanwhile.
	if err := s.kv.Set(context.WithoutCancel(ctx), s.key, data); err != nil {
		metrics.CommitFailures.Inc()
		s.logger.Error("failed to persist todo list",
			zap.String("op", op),
			zap.String("key", s.key),
			zap.Error(err),
		)
		return fmt.Errorf("persist todos: %w: %w", ErrStorage, err)
	}

	return nil
}

// replace returns a new slice where the todo matching id is rebuilt by fn.
func replace(todos []models.Todo, id int64, fn func(models.Todo) models.Todo) []models.Todo {
	out := make([]models.Todo, len(todos))
	for i, t := range todos {
		if t.ID == id {
			out[i] = fn(t)
			continue
		}
		out[i] = t
	}
	return out
}
