package todos

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"mytodos/internal/models"
)

const schemaURL = "https://mytodos.local/schemas/todos.schema.json"

//go:embed todos.schema.json
var schemaJSON []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func persistedSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// Encode serializes todos as the persisted JSON array. A nil list encodes as "[]".
func Encode(todos []models.Todo) ([]byte, error) {
	if todos == nil {
		todos = []models.Todo{}
	}
	data, err := json.Marshal(todos)
	if err != nil {
		return nil, fmt.Errorf("marshal todos: %w", err)
	}
	return data, nil
}

// Decode parses a persisted value. Empty input and JSON null decode to an empty
// list. Anything that is not a schema-valid array of todos with unique ids
// returns an error wrapping ErrCorruptState.
func Decode(data []byte) ([]models.Todo, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []models.Todo{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	schema, err := persistedSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return nil, fmt.Errorf("%w: %s", ErrCorruptState, describeValidation(ve))
		}
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	var todos []models.Todo
	if err := json.Unmarshal(trimmed, &todos); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	seen := make(map[int64]struct{}, len(todos))
	for i, t := range todos {
		if _, dup := seen[t.ID]; dup {
			return nil, fmt.Errorf("%w: /%d/id: duplicate id %d", ErrCorruptState, i, t.ID)
		}
		seen[t.ID] = struct{}{}
	}

	return todos, nil
}

// describeValidation returns the most specific schema failure.
func describeValidation(ve *jsonschema.ValidationError) string {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	location := ve.InstanceLocation
	if location == "" {
		location = "/"
	}
	return fmt.Sprintf("%s: %s", location, ve.Message)
}
