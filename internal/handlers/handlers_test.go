package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"mytodos/internal/controller"
	"mytodos/internal/eventloop"
	"mytodos/internal/models"
	"mytodos/internal/store"
	"mytodos/internal/todos"
)

const testTemplates = `
{{define "index.html"}}<h1>{{.Title}}</h1>{{template "todo_list.html" .}}{{end}}
{{define "todo_list.html"}}{{if .Todos}}{{range .Todos}}[{{.ID}}:{{.Text}}:{{.Complete}}]{{end}} {{.Remaining}} remaining{{else}}Nothing to do! Add a task?{{end}}{{end}}
`

type testEnv struct {
	h     *Handlers
	kv    store.KV
	store *todos.Store
}

func setupTestHandlers(t *testing.T, tmpl *template.Template) *testEnv {
	t.Helper()
	kv, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	return setupWithKV(t, kv, tmpl)
}

func setupWithKV(t *testing.T, kv store.KV, tmpl *template.Template) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	s, err := todos.New(ctx, kv)
	if err != nil {
		t.Fatalf("failed to create todo store: %v", err)
	}

	loop := eventloop.New(nil)
	go loop.Run(ctx)

	h := New(loop, tmpl, nil)
	controller.New(s, h)
	return &testEnv{h: h, kv: kv, store: s}
}

func parseTestTemplates(t *testing.T) *template.Template {
	t.Helper()
	return template.Must(template.New("").Parse(testTemplates))
}

func withID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func formRequest(method, target string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestHomeHandler_EmptyState(t *testing.T) {
	env := setupTestHandlers(t, parseTestTemplates(t))

	rec := httptest.NewRecorder()
	env.h.Home(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Nothing to do! Add a task?") {
		t.Errorf("expected empty state message, got %q", rec.Body.String())
	}
}

func TestHomeHandler_ListsTodos(t *testing.T) {
	env := setupTestHandlers(t, parseTestTemplates(t))

	for _, text := range []string{"buy milk", "walk dog"} {
		rec := httptest.NewRecorder()
		env.h.CreateTodo(rec, formRequest("POST", "/api/todos", url.Values{"text": {text}}))
		if rec.Code != http.StatusOK {
			t.Fatalf("create %q: expected status %d, got %d", text, http.StatusOK, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	env.h.Home(rec, httptest.NewRequest("GET", "/", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "[1:buy milk:false][2:walk dog:false] 2 remaining") {
		t.Errorf("unexpected body: %q", body)
	}
}

func TestListTodosHandler_ReturnsJSON(t *testing.T) {
	env := setupTestHandlers(t, nil)
	ctx := context.Background()
	env.store.AddTodo(ctx, "buy milk")

	rec := httptest.NewRecorder()
	env.h.ListTodos(rec, httptest.NewRequest("GET", "/api/todos", nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}

	var got []models.Todo
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	want := []models.Todo{{ID: 1, Text: "buy milk", Complete: false}}
	if len(got) != 1 || got[0] != want[0] {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestListTodosHandler_EmptyIsArray(t *testing.T) {
	env := setupTestHandlers(t, nil)

	rec := httptest.NewRecorder()
	env.h.ListTodos(rec, httptest.NewRequest("GET", "/api/todos", nil))

	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty array, got %q", rec.Body.String())
	}
}

func TestCreateTodoHandler_Success(t *testing.T) {
	env := setupTestHandlers(t, parseTestTemplates(t))

	rec := httptest.NewRecorder()
	env.h.CreateTodo(rec, formRequest("POST", "/api/todos", url.Values{"text": {"buy milk"}}))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "[1:buy milk:false]") {
		t.Errorf("expected partial with new todo, got %q", rec.Body.String())
	}

	raw, ok, err := env.kv.Get(context.Background(), todos.DefaultKey)
	if err != nil || !ok {
		t.Fatalf("expected persisted todos, ok=%v err=%v", ok, err)
	}
	if string(raw) != `[{"id":1,"text":"buy milk","complete":false}]` {
		t.Errorf("unexpected persisted value %s", raw)
	}
}

func TestCreateTodoHandler_ValidationError(t *testing.T) {
	env := setupTestHandlers(t, nil)

	rec := httptest.NewRecorder()
	env.h.CreateTodo(rec, formRequest("POST", "/api/todos", url.Values{"text": {"   "}}))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
	if rec.Body.String() != "text is required" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
	if n := len(env.store.Todos()); n != 0 {
		t.Errorf("expected no todos, got %d", n)
	}
}

func TestUpdateTodoHandler_Success(t *testing.T) {
	env := setupTestHandlers(t, parseTestTemplates(t))
	env.store.AddTodo(context.Background(), "buy milk")

	req := withID(formRequest("PUT", "/api/todos/1", url.Values{"text": {"buy oat milk"}}), "1")
	rec := httptest.NewRecorder()
	env.h.UpdateTodo(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if got := env.store.Todos()[0].Text; got != "buy oat milk" {
		t.Errorf("expected text to be updated, got %q", got)
	}
	if !strings.Contains(rec.Body.String(), "[1:buy oat milk:false]") {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestUpdateTodoHandler_InvalidID(t *testing.T) {
	env := setupTestHandlers(t, nil)

	req := withID(formRequest("PUT", "/api/todos/abc", url.Values{"text": {"x"}}), "abc")
	rec := httptest.NewRecorder()
	env.h.UpdateTodo(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
	if rec.Body.String() != "invalid todo id" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestDeleteTodoHandler_Success(t *testing.T) {
	env := setupTestHandlers(t, parseTestTemplates(t))
	ctx := context.Background()
	env.store.AddTodo(ctx, "a")
	env.store.AddTodo(ctx, "b")

	rec := httptest.NewRecorder()
	env.h.DeleteTodo(rec, withID(httptest.NewRequest("DELETE", "/api/todos/1", nil), "1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	got := env.store.Todos()
	if len(got) != 1 || got[0].ID != 2 {
		t.Errorf("expected only todo 2 to remain, got %v", got)
	}
}

func TestDeleteTodoHandler_MissingIDIsNoop(t *testing.T) {
	env := setupTestHandlers(t, nil)
	env.store.AddTodo(context.Background(), "a")

	rec := httptest.NewRecorder()
	env.h.DeleteTodo(rec, withID(httptest.NewRequest("DELETE", "/api/todos/99", nil), "99"))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if n := len(env.store.Todos()); n != 1 {
		t.Errorf("expected 1 todo, got %d", n)
	}
}

func TestToggleTodoHandler_Success(t *testing.T) {
	env := setupTestHandlers(t, parseTestTemplates(t))
	env.store.AddTodo(context.Background(), "a")

	rec := httptest.NewRecorder()
	env.h.ToggleTodo(rec, withID(httptest.NewRequest("POST", "/api/todos/1/toggle", nil), "1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if !env.store.Todos()[0].Complete {
		t.Error("expected todo to be complete")
	}
	if !strings.Contains(rec.Body.String(), "[1:a:true] 0 remaining") {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestToggleTodoHandler_InvalidID(t *testing.T) {
	env := setupTestHandlers(t, nil)

	rec := httptest.NewRecorder()
	env.h.ToggleTodo(rec, withID(httptest.NewRequest("POST", "/api/todos/x/toggle", nil), "x"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

// failingKV loads fine and rejects every write.
type failingKV struct {
	store.KV
}

func (failingKV) Set(ctx context.Context, key string, value []byte) error {
	return errors.New("disk full")
}

func TestCreateTodoHandler_StorageFailure(t *testing.T) {
	env := setupWithKV(t, failingKV{KV: store.NewMemoryStore()}, nil)

	rec := httptest.NewRecorder()
	env.h.CreateTodo(rec, formRequest("POST", "/api/todos", url.Values{"text": {"a"}}))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
	}
	if rec.Body.String() != "internal server error" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestCreateTodoHandler_RespondsWithOwnRender(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop := eventloop.New(nil)
	go loop.Run(ctx)

	h := New(loop, parseTestTemplates(t), nil)
	mine := []models.Todo{{ID: 1, Text: "mine"}}
	other := []models.Todo{{ID: 1, Text: "mine"}, {ID: 2, Text: "other"}}

	for i := 0; i < 20; i++ {
		queued := make(chan struct{})
		rendered := make(chan struct{})
		h.BindAddTodo(func(ctx context.Context, text string) error {
			// Another intent is waiting on the loop while this one renders.
			go func() {
				close(queued)
				_ = loop.Do(context.Background(), func(context.Context) error {
					h.Render(other)
					return nil
				})
				close(rendered)
			}()
			<-queued
			time.Sleep(time.Millisecond)
			h.Render(mine)
			return nil
		})

		rec := httptest.NewRecorder()
		h.CreateTodo(rec, formRequest("POST", "/api/todos", url.Values{"text": {"mine"}}))
		<-rendered

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if body := rec.Body.String(); body != "[1:mine:false] 1 remaining" {
			t.Fatalf("run %d: expected the list this request rendered, got %q", i, body)
		}
	}
}

func TestRouter_Routes(t *testing.T) {
	env := setupTestHandlers(t, parseTestTemplates(t))
	router := env.h.Router(nil)

	tests := []struct {
		name       string
		req        *http.Request
		wantStatus int
		wantBody   string
	}{
		{"health", httptest.NewRequest("GET", "/healthz", nil), http.StatusOK, `{"status":"ok"}`},
		{"create", formRequest("POST", "/api/todos", url.Values{"text": {"a"}}), http.StatusOK, "[1:a:false]"},
		{"toggle", httptest.NewRequest("POST", "/api/todos/1/toggle", nil), http.StatusOK, "[1:a:true]"},
		{"edit", formRequest("PUT", "/api/todos/1", url.Values{"text": {"b"}}), http.StatusOK, "[1:b:true]"},
		{"list", httptest.NewRequest("GET", "/api/todos", nil), http.StatusOK, `"text":"b"`},
		{"page", httptest.NewRequest("GET", "/", nil), http.StatusOK, "<h1>My Todos</h1>"},
		{"delete", httptest.NewRequest("DELETE", "/api/todos/1", nil), http.StatusOK, "Nothing to do!"},
		{"bad id", httptest.NewRequest("DELETE", "/api/todos/nope", nil), http.StatusBadRequest, "invalid todo id"},
		{"metrics", httptest.NewRequest("GET", "/metrics", nil), http.StatusOK, "mytodos_mutations_total"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, tt.req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("expected body to contain %q, got %q", tt.wantBody, rec.Body.String())
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("expected request id header")
			}
		})
	}
}
