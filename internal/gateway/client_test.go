package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"kanban/internal/board"
	"kanban/internal/config"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.ServerConfig{BaseURL: srv.URL + "/", TimeoutMS: 2000})
}

func TestClient_ListTasks(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/v1/tasks" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"code":0,"message":"success","data":[
			{"id":"a","title":"A","status":"todo","position":10000},
			{"id":"b","title":"B","content":"","status":"done","position":2.5}
		]}`)
	})
	tasks, err := c.ListTasks(context.Background())
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != "a" || tasks[1].Position != 2.5 {
		t.Fatalf("tasks = %+v", tasks)
	}
	if tasks[0].Content != nil {
		t.Fatalf("absent content decoded as %q", *tasks[0].Content)
	}
	if tasks[1].Content == nil || *tasks[1].Content != "" {
		t.Fatalf("empty content lost")
	}
}

func TestClient_NonZeroCodeIsFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":500,"message":"db down","data":null}`)
	})
	_, err := c.ListTasks(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusOK || apiErr.Code != 500 || apiErr.Message != "db down" {
		t.Fatalf("apiErr = %+v", apiErr)
	}
}

func TestClient_HTTPErrorCarriesEnvelopeMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"code":404,"message":"task not found"}`)
	})
	_, err := c.UpdateTask(context.Background(), "x", board.Patch{Title: board.String("t")})
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if !strings.Contains(err.Error(), "task not found") {
		t.Fatalf("error = %v", err)
	}
}

func TestClient_MalformedEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>oops</html>`)
	})
	if _, err := c.ListTasks(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}

	empty := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	if _, err := empty.ListTasks(context.Background()); err == nil {
		t.Fatalf("expected error for empty list body")
	}
}

func TestClient_EnvelopeWithoutCodeIsMalformed(t *testing.T) {
	bodies := map[string]string{
		"null":         `null`,
		"empty":        `{}`,
		"foreign":      `{"items":[1,2]}`,
		"data only":    `{"data":[]}`,
		"bare array":   `[]`,
		"message only": `{"message":"success"}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			})
			tasks, err := c.ListTasks(context.Background())
			if !errors.Is(err, ErrMalformedEnvelope) {
				t.Fatalf("tasks=%v err=%v, want ErrMalformedEnvelope", tasks, err)
			}
		})
	}
}

func TestClient_EnvelopeWithoutDataIsMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":0,"message":"success"}`)
	})
	ctx := context.Background()
	if _, err := c.ListTasks(ctx); !errors.Is(err, ErrMalformedEnvelope) {
		t.Fatalf("list: %v", err)
	}
	if _, err := c.CreateTask(ctx, "x", "todo"); !errors.Is(err, ErrMalformedEnvelope) {
		t.Fatalf("create: %v", err)
	}
	if _, err := c.UpdateTask(ctx, "a", board.Patch{Title: board.String("x")}); !errors.Is(err, ErrMalformedEnvelope) {
		t.Fatalf("update: %v", err)
	}
	if err := c.DeleteTask(ctx, "a"); err != nil {
		t.Fatalf("delete needs no data: %v", err)
	}
}

func TestClient_ListNullDataIsEmptyBoard(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":0,"message":"success","data":null}`)
	})
	tasks, err := c.ListTasks(context.Background())
	if err != nil || tasks == nil || len(tasks) != 0 {
		t.Fatalf("tasks=%v err=%v", tasks, err)
	}
}

func TestClient_CreateRetriesWithSameKey(t *testing.T) {
	var (
		mu   sync.Mutex
		keys []string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		first := len(keys) == 1
		mu.Unlock()
		if first {
			// drop the connection before any response is written
			conn, _, err := w.(http.Hijacker).Hijack()
			if err != nil {
				t.Errorf("hijack: %v", err)
				return
			}
			_ = conn.Close()
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"code":0,"message":"created","data":{"id":"n1","title":"t","status":"todo","position":10000}}`)
	})
	c.retryDelay = 0

	got, err := c.CreateTask(context.Background(), "t", "todo")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if got.ID != "n1" {
		t.Fatalf("created = %+v", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(keys) < 2 {
		t.Fatalf("requests = %d, want a retry", len(keys))
	}
	for _, k := range keys {
		if k == "" || k != keys[0] {
			t.Fatalf("keys = %v, want one shared key", keys)
		}
	}
}

func TestClient_CreateDoesNotRetryServiceErrors(t *testing.T) {
	var calls int
	var mu sync.Mutex
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"code":500,"message":"db down"}`)
	})
	c.retryDelay = 0
	if _, err := c.CreateTask(context.Background(), "t", "todo"); err == nil {
		t.Fatalf("expected failure")
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestClient_CreateGivesUpWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()
	c := NewClient(config.ServerConfig{BaseURL: url, TimeoutMS: 500})
	c.retryDelay = 0
	_, err := c.CreateTask(context.Background(), "t", "todo")
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("err = %v, want ErrUnreachable", err)
	}
}

func TestClient_CreateTask(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.Header.Get("Idempotency-Key") == "" {
			t.Errorf("missing idempotency key")
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"title":"write docs"`) || !strings.Contains(string(body), `"status":"doing"`) {
			t.Errorf("body = %s", body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"code":0,"message":"created","data":{"id":"n1","title":"write docs","status":"doing","position":10000}}`)
	})
	got, err := c.CreateTask(context.Background(), "write docs", "doing")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if got.ID != "n1" || got.Position != 10000 {
		t.Fatalf("created = %+v", got)
	}
}

func TestClient_UpdateSendsOnlyPatchedFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/v1/tasks/a" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "title") || strings.Contains(string(body), "content") {
			t.Errorf("body carries untouched fields: %s", body)
		}
		_, _ = io.WriteString(w, `{"code":0,"message":"updated","data":{"id":"a","title":"A","status":"done","position":2500}}`)
	})
	got, err := c.UpdateTask(context.Background(), "a", board.Patch{Status: board.String("done"), Position: board.Float(2500)})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if got.Status != "done" || got.Position != 2500 {
		t.Fatalf("updated = %+v", got)
	}
}

func TestClient_DeleteTask(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"no content": func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) },
		"empty body": func(w http.ResponseWriter, r *http.Request) {},
		"envelope": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"code":0,"message":"deleted"}`)
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, h)
			if err := c.DeleteTask(context.Background(), "a"); err != nil {
				t.Fatalf("DeleteTask: %v", err)
			}
		})
	}

	failing := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":1,"message":"locked"}`)
	})
	if err := failing.DeleteTask(context.Background(), "a"); err == nil {
		t.Fatalf("expected failure for non-zero code")
	}
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()
	c := NewClient(config.ServerConfig{BaseURL: url, TimeoutMS: 500})
	if _, err := c.ListTasks(context.Background()); !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
