// Package gateway is the only component that talks to the persistence
// service. It owns the wire format and maps envelope codes to errors.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"kanban/internal/api"
	"kanban/internal/board"
	"kanban/internal/config"
)

// Gateway 持久化服务的四个调用
// Gateway is the persistence contract the reconciliation controller uses.
type Gateway interface {
	ListTasks(ctx context.Context) ([]board.Task, error)
	CreateTask(ctx context.Context, title, status string) (board.Task, error)
	UpdateTask(ctx context.Context, id string, patch board.Patch) (board.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

var (
	// ErrMalformedEnvelope is a 2xx body that is not a {code, message, data}
	// envelope, or lacks the data the call needs.
	ErrMalformedEnvelope = errors.New("malformed envelope")
	// ErrUnreachable wraps failures where no response was read at all.
	ErrUnreachable = errors.New("service unreachable")
)

const (
	// createAttempts bounds how often a create is sent when the service
	// cannot be reached. Every attempt carries the same Idempotency-Key, so
	// a create that did land is returned rather than inserted again.
	createAttempts   = 3
	createRetryDelay = 200 * time.Millisecond
)

// APIError is a failure reported by the service: a non-2xx status, a
// non-zero envelope code, or both.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("persistence error: status=%d code=%d: %s", e.Status, e.Code, msg)
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && (apiErr.Status == http.StatusNotFound || apiErr.Code == http.StatusNotFound)
}

type Client struct {
	baseURL    string
	httpClient *http.Client

	createAttempts int
	retryDelay     time.Duration
}

func NewClient(cfg config.ServerConfig) *Client {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		createAttempts: createAttempts,
		retryDelay:     createRetryDelay,
	}
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) ListTasks(ctx context.Context) ([]board.Task, error) {
	var env api.Envelope[[]board.Task]
	if err := c.do(ctx, http.MethodGet, api.TasksPath, nil, nil, &env); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if env.Data == nil {
		return []board.Task{}, nil
	}
	return env.Data, nil
}

// CreateTask posts a new task. When the service cannot be reached the same
// request is sent again, up to createAttempts times.
func (c *Client) CreateTask(ctx context.Context, title, status string) (board.Task, error) {
	body := api.CreateTaskRequest{Title: title, Status: status}
	headers := map[string]string{api.IdempotencyHeader: uuid.NewString()}
	var env api.Envelope[board.Task]
	var err error
	for attempt := 1; ; attempt++ {
		env = api.Envelope[board.Task]{}
		err = c.do(ctx, http.MethodPost, api.TasksPath, headers, body, &env)
		if err == nil || !errors.Is(err, ErrUnreachable) || attempt >= c.createAttempts || ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			return board.Task{}, fmt.Errorf("create task: %w", ctx.Err())
		case <-time.After(c.retryDelay * time.Duration(attempt)):
		}
	}
	if err != nil {
		return board.Task{}, fmt.Errorf("create task: %w", err)
	}
	if env.Data.ID == "" {
		return board.Task{}, fmt.Errorf("create task: %w: response carries no task", ErrMalformedEnvelope)
	}
	return env.Data, nil
}

func (c *Client) UpdateTask(ctx context.Context, id string, patch board.Patch) (board.Task, error) {
	var env api.Envelope[board.Task]
	if err := c.do(ctx, http.MethodPut, api.TaskPath(id), nil, api.UpdateTaskRequest(patch), &env); err != nil {
		return board.Task{}, fmt.Errorf("update task %s: %w", id, err)
	}
	if env.Data.ID == "" {
		return board.Task{}, fmt.Errorf("update task %s: %w: response carries no task", id, ErrMalformedEnvelope)
	}
	return env.Data, nil
}

// DeleteTask succeeds on 204, an empty 2xx body, or a success envelope.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, api.TaskPath(id), nil, nil, nil); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

// do sends one request and decodes the envelope into out. A 2xx body must
// carry a code; when out is set it must carry data as well. An empty 2xx
// body is only accepted when out is nil.
func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := sonic.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	trimmed := bytes.TrimSpace(data)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Code: resp.StatusCode, Message: string(trimmed)}
		var env envelopeHead
		if len(trimmed) > 0 && sonic.Unmarshal(trimmed, &env) == nil && env.Message != "" {
			apiErr.Message = env.Message
			if env.Code != nil && *env.Code != api.CodeOK {
				apiErr.Code = *env.Code
			}
		}
		return apiErr
	}
	if resp.StatusCode == http.StatusNoContent || len(trimmed) == 0 {
		if out != nil {
			return fmt.Errorf("decode envelope: %w: empty body (status=%d)", ErrMalformedEnvelope, resp.StatusCode)
		}
		return nil
	}

	var head envelopeHead
	if err := sonic.Unmarshal(trimmed, &head); err != nil {
		return fmt.Errorf("decode envelope: %w: %w", ErrMalformedEnvelope, err)
	}
	if head.Code == nil {
		return fmt.Errorf("decode envelope: %w: no code", ErrMalformedEnvelope)
	}
	if *head.Code != api.CodeOK {
		return &APIError{Status: resp.StatusCode, Code: *head.Code, Message: head.Message}
	}
	if out == nil {
		return nil
	}
	if len(head.Data) == 0 {
		return fmt.Errorf("decode envelope: %w: no data", ErrMalformedEnvelope)
	}
	if err := sonic.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	return nil
}

// envelopeHead reads code and message and keeps data raw. A nil Code or
// Data means the key was absent.
type envelopeHead struct {
	Code    *int            `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}
