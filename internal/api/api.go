// Package api holds the wire types shared by the persistence service and
// its HTTP client.
package api

import (
	"net/url"

	"kanban/internal/board"
)

const (
	// CodeOK is the only envelope code that means success.
	CodeOK = 0

	BasePath          = "/api/v1"
	TasksPath         = BasePath + "/tasks"
	IdempotencyHeader = "Idempotency-Key"
)

// Envelope 统一响应包装 {code, message, data}
// Envelope wraps every response body. A non-zero Code is a failure even when
// the HTTP status is 2xx. Data is always written, null when there is none,
// so an empty list still carries "data":[].
type Envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func OK[T any](message string, data T) Envelope[T] {
	return Envelope[T]{Code: CodeOK, Message: message, Data: data}
}

// CreateTaskRequest is the body of POST /tasks.
type CreateTaskRequest struct {
	Title   string  `json:"title"`
	Status  string  `json:"status,omitempty"`
	Content *string `json:"content,omitempty"`
}

// UpdateTaskRequest is the body of PUT /tasks/{id}; absent fields are kept.
type UpdateTaskRequest = board.Patch

// TaskPath returns the path of one task.
func TaskPath(id string) string {
	return TasksPath + "/" + url.PathEscape(id)
}
