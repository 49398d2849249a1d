package storage

import (
	"context"

	"kanban/internal/board"
)

// Store 任务持久化接口，SQLite 实现，可选 Redis 读缓存
// Store is the persistence interface of the task service
type Store interface {
	// 读取 / Reads
	ListTasks(ctx context.Context) ([]board.Task, error)
	GetTask(ctx context.Context, id string) (board.Task, error)
	TailPosition(ctx context.Context, status string) (*float64, error)

	// 写入 / Writes
	InsertTask(ctx context.Context, t board.Task) error
	UpdateTask(ctx context.Context, id string, p board.Patch) (board.Task, error)
	DeleteTask(ctx context.Context, id string) error

	// 生命周期 / Lifecycle
	Close() error
}
