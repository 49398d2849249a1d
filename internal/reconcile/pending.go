package reconcile

import (
	"context"

	"kanban/internal/board"
)

// Op names the kind of persistence call.
type Op int

const (
	OpLoad Op = iota
	OpCreate
	OpUpdate
	OpMove
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpLoad:
		return "load"
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpMove:
		return "move"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Pending is one persistence call that has been decided but not run. Run is
// safe to call off the event goroutine; it never touches the store.
type Pending struct {
	Seq     uint64
	Op      Op
	TaskID  string
	Version uint64

	call func(ctx context.Context) Completion
}

// Run performs the call and returns its outcome.
func (p *Pending) Run(ctx context.Context) Completion {
	c := p.call(ctx)
	c.Seq, c.Op, c.TaskID, c.Version = p.Seq, p.Op, p.TaskID, p.Version
	return c
}

// Completion 一次持久化调用的结果，须在事件循环中交给 Controller.Complete
// Completion is the outcome of a Pending. It must be handed back to
// Controller.Complete on the goroutine that owns the store.
type Completion struct {
	Seq     uint64
	Op      Op
	TaskID  string
	Version uint64

	Task  board.Task
	Tasks []board.Task
	Err   error
}
