package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"kanban/internal/api"
	"kanban/internal/board"
	"kanban/internal/position"
	"kanban/internal/storage"
)

var (
	// ErrInvalid marks a request the service refuses to apply.
	ErrInvalid = errors.New("invalid request")
	// ErrInProgress is returned when a create with the same idempotency key
	// has not finished yet.
	ErrInProgress = errors.New("request with this idempotency key is in progress")
)

// Deduper tracks idempotency keys of create requests.
type Deduper interface {
	Claim(ctx context.Context, key string) (bool, error)
	Resolve(ctx context.Context, key, taskID string) error
	Lookup(ctx context.Context, key string) (string, bool, error)
	Release(ctx context.Context, key string) error
}

// TaskService holds the rules of the persistence service: validation,
// default lane, server-assigned id and tail position.
type TaskService struct {
	store   storage.Store
	lanes   board.LaneSet
	deduper Deduper
	log     logrus.FieldLogger
}

// NewTaskService builds the service. deduper may be nil.
func NewTaskService(store storage.Store, lanes board.LaneSet, deduper Deduper, log logrus.FieldLogger) *TaskService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TaskService{store: store, lanes: lanes, deduper: deduper, log: log}
}

func (s *TaskService) List(ctx context.Context) ([]board.Task, error) {
	return s.store.ListTasks(ctx)
}

// Create inserts a task at the tail of its lane. With a non-empty key a
// repeated request returns the task created the first time; replayed
// reports that case.
func (s *TaskService) Create(ctx context.Context, req api.CreateTaskRequest, key string) (t board.Task, replayed bool, err error) {
	title := board.NormalizeTitle(req.Title)
	if title == "" {
		return board.Task{}, false, fmt.Errorf("%w: title is required", ErrInvalid)
	}
	status := req.Status
	if status == "" {
		status = s.lanes.Default()
	}
	if !s.lanes.Has(status) {
		return board.Task{}, false, fmt.Errorf("%w: unknown status %q", ErrInvalid, status)
	}

	if s.deduper != nil && key != "" {
		owned, claimErr := s.deduper.Claim(ctx, key)
		switch {
		case claimErr != nil:
			s.log.WithError(claimErr).Warn("idempotency claim failed; creating without it")
			key = ""
		case !owned:
			id, found, lookupErr := s.deduper.Lookup(ctx, key)
			if lookupErr != nil {
				return board.Task{}, false, fmt.Errorf("idempotency lookup: %w", lookupErr)
			}
			if found && id == "" {
				return board.Task{}, false, ErrInProgress
			}
			if found {
				existing, getErr := s.store.GetTask(ctx, id)
				if getErr == nil {
					return existing, true, nil
				}
				if !errors.Is(getErr, board.ErrNotFound) {
					return board.Task{}, false, getErr
				}
			}
			// expired or deleted since: create again without a claim
			key = ""
		}
	}

	t, err = s.insert(ctx, title, status, req.Content)
	if key != "" {
		if err != nil {
			_ = s.deduper.Release(ctx, key)
		} else if resolveErr := s.deduper.Resolve(ctx, key, t.ID); resolveErr != nil {
			s.log.WithError(resolveErr).WithField("task_id", t.ID).Warn("idempotency resolve failed")
		}
	}
	return t, false, err
}

func (s *TaskService) insert(ctx context.Context, title, status string, content *string) (board.Task, error) {
	tail, err := s.store.TailPosition(ctx, status)
	if err != nil {
		return board.Task{}, err
	}
	t := board.Task{
		ID:       uuid.NewString(),
		Title:    title,
		Content:  content,
		Status:   status,
		Position: position.Between(tail, nil),
	}
	if err := s.store.InsertTask(ctx, t); err != nil {
		return board.Task{}, err
	}
	return t, nil
}

// Update applies a partial update. An empty patch returns the task as is.
func (s *TaskService) Update(ctx context.Context, id string, p board.Patch) (board.Task, error) {
	if p.Title != nil {
		title := board.NormalizeTitle(*p.Title)
		if title == "" {
			return board.Task{}, fmt.Errorf("%w: title is required", ErrInvalid)
		}
		p.Title = &title
	}
	if p.Status != nil && !s.lanes.Has(*p.Status) {
		return board.Task{}, fmt.Errorf("%w: unknown status %q", ErrInvalid, *p.Status)
	}
	return s.store.UpdateTask(ctx, id, p)
}

func (s *TaskService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteTask(ctx, id)
}
