// Package drag implements the gesture state machine that reorders tasks
// locally while a task is carried across the board.
//
// The input layer reports three events: Start(taskID), Over(target) and
// End(target or nil). Hovering only splices the local visual order; the
// durable position is computed once, by the Settler, when the gesture ends
// over a valid target.
package drag

import (
	"errors"
	"fmt"

	"kanban/internal/board"
)

// State 拖拽会话状态
type State int

const (
	Idle State = iota
	Active
	Hovering
	Settled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Hovering:
		return "hovering"
	case Settled:
		return "settled"
	default:
		return "unknown"
	}
}

// TargetKind tells whether a target id names a task or a lane.
type TargetKind int

const (
	TargetTask TargetKind = iota
	TargetLane
)

// Target is what the carried task is currently over.
type Target struct {
	ID   string
	Kind TargetKind
}

func TaskTarget(id string) *Target { return &Target{ID: id, Kind: TargetTask} }
func LaneTarget(id string) *Target { return &Target{ID: id, Kind: TargetLane} }

var (
	ErrBusy        = errors.New("a drag is already in progress")
	ErrNotDragging = errors.New("no drag in progress")
)

// Settler receives the carried task once a gesture ends over a valid target.
// origin is the task as it was when the gesture started.
type Settler interface {
	Settle(taskID string, origin board.Task) error
}

// SettlerFunc adapts a function to Settler.
type SettlerFunc func(taskID string, origin board.Task) error

func (f SettlerFunc) Settle(taskID string, origin board.Task) error {
	return f(taskID, origin)
}

// Session drives one gesture at a time against a store.
type Session struct {
	store   *board.Store
	settler Settler

	state    State
	activeID string
	origin   board.Task
	snapshot board.Snapshot
}

func NewSession(store *board.Store, settler Settler) *Session {
	return &Session{store: store, settler: settler}
}

func (s *Session) State() State {
	return s.state
}

// ActiveID returns the carried task, or "" when idle.
func (s *Session) ActiveID() string {
	return s.activeID
}

// IsActive reports whether id is the carried task.
func (s *Session) IsActive(id string) bool {
	return s.activeID != "" && s.activeID == id
}

// Start picks up taskID and records a snapshot for Cancel.
func (s *Session) Start(taskID string) error {
	if s.state != Idle {
		return ErrBusy
	}
	t, ok := s.store.Get(taskID)
	if !ok {
		return fmt.Errorf("drag start: %w: %s", board.ErrNotFound, taskID)
	}
	s.activeID = taskID
	s.origin = t
	s.snapshot = s.store.Snapshot()
	s.state = Active
	return nil
}

// Over splices the carried task next to target. No position is computed.
func (s *Session) Over(target Target) error {
	if s.state != Active && s.state != Hovering {
		return ErrNotDragging
	}
	s.state = Hovering
	if target.Kind == TargetTask && target.ID == s.activeID {
		return nil
	}
	active, ok := s.store.Get(s.activeID)
	if !ok {
		// removed underneath us, e.g. by a reload
		s.reset()
		return fmt.Errorf("drag over: %w: %s", board.ErrNotFound, s.activeID)
	}

	switch target.Kind {
	case TargetLane:
		if active.Status == target.ID {
			return nil
		}
		if err := s.store.SetStatus(s.activeID, target.ID); err != nil {
			return err
		}
		return s.store.MoveToEnd(s.activeID)
	default:
		over, ok := s.store.Get(target.ID)
		if !ok {
			return fmt.Errorf("drag over: %w: %s", board.ErrNotFound, target.ID)
		}
		if over.Status != active.Status {
			if err := s.store.SetStatus(s.activeID, over.Status); err != nil {
				return err
			}
		}
		return s.store.Move(s.activeID, target.ID)
	}
}

// End finishes the gesture. The active flag is always cleared. With a valid
// target the settler is called exactly once; with nil nothing is persisted
// and the hovered order stays as it is.
func (s *Session) End(target *Target) error {
	if s.state == Idle {
		return ErrNotDragging
	}
	id, origin := s.activeID, s.origin
	s.reset()
	if target == nil || !s.validTarget(*target) {
		return nil
	}
	if !s.store.Has(id) {
		return nil
	}
	s.state = Settled
	var err error
	if s.settler != nil {
		err = s.settler.Settle(id, origin)
	}
	s.state = Idle
	return err
}

// Cancel drops the gesture and puts the carried task back in the lane and
// slot it had at Start. Other tasks changed meanwhile are left alone.
func (s *Session) Cancel() error {
	if s.state == Idle {
		return ErrNotDragging
	}
	id, snap := s.activeID, s.snapshot
	s.reset()
	if !s.store.Has(id) {
		return nil
	}
	s.store.Remove(id)
	s.store.Reinstate(snap, id)
	return nil
}

func (s *Session) validTarget(t Target) bool {
	if t.ID == "" {
		return false
	}
	if t.Kind == TargetLane {
		return s.store.Lanes().Has(t.ID)
	}
	return s.store.Has(t.ID)
}

func (s *Session) reset() {
	s.state = Idle
	s.activeID = ""
	s.origin = board.Task{}
	s.snapshot = board.Snapshot{}
}
