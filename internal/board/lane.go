package board

import (
	"fmt"
	"strings"
)

// Lane 泳道定义（状态 id 与展示标题）
// Lane is one status column: its id and display title.
type Lane struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
}

// LaneSet is the fixed, ordered set of lanes a board knows about. Adding a
// lane is a configuration change.
type LaneSet struct {
	lanes []Lane
	index map[string]int
}

// DefaultLanes returns todo / doing / done.
func DefaultLanes() LaneSet {
	set, _ := NewLaneSet(
		Lane{ID: "todo", Title: "待处理"},
		Lane{ID: "doing", Title: "进行中"},
		Lane{ID: "done", Title: "已完成"},
	)
	return set
}

// NewLaneSet validates ids (non-empty, unique) and keeps the given order.
func NewLaneSet(lanes ...Lane) (LaneSet, error) {
	if len(lanes) == 0 {
		return LaneSet{}, fmt.Errorf("lane set is empty")
	}
	set := LaneSet{
		lanes: make([]Lane, 0, len(lanes)),
		index: make(map[string]int, len(lanes)),
	}
	for _, l := range lanes {
		id := strings.TrimSpace(l.ID)
		if id == "" {
			return LaneSet{}, fmt.Errorf("lane id is empty")
		}
		if _, dup := set.index[id]; dup {
			return LaneSet{}, fmt.Errorf("duplicate lane id %q", id)
		}
		title := strings.TrimSpace(l.Title)
		if title == "" {
			title = id
		}
		set.index[id] = len(set.lanes)
		set.lanes = append(set.lanes, Lane{ID: id, Title: title})
	}
	return set, nil
}

func (s LaneSet) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Index returns the lane's column index or -1.
func (s LaneSet) Index(id string) int {
	if i, ok := s.index[id]; ok {
		return i
	}
	return -1
}

// Default is the lane new tasks go to when none is given.
func (s LaneSet) Default() string {
	if len(s.lanes) == 0 {
		return ""
	}
	return s.lanes[0].ID
}

func (s LaneSet) Lanes() []Lane {
	return append([]Lane(nil), s.lanes...)
}

func (s LaneSet) IDs() []string {
	out := make([]string, len(s.lanes))
	for i, l := range s.lanes {
		out[i] = l.ID
	}
	return out
}

func (s LaneSet) Title(id string) string {
	if i, ok := s.index[id]; ok {
		return s.lanes[i].Title
	}
	return id
}

func (s LaneSet) Len() int {
	return len(s.lanes)
}

// Validate checks the invariants a stored task must hold.
func (s LaneSet) Validate(t Task) error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidTask)
	}
	if !s.Has(t.Status) {
		return fmt.Errorf("%w %q for task %s", ErrUnknownLane, t.Status, t.ID)
	}
	return nil
}
