package board

import (
	"fmt"
	"sort"
)

// ChangeKind 变更类型
// ChangeKind tells observers what kind of mutation happened.
type ChangeKind int

const (
	ChangeLoad ChangeKind = iota
	ChangeUpsert
	ChangeRemove
	ChangeMove
	ChangeUpdate
	ChangeRestore
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeLoad:
		return "load"
	case ChangeUpsert:
		return "upsert"
	case ChangeRemove:
		return "remove"
	case ChangeMove:
		return "move"
	case ChangeUpdate:
		return "update"
	case ChangeRestore:
		return "restore"
	default:
		return "unknown"
	}
}

// Change is delivered to observers after a mutation completes.
type Change struct {
	Kind   ChangeKind
	TaskID string
}

// Observer receives store changes synchronously on the mutating goroutine.
type Observer func(Change)

type entry struct {
	task Task
	seq  uint64
}

type observerSlot struct {
	id int
	fn Observer
}

// Store 客户端会话持有的任务集合，是唯一的可变共享状态
// Store is the canonical in-memory task collection of a client session.
//
// Tasks are kept in one visual order; a lane is the projection of that order
// by status. Upsert and Load place tasks by (position, insertion seq), so a
// store mutated only through them keeps every lane sorted. The drag
// operations (SetStatus, Move, MoveToEnd) splice the visual order without
// touching positions until the move is settled.
//
// A Store has a single writer and is not safe for concurrent use. Reads
// return copies; callers never hold references into the store.
type Store struct {
	lanes     LaneSet
	order     []entry
	seq       uint64
	observers []observerSlot
	nextObs   int
}

func NewStore(lanes LaneSet) *Store {
	return &Store{lanes: lanes}
}

func (s *Store) Lanes() LaneSet {
	return s.lanes
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Observer) func() {
	s.nextObs++
	id := s.nextObs
	s.observers = append(s.observers, observerSlot{id: id, fn: fn})
	return func() {
		for i, o := range s.observers {
			if o.id == id {
				s.observers = append(s.observers[:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) notify(c Change) {
	obs := append([]observerSlot(nil), s.observers...)
	for _, o := range obs {
		o.fn(c)
	}
}

// Load replaces the whole set. Lanes are sorted by position even when the
// source claims to be sorted already; equal positions keep input order.
func (s *Store) Load(tasks []Task) error {
	seen := make(map[string]struct{}, len(tasks))
	entries := make([]entry, 0, len(tasks))
	seq := s.seq
	for _, t := range tasks {
		if err := s.lanes.Validate(t); err != nil {
			return fmt.Errorf("load: %w", err)
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("load: %w: duplicate id %s", ErrInvalidTask, t.ID)
		}
		seen[t.ID] = struct{}{}
		seq++
		entries = append(entries, entry{task: t.Clone(), seq: seq})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].task.Position < entries[j].task.Position
	})
	s.order = entries
	s.seq = seq
	s.notify(Change{Kind: ChangeLoad})
	return nil
}

// Upsert inserts t or replaces the task with the same id, placing it by
// position within its lane. A replaced task keeps its insertion seq.
func (s *Store) Upsert(t Task) error {
	if err := s.lanes.Validate(t); err != nil {
		return err
	}
	e := entry{task: t.Clone()}
	if i := s.find(t.ID); i >= 0 {
		e.seq = s.order[i].seq
		s.order = append(s.order[:i], s.order[i+1:]...)
	} else {
		s.seq++
		e.seq = s.seq
	}
	s.insert(e)
	s.notify(Change{Kind: ChangeUpsert, TaskID: t.ID})
	return nil
}

// Remove deletes id and reports whether it was present. Removing an absent
// id is a no-op.
func (s *Store) Remove(id string) bool {
	i := s.find(id)
	if i < 0 {
		return false
	}
	s.order = append(s.order[:i], s.order[i+1:]...)
	s.notify(Change{Kind: ChangeRemove, TaskID: id})
	return true
}

func (s *Store) Get(id string) (Task, bool) {
	i := s.find(id)
	if i < 0 {
		return Task{}, false
	}
	return s.order[i].task.Clone(), true
}

func (s *Store) Has(id string) bool {
	return s.find(id) >= 0
}

func (s *Store) Len() int {
	return len(s.order)
}

// Tasks returns every task in visual order.
func (s *Store) Tasks() []Task {
	out := make([]Task, len(s.order))
	for i, e := range s.order {
		out[i] = e.task.Clone()
	}
	return out
}

// Lane returns the ordered view of one lane.
func (s *Store) Lane(status string) []Task {
	return laneOf(s.order, status)
}

// Locate returns the lane and row of id.
func (s *Store) Locate(id string) (status string, row int, ok bool) {
	i := s.find(id)
	if i < 0 {
		return "", -1, false
	}
	status = s.order[i].task.Status
	for j := 0; j < i; j++ {
		if s.order[j].task.Status == status {
			row++
		}
	}
	return status, row, true
}

// Neighbors returns the tasks directly before and after id in its lane's
// current order; either may be nil.
func (s *Store) Neighbors(id string) (before, after *Task, err error) {
	i := s.find(id)
	if i < 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	status := s.order[i].task.Status
	for j := i - 1; j >= 0; j-- {
		if s.order[j].task.Status == status {
			t := s.order[j].task.Clone()
			before = &t
			break
		}
	}
	for j := i + 1; j < len(s.order); j++ {
		if s.order[j].task.Status == status {
			t := s.order[j].task.Clone()
			after = &t
			break
		}
	}
	return before, after, nil
}

// SetStatus moves id into another lane without changing its place in the
// visual order.
func (s *Store) SetStatus(id, status string) error {
	if !s.lanes.Has(status) {
		return fmt.Errorf("%w %q", ErrUnknownLane, status)
	}
	i := s.find(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if s.order[i].task.Status == status {
		return nil
	}
	s.order[i].task.Status = status
	s.notify(Change{Kind: ChangeMove, TaskID: id})
	return nil
}

// Move splices id to the visual index currently held by targetID.
func (s *Store) Move(id, targetID string) error {
	from := s.find(id)
	if from < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	to := s.find(targetID)
	if to < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, targetID)
	}
	if from == to {
		return nil
	}
	s.splice(from, to)
	s.notify(Change{Kind: ChangeMove, TaskID: id})
	return nil
}

// MoveToEnd splices id to the end of the visual order, which makes it the
// last task of its lane.
func (s *Store) MoveToEnd(id string) error {
	from := s.find(id)
	if from < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if from == len(s.order)-1 {
		return nil
	}
	s.splice(from, len(s.order)-1)
	s.notify(Change{Kind: ChangeMove, TaskID: id})
	return nil
}

// Apply updates fields of id in place, keeping its visual place.
func (s *Store) Apply(id string, p Patch) (Task, error) {
	i := s.find(id)
	if i < 0 {
		return Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if p.Status != nil && !s.lanes.Has(*p.Status) {
		return Task{}, fmt.Errorf("%w %q", ErrUnknownLane, *p.Status)
	}
	if p.Empty() {
		return s.order[i].task.Clone(), nil
	}
	s.order[i].task = p.ApplyTo(s.order[i].task)
	s.notify(Change{Kind: ChangeUpdate, TaskID: id})
	return s.order[i].task.Clone(), nil
}

// Snapshot returns an immutable copy of the current state.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{entries: cloneEntries(s.order)}
}

// Restore replaces the state with a snapshot.
func (s *Store) Restore(snap Snapshot) {
	s.order = cloneEntries(snap.entries)
	for _, e := range s.order {
		if e.seq > s.seq {
			s.seq = e.seq
		}
	}
	s.notify(Change{Kind: ChangeRestore})
}

// Reinstate puts id back the way snap had it: same lane, same position and
// in front of the task that followed it, when that task is still there. It
// returns false when id is already present or unknown to snap.
func (s *Store) Reinstate(snap Snapshot, id string) bool {
	if s.find(id) >= 0 {
		return false
	}
	at := -1
	for i, e := range snap.entries {
		if e.task.ID == id {
			at = i
			break
		}
	}
	if at < 0 {
		return false
	}
	e := entry{task: snap.entries[at].task.Clone(), seq: snap.entries[at].seq}
	if !s.lanes.Has(e.task.Status) {
		return false
	}
	placed := false
	for _, next := range snap.entries[at+1:] {
		if next.task.Status != e.task.Status {
			continue
		}
		if j := s.find(next.task.ID); j >= 0 && s.order[j].task.Status == e.task.Status {
			s.order = append(s.order, entry{})
			copy(s.order[j+1:], s.order[j:])
			s.order[j] = e
			placed = true
			break
		}
	}
	if !placed {
		s.insert(e)
	}
	s.notify(Change{Kind: ChangeUpsert, TaskID: id})
	return true
}

func (s *Store) find(id string) int {
	for i, e := range s.order {
		if e.task.ID == id {
			return i
		}
	}
	return -1
}

// insert places e before the first task of its lane that sorts after it.
func (s *Store) insert(e entry) {
	idx := len(s.order)
	for i, cur := range s.order {
		if cur.task.Status == e.task.Status && less(e, cur) {
			idx = i
			break
		}
	}
	s.order = append(s.order, entry{})
	copy(s.order[idx+1:], s.order[idx:])
	s.order[idx] = e
}

func (s *Store) splice(from, to int) {
	e := s.order[from]
	s.order = append(s.order[:from], s.order[from+1:]...)
	s.order = append(s.order, entry{})
	copy(s.order[to+1:], s.order[to:])
	s.order[to] = e
}

func less(a, b entry) bool {
	if a.task.Position != b.task.Position {
		return a.task.Position < b.task.Position
	}
	return a.seq < b.seq
}

func laneOf(entries []entry, status string) []Task {
	out := make([]Task, 0)
	for _, e := range entries {
		if e.task.Status == status {
			out = append(out, e.task.Clone())
		}
	}
	return out
}

func cloneEntries(in []entry) []entry {
	out := make([]entry, len(in))
	for i, e := range in {
		out[i] = entry{task: e.task.Clone(), seq: e.seq}
	}
	return out
}

// Snapshot 某一时刻的只读副本，用于回滚
// Snapshot is a read-only copy of the store used for rollback.
type Snapshot struct {
	entries []entry
}

func (s Snapshot) Len() int {
	return len(s.entries)
}

func (s Snapshot) Get(id string) (Task, bool) {
	for _, e := range s.entries {
		if e.task.ID == id {
			return e.task.Clone(), true
		}
	}
	return Task{}, false
}

func (s Snapshot) Tasks() []Task {
	out := make([]Task, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.task.Clone()
	}
	return out
}

func (s Snapshot) Lane(status string) []Task {
	return laneOf(s.entries, status)
}
