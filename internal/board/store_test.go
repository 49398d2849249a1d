package board

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
)

func task(id, status string, pos float64) Task {
	return Task{ID: id, Title: id, Status: status, Position: pos}
}

func laneIDs(tasks []Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func sameIDs(got []Task, want ...string) bool {
	ids := laneIDs(got)
	if len(ids) != len(want) {
		return false
	}
	for i := range ids {
		if ids[i] != want[i] {
			return false
		}
	}
	return true
}

func TestStore_LoadSortsLanes(t *testing.T) {
	s := NewStore(DefaultLanes())
	err := s.Load([]Task{
		task("c", "todo", 30000),
		task("a", "todo", 10000),
		task("d", "done", 5000),
		task("b", "todo", 10000),
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := s.Lane("todo"); !sameIDs(got, "a", "b", "c") {
		t.Fatalf("todo lane = %v", laneIDs(got))
	}
	if got := s.Lane("done"); !sameIDs(got, "d") {
		t.Fatalf("done lane = %v", laneIDs(got))
	}
	if got := s.Lane("doing"); len(got) != 0 {
		t.Fatalf("doing lane = %v", laneIDs(got))
	}
}

func TestStore_LoadRejectsInvalid(t *testing.T) {
	s := NewStore(DefaultLanes())
	_ = s.Load([]Task{task("a", "todo", 1)})

	if err := s.Load([]Task{task("b", "archived", 1)}); !errors.Is(err, ErrUnknownLane) {
		t.Fatalf("expected ErrUnknownLane, got %v", err)
	}
	if err := s.Load([]Task{task("b", "todo", 1), task("b", "done", 2)}); !errors.Is(err, ErrInvalidTask) {
		t.Fatalf("expected ErrInvalidTask, got %v", err)
	}
	if !s.Has("a") || s.Len() != 1 {
		t.Fatalf("failed load must leave the store unchanged")
	}
}

func TestStore_UpsertPlacesByPosition(t *testing.T) {
	s := NewStore(DefaultLanes())
	_ = s.Load([]Task{task("a", "doing", 10000), task("c", "doing", 20000)})

	if err := s.Upsert(task("b", "doing", 15000)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if got := s.Lane("doing"); !sameIDs(got, "a", "b", "c") {
		t.Fatalf("doing lane = %v", laneIDs(got))
	}

	// replacing moves the task to its new slot
	if err := s.Upsert(task("a", "doing", 25000)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if got := s.Lane("doing"); !sameIDs(got, "b", "c", "a") {
		t.Fatalf("doing lane = %v", laneIDs(got))
	}

	// ties keep insertion order
	_ = s.Upsert(task("z", "doing", 15000))
	if got := s.Lane("doing"); !sameIDs(got, "b", "z", "c", "a") {
		t.Fatalf("doing lane = %v", laneIDs(got))
	}

	if err := s.Upsert(task("x", "nope", 1)); !errors.Is(err, ErrUnknownLane) {
		t.Fatalf("expected ErrUnknownLane, got %v", err)
	}
}

func TestStore_RemoveAbsentIsNoop(t *testing.T) {
	s := NewStore(DefaultLanes())
	_ = s.Load([]Task{task("a", "todo", 1)})
	calls := 0
	s.Subscribe(func(Change) { calls++ })

	if s.Remove("missing") {
		t.Fatalf("Remove(missing) reported true")
	}
	if calls != 0 || s.Len() != 1 {
		t.Fatalf("absent remove changed state: calls=%d len=%d", calls, s.Len())
	}
	if !s.Remove("a") || s.Len() != 0 || calls != 1 {
		t.Fatalf("Remove(a) failed: calls=%d len=%d", calls, s.Len())
	}
	if s.Remove("a") {
		t.Fatalf("second remove reported true")
	}
}

func TestStore_LaneOrderHoldsUnderRandomOps(t *testing.T) {
	s := NewStore(DefaultLanes())
	lanes := s.Lanes().IDs()
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		id := fmt.Sprintf("t%d", r.Intn(40))
		if r.Intn(3) == 0 {
			s.Remove(id)
		} else {
			pos := float64(r.Intn(20)) * 1000
			if err := s.Upsert(task(id, lanes[r.Intn(len(lanes))], pos)); err != nil {
				t.Fatalf("Upsert: %v", err)
			}
		}
		for _, l := range lanes {
			view := s.Lane(l)
			for j := 1; j < len(view); j++ {
				if view[j-1].Position > view[j].Position {
					t.Fatalf("step %d lane %s out of order: %v", i, l, view)
				}
			}
		}
	}
}

func TestStore_SnapshotIsIsolated(t *testing.T) {
	s := NewStore(DefaultLanes())
	content := "notes"
	_ = s.Load([]Task{{ID: "a", Title: "A", Content: &content, Status: "todo", Position: 1}})
	snap := s.Snapshot()

	content = "changed outside"
	_, _ = s.Apply("a", Patch{Title: String("A2"), Content: String("edited")})
	_ = s.SetStatus("a", "done")
	s.Remove("a")

	got, ok := snap.Get("a")
	if !ok {
		t.Fatalf("snapshot lost task")
	}
	if got.Title != "A" || got.ContentText() != "notes" || got.Status != "todo" {
		t.Fatalf("snapshot mutated: %+v", got)
	}
	*got.Content = "scribble"
	again, _ := snap.Get("a")
	if again.ContentText() != "notes" {
		t.Fatalf("snapshot shares content with caller")
	}
}

func TestStore_ReadsReturnCopies(t *testing.T) {
	s := NewStore(DefaultLanes())
	_ = s.Load([]Task{{ID: "a", Title: "A", Content: String("x"), Status: "todo", Position: 1}})
	got, _ := s.Get("a")
	got.Title = "mutated"
	*got.Content = "mutated"
	fresh, _ := s.Get("a")
	if fresh.Title != "A" || fresh.ContentText() != "x" {
		t.Fatalf("store exposed internal state: %+v", fresh)
	}
}

func TestStore_ObserversNotified(t *testing.T) {
	s := NewStore(DefaultLanes())
	var got []Change
	unsubscribe := s.Subscribe(func(c Change) { got = append(got, c) })

	_ = s.Load([]Task{task("a", "todo", 1)})
	_ = s.Upsert(task("b", "todo", 2))
	_ = s.SetStatus("b", "done")
	s.Remove("a")

	want := []ChangeKind{ChangeLoad, ChangeUpsert, ChangeMove, ChangeRemove}
	if len(got) != len(want) {
		t.Fatalf("changes = %v", got)
	}
	for i := range want {
		if got[i].Kind != want[i] {
			t.Fatalf("change %d = %v, want %v", i, got[i].Kind, want[i])
		}
	}
	if got[3].TaskID != "a" {
		t.Fatalf("remove change id = %q", got[3].TaskID)
	}

	unsubscribe()
	_ = s.Upsert(task("c", "todo", 3))
	if len(got) != len(want) {
		t.Fatalf("observer called after unsubscribe")
	}
}

func TestStore_MoveAndSetStatus(t *testing.T) {
	s := NewStore(DefaultLanes())
	_ = s.Load([]Task{
		task("a", "todo", 10000),
		task("b", "todo", 20000),
		task("c", "todo", 30000),
		task("d", "done", 5000),
	})

	if err := s.Move("c", "a"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if got := s.Lane("todo"); !sameIDs(got, "c", "a", "b") {
		t.Fatalf("todo lane = %v", laneIDs(got))
	}

	// cross-lane: status first, then splice to the target
	if err := s.SetStatus("a", "done"); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if err := s.Move("a", "d"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if got := s.Lane("done"); !sameIDs(got, "a", "d") {
		t.Fatalf("done lane = %v", laneIDs(got))
	}
	before, after, err := s.Neighbors("a")
	if err != nil || before != nil || after == nil || after.ID != "d" {
		t.Fatalf("Neighbors(a) = %v, %v, %v", before, after, err)
	}

	if err := s.SetStatus("c", "doing"); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if err := s.MoveToEnd("c"); err != nil {
		t.Fatalf("MoveToEnd: %v", err)
	}
	if status, row, ok := s.Locate("c"); !ok || status != "doing" || row != 0 {
		t.Fatalf("Locate(c) = %s %d %v", status, row, ok)
	}
	if err := s.SetStatus("c", "archived"); !errors.Is(err, ErrUnknownLane) {
		t.Fatalf("expected ErrUnknownLane, got %v", err)
	}
	if err := s.Move("zzz", "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ApplyKeepsVisualPlace(t *testing.T) {
	s := NewStore(DefaultLanes())
	_ = s.Load([]Task{task("a", "todo", 10000), task("b", "todo", 20000)})
	_ = s.Move("b", "a")

	got, err := s.Apply("b", Patch{Position: Float(5000), Title: String("B")})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got.Title != "B" || got.Position != 5000 {
		t.Fatalf("Apply returned %+v", got)
	}
	if lane := s.Lane("todo"); !sameIDs(lane, "b", "a") {
		t.Fatalf("todo lane = %v", laneIDs(lane))
	}
	if _, err := s.Apply("b", Patch{Status: String("nope")}); !errors.Is(err, ErrUnknownLane) {
		t.Fatalf("expected ErrUnknownLane, got %v", err)
	}
}

func TestStore_RestoreSnapshot(t *testing.T) {
	s := NewStore(DefaultLanes())
	_ = s.Load([]Task{task("a", "todo", 10000), task("b", "todo", 20000)})
	snap := s.Snapshot()

	_ = s.SetStatus("a", "done")
	_ = s.Upsert(task("c", "todo", 1))
	s.Restore(snap)

	if got := s.Lane("todo"); !sameIDs(got, "a", "b") {
		t.Fatalf("todo lane = %v", laneIDs(got))
	}
	if s.Has("c") {
		t.Fatalf("restore kept a task the snapshot did not have")
	}
}

func TestStore_ReinstateReturnsTaskToItsSlot(t *testing.T) {
	s := NewStore(DefaultLanes())
	_ = s.Load([]Task{
		task("a", "doing", 10000),
		task("x", "doing", 20000),
		task("b", "doing", 20000),
		task("c", "done", 1),
	})
	snap := s.Snapshot()
	s.Remove("x")

	if !s.Reinstate(snap, "x") {
		t.Fatalf("Reinstate reported false")
	}
	if got := s.Lane("doing"); !sameIDs(got, "a", "x", "b") {
		t.Fatalf("doing lane = %v", laneIDs(got))
	}
	got, _ := s.Get("x")
	if got.Status != "doing" || got.Position != 20000 {
		t.Fatalf("x = %+v", got)
	}
	if s.Reinstate(snap, "x") {
		t.Fatalf("reinstating a present task must be a no-op")
	}
	if s.Reinstate(snap, "ghost") {
		t.Fatalf("reinstating an unknown task must be a no-op")
	}
}

func TestStore_ReinstateAfterNeighbourLeft(t *testing.T) {
	s := NewStore(DefaultLanes())
	_ = s.Load([]Task{task("a", "todo", 10000), task("x", "todo", 20000), task("b", "todo", 30000)})
	snap := s.Snapshot()
	s.Remove("x")
	s.Remove("b")
	_ = s.Upsert(task("n", "todo", 40000))

	s.Reinstate(snap, "x")
	if got := s.Lane("todo"); !sameIDs(got, "a", "x", "n") {
		t.Fatalf("todo lane = %v", laneIDs(got))
	}
}
