package board

import (
	"errors"
	"strings"
)

var (
	ErrNotFound    = errors.New("task not found")
	ErrUnknownLane = errors.New("unknown lane")
	ErrInvalidTask = errors.New("invalid task")
)

// Task 看板中的一张卡片
// Task is a single card on the board.
type Task struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Content  *string `json:"content,omitempty"`
	Status   string  `json:"status"`
	Position float64 `json:"position"`
}

// Clone returns a copy that shares no memory with t.
func (t Task) Clone() Task {
	out := t
	if t.Content != nil {
		c := *t.Content
		out.Content = &c
	}
	return out
}

// ContentText returns the content or "" when absent.
func (t Task) ContentText() string {
	if t.Content == nil {
		return ""
	}
	return *t.Content
}

// Equal compares every field, treating nil content and "" as different.
func (t Task) Equal(o Task) bool {
	if t.ID != o.ID || t.Title != o.Title || t.Status != o.Status || t.Position != o.Position {
		return false
	}
	if (t.Content == nil) != (o.Content == nil) {
		return false
	}
	return t.Content == nil || *t.Content == *o.Content
}

// Patch 部分更新，nil 字段表示不修改
// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	Title    *string  `json:"title,omitempty"`
	Content  *string  `json:"content,omitempty"`
	Status   *string  `json:"status,omitempty"`
	Position *float64 `json:"position,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.Status == nil && p.Position == nil
}

// ApplyTo returns t with the patch applied.
func (p Patch) ApplyTo(t Task) Task {
	out := t.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Content != nil {
		c := *p.Content
		out.Content = &c
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.Position != nil {
		out.Position = *p.Position
	}
	return out
}

// Diff returns the patch that turns from into to.
func Diff(from, to Task) Patch {
	var p Patch
	if from.Title != to.Title {
		v := to.Title
		p.Title = &v
	}
	if to.Content != nil && (from.Content == nil || *from.Content != *to.Content) {
		v := *to.Content
		p.Content = &v
	}
	if from.Status != to.Status {
		v := to.Status
		p.Status = &v
	}
	if from.Position != to.Position {
		v := to.Position
		p.Position = &v
	}
	return p
}

// NormalizeTitle trims a title; the result is "" when nothing is left.
func NormalizeTitle(title string) string {
	return strings.TrimSpace(title)
}

// String returns a pointer to s, for building patches.
func String(s string) *string {
	return &s
}

// Float returns a pointer to v, for building patches.
func Float(v float64) *float64 {
	return &v
}
