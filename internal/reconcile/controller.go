// Package reconcile applies task mutations optimistically and reconciles
// the store with the persistence service when the calls complete.
//
// Every outgoing mutation carries a per-task version. A successful echo
// whose version is older than the task's current one is discarded, so a slow
// echo can never overwrite a newer local change. A failure is always
// reported; it rolls back only the fields no newer request has written
// since. Completions for tasks that are no longer in the store never bring
// the task back.
package reconcile

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"kanban/internal/board"
	"kanban/internal/gateway"
	"kanban/internal/position"
)

type Options struct {
	// RollbackFailedMoves puts a task back where it was picked up when the
	// move update fails. Off by default; the failure is still reported.
	RollbackFailedMoves bool
	Logger              logrus.FieldLogger
}

// request is what Complete needs to undo or finish a call.
type request struct {
	op       Op
	taskID   string
	version  uint64
	snapshot board.Snapshot
	prior    board.Task
	patch    board.Patch
	fields   []field
}

// Controller 编排所有需要持久化的变更
// Controller owns every mutation that must reach the persistence service.
// It is not safe for concurrent use; call it from the goroutine that owns
// the store.
type Controller struct {
	store    *board.Store
	gw       gateway.Gateway
	dispatch Dispatcher
	log      logrus.FieldLogger

	rollbackMoves bool

	seq      uint64
	loadSeq  uint64
	versions map[string]uint64
	ledgers  map[string]*ledger
	inflight map[uint64]*request
}

func New(store *board.Store, gw gateway.Gateway, dispatch Dispatcher, opts Options) *Controller {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Controller{
		store:         store,
		gw:            gw,
		dispatch:      dispatch,
		log:           log.WithField("component", "reconcile"),
		rollbackMoves: opts.RollbackFailedMoves,
		versions:      make(map[string]uint64),
		ledgers:       make(map[string]*ledger),
		inflight:      make(map[uint64]*request),
	}
}

// InFlight returns the number of calls not yet completed.
func (c *Controller) InFlight() int {
	return len(c.inflight)
}

// Version returns the current mutation version of a task.
func (c *Controller) Version(id string) uint64 {
	return c.versions[id]
}

// Load fetches the whole board. A newer Load supersedes an older one still
// in flight.
func (c *Controller) Load() {
	c.loadSeq = c.enqueue(&request{op: OpLoad}, func(ctx context.Context) Completion {
		tasks, err := c.gw.ListTasks(ctx)
		return Completion{Tasks: tasks, Err: err}
	})
}

// Create sends a new task to the service. Nothing is added locally until the
// service returns it.
func (c *Controller) Create(title, status string) error {
	title = board.NormalizeTitle(title)
	if title == "" {
		return ErrEmptyTitle
	}
	if status == "" {
		status = c.store.Lanes().Default()
	}
	if !c.store.Lanes().Has(status) {
		return fmt.Errorf("%w %q", board.ErrUnknownLane, status)
	}
	c.enqueue(&request{op: OpCreate}, func(ctx context.Context) Completion {
		t, err := c.gw.CreateTask(ctx, title, status)
		return Completion{Task: t, Err: err}
	})
	return nil
}

// Delete removes the task at once and restores it if the service refuses.
func (c *Controller) Delete(id string) error {
	if !c.store.Has(id) {
		return fmt.Errorf("delete: %w: %s", board.ErrNotFound, id)
	}
	snap := c.store.Snapshot()
	c.store.Remove(id)
	v := c.bump(id)
	c.enqueue(&request{op: OpDelete, taskID: id, version: v, snapshot: snap}, func(ctx context.Context) Completion {
		return Completion{Err: c.gw.DeleteTask(ctx, id)}
	})
	return nil
}

// Edit changes title and/or content in place and rolls back on failure.
// Status and position only change through Settle.
func (c *Controller) Edit(id string, p board.Patch) error {
	prior, ok := c.store.Get(id)
	if !ok {
		return fmt.Errorf("edit: %w: %s", board.ErrNotFound, id)
	}
	patch := board.Patch{Title: p.Title, Content: p.Content}
	if patch.Title != nil {
		title := board.NormalizeTitle(*patch.Title)
		if title == "" {
			return ErrEmptyTitle
		}
		patch.Title = &title
	}
	patch = board.Diff(prior, patch.ApplyTo(prior))
	if patch.Empty() {
		return ErrNoChange
	}
	if _, err := c.store.Apply(id, patch); err != nil {
		return err
	}
	v := c.bump(id)
	fields := fieldsOf(patch)
	c.ledgerFor(id, prior).touch(fields, v)
	c.enqueue(&request{op: OpUpdate, taskID: id, version: v, prior: prior, patch: patch, fields: fields}, func(ctx context.Context) Completion {
		t, err := c.gw.UpdateTask(ctx, id, patch)
		return Completion{Task: t, Err: err}
	})
	return nil
}

// Settle gives a dropped task its durable position from its neighbours in
// the already reordered lane and persists {status, position}. origin is the
// task as it was when picked up.
func (c *Controller) Settle(id string, origin board.Task) error {
	current, ok := c.store.Get(id)
	if !ok {
		return fmt.Errorf("settle: %w: %s", board.ErrNotFound, id)
	}
	before, after, err := c.store.Neighbors(id)
	if err != nil {
		return fmt.Errorf("settle: %w", err)
	}
	lo, hi := bound(before), bound(after)

	// still in order where it was: nothing to persist
	if current.Status == origin.Status && !position.Collapsed(lo, hi, current.Position) {
		return nil
	}

	pos := position.Between(lo, hi)
	if position.Collapsed(lo, hi, pos) {
		c.log.WithFields(logrus.Fields{
			"task_id":  id,
			"status":   current.Status,
			"position": pos,
		}).Warn("position gap exhausted; task shares a position with a neighbour")
	}
	status := current.Status
	patch := board.Patch{Status: &status, Position: &pos}
	if _, err := c.store.Apply(id, board.Patch{Position: &pos}); err != nil {
		return fmt.Errorf("settle: %w", err)
	}
	v := c.bump(id)
	fields := []field{fieldPlacement}
	c.ledgerFor(id, origin).touch(fields, v)
	c.enqueue(&request{op: OpMove, taskID: id, version: v, prior: origin, patch: patch, fields: fields}, func(ctx context.Context) Completion {
		t, err := c.gw.UpdateTask(ctx, id, patch)
		return Completion{Task: t, Err: err}
	})
	return nil
}

// Complete applies the outcome of a call. The returned error is the failure
// to show the user, already reconciled locally; nil means nothing to report.
func (c *Controller) Complete(done Completion) error {
	req, ok := c.inflight[done.Seq]
	if !ok {
		c.log.WithField("seq", done.Seq).Debug("completion for unknown request ignored")
		return nil
	}
	delete(c.inflight, done.Seq)

	switch req.op {
	case OpLoad:
		return c.completeLoad(done)
	case OpCreate:
		return c.completeCreate(done)
	}

	entry := c.log.WithFields(logrus.Fields{
		"op":      req.op.String(),
		"task_id": req.taskID,
		"version": req.version,
	})
	if req.op == OpDelete {
		return c.completeDelete(req, done, entry)
	}
	if done.Err != nil {
		return c.failWrite(req, done.Err, entry)
	}

	current, ok := c.store.Get(req.taskID)
	if !ok {
		entry.Debug("completion for removed task ignored")
		return nil
	}
	l := c.ledgerFor(req.taskID, req.prior)
	l.ack(req.fields, req.version, req.patch, done.Task)
	if cur := c.versions[req.taskID]; req.version < cur {
		entry.WithField("current", cur).Debug("stale echo discarded")
		return nil
	}
	c.echo(current, done.Task)
	return nil
}

func (c *Controller) completeLoad(done Completion) error {
	if done.Seq != c.loadSeq {
		return nil
	}
	if done.Err != nil {
		c.log.WithError(done.Err).Error("load failed")
		return &OpError{Op: OpLoad, Err: done.Err}
	}
	if err := c.store.Load(done.Tasks); err != nil {
		c.log.WithError(err).Error("load rejected")
		return &OpError{Op: OpLoad, Err: err}
	}
	for _, t := range done.Tasks {
		if l, ok := c.ledgers[t.ID]; ok {
			l.confirmed = t.Clone()
		}
	}
	c.log.WithField("tasks", len(done.Tasks)).Info("board loaded")
	return nil
}

func (c *Controller) completeCreate(done Completion) error {
	if done.Err != nil {
		c.log.WithError(done.Err).Error("create failed")
		return &OpError{Op: OpCreate, Err: done.Err}
	}
	if err := c.store.Upsert(done.Task); err != nil {
		c.log.WithError(err).WithField("task_id", done.Task.ID).Error("created task rejected")
		return &OpError{Op: OpCreate, TaskID: done.Task.ID, Err: err}
	}
	return nil
}

func (c *Controller) completeDelete(req *request, done Completion, entry *logrus.Entry) error {
	if done.Err == nil || gateway.IsNotFound(done.Err) {
		delete(c.versions, req.taskID)
		delete(c.ledgers, req.taskID)
		return nil
	}
	entry.WithError(done.Err).Error("delete failed; task restored")
	c.store.Reinstate(req.snapshot, req.taskID)
	return &OpError{Op: OpDelete, TaskID: req.taskID, Err: done.Err}
}

// failWrite reports a failed update or move and rolls back the fields the
// request still owns. A move is only rolled back when configured.
func (c *Controller) failWrite(req *request, err error, entry *logrus.Entry) error {
	entry = entry.WithError(err)
	opErr := &OpError{Op: req.op, TaskID: req.taskID, Err: err}

	current, ok := c.store.Get(req.taskID)
	if !ok {
		entry.Error(req.op.String() + " failed for a task no longer on the board")
		return opErr
	}
	l := c.ledgerFor(req.taskID, req.prior)
	owned := l.owned(req.fields, req.version)
	if req.op == OpMove && !c.rollbackMoves {
		owned = nil
	}
	if len(owned) == 0 {
		entry.WithField("current", c.versions[req.taskID]).Error(req.op.String() + " failed; local state kept")
		return opErr
	}

	names := make([]string, len(owned))
	for i, f := range owned {
		names[i] = f.String()
	}
	entry.WithField("restored", names).Error(req.op.String() + " failed; fields rolled back")
	c.replace(current, l.restore(current, owned))
	return opErr
}

// echo folds the service's copy of a task into the store when it differs
// from the local one.
func (c *Controller) echo(current, server board.Task) {
	if server.ID == "" || server.ID != current.ID || current.Equal(server) {
		return
	}
	c.replace(current, server)
}

// replace swaps current for next, in place when the lane slot is unchanged.
func (c *Controller) replace(current, next board.Task) {
	if current.Status == next.Status && current.Position == next.Position &&
		(next.Content != nil || current.Content == nil) {
		_, _ = c.store.Apply(current.ID, board.Diff(current, next))
		return
	}
	if err := c.store.Upsert(next); err != nil {
		c.log.WithError(err).WithField("task_id", next.ID).Warn("server copy rejected")
	}
}

func (c *Controller) bump(id string) uint64 {
	c.versions[id]++
	return c.versions[id]
}

func (c *Controller) enqueue(req *request, call func(ctx context.Context) Completion) uint64 {
	c.seq++
	c.inflight[c.seq] = req
	c.dispatch.Dispatch(&Pending{
		Seq:     c.seq,
		Op:      req.op,
		TaskID:  req.taskID,
		Version: req.version,
		call:    call,
	})
	return c.seq
}

func bound(t *board.Task) *float64 {
	if t == nil {
		return nil
	}
	p := t.Position
	return &p
}
