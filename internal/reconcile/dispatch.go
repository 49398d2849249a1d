package reconcile

import (
	"context"
)

// Dispatcher starts persistence calls without blocking the caller.
type Dispatcher interface {
	Dispatch(p *Pending)
}

// Queue collects pending calls for an event loop that runs them itself,
// e.g. as bubbletea commands.
type Queue struct {
	items []*Pending
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Dispatch(p *Pending) {
	q.items = append(q.items, p)
}

// Drain returns and clears everything queued so far.
func (q *Queue) Drain() []*Pending {
	out := q.items
	q.items = nil
	return out
}

func (q *Queue) Len() int {
	return len(q.items)
}

// Runner runs each call on its own goroutine. Completions are collected on
// a channel and applied by the owner through Poll or Flush, so the store is
// still touched by one goroutine only. Dispatch, Poll and Flush must be
// called from that owner goroutine.
type Runner struct {
	ctx      context.Context
	done     chan Completion
	inflight int
}

func NewRunner(ctx context.Context) *Runner {
	return &Runner{
		ctx:  ctx,
		done: make(chan Completion, 16),
	}
}

func (r *Runner) Dispatch(p *Pending) {
	r.inflight++
	go func() {
		r.done <- p.Run(r.ctx)
	}()
}

// InFlight reports calls dispatched but not yet applied.
func (r *Runner) InFlight() int {
	return r.inflight
}

// Poll applies completions that are already available without waiting.
func (r *Runner) Poll(apply func(Completion)) {
	for r.inflight > 0 {
		select {
		case c := <-r.done:
			r.inflight--
			apply(c)
		default:
			return
		}
	}
}

// Flush waits for every in-flight call and applies the completions in the
// order they finish. Calls dispatched by apply are waited for as well.
func (r *Runner) Flush(apply func(Completion)) {
	for r.inflight > 0 {
		c := <-r.done
		r.inflight--
		apply(c)
	}
}
