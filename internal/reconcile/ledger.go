package reconcile

import "kanban/internal/board"

// field is a group of task fields that one request writes together.
type field int

const (
	fieldTitle field = iota
	fieldContent
	fieldPlacement // status and position

	numFields
)

func (f field) String() string {
	switch f {
	case fieldTitle:
		return "title"
	case fieldContent:
		return "content"
	case fieldPlacement:
		return "placement"
	default:
		return "unknown"
	}
}

// fieldsOf lists the field groups a patch writes.
func fieldsOf(p board.Patch) []field {
	var out []field
	if p.Title != nil {
		out = append(out, fieldTitle)
	}
	if p.Content != nil {
		out = append(out, fieldContent)
	}
	if p.Status != nil || p.Position != nil {
		out = append(out, fieldPlacement)
	}
	return out
}

// ledger 记录每个字段组最后一次被哪个请求修改、服务端最后确认的值
// ledger remembers, per task, which request last wrote each field group
// and what the service last acknowledged for it. A failed request rolls a
// field back to the acknowledged value only while it is still the latest
// writer of that field.
type ledger struct {
	touched   [numFields]uint64
	acked     [numFields]uint64
	confirmed board.Task
}

// ledgerFor returns the ledger of id, starting one from base when the task
// has none yet. base must be the task as the service last had it.
func (c *Controller) ledgerFor(id string, base board.Task) *ledger {
	l, ok := c.ledgers[id]
	if !ok {
		l = &ledger{confirmed: base.Clone()}
		c.ledgers[id] = l
	}
	return l
}

func (l *ledger) touch(fields []field, version uint64) {
	for _, f := range fields {
		l.touched[f] = version
	}
}

// ack records a successful write. server is the service's copy of the task
// when it returned one; otherwise the patch is taken as written.
func (l *ledger) ack(fields []field, version uint64, patch board.Patch, server board.Task) {
	src := patch.ApplyTo(l.confirmed)
	if server.ID != "" {
		src = server
	}
	for _, f := range fields {
		if version < l.acked[f] {
			continue
		}
		l.acked[f] = version
		copyField(&l.confirmed, src, f)
	}
}

// owned filters fields down to those version still owns, i.e. no newer
// request has written them since.
func (l *ledger) owned(fields []field, version uint64) []field {
	var out []field
	for _, f := range fields {
		if l.touched[f] == version {
			out = append(out, f)
		}
	}
	return out
}

// restore copies the acknowledged value of fields onto t.
func (l *ledger) restore(t board.Task, fields []field) board.Task {
	for _, f := range fields {
		copyField(&t, l.confirmed, f)
	}
	return t
}

func copyField(dst *board.Task, src board.Task, f field) {
	switch f {
	case fieldTitle:
		dst.Title = src.Title
	case fieldContent:
		dst.Content = src.Clone().Content
	case fieldPlacement:
		dst.Status = src.Status
		dst.Position = src.Position
	}
}
