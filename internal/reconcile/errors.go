package reconcile

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyTitle = errors.New("title is empty")
	ErrNoChange   = errors.New("nothing to update")
)

// OpError is a persistence failure surfaced to the user.
type OpError struct {
	Op     Op
	TaskID string
	Err    error
}

func (e *OpError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Op, e.TaskID, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}
