package session

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ToggleState is the lifecycle stage of one optimistic flag change
type ToggleState string

const (
	StateIdle       ToggleState = "idle"
	StatePending    ToggleState = "pending"
	StateCommitted  ToggleState = "committed"
	StateRolledBack ToggleState = "rolled_back"
)

// ErrIllegalTransition is returned when a toggle is driven out of order
var ErrIllegalTransition = errors.New("illegal toggle transition")

// Toggle flips one boolean relation optimistically. Begin exposes the new value
// immediately; Rollback hands back the value held before Begin.
//
//	Idle -> Pending -> Committed
//	                -> RolledBack
type Toggle struct {
	ID       string
	Action   string
	TargetID string

	state ToggleState
	prior bool
	next  bool
}

// NewToggle prepares a flip of current for the target
func NewToggle(action, targetID string, current bool) *Toggle {
	return &Toggle{
		ID:       uuid.New().String(),
		Action:   action,
		TargetID: targetID,
		state:    StateIdle,
		prior:    current,
		next:     !current,
	}
}

func (t *Toggle) State() ToggleState { return t.state }

// Prior is the value before the toggle began
func (t *Toggle) Prior() bool { return t.prior }

// Next is the optimistic value shown while pending
func (t *Toggle) Next() bool { return t.next }

// Begin moves Idle to Pending and returns the optimistic value
func (t *Toggle) Begin() (bool, error) {
	if err := t.transition(StateIdle, StatePending); err != nil {
		return t.prior, err
	}
	return t.next, nil
}

// Commit moves Pending to Committed
func (t *Toggle) Commit() error {
	return t.transition(StatePending, StateCommitted)
}

// Rollback moves Pending to RolledBack and returns the value to restore
func (t *Toggle) Rollback() (bool, error) {
	if err := t.transition(StatePending, StateRolledBack); err != nil {
		return t.current(), err
	}
	return t.prior, nil
}

func (t *Toggle) transition(from, to ToggleState) error {
	if t.state != from {
		return fmt.Errorf("%w: %s -> %s (toggle %s)", ErrIllegalTransition, t.state, to, t.ID)
	}
	t.state = to
	return nil
}

func (t *Toggle) current() bool {
	switch t.state {
	case StatePending, StateCommitted:
		return t.next
	}
	return t.prior
}
