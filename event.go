package fsm

import (
	"fmt"
	"reflect"
)

// Outcome classifies what OnEvent did with an event
type Outcome int

const (
	// At least one transition was taken and committed
	OutcomeTransitioned Outcome = iota
	// No transition matched; the event was dropped and the state is unchanged
	OutcomeUnhandled
	// User code failed; the state reflects the last committed transition
	OutcomeFailed
	// The instance refused the event (not started, or already processing)
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeTransitioned:
		return "transitioned"
	case OutcomeUnhandled:
		return "unhandled"
	case OutcomeFailed:
		return "failed"
	case OutcomeRejected:
		return "rejected"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result represents the result of processing an event
type Result[S comparable] struct {
	Outcome Outcome
	// From is the state before the event was processed
	From S
	// To is the state after the event was processed
	To S
	// Hops counts committed transitions, including transient chaining
	Hops int
	Err  error
}

// NewResult creates a new result starting and ending in the given state
func NewResult[S comparable](outcome Outcome, state S) *Result[S] {
	return &Result[S]{
		Outcome: outcome,
		From:    state,
		To:      state,
	}
}

// WithError adds an error to the result
func (r *Result[S]) WithError(err error) *Result[S] {
	r.Err = err
	return r
}

// Handled reports whether a transition was taken
func (r *Result[S]) Handled() bool {
	return r.Outcome == OutcomeTransitioned
}

// Success returns true if the event was handled without a failure
func (r *Result[S]) Success() bool {
	return r.Outcome == OutcomeTransitioned && r.Err == nil
}

// StateChanged reports whether the state after the event differs from the one before
func (r *Result[S]) StateChanged() bool {
	return r.From != r.To
}

// EventName returns a printable name for an event, used in logs and errors
func EventName(event any) string {
	if event == nil {
		return "<nil>"
	}
	if named, ok := event.(interface{ EventName() string }); ok {
		return named.EventName()
	}
	return reflect.TypeOf(event).String()
}

func typeOf[E any]() reflect.Type {
	return reflect.TypeOf((*E)(nil)).Elem()
}
