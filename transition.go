package fsm

import (
	"reflect"
)

// GuardFunc decides from the event alone whether a transition fires
type GuardFunc[E any] func(event E) bool

// ContextGuardFunc decides from the event, the context and the data whether a transition fires
type ContextGuardFunc[E, C, D any] func(event E, ctx C, data D) bool

// ActionFunc runs a side effect when a transition fires
type ActionFunc[E any] func(event E) error

// ContextActionFunc runs a side effect with access to the context and the data
type ContextActionFunc[E, C, D any] func(event E, ctx C, data D) error

// TransformFunc converts the event into the payload handed to a transient target state
type TransformFunc[E any] func(event E) (any, error)

// Transition represents a transition between states. Transitions are owned by
// their source state and never change once the definition is built.
type Transition[S comparable, C, D any] struct {
	from      S
	to        S
	eventType reflect.Type
	isDefault bool

	accepts   func(event any) bool
	guard     func(event any, ctx C, data D) bool
	action    func(event any, ctx C, data D) error
	transform func(event any) (any, error)

	guardLabel     string
	actionLabel    string
	transformLabel string
}

// From returns the source state
func (t *Transition[S, C, D]) From() S {
	return t.from
}

// To returns the target state
func (t *Transition[S, C, D]) To() S {
	return t.to
}

// EventType returns the declared event type, or nil for a default transition
func (t *Transition[S, C, D]) EventType() reflect.Type {
	return t.eventType
}

// IsDefault reports whether this is the catch-all transition of its state
func (t *Transition[S, C, D]) IsDefault() bool {
	return t.isDefault
}

// IsSelf reports whether the transition loops back to its source state
func (t *Transition[S, C, D]) IsSelf() bool {
	return t.from == t.to
}

func (t *Transition[S, C, D]) HasGuard() bool {
	return t.guard != nil
}

func (t *Transition[S, C, D]) HasAction() bool {
	return t.action != nil
}

func (t *Transition[S, C, D]) HasTransformation() bool {
	return t.transform != nil
}

func (t *Transition[S, C, D]) GuardLabel() string {
	return t.guardLabel
}

func (t *Transition[S, C, D]) ActionLabel() string {
	return t.actionLabel
}

func (t *Transition[S, C, D]) TransformationLabel() string {
	return t.transformLabel
}

// Match reports whether the transition fires for the event: the event must be
// assignable to the declared event type, then the guard (if any) must accept it.
// A panicking guard is reported as an error and counts as no match.
func (t *Transition[S, C, D]) Match(event any, ctx C, data D) (matched bool, err error) {
	if t.accepts != nil && !t.accepts(event) {
		return false, nil
	}
	if t.guard == nil {
		return true, nil
	}

	defer func() {
		if r := recover(); r != nil {
			matched = false
			err = recoverError("guard", r)
		}
	}()

	return t.guard(event, ctx, data), nil
}

// execute runs the transition action
func (t *Transition[S, C, D]) execute(event any, ctx C, data D) (err error) {
	if t.action == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = recoverError("action", r)
		}
	}()

	return t.action(event, ctx, data)
}

// transformEvent produces the payload for the next evaluation step
func (t *Transition[S, C, D]) transformEvent(event any) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload = nil
			err = recoverError("transformation", r)
		}
	}()

	return t.transform(event)
}

func (t *Transition[S, C, D]) clone() *Transition[S, C, D] {
	c := *t
	return &c
}
