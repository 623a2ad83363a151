package fsm

import (
	"github.com/google/uuid"
)

// Definition is the validated, immutable blueprint of a machine. It is safe for
// concurrent use: any number of instances may be created from it and run in
// parallel.
type Definition[S comparable, C, D any] struct {
	name     string
	order    []S
	ordinals map[S]int
	states   map[S]*State[S, C, D]
	initial  S
	final    S
}

// Name returns the name given with Builder.Named
func (d *Definition[S, C, D]) Name() string {
	return d.name
}

// States returns every registered state in declaration order
func (d *Definition[S, C, D]) States() []*State[S, C, D] {
	states := make([]*State[S, C, D], 0, len(d.states))
	for _, id := range d.order {
		if st, ok := d.states[id]; ok {
			states = append(states, st)
		}
	}
	return states
}

// State returns the registered state for id
func (d *Definition[S, C, D]) State(id S) (*State[S, C, D], bool) {
	st, ok := d.states[id]
	return st, ok
}

func (d *Definition[S, C, D]) InitialState() S {
	return d.initial
}

func (d *Definition[S, C, D]) FinalState() S {
	return d.final
}

// Ordinal returns the position of s in the declared state set, or -1
func (d *Definition[S, C, D]) Ordinal(s S) int {
	if i, ok := d.ordinals[s]; ok {
		return i
	}
	return -1
}

// StateAt returns the state value with the given ordinal
func (d *Definition[S, C, D]) StateAt(ordinal int) (S, bool) {
	if ordinal < 0 || ordinal >= len(d.order) {
		var zero S
		return zero, false
	}
	return d.order[ordinal], true
}

// IsMember reports whether s belongs to the declared state set
func (d *Definition[S, C, D]) IsMember(s S) bool {
	_, ok := d.ordinals[s]
	return ok
}

// NewInstance creates an independent machine instance bound to ctx and data.
// The id is only used for diagnostics; an empty id is replaced by a random UUID.
func (d *Definition[S, C, D]) NewInstance(id string, ctx C, data D, opts ...InstanceOption[S]) *FSM[S, C, D] {
	if id == "" {
		id = uuid.NewString()
	}
	return newFSM(d, id, ctx, data, opts...)
}

// Accept walks the definition in declaration order
func (d *Definition[S, C, D]) Accept(v Visitor[S, C, D]) {
	v.VisitDefinition(d)
	for _, st := range d.States() {
		v.VisitState(st)
		for _, t := range st.transitions {
			v.VisitTransition(st, t)
		}
		if st.defaultTransition != nil {
			v.VisitDefaultTransition(st, st.defaultTransition)
		}
	}
}
