package observers

import (
	"fmt"
	"sync"

	"github.com/anggasct/fsm"
)

// ValidationObserver checks observed behaviour against an expected set of
// states and transitions. It is meant for tests and canary instances.
type ValidationObserver[S comparable] struct {
	expectedStates     map[S]bool
	visitedStates      map[S]bool
	allowedTransitions map[S]map[S]bool
	violations         []string
	mutex              sync.RWMutex
}

var _ fsm.ExtendedObserver[string] = (*ValidationObserver[string])(nil)

// NewValidationObserver creates a new validation observer
func NewValidationObserver[S comparable]() *ValidationObserver[S] {
	return &ValidationObserver[S]{
		expectedStates:     make(map[S]bool),
		visitedStates:      make(map[S]bool),
		allowedTransitions: make(map[S]map[S]bool),
	}
}

// ValidationObserverFor creates a validation observer expecting exactly the
// states and transitions declared by def
func ValidationObserverFor[S comparable, C, D any](def *fsm.Definition[S, C, D]) *ValidationObserver[S] {
	o := NewValidationObserver[S]()
	def.Accept(&expectationVisitor[S, C, D]{observer: o})
	return o
}

type expectationVisitor[S comparable, C, D any] struct {
	fsm.BaseVisitor[S, C, D]
	observer *ValidationObserver[S]
}

func (v *expectationVisitor[S, C, D]) VisitState(st *fsm.State[S, C, D]) {
	v.observer.AddExpectedState(st.ID())
	// states without outgoing transitions still get an entry so any move out of them is flagged
	v.observer.mutex.Lock()
	if _, ok := v.observer.allowedTransitions[st.ID()]; !ok {
		v.observer.allowedTransitions[st.ID()] = make(map[S]bool)
	}
	v.observer.mutex.Unlock()
}

func (v *expectationVisitor[S, C, D]) VisitTransition(st *fsm.State[S, C, D], t *fsm.Transition[S, C, D]) {
	v.observer.AddAllowedTransition(t.From(), t.To())
}

func (v *expectationVisitor[S, C, D]) VisitDefaultTransition(st *fsm.State[S, C, D], t *fsm.Transition[S, C, D]) {
	v.observer.AddAllowedTransition(t.From(), t.To())
}

// AddExpectedState adds an expected state
func (o *ValidationObserver[S]) AddExpectedState(state S) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.expectedStates[state] = true
}

// AddAllowedTransition adds an allowed transition
func (o *ValidationObserver[S]) AddAllowedTransition(from, to S) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if _, exists := o.allowedTransitions[from]; !exists {
		o.allowedTransitions[from] = make(map[S]bool)
	}
	o.allowedTransitions[from][to] = true
}

func (o *ValidationObserver[S]) addViolation(message string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.violations = append(o.violations, message)
}

func (o *ValidationObserver[S]) OnStateEnter(id string, state S) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.visitedStates[state] = true
}

func (o *ValidationObserver[S]) OnStateExit(id string, state S) {}

// OnTransition flags transitions leaving a known state for a target not allowed from it
func (o *ValidationObserver[S]) OnTransition(id string, from, to S, event any) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if allowed, exists := o.allowedTransitions[from]; exists && !allowed[to] {
		o.violations = append(o.violations, fmt.Sprintf(
			"Invalid transition from '%v' to '%v' on event '%s'",
			from, to, fsm.EventName(event)))
	}
}

func (o *ValidationObserver[S]) OnEventUnhandled(id string, state S, event any) {}

func (o *ValidationObserver[S]) OnFailure(id string, failure *fsm.ActionFailure) {
	o.addViolation(fmt.Sprintf("Error occurred: %v", failure))
}

func (o *ValidationObserver[S]) OnMachineStarted(id string, initial S) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.visitedStates[initial] = true
}

// GetViolations returns all validation violations
func (o *ValidationObserver[S]) GetViolations() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make([]string, len(o.violations))
	copy(result, o.violations)
	return result
}

// GetUnvisitedStates returns states that were expected but not visited
func (o *ValidationObserver[S]) GetUnvisitedStates() []S {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	var unvisited []S
	for state := range o.expectedStates {
		if !o.visitedStates[state] {
			unvisited = append(unvisited, state)
		}
	}
	return unvisited
}

// HasViolations returns whether any violations occurred
func (o *ValidationObserver[S]) HasViolations() bool {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.violations) > 0
}

// Reset resets the validation state
func (o *ValidationObserver[S]) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.visitedStates = make(map[S]bool)
	o.violations = nil
}
