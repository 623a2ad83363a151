// Package fsmtest provides observers and assertions for testing machines built
// with package fsm.
package fsmtest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/anggasct/fsm"
)

// TransitionRecord is one committed transition seen by a Recorder
type TransitionRecord[S comparable] struct {
	ID    string
	From  S
	To    S
	Event any
}

// UnhandledRecord is one unhandled event seen by a Recorder
type UnhandledRecord[S comparable] struct {
	State S
	Event any
}

// Recorder is an observer that captures every notification
type Recorder[S comparable] struct {
	mutex       sync.RWMutex
	Transitions []TransitionRecord[S]
	StateEnters []S
	StateExits  []S
	Unhandled   []UnhandledRecord[S]
	Failures    []*fsm.ActionFailure
	Started     []S
}

var _ fsm.ExtendedObserver[string] = (*Recorder[string])(nil)

// NewRecorder creates a new recorder
func NewRecorder[S comparable]() *Recorder[S] {
	return &Recorder[S]{}
}

func (r *Recorder[S]) OnTransition(id string, from, to S, event any) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.Transitions = append(r.Transitions, TransitionRecord[S]{ID: id, From: from, To: to, Event: event})
}

func (r *Recorder[S]) OnStateEnter(id string, state S) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.StateEnters = append(r.StateEnters, state)
}

func (r *Recorder[S]) OnStateExit(id string, state S) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.StateExits = append(r.StateExits, state)
}

func (r *Recorder[S]) OnEventUnhandled(id string, state S, event any) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.Unhandled = append(r.Unhandled, UnhandledRecord[S]{State: state, Event: event})
}

func (r *Recorder[S]) OnFailure(id string, failure *fsm.ActionFailure) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.Failures = append(r.Failures, failure)
}

func (r *Recorder[S]) OnMachineStarted(id string, initial S) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.Started = append(r.Started, initial)
}

// Reset clears everything recorded so far
func (r *Recorder[S]) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.Transitions = nil
	r.StateEnters = nil
	r.StateExits = nil
	r.Unhandled = nil
	r.Failures = nil
	r.Started = nil
}

func (r *Recorder[S]) TransitionCount() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.Transitions)
}

func (r *Recorder[S]) StateEnterCount() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.StateEnters)
}

func (r *Recorder[S]) StateExitCount() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.StateExits)
}

func (r *Recorder[S]) FailureCount() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.Failures)
}

// LastTransition returns the most recent transition, or nil
func (r *Recorder[S]) LastTransition() *TransitionRecord[S] {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if len(r.Transitions) == 0 {
		return nil
	}
	last := r.Transitions[len(r.Transitions)-1]
	return &last
}

// Path returns the sequence of visited states: the first entered state
// followed by the destination of every transition
func (r *Recorder[S]) Path() []S {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	path := make([]S, 0, len(r.Transitions)+1)
	if len(r.Started) > 0 {
		path = append(path, r.Started[0])
	}
	for _, t := range r.Transitions {
		path = append(path, t.To)
	}
	return path
}

// CallLog records the order in which user callbacks run
type CallLog struct {
	mutex sync.Mutex
	calls []string
}

// Add appends a call
func (l *CallLog) Add(format string, args ...any) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

// Calls returns a copy of the recorded calls
func (l *CallLog) Calls() []string {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return append([]string(nil), l.calls...)
}

// Count returns how many times call was recorded
func (l *CallLog) Count(call string) int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	n := 0
	for _, c := range l.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (l *CallLog) Reset() {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.calls = nil
}

// StateAction returns a state action that records name
func StateAction[C, D any](log *CallLog, name string) fsm.StateAction[C, D] {
	return func(C, D) error {
		log.Add(name)
		return nil
	}
}

// AssertState checks if the machine is in the expected state
func AssertState[S comparable](t testing.TB, machine interface{ State() S }, expected S) {
	t.Helper()
	if current := machine.State(); current != expected {
		t.Errorf("Expected state %v, got %v", expected, current)
	}
}

// AssertTransitioned checks that the event was handled and moved the machine from one state to another
func AssertTransitioned[S comparable](t testing.TB, result *fsm.Result[S], from, to S) {
	t.Helper()
	if result.Outcome != fsm.OutcomeTransitioned {
		t.Errorf("Expected outcome %s, got %s (err: %v)", fsm.OutcomeTransitioned, result.Outcome, result.Err)
		return
	}
	if result.From != from {
		t.Errorf("Expected previous state %v, got %v", from, result.From)
	}
	if result.To != to {
		t.Errorf("Expected current state %v, got %v", to, result.To)
	}
}

// AssertOutcome checks the outcome of an event
func AssertOutcome[S comparable](t testing.TB, result *fsm.Result[S], expected fsm.Outcome) {
	t.Helper()
	if result.Outcome != expected {
		t.Errorf("Expected outcome %s, got %s (err: %v)", expected, result.Outcome, result.Err)
	}
}

// AssertObserverCalled checks if observer methods were called expected number of times
func AssertObserverCalled[S comparable](t testing.TB, recorder *Recorder[S], transitions, enters, exits int) {
	t.Helper()
	if recorder.TransitionCount() != transitions {
		t.Errorf("Expected %d transitions, got %d", transitions, recorder.TransitionCount())
	}
	if recorder.StateEnterCount() != enters {
		t.Errorf("Expected %d state enters, got %d", enters, recorder.StateEnterCount())
	}
	if recorder.StateExitCount() != exits {
		t.Errorf("Expected %d state exits, got %d", exits, recorder.StateExitCount())
	}
}
