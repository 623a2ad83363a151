package fsm

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"
)

// Observer represents an entity that observes machine instances
type Observer[S comparable] interface {
	// OnTransition is called after a transition has been committed
	OnTransition(id string, from, to S, event any)

	// OnStateEnter is called after a state has been entered
	OnStateEnter(id string, state S)
}

// ExtendedObserver provides additional optional observation methods
type ExtendedObserver[S comparable] interface {
	Observer[S]

	// OnStateExit is called when a committed transition left a state
	OnStateExit(id string, state S)

	// OnEventUnhandled is called when no transition matched an event
	OnEventUnhandled(id string, state S, event any)

	// OnFailure is called when user code failed while processing
	OnFailure(id string, failure *ActionFailure)

	// OnMachineStarted is called once the initial state has been entered
	OnMachineStarted(id string, initial S)
}

// BaseObserver provides a default implementation with no-op methods
type BaseObserver[S comparable] struct{}

func (o *BaseObserver[S]) OnTransition(id string, from, to S, event any) {}

func (o *BaseObserver[S]) OnStateEnter(id string, state S) {}

func (o *BaseObserver[S]) OnStateExit(id string, state S) {}

func (o *BaseObserver[S]) OnEventUnhandled(id string, state S, event any) {}

func (o *BaseObserver[S]) OnFailure(id string, failure *ActionFailure) {}

func (o *BaseObserver[S]) OnMachineStarted(id string, initial S) {}

// ObserverManager fans notifications out to a set of observers. A panicking
// observer is logged and skipped; it never affects the machine or the other
// observers.
type ObserverManager[S comparable] struct {
	mu        sync.RWMutex
	observers []Observer[S]
	logger    *slog.Logger
}

// NewObserverManager creates a new observer manager
func NewObserverManager[S comparable](logger *slog.Logger) *ObserverManager[S] {
	if logger == nil {
		logger = slog.Default()
	}
	return &ObserverManager[S]{logger: logger}
}

// AddObserver adds an observer to the manager
func (om *ObserverManager[S]) AddObserver(observer Observer[S]) {
	if observer == nil {
		return
	}
	om.mu.Lock()
	om.observers = append(om.observers, observer)
	om.mu.Unlock()
}

// RemoveObserver removes an observer from the manager
func (om *ObserverManager[S]) RemoveObserver(observer Observer[S]) {
	om.mu.Lock()
	defer om.mu.Unlock()
	for i, obs := range om.observers {
		if sameObserver(obs, observer) {
			om.observers = append(om.observers[:i], om.observers[i+1:]...)
			break
		}
	}
}

// sameObserver reports whether a and b are the same observer. Observers whose
// dynamic type is not comparable never match, since == would panic on them.
func sameObserver[S comparable](a, b Observer[S]) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || ta == nil || !ta.Comparable() {
		return false
	}
	return a == b
}

// Len returns the number of registered observers
func (om *ObserverManager[S]) Len() int {
	om.mu.RLock()
	defer om.mu.RUnlock()
	return len(om.observers)
}

func (om *ObserverManager[S]) NotifyTransition(id string, from, to S, event any) {
	om.each("OnTransition", func(o Observer[S]) {
		o.OnTransition(id, from, to, event)
	})
}

func (om *ObserverManager[S]) NotifyStateEnter(id string, state S) {
	om.each("OnStateEnter", func(o Observer[S]) {
		o.OnStateEnter(id, state)
	})
}

func (om *ObserverManager[S]) NotifyStateExit(id string, state S) {
	om.eachExtended("OnStateExit", func(o ExtendedObserver[S]) {
		o.OnStateExit(id, state)
	})
}

func (om *ObserverManager[S]) NotifyEventUnhandled(id string, state S, event any) {
	om.eachExtended("OnEventUnhandled", func(o ExtendedObserver[S]) {
		o.OnEventUnhandled(id, state, event)
	})
}

func (om *ObserverManager[S]) NotifyFailure(id string, failure *ActionFailure) {
	om.eachExtended("OnFailure", func(o ExtendedObserver[S]) {
		o.OnFailure(id, failure)
	})
}

func (om *ObserverManager[S]) NotifyMachineStarted(id string, initial S) {
	om.eachExtended("OnMachineStarted", func(o ExtendedObserver[S]) {
		o.OnMachineStarted(id, initial)
	})
}

func (om *ObserverManager[S]) snapshot() []Observer[S] {
	om.mu.RLock()
	defer om.mu.RUnlock()
	observers := make([]Observer[S], len(om.observers))
	copy(observers, om.observers)
	return observers
}

func (om *ObserverManager[S]) each(method string, fn func(Observer[S])) {
	for _, observer := range om.snapshot() {
		om.safeNotify(method, observer, func() { fn(observer) })
	}
}

func (om *ObserverManager[S]) eachExtended(method string, fn func(ExtendedObserver[S])) {
	for _, observer := range om.snapshot() {
		if ext, ok := observer.(ExtendedObserver[S]); ok {
			om.safeNotify(method, observer, func() { fn(ext) })
		}
	}
}

func (om *ObserverManager[S]) safeNotify(method string, observer Observer[S], fn func()) {
	defer func() {
		if r := recover(); r != nil {
			om.logger.Warn("observer panicked",
				slog.String("method", method),
				slog.String("observer", fmt.Sprintf("%T", observer)),
				slog.Any("panic", r),
			)
		}
	}()
	fn()
}
