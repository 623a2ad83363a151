package observers

import (
	"fmt"
	"sync"
	"time"

	"github.com/anggasct/fsm"
)

type visit[S comparable] struct {
	id    string
	state S
}

// MetricsObserver collects counters and timings for any number of instances
type MetricsObserver[S comparable] struct {
	stateVisits      map[S]int
	stateTimeSpent   map[S]time.Duration
	eventCounts      map[string]int
	transitionCounts map[string]int
	unhandledCount   int
	failureCount     int
	failuresByStage  map[fsm.Stage]int
	lastStateEntry   map[visit[S]]time.Time
	now              func() time.Time
	mutex            sync.RWMutex
}

var _ fsm.ExtendedObserver[string] = (*MetricsObserver[string])(nil)

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver[S comparable]() *MetricsObserver[S] {
	o := &MetricsObserver[S]{now: time.Now}
	o.reset()
	return o
}

// WithClock replaces the time source used for state timings
func (o *MetricsObserver[S]) WithClock(now func() time.Time) *MetricsObserver[S] {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.now = now
	return o
}

// OnStateEnter records state entry metrics
func (o *MetricsObserver[S]) OnStateEnter(id string, state S) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.stateVisits[state]++
	o.lastStateEntry[visit[S]{id, state}] = o.now()
}

// OnStateExit records the time spent in the state being left
func (o *MetricsObserver[S]) OnStateExit(id string, state S) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	key := visit[S]{id, state}
	if entered, ok := o.lastStateEntry[key]; ok {
		o.stateTimeSpent[state] += o.now().Sub(entered)
		delete(o.lastStateEntry, key)
	}
}

// OnTransition records transition and event metrics
func (o *MetricsObserver[S]) OnTransition(id string, from, to S, event any) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.transitionCounts[fmt.Sprintf("%v->%v", from, to)]++
	o.eventCounts[fsm.EventName(event)]++
}

func (o *MetricsObserver[S]) OnEventUnhandled(id string, state S, event any) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.unhandledCount++
	o.eventCounts[fsm.EventName(event)]++
}

func (o *MetricsObserver[S]) OnFailure(id string, failure *fsm.ActionFailure) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.failureCount++
	o.failuresByStage[failure.Stage]++
}

func (o *MetricsObserver[S]) OnMachineStarted(id string, initial S) {}

// GetStateVisitCounts returns the number of times each state was entered
func (o *MetricsObserver[S]) GetStateVisitCounts() map[S]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return copyMap(o.stateVisits)
}

// GetStateTimeSpent returns the accumulated time spent in each state that has been left
func (o *MetricsObserver[S]) GetStateTimeSpent() map[S]time.Duration {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return copyMap(o.stateTimeSpent)
}

// GetEventCounts returns the number of times each event type was seen
func (o *MetricsObserver[S]) GetEventCounts() map[string]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return copyMap(o.eventCounts)
}

// GetTransitionCounts returns the number of times each transition occurred, keyed "from->to"
func (o *MetricsObserver[S]) GetTransitionCounts() map[string]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return copyMap(o.transitionCounts)
}

func (o *MetricsObserver[S]) GetUnhandledCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return o.unhandledCount
}

func (o *MetricsObserver[S]) GetFailureCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return o.failureCount
}

// GetFailuresByStage returns failure counts per stage
func (o *MetricsObserver[S]) GetFailuresByStage() map[fsm.Stage]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return copyMap(o.failuresByStage)
}

// Reset resets all metrics
func (o *MetricsObserver[S]) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.reset()
}

func (o *MetricsObserver[S]) reset() {
	o.stateVisits = make(map[S]int)
	o.stateTimeSpent = make(map[S]time.Duration)
	o.eventCounts = make(map[string]int)
	o.transitionCounts = make(map[string]int)
	o.unhandledCount = 0
	o.failureCount = 0
	o.failuresByStage = make(map[fsm.Stage]int)
	o.lastStateEntry = make(map[visit[S]]time.Time)
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	result := make(map[K]V, len(m))
	for k, v := range m {
		result[k] = v
	}
	return result
}
