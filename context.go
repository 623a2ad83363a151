package fsm

import (
	"time"
)

// Scheduler delivers an event back into the machine that owns it after a
// delay. A handle is only valid while its hosting runner is running. The
// returned cancel function reports whether the delivery was prevented.
type Scheduler interface {
	Schedule(delay time.Duration, event any) (cancel func() bool, err error)
}

// SchedulerProvider is implemented by context types that carry a scheduler
// handle for the instance they are bound to. Hosts build the context with the
// handle already set, so actions reach it through their ctx argument.
type SchedulerProvider interface {
	Scheduler() Scheduler
}

// SchedulerOf returns the scheduler carried by ctx, if any
func SchedulerOf(ctx any) (Scheduler, bool) {
	p, ok := ctx.(SchedulerProvider)
	if !ok {
		return nil, false
	}
	s := p.Scheduler()
	return s, s != nil
}

// SchedulerFunc adapts a function to the Scheduler interface
type SchedulerFunc func(delay time.Duration, event any) (func() bool, error)

func (f SchedulerFunc) Schedule(delay time.Duration, event any) (func() bool, error) {
	return f(delay, event)
}
