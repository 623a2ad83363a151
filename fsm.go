// Package fsm provides an embeddable finite state machine engine for Go.
//
// A machine is declared once over a closed set of states with a staged,
// typed builder:
//
//	b := fsm.New[Light, struct{}, *Stats](Red, Green, Off)
//	fsm.OnEvent[Tick](b.WithInitialState(Red).TransitionTo(Green))
//	fsm.OnEvent[Tick](b.WithState(Green).TransitionTo(Red)).
//		And().TransitionTo(Off).AsDefaultTransition()
//	b.WithFinalState(Off)
//	def, err := b.Build()
//
// and the resulting Definition is shared read-only by any number of
// independent instances, each owning its own context and data. Instances are
// synchronous and single-threaded: OnEvent runs to completion, including the
// chaining through transient states, before it returns.
package fsm

// DefaultMaxChainDepth bounds the hops a single OnEvent call may take
const DefaultMaxChainDepth = 64
