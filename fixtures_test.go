package fsm_test

import (
	"github.com/anggasct/fsm"
	"github.com/anggasct/fsm/fsmtest"
)

type phase int

const (
	phaseA phase = iota
	phaseB
	phaseC
	phaseH
	phaseX
)

func (p phase) String() string {
	switch p {
	case phaseA:
		return "A"
	case phaseB:
		return "B"
	case phaseC:
		return "C"
	case phaseH:
		return "H"
	default:
		return "X"
	}
}

type tick struct{ n int }

type word struct{ text string }

func (w word) String() string { return w.text }

type memo struct {
	ticks []int
	words []string
}

type (
	builder    = fsm.Builder[phase, *fsmtest.CallLog, *memo]
	definition = fsm.Definition[phase, *fsmtest.CallLog, *memo]
	machine    = fsm.FSM[phase, *fsmtest.CallLog, *memo]
)

func newBuilder() *builder {
	return fsm.New[phase, *fsmtest.CallLog, *memo](phaseA, phaseB, phaseC, phaseH)
}

func record(name string) fsm.StateAction[*fsmtest.CallLog, *memo] {
	return func(log *fsmtest.CallLog, _ *memo) error {
		log.Add(name)
		return nil
	}
}

// pingPong: A <-> B on tick, B -> B on word (self), B -> H on default.
func pingPong() *builder {
	b := newBuilder().Named("ping-pong")

	a := b.WithInitialState(phaseA).
		WithInitialEnterAction(record("initial-enter A")).
		WithEnterAction(record("enter A")).
		WithExitAction(record("exit A"))
	fsm.OnEvent[tick](a.TransitionTo(phaseB))

	s := b.WithState(phaseB).
		WithInitialEnterAction(record("initial-enter B"), "first visit").
		WithEnterAction(record("enter B"), "count visit").
		WithSelfEnterAction(record("self-enter B")).
		WithExitAction(record("exit B"))
	fsm.OnEvent[tick](s.TransitionTo(phaseA))
	fsm.OnEvent[word](s.TransitionToSelf()).
		WithContextAction(func(w word, _ *fsmtest.CallLog, m *memo) error {
			m.words = append(m.words, w.text)
			return nil
		})
	s.TransitionTo(phaseH).AsDefaultTransition()

	b.WithFinalState(phaseH).WithEnterAction(record("enter H"))
	return b
}

func newMachine(def *definition, opts ...fsm.InstanceOption[phase]) (*machine, *fsmtest.CallLog, *memo) {
	log := &fsmtest.CallLog{}
	data := &memo{}
	return def.NewInstance("test", log, data, opts...), log, data
}
