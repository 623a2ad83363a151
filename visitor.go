package fsm

// Visitor receives a read-only walk over a Definition. States are visited in
// declaration order, each followed by its explicit transitions in match order
// and then its default transition.
type Visitor[S comparable, C, D any] interface {
	VisitDefinition(def *Definition[S, C, D])
	VisitState(state *State[S, C, D])
	VisitTransition(state *State[S, C, D], t *Transition[S, C, D])
	VisitDefaultTransition(state *State[S, C, D], t *Transition[S, C, D])
}

// BaseVisitor implements Visitor with no-op methods
type BaseVisitor[S comparable, C, D any] struct{}

func (BaseVisitor[S, C, D]) VisitDefinition(*Definition[S, C, D]) {}

func (BaseVisitor[S, C, D]) VisitState(*State[S, C, D]) {}

func (BaseVisitor[S, C, D]) VisitTransition(*State[S, C, D], *Transition[S, C, D]) {}

func (BaseVisitor[S, C, D]) VisitDefaultTransition(*State[S, C, D], *Transition[S, C, D]) {}
