package fsm

// StateAction is run when a state is entered or left
type StateAction[C, D any] func(ctx C, data D) error

// ActionKind identifies one of the action slots of a state
type ActionKind string

const (
	InitialEnterAction ActionKind = "initial-enter"
	EnterAction        ActionKind = "enter"
	SelfEnterAction    ActionKind = "self-enter"
	ExitAction         ActionKind = "exit"
)

// ActionInfo describes a registered state action for introspection
type ActionInfo struct {
	Kind  ActionKind
	Label string
}

type labeledAction[C, D any] struct {
	fn    StateAction[C, D]
	label string
}

// State represents one declared state of a definition
type State[S comparable, C, D any] struct {
	id        S
	initial   bool
	final     bool
	transient bool

	transitions       []*Transition[S, C, D]
	defaultTransition *Transition[S, C, D]

	initialEnter *labeledAction[C, D]
	selfEnter    *labeledAction[C, D]
	enter        *labeledAction[C, D]
	exit         *labeledAction[C, D]

	connected []S
}

func newState[S comparable, C, D any](id S) *State[S, C, D] {
	return &State[S, C, D]{id: id}
}

// ID returns the state identifier
func (s *State[S, C, D]) ID() S {
	return s.id
}

func (s *State[S, C, D]) IsInitial() bool {
	return s.initial
}

func (s *State[S, C, D]) IsFinal() bool {
	return s.final
}

func (s *State[S, C, D]) IsTransient() bool {
	return s.transient
}

// Transitions returns the explicit transitions in declaration order
func (s *State[S, C, D]) Transitions() []*Transition[S, C, D] {
	return append([]*Transition[S, C, D](nil), s.transitions...)
}

// DefaultTransition returns the catch-all transition, if any
func (s *State[S, C, D]) DefaultTransition() (*Transition[S, C, D], bool) {
	return s.defaultTransition, s.defaultTransition != nil
}

// ConnectedStates returns the distinct states directly reachable from this one
func (s *State[S, C, D]) ConnectedStates() []S {
	return append([]S(nil), s.connected...)
}

// Actions lists the registered state actions in execution order
func (s *State[S, C, D]) Actions() []ActionInfo {
	infos := make([]ActionInfo, 0, 4)
	for _, slot := range []struct {
		kind   ActionKind
		action *labeledAction[C, D]
	}{
		{InitialEnterAction, s.initialEnter},
		{EnterAction, s.enter},
		{SelfEnterAction, s.selfEnter},
		{ExitAction, s.exit},
	} {
		if slot.action != nil {
			infos = append(infos, ActionInfo{Kind: slot.kind, Label: slot.action.label})
		}
	}
	return infos
}

// findTransition returns the first matching explicit transition, falling back
// to the default transition.
func (s *State[S, C, D]) findTransition(event any, ctx C, data D) (*Transition[S, C, D], error) {
	for _, t := range s.transitions {
		matched, err := t.Match(event, ctx, data)
		if err != nil {
			return t, err
		}
		if matched {
			return t, nil
		}
	}
	return s.defaultTransition, nil
}

func (s *State[S, C, D]) computeConnected() {
	s.connected = s.connected[:0]
	seen := make(map[S]struct{}, len(s.transitions)+1)
	add := func(t *Transition[S, C, D]) {
		if _, ok := seen[t.to]; ok {
			return
		}
		seen[t.to] = struct{}{}
		s.connected = append(s.connected, t.to)
	}
	for _, t := range s.transitions {
		add(t)
	}
	if s.defaultTransition != nil {
		add(s.defaultTransition)
	}
}

func (s *State[S, C, D]) clone() *State[S, C, D] {
	c := *s
	c.transitions = make([]*Transition[S, C, D], len(s.transitions))
	for i, t := range s.transitions {
		c.transitions[i] = t.clone()
	}
	if s.defaultTransition != nil {
		c.defaultTransition = s.defaultTransition.clone()
	}
	c.connected = nil
	c.computeConnected()
	return &c
}

// runAction executes a state action with panic recovery
func runAction[C, D any](action *labeledAction[C, D], ctx C, data D) (err error) {
	if action == nil || action.fn == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = recoverError("state action", r)
		}
	}()

	return action.fn(ctx, data)
}
