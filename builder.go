package fsm

import (
	"errors"
	"fmt"
)

// StateSet is the first construction stage: the closed, ordered set of states
// a machine is built over. Declaration order defines each state's ordinal.
type StateSet[S comparable] struct {
	order []S
	index map[S]int
	errs  []error
}

// ForStates declares the complete state set
func ForStates[S comparable](states ...S) StateSet[S] {
	set := StateSet[S]{
		order: make([]S, 0, len(states)),
		index: make(map[S]int, len(states)),
	}
	for _, s := range states {
		if _, dup := set.index[s]; dup {
			set.errs = append(set.errs, NewDefinitionError(ErrCodeStateAlreadyDefined, s, "state declared twice in the state set"))
			continue
		}
		set.index[s] = len(set.order)
		set.order = append(set.order, s)
	}
	return set
}

// ContextStage fixes the context type after the state set
type ContextStage[S comparable, C any] struct {
	set StateSet[S]
}

// WithContext binds the context type
func WithContext[C any, S comparable](set StateSet[S]) ContextStage[S, C] {
	return ContextStage[S, C]{set: set}
}

// WithData binds the data type and returns the definition builder
func WithData[D any, S comparable, C any](stage ContextStage[S, C]) *Builder[S, C, D] {
	return newBuilder[S, C, D](stage.set)
}

// New is shorthand for WithData[D](WithContext[C](ForStates(states...)))
func New[S comparable, C, D any](states ...S) *Builder[S, C, D] {
	return WithData[D, S, C](WithContext[C, S](ForStates(states...)))
}

// Builder collects state and transition declarations and produces a validated
// Definition. Fluent calls never fail immediately; every violation is recorded
// and reported by Build.
type Builder[S comparable, C, D any] struct {
	name    string
	set     StateSet[S]
	states  map[S]*State[S, C, D]
	initial *State[S, C, D]
	final   *State[S, C, D]
	errs    []error
}

func newBuilder[S comparable, C, D any](set StateSet[S]) *Builder[S, C, D] {
	return &Builder[S, C, D]{
		set:    set,
		states: make(map[S]*State[S, C, D], len(set.order)),
		errs:   append([]error(nil), set.errs...),
	}
}

// Named sets the definition name used in diagnostics and diagrams
func (b *Builder[S, C, D]) Named(name string) *Builder[S, C, D] {
	b.name = name
	return b
}

// WithInitialState registers the initial state
func (b *Builder[S, C, D]) WithInitialState(s S) *StateBuilder[S, C, D] {
	if b.initial != nil {
		b.fail(NewDefinitionError(ErrCodeInitialStateAlreadyDefined, s,
			fmt.Sprintf("initial state is already %v", b.initial.id)))
		return b.detached(s)
	}
	st, ok := b.register(s)
	if ok {
		st.initial = true
		b.initial = st
	}
	return &StateBuilder[S, C, D]{builder: b, state: st}
}

// WithFinalState registers the final state
func (b *Builder[S, C, D]) WithFinalState(s S) *StateBuilder[S, C, D] {
	if b.final != nil {
		b.fail(NewDefinitionError(ErrCodeFinalStateAlreadyDefined, s,
			fmt.Sprintf("final state is already %v", b.final.id)))
		return b.detached(s)
	}
	st, ok := b.register(s)
	if ok {
		st.final = true
		b.final = st
	}
	return &StateBuilder[S, C, D]{builder: b, state: st}
}

// WithState registers an intermediate state
func (b *Builder[S, C, D]) WithState(s S) *StateBuilder[S, C, D] {
	st, _ := b.register(s)
	return &StateBuilder[S, C, D]{builder: b, state: st}
}

// WithTransientState registers a state that is left within the same OnEvent
// call that entered it, through its mandatory default transition
func (b *Builder[S, C, D]) WithTransientState(s S) *StateBuilder[S, C, D] {
	st, ok := b.register(s)
	if ok {
		st.transient = true
	}
	return &StateBuilder[S, C, D]{builder: b, state: st}
}

// Build validates the declarations and freezes them into a Definition
func (b *Builder[S, C, D]) Build() (*Definition[S, C, D], error) {
	errs := append([]error(nil), b.errs...)

	if len(b.set.order) == 0 {
		errs = append(errs, NewDefinitionError(ErrCodeEmptyStateSet, nil, "the state set is empty"))
	}
	if b.initial == nil {
		errs = append(errs, NewDefinitionError(ErrCodeNoInitialState, nil, "call WithInitialState exactly once"))
	}
	if b.final == nil {
		errs = append(errs, NewDefinitionError(ErrCodeNoFinalState, nil, "call WithFinalState exactly once"))
	}

	for _, id := range b.set.order {
		if st, ok := b.states[id]; ok {
			errs = append(errs, b.validateState(st)...)
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	def := &Definition[S, C, D]{
		name:     b.name,
		order:    append([]S(nil), b.set.order...),
		ordinals: make(map[S]int, len(b.set.index)),
		states:   make(map[S]*State[S, C, D], len(b.states)),
		initial:  b.initial.id,
		final:    b.final.id,
	}
	for s, i := range b.set.index {
		def.ordinals[s] = i
	}
	for s, st := range b.states {
		def.states[s] = st.clone()
	}

	return def, nil
}

// MustBuild is like Build but panics if the definition is invalid
func (b *Builder[S, C, D]) MustBuild() *Definition[S, C, D] {
	def, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build machine: %v", err))
	}
	return def
}

// validateState checks the structural rules of a single state
func (b *Builder[S, C, D]) validateState(st *State[S, C, D]) []error {
	var errs []error

	switch {
	case st.final:
		if len(st.transitions) > 0 || st.defaultTransition != nil {
			errs = append(errs, NewDefinitionError(ErrCodeFinalStateHasTransitions, st.id,
				fmt.Sprintf("%d transitions declared", len(st.transitions))))
		}
	case st.transient:
		if st.defaultTransition == nil {
			errs = append(errs, NewDefinitionError(ErrCodeTransientWithoutDefault, st.id,
				"declare one with AsDefaultTransition"))
		}
	case len(st.transitions) == 0 && st.defaultTransition == nil:
		errs = append(errs, NewDefinitionError(ErrCodeNoTransitions, st.id,
			"declare a transition, a default transition or mark the state final"))
	}

	all := st.Transitions()
	if st.defaultTransition != nil {
		all = append(all, st.defaultTransition)
	}

	selfLoop := false
	for _, t := range all {
		if st.transient && t.to == st.id && !selfLoop {
			selfLoop = true
			errs = append(errs, NewDefinitionError(ErrCodeTransientSelfTransition, st.id,
				"a transient state must leave itself"))
		}

		target, ok := b.states[t.to]
		if !ok {
			errs = append(errs, NewDefinitionError(ErrCodeUnknownState, st.id,
				fmt.Sprintf("transition target %v is not registered", t.to)))
			continue
		}
		if t.transform != nil && !target.transient {
			errs = append(errs, NewDefinitionError(ErrCodeTransformationTargetNotTransient, st.id,
				fmt.Sprintf("target %v is not transient", t.to)))
		}
	}

	return errs
}

func (b *Builder[S, C, D]) register(s S) (*State[S, C, D], bool) {
	if _, ok := b.set.index[s]; !ok {
		b.fail(NewDefinitionError(ErrCodeUnknownState, s, "state is not part of the declared state set"))
		return newState[S, C, D](s), false
	}
	if _, ok := b.states[s]; ok {
		b.fail(NewDefinitionError(ErrCodeStateAlreadyDefined, s, "state registered more than once"))
		return newState[S, C, D](s), false
	}
	st := newState[S, C, D](s)
	b.states[s] = st
	return st, true
}

// detached returns a builder for a state that is not part of the definition, so
// a failed registration can still be chained without effect.
func (b *Builder[S, C, D]) detached(s S) *StateBuilder[S, C, D] {
	return &StateBuilder[S, C, D]{builder: b, state: newState[S, C, D](s)}
}

func (b *Builder[S, C, D]) fail(err error) {
	b.errs = append(b.errs, err)
}

// StateBuilder configures one registered state
type StateBuilder[S comparable, C, D any] struct {
	builder *Builder[S, C, D]
	state   *State[S, C, D]
}

// WithEnterAction sets the action run on every entry that is not a self transition
func (sb *StateBuilder[S, C, D]) WithEnterAction(action StateAction[C, D], label ...string) *StateBuilder[S, C, D] {
	return sb.setAction(&sb.state.enter, EnterAction, action, label)
}

// WithInitialEnterAction sets the action run before the enter action, only on
// the first entry into the state over an instance's lifetime
func (sb *StateBuilder[S, C, D]) WithInitialEnterAction(action StateAction[C, D], label ...string) *StateBuilder[S, C, D] {
	return sb.setAction(&sb.state.initialEnter, InitialEnterAction, action, label)
}

// WithSelfEnterAction sets the action run when an explicit self transition fires
func (sb *StateBuilder[S, C, D]) WithSelfEnterAction(action StateAction[C, D], label ...string) *StateBuilder[S, C, D] {
	return sb.setAction(&sb.state.selfEnter, SelfEnterAction, action, label)
}

// WithExitAction sets the action run when the state is left for another state
func (sb *StateBuilder[S, C, D]) WithExitAction(action StateAction[C, D], label ...string) *StateBuilder[S, C, D] {
	return sb.setAction(&sb.state.exit, ExitAction, action, label)
}

// TransitionTo starts a transition to another state
func (sb *StateBuilder[S, C, D]) TransitionTo(to S) *EventStep[S, C, D] {
	return &EventStep[S, C, D]{state: sb, to: to}
}

// TransitionToSelf starts an explicit self transition
func (sb *StateBuilder[S, C, D]) TransitionToSelf() *EventStep[S, C, D] {
	return &EventStep[S, C, D]{state: sb, to: sb.state.id}
}

// Done returns the definition builder
func (sb *StateBuilder[S, C, D]) Done() *Builder[S, C, D] {
	return sb.builder
}

func (sb *StateBuilder[S, C, D]) setAction(slot **labeledAction[C, D], kind ActionKind, action StateAction[C, D], labels []string) *StateBuilder[S, C, D] {
	if action == nil {
		return sb
	}
	if *slot != nil {
		sb.builder.fail(NewDefinitionError(ErrCodeActionAlreadyDefined, sb.state.id,
			fmt.Sprintf("%s action registered twice", kind)))
		return sb
	}
	*slot = &labeledAction[C, D]{fn: action, label: firstLabel(labels)}
	return sb
}

// EventStep binds a pending transition to the events it reacts to
type EventStep[S comparable, C, D any] struct {
	state *StateBuilder[S, C, D]
	to    S
}

// OnEvent binds the transition to events assignable to E. Transitions of a
// state are evaluated in the order OnEvent was called.
func OnEvent[E any, S comparable, C, D any](step *EventStep[S, C, D]) *TransitionBuilder[S, C, D, E] {
	t := &Transition[S, C, D]{
		from:      step.state.state.id,
		to:        step.to,
		eventType: typeOf[E](),
		accepts: func(event any) bool {
			_, ok := event.(E)
			return ok
		},
	}
	step.state.state.transitions = append(step.state.state.transitions, t)
	return &TransitionBuilder[S, C, D, E]{transitionConfig[S, C, D]{state: step.state, t: t}}
}

// AsDefaultTransition makes the transition the state's catch-all: it accepts
// any event, has no guard and is tried after every explicit transition.
func (e *EventStep[S, C, D]) AsDefaultTransition() *DefaultTransitionBuilder[S, C, D] {
	st := e.state.state
	t := &Transition[S, C, D]{
		from:      st.id,
		to:        e.to,
		isDefault: true,
	}
	if st.defaultTransition != nil {
		e.state.builder.fail(NewDefinitionError(ErrCodeDefaultTransitionAlreadyDefined, st.id,
			fmt.Sprintf("default transition already targets %v", st.defaultTransition.to)))
	} else {
		st.defaultTransition = t
	}
	return &DefaultTransitionBuilder[S, C, D]{transitionConfig[S, C, D]{state: e.state, t: t}}
}

type transitionConfig[S comparable, C, D any] struct {
	state *StateBuilder[S, C, D]
	t     *Transition[S, C, D]
}

func (c transitionConfig[S, C, D]) fail(code ErrorCode, message string) {
	c.state.builder.fail(NewDefinitionError(code, c.t.from,
		fmt.Sprintf("transition to %v: %s", c.t.to, message)))
}

func (c transitionConfig[S, C, D]) setGuard(guard func(any, C, D) bool, labels []string) {
	if c.t.guard != nil {
		c.fail(ErrCodeGuardAlreadyDefined, "only one guard is allowed per transition")
		return
	}
	c.t.guard = guard
	c.t.guardLabel = firstLabel(labels)
}

func (c transitionConfig[S, C, D]) setAction(action func(any, C, D) error, labels []string) {
	if c.t.action != nil {
		c.fail(ErrCodeActionAlreadyDefined, "only one action is allowed per transition")
		return
	}
	c.t.action = action
	c.t.actionLabel = firstLabel(labels)
}

func (c transitionConfig[S, C, D]) setTransform(transform func(any) (any, error), labels []string) {
	if c.t.transform != nil {
		c.fail(ErrCodeTransformationAlreadyDefined, "only one transformation is allowed per transition")
		return
	}
	c.t.transform = transform
	c.t.transformLabel = firstLabel(labels)
}

// TransitionBuilder configures a transition bound to events of type E
type TransitionBuilder[S comparable, C, D, E any] struct {
	cfg transitionConfig[S, C, D]
}

// WithGuard sets a guard that only sees the event
func (tb *TransitionBuilder[S, C, D, E]) WithGuard(guard GuardFunc[E], label ...string) *TransitionBuilder[S, C, D, E] {
	if guard != nil {
		tb.cfg.setGuard(func(event any, _ C, _ D) bool {
			return guard(event.(E))
		}, label)
	}
	return tb
}

// WithContextGuard sets a guard that also sees the context and the data
func (tb *TransitionBuilder[S, C, D, E]) WithContextGuard(guard ContextGuardFunc[E, C, D], label ...string) *TransitionBuilder[S, C, D, E] {
	if guard != nil {
		tb.cfg.setGuard(func(event any, ctx C, data D) bool {
			return guard(event.(E), ctx, data)
		}, label)
	}
	return tb
}

// WithAction sets an action that only sees the event
func (tb *TransitionBuilder[S, C, D, E]) WithAction(action ActionFunc[E], label ...string) *TransitionBuilder[S, C, D, E] {
	if action != nil {
		tb.cfg.setAction(func(event any, _ C, _ D) error {
			return action(event.(E))
		}, label)
	}
	return tb
}

// WithContextAction sets an action that also sees the context and the data
func (tb *TransitionBuilder[S, C, D, E]) WithContextAction(action ContextActionFunc[E, C, D], label ...string) *TransitionBuilder[S, C, D, E] {
	if action != nil {
		tb.cfg.setAction(func(event any, ctx C, data D) error {
			return action(event.(E), ctx, data)
		}, label)
	}
	return tb
}

// WithTransformation converts the event into the payload handed on to the
// transient target state
func (tb *TransitionBuilder[S, C, D, E]) WithTransformation(transform TransformFunc[E], label ...string) *TransitionBuilder[S, C, D, E] {
	if transform != nil {
		tb.cfg.setTransform(func(event any) (any, error) {
			return transform(event.(E))
		}, label)
	}
	return tb
}

// Consume marks the event as handled without any side effect
func (tb *TransitionBuilder[S, C, D, E]) Consume() *TransitionBuilder[S, C, D, E] {
	tb.cfg.setAction(consume[C, D], []string{"consume"})
	return tb
}

// TransitionTo starts another transition from the same state
func (tb *TransitionBuilder[S, C, D, E]) TransitionTo(to S) *EventStep[S, C, D] {
	return tb.cfg.state.TransitionTo(to)
}

// TransitionToSelf starts a self transition from the same state
func (tb *TransitionBuilder[S, C, D, E]) TransitionToSelf() *EventStep[S, C, D] {
	return tb.cfg.state.TransitionToSelf()
}

// And returns the builder of the owning state
func (tb *TransitionBuilder[S, C, D, E]) And() *StateBuilder[S, C, D] {
	return tb.cfg.state
}

// DefaultTransitionBuilder configures a state's default transition. Default
// transitions are unguarded, so no guard can be attached.
type DefaultTransitionBuilder[S comparable, C, D any] struct {
	cfg transitionConfig[S, C, D]
}

// WithAction sets an action that only sees the event
func (db *DefaultTransitionBuilder[S, C, D]) WithAction(action ActionFunc[any], label ...string) *DefaultTransitionBuilder[S, C, D] {
	if action != nil {
		db.cfg.setAction(func(event any, _ C, _ D) error {
			return action(event)
		}, label)
	}
	return db
}

// WithContextAction sets an action that also sees the context and the data
func (db *DefaultTransitionBuilder[S, C, D]) WithContextAction(action ContextActionFunc[any, C, D], label ...string) *DefaultTransitionBuilder[S, C, D] {
	if action != nil {
		db.cfg.setAction(action, label)
	}
	return db
}

// WithTransformation converts the event into the payload handed on to the
// transient target state
func (db *DefaultTransitionBuilder[S, C, D]) WithTransformation(transform TransformFunc[any], label ...string) *DefaultTransitionBuilder[S, C, D] {
	if transform != nil {
		db.cfg.setTransform(transform, label)
	}
	return db
}

// Consume marks the event as handled without any side effect
func (db *DefaultTransitionBuilder[S, C, D]) Consume() *DefaultTransitionBuilder[S, C, D] {
	db.cfg.setAction(consume[C, D], []string{"consume"})
	return db
}

// TransitionTo starts another transition from the same state
func (db *DefaultTransitionBuilder[S, C, D]) TransitionTo(to S) *EventStep[S, C, D] {
	return db.cfg.state.TransitionTo(to)
}

// And returns the builder of the owning state
func (db *DefaultTransitionBuilder[S, C, D]) And() *StateBuilder[S, C, D] {
	return db.cfg.state
}

func consume[C, D any](any, C, D) error {
	return nil
}

func firstLabel(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	return labels[0]
}
