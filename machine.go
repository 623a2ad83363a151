package fsm

import (
	"fmt"
	"log/slog"
)

// UnhandledEventHandler is called with the current state and the event when no
// transition matched
type UnhandledEventHandler[S comparable] func(state S, event any)

// TransitionListener is called for every matched transition before its action runs
type TransitionListener[S comparable] func(from, to S, event any)

type instanceOptions[S comparable] struct {
	unhandled     UnhandledEventHandler[S]
	listener      TransitionListener[S]
	observers     []Observer[S]
	logger        *slog.Logger
	maxChainDepth int
}

// InstanceOption configures an instance created by Definition.NewInstance
type InstanceOption[S comparable] func(*instanceOptions[S])

// WithUnhandledEventHandler sets the callback for events no transition matched
func WithUnhandledEventHandler[S comparable](fn UnhandledEventHandler[S]) InstanceOption[S] {
	return func(o *instanceOptions[S]) {
		o.unhandled = fn
	}
}

// WithTransitionListener sets the callback notified of every matched transition.
// A panicking listener is logged and never blocks the transition.
func WithTransitionListener[S comparable](fn TransitionListener[S]) InstanceOption[S] {
	return func(o *instanceOptions[S]) {
		o.listener = fn
	}
}

// WithObserver registers an observer on the instance
func WithObserver[S comparable](observer Observer[S]) InstanceOption[S] {
	return func(o *instanceOptions[S]) {
		o.observers = append(o.observers, observer)
	}
}

// WithLogger sets the instance logger. Defaults to slog.Default().
func WithLogger[S comparable](logger *slog.Logger) InstanceOption[S] {
	return func(o *instanceOptions[S]) {
		o.logger = logger
	}
}

// WithMaxChainDepth bounds the number of hops a single OnEvent call may take
func WithMaxChainDepth[S comparable](depth int) InstanceOption[S] {
	return func(o *instanceOptions[S]) {
		if depth > 0 {
			o.maxChainDepth = depth
		}
	}
}

// FSM is one running instance of a Definition. It owns its context and data
// and is driven by a single caller at a time; it does no locking of its own.
type FSM[S comparable, C, D any] struct {
	id   string
	def  *Definition[S, C, D]
	ctx  C
	data D

	current    S
	started    bool
	processing bool
	visited    map[S]bool

	unhandled     UnhandledEventHandler[S]
	listener      TransitionListener[S]
	observers     *ObserverManager[S]
	logger        *slog.Logger
	maxChainDepth int
}

func newFSM[S comparable, C, D any](def *Definition[S, C, D], id string, ctx C, data D, opts ...InstanceOption[S]) *FSM[S, C, D] {
	o := instanceOptions[S]{maxChainDepth: DefaultMaxChainDepth}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	logger := o.logger.With(slog.String("fsm.id", id))
	if def.name != "" {
		logger = logger.With(slog.String("fsm.machine", def.name))
	}

	m := &FSM[S, C, D]{
		id:            id,
		def:           def,
		ctx:           ctx,
		data:          data,
		current:       def.initial,
		visited:       make(map[S]bool, len(def.states)),
		unhandled:     o.unhandled,
		listener:      o.listener,
		observers:     NewObserverManager[S](logger),
		logger:        logger,
		maxChainDepth: o.maxChainDepth,
	}
	for _, obs := range o.observers {
		m.observers.AddObserver(obs)
	}
	return m
}

func (m *FSM[S, C, D]) ID() string {
	return m.id
}

// State returns the current state. Before Start it is the initial state.
func (m *FSM[S, C, D]) State() S {
	return m.current
}

func (m *FSM[S, C, D]) Context() C {
	return m.ctx
}

func (m *FSM[S, C, D]) Data() D {
	return m.data
}

func (m *FSM[S, C, D]) Definition() *Definition[S, C, D] {
	return m.def
}

// IsStarted reports whether Start or ReStartAndEnter has succeeded
func (m *FSM[S, C, D]) IsStarted() bool {
	return m.started
}

// IsTerminated reports whether the current state is the final state
func (m *FSM[S, C, D]) IsTerminated() bool {
	return m.started && m.current == m.def.final
}

// AddObserver registers an observer after construction
func (m *FSM[S, C, D]) AddObserver(observer Observer[S]) {
	m.observers.AddObserver(observer)
}

func (m *FSM[S, C, D]) RemoveObserver(observer Observer[S]) {
	m.observers.RemoveObserver(observer)
}

// Start enters the initial state, running its initial-enter action and then
// its enter action. Calling Start on a started instance does nothing. If an
// enter action fails the instance stays unstarted and the failure is returned.
func (m *FSM[S, C, D]) Start() error {
	if m.started {
		return nil
	}
	if m.processing {
		return fmt.Errorf("%w: instance %s", ErrReentrantEvent, m.id)
	}

	m.processing = true
	defer func() { m.processing = false }()

	initial := m.def.states[m.def.initial]
	if failure := m.enter(initial, nil); failure != nil {
		m.fail(failure)
		return failure
	}

	m.current = initial.id
	m.visited[initial.id] = true
	m.started = true

	m.logger.Debug("machine started", slog.Any("state", initial.id))
	m.observers.NotifyStateEnter(m.id, initial.id)
	m.observers.NotifyMachineStarted(m.id, initial.id)
	return nil
}

// OnEvent offers an event to the current state and runs the first matching
// transition. When the destination is transient the machine keeps going
// within the same call until it rests in a non-transient state, so callers
// never observe a transient state. Failures of user code are reported in the
// result and never panic.
func (m *FSM[S, C, D]) OnEvent(event any) *Result[S] {
	if !m.started {
		return NewResult(OutcomeRejected, m.current).
			WithError(fmt.Errorf("%w: instance %s", ErrNotStarted, m.id))
	}
	if m.processing {
		return NewResult(OutcomeRejected, m.current).
			WithError(fmt.Errorf("%w: instance %s", ErrReentrantEvent, m.id))
	}

	m.processing = true
	defer func() { m.processing = false }()

	result := NewResult(OutcomeTransitioned, m.current)
	payload := event

	for {
		state := m.def.states[m.current]

		t, err := state.findTransition(payload, m.ctx, m.data)
		if err != nil {
			return m.failed(result, NewActionFailure(StageGuard, state.id, payload, err))
		}

		if t == nil {
			return m.unhandledEvent(result, state.id, payload)
		}

		if result.Hops >= m.maxChainDepth {
			return m.failed(result, NewActionFailure(StageChain, state.id, payload,
				fmt.Errorf("%w: %d hops", ErrChainTooLong, result.Hops)))
		}

		next, failure := m.fire(state, t, payload)
		if failure != nil {
			return m.failed(result, failure)
		}

		result.Hops++
		result.To = m.current

		if !m.def.states[m.current].transient {
			return result
		}
		payload = next
	}
}

// fire runs one hop and commits it. The returned payload is the event to offer
// to the destination when it is transient.
func (m *FSM[S, C, D]) fire(from *State[S, C, D], t *Transition[S, C, D], event any) (any, *ActionFailure) {
	m.notifyListener(from.id, t.to, event)

	if err := t.execute(event, m.ctx, m.data); err != nil {
		return nil, NewActionFailure(StageAction, from.id, event, err)
	}

	next := event
	if t.transform != nil {
		payload, err := t.transformEvent(event)
		if err != nil {
			return nil, NewActionFailure(StageTransformation, from.id, event, err)
		}
		next = payload
	}

	to := m.def.states[t.to]

	if to.id == from.id {
		if err := runAction(from.selfEnter, m.ctx, m.data); err != nil {
			return nil, NewActionFailure(StageSelfEnter, from.id, event, err)
		}
		m.logger.Debug("self transition", slog.Any("state", from.id), slog.String("event", EventName(event)))
		m.observers.NotifyTransition(m.id, from.id, to.id, event)
		return next, nil
	}

	if err := runAction(from.exit, m.ctx, m.data); err != nil {
		return nil, NewActionFailure(StageExit, from.id, event, err)
	}
	if failure := m.enter(to, event); failure != nil {
		return nil, failure
	}

	m.current = to.id
	m.visited[to.id] = true

	m.logger.Debug("transition",
		slog.Any("from", from.id),
		slog.Any("to", to.id),
		slog.String("event", EventName(event)),
	)
	m.observers.NotifyStateExit(m.id, from.id)
	m.observers.NotifyTransition(m.id, from.id, to.id, event)
	m.observers.NotifyStateEnter(m.id, to.id)

	return next, nil
}

// enter runs the initial-enter action on the first visit, then the enter action
func (m *FSM[S, C, D]) enter(st *State[S, C, D], event any) *ActionFailure {
	if !m.visited[st.id] {
		if err := runAction(st.initialEnter, m.ctx, m.data); err != nil {
			return NewActionFailure(StageInitialEnter, st.id, event, err)
		}
	}
	if err := runAction(st.enter, m.ctx, m.data); err != nil {
		return NewActionFailure(StageEnter, st.id, event, err)
	}
	return nil
}

// ReStartAndEnter relocates the instance to state and runs its enter action.
// The initial-enter action is never run. It works on unstarted and terminated
// instances alike and is the way to resume a machine from an external record.
func (m *FSM[S, C, D]) ReStartAndEnter(state S) error {
	if !m.def.IsMember(state) {
		return NewInvalidStateError(state, "not a member of the declared state set")
	}
	st, ok := m.def.states[state]
	if !ok {
		return NewInvalidStateError(state, "state is declared but not registered in the definition")
	}
	if m.processing {
		return fmt.Errorf("%w: instance %s", ErrReentrantEvent, m.id)
	}

	m.processing = true
	defer func() { m.processing = false }()

	if err := runAction(st.enter, m.ctx, m.data); err != nil {
		failure := NewActionFailure(StageEnter, st.id, nil, err)
		m.fail(failure)
		return failure
	}

	m.current = st.id
	m.visited[st.id] = true
	m.started = true

	m.logger.Debug("machine restarted", slog.Any("state", st.id))
	m.observers.NotifyStateEnter(m.id, st.id)
	return nil
}

func (m *FSM[S, C, D]) unhandledEvent(result *Result[S], state S, event any) *Result[S] {
	result.Outcome = OutcomeUnhandled
	result.Err = NewUnhandledEventError(state, event)

	m.logger.Debug("unhandled event", slog.Any("state", state), slog.String("event", EventName(event)))

	if m.unhandled != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Warn("unhandled event handler panicked", slog.Any("panic", r))
				}
			}()
			m.unhandled(state, event)
		}()
	}
	m.observers.NotifyEventUnhandled(m.id, state, event)

	return result
}

// failed reports a failure of the current OnEvent call. A chain that fails
// while the instance sits in a transient state is rolled back to the state
// the call started from, so transient states never become resting states.
func (m *FSM[S, C, D]) failed(result *Result[S], failure *ActionFailure) *Result[S] {
	if m.def.states[m.current].transient && m.current != result.From {
		m.logger.Debug("transient chain rolled back",
			slog.Any("from", m.current),
			slog.Any("to", result.From),
		)
		m.current = result.From
	}

	result.Outcome = OutcomeFailed
	result.To = m.current
	result.Err = failure
	m.fail(failure)
	return result
}

func (m *FSM[S, C, D]) fail(failure *ActionFailure) {
	m.logger.Error("state machine failure",
		slog.String("stage", string(failure.Stage)),
		slog.String("state", failure.State),
		slog.String("event", EventName(failure.Event)),
		slog.Any("error", failure.Err),
	)
	m.observers.NotifyFailure(m.id, failure)
}

func (m *FSM[S, C, D]) notifyListener(from, to S, event any) {
	if m.listener == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("transition listener panicked",
				slog.Any("from", from),
				slog.Any("to", to),
				slog.Any("panic", r),
			)
		}
	}()
	m.listener(from, to, event)
}
