package fsm

import (
	"errors"
	"fmt"
)

// ErrorCode represents specific error conditions in the state machine
type ErrorCode int

const (
	// No error occurred
	ErrCodeNone ErrorCode = iota
	// State value is not a member of the declared state set
	ErrCodeUnknownState
	// No states were declared
	ErrCodeEmptyStateSet
	// No initial state was registered
	ErrCodeNoInitialState
	// No final state was registered
	ErrCodeNoFinalState
	// State was registered twice
	ErrCodeStateAlreadyDefined
	// A second initial state was registered
	ErrCodeInitialStateAlreadyDefined
	// A second final state was registered
	ErrCodeFinalStateAlreadyDefined
	// Non-final state has neither transitions nor a default transition
	ErrCodeNoTransitions
	// Final state declares transitions
	ErrCodeFinalStateHasTransitions
	// Transient state has no default transition
	ErrCodeTransientWithoutDefault
	// Transient state has a transition to itself
	ErrCodeTransientSelfTransition
	// Transformation attached to a transition whose target is not transient
	ErrCodeTransformationTargetNotTransient
	// A second guard was registered on one transition
	ErrCodeGuardAlreadyDefined
	// A second action was registered on one transition or state slot
	ErrCodeActionAlreadyDefined
	// A second transformation was registered on one transition
	ErrCodeTransformationAlreadyDefined
	// A second default transition was registered on one state
	ErrCodeDefaultTransitionAlreadyDefined
	// Machine has not been started
	ErrCodeNotStarted
	// Event delivered while the instance was already processing one
	ErrCodeReentrantEvent
	// No transition matched the event
	ErrCodeUnhandledEvent
	// User code failed while processing an event
	ErrCodeActionFailed
	// State passed at runtime is not usable
	ErrCodeInvalidState
	// Transient chaining exceeded the configured depth
	ErrCodeChainTooLong
)

// Build-time errors. Every rule enforced by Builder.Build has its own sentinel.
var (
	ErrUnknownState                     = errors.New("state is not a member of the declared state set")
	ErrEmptyStateSet                    = errors.New("no states declared")
	ErrNoInitialState                   = errors.New("no initial state defined")
	ErrNoFinalState                     = errors.New("no final state defined")
	ErrStateAlreadyDefined              = errors.New("state already defined")
	ErrInitialStateAlreadyDefined       = errors.New("initial state already defined")
	ErrFinalStateAlreadyDefined         = errors.New("final state already defined")
	ErrNoTransitions                    = errors.New("non-final state has no transitions")
	ErrFinalStateHasTransitions         = errors.New("final state cannot have transitions")
	ErrTransientWithoutDefault          = errors.New("transient state has no default transition")
	ErrTransientSelfTransition          = errors.New("transient state cannot transition to itself")
	ErrTransformationTargetNotTransient = errors.New("transformation requires a transient target state")
	ErrGuardAlreadyDefined              = errors.New("guard already defined")
	ErrActionAlreadyDefined             = errors.New("action already defined")
	ErrTransformationAlreadyDefined     = errors.New("transformation already defined")
	ErrDefaultTransitionAlreadyDefined  = errors.New("default transition already defined")
)

// Run-time errors.
var (
	ErrNotStarted       = errors.New("state machine is not started")
	ErrReentrantEvent   = errors.New("event delivered while another event is being processed")
	ErrUnhandledEvent   = errors.New("unhandled event")
	ErrActionFailed     = errors.New("action failed")
	ErrInvalidState     = errors.New("invalid state")
	ErrChainTooLong     = errors.New("transient chain exceeded maximum depth")
	ErrSchedulerStopped = errors.New("scheduler stopped")
)

var sentinels = map[ErrorCode]error{
	ErrCodeUnknownState:                     ErrUnknownState,
	ErrCodeEmptyStateSet:                    ErrEmptyStateSet,
	ErrCodeNoInitialState:                   ErrNoInitialState,
	ErrCodeNoFinalState:                     ErrNoFinalState,
	ErrCodeStateAlreadyDefined:              ErrStateAlreadyDefined,
	ErrCodeInitialStateAlreadyDefined:       ErrInitialStateAlreadyDefined,
	ErrCodeFinalStateAlreadyDefined:         ErrFinalStateAlreadyDefined,
	ErrCodeNoTransitions:                    ErrNoTransitions,
	ErrCodeFinalStateHasTransitions:         ErrFinalStateHasTransitions,
	ErrCodeTransientWithoutDefault:          ErrTransientWithoutDefault,
	ErrCodeTransientSelfTransition:          ErrTransientSelfTransition,
	ErrCodeTransformationTargetNotTransient: ErrTransformationTargetNotTransient,
	ErrCodeGuardAlreadyDefined:              ErrGuardAlreadyDefined,
	ErrCodeActionAlreadyDefined:             ErrActionAlreadyDefined,
	ErrCodeTransformationAlreadyDefined:     ErrTransformationAlreadyDefined,
	ErrCodeDefaultTransitionAlreadyDefined:  ErrDefaultTransitionAlreadyDefined,
	ErrCodeNotStarted:                       ErrNotStarted,
	ErrCodeReentrantEvent:                   ErrReentrantEvent,
	ErrCodeUnhandledEvent:                   ErrUnhandledEvent,
	ErrCodeActionFailed:                     ErrActionFailed,
	ErrCodeInvalidState:                     ErrInvalidState,
	ErrCodeChainTooLong:                     ErrChainTooLong,
}

// Err returns the sentinel error matching the code, or nil for ErrCodeNone.
func (c ErrorCode) Err() error {
	return sentinels[c]
}

// DefinitionError represents a structural problem found while building a definition
type DefinitionError struct {
	Code    ErrorCode
	State   string
	Message string
}

func (e *DefinitionError) Error() string {
	if e.State != "" {
		return fmt.Sprintf("definition error [%s]: %s: %s", e.State, e.Code.Err(), e.Message)
	}
	return fmt.Sprintf("definition error: %s: %s", e.Code.Err(), e.Message)
}

func (e *DefinitionError) Unwrap() error {
	return e.Code.Err()
}

// NewDefinitionError creates a new definition error for the given state
func NewDefinitionError(code ErrorCode, state any, message string) *DefinitionError {
	name := ""
	if state != nil {
		name = fmt.Sprint(state)
	}
	return &DefinitionError{
		Code:    code,
		State:   name,
		Message: message,
	}
}

// StateError represents state-related runtime errors
type StateError struct {
	Code    ErrorCode
	StateID string
	Message string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state error [%s]: %s", e.StateID, e.Message)
}

func (e *StateError) Unwrap() error {
	return e.Code.Err()
}

// NewInvalidStateError creates a new invalid state error
func NewInvalidStateError(state any, reason string) *StateError {
	return &StateError{
		Code:    ErrCodeInvalidState,
		StateID: fmt.Sprint(state),
		Message: reason,
	}
}

// Stage names the piece of user code that was running when a failure happened.
type Stage string

const (
	StageGuard          Stage = "guard"
	StageAction         Stage = "action"
	StageTransformation Stage = "transformation"
	StageExit           Stage = "exit"
	StageInitialEnter   Stage = "initial-enter"
	StageEnter          Stage = "enter"
	StageSelfEnter      Stage = "self-enter"
	StageChain          Stage = "chain"
)

// ActionFailure reports an error returned, or a panic raised, by user code while
// an event was processed. It is delivered in the Result of OnEvent and to
// observers; it is never re-thrown to the caller.
type ActionFailure struct {
	Stage Stage
	State string
	Event any
	Err   error
}

func (e *ActionFailure) Error() string {
	return fmt.Sprintf("%s failed in state '%s' on %s: %v", e.Stage, e.State, EventName(e.Event), e.Err)
}

func (e *ActionFailure) Unwrap() []error {
	return []error{ErrActionFailed, e.Err}
}

// NewActionFailure creates a new action failure
func NewActionFailure(stage Stage, state any, event any, err error) *ActionFailure {
	return &ActionFailure{
		Stage: stage,
		State: fmt.Sprint(state),
		Event: event,
		Err:   err,
	}
}

// UnhandledEventError records that no transition of the current state matched.
type UnhandledEventError struct {
	State string
	Event any
}

func (e *UnhandledEventError) Error() string {
	return fmt.Sprintf("no transition found from state '%s' for event %s", e.State, EventName(e.Event))
}

func (e *UnhandledEventError) Unwrap() error {
	return ErrUnhandledEvent
}

// NewUnhandledEventError creates a new unhandled event error
func NewUnhandledEventError(state any, event any) *UnhandledEventError {
	return &UnhandledEventError{
		State: fmt.Sprint(state),
		Event: event,
	}
}

// IsDefinitionError checks if an error is or wraps a DefinitionError
func IsDefinitionError(err error) bool {
	var e *DefinitionError
	return errors.As(err, &e)
}

// IsStateError checks if an error is or wraps a StateError
func IsStateError(err error) bool {
	var e *StateError
	return errors.As(err, &e)
}

// IsActionFailure checks if an error is or wraps an ActionFailure
func IsActionFailure(err error) bool {
	var e *ActionFailure
	return errors.As(err, &e)
}

// IsUnhandledEvent checks if an error is or wraps an UnhandledEventError
func IsUnhandledEvent(err error) bool {
	var e *UnhandledEventError
	return errors.As(err, &e)
}

// GetErrorCode returns the error code for known error types
func GetErrorCode(err error) ErrorCode {
	var (
		defErr       *DefinitionError
		stateErr     *StateError
		failure      *ActionFailure
		unhandledErr *UnhandledEventError
	)
	switch {
	case err == nil:
		return ErrCodeNone
	case errors.As(err, &defErr):
		return defErr.Code
	case errors.As(err, &stateErr):
		return stateErr.Code
	case errors.As(err, &failure):
		return ErrCodeActionFailed
	case errors.As(err, &unhandledErr):
		return ErrCodeUnhandledEvent
	}
	for code := ErrCodeUnknownState; code <= ErrCodeChainTooLong; code++ {
		if errors.Is(err, code.Err()) {
			return code
		}
	}
	return ErrCodeNone
}

func recoverError(kind string, r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%s panic: %w", kind, err)
	}
	return fmt.Errorf("%s panic: %v", kind, r)
}
