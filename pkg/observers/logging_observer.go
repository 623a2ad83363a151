// Package observers provides observers for monitoring state machine instances
package observers

import (
	"context"
	"log/slog"

	"github.com/anggasct/fsm"
)

// LoggingObserver writes machine lifecycle notifications to a slog logger.
// Transitions and state changes are logged at the configured level, unhandled
// events at warn and failures at error.
type LoggingObserver[S comparable] struct {
	logger *slog.Logger
	level  slog.Level
}

var _ fsm.ExtendedObserver[string] = (*LoggingObserver[string])(nil)

// NewLoggingObserver creates a new logging observer. A nil logger uses slog.Default().
func NewLoggingObserver[S comparable](logger *slog.Logger, level slog.Level, component string) *LoggingObserver[S] {
	if logger == nil {
		logger = slog.Default()
	}
	if component != "" {
		logger = logger.With(slog.String("component", component))
	}
	return &LoggingObserver[S]{
		logger: logger,
		level:  level,
	}
}

// NewDefaultLoggingObserver logs through slog.Default() at info level
func NewDefaultLoggingObserver[S comparable]() *LoggingObserver[S] {
	return NewLoggingObserver[S](nil, slog.LevelInfo, "fsm")
}

func (o *LoggingObserver[S]) log(level slog.Level, msg string, attrs ...slog.Attr) {
	o.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

func (o *LoggingObserver[S]) OnStateEnter(id string, state S) {
	o.log(o.level, "entering state",
		slog.String("fsm.id", id),
		slog.Any("state", state),
	)
}

func (o *LoggingObserver[S]) OnStateExit(id string, state S) {
	o.log(o.level, "exiting state",
		slog.String("fsm.id", id),
		slog.Any("state", state),
	)
}

func (o *LoggingObserver[S]) OnTransition(id string, from, to S, event any) {
	o.log(o.level, "transition",
		slog.String("fsm.id", id),
		slog.Any("from", from),
		slog.Any("to", to),
		slog.String("event", fsm.EventName(event)),
	)
}

func (o *LoggingObserver[S]) OnEventUnhandled(id string, state S, event any) {
	o.log(slog.LevelWarn, "unhandled event",
		slog.String("fsm.id", id),
		slog.Any("state", state),
		slog.String("event", fsm.EventName(event)),
	)
}

func (o *LoggingObserver[S]) OnFailure(id string, failure *fsm.ActionFailure) {
	o.log(slog.LevelError, "action failed",
		slog.String("fsm.id", id),
		slog.String("stage", string(failure.Stage)),
		slog.String("state", failure.State),
		slog.String("event", fsm.EventName(failure.Event)),
		slog.Any("error", failure.Err),
	)
}

func (o *LoggingObserver[S]) OnMachineStarted(id string, initial S) {
	o.log(o.level, "machine started",
		slog.String("fsm.id", id),
		slog.Any("state", initial),
	)
}
