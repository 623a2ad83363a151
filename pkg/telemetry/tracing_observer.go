// Package telemetry exports machine activity as OpenTelemetry spans
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/anggasct/fsm"
)

// InstrumentationName is the tracer name used when no tracer is supplied
const InstrumentationName = "github.com/anggasct/fsm"

// Span names
const (
	SpanStart      = "fsm.start"
	SpanTransition = "fsm.transition"
	SpanUnhandled  = "fsm.unhandled"
	SpanFailure    = "fsm.failure"
)

// Attribute keys
const (
	AttrID      = attribute.Key("fsm.id")
	AttrMachine = attribute.Key("fsm.machine")
	AttrFrom    = attribute.Key("fsm.from")
	AttrTo      = attribute.Key("fsm.to")
	AttrState   = attribute.Key("fsm.state")
	AttrEvent   = attribute.Key("fsm.event")
	AttrStage   = attribute.Key("fsm.stage")
)

// TracingObserver records one span per machine notification. Spans are
// instantaneous: the engine is synchronous, so the interesting signal is the
// sequence and the attributes rather than durations.
type TracingObserver[S comparable] struct {
	tracer  trace.Tracer
	ctx     context.Context
	machine string
}

var _ fsm.ExtendedObserver[string] = (*TracingObserver[string])(nil)

// Option configures a TracingObserver
type Option func(*config)

type config struct {
	tracer  trace.Tracer
	ctx     context.Context
	machine string
}

// WithTracer sets the tracer. Defaults to otel.Tracer(InstrumentationName).
func WithTracer(tracer trace.Tracer) Option {
	return func(c *config) {
		c.tracer = tracer
	}
}

// WithParent makes every span a child of the span carried by ctx
func WithParent(ctx context.Context) Option {
	return func(c *config) {
		c.ctx = ctx
	}
}

// WithMachineName adds the fsm.machine attribute to every span
func WithMachineName(name string) Option {
	return func(c *config) {
		c.machine = name
	}
}

// NewTracingObserver creates a new tracing observer
func NewTracingObserver[S comparable](opts ...Option) *TracingObserver[S] {
	c := config{ctx: context.Background()}
	for _, opt := range opts {
		opt(&c)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(InstrumentationName)
	}
	return &TracingObserver[S]{
		tracer:  c.tracer,
		ctx:     c.ctx,
		machine: c.machine,
	}
}

func (o *TracingObserver[S]) record(name, id string, attrs ...attribute.KeyValue) trace.Span {
	attrs = append(attrs, AttrID.String(id))
	if o.machine != "" {
		attrs = append(attrs, AttrMachine.String(o.machine))
	}
	_, span := o.tracer.Start(o.ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	return span
}

func (o *TracingObserver[S]) OnTransition(id string, from, to S, event any) {
	span := o.record(SpanTransition, id,
		AttrFrom.String(fmt.Sprint(from)),
		AttrTo.String(fmt.Sprint(to)),
		AttrEvent.String(fsm.EventName(event)),
	)
	span.End()
}

// OnStateEnter is covered by the transition span
func (o *TracingObserver[S]) OnStateEnter(id string, state S) {}

func (o *TracingObserver[S]) OnStateExit(id string, state S) {}

func (o *TracingObserver[S]) OnEventUnhandled(id string, state S, event any) {
	span := o.record(SpanUnhandled, id,
		AttrState.String(fmt.Sprint(state)),
		AttrEvent.String(fsm.EventName(event)),
	)
	span.End()
}

func (o *TracingObserver[S]) OnFailure(id string, failure *fsm.ActionFailure) {
	span := o.record(SpanFailure, id,
		AttrState.String(failure.State),
		AttrStage.String(string(failure.Stage)),
		AttrEvent.String(fsm.EventName(failure.Event)),
	)
	span.RecordError(failure.Err)
	span.SetStatus(codes.Error, failure.Error())
	span.End()
}

func (o *TracingObserver[S]) OnMachineStarted(id string, initial S) {
	span := o.record(SpanStart, id, AttrState.String(fmt.Sprint(initial)))
	span.End()
}
