package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/anggasct/fsm"
)

type recordedSpan struct {
	trace.Span
	name   string
	attrs  map[attribute.Key]string
	errs   []error
	status codes.Code
	ended  bool
}

func (s *recordedSpan) End(...trace.SpanEndOption) {
	s.ended = true
}

func (s *recordedSpan) RecordError(err error, _ ...trace.EventOption) {
	s.errs = append(s.errs, err)
}

func (s *recordedSpan) SetStatus(code codes.Code, _ string) {
	s.status = code
}

type recordingTracer struct {
	trace.Tracer
	mu    sync.Mutex
	spans []*recordedSpan
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	span := &recordedSpan{name: name, attrs: map[attribute.Key]string{}}
	for _, kv := range cfg.Attributes() {
		span.attrs[kv.Key] = kv.Value.Emit()
	}
	t.mu.Lock()
	t.spans = append(t.spans, span)
	t.mu.Unlock()
	return ctx, span
}

type insert struct{}

type jam struct{}

func TestTracingObserver(t *testing.T) {
	tracer := &recordingTracer{}
	obs := NewTracingObserver[string](WithTracer(tracer), WithMachineName("turnstile"))

	b := fsm.New[string, struct{}, struct{}]("locked", "unlocked", "broken")
	fsm.OnEvent[insert](b.WithInitialState("locked").TransitionTo("unlocked"))
	fsm.OnEvent[jam](b.WithState("unlocked").TransitionTo("broken")).
		WithAction(func(jam) error { return errors.New("stuck") })
	b.WithFinalState("broken")
	def, err := b.Build()
	require.NoError(t, err)

	m := def.NewInstance("t-1", struct{}{}, struct{}{}, fsm.WithObserver[string](obs))
	require.NoError(t, m.Start())
	m.OnEvent(insert{})
	m.OnEvent(insert{})
	m.OnEvent(jam{})

	require.Len(t, tracer.spans, 4)

	names := make([]string, 0, len(tracer.spans))
	for _, s := range tracer.spans {
		names = append(names, s.name)
		assert.True(t, s.ended, s.name)
		assert.Equal(t, "t-1", s.attrs[AttrID])
		assert.Equal(t, "turnstile", s.attrs[AttrMachine])
	}
	assert.Equal(t, []string{SpanStart, SpanTransition, SpanUnhandled, SpanFailure}, names)

	transition := tracer.spans[1]
	assert.Equal(t, "locked", transition.attrs[AttrFrom])
	assert.Equal(t, "unlocked", transition.attrs[AttrTo])
	assert.Equal(t, "telemetry.insert", transition.attrs[AttrEvent])

	unhandled := tracer.spans[2]
	assert.Equal(t, "unlocked", unhandled.attrs[AttrState])

	failure := tracer.spans[3]
	assert.Equal(t, "action", failure.attrs[AttrStage])
	assert.Equal(t, codes.Error, failure.status)
	require.Len(t, failure.errs, 1)
	assert.EqualError(t, failure.errs[0], "stuck")
}

func TestTracingObserver_DefaultTracer(t *testing.T) {
	obs := NewTracingObserver[int]()
	require.NotNil(t, obs.tracer)

	assert.NotPanics(t, func() {
		obs.OnTransition("x", 1, 2, nil)
		obs.OnFailure("x", fsm.NewActionFailure(fsm.StageEnter, 2, nil, errors.New("boom")))
	})
}
