// Package host runs a state machine instance on its own goroutine. Events
// are delivered through a buffered mailbox so the instance always has exactly
// one caller, and actions get a scheduler for delayed self-delivery.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/anggasct/fsm"
)

var ErrRunnerStopped = errors.New("runner stopped")

type envelope[S comparable] struct {
	id    string
	event any
	reply chan *fsm.Result[S]
	visit func()
}

// Runner owns one instance and the goroutine that feeds it
type Runner[S comparable, C, D any] struct {
	machine   *fsm.FSM[S, C, D]
	mailbox   chan envelope[S]
	done      chan struct{}
	halt      sync.Once
	wg        sync.WaitGroup
	scheduler *scheduler
	logger    *slog.Logger

	mutex      sync.RWMutex
	state      S
	terminated bool
}

// Spawn creates an instance of def, starts it and begins serving its mailbox.
// newContext receives the scheduler handle bound to this runner and returns
// the instance context. The runner stops when ctx is cancelled or Stop is
// called. A failing start is returned and no goroutine is left behind.
func Spawn[S comparable, C, D any](
	ctx context.Context,
	def *fsm.Definition[S, C, D],
	id string,
	newContext func(fsm.Scheduler) C,
	data D,
	cfg Config,
	opts ...fsm.InstanceOption[S],
) (*Runner[S, C, D], error) {
	return spawn(ctx, def, id, newContext, data, cfg, func(m *fsm.FSM[S, C, D]) error {
		return m.Start()
	}, opts)
}

// SpawnAt is like Spawn but places the instance in state with
// ReStartAndEnter instead of starting it. It hosts instances resumed from a
// stored snapshot.
func SpawnAt[S comparable, C, D any](
	ctx context.Context,
	def *fsm.Definition[S, C, D],
	id string,
	state S,
	newContext func(fsm.Scheduler) C,
	data D,
	cfg Config,
	opts ...fsm.InstanceOption[S],
) (*Runner[S, C, D], error) {
	return spawn(ctx, def, id, newContext, data, cfg, func(m *fsm.FSM[S, C, D]) error {
		return m.ReStartAndEnter(state)
	}, opts)
}

func spawn[S comparable, C, D any](
	ctx context.Context,
	def *fsm.Definition[S, C, D],
	id string,
	newContext func(fsm.Scheduler) C,
	data D,
	cfg Config,
	start func(*fsm.FSM[S, C, D]) error,
	opts []fsm.InstanceOption[S],
) (*Runner[S, C, D], error) {
	if id == "" {
		id = uuid.NewString()
	}

	r := &Runner[S, C, D]{
		mailbox: make(chan envelope[S], cfg.mailboxSize()),
		done:    make(chan struct{}),
		logger:  slog.Default().With(slog.String("component", "fsm.host"), slog.String("fsm.id", id)),
	}
	r.scheduler = newScheduler(r.Send, r.logger)

	instanceOpts := make([]fsm.InstanceOption[S], 0, len(opts)+1)
	if cfg.MaxChainDepth > 0 {
		instanceOpts = append(instanceOpts, fsm.WithMaxChainDepth[S](cfg.MaxChainDepth))
	}
	instanceOpts = append(instanceOpts, opts...)

	r.machine = def.NewInstance(id, newContext(r.scheduler), data, instanceOpts...)
	if err := start(r.machine); err != nil {
		r.scheduler.stop()
		return nil, fmt.Errorf("starting instance %s: %w", id, err)
	}
	r.publish()

	r.wg.Add(1)
	go r.loop(ctx)

	r.logger.Debug("runner started", slog.Any("state", r.machine.State()))
	return r, nil
}

func (r *Runner[S, C, D]) ID() string {
	return r.machine.ID()
}

// State returns the state the instance rested in after the last event
func (r *Runner[S, C, D]) State() S {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.state
}

// IsTerminated reports whether the instance has reached its final state
func (r *Runner[S, C, D]) IsTerminated() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.terminated
}

// Done is closed once the runner stops accepting events
func (r *Runner[S, C, D]) Done() <-chan struct{} {
	return r.done
}

// Send enqueues event without waiting for it to be processed. It blocks while
// the mailbox is full. Calling it from an action with a full mailbox
// deadlocks; use the scheduler instead.
func (r *Runner[S, C, D]) Send(event any) error {
	return r.enqueue(context.Background(), envelope[S]{id: uuid.NewString(), event: event})
}

// Ask enqueues event and waits for the result of processing it. It must not
// be called from inside an action of the same instance.
func (r *Runner[S, C, D]) Ask(ctx context.Context, event any) (*fsm.Result[S], error) {
	env := envelope[S]{
		id:    uuid.NewString(),
		event: event,
		reply: make(chan *fsm.Result[S], 1),
	}
	if err := r.enqueue(ctx, env); err != nil {
		return nil, err
	}

	select {
	case result := <-env.reply:
		return result, nil
	case <-r.done:
		return nil, ErrRunnerStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Inspect runs fn on the runner goroutine between events, so fn may read the
// instance and its data without racing with actions. fn must not retain the
// instance or deliver events to it.
func (r *Runner[S, C, D]) Inspect(ctx context.Context, fn func(m *fsm.FSM[S, C, D])) error {
	visited := make(chan struct{})
	env := envelope[S]{
		id: uuid.NewString(),
		visit: func() {
			defer close(visited)
			fn(r.machine)
		},
	}
	if err := r.enqueue(ctx, env); err != nil {
		return err
	}

	select {
	case <-visited:
		return nil
	case <-r.done:
		return ErrRunnerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels pending scheduled events, stops the goroutine and waits for
// the event in progress to finish. Events still queued are dropped.
func (r *Runner[S, C, D]) Stop() {
	r.shutdown()
	r.wg.Wait()
}

func (r *Runner[S, C, D]) shutdown() {
	r.halt.Do(func() {
		r.scheduler.stop()
		close(r.done)
	})
}

func (r *Runner[S, C, D]) enqueue(ctx context.Context, env envelope[S]) error {
	select {
	case <-r.done:
		return ErrRunnerStopped
	default:
	}

	select {
	case r.mailbox <- env:
		return nil
	case <-r.done:
		return ErrRunnerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner[S, C, D]) loop(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			r.logger.Debug("runner stopped", slog.Int("dropped", len(r.mailbox)))
			return
		case <-ctx.Done():
			r.shutdown()
		case env := <-r.mailbox:
			r.process(env)
		}
	}
}

func (r *Runner[S, C, D]) process(env envelope[S]) {
	if env.visit != nil {
		env.visit()
		return
	}

	result := r.machine.OnEvent(env.event)
	r.publish()

	r.logger.Debug("event processed",
		slog.String("envelope", env.id),
		slog.String("event", fsm.EventName(env.event)),
		slog.String("outcome", result.Outcome.String()),
	)

	if env.reply != nil {
		env.reply <- result
	}
}

func (r *Runner[S, C, D]) publish() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.state = r.machine.State()
	r.terminated = r.machine.IsTerminated()
}
