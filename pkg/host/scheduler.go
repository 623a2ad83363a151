package host

import (
	"log/slog"
	"sync"
	"time"

	"github.com/anggasct/fsm"
)

// scheduler delivers delayed events into a runner mailbox. It stops accepting
// work and cancels pending timers when the runner stops.
type scheduler struct {
	mutex   sync.Mutex
	deliver func(event any) error
	logger  *slog.Logger
	stopped bool
	nextID  uint64
	pending map[uint64]*time.Timer
}

var _ fsm.Scheduler = (*scheduler)(nil)

func newScheduler(deliver func(event any) error, logger *slog.Logger) *scheduler {
	return &scheduler{
		deliver: deliver,
		logger:  logger,
		pending: make(map[uint64]*time.Timer),
	}
}

// Schedule arranges for event to be sent after delay. The returned function
// cancels the delivery and reports whether it was still pending.
func (s *scheduler) Schedule(delay time.Duration, event any) (func() bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.stopped {
		return nil, fsm.ErrSchedulerStopped
	}

	s.nextID++
	id := s.nextID
	s.pending[id] = time.AfterFunc(delay, func() {
		if !s.release(id) {
			return
		}
		if err := s.deliver(event); err != nil {
			s.logger.Debug("scheduled event dropped",
				slog.String("event", fsm.EventName(event)),
				slog.Any("error", err),
			)
		}
	})

	return func() bool {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		t, ok := s.pending[id]
		if !ok {
			return false
		}
		delete(s.pending, id)
		return t.Stop()
	}, nil
}

// Pending returns the number of deliveries not yet fired or cancelled
func (s *scheduler) Pending() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.pending)
}

func (s *scheduler) release(id uint64) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.pending[id]; !ok {
		return false
	}
	delete(s.pending, id)
	return !s.stopped
}

func (s *scheduler) stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
	}
}
