package harness

import (
	"context"
	"sync"
	"time"
)

// DefaultSignalTimeout bounds a single WaitFor so a malformed or deadlocked
// scenario fails instead of hanging.
const DefaultSignalTimeout = 10 * time.Second

// Signals is the set of named one-shot events shared by the workers of one run.
// A raise is remembered: waiting on an already raised signal returns at once,
// so a raise that wins the race against its wait is never lost.
type Signals struct {
	mu      sync.Mutex
	signals map[string]chan struct{}
}

// NewSignals returns an empty signal set.
func NewSignals() *Signals {
	return &Signals{signals: make(map[string]chan struct{})}
}

// channel returns the channel for name, creating it on first use.
func (s *Signals) channel(name string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.signals[name]
	if !ok {
		ch = make(chan struct{})
		s.signals[name] = ch
	}
	return ch
}

// Raise marks name as raised and releases every current and future waiter.
// Raising twice is a no-op.
func (s *Signals) Raise(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.signals[name]
	if !ok {
		ch = make(chan struct{})
		s.signals[name] = ch
	}
	select {
	case <-ch:
	default:
		close(ch)
	}
}

// Raised reports whether name has been raised.
func (s *Signals) Raised(name string) bool {
	select {
	case <-s.channel(name):
		return true
	default:
		return false
	}
}

// WaitFor blocks until name is raised, the timeout elapses or ctx is done.
// A non-positive timeout uses DefaultSignalTimeout. The timeout error is a
// *SignalTimeoutError carrying worker for diagnostics.
func (s *Signals) WaitFor(ctx context.Context, worker, name string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultSignalTimeout
	}

	ch := s.channel(name)

	select {
	case <-ch:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return &SignalTimeoutError{Worker: worker, Signal: name, Timeout: timeout}
	}
}
