package connection

import (
	"context"
	"sync"
	"time"
)

// State represents the supervisor state.
type State uint8

const (
	// StateIdle indicates Run has not been called.
	StateIdle State = iota

	// StateRunning indicates a session is active.
	StateRunning

	// StateWaiting indicates a backoff delay before the next session.
	StateWaiting

	// StateStopped indicates Run has returned.
	StateStopped
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateWaiting:
		return "WAITING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// SessionFunc runs one session, e.g. a subscription, until it ends.
type SessionFunc func(ctx context.Context) error

// Supervisor restarts a session with exponential backoff.
type Supervisor struct {
	backoff     *Backoff
	retryable   func(error) bool
	stableAfter time.Duration

	mu            sync.RWMutex
	state         State
	onStateChange func(oldState, newState State)
	onRetry       func(attempt int, delay time.Duration, err error)
}

// SupervisorOption configures a Supervisor.
type SupervisorOption func(*Supervisor)

// WithBackoff sets the backoff used between sessions.
func WithBackoff(b *Backoff) SupervisorOption {
	return func(s *Supervisor) {
		if b != nil {
			s.backoff = b
		}
	}
}

// WithRetryable restricts restarts to errors for which fn returns true.
func WithRetryable(fn func(error) bool) SupervisorOption {
	return func(s *Supervisor) {
		s.retryable = fn
	}
}

// WithStableAfter resets the backoff after a session that lasted at least d.
func WithStableAfter(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.stableAfter = d
	}
}

// NewSupervisor creates a supervisor with default backoff.
func NewSupervisor(opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		backoff:     NewBackoff(),
		stableAfter: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// OnStateChange sets a callback for state changes.
func (s *Supervisor) OnStateChange(fn func(oldState, newState State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStateChange = fn
}

// OnRetry sets a callback invoked before each backoff delay.
func (s *Supervisor) OnRetry(fn func(attempt int, delay time.Duration, err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRetry = fn
}

// Run calls fn until ctx ends, fn returns nil, or fn returns an error that
// is not retryable. It returns nil, that error, or ctx.Err().
func (s *Supervisor) Run(ctx context.Context, fn SessionFunc) error {
	defer s.setState(StateStopped)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.setState(StateRunning)
		started := time.Now()
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if s.retryable != nil && !s.retryable(err) {
			return err
		}
		if s.stableAfter > 0 && time.Since(started) >= s.stableAfter {
			s.backoff.Reset()
		}

		s.setState(StateWaiting)
		delay := s.backoff.Next()

		s.mu.RLock()
		onRetry := s.onRetry
		s.mu.RUnlock()
		if onRetry != nil {
			onRetry(s.backoff.Attempts(), delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	old := s.state
	s.state = state
	fn := s.onStateChange
	s.mu.Unlock()

	if fn != nil && old != state {
		fn(old, state)
	}
}
