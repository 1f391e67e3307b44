package connection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	t.Run("DefaultSequence", func(t *testing.T) {
		b := NewBackoff()

		// Expected sequence (without jitter): 1s, 2s, 4s, 8s, 16s, 32s, 60s, 60s...
		expected := []time.Duration{
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
			16 * time.Second,
			32 * time.Second,
			60 * time.Second,
			60 * time.Second, // Should stay at max
		}

		for i, exp := range expected {
			// Get the base (current) value before adding jitter
			base := b.Current()
			_ = b.Next() // Advance

			// Allow for some floating point imprecision
			if base < exp-time.Millisecond || base > exp+time.Millisecond {
				t.Errorf("Attempt %d: base = %v, want %v", i, base, exp)
			}
		}
	})

	t.Run("Jitter", func(t *testing.T) {
		b := NewBackoff()

		samples := make([]time.Duration, 20)
		for i := range samples {
			samples[i] = b.Next()
			b.Reset()
		}

		// All samples should be between 1s and 1.25s.
		for i, s := range samples {
			if s < time.Second || s > time.Duration(float64(time.Second)*1.25)+time.Millisecond {
				t.Errorf("Sample %d: %v out of expected range [1s, 1.25s]", i, s)
			}
		}

		allSame := true
		for i := 1; i < len(samples); i++ {
			if samples[i] != samples[0] {
				allSame = false
				break
			}
		}
		if allSame {
			t.Error("All jittered samples are identical - jitter may not be working")
		}
	})

	t.Run("Reset", func(t *testing.T) {
		b := NewBackoff()

		// Advance a few times
		for i := 0; i < 5; i++ {
			b.Next()
		}

		if b.Current() <= InitialBackoff {
			t.Error("Backoff should have increased")
		}

		// Reset
		b.Reset()

		if b.Current() != InitialBackoff {
			t.Errorf("Current() = %v after reset, want %v", b.Current(), InitialBackoff)
		}
		if b.Attempts() != 0 {
			t.Errorf("Attempts() = %d after reset, want 0", b.Attempts())
		}
	})

	t.Run("Attempts", func(t *testing.T) {
		b := NewBackoff()

		if b.Attempts() != 0 {
			t.Errorf("Initial Attempts() = %d, want 0", b.Attempts())
		}

		for i := 1; i <= 5; i++ {
			b.Next()
			if b.Attempts() != i {
				t.Errorf("After %d calls, Attempts() = %d", i, b.Attempts())
			}
		}
	})

	t.Run("CustomConfig", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{
			Initial:    100 * time.Millisecond,
			Max:        500 * time.Millisecond,
			Multiplier: 2.0,
			Jitter:     0, // No jitter for deterministic test
		})

		expected := []time.Duration{
			100 * time.Millisecond,
			200 * time.Millisecond,
			400 * time.Millisecond,
			500 * time.Millisecond, // Max
			500 * time.Millisecond,
		}

		for i, exp := range expected {
			got := b.Next()
			if got != exp {
				t.Errorf("Attempt %d: got %v, want %v", i, got, exp)
			}
		}
	})
}

func fastBackoff() *Backoff {
	return NewBackoffWithConfig(BackoffConfig{Initial: time.Millisecond, Max: 4 * time.Millisecond})
}

func TestBackoffWaitCancelled(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Initial: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() = %v, want context.Canceled", err)
	}
}

func TestRetry(t *testing.T) {
	t.Run("SucceedsAfterFailures", func(t *testing.T) {
		b := fastBackoff()
		calls := 0
		err := Retry(context.Background(), b, nil, func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Retry() error = %v", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
		if b.Attempts() != 0 {
			t.Errorf("Attempts() = %d after success, want 0", b.Attempts())
		}
	})

	t.Run("PermanentError", func(t *testing.T) {
		permanent := errors.New("permanent")
		calls := 0
		err := Retry(context.Background(), fastBackoff(), func(err error) bool {
			return !errors.Is(err, permanent)
		}, func(context.Context) error {
			calls++
			return permanent
		})
		if !errors.Is(err, permanent) || calls != 1 {
			t.Errorf("Retry() = %v after %d calls", err, calls)
		}
	})

	t.Run("ContextCancelled", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := Retry(ctx, fastBackoff(), nil, func(context.Context) error {
			return errors.New("down")
		})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Retry() = %v, want DeadlineExceeded", err)
		}
	})
}

func TestSupervisor(t *testing.T) {
	t.Run("RestartsRetryableSessions", func(t *testing.T) {
		s := NewSupervisor(WithBackoff(fastBackoff()))

		var retries atomic.Int32
		s.OnRetry(func(attempt int, delay time.Duration, err error) {
			retries.Add(1)
		})

		sessions := 0
		err := s.Run(context.Background(), func(context.Context) error {
			sessions++
			if sessions < 4 {
				return errors.New("disconnected")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if sessions != 4 {
			t.Errorf("sessions = %d, want 4", sessions)
		}
		if retries.Load() != 3 {
			t.Errorf("retries = %d, want 3", retries.Load())
		}
		if s.State() != StateStopped {
			t.Errorf("State() = %v, want STOPPED", s.State())
		}
	})

	t.Run("StopsOnPermanentError", func(t *testing.T) {
		permanent := errors.New("unknown device")
		s := NewSupervisor(
			WithBackoff(fastBackoff()),
			WithRetryable(func(err error) bool { return !errors.Is(err, permanent) }),
		)
		err := s.Run(context.Background(), func(context.Context) error { return permanent })
		if !errors.Is(err, permanent) {
			t.Errorf("Run() = %v, want permanent", err)
		}
	})

	t.Run("CancelDuringSession", func(t *testing.T) {
		s := NewSupervisor(WithBackoff(fastBackoff()))
		ctx, cancel := context.WithCancel(context.Background())

		var mu sync.Mutex
		var transitions []string
		s.OnStateChange(func(oldState, newState State) {
			mu.Lock()
			transitions = append(transitions, oldState.String()+"->"+newState.String())
			mu.Unlock()
		})

		started := make(chan struct{})
		done := make(chan error, 1)
		go func() {
			done <- s.Run(ctx, func(ctx context.Context) error {
				close(started)
				<-ctx.Done()
				return errors.New("session ended")
			})
		}()

		<-started
		cancel()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Run() = %v, want context.Canceled", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Run() did not return after cancel")
		}

		mu.Lock()
		defer mu.Unlock()
		want := []string{"IDLE->RUNNING", "RUNNING->STOPPED"}
		if len(transitions) != len(want) {
			t.Fatalf("transitions = %v, want %v", transitions, want)
		}
		for i := range want {
			if transitions[i] != want[i] {
				t.Errorf("transition %d = %s, want %s", i, transitions[i], want[i])
			}
		}
	})
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "IDLE"},
		{StateRunning, "RUNNING"},
		{StateWaiting, "WAITING"},
		{StateStopped, "STOPPED"},
		{State(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
