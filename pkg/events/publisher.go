package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tosca-iot/tosca-go/pkg/broker"
	"github.com/tosca-iot/tosca-go/pkg/connection"
	"github.com/tosca-iot/tosca-go/pkg/value"
)

// Publishing is the part of the broker client a Publisher needs.
// *broker.Client implements it.
type Publishing interface {
	Publish(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error
	Topics() broker.Topics
	QoS() byte
}

// ReadFunc samples a sensor.
type ReadFunc func(ctx context.Context) (value.Value, error)

// Publisher sends the events of one device. It is safe for concurrent use.
type Publisher struct {
	broker  Publishing
	device  string
	epoch   int64
	now     func() time.Time
	logger  *slog.Logger
	backoff connection.BackoffConfig

	mu  sync.Mutex
	seq uint64
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithPublisherLogger sets the operational logger.
func WithPublisherLogger(l *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithRetryBackoff sets the backoff used by the run loops after a failed publish.
func WithRetryBackoff(cfg connection.BackoffConfig) PublisherOption {
	return func(p *Publisher) {
		p.backoff = cfg
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) PublisherOption {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPublisher creates a publisher for device. The epoch is taken from the
// clock at creation.
func NewPublisher(b Publishing, device string, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		broker: b,
		device: device,
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
		backoff: connection.BackoffConfig{
			Initial: time.Second,
			Max:     30 * time.Second,
			Jitter:  connection.JitterFactor,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.epoch = p.now().UnixNano()
	return p
}

// Device returns the publishing device identity.
func (p *Publisher) Device() string {
	return p.device
}

// Publish stamps and sends one event. A failed send still consumes its
// sequence number.
func (p *Publisher) Publish(ctx context.Context, name string, v value.Value) (Event, error) {
	p.mu.Lock()
	p.seq++
	ev := Event{
		Device:    p.device,
		Epoch:     p.epoch,
		Seq:       p.seq,
		Timestamp: p.now().UTC(),
		Name:      name,
		Payload:   v,
	}
	p.mu.Unlock()

	data, err := ev.Encode()
	if err != nil {
		return Event{}, err
	}
	topic := p.broker.Topics().Event(p.device, name)
	if err := p.broker.Publish(ctx, topic, data, p.broker.QoS(), false); err != nil {
		return Event{}, fmt.Errorf("publish %s: %w", name, err)
	}
	return ev, nil
}

// RunPeriodic publishes read() every interval until ctx ends. Failed reads
// or publishes are logged and retried with backoff before the next tick.
func (p *Publisher) RunPeriodic(ctx context.Context, name string, interval time.Duration, read ReadFunc) error {
	if interval < MinInterval {
		return fmt.Errorf("%w: %v < %v", ErrInvalidInterval, interval, MinInterval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := p.publishOnce(ctx, name, read, nil); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnChange polls read() every poll interval and publishes only when the
// value differs from the last published one.
func (p *Publisher) RunOnChange(ctx context.Context, name string, poll time.Duration, read ReadFunc) error {
	if poll < MinInterval {
		return fmt.Errorf("%w: %v < %v", ErrInvalidInterval, poll, MinInterval)
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var last value.Value
	changed := func(v value.Value) bool {
		if last.IsValid() && last.Equal(v) {
			return false
		}
		last = v
		return true
	}

	for {
		if err := p.publishOnce(ctx, name, read, changed); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// publishOnce reads and publishes with retries. It only returns an error
// when ctx ends. filter, if set, may skip the publish.
func (p *Publisher) publishOnce(ctx context.Context, name string, read ReadFunc, filter func(value.Value) bool) error {
	b := connection.NewBackoffWithConfig(p.backoff)
	accepted := false
	retryable := func(err error) bool { return !errors.Is(err, ErrInvalidEvent) }

	err := connection.Retry(ctx, b, retryable, func(ctx context.Context) error {
		v, err := read(ctx)
		if err != nil {
			p.logger.Warn("event read failed", "event", name, "error", err)
			return err
		}
		if filter != nil && !accepted && !filter(v) {
			return nil
		}
		// Retries after this point only repeat the send.
		accepted = true
		if _, err := p.Publish(ctx, name, v); err != nil {
			p.logger.Warn("event publish failed", "event", name, "error", err, "attempt", b.Attempts()+1)
			return err
		}
		return nil
	})
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, ErrInvalidEvent):
		p.logger.Error("dropping invalid event", "event", name, "error", err)
		return nil
	}
	return err
}
