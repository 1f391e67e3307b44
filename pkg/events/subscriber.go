package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tosca-iot/tosca-go/pkg/broker"
	"github.com/tosca-iot/tosca-go/pkg/log"
)

// Broker is the part of the broker client a Subscriber needs.
// *broker.Client implements it.
type Broker interface {
	Subscribe(ctx context.Context, topic string, qos byte, handler broker.MessageHandler) error
	Unsubscribe(ctx context.Context, topic string) error
	NotifyDisconnect(fn func(error)) (cancel func())
	Topics() broker.Topics
	QoS() byte
}

const (
	defaultBuffer      = 64
	unsubscribeTimeout = 5 * time.Second
)

// Subscriber opens per-device event subscriptions.
type Subscriber struct {
	broker Broker
	buffer int
	logger *slog.Logger
	events *log.Emitter
}

// SubscriberOption configures a Subscriber.
type SubscriberOption func(*Subscriber)

// WithBuffer sets how many decoded events may wait for the consumer.
func WithBuffer(n int) SubscriberOption {
	return func(s *Subscriber) {
		if n > 0 {
			s.buffer = n
		}
	}
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) SubscriberOption {
	return func(s *Subscriber) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithProtocolLogger records subscription state changes.
func WithProtocolLogger(l log.Logger) SubscriberOption {
	return func(s *Subscriber) {
		s.events = log.NewEmitter(l, log.RoleController, "")
	}
}

// NewSubscriber creates a subscriber on b.
func NewSubscriber(b Broker, opts ...SubscriberOption) *Subscriber {
	s := &Subscriber{
		broker: b,
		buffer: defaultBuffer,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscription is a live event stream of one device.
type Subscription struct {
	device string
	topic  string
	topics broker.Topics

	in  chan Event
	out chan Event

	mu   sync.Mutex
	err  error
	done chan struct{}

	stopListening func()
	unsubscribe   func(ctx context.Context) error
	logger        *slog.Logger
	events        *log.Emitter
}

// Subscribe starts streaming the events of device. The stream runs until
// ctx is cancelled, Close is called or the broker connection is lost.
func (s *Subscriber) Subscribe(ctx context.Context, device string) (*Subscription, error) {
	if device == "" {
		return nil, fmt.Errorf("%w: empty device", ErrInvalidEvent)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	topics := s.broker.Topics()
	sub := &Subscription{
		device: device,
		topic:  topics.DeviceEvents(device),
		topics: topics,
		in:     make(chan Event, s.buffer),
		out:    make(chan Event),
		done:   make(chan struct{}),
		logger: s.logger.With("device", device),
		events: s.events,
	}

	// Listen before subscribing so a loss during the handshake is not missed.
	sub.stopListening = s.broker.NotifyDisconnect(func(err error) {
		sub.terminate(fmt.Errorf("%w: %w", ErrBrokerDisconnected, err))
	})

	if err := s.broker.Subscribe(ctx, sub.topic, s.broker.QoS(), sub.handle); err != nil {
		sub.stopListening()
		if errors.Is(err, broker.ErrNotConnected) {
			return nil, fmt.Errorf("%w: %w", ErrBrokerDisconnected, err)
		}
		return nil, err
	}
	sub.unsubscribe = func(ctx context.Context) error {
		return s.broker.Unsubscribe(ctx, sub.topic)
	}

	s.events.State(sub.topic, log.LayerTransport, log.StateEntitySubscription, "idle", "active", device)
	sub.logger.Debug("event subscription started", "topic", sub.topic)

	go sub.pump(ctx)
	go func() {
		select {
		case <-ctx.Done():
			sub.terminate(ctx.Err())
		case <-sub.done:
		}
	}()
	return sub, nil
}

// Device returns the subscribed device identity.
func (sub *Subscription) Device() string {
	return sub.device
}

// C returns the event channel. It is closed when the subscription ends.
func (sub *Subscription) C() <-chan Event {
	return sub.out
}

// Done is closed when the subscription has been terminated.
func (sub *Subscription) Done() <-chan struct{} {
	return sub.done
}

// Err returns why the subscription ended, or nil while it is running.
func (sub *Subscription) Err() error {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.err
}

// Close ends the subscription. Err then reports ErrSubscriptionClosed unless
// the subscription had already ended for another reason.
func (sub *Subscription) Close() error {
	sub.terminate(ErrSubscriptionClosed)
	return nil
}

// terminate records the first reason and signals the pump.
func (sub *Subscription) terminate(reason error) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.err != nil {
		return
	}
	sub.err = reason
	close(sub.done)
}

// handle runs on broker goroutines.
func (sub *Subscription) handle(topic string, payload []byte) error {
	device, _, ok := sub.topics.ParseEvent(topic)
	if !ok || device != sub.device {
		return fmt.Errorf("%w: unexpected topic %q", ErrInvalidEvent, topic)
	}
	ev, err := Decode(payload)
	if err != nil {
		return err
	}
	if ev.Device != sub.device {
		return fmt.Errorf("%w: event of %q on topic of %q", ErrInvalidEvent, ev.Device, sub.device)
	}

	select {
	case sub.in <- ev:
	case <-sub.done:
	}
	return nil
}

// pump orders events and is the only writer and closer of out.
func (sub *Subscription) pump(ctx context.Context) {
	defer sub.cleanup(ctx)
	defer close(sub.out)

	var last Event
	seen := false
	for {
		select {
		case ev := <-sub.in:
			if seen && !ev.After(last) {
				sub.logger.Debug("dropping stale event", "name", ev.Name, "epoch", ev.Epoch, "seq", ev.Seq)
				continue
			}
			last, seen = ev, true
			select {
			case sub.out <- ev:
			case <-sub.done:
				return
			}
		case <-sub.done:
			return
		}
	}
}

// cleanup releases the disconnect listener and the broker subscription.
func (sub *Subscription) cleanup(ctx context.Context) {
	sub.stopListening()

	reason := sub.Err()
	if !errors.Is(reason, ErrBrokerDisconnected) {
		uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unsubscribeTimeout)
		defer cancel()
		if err := sub.unsubscribe(uctx); err != nil {
			sub.logger.Debug("unsubscribe failed", "topic", sub.topic, "error", err)
		}
	}

	sub.events.State(sub.topic, log.LayerTransport, log.StateEntitySubscription, "active", "closed", reason.Error())
	sub.logger.Debug("event subscription ended", "topic", sub.topic, "reason", reason)
}
