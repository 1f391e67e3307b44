package events

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tosca-iot/tosca-go/pkg/broker"
	"github.com/tosca-iot/tosca-go/pkg/connection"
	"github.com/tosca-iot/tosca-go/pkg/value"
)

// memBroker is an in-memory broker implementing Broker and Publishing.
type memBroker struct {
	mu           sync.Mutex
	connected    bool
	publishErr   error
	subs         map[string]broker.MessageHandler
	listeners    map[int]func(error)
	nextListener int
	published    int
}

func newMemBroker() *memBroker {
	return &memBroker{
		connected: true,
		subs:      make(map[string]broker.MessageHandler),
		listeners: make(map[int]func(error)),
	}
}

func (m *memBroker) Topics() broker.Topics { return broker.Topics{} }
func (m *memBroker) QoS() byte             { return 1 }

func (m *memBroker) Subscribe(ctx context.Context, topic string, qos byte, h broker.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return broker.ErrNotConnected
	}
	m.subs[topic] = h
	return nil
}

func (m *memBroker) Unsubscribe(ctx context.Context, topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, topic)
	return nil
}

func (m *memBroker) NotifyDisconnect(fn func(error)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

func (m *memBroker) Publish(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	if m.publishErr != nil {
		err := m.publishErr
		m.publishErr = nil
		m.mu.Unlock()
		return err
	}
	m.published++
	m.mu.Unlock()
	m.deliver(topic, payload)
	return nil
}

func (m *memBroker) deliver(topic string, payload []byte) {
	m.mu.Lock()
	var handlers []broker.MessageHandler
	for pattern, h := range m.subs {
		if matches(pattern, topic) {
			handlers = append(handlers, h)
		}
	}
	m.mu.Unlock()
	for _, h := range handlers {
		_ = h(topic, payload)
	}
}

func (m *memBroker) disconnect(err error) {
	m.mu.Lock()
	m.connected = false
	fns := make([]func(error), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

func (m *memBroker) counts() (subs, listeners, published int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs), len(m.listeners), m.published
}

func matches(pattern, topic string) bool {
	p := strings.Split(pattern, "/")
	t := strings.Split(topic, "/")
	if len(p) != len(t) {
		return false
	}
	for i := range p {
		if p[i] != "+" && p[i] != t[i] {
			return false
		}
	}
	return true
}

func encode(t *testing.T, ev Event) []byte {
	t.Helper()
	data, err := ev.Encode()
	require.NoError(t, err)
	return data
}

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.C():
		require.True(t, ok, "subscription closed early: %v", sub.Err())
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func waitClosed(t *testing.T, sub *Subscription) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.C():
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("subscription channel not closed")
		}
	}
}

func TestEventEncodeDecode(t *testing.T) {
	ev := Event{
		Device:    "abc",
		Epoch:     7,
		Seq:       42,
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Name:      "temperature",
		Payload:   value.Float(21.5),
	}
	got, err := Decode(encode(t, ev))
	require.NoError(t, err)
	assert.Equal(t, ev.Device, got.Device)
	assert.Equal(t, ev.Seq, got.Seq)
	assert.Equal(t, ev.Epoch, got.Epoch)
	assert.True(t, ev.Timestamp.Equal(got.Timestamp))
	assert.True(t, ev.Payload.Equal(got.Payload))

	_, err = Decode([]byte{0xff})
	assert.ErrorIs(t, err, ErrInvalidEvent)

	_, err = Event{Name: "x", Payload: value.Int(1)}.Encode()
	assert.ErrorIs(t, err, ErrInvalidEvent)
	_, err = Event{Device: "abc", Name: "x"}.Encode()
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestEventAfter(t *testing.T) {
	base := Event{Epoch: 10, Seq: 5}
	assert.True(t, Event{Epoch: 10, Seq: 6}.After(base))
	assert.False(t, Event{Epoch: 10, Seq: 5}.After(base))
	assert.False(t, Event{Epoch: 10, Seq: 4}.After(base))
	assert.True(t, Event{Epoch: 11, Seq: 1}.After(base))
	assert.False(t, Event{Epoch: 9, Seq: 100}.After(base))
}

func TestPublishSubscribe(t *testing.T) {
	mb := newMemBroker()
	sub, err := NewSubscriber(mb).Subscribe(context.Background(), "abc")
	require.NoError(t, err)
	defer sub.Close()

	pub := NewPublisher(mb, "abc")
	for i := 1; i <= 3; i++ {
		_, err := pub.Publish(context.Background(), "count", value.Int(int64(i)))
		require.NoError(t, err)
	}

	for i := 1; i <= 3; i++ {
		ev := receive(t, sub)
		assert.Equal(t, uint64(i), ev.Seq)
		assert.Equal(t, "count", ev.Name)
		n, ok := ev.Payload.Int()
		assert.True(t, ok)
		assert.Equal(t, int64(i), n)
	}
}

func TestSubscriptionIgnoresOtherDevices(t *testing.T) {
	mb := newMemBroker()
	sub, err := NewSubscriber(mb).Subscribe(context.Background(), "abc")
	require.NoError(t, err)
	defer sub.Close()

	_, err = NewPublisher(mb, "other").Publish(context.Background(), "x", value.Bool(true))
	require.NoError(t, err)
	_, err = NewPublisher(mb, "abc").Publish(context.Background(), "x", value.Bool(false))
	require.NoError(t, err)

	ev := receive(t, sub)
	assert.Equal(t, "abc", ev.Device)
}

func TestSubscriptionDropsStaleEvents(t *testing.T) {
	mb := newMemBroker()
	sub, err := NewSubscriber(mb).Subscribe(context.Background(), "abc")
	require.NoError(t, err)
	defer sub.Close()

	topic := broker.Topics{}.Event("abc", "level")
	send := func(epoch int64, seq uint64) {
		mb.deliver(topic, encode(t, Event{Device: "abc", Epoch: epoch, Seq: seq, Name: "level", Payload: value.Int(int64(seq))}))
	}

	go func() {
		send(1, 1)
		send(1, 3)
		send(1, 2) // stale
		send(1, 3) // duplicate
		send(1, 4)
		send(2, 1) // publisher restarted
	}()

	want := []struct {
		epoch int64
		seq   uint64
	}{{1, 1}, {1, 3}, {1, 4}, {2, 1}}
	for _, w := range want {
		ev := receive(t, sub)
		assert.Equal(t, w.epoch, ev.Epoch)
		assert.Equal(t, w.seq, ev.Seq)
	}
}

func TestSubscriptionEndsOnBrokerDisconnect(t *testing.T) {
	mb := newMemBroker()
	sub, err := NewSubscriber(mb).Subscribe(context.Background(), "abc")
	require.NoError(t, err)

	_, err = NewPublisher(mb, "abc").Publish(context.Background(), "x", value.Int(1))
	require.NoError(t, err)
	receive(t, sub)

	mb.disconnect(errors.New("EOF"))

	waitClosed(t, sub)
	assert.ErrorIs(t, sub.Err(), ErrBrokerDisconnected)
	assert.Eventually(t, func() bool {
		_, listeners, _ := mb.counts()
		return listeners == 0
	}, time.Second, 10*time.Millisecond)
}

func TestSubscriptionCancel(t *testing.T) {
	mb := newMemBroker()
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := NewSubscriber(mb).Subscribe(ctx, "abc")
	require.NoError(t, err)

	cancel()

	waitClosed(t, sub)
	assert.ErrorIs(t, sub.Err(), context.Canceled)
	assert.Eventually(t, func() bool {
		subs, listeners, _ := mb.counts()
		return subs == 0 && listeners == 0
	}, time.Second, 10*time.Millisecond)
}

func TestSubscriptionClose(t *testing.T) {
	mb := newMemBroker()
	sub, err := NewSubscriber(mb).Subscribe(context.Background(), "abc")
	require.NoError(t, err)
	assert.NoError(t, sub.Err())

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	waitClosed(t, sub)
	assert.ErrorIs(t, sub.Err(), ErrSubscriptionClosed)
	assert.Eventually(t, func() bool {
		subs, _, _ := mb.counts()
		return subs == 0
	}, time.Second, 10*time.Millisecond)
}

func TestSubscribeWhileDisconnected(t *testing.T) {
	mb := newMemBroker()
	mb.connected = false

	_, err := NewSubscriber(mb).Subscribe(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrBrokerDisconnected)

	_, listeners, _ := mb.counts()
	assert.Zero(t, listeners)

	_, err = NewSubscriber(newMemBroker()).Subscribe(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestRunPeriodicRetriesFailedPublish(t *testing.T) {
	mb := newMemBroker()
	mb.publishErr = errors.New("broker busy")

	pub := NewPublisher(mb, "abc", WithRetryBackoff(connection.BackoffConfig{Initial: time.Millisecond, Max: time.Millisecond}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- pub.RunPeriodic(ctx, "temperature", MinInterval, func(context.Context) (value.Value, error) {
			return value.Float(20), nil
		})
	}()

	assert.Eventually(t, func() bool {
		_, _, published := mb.counts()
		return published >= 2
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("RunPeriodic did not stop")
	}
}

func TestRunOnChangePublishesChangesOnly(t *testing.T) {
	mb := newMemBroker()
	pub := NewPublisher(mb, "abc")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	values := []int64{1, 1, 2, 2, 3, 3}
	i := 0
	err := pub.RunOnChange(ctx, "switch", MinInterval, func(context.Context) (value.Value, error) {
		v := values[i]
		i++
		if i == len(values) {
			cancel()
		}
		return value.Int(v), nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	_, _, published := mb.counts()
	assert.Equal(t, 3, published)
}

func TestRunIntervalValidation(t *testing.T) {
	pub := NewPublisher(newMemBroker(), "abc")
	read := func(context.Context) (value.Value, error) { return value.Int(0), nil }

	assert.ErrorIs(t, pub.RunPeriodic(context.Background(), "x", time.Millisecond, read), ErrInvalidInterval)
	assert.ErrorIs(t, pub.RunOnChange(context.Background(), "x", 0, read), ErrInvalidInterval)
}
