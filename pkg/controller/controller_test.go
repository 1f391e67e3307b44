package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tosca-iot/tosca-go/pkg/broker"
	"github.com/tosca-iot/tosca-go/pkg/connection"
	"github.com/tosca-iot/tosca-go/pkg/descriptor"
	"github.com/tosca-iot/tosca-go/pkg/discovery"
	"github.com/tosca-iot/tosca-go/pkg/events"
	"github.com/tosca-iot/tosca-go/pkg/hazard"
	"github.com/tosca-iot/tosca-go/pkg/persistence"
	"github.com/tosca-iot/tosca-go/pkg/policy"
	"github.com/tosca-iot/tosca-go/pkg/route"
	"github.com/tosca-iot/tosca-go/pkg/value"
	"github.com/tosca-iot/tosca-go/pkg/wire"
)

func noop() route.Handler {
	return route.OkHandler(func(context.Context, route.Params) error { return nil })
}

// lampWireForm returns the descriptor wire form of a light.
func lampWireForm(t *testing.T, identity string, extra ...string) []byte {
	t.Helper()
	reg := route.NewRegistry()
	_, err := reg.Register("/on", wire.MethodPut, nil,
		hazard.MustOf(hazard.FireHazard, hazard.ElectricEnergyConsumption), noop())
	require.NoError(t, err)
	_, err = reg.Register("/off", wire.MethodPut, nil, hazard.Set{}, noop())
	require.NoError(t, err)
	_, err = reg.Register("/brightness", wire.MethodPut,
		route.Schema{route.FloatParam("level", 0.5).Range(0, 1)}, hazard.Set{}, noop())
	require.NoError(t, err)
	for _, p := range extra {
		_, err = reg.Register(p, wire.MethodGet, nil, hazard.Set{}, noop())
		require.NoError(t, err)
	}
	desc := descriptor.Seal(reg, descriptor.Metadata{
		Name:      identity,
		Identity:  identity,
		Kind:      descriptor.KindLight,
		MainRoute: "/light",
		Events:    []descriptor.EventDescription{{Name: "power", Kind: value.KindFloat}},
	})
	return desc.WireForm()
}

func handle(instance, addr string) discovery.DeviceHandle {
	return discovery.DeviceHandle{Instance: instance, Port: 3000, Addresses: []string{addr}}
}

type fakeBrowser struct {
	mu      sync.Mutex
	handles []discovery.DeviceHandle
	err     error
}

func (b *fakeBrowser) Browse(context.Context, time.Duration) (*discovery.Round, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan discovery.DeviceHandle, len(b.handles))
	for _, h := range b.handles {
		ch <- h
	}
	close(ch)
	err := b.err
	return discovery.NewRound(ch, func() error { return err }), nil
}

type call struct {
	baseURL   string
	mainRoute string
	req       wire.Request
}

type fakeClient struct {
	mu    sync.Mutex
	docs  map[string][]byte
	calls []call
	do    func(ctx context.Context, baseURL string, req *wire.Request) (*wire.Response, error)
}

func (c *fakeClient) FetchDocument(_ context.Context, url string) (*descriptor.Document, error) {
	c.mu.Lock()
	data, ok := c.docs[url]
	c.mu.Unlock()
	if !ok {
		return nil, errors.New("connection refused")
	}
	return descriptor.Decode(data)
}

func (c *fakeClient) Do(ctx context.Context, baseURL, mainRoute string, req *wire.Request) (*wire.Response, error) {
	c.mu.Lock()
	c.calls = append(c.calls, call{baseURL: baseURL, mainRoute: mainRoute, req: *req})
	do := c.do
	c.mu.Unlock()
	if do != nil {
		return do(ctx, baseURL, req)
	}
	return &wire.Response{ID: req.ID, Kind: wire.ResponseOk, Status: wire.StatusSuccess}, nil
}

func (c *fakeClient) Calls() []call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]call(nil), c.calls...)
}

func allowAll() policy.Policy {
	return policy.Policy{}.WithDefault(policy.Allow)
}

// newLampController returns a controller that knows lamp-1 at 10.0.0.2.
func newLampController(t *testing.T, p policy.Policy, opts ...Option) (*Controller, *fakeClient) {
	t.Helper()
	client := &fakeClient{docs: map[string][]byte{
		"http://10.0.0.2:3000/": lampWireForm(t, "lamp-1"),
	}}
	browser := &fakeBrowser{handles: []discovery.DeviceHandle{handle("lamp", "10.0.0.2")}}
	c, err := New(Config{Policy: p}, browser, client, opts...)
	require.NoError(t, err)
	_, err = c.Discover(context.Background())
	require.NoError(t, err)
	return c, client
}

func TestDiscoverReportsBrowseFailure(t *testing.T) {
	client := &fakeClient{docs: map[string][]byte{
		"http://10.0.0.2:3000/": lampWireForm(t, "lamp-1"),
	}}
	browser := &fakeBrowser{
		handles: []discovery.DeviceHandle{handle("lamp", "10.0.0.2")},
		err:     discovery.ErrBrowseFailed,
	}
	c, err := New(Config{Policy: allowAll()}, browser, client)
	require.NoError(t, err)

	found, err := c.Discover(context.Background())
	assert.ErrorIs(t, err, discovery.ErrBrowseFailed)
	require.Len(t, found, 1, "devices seen before the failure are kept")
	assert.Equal(t, "lamp-1", found[0].Identity)
}

func TestDiscoverWithFailingMDNS(t *testing.T) {
	browser := discovery.NewBrowser(discovery.WithBrowseFunc(
		func(context.Context, discovery.BrowseRequest, chan<- discovery.ServiceEntry) error {
			return errors.New("no multicast interface")
		}))
	c, err := New(Config{Policy: allowAll(), DiscoveryTimeout: time.Second}, browser, &fakeClient{})
	require.NoError(t, err)

	found, err := c.Discover(context.Background())
	assert.ErrorIs(t, err, discovery.ErrBrowseFailed)
	assert.Empty(t, found)
}

func TestNewRejectsInvalidPolicy(t *testing.T) {
	bad := policy.Policy{Rules: []policy.Rule{{Category: hazard.Safety, Action: 9}}}
	_, err := New(Config{Policy: bad}, &fakeBrowser{}, &fakeClient{})
	assert.ErrorIs(t, err, policy.ErrInvalidAction)
}

func TestDiscover(t *testing.T) {
	var doc descriptor.Document
	require.NoError(t, wire.Unmarshal(lampWireForm(t, "lamp-2"), &doc))
	doc.ProtocolVersion = "2.0"
	future, err := wire.Marshal(&doc)
	require.NoError(t, err)

	client := &fakeClient{docs: map[string][]byte{
		"http://10.0.0.2:3000/": lampWireForm(t, "lamp-1"),
		"http://10.0.0.3:3000/": future,
	}}
	browser := &fakeBrowser{handles: []discovery.DeviceHandle{
		handle("lamp", "10.0.0.2"),
		handle("future", "10.0.0.3"),
		handle("gone", "10.0.0.4"),
	}}
	c, err := New(Config{Policy: allowAll()}, browser, client)
	require.NoError(t, err)

	found, err := c.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "lamp-1", found[0].Identity)
	assert.Equal(t, "http://10.0.0.2:3000", found[0].URL)
	assert.Equal(t, descriptor.KindLight, found[0].Kind)
	assert.True(t, found[0].Changed)

	found, err = c.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.False(t, found[0].Changed, "same descriptor twice")

	client.mu.Lock()
	client.docs["http://10.0.0.2:3000/"] = lampWireForm(t, "lamp-1", "/status")
	client.mu.Unlock()

	found, err = c.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.True(t, found[0].Changed)

	assert.Len(t, c.Devices(), 1)
	d, err := c.Device("lamp-1")
	require.NoError(t, err)
	_, ok := d.Document.Route("/status", wire.MethodGet)
	assert.True(t, ok)

	_, err = c.Device("lamp-2")
	assert.ErrorIs(t, err, ErrUnknownDevice)
}

func TestDiscoverWithCache(t *testing.T) {
	cache, err := persistence.Open(persistence.Config{Path: ":memory:"})
	require.NoError(t, err)
	defer cache.Close()

	c, _ := newLampController(t, allowAll(), WithCache(cache))
	d, err := c.Device("lamp-1")
	require.NoError(t, err)
	assert.True(t, d.Changed)

	// A restarted controller starts from the cache.
	restarted, client := func() (*Controller, *fakeClient) {
		client := &fakeClient{docs: map[string][]byte{"http://10.0.0.2:3000/": lampWireForm(t, "lamp-1")}}
		c, err := New(Config{Policy: allowAll()}, &fakeBrowser{handles: []discovery.DeviceHandle{handle("lamp", "10.0.0.2")}}, client, WithCache(cache))
		require.NoError(t, err)
		return c, client
	}()
	n, err := restarted.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = restarted.Send(context.Background(), "lamp-1", wire.MethodPut, "/off", nil)
	require.NoError(t, err)
	require.Len(t, client.Calls(), 1)
	assert.Equal(t, "http://10.0.0.2:3000", client.Calls()[0].baseURL)

	found, err := restarted.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.False(t, found[0].Changed)

	require.NoError(t, restarted.Forget(context.Background(), "lamp-1"))
	_, err = cache.Get(context.Background(), "lamp-1")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	assert.ErrorIs(t, restarted.Forget(context.Background(), "lamp-1"), ErrUnknownDevice)
}

func TestSend(t *testing.T) {
	c, client := newLampController(t, allowAll())

	resp, err := c.Send(context.Background(), "lamp-1", wire.MethodPut, "/brightness",
		route.Params{"level": value.Float(0.8)})
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())

	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "http://10.0.0.2:3000", calls[0].baseURL)
	assert.Equal(t, "/light", calls[0].mainRoute)
	assert.Equal(t, wire.MethodPut, calls[0].req.Method)
	assert.Equal(t, "/brightness", calls[0].req.Path)
	assert.True(t, value.Float(0.8).Equal(calls[0].req.Params["level"]))
}

func TestSendDefaults(t *testing.T) {
	c, client := newLampController(t, allowAll())

	_, err := c.SendDefaults(context.Background(), "lamp-1", wire.MethodPut, "/brightness")
	require.NoError(t, err)

	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.True(t, value.Float(0.5).Equal(calls[0].req.Params["level"]))
}

func TestSendUnknownTargets(t *testing.T) {
	c, client := newLampController(t, allowAll())

	_, err := c.Send(context.Background(), "nope", wire.MethodPut, "/on", nil)
	assert.ErrorIs(t, err, ErrUnknownDevice)

	_, err = c.Send(context.Background(), "lamp-1", wire.MethodGet, "/on", nil)
	assert.ErrorIs(t, err, ErrUnknownRoute)

	assert.Empty(t, client.Calls())
}

func TestSendPolicy(t *testing.T) {
	block := policy.Block
	tests := []struct {
		name    string
		policy  policy.Policy
		want    error
		hazards []hazard.ID
	}{
		{
			name:   "allowed",
			policy: allowAll(),
		},
		{
			name: "category rule",
			policy: policy.Policy{Rules: []policy.Rule{
				{Category: hazard.Safety, Threshold: 5, Action: policy.Block},
			}}.WithDefault(policy.Allow),
			want:    ErrBlocked,
			hazards: []hazard.ID{hazard.FireHazard},
		},
		{
			name:    "global block list",
			policy:  policy.Policy{Blocked: []hazard.ID{hazard.ElectricEnergyConsumption}}.WithDefault(policy.Allow),
			want:    ErrBlocked,
			hazards: []hazard.ID{hazard.ElectricEnergyConsumption},
		},
		{
			name:    "device block list",
			policy:  policy.Policy{Devices: map[string][]hazard.ID{"lamp-1": {hazard.FireHazard}}}.WithDefault(policy.Allow),
			want:    ErrBlocked,
			hazards: []hazard.ID{hazard.FireHazard},
		},
		{
			name:   "other device block list",
			policy: policy.Policy{Devices: map[string][]hazard.ID{"lamp-9": {hazard.FireHazard}}}.WithDefault(policy.Allow),
		},
		{
			name:    "default block",
			policy:  policy.Policy{Default: &block},
			want:    ErrBlocked,
			hazards: []hazard.ID{hazard.FireHazard, hazard.ElectricEnergyConsumption},
		},
		{
			name:   "no default",
			policy: policy.Policy{},
			want:   policy.ErrNoDefault,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, client := newLampController(t, tt.policy)

			_, err := c.Send(context.Background(), "lamp-1", wire.MethodPut, "/on", nil)
			if tt.want == nil {
				require.NoError(t, err)
				assert.Len(t, client.Calls(), 1)
				return
			}
			require.ErrorIs(t, err, tt.want)
			assert.Empty(t, client.Calls(), "refused requests are never sent")

			var blocked *BlockedError
			if errors.As(err, &blocked) {
				assert.Equal(t, "lamp-1", blocked.Device)
				assert.Equal(t, route.Key{Path: "/on", Method: wire.MethodPut}, blocked.Route)
				var ids []hazard.ID
				for _, h := range blocked.Hazards {
					ids = append(ids, h.ID)
				}
				assert.ElementsMatch(t, tt.hazards, ids)
			}
		})
	}
}

func TestSendWithoutHazardsIgnoresMissingDefault(t *testing.T) {
	c, client := newLampController(t, policy.Policy{})

	_, err := c.Send(context.Background(), "lamp-1", wire.MethodPut, "/off", nil)
	require.NoError(t, err)
	assert.Len(t, client.Calls(), 1)
	assert.NoError(t, c.Allowed("lamp-1", wire.MethodPut, "/off"))
	assert.ErrorIs(t, c.Allowed("lamp-1", wire.MethodPut, "/on"), policy.ErrNoDefault)
}

func TestSetPolicy(t *testing.T) {
	c, client := newLampController(t, allowAll())

	require.NoError(t, c.SetPolicy(policy.Policy{Blocked: []hazard.ID{hazard.FireHazard}}.WithDefault(policy.Allow)))
	_, err := c.Send(context.Background(), "lamp-1", wire.MethodPut, "/on", nil)
	assert.ErrorIs(t, err, ErrBlocked)

	bad := policy.Policy{Rules: []policy.Rule{{Category: hazard.Safety, Action: 0}}}
	assert.Error(t, c.SetPolicy(bad))
	assert.Equal(t, []hazard.ID{hazard.FireHazard}, c.Policy().Blocked, "rejected policy leaves the old one active")

	require.NoError(t, c.SetPolicy(allowAll()))
	_, err = c.Send(context.Background(), "lamp-1", wire.MethodPut, "/on", nil)
	require.NoError(t, err)
	assert.Len(t, client.Calls(), 1)
}

func TestSendFailureStatus(t *testing.T) {
	c, client := newLampController(t, allowAll())
	client.do = func(_ context.Context, _ string, req *wire.Request) (*wire.Response, error) {
		return &wire.Response{ID: req.ID, Status: wire.StatusHandlerFailure, Code: 7, Message: "bulb broken"}, nil
	}

	resp, err := c.Send(context.Background(), "lamp-1", wire.MethodPut, "/off", nil)
	require.NotNil(t, resp)
	var se *wire.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, wire.StatusHandlerFailure, se.Status)
	assert.EqualValues(t, 7, se.Code)
}

func TestSendTransportError(t *testing.T) {
	c, client := newLampController(t, allowAll())
	client.do = func(context.Context, string, *wire.Request) (*wire.Response, error) {
		return nil, errors.New("connection reset")
	}

	_, err := c.Send(context.Background(), "lamp-1", wire.MethodPut, "/off", nil)
	assert.ErrorContains(t, err, "connection reset")
}

func TestSendDevicesProceedConcurrently(t *testing.T) {
	client := &fakeClient{docs: map[string][]byte{
		"http://10.0.0.2:3000/": lampWireForm(t, "lamp-1"),
		"http://10.0.0.3:3000/": lampWireForm(t, "lamp-2"),
	}}
	browser := &fakeBrowser{handles: []discovery.DeviceHandle{handle("a", "10.0.0.2"), handle("b", "10.0.0.3")}}
	c, err := New(Config{Policy: allowAll()}, browser, client)
	require.NoError(t, err)
	_, err = c.Discover(context.Background())
	require.NoError(t, err)

	gate := make(chan struct{})
	client.do = func(ctx context.Context, baseURL string, req *wire.Request) (*wire.Response, error) {
		if baseURL == "http://10.0.0.2:3000" {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return &wire.Response{Status: wire.StatusSuccess}, nil
	}

	slow := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background(), "lamp-1", wire.MethodPut, "/off", nil)
		slow <- err
	}()
	require.Eventually(t, func() bool { return len(client.Calls()) == 1 }, time.Second, time.Millisecond)

	_, err = c.Send(context.Background(), "lamp-2", wire.MethodPut, "/off", nil)
	require.NoError(t, err, "lamp-2 is not held up by lamp-1")

	// A second lamp-1 request waits behind the first.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Send(ctx, "lamp-1", wire.MethodPut, "/off", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(gate)
	require.NoError(t, <-slow)
}

func TestQueueOrder(t *testing.T) {
	q := &queue{}
	require.NoError(t, q.acquire(context.Background()))

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	waiting := func() int {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.waiters)
	}
	for i := range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := q.acquire(context.Background()); err != nil {
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			q.release()
		}()
		require.Eventually(t, func() bool { return waiting() == i+1 }, time.Second, time.Millisecond)
	}

	q.release()
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.False(t, q.busy)
}

func TestQueueCancelledWaiter(t *testing.T) {
	q := &queue{}
	require.NoError(t, q.acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- q.acquire(ctx) }()
	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.waiters) == 1
	}, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	q.release()
	require.NoError(t, q.acquire(context.Background()), "cancelled waiter does not hold the queue")
	q.release()
}

// flakyBroker delivers events to the current subscription and can drop the
// connection.
type flakyBroker struct {
	mu         sync.Mutex
	handlers   map[string]broker.MessageHandler
	listeners  map[int]func(error)
	next       int
	subscribes int
}

func newFlakyBroker() *flakyBroker {
	return &flakyBroker{handlers: map[string]broker.MessageHandler{}, listeners: map[int]func(error){}}
}

func (b *flakyBroker) Subscribe(_ context.Context, topic string, _ byte, h broker.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = h
	b.subscribes++
	return nil
}

func (b *flakyBroker) Unsubscribe(_ context.Context, topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, topic)
	return nil
}

func (b *flakyBroker) NotifyDisconnect(fn func(error)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.listeners[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

func (b *flakyBroker) Topics() broker.Topics { return broker.Topics{} }

func (b *flakyBroker) QoS() byte { return 1 }

func (b *flakyBroker) Subscribes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribes
}

func (b *flakyBroker) disconnect() {
	b.mu.Lock()
	fns := make([]func(error), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.handlers = map[string]broker.MessageHandler{}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(errors.New("connection lost"))
	}
}

func (b *flakyBroker) publish(t *testing.T, ev events.Event) {
	t.Helper()
	data, err := ev.Encode()
	require.NoError(t, err)
	topics := broker.Topics{}
	b.mu.Lock()
	h := b.handlers[topics.DeviceEvents(ev.Device)]
	b.mu.Unlock()
	require.NotNil(t, h, "no subscription for %s", ev.Device)
	require.NoError(t, h(topics.Event(ev.Device, ev.Name), data))
}

type memRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *memRecorder) Record(ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *memRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestWatchResubscribesAfterDisconnect(t *testing.T) {
	b := newFlakyBroker()
	rec := &memRecorder{}
	c, _ := newLampController(t, allowAll(),
		WithSubscriber(events.NewSubscriber(b)),
		WithRecorder(rec),
		WithWatchBackoff(connection.BackoffConfig{Initial: time.Millisecond, Max: 5 * time.Millisecond}))

	var (
		mu  sync.Mutex
		got []float64
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, "lamp-1", func(ev events.Event) {
			f, _ := ev.Payload.Float()
			mu.Lock()
			got = append(got, f)
			mu.Unlock()
		})
	}()
	received := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(got)
	}

	require.Eventually(t, func() bool { return b.Subscribes() == 1 }, time.Second, time.Millisecond)
	b.publish(t, events.Event{Device: "lamp-1", Epoch: 1, Seq: 1, Name: "power", Payload: value.Float(10)})
	require.Eventually(t, func() bool { return received() == 1 }, time.Second, time.Millisecond)

	b.disconnect()
	require.Eventually(t, func() bool { return b.Subscribes() == 2 }, time.Second, time.Millisecond)

	b.publish(t, events.Event{Device: "lamp-1", Epoch: 1, Seq: 2, Name: "power", Payload: value.Float(12)})
	require.Eventually(t, func() bool { return received() == 2 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Watch did not return")
	}

	mu.Lock()
	assert.Equal(t, []float64{10, 12}, got)
	mu.Unlock()
	assert.Equal(t, 2, rec.Len())
}

func TestWatchPreconditions(t *testing.T) {
	c, _ := newLampController(t, allowAll())
	assert.ErrorIs(t, c.Watch(context.Background(), "lamp-1", func(events.Event) {}), ErrNoSubscriber)

	c, _ = newLampController(t, allowAll(), WithSubscriber(events.NewSubscriber(newFlakyBroker())))
	assert.ErrorIs(t, c.Watch(context.Background(), "nope", func(events.Event) {}), ErrUnknownDevice)
}
