package controller

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/tosca-iot/tosca-go/pkg/connection"
	"github.com/tosca-iot/tosca-go/pkg/descriptor"
	"github.com/tosca-iot/tosca-go/pkg/discovery"
	"github.com/tosca-iot/tosca-go/pkg/events"
	"github.com/tosca-iot/tosca-go/pkg/persistence"
	"github.com/tosca-iot/tosca-go/pkg/policy"
	"github.com/tosca-iot/tosca-go/pkg/wire"
)

// Defaults.
const (
	DefaultDiscoveryTimeout = 2 * time.Second
	DefaultFetchConcurrency = 8
)

// Browser finds devices on the network. *discovery.Browser implements it.
type Browser interface {
	Browse(ctx context.Context, timeout time.Duration) (*discovery.Round, error)
}

// Client talks to devices. *transport.Client implements it.
type Client interface {
	discovery.DocumentFetcher
	Do(ctx context.Context, baseURL, mainRoute string, req *wire.Request) (*wire.Response, error)
}

// Subscriber opens event subscriptions. *events.Subscriber implements it.
type Subscriber interface {
	Subscribe(ctx context.Context, device string) (*events.Subscription, error)
}

// Recorder persists events. *history.Recorder implements it.
type Recorder interface {
	Record(ev events.Event) error
}

// Config configures a Controller.
type Config struct {
	// Policy is the initial policy. It must name a default action unless
	// every hazard category has a catch-all rule.
	Policy policy.Policy

	// DiscoveryTimeout bounds one discovery round.
	DiscoveryTimeout time.Duration

	// FetchConcurrency bounds the descriptor fetches of one round.
	FetchConcurrency int
}

// Device is a known device.
type Device struct {
	Identity string
	Name     string
	Kind     descriptor.DeviceKind

	// URL is the base URL requests are sent to.
	URL string

	Handle   discovery.DeviceHandle
	Document *descriptor.Document

	// Changed is set when the last discovery round found a new or
	// different descriptor.
	Changed bool

	LastSeen time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithSubscriber enables Watch.
func WithSubscriber(s Subscriber) Option {
	return func(c *Controller) {
		c.subscriber = s
	}
}

// WithCache stores fetched descriptors so changes can be reported.
func WithCache(cache *persistence.Cache) Option {
	return func(c *Controller) {
		c.cache = cache
	}
}

// WithRecorder records every watched event.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// WithWatchBackoff sets the re-subscribe backoff of Watch.
func WithWatchBackoff(cfg connection.BackoffConfig) Option {
	return func(c *Controller) {
		c.watchBackoff = cfg
	}
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// Controller discovers devices and sends them policy-checked requests.
type Controller struct {
	browser    Browser
	client     Client
	policy     *policy.Store
	subscriber Subscriber
	cache      *persistence.Cache
	recorder   Recorder

	timeout      time.Duration
	concurrency  int
	watchBackoff connection.BackoffConfig
	logger       *slog.Logger
	now          func() time.Time

	mu      sync.RWMutex
	devices map[string]*Device
	queues  map[string]*queue
}

// New creates a controller. The policy of cfg is validated.
func New(cfg Config, browser Browser, client Client, opts ...Option) (*Controller, error) {
	store, err := policy.NewStore(cfg.Policy)
	if err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}

	c := &Controller{
		browser:     browser,
		client:      client,
		policy:      store,
		timeout:     cfg.DiscoveryTimeout,
		concurrency: cfg.FetchConcurrency,
		watchBackoff: connection.BackoffConfig{
			Initial:    500 * time.Millisecond,
			Max:        30 * time.Second,
			Multiplier: 2,
			Jitter:     connection.JitterFactor,
		},
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
		devices: make(map[string]*Device),
		queues:  make(map[string]*queue),
	}
	if c.timeout <= 0 {
		c.timeout = DefaultDiscoveryTimeout
	}
	if c.concurrency <= 0 {
		c.concurrency = DefaultFetchConcurrency
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Devices returns a copy of every known device, ordered by identity.
func (c *Controller) Devices() []Device {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Device, 0, len(c.devices))
	for _, d := range c.devices {
		out = append(out, *d)
	}
	slices.SortFunc(out, func(a, b Device) int { return strings.Compare(a.Identity, b.Identity) })
	return out
}

// Device returns a copy of one known device.
func (c *Controller) Device(id string) (Device, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.devices[id]
	if !ok {
		return Device{}, fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	return *d, nil
}

// Forget removes a device and its cache entry.
func (c *Controller) Forget(ctx context.Context, id string) error {
	c.mu.Lock()
	_, ok := c.devices[id]
	delete(c.devices, id)
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	if c.cache != nil {
		return c.cache.Delete(ctx, id)
	}
	return nil
}

// SetPolicy replaces the active policy as a whole. In-flight evaluations
// finish against the old policy.
func (c *Controller) SetPolicy(p policy.Policy) error {
	if err := c.policy.Replace(p); err != nil {
		return err
	}
	c.logger.Info("policy replaced", "rules", len(p.Rules), "blocked", len(p.Blocked))
	return nil
}

// Policy returns a copy of the active policy.
func (c *Controller) Policy() policy.Policy {
	return c.policy.Load()
}

func (c *Controller) queueFor(id string) *queue {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.queues[id]
	if !ok {
		q = &queue{}
		c.queues[id] = q
	}
	return q
}
