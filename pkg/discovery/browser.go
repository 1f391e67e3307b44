package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/tosca-iot/tosca-go/pkg/log"
)

// ServiceEntry is one raw answer of the mDNS layer.
type ServiceEntry struct {
	Instance string
	Host     string
	Port     int
	Text     []string
	Addrs    []net.IP
}

// BrowseRequest describes what a BrowseFunc looks for.
type BrowseRequest struct {
	Service    string
	Domain     string
	Interfaces []net.Interface
}

// BrowseFunc sends answers for req on entries until ctx ends. It must not
// close entries. The default implementation uses zeroconf.
type BrowseFunc func(ctx context.Context, req BrowseRequest, entries chan<- ServiceEntry) error

// Browser finds devices advertising the service type.
type Browser struct {
	service     string
	browse      BrowseFunc
	iface       string
	disableIPv6 bool
	excluded    []net.IP
	timeout     time.Duration
	logger      *slog.Logger
	events      *log.Emitter
}

// Option configures a Browser.
type Option func(*Browser)

// WithServiceName sets the application label, giving "_<name>._tcp".
func WithServiceName(name string) Option {
	return func(b *Browser) {
		b.service = ServiceType(name, false)
	}
}

// WithServiceType sets the full service type, e.g. "_tosca._udp".
func WithServiceType(service string) Option {
	return func(b *Browser) {
		b.service = service
	}
}

// WithTimeout sets the round timeout used when Discover gets a zero timeout.
func WithTimeout(d time.Duration) Option {
	return func(b *Browser) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithInterface restricts browsing to the named network interface.
func WithInterface(name string) Option {
	return func(b *Browser) {
		b.iface = name
	}
}

// WithoutIPv6 drops IPv6 addresses from answers.
func WithoutIPv6() Option {
	return func(b *Browser) {
		b.disableIPv6 = true
	}
}

// WithExcludedAddresses drops the given addresses from answers.
func WithExcludedAddresses(addrs ...string) Option {
	return func(b *Browser) {
		for _, a := range addrs {
			if ip := net.ParseIP(a); ip != nil {
				b.excluded = append(b.excluded, ip)
			}
		}
	}
}

// WithBrowseFunc replaces the mDNS layer.
func WithBrowseFunc(fn BrowseFunc) Option {
	return func(b *Browser) {
		if fn != nil {
			b.browse = fn
		}
	}
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Browser) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithProtocolLogger records discovery rounds as protocol state events.
func WithProtocolLogger(l log.Logger) Option {
	return func(b *Browser) {
		b.events = log.NewEmitter(l, log.RoleController, "")
	}
}

// NewBrowser creates a browser for "_tosca._tcp" in the local domain.
func NewBrowser(opts ...Option) *Browser {
	b := &Browser{
		service: ServiceType(DefaultServiceName, false),
		browse:  zeroconfBrowse,
		timeout: DefaultTimeout,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Service returns the browsed service type.
func (b *Browser) Service() string {
	return b.service
}

// Round is one discovery round in progress.
type Round struct {
	c    <-chan DeviceHandle
	wait func() error
}

// NewRound wraps a handle channel and a function that reports the round
// error once the channel is closed. Browsers other than mDNS use it.
func NewRound(c <-chan DeviceHandle, wait func() error) *Round {
	if wait == nil {
		wait = func() error { return nil }
	}
	return &Round{c: c, wait: wait}
}

// C returns the handles of the round. It is closed when the round ends.
func (r *Round) C() <-chan DeviceHandle {
	return r.c
}

// Err waits for the round to end and returns ErrBrowseFailed if the browse
// layer failed. A round that simply found nothing returns nil.
func (r *Round) Err() error {
	return r.wait()
}

// Browse starts a fresh discovery round. Handles arrive on Round.C as
// devices answer, each instance once; the channel closes once timeout
// elapses or ctx ends. A zero timeout uses the browser default.
func (b *Browser) Browse(ctx context.Context, timeout time.Duration) (*Round, error) {
	updates, expired, wait, err := b.start(ctx, timeout)
	if err != nil {
		return nil, err
	}

	out := make(chan DeviceHandle)
	go func() {
		defer close(out)
		emitted := make(map[string]bool)
		for h := range updates {
			if emitted[h.Instance] {
				continue
			}
			emitted[h.Instance] = true
			select {
			case out <- h:
			case <-expired:
				return
			}
		}
	}()
	return NewRound(out, wait), nil
}

// Discover is Browse without the round error: a failed browse looks like a
// round that found nothing. No answer yields an empty, closed channel.
func (b *Browser) Discover(ctx context.Context, timeout time.Duration) (<-chan DeviceHandle, error) {
	r, err := b.Browse(ctx, timeout)
	if err != nil {
		return nil, err
	}
	return r.C(), nil
}

// DiscoverAll runs one round and returns every device found, with the
// addresses of repeated answers merged. Results keep first-answer order.
func (b *Browser) DiscoverAll(ctx context.Context, timeout time.Duration) ([]DeviceHandle, error) {
	updates, _, wait, err := b.start(ctx, timeout)
	if err != nil {
		return nil, err
	}

	var order []string
	latest := make(map[string]DeviceHandle)
	for h := range updates {
		if _, ok := latest[h.Instance]; !ok {
			order = append(order, h.Instance)
		}
		latest[h.Instance] = h
	}
	if err := wait(); err != nil {
		return nil, err
	}

	out := make([]DeviceHandle, 0, len(order))
	for _, inst := range order {
		out = append(out, latest[inst])
	}
	return out, nil
}

// start launches the browse goroutine and the aggregation loop. The
// returned channel carries a fresh handle every time an instance is first
// seen or gains addresses. expired closes when the round ends. wait
// reports the browse error once the channel is drained.
func (b *Browser) start(ctx context.Context, timeout time.Duration) (<-chan DeviceHandle, <-chan struct{}, func() error, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, nil, err
	}
	if timeout <= 0 {
		timeout = b.timeout
	}

	req := BrowseRequest{Service: b.service, Domain: Domain}
	if b.iface != "" {
		iface, err := net.InterfaceByName(b.iface)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: interface %q: %v", ErrBrowseFailed, b.iface, err)
		}
		req.Interfaces = []net.Interface{*iface}
	}

	roundID := uuid.NewString()
	b.events.State(roundID, log.LayerTransport, log.StateEntityDiscovery, "idle", "browsing", b.service)
	b.logger.Debug("discovery round started", "service", b.service, "timeout", timeout)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	entries := make(chan ServiceEntry)
	browseErr := make(chan error, 1)
	go func() {
		browseErr <- b.browse(ctx, req, entries)
	}()

	out := make(chan DeviceHandle)
	var roundErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(out)
		defer cancel()

		known := make(map[string]*DeviceHandle)
		errc := browseErr
		for {
			select {
			case entry := <-entries:
				h, changed := b.merge(known, entry)
				if !changed {
					continue
				}
				select {
				case out <- h:
				case <-ctx.Done():
					b.finish(roundID, len(known))
					return
				}
			case err := <-errc:
				if err != nil && ctx.Err() == nil {
					roundErr = fmt.Errorf("%w: %v", ErrBrowseFailed, err)
					b.logger.Warn("discovery browse failed", "service", b.service, "error", err)
					b.events.Error(roundID, log.LayerTransport, roundErr, "browse")
					return
				}
				// The browse layer finished early; wait for the round to end.
				errc = nil
			case <-ctx.Done():
				b.finish(roundID, len(known))
				return
			}
		}
	}()

	wait := func() error {
		<-done
		return roundErr
	}
	return out, ctx.Done(), wait, nil
}

func (b *Browser) finish(roundID string, found int) {
	b.events.State(roundID, log.LayerTransport, log.StateEntityDiscovery, "browsing", "done", fmt.Sprintf("%d devices", found))
	b.logger.Debug("discovery round finished", "service", b.service, "devices", found)
}

// merge folds entry into known. It returns a copy of the instance handle and
// whether it is new or gained addresses.
func (b *Browser) merge(known map[string]*DeviceHandle, entry ServiceEntry) (DeviceHandle, bool) {
	addrs := b.filterAddresses(entry.Addrs)
	if len(addrs) == 0 {
		b.logger.Debug("skipping answer", "instance", entry.Instance, "error", ErrNoAddress)
		return DeviceHandle{}, false
	}

	existing, ok := known[entry.Instance]
	if ok {
		merged := mergeAddresses(existing.Addresses, addrs)
		if len(merged) == len(existing.Addresses) {
			return DeviceHandle{}, false
		}
		existing.Addresses = sortAddresses(merged)
		return existing.clone(), true
	}

	txt := StringsToTXTRecords(entry.Text)
	info, err := DecodeDeviceTXT(txt)
	if err != nil {
		b.logger.Debug("skipping answer", "instance", entry.Instance, "error", err)
		return DeviceHandle{}, false
	}
	port := entry.Port
	if port <= 0 || port > 0xffff {
		port = DefaultPort
	}

	h := &DeviceHandle{
		Instance:   entry.Instance,
		Host:       entry.Host,
		Port:       uint16(port),
		Addresses:  sortAddresses(addrs),
		Scheme:     info.Scheme,
		Path:       info.Path,
		Identity:   info.ID,
		Properties: txt,
	}
	known[entry.Instance] = h
	return h.clone(), true
}

func (b *Browser) filterAddresses(ips []net.IP) []string {
	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		if ip == nil || ip.IsUnspecified() {
			continue
		}
		if b.disableIPv6 && ip.To4() == nil {
			continue
		}
		if slices.ContainsFunc(b.excluded, ip.Equal) {
			continue
		}
		out = append(out, ip.String())
	}
	return out
}

func (h *DeviceHandle) clone() DeviceHandle {
	c := *h
	c.Addresses = slices.Clone(h.Addresses)
	c.Properties = make(map[string]string, len(h.Properties))
	for k, v := range h.Properties {
		c.Properties[k] = v
	}
	return c
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, add []string) []string {
	seen := make(map[string]bool, len(existing))
	out := slices.Clone(existing)
	for _, addr := range existing {
		seen[addr] = true
	}

	for _, addr := range add {
		if !seen[addr] {
			out = append(out, addr)
			seen[addr] = true
		}
	}
	return out
}

// sortAddresses puts IPv4 addresses first, keeping relative order.
func sortAddresses(addrs []string) []string {
	slices.SortStableFunc(addrs, func(a, b string) int {
		return family(a) - family(b)
	})
	return addrs
}

func family(addr string) int {
	if ip := net.ParseIP(addr); ip != nil && ip.To4() != nil {
		return 0
	}
	return 1
}
