package discovery

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// ErrAlreadyAdvertising is returned by Start on a running advertiser.
var ErrAlreadyAdvertising = errors.New("already advertising")

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Instance is the DNS-SD instance name, usually the device name.
	Instance string

	// ServiceName is the application label. Default: "tosca".
	ServiceName string

	// Port is the HTTP port. Default: 3000.
	Port int

	// TXT holds the advertised properties.
	TXT DeviceTXT

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL.
	// Default: 120 seconds.
	TTL time.Duration
}

// registration is the handle returned by the mDNS layer.
type registration interface {
	Shutdown()
}

type registerFunc func(instance, service, domain string, port int, txt []string, ifaces []net.Interface, ttl time.Duration) (registration, error)

// Advertiser announces a device on the local network.
type Advertiser struct {
	config   AdvertiserConfig
	register registerFunc

	mu     sync.Mutex
	server registration
}

// NewAdvertiser validates config and applies defaults.
func NewAdvertiser(config AdvertiserConfig) (*Advertiser, error) {
	if err := ValidateInstanceName(config.Instance); err != nil {
		return nil, err
	}
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.Port < 0 || config.Port > 0xffff {
		return nil, fmt.Errorf("invalid port %d", config.Port)
	}
	if config.TTL == 0 {
		config.TTL = DefaultTTL
	}
	if _, err := DecodeDeviceTXT(EncodeDeviceTXT(config.TXT)); err != nil {
		return nil, err
	}
	return &Advertiser{config: config, register: zeroconfRegister}, nil
}

// Service returns the advertised service type.
func (a *Advertiser) Service() string {
	return ServiceType(a.config.ServiceName, false)
}

// TXT returns the advertised TXT strings.
func (a *Advertiser) TXT() []string {
	return TXTRecordsToStrings(EncodeDeviceTXT(a.config.TXT))
}

// Start registers the service.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return ErrAlreadyAdvertising
	}

	ifaces, err := a.interfaces()
	if err != nil {
		return err
	}

	server, err := a.register(a.config.Instance, a.Service(), Domain, a.config.Port, a.TXT(), ifaces, a.config.TTL)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", a.Service(), err)
	}
	a.server = server
	return nil
}

// Stop shuts the registration down. It is safe to call more than once.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// Running reports whether the service is registered.
func (a *Advertiser) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// interfaces returns the network interfaces to use for advertising.
// Returns nil to use all interfaces.
func (a *Advertiser) interfaces() ([]net.Interface, error) {
	if a.config.Interface == "" {
		return nil, nil
	}
	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil, fmt.Errorf("interface %q: %w", a.config.Interface, err)
	}
	return []net.Interface{*iface}, nil
}

func zeroconfRegister(instance, service, domain string, port int, txt []string, ifaces []net.Interface, ttl time.Duration) (registration, error) {
	var opts []zeroconf.ServerOption
	if ttl > 0 {
		opts = append(opts, zeroconf.TTL(uint32(ttl.Seconds())))
	}
	return zeroconf.Register(instance, service, domain, port, txt, ifaces, opts...)
}
