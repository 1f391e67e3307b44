package discovery

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Service constants for mDNS.
const (
	// DefaultServiceName is the application label of the service type.
	DefaultServiceName = "tosca"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the default HTTP port of a device.
	DefaultPort = 3000

	// DefaultTimeout bounds one discovery round.
	DefaultTimeout = 2 * time.Second

	// DefaultTTL is the DNS record TTL used by the advertiser.
	DefaultTTL = 120 * time.Second

	// MaxInstanceNameLen is the DNS-SD limit for instance labels.
	MaxInstanceNameLen = 63
)

// TXT record keys.
const (
	TXTKeyScheme  = "scheme" // URL scheme of the device (default http)
	TXTKeyPath    = "path"   // Descriptor path (default /)
	TXTKeyID      = "id"     // Device identity
	TXTKeyKind    = "kind"   // Device kind (optional)
	TXTKeyVersion = "ver"    // Protocol version (optional)
)

// TXT defaults.
const (
	DefaultScheme = "http"
	DefaultPath   = "/"
)

// Errors.
var (
	ErrBrowseFailed        = errors.New("discovery browse failed")
	ErrNoAddress           = errors.New("device has no usable address")
	ErrFetchFailed         = errors.New("descriptor fetch failed")
	ErrInvalidTXTRecord    = errors.New("invalid TXT record")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
)

// ServiceType returns the DNS-SD service type for an application label,
// e.g. "_tosca._tcp".
func ServiceType(name string, udp bool) string {
	if name == "" {
		name = DefaultServiceName
	}
	proto := "_tcp"
	if udp {
		proto = "_udp"
	}
	return fmt.Sprintf("_%s.%s", name, proto)
}

// DeviceHandle is a device found on the network.
type DeviceHandle struct {
	// Instance is the DNS-SD instance name.
	Instance string

	// Host is the advertised host name.
	Host string

	// Port is the advertised port.
	Port uint16

	// Addresses holds the resolved IP addresses, IPv4 first.
	Addresses []string

	// Scheme and Path locate the descriptor.
	Scheme string
	Path   string

	// Identity is the device identity from the TXT record, if any.
	Identity string

	// Properties holds every TXT property.
	Properties map[string]string
}

// URL returns scheme://addr:port for the handle, preferring IPv4.
func (h DeviceHandle) URL() (string, error) {
	addr := h.preferredAddress()
	if addr == "" {
		return "", fmt.Errorf("%w: %s", ErrNoAddress, h.Instance)
	}
	scheme := h.Scheme
	if scheme == "" {
		scheme = DefaultScheme
	}
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(addr, strconv.Itoa(int(h.Port))),
	}
	return u.String(), nil
}

// DescriptorURL returns the URL the descriptor is served at.
func (h DeviceHandle) DescriptorURL() (string, error) {
	base, err := h.URL()
	if err != nil {
		return "", err
	}
	path := h.Path
	if path == "" {
		path = DefaultPath
	}
	return base + path, nil
}

func (h DeviceHandle) preferredAddress() string {
	for _, a := range h.Addresses {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			return a
		}
	}
	if len(h.Addresses) > 0 {
		return h.Addresses[0]
	}
	return strings.TrimSuffix(h.Host, ".")
}
