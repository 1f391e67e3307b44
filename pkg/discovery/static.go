package discovery

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// HandleFromURL builds a handle for a device known by address, such as
// "http://192.168.1.20:3000" or "192.168.1.20". The port defaults to
// DefaultPort and the descriptor path to the URL path.
func HandleFromURL(raw string) (DeviceHandle, error) {
	if !strings.Contains(raw, "://") {
		raw = DefaultScheme + "://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return DeviceHandle{}, fmt.Errorf("%w: %q: %w", ErrNoAddress, raw, err)
	}
	host := u.Hostname()
	if host == "" {
		return DeviceHandle{}, fmt.Errorf("%w: %q", ErrNoAddress, raw)
	}
	port := DefaultPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port <= 0 || port > 0xffff {
			return DeviceHandle{}, fmt.Errorf("%w: %q: bad port", ErrNoAddress, raw)
		}
	}

	h := DeviceHandle{
		Instance: net.JoinHostPort(host, strconv.Itoa(port)),
		Host:     host,
		Port:     uint16(port), // #nosec G115 -- range checked above
		Scheme:   u.Scheme,
		Path:     u.Path,
	}
	if net.ParseIP(host) != nil {
		h.Addresses = []string{host}
	}
	return h, nil
}

// StaticBrowser reports a fixed set of devices. It stands in for mDNS on
// networks where multicast does not reach the devices.
type StaticBrowser struct {
	handles []DeviceHandle
}

// NewStaticBrowser parses every address with HandleFromURL.
func NewStaticBrowser(addrs ...string) (*StaticBrowser, error) {
	s := &StaticBrowser{}
	for _, a := range addrs {
		h, err := HandleFromURL(a)
		if err != nil {
			return nil, err
		}
		s.handles = append(s.handles, h)
	}
	return s, nil
}

// Handles returns the configured devices.
func (s *StaticBrowser) Handles() []DeviceHandle {
	return append([]DeviceHandle(nil), s.handles...)
}

// Browse emits every configured device and closes the channel. The timeout
// is ignored and the round never fails.
func (s *StaticBrowser) Browse(ctx context.Context, _ time.Duration) (*Round, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(chan DeviceHandle, len(s.handles))
	for _, h := range s.handles {
		out <- h
	}
	close(out)
	return NewRound(out, nil), nil
}

// Discover is Browse returning only the channel.
func (s *StaticBrowser) Discover(ctx context.Context, timeout time.Duration) (<-chan DeviceHandle, error) {
	r, err := s.Browse(ctx, timeout)
	if err != nil {
		return nil, err
	}
	return r.C(), nil
}
