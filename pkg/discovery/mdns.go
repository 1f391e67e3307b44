package discovery

import (
	"context"
	"net"

	"github.com/enbility/zeroconf/v3"
)

// zeroconfBrowse is the default BrowseFunc.
func zeroconfBrowse(ctx context.Context, req BrowseRequest, out chan<- ServiceEntry) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	var opts []zeroconf.ClientOption
	if len(req.Interfaces) > 0 {
		opts = append(opts, zeroconf.SelectIfaces(req.Interfaces))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				select {
				case out <- fromZeroconf(entry):
				case <-ctx.Done():
					return
				}
			case _, ok := <-removed:
				// Removals do not matter within a bounded round.
				if !ok {
					removed = nil
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := zeroconf.Browse(ctx, req.Service, req.Domain, entries, removed, opts...); err != nil {
		cancel()
		<-done
		return err
	}
	<-done
	return nil
}

func fromZeroconf(entry *zeroconf.ServiceEntry) ServiceEntry {
	addrs := make([]net.IP, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	addrs = append(addrs, entry.AddrIPv4...)
	addrs = append(addrs, entry.AddrIPv6...)
	return ServiceEntry{
		Instance: entry.Instance,
		Host:     entry.HostName,
		Port:     entry.Port,
		Text:     entry.Text,
		Addrs:    addrs,
	}
}
