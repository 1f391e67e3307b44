// Package discovery implements mDNS/DNS-SD discovery for tosca devices.
//
// Devices advertise "_tosca._tcp" in the local domain. The instance name is
// the device name. TXT records carry:
//
//   - scheme: URL scheme of the HTTP binding (default "http")
//   - path: where the descriptor is served (default "/")
//   - id: the device identity
//   - kind, ver: device kind and protocol version (optional)
//
// A Browser runs bounded discovery rounds. Each round is a fresh browse;
// handles are delivered lazily and the channel closes when the round ends.
// Round.Err tells a failed browse apart from a round that found nothing.
// Fetching the descriptor of a handle is a separate step (FetchDescriptor).
//
// The Advertiser is the firmware side and registers the service through
// zeroconf until Stop is called.
package discovery
