package descriptor

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tosca-iot/tosca-go/pkg/value"
)

// DeviceKind classifies a device.
type DeviceKind string

// Device kinds.
const (
	KindUnknown DeviceKind = "unknown"
	KindLight   DeviceKind = "light"
	KindSensor  DeviceKind = "sensor"
)

// Environment is the platform a device firmware runs on.
type Environment string

// Environments.
const (
	EnvOS    Environment = "os"
	EnvESP32 Environment = "esp32"
)

// DefaultMainRoute prefixes the routes of devices that do not pick one.
const DefaultMainRoute = "/device"

// identityNamespace scopes name-derived identities.
var identityNamespace = uuid.MustParse("5a3e7f0c-6f7b-4e0a-9a55-0c1d6c2b7e11")

// Metadata describes the device behind a set of routes.
type Metadata struct {
	Name string

	// Identity is the stable device id. When empty it is derived from the
	// Wi-Fi MAC, the Ethernet MAC or, failing those, the name.
	Identity string

	Kind        DeviceKind
	Environment Environment
	Description string
	WiFiMAC     string
	EthernetMAC string

	// MainRoute prefixes every route path on the transport.
	MainRoute string

	Structure Structure
	Events    []EventDescription
	Broker    *BrokerInfo
}

// Structure describes the internal data fields and methods of a device.
type Structure struct {
	Fields  []Field  `cbor:"1,keyasint,omitempty"`
	Methods []string `cbor:"2,keyasint,omitempty"`
}

// Field is one internal data field.
type Field struct {
	Name        string     `cbor:"1,keyasint"`
	Kind        value.Kind `cbor:"2,keyasint"`
	Description string     `cbor:"3,keyasint,omitempty"`
}

// EventDescription announces an event the device publishes.
type EventDescription struct {
	Name        string        `cbor:"1,keyasint"`
	Kind        value.Kind    `cbor:"2,keyasint"`
	Description string        `cbor:"3,keyasint,omitempty"`
	Interval    time.Duration `cbor:"4,keyasint,omitempty"`
}

// BrokerInfo tells controllers where device events are published.
type BrokerInfo struct {
	Host  string `cbor:"1,keyasint"`
	Port  uint16 `cbor:"2,keyasint"`
	Topic string `cbor:"3,keyasint"`
}

// withDefaults fills derived fields.
func (m Metadata) withDefaults() Metadata {
	if m.Kind == "" {
		m.Kind = KindUnknown
	}
	if m.Environment == "" {
		m.Environment = EnvOS
	}
	if m.MainRoute == "" {
		m.MainRoute = DefaultMainRoute
	}
	if m.Identity == "" {
		m.Identity = deriveIdentity(m)
	}
	return m
}

func deriveIdentity(m Metadata) string {
	for _, mac := range []string{m.WiFiMAC, m.EthernetMAC} {
		if mac != "" {
			return strings.ToLower(strings.NewReplacer(":", "", "-", "").Replace(mac))
		}
	}
	return uuid.NewSHA1(identityNamespace, []byte(m.Name)).String()
}
