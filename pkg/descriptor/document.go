package descriptor

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/tosca-iot/tosca-go/pkg/hazard"
	"github.com/tosca-iot/tosca-go/pkg/route"
	"github.com/tosca-iot/tosca-go/pkg/value"
	"github.com/tosca-iot/tosca-go/pkg/wire"
	"github.com/tosca-iot/tosca-go/pkg/version"
)

// ErrInvalidDocument is returned when a wire form cannot be decoded.
var ErrInvalidDocument = errors.New("invalid descriptor document")

// Document is the serialized form of a descriptor.
type Document struct {
	ProtocolVersion string             `cbor:"1,keyasint"`
	Device          DeviceInfo         `cbor:"2,keyasint"`
	Routes          []RouteInfo        `cbor:"3,keyasint"`
	AllowedHazards  []hazard.ID        `cbor:"4,keyasint,omitempty"`
	Structure       Structure          `cbor:"5,keyasint"`
	Events          []EventDescription `cbor:"6,keyasint,omitempty"`
	Broker          *BrokerInfo        `cbor:"7,keyasint,omitempty"`

	index  map[route.Key]int
	digest string
}

// DeviceInfo is the device part of a document.
type DeviceInfo struct {
	Name        string      `cbor:"1,keyasint"`
	Identity    string      `cbor:"2,keyasint"`
	Kind        DeviceKind  `cbor:"3,keyasint"`
	Environment Environment `cbor:"4,keyasint"`
	Description string      `cbor:"5,keyasint,omitempty"`
	WiFiMAC     string      `cbor:"6,keyasint,omitempty"`
	EthernetMAC string      `cbor:"7,keyasint,omitempty"`
	MainRoute   string      `cbor:"8,keyasint"`
}

// RouteInfo describes one route.
type RouteInfo struct {
	Path        string            `cbor:"1,keyasint"`
	Method      wire.Method       `cbor:"2,keyasint"`
	Name        string            `cbor:"3,keyasint,omitempty"`
	Description string            `cbor:"4,keyasint,omitempty"`
	Response    wire.ResponseKind `cbor:"5,keyasint"`
	Parameters  []ParameterInfo   `cbor:"6,keyasint,omitempty"`
	Hazards     []hazard.Hazard   `cbor:"7,keyasint,omitempty"`
	Estimate    *EstimateInfo     `cbor:"8,keyasint,omitempty"`
}

// ParameterInfo describes one route parameter.
type ParameterInfo struct {
	Name        string      `cbor:"1,keyasint"`
	Kind        value.Kind  `cbor:"2,keyasint"`
	Required    bool        `cbor:"3,keyasint,omitempty"`
	Default     value.Value `cbor:"4,keyasint"`
	Min         *float64    `cbor:"5,keyasint,omitempty"`
	Max         *float64    `cbor:"6,keyasint,omitempty"`
	Description string      `cbor:"7,keyasint,omitempty"`
	Step        *float64    `cbor:"8,keyasint,omitempty"`
}

// EstimateInfo is the resource estimate of a route.
type EstimateInfo struct {
	EnergyWh float64       `cbor:"1,keyasint,omitempty"`
	Cost     float64       `cbor:"2,keyasint,omitempty"`
	Currency string        `cbor:"3,keyasint,omitempty"`
	Duration time.Duration `cbor:"4,keyasint,omitempty"`
}

// Key returns the route identity.
func (r *RouteInfo) Key() route.Key {
	return route.Key{Path: r.Path, Method: r.Method}
}

// HazardSet rebuilds the hazard set of the route.
func (r *RouteInfo) HazardSet() (hazard.Set, error) {
	return hazard.NewSet(r.Hazards...)
}

// Schema rebuilds the parameter schema of the route.
func (r *RouteInfo) Schema() route.Schema {
	s := make(route.Schema, len(r.Parameters))
	for i, p := range r.Parameters {
		s[i] = route.Parameter{
			Name:        p.Name,
			Kind:        p.Kind,
			Required:    p.Required,
			Default:     p.Default,
			Min:         p.Min,
			Max:         p.Max,
			Step:        p.Step,
			Description: p.Description,
		}
	}
	return s
}

// Route looks up a route by identity.
func (d *Document) Route(path string, method wire.Method) (*RouteInfo, bool) {
	key := route.Key{Path: path, Method: method}
	if d.index != nil {
		i, ok := d.index[key]
		if !ok {
			return nil, false
		}
		return &d.Routes[i], true
	}
	for i := range d.Routes {
		if d.Routes[i].Key() == key {
			return &d.Routes[i], true
		}
	}
	return nil, false
}

// Digest returns the hex BLAKE2b-256 of the encoded document. It is empty
// for documents that were not sealed or decoded.
func (d *Document) Digest() string {
	return d.digest
}

// SameAs reports whether two documents have the same digest.
func (d *Document) SameAs(other *Document) bool {
	if d.digest == "" || other == nil || other.digest == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(d.digest), []byte(other.digest)) == 1
}

// Decode parses a wire form. The document keeps the digest of data.
func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := wire.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := version.CheckCompatible(doc.ProtocolVersion); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if doc.Device.Identity == "" {
		return nil, fmt.Errorf("%w: missing device identity", ErrInvalidDocument)
	}
	doc.index = make(map[route.Key]int, len(doc.Routes))
	for i := range doc.Routes {
		key := doc.Routes[i].Key()
		if _, dup := doc.index[key]; dup {
			return nil, fmt.Errorf("%w: duplicate route %s", ErrInvalidDocument, key)
		}
		doc.index[key] = i
	}
	doc.digest = digest(data)
	return &doc, nil
}

func digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
