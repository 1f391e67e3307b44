package descriptor

import (
	"bytes"
	"fmt"

	"github.com/tosca-iot/tosca-go/pkg/route"
	"github.com/tosca-iot/tosca-go/pkg/wire"
	"github.com/tosca-iot/tosca-go/pkg/version"
)

// Descriptor is a sealed set of routes plus device metadata.
// It has no mutating methods.
type Descriptor struct {
	meta      Metadata
	routes    []*route.Route
	index     map[route.Key]*route.Route
	doc       *Document
	wireForm  []byte
	maxParams int
}

// Seal consumes reg: it is sealed and later registrations fail. Every route
// was validated at registration, so sealing cannot fail.
func Seal(reg *route.Registry, meta Metadata) *Descriptor {
	meta = meta.withDefaults()
	routes := reg.Seal()

	d := &Descriptor{
		meta:   meta,
		routes: routes,
		index:  make(map[route.Key]*route.Route, len(routes)),
	}
	for _, r := range routes {
		d.index[r.Key()] = r
		d.maxParams = max(d.maxParams, len(r.Schema))
	}

	doc := buildDocument(meta, routes, reg)
	data, err := wire.Marshal(doc)
	if err != nil {
		// Documents hold only encodable types.
		panic(fmt.Sprintf("descriptor: encoding document: %v", err))
	}
	doc.index = make(map[route.Key]int, len(doc.Routes))
	for i := range doc.Routes {
		doc.index[doc.Routes[i].Key()] = i
	}
	doc.digest = digest(data)

	d.doc = doc
	d.wireForm = data
	return d
}

func buildDocument(meta Metadata, routes []*route.Route, reg *route.Registry) *Document {
	doc := &Document{
		ProtocolVersion: version.Current,
		Device: DeviceInfo{
			Name:        meta.Name,
			Identity:    meta.Identity,
			Kind:        meta.Kind,
			Environment: meta.Environment,
			Description: meta.Description,
			WiFiMAC:     meta.WiFiMAC,
			EthernetMAC: meta.EthernetMAC,
			MainRoute:   meta.MainRoute,
		},
		Routes:         make([]RouteInfo, 0, len(routes)),
		AllowedHazards: reg.AllowedHazards(),
		Structure:      meta.Structure,
		Events:         meta.Events,
		Broker:         meta.Broker,
	}
	for _, r := range routes {
		info := RouteInfo{
			Path:        r.Path,
			Method:      r.Method,
			Name:        r.Name,
			Description: r.Description,
			Response:    r.Response,
			Hazards:     r.Hazards.All(),
		}
		for _, p := range r.Schema {
			info.Parameters = append(info.Parameters, ParameterInfo{
				Name:        p.Name,
				Kind:        p.Kind,
				Required:    p.Required,
				Default:     p.Default,
				Min:         p.Min,
				Max:         p.Max,
				Step:        p.Step,
				Description: p.Description,
			})
		}
		if !r.Estimate.IsZero() {
			info.Estimate = &EstimateInfo{
				EnergyWh: r.Estimate.EnergyWh,
				Cost:     r.Estimate.Cost,
				Currency: r.Estimate.Currency,
				Duration: r.Estimate.Duration,
			}
		}
		doc.Routes = append(doc.Routes, info)
	}
	return doc
}

// Lookup returns the route with the given identity.
func (d *Descriptor) Lookup(path string, method wire.Method) (*route.Route, bool) {
	r, ok := d.index[route.Key{Path: path, Method: method}]
	return r, ok
}

// Routes returns the routes in registration order.
func (d *Descriptor) Routes() []*route.Route {
	out := make([]*route.Route, len(d.routes))
	copy(out, d.routes)
	return out
}

// Metadata returns the device metadata with derived fields filled in.
func (d *Descriptor) Metadata() Metadata {
	return d.meta
}

// Identity returns the device identity.
func (d *Descriptor) Identity() string {
	return d.meta.Identity
}

// MainRoute returns the path prefix of the device's routes.
func (d *Descriptor) MainRoute() string {
	return d.meta.MainRoute
}

// MaxParameters returns the largest schema size of any route.
func (d *Descriptor) MaxParameters() int {
	return d.maxParams
}

// WireForm returns a copy of the encoded document.
func (d *Descriptor) WireForm() []byte {
	return bytes.Clone(d.wireForm)
}

// Digest returns the hex BLAKE2b-256 of the wire form.
func (d *Descriptor) Digest() string {
	return d.doc.digest
}

// Document returns the document. Callers must not modify it.
func (d *Descriptor) Document() *Document {
	return d.doc
}

// Validate checks the descriptor against the device profile of the current
// protocol version.
func (d *Descriptor) Validate() (version.ValidationResult, error) {
	manifest, err := version.LoadCurrentManifest()
	if err != nil {
		return version.ValidationResult{}, err
	}
	var routes []version.RouteDef
	var hazards []string
	for _, r := range d.routes {
		routes = append(routes, version.RouteDef{Method: r.Method.String(), Path: r.Path})
		for _, h := range r.Hazards.All() {
			if h.ID != "" {
				hazards = append(hazards, string(h.ID))
			}
		}
	}
	return version.ValidateDevice(manifest, string(d.meta.Kind), routes, hazards), nil
}
