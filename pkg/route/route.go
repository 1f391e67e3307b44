package route

import (
	"fmt"
	"time"

	"github.com/tosca-iot/tosca-go/pkg/hazard"
	"github.com/tosca-iot/tosca-go/pkg/wire"
)

// RouteID identifies a route within its registry, in registration order.
type RouteID uint16

// Key is the identity of a route.
type Key struct {
	Path   string
	Method wire.Method
}

func (k Key) String() string {
	return fmt.Sprintf("%s %s", k.Method, k.Path)
}

// Estimate is the expected resource consumption of one invocation.
type Estimate struct {
	EnergyWh float64
	Cost     float64
	Currency string
	Duration time.Duration
}

// IsZero reports whether no estimate was given.
func (e Estimate) IsZero() bool {
	return e == Estimate{}
}

// Route is a registered command. Routes are not modified after
// registration.
type Route struct {
	ID          RouteID
	Path        string
	Method      wire.Method
	Name        string
	Description string
	Schema      Schema
	Hazards     hazard.Set
	Response    wire.ResponseKind
	Estimate    Estimate
	Handler     Handler
}

// Key returns the route identity.
func (r *Route) Key() Key {
	return Key{Path: r.Path, Method: r.Method}
}

// Option configures a route at registration.
type Option func(*Route)

// WithName sets a short human name.
func WithName(name string) Option {
	return func(r *Route) { r.Name = name }
}

// WithDescription sets the route description.
func WithDescription(d string) Option {
	return func(r *Route) { r.Description = d }
}

// WithEstimate sets the resource estimate.
func WithEstimate(e Estimate) Option {
	return func(r *Route) { r.Estimate = e }
}
