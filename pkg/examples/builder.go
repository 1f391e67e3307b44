package examples

import (
	"errors"
	"fmt"
	"time"

	"github.com/tosca-iot/tosca-go/pkg/descriptor"
	"github.com/tosca-iot/tosca-go/pkg/events"
	"github.com/tosca-iot/tosca-go/pkg/hazard"
	"github.com/tosca-iot/tosca-go/pkg/route"
	"github.com/tosca-iot/tosca-go/pkg/version"
	"github.com/tosca-iot/tosca-go/pkg/wire"
)

// ErrMissingMandatoryRoute is returned by Build when the device lacks a
// route its kind requires.
var ErrMissingMandatoryRoute = errors.New("missing mandatory route")

// EventSource describes how a device produces one of its events.
type EventSource struct {
	Name string

	// Interval is the publishing period. With OnChange set it is the
	// polling period and only changed values are published.
	Interval time.Duration
	OnChange bool

	Read events.ReadFunc
}

// Builder assembles the routes of a device and checks them against the
// profile of its kind.
type Builder struct {
	meta    descriptor.Metadata
	profile version.KindProfile
	reg     *route.Registry
	err     error
}

// NewBuilder starts a device of meta.Kind. The main route defaults to the
// one of the kind profile and route hazards are restricted to those the
// profile allows.
func NewBuilder(meta descriptor.Metadata) (*Builder, error) {
	manifest, err := version.LoadCurrentManifest()
	if err != nil {
		return nil, err
	}
	profile := manifest.Profile(string(meta.Kind))

	var opts []route.RegistryOption
	if profile.AllowedHazards != nil {
		ids := make([]hazard.ID, len(profile.AllowedHazards))
		for i, id := range profile.AllowedHazards {
			ids[i] = hazard.ID(id)
		}
		opts = append(opts, route.WithAllowedHazards(ids...))
	}
	if meta.MainRoute == "" {
		meta.MainRoute = profile.MainRoute
	}

	return &Builder{
		meta:    meta,
		profile: profile,
		reg:     route.NewRegistry(opts...),
	}, nil
}

// Route registers a route. The first failure is kept and reported by Build.
func (b *Builder) Route(path string, method wire.Method, schema route.Schema, hazards hazard.Set, h route.Handler, opts ...route.Option) *Builder {
	if b.err != nil {
		return b
	}
	if _, err := b.reg.Register(path, method, schema, hazards, h, opts...); err != nil {
		b.err = fmt.Errorf("%s %s: %w", method, path, err)
	}
	return b
}

// Build seals the routes into a descriptor.
func (b *Builder) Build() (*descriptor.Descriptor, error) {
	if b.err != nil {
		return nil, b.err
	}
	for _, m := range b.profile.Mandatory {
		method, err := wire.ParseMethod(m.Method)
		if err != nil {
			return nil, fmt.Errorf("profile of %s: %w", b.meta.Kind, err)
		}
		if !b.reg.Has(m.Path, method) {
			return nil, fmt.Errorf("%w: %s device needs %s", ErrMissingMandatoryRoute, b.meta.Kind, m)
		}
	}
	return descriptor.Seal(b.reg, b.meta), nil
}
