package route

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/tosca-iot/tosca-go/pkg/hazard"
	"github.com/tosca-iot/tosca-go/pkg/wire"
)

// Registration errors. They are fatal at startup.
var (
	ErrDuplicateRoute   = errors.New("duplicate route")
	ErrInvalidSchema    = errors.New("invalid parameter schema")
	ErrRegistrySealed   = errors.New("registry sealed")
	ErrInvalidPath      = errors.New("invalid route path")
	ErrProhibitedHazard = errors.New("hazard not allowed for this device")
	ErrInvalidHandler   = errors.New("invalid handler")
	ErrOutOfRange       = errors.New("value out of range")
	ErrTooManyRoutes    = errors.New("too many routes")
)

// MaxRoutes bounds the number of routes in one registry.
const MaxRoutes = 1 << 10

// Registry collects routes during startup.
type Registry struct {
	mu      sync.Mutex
	routes  []*Route
	index   map[Key]*Route
	allowed []hazard.ID
	sealed  bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithAllowedHazards restricts the hazards routes may declare to ids.
// Without it every hazard is allowed.
func WithAllowedHazards(ids ...hazard.ID) RegistryOption {
	return func(r *Registry) {
		r.allowed = append([]hazard.ID{}, ids...)
	}
}

// NewRegistry returns an open registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{index: make(map[Key]*Route)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a route. The route's response kind is the handler's kind.
func (r *Registry) Register(path string, method wire.Method, schema Schema, hazards hazard.Set, h Handler, opts ...Option) (RouteID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return 0, fmt.Errorf("%w: %s %s", ErrRegistrySealed, method, path)
	}
	if err := ValidatePath(path); err != nil {
		return 0, err
	}
	if !method.IsValid() {
		return 0, fmt.Errorf("%w: %d", wire.ErrInvalidMethod, method)
	}
	key := Key{Path: path, Method: method}
	if _, exists := r.index[key]; exists {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateRoute, key)
	}
	if h == nil || !h.Kind().IsValid() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidHandler, key)
	}
	if len(r.routes) >= MaxRoutes {
		return 0, fmt.Errorf("%w: limit is %d", ErrTooManyRoutes, MaxRoutes)
	}
	norm, err := schema.normalize()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if r.allowed != nil {
		if bad := hazards.Outside(r.allowed); len(bad) > 0 {
			return 0, fmt.Errorf("%w: %s declares %s", ErrProhibitedHazard, key, bad[0])
		}
	}

	rt := &Route{
		ID:       RouteID(len(r.routes)),
		Path:     path,
		Method:   method,
		Schema:   norm,
		Hazards:  hazards,
		Response: h.Kind(),
		Handler:  h,
	}
	for _, opt := range opts {
		opt(rt)
	}
	r.routes = append(r.routes, rt)
	r.index[key] = rt
	return rt.ID, nil
}

// Len returns the number of registered routes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.routes)
}

// Routes returns the routes in registration order.
func (r *Registry) Routes() []*Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.routes)
}

// Has reports whether a route with the given identity exists.
func (r *Registry) Has(path string, method wire.Method) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.index[Key{Path: path, Method: method}]
	return ok
}

// AllowedHazards returns the hazard restriction, or nil when unrestricted.
func (r *Registry) AllowedHazards() []hazard.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.allowed)
}

// Sealed reports whether the registry was sealed.
func (r *Registry) Sealed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sealed
}

// Seal closes the registry and returns its routes in registration order.
// Sealing twice returns the same routes.
func (r *Registry) Seal() []*Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
	return slices.Clone(r.routes)
}
