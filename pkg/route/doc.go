// Package route implements the route registry of a device.
//
// A route is a typed command addressed by path and method. It owns a
// parameter schema, a set of declared hazards, an optional resource
// estimate and a handler whose constructor fixes the response kind.
//
// Routes are registered during startup on a Registry. Sealing the registry
// (see package descriptor) freezes it: later registrations fail with
// ErrRegistrySealed.
package route
