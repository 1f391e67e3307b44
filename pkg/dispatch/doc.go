// Package dispatch resolves wire requests against a sealed descriptor,
// binds parameters, invokes handlers and shapes responses.
//
// Every request passes through the stages
//
//	Received → Matched → Validated → Invoked → Responded
//
// and leaves early through Rejected when no route matches (NotFound) or the
// parameters cannot be bound (BadParameters). Any failure yields a
// well-formed response; the engine keeps serving after it.
package dispatch
