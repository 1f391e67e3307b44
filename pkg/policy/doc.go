// Package policy decides whether a controller may invoke a route, based on
// the route's declared hazards.
//
// A Policy is an ordered rule list plus an explicit default action. For each
// hazard category present in a route's hazard set the first rule of that
// category whose threshold is at or below the category's highest severity
// decides; categories without a matching rule use the default. Block beats
// Allow. A route without hazards is always allowed.
//
// There is no implicit default: evaluating a policy without one, for a
// category no rule matches, returns ErrNoDefault.
package policy
