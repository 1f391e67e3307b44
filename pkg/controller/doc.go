// Package controller drives tosca devices from the controller side.
//
// A Controller discovers devices on the local network, fetches and caches
// their descriptors, and sends requests to their routes. Every request is
// checked against the active policy before it leaves the controller: a route
// whose hazards the policy blocks is never sent.
//
// Requests to one device run one at a time in submission order. Requests to
// different devices run concurrently. Watch keeps an event subscription of a
// device alive across broker disconnects.
package controller
