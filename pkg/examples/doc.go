// Package examples provides reference devices built with the tosca-go
// library.
//
// Each constructor registers the routes of one device kind on top of a
// capability driver and seals them into a descriptor that a dispatch engine
// can serve. Builder checks the device against the profile of its kind, so
// a light without its mandatory on and off routes never builds.
//
// Available examples:
//   - Light: a dimmable light with power reporting
//   - Thermometer: a temperature sensor with a reading log
package examples
