// Package history records device events in InfluxDB.
//
// Every event becomes one point of the tosca_event measurement, tagged with
// the device identity, the event name and the payload kind. Writes go through
// the non-blocking batched write API; failures are reported asynchronously
// through the error callback.
package history
