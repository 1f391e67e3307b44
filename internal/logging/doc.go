// Package logging builds the loggers of the tosca binaries: an operational
// slog.Logger and, when configured, a protocol event logger writing a CBOR
// capture file.
package logging
