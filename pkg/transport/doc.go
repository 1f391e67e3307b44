// Package transport binds the tosca wire protocol to HTTP.
//
// A device serves its descriptor document at GET / and its routes under the
// descriptor's main route:
//
//	GET  /                        descriptor wire form (application/cbor)
//	GET  /.well-known/tosca       308 to /
//	PUT  /light/on?brightness=0.5 named text values
//	PUT  /light/off/4.0/true      positional text values
//	POST /light/on                CBOR RequestBody with typed values
//
// Responses are CBOR-encoded wire.Response messages. Protocol failures map
// to HTTP 404 (no route), 400 (bad request or parameters) and 500 (handler
// failure or contract violation).
//
// # Streams
//
// A successful Stream response is sent as application/x-tosca-stream: a
// sequence of frames, each with a 4-byte big-endian length prefix. The first
// frame is the encoded response header, every further frame one chunk value.
//
//	┌──────────┬──────────────────┐┌──────────┬─────────────┐
//	│ len (4B) │ wire.Response    ││ len (4B) │ chunk value │ ...
//	└──────────┴──────────────────┘└──────────┴─────────────┘
package transport
