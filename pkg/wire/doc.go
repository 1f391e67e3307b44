// Package wire defines the request/response vocabulary of the tosca route
// protocol and its CBOR encoding.
//
// Requests name a method and a path and carry parameters either by name or
// by position. Responses come in four shapes (Ok, Serial, Info, Stream) and
// always carry a Status, so the remote party receives a well-formed answer
// even when dispatch or the handler fails.
//
// # CBOR Integer Keys
//
// Message structs use integer keys for compactness. Encoding is canonical,
// so equal messages encode to equal bytes.
package wire
