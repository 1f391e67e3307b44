// Package value defines the closed set of values a route can accept as
// parameters and return as payloads.
//
// A Value is one of bool, int, float, text, bytes or a stream chunk. On the
// wire every value is a two element CBOR array [tag, payload], so a receiver
// can check its shape without looking up a schema.
package value
