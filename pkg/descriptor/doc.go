// Package descriptor implements the sealed device descriptor.
//
// Seal freezes a route.Registry together with device metadata. The result is
// immutable and safe to share between goroutines. Its wire form is a
// canonical CBOR Document, computed once: equal content always encodes to
// equal bytes, which controllers rely on for caching (see Digest).
//
// Controllers decode the wire form with Decode and work on the Document.
package descriptor
