package wire

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/tosca-iot/tosca-go/pkg/value"
)

// Validation errors.
var (
	ErrInvalidMethod = errors.New("invalid method")
	ErrInvalidPath   = errors.New("invalid path")
	ErrMixedBinding  = errors.New("typed and text values for the same binding")
)

// Request is a route invocation.
//
// Parameters travel either by name or by position. Params and Positional carry
// typed values (CBOR bodies); Query and Segments carry the textual form found in
// a URL, which the dispatcher parses using the route's schema.
type Request struct {
	// ID correlates a request with its response. Zero is allowed.
	ID uint32 `cbor:"1,keyasint"`

	Method Method `cbor:"2,keyasint"`
	Path   string `cbor:"3,keyasint"`

	Params     map[string]value.Value `cbor:"4,keyasint,omitempty"`
	Positional []value.Value          `cbor:"5,keyasint,omitempty"`
	Query      map[string]string      `cbor:"6,keyasint,omitempty"`
	Segments   []string               `cbor:"7,keyasint,omitempty"`
}

// Validate checks the request for structural validity.
func (r *Request) Validate() error {
	if !r.Method.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidMethod, r.Method)
	}
	if !strings.HasPrefix(r.Path, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, r.Path)
	}
	if len(r.Positional) > 0 && len(r.Segments) > 0 {
		return fmt.Errorf("%w: positional", ErrMixedBinding)
	}
	return nil
}

// HasNamed reports whether any named value is present.
func (r *Request) HasNamed() bool {
	return len(r.Params) > 0 || len(r.Query) > 0
}

// PositionalCount returns the number of positional values.
func (r *Request) PositionalCount() int {
	return len(r.Positional) + len(r.Segments)
}

// Response is the answer to a Request.
//
// Kind is always the route's declared kind when the route was found, also for
// failures, so the remote party can tell which shape to expect. Protocol
// failures before a route matched use ResponseOk.
type Response struct {
	ID     uint32       `cbor:"1,keyasint"`
	Kind   ResponseKind `cbor:"2,keyasint"`
	Status Status       `cbor:"3,keyasint"`

	// Code and Message describe a handler failure or a protocol rejection.
	Code    uint16 `cbor:"4,keyasint,omitempty"`
	Message string `cbor:"5,keyasint,omitempty"`

	// Payload is set for successful Serial responses.
	Payload *value.Value `cbor:"6,keyasint,omitempty"`

	// Info is a CBOR document (descriptor or a subset of it) for Info responses.
	Info cbor.RawMessage `cbor:"7,keyasint,omitempty"`

	// Stream yields the chunks of a successful Stream response. It is not
	// part of the encoded message; transports frame chunks separately.
	Stream ChunkReader `cbor:"-"`
}

// IsSuccess is a shorthand for r.Status.IsSuccess().
func (r *Response) IsSuccess() bool {
	return r.Status.IsSuccess()
}

// Err converts a failed response into an error. It returns nil on success.
func (r *Response) Err() error {
	if r.Status.IsSuccess() {
		return nil
	}
	return &StatusError{Status: r.Status, Code: r.Code, Message: r.Message}
}

// StatusError is a failed response seen as an error.
type StatusError struct {
	Status  Status
	Code    uint16
	Message string
}

func (e *StatusError) Error() string {
	var b strings.Builder
	b.WriteString(e.Status.String())
	if e.Code != 0 {
		fmt.Fprintf(&b, " (code %d)", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}
