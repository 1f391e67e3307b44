package route

import (
	"context"
	"fmt"
	"io"

	"github.com/tosca-iot/tosca-go/pkg/value"
	"github.com/tosca-iot/tosca-go/pkg/wire"
)

// Handler executes a route. Kind is the response kind the route declares;
// Invoke must produce a Result of that kind.
type Handler interface {
	Kind() wire.ResponseKind
	Invoke(ctx context.Context, p Params) (Result, error)
}

// Result is what a handler produced. Only the field matching Kind is used.
type Result struct {
	Kind wire.ResponseKind

	// Payload of a Serial result.
	Payload value.Value

	// Info is any CBOR-encodable document. Nil means the full device
	// descriptor.
	Info any

	// Stream supplies the bytes of a Stream result.
	Stream io.Reader
}

// HandlerFunc returns a handler declaring kind and running fn. The result of
// fn is not checked here; the dispatcher rejects results whose kind differs.
func HandlerFunc(kind wire.ResponseKind, fn func(context.Context, Params) (Result, error)) Handler {
	return funcHandler{kind: kind, fn: fn}
}

type funcHandler struct {
	kind wire.ResponseKind
	fn   func(context.Context, Params) (Result, error)
}

func (h funcHandler) Kind() wire.ResponseKind { return h.kind }

func (h funcHandler) Invoke(ctx context.Context, p Params) (Result, error) {
	return h.fn(ctx, p)
}

// OkHandler returns a handler answering with a bare status.
func OkHandler(fn func(context.Context, Params) error) Handler {
	return HandlerFunc(wire.ResponseOk, func(ctx context.Context, p Params) (Result, error) {
		if err := fn(ctx, p); err != nil {
			return Result{}, err
		}
		return Result{Kind: wire.ResponseOk}, nil
	})
}

// SerialHandler returns a handler answering with a value.
func SerialHandler(fn func(context.Context, Params) (value.Value, error)) Handler {
	return HandlerFunc(wire.ResponseSerial, func(ctx context.Context, p Params) (Result, error) {
		v, err := fn(ctx, p)
		if err != nil {
			return Result{}, err
		}
		return Result{Kind: wire.ResponseSerial, Payload: v}, nil
	})
}

// InfoHandler returns a handler answering with a document. A nil document
// stands for the full descriptor.
func InfoHandler(fn func(context.Context, Params) (any, error)) Handler {
	return HandlerFunc(wire.ResponseInfo, func(ctx context.Context, p Params) (Result, error) {
		doc, err := fn(ctx, p)
		if err != nil {
			return Result{}, err
		}
		return Result{Kind: wire.ResponseInfo, Info: doc}, nil
	})
}

// DescriptorInfo returns a handler answering with the full descriptor.
func DescriptorInfo() Handler {
	return InfoHandler(func(context.Context, Params) (any, error) {
		return nil, nil
	})
}

// StreamHandler returns a handler answering with a chunked byte stream.
func StreamHandler(fn func(context.Context, Params) (io.Reader, error)) Handler {
	return HandlerFunc(wire.ResponseStream, func(ctx context.Context, p Params) (Result, error) {
		r, err := fn(ctx, p)
		if err != nil {
			return Result{}, err
		}
		return Result{Kind: wire.ResponseStream, Stream: r}, nil
	})
}

// CodeUnspecified is reported when a handler fails with an error that is not
// a *HandlerError.
const CodeUnspecified uint16 = 1

// HandlerError is an operation-specific failure. It is reported to the
// caller inside a well-formed response.
type HandlerError struct {
	Code    uint16
	Message string
}

// Fail returns a HandlerError with a formatted message.
func Fail(code uint16, format string, args ...any) *HandlerError {
	return &HandlerError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler error %d: %s", e.Code, e.Message)
}
