package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tosca-iot/tosca-go/pkg/descriptor"
	"github.com/tosca-iot/tosca-go/pkg/log"
	"github.com/tosca-iot/tosca-go/pkg/route"
	"github.com/tosca-iot/tosca-go/pkg/wire"
)

// errHandlerPanic marks a recovered handler panic.
var errHandlerPanic = errors.New("handler panicked")

// StageHook observes stage transitions. It runs synchronously on the
// dispatching goroutine.
type StageHook func(req *wire.Request, from, to Stage)

// Engine dispatches requests against one sealed descriptor. Handlers run one
// at a time.
type Engine struct {
	desc *descriptor.Descriptor
	mu   sync.Mutex

	logger *log.Emitter
	hook   StageHook
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger reports requests, responses and stage transitions to l.
func WithLogger(l log.Logger) Option {
	return func(e *Engine) {
		e.logger = log.NewEmitter(l, log.RoleDevice, e.desc.Identity())
	}
}

// WithStageHook installs a stage observer.
func WithStageHook(h StageHook) Option {
	return func(e *Engine) { e.hook = h }
}

// New returns an engine for desc.
func New(desc *descriptor.Descriptor, opts ...Option) *Engine {
	e := &Engine{desc: desc, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Descriptor returns the descriptor the engine serves.
func (e *Engine) Descriptor() *descriptor.Descriptor {
	return e.desc
}

// exchange tracks one request through the stages.
type exchange struct {
	id      string
	req     *wire.Request
	stage   Stage
	started time.Time
}

// Dispatch processes req and always returns a response.
func (e *Engine) Dispatch(ctx context.Context, req *wire.Request) *wire.Response {
	x := &exchange{req: req, stage: StageReceived, started: e.now()}
	if e.logger.Enabled() {
		x.id = uuid.NewString()
	}
	e.logRequest(x)

	if req == nil {
		return e.reject(x, &wire.Response{Kind: wire.ResponseOk, Status: wire.StatusBadRequest, Message: "nil request"})
	}
	if err := req.Validate(); err != nil {
		return e.reject(x, &wire.Response{ID: req.ID, Kind: wire.ResponseOk, Status: wire.StatusBadRequest, Message: err.Error()})
	}

	r, segments, ok := e.match(req)
	if !ok {
		return e.reject(x, &wire.Response{
			ID:      req.ID,
			Kind:    wire.ResponseOk,
			Status:  wire.StatusNotFound,
			Message: fmt.Sprintf("no route for %s %s", req.Method, req.Path),
		})
	}
	e.advance(x, StageMatched, r.Key().String())

	params, err := bind(r.Schema, req, segments)
	if err != nil {
		return e.reject(x, &wire.Response{ID: req.ID, Kind: r.Response, Status: wire.StatusBadParameters, Message: err.Error()})
	}
	e.advance(x, StageValidated, "")

	res, err := e.invoke(ctx, r, params)
	e.advance(x, StageInvoked, "")

	resp := e.shape(req, r, res, err)
	e.advance(x, StageResponded, resp.Status.String())
	e.logResponse(x, resp)
	return resp
}

func (e *Engine) invoke(ctx context.Context, r *route.Route, params route.Params) (res route.Result, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", errHandlerPanic, p)
		}
	}()
	return r.Handler.Invoke(ctx, params)
}

// shape builds the response of r's declared kind from the handler outcome.
func (e *Engine) shape(req *wire.Request, r *route.Route, res route.Result, err error) *wire.Response {
	resp := &wire.Response{ID: req.ID, Kind: r.Response, Status: wire.StatusSuccess}

	if err != nil {
		var he *route.HandlerError
		switch {
		case errors.As(err, &he):
			resp.Status = wire.StatusHandlerFailure
			resp.Code = he.Code
			resp.Message = he.Message
		case errors.Is(err, errHandlerPanic):
			resp.Status = wire.StatusContractViolation
			resp.Message = err.Error()
		default:
			resp.Status = wire.StatusHandlerFailure
			resp.Code = route.CodeUnspecified
			resp.Message = err.Error()
		}
		return resp
	}

	violation := func(format string, args ...any) *wire.Response {
		resp.Status = wire.StatusContractViolation
		resp.Message = fmt.Sprintf(format, args...)
		return resp
	}

	if res.Kind != r.Response {
		return violation("handler produced %s, route declares %s", res.Kind, r.Response)
	}

	switch r.Response {
	case wire.ResponseOk:
	case wire.ResponseSerial:
		if !res.Payload.Kind().IsScalar() {
			return violation("serial payload of kind %s", res.Payload.Kind())
		}
		payload := res.Payload
		resp.Payload = &payload
	case wire.ResponseInfo:
		if res.Info == nil {
			resp.Info = e.desc.WireForm()
			break
		}
		data, err := wire.Marshal(res.Info)
		if err != nil {
			return violation("info document: %v", err)
		}
		resp.Info = data
	case wire.ResponseStream:
		if res.Stream == nil {
			return violation("stream handler returned no stream")
		}
		resp.Stream = wire.NewChunkReader(res.Stream)
	}
	return resp
}

func (e *Engine) reject(x *exchange, resp *wire.Response) *wire.Response {
	e.advance(x, StageRejected, resp.Status.String())
	e.logResponse(x, resp)
	return resp
}

func (e *Engine) advance(x *exchange, to Stage, reason string) {
	from := x.stage
	x.stage = to
	if e.hook != nil {
		e.hook(x.req, from, to)
	}
	e.logger.State(x.id, log.LayerDispatch, log.StateEntityRequest, from.String(), to.String(), reason)
}

func (e *Engine) logRequest(x *exchange) {
	if !e.logger.Enabled() || x.req == nil {
		return
	}
	method := x.req.Method
	e.logger.Emit(log.Event{
		ExchangeID: x.id,
		Direction:  log.DirectionIn,
		Layer:      log.LayerWire,
		Category:   log.CategoryMessage,
		Message: &log.MessageEvent{
			Type:      log.MessageTypeRequest,
			RequestID: x.req.ID,
			Method:    &method,
			Path:      x.req.Path,
		},
	})
}

func (e *Engine) logResponse(x *exchange, resp *wire.Response) {
	if !e.logger.Enabled() {
		return
	}
	status := resp.Status
	kind := resp.Kind
	elapsed := e.now().Sub(x.started)
	msg := &log.MessageEvent{
		Type:           log.MessageTypeResponse,
		RequestID:      resp.ID,
		Status:         &status,
		Kind:           &kind,
		Code:           resp.Code,
		ProcessingTime: &elapsed,
	}
	if x.req != nil {
		msg.Path = x.req.Path
	}
	if resp.Payload != nil {
		msg.Payload = resp.Payload.String()
	}
	e.logger.Emit(log.Event{
		ExchangeID: x.id,
		Direction:  log.DirectionOut,
		Layer:      log.LayerWire,
		Category:   log.CategoryMessage,
		Message:    msg,
	})
}
