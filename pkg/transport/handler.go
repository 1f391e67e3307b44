package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/tosca-iot/tosca-go/pkg/descriptor"
	"github.com/tosca-iot/tosca-go/pkg/log"
	"github.com/tosca-iot/tosca-go/pkg/value"
	"github.com/tosca-iot/tosca-go/pkg/wire"
)

// HTTP binding constants.
const (
	// ContentTypeCBOR marks descriptor documents, request bodies and responses.
	ContentTypeCBOR = "application/cbor"

	// ContentTypeStream marks a framed stream response.
	ContentTypeStream = "application/x-tosca-stream"

	// HeaderRequestID carries wire.Request.ID.
	HeaderRequestID = "X-Tosca-Request-Id"

	// DefaultWellKnownName is the /.well-known/ entry redirecting to the descriptor.
	DefaultWellKnownName = "tosca"

	// DefaultMaxBodySize bounds CBOR request bodies.
	DefaultMaxBodySize = 64 << 10
)

// Dispatcher processes one request. *dispatch.Engine implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *wire.Request) *wire.Response
}

// RequestBody is the CBOR body of a request carrying typed values.
type RequestBody struct {
	Params     map[string]value.Value `cbor:"1,keyasint,omitempty"`
	Positional []value.Value          `cbor:"2,keyasint,omitempty"`
}

// Handler serves a device over HTTP.
//
// GET / returns the descriptor wire form and /.well-known/<name> redirects
// there. Every other path must start with the descriptor's main route; the
// rest is the route path handed to the dispatcher, query values become named
// text values and a CBOR body supplies typed values.
type Handler struct {
	engine       Dispatcher
	desc         *descriptor.Descriptor
	mainRoute    string
	wellKnown    string
	maxBodySize  int64
	maxFrameSize uint32

	logger *slog.Logger
	events *log.Emitter
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithWellKnownName changes the /.well-known/ entry.
func WithWellKnownName(name string) HandlerOption {
	return func(h *Handler) {
		if name != "" {
			h.wellKnown = name
		}
	}
}

// WithMaxBodySize bounds request bodies.
func WithMaxBodySize(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodySize = n
		}
	}
}

// WithHandlerLogger sets the operational logger.
func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithProtocolLogger records stream frames and transport errors.
func WithProtocolLogger(l log.Logger) HandlerOption {
	return func(h *Handler) {
		h.events = log.NewEmitter(l, log.RoleDevice, h.desc.Identity())
	}
}

// NewHandler binds engine to HTTP. desc must be the descriptor engine serves.
func NewHandler(engine Dispatcher, desc *descriptor.Descriptor, opts ...HandlerOption) *Handler {
	h := &Handler{
		engine:       engine,
		desc:         desc,
		mainRoute:    strings.TrimSuffix(desc.MainRoute(), "/"),
		wellKnown:    DefaultWellKnownName,
		maxBodySize:  DefaultMaxBodySize,
		maxFrameSize: DefaultMaxFrameSize,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch p := r.URL.Path; {
	case p == "/":
		h.serveDescriptor(w, r)
		return
	case p == "/.well-known/"+h.wellKnown:
		http.Redirect(w, r, "/", http.StatusPermanentRedirect)
		return
	}

	routePath, ok := h.routePath(r.URL.Path)
	if !ok {
		h.writeResponse(w, &wire.Response{
			Kind:    wire.ResponseOk,
			Status:  wire.StatusNotFound,
			Message: fmt.Sprintf("%s is outside %s", r.URL.Path, h.mainRoute),
		})
		return
	}

	req, err := h.decodeRequest(r, routePath)
	if err != nil {
		h.events.Error("", log.LayerTransport, err, r.URL.Path)
		h.logger.Debug("rejecting request", "path", r.URL.Path, "error", err)
		status := http.StatusBadRequest
		if errors.Is(err, errMethodNotAllowed) {
			status = http.StatusMethodNotAllowed
		}
		h.writeResponseStatus(w, status, &wire.Response{
			ID:      req.ID,
			Kind:    wire.ResponseOk,
			Status:  wire.StatusBadRequest,
			Message: err.Error(),
		})
		return
	}

	resp := h.engine.Dispatch(r.Context(), req)
	if resp.Stream != nil {
		if resp.IsSuccess() {
			h.writeStream(w, resp)
			return
		}
		resp.Stream.Close()
	}
	h.writeResponse(w, resp)
}

func (h *Handler) serveDescriptor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data := h.desc.WireForm()
	w.Header().Set("Content-Type", ContentTypeCBOR)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("ETag", strconv.Quote(h.desc.Digest()))
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(data); err != nil {
		h.logger.Debug("descriptor write failed", "error", err)
	}
}

// routePath strips the main route from p.
func (h *Handler) routePath(p string) (string, bool) {
	if h.mainRoute == "" {
		return p, true
	}
	rest, ok := strings.CutPrefix(p, h.mainRoute)
	switch {
	case !ok:
		return "", false
	case rest == "" || rest == "/":
		return "/", true
	case strings.HasPrefix(rest, "/"):
		return rest, true
	}
	return "", false
}

var errMethodNotAllowed = errors.New("method not allowed")

// decodeRequest builds the wire request. The returned request is never nil.
func (h *Handler) decodeRequest(r *http.Request, routePath string) (*wire.Request, error) {
	req := &wire.Request{Path: routePath}

	if s := r.Header.Get(HeaderRequestID); s != "" {
		id, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return req, fmt.Errorf("bad %s header: %w", HeaderRequestID, err)
		}
		req.ID = uint32(id)
	}

	method, err := wire.ParseMethod(r.Method)
	if err != nil {
		return req, fmt.Errorf("%w: %v", errMethodNotAllowed, err)
	}
	req.Method = method

	if q := r.URL.Query(); len(q) > 0 {
		req.Query = make(map[string]string, len(q))
		for k, vs := range q {
			if len(vs) > 0 {
				req.Query[k] = vs[0]
			}
		}
	}

	if err := h.decodeBody(r, req); err != nil {
		return req, err
	}
	return req, req.Validate()
}

func (h *Handler) decodeBody(r *http.Request, req *wire.Request) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, ContentTypeCBOR) {
		return fmt.Errorf("unsupported content type %q", ct)
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, h.maxBodySize+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > h.maxBodySize {
		return fmt.Errorf("body exceeds %d bytes", h.maxBodySize)
	}
	if len(data) == 0 {
		return nil
	}

	var body RequestBody
	if err := wire.Unmarshal(data, &body); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	req.Params = body.Params
	req.Positional = body.Positional
	return nil
}

func (h *Handler) writeResponse(w http.ResponseWriter, resp *wire.Response) {
	h.writeResponseStatus(w, HTTPStatus(resp.Status), resp)
}

func (h *Handler) writeResponseStatus(w http.ResponseWriter, status int, resp *wire.Response) {
	data, err := wire.EncodeResponse(resp)
	if err != nil {
		h.logger.Error("encode response", "error", err)
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", ContentTypeCBOR)
	w.Header().Set(HeaderRequestID, strconv.FormatUint(uint64(resp.ID), 10))
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		h.logger.Debug("response write failed", "error", err)
	}
}

func (h *Handler) writeStream(w http.ResponseWriter, resp *wire.Response) {
	w.Header().Set("Content-Type", ContentTypeStream)
	w.Header().Set(HeaderRequestID, strconv.FormatUint(uint64(resp.ID), 10))
	w.WriteHeader(http.StatusOK)

	fw := NewFrameWriterWithMaxSize(flushWriter{w}, h.maxFrameSize)
	if h.events.Enabled() {
		fw.SetLogger(h.events, uuid.NewString())
	}
	// Headers are sent; a failure can only cut the stream short, which the
	// reader sees as a truncated stream.
	if err := writeStream(fw, resp); err != nil {
		h.events.Error("", log.LayerTransport, err, "stream")
		h.logger.Warn("stream aborted", "error", err)
	}
}

// flushWriter pushes every frame to the client.
type flushWriter struct {
	w http.ResponseWriter
}

func (f flushWriter) Write(p []byte) (int, error) {
	return f.w.Write(p)
}

func (f flushWriter) Flush() {
	if fl, ok := f.w.(http.Flusher); ok {
		fl.Flush()
	}
}

// HTTPStatus maps a wire status to the HTTP status of its response.
func HTTPStatus(s wire.Status) int {
	switch s {
	case wire.StatusSuccess:
		return http.StatusOK
	case wire.StatusNotFound:
		return http.StatusNotFound
	case wire.StatusBadParameters, wire.StatusBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
