package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tosca-iot/tosca-go/pkg/descriptor"
	"github.com/tosca-iot/tosca-go/pkg/log"
	"github.com/tosca-iot/tosca-go/pkg/route"
	"github.com/tosca-iot/tosca-go/pkg/wire"
)

// Client errors.
var (
	// ErrUnexpectedResponse indicates a reply that is not part of the binding,
	// e.g. an error page from a proxy.
	ErrUnexpectedResponse = errors.New("unexpected response")

	// ErrDocumentTooLarge indicates a descriptor larger than MaxDocumentSize.
	ErrDocumentTooLarge = errors.New("descriptor document too large")
)

// MaxDocumentSize bounds fetched descriptor documents.
const MaxDocumentSize = 1 << 20

// DefaultRequestTimeout applies when the context has no deadline.
const DefaultRequestTimeout = 10 * time.Second

// Client sends requests to devices over HTTP.
type Client struct {
	http         *http.Client
	timeout      time.Duration
	maxFrameSize uint32
	nextID       atomic.Uint32

	logger *slog.Logger
	events *log.Emitter
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRequestTimeout sets the timeout used when ctx has no deadline.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithClientLogger sets the operational logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClientProtocolLogger records requests and responses.
func WithClientProtocolLogger(l log.Logger) ClientOption {
	return func(c *Client) {
		c.events = log.NewEmitter(l, log.RoleController, "")
	}
}

// NewClient creates a client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:         http.DefaultClient,
		timeout:      DefaultRequestTimeout,
		maxFrameSize: DefaultMaxFrameSize,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestURL builds the URL of req on a device at baseURL whose routes live
// under mainRoute. Segments are appended as escaped path segments and Query
// becomes the query string.
func RequestURL(baseURL, mainRoute string, req *wire.Request) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("bad base url: %w", err)
	}
	p := route.Join(mainRoute, req.Path)
	for _, seg := range req.Segments {
		p += "/" + url.PathEscape(seg)
	}
	u = u.JoinPath(p)
	if len(req.Query) > 0 {
		q := make(url.Values, len(req.Query))
		for k, v := range req.Query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Do sends req and decodes the response. Protocol failures are returned as
// responses with a failure status, not as errors; the error is set only when
// no well-formed response arrived. A successful stream response carries a
// StreamReader in Stream, which the caller must close.
func (c *Client) Do(ctx context.Context, baseURL, mainRoute string, req *wire.Request) (*wire.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.ID == 0 {
		req.ID = c.nextID.Add(1)
	}
	target, err := RequestURL(baseURL, mainRoute, req)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if len(req.Params) > 0 || len(req.Positional) > 0 {
		data, err := wire.Marshal(RequestBody{Params: req.Params, Positional: req.Positional})
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	ctx, cancel := c.withTimeout(ctx)
	httpReq, err := http.NewRequestWithContext(ctx, req.Method.String(), target, body)
	if err != nil {
		cancel()
		return nil, err
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", ContentTypeCBOR)
	}
	httpReq.Header.Set("Accept", ContentTypeCBOR+", "+ContentTypeStream)
	httpReq.Header.Set(HeaderRequestID, strconv.FormatUint(uint64(req.ID), 10))

	exchangeID := ""
	if c.events.Enabled() {
		exchangeID = uuid.NewString()
	}
	c.logRequest(exchangeID, target, req)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		cancel()
		c.events.Error(exchangeID, log.LayerTransport, err, target)
		return nil, err
	}

	resp, err := c.readResponse(httpResp, exchangeID, cancel)
	if err != nil {
		c.events.Error(exchangeID, log.LayerTransport, err, target)
		return nil, err
	}
	c.logResponse(exchangeID, resp)
	return resp, nil
}

// readResponse takes ownership of httpResp and cancel. For streams both are
// released when the StreamReader is closed.
func (c *Client) readResponse(httpResp *http.Response, exchangeID string, cancel context.CancelFunc) (*wire.Response, error) {
	mediaType, _, _ := mime.ParseMediaType(httpResp.Header.Get("Content-Type"))

	if mediaType == ContentTypeStream {
		fr := NewFrameReaderWithMaxSize(httpResp.Body, c.maxFrameSize)
		fr.SetLogger(c.events, exchangeID)
		header, err := fr.ReadFrame()
		if err != nil {
			httpResp.Body.Close()
			cancel()
			return nil, fmt.Errorf("stream header: %w", err)
		}
		resp, err := wire.DecodeResponse(header)
		if err != nil {
			httpResp.Body.Close()
			cancel()
			return nil, err
		}
		sr := NewStreamReader(cancelOnClose{httpResp.Body, cancel}, c.maxFrameSize)
		sr.fr.SetLogger(c.events, exchangeID)
		resp.Stream = sr
		return resp, nil
	}

	defer cancel()
	defer httpResp.Body.Close()

	if mediaType != ContentTypeCBOR {
		return nil, fmt.Errorf("%w: HTTP %d (%s)", ErrUnexpectedResponse, httpResp.StatusCode, mediaType)
	}
	data, err := io.ReadAll(io.LimitReader(httpResp.Body, MaxDocumentSize))
	if err != nil {
		return nil, err
	}
	return wire.DecodeResponse(data)
}

// FetchDocument downloads and decodes a descriptor document.
func (c *Client) FetchDocument(ctx context.Context, url string) (*descriptor.Document, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", ContentTypeCBOR)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrUnexpectedResponse, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDocumentSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxDocumentSize {
		return nil, ErrDocumentTooLarge
	}

	doc, err := descriptor.Decode(data)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("fetched descriptor", "url", url, "device", doc.Device.Identity, "digest", doc.Digest())
	return doc, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) logRequest(exchangeID, target string, req *wire.Request) {
	if !c.events.Enabled() {
		return
	}
	method := req.Method
	c.events.Emit(log.Event{
		ExchangeID: exchangeID,
		Direction:  log.DirectionOut,
		Layer:      log.LayerWire,
		Category:   log.CategoryMessage,
		RemoteAddr: target,
		Message: &log.MessageEvent{
			Type:      log.MessageTypeRequest,
			RequestID: req.ID,
			Method:    &method,
			Path:      req.Path,
		},
	})
}

func (c *Client) logResponse(exchangeID string, resp *wire.Response) {
	if !c.events.Enabled() {
		return
	}
	status := resp.Status
	kind := resp.Kind
	msg := &log.MessageEvent{
		Type:      log.MessageTypeResponse,
		RequestID: resp.ID,
		Status:    &status,
		Kind:      &kind,
		Code:      resp.Code,
	}
	if resp.Payload != nil {
		msg.Payload = resp.Payload.String()
	}
	c.events.Emit(log.Event{
		ExchangeID: exchangeID,
		Direction:  log.DirectionIn,
		Layer:      log.LayerWire,
		Category:   log.CategoryMessage,
		Message:    msg,
	})
}

// cancelOnClose releases the request context with the body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
