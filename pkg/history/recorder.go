package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/tosca-iot/tosca-go/pkg/events"
	"github.com/tosca-iot/tosca-go/pkg/value"
)

// Measurement is the InfluxDB measurement events are written to.
const Measurement = "tosca_event"

// Point tags and fields.
const (
	TagDevice = "device"
	TagEvent  = "event"
	TagKind   = "kind"

	FieldValue = "value"
	FieldState = "state"
	FieldText  = "text"
	FieldSeq   = "seq"
	FieldEpoch = "epoch"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultBatchSize      = 100
	defaultFlushInterval  = 10 * time.Second
)

// Config configures the InfluxDB connection.
type Config struct {
	Enabled       bool
	URL           string
	Token         string
	Org           string
	Bucket        string
	BatchSize     int
	FlushInterval time.Duration
}

// PointWriter is the subset of the InfluxDB write API the recorder uses.
type PointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithErrorHandler sets the callback for asynchronous write failures.
func WithErrorHandler(fn func(error)) Option {
	return func(r *Recorder) {
		r.onError = fn
	}
}

// Recorder writes events as points.
//
// All methods are safe for concurrent use.
type Recorder struct {
	writer  PointWriter
	client  influxdb2.Client
	logger  *slog.Logger
	onError func(error)

	mu     sync.RWMutex
	closed bool
}

// Connect opens the InfluxDB client, verifies the server is healthy and
// returns a recorder backed by the batched write API.
func Connect(ctx context.Context, cfg Config, opts ...Option) (*Recorder, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	flush := cfg.FlushInterval
	if flush <= 0 {
		flush = defaultFlushInterval
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batch)). // #nosec G115 -- positive, checked above
			SetFlushInterval(uint(flush.Milliseconds())))

	pctx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(pctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	r := NewRecorder(writeAPI, opts...)
	r.client = client
	go r.handleWriteErrors(writeAPI.Errors())
	return r, nil
}

// NewRecorder returns a recorder writing to w.
func NewRecorder(w PointWriter, opts ...Option) *Recorder {
	r := &Recorder{
		writer: w,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) handleWriteErrors(errs <-chan error) {
	for err := range errs {
		r.logger.Warn("history write failed", "error", err)
		if r.onError != nil {
			r.onError(err)
		}
	}
}

// Record queues ev. It does not block on the network.
func (r *Recorder) Record(ev events.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	p, err := Point(ev)
	if err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}
	r.writer.WritePoint(p)
	return nil
}

// Drain records every event of sub until it ends and returns why it ended.
func (r *Recorder) Drain(sub *events.Subscription) error {
	for ev := range sub.C() {
		if err := r.Record(ev); err != nil {
			r.logger.Debug("event not recorded", "device", ev.Device, "event", ev.Name, "error", err)
		}
	}
	return sub.Err()
}

// Flush writes all buffered points.
func (r *Recorder) Flush() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.closed {
		r.writer.Flush()
	}
}

// Close flushes pending points and releases the client. Closing twice is a
// no-op.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.writer.Flush()
	if r.client != nil {
		r.client.Close()
	}
	return nil
}

// Point converts ev into an InfluxDB point stamped with the event time.
func Point(ev events.Event) (*write.Point, error) {
	fields := map[string]any{
		FieldSeq:   int64(ev.Seq), // #nosec G115 -- sequence numbers stay far below 2^63
		FieldEpoch: ev.Epoch,
	}

	v := ev.Payload
	switch v.Kind() {
	case value.KindBool:
		b, _ := v.Bool()
		fields[FieldState] = b
	case value.KindInt, value.KindFloat:
		f, _ := v.Float()
		fields[FieldValue] = f
	case value.KindText:
		s, _ := v.Text()
		fields[FieldText] = s
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPayload, v.Kind())
	}

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(Measurement, map[string]string{
		TagDevice: ev.Device,
		TagEvent:  ev.Name,
		TagKind:   v.Kind().String(),
	}, fields, ts), nil
}
