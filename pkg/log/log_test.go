package log

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tosca-iot/tosca-go/pkg/wire"
)

// mockLogger records events for testing
type mockLogger struct {
	mu     sync.Mutex
	events []Event
}

func (m *mockLogger) Log(event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func createTestLogFile(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.tlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test log: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return path
}

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	var out []Event
	for {
		event, err := r.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		out = append(out, event)
	}
}

func TestEncodeDecodeMessageEvent(t *testing.T) {
	method := wire.MethodPut
	status := wire.StatusHandlerFailure
	kind := wire.ResponseOk
	pt := 1500 * time.Microsecond
	ts := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)

	event := Event{
		Timestamp:  ts,
		ExchangeID: "ex-1",
		Direction:  DirectionOut,
		Layer:      LayerWire,
		Category:   CategoryMessage,
		LocalRole:  RoleDevice,
		DeviceID:   "aabbcc",
		Message: &MessageEvent{
			Type:           MessageTypeResponse,
			RequestID:      9,
			Method:         &method,
			Path:           "/on",
			Status:         &status,
			Kind:           &kind,
			Code:           42,
			ProcessingTime: &pt,
		},
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	got, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if !got.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, ts)
	}
	if got.Message == nil {
		t.Fatal("Message is nil")
	}
	if *got.Message.Method != wire.MethodPut {
		t.Errorf("Method = %v, want PUT", *got.Message.Method)
	}
	if *got.Message.Status != wire.StatusHandlerFailure {
		t.Errorf("Status = %v, want HANDLER_FAILURE", *got.Message.Status)
	}
	if got.Message.Code != 42 {
		t.Errorf("Code = %d, want 42", got.Message.Code)
	}
	if *got.Message.ProcessingTime != pt {
		t.Errorf("ProcessingTime = %v, want %v", *got.Message.ProcessingTime, pt)
	}
	if got.DeviceID != "aabbcc" {
		t.Errorf("DeviceID = %q, want %q", got.DeviceID, "aabbcc")
	}
}

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{DirectionIn.String(), "IN"},
		{Direction(9).String(), "UNKNOWN"},
		{LayerDispatch.String(), "DISPATCH"},
		{CategoryState.String(), "STATE"},
		{RoleController.String(), "CONTROLLER"},
		{MessageTypeEvent.String(), "EVENT"},
		{StateEntitySubscription.String(), "SUBSCRIPTION"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestFileLoggerAndReader(t *testing.T) {
	now := time.Now()
	method := wire.MethodGet
	events := []Event{
		{Timestamp: now, ExchangeID: "a", Layer: LayerTransport, Category: CategoryMessage, Frame: &FrameEvent{Size: 12}},
		{Timestamp: now.Add(time.Second), ExchangeID: "b", Layer: LayerWire, Category: CategoryMessage,
			Message: &MessageEvent{Type: MessageTypeRequest, Method: &method, Path: "/light/on"}},
		{Timestamp: now.Add(2 * time.Second), ExchangeID: "b", Layer: LayerDispatch, Category: CategoryState,
			StateChange: &StateChangeEvent{Entity: StateEntityRequest, OldState: "RECEIVED", NewState: "MATCHED"}},
	}
	path := createTestLogFile(t, events)

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()
	if got := readAll(t, r); len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}

	layer := LayerDispatch
	filtered, err := NewFilteredReader(path, Filter{Layer: &layer})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer filtered.Close()
	got := readAll(t, filtered)
	if len(got) != 1 || got[0].StateChange.NewState != "MATCHED" {
		t.Errorf("layer filter returned %+v", got)
	}

	byPath, err := NewFilteredReader(path, Filter{PathPrefix: "/light"})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer byPath.Close()
	if got := readAll(t, byPath); len(got) != 1 {
		t.Errorf("path filter returned %d events, want 1", len(got))
	}

	start := now.Add(500 * time.Millisecond)
	byTime, err := NewFilteredReader(path, Filter{ExchangeID: "b", TimeStart: &start})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer byTime.Close()
	if got := readAll(t, byTime); len(got) != 2 {
		t.Errorf("time filter returned %d events, want 2", len(got))
	}
}

func TestFileLoggerCloseTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.tlog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	// Logging after close is ignored.
	logger.Log(Event{})
}

func TestFileLoggerConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concurrent.tlog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				logger.Log(Event{Timestamp: time.Now(), Category: CategoryMessage})
			}
		}()
	}
	wg.Wait()
	logger.Close()

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()
	if got := readAll(t, r); len(got) != 200 {
		t.Errorf("got %d events, want 200", len(got))
	}
}

func TestMultiLoggerCallsAll(t *testing.T) {
	m1, m2 := &mockLogger{}, &mockLogger{}
	multi := NewMultiLogger(m1, m2, NoopLogger{})
	multi.Log(Event{ExchangeID: "x"})

	if len(m1.events) != 1 || len(m2.events) != 1 {
		t.Errorf("events = %d/%d, want 1/1", len(m1.events), len(m2.events))
	}
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	adapter := NewSlogAdapter(logger)

	status := wire.StatusNotFound
	adapter.Log(Event{
		ExchangeID: "ex-7",
		Layer:      LayerWire,
		Category:   CategoryMessage,
		Message:    &MessageEvent{Type: MessageTypeResponse, Path: "/nope", Status: &status},
	})

	out := buf.String()
	for _, want := range []string{"exchange_id=ex-7", "msg_type=RESPONSE", "path=/nope", "status=NOT_FOUND"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestEmitter(t *testing.T) {
	mock := &mockLogger{}
	e := NewEmitter(mock, RoleController, "dev-1")
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return fixed }

	e.State("ex", LayerDispatch, StateEntityRequest, "RECEIVED", "MATCHED", "")
	e.Error("ex", LayerTransport, errors.New("boom"), "write")

	if len(mock.events) != 2 {
		t.Fatalf("got %d events, want 2", len(mock.events))
	}
	first := mock.events[0]
	if first.LocalRole != RoleController || first.DeviceID != "dev-1" || !first.Timestamp.Equal(fixed) {
		t.Errorf("common fields not stamped: %+v", first)
	}
	if first.StateChange.NewState != "MATCHED" {
		t.Errorf("NewState = %q, want MATCHED", first.StateChange.NewState)
	}
	if mock.events[1].Error.Message != "boom" {
		t.Errorf("Error.Message = %q, want boom", mock.events[1].Error.Message)
	}
}

func TestEmitterDisabled(t *testing.T) {
	var nilEmitter *Emitter
	if nilEmitter.Enabled() {
		t.Error("nil emitter should be disabled")
	}
	nilEmitter.Emit(Event{})

	if NewEmitter(nil, RoleDevice, "").Enabled() {
		t.Error("emitter without logger should be disabled")
	}
	if NewEmitter(NoopLogger{}, RoleDevice, "").Enabled() {
		t.Error("emitter with NoopLogger should be disabled")
	}
}
