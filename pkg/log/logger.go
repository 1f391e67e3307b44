package log

import "time"

// Logger is the interface applications implement to receive protocol log events.
// Pass nil or NoopLogger to disable logging.
type Logger interface {
	// Log records a protocol event. Implementations must be thread-safe.
	// The event should be processed quickly or queued; blocking affects performance.
	Log(event Event)
}

// NoopLogger discards all events. Use when logging is disabled.
// NoopLogger is safe for concurrent use and usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// Compile-time interface satisfaction check.
var _ Logger = NoopLogger{}

// Emitter stamps events with a role and device before passing them to a
// Logger. A nil *Emitter or a nil Logger discards everything.
type Emitter struct {
	logger   Logger
	role     Role
	deviceID string
	now      func() time.Time
}

// NewEmitter returns an Emitter for the given local role and device.
func NewEmitter(logger Logger, role Role, deviceID string) *Emitter {
	return &Emitter{logger: logger, role: role, deviceID: deviceID, now: time.Now}
}

// Enabled reports whether events reach a logger.
func (e *Emitter) Enabled() bool {
	if e == nil || e.logger == nil {
		return false
	}
	_, noop := e.logger.(NoopLogger)
	return !noop
}

// Emit fills the common fields and logs event.
func (e *Emitter) Emit(event Event) {
	if !e.Enabled() {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now()
	}
	event.LocalRole = e.role
	if event.DeviceID == "" {
		event.DeviceID = e.deviceID
	}
	e.logger.Log(event)
}

// State logs a state transition.
func (e *Emitter) State(exchangeID string, layer Layer, entity StateEntity, oldState, newState, reason string) {
	e.Emit(Event{
		ExchangeID: exchangeID,
		Layer:      layer,
		Category:   CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

// Error logs an error.
func (e *Emitter) Error(exchangeID string, layer Layer, err error, context string) {
	e.Emit(Event{
		ExchangeID: exchangeID,
		Layer:      layer,
		Category:   CategoryError,
		Error: &ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: context,
		},
	})
}
