// Package log provides structured protocol logging.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (transport, wire, dispatch).
// It is separate from operational logging (slog): protocol capture provides
// a complete machine-readable event trace for debugging and analysis.
//
// # Basic Usage
//
// Components accept a Logger:
//
//	// For development: log to console via slog
//	engine := dispatch.New(desc, dispatch.WithLogger(log.NewSlogAdapter(slog.Default())))
//
//	// For production: write to binary file
//	fl, _ := log.NewFileLogger("/var/log/tosca/device.tlog")
//
//	// Both: use MultiLogger
//	logger := log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Transport: Raw frame bytes (FrameEvent)
//   - Wire: Decoded requests, responses and device events (MessageEvent)
//   - Dispatch: Stage transitions of a request (StateChangeEvent)
//
// Errors at any layer have a dedicated event type.
//
// # File Format
//
// Log files use CBOR encoding with .tlog extension. The tosca-log CLI tool
// provides viewing, filtering, and summary capabilities.
package log
