package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/tosca-iot/tosca-go/internal/config"
	"github.com/tosca-iot/tosca-go/pkg/log"
)

// New creates the operational logger described by cfg. Output "stdout"
// writes to standard output, anything else to standard error.
func New(cfg config.LogConfig, service string) *slog.Logger {
	var out io.Writer = os.Stderr
	if strings.EqualFold(cfg.Output, "stdout") {
		out = os.Stdout
	}
	return NewWithWriter(cfg, service, out)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(cfg config.LogConfig, service string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	if service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", service)})
	}
	return slog.New(handler)
}

// ParseLevel converts a level name to a slog.Level. Unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Protocol builds the protocol event logger. Events go to the capture file
// named by cfg.ProtocolFile and, at debug level, to logger. The returned
// close function flushes the file; it is never nil.
func Protocol(cfg config.LogConfig, logger *slog.Logger) (log.Logger, func() error, error) {
	var sinks []log.Logger
	closeFn := func() error { return nil }

	if cfg.ProtocolFile != "" {
		fl, err := log.NewFileLogger(cfg.ProtocolFile)
		if err != nil {
			return nil, closeFn, err
		}
		sinks = append(sinks, fl)
		closeFn = fl.Close
	}
	if logger != nil && ParseLevel(cfg.Level) <= slog.LevelDebug {
		sinks = append(sinks, log.NewSlogAdapter(logger))
	}

	switch len(sinks) {
	case 0:
		return log.NoopLogger{}, closeFn, nil
	case 1:
		return sinks[0], closeFn, nil
	default:
		return log.NewMultiLogger(sinks...), closeFn, nil
	}
}
