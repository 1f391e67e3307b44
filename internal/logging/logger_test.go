package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tosca-iot/tosca-go/internal/config"
	"github.com/tosca-iot/tosca-go/pkg/log"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LogConfig{Level: "warn", Format: "json"}, "tosca-device", &buf)

	logger.Info("hidden")
	logger.Warn("shown", "device", "abc")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "tosca-device", entry["service"])
	assert.Equal(t, "abc", entry["device"])
}

func TestTextLogger(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(config.LogConfig{}, "", &buf).Info("hello", "n", 1)
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "n=1")
	assert.NotContains(t, buf.String(), "service=")
}

func TestProtocolLogger(t *testing.T) {
	pl, closeFn, err := Protocol(config.LogConfig{Level: "info"}, nil)
	require.NoError(t, err)
	assert.IsType(t, log.NoopLogger{}, pl)
	assert.NoError(t, closeFn())

	path := filepath.Join(t.TempDir(), "capture.tlog")
	var buf bytes.Buffer
	pl, closeFn, err = Protocol(config.LogConfig{Level: "debug", ProtocolFile: path}, NewWithWriter(config.LogConfig{Level: "debug"}, "", &buf))
	require.NoError(t, err)
	assert.IsType(t, &log.MultiLogger{}, pl)
	pl.Log(log.Event{DeviceID: "dev-1", Layer: log.LayerTransport, Category: log.CategoryMessage})
	require.NoError(t, closeFn())

	r, err := log.NewReader(path)
	require.NoError(t, err)
	defer r.Close()
	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "dev-1", ev.DeviceID)
	assert.NotEmpty(t, buf.String())
}
