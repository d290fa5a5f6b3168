package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/alecthomas/ioc/internal/logging"
)

func textLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLegacyLevels(t *testing.T) {
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		t.Run(level.String(), func(t *testing.T) {
			buf := &bytes.Buffer{}
			logging.Legacy(textLogger(buf), level).Print("Test message")
			assert.Contains(t, buf.String(), `msg="Test message"`)
			assert.Contains(t, buf.String(), "level="+level.String())
		})
	}
}

func TestLegacyBuffersPartialLines(t *testing.T) {
	buf := &bytes.Buffer{}
	writer := logging.Legacy(textLogger(buf), slog.LevelDebug).Writer()

	_, _ = writer.Write([]byte("go list "))
	_, _ = writer.Write([]byte("-json "))
	assert.Equal(t, "", buf.String())
	_, _ = writer.Write([]byte("./...\n"))
	assert.Contains(t, buf.String(), `msg="go list -json ./..."`)

	buf.Reset()
	_, _ = writer.Write([]byte("one\ntwo\nthree"))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, 2, len(lines))
	assert.NotContains(t, buf.String(), "three")
}

func TestNewJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New(buf, logging.Config{Level: slog.LevelWarn, JSON: true})
	logger.Info("hidden")
	logger.Warn("shown", "bean", "*app.Service")

	var entry map[string]any
	assert.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "*app.Service", entry["bean"])
}

func TestNewText(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New(buf, logging.Config{Level: slog.LevelDebug})
	logger.Debug("Resolved injection site")
	assert.Contains(t, buf.String(), "Resolved injection site")
}
