package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLogLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLogLevel("WARN"))
	assert.Equal(t, ErrorLevel, ParseLogLevel("error"))
	assert.Equal(t, InfoLevel, ParseLogLevel("info"))
	assert.Equal(t, InfoLevel, ParseLogLevel("nonsense"))
}

func decodeLogLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	return line
}

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("event_type", "STOCK_LOW_ALERT").Info("event emitted")

	line := decodeLogLine(t, &buf)
	assert.Equal(t, "event emitted", line["msg"])
	assert.Equal(t, "STOCK_LOW_ALERT", line["event_type"])
	assert.Equal(t, "INFO", line["level"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WarnLevel, &buf)

	logger.Info("should be dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("should be kept")
	assert.NotZero(t, buf.Len())
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithError(errors.New("connection refused")).Error("delivery failed")

	line := decodeLogLine(t, &buf)
	assert.Equal(t, "connection refused", line["error"])
}

func TestFromContextCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = WithRequestID(ctx, "req-123")

	FromContext(ctx).Info("handling request")

	line := decodeLogLine(t, &buf)
	assert.Equal(t, "req-123", line["request_id"])
}

func TestFromContextWithoutLogger(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
}
