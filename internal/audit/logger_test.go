package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEvent(t *testing.T, buf *bytes.Buffer) Event {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	require.True(t, strings.HasPrefix(line, "AUDIT: "), line)
	var event Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "AUDIT: ")), &event))
	return event
}

func TestLogger_LogSettlement(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(log.New(&buf, "", 0))

	logger.LogSettlement("session_charge", "ses_1", "client", "provider", 1600, 480, 1120)

	event := decodeEvent(t, &buf)
	assert.Equal(t, "SETTLEMENT", event.EventType)
	assert.Equal(t, "ses_1", event.EntityID)
	assert.Equal(t, int64(1600), event.Amount)
	details := event.Details.(map[string]any)
	assert.Equal(t, "provider", details["payee"])
	assert.Equal(t, float64(480), details["platform_fee"])
}

func TestLogger_LogInvariantViolation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(log.New(&buf, "", 0))

	logger.LogInvariantViolation("acct", 1000, 900)

	event := decodeEvent(t, &buf)
	assert.Equal(t, "INVARIANT_VIOLATION", event.EventType)
	assert.Equal(t, int64(100), event.Amount)
	assert.Equal(t, "PAYOUT_HOLD", event.Status)
}

func TestLogger_LogError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(log.New(&buf, "", 0))

	logger.LogError("po_1", "acct", errors.New("gateway down"))

	event := decodeEvent(t, &buf)
	assert.Equal(t, "FAILED", event.Status)
	assert.Equal(t, "gateway down", event.Details.(map[string]any)["error"])
}

func TestLogger_NilIsSilent(t *testing.T) {
	var logger *Logger
	assert.NotPanics(t, func() { logger.LogOperation("x", "y", "NOOP", "") })
}
