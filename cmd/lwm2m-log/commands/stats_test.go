package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/lwm2m-go/pkg/log"
)

func runStats(t *testing.T, events []log.Event) string {
	t.Helper()
	path := createTestLogFile(t, events)
	var buf bytes.Buffer
	require.NoError(t, RunStats(path, &buf))
	return buf.String()
}

func TestStatsCountsByLayerAndCategory(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	output := runStats(t, []log.Event{
		{Timestamp: ts, Layer: log.LayerRouter, Category: log.CategoryMessage},
		{Timestamp: ts, Layer: log.LayerRouter, Category: log.CategoryMessage},
		{Timestamp: ts, Layer: log.LayerObserve, Category: log.CategoryState},
		{Timestamp: ts, Layer: log.LayerClient, Category: log.CategoryError, Error: &log.ErrorEventData{Message: "boom"}},
	})

	assert.Contains(t, output, "=== LwM2M Protocol Log Statistics ===")
	assert.Contains(t, output, "Total Events: 4")
	assert.Contains(t, output, "ROUTER:        2")
	assert.Contains(t, output, "OBSERVE:       1")
	assert.Contains(t, output, "CLIENT:        1")
	assert.Contains(t, output, "MESSAGE:       2")
	assert.Contains(t, output, "STATE:         1")
	assert.Contains(t, output, "ERROR:         1")
	assert.Contains(t, output, "Errors: 1")
}

func TestStatsMessagesAndCodes(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	output := runStats(t, []log.Event{
		{Timestamp: ts, ServerID: 101, Direction: log.DirectionIn, Message: &log.MessageEvent{Type: log.MessageTypeRequest, Code: uint8(codes.GET)}},
		{Timestamp: ts, ServerID: 101, Direction: log.DirectionOut, Message: &log.MessageEvent{Type: log.MessageTypeResponse, Code: uint8(codes.Content)}},
		{Timestamp: ts, ServerID: 101, Direction: log.DirectionOut, Message: &log.MessageEvent{Type: log.MessageTypeNotification, Code: uint8(codes.Content)}},
		{Timestamp: ts, ServerID: 102, Direction: log.DirectionOut, Message: &log.MessageEvent{Type: log.MessageTypeResponse, Code: uint8(codes.NotFound)}},
		{Timestamp: ts, ServerID: 102, Direction: log.DirectionIn, Message: &log.MessageEvent{Type: log.MessageTypeReset}},
		{Timestamp: ts, ServerID: 101, Direction: log.DirectionOut, Category: log.CategoryState, StateChange: &log.StateChangeEvent{Entity: log.StateEntityObservation, NewState: "ACTIVE"}},
	})

	assert.Contains(t, output, "REQUEST:       1")
	assert.Contains(t, output, "RESPONSE:      2")
	assert.Contains(t, output, "NOTIFICATION:  1")
	assert.Contains(t, output, "RESET:         1")
	assert.Contains(t, output, "2.05:          2")
	assert.Contains(t, output, "4.04:          1")
	assert.Contains(t, output, "IN:            2")
	assert.Contains(t, output, "OUT:           4")
	assert.Contains(t, output, "Servers: 2")
	assert.Contains(t, output, "[101] 1 requests, 1 responses, 1 notifications, 0 resets, 1 observations")
	assert.Contains(t, output, "[102] 0 requests, 1 responses, 0 notifications, 1 resets, 0 observations")
	assert.NotContains(t, output, "Errors:")
}

func TestStatsSessionsAndTimeRange(t *testing.T) {
	base := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	output := runStats(t, []log.Event{
		{Timestamp: base.Add(time.Minute), SessionID: "session-bbbb"},
		{Timestamp: base, SessionID: "session-aaaa"},
		{Timestamp: base.Add(2 * time.Second), SessionID: "session-aaaa"},
		{Timestamp: base.Add(2 * time.Minute), SessionID: "session-bbbb"},
	})

	assert.Contains(t, output, "Time Range: 2026-01-28T10:00:00Z to 2026-01-28T10:02:00Z")
	assert.Contains(t, output, "Duration:   2m0s")
	assert.Contains(t, output, "Sessions: 2")

	first := strings.Index(output, "[session-] 2 events, duration 2s")
	second := strings.Index(output, "[session-] 2 events, duration 1m0s")
	require.NotEqual(t, -1, first, output)
	require.NotEqual(t, -1, second, output)
	assert.Less(t, first, second, "sessions should be ordered by first event")
}

func TestStatsEmptyLog(t *testing.T) {
	output := runStats(t, nil)
	assert.Contains(t, output, "Total Events: 0")
	assert.Contains(t, output, "Sessions: 0")
	assert.NotContains(t, output, "Time Range:")
}

func TestStatsMissingFile(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, RunStats("/nonexistent/file.llog", &buf))
}
