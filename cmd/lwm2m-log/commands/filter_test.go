package commands

import (
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/lwm2m-go/pkg/log"
)

func readAll(t *testing.T, path string) []log.Event {
	t.Helper()
	reader, err := log.NewReader(path)
	require.NoError(t, err)
	defer reader.Close()

	var events []log.Event
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return events
		}
		require.NoError(t, err)
		events = append(events, event)
	}
}

func TestFilterBySession(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC)
	path := createTestLogFile(t, []log.Event{
		{Timestamp: ts, SessionID: "run-1", Category: log.CategoryMessage},
		{Timestamp: ts, SessionID: "run-2", Category: log.CategoryMessage},
		{Timestamp: ts, SessionID: "run-1", Category: log.CategoryMessage},
	})
	out := filepath.Join(t.TempDir(), "filtered.llog")

	n, err := RunFilter(path, FilterOptions{Output: out, SessionID: "run-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	events := readAll(t, out)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, "run-1", e.SessionID)
	}
}

func TestFilterByServer(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC)
	path := createTestLogFile(t, []log.Event{
		{Timestamp: ts, ServerID: 101},
		{Timestamp: ts, ServerID: 102},
		{Timestamp: ts, ServerID: 101},
		{Timestamp: ts},
	})
	out := filepath.Join(t.TempDir(), "filtered.llog")

	n, err := RunFilter(path, FilterOptions{Output: out, ServerID: 102})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, uint16(102), readAll(t, out)[0].ServerID)
}

func TestFilterByTimeRange(t *testing.T) {
	base := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, []log.Event{
		{Timestamp: base},
		{Timestamp: base.Add(30 * time.Minute)},
		{Timestamp: base.Add(90 * time.Minute)},
	})
	out := filepath.Join(t.TempDir(), "filtered.llog")

	n, err := RunFilter(path, FilterOptions{
		Output:    out,
		TimeStart: "2026-01-28T10:15:00Z",
		TimeEnd:   "2026-01-28T11:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, readAll(t, out)[0].Timestamp.Equal(base.Add(30*time.Minute)))
}

func TestFilterByLayerDirectionCategory(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, []log.Event{
		{Timestamp: ts, Layer: log.LayerRouter, Direction: log.DirectionIn, Category: log.CategoryMessage},
		{Timestamp: ts, Layer: log.LayerObserve, Direction: log.DirectionOut, Category: log.CategoryMessage},
		{Timestamp: ts, Layer: log.LayerObserve, Direction: log.DirectionOut, Category: log.CategoryState},
		{Timestamp: ts, Layer: log.LayerObserve, Direction: log.DirectionIn, Category: log.CategoryMessage},
	})
	out := filepath.Join(t.TempDir(), "filtered.llog")

	n, err := RunFilter(path, FilterOptions{
		Output:    out,
		Layer:     "observe",
		Direction: "out",
		Category:  "message",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFilterInvalidOptions(t *testing.T) {
	path := createTestLogFile(t, nil)
	out := filepath.Join(t.TempDir(), "filtered.llog")

	for _, opts := range []FilterOptions{
		{Output: out, TimeStart: "yesterday"},
		{Output: out, TimeEnd: "tomorrow"},
		{Output: out, Layer: "transport"},
		{Output: out, Direction: "up"},
		{Output: out, Category: "control"},
	} {
		_, err := RunFilter(path, opts)
		assert.Error(t, err, "options %+v", opts)
	}
}
