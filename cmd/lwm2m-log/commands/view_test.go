package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/plgd-dev/go-coap/v3/message/codes"

	"github.com/mash-protocol/lwm2m-go/pkg/log"
	"github.com/mash-protocol/lwm2m-go/pkg/wire"
)

func TestFormatRequestEvent(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	event := log.Event{
		Timestamp: ts,
		SessionID: "abc12345-6789-0123-4567-890abcdef012",
		ServerID:  101,
		Direction: log.DirectionIn,
		Layer:     log.LayerRouter,
		Category:  log.CategoryMessage,
		Message: &log.MessageEvent{
			Type:      log.MessageTypeRequest,
			CoAPType:  wire.Confirmable,
			Code:      uint8(codes.GET),
			MessageID: 42,
			Token:     []byte{0xca, 0xfe},
			Path:      "/3303/0/5700",
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	for _, want := range []string{
		"2026-01-28T10:15:32.123456Z",
		"[abc12345]",
		"[srv:101]",
		"IN  ROUTER REQUEST",
		"CON GET mid=42 token=cafe",
		"Path: /3303/0/5700",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestFormatNotificationEvent(t *testing.T) {
	obs := uint32(7)
	cf := uint16(0)
	elapsed := 1500 * time.Microsecond
	event := log.Event{
		Timestamp: time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC),
		SessionID: "s",
		ServerID:  101,
		Direction: log.DirectionOut,
		Layer:     log.LayerObserve,
		Category:  log.CategoryMessage,
		Message: &log.MessageEvent{
			Type:           log.MessageTypeNotification,
			CoAPType:       wire.NonConfirmable,
			Code:           uint8(codes.Content),
			MessageID:      9,
			Observe:        &obs,
			ContentFormat:  &cf,
			PayloadSize:    4,
			ProcessingTime: &elapsed,
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	for _, want := range []string{
		"[s]",
		"OUT OBSERVE NOTIFICATION",
		"NON 2.05 Content mid=9",
		"Observe: 7",
		"Content-Format: 0",
		"Payload: 4 bytes",
		"Duration: 1.500ms",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
	if strings.Contains(output, "token=") {
		t.Errorf("empty token should be omitted, got:\n%s", output)
	}
}

func TestFormatStateChangeEvent(t *testing.T) {
	event := log.Event{
		Timestamp: time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC),
		Direction: log.DirectionOut,
		Layer:     log.LayerObserve,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityObservation,
			OldState: "ACTIVE",
			NewState: "CANCELED",
			Reason:   "canceled by server",
			Path:     "/3303/0",
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	for _, want := range []string{
		"[srv:-]",
		"State",
		"Path: /3303/0",
		"ACTIVE -> CANCELED",
		"Reason: canceled by server",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestFormatStateChangeWithoutOldState(t *testing.T) {
	var buf bytes.Buffer
	formatStateChangeDetails(&buf, &log.StateChangeEvent{Entity: log.StateEntityObservation, NewState: "ACTIVE"})
	if !strings.Contains(buf.String(), "  -> ACTIVE\n") {
		t.Errorf("got:\n%s", buf.String())
	}
}

func TestFormatErrorEvent(t *testing.T) {
	code := int(codes.NotFound)
	event := log.Event{
		Timestamp: time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC),
		Layer:     log.LayerRouter,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerRouter,
			Message: "instance not found",
			Code:    &code,
			Context: "GET /3303/9",
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	for _, want := range []string{
		"Error",
		"Layer: ROUTER",
		"Message: instance not found",
		"Code: 4.04 NotFound",
		"Context: GET /3303/9",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Nanosecond, "0.500us"},
		{2 * time.Millisecond, "2.000ms"},
		{1500 * time.Millisecond, "1.500s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestParseFlags(t *testing.T) {
	if l, err := ParseLayerFlag("Observe"); err != nil || l != log.LayerObserve {
		t.Errorf("ParseLayerFlag: got %v, %v", l, err)
	}
	if _, err := ParseLayerFlag("wire"); err == nil {
		t.Error("expected error for unknown layer")
	}
	if d, err := ParseDirectionFlag("OUT"); err != nil || d != log.DirectionOut {
		t.Errorf("ParseDirectionFlag: got %v, %v", d, err)
	}
	if _, err := ParseDirectionFlag("sideways"); err == nil {
		t.Error("expected error for unknown direction")
	}
	if c, err := ParseCategoryFlag("state"); err != nil || c != log.CategoryState {
		t.Errorf("ParseCategoryFlag: got %v, %v", c, err)
	}
	if _, err := ParseCategoryFlag("control"); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestRunViewFilters(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, ServerID: 101, Direction: log.DirectionIn, Layer: log.LayerRouter, Category: log.CategoryMessage,
			Message: &log.MessageEvent{Type: log.MessageTypeRequest, Path: "/3/0"}},
		{Timestamp: ts, ServerID: 102, Direction: log.DirectionIn, Layer: log.LayerRouter, Category: log.CategoryMessage,
			Message: &log.MessageEvent{Type: log.MessageTypeRequest, Path: "/3/0/1"}},
		{Timestamp: ts, ServerID: 101, Direction: log.DirectionOut, Layer: log.LayerObserve, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityObservation, NewState: "ACTIVE", Path: "/3303/0"}},
	}
	path := createTestLogFile(t, events)

	var all bytes.Buffer
	if err := RunView(path, ViewFilter{}, &all); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	if n := strings.Count(all.String(), "2026-01-28T10:00:00.000000Z"); n != 3 {
		t.Errorf("expected 3 events, got %d", n)
	}

	layer := log.LayerRouter
	var byLayer bytes.Buffer
	if err := RunView(path, ViewFilter{Layer: &layer, ServerID: 101}, &byLayer); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	output := byLayer.String()
	if !strings.Contains(output, "Path: /3/0\n") {
		t.Errorf("expected /3/0 request, got:\n%s", output)
	}
	if strings.Contains(output, "/3/0/1") || strings.Contains(output, "/3303/0") {
		t.Errorf("unexpected events in output:\n%s", output)
	}

	cat := log.CategoryState
	dir := log.DirectionOut
	var byCategory bytes.Buffer
	if err := RunView(path, ViewFilter{Category: &cat, Direction: &dir}, &byCategory); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	if !strings.Contains(byCategory.String(), "-> ACTIVE") || strings.Contains(byCategory.String(), "REQUEST") {
		t.Errorf("unexpected output:\n%s", byCategory.String())
	}
}

func TestRunViewMissingFile(t *testing.T) {
	var buf bytes.Buffer
	if err := RunView("/nonexistent/file.llog", ViewFilter{}, &buf); err == nil {
		t.Error("expected error for missing file")
	}
}
