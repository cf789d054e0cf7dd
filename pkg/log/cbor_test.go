package log

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
)

func TestEventRoundTrip(t *testing.T) {
	observe := uint32(7)
	cf := uint16(112)
	code := 132
	ts := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)

	tests := []struct {
		name  string
		event Event
	}{
		{
			name: "notification",
			event: Event{
				Timestamp: ts,
				SessionID: "session-1",
				ServerID:  101,
				Direction: DirectionOut,
				Layer:     LayerObserve,
				Category:  CategoryMessage,
				Message: &MessageEvent{
					Type:          MessageTypeNotification,
					Code:          69,
					MessageID:     4,
					Token:         []byte{1, 2, 3},
					ContentFormat: &cf,
					Observe:       &observe,
					PayloadSize:   20,
				},
			},
		},
		{
			name: "state change",
			event: Event{
				Timestamp: ts,
				SessionID: "session-1",
				Layer:     LayerObserve,
				Category:  CategoryState,
				StateChange: &StateChangeEvent{
					Entity:   StateEntityObservation,
					OldState: "ACTIVE",
					NewState: "CANCELED",
					Reason:   "reset",
					Path:     "/3303/0/5700",
				},
			},
		},
		{
			name: "error",
			event: Event{
				Timestamp: ts,
				SessionID: "session-2",
				Layer:     LayerRouter,
				Category:  CategoryError,
				Error: &ErrorEventData{
					Layer:   LayerRouter,
					Message: "not found",
					Code:    &code,
					Context: "GET /9",
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeEvent(tt.event)
			if err != nil {
				t.Fatalf("EncodeEvent: %v", err)
			}
			got, err := DecodeEvent(data)
			if err != nil {
				t.Fatalf("DecodeEvent: %v", err)
			}
			if !got.Timestamp.Equal(tt.event.Timestamp) {
				t.Errorf("Timestamp: got %v, want %v", got.Timestamp, tt.event.Timestamp)
			}
			if got.SessionID != tt.event.SessionID || got.ServerID != tt.event.ServerID {
				t.Errorf("ids: got %q/%d", got.SessionID, got.ServerID)
			}
			if (got.Message == nil) != (tt.event.Message == nil) {
				t.Fatalf("Message presence mismatch")
			}
			if got.Message != nil {
				if !bytes.Equal(got.Message.Token, tt.event.Message.Token) {
					t.Errorf("Token: got %x", got.Message.Token)
				}
				if *got.Message.Observe != observe || *got.Message.ContentFormat != cf {
					t.Errorf("options not preserved")
				}
			}
			if got.StateChange != nil && *got.StateChange != *tt.event.StateChange {
				t.Errorf("StateChange: got %+v", got.StateChange)
			}
			if got.Error != nil && *got.Error.Code != code {
				t.Errorf("Error code: got %d", *got.Error.Code)
			}
		})
	}
}

func TestStreamEncoding(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for i := 0; i < 3; i++ {
		if err := enc.Encode(Event{SessionID: "s", ServerID: uint16(i + 1)}); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	dec := NewDecoder(&buf)
	for i := 0; i < 3; i++ {
		var ev Event
		if err := dec.Decode(&ev); err != nil {
			t.Fatalf("Decode %d: %v", i, err)
		}
		if ev.ServerID != uint16(i+1) {
			t.Errorf("event %d: ServerID = %d", i, ev.ServerID)
		}
	}
}

func TestDecodeLimits(t *testing.T) {
	nested := bytes.Repeat([]byte{0xa1, 0x01}, MaxEventNesting+2)
	nested = append(nested, 0x00)

	wide := []byte{0xb8, MaxEventPairs + 1}
	for i := 0; i <= MaxEventPairs; i++ {
		wide = append(wide, 0x18, byte(i+24), 0x00)
	}

	long := append([]byte{0x98, MaxEventElements + 1}, make([]byte, MaxEventElements+1)...)

	tests := []struct {
		name  string
		data  []byte
		check func(error) bool
	}{
		{"nesting", nested, func(err error) bool { var e *cbor.MaxNestedLevelError; return errors.As(err, &e) }},
		{"map pairs", wide, func(err error) bool { var e *cbor.MaxMapPairsError; return errors.As(err, &e) }},
		{"array elements", long, func(err error) bool { var e *cbor.MaxArrayElementsError; return errors.As(err, &e) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEvent(tt.data)
			if err == nil || !tt.check(err) {
				t.Fatalf("DecodeEvent: got %v, want limit error", err)
			}
		})
	}
}

func TestReaderStopsAtOversizedRecord(t *testing.T) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf).Encode(Event{SessionID: "s", ServerID: 1}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	buf.Write(bytes.Repeat([]byte{0xa1, 0x01}, MaxEventNesting+2))
	buf.WriteByte(0x00)

	r := NewStreamReader(io.NopCloser(&buf), Filter{})
	if _, err := r.Next(); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if _, err := r.Next(); err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("second record: got %v, want decode error", err)
	}
}
