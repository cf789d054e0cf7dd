package log

import (
	"time"

	"github.com/mash-protocol/lwm2m-go/pkg/wire"
)

// Event represents a protocol log event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the client run (UUID).
	SessionID string `cbor:"2,keyasint"`

	// ServerID is the short id of the Server involved, if any.
	ServerID uint16 `cbor:"3,keyasint,omitempty"`

	// Direction indicates message flow.
	Direction Direction `cbor:"4,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"5,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"6,keyasint"`

	// Type-specific payload (one of these will be set).
	Message     *MessageEvent     `cbor:"10,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"12,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which component captured the event.
type Layer uint8

const (
	// LayerRouter is the device-management request router.
	LayerRouter Layer = 0
	// LayerObserve is the observation and notification engine.
	LayerObserve Layer = 1
	// LayerClient is the enclosing client context.
	LayerClient Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerRouter:
		return "ROUTER"
	case LayerObserve:
		return "OBSERVE"
	case LayerClient:
		return "CLIENT"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message.
	CategoryMessage Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MessageEvent captures one CoAP message.
type MessageEvent struct {
	// Type distinguishes request/response/notification/reset.
	Type MessageType `cbor:"1,keyasint"`

	// CoAPType is the CoAP message type (CON/NON/ACK/RST).
	CoAPType wire.Type `cbor:"2,keyasint"`

	// Code is the CoAP method or response code.
	Code uint8 `cbor:"3,keyasint"`

	// MessageID is the CoAP message id.
	MessageID uint16 `cbor:"4,keyasint"`

	// Token correlates requests, responses and notifications.
	Token []byte `cbor:"5,keyasint,omitempty"`

	// Path is the request Uri-Path.
	Path string `cbor:"6,keyasint,omitempty"`

	// ContentFormat is set when the message carried one.
	ContentFormat *uint16 `cbor:"7,keyasint,omitempty"`

	// Observe is the Observe option value, if present.
	Observe *uint32 `cbor:"8,keyasint,omitempty"`

	// PayloadSize is the payload length in bytes.
	PayloadSize int `cbor:"9,keyasint,omitempty"`

	// ProcessingTime is the duration from request receipt to response send (response only).
	// Stored as nanoseconds.
	ProcessingTime *time.Duration `cbor:"10,keyasint,omitempty"`
}

// NewMessageEvent summarises msg.
func NewMessageEvent(mt MessageType, msg *wire.Message) *MessageEvent {
	ev := &MessageEvent{
		Type:        mt,
		CoAPType:    msg.Type,
		Code:        uint8(msg.Code),
		MessageID:   msg.MessageID,
		Token:       msg.Token,
		Path:        msg.Options.Path,
		PayloadSize: len(msg.Payload),
	}
	if msg.Options.HasContentFormat {
		cf := uint16(msg.Options.ContentFormat)
		ev.ContentFormat = &cf
	}
	if msg.Options.HasObserve {
		obs := msg.Options.Observe
		ev.Observe = &obs
	}
	return ev
}

// MessageType distinguishes request/response/notification.
type MessageType uint8

const (
	// MessageTypeRequest indicates a request message.
	MessageTypeRequest MessageType = 0
	// MessageTypeResponse indicates a response message.
	MessageTypeResponse MessageType = 1
	// MessageTypeNotification indicates a notification message.
	MessageTypeNotification MessageType = 2
	// MessageTypeReset indicates a reset received for an earlier message.
	MessageTypeReset MessageType = 3
)

// String returns the message type name.
func (m MessageType) String() string {
	switch m {
	case MessageTypeRequest:
		return "REQUEST"
	case MessageTypeResponse:
		return "RESPONSE"
	case MessageTypeNotification:
		return "NOTIFICATION"
	case MessageTypeReset:
		return "RESET"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures observation, server and instance lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`

	// Path is the URI concerned, if any.
	Path string `cbor:"5,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityObservation indicates an observation state change.
	StateEntityObservation StateEntity = 0
	// StateEntityServer indicates a server registration status change.
	StateEntityServer StateEntity = 1
	// StateEntityInstance indicates an Object Instance was created or deleted.
	StateEntityInstance StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityObservation:
		return "OBSERVATION"
	case StateEntityServer:
		return "SERVER"
	case StateEntityInstance:
		return "INSTANCE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the CoAP response code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
