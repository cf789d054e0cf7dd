package client

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/plgd-dev/go-coap/v3/message"

	"github.com/mash-protocol/lwm2m-go/pkg/log"
	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/observe"
	"github.com/mash-protocol/lwm2m-go/pkg/server"
	"github.com/mash-protocol/lwm2m-go/pkg/wire"
)

// Client errors.
var (
	ErrInvalidConfig  = errors.New("invalid client configuration")
	ErrInvalidMessage = errors.New("invalid message")
)

// DefaultMaxSleep caps the sleep hint returned by Step.
const DefaultMaxSleep = 60 * time.Second

// Config configures a Client.
type Config struct {
	// Logger receives operational logs. Nil disables them.
	Logger *slog.Logger

	// ProtocolLogger receives every message and lifecycle event. Nil
	// disables capture.
	ProtocolLogger log.Logger

	// RecentMessageIDs is the number of sent message ids remembered per
	// observation for Reset matching.
	RecentMessageIDs int

	// DefaultFormat is used for responses and notifications that carry
	// more than one value and name no Accept format.
	DefaultFormat message.MediaType

	// MaxSleep caps the sleep hint returned by Step.
	MaxSleep time.Duration

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RecentMessageIDs: observe.DefaultRecentMessageIDs,
		DefaultFormat:    wire.FormatSenMLCBOR,
		MaxSleep:         DefaultMaxSleep,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.RecentMessageIDs < 0 {
		return fmt.Errorf("%w: negative recent message ids", ErrInvalidConfig)
	}
	if c.MaxSleep < 0 {
		return fmt.Errorf("%w: negative max sleep", ErrInvalidConfig)
	}
	switch c.DefaultFormat {
	case wire.FormatSenMLCBOR:
	default:
		return fmt.Errorf("%w: default format %d cannot carry several values", ErrInvalidConfig, c.DefaultFormat)
	}
	return nil
}

// EventType identifies a Client event.
type EventType uint8

const (
	// EventUpdateDue - the Instance population or the Object list changed
	// and the registration layer should send an update to Server.
	EventUpdateDue EventType = iota

	// EventServerStatusChanged - a Server changed registration status.
	EventServerStatusChanged

	// EventObservationsDropped - observations were removed because their
	// Instance, Object or Server went away.
	EventObservationsDropped
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventUpdateDue:
		return "UPDATE_DUE"
	case EventServerStatusChanged:
		return "SERVER_STATUS_CHANGED"
	case EventObservationsDropped:
		return "OBSERVATIONS_DROPPED"
	default:
		return "UNKNOWN"
	}
}

// Event is a Client event.
type Event struct {
	// Type is the event type.
	Type EventType

	// Server is the Server concerned.
	Server model.ServerID

	// Status is the new status (for status events).
	Status server.Status

	// URI is the node concerned, if any.
	URI model.URI

	// Count is the number of observations dropped.
	Count int
}

// EventHandler handles Client events.
type EventHandler func(Event)
