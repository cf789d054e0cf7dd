package log

import (
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/rs/zerolog"

	"github.com/mash-protocol/lwm2m-go/pkg/status"
)

// ZerologAdapter writes protocol events to a zerolog.Logger at debug level.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter creates a ZerologAdapter writing to logger.
func NewZerologAdapter(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

// Log writes the event.
func (a *ZerologAdapter) Log(event Event) {
	e := a.logger.Debug().
		Str("session_id", event.SessionID).
		Str("direction", event.Direction.String()).
		Str("layer", event.Layer.String()).
		Str("category", event.Category.String())
	if event.ServerID != 0 {
		e = e.Uint16("server", event.ServerID)
	}

	switch {
	case event.Message != nil:
		m := event.Message
		e = e.Str("msg_type", m.Type.String()).
			Str("coap_type", m.CoAPType.String()).
			Str("code", codeString(m.Code)).
			Uint16("msg_id", m.MessageID).
			Hex("token", m.Token)
		if m.Path != "" {
			e = e.Str("path", m.Path)
		}
		if m.ContentFormat != nil {
			e = e.Uint16("content_format", *m.ContentFormat)
		}
		if m.Observe != nil {
			e = e.Uint32("observe", *m.Observe)
		}
		if m.PayloadSize > 0 {
			e = e.Int("payload_size", m.PayloadSize)
		}
	case event.StateChange != nil:
		e = e.Str("entity", event.StateChange.Entity.String()).
			Str("old_state", event.StateChange.OldState).
			Str("new_state", event.StateChange.NewState)
		if event.StateChange.Path != "" {
			e = e.Str("path", event.StateChange.Path)
		}
		if event.StateChange.Reason != "" {
			e = e.Str("reason", event.StateChange.Reason)
		}
	case event.Error != nil:
		e = e.Str("error_layer", event.Error.Layer.String()).
			Str("error_msg", event.Error.Message).
			Str("error_context", event.Error.Context)
		if event.Error.Code != nil {
			e = e.Str("error_code", codeString(uint8(*event.Error.Code)))
		}
	}

	e.Msg("protocol")
}

// codeString renders a CoAP code as class.detail, e.g. 2.05.
func codeString(code uint8) string {
	return status.ClassString(codes.Code(code))
}

// Compile-time interface satisfaction check.
var _ Logger = (*ZerologAdapter)(nil)
