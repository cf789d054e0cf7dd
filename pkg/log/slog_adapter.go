package log

import (
	"context"
	"encoding/hex"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see protocol events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session_id", event.SessionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.ServerID != 0 {
		attrs = append(attrs, slog.Uint64("server", uint64(event.ServerID)))
	}

	switch {
	case event.Message != nil:
		m := event.Message
		attrs = append(attrs,
			slog.String("msg_type", m.Type.String()),
			slog.String("coap_type", m.CoAPType.String()),
			slog.String("code", codeString(m.Code)),
			slog.Uint64("msg_id", uint64(m.MessageID)),
			slog.String("token", hex.EncodeToString(m.Token)),
		)
		if m.Path != "" {
			attrs = append(attrs, slog.String("path", m.Path))
		}
		if m.ContentFormat != nil {
			attrs = append(attrs, slog.Uint64("content_format", uint64(*m.ContentFormat)))
		}
		if m.Observe != nil {
			attrs = append(attrs, slog.Uint64("observe", uint64(*m.Observe)))
		}
		if m.PayloadSize > 0 {
			attrs = append(attrs, slog.Int("payload_size", m.PayloadSize))
		}
		if m.ProcessingTime != nil {
			attrs = append(attrs, slog.Duration("processing_time", *m.ProcessingTime))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Path != "" {
			attrs = append(attrs, slog.String("path", event.StateChange.Path))
		}
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.String("error_code", codeString(uint8(*event.Error.Code))))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
