package interactive

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/plgd-dev/go-coap/v3/message"

	"github.com/mash-protocol/lwm2m-go/pkg/inspect"
	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/status"
	"github.com/mash-protocol/lwm2m-go/pkg/wire"
)

// Sent is a message the client handed to the Loopback.
type Sent struct {
	Server model.ServerID
	Msg    *wire.Message
}

// Loopback stands in for the transport. It assigns message ids to
// outgoing messages and prints them with their decoded payload.
type Loopback struct {
	mu        sync.Mutex
	out       io.Writer
	codec     *wire.MultiCodec
	formatter *inspect.Formatter
	nextMID   uint16

	// Request path per token, used to decode text payloads.
	paths map[string]model.URI

	// Last message id sent per token, used to answer with Reset.
	lastMID map[string]uint16

	history []Sent
}

// NewLoopback returns a Loopback printing to out. A nil out prints to
// stdout.
func NewLoopback(out io.Writer) *Loopback {
	if out == nil {
		out = os.Stdout
	}
	return &Loopback{
		out:       out,
		codec:     wire.NewMultiCodec(wire.FormatSenMLCBOR),
		formatter: inspect.NewFormatter(),
		nextMID:   0x1000,
		paths:     make(map[string]model.URI),
		lastMID:   make(map[string]uint16),
	}
}

// SetOutput redirects printing.
func (l *Loopback) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
}

// Track records the path a token was issued for.
func (l *Loopback) Track(token []byte, uri model.URI) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths[string(token)] = uri
}

// LastMessageID returns the id of the latest message sent with token.
func (l *Loopback) LastMessageID(token []byte) (uint16, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	mid, ok := l.lastMID[string(token)]
	return mid, ok
}

// History returns every message sent so far.
func (l *Loopback) History() []Sent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Sent(nil), l.history...)
}

// Send implements observe.Sender.
func (l *Loopback) Send(_ context.Context, server model.ServerID, msg *wire.Message) (uint16, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	mid := msg.MessageID
	if msg.Type != wire.Acknowledgement {
		l.nextMID++
		mid = l.nextMID
	}
	sent := *msg
	sent.MessageID = mid
	l.history = append(l.history, Sent{Server: server, Msg: &sent})
	l.lastMID[string(msg.Token)] = mid

	kind := "response"
	if msg.Options.HasObserve && msg.Type != wire.Acknowledgement {
		kind = "notify"
	}
	fmt.Fprintf(l.out, "<- [%d] %s %s %s mid=%d token=%x", server, kind, msg.Type, status.ClassString(msg.Code), mid, msg.Token)
	if msg.Options.HasObserve {
		fmt.Fprintf(l.out, " obs=%d", msg.Options.Observe)
	}
	if msg.Options.LocationPath != "" {
		fmt.Fprintf(l.out, " location=%s", msg.Options.LocationPath)
	}
	fmt.Fprintln(l.out)
	if len(msg.Payload) > 0 {
		fmt.Fprint(l.out, l.describePayload(msg))
	}
	return mid, nil
}

func (l *Loopback) describePayload(msg *wire.Message) string {
	format := wire.FormatUnspecified
	if msg.Options.HasContentFormat {
		format = msg.Options.ContentFormat
	}
	switch format {
	case message.AppLinkFormat:
		return "   " + string(msg.Payload) + "\n"
	case message.TextPlain:
		return "   " + string(msg.Payload) + "\n"
	case message.AppOctets:
		return fmt.Sprintf("   0x%x\n", msg.Payload)
	}

	base, ok := l.paths[string(msg.Token)]
	if !ok {
		base = model.RootURI()
	}
	values, err := l.codec.Deserialize(base, msg.Payload, format)
	if err != nil {
		return fmt.Sprintf("   (%d bytes, format %d)\n", len(msg.Payload), format)
	}
	return indent(l.formatter.FormatValues(values))
}

// indent prefixes every line of s.
func indent(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return "   " + strings.ReplaceAll(s, "\n", "\n   ") + "\n"
}
