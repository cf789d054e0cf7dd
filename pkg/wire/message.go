package wire

import (
	"fmt"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
)

// Type is the CoAP message type.
type Type uint8

const (
	Confirmable Type = iota
	NonConfirmable
	Acknowledgement
	Reset
)

// String returns the message type abbreviation.
func (t Type) String() string {
	switch t {
	case Confirmable:
		return "CON"
	case NonConfirmable:
		return "NON"
	case Acknowledgement:
		return "ACK"
	case Reset:
		return "RST"
	default:
		return "UNKNOWN"
	}
}

// Request method codes not predefined by go-coap.
const (
	FETCH  codes.Code = 5
	PATCH  codes.Code = 6
	IPATCH codes.Code = 7
)

// MaxTokenLength is the longest token CoAP allows.
const MaxTokenLength = 8

// Observe option values on requests.
const (
	ObserveRegister   uint32 = 0
	ObserveDeregister uint32 = 1
)

// Content formats used by LwM2M that go-coap does not name.
const (
	FormatSenMLCBOR message.MediaType = 112
	FormatSenMLJSON message.MediaType = 110
	FormatLwM2MTLV  message.MediaType = 11542
	FormatLwM2MCBOR message.MediaType = 11544

	// FormatUnspecified lets a codec pick the format.
	FormatUnspecified message.MediaType = 0xFFFF
)

// Options holds the CoAP options the core reads or writes.
type Options struct {
	// Path is the Uri-Path joined with "/".
	Path string

	// Query holds the Uri-Query options in order.
	Query []string

	Observe    uint32
	HasObserve bool

	Accept    message.MediaType
	HasAccept bool

	ContentFormat    message.MediaType
	HasContentFormat bool

	// LocationPath is the Location-Path joined with "/".
	LocationPath string
}

// SetObserve sets the Observe option.
func (o *Options) SetObserve(v uint32) {
	o.Observe = v
	o.HasObserve = true
}

// SetAccept sets the Accept option.
func (o *Options) SetAccept(f message.MediaType) {
	o.Accept = f
	o.HasAccept = true
}

// SetContentFormat sets the Content-Format option.
func (o *Options) SetContentFormat(f message.MediaType) {
	o.ContentFormat = f
	o.HasContentFormat = true
}

// Message is a single CoAP message.
type Message struct {
	Type      Type
	Code      codes.Code
	MessageID uint16
	Token     []byte
	Options   Options
	Payload   []byte
}

// IsRequest reports whether the code is a request method.
func (m *Message) IsRequest() bool {
	return m.Code >= codes.GET && m.Code <= IPATCH
}

// Validate checks constraints the transport relies on.
func (m *Message) Validate() error {
	if len(m.Token) > MaxTokenLength {
		return fmt.Errorf("token length %d exceeds %d", len(m.Token), MaxTokenLength)
	}
	return nil
}

// String summarises the message for logs.
func (m *Message) String() string {
	s := fmt.Sprintf("%s %s mid=%d token=%x", m.Type, m.Code, m.MessageID, m.Token)
	if m.Options.Path != "" {
		s += " path=" + m.Options.Path
	}
	if m.Options.HasObserve {
		s += fmt.Sprintf(" obs=%d", m.Options.Observe)
	}
	if len(m.Payload) > 0 {
		s += fmt.Sprintf(" len=%d", len(m.Payload))
	}
	return s
}

// NewResponse returns a response to req. Confirmable requests are answered
// with a piggybacked acknowledgement, others with a non-confirmable message.
func NewResponse(req *Message, code codes.Code) *Message {
	t := NonConfirmable
	if req.Type == Confirmable {
		t = Acknowledgement
	}
	return &Message{
		Type:      t,
		Code:      code,
		MessageID: req.MessageID,
		Token:     append([]byte(nil), req.Token...),
	}
}
