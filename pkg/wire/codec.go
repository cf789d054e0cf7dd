package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/plgd-dev/go-coap/v3/message"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/status"
)

// encMode is the CBOR encoder mode for payloads.
// Configured for deterministic encoding.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for payloads.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Lenient so peers using indefinite-length arrays still decode.
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// Marshal encodes a value to CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a value.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Codec converts between value lists and payload bytes.
//
// Serialize encodes values addressed relative to base. A format of
// FormatUnspecified lets the codec choose; the format actually used is
// returned. Deserialize decodes a payload received for base.
type Codec interface {
	Serialize(base model.URI, values []model.Value, format message.MediaType) ([]byte, message.MediaType, error)
	Deserialize(base model.URI, data []byte, format message.MediaType) ([]model.Value, error)
}

// MultiCodec dispatches to a codec per content format.
type MultiCodec struct {
	codecs        map[message.MediaType]Codec
	defaultFormat message.MediaType
}

// NewMultiCodec returns a codec supporting SenML-CBOR, text/plain and
// application/octet-stream. defaultFormat is used for multi-value payloads
// when the peer expressed no preference.
func NewMultiCodec(defaultFormat message.MediaType) *MultiCodec {
	text := TextCodec{}
	m := &MultiCodec{
		codecs: map[message.MediaType]Codec{
			FormatSenMLCBOR:   SenMLCodec{},
			message.TextPlain: text,
			message.AppOctets: text,
		},
		defaultFormat: defaultFormat,
	}
	if _, ok := m.codecs[defaultFormat]; !ok {
		m.defaultFormat = FormatSenMLCBOR
	}
	return m
}

// Register adds or replaces the codec for a content format.
func (m *MultiCodec) Register(format message.MediaType, c Codec) {
	m.codecs[format] = c
}

// Supports reports whether a codec is registered for format.
func (m *MultiCodec) Supports(format message.MediaType) bool {
	_, ok := m.codecs[format]
	return ok
}

// Serialize implements Codec.
func (m *MultiCodec) Serialize(base model.URI, values []model.Value, format message.MediaType) ([]byte, message.MediaType, error) {
	if format == FormatUnspecified {
		format = m.pick(base, values)
	}
	c, ok := m.codecs[format]
	if !ok {
		return nil, format, status.Errorf(status.ErrNotAcceptable.Code, "content format %d not supported", format)
	}
	return c.Serialize(base, values, format)
}

// Deserialize implements Codec.
func (m *MultiCodec) Deserialize(base model.URI, data []byte, format message.MediaType) ([]model.Value, error) {
	c, ok := m.codecs[format]
	if !ok {
		return nil, status.Errorf(status.ErrUnsupportedFormat.Code, "content format %d not supported", format)
	}
	return c.Deserialize(base, data, format)
}

// pick selects text for a lone Resource value and the default otherwise.
func (m *MultiCodec) pick(base model.URI, values []model.Value) message.MediaType {
	if len(values) == 1 && base.HasResource() && values[0].URI == base {
		if values[0].Type == model.TypeOpaque {
			return message.AppOctets
		}
		if !values[0].Type.IsBlock() {
			return message.TextPlain
		}
	}
	return m.defaultFormat
}
