package wire

import (
	"github.com/plgd-dev/go-coap/v3/message"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/status"
)

// TextCodec carries a single Resource value as text/plain or
// application/octet-stream.
//
// Decoded values are left TypeUndefined with the raw string or bytes as
// data; model.Value.Convert resolves them against the Resource's type.
type TextCodec struct{}

// Serialize implements Codec.
func (TextCodec) Serialize(base model.URI, values []model.Value, format message.MediaType) ([]byte, message.MediaType, error) {
	if len(values) != 1 {
		return nil, format, status.Errorf(status.ErrNotAcceptable.Code, "%s payload requires a single value, have %d", formatName(format), len(values))
	}
	v := values[0]
	switch format {
	case FormatUnspecified, message.TextPlain:
		if v.Type == model.TypeOpaque || v.Type == model.TypeOpaqueBlock {
			return nil, format, status.Errorf(status.ErrNotAcceptable.Code, "opaque %s has no text form", v.URI)
		}
		s, err := model.FormatText(v)
		if err != nil {
			return nil, format, status.Errorf(status.ErrNotAcceptable.Code, "%v", err)
		}
		return []byte(s), message.TextPlain, nil
	case message.AppOctets:
		if b, ok := v.Bytes(); ok {
			return append([]byte(nil), b...), format, nil
		}
		if s, ok := v.Text(); ok {
			return []byte(s), format, nil
		}
		return nil, format, status.Errorf(status.ErrNotAcceptable.Code, "%s of type %s has no octet form", v.URI, v.Type)
	default:
		return nil, format, status.Errorf(status.ErrNotAcceptable.Code, "text codec cannot produce format %d", format)
	}
}

// Deserialize implements Codec.
func (TextCodec) Deserialize(base model.URI, data []byte, format message.MediaType) ([]model.Value, error) {
	if !base.HasResource() {
		return nil, status.Errorf(status.ErrBadRequest.Code, "%s payload requires a resource path, have %s", formatName(format), base)
	}
	v := model.Value{URI: base, Type: model.TypeUndefined}
	switch format {
	case message.TextPlain:
		v.Data = string(data)
	case message.AppOctets:
		v.Data = append([]byte(nil), data...)
	default:
		return nil, status.Errorf(status.ErrUnsupportedFormat.Code, "text codec cannot read format %d", format)
	}
	return []model.Value{v}, nil
}

func formatName(f message.MediaType) string {
	switch f {
	case message.TextPlain:
		return "text/plain"
	case message.AppOctets:
		return "octet-stream"
	case message.AppLinkFormat:
		return "link-format"
	case FormatSenMLCBOR:
		return "senml+cbor"
	case FormatUnspecified:
		return "unspecified"
	default:
		return "unknown"
	}
}
