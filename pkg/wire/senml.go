package wire

import (
	"fmt"
	"math"
	"strings"

	"github.com/plgd-dev/go-coap/v3/message"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/status"
)

// senmlRecord is one SenML-CBOR record (RFC 8428, LwM2M 1.1 extension vlo).
type senmlRecord struct {
	BaseName   string  `cbor:"-2,keyasint,omitempty"`
	BaseTime   float64 `cbor:"-3,keyasint,omitempty"`
	Name       string  `cbor:"0,keyasint,omitempty"`
	Value      any     `cbor:"2,keyasint,omitempty"`
	String     *string `cbor:"3,keyasint,omitempty"`
	Bool       *bool   `cbor:"4,keyasint,omitempty"`
	Time       float64 `cbor:"6,keyasint,omitempty"`
	Data       []byte  `cbor:"8,keyasint,omitempty"`
	ObjectLink *string `cbor:"vlo,omitempty"`
}

// SenMLCodec encodes values as SenML-CBOR.
type SenMLCodec struct{}

// Serialize implements Codec.
func (SenMLCodec) Serialize(base model.URI, values []model.Value, format message.MediaType) ([]byte, message.MediaType, error) {
	if format == FormatUnspecified {
		format = FormatSenMLCBOR
	}
	if format != FormatSenMLCBOR {
		return nil, format, status.Errorf(status.ErrNotAcceptable.Code, "senml codec cannot produce format %d", format)
	}

	baseName := base.String()
	deeper := false
	for _, v := range values {
		if v.URI != base {
			deeper = true
			break
		}
	}
	if deeper && baseName != "/" {
		baseName += "/"
	}

	records := make([]senmlRecord, 0, len(values))
	for i, v := range values {
		rec := senmlRecord{}
		if i == 0 {
			rec.BaseName = baseName
		}
		name := v.URI.String()
		if !strings.HasPrefix(name, baseName) {
			return nil, format, status.Errorf(status.ErrInternal.Code, "value %s outside base %s", v.URI, base)
		}
		rec.Name = name[len(baseName):]
		if v.Timestamp != 0 {
			rec.Time = float64(v.Timestamp)
		}
		if err := setRecordValue(&rec, v); err != nil {
			return nil, format, err
		}
		records = append(records, rec)
	}

	data, err := Marshal(records)
	if err != nil {
		return nil, format, fmt.Errorf("senml encode: %w", err)
	}
	return data, format, nil
}

func setRecordValue(rec *senmlRecord, v model.Value) error {
	switch v.Type {
	case model.TypeUndefined:
	case model.TypeString, model.TypeStringBlock, model.TypeCoreLink, model.TypeCoreLinkBlock:
		s, _ := v.Text()
		rec.String = &s
	case model.TypeOpaque, model.TypeOpaqueBlock:
		rec.Data, _ = v.Bytes()
		if rec.Data == nil {
			rec.Data = []byte{}
		}
	case model.TypeInteger, model.TypeTime:
		n, _ := v.Int64()
		rec.Value = n
	case model.TypeUnsignedInteger:
		if n, ok := v.Data.(uint64); ok {
			rec.Value = n
		} else {
			n, _ := v.Int64()
			rec.Value = uint64(n)
		}
	case model.TypeFloat:
		f, _ := v.Float64()
		rec.Value = f
	case model.TypeBoolean:
		b, _ := v.Bool()
		rec.Bool = &b
	case model.TypeObjectLink:
		l, ok := v.Data.(model.ObjectLink)
		if !ok {
			return status.Errorf(status.ErrInternal.Code, "object link %s has data %T", v.URI, v.Data)
		}
		s := l.String()
		rec.ObjectLink = &s
	default:
		return status.Errorf(status.ErrInternal.Code, "cannot encode type %s", v.Type)
	}
	return nil
}

// Deserialize implements Codec. Names are resolved against the most recent
// base name, falling back to base when a record names nothing.
func (SenMLCodec) Deserialize(base model.URI, data []byte, format message.MediaType) ([]model.Value, error) {
	var records []senmlRecord
	if err := Unmarshal(data, &records); err != nil {
		return nil, status.Errorf(status.ErrBadRequest.Code, "senml decode: %v", err)
	}

	var (
		baseName string
		baseTime float64
		values   = make([]model.Value, 0, len(records))
	)
	for _, rec := range records {
		if rec.BaseName != "" {
			baseName = rec.BaseName
		}
		if rec.BaseTime != 0 {
			baseTime = rec.BaseTime
		}

		uri := base
		if full := baseName + rec.Name; full != "" {
			u, err := model.ParseURI(full)
			if err != nil {
				return nil, status.Errorf(status.ErrBadRequest.Code, "senml name %q: %v", full, err)
			}
			uri = u
		}

		v, err := recordValue(rec)
		if err != nil {
			return nil, err
		}
		v.URI = uri
		if t := baseTime + rec.Time; t != 0 {
			v.Timestamp = int64(t)
		}
		values = append(values, v)
	}
	return values, nil
}

func recordValue(rec senmlRecord) (model.Value, error) {
	switch {
	case rec.Value != nil:
		switch n := rec.Value.(type) {
		case uint64:
			if n > math.MaxInt64 {
				return model.Value{Type: model.TypeUnsignedInteger, Data: n}, nil
			}
			return model.Value{Type: model.TypeInteger, Data: int64(n)}, nil
		case int64:
			return model.Value{Type: model.TypeInteger, Data: n}, nil
		case float64:
			return model.Value{Type: model.TypeFloat, Data: n}, nil
		case float32:
			return model.Value{Type: model.TypeFloat, Data: float64(n)}, nil
		default:
			return model.Value{}, status.Errorf(status.ErrBadRequest.Code, "senml value has type %T", rec.Value)
		}
	case rec.String != nil:
		return model.Value{Type: model.TypeString, Data: *rec.String}, nil
	case rec.Bool != nil:
		return model.Value{Type: model.TypeBoolean, Data: *rec.Bool}, nil
	case rec.Data != nil:
		return model.Value{Type: model.TypeOpaque, Data: rec.Data}, nil
	case rec.ObjectLink != nil:
		l, err := model.ParseObjectLink(*rec.ObjectLink)
		if err != nil {
			return model.Value{}, status.Errorf(status.ErrBadRequest.Code, "%v", err)
		}
		return model.Value{Type: model.TypeObjectLink, Data: l}, nil
	default:
		return model.Value{Type: model.TypeUndefined}, nil
	}
}
