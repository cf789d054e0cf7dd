package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mash-protocol/lwm2m-go/pkg/status"
)

// ErrTypeMismatch is returned when a value cannot be represented as the
// Resource's declared type.
var ErrTypeMismatch = fmt.Errorf("%w: type mismatch", status.ErrBadRequest)

// ParseObjectLink parses the "object:instance" form of an object link.
func ParseObjectLink(s string) (ObjectLink, error) {
	obj, inst, ok := strings.Cut(s, ":")
	if !ok {
		return ObjectLink{}, fmt.Errorf("%w: object link %q", ErrTypeMismatch, s)
	}
	o, err := strconv.ParseUint(obj, 10, 16)
	if err != nil {
		return ObjectLink{}, fmt.Errorf("%w: object link %q", ErrTypeMismatch, s)
	}
	i, err := strconv.ParseUint(inst, 10, 16)
	if err != nil {
		return ObjectLink{}, fmt.Errorf("%w: object link %q", ErrTypeMismatch, s)
	}
	return ObjectLink{ObjectID: ID(o), InstanceID: ID(i)}, nil
}

// Convert returns v expressed as type t.
//
// Undefined values carrying raw text or bytes (as produced by the
// text/plain and octet-stream codecs) are parsed. Numeric values are
// converted when no precision is lost. Anything else must already have
// type t. Data of a value already of type t is normalized to the Go type
// documented on Value.
func (v Value) Convert(t DataType) (Value, error) {
	if v.Type == t {
		return v.canonical()
	}
	out := v
	out.Type = t

	switch v.Type {
	case TypeUndefined:
		switch raw := v.Data.(type) {
		case string:
			data, err := parseText(raw, t)
			if err != nil {
				return v, fmt.Errorf("%s: %w", v.URI, err)
			}
			out.Data = data
			return out, nil
		case []byte:
			switch t {
			case TypeOpaque, TypeOpaqueBlock:
				out.Data = raw
			case TypeString, TypeStringBlock, TypeCoreLink, TypeCoreLinkBlock:
				out.Data = string(raw)
			default:
				return v, fmt.Errorf("%w: %s: bytes for %s", ErrTypeMismatch, v.URI, t)
			}
			return out, nil
		}

	case TypeInteger, TypeUnsignedInteger, TypeTime:
		switch t {
		case TypeFloat:
			f, ok := v.Float64()
			if ok {
				out.Data = f
				return out, nil
			}
		case TypeInteger, TypeTime:
			n, ok := v.Int64()
			if ok {
				out.Data = n
				return out, nil
			}
		case TypeUnsignedInteger:
			if u, ok := v.Data.(uint64); ok {
				out.Data = u
				return out, nil
			}
			if n, ok := v.Int64(); ok && n >= 0 {
				out.Data = uint64(n)
				return out, nil
			}
		}

	case TypeFloat:
		f, _ := v.Float64()
		if f == math.Trunc(f) {
			switch t {
			case TypeInteger, TypeTime:
				if f >= math.MinInt64 && f < math.MaxInt64 {
					out.Data = int64(f)
					return out, nil
				}
			case TypeUnsignedInteger:
				if f >= 0 && f < math.MaxUint64 {
					out.Data = uint64(f)
					return out, nil
				}
			}
		}

	case TypeString:
		switch t {
		case TypeStringBlock, TypeCoreLink, TypeCoreLinkBlock:
			return out, nil
		}

	case TypeOpaque:
		if t == TypeOpaqueBlock {
			return out, nil
		}
	}

	return v, fmt.Errorf("%w: %s: %s for %s", ErrTypeMismatch, v.URI, v.Type, t)
}

func (v Value) canonical() (Value, error) {
	ok := true
	switch v.Type {
	case TypeString, TypeStringBlock, TypeCoreLink, TypeCoreLinkBlock:
		if v.Data == nil {
			v.Data = ""
		}
		_, ok = v.Data.(string)
	case TypeOpaque, TypeOpaqueBlock:
		if v.Data == nil {
			v.Data = []byte{}
		}
		_, ok = v.Data.([]byte)
	case TypeInteger, TypeTime:
		var n int64
		if n, ok = v.Int64(); ok {
			v.Data = n
		}
	case TypeUnsignedInteger:
		if _, isUnsigned := v.Data.(uint64); !isUnsigned {
			var n int64
			n, ok = v.Int64()
			ok = ok && n >= 0
			if ok {
				v.Data = uint64(n)
			}
		}
	case TypeFloat:
		var f float64
		if f, ok = v.Float64(); ok {
			v.Data = f
		}
	case TypeBoolean:
		_, ok = v.Data.(bool)
	case TypeObjectLink:
		_, ok = v.Data.(ObjectLink)
	}
	if !ok {
		return v, fmt.Errorf("%w: %s: %s holds %T", ErrTypeMismatch, v.URI, v.Type, v.Data)
	}
	return v, nil
}

func parseText(s string, t DataType) (any, error) {
	switch t {
	case TypeString, TypeStringBlock, TypeCoreLink, TypeCoreLinkBlock:
		return s, nil
	case TypeInteger, TypeTime:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", ErrTypeMismatch, s)
		}
		return n, nil
	case TypeUnsignedInteger:
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an unsigned integer", ErrTypeMismatch, s)
		}
		return n, nil
	case TypeFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a float", ErrTypeMismatch, s)
		}
		return f, nil
	case TypeBoolean:
		switch s {
		case "1", "true":
			return true, nil
		case "0", "false":
			return false, nil
		}
		return nil, fmt.Errorf("%w: %q is not a boolean", ErrTypeMismatch, s)
	case TypeObjectLink:
		return ParseObjectLink(s)
	default:
		return nil, fmt.Errorf("%w: text for %s", ErrTypeMismatch, t)
	}
}

// FormatText renders a value the way text/plain carries it.
func FormatText(v Value) (string, error) {
	switch v.Type {
	case TypeString, TypeStringBlock, TypeCoreLink, TypeCoreLinkBlock:
		s, _ := v.Text()
		return s, nil
	case TypeInteger, TypeTime:
		n, _ := v.Int64()
		return strconv.FormatInt(n, 10), nil
	case TypeUnsignedInteger:
		if u, ok := v.Data.(uint64); ok {
			return strconv.FormatUint(u, 10), nil
		}
		n, _ := v.Int64()
		return strconv.FormatInt(n, 10), nil
	case TypeFloat:
		f, _ := v.Float64()
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	case TypeBoolean:
		if b, _ := v.Bool(); b {
			return "1", nil
		}
		return "0", nil
	case TypeObjectLink:
		l, ok := v.Data.(ObjectLink)
		if !ok {
			return "", fmt.Errorf("%w: %s has data %T", ErrTypeMismatch, v.URI, v.Data)
		}
		return l.String(), nil
	case TypeUndefined:
		return "", nil
	default:
		return "", fmt.Errorf("%w: %s cannot be rendered as text", ErrTypeMismatch, v.Type)
	}
}
