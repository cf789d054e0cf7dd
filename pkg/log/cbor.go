package log

import (
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Decode limits for capture records. An event is a map of at most a few
// dozen keys holding one nested message, state change or error map; no
// event carries arrays. Records beyond these limits are rejected rather
// than allocated.
const (
	MaxEventNesting  = 8
	MaxEventElements = 16
	MaxEventPairs    = 32
)

var (
	// logEncMode writes events with integer keys in canonical order and
	// nanosecond RFC 3339 timestamps, so captures of the same exchange are
	// byte-identical.
	logEncMode = mustEncMode(cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	})

	// logDecMode reads capture files. Indefinite lengths and duplicate keys
	// from foreign writers are tolerated; the size limits are not.
	logDecMode = mustDecMode(cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
		MaxNestedLevels:   MaxEventNesting,
		MaxArrayElements:  MaxEventElements,
		MaxMapPairs:       MaxEventPairs,
	})
)

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	m, err := opts.EncMode()
	if err != nil {
		panic("log: cbor encoder options: " + err.Error())
	}
	return m
}

func mustDecMode(opts cbor.DecOptions) cbor.DecMode {
	m, err := opts.DecMode()
	if err != nil {
		panic("log: cbor decoder options: " + err.Error())
	}
	return m
}

// EncodeEvent encodes event as one capture record.
func EncodeEvent(event Event) ([]byte, error) {
	return logEncMode.Marshal(event)
}

// DecodeEvent decodes one capture record.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := logDecMode.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// NewEncoder returns an encoder appending capture records to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return logEncMode.NewEncoder(w)
}

// NewDecoder returns a decoder reading capture records from r with the
// event size limits applied.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return logDecMode.NewDecoder(r)
}
