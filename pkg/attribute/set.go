package attribute

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mash-protocol/lwm2m-go/pkg/status"
)

// Flag identifies one attribute.
type Flag uint8

const (
	MinPeriod Flag = 1 << iota
	MaxPeriod
	GreaterThan
	LessThan
	Step
)

// Flag groups.
const (
	TimeFlags    = MinPeriod | MaxPeriod
	NumericFlags = GreaterThan | LessThan | Step
	AllFlags     = TimeFlags | NumericFlags
)

// Query keys as carried in Uri-Query options and link attributes.
const (
	KeyMinPeriod   = "pmin"
	KeyMaxPeriod   = "pmax"
	KeyGreaterThan = "gt"
	KeyLessThan    = "lt"
	KeyStep        = "st"
)

var flagKeys = []struct {
	flag Flag
	key  string
}{
	{MinPeriod, KeyMinPeriod},
	{MaxPeriod, KeyMaxPeriod},
	{GreaterThan, KeyGreaterThan},
	{LessThan, KeyLessThan},
	{Step, KeyStep},
}

// String returns the keys of the set flags joined with "|".
func (f Flag) String() string {
	var parts []string
	for _, fk := range flagKeys {
		if f&fk.flag != 0 {
			parts = append(parts, fk.key)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ErrInvalidAttributes is returned for an attribute combination that
// violates the cross-field rules.
var ErrInvalidAttributes = fmt.Errorf("%w: invalid attributes", status.ErrBadRequest)

// Set is an Attribute Set. Fields are only meaningful when their flag is
// present in Flags.
type Set struct {
	Flags Flag

	MinPeriod uint32
	MaxPeriod uint32

	GreaterThan float64
	LessThan    float64
	Step        float64
}

// Has reports whether every flag in f is set.
func (s Set) Has(f Flag) bool {
	return s.Flags&f == f
}

// IsEmpty reports whether no attribute is set.
func (s Set) IsEmpty() bool {
	return s.Flags == 0
}

// Clear unsets the attributes in f.
func (s *Set) Clear(f Flag) {
	s.Flags &^= f
	if f&MinPeriod != 0 {
		s.MinPeriod = 0
	}
	if f&MaxPeriod != 0 {
		s.MaxPeriod = 0
	}
	if f&GreaterThan != 0 {
		s.GreaterThan = 0
	}
	if f&LessThan != 0 {
		s.LessThan = 0
	}
	if f&Step != 0 {
		s.Step = 0
	}
}

// Apply overwrites s with every attribute set in o.
func (s *Set) Apply(o Set) {
	if o.Has(MinPeriod) {
		s.MinPeriod = o.MinPeriod
	}
	if o.Has(MaxPeriod) {
		s.MaxPeriod = o.MaxPeriod
	}
	if o.Has(GreaterThan) {
		s.GreaterThan = o.GreaterThan
	}
	if o.Has(LessThan) {
		s.LessThan = o.LessThan
	}
	if o.Has(Step) {
		s.Step = o.Step
	}
	s.Flags |= o.Flags
}

// Inherit fills attributes unset in s from o. Attributes already set in s
// are never overwritten.
func (s *Set) Inherit(o Set) {
	missing := o
	missing.Clear(s.Flags)
	s.Apply(missing)
}

// EffectiveMaxPeriod returns the max period unless it is unset, zero or
// smaller than the min period. A zero pmax disables periodic notifications.
func (s Set) EffectiveMaxPeriod() (uint32, bool) {
	if !s.Has(MaxPeriod) || s.MaxPeriod == 0 {
		return 0, false
	}
	if s.Has(MinPeriod) && s.MinPeriod > s.MaxPeriod {
		return 0, false
	}
	return s.MaxPeriod, true
}

// Validate checks the cross-field threshold rule: with both lt and gt
// set, lt + 2*st must be smaller than gt.
func (s Set) Validate() error {
	if s.Has(Step) && s.Step < 0 {
		return fmt.Errorf("%w: negative step %v", ErrInvalidAttributes, s.Step)
	}
	if s.Has(LessThan | GreaterThan) {
		step := 0.0
		if s.Has(Step) {
			step = s.Step
		}
		if s.LessThan+2*step >= s.GreaterThan {
			return fmt.Errorf("%w: lt=%v st=%v gt=%v", ErrInvalidAttributes, s.LessThan, step, s.GreaterThan)
		}
	}
	return nil
}

// Params returns the set attributes as key/value pairs in canonical order.
func (s Set) Params() [][2]string {
	var out [][2]string
	for _, fk := range flagKeys {
		if !s.Has(fk.flag) {
			continue
		}
		var v string
		switch fk.flag {
		case MinPeriod:
			v = strconv.FormatUint(uint64(s.MinPeriod), 10)
		case MaxPeriod:
			v = strconv.FormatUint(uint64(s.MaxPeriod), 10)
		case GreaterThan:
			v = formatFloat(s.GreaterThan)
		case LessThan:
			v = formatFloat(s.LessThan)
		case Step:
			v = formatFloat(s.Step)
		}
		out = append(out, [2]string{fk.key, v})
	}
	return out
}

// String formats the set like a query string.
func (s Set) String() string {
	params := s.Params()
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p[0] + "=" + p[1]
	}
	return strings.Join(parts, "&")
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Update is a parsed Write-Attributes request: attributes to set and
// attributes to clear.
type Update struct {
	Set   Set
	Clear Flag
}

// IsEmpty reports whether the update changes nothing.
func (u Update) IsEmpty() bool {
	return u.Set.IsEmpty() && u.Clear == 0
}

// ParseQuery parses Uri-Query options such as "pmin=10" or "gt" (clear).
// Unknown keys, malformed values and a key given twice are rejected.
func ParseQuery(queries []string) (Update, error) {
	var u Update
	for _, q := range queries {
		key, value, hasValue := strings.Cut(q, "=")
		flag, ok := flagForKey(key)
		if !ok {
			return Update{}, status.Errorf(status.ErrBadRequest.Code, "unknown attribute %q", key)
		}
		if u.Set.Has(flag) || u.Clear&flag != 0 {
			return Update{}, status.Errorf(status.ErrBadRequest.Code, "attribute %q given twice", key)
		}
		if !hasValue {
			u.Clear |= flag
			continue
		}
		if err := u.Set.setFromString(flag, value); err != nil {
			return Update{}, err
		}
	}
	return u, nil
}

func flagForKey(key string) (Flag, bool) {
	for _, fk := range flagKeys {
		if fk.key == key {
			return fk.flag, true
		}
	}
	return 0, false
}

func (s *Set) setFromString(f Flag, value string) error {
	switch f {
	case MinPeriod, MaxPeriod:
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return status.Errorf(status.ErrBadRequest.Code, "attribute %s: %q is not a period", f, value)
		}
		if f == MinPeriod {
			s.MinPeriod = uint32(n)
		} else {
			s.MaxPeriod = uint32(n)
		}
	default:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return status.Errorf(status.ErrBadRequest.Code, "attribute %s: %q is not a number", f, value)
		}
		switch f {
		case GreaterThan:
			s.GreaterThan = v
		case LessThan:
			s.LessThan = v
		case Step:
			s.Step = v
		}
	}
	s.Flags |= f
	return nil
}
