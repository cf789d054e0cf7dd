package model

import (
	"errors"
	"fmt"
)

// Operation is the bitmask of operations a Resource allows.
type Operation uint8

const (
	// OpRead allows reading the Resource.
	OpRead Operation = 1 << iota

	// OpWrite allows writing the Resource.
	OpWrite

	// OpExecute allows executing the Resource.
	OpExecute

	// OpReadWrite is read and write.
	OpReadWrite = OpRead | OpWrite
)

// CanRead returns true if reading is allowed.
func (o Operation) CanRead() bool { return o&OpRead != 0 }

// CanWrite returns true if writing is allowed.
func (o Operation) CanWrite() bool { return o&OpWrite != 0 }

// CanExecute returns true if executing is allowed.
func (o Operation) CanExecute() bool { return o&OpExecute != 0 }

// String returns the operations as a string, e.g. "RW".
func (o Operation) String() string {
	var s string
	if o.CanRead() {
		s += "R"
	}
	if o.CanWrite() {
		s += "W"
	}
	if o.CanExecute() {
		s += "E"
	}
	if s == "" {
		return "-"
	}
	return s
}

// DataType is the declared type of a Resource value.
type DataType uint8

const (
	TypeUndefined DataType = iota
	TypeString
	TypeOpaque
	TypeInteger
	TypeUnsignedInteger
	TypeFloat
	TypeBoolean
	TypeTime
	TypeObjectLink
	TypeCoreLink
	TypeStringBlock
	TypeOpaqueBlock
	TypeCoreLinkBlock
)

// String returns the data type name.
func (d DataType) String() string {
	names := []string{
		"undefined", "string", "opaque", "integer", "unsigned", "float",
		"boolean", "time", "objlnk", "corelnk",
		"string-block", "opaque-block", "corelnk-block",
	}
	if int(d) < len(names) {
		return names[d]
	}
	return "unknown"
}

// IsNumeric reports whether greater-than/less-than/step attributes may apply.
func (d DataType) IsNumeric() bool {
	switch d {
	case TypeInteger, TypeUnsignedInteger, TypeFloat:
		return true
	default:
		return false
	}
}

// IsBlock reports whether d is one of the streaming block variants.
func (d DataType) IsBlock() bool {
	return d == TypeStringBlock || d == TypeOpaqueBlock || d == TypeCoreLinkBlock
}

// ResourceFlag holds descriptor flags.
type ResourceFlag uint8

const (
	// FlagMandatory marks a Resource every Instance must carry.
	FlagMandatory ResourceFlag = 1 << iota

	// FlagMultiple marks a multiple-instance Resource.
	FlagMultiple

	// FlagStreamable marks a Resource served in blocks.
	FlagStreamable

	// FlagAsync marks a Resource whose execution completes asynchronously.
	FlagAsync
)

// Descriptor errors.
var (
	ErrInvalidDescriptor = errors.New("invalid resource descriptor")
)

// ResourceDescriptor describes one Resource of an Object.
type ResourceDescriptor struct {
	// ID is the Resource identifier within the Object.
	ID ID

	// Name is the human-readable Resource name.
	Name string

	// Type is the data type of the Resource value.
	Type DataType

	// Operations defines the allowed operations.
	Operations Operation

	// Flags holds mandatory/multiple/streamable/async markers.
	Flags ResourceFlag

	// Unit is the unit of measurement, if any.
	Unit string
}

// Mandatory returns true if the Resource is mandatory.
func (r *ResourceDescriptor) Mandatory() bool { return r.Flags&FlagMandatory != 0 }

// Multiple returns true if the Resource is multiple-instance.
func (r *ResourceDescriptor) Multiple() bool { return r.Flags&FlagMultiple != 0 }

// Streamable returns true if the Resource is streamable.
func (r *ResourceDescriptor) Streamable() bool { return r.Flags&FlagStreamable != 0 }

// Async returns true if the Resource executes asynchronously.
func (r *ResourceDescriptor) Async() bool { return r.Flags&FlagAsync != 0 }

// Validate checks the descriptor's internal consistency.
func (r *ResourceDescriptor) Validate() error {
	if !r.ID.IsSet() {
		return fmt.Errorf("%w: resource id %d is reserved", ErrInvalidDescriptor, r.ID)
	}
	if r.Streamable() && r.Async() {
		return fmt.Errorf("%w: resource %d is both streamable and async", ErrInvalidDescriptor, r.ID)
	}
	if r.Operations.CanExecute() && (r.Operations.CanRead() || r.Operations.CanWrite()) {
		return fmt.Errorf("%w: resource %d mixes execute with read/write", ErrInvalidDescriptor, r.ID)
	}
	return nil
}

// SupportsNumericAttributes reports whether gt/lt/st may be attached.
func (r *ResourceDescriptor) SupportsNumericAttributes() bool {
	return r.Type.IsNumeric() && !r.Multiple()
}
