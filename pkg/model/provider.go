package model

import "context"

// WriteMode selects how a Write treats Resources absent from the payload.
type WriteMode uint8

const (
	// WriteReplace replaces the addressed Instance or Resource wholesale.
	WriteReplace WriteMode = iota

	// WritePartial updates only the Resources present in the payload.
	WritePartial
)

// String returns the write mode name.
func (m WriteMode) String() string {
	if m == WritePartial {
		return "partial"
	}
	return "replace"
}

// Provider serves the values of one Object. Every call is bracketed by the
// callback guard of the owning client.
type Provider interface {
	// Read fills Type and Data of each value. The URIs always name a single
	// Resource or Resource Instance of an existing Instance.
	Read(ctx context.Context, values []Value) error

	// Write stores the given values.
	Write(ctx context.Context, values []Value, mode WriteMode) error

	// Execute runs the executable Resource at uri. args is nil when the
	// request carried no argument payload.
	Execute(ctx context.Context, uri URI, args []byte) error
}

// InstanceCreator is implemented by Providers whose Object supports Create.
type InstanceCreator interface {
	// Create allocates a new Instance. Values of the creation payload are
	// written with a follow-up Write.
	Create(ctx context.Context, instanceID ID) error
}

// InstanceDeleter is implemented by Providers whose Object supports Delete.
type InstanceDeleter interface {
	Delete(ctx context.Context, instanceID ID) error
}

// Dimensioner enumerates the Resource Instances of a multiple Resource.
// Objects declaring multiple-instance Resources must provide it.
type Dimensioner interface {
	ResourceInstances(ctx context.Context, instanceID, resourceID ID) ([]ID, error)
}

// ResourceInstanceDeleter removes a single Resource Instance. It is used
// before a replacing write of one Resource Instance.
type ResourceInstanceDeleter interface {
	DeleteResourceInstance(ctx context.Context, uri URI) error
}

type serverKey struct{}

// WithServer returns a context naming the requesting Server.
func WithServer(ctx context.Context, id ServerID) context.Context {
	return context.WithValue(ctx, serverKey{}, id)
}

// ServerFromContext returns the requesting Server, if any.
func ServerFromContext(ctx context.Context) (ServerID, bool) {
	id, ok := ctx.Value(serverKey{}).(ServerID)
	return id, ok
}

type changeKey struct{}

// ChangeFunc records that the values under a URI changed.
type ChangeFunc func(uri URI)

// WithChangeReporter returns a context through which Provider callbacks
// report value changes.
func WithChangeReporter(ctx context.Context, report ChangeFunc) context.Context {
	return context.WithValue(ctx, changeKey{}, report)
}

// ReportChange reports, from inside a Provider callback, that the values
// under uri changed. Observations of uri are evaluated on the next tick.
// It returns false when ctx carries no reporter.
func ReportChange(ctx context.Context, uri URI) bool {
	report, ok := ctx.Value(changeKey{}).(ChangeFunc)
	if !ok || report == nil {
		return false
	}
	report(uri)
	return true
}
