package objects

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/status"
)

// ExecuteFunc handles an Execute on a Memory-backed Object.
type ExecuteFunc func(ctx context.Context, uri model.URI, args []byte) error

// Memory is a Provider storing every value it is given.
//
// Values are keyed by Resource URI, or Resource Instance URI for multiple
// Resources. Memory does not lock; it relies on the client serializing
// access.
type Memory struct {
	values    map[model.URI]model.Value
	instances map[model.ID]bool

	// OnExecute handles Execute. Without it Execute records the call only.
	OnExecute ExecuteFunc

	// Executed lists the URIs executed so far.
	Executed []model.URI
}

// NewMemory creates an empty Memory provider.
func NewMemory() *Memory {
	return &Memory{
		values:    make(map[model.URI]model.Value),
		instances: make(map[model.ID]bool),
	}
}

// Set stores a value directly, bypassing the engine. The application must
// report the change with the client's ResourceChanged.
func (m *Memory) Set(v model.Value) {
	m.instances[v.URI.InstanceID] = true
	m.values[v.URI] = v
}

// Get returns the stored value at uri.
func (m *Memory) Get(uri model.URI) (model.Value, bool) {
	v, ok := m.values[uri]
	return v, ok
}

// Len returns the number of stored values.
func (m *Memory) Len() int {
	return len(m.values)
}

// Read implements model.Provider. Resources never written read as
// undefined.
func (m *Memory) Read(_ context.Context, values []model.Value) error {
	for i := range values {
		v, ok := m.values[values[i].URI]
		if !ok {
			values[i].Type = model.TypeUndefined
			values[i].Data = nil
			continue
		}
		values[i].Type = v.Type
		values[i].Data = v.Data
	}
	return nil
}

// Write implements model.Provider. A replacing write of a multiple Resource
// drops the Resource Instances absent from the payload.
func (m *Memory) Write(_ context.Context, values []model.Value, mode model.WriteMode) error {
	if mode == model.WriteReplace {
		replaced := make(map[model.URI]bool)
		for _, v := range values {
			if v.URI.HasResourceInstance() {
				replaced[v.URI.Truncate(model.DepthResource)] = true
			}
		}
		for uri := range m.values {
			if uri.HasResourceInstance() && replaced[uri.Truncate(model.DepthResource)] {
				delete(m.values, uri)
			}
		}
	}
	for _, v := range values {
		m.instances[v.URI.InstanceID] = true
		m.values[v.URI] = v
	}
	return nil
}

// Execute implements model.Provider.
func (m *Memory) Execute(ctx context.Context, uri model.URI, args []byte) error {
	m.Executed = append(m.Executed, uri)
	if m.OnExecute != nil {
		return m.OnExecute(ctx, uri, args)
	}
	return nil
}

// Create implements model.InstanceCreator.
func (m *Memory) Create(_ context.Context, instanceID model.ID) error {
	if m.instances[instanceID] {
		return fmt.Errorf("%w: instance %d", model.ErrInstanceExists, instanceID)
	}
	m.instances[instanceID] = true
	return nil
}

// Delete implements model.InstanceDeleter.
func (m *Memory) Delete(_ context.Context, instanceID model.ID) error {
	delete(m.instances, instanceID)
	maps.DeleteFunc(m.values, func(uri model.URI, _ model.Value) bool {
		return uri.InstanceID == instanceID
	})
	return nil
}

// DeleteResourceInstance implements model.ResourceInstanceDeleter.
func (m *Memory) DeleteResourceInstance(_ context.Context, uri model.URI) error {
	if _, ok := m.values[uri]; !ok {
		return fmt.Errorf("%w: %s", status.ErrNotFound, uri)
	}
	delete(m.values, uri)
	return nil
}

// ResourceInstances implements model.Dimensioner.
func (m *Memory) ResourceInstances(_ context.Context, instanceID, resourceID model.ID) ([]model.ID, error) {
	var ids []model.ID
	for uri := range m.values {
		if uri.InstanceID == instanceID && uri.ResourceID == resourceID && uri.HasResourceInstance() {
			ids = append(ids, uri.ResourceInstanceID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}
