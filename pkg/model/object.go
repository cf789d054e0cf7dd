package model

import (
	"fmt"
	"slices"

	"github.com/mash-protocol/lwm2m-go/pkg/status"
)

// Catalog errors.
var (
	ErrObjectNotFound   = fmt.Errorf("%w: object not found", status.ErrNotFound)
	ErrInstanceNotFound = fmt.Errorf("%w: instance not found", status.ErrNotFound)
	ErrResourceNotFound = fmt.Errorf("%w: resource not found", status.ErrNotFound)
	ErrInstanceExists   = fmt.Errorf("%w: instance already exists", status.ErrBadRequest)
	ErrObjectExists     = fmt.Errorf("%w: object already registered", status.ErrBadRequest)
	ErrInvalidObject    = fmt.Errorf("%w: invalid object", status.ErrBadRequest)
)

// ObjectKind describes how Instances relate to the Resource list.
type ObjectKind uint8

const (
	// SingleInstance Objects have exactly one Instance with id 0.
	SingleInstance ObjectKind = iota

	// MultipleInstance Objects expose every Resource on every Instance.
	MultipleInstance

	// MultipleInstanceHeterogeneous Objects carry a Resource subset per Instance.
	MultipleInstanceHeterogeneous
)

// String returns the kind name.
func (k ObjectKind) String() string {
	switch k {
	case SingleInstance:
		return "single"
	case MultipleInstance:
		return "multiple"
	case MultipleInstanceHeterogeneous:
		return "multiple-heterogeneous"
	default:
		return "unknown"
	}
}

// Version is an Object version (major.minor).
type Version struct {
	Major uint8
	Minor uint8
}

// DefaultVersion is the implicit version 1.0.
var DefaultVersion = Version{Major: 1, Minor: 0}

// String returns "major.minor".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Instance is one occurrence of an Object.
type Instance struct {
	// ID is the Instance identifier.
	ID ID

	// Resources lists the Resource ids exposed by this Instance. It is only
	// set for heterogeneous Objects.
	Resources []ID
}

// Object is a registered Object with its Instances and Provider.
type Object struct {
	id        ID
	name      string
	kind      ObjectKind
	version   Version
	resources []ResourceDescriptor
	instances []*Instance // sorted by id
	provider  Provider
}

// ObjectConfig describes an Object at registration time.
type ObjectConfig struct {
	ID ID

	// Name is a human-readable name used by tooling. Optional.
	Name string

	Kind      ObjectKind
	Version   Version
	Resources []ResourceDescriptor
	Provider  Provider
}

// NewObject validates cfg and returns an Object without Instances.
func NewObject(cfg ObjectConfig) (*Object, error) {
	if !cfg.ID.IsSet() {
		return nil, fmt.Errorf("%w: object id %d is reserved", ErrInvalidObject, cfg.ID)
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("%w: object %d has no provider", ErrInvalidObject, cfg.ID)
	}

	seen := make(map[ID]bool, len(cfg.Resources))
	needDim := false
	for i := range cfg.Resources {
		r := &cfg.Resources[i]
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("object %d: %w", cfg.ID, err)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("%w: object %d declares resource %d twice", ErrInvalidObject, cfg.ID, r.ID)
		}
		seen[r.ID] = true
		if r.Multiple() {
			needDim = true
		}
	}
	if needDim {
		if _, ok := cfg.Provider.(Dimensioner); !ok {
			return nil, fmt.Errorf("%w: object %d has multiple resources but no Dimensioner", ErrInvalidObject, cfg.ID)
		}
	}

	version := cfg.Version
	if version == (Version{}) {
		version = DefaultVersion
	}

	resources := slices.Clone(cfg.Resources)
	slices.SortFunc(resources, func(a, b ResourceDescriptor) int { return int(a.ID) - int(b.ID) })

	return &Object{
		id:        cfg.ID,
		name:      cfg.Name,
		kind:      cfg.Kind,
		version:   version,
		resources: resources,
		provider:  cfg.Provider,
	}, nil
}

// ID returns the Object id.
func (o *Object) ID() ID { return o.id }

// Name returns the Object name, empty when none was given.
func (o *Object) Name() string { return o.name }

// Kind returns the Object kind.
func (o *Object) Kind() ObjectKind { return o.kind }

// Version returns the Object version.
func (o *Object) Version() Version { return o.version }

// Provider returns the value provider.
func (o *Object) Provider() Provider { return o.provider }

// Resources returns the Resource descriptors sorted by id.
func (o *Object) Resources() []ResourceDescriptor { return o.resources }

// Resource returns the descriptor for id.
func (o *Object) Resource(id ID) (*ResourceDescriptor, error) {
	i, found := slices.BinarySearchFunc(o.resources, id, func(r ResourceDescriptor, id ID) int {
		return int(r.ID) - int(id)
	})
	if !found {
		return nil, ErrResourceNotFound
	}
	return &o.resources[i], nil
}

// CanCreate reports whether the Provider supports instance creation.
func (o *Object) CanCreate() bool {
	_, ok := o.provider.(InstanceCreator)
	return ok
}

// CanDelete reports whether the Provider supports instance deletion.
func (o *Object) CanDelete() bool {
	_, ok := o.provider.(InstanceDeleter)
	return ok
}

// Instances returns the Instances sorted by id.
func (o *Object) Instances() []*Instance { return o.instances }

// InstanceIDs returns the ids of all Instances in ascending order.
func (o *Object) InstanceIDs() []ID {
	ids := make([]ID, len(o.instances))
	for i, inst := range o.instances {
		ids[i] = inst.ID
	}
	return ids
}

func (o *Object) search(id ID) (int, bool) {
	return slices.BinarySearchFunc(o.instances, id, func(inst *Instance, id ID) int {
		return int(inst.ID) - int(id)
	})
}

// Instance returns the Instance with id.
func (o *Object) Instance(id ID) (*Instance, error) {
	i, found := o.search(id)
	if !found {
		return nil, ErrInstanceNotFound
	}
	return o.instances[i], nil
}

// HasInstance reports whether an Instance with id exists.
func (o *Object) HasInstance(id ID) bool {
	_, found := o.search(id)
	return found
}

// AddInstance registers an Instance. Single-instance Objects only accept id
// 0; heterogeneous Objects require the Resource subset of the Instance.
func (o *Object) AddInstance(id ID, resources []ID) error {
	if !id.IsSet() {
		return fmt.Errorf("%w: instance id %d is reserved", ErrInvalidObject, id)
	}
	switch o.kind {
	case SingleInstance:
		if id != 0 {
			return fmt.Errorf("%w: single-instance object %d only accepts instance 0", ErrInvalidObject, o.id)
		}
	case MultipleInstanceHeterogeneous:
		if resources == nil {
			return fmt.Errorf("%w: heterogeneous object %d requires a resource subset", ErrInvalidObject, o.id)
		}
	}

	i, found := o.search(id)
	if found {
		return ErrInstanceExists
	}

	inst := &Instance{ID: id}
	if o.kind == MultipleInstanceHeterogeneous {
		for _, rid := range resources {
			if _, err := o.Resource(rid); err != nil {
				return fmt.Errorf("object %d instance %d: %w", o.id, id, err)
			}
		}
		inst.Resources = slices.Clone(resources)
		slices.Sort(inst.Resources)
		inst.Resources = slices.Compact(inst.Resources)
	}
	o.instances = slices.Insert(o.instances, i, inst)
	return nil
}

// RemoveInstance unregisters the Instance with id, or every Instance when
// id is IDAll.
func (o *Object) RemoveInstance(id ID) error {
	if !id.IsSet() {
		o.instances = nil
		return nil
	}
	i, found := o.search(id)
	if !found {
		return ErrInstanceNotFound
	}
	o.instances = slices.Delete(o.instances, i, i+1)
	return nil
}

// NewInstanceID returns the smallest id not used by any Instance.
func (o *Object) NewInstanceID() ID {
	var next ID
	for _, inst := range o.instances {
		if inst.ID != next {
			break
		}
		next++
	}
	return next
}

// HasResource reports whether the Instance exposes the Resource. For
// heterogeneous Objects only the Instance's own subset counts.
func (o *Object) HasResource(inst *Instance, resourceID ID) bool {
	if _, err := o.Resource(resourceID); err != nil {
		return false
	}
	if o.kind != MultipleInstanceHeterogeneous {
		return true
	}
	_, found := slices.BinarySearch(inst.Resources, resourceID)
	return found
}

// InstanceResources returns the descriptors exposed by inst.
func (o *Object) InstanceResources(inst *Instance) []*ResourceDescriptor {
	out := make([]*ResourceDescriptor, 0, len(o.resources))
	for i := range o.resources {
		if o.HasResource(inst, o.resources[i].ID) {
			out = append(out, &o.resources[i])
		}
	}
	return out
}
