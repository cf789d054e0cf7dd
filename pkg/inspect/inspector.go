package inspect

import (
	"context"
	"errors"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
)

// Inspector errors.
var (
	ErrNilCatalog = errors.New("no catalog")
)

// ReadFunc reads the values at uri.
type ReadFunc func(ctx context.Context, uri model.URI) ([]model.Value, error)

// Inspector builds display trees of a catalog.
type Inspector struct {
	catalog *model.Catalog
	read    ReadFunc
}

// NewInspector creates an Inspector over catalog. read may be nil, in
// which case trees carry structure only.
func NewInspector(catalog *model.Catalog, read ReadFunc) *Inspector {
	return &Inspector{catalog: catalog, read: read}
}

// ObjectInfo represents an Object for display.
type ObjectInfo struct {
	ID        model.ID
	Name      string
	Kind      model.ObjectKind
	Version   model.Version
	Instances []InstanceInfo
}

// InstanceInfo represents an Instance for display.
type InstanceInfo struct {
	ID        model.ID
	Resources []ResourceInfo
}

// ResourceInfo represents a Resource of an Instance for display.
type ResourceInfo struct {
	ID         model.ID
	Name       string
	Type       model.DataType
	Operations model.Operation
	Unit       string
	Multiple   bool

	// Values holds the value, or one value per Resource Instance.
	Values []model.Value

	// Err is set when the value could not be read.
	Err error
}

// InspectCatalog returns every Object with its Instances.
func (i *Inspector) InspectCatalog(ctx context.Context) []ObjectInfo {
	if i.catalog == nil {
		return nil
	}
	out := make([]ObjectInfo, 0, len(i.catalog.Objects()))
	for _, obj := range i.catalog.Objects() {
		out = append(out, i.inspectObject(ctx, obj))
	}
	return out
}

// InspectObject returns one Object with its Instances.
func (i *Inspector) InspectObject(ctx context.Context, id model.ID) (*ObjectInfo, error) {
	if i.catalog == nil {
		return nil, ErrNilCatalog
	}
	obj, err := i.catalog.Object(id)
	if err != nil {
		return nil, err
	}
	info := i.inspectObject(ctx, obj)
	return &info, nil
}

// InspectInstance returns one Instance with its Resources.
func (i *Inspector) InspectInstance(ctx context.Context, objectID, instanceID model.ID) (*InstanceInfo, error) {
	if i.catalog == nil {
		return nil, ErrNilCatalog
	}
	obj, inst, err := i.catalog.FindInstance(model.InstanceURI(objectID, instanceID))
	if err != nil {
		return nil, err
	}
	info := i.inspectInstance(ctx, obj, inst)
	return &info, nil
}

func (i *Inspector) inspectObject(ctx context.Context, obj *model.Object) ObjectInfo {
	info := ObjectInfo{
		ID:      obj.ID(),
		Name:    ObjectName(obj),
		Kind:    obj.Kind(),
		Version: obj.Version(),
	}
	for _, inst := range obj.Instances() {
		info.Instances = append(info.Instances, i.inspectInstance(ctx, obj, inst))
	}
	return info
}

// inspectInstance reads the whole Instance once and distributes the
// values over its Resources.
func (i *Inspector) inspectInstance(ctx context.Context, obj *model.Object, inst *model.Instance) InstanceInfo {
	info := InstanceInfo{ID: inst.ID}

	var (
		values  []model.Value
		readErr error
	)
	if i.read != nil {
		values, readErr = i.read(ctx, model.InstanceURI(obj.ID(), inst.ID))
	}

	for _, res := range obj.InstanceResources(inst) {
		ri := ResourceInfo{
			ID:         res.ID,
			Name:       ResourceName(res),
			Type:       res.Type,
			Operations: res.Operations,
			Unit:       res.Unit,
			Multiple:   res.Multiple(),
		}
		if res.Operations.CanRead() && i.read != nil {
			if readErr != nil {
				ri.Err = readErr
			} else {
				ri.Values = model.ValuesOf(values, model.ResourceURI(obj.ID(), inst.ID, res.ID))
			}
		}
		info.Resources = append(info.Resources, ri)
	}
	return info
}
