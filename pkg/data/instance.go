package data

import (
	"context"
	"fmt"
	"slices"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/status"
)

// createPayload is one Instance worth of a Create request.
type createPayload struct {
	instanceID model.ID
	values     []model.Value
}

// adaptCreatePayload validates and normalizes the values of a Create on
// obj. Values naming only a single level below the Object (/obj/x) carry
// Resource x of an Instance still to be allocated.
//
// Unknown Resources are dropped. Unless bootstrap is set the payload may
// only describe one Instance, and every mandatory non-executable Resource
// must be present.
func adaptCreatePayload(obj *model.Object, values []model.Value, bootstrap bool) ([]createPayload, error) {
	var payloads []createPayload
	index := func(id model.ID) int {
		for i := range payloads {
			if payloads[i].instanceID == id {
				return i
			}
		}
		payloads = append(payloads, createPayload{instanceID: id})
		return len(payloads) - 1
	}

	for _, v := range values {
		if !v.URI.Valid() || v.URI.ObjectID != obj.ID() {
			return nil, fmt.Errorf("%w: %s is outside /%d", ErrInvalidPayload, v.URI, obj.ID())
		}
		switch v.URI.Depth() {
		case model.DepthInstance:
			v.URI = model.URI{
				ObjectID:           obj.ID(),
				InstanceID:         model.IDAll,
				ResourceID:         v.URI.InstanceID,
				ResourceInstanceID: model.IDAll,
			}
		case model.DepthResource, model.DepthResourceInstance:
		default:
			return nil, fmt.Errorf("%w: %s does not name a resource", ErrInvalidPayload, v.URI)
		}

		res, err := obj.Resource(v.URI.ResourceID)
		if err != nil {
			continue
		}
		nv, err := normalize(v, res)
		if err != nil {
			return nil, err
		}
		i := index(v.URI.InstanceID)
		payloads[i].values = append(payloads[i].values, nv)
	}

	if len(payloads) == 0 {
		payloads = append(payloads, createPayload{instanceID: model.IDAll})
	}
	if len(payloads) > 1 && !bootstrap {
		return nil, fmt.Errorf("%w: payload describes %d instances", ErrInvalidPayload, len(payloads))
	}

	if !bootstrap {
		for _, p := range payloads {
			for _, r := range obj.Resources() {
				if !r.Mandatory() || r.Operations.CanExecute() {
					continue
				}
				present := slices.ContainsFunc(p.values, func(v model.Value) bool { return v.URI.ResourceID == r.ID })
				if !present {
					return nil, fmt.Errorf("%w: /%d/%d", ErrMissingMandatory, obj.ID(), r.ID)
				}
			}
		}
	}
	return payloads, nil
}

// Create creates Instances of the Object at uri from values and returns
// their ids.
//
// When no Instance id is given the smallest unused one is assigned. The
// Provider's Create is followed by a Write of the payload; if the Write
// fails the Instance is deleted again. The Instance is added to the catalog
// only after both succeeded.
func (e *Engine) Create(ctx context.Context, server model.ServerID, uri model.URI, values []model.Value, bootstrap bool) ([]model.ID, error) {
	if uri.Depth() != model.DepthObject {
		return nil, fmt.Errorf("create %s: %w", uri, ErrInvalidTarget)
	}
	obj, err := e.catalog.FindObject(uri)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", uri, err)
	}
	creator, ok := obj.Provider().(model.InstanceCreator)
	if !ok {
		return nil, fmt.Errorf("create %s: %w", uri, ErrCreateUnsupported)
	}

	payloads, err := adaptCreatePayload(obj, values, bootstrap)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", uri, err)
	}

	ctx = e.providerContext(ctx, server)
	var created []model.ID
	for _, p := range payloads {
		id, err := e.createInstance(ctx, obj, creator, p)
		if err != nil {
			return created, fmt.Errorf("create %s: %w", uri, err)
		}
		created = append(created, id)
	}
	return created, nil
}

func (e *Engine) createInstance(ctx context.Context, obj *model.Object, creator model.InstanceCreator, p createPayload) (model.ID, error) {
	id := p.instanceID
	if !id.IsSet() {
		if obj.Kind() == model.SingleInstance {
			id = 0
		} else {
			id = obj.NewInstanceID()
		}
		if !id.IsSet() {
			return id, fmt.Errorf("%w: no free instance id", status.ErrInternal)
		}
	}
	if obj.HasInstance(id) {
		return id, fmt.Errorf("%w: /%d/%d", model.ErrInstanceExists, obj.ID(), id)
	}
	if obj.Kind() == model.SingleInstance && id != 0 {
		return id, fmt.Errorf("%w: single-instance object only accepts instance 0", ErrInvalidPayload)
	}

	for i := range p.values {
		p.values[i].URI.InstanceID = id
	}

	var subset []model.ID
	if obj.Kind() == model.MultipleInstanceHeterogeneous {
		for _, v := range p.values {
			if !slices.Contains(subset, v.URI.ResourceID) {
				subset = append(subset, v.URI.ResourceID)
			}
		}
		if subset == nil {
			subset = []model.ID{}
		}
	}

	if err := e.guard.Run(func() error { return creator.Create(ctx, id) }); err != nil {
		e.debugLog("create: provider failed", "object", obj.ID(), "instance", id, "error", err)
		return id, asStatus(err)
	}

	rollback := func() {
		if deleter, ok := obj.Provider().(model.InstanceDeleter); ok {
			if err := e.guard.Run(func() error { return deleter.Delete(ctx, id) }); err != nil {
				e.debugLog("create: rollback failed", "object", obj.ID(), "instance", id, "error", err)
			}
		}
	}

	if len(p.values) > 0 {
		err := e.guard.Run(func() error { return obj.Provider().Write(ctx, p.values, model.WriteReplace) })
		if err != nil {
			e.debugLog("create: write failed, rolling back", "object", obj.ID(), "instance", id, "error", err)
			rollback()
			return id, asStatus(err)
		}
	}

	if err := obj.AddInstance(id, subset); err != nil {
		rollback()
		return id, fmt.Errorf("%w: %v", status.ErrInternal, err)
	}

	e.markDirty([]model.URI{model.InstanceURI(obj.ID(), id)})
	e.debugLog("create", "object", obj.ID(), "instance", id, "values", len(p.values))
	return id, nil
}

// Delete removes the Instance at uri, or every Instance of the Object when
// uri has no instance level.
func (e *Engine) Delete(ctx context.Context, server model.ServerID, uri model.URI) error {
	if !uri.HasObject() || uri.HasResource() {
		return fmt.Errorf("delete %s: %w", uri, ErrInvalidTarget)
	}
	obj, inst, err := e.catalog.FindInstance(uri)
	if err != nil {
		return fmt.Errorf("delete %s: %w", uri, err)
	}
	deleter, ok := obj.Provider().(model.InstanceDeleter)
	if !ok {
		return fmt.Errorf("delete %s: %w", uri, ErrDeleteUnsupported)
	}

	ctx = e.providerContext(ctx, server)
	ids := obj.InstanceIDs()
	if inst != nil {
		ids = []model.ID{inst.ID}
	}
	for _, id := range ids {
		if err := e.deleteInstance(ctx, obj, deleter, id); err != nil {
			return fmt.Errorf("delete %s: %w", model.InstanceURI(obj.ID(), id), err)
		}
	}
	return nil
}

func (e *Engine) deleteInstance(ctx context.Context, obj *model.Object, deleter model.InstanceDeleter, id model.ID) error {
	if err := e.guard.Run(func() error { return deleter.Delete(ctx, id) }); err != nil {
		e.debugLog("delete: provider failed", "object", obj.ID(), "instance", id, "error", err)
		return asStatus(err)
	}
	if err := obj.RemoveInstance(id); err != nil {
		return err
	}

	uri := model.InstanceURI(obj.ID(), id)
	if e.listener != nil {
		e.listener.InstanceRemoved(uri)
	}
	e.markDirty([]model.URI{uri})
	e.debugLog("delete", "object", obj.ID(), "instance", id)
	return nil
}
