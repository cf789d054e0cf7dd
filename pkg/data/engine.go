package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/status"
)

// Engine errors.
var (
	ErrNotReadable       = fmt.Errorf("%w: resource is not readable", status.ErrMethodNotAllowed)
	ErrNotWritable       = fmt.Errorf("%w: resource is not writable", status.ErrMethodNotAllowed)
	ErrNotExecutable     = fmt.Errorf("%w: resource is not executable", status.ErrMethodNotAllowed)
	ErrCreateUnsupported = fmt.Errorf("%w: object does not support create", status.ErrMethodNotAllowed)
	ErrDeleteUnsupported = fmt.Errorf("%w: object does not support delete", status.ErrMethodNotAllowed)
	ErrInvalidTarget     = fmt.Errorf("%w: operation not allowed on this path", status.ErrMethodNotAllowed)
	ErrEmptyPayload      = fmt.Errorf("%w: payload is empty", status.ErrBadRequest)
	ErrInvalidPayload    = fmt.Errorf("%w: invalid payload", status.ErrBadRequest)
	ErrMissingMandatory  = fmt.Errorf("%w: mandatory resource missing", status.ErrBadRequest)
)

// Listener receives catalog changes caused by the engine.
type Listener interface {
	// MarkDirty is called, inside the callback guard, for every Resource
	// changed by a Write and every Instance created.
	MarkDirty(uri model.URI)

	// InstanceRemoved is called after an Instance was deleted.
	InstanceRemoved(uri model.URI)
}

// Config configures an Engine.
type Config struct {
	// Logger receives debug traces. Nil disables logging.
	Logger *slog.Logger

	// Listener is notified of changes. Nil disables notification.
	Listener Listener
}

// Engine is the Data Access Engine.
type Engine struct {
	catalog  *model.Catalog
	guard    *model.CallbackGuard
	listener Listener
	logger   *slog.Logger
}

// NewEngine creates an engine over catalog. guard brackets every Provider
// call.
func NewEngine(catalog *model.Catalog, guard *model.CallbackGuard, cfg Config) *Engine {
	return &Engine{
		catalog:  catalog,
		guard:    guard,
		listener: cfg.Listener,
		logger:   cfg.Logger,
	}
}

// SetListener replaces the change listener.
func (e *Engine) SetListener(l Listener) {
	e.listener = l
}

// Catalog returns the catalog the engine works on.
func (e *Engine) Catalog() *model.Catalog {
	return e.catalog
}

func (e *Engine) debugLog(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

func (e *Engine) markDirty(uris []model.URI) {
	if e.listener == nil || len(uris) == 0 {
		return
	}
	e.guard.Enter()
	defer e.guard.Leave()
	for _, u := range uris {
		e.listener.MarkDirty(u)
	}
}

// providerContext prepares ctx for Provider callbacks made on behalf of
// server. Changes the Provider reports through it reach the listener.
func (e *Engine) providerContext(ctx context.Context, server model.ServerID) context.Context {
	ctx = model.WithServer(ctx, server)
	return model.WithChangeReporter(ctx, func(uri model.URI) {
		if e.listener != nil {
			e.listener.MarkDirty(uri)
		}
	})
}

// target pairs a value slot with the descriptor it was built from.
type target struct {
	res *model.ResourceDescriptor
}

// Read expands uri into every readable (instance, resource, resource
// instance) tuple and fills the values through the Object's Provider.
//
// A wildcard URI matching nothing yields an empty list without error.
func (e *Engine) Read(ctx context.Context, server model.ServerID, uri model.URI) ([]model.Value, error) {
	if !uri.HasObject() {
		return nil, fmt.Errorf("read %s: %w", uri, ErrInvalidTarget)
	}
	obj, inst, res, err := e.catalog.FindResource(uri)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", uri, err)
	}
	if res != nil && !res.Operations.CanRead() {
		return nil, fmt.Errorf("read %s: %w", uri, ErrNotReadable)
	}
	if res != nil && uri.HasResourceInstance() && !res.Multiple() {
		return nil, fmt.Errorf("read %s: %w", uri, model.ErrResourceNotFound)
	}

	ctx = e.providerContext(ctx, server)

	instances := obj.Instances()
	if inst != nil {
		instances = []*model.Instance{inst}
	}

	var (
		values  []model.Value
		targets []target
	)
	for _, in := range instances {
		resources := obj.InstanceResources(in)
		if res != nil {
			resources = []*model.ResourceDescriptor{res}
		}
		for _, r := range resources {
			if !r.Operations.CanRead() {
				continue
			}
			base := model.ResourceURI(obj.ID(), in.ID, r.ID)
			if !r.Multiple() {
				values = append(values, model.Value{URI: base, Type: r.Type})
				targets = append(targets, target{res: r})
				continue
			}

			ids, err := e.dimension(ctx, obj, in.ID, r.ID)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", base, err)
			}
			if uri.HasResourceInstance() {
				if !slices.Contains(ids, uri.ResourceInstanceID) {
					return nil, fmt.Errorf("read %s: %w", uri, model.ErrResourceNotFound)
				}
				ids = []model.ID{uri.ResourceInstanceID}
			}
			values = slices.Grow(values, len(ids))
			for _, id := range ids {
				values = append(values, model.Value{
					URI:  model.ResourceInstanceURI(obj.ID(), in.ID, r.ID, id),
					Type: r.Type,
				})
				targets = append(targets, target{res: r})
			}
		}
	}

	if len(values) == 0 {
		return values, nil
	}

	err = e.guard.Run(func() error {
		return obj.Provider().Read(ctx, values)
	})
	if err != nil {
		e.debugLog("read: provider failed", "uri", uri.String(), "error", err)
		return nil, fmt.Errorf("read %s: %w", uri, asStatus(err))
	}

	for i := range values {
		if values[i].Type == model.TypeUndefined && values[i].Data == nil {
			continue
		}
		v, err := values[i].Convert(targets[i].res.Type)
		if err != nil {
			return nil, fmt.Errorf("read %s: provider returned %s: %w", values[i].URI, values[i].Type, status.ErrInternal)
		}
		values[i] = v
	}

	e.debugLog("read", "server", server, "uri", uri.String(), "values", len(values))
	return values, nil
}

// ResourceInstanceIDs returns the Resource Instance ids of the multiple
// Resource addressed by uri.
func (e *Engine) ResourceInstanceIDs(ctx context.Context, server model.ServerID, uri model.URI) ([]model.ID, error) {
	obj, _, res, err := e.catalog.FindResource(uri.Truncate(model.DepthResource))
	if err != nil {
		return nil, err
	}
	if res == nil || !uri.HasInstance() {
		return nil, ErrInvalidTarget
	}
	if !res.Multiple() {
		return nil, nil
	}
	return e.dimension(e.providerContext(ctx, server), obj, uri.InstanceID, uri.ResourceID)
}

func (e *Engine) dimension(ctx context.Context, obj *model.Object, instanceID, resourceID model.ID) ([]model.ID, error) {
	dim, ok := obj.Provider().(model.Dimensioner)
	if !ok {
		return nil, fmt.Errorf("%w: object %d cannot enumerate resource instances", status.ErrInternal, obj.ID())
	}
	var ids []model.ID
	err := e.guard.Run(func() error {
		var err error
		ids, err = dim.ResourceInstances(ctx, instanceID, resourceID)
		return err
	})
	if err != nil {
		return nil, asStatus(err)
	}
	return ids, nil
}

// checkDataConsistency validates one payload value against its descriptor.
func checkDataConsistency(v model.Value, res *model.ResourceDescriptor) error {
	if v.Type != res.Type {
		return fmt.Errorf("%w: %s has type %s, resource is %s", ErrInvalidPayload, v.URI, v.Type, res.Type)
	}
	if v.Type == model.TypeUnsignedInteger {
		if _, ok := v.Data.(uint64); !ok {
			if n, ok := v.Int64(); !ok || n < 0 {
				return fmt.Errorf("%w: %s is not a non-negative integer", ErrInvalidPayload, v.URI)
			}
		}
	}
	if v.Timestamp != 0 {
		return fmt.Errorf("%w: %s carries a timestamp", ErrInvalidPayload, v.URI)
	}
	if v.URI.HasResourceInstance() && !res.Multiple() {
		return fmt.Errorf("%w: %s addresses an instance of a single resource", ErrInvalidPayload, v.URI)
	}
	return nil
}

// normalize converts v to the descriptor's type and checks it.
func normalize(v model.Value, res *model.ResourceDescriptor) (model.Value, error) {
	c, err := v.Convert(res.Type)
	if err != nil {
		return v, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := checkDataConsistency(c, res); err != nil {
		return v, err
	}
	return c, nil
}

// Write stores values through their Objects' Providers.
//
// Values must address Resources (or Resource Instances) of existing
// Instances. Each contiguous run of values for one Object is passed to its
// Provider in a single call. Every written Resource is marked dirty once the
// run succeeded.
func (e *Engine) Write(ctx context.Context, server model.ServerID, values []model.Value, mode model.WriteMode) error {
	if len(values) == 0 {
		return ErrEmptyPayload
	}
	ctx = e.providerContext(ctx, server)

	prepared := make([]model.Value, len(values))
	for i, v := range values {
		if !v.URI.HasResource() || !v.URI.Valid() {
			return fmt.Errorf("write %s: %w", v.URI, ErrInvalidPayload)
		}
		_, _, res, err := e.catalog.FindResource(v.URI)
		if err != nil {
			return fmt.Errorf("write %s: %w", v.URI, err)
		}
		if !res.Operations.CanWrite() {
			return fmt.Errorf("write %s: %w", v.URI, ErrNotWritable)
		}
		if prepared[i], err = normalize(v, res); err != nil {
			return err
		}
	}

	for start := 0; start < len(prepared); {
		end := start + 1
		for end < len(prepared) && prepared[end].URI.ObjectID == prepared[start].URI.ObjectID {
			end++
		}
		run := prepared[start:end]
		obj, err := e.catalog.Object(run[0].URI.ObjectID)
		if err != nil {
			return err
		}
		if err := e.writeRun(ctx, obj, run, mode); err != nil {
			e.debugLog("write: provider failed", "object", obj.ID(), "error", err)
			return fmt.Errorf("write /%d: %w", obj.ID(), asStatus(err))
		}
		e.markDirty(resourcesOf(run))
		start = end
	}

	e.debugLog("write", "server", server, "values", len(values), "mode", mode.String())
	return nil
}

func (e *Engine) writeRun(ctx context.Context, obj *model.Object, run []model.Value, mode model.WriteMode) error {
	return e.guard.Run(func() error {
		if mode == model.WriteReplace {
			if deleter, ok := obj.Provider().(model.ResourceInstanceDeleter); ok {
				for _, v := range run {
					if !v.URI.HasResourceInstance() {
						continue
					}
					if err := deleter.DeleteResourceInstance(ctx, v.URI); err != nil && !errors.Is(err, status.ErrNotFound) {
						return err
					}
				}
			}
		}
		return obj.Provider().Write(ctx, run, mode)
	})
}

func resourcesOf(values []model.Value) []model.URI {
	var out []model.URI
	for _, v := range values {
		u := v.URI.Truncate(model.DepthResource)
		if !slices.Contains(out, u) {
			out = append(out, u)
		}
	}
	return out
}

// Execute runs the executable Resource at uri. args is nil when the
// request carried no payload.
func (e *Engine) Execute(ctx context.Context, server model.ServerID, uri model.URI, args []byte) error {
	if uri.Depth() != model.DepthResource {
		return fmt.Errorf("execute %s: %w", uri, ErrInvalidTarget)
	}
	obj, _, res, err := e.catalog.FindResource(uri)
	if err != nil {
		return fmt.Errorf("execute %s: %w", uri, err)
	}
	if !res.Operations.CanExecute() {
		return fmt.Errorf("execute %s: %w", uri, ErrNotExecutable)
	}

	ctx = e.providerContext(ctx, server)
	err = e.guard.Run(func() error {
		return obj.Provider().Execute(ctx, uri, args)
	})
	if err != nil {
		e.debugLog("execute: provider failed", "uri", uri.String(), "error", err)
		return fmt.Errorf("execute %s: %w", uri, asStatus(err))
	}
	e.debugLog("execute", "server", server, "uri", uri.String(), "args", len(args))
	return nil
}

// asStatus leaves status errors alone and wraps anything else as an
// internal error.
func asStatus(err error) error {
	var se *status.Error
	if errors.As(err, &se) {
		return err
	}
	return fmt.Errorf("%w: %v", status.ErrInternal, err)
}
