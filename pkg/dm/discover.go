package dm

import (
	"context"
	"strconv"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"

	"github.com/mash-protocol/lwm2m-go/pkg/attribute"
	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/server"
	"github.com/mash-protocol/lwm2m-go/pkg/status"
	"github.com/mash-protocol/lwm2m-go/pkg/wire"
)

func (r *Router) handleDiscover(ctx context.Context, srv *server.Server, uri model.URI, req *wire.Message) outcome {
	links, err := r.Discover(ctx, srv.ShortID, uri)
	if err != nil {
		return r.fail(req, err)
	}
	resp := wire.NewResponse(req, codes.Content)
	resp.Options.SetContentFormat(message.AppLinkFormat)
	resp.Payload = wire.EncodeLinks(links)
	return outcome{resp: resp}
}

// Discover lists the nodes at and below uri with their attributes.
//
// The requested node carries its effective attributes, inherited from the
// levels above it. Nodes below it carry only the attributes assigned to
// them. Objects with a version other than 1.0 carry ver and multiple
// Resources carry dim. A Resource-level discover also lists the Resource
// Instances.
func (r *Router) Discover(ctx context.Context, serverID model.ServerID, uri model.URI) ([]wire.Link, error) {
	switch uri.Depth() {
	case model.DepthObject, model.DepthInstance, model.DepthResource:
	default:
		return nil, status.ErrMethodNotAllowed
	}
	obj, inst, res, err := r.catalog.FindResource(uri)
	if err != nil {
		return nil, err
	}

	d := discovery{r: r, ctx: ctx, server: serverID, obj: obj}
	switch uri.Depth() {
	case model.DepthObject:
		d.object(true)
		for _, in := range obj.Instances() {
			if err := d.instance(in, false); err != nil {
				return nil, err
			}
		}
	case model.DepthInstance:
		if err := d.instance(inst, true); err != nil {
			return nil, err
		}
	case model.DepthResource:
		if err := d.resource(inst, res, true); err != nil {
			return nil, err
		}
	}
	return d.links, nil
}

type discovery struct {
	r      *Router
	ctx    context.Context
	server model.ServerID
	obj    *model.Object
	links  []wire.Link
}

func (d *discovery) attrs(uri model.URI, requested bool) []wire.LinkParam {
	set, ok := d.r.attrs.Get(d.server, uri, requested, nil)
	if !ok {
		return nil
	}
	return linkParams(set)
}

func (d *discovery) object(requested bool) {
	uri := model.ObjectURI(d.obj.ID())
	var params []wire.LinkParam
	if v := d.obj.Version(); v != model.DefaultVersion {
		params = append(params, wire.LinkParam{Key: "ver", Value: v.String()})
	}
	params = append(params, d.attrs(uri, requested)...)
	d.links = append(d.links, wire.Link{Target: uri, Params: params})
}

// instance lists inst and its Resources.
func (d *discovery) instance(inst *model.Instance, requested bool) error {
	uri := model.InstanceURI(d.obj.ID(), inst.ID)
	d.links = append(d.links, wire.Link{Target: uri, Params: d.attrs(uri, requested)})
	for _, res := range d.obj.InstanceResources(inst) {
		if err := d.resource(inst, res, false); err != nil {
			return err
		}
	}
	return nil
}

// resource lists res of inst. A requested Resource also lists its
// Resource Instances.
func (d *discovery) resource(inst *model.Instance, res *model.ResourceDescriptor, requested bool) error {
	uri := model.ResourceURI(d.obj.ID(), inst.ID, res.ID)
	var (
		params []wire.LinkParam
		ids    []model.ID
	)
	if res.Multiple() {
		var err error
		ids, err = d.r.data.ResourceInstanceIDs(d.ctx, d.server, uri)
		if err != nil {
			return err
		}
		params = append(params, wire.LinkParam{Key: "dim", Value: strconv.Itoa(len(ids))})
	}
	params = append(params, d.attrs(uri, requested)...)
	d.links = append(d.links, wire.Link{Target: uri, Params: params})

	if requested {
		for _, id := range ids {
			d.links = append(d.links, wire.Link{Target: model.ResourceInstanceURI(d.obj.ID(), inst.ID, res.ID, id)})
		}
	}
	return nil
}

func linkParams(s attribute.Set) []wire.LinkParam {
	pairs := s.Params()
	params := make([]wire.LinkParam, len(pairs))
	for i, p := range pairs {
		params[i] = wire.LinkParam{Key: p[0], Value: p[1]}
	}
	return params
}
