package dm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"

	"github.com/mash-protocol/lwm2m-go/pkg/attribute"
	"github.com/mash-protocol/lwm2m-go/pkg/data"
	"github.com/mash-protocol/lwm2m-go/pkg/log"
	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/observe"
	"github.com/mash-protocol/lwm2m-go/pkg/server"
	"github.com/mash-protocol/lwm2m-go/pkg/status"
	"github.com/mash-protocol/lwm2m-go/pkg/wire"
)

// Router errors.
var (
	ErrPayloadNotAllowed = fmt.Errorf("%w: request must not carry a payload", status.ErrBadRequest)
	ErrPayloadRequired   = fmt.Errorf("%w: request requires a payload", status.ErrBadRequest)
	ErrObserveNotAllowed = fmt.Errorf("%w: observe option not allowed", status.ErrBadRequest)
	ErrOutsideTarget     = fmt.Errorf("%w: payload value outside the request uri", status.ErrBadRequest)
	ErrMissingFormat     = fmt.Errorf("%w: missing content format", status.ErrBadRequest)
)

// Config configures a Router.
type Config struct {
	// Logger receives operational logs. Nil disables them.
	Logger *slog.Logger

	// ProtocolLogger receives every request and response.
	ProtocolLogger log.Logger

	// SessionID tags protocol events.
	SessionID string

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Router handles requests from Servers.
type Router struct {
	config  Config
	catalog *model.Catalog
	data    *data.Engine
	attrs   *attribute.Store
	observe *observe.Engine
	servers *server.Registry
	codec   wire.Codec
	sender  observe.Sender
}

// NewRouter creates a Router over the given engines. Responses go out
// through sender.
func NewRouter(dataEngine *data.Engine, attrs *attribute.Store, obs *observe.Engine, servers *server.Registry, codec wire.Codec, sender observe.Sender, config Config) *Router {
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &Router{
		config:  config,
		catalog: dataEngine.Catalog(),
		data:    dataEngine,
		attrs:   attrs,
		observe: obs,
		servers: servers,
		codec:   codec,
		sender:  sender,
	}
}

func (r *Router) debugLog(msg string, args ...any) {
	if r.config.Logger != nil {
		r.config.Logger.Debug(msg, args...)
	}
}

// outcome is the result of handling one request.
type outcome struct {
	resp *wire.Message

	// started is set when the request created an observation.
	started *observe.Observation
}

// HandleRequest processes req from server and sends the response.
//
// Requests from unknown or unregistered Servers are ignored. When the
// response of an Observe request cannot be sent the new observation is
// rolled back, reinstating any observation with the same token it replaced.
func (r *Router) HandleRequest(ctx context.Context, serverID model.ServerID, req *wire.Message) error {
	start := r.config.Clock()
	srv, err := r.servers.Get(serverID)
	if err != nil || !srv.Status.AcceptsRequests() {
		r.debugLog("dm: ignoring request", "server", serverID, "request", req.String())
		return nil
	}
	r.logMessage(serverID, log.DirectionIn, log.MessageTypeRequest, req, nil)

	out := r.dispatch(ctx, srv, req)
	if out.resp == nil {
		return nil
	}

	id, err := r.sender.Send(ctx, serverID, out.resp)
	if err != nil {
		if out.started != nil {
			r.observe.Rollback(out.started)
			r.debugLog("dm: observe response not sent, observation rolled back", "server", serverID, "error", err)
		}
		if errors.Is(err, status.ErrRequestTooLarge) && status.IsSuccess(out.resp.Code) {
			fallback := wire.NewResponse(req, status.CodeOf(err))
			if _, ferr := r.sender.Send(ctx, serverID, fallback); ferr == nil {
				r.logMessage(serverID, log.DirectionOut, log.MessageTypeResponse, fallback, nil)
			}
		}
		return fmt.Errorf("send response: %w", err)
	}
	out.resp.MessageID = id
	if out.started != nil {
		out.started.RecordMessageID(id)
		r.observe.Confirm(out.started)
	}

	elapsed := r.config.Clock().Sub(start)
	r.logMessage(serverID, log.DirectionOut, log.MessageTypeResponse, out.resp, &elapsed)
	return nil
}

// HandleReset cancels the observation of server that recently sent the
// message a Reset referred to.
func (r *Router) HandleReset(serverID model.ServerID, messageID uint16) error {
	r.logMessage(serverID, log.DirectionIn, log.MessageTypeReset, &wire.Message{Type: wire.Reset, MessageID: messageID}, nil)
	err := r.observe.Cancel(serverID, observe.ByMessageID(messageID))
	if err != nil {
		r.debugLog("dm: reset matches no observation", "server", serverID, "mid", messageID)
	}
	return err
}

func (r *Router) dispatch(ctx context.Context, srv *server.Server, req *wire.Message) outcome {
	uri, err := model.ParseURI(req.Options.Path)
	if err != nil {
		return r.fail(req, fmt.Errorf("%w: %v", status.ErrBadRequest, err))
	}

	switch req.Code {
	case codes.GET:
		return r.handleGet(ctx, srv, uri, req)
	case codes.POST:
		return r.handlePost(ctx, srv, uri, req)
	case codes.PUT:
		return r.handlePut(ctx, srv, uri, req)
	case codes.DELETE:
		return r.handleDelete(ctx, srv, uri, req)
	case wire.FETCH, wire.IPATCH:
		return r.fail(req, status.ErrNotImplemented)
	default:
		return r.fail(req, status.ErrMethodNotAllowed)
	}
}

// fail builds the error response for err.
func (r *Router) fail(req *wire.Message, err error) outcome {
	code := status.CodeOf(err)
	r.debugLog("dm: request failed", "request", req.String(), "code", status.ClassString(code), "error", err)
	return outcome{resp: wire.NewResponse(req, code)}
}

// succeed builds a success response. Non-confirmable requests get no
// response unless it carries content.
func (r *Router) succeed(req *wire.Message, code codes.Code) outcome {
	if req.Type == wire.NonConfirmable {
		return outcome{}
	}
	return outcome{resp: wire.NewResponse(req, code)}
}

func (r *Router) handleGet(ctx context.Context, srv *server.Server, uri model.URI, req *wire.Message) outcome {
	if len(req.Payload) > 0 {
		return r.fail(req, ErrPayloadNotAllowed)
	}
	if req.Options.HasAccept && req.Options.Accept == message.AppLinkFormat {
		if req.Options.HasObserve {
			return r.fail(req, ErrObserveNotAllowed)
		}
		return r.handleDiscover(ctx, srv, uri, req)
	}

	values, err := r.data.Read(ctx, srv.ShortID, uri)
	if err != nil {
		return r.fail(req, err)
	}

	format := wire.FormatUnspecified
	if req.Options.HasAccept {
		format = req.Options.Accept
	}

	var started *observe.Observation
	if req.Options.HasObserve {
		switch req.Options.Observe {
		case wire.ObserveRegister:
			started, err = r.observe.Start(srv.ShortID, req.Token, []model.URI{uri}, format, values)
			if err != nil {
				return r.fail(req, err)
			}
		case wire.ObserveDeregister:
			_ = r.observe.Cancel(srv.ShortID, observe.ByToken(req.Token))
		}
	}

	payload, cf, err := r.codec.Serialize(uri, values, format)
	if err != nil {
		if started != nil {
			r.observe.Rollback(started)
		}
		return r.fail(req, err)
	}

	resp := wire.NewResponse(req, codes.Content)
	resp.Options.SetContentFormat(cf)
	resp.Payload = payload
	if started != nil {
		started.Format = cf
		resp.Options.SetObserve(started.NextSequence())
	}
	return outcome{resp: resp, started: started}
}

// decode deserializes the payload of req addressed to uri.
func (r *Router) decode(uri model.URI, req *wire.Message) ([]model.Value, error) {
	if len(req.Payload) == 0 {
		return nil, ErrPayloadRequired
	}
	if !req.Options.HasContentFormat {
		return nil, ErrMissingFormat
	}
	return r.codec.Deserialize(uri, req.Payload, req.Options.ContentFormat)
}

func (r *Router) handlePost(ctx context.Context, srv *server.Server, uri model.URI, req *wire.Message) outcome {
	if req.Options.HasObserve {
		return r.fail(req, ErrObserveNotAllowed)
	}

	switch uri.Depth() {
	case model.DepthObject:
		values, err := r.decode(uri, req)
		if err != nil {
			return r.fail(req, err)
		}
		ids, err := r.data.Create(ctx, srv.ShortID, uri, values, false)
		if err != nil {
			return r.fail(req, err)
		}
		r.servers.MarkUpdateDue()
		resp := wire.NewResponse(req, codes.Created)
		if len(ids) > 0 {
			created := model.InstanceURI(uri.ObjectID, ids[0])
			resp.Options.LocationPath = created.String()
			r.logInstance(srv.ShortID, created, "CREATED")
		}
		return outcome{resp: resp}

	case model.DepthInstance:
		values, err := r.decode(uri, req)
		if err != nil {
			return r.fail(req, err)
		}
		if err := r.write(ctx, srv, uri, values, model.WritePartial); err != nil {
			return r.fail(req, err)
		}
		return r.succeed(req, codes.Changed)

	case model.DepthResource:
		if err := r.data.Execute(ctx, srv.ShortID, uri, req.Payload); err != nil {
			return r.fail(req, err)
		}
		return r.succeed(req, codes.Changed)

	default:
		return r.fail(req, status.ErrMethodNotAllowed)
	}
}

func (r *Router) handlePut(ctx context.Context, srv *server.Server, uri model.URI, req *wire.Message) outcome {
	if req.Options.HasObserve {
		return r.fail(req, ErrObserveNotAllowed)
	}

	if len(req.Options.Query) > 0 {
		if len(req.Payload) > 0 {
			return r.fail(req, ErrPayloadNotAllowed)
		}
		update, err := attribute.ParseQuery(req.Options.Query)
		if err != nil {
			return r.fail(req, err)
		}
		if err := r.attrs.Write(srv.ShortID, uri, update); err != nil {
			return r.fail(req, err)
		}
		r.observe.NotifyAttributesChanged(srv.ShortID, uri)
		r.debugLog("dm: attributes written", "server", srv.ShortID, "uri", uri.String(), "update", update.Set.String())
		return r.succeed(req, codes.Changed)
	}

	if uri.Depth() < model.DepthInstance {
		return r.fail(req, status.ErrMethodNotAllowed)
	}
	values, err := r.decode(uri, req)
	if err != nil {
		return r.fail(req, err)
	}
	if err := r.write(ctx, srv, uri, values, model.WriteReplace); err != nil {
		return r.fail(req, err)
	}
	return r.succeed(req, codes.Changed)
}

// write checks that every value lies under uri and writes them.
func (r *Router) write(ctx context.Context, srv *server.Server, uri model.URI, values []model.Value, mode model.WriteMode) error {
	if len(values) == 0 {
		return data.ErrEmptyPayload
	}
	for _, v := range values {
		if !uri.Contains(v.URI) {
			return fmt.Errorf("%w: %s not under %s", ErrOutsideTarget, v.URI, uri)
		}
	}
	return r.data.Write(ctx, srv.ShortID, values, mode)
}

func (r *Router) handleDelete(ctx context.Context, srv *server.Server, uri model.URI, req *wire.Message) outcome {
	if uri.Depth() != model.DepthInstance {
		return r.fail(req, status.ErrMethodNotAllowed)
	}
	if err := r.data.Delete(ctx, srv.ShortID, uri); err != nil {
		return r.fail(req, err)
	}
	r.servers.MarkUpdateDue()
	r.logInstance(srv.ShortID, uri, "DELETED")
	return r.succeed(req, codes.Deleted)
}

func (r *Router) logMessage(serverID model.ServerID, dir log.Direction, mt log.MessageType, msg *wire.Message, elapsed *time.Duration) {
	if r.config.ProtocolLogger == nil {
		return
	}
	ev := log.NewMessageEvent(mt, msg)
	ev.ProcessingTime = elapsed
	r.config.ProtocolLogger.Log(log.Event{
		Timestamp: r.config.Clock(),
		SessionID: r.config.SessionID,
		ServerID:  uint16(serverID),
		Direction: dir,
		Layer:     log.LayerRouter,
		Category:  log.CategoryMessage,
		Message:   ev,
	})
}

func (r *Router) logInstance(serverID model.ServerID, uri model.URI, state string) {
	if r.config.ProtocolLogger == nil {
		return
	}
	r.config.ProtocolLogger.Log(log.Event{
		Timestamp: r.config.Clock(),
		SessionID: r.config.SessionID,
		ServerID:  uint16(serverID),
		Layer:     log.LayerRouter,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityInstance,
			NewState: state,
			Path:     uri.String(),
		},
	})
}
