package interactive

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"

	"github.com/mash-protocol/lwm2m-go/pkg/client"
	"github.com/mash-protocol/lwm2m-go/pkg/inspect"
	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/objects"
	"github.com/mash-protocol/lwm2m-go/pkg/server"
	"github.com/mash-protocol/lwm2m-go/pkg/wire"
)

// parsePath resolves a path argument against the client's catalog.
func (c *Console) parsePath(arg string) (*inspect.Path, error) {
	var p *inspect.Path
	err := c.client.View(func(catalog *model.Catalog, _ client.ReadFunc) error {
		var err error
		p, err = inspect.ParsePath(arg, catalog)
		return err
	})
	if err != nil {
		return nil, err
	}
	if p.Server == 0 {
		p.Server = c.server
	}
	return p, nil
}

func (c *Console) newToken() []byte {
	c.nextToken++
	token := make([]byte, 4)
	binary.BigEndian.PutUint32(token, c.nextToken)
	return token
}

// request builds a confirmable request for p.
func (c *Console) request(p *inspect.Path, code codes.Code) *wire.Message {
	c.nextMID++
	return &wire.Message{
		Type:      wire.Confirmable,
		Code:      code,
		MessageID: c.nextMID,
		Token:     c.newToken(),
		Options:   wire.Options{Path: p.URI.String()},
	}
}

// send feeds msg to the client as coming from the Server of p.
func (c *Console) send(ctx context.Context, p *inspect.Path, msg *wire.Message) {
	c.loopback.Track(msg.Token, p.URI)
	fmt.Fprintf(c.out, "-> [%d] %s\n", p.Server, msg)
	if err := c.client.HandleMessage(ctx, p.Server, msg); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
}

// cmdGet handles the get command.
func (c *Console) cmdGet(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: get <path> [text|senml]")
		fmt.Fprintln(c.out, "  Example: get temperature/0/sensor_value")
		return
	}
	p, err := c.parsePath(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Invalid path: %v\n", err)
		return
	}
	msg := c.request(p, codes.GET)
	if len(args) > 1 {
		format, ok := parseFormat(args[1])
		if !ok {
			fmt.Fprintf(c.out, "Unknown format: %s\n", args[1])
			return
		}
		msg.Options.SetAccept(format)
	}
	c.send(ctx, p, msg)
}

func parseFormat(s string) (message.MediaType, bool) {
	switch strings.ToLower(s) {
	case "text", "plain":
		return message.TextPlain, true
	case "octets", "opaque":
		return message.AppOctets, true
	case "senml", "senml-cbor":
		return wire.FormatSenMLCBOR, true
	case "link":
		return message.AppLinkFormat, true
	}
	return 0, false
}

// cmdObserve handles the observe command.
func (c *Console) cmdObserve(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: observe <path>")
		return
	}
	p, err := c.parsePath(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Invalid path: %v\n", err)
		return
	}
	msg := c.request(p, codes.GET)
	msg.Options.SetObserve(wire.ObserveRegister)
	c.send(ctx, p, msg)
}

// findObservation selects an observation of server by token hex or by
// its single target.
func (c *Console) findObservation(server model.ServerID, arg string) (*client.ObservationInfo, bool) {
	list := c.client.Observations(server)
	if token, err := hex.DecodeString(strings.TrimPrefix(arg, "0x")); err == nil {
		for i := range list {
			if string(list[i].Token) == string(token) {
				return &list[i], true
			}
		}
	}
	p, err := c.parsePath(arg)
	if err != nil {
		return nil, false
	}
	for i := range list {
		if len(list[i].Targets) == 1 && list[i].Targets[0] == p.URI {
			return &list[i], true
		}
	}
	return nil, false
}

// cmdCancel handles the cancel command.
func (c *Console) cmdCancel(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: cancel <path|token>")
		return
	}
	obs, ok := c.findObservation(c.server, args[0])
	if !ok {
		fmt.Fprintf(c.out, "No observation matches %s\n", args[0])
		return
	}
	p := &inspect.Path{Server: obs.Server, URI: obs.Targets[0]}
	msg := c.request(p, codes.GET)
	msg.Token = obs.Token
	msg.Options.SetObserve(wire.ObserveDeregister)
	c.send(ctx, p, msg)
}

// cmdReset handles the reset command.
func (c *Console) cmdReset(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: reset <token>")
		return
	}
	obs, ok := c.findObservation(c.server, args[0])
	if !ok {
		fmt.Fprintf(c.out, "No observation matches %s\n", args[0])
		return
	}
	mid, ok := c.loopback.LastMessageID(obs.Token)
	if !ok {
		fmt.Fprintf(c.out, "Nothing sent for token %x yet\n", obs.Token)
		return
	}
	msg := &wire.Message{Type: wire.Reset, MessageID: mid}
	fmt.Fprintf(c.out, "-> [%d] %s\n", obs.Server, msg)
	if err := c.client.HandleMessage(ctx, obs.Server, msg); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
}

// assignments parses res=value arguments into values typed after the
// Resources of the Object of p. Each value URI is made by uriFor.
func (c *Console) assignments(p *inspect.Path, args []string, uriFor func(model.ID) model.URI) ([]model.Value, error) {
	var values []model.Value
	err := c.client.View(func(catalog *model.Catalog, _ client.ReadFunc) error {
		obj, err := catalog.Object(p.URI.ObjectID)
		if err != nil {
			return err
		}
		for _, arg := range args {
			name, raw, ok := strings.Cut(arg, "=")
			if !ok {
				return fmt.Errorf("expected <resource>=<value>, got %q", arg)
			}
			id, err := parseResourceID(obj, name)
			if err != nil {
				return err
			}
			res, err := obj.Resource(id)
			if err != nil {
				return fmt.Errorf("resource %s: %w", name, err)
			}
			v, err := model.Value{URI: uriFor(id), Data: raw}.Convert(res.Type)
			if err != nil {
				return err
			}
			values = append(values, v)
		}
		return nil
	})
	return values, err
}

func parseResourceID(obj *model.Object, s string) (model.ID, error) {
	if n, err := strconv.ParseUint(s, 10, 16); err == nil {
		return model.ID(n), nil
	}
	if id, ok := inspect.ResolveResourceName(obj, s); ok {
		return id, nil
	}
	return 0, fmt.Errorf("%w: %s", inspect.ErrUnknownName, s)
}

// senml encodes values as a SenML-CBOR payload of msg.
func (c *Console) senml(msg *wire.Message, base model.URI, values []model.Value) error {
	payload, format, err := c.codec.Serialize(base, values, wire.FormatSenMLCBOR)
	if err != nil {
		return err
	}
	msg.Payload = payload
	msg.Options.SetContentFormat(format)
	return nil
}

// cmdPut handles the put command.
func (c *Console) cmdPut(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: put <path> <value> | put <path> <res>=<value>...")
		return
	}
	p, err := c.parsePath(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Invalid path: %v\n", err)
		return
	}
	msg := c.request(p, codes.PUT)
	if p.URI.HasResource() {
		msg.Payload = []byte(strings.Join(args[1:], " "))
		msg.Options.SetContentFormat(message.TextPlain)
	} else {
		uri := p.URI
		values, err := c.assignments(p, args[1:], func(id model.ID) model.URI {
			return model.ResourceURI(uri.ObjectID, uri.InstanceID, id)
		})
		if err == nil {
			err = c.senml(msg, p.URI, values)
		}
		if err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
			return
		}
	}
	c.send(ctx, p, msg)
}

// cmdPost handles the post command: Execute on a Resource, Create on an
// Object and partial Write on an Instance.
func (c *Console) cmdPost(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: post <path> [args] | post <path> <res>=<value>...")
		return
	}
	p, err := c.parsePath(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Invalid path: %v\n", err)
		return
	}
	msg := c.request(p, codes.POST)

	uri := p.URI
	var uriFor func(model.ID) model.URI
	switch p.URI.Depth() {
	case model.DepthResource, model.DepthResourceInstance:
		if len(args) > 1 {
			msg.Payload = []byte(strings.Join(args[1:], " "))
		}
		c.send(ctx, p, msg)
		return
	case model.DepthObject:
		// Create names Resources directly under the Object.
		uriFor = func(id model.ID) model.URI { return model.InstanceURI(uri.ObjectID, id) }
	case model.DepthInstance:
		uriFor = func(id model.ID) model.URI { return model.ResourceURI(uri.ObjectID, uri.InstanceID, id) }
	default:
		c.send(ctx, p, msg)
		return
	}

	values, err := c.assignments(p, args[1:], uriFor)
	if err == nil && len(values) > 0 {
		err = c.senml(msg, p.URI, values)
	}
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	c.send(ctx, p, msg)
}

// cmdDelete handles the delete command.
func (c *Console) cmdDelete(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: delete <path>")
		return
	}
	p, err := c.parsePath(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Invalid path: %v\n", err)
		return
	}
	c.send(ctx, p, c.request(p, codes.DELETE))
}

// cmdAttrs handles the attrs command.
func (c *Console) cmdAttrs(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: attrs <path> pmin=<s> pmax=<s> gt=<v> lt=<v> st=<v> | <key> to clear")
		return
	}
	p, err := c.parsePath(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Invalid path: %v\n", err)
		return
	}
	msg := c.request(p, codes.PUT)
	msg.Options.Query = append([]string(nil), args[1:]...)
	c.send(ctx, p, msg)
}

// cmdDiscover handles the discover command.
func (c *Console) cmdDiscover(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: discover <path>")
		return
	}
	p, err := c.parsePath(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Invalid path: %v\n", err)
		return
	}
	msg := c.request(p, codes.GET)
	msg.Options.SetAccept(message.AppLinkFormat)
	c.send(ctx, p, msg)
}

// cmdSet handles the set command, changing a value the way the
// application would.
func (c *Console) cmdSet(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: set <path> <value>")
		fmt.Fprintln(c.out, "  Example: set temperature/0 23.5")
		fmt.Fprintln(c.out, "  Example: set device/0/battery_level 80")
		return
	}
	p, err := c.parsePath(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Invalid path: %v\n", err)
		return
	}

	switch {
	case p.URI.ObjectID == objects.TemperatureObjectID && p.URI.HasInstance() && c.objects.Temperature != nil:
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			fmt.Fprintf(c.out, "Invalid reading: %v\n", err)
			return
		}
		temp, id := c.objects.Temperature, p.URI.InstanceID
		err = c.client.Apply(func() error { return temp.Update(id, v) },
			model.ResourceURI(objects.TemperatureObjectID, id, objects.TemperatureValue),
			model.ResourceURI(objects.TemperatureObjectID, id, objects.TemperatureMinMeasured),
			model.ResourceURI(objects.TemperatureObjectID, id, objects.TemperatureMaxMeasured))
		if err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
			return
		}
		fmt.Fprintf(c.out, "Sensor %d = %.2f\n", id, v)

	case p.URI == model.ResourceURI(objects.DeviceObjectID, 0, objects.DeviceBatteryLevel) && c.objects.Device != nil:
		level, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || level < 0 || level > 100 {
			fmt.Fprintf(c.out, "Invalid battery level: %s\n", args[1])
			return
		}
		dev := c.objects.Device
		err = c.client.Apply(func() error {
			dev.BatteryLevel = level
			return nil
		}, p.URI)
		if err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
			return
		}
		fmt.Fprintf(c.out, "Battery level = %d%%\n", level)

	default:
		fmt.Fprintf(c.out, "Cannot set %s locally\n", p.URI)
	}
}

// cmdTick handles the tick command.
func (c *Console) cmdTick(ctx context.Context) {
	next := c.client.Step(ctx)
	fmt.Fprintf(c.out, "Next step in %s\n", next)
}

// cmdTree handles the tree command.
func (c *Console) cmdTree(ctx context.Context, args []string) {
	err := c.client.View(func(catalog *model.Catalog, read client.ReadFunc) error {
		in := inspect.NewInspector(catalog, inspect.ReadFunc(read))
		if len(args) == 0 {
			fmt.Fprint(c.out, c.formatter.FormatTree(in.InspectCatalog(ctx)))
			return nil
		}

		p, err := inspect.ParsePath(args[0], catalog)
		if err != nil {
			return err
		}
		switch p.URI.Depth() {
		case model.DepthRoot:
			fmt.Fprint(c.out, c.formatter.FormatTree(in.InspectCatalog(ctx)))
		case model.DepthObject:
			obj, err := in.InspectObject(ctx, p.URI.ObjectID)
			if err != nil {
				return err
			}
			fmt.Fprint(c.out, c.formatter.FormatTree([]inspect.ObjectInfo{*obj}))
		case model.DepthInstance:
			inst, err := in.InspectInstance(ctx, p.URI.ObjectID, p.URI.InstanceID)
			if err != nil {
				return err
			}
			fmt.Fprint(c.out, c.formatter.FormatResources(inst.Resources, 0))
		default:
			values, err := read(ctx, p.URI)
			if err != nil {
				return err
			}
			fmt.Fprint(c.out, c.formatter.FormatValues(values))
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
}

var statusNames = map[string]server.Status{
	"registered":     server.StatusRegistered,
	"update-pending": server.StatusUpdatePending,
	"unregistered":   server.StatusUnregistered,
}

// cmdServer handles the server command.
func (c *Console) cmdServer(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: server <id> <registered|update-pending|unregistered>")
		return
	}
	id, err := strconv.ParseUint(args[0], 10, 16)
	if err != nil {
		fmt.Fprintf(c.out, "Invalid server id: %s\n", args[0])
		return
	}
	st, ok := statusNames[strings.ToLower(args[1])]
	if !ok {
		fmt.Fprintf(c.out, "Unknown status: %s\n", args[1])
		return
	}
	if err := c.client.SetServerStatus(model.ServerID(id), st); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
}

// cmdStatus handles the status command.
func (c *Console) cmdStatus() {
	fmt.Fprintf(c.out, "Session: %s\n", c.client.SessionID())
	servers := c.client.Servers()
	if len(servers) == 0 {
		fmt.Fprintln(c.out, "No servers")
		return
	}
	for _, srv := range servers {
		line := fmt.Sprintf("Server %d: %s", srv.ShortID, srv.Status)
		if srv.UpdateDue {
			line += " (update due)"
		}
		if srv.ShortID == c.server {
			line += " *"
		}
		fmt.Fprintln(c.out, line)

		obs := c.client.Observations(srv.ShortID)
		if len(obs) == 0 {
			fmt.Fprintln(c.out, "  (no observations)")
		}
		for _, o := range obs {
			pending := ""
			if o.Pending {
				pending = " pending"
			}
			fmt.Fprintf(c.out, "  %s%s\n", o.Summary, pending)
		}
	}
}
