package observe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/plgd-dev/go-coap/v3/message"

	"github.com/mash-protocol/lwm2m-go/pkg/attribute"
	"github.com/mash-protocol/lwm2m-go/pkg/log"
	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/server"
	"github.com/mash-protocol/lwm2m-go/pkg/status"
	"github.com/mash-protocol/lwm2m-go/pkg/wire"
)

// Observation errors.
var (
	ErrEmptyToken    = fmt.Errorf("%w: observe requires a token", status.ErrBadRequest)
	ErrInvalidTarget = fmt.Errorf("%w: invalid observe target", status.ErrBadRequest)
	ErrNotObserved   = errors.New("observation not found")
)

// DefaultRecentMessageIDs is how many sent message ids an observation
// remembers for cancellation by Reset.
const DefaultRecentMessageIDs = 4

// Reader reads the current values under a URI.
type Reader interface {
	Read(ctx context.Context, server model.ServerID, uri model.URI) ([]model.Value, error)
}

// AttributeSource resolves effective Attribute Sets.
type AttributeSource interface {
	Get(server model.ServerID, uri model.URI, inherit bool, defaults *attribute.Set) (attribute.Set, bool)
}

// Sender transmits a message to a Server and returns the message id it
// was sent with.
type Sender interface {
	Send(ctx context.Context, server model.ServerID, msg *wire.Message) (uint16, error)
}

// Config configures an Engine.
type Config struct {
	// Logger receives operational logs. Nil disables them.
	Logger *slog.Logger

	// ProtocolLogger receives notification and lifecycle events.
	ProtocolLogger log.Logger

	// SessionID tags protocol events.
	SessionID string

	// RecentMessageIDs is the number of sent message ids kept per
	// observation. Defaults to DefaultRecentMessageIDs.
	RecentMessageIDs int

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Engine holds the observations of every Server.
type Engine struct {
	config  Config
	reader  Reader
	attrs   AttributeSource
	servers *server.Registry
	codec   wire.Codec
	sender  Sender
	guard   *model.CallbackGuard

	// Most recently started first.
	observations map[model.ServerID][]*Observation
}

// NewEngine creates an Engine reading values through reader and sending
// notifications through sender.
func NewEngine(reader Reader, attrs AttributeSource, servers *server.Registry, codec wire.Codec, sender Sender, guard *model.CallbackGuard, config Config) *Engine {
	if config.RecentMessageIDs <= 0 {
		config.RecentMessageIDs = DefaultRecentMessageIDs
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &Engine{
		config:       config,
		reader:       reader,
		attrs:        attrs,
		servers:      servers,
		codec:        codec,
		sender:       sender,
		guard:        guard,
		observations: make(map[model.ServerID][]*Observation),
	}
}

func (e *Engine) debugLog(msg string, args ...any) {
	if e.config.Logger != nil {
		e.config.Logger.Debug(msg, args...)
	}
}

func (e *Engine) warnLog(msg string, args ...any) {
	if e.config.Logger != nil {
		e.config.Logger.Warn(msg, args...)
	}
}

// Start registers an observation of uris for server.
//
// values are the values just read for the Observe request; they seed the
// numeric state of the targets. An observation of server with the same
// token is replaced. The observation is considered sent now.
func (e *Engine) Start(server model.ServerID, token []byte, uris []model.URI, format message.MediaType, values []model.Value) (*Observation, error) {
	if len(token) == 0 {
		return nil, ErrEmptyToken
	}
	if len(token) > wire.MaxTokenLength {
		return nil, fmt.Errorf("%w: token too long", ErrInvalidTarget)
	}
	if len(uris) == 0 {
		return nil, fmt.Errorf("%w: no uri", ErrInvalidTarget)
	}
	for _, uri := range uris {
		if !uri.Valid() || !uri.HasObject() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidTarget, uri)
		}
	}

	old, at := e.remove(server, ByToken(token))
	if old != nil {
		e.debugLog("observe: replacing observation", "server", server, "token", fmt.Sprintf("%x", token))
		old.replaced = nil
	}

	obs := newObservation(server, token, uris, format, e.config.RecentMessageIDs)
	obs.replaced, obs.replacedAt = old, at
	obs.LastSend = e.config.Clock()
	e.derive(obs)
	obs.recordValues(values)

	e.observations[server] = append([]*Observation{obs}, e.observations[server]...)
	e.logState(obs, "", "ACTIVE", "started")
	e.debugLog("observe: started", "server", server, "targets", len(uris), "periods", obs.Periods.String())
	return obs, nil
}

// derive recomputes the effective attributes of every target and the
// aggregate periods.
func (e *Engine) derive(obs *Observation) {
	defaults := e.serverDefaults(obs.Server)

	var periods attribute.Set
	var maxSet bool
	for _, t := range obs.Targets {
		t.Attrs, _ = e.attrs.Get(obs.Server, t.URI, true, defaults)

		if t.Attrs.Has(attribute.MinPeriod) {
			if !periods.Has(attribute.MinPeriod) || t.Attrs.MinPeriod > periods.MinPeriod {
				periods.Apply(attribute.Set{Flags: attribute.MinPeriod, MinPeriod: t.Attrs.MinPeriod})
			}
		}
		if p, ok := t.Attrs.EffectiveMaxPeriod(); ok {
			if !maxSet || p < periods.MaxPeriod {
				periods.Apply(attribute.Set{Flags: attribute.MaxPeriod, MaxPeriod: p})
				maxSet = true
			}
		}
	}
	if _, ok := periods.EffectiveMaxPeriod(); !ok {
		periods.Clear(attribute.MaxPeriod)
	}
	obs.Periods = periods
}

func (e *Engine) serverDefaults(id model.ServerID) *attribute.Set {
	srv, err := e.servers.Get(id)
	if err != nil {
		return nil
	}
	var s attribute.Set
	if srv.DefaultMinPeriod > 0 {
		s.Apply(attribute.Set{Flags: attribute.MinPeriod, MinPeriod: srv.DefaultMinPeriod})
	}
	if srv.DefaultMaxPeriod > 0 {
		s.Apply(attribute.Set{Flags: attribute.MaxPeriod, MaxPeriod: srv.DefaultMaxPeriod})
	}
	return &s
}

// Confirm marks the start of obs as final once the response to the Observe
// request was sent. The observation it replaced is released.
func (e *Engine) Confirm(obs *Observation) {
	obs.replaced = nil
}

// Rollback undoes the Start that created obs, for example when the response
// to the Observe request could not be sent. The observation obs replaced,
// if any, is reinstated at its former position.
func (e *Engine) Rollback(obs *Observation) {
	if removed, _ := e.remove(obs.Server, func(o *Observation) bool { return o == obs }); removed == nil {
		return
	}
	e.logState(obs, "ACTIVE", "CANCELED", "response not sent")

	old := obs.replaced
	obs.replaced = nil
	if old == nil {
		return
	}
	list := e.observations[old.Server]
	at := min(obs.replacedAt, len(list))
	e.observations[old.Server] = slices.Insert(list, at, old)
	e.logState(old, "", "ACTIVE", "restored")
	e.debugLog("observe: restored replaced observation", "server", old.Server, "token", fmt.Sprintf("%x", old.Token))
}

// Cancel removes the first observation of server selected by m.
func (e *Engine) Cancel(server model.ServerID, m Matcher) error {
	obs, _ := e.remove(server, m)
	if obs == nil {
		return ErrNotObserved
	}
	e.logState(obs, "ACTIVE", "CANCELED", "canceled by server")
	e.debugLog("observe: canceled", "server", server, "token", fmt.Sprintf("%x", obs.Token))
	return nil
}

func (e *Engine) remove(server model.ServerID, m Matcher) (*Observation, int) {
	list := e.observations[server]
	for i, obs := range list {
		if m(obs) {
			e.observations[server] = append(list[:i:i], list[i+1:]...)
			return obs, i
		}
	}
	return nil, -1
}

// NotifyAttributesChanged re-derives the attributes of the observations of
// server that watch uri or anything below it.
func (e *Engine) NotifyAttributesChanged(server model.ServerID, uri model.URI) {
	scope := uri.Truncate(model.DepthResource)
	for _, obs := range e.observations[server] {
		if obs.Covers(scope) {
			e.derive(obs)
		}
	}
}

// MarkDirty flags every observation watching a URI that overlaps uri.
// Evaluation happens on the next Tick.
func (e *Engine) MarkDirty(uri model.URI) {
	for _, list := range e.observations {
		for _, obs := range list {
			for _, t := range obs.Targets {
				if t.URI.Overlaps(uri) {
					t.pending = true
					obs.pending = true
				}
			}
		}
	}
}

// RemoveUnder drops every observation with a target at or below uri, for
// example after the Instance was deleted. It returns how many were dropped.
func (e *Engine) RemoveUnder(uri model.URI) int {
	n := 0
	for server, list := range e.observations {
		kept := list[:0]
		for _, obs := range list {
			if obs.Covers(uri) {
				e.logState(obs, "ACTIVE", "REMOVED", "removed "+uri.String())
				n++
				continue
			}
			kept = append(kept, obs)
		}
		clear(list[len(kept):])
		e.observations[server] = kept
	}
	if n > 0 {
		e.debugLog("observe: removed observations", "uri", uri.String(), "count", n)
	}
	return n
}

// RemoveServer drops every observation of server.
func (e *Engine) RemoveServer(server model.ServerID) {
	for _, obs := range e.observations[server] {
		e.logState(obs, "ACTIVE", "REMOVED", "server removed")
	}
	delete(e.observations, server)
}

// Observations returns the observations of server, most recent first.
func (e *Engine) Observations(server model.ServerID) []*Observation {
	return e.observations[server]
}

// Find returns the observation of server started with token.
func (e *Engine) Find(server model.ServerID, token []byte) (*Observation, bool) {
	match := ByToken(token)
	for _, obs := range e.observations[server] {
		if match(obs) {
			return obs, true
		}
	}
	return nil, false
}

// Count returns the number of observations across all Servers.
func (e *Engine) Count() int {
	n := 0
	for _, list := range e.observations {
		n += len(list)
	}
	return n
}

func (e *Engine) logState(obs *Observation, oldState, newState, reason string) {
	if e.config.ProtocolLogger == nil {
		return
	}
	e.config.ProtocolLogger.Log(log.Event{
		Timestamp: e.config.Clock(),
		SessionID: e.config.SessionID,
		ServerID:  uint16(obs.Server),
		Direction: log.DirectionOut,
		Layer:     log.LayerObserve,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityObservation,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
			Path:     obs.Base().String(),
		},
	})
}
