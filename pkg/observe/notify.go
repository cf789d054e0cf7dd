package observe

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/plgd-dev/go-coap/v3/message/codes"

	"github.com/mash-protocol/lwm2m-go/pkg/attribute"
	"github.com/mash-protocol/lwm2m-go/pkg/log"
	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/server"
	"github.com/mash-protocol/lwm2m-go/pkg/status"
	"github.com/mash-protocol/lwm2m-go/pkg/wire"
)

// crossed reports whether a value moving from old to new crosses
// threshold. The side being left is inclusive.
func crossed(prev, cur, threshold float64) bool {
	return (cur < threshold && prev >= threshold) || (cur > threshold && prev <= threshold)
}

// fires reports whether moving from prev to cur triggers a notification
// under the numeric attributes of s.
func fires(s attribute.Set, prev, cur float64) bool {
	if s.Has(attribute.GreaterThan) && crossed(prev, cur, s.GreaterThan) {
		return true
	}
	if s.Has(attribute.LessThan) && crossed(prev, cur, s.LessThan) {
		return true
	}
	if s.Has(attribute.Step) && math.Abs(cur-prev) >= s.Step {
		return true
	}
	return false
}

// Tick evaluates every observation of every Server accepting requests and
// sends the notifications that are due.
//
// It returns how long the scheduler may sleep before a minimum or maximum
// period expires. The boolean is false when no deadline is pending.
func (e *Engine) Tick(ctx context.Context) (time.Duration, bool) {
	now := e.config.Clock()
	var (
		hint    time.Duration
		hasHint bool
	)
	for _, srv := range e.servers.All() {
		if !srv.Status.AcceptsRequests() {
			continue
		}
		// Observations may be removed while iterating.
		list := append([]*Observation(nil), e.observations[srv.ShortID]...)
		for _, obs := range list {
			d, ok := e.tickObservation(ctx, srv, obs, now)
			if ok && (!hasHint || d < hint) {
				hint, hasHint = d, true
			}
		}
	}
	return hint, hasHint
}

func (e *Engine) tickObservation(ctx context.Context, srv *server.Server, obs *Observation, now time.Time) (time.Duration, bool) {
	var (
		hint    time.Duration
		hasHint bool
	)
	deadline := func(d time.Duration) {
		d = max(d, 0)
		if !hasHint || d < hint {
			hint, hasHint = d, true
		}
	}

	if obs.pending && !e.guard.Active() {
		minPeriod, hasMin := obs.MinPeriod()
		if hasMin && obs.LastSend.Add(minPeriod).After(now) {
			deadline(obs.LastSend.Add(minPeriod).Sub(now))
		} else {
			values, err := e.readTargets(ctx, obs)
			if err != nil {
				e.fail(ctx, srv, obs, err)
				return 0, false
			}
			fire := e.evaluate(obs, values)
			obs.clearPending()
			if fire {
				if !e.send(ctx, srv, obs, values, now) {
					return 0, false
				}
			} else {
				obs.recordValues(values)
			}
		}
	}

	if maxPeriod, ok := obs.MaxPeriod(); ok {
		if !obs.LastSend.Add(maxPeriod).After(now) {
			values, err := e.readTargets(ctx, obs)
			if err != nil {
				e.fail(ctx, srv, obs, err)
				return 0, false
			}
			if !e.send(ctx, srv, obs, values, now) {
				return 0, false
			}
		}
		deadline(obs.LastSend.Add(maxPeriod).Sub(now))
	}
	return hint, hasHint
}

// evaluate decides whether the pending change of obs warrants a
// notification.
func (e *Engine) evaluate(obs *Observation, values []model.Value) bool {
	if obs.Composite() {
		return true
	}
	t := obs.Targets[0]
	if !t.thresholds() {
		return true
	}
	old := t.last
	candidate := *t
	candidate.record(values)
	if !candidate.numeric {
		return true
	}
	return fires(t.Attrs, old, candidate.last)
}

func (e *Engine) readTargets(ctx context.Context, obs *Observation) ([]model.Value, error) {
	var values []model.Value
	for _, t := range obs.Targets {
		vs, err := e.reader.Read(ctx, obs.Server, t.URI)
		if err != nil {
			return nil, err
		}
		values = append(values, vs...)
	}
	return values, nil
}

func (e *Engine) messageType(srv *server.Server) wire.Type {
	if srv.ReliableNotifications {
		return wire.Confirmable
	}
	return wire.NonConfirmable
}

// send encodes values and sends them as a notification of obs. The
// observation state only advances when the message went out. It returns
// false when obs was dropped.
func (e *Engine) send(ctx context.Context, srv *server.Server, obs *Observation, values []model.Value, now time.Time) bool {
	payload, format, err := e.codec.Serialize(obs.Base(), values, obs.Format)
	if err != nil {
		e.fail(ctx, srv, obs, err)
		return false
	}

	msg := &wire.Message{
		Type:    e.messageType(srv),
		Code:    codes.Content,
		Token:   obs.Token,
		Payload: payload,
	}
	msg.Options.SetObserve(obs.Counter & 0xFFFFFF)
	msg.Options.SetContentFormat(format)

	id, err := e.sender.Send(ctx, obs.Server, msg)
	if err != nil {
		e.warnLog("observe: sending notification failed", "server", obs.Server, "uri", obs.Base().String(), "error", err)
		return true
	}
	msg.MessageID = id

	obs.NextSequence()
	obs.LastSend = now
	obs.RecordMessageID(id)
	obs.recordValues(values)
	e.logMessage(obs, msg)
	e.debugLog("observe: notified", "server", obs.Server, "uri", obs.Base().String(), "observe", msg.Options.Observe, "mid", id)
	return true
}

// fail reports err to the Server as an error notification and drops obs.
func (e *Engine) fail(ctx context.Context, srv *server.Server, obs *Observation, err error) {
	e.remove(obs.Server, func(o *Observation) bool { return o == obs })

	msg := &wire.Message{
		Type:  e.messageType(srv),
		Code:  status.CodeOf(err),
		Token: obs.Token,
	}
	msg.Options.SetObserve(obs.Counter & 0xFFFFFF)
	id, sendErr := e.sender.Send(ctx, obs.Server, msg)
	if sendErr == nil {
		msg.MessageID = id
		e.logMessage(obs, msg)
	}
	e.logState(obs, "ACTIVE", "REMOVED", err.Error())
	e.warnLog("observe: observation dropped", "server", obs.Server, "uri", obs.Base().String(), "error", err)
}

func (e *Engine) logMessage(obs *Observation, msg *wire.Message) {
	if e.config.ProtocolLogger == nil {
		return
	}
	ev := log.NewMessageEvent(log.MessageTypeNotification, msg)
	ev.Path = obs.Base().String()
	e.config.ProtocolLogger.Log(log.Event{
		Timestamp: e.config.Clock(),
		SessionID: e.config.SessionID,
		ServerID:  uint16(obs.Server),
		Direction: log.DirectionOut,
		Layer:     log.LayerObserve,
		Category:  log.CategoryMessage,
		Message:   ev,
	})
}

// String summarises an observation for consoles.
func (o *Observation) String() string {
	s := fmt.Sprintf("token=%x %s", o.Token, o.Base())
	if o.Composite() {
		s = fmt.Sprintf("token=%x %d targets", o.Token, len(o.Targets))
	}
	if !o.Periods.IsEmpty() {
		s += " " + o.Periods.String()
	}
	return s + fmt.Sprintf(" seq=%d", o.Counter)
}
