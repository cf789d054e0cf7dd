package observe

import (
	"bytes"
	"slices"
	"time"

	"github.com/plgd-dev/go-coap/v3/message"

	"github.com/mash-protocol/lwm2m-go/pkg/attribute"
	"github.com/mash-protocol/lwm2m-go/pkg/model"
)

// Target is one observed URI.
type Target struct {
	URI model.URI

	// Attrs is the effective Attribute Set of URI.
	Attrs attribute.Set

	numeric bool
	last    float64
	pending bool
}

// Last returns the last numeric value recorded for the target.
func (t *Target) Last() (float64, bool) {
	return t.last, t.numeric
}

// thresholds reports whether the target's notifications depend on its
// numeric value.
func (t *Target) thresholds() bool {
	return t.numeric && t.Attrs.Flags&attribute.NumericFlags != 0
}

// record stores v as the last value when it is a single numeric value of
// the target itself.
func (t *Target) record(values []model.Value) {
	vs := model.ValuesOf(values, t.URI)
	t.numeric = false
	if len(vs) != 1 || vs[0].URI != t.URI || !vs[0].Type.IsNumeric() {
		return
	}
	if f, ok := vs[0].Float64(); ok {
		t.last = f
		t.numeric = true
	}
}

// Observation is an active subscription of one Server.
type Observation struct {
	Server  model.ServerID
	Token   []byte
	Targets []*Target

	// Format is the content format notifications are encoded with.
	Format message.MediaType

	// Counter is the Observe sequence number of the next notification.
	Counter uint32

	// LastSend is when the last notification, or the response that started
	// the observation, was sent.
	LastSend time.Time

	// Periods holds the aggregate pmin/pmax of the targets.
	Periods attribute.Set

	recent  []uint16
	next    int
	pending bool

	// replaced is the observation with the same token this one replaced,
	// and its position in the Server's list. Kept until the start is
	// confirmed so Rollback can reinstate it.
	replaced   *Observation
	replacedAt int
}

func newObservation(server model.ServerID, token []byte, uris []model.URI, format message.MediaType, recent int) *Observation {
	obs := &Observation{
		Server: server,
		Token:  bytes.Clone(token),
		Format: format,
		recent: make([]uint16, 0, recent),
	}
	for _, uri := range uris {
		obs.Targets = append(obs.Targets, &Target{URI: uri})
	}
	return obs
}

// Composite reports whether the observation watches several URIs.
func (o *Observation) Composite() bool {
	return len(o.Targets) > 1
}

// Pending reports whether a change awaits evaluation.
func (o *Observation) Pending() bool {
	return o.pending
}

// Base returns the URI notification payloads are encoded relative to.
func (o *Observation) Base() model.URI {
	if o.Composite() {
		return model.RootURI()
	}
	return o.Targets[0].URI
}

// MinPeriod returns the aggregate minimum period.
func (o *Observation) MinPeriod() (time.Duration, bool) {
	if !o.Periods.Has(attribute.MinPeriod) {
		return 0, false
	}
	return time.Duration(o.Periods.MinPeriod) * time.Second, true
}

// MaxPeriod returns the aggregate maximum period unless it is unset or
// smaller than the minimum period.
func (o *Observation) MaxPeriod() (time.Duration, bool) {
	p, ok := o.Periods.EffectiveMaxPeriod()
	if !ok {
		return 0, false
	}
	return time.Duration(p) * time.Second, true
}

// NextSequence returns the Observe value for the next message and
// advances the counter.
func (o *Observation) NextSequence() uint32 {
	seq := o.Counter & 0xFFFFFF
	o.Counter++
	return seq
}

// RecordMessageID remembers the id of a message sent for the observation.
// Only the most recent ids are kept.
func (o *Observation) RecordMessageID(id uint16) {
	if cap(o.recent) == 0 {
		return
	}
	if len(o.recent) < cap(o.recent) {
		o.recent = append(o.recent, id)
		return
	}
	o.recent[o.next] = id
	o.next = (o.next + 1) % len(o.recent)
}

// SentMessage reports whether id is among the recently sent message ids.
func (o *Observation) SentMessage(id uint16) bool {
	return slices.Contains(o.recent, id)
}

// Covers reports whether any target lies at or below uri.
func (o *Observation) Covers(uri model.URI) bool {
	for _, t := range o.Targets {
		if uri.Contains(t.URI) {
			return true
		}
	}
	return false
}

func (o *Observation) recordValues(values []model.Value) {
	for _, t := range o.Targets {
		t.record(values)
	}
}

func (o *Observation) clearPending() {
	o.pending = false
	for _, t := range o.Targets {
		t.pending = false
	}
}

// Matcher selects an observation to cancel.
type Matcher func(*Observation) bool

// ByToken matches the observation started with token.
func ByToken(token []byte) Matcher {
	return func(o *Observation) bool { return bytes.Equal(o.Token, token) }
}

// ByMessageID matches the observation that recently sent message id.
func ByMessageID(id uint16) Matcher {
	return func(o *Observation) bool { return o.SentMessage(id) }
}
